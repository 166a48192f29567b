package devserver

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
)

type account struct {
	ID           string `json:"id"`
	Email        string `json:"email"`
	Username     string `json:"username,omitempty"`
	Name         string `json:"name,omitempty"`
	ProfileImage string `json:"profile_image,omitempty"`
	IsSubscribed bool   `json:"is_subscribed"`
	IsVerified   bool   `json:"is_verified"`
	DateJoined   string `json:"date_joined"`

	password     string
	allowHistory bool
	verifyToken  string
	resetToken   string
}

type tokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh,omitempty"`
}

// AddUser creates a verified account and returns its id.
func (s *Server) AddUser(email, password string, subscribed bool) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.addAccountLocked(email, password)
	a.IsVerified = true
	a.IsSubscribed = subscribed
	a.allowHistory = true
	return a.ID
}

func (s *Server) addAccountLocked(email, password string) *account {
	id := strconv.Itoa(s.nextID())
	a := &account{
		ID:          id,
		Email:       email,
		Username:    strings.SplitN(email, "@", 2)[0],
		DateJoined:  time.Now().UTC().Format(time.RFC3339),
		password:    password,
		verifyToken: "verify-" + id,
		resetToken:  "reset-" + id,
	}
	s.accounts[id] = a
	s.byEmail[email] = id
	return a
}

// SetSubscribed flips the subscription flag of email.
func (s *Server) SetSubscribed(email string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accountByEmailLocked(email); a != nil {
		a.IsSubscribed = on
	}
}

// SetHistoryAllowed controls allow_chat_history for email.
func (s *Server) SetHistoryAllowed(email string, on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accountByEmailLocked(email); a != nil {
		a.allowHistory = on
	}
}

// RegisterGoogleToken maps a provider access token onto email.
func (s *Server) RegisterGoogleToken(providerToken, email string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.google[providerToken] = email
}

// VerificationLink returns the uid and token of email's verification link.
func (s *Server) VerificationLink(email string) (uid, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accountByEmailLocked(email); a != nil {
		return a.ID, a.verifyToken
	}
	return "", ""
}

// ResetLink returns the uid and token of email's password reset link.
func (s *Server) ResetLink(email string) (uid, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if a := s.accountByEmailLocked(email); a != nil {
		return a.ID, a.resetToken
	}
	return "", ""
}

// IssueTokens mints a pair for email as if it had logged in.
func (s *Server) IssueTokens(email string) (access, refresh string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.accountByEmailLocked(email)
	if a == nil {
		return "", "", fmt.Errorf("no account %s", email)
	}
	p, err := s.issueLocked(a.ID)
	return p.Access, p.Refresh, err
}

func (s *Server) accountByEmailLocked(email string) *account {
	id, ok := s.byEmail[email]
	if !ok {
		return nil
	}
	return s.accounts[id]
}

func (s *Server) issueLocked(userID string) (tokenPair, error) {
	jti := strconv.Itoa(s.nextID())
	access, err := GenerateToken(userID, kindAccess, jti, s.generation, s.opts.Secret, s.opts.AccessTTL)
	if err != nil {
		return tokenPair{}, err
	}
	refresh, err := GenerateToken(userID, kindRefresh, jti, 0, s.opts.Secret, 24*time.Hour)
	if err != nil {
		return tokenPair{}, err
	}
	s.refresh[refresh] = userID
	return tokenPair{Access: access, Refresh: refresh}, nil
}

func (s *Server) authResponseLocked(w http.ResponseWriter, a *account) {
	p, err := s.issueLocked(a.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	snapshot := *a
	writeJSON(w, http.StatusOK, map[string]any{"access": p.Access, "refresh": p.Refresh, "user": &snapshot})
}

// authenticate accepts "Authorization: Bearer <access>" signed in the
// current generation.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || raw == "" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Authentication credentials were not provided.",
			})
			return
		}

		s.mu.Lock()
		rejectAll, generation := s.rejectAll, s.generation
		s.mu.Unlock()

		claims, err := ParseToken(raw, kindAccess, s.opts.Secret)
		if rejectAll || err != nil || claims.Generation != generation {
			writeJSON(w, http.StatusUnauthorized, map[string]string{
				"detail": "Given token not valid for any token type",
				"code":   "token_not_valid",
			})
			return
		}

		s.mu.Lock()
		a := s.accounts[claims.UserID]
		s.mu.Unlock()
		if a == nil {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "User not found", "code": "user_not_found"})
			return
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), accountKey, a)))
	})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accountByEmailLocked(in.Email)
	if a == nil || a.password != in.Password {
		writeError(w, http.StatusBadRequest, "invalid_credentials", "Invalid email or password.")
		return
	}
	if !a.IsVerified {
		writeError(w, http.StatusBadRequest, "email_not_verified", "Please verify your email first.")
		return
	}
	s.authResponseLocked(w, a)
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email           string `json:"email"`
		Password        string `json:"password"`
		PasswordConfirm string `json:"password_confirm"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if in.Password != in.PasswordConfirm {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"password_confirm": {"Passwords do not match."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.accountByEmailLocked(in.Email) != nil {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"email": {"user with this email already exists."}})
		return
	}
	a := s.addAccountLocked(in.Email, in.Password)
	snapshot := *a
	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Registration successful. Please check your email to verify your account.",
		"user":    &snapshot,
	})
}

func (s *Server) handleVerifyEmail(w http.ResponseWriter, r *http.Request) {
	uid, token := chi.URLParam(r, "uid"), chi.URLParam(r, "token")

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accounts[uid]
	if a == nil || a.verifyToken != token {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid or expired verification link."})
		return
	}
	a.IsVerified = true
	s.authResponseLocked(w, a)
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	uid, token := chi.URLParam(r, "uid"), chi.URLParam(r, "token")
	var in struct {
		NewPassword        string `json:"new_password"`
		NewPasswordConfirm string `json:"new_password_confirm"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if in.NewPassword != in.NewPasswordConfirm {
		writeJSON(w, http.StatusBadRequest, map[string][]string{"new_password_confirm": {"Passwords do not match."}})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	a := s.accounts[uid]
	if a == nil || a.resetToken != token {
		writeJSON(w, http.StatusBadRequest, map[string]string{"detail": "Invalid or expired reset link."})
		return
	}
	a.password = in.NewPassword
	writeJSON(w, http.StatusOK, map[string]string{"message": "Password has been reset."})
}

func (s *Server) handleGoogle(w http.ResponseWriter, r *http.Request) {
	var in struct {
		AccessToken string `json:"access_token"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	email, ok := s.google[in.AccessToken]
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid Google token."})
		return
	}
	a := s.accountByEmailLocked(email)
	if a == nil {
		a = s.addAccountLocked(email, "")
		a.IsVerified = true
	}
	s.authResponseLocked(w, a)
}

// handleRefresh rotates the pair: the presented refresh token is consumed.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	gate := s.refreshGate
	s.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}

	var in struct {
		Refresh string `json:"refresh"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.usedRefresh = append(s.usedRefresh, in.Refresh)

	if s.refreshStatus != 0 {
		writeJSON(w, s.refreshStatus, map[string]string{"detail": "refresh unavailable"})
		return
	}

	userID, ok := s.refresh[in.Refresh]
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{
			"detail": "Token is invalid or expired",
			"code":   "token_not_valid",
		})
		return
	}
	delete(s.refresh, in.Refresh)

	p, err := s.issueLocked(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
		return
	}
	if s.refreshIncomplete {
		p.Refresh = ""
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Refresh string `json:"refresh"`
	}
	_ = decodeJSON(r, &in)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.logoutStatus != 0 {
		writeJSON(w, s.logoutStatus, map[string]string{"detail": "logout failed"})
		return
	}
	delete(s.refresh, in.Refresh)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out."})
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	a := accountFrom(r.Context())

	s.mu.Lock()
	snapshot := *a
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, &snapshot)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}

	var image string
	if f, hdr, err := r.FormFile("profile_image"); err == nil {
		_, _ = io.Copy(io.Discard, f)
		_ = f.Close()
		image = "/media/profile_images/" + hdr.Filename
	}

	a := accountFrom(r.Context())

	s.mu.Lock()
	if v := r.FormValue("name"); v != "" {
		a.Name = v
	}
	if v := r.FormValue("username"); v != "" {
		a.Username = v
	}
	if image != "" {
		a.ProfileImage = image
	}
	snapshot := *a
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, &snapshot)
}
