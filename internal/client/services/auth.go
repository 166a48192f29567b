// Package services contains the application services of the InnerWell CLI.
// This file defines the session manager: it owns the signed-in profile and
// drives login, registration, email verification, logout and profile edits.
package services

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sync"

	"github.com/dmitrijs2005/innerwell/internal/client/client"
	"github.com/dmitrijs2005/innerwell/internal/client/models"
	"github.com/dmitrijs2005/innerwell/internal/logging"
)

const (
	pathLogin    = "/api/users/login/"
	pathRegister = "/api/users/register/"
	pathLogout   = "/api/users/logout/"
	pathProfile  = "/api/users/profile/"
	pathGoogle   = "/api/users/auth/google/"
)

// API is the part of *client.Client the services call.
type API interface {
	Get(ctx context.Context, path string, query url.Values, out any) error
	PostJSON(ctx context.Context, path string, in, out any) error
	Delete(ctx context.Context, path string) error
	PatchMultipart(ctx context.Context, path string, fields map[string]string, files []client.FilePart, out any) error
	OnSessionEnded(fn func())
}

// SessionStore persists the token pair and the cached profile.
type SessionStore interface {
	Get(ctx context.Context) (models.Tokens, error)
	Set(ctx context.Context, access, refresh string) error
	Remove(ctx context.Context) error
	User(ctx context.Context) (*models.User, error)
	SetUser(ctx context.Context, u *models.User) error
}

// AuthService is the session manager. It is safe for concurrent use.
type AuthService struct {
	api    API
	store  SessionStore
	logger logging.Logger

	readFile func(string) ([]byte, error)

	mu      sync.RWMutex
	user    *models.User
	loading bool
}

// NewAuthService wires the manager to api and store. The profile is dropped
// whenever the HTTP client reports that a failed refresh ended the session.
func NewAuthService(api API, store SessionStore, logger logging.Logger) *AuthService {
	if logger == nil {
		logger = logging.Nop()
	}
	s := &AuthService{
		api:      api,
		store:    store,
		logger:   logger.With("component", "auth"),
		readFile: os.ReadFile,
	}
	api.OnSessionEnded(s.SessionEnded)
	return s
}

// User returns a copy of the signed-in profile, or nil.
func (s *AuthService) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	return &u
}

func (s *AuthService) Loading() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loading
}

func (s *AuthService) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

// SessionEnded forgets the profile. It is registered with the HTTP client.
func (s *AuthService) SessionEnded() {
	s.setUser(nil)
}

func (s *AuthService) setUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
}

func (s *AuthService) setLoading(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading = v
}

// Bootstrap restores the session at start-up. Without a stored access token
// nothing is fetched. Otherwise the cached profile is shown immediately and
// replaced by a single profile fetch; if that fails the user ends up signed
// out. Errors are logged, never returned.
func (s *AuthService) Bootstrap(ctx context.Context) {
	s.setLoading(true)
	defer s.setLoading(false)

	tokens, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cannot read stored tokens", "error", err)
		s.setUser(nil)
		return
	}
	if tokens.Access == "" {
		s.setUser(nil)
		return
	}

	if cached, err := s.store.User(ctx); err == nil && cached != nil {
		s.setUser(cached)
	}

	if err := s.RefreshUser(ctx); err != nil {
		s.logger.Info(ctx, "session not restored", "error", err)
		s.setUser(nil)
	}
}

// RefreshUser fetches the profile and caches it.
func (s *AuthService) RefreshUser(ctx context.Context) error {
	_, err := s.fetchUser(ctx)
	return err
}

// fetchUser is RefreshUser returning its own copy of the fetched profile.
func (s *AuthService) fetchUser(ctx context.Context) (*models.User, error) {
	var u models.User
	if err := s.api.Get(ctx, pathProfile, nil, &u); err != nil {
		return nil, fmt.Errorf("fetch profile: %w", err)
	}
	if err := s.store.SetUser(ctx, &u); err != nil {
		s.logger.Warn(ctx, "cannot cache profile", "error", err)
	}
	s.setUser(&u)

	out := u
	return &out, nil
}

// Logout tells the backend (best effort) and then always clears the local
// session. The call is made even without a stored refresh token; its result
// is only logged.
func (s *AuthService) Logout(ctx context.Context) error {
	tokens, err := s.store.Get(ctx)
	if err != nil {
		s.logger.Warn(ctx, "cannot read stored tokens", "error", err)
	}
	body := map[string]string{}
	if tokens.Refresh != "" {
		body["refresh"] = tokens.Refresh
	}
	if err := s.api.PostJSON(ctx, pathLogout, body, nil); err != nil {
		s.logger.Warn(ctx, "logout request failed", "error", err)
	}

	s.setUser(nil)
	if err := s.store.Remove(ctx); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	s.logger.Info(ctx, "logged out")
	return nil
}

// Login signs in with email and password.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.User, error) {
	if err := validateForm(LoginForm{Email: email, Password: password}); err != nil {
		return nil, err
	}

	var resp models.AuthResponse
	err := s.api.PostJSON(ctx, pathLogin, map[string]string{"email": email, "password": password}, &resp)
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	return s.signIn(ctx, resp)
}

// LoginWithGoogle exchanges a Google access token for a session.
func (s *AuthService) LoginWithGoogle(ctx context.Context, providerToken string) (*models.User, error) {
	if err := requireText("google token", providerToken); err != nil {
		return nil, err
	}

	var resp models.AuthResponse
	if err := s.api.PostJSON(ctx, pathGoogle, map[string]string{"access_token": providerToken}, &resp); err != nil {
		return nil, fmt.Errorf("google login: %w", err)
	}
	return s.signIn(ctx, resp)
}

// RegisterResult describes the outcome of a sign-up. When the backend wants
// the email verified first, SignedIn is false and no tokens were stored.
type RegisterResult struct {
	User     *models.User
	Message  string
	SignedIn bool
}

func (s *AuthService) Register(ctx context.Context, email, password, confirm string) (RegisterResult, error) {
	form := RegisterForm{Email: email, Password: password, PasswordConfirm: confirm}
	if err := validateForm(form); err != nil {
		return RegisterResult{}, err
	}

	var resp models.AuthResponse
	err := s.api.PostJSON(ctx, pathRegister, map[string]string{
		"email":            email,
		"password":         password,
		"password_confirm": confirm,
	}, &resp)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("register: %w", err)
	}

	res := RegisterResult{User: resp.User, Message: resp.Message}
	if !resp.Complete() {
		return res, nil
	}

	u, err := s.signIn(ctx, resp)
	if err != nil {
		return res, err
	}
	res.User, res.SignedIn = u, true
	return res, nil
}

// VerifyEmail follows the link from the verification mail. The backend
// answers with a token pair, so the user is signed in afterwards.
func (s *AuthService) VerifyEmail(ctx context.Context, uid, token string) (*models.User, error) {
	if err := requireText("uid", uid); err != nil {
		return nil, err
	}
	if err := requireText("token", token); err != nil {
		return nil, err
	}

	var resp models.AuthResponse
	path := fmt.Sprintf("/api/users/email/verify/%s/%s/", url.PathEscape(uid), url.PathEscape(token))
	if err := s.api.Get(ctx, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("verify email: %w", err)
	}
	if !resp.Complete() {
		return resp.User, nil
	}
	return s.signIn(ctx, resp)
}

// ResetPassword sets a new password using the uid and token from the reset
// mail. It returns the backend's confirmation message.
func (s *AuthService) ResetPassword(ctx context.Context, uid, token, password, confirm string) (string, error) {
	if err := validateForm(ResetPasswordForm{Password: password, PasswordConfirm: confirm}); err != nil {
		return "", err
	}

	var resp struct {
		Message string `json:"message"`
	}
	path := fmt.Sprintf("/api/users/pass-reset/%s/%s", url.PathEscape(uid), url.PathEscape(token))
	err := s.api.PostJSON(ctx, path, map[string]string{
		"new_password":         password,
		"new_password_confirm": confirm,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("reset password: %w", err)
	}
	return resp.Message, nil
}

// UpdateProfile sends the non-empty fields of upd as multipart form data.
func (s *AuthService) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.User, error) {
	if !s.IsAuthenticated() {
		return nil, ErrNotAuthenticated
	}

	fields := map[string]string{}
	if upd.Name != "" {
		fields["name"] = upd.Name
	}
	if upd.Username != "" {
		fields["username"] = upd.Username
	}

	var files []client.FilePart
	if upd.ImagePath != "" {
		content, err := s.readFile(upd.ImagePath)
		if err != nil {
			return nil, fmt.Errorf("read profile image: %w", err)
		}
		files = append(files, client.FilePart{
			Field:    "profile_image",
			FileName: filepath.Base(upd.ImagePath),
			Content:  content,
		})
	}
	if len(fields) == 0 && len(files) == 0 {
		return nil, fmt.Errorf("%w: nothing to update", ErrValidation)
	}

	var u models.User
	if err := s.api.PatchMultipart(ctx, pathProfile, fields, files, &u); err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	if err := s.store.SetUser(ctx, &u); err != nil {
		s.logger.Warn(ctx, "cannot cache profile", "error", err)
	}
	s.setUser(&u)

	out := u
	return &out, nil
}

// signIn stores the pair from resp and settles the profile, fetching it when
// the response did not include one.
func (s *AuthService) signIn(ctx context.Context, resp models.AuthResponse) (*models.User, error) {
	if !resp.Complete() {
		return nil, client.ErrIncompleteTokens
	}
	if err := s.store.Set(ctx, resp.Access, resp.Refresh); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}

	var u *models.User
	if resp.User == nil {
		fetched, err := s.fetchUser(ctx)
		if err != nil {
			return nil, err
		}
		u = fetched
	} else {
		if err := s.store.SetUser(ctx, resp.User); err != nil {
			s.logger.Warn(ctx, "cannot cache profile", "error", err)
		}
		s.setUser(resp.User)
		c := *resp.User
		u = &c
	}

	s.logger.Info(ctx, "signed in", "user_id", u.ID.String())
	return u, nil
}
