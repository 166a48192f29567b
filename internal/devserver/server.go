// Package devserver is an in-memory stand-in for the InnerWell backend. It
// implements the REST contract the client depends on (JWT auth with rotating
// refresh tokens, conversation flows, billing, reviews) and exposes knobs to
// provoke failures. Tests mount it with httptest; cmd/devserver serves it for
// local runs of the CLI.
package devserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/innerwell/internal/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// SubscriptionSignal selects how an unsubscribed user is turned away.
type SubscriptionSignal int

const (
	SignalPaymentRequired SubscriptionSignal = iota // 402
	SignalForbiddenCode                             // 403 + code subscription_required
	SignalBodyFlag                                  // 200 + needs_subscription: true
)

type Options struct {
	Secret    []byte
	AccessTTL time.Duration
	Logger    logging.Logger
}

// Recorded is one request as seen by the server.
type Recorded struct {
	Method        string
	Pattern       string
	Path          string
	Authorization string
	RequestID     string
	ContentType   string
	Status        int
}

type Server struct {
	opts   Options
	router chi.Router

	mu           sync.Mutex
	generation   int
	seq          int
	accounts     map[string]*account // by id
	byEmail      map[string]string
	google       map[string]string // provider token -> email
	refresh      map[string]string // live refresh token -> user id
	usedRefresh  []string
	convs        map[string]*conversation
	checkouts    map[string]string // checkout session -> user id
	lastCheckout string
	requests     []Recorded

	refreshGate       chan struct{}
	refreshStatus     int
	refreshIncomplete bool
	logoutStatus      int
	rejectAll         bool
	signal            SubscriptionSignal
}

func New(opts Options) *Server {
	if len(opts.Secret) == 0 {
		opts.Secret = []byte("innerwell-dev-secret")
	}
	if opts.AccessTTL <= 0 {
		opts.AccessTTL = 5 * time.Minute
	}
	if opts.Logger == nil {
		opts.Logger = logging.Nop()
	}

	s := &Server{
		opts:      opts,
		accounts:  make(map[string]*account),
		byEmail:   make(map[string]string),
		google:    make(map[string]string),
		refresh:   make(map[string]string),
		convs:     make(map[string]*conversation),
		checkouts: make(map[string]string),
	}
	s.router = s.routes()
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer, s.record)

	r.Route("/api/users", func(r chi.Router) {
		r.Post("/login/", s.handleLogin)
		r.Post("/register/", s.handleRegister)
		r.Post("/token/refresh/", s.handleRefresh)
		r.Post("/auth/google/", s.handleGoogle)
		r.Get("/email/verify/{uid}/{token}/", s.handleVerifyEmail)
		r.Post("/pass-reset/{uid}/{token}", s.handleResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(s.authenticate)
			r.Post("/logout/", s.handleLogout)
			r.Get("/profile/", s.handleProfile)
			r.Patch("/profile/", s.handleUpdateProfile)
		})
	})

	r.Group(func(r chi.Router) {
		r.Use(s.authenticate)

		r.Get("/api/chatbot/settings", s.handleChatSettings)
		r.Post("/api/chatbot/start/", s.handleStart(flowChatbot, false))
		r.Post("/api/chatbot/message/", s.handleMessage(flowChatbot))
		r.Get("/api/chatbot/history/", s.handleList(flowChatbot))
		r.Get("/api/chatbot/history/{id}/", s.handleHistory(flowChatbot))
		r.Delete("/api/chatbot/history/{id}/", s.handleDelete(flowChatbot))

		r.Post("/api/mindset/start/", s.handleStart(flowMindset, true))
		r.Post("/api/mindset/", s.handleMessage(flowMindset))
		r.Get("/api/mindset/history/{id}/", s.handleHistory(flowMindset))

		r.Post("/api/internal-challenge/start/", s.handleStart(flowChallenge, true))
		r.Post("/api/internal-challenge/", s.handleMessage(flowChallenge))
		r.Get("/api/internal-challenge/{id}/", s.handleHistory(flowChallenge))

		r.Post("/api/journaling/chat/", s.handleJournalChat)
		r.Get("/api/journaling/sessions/", s.handleList(flowJournal))
		r.Get("/api/journaling/sessions/{id}/", s.handleHistory(flowJournal))
		r.Delete("/api/journaling/sessions/{id}/", s.handleDelete(flowJournal))

		r.Post("/api/subscriptions/create-checkout-session/", s.handleCheckout)
		r.Post("/api/subscriptions/verify-subscription/", s.handleVerifySubscription)
	})

	r.Get("/api/subscriptions/plans/", s.handlePlans)
	r.Get("/api/reviews/", s.handleReviews)

	return r
}

// record keeps a log of every request once chi has resolved its pattern.
func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)

		pattern := ""
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			pattern = rctx.RoutePattern()
		}
		rec := Recorded{
			Method:        r.Method,
			Pattern:       pattern,
			Path:          r.URL.Path,
			Authorization: r.Header.Get("Authorization"),
			RequestID:     r.Header.Get("X-Request-Id"),
			ContentType:   r.Header.Get("Content-Type"),
			Status:        ww.Status(),
		}

		s.mu.Lock()
		s.requests = append(s.requests, rec)
		s.mu.Unlock()

		s.opts.Logger.Debug(r.Context(), "devserver",
			"method", r.Method, "path", r.URL.Path, "status", rec.Status, "dur", time.Since(start))
	})
}

/***** inspection *****/

// Requests returns a copy of everything received so far.
func (s *Server) Requests() []Recorded {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Recorded(nil), s.requests...)
}

// Calls counts requests matching method and route pattern.
func (s *Server) Calls(method, pattern string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && r.Pattern == pattern {
			n++
		}
	}
	return n
}

// CallsWithStatus counts requests matching method, pattern and status.
func (s *Server) CallsWithStatus(method, pattern string, status int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method && r.Pattern == pattern && r.Status == status {
			n++
		}
	}
	return n
}

// RefreshTokensUsed lists the refresh tokens presented, in order.
func (s *Server) RefreshTokensUsed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.usedRefresh...)
}

// LastCheckoutSession returns the id of the latest checkout session.
func (s *Server) LastCheckoutSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCheckout
}

/***** knobs *****/

// HoldRefresh makes refresh calls block until the returned func is called.
func (s *Server) HoldRefresh() (release func()) {
	gate := make(chan struct{})
	s.mu.Lock()
	s.refreshGate = gate
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			s.refreshGate = nil
			s.mu.Unlock()
			close(gate)
		})
	}
}

// FailRefresh answers every refresh call with status; 0 restores normal
// behaviour.
func (s *Server) FailRefresh(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshStatus = status
}

// IncompleteRefresh makes refresh answers omit the rotated refresh token.
func (s *Server) IncompleteRefresh(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshIncomplete = on
}

// FailLogout answers logout with status; 0 restores normal behaviour.
func (s *Server) FailLogout(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutStatus = status
}

// RejectAllTokens makes authenticated endpoints answer 401 regardless of
// the token presented.
func (s *Server) RejectAllTokens(on bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejectAll = on
}

// ExpireAccessTokens invalidates every access token issued so far. Refresh
// tokens stay valid.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
}

func (s *Server) SetSubscriptionSignal(sig SubscriptionSignal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signal = sig
}

/***** helpers *****/

func (s *Server) nextID() int {
	s.seq++
	return s.seq
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{"error": map[string]string{"code": code, "message": message}})
}

func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("bad json: %w", err)
	}
	return nil
}

type ctxKey string

const accountKey ctxKey = "account"

func accountFrom(ctx context.Context) *account {
	a, _ := ctx.Value(accountKey).(*account)
	return a
}
