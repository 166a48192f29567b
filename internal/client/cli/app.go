package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/innerwell/internal/client/client"
	"github.com/dmitrijs2005/innerwell/internal/client/config"
	"github.com/dmitrijs2005/innerwell/internal/client/models"
	"github.com/dmitrijs2005/innerwell/internal/client/services"
	"github.com/dmitrijs2005/innerwell/internal/client/tokenstore"
	"github.com/dmitrijs2005/innerwell/internal/common"
	"github.com/dmitrijs2005/innerwell/internal/filex"
	"github.com/dmitrijs2005/innerwell/internal/logging"
)

// App is the REPL application. It owns the navigation state and the
// services; commands run one at a time.
type App struct {
	auth    *services.AuthService
	convs   map[string]*services.ConversationService
	billing *services.BillingService
	reviews *services.ReviewService
	nav     *client.Navigator
	store   appStore
	logger  logging.Logger

	reader *bufio.Reader
	out    io.Writer

	// passwords are read without echo when stdin is a terminal
	terminal bool

	closers []func() error

	activeFlow    string
	activeSession models.SessionID
	plans         []models.Plan
}

// NewApp opens the local database at cfg.DatabasePath and wires the token
// store, the HTTP client and the services around it.
func NewApp(ctx context.Context, cfg *config.Config, logger logging.Logger) (*App, error) {
	if _, err := filex.EnsureParentDir(cfg.DatabasePath); err != nil {
		return nil, err
	}

	repos, err := client.InitDatabase(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}

	store, err := tokenstore.New(ctx, repos.DB, repos.Metadata, cfg.StorePassphrase)
	if err != nil {
		_ = repos.Close()
		return nil, fmt.Errorf("open token store: %w", err)
	}

	nav := client.NewNavigator(common.RouteHome)
	api, err := client.New(client.Options{
		BaseURL:        cfg.ServerBaseURL,
		Timeout:        cfg.RequestTimeout,
		RefreshTimeout: cfg.RefreshTimeout,
	}, store, nav, logger)
	if err != nil {
		store.Close()
		_ = repos.Close()
		return nil, err
	}

	a := newApp(api, store, nav, logger, bufio.NewReader(os.Stdin), os.Stdout)
	a.terminal = isTerminal(int(os.Stdin.Fd()))
	a.closers = append(a.closers, func() error { store.Close(); return nil }, repos.Close)
	return a, nil
}

// appStore is everything the services need from the token store.
type appStore interface {
	services.SessionStore
	services.ConversationStore
}

func newApp(api *client.Client, store appStore, nav *client.Navigator, logger logging.Logger, in *bufio.Reader, out io.Writer) *App {
	if logger == nil {
		logger = logging.Nop()
	}

	auth := services.NewAuthService(api, store, logger)
	a := &App{
		auth:    auth,
		convs:   make(map[string]*services.ConversationService, len(services.Flows)),
		billing: services.NewBillingService(api, auth, logger),
		reviews: services.NewReviewService(api),
		nav:     nav,
		store:   store,
		logger:  logger,
		reader:  in,
		out:     out,
	}
	for name, flow := range services.Flows {
		a.convs[name] = services.NewConversationService(flow, api, store, auth, logger)
	}

	nav.OnNavigate(func(from, to string) {
		if to == common.RouteLogin && client.IsProtectedRoute(from) && !auth.IsAuthenticated() {
			a.println("Your session has expired, please log in again.")
		}
	})
	return a
}

// Run restores the stored session and serves commands until the user exits
// or input ends.
func (a *App) Run(ctx context.Context) {
	defer a.Close()

	a.println("Welcome to InnerWell CLI (type 'help' for commands)")

	// A stored session reopens the chat screen, where requests are
	// authenticated; the profile fetch then decides whether it is still valid.
	if tokens, err := a.store.Get(ctx); err == nil && tokens.Access != "" {
		a.nav.Navigate(common.RouteChat)
	}
	a.auth.Bootstrap(ctx)

	switch {
	case a.auth.IsAuthenticated():
		a.printf("Welcome back, %s.\n", a.auth.User().DisplayName())
	case a.nav.CurrentPath() == common.RouteChat:
		a.nav.Navigate(common.RouteHome)
	}

	runREPL(ctx, a)
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn(context.Background(), "close failed", "error", err)
		}
	}
	a.closers = nil
}

func (a *App) status() string {
	var parts []string
	if u := a.auth.User(); u != nil {
		parts = append(parts, u.DisplayName())
	}
	parts = append(parts, a.nav.CurrentPath())
	return strings.Join(parts, " ")
}

func (a *App) println(args ...any) {
	fmt.Fprintln(a.out, args...)
}

func (a *App) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

func (a *App) readLine(prompt string) (string, error) {
	return GetSimpleText(a.reader, prompt, a.out)
}

// readSecret reads a password, without echo on a terminal.
func (a *App) readSecret(prompt string) (string, error) {
	if !a.terminal {
		return a.readLine(prompt)
	}
	pw, err := GetPassword(prompt, a.out)
	if err != nil {
		return "", err
	}
	defer common.WipeByteArray(pw)
	return string(pw), nil
}

// report prints err in a form fit for the user. Commands never abort the
// REPL.
func (a *App) report(ctx context.Context, err error) {
	a.logger.Debug(ctx, "command failed", "error", err)

	var apiErr *client.APIError
	switch {
	case errors.Is(err, services.ErrValidation):
		a.println(strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": "))
	case errors.Is(err, services.ErrNotAuthenticated):
		a.println("Please log in first.")
	case errors.Is(err, client.ErrRefreshFailed):
		a.println("Your session could not be renewed.")
	case errors.Is(err, client.ErrUnavailable):
		a.println("The server is unavailable, please try again later.")
	case errors.As(err, &apiErr):
		a.println(apiErr.Message)
	default:
		a.println("Error:", err)
	}
}
