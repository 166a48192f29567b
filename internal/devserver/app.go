package devserver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/innerwell/internal/logging"
	"github.com/ilyakaznacheev/cleanenv"
)

// Config of the standalone dev server, read from the environment.
type Config struct {
	Addr         string        `env:"INNERWELL_DEVSERVER_ADDR" env-default:":9000"`
	Secret       string        `env:"INNERWELL_DEVSERVER_SECRET" env-default:"innerwell-dev-secret"`
	AccessTTL    time.Duration `env:"INNERWELL_DEVSERVER_ACCESS_TTL" env-default:"5m"`
	DemoEmail    string        `env:"INNERWELL_DEVSERVER_DEMO_EMAIL" env-default:"demo@innerwell.test"`
	DemoPassword string        `env:"INNERWELL_DEVSERVER_DEMO_PASSWORD" env-default:"demo-password"`
	LogFormat    string        `env:"INNERWELL_DEVSERVER_LOG_FORMAT" env-default:"text"`
	LogLevel     string        `env:"INNERWELL_DEVSERVER_LOG_LEVEL" env-default:"debug"`
}

func LoadConfig() (*Config, error) {
	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("read dev server config: %w", err)
	}
	return &cfg, nil
}

type App struct {
	config *Config
	logger logging.Logger
	server *Server
}

// NewApp builds the server and seeds a subscribed demo account.
func NewApp(c *Config) (*App, error) {
	logger, err := logging.New(c.LogFormat, c.LogLevel, os.Stdout)
	if err != nil {
		return nil, err
	}

	srv := New(Options{Secret: []byte(c.Secret), AccessTTL: c.AccessTTL, Logger: logger})
	if c.DemoEmail != "" {
		srv.AddUser(c.DemoEmail, c.DemoPassword, true)
	}
	return &App{config: c, logger: logger, server: srv}, nil
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Run serves until a termination signal arrives, then shuts down gracefully.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.initSignalHandler(cancelFunc)

	hs := &http.Server{
		Addr:              app.config.Addr,
		Handler:           app.server,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		app.logger.Info(ctx, "dev server listening", "addr", app.config.Addr, "demo_user", app.config.DemoEmail)
		if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	app.logger.Info(shutdownCtx, "shutting down")
	return hs.Shutdown(shutdownCtx)
}
