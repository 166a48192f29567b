package services

import (
	"context"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/dmitrijs2005/innerwell/internal/client/client"
	"github.com/dmitrijs2005/innerwell/internal/client/tokenstore"
	"github.com/dmitrijs2005/innerwell/internal/devserver"
	"github.com/stretchr/testify/require"
)

const (
	testEmail    = "ann@example.com"
	testPassword = "password1"
)

type env struct {
	srv   *devserver.Server
	store *tokenstore.Store
	nav   *client.Navigator
	api   *client.Client
	auth  *AuthService
}

func newEnv(t *testing.T, start string) *env {
	t.Helper()
	ctx := context.Background()

	e := &env{srv: devserver.New(devserver.Options{})}
	ts := httptest.NewServer(e.srv)
	t.Cleanup(ts.Close)

	repos, err := client.InitDatabase(ctx, filepath.Join(t.TempDir(), "services.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	e.store, err = tokenstore.New(ctx, repos.DB, repos.Metadata, "")
	require.NoError(t, err)

	e.nav = client.NewNavigator(start)
	e.api, err = client.New(client.Options{BaseURL: ts.URL}, e.store, e.nav, nil)
	require.NoError(t, err)

	e.auth = NewAuthService(e.api, e.store, nil)
	return e
}

// signIn seeds an account and logs it in through the service.
func (e *env) signIn(t *testing.T, subscribed bool) {
	t.Helper()
	e.srv.AddUser(testEmail, testPassword, subscribed)
	_, err := e.auth.Login(context.Background(), testEmail, testPassword)
	require.NoError(t, err)
	e.nav.Navigate("/chat")
}

func (e *env) conversations(flow Flow) *ConversationService {
	return NewConversationService(flow, e.api, e.store, e.auth, nil)
}
