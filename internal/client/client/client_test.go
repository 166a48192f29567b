package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dmitrijs2005/innerwell/internal/client/models"
	"github.com/dmitrijs2005/innerwell/internal/client/tokenstore"
	"github.com/dmitrijs2005/innerwell/internal/common"
	"github.com/dmitrijs2005/innerwell/internal/devserver"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	profilePath    = "/api/users/profile/"
	testEmail      = "ann@example.com"
	testPassword   = "password1"
	refreshPattern = "/api/users/token/refresh/"
)

type harness struct {
	srv    *devserver.Server
	store  *tokenstore.Store
	nav    *Navigator
	client *Client

	navigations  atomic.Int32
	sessionEnded atomic.Int32
}

func newHarness(t *testing.T, start string, opts Options) *harness {
	t.Helper()
	ctx := context.Background()

	h := &harness{srv: devserver.New(devserver.Options{})}
	ts := httptest.NewServer(h.srv)
	t.Cleanup(ts.Close)

	repos, err := InitDatabase(ctx, filepath.Join(t.TempDir(), "client.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = repos.Close() })

	h.store, err = tokenstore.New(ctx, repos.DB, repos.Metadata, "")
	require.NoError(t, err)

	h.nav = NewNavigator(start)
	h.nav.OnNavigate(func(_, to string) {
		if to == common.RouteLogin {
			h.navigations.Add(1)
		}
	})

	opts.BaseURL = ts.URL
	h.client, err = New(opts, h.store, h.nav, nil)
	require.NoError(t, err)
	h.client.OnSessionEnded(func() { h.sessionEnded.Add(1) })
	return h
}

// login seeds an account and stores a freshly issued pair.
func (h *harness) login(t *testing.T) models.Tokens {
	t.Helper()
	h.srv.AddUser(testEmail, testPassword, true)
	access, refresh, err := h.srv.IssueTokens(testEmail)
	require.NoError(t, err)
	require.NoError(t, h.store.Set(context.Background(), access, refresh))
	return models.Tokens{Access: access, Refresh: refresh}
}

func (h *harness) lastRequest(t *testing.T) devserver.Recorded {
	t.Helper()
	reqs := h.srv.Requests()
	require.NotEmpty(t, reqs)
	return reqs[len(reqs)-1]
}

func TestNew_RejectsRelativeBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: "/api"}, nil, nil, nil)
	require.Error(t, err)
}

func TestDo_AttachesBearerAndRequestID(t *testing.T) {
	h := newHarness(t, "/chat", Options{})
	pair := h.login(t)

	var u models.User
	require.NoError(t, h.client.Get(context.Background(), profilePath, nil, &u))
	assert.Equal(t, testEmail, u.Email)

	rec := h.lastRequest(t)
	assert.Equal(t, common.BearerPrefix+pair.Access, rec.Authorization)
	_, err := uuid.Parse(rec.RequestID)
	assert.NoError(t, err, "X-Request-Id must be a uuid")
}

func TestDo_PublicRouteSendsNoToken(t *testing.T) {
	for _, route := range []string{"/", "/login", "/register", "/login/"} {
		t.Run(route, func(t *testing.T) {
			h := newHarness(t, route, Options{})
			h.login(t)

			require.NoError(t, h.client.Get(context.Background(), "/api/reviews/", nil, nil))
			assert.Empty(t, h.lastRequest(t).Authorization)
		})
	}
}

func TestDo_PublicRouteUnauthorizedKeepsStoredSession(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, common.RouteLogin, Options{})
	pair := h.login(t)

	err := h.client.Get(ctx, profilePath, nil, nil)
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrRefreshFailed)

	assert.Zero(t, h.srv.Calls(http.MethodPost, refreshPattern))
	assert.Empty(t, h.srv.RefreshTokensUsed())
	assert.Zero(t, h.navigations.Load())
	assert.Zero(t, h.sessionEnded.Load())

	reqs := h.srv.Requests()
	require.Len(t, reqs, 1)
	assert.Empty(t, reqs[0].Authorization)

	stored, err := h.store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, pair, stored)
}

func TestDo_ReplayHonoursRouteChangeDuringRefresh(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t, common.RouteChat, Options{})
	h.login(t)
	h.srv.ExpireAccessTokens()
	release := h.srv.HoldRefresh()
	t.Cleanup(release)

	done := make(chan error, 1)
	go func() { done <- h.client.Get(ctx, profilePath, nil, nil) }()

	require.Eventually(t, func() bool {
		return h.client.Coordinator().State() == StateRefreshing
	}, 2*time.Second, 5*time.Millisecond)
	h.nav.Navigate(common.RouteHome)
	release()

	err := <-done
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, 1, h.srv.Calls(http.MethodPost, refreshPattern))

	last := h.lastRequest(t)
	assert.Equal(t, profilePath, last.Path)
	assert.Empty(t, last.Authorization)
}

func TestDo_RouteEvaluatedPerRequest(t *testing.T) {
	h := newHarness(t, "/", Options{})
	pair := h.login(t)
	ctx := context.Background()

	require.NoError(t, h.client.Get(ctx, "/api/reviews/", nil, nil))
	assert.Empty(t, h.lastRequest(t).Authorization)

	h.nav.Navigate("/chat")
	require.NoError(t, h.client.Get(ctx, "/api/reviews/", nil, nil))
	assert.Equal(t, common.BearerPrefix+pair.Access, h.lastRequest(t).Authorization)

	h.nav.Navigate("/login")
	require.NoError(t, h.client.Get(ctx, "/api/reviews/", nil, nil))
	assert.Empty(t, h.lastRequest(t).Authorization)
}

func TestDo_ConcurrentUnauthorizedTriggerOneRefresh(t *testing.T) {
	const n = 5

	h := newHarness(t, "/chat/42", Options{})
	old := h.login(t)
	h.srv.ExpireAccessTokens()
	release := h.srv.HoldRefresh()
	t.Cleanup(release)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.client.Get(context.Background(), profilePath, nil, nil)
		}(i)
	}

	require.Eventually(t, func() bool {
		return h.srv.CallsWithStatus(http.MethodGet, profilePath, http.StatusUnauthorized) == n
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, StateRefreshing, h.client.Coordinator().State())

	release()
	wg.Wait()

	for i, err := range errs {
		assert.NoError(t, err, "request %d", i)
	}
	assert.Equal(t, 1, h.srv.Calls(http.MethodPost, refreshPattern))
	assert.Equal(t, n, h.srv.CallsWithStatus(http.MethodGet, profilePath, http.StatusOK))
	assert.Equal(t, StateIdle, h.client.Coordinator().State())

	stored, err := h.store.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, stored.Complete())
	assert.NotEqual(t, old.Refresh, stored.Refresh)
	assert.Zero(t, h.navigations.Load())
}

func TestDo_RefreshFailureOnProtectedRoute(t *testing.T) {
	const n = 4

	h := newHarness(t, "/settings", Options{})
	h.login(t)
	h.srv.ExpireAccessTokens()
	h.srv.FailRefresh(http.StatusInternalServerError)
	release := h.srv.HoldRefresh()
	t.Cleanup(release)

	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = h.client.Get(context.Background(), profilePath, nil, nil)
		}(i)
	}

	require.Eventually(t, func() bool {
		return h.srv.CallsWithStatus(http.MethodGet, profilePath, http.StatusUnauthorized) == n
	}, 5*time.Second, 10*time.Millisecond)
	release()
	wg.Wait()

	for i, err := range errs {
		assert.ErrorIs(t, err, ErrRefreshFailed, "request %d", i)
		assert.ErrorIs(t, err, ErrUnauthorized, "request %d", i)
	}

	stored, err := h.store.Get(context.Background())
	require.NoError(t, err)
	assert.Empty(t, stored.Access)
	assert.Empty(t, stored.Refresh)

	assert.Equal(t, 1, h.srv.Calls(http.MethodPost, refreshPattern))
	assert.EqualValues(t, 1, h.navigations.Load())
	assert.EqualValues(t, 1, h.sessionEnded.Load())
	assert.Equal(t, common.RouteLogin, h.nav.CurrentPath())
}

func TestDo_RefreshFailureOutsideProtectedArea(t *testing.T) {
	h := newHarness(t, common.RoutePricing, Options{})
	pair := h.login(t)
	h.srv.ExpireAccessTokens()
	h.srv.FailRefresh(http.StatusBadGateway)

	err := h.client.Get(context.Background(), profilePath, nil, nil)
	require.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, ErrUnavailable)

	stored, err := h.store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, pair, stored)
	assert.Zero(t, h.navigations.Load())
	assert.Zero(t, h.sessionEnded.Load())
	assert.Equal(t, common.RoutePricing, h.nav.CurrentPath())
}

func TestDo_RetriedRequestIsNotRetriedAgain(t *testing.T) {
	h := newHarness(t, "/chat", Options{})
	h.login(t)
	h.srv.RejectAllTokens(true)

	req := &Request{Method: http.MethodGet, Path: profilePath}
	resp, err := h.client.Do(context.Background(), req)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrRefreshFailed)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.Status)
	assert.True(t, req.Retried())

	assert.Equal(t, 1, h.srv.Calls(http.MethodPost, refreshPattern))
	assert.Equal(t, 2, h.srv.Calls(http.MethodGet, profilePath))
}

func TestDo_RotatedRefreshTokenIsUsedNextTime(t *testing.T) {
	h := newHarness(t, "/chat", Options{})
	first := h.login(t)
	ctx := context.Background()

	h.srv.ExpireAccessTokens()
	require.NoError(t, h.client.Get(ctx, profilePath, nil, nil))
	rotated, err := h.store.Get(ctx)
	require.NoError(t, err)

	h.srv.ExpireAccessTokens()
	require.NoError(t, h.client.Get(ctx, profilePath, nil, nil))

	assert.Equal(t, []string{first.Refresh, rotated.Refresh}, h.srv.RefreshTokensUsed())
	assert.Equal(t, 2, h.client.Coordinator().Cycles())
}

func TestDo_IncompleteRefreshAnswerFails(t *testing.T) {
	h := newHarness(t, "/profile", Options{})
	h.login(t)
	h.srv.ExpireAccessTokens()
	h.srv.IncompleteRefresh(true)

	err := h.client.Get(context.Background(), profilePath, nil, nil)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, ErrIncompleteTokens)
}

func TestDo_NoRefreshTokenStored(t *testing.T) {
	h := newHarness(t, "/chat", Options{})
	h.srv.AddUser(testEmail, testPassword, true)

	err := h.client.Get(context.Background(), profilePath, nil, nil)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, ErrNoRefreshToken)
	assert.Zero(t, h.srv.Calls(http.MethodPost, refreshPattern))
	assert.EqualValues(t, 1, h.navigations.Load())
}

func TestDo_RefreshTimeout(t *testing.T) {
	h := newHarness(t, "/chat", Options{Timeout: 2 * time.Second, RefreshTimeout: 50 * time.Millisecond})
	h.login(t)
	h.srv.ExpireAccessTokens()
	t.Cleanup(h.srv.HoldRefresh())

	start := time.Now()
	err := h.client.Get(context.Background(), profilePath, nil, nil)
	assert.ErrorIs(t, err, ErrRefreshFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestDo_WaiterContextCancelled(t *testing.T) {
	h := newHarness(t, "/chat", Options{})
	h.login(t)
	h.srv.ExpireAccessTokens()
	release := h.srv.HoldRefresh()
	t.Cleanup(release)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.client.Get(ctx, profilePath, nil, nil) }()

	require.Eventually(t, func() bool {
		return h.client.Coordinator().State() == StateRefreshing
	}, 5*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("waiter did not give up")
	}

	// the detached refresh still completes for everybody else
	release()
	require.Eventually(t, func() bool {
		return h.client.Coordinator().State() == StateIdle
	}, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, h.srv.CallsWithStatus(http.MethodPost, refreshPattern, http.StatusOK))
	require.NoError(t, h.client.Get(context.Background(), profilePath, nil, nil))
}

func TestDo_APIErrorCarriesRequestID(t *testing.T) {
	h := newHarness(t, "/login", Options{})
	h.srv.AddUser(testEmail, testPassword, true)

	err := h.client.PostJSON(context.Background(), "/api/users/login/",
		map[string]string{"email": testEmail, "password": "wrong"}, nil)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.Equal(t, "invalid_credentials", apiErr.Code)
	assert.Equal(t, h.lastRequest(t).RequestID, apiErr.RequestID)
}

func TestPatchMultipart_ReplayedAfterRefresh(t *testing.T) {
	h := newHarness(t, "/profile", Options{})
	h.login(t)
	h.srv.ExpireAccessTokens()

	var u models.User
	err := h.client.PatchMultipart(context.Background(), profilePath,
		map[string]string{"name": "Ann"},
		[]FilePart{{Field: "profile_image", FileName: "me.png", Content: []byte("png")}},
		&u)
	require.NoError(t, err)

	assert.Equal(t, "Ann", u.Name)
	assert.Equal(t, "/media/profile_images/me.png", u.ProfileImage)
	assert.Contains(t, h.lastRequest(t).ContentType, "multipart/form-data")
	assert.Equal(t, 2, h.srv.Calls(http.MethodPatch, profilePath))
}

func TestDelete_NoContent(t *testing.T) {
	h := newHarness(t, "/chat", Options{})
	h.login(t)

	var started struct {
		SessionID models.SessionID `json:"session_id"`
	}
	ctx := context.Background()
	require.NoError(t, h.client.PostJSON(ctx, "/api/chatbot/start/", map[string]any{"message": "hi"}, &started))
	require.NotEmpty(t, started.SessionID)

	require.NoError(t, h.client.Delete(ctx, "/api/chatbot/history/"+started.SessionID.String()+"/"))
	err := h.client.Delete(ctx, "/api/chatbot/history/"+started.SessionID.String()+"/")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestIsTransient(t *testing.T) {
	assert.True(t, IsTransient(&APIError{Status: http.StatusServiceUnavailable}))
	assert.False(t, IsTransient(&APIError{Status: http.StatusBadRequest}))
	assert.True(t, IsTransient(errors.Join(errors.New("x"), ErrUnavailable)))
}
