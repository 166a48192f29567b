package client

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dmitrijs2005/innerwell/internal/client/models"
	"github.com/dmitrijs2005/innerwell/internal/common"
	"github.com/dmitrijs2005/innerwell/internal/logging"
)

// State of the refresh state machine.
type State int

const (
	StateIdle State = iota
	StateRefreshing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateRefreshing:
		return "refreshing"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

type outcome struct {
	token string
	err   error
}

// Coordinator guarantees that at most one refresh call is in flight. Every
// caller that asks for a new token while a cycle runs is queued and receives
// that cycle's single outcome.
//
// Transitions:
//
//	Idle        --begin-->  Refreshing   (caller becomes leader, cycle starts)
//	Refreshing  --begin-->  Refreshing   (caller is queued)
//	Refreshing  --finish--> Idle         (queue drained with one outcome)
type Coordinator struct {
	mu      sync.Mutex
	state   State
	pending []chan outcome
	cycles  int

	refresh   func(ctx context.Context) (string, error)
	onFailure func(ctx context.Context)
	timeout   time.Duration
	logger    logging.Logger
}

// NewCoordinator builds a coordinator around refresh, which must obtain and
// persist a new token pair and return the access token. onFailure runs once
// per failed cycle before waiters are released.
func NewCoordinator(
	refresh func(ctx context.Context) (string, error),
	onFailure func(ctx context.Context),
	timeout time.Duration,
	logger logging.Logger,
) *Coordinator {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Coordinator{
		refresh:   refresh,
		onFailure: onFailure,
		timeout:   timeout,
		logger:    logger.With("component", "refresh"),
	}
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Cycles returns how many refresh cycles were started.
func (c *Coordinator) Cycles() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cycles
}

// Await returns a fresh access token, starting a cycle when none is running.
// The cycle itself is detached from ctx: a caller giving up stops waiting
// but does not cancel the refresh for everybody else.
func (c *Coordinator) Await(ctx context.Context) (string, error) {
	ch, leader := c.begin()
	if leader {
		go c.run(context.WithoutCancel(ctx))
	}

	select {
	case o := <-ch:
		return o.token, o.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// begin enqueues a waiter and reports whether it opened a new cycle.
func (c *Coordinator) begin() (chan outcome, bool) {
	ch := make(chan outcome, 1)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.pending = append(c.pending, ch)
	if c.state == StateRefreshing {
		return ch, false
	}
	c.state = StateRefreshing
	c.cycles++
	return ch, true
}

// finish resolves every waiter with o and returns to Idle.
func (c *Coordinator) finish(o outcome) int {
	c.mu.Lock()
	pending := c.pending
	c.pending = nil
	c.state = StateIdle
	c.mu.Unlock()

	for _, ch := range pending {
		ch <- o
	}
	return len(pending)
}

func (c *Coordinator) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	token, err := c.refresh(ctx)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrRefreshFailed, err)
		if c.onFailure != nil {
			// the cycle's deadline may be what failed it
			c.onFailure(context.WithoutCancel(ctx))
		}
		n := c.finish(outcome{err: err})
		c.logger.Warn(ctx, "token refresh failed", "waiters", n, "dur", time.Since(start), "error", err)
		return
	}

	n := c.finish(outcome{token: token})
	c.logger.Info(ctx, "token refreshed", "waiters", n, "dur", time.Since(start))
}

// refreshTokens exchanges the stored refresh token for a new pair through
// the bare transport, so neither the bearer header nor the 401 handling
// applies to it.
func (c *Client) refreshTokens(ctx context.Context) (string, error) {
	refresh, err := c.tokens.RefreshToken(ctx)
	if err != nil {
		return "", fmt.Errorf("read refresh token: %w", err)
	}
	if refresh == "" {
		return "", ErrNoRefreshToken
	}

	req, err := NewJSONRequest(http.MethodPost, refreshPath, map[string]string{"refresh": refresh})
	if err != nil {
		return "", err
	}

	resp, err := c.send(ctx, req, "")
	if err != nil {
		return "", err
	}
	if err := c.checkStatus(resp); err != nil {
		return "", err
	}

	var pair models.Tokens
	if err := resp.Decode(&pair); err != nil {
		return "", err
	}
	if !pair.Complete() {
		return "", ErrIncompleteTokens
	}

	if err := c.tokens.Set(ctx, pair.Access, pair.Refresh); err != nil {
		return "", fmt.Errorf("store rotated tokens: %w", err)
	}
	return pair.Access, nil
}

// endSession tears the local session down after a failed refresh, but only
// when the user is inside the authenticated area. Public pages tolerate
// anonymous use and are left alone.
func (c *Client) endSession(ctx context.Context) {
	if c.router == nil {
		return
	}
	path := c.router.CurrentPath()
	if !IsProtectedRoute(path) {
		return
	}

	if err := c.tokens.Remove(ctx); err != nil {
		c.logger.Error(ctx, "failed to remove tokens", "error", err)
	}
	c.notifySessionEnded()

	c.logger.Info(ctx, "session ended", "from", path)
	c.router.Navigate(common.RouteLogin)
}
