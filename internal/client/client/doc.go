// Package client is the authenticated HTTP layer of the InnerWell CLI.
//
// # Overview
//
// The package provides:
//  1. Client, the single entry point for backend calls. It is configured
//     once with a base URL, JSON headers and a request timeout, and tags
//     every request with an X-Request-Id.
//  2. The request interceptor (see authorize): before every attempt the
//     stored access token is attached as a bearer credential unless the
//     current route is public ("/", "/login", "/register"). The route is read
//     per request, not once at start-up.
//  3. The refresh Coordinator, a two-state machine (Idle, Refreshing) that
//     turns concurrent 401s into a single POST /api/users/token/refresh/
//     call. Every request queued during a cycle gets that cycle's outcome;
//     replayed requests are marked so a second 401 is not retried. When a
//     cycle fails on a protected route (/chat, /settings, /profile) the
//     stored tokens are removed, session listeners are notified and the
//     router is sent to /login once.
//  4. Local persistence bootstrap (InitDatabase) wiring SQLite and the
//     embedded goose migrations.
//
// # Error Handling
//
// Non-2xx answers are returned as *APIError. errors.Is maps them onto the
// sentinels: 401 → ErrUnauthorized, 402 (or 403 with code
// "subscription_required") → ErrSubscriptionRequired, 404 → ErrNotFound,
// 5xx → ErrUnavailable. Transport failures wrap ErrUnavailable. A failed
// refresh wraps ErrRefreshFailed.
//
// Concurrency & Contexts
//
// Client and Coordinator are safe for concurrent use. The refresh call runs
// under its own, shorter timeout and is detached from the caller that
// started it; a waiter whose context ends stops waiting with ctx.Err().
//
// See Also
//
//   - Entry point: Client, New, Options
//   - Refresh:     Coordinator, State
//   - Routing:     Router, Navigator, IsPublicRoute, IsProtectedRoute
//   - DB helpers:  InitDatabase
package client
