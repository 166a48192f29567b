package client

import (
	"strings"
	"sync"

	"github.com/dmitrijs2005/innerwell/internal/common"
)

// Router exposes the application's current location and lets the client
// move it, e.g. to the login screen after the session ends.
type Router interface {
	CurrentPath() string
	Navigate(path string)
}

var publicRoutes = map[string]struct{}{
	common.RouteHome:     {},
	common.RouteLogin:    {},
	common.RouteRegister: {},
}

var protectedPrefixes = []string{
	common.RouteChat,
	common.RouteSettings,
	common.RouteProfile,
}

// IsPublicRoute reports whether requests issued from path must not carry a
// bearer token.
func IsPublicRoute(path string) bool {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	_, ok := publicRoutes[path]
	return ok
}

// IsProtectedRoute reports whether path belongs to the authenticated area,
// where a failed refresh ends the session.
func IsProtectedRoute(path string) bool {
	for _, p := range protectedPrefixes {
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Navigator is an in-memory Router. Observers registered with OnNavigate run
// synchronously after each change.
type Navigator struct {
	mu        sync.RWMutex
	path      string
	observers []func(from, to string)
}

func NewNavigator(start string) *Navigator {
	if start == "" {
		start = common.RouteHome
	}
	return &Navigator{path: start}
}

func (n *Navigator) CurrentPath() string {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.path
}

func (n *Navigator) Navigate(path string) {
	n.mu.Lock()
	from := n.path
	n.path = path
	observers := append([]func(string, string){}, n.observers...)
	n.mu.Unlock()

	for _, fn := range observers {
		fn(from, path)
	}
}

func (n *Navigator) OnNavigate(fn func(from, to string)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.observers = append(n.observers, fn)
}
