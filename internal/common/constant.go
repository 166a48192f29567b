// Package common contains constants shared by the client packages: the keys
// of the local key/value store, HTTP header names and application routes.
package common

// Keys of the persistent client-side store.
const (
	StorageKeyAccess         = "access"
	StorageKeyRefresh        = "refresh"
	StorageKeyUser           = "user"
	StorageKeyChatHistory    = "chatHistory"
	StorageKeyChatSession    = "chat-session"
	StorageKeyTokenTimestamp = "tokenTimestamp"

	// Bookkeeping for sealed stores.
	StorageKeySalt     = "store_salt"
	StorageKeyVerifier = "store_verifier"
)

// HTTP header names.
const (
	AuthorizationHeaderName = "Authorization"
	RequestIDHeaderName     = "X-Request-Id"
	BearerPrefix            = "Bearer "
)

// Application routes the navigation state can hold.
const (
	RouteHome     = "/"
	RouteLogin    = "/login"
	RouteRegister = "/register"
	RouteChat     = "/chat"
	RouteSettings = "/settings"
	RouteProfile  = "/profile"
	RoutePricing  = "/pricing"
)
