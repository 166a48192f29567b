// Package cli provides the interactive InnerWell command-line client.
//
// NewApp wires the local store, the authenticated HTTP client and the
// services; App.Run restores the previous session and starts a REPL that
// blocks until the user exits. Every command moves the application to the
// route of the screen it stands for (/login, /chat/..., /settings,
// /pricing), so the HTTP client sees the same navigation state the web
// application would.
//
// Key features:
//   - Register / Login / Google sign-in / email verification / password reset
//   - General chat, mindset mantra, internal challenge and journaling sessions
//   - Chat history consent and chat settings
//   - Plans, checkout and subscription verification, reviews
//
// See App, NewApp and runREPL for details.
package cli
