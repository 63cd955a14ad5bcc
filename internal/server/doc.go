// Package server provides HTTP routing, middleware, and the OAuth callback
// endpoint used during account linking.
//
// # Router Infrastructure
//
// The [Router] interface defines HTTP routing with middleware support.
//
// [Middleware] wraps handlers in reverse order (last added executes first), following the standard Go pattern.
//
// The [BasicRouter] implementation uses [http.ServeMux] internally with method filtering.
//
// # OAuth Callback Handler
//
// [CallbackHandler] receives the authorization code redirect and forwards the
// full callback URL to the authorization manager, which validates the CSRF
// state and exchanges the code. The flow outcome is delivered exactly once on
// [CallbackHandler.Result].
//
// It only processes one callback to prevent replay attacks.
//
// # Current Usage
//
// When the user runs the Spotify link command, a temporary HTTP server starts
// on the configured localhost address, handles the callback, and shuts down
// after the flow resolves.
package server
