package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/desertthunder/replay/internal/shared"
)

// CallbackHandler receives the OAuth2 redirect during the authorization code
// flow and forwards the full callback URL to the completion function
// (normally the authorization manager's CompleteAuthorization).
//
// State validation and code exchange happen inside the completion function;
// the handler only delivers the callback and renders a result page. Only the
// first callback is processed.
type CallbackHandler struct {
	complete func(ctx context.Context, callbackURL string) error

	mu          sync.Mutex
	callbackHit bool
	once        sync.Once
	resultChan  chan error
}

// NewCallbackHandler creates a handler that resolves the OAuth flow through
// the given completion function.
func NewCallbackHandler(complete func(ctx context.Context, callbackURL string) error) *CallbackHandler {
	return &CallbackHandler{
		complete:   complete,
		resultChan: make(chan error, 1),
	}
}

// Routes returns the HTTP routes this handler serves.
func (h *CallbackHandler) Routes() []string {
	return []string{"/callback"}
}

// ServeHTTP handles the OAuth callback request.
func (h *CallbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mu.Lock()
	if h.callbackHit {
		h.mu.Unlock()
		http.Error(w, "Callback already processed", http.StatusBadRequest)
		return
	}
	h.callbackHit = true
	h.mu.Unlock()

	err := h.complete(r.Context(), r.URL.String())
	h.send(err)

	switch {
	case err == nil:
		writeResultPage(w, http.StatusOK, "Authorization Successful",
			"You can close this window and return to the terminal.")
	case errors.Is(err, shared.ErrAccessDenied):
		writeResultPage(w, http.StatusOK, "Authorization Declined",
			"Access was denied. You can close this window.")
	case errors.Is(err, shared.ErrStateMismatch):
		http.Error(w, "Invalid state parameter", http.StatusBadRequest)
	default:
		http.Error(w, "Authorization failed", http.StatusInternalServerError)
	}
}

// send delivers the flow result exactly once and closes the channel.
func (h *CallbackHandler) send(err error) {
	h.once.Do(func() {
		h.resultChan <- err
		close(h.resultChan)
	})
}

// Result returns the channel carrying the flow outcome.
//
// The channel receives exactly one value and is then closed. A nil value
// means the authorization completed and the credential was installed.
func (h *CallbackHandler) Result() <-chan error {
	return h.resultChan
}

func writeResultPage(w http.ResponseWriter, status int, title, body string) {
	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(status)
	fmt.Fprintf(w, `
<!DOCTYPE html>
<html>
<head>
    <title>%s</title>
    <style>
        body { font-family: -apple-system, BlinkMacSystemFont, "Segoe UI", Roboto, sans-serif;
               display: flex; align-items: center; justify-content: center; height: 100vh;
               margin: 0; background: #f5f5f5; }
        .container { text-align: center; background: white; padding: 2rem;
                     border-radius: 8px; box-shadow: 0 2px 4px rgba(0,0,0,0.1); }
        h1 { color: #1DB954; margin: 0 0 1rem 0; }
        p { color: #666; margin: 0; }
    </style>
</head>
<body>
    <div class="container">
        <h1>%s</h1>
        <p>%s</p>
    </div>
</body>
</html>
`, title, title, body)
}
