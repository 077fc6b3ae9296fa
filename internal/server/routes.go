// Package server wires HTTP handlers into a ServeMux for the friendchat
// application via routing helpers.
package server

import "net/http"

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: the health check and the per-friend chat endpoint, the latter
// wrapped by the authentication gatekeeper. The trailing-slash variant of
// the chat route is accepted as well.
func SetupRoutes(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)

	chat := h.authenticate(http.HandlerFunc(h.ServeWS))
	mux.Handle("/ws/friends/chat/{friendID}", chat)
	mux.Handle("/ws/friends/chat/{friendID}/{$}", chat)
	return mux
}
