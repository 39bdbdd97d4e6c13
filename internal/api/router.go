package api

import (
	"github.com/gorilla/mux"

	"example.com/schedule/internal/auth"
	"example.com/schedule/internal/observability"
)

// NewRouter builds the service router. Requests are logged and measured
// before authentication so rejected calls are still observed.
func NewRouter(h *Handler, authMiddleware auth.Middleware) *mux.Router {
	router := mux.NewRouter()
	router.Use(observability.Middleware, authMiddleware.Wrap)
	h.RegisterRoutes(router)
	return router
}
