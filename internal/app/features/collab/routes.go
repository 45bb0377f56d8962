// internal/app/features/collab/routes.go
package collab

import (
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the realtime session endpoint under the base path
// (typically "/collab" from bootstrap). Admission beyond the session
// cookie is the handler's own permission check.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.LoadSessionUser)
	r.Get("/projects/{projectID}", h.ServeSession)
	return r
}
