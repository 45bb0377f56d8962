// internal/app/features/accounts/routes.go
package accounts

import (
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the account endpoints under the base path (typically
// "/accounts" from bootstrap).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.LoadSessionUser)

	r.Post("/register", h.HandleRegister)
	r.Post("/login", h.HandleLogin)
	r.Post("/logout", h.HandleLogout)

	r.Group(func(pr chi.Router) {
		pr.Use(auth.RequireSignedIn)
		pr.Get("/me", h.ServeMe)
		pr.Put("/me", h.HandleUpdateMe)
		pr.Put("/me/password", h.HandleChangePassword)
	})

	return r
}
