// internal/app/features/organizations/routes.go
package organizations

import (
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the organization endpoints under the base path
// (typically "/orgs" from bootstrap).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.LoadSessionUser)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/invitations", h.ServeMyInvitations)

	r.Route("/{orgID}", func(or chi.Router) {
		or.Get("/", h.ServeView)
		or.Put("/", h.HandleUpdate)
		or.Delete("/", h.HandleDelete)

		or.Get("/members", h.ServeMembers)
		or.Post("/join", h.HandleJoin)
		or.Post("/leave", h.HandleLeave)
		or.Put("/members/{userID}", h.HandleUpdateMember)
		or.Delete("/members/{userID}", h.HandleRemoveMember)

		or.Get("/invitations", h.ServeInvitations)
		or.Post("/invitations", h.HandleInvite)
		or.Post("/invitations/{invitationID}/accept", h.HandleAcceptInvitation)
		or.Delete("/invitations/{invitationID}", h.HandleDeleteInvitation)

		or.Get("/bans", h.ServeBans)
		or.Put("/bans/{userID}", h.HandleBan)
		or.Delete("/bans/{userID}", h.HandleUnban)
	})

	return r
}
