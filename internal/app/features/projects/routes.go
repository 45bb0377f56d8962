// internal/app/features/projects/routes.go
package projects

import (
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/go-chi/chi/v5"
)

// Routes mounts the project endpoints under the base path (typically
// "/projects" from bootstrap).
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Use(auth.LoadSessionUser)

	r.Get("/", h.ServeList)
	r.Post("/", h.HandleCreate)
	r.Get("/invitations", h.ServeMyInvitations)

	r.Get("/groups", h.ServeGroups)
	r.Post("/groups", h.HandleCreateGroup)
	r.Put("/groups/{groupID}", h.HandleRenameGroup)
	r.Delete("/groups/{groupID}", h.HandleDeleteGroup)

	r.Route("/{projectID}", func(pr chi.Router) {
		pr.Get("/", h.ServeView)
		pr.Put("/", h.HandleUpdate)
		pr.Delete("/", h.HandleDelete)
		pr.Put("/state", h.HandleSaveState)
		pr.Post("/fork", h.HandleFork)
		pr.Post("/publish", h.HandlePublish)
		pr.Delete("/publish", h.HandleUnpublish)

		pr.Get("/collaborators", h.ServeCollaborators)
		pr.Put("/collaborators/{userID}", h.HandleUpdateCollaborator)
		pr.Delete("/collaborators/{userID}", h.HandleRemoveCollaborator)

		pr.Get("/invitations", h.ServeInvitations)
		pr.Post("/invitations", h.HandleInvite)
		pr.Post("/invitations/{invitationID}/accept", h.HandleAcceptInvitation)
		pr.Delete("/invitations/{invitationID}", h.HandleDeleteInvitation)

		pr.Get("/orgs", h.ServeShares)
		pr.Put("/orgs/{orgID}", h.HandleShare)
		pr.Delete("/orgs/{orgID}", h.HandleUnshare)
	})

	return r
}
