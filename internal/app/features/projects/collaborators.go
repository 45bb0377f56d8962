// internal/app/features/projects/collaborators.go
package projects

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/blockhub/internal/app/policy/access"
	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	collaboratorstore "github.com/dalemusser/blockhub/internal/app/store/collaborators"
	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/dalemusser/blockhub/internal/app/system/httpjson"
	"github.com/dalemusser/blockhub/internal/app/system/search"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

var collaboratorSearch = search.Engine{
	SearchFields: []search.Field{
		{Path: "collab_username", CI: true},
		{Path: "collab_name", CI: true},
	},
	OrderFields: []search.Field{
		{Alias: "username", Path: "collab_username", CI: true},
		{Alias: "joined_at", Path: "created_at"},
	},
}

// profilesByID loads the public profiles behind a set of records.
func (h *Handler) profilesByID(ctx context.Context, ids []primitive.ObjectID) (map[primitive.ObjectID]models.PublicUser, error) {
	users, err := h.Users.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make(map[primitive.ObjectID]models.PublicUser, len(users))
	for _, u := range users {
		out[u.ID] = u.Public()
	}
	return out, nil
}

// ServeCollaborators lists a project's collaborators. Requires view.
// GET /projects/{projectID}/collaborators
func (h *Handler) ServeCollaborators(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.requireProjectLevel(w, r, permissions.ProjectView)
	if !ok {
		return
	}
	filter := bson.M{}
	if q := query.Search(r, "search"); q != "" {
		filter = collaboratorSearch.Filter(q)
	}
	collabs, err := h.Collaborators.ListByProject(r.Context(), p.ID, filter)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(collabs))
	for _, c := range collabs {
		ids = append(ids, c.CollaboratorID)
	}
	profiles, err := h.profilesByID(r.Context(), ids)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	out := make([]collaboratorResponse, 0, len(collabs))
	for _, c := range collabs {
		out = append(out, collaboratorResponse{
			User:       profiles[c.CollaboratorID],
			Permission: c.Permission,
			CreatedAt:  c.CreatedAt,
		})
	}
	httpjson.Write(w, http.StatusOK, out)
}

type collaboratorUpdateRequest struct {
	Permission string `json:"permission"`
}

// HandleUpdateCollaborator changes a collaborator's level. Requires
// admin.
// PUT /projects/{projectID}/collaborators/{userID}
func (h *Handler) HandleUpdateCollaborator(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.requireProjectLevel(w, r, permissions.ProjectAdmin)
	if !ok {
		return
	}
	target, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpjson.NotFound(w)
		return
	}
	var req collaboratorUpdateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if err := h.Collaborators.UpdatePermission(r.Context(), p.ID, target, permissions.Level(req.Permission)); err != nil {
		if errors.Is(err, collaboratorstore.ErrNoCollaborator) {
			httpjson.NotFound(w)
			return
		}
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveCollaborator drops a collaborator. Admin may remove
// anyone; a collaborator may remove themselves.
// DELETE /projects/{projectID}/collaborators/{userID}
func (h *Handler) HandleRemoveCollaborator(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	p, err := h.projectFromURL(r)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	target, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpjson.NotFound(w)
		return
	}
	ok, err := access.ProjectHasPermission(r.Context(), h.DB, p.ID, uid, permissions.ProjectAdmin,
		access.WithOverrides(target))
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !ok {
		httpjson.Forbidden(w)
		return
	}
	if err := h.Collaborators.Remove(r.Context(), p.ID, target); err != nil {
		if errors.Is(err, collaboratorstore.ErrNoCollaborator) {
			httpjson.NotFound(w)
			return
		}
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) invitationsJSON(ctx context.Context, invs []models.ProjectInvitation) ([]invitationResponse, error) {
	ids := make([]primitive.ObjectID, 0, len(invs)*2)
	for _, inv := range invs {
		ids = append(ids, inv.InviteeID, inv.InviterID)
	}
	profiles, err := h.profilesByID(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]invitationResponse, 0, len(invs))
	for _, inv := range invs {
		out = append(out, invitationResponse{
			ID:         inv.ID.Hex(),
			ProjectID:  inv.ProjectID.Hex(),
			Invitee:    profiles[inv.InviteeID],
			Inviter:    profiles[inv.InviterID],
			Permission: inv.Permission,
			InvitedAt:  inv.InvitedAt,
		})
	}
	return out, nil
}

type inviteRequest struct {
	Username   string `json:"username"`
	Permission string `json:"permission"`
}

// HandleInvite invites a collaborator by username. Requires invite.
// POST /projects/{projectID}/invitations
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	p, uid, ok := h.requireProjectLevel(w, r, permissions.ProjectInvite)
	if !ok {
		return
	}
	var req inviteRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !permissions.ProjectScale.Valid(permissions.Level(req.Permission)) {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "invalid permission %q", req.Permission))
		return
	}
	invitee, err := h.Users.GetByUsername(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "no user named %q", req.Username))
			return
		}
		httpjson.WriteError(w, h.Log, err)
		return
	}
	inviter, err := h.Users.GetByID(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	inv, err := h.Collaborators.Invite(r.Context(), p.ID, invitee, inviter, permissions.Level(req.Permission))
	if err != nil {
		switch {
		case errors.Is(err, collaboratorstore.ErrDuplicateInvitation),
			errors.Is(err, collaboratorstore.ErrDuplicateCollaborator):
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
		default:
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		}
		return
	}
	httpjson.Write(w, http.StatusCreated, invitationResponse{
		ID:         inv.ID.Hex(),
		ProjectID:  inv.ProjectID.Hex(),
		Invitee:    invitee.Public(),
		Inviter:    inviter.Public(),
		Permission: inv.Permission,
		InvitedAt:  inv.InvitedAt,
	})
}

// ServeInvitations lists a project's pending invitations. Requires
// invite.
// GET /projects/{projectID}/invitations
func (h *Handler) ServeInvitations(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.requireProjectLevel(w, r, permissions.ProjectInvite)
	if !ok {
		return
	}
	invs, err := h.Collaborators.ListInvitationsForProject(r.Context(), p.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	out, err := h.invitationsJSON(r.Context(), invs)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

// ServeMyInvitations lists the caller's pending project invitations.
// GET /projects/invitations
func (h *Handler) ServeMyInvitations(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	invs, err := h.Collaborators.ListInvitationsForInvitee(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	out, err := h.invitationsJSON(r.Context(), invs)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, out)
}

// invitationFromURL loads the invitation named in the route and checks
// it belongs to the routed project.
func (h *Handler) invitationFromURL(r *http.Request, projectID primitive.ObjectID) (models.ProjectInvitation, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "invitationID"))
	if err != nil {
		return models.ProjectInvitation{}, mongo.ErrNoDocuments
	}
	inv, err := h.Collaborators.GetInvitation(r.Context(), id)
	if err != nil {
		return models.ProjectInvitation{}, err
	}
	if inv.ProjectID != projectID {
		return models.ProjectInvitation{}, mongo.ErrNoDocuments
	}
	return inv, nil
}

// HandleAcceptInvitation turns the caller's invitation into a
// collaborator record at the invited level.
// POST /projects/{projectID}/invitations/{invitationID}/accept
func (h *Handler) HandleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	p, err := h.projectFromURL(r)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	inv, err := h.invitationFromURL(r, p.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	actor, err := h.Users.GetByID(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	c, err := h.Collaborators.AcceptInvitation(r.Context(), inv.ID, actor)
	if err != nil {
		switch {
		case errors.Is(err, collaboratorstore.ErrNotInvitee):
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Forbidden, "%s", err))
		case errors.Is(err, collaboratorstore.ErrDuplicateCollaborator):
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
		default:
			httpjson.WriteError(w, h.Log, err)
		}
		return
	}
	httpjson.Write(w, http.StatusCreated, collaboratorResponse{
		User:       actor.Public(),
		Permission: c.Permission,
		CreatedAt:  c.CreatedAt,
	})
}

// HandleDeleteInvitation withdraws an invitation. The invitee or the
// inviter may delete their own; otherwise admin is required.
// DELETE /projects/{projectID}/invitations/{invitationID}
func (h *Handler) HandleDeleteInvitation(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	p, err := h.projectFromURL(r)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	inv, err := h.invitationFromURL(r, p.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	ok, err := access.ProjectHasPermission(r.Context(), h.DB, p.ID, uid, permissions.ProjectAdmin,
		access.WithOverrides(inv.InviteeID, inv.InviterID))
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !ok {
		httpjson.Forbidden(w)
		return
	}
	if err := h.Collaborators.DeleteInvitation(r.Context(), inv.ID); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
