// internal/app/features/organizations/invitations.go
package organizations

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/blockhub/internal/app/policy/access"
	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	invitationstore "github.com/dalemusser/blockhub/internal/app/store/invitations"
	memberstore "github.com/dalemusser/blockhub/internal/app/store/members"
	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/dalemusser/blockhub/internal/app/system/httpjson"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

func (h *Handler) invitationsJSON(ctx context.Context, invs []models.OrganizationInvitation) ([]invitationResponse, error) {
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
			OrgID:      inv.OrgID.Hex(),
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

// HandleInvite invites a user by username. Requires invite, and the
// offered level may not exceed the caller's own standing.
// POST /orgs/{orgID}/invitations
func (h *Handler) HandleInvite(w http.ResponseWriter, r *http.Request) {
	org, uid, ok := h.requireOrgLevel(w, r, permissions.OrgInvite)
	if !ok {
		return
	}
	var req inviteRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !permissions.OrgScale.Valid(permissions.Level(req.Permission)) {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "invalid permission %q", req.Permission))
		return
	}
	if !h.callerOutranks(r, org, uid, permissions.Level(req.Permission)) {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Forbidden, "cannot grant a level above your own"))
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
	inv, err := h.Invitations.Create(r.Context(), org.ID, invitee, inviter, permissions.Level(req.Permission))
	if err != nil {
		switch {
		case errors.Is(err, invitationstore.ErrDuplicateInvitation),
			errors.Is(err, invitationstore.ErrAlreadyMember),
			errors.Is(err, invitationstore.ErrBannedInvitee):
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
		default:
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		}
		return
	}
	httpjson.Write(w, http.StatusCreated, invitationResponse{
		ID:         inv.ID.Hex(),
		OrgID:      inv.OrgID.Hex(),
		Invitee:    invitee.Public(),
		Inviter:    inviter.Public(),
		Permission: inv.Permission,
		InvitedAt:  inv.InvitedAt,
	})
}

// ServeInvitations lists an organization's pending invitations.
// Requires invite.
// GET /orgs/{orgID}/invitations
func (h *Handler) ServeInvitations(w http.ResponseWriter, r *http.Request) {
	org, _, ok := h.requireOrgLevel(w, r, permissions.OrgInvite)
	if !ok {
		return
	}
	invs, err := h.Invitations.ListForOrg(r.Context(), org.ID)
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

// ServeMyInvitations lists the caller's pending invitations across all
// organizations.
// GET /orgs/invitations
func (h *Handler) ServeMyInvitations(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	invs, err := h.Invitations.ListForInvitee(r.Context(), uid)
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
// it belongs to the routed organization.
func (h *Handler) invitationFromURL(r *http.Request, orgID primitive.ObjectID) (models.OrganizationInvitation, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "invitationID"))
	if err != nil {
		return models.OrganizationInvitation{}, mongo.ErrNoDocuments
	}
	inv, err := h.Invitations.GetByID(r.Context(), id)
	if err != nil {
		return models.OrganizationInvitation{}, err
	}
	if inv.OrgID != orgID {
		return models.OrganizationInvitation{}, mongo.ErrNoDocuments
	}
	return inv, nil
}

// HandleAcceptInvitation turns the caller's invitation into a
// membership at the invited level.
// POST /orgs/{orgID}/invitations/{invitationID}/accept
func (h *Handler) HandleAcceptInvitation(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	org, err := h.orgFromURL(r)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	inv, err := h.invitationFromURL(r, org.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	actor, err := h.Users.GetByID(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	m, err := h.Invitations.Accept(r.Context(), inv.ID, actor)
	if err != nil {
		switch {
		case errors.Is(err, invitationstore.ErrNotInvitee):
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Forbidden, "%s", err))
		case errors.Is(err, memberstore.ErrBannedMember), errors.Is(err, memberstore.ErrDuplicateMembership):
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
		default:
			httpjson.WriteError(w, h.Log, err)
		}
		return
	}
	resp := memberResponse{
		User:       actor.Public(),
		Permission: m.Permission,
		CreatedAt:  m.CreatedAt,
	}
	if m.InvitedBy != nil {
		resp.InvitedBy = m.InvitedBy.Hex()
	}
	httpjson.Write(w, http.StatusCreated, resp)
}

// HandleDeleteInvitation withdraws an invitation. The invitee may
// decline their own; otherwise manage is required.
// DELETE /orgs/{orgID}/invitations/{invitationID}
func (h *Handler) HandleDeleteInvitation(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	org, err := h.orgFromURL(r)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	inv, err := h.invitationFromURL(r, org.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	// The invitee and the inviter count as authorized regardless of
	// standing.
	ok, err := access.OrgHasPermission(r.Context(), h.DB, org.ID, uid, permissions.OrgManage,
		access.WithOverrides(inv.InviteeID, inv.InviterID))
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !ok {
		httpjson.Forbidden(w)
		return
	}
	if err := h.Invitations.Delete(r.Context(), inv.ID); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
