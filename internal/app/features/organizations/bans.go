// internal/app/features/organizations/bans.go
package organizations

import (
	"errors"
	"net/http"

	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	banstore "github.com/dalemusser/blockhub/internal/app/store/bans"
	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"github.com/dalemusser/blockhub/internal/app/system/httpjson"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ServeBans lists an organization's bans. Requires manage.
// GET /orgs/{orgID}/bans
func (h *Handler) ServeBans(w http.ResponseWriter, r *http.Request) {
	org, _, ok := h.requireOrgLevel(w, r, permissions.OrgManage)
	if !ok {
		return
	}
	bansRecs, err := h.Bans.ListByOrg(r.Context(), org.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	ids := make([]primitive.ObjectID, 0, len(bansRecs))
	for _, b := range bansRecs {
		ids = append(ids, b.UserID)
	}
	profiles, err := h.profilesByID(r.Context(), ids)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	out := make([]banResponse, 0, len(bansRecs))
	for _, b := range bansRecs {
		resp := banResponse{
			User:     profiles[b.UserID],
			Reason:   b.Reason,
			BannedAt: b.BannedAt,
		}
		if b.BannedBy != nil {
			resp.BannedBy = b.BannedBy.Hex()
		}
		out = append(out, resp)
	}
	httpjson.Write(w, http.StatusOK, out)
}

type banRequest struct {
	Reason string `json:"reason"`
}

// HandleBan bans a user from an organization. Requires manage. An
// existing membership is left in place; the ban overrides it while it
// stands and the member regains their standing if it is lifted.
// PUT /orgs/{orgID}/bans/{userID}
func (h *Handler) HandleBan(w http.ResponseWriter, r *http.Request) {
	org, uid, ok := h.requireOrgLevel(w, r, permissions.OrgManage)
	if !ok {
		return
	}
	target, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpjson.NotFound(w)
		return
	}
	if target == org.OwnerID {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Forbidden, "the owner cannot be banned"))
		return
	}
	var req banRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	ban, err := h.Bans.Add(r.Context(), org.ID, target, &uid, req.Reason)
	if err != nil {
		if errors.Is(err, banstore.ErrDuplicateBan) {
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
			return
		}
		httpjson.WriteError(w, h.Log, err)
		return
	}
	banned, err := h.Users.GetByID(r.Context(), target)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	resp := banResponse{
		User:     banned.Public(),
		Reason:   ban.Reason,
		BannedAt: ban.BannedAt,
	}
	if ban.BannedBy != nil {
		resp.BannedBy = ban.BannedBy.Hex()
	}
	httpjson.Write(w, http.StatusCreated, resp)
}

// HandleUnban lifts a ban. Requires manage.
// DELETE /orgs/{orgID}/bans/{userID}
func (h *Handler) HandleUnban(w http.ResponseWriter, r *http.Request) {
	org, _, ok := h.requireOrgLevel(w, r, permissions.OrgManage)
	if !ok {
		return
	}
	target, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpjson.NotFound(w)
		return
	}
	if err := h.Bans.Remove(r.Context(), org.ID, target); err != nil {
		if errors.Is(err, banstore.ErrNoBan) {
			httpjson.NotFound(w)
			return
		}
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
