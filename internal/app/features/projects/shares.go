// internal/app/features/projects/shares.go
package projects

import (
	"errors"
	"net/http"

	"github.com/dalemusser/blockhub/internal/app/policy/access"
	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	projectstore "github.com/dalemusser/blockhub/internal/app/store/projects"
	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"github.com/dalemusser/blockhub/internal/app/system/httpjson"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type shareRequest struct {
	Permission string `json:"permission"`
}

// HandleShare links the project to an organization at a project-scale
// level, granting every non-banned member of that organization the
// link's level. Requires project admin plus membership in the target
// organization.
// PUT /projects/{projectID}/orgs/{orgID}
func (h *Handler) HandleShare(w http.ResponseWriter, r *http.Request) {
	p, uid, ok := h.requireProjectLevel(w, r, permissions.ProjectAdmin)
	if !ok {
		return
	}
	orgID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "orgID"))
	if err != nil {
		httpjson.NotFound(w)
		return
	}
	member, err := access.OrgHasPermission(r.Context(), h.DB, orgID, uid, permissions.OrgView)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !member {
		httpjson.NotFound(w)
		return
	}
	var req shareRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	link, err := h.Projects.Share(r.Context(), p.ID, orgID, permissions.Level(req.Permission))
	if err != nil {
		if errors.Is(err, projectstore.ErrDuplicateShare) {
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
			return
		}
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	httpjson.Write(w, http.StatusCreated, shareResponse{
		OrgID:      link.OrgID.Hex(),
		ProjectID:  link.ProjectID.Hex(),
		Permission: link.Permission,
		CreatedAt:  link.CreatedAt,
	})
}

// HandleUnshare removes the organization link. Requires project admin.
// DELETE /projects/{projectID}/orgs/{orgID}
func (h *Handler) HandleUnshare(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.requireProjectLevel(w, r, permissions.ProjectAdmin)
	if !ok {
		return
	}
	orgID, err := primitive.ObjectIDFromHex(chi.URLParam(r, "orgID"))
	if err != nil {
		httpjson.NotFound(w)
		return
	}
	if err := h.Projects.Unshare(r.Context(), p.ID, orgID); err != nil {
		if errors.Is(err, projectstore.ErrNotShared) {
			httpjson.NotFound(w)
			return
		}
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ServeShares lists the organizations a project is shared with.
// Requires admin; the share list is a management surface.
// GET /projects/{projectID}/orgs
func (h *Handler) ServeShares(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.requireProjectLevel(w, r, permissions.ProjectAdmin)
	if !ok {
		return
	}
	ids, err := h.Projects.SharedOrgIDs(r.Context(), p.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Hex())
	}
	httpjson.Write(w, http.StatusOK, out)
}
