// internal/app/features/projects/groups.go
package projects

import (
	"net/http"

	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/dalemusser/blockhub/internal/app/system/httpjson"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Groups are owner-private folders, so there are no shared-access
// checks here: everything operates on the caller's own groups.

// ServeGroups lists the caller's groups.
// GET /projects/groups
func (h *Handler) ServeGroups(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	groups, err := h.Projects.ListGroups(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	out := make([]groupResponse, 0, len(groups))
	for _, g := range groups {
		out = append(out, groupJSON(g))
	}
	httpjson.Write(w, http.StatusOK, out)
}

type groupRequest struct {
	Name string `json:"name"`
}

// HandleCreateGroup creates a group owned by the caller.
// POST /projects/groups
func (h *Handler) HandleCreateGroup(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	var req groupRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	g, err := h.Projects.CreateGroup(r.Context(), uid, req.Name)
	if err != nil {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	httpjson.Write(w, http.StatusCreated, groupJSON(g))
}

// groupFromURL loads the routed group and checks the caller owns it.
func (h *Handler) groupFromURL(r *http.Request, uid primitive.ObjectID) (models.ProjectGroup, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "groupID"))
	if err != nil {
		return models.ProjectGroup{}, mongo.ErrNoDocuments
	}
	g, err := h.Projects.GetGroup(r.Context(), id)
	if err != nil {
		return models.ProjectGroup{}, err
	}
	if g.OwnerID != uid {
		return models.ProjectGroup{}, mongo.ErrNoDocuments
	}
	return g, nil
}

// HandleRenameGroup renames one of the caller's groups.
// PUT /projects/groups/{groupID}
func (h *Handler) HandleRenameGroup(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	g, err := h.groupFromURL(r, uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	var req groupRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if err := h.Projects.RenameGroup(r.Context(), g.ID, req.Name); err != nil {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	updated, err := h.Projects.GetGroup(r.Context(), g.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, groupJSON(updated))
}

// HandleDeleteGroup deletes one of the caller's groups. Projects in the
// group survive with their group reference cleared.
// DELETE /projects/groups/{groupID}
func (h *Handler) HandleDeleteGroup(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return
	}
	g, err := h.groupFromURL(r, uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if err := h.Projects.DeleteGroup(r.Context(), g.ID); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
