// internal/app/features/projects/handler.go
package projects

import (
	"errors"
	"net/http"

	"github.com/dalemusser/blockhub/internal/app/policy/access"
	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	collaboratorstore "github.com/dalemusser/blockhub/internal/app/store/collaborators"
	memberstore "github.com/dalemusser/blockhub/internal/app/store/members"
	projectstore "github.com/dalemusser/blockhub/internal/app/store/projects"
	userstore "github.com/dalemusser/blockhub/internal/app/store/users"
	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/dalemusser/blockhub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/blockhub/internal/app/system/httpjson"
	"github.com/dalemusser/blockhub/internal/app/system/search"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// Handler serves the project API: CRUD, state saves, forking,
// publication, groups, collaborators, invitations, and organization
// shares.
type Handler struct {
	DB            *mongo.Database
	Projects      *projectstore.Store
	Collaborators *collaboratorstore.Store
	Members       *memberstore.Store
	Users         *userstore.Store
	Log           *zap.Logger
}

func NewHandler(db *mongo.Database, log *zap.Logger) *Handler {
	return &Handler{
		DB:            db,
		Projects:      projectstore.New(db),
		Collaborators: collaboratorstore.New(db),
		Members:       memberstore.New(db),
		Users:         userstore.New(db),
		Log:           log,
	}
}

// projectSearch powers ?search= and ?ordering= on the project list.
var projectSearch = search.Engine{
	SearchFields: []search.Field{
		{Path: "name", CI: true},
		{Path: "description"},
	},
	OrderFields: []search.Field{
		{Alias: "name", Path: "name", CI: true},
		{Alias: "created_at", Path: "created_at"},
		{Alias: "updated_at", Path: "updated_at"},
	},
}

// projectFromURL loads the project named in the route. A bad or unknown
// ID is NotFound either way.
func (h *Handler) projectFromURL(r *http.Request) (models.Project, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "projectID"))
	if err != nil {
		return models.Project{}, mongo.ErrNoDocuments
	}
	return h.Projects.GetByID(r.Context(), id)
}

// requireProjectLevel loads the project and checks the signed-in user
// holds the level. Writes the response itself on failure. Insufficient
// standing reads as NotFound so private projects stay invisible.
func (h *Handler) requireProjectLevel(w http.ResponseWriter, r *http.Request, level permissions.Level, opts ...access.Option) (models.Project, primitive.ObjectID, bool) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return models.Project{}, primitive.NilObjectID, false
	}
	p, err := h.projectFromURL(r)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return models.Project{}, primitive.NilObjectID, false
	}
	ok, err := access.ProjectHasPermission(r.Context(), h.DB, p.ID, uid, level, opts...)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return models.Project{}, primitive.NilObjectID, false
	}
	if !ok {
		httpjson.NotFound(w)
		return models.Project{}, primitive.NilObjectID, false
	}
	return p, uid, true
}

// ServeList lists projects visible to the caller: owned, collaborating,
// or published. Supports ?search=, ?ordering=, and the owner,
// is_published, group, and organization filters.
// GET /projects
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)

	visible := []bson.M{{"published_at": bson.M{"$exists": true}}}
	if signedIn {
		visible = append(visible, bson.M{"owner_id": uid})
		collabIDs, err := h.Collaborators.ProjectIDsForUser(r.Context(), uid)
		if err != nil {
			httpjson.WriteError(w, h.Log, err)
			return
		}
		if len(collabIDs) > 0 {
			visible = append(visible, bson.M{"_id": bson.M{"$in": collabIDs}})
		}
	}
	and := []bson.M{{"$or": visible}}

	if q := query.Search(r, "search"); q != "" {
		if sub := projectSearch.Filter(q); len(sub) > 0 {
			and = append(and, sub)
		}
	}
	sub, err := h.listFilters(r, uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	and = append(and, sub...)

	sort, err := projectSearch.Sort(query.Get(r, "ordering"))
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	opts := options.Find().SetLimit(200)
	if len(sort) > 0 {
		opts.SetSort(sort)
	}

	found, err := h.Projects.Find(r.Context(), bson.M{"$and": and}, opts)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	out := make([]projectSummary, 0, len(found))
	for _, p := range found {
		out = append(out, summaryJSON(p))
	}
	httpjson.Write(w, http.StatusOK, out)
}

// listFilters interprets the owner, is_published, group, and
// organization query parameters.
func (h *Handler) listFilters(r *http.Request, uid primitive.ObjectID) ([]bson.M, error) {
	var and []bson.M

	if owner := query.Get(r, "owner"); owner != "" {
		u, err := h.Users.GetByUsername(r.Context(), owner)
		if err != nil {
			if errors.Is(err, mongo.ErrNoDocuments) {
				return nil, apierr.E(apierr.Invalid, "no user named %q", owner)
			}
			return nil, err
		}
		and = append(and, bson.M{"owner_id": u.ID})
	}

	switch query.Get(r, "is_published") {
	case "":
	case "true":
		and = append(and, bson.M{"published_at": bson.M{"$exists": true}})
	case "false":
		and = append(and, bson.M{"published_at": bson.M{"$exists": false}})
	default:
		return nil, apierr.E(apierr.Invalid, "is_published must be true or false")
	}

	if group := query.Get(r, "group"); group != "" {
		id, err := primitive.ObjectIDFromHex(group)
		if err != nil {
			return nil, apierr.E(apierr.Invalid, "bad group id %q", group)
		}
		and = append(and, bson.M{"group_id": id})
	}

	if org := query.Get(r, "organization"); org != "" {
		id, err := primitive.ObjectIDFromHex(org)
		if err != nil {
			return nil, apierr.E(apierr.Invalid, "bad organization id %q", org)
		}
		ok, err := access.OrgHasPermission(r.Context(), h.DB, id, uid, permissions.OrgView)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, apierr.E(apierr.Forbidden, "not a member of that organization")
		}
		links, err := h.Projects.ListForOrg(r.Context(), id, nil)
		if err != nil {
			return nil, err
		}
		ids := make([]primitive.ObjectID, 0, len(links))
		for _, l := range links {
			ids = append(ids, l.ProjectID)
		}
		and = append(and, bson.M{"_id": bson.M{"$in": ids}})
	}

	return and, nil
}

type createProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Group       string `json:"group,omitempty"`
}

// HandleCreate creates a project owned by the caller.
// POST /projects
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.CurrentUserID(r)
	if !ok {
		httpjson.Unauthorized(w)
		return
	}
	var req createProjectRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	p := models.Project{
		OwnerID:     uid,
		Name:        req.Name,
		Description: htmlsanitize.Sanitize(req.Description),
	}
	if req.Group != "" {
		gid, err := h.ownGroupID(r, uid, req.Group)
		if err != nil {
			httpjson.WriteError(w, h.Log, err)
			return
		}
		p.GroupID = &gid
	}
	created, err := h.Projects.Create(r.Context(), p)
	if err != nil {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	httpjson.Write(w, http.StatusCreated, projectJSON(created))
}

// ownGroupID resolves a group reference and checks the caller owns it.
func (h *Handler) ownGroupID(r *http.Request, uid primitive.ObjectID, ref string) (primitive.ObjectID, error) {
	gid, err := primitive.ObjectIDFromHex(ref)
	if err != nil {
		return primitive.NilObjectID, apierr.E(apierr.Invalid, "bad group id %q", ref)
	}
	g, err := h.Projects.GetGroup(r.Context(), gid)
	if err != nil {
		return primitive.NilObjectID, err
	}
	if g.OwnerID != uid {
		return primitive.NilObjectID, mongo.ErrNoDocuments
	}
	return gid, nil
}

// ServeView returns one project, state included. View access suffices;
// published projects are open to anyone.
// GET /projects/{projectID}
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	p, err := h.projectFromURL(r)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	uid, _ := auth.CurrentUserID(r)
	ok, err := access.ProjectHasPermission(r.Context(), h.DB, p.ID, uid, permissions.ProjectView)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !ok {
		httpjson.NotFound(w)
		return
	}
	httpjson.Write(w, http.StatusOK, projectJSON(p))
}

type updateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Group       string `json:"group,omitempty"`
}

// HandleUpdate edits project metadata. Requires admin; state goes
// through HandleSaveState instead.
// PUT /projects/{projectID}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.requireProjectLevel(w, r, permissions.ProjectAdmin)
	if !ok {
		return
	}
	var req updateProjectRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	upd := projectstore.Update{
		Name:        req.Name,
		Description: htmlsanitize.Sanitize(req.Description),
	}
	if req.Group != "" {
		gid, err := h.ownGroupID(r, p.OwnerID, req.Group)
		if err != nil {
			httpjson.WriteError(w, h.Log, err)
			return
		}
		upd.GroupID = &gid
	}
	if err := h.Projects.Update(r.Context(), p.ID, upd); err != nil {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	updated, err := h.Projects.GetByID(r.Context(), p.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, projectJSON(updated))
}

// HandleSaveState overwrites the collaborative document. Requires code.
// PUT /projects/{projectID}/state
func (h *Handler) HandleSaveState(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.requireProjectLevel(w, r, permissions.ProjectCode)
	if !ok {
		return
	}
	var state models.ProjectState
	if err := httpjson.Decode(r, &state); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if err := h.Projects.SaveState(r.Context(), p.ID, state); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleDelete removes a project and its dependent records. Only the
// owner may delete.
// DELETE /projects/{projectID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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
	if p.OwnerID != uid {
		httpjson.Forbidden(w)
		return
	}
	if err := h.Projects.Delete(r.Context(), p.ID); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFork copies a project for the caller. Anyone who can view the
// project can fork it, published projects included.
// POST /projects/{projectID}/fork
func (h *Handler) HandleFork(w http.ResponseWriter, r *http.Request) {
	p, uid, ok := h.requireProjectLevel(w, r, permissions.ProjectView)
	if !ok {
		return
	}
	owner, err := h.Users.GetByID(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	fork, err := h.Projects.Fork(r.Context(), p, owner)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, projectJSON(fork))
}

// HandlePublish makes the project viewable by anyone. Requires admin.
// POST /projects/{projectID}/publish
func (h *Handler) HandlePublish(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.requireProjectLevel(w, r, permissions.ProjectAdmin)
	if !ok {
		return
	}
	if err := h.Projects.Publish(r.Context(), p.ID); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	updated, err := h.Projects.GetByID(r.Context(), p.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, projectJSON(updated))
}

// HandleUnpublish withdraws publication. Requires admin.
// DELETE /projects/{projectID}/publish
func (h *Handler) HandleUnpublish(w http.ResponseWriter, r *http.Request) {
	p, _, ok := h.requireProjectLevel(w, r, permissions.ProjectAdmin)
	if !ok {
		return
	}
	if err := h.Projects.Unpublish(r.Context(), p.ID); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
