// internal/app/features/organizations/handler.go
package organizations

import (
	"errors"
	"net/http"

	"github.com/dalemusser/blockhub/internal/app/policy/access"
	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	banstore "github.com/dalemusser/blockhub/internal/app/store/bans"
	invitationstore "github.com/dalemusser/blockhub/internal/app/store/invitations"
	memberstore "github.com/dalemusser/blockhub/internal/app/store/members"
	organizationstore "github.com/dalemusser/blockhub/internal/app/store/organizations"
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

// Handler serves the organization API: CRUD, membership, invitations,
// and bans.
type Handler struct {
	DB          *mongo.Database
	Orgs        *organizationstore.Store
	Members     *memberstore.Store
	Invitations *invitationstore.Store
	Bans        *banstore.Store
	Users       *userstore.Store
	Log         *zap.Logger
}

func NewHandler(db *mongo.Database, log *zap.Logger) *Handler {
	return &Handler{
		DB:          db,
		Orgs:        organizationstore.New(db),
		Members:     memberstore.New(db),
		Invitations: invitationstore.New(db),
		Bans:        banstore.New(db),
		Users:       userstore.New(db),
		Log:         log,
	}
}

// orgSearch powers ?search= and ?ordering= on the organization list.
var orgSearch = search.Engine{
	SearchFields: []search.Field{
		{Path: "slug", CI: true},
		{Path: "name", CI: true},
		{Path: "description"},
	},
	OrderFields: []search.Field{
		{Alias: "slug", Path: "slug", CI: true},
		{Alias: "name", Path: "name", CI: true},
		{Alias: "created_at", Path: "created_at"},
		{Alias: "updated_at", Path: "updated_at"},
	},
}

// orgFromURL loads the organization named in the route. A bad or
// unknown ID is NotFound either way; existence is not leaked.
func (h *Handler) orgFromURL(r *http.Request) (models.Organization, error) {
	id, err := primitive.ObjectIDFromHex(chi.URLParam(r, "orgID"))
	if err != nil {
		return models.Organization{}, mongo.ErrNoDocuments
	}
	return h.Orgs.GetByID(r.Context(), id)
}

// requireOrgLevel loads the org and checks the signed-in user holds the
// level. Writes the response itself on failure.
func (h *Handler) requireOrgLevel(w http.ResponseWriter, r *http.Request, level permissions.Level) (models.Organization, primitive.ObjectID, bool) {
	uid, signedIn := auth.CurrentUserID(r)
	if !signedIn {
		httpjson.Unauthorized(w)
		return models.Organization{}, primitive.NilObjectID, false
	}
	org, err := h.orgFromURL(r)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return models.Organization{}, primitive.NilObjectID, false
	}
	ok, err := access.OrgHasPermission(r.Context(), h.DB, org.ID, uid, level)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return models.Organization{}, primitive.NilObjectID, false
	}
	if !ok {
		httpjson.Forbidden(w)
		return models.Organization{}, primitive.NilObjectID, false
	}
	return org, uid, true
}

// ServeList lists organizations visible to the caller: public ones plus
// any they own or belong to. Supports ?search= and ?ordering=.
// GET /orgs
func (h *Handler) ServeList(w http.ResponseWriter, r *http.Request) {
	uid, signedIn := auth.CurrentUserID(r)

	visible := []bson.M{{"public": true}}
	if signedIn {
		visible = append(visible, bson.M{"owner_id": uid})
		orgIDs, err := h.Members.OrgIDsForUser(r.Context(), uid)
		if err != nil {
			httpjson.WriteError(w, h.Log, err)
			return
		}
		if len(orgIDs) > 0 {
			visible = append(visible, bson.M{"_id": bson.M{"$in": orgIDs}})
		}
	}
	filter := bson.M{"$or": visible}

	if q := query.Search(r, "search"); q != "" {
		if sub := orgSearch.Filter(q); len(sub) > 0 {
			filter = bson.M{"$and": []bson.M{filter, sub}}
		}
	}
	sort, err := orgSearch.Sort(query.Get(r, "ordering"))
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	opts := options.Find().SetLimit(200)
	if len(sort) > 0 {
		opts.SetSort(sort)
	}

	orgs, err := h.Orgs.Find(r.Context(), filter, opts)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	out := make([]orgResponse, 0, len(orgs))
	for _, o := range orgs {
		out = append(out, orgJSON(o))
	}
	httpjson.Write(w, http.StatusOK, out)
}

type createOrgRequest struct {
	Slug              string `json:"slug"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	Public            bool   `json:"public"`
	DefaultPermission string `json:"default_permission"`
}

// HandleCreate creates an organization owned by the caller.
// POST /orgs
func (h *Handler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	uid, ok := auth.CurrentUserID(r)
	if !ok {
		httpjson.Unauthorized(w)
		return
	}
	var req createOrgRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	org, err := h.Orgs.Create(r.Context(), models.Organization{
		OwnerID:           uid,
		Slug:              req.Slug,
		Name:              req.Name,
		Description:       htmlsanitize.Sanitize(req.Description),
		Public:            req.Public,
		DefaultPermission: req.DefaultPermission,
	})
	if err != nil {
		if errors.Is(err, organizationstore.ErrDuplicateSlug) {
			httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
			return
		}
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	httpjson.Write(w, http.StatusCreated, orgJSON(org))
}

// ServeView returns one organization.
// GET /orgs/{orgID}
func (h *Handler) ServeView(w http.ResponseWriter, r *http.Request) {
	org, err := h.orgFromURL(r)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !org.Public {
		uid, signedIn := auth.CurrentUserID(r)
		if !signedIn {
			httpjson.Unauthorized(w)
			return
		}
		ok, err := access.OrgHasPermission(r.Context(), h.DB, org.ID, uid, permissions.OrgView)
		if err != nil {
			httpjson.WriteError(w, h.Log, err)
			return
		}
		if !ok {
			// Hidden orgs look absent to outsiders.
			httpjson.NotFound(w)
			return
		}
	}
	httpjson.Write(w, http.StatusOK, orgJSON(org))
}

type updateOrgRequest struct {
	Name              string `json:"name"`
	Description       string `json:"description"`
	Public            bool   `json:"public"`
	DefaultPermission string `json:"default_permission"`
}

// HandleUpdate edits organization settings. Requires admin.
// PUT /orgs/{orgID}
func (h *Handler) HandleUpdate(w http.ResponseWriter, r *http.Request) {
	org, _, ok := h.requireOrgLevel(w, r, permissions.OrgAdmin)
	if !ok {
		return
	}
	var req updateOrgRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	err := h.Orgs.Update(r.Context(), org.ID, organizationstore.Update{
		Name:              req.Name,
		Description:       htmlsanitize.Sanitize(req.Description),
		Public:            req.Public,
		DefaultPermission: req.DefaultPermission,
	})
	if err != nil {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	updated, err := h.Orgs.GetByID(r.Context(), org.ID)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	httpjson.Write(w, http.StatusOK, orgJSON(updated))
}

// HandleDelete removes an organization and its dependent records. Only
// the owner may delete.
// DELETE /orgs/{orgID}
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
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
	if org.OwnerID != uid {
		httpjson.Forbidden(w)
		return
	}
	if err := h.Orgs.Delete(r.Context(), org.ID); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
