// internal/app/features/organizations/members.go
package organizations

import (
	"context"
	"errors"
	"net/http"

	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	memberstore "github.com/dalemusser/blockhub/internal/app/store/members"
	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"github.com/dalemusser/blockhub/internal/app/system/auth"
	"github.com/dalemusser/blockhub/internal/app/system/httpjson"
	"github.com/dalemusser/blockhub/internal/app/system/search"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/query"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// memberSearch works over the denormalized member fields, so list
// filtering needs no join against users.
var memberSearch = search.Engine{
	SearchFields: []search.Field{
		{Path: "member_username", CI: true},
		{Path: "member_name", CI: true},
	},
	OrderFields: []search.Field{
		{Alias: "username", Path: "member_username", CI: true},
		{Alias: "name", Path: "member_name", CI: true},
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

// ServeMembers lists an organization's members. Requires view.
// GET /orgs/{orgID}/members
func (h *Handler) ServeMembers(w http.ResponseWriter, r *http.Request) {
	org, _, ok := h.requireOrgLevel(w, r, permissions.OrgView)
	if !ok {
		return
	}

	filter := bson.M{}
	if q := query.Search(r, "search"); q != "" {
		filter = memberSearch.Filter(q)
	}
	sort, err := memberSearch.Sort(query.Get(r, "ordering"))
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	opts := options.Find().SetLimit(500)
	if len(sort) > 0 {
		opts.SetSort(sort)
	}

	members, err := h.Members.ListByOrg(r.Context(), org.ID, filter, opts)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}

	ids := make([]primitive.ObjectID, 0, len(members))
	for _, m := range members {
		ids = append(ids, m.MemberID)
	}
	profiles, err := h.profilesByID(r.Context(), ids)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}

	out := make([]memberResponse, 0, len(members))
	for _, m := range members {
		resp := memberResponse{
			User:       profiles[m.MemberID],
			Permission: m.Permission,
			CreatedAt:  m.CreatedAt,
		}
		if m.InvitedBy != nil {
			resp.InvitedBy = m.InvitedBy.Hex()
		}
		out = append(out, resp)
	}
	httpjson.Write(w, http.StatusOK, out)
}

// HandleJoin lets a signed-in user join a public organization at its
// default permission. Private organizations are join-by-invitation
// only.
// POST /orgs/{orgID}/join
func (h *Handler) HandleJoin(w http.ResponseWriter, r *http.Request) {
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
	if !org.Public {
		httpjson.NotFound(w)
		return
	}
	user, err := h.Users.GetByID(r.Context(), uid)
	if err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	m, err := h.Members.Add(r.Context(), org.ID, user, permissions.Level(org.DefaultPermission), nil)
	if err != nil {
		h.writeMemberError(w, err)
		return
	}
	httpjson.Write(w, http.StatusCreated, memberResponse{
		User:       user.Public(),
		Permission: m.Permission,
		CreatedAt:  m.CreatedAt,
	})
}

// HandleLeave removes the caller's own membership.
// POST /orgs/{orgID}/leave
func (h *Handler) HandleLeave(w http.ResponseWriter, r *http.Request) {
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
	if err := h.Members.Remove(r.Context(), org.ID, uid); err != nil {
		if errors.Is(err, memberstore.ErrNoMembership) {
			httpjson.NotFound(w)
			return
		}
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type memberUpdateRequest struct {
	Permission string `json:"permission"`
}

// HandleUpdateMember changes a member's level. Requires manage, and the
// new level may not exceed the caller's own standing.
// PUT /orgs/{orgID}/members/{userID}
func (h *Handler) HandleUpdateMember(w http.ResponseWriter, r *http.Request) {
	org, uid, ok := h.requireOrgLevel(w, r, permissions.OrgManage)
	if !ok {
		return
	}
	target, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpjson.NotFound(w)
		return
	}
	var req memberUpdateRequest
	if err := httpjson.Decode(r, &req); err != nil {
		httpjson.WriteError(w, h.Log, err)
		return
	}
	if !h.callerOutranks(r, org, uid, permissions.Level(req.Permission)) {
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Forbidden, "cannot grant a level above your own"))
		return
	}
	if err := h.Members.UpdatePermission(r.Context(), org.ID, target, permissions.Level(req.Permission)); err != nil {
		if errors.Is(err, memberstore.ErrNoMembership) {
			httpjson.NotFound(w)
			return
		}
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleRemoveMember kicks a member. Requires manage.
// DELETE /orgs/{orgID}/members/{userID}
func (h *Handler) HandleRemoveMember(w http.ResponseWriter, r *http.Request) {
	org, _, ok := h.requireOrgLevel(w, r, permissions.OrgManage)
	if !ok {
		return
	}
	target, err := primitive.ObjectIDFromHex(chi.URLParam(r, "userID"))
	if err != nil {
		httpjson.NotFound(w)
		return
	}
	if err := h.Members.Remove(r.Context(), org.ID, target); err != nil {
		if errors.Is(err, memberstore.ErrNoMembership) {
			httpjson.NotFound(w)
			return
		}
		httpjson.WriteError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// callerOutranks reports whether the caller's effective level satisfies
// the level being granted, so inviters cannot escalate past their own
// standing. The owner outranks everything.
func (h *Handler) callerOutranks(r *http.Request, org models.Organization, uid primitive.ObjectID, granting permissions.Level) bool {
	held, ok, err := h.Members.EffectivePermission(r.Context(), org, uid)
	if err != nil || !ok {
		return false
	}
	if held == permissions.Owner {
		return true
	}
	return permissions.OrgScale.Satisfies(held, granting)
}

func (h *Handler) writeMemberError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, memberstore.ErrDuplicateMembership), errors.Is(err, memberstore.ErrBannedMember):
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Conflict, "%s", err))
	default:
		httpjson.WriteError(w, h.Log, apierr.E(apierr.Invalid, "%s", err))
	}
}
