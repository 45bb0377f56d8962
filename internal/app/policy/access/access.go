// internal/app/policy/access/access.go
// Package access decides whether a principal may perform an action that
// requires a named permission level on an organization or project.
//
// Every source of access is evaluated in one fixed order: ownership,
// ban veto, direct join record, organization-shared links, publication
// bypass. Handlers and the realtime admission check all go through the
// same entry points, so a permission rule changed here changes
// everywhere at once.
package access

import (
	"context"
	"errors"

	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// Request is the parameterized authorization request. Exactly one of
// OrgID/ProjectID identifies the resource. Overrides short-circuit the
// evaluation when the actor is one of the listed users (e.g. the invitee
// of the invitation being rejected). PublishedBypass controls whether a
// published project grants view-level access to anyone; the realtime
// admission check disables it.
type Request struct {
	ActorID         primitive.ObjectID
	OrgID           primitive.ObjectID
	ProjectID       primitive.ObjectID
	Required        permissions.Level
	Overrides       []primitive.ObjectID
	PublishedBypass bool
}

// Option adjusts an evaluation request.
type Option func(*Request)

// WithoutPublishedBypass disables the published-project view grant.
// Realtime session admission uses this so published-but-unauthenticated
// viewers cannot open editing sessions.
func WithoutPublishedBypass() Option {
	return func(req *Request) { req.PublishedBypass = false }
}

// WithOverrides grants access when the actor is one of the given users,
// before any other source is consulted (but after the ban veto for
// organization resources).
func WithOverrides(userIDs ...primitive.ObjectID) Option {
	return func(req *Request) { req.Overrides = append(req.Overrides, userIDs...) }
}

// OrgHasPermission reports whether the actor holds required on the
// organization. A missing organization evaluates to false, never an
// error; other database failures are returned so callers can tell
// "not authorized" (false, nil) from "database error" (false, err).
func OrgHasPermission(ctx context.Context, db *mongo.Database, orgID, actorID primitive.ObjectID, required permissions.Level, opts ...Option) (bool, error) {
	req := Request{ActorID: actorID, OrgID: orgID, Required: required, PublishedBypass: true}
	for _, opt := range opts {
		opt(&req)
	}
	return Evaluate(ctx, db, req)
}

// ProjectHasPermission reports whether the actor holds required on the
// project, consulting ownership, collaborator records, every
// organization the project is shared with, and (for view checks) the
// publication bypass.
func ProjectHasPermission(ctx context.Context, db *mongo.Database, projectID, actorID primitive.ObjectID, required permissions.Level, opts ...Option) (bool, error) {
	req := Request{ActorID: actorID, ProjectID: projectID, Required: required, PublishedBypass: true}
	for _, opt := range opts {
		opt(&req)
	}
	return Evaluate(ctx, db, req)
}

// Evaluate runs the authorization decision procedure for req.
func Evaluate(ctx context.Context, db *mongo.Database, req Request) (bool, error) {
	if !req.ProjectID.IsZero() {
		return evaluateProject(ctx, db, req)
	}
	if !req.OrgID.IsZero() {
		return evaluateOrg(ctx, db, req)
	}
	return false, nil
}

func evaluateOrg(ctx context.Context, db *mongo.Database, req Request) (bool, error) {
	var org models.Organization
	err := db.Collection("organizations").FindOne(ctx, bson.M{"_id": req.OrgID}).Decode(&org)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}

	// Owner bypasses all checks; an owner cannot be banned from their
	// own organization.
	if org.OwnerID == req.ActorID {
		return true, nil
	}

	// Ban is an absolute negative override for every later source,
	// including the override users.
	banned, err := isBanned(ctx, db, req.OrgID, req.ActorID)
	if err != nil {
		return false, err
	}
	if banned {
		return false, nil
	}

	if actorInOverrides(req) {
		return true, nil
	}

	allowed := permissions.OrgScale.AllowedFor(req.Required)
	if len(allowed) == 0 {
		return false, nil
	}
	n, err := db.Collection("organization_members").CountDocuments(ctx, bson.M{
		"org_id":     req.OrgID,
		"member_id":  req.ActorID,
		"permission": bson.M{"$in": permissions.Strings(allowed)},
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func evaluateProject(ctx context.Context, db *mongo.Database, req Request) (bool, error) {
	var p models.Project
	err := db.Collection("projects").FindOne(ctx, bson.M{"_id": req.ProjectID}).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}

	if !req.ActorID.IsZero() && p.OwnerID == req.ActorID {
		return true, nil
	}

	if actorInOverrides(req) {
		return true, nil
	}

	if !req.ActorID.IsZero() {
		allowed := permissions.Strings(permissions.ProjectScale.AllowedFor(req.Required))
		if len(allowed) > 0 {
			n, err := db.Collection("project_collaborators").CountDocuments(ctx, bson.M{
				"project_id":      req.ProjectID,
				"collaborator_id": req.ActorID,
				"permission":      bson.M{"$in": allowed},
			})
			if err != nil {
				return false, err
			}
			if n > 0 {
				return true, nil
			}

			ok, err := sharedOrgGrants(ctx, db, req, allowed)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}

	// A published project is viewable by anyone unless the caller
	// explicitly disabled the bypass.
	if req.PublishedBypass && req.Required == permissions.ProjectView && p.Published() {
		return true, nil
	}

	return false, nil
}

// sharedOrgGrants tests every organization the project is shared with:
// the link's own project-scale permission must satisfy the requirement
// and the actor must hold a membership in that organization (and not be
// banned from it). Multiple organizational paths are OR'd.
func sharedOrgGrants(ctx context.Context, db *mongo.Database, req Request, allowed []string) (bool, error) {
	cur, err := db.Collection("organization_projects").Find(ctx, bson.M{
		"project_id": req.ProjectID,
		"permission": bson.M{"$in": allowed},
	})
	if err != nil {
		return false, err
	}
	defer cur.Close(ctx)

	var links []models.OrganizationProject
	if err := cur.All(ctx, &links); err != nil {
		return false, err
	}
	if len(links) == 0 {
		return false, nil
	}

	orgIDs := make([]primitive.ObjectID, 0, len(links))
	for _, l := range links {
		orgIDs = append(orgIDs, l.OrgID)
	}

	mcur, err := db.Collection("organization_members").Find(ctx, bson.M{
		"org_id":    bson.M{"$in": orgIDs},
		"member_id": req.ActorID,
	})
	if err != nil {
		return false, err
	}
	defer mcur.Close(ctx)

	var memberships []models.OrganizationMember
	if err := mcur.All(ctx, &memberships); err != nil {
		return false, err
	}

	for _, m := range memberships {
		banned, err := isBanned(ctx, db, m.OrgID, req.ActorID)
		if err != nil {
			return false, err
		}
		if !banned {
			return true, nil
		}
	}
	return false, nil
}

func isBanned(ctx context.Context, db *mongo.Database, orgID, userID primitive.ObjectID) (bool, error) {
	if userID.IsZero() {
		return false, nil
	}
	n, err := db.Collection("organization_banned_members").CountDocuments(ctx, bson.M{
		"org_id":  orgID,
		"user_id": userID,
	})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func actorInOverrides(req Request) bool {
	if req.ActorID.IsZero() {
		return false
	}
	for _, id := range req.Overrides {
		if id == req.ActorID {
			return true
		}
	}
	return false
}
