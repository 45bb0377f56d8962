package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateUser creates a test user with the given username.
func (f *Fixtures) CreateUser(ctx context.Context, username string) models.User {
	f.t.Helper()

	now := time.Now().UTC()
	user := models.User{
		ID:          primitive.NewObjectID(),
		Username:    username,
		UsernameCI:  text.Fold(username),
		Email:       username + "@test.com",
		EmailCI:     text.Fold(username + "@test.com"),
		FirstName:   "Test",
		FirstNameCI: text.Fold("Test"),
		LastName:    username,
		LastNameCI:  text.Fold(username),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	_, err := f.db.Collection("users").InsertOne(ctx, user)
	if err != nil {
		f.t.Fatalf("failed to create test user: %v", err)
	}

	return user
}

// CreateOrganization creates a test organization owned by owner.
func (f *Fixtures) CreateOrganization(ctx context.Context, name string, owner models.User) models.Organization {
	f.t.Helper()

	now := time.Now().UTC()
	org := models.Organization{
		ID:                primitive.NewObjectID(),
		OwnerID:           owner.ID,
		Slug:              name,
		SlugCI:            text.Fold(name),
		Name:              name,
		NameCI:            text.Fold(name),
		DefaultPermission: "view",
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	_, err := f.db.Collection("organizations").InsertOne(ctx, org)
	if err != nil {
		f.t.Fatalf("failed to create test organization: %v", err)
	}

	return org
}

// CreatePublicOrganization creates a joinable organization with the given
// default member permission.
func (f *Fixtures) CreatePublicOrganization(ctx context.Context, name string, owner models.User, defaultPermission string) models.Organization {
	f.t.Helper()

	org := f.CreateOrganization(ctx, name, owner)
	org.Public = true
	org.DefaultPermission = defaultPermission
	_, err := f.db.Collection("organizations").ReplaceOne(ctx, bson.M{"_id": org.ID}, org)
	if err != nil {
		f.t.Fatalf("failed to update test organization: %v", err)
	}
	return org
}

// CreateProject creates a test project owned by owner.
func (f *Fixtures) CreateProject(ctx context.Context, name string, owner models.User) models.Project {
	f.t.Helper()

	now := time.Now().UTC()
	p := models.Project{
		ID:        primitive.NewObjectID(),
		OwnerID:   owner.ID,
		Name:      name,
		NameCI:    text.Fold(name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := f.db.Collection("projects").InsertOne(ctx, p)
	if err != nil {
		f.t.Fatalf("failed to create test project: %v", err)
	}

	return p
}

// PublishProject stamps the project's published timestamp.
func (f *Fixtures) PublishProject(ctx context.Context, p models.Project) models.Project {
	f.t.Helper()

	now := time.Now().UTC()
	p.PublishedAt = &now
	_, err := f.db.Collection("projects").ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		f.t.Fatalf("failed to publish test project: %v", err)
	}
	return p
}

// AddOrgMember inserts a membership record directly (no invariant checks).
func (f *Fixtures) AddOrgMember(ctx context.Context, org models.Organization, member models.User, permission string) models.OrganizationMember {
	f.t.Helper()

	m := models.OrganizationMember{
		ID:               primitive.NewObjectID(),
		OrgID:            org.ID,
		MemberID:         member.ID,
		Permission:       permission,
		MemberUsernameCI: member.UsernameCI,
		MemberNameCI:     text.Fold(member.FullName()),
		CreatedAt:        time.Now().UTC(),
	}
	_, err := f.db.Collection("organization_members").InsertOne(ctx, m)
	if err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}

// AddCollaborator inserts a project collaborator record directly.
func (f *Fixtures) AddCollaborator(ctx context.Context, p models.Project, user models.User, permission string) models.ProjectCollaborator {
	f.t.Helper()

	c := models.ProjectCollaborator{
		ID:               primitive.NewObjectID(),
		ProjectID:        p.ID,
		CollaboratorID:   user.ID,
		Permission:       permission,
		CollabUsernameCI: user.UsernameCI,
		CollabNameCI:     text.Fold(user.FullName()),
		CreatedAt:        time.Now().UTC(),
	}
	_, err := f.db.Collection("project_collaborators").InsertOne(ctx, c)
	if err != nil {
		f.t.Fatalf("failed to create test collaborator: %v", err)
	}
	return c
}

// ShareWithOrg links a project into an organization at the given
// project-scale permission.
func (f *Fixtures) ShareWithOrg(ctx context.Context, p models.Project, org models.Organization, permission string) models.OrganizationProject {
	f.t.Helper()

	link := models.OrganizationProject{
		ID:         primitive.NewObjectID(),
		OrgID:      org.ID,
		ProjectID:  p.ID,
		Permission: permission,
		CreatedAt:  time.Now().UTC(),
	}
	_, err := f.db.Collection("organization_projects").InsertOne(ctx, link)
	if err != nil {
		f.t.Fatalf("failed to create test org-project link: %v", err)
	}
	return link
}

// BanUser inserts a ban record directly.
func (f *Fixtures) BanUser(ctx context.Context, org models.Organization, user models.User, reason string) models.OrganizationBannedMember {
	f.t.Helper()

	b := models.OrganizationBannedMember{
		ID:       primitive.NewObjectID(),
		OrgID:    org.ID,
		UserID:   user.ID,
		Reason:   reason,
		BannedAt: time.Now().UTC(),
	}
	_, err := f.db.Collection("organization_banned_members").InsertOne(ctx, b)
	if err != nil {
		f.t.Fatalf("failed to create test ban: %v", err)
	}
	return b
}

// InviteToOrg inserts a pending organization invitation directly.
func (f *Fixtures) InviteToOrg(ctx context.Context, org models.Organization, invitee, inviter models.User, permission string) models.OrganizationInvitation {
	f.t.Helper()

	inv := models.OrganizationInvitation{
		ID:                primitive.NewObjectID(),
		OrgID:             org.ID,
		InviteeID:         invitee.ID,
		InviterID:         inviter.ID,
		Permission:        permission,
		InviteeUsernameCI: invitee.UsernameCI,
		InviteeNameCI:     text.Fold(invitee.FullName()),
		InviterUsernameCI: inviter.UsernameCI,
		InviterNameCI:     text.Fold(inviter.FullName()),
		InvitedAt:         time.Now().UTC(),
	}
	_, err := f.db.Collection("organization_invitations").InsertOne(ctx, inv)
	if err != nil {
		f.t.Fatalf("failed to create test invitation: %v", err)
	}
	return inv
}
