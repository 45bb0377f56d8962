// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

// EnsureAll is called at startup (and by the test harness) to bring
// every collection's indexes up to date. Each ensure* function is
// idempotent; errors are aggregated so a single bad index does not hide
// the rest.
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string
	for _, e := range []struct {
		name string
		fn   func(context.Context, *mongo.Database) error
	}{
		{"users", ensureUsers},
		{"organizations", ensureOrganizations},
		{"organization_members", ensureOrganizationMembers},
		{"organization_invitations", ensureOrganizationInvitations},
		{"organization_banned_members", ensureOrganizationBans},
		{"projects", ensureProjects},
		{"project_groups", ensureProjectGroups},
		{"project_collaborators", ensureProjectCollaborators},
		{"project_invitations", ensureProjectInvitations},
		{"organization_projects", ensureOrganizationProjects},
	} {
		if err := e.fn(ctx, db); err != nil {
			problems = append(problems, e.name+": "+err.Error())
		}
	}
	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

// ensureIndexSet creates the desired indexes one at a time. An index
// that already exists with the same keys and options is a no-op for
// mongod; an options conflict is dropped by name and recreated.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	for _, m := range models {
		name := ""
		if m.Options != nil && m.Options.Name != nil {
			name = *m.Options.Name
		}
		_, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil && isOptionsConflictErr(err) && name != "" {
			if _, dropErr := coll.Indexes().DropOne(ctx, name); dropErr != nil {
				zap.L().Warn("drop conflicting index failed",
					zap.String("collection", coll.Name()),
					zap.String("name", name),
					zap.Error(dropErr))
			}
			_, err = coll.Indexes().CreateOne(ctx, m)
		}
		if err != nil {
			zap.L().Warn("index ensure failed",
				zap.String("collection", coll.Name()),
				zap.String("name", name),
				zap.Error(err))
			errs = append(errs, fmt.Sprintf("%s(%s): %v", coll.Name(), name, err))
			continue
		}
		zap.L().Debug("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name))
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// Mongo/DocDB returns IndexOptionsConflict when an index with the same
// keys exists under a different name or with different options.
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 85 || ce.Code == 86) {
		return true
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict") ||
		strings.Contains(err.Error(), "IndexKeySpecsConflict")
}

func uniq(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetUnique(true).SetName(name)}
}

func idx(name string, keys bson.D) mongo.IndexModel {
	return mongo.IndexModel{Keys: keys, Options: options.Index().SetName(name)}
}

func ensureUsers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("users"), []mongo.IndexModel{
		// Usernames and emails are unique case-insensitively; the _ci
		// companion carries the folded value.
		uniq("uniq_users_username_ci", bson.D{{Key: "username_ci", Value: 1}}),
		uniq("uniq_users_email_ci", bson.D{{Key: "email_ci", Value: 1}}),
	})
}

func ensureOrganizations(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("organizations"), []mongo.IndexModel{
		uniq("uniq_orgs_slug_ci", bson.D{{Key: "slug_ci", Value: 1}}),
		idx("idx_orgs_name_ci", bson.D{{Key: "name_ci", Value: 1}}),
		idx("idx_orgs_owner", bson.D{{Key: "owner_id", Value: 1}}),
		// Public-organization discovery lists.
		idx("idx_orgs_public_nameci", bson.D{{Key: "public", Value: 1}, {Key: "name_ci", Value: 1}}),
	})
}

func ensureOrganizationMembers(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("organization_members"), []mongo.IndexModel{
		uniq("uniq_orgmembers_org_member", bson.D{{Key: "org_id", Value: 1}, {Key: "member_id", Value: 1}}),
		idx("idx_orgmembers_member", bson.D{{Key: "member_id", Value: 1}}),
	})
}

func ensureOrganizationInvitations(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("organization_invitations"), []mongo.IndexModel{
		uniq("uniq_orginvites_org_invitee_inviter", bson.D{{Key: "org_id", Value: 1}, {Key: "invitee_id", Value: 1}, {Key: "inviter_id", Value: 1}}),
		idx("idx_orginvites_invitee", bson.D{{Key: "invitee_id", Value: 1}}),
	})
}

func ensureOrganizationBans(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("organization_banned_members"), []mongo.IndexModel{
		uniq("uniq_orgbans_org_user", bson.D{{Key: "org_id", Value: 1}, {Key: "user_id", Value: 1}}),
	})
}

func ensureProjects(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("projects"), []mongo.IndexModel{
		idx("idx_projects_owner_nameci", bson.D{{Key: "owner_id", Value: 1}, {Key: "name_ci", Value: 1}}),
		idx("idx_projects_group", bson.D{{Key: "group_id", Value: 1}}),
		// Published gallery, newest first.
		idx("idx_projects_publishedat", bson.D{{Key: "published_at", Value: -1}}),
	})
}

func ensureProjectGroups(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("project_groups"), []mongo.IndexModel{
		idx("idx_projectgroups_owner", bson.D{{Key: "owner_id", Value: 1}, {Key: "name_ci", Value: 1}}),
	})
}

func ensureProjectCollaborators(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("project_collaborators"), []mongo.IndexModel{
		uniq("uniq_collabs_project_user", bson.D{{Key: "project_id", Value: 1}, {Key: "collaborator_id", Value: 1}}),
		idx("idx_collabs_user", bson.D{{Key: "collaborator_id", Value: 1}}),
	})
}

func ensureProjectInvitations(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("project_invitations"), []mongo.IndexModel{
		uniq("uniq_projinvites_project_invitee_inviter", bson.D{{Key: "project_id", Value: 1}, {Key: "invitee_id", Value: 1}, {Key: "inviter_id", Value: 1}}),
		idx("idx_projinvites_invitee", bson.D{{Key: "invitee_id", Value: 1}}),
	})
}

func ensureOrganizationProjects(ctx context.Context, db *mongo.Database) error {
	return ensureIndexSet(ctx, db.Collection("organization_projects"), []mongo.IndexModel{
		uniq("uniq_orgprojects_org_project", bson.D{{Key: "org_id", Value: 1}, {Key: "project_id", Value: 1}}),
		idx("idx_orgprojects_project", bson.D{{Key: "project_id", Value: 1}}),
	})
}
