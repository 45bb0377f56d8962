// internal/app/store/organizations/organizationstore.go
package organizationstore

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	"github.com/dalemusser/blockhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c           *mongo.Collection
	members     *mongo.Collection
	invitations *mongo.Collection
	bans        *mongo.Collection
	links       *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:           db.Collection("organizations"),
		members:     db.Collection("organization_members"),
		invitations: db.Collection("organization_invitations"),
		bans:        db.Collection("organization_banned_members"),
		links:       db.Collection("organization_projects"),
	}
}

var (
	// ErrDuplicateSlug is returned when an organization with the same
	// slug already exists (case-insensitively).
	ErrDuplicateSlug = errors.New("an organization with this slug already exists")

	errBadSlug       = errors.New("slug is required")
	errBadName       = errors.New("name is required")
	errBadPermission = errors.New("default_permission is not a valid organization level")
)

// Create inserts a new organization owned by org.OwnerID.
func (s *Store) Create(ctx context.Context, org models.Organization) (models.Organization, error) {
	org.Slug = strings.TrimSpace(org.Slug)
	org.Name = strings.TrimSpace(org.Name)
	if org.Slug == "" {
		return models.Organization{}, errBadSlug
	}
	if org.Name == "" {
		return models.Organization{}, errBadName
	}
	if org.DefaultPermission == "" {
		org.DefaultPermission = string(permissions.OrgView)
	}
	if !permissions.OrgScale.Valid(permissions.Level(org.DefaultPermission)) {
		return models.Organization{}, errBadPermission
	}

	now := time.Now().UTC()
	org.ID = primitive.NewObjectID()
	org.SlugCI = text.Fold(org.Slug)
	org.NameCI = text.Fold(org.Name)
	org.CreatedAt = now
	org.UpdatedAt = now

	if _, err := s.c.InsertOne(ctx, org); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Organization{}, ErrDuplicateSlug
		}
		return models.Organization{}, err
	}
	return org, nil
}

// GetByID loads an organization by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Organization, error) {
	var org models.Organization
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&org); err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// GetBySlug loads an organization by its case-insensitive slug.
func (s *Store) GetBySlug(ctx context.Context, slug string) (models.Organization, error) {
	var org models.Organization
	if err := s.c.FindOne(ctx, bson.M{"slug_ci": text.Fold(slug)}).Decode(&org); err != nil {
		return models.Organization{}, err
	}
	return org, nil
}

// Update holds the fields a manager may change.
type Update struct {
	Name              string
	Description       string
	Public            bool
	DefaultPermission string
}

// Update writes the mutable organization fields. The slug is immutable
// once created.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) error {
	upd.Name = strings.TrimSpace(upd.Name)
	if upd.Name == "" {
		return errBadName
	}
	if !permissions.OrgScale.Valid(permissions.Level(upd.DefaultPermission)) {
		return errBadPermission
	}
	set := bson.M{
		"name":               upd.Name,
		"name_ci":            text.Fold(upd.Name),
		"description":        upd.Description,
		"public":             upd.Public,
		"default_permission": upd.DefaultPermission,
		"updated_at":         time.Now().UTC(),
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": set})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes the organization and every dependent record: member
// rows, pending invitations, bans, and project-sharing links. Shared
// projects themselves are untouched.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	for _, c := range []*mongo.Collection{s.members, s.invitations, s.bans, s.links} {
		if _, err := c.DeleteMany(ctx, bson.M{"org_id": id}); err != nil {
			return err
		}
	}
	return nil
}

// Find returns organizations matching filter with the given options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Organization, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Organization
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of organizations matching filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
