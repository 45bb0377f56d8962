// internal/app/store/projects/projectstore.go
package projectstore

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
	c             *mongo.Collection
	groups        *mongo.Collection
	collaborators *mongo.Collection
	invitations   *mongo.Collection
	links         *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:             db.Collection("projects"),
		groups:        db.Collection("project_groups"),
		collaborators: db.Collection("project_collaborators"),
		invitations:   db.Collection("project_invitations"),
		links:         db.Collection("organization_projects"),
	}
}

var (
	// ErrDuplicateShare is returned when the project is already shared
	// with the organization.
	ErrDuplicateShare = errors.New("project is already shared with this organization")
	// ErrNotShared is returned by Unshare when no link exists.
	ErrNotShared = errors.New("project is not shared with this organization")

	errBadName       = errors.New("name is required")
	errBadPermission = errors.New("permission is not a valid project level")
)

// Create inserts a new project owned by p.OwnerID. Project names are not
// unique; two projects of the same owner may share a name.
func (s *Store) Create(ctx context.Context, p models.Project) (models.Project, error) {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return models.Project{}, errBadName
	}
	now := time.Now().UTC()
	p.ID = primitive.NewObjectID()
	p.NameCI = text.Fold(p.Name)
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// GetByID loads a project by ObjectID.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.Project, error) {
	var p models.Project
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Project{}, err
	}
	return p, nil
}

// Update holds the mutable metadata fields.
type Update struct {
	Name        string
	Description string
	GroupID     *primitive.ObjectID
}

// Update writes a project's metadata. State is saved through SaveState.
func (s *Store) Update(ctx context.Context, id primitive.ObjectID, upd Update) error {
	upd.Name = strings.TrimSpace(upd.Name)
	if upd.Name == "" {
		return errBadName
	}
	set := bson.M{
		"name":        upd.Name,
		"name_ci":     text.Fold(upd.Name),
		"description": upd.Description,
		"updated_at":  time.Now().UTC(),
	}
	update := bson.M{"$set": set}
	if upd.GroupID != nil {
		set["group_id"] = *upd.GroupID
	} else {
		update["$unset"] = bson.M{"group_id": ""}
	}
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// SaveState overwrites the project's collaborative document. Autosave
// and explicit saves both land here; last write wins.
func (s *Store) SaveState(ctx context.Context, id primitive.ObjectID, state models.ProjectState) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"state":      state,
		"updated_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Delete removes the project and its dependent records: collaborator
// rows, pending invitations, and organization-sharing links.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	for _, c := range []*mongo.Collection{s.collaborators, s.invitations, s.links} {
		if _, err := c.DeleteMany(ctx, bson.M{"project_id": id}); err != nil {
			return err
		}
	}
	return nil
}

// Fork copies src into a new project owned by owner. The copy carries
// the full document state but none of the source's sharing: no group,
// no collaborators, no organization links, unpublished. The source
// records the forking user.
func (s *Store) Fork(ctx context.Context, src models.Project, owner models.User) (models.Project, error) {
	now := time.Now().UTC()
	fork := models.Project{
		ID:          primitive.NewObjectID(),
		OwnerID:     owner.ID,
		Name:        src.Name + " - Fork",
		NameCI:      text.Fold(src.Name + " - Fork"),
		Description: src.Description,
		State:       src.State,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := s.c.InsertOne(ctx, fork); err != nil {
		return models.Project{}, err
	}
	_, err := s.c.UpdateOne(ctx, bson.M{"_id": src.ID}, bson.M{"$addToSet": bson.M{"forked_by": owner.ID}})
	if err != nil {
		return models.Project{}, err
	}
	return fork, nil
}

// Publish stamps the project as published. Publishing twice refreshes
// the timestamp.
func (s *Store) Publish(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"published_at": time.Now().UTC(),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Unpublish clears the publication stamp.
func (s *Store) Unpublish(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$unset": bson.M{"published_at": ""}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// Share links the project to an organization at a project-scale level.
func (s *Store) Share(ctx context.Context, projectID, orgID primitive.ObjectID, permission permissions.Level) (models.OrganizationProject, error) {
	if !permissions.ProjectScale.Valid(permission) {
		return models.OrganizationProject{}, errBadPermission
	}
	link := models.OrganizationProject{
		ID:         primitive.NewObjectID(),
		OrgID:      orgID,
		ProjectID:  projectID,
		Permission: string(permission),
		CreatedAt:  time.Now().UTC(),
	}
	if _, err := s.links.InsertOne(ctx, link); err != nil {
		if wafflemongo.IsDup(err) {
			return models.OrganizationProject{}, ErrDuplicateShare
		}
		return models.OrganizationProject{}, err
	}
	return link, nil
}

// Unshare removes the project's link to an organization.
func (s *Store) Unshare(ctx context.Context, projectID, orgID primitive.ObjectID) error {
	res, err := s.links.DeleteOne(ctx, bson.M{"project_id": projectID, "org_id": orgID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNotShared
	}
	return nil
}

// SharedOrgIDs returns the IDs of organizations the project is shared
// with.
func (s *Store) SharedOrgIDs(ctx context.Context, projectID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.links.Find(ctx, bson.M{"project_id": projectID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var links []models.OrganizationProject
	if err := cur.All(ctx, &links); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(links))
	for _, l := range links {
		ids = append(ids, l.OrgID)
	}
	return ids, nil
}

// ListForOrg returns the sharing links of an organization, optionally
// restricted to the given project-scale levels.
func (s *Store) ListForOrg(ctx context.Context, orgID primitive.ObjectID, levels []permissions.Level) ([]models.OrganizationProject, error) {
	filter := bson.M{"org_id": orgID}
	if len(levels) > 0 {
		filter["permission"] = bson.M{"$in": permissions.Strings(levels)}
	}
	cur, err := s.links.Find(ctx, filter)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.OrganizationProject
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Find returns projects matching filter with the given options.
func (s *Store) Find(ctx context.Context, filter bson.M, opts ...*options.FindOptions) ([]models.Project, error) {
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.Project
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Count returns the number of projects matching filter.
func (s *Store) Count(ctx context.Context, filter bson.M) (int64, error) {
	return s.c.CountDocuments(ctx, filter)
}
