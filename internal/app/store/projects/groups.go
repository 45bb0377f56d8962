// internal/app/store/projects/groups.go
package projectstore

import (
	"context"
	"strings"
	"time"

	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// CreateGroup makes an owner-private folder for projects.
func (s *Store) CreateGroup(ctx context.Context, ownerID primitive.ObjectID, name string) (models.ProjectGroup, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return models.ProjectGroup{}, errBadName
	}
	g := models.ProjectGroup{
		ID:        primitive.NewObjectID(),
		OwnerID:   ownerID,
		Name:      name,
		NameCI:    text.Fold(name),
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.groups.InsertOne(ctx, g); err != nil {
		return models.ProjectGroup{}, err
	}
	return g, nil
}

// GetGroup loads a group by ObjectID.
func (s *Store) GetGroup(ctx context.Context, id primitive.ObjectID) (models.ProjectGroup, error) {
	var g models.ProjectGroup
	if err := s.groups.FindOne(ctx, bson.M{"_id": id}).Decode(&g); err != nil {
		return models.ProjectGroup{}, err
	}
	return g, nil
}

// RenameGroup changes a group's name.
func (s *Store) RenameGroup(ctx context.Context, id primitive.ObjectID, name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return errBadName
	}
	res, err := s.groups.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M{
		"name":    name,
		"name_ci": text.Fold(name),
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// DeleteGroup removes the folder. Projects in it survive with their
// group reference cleared.
func (s *Store) DeleteGroup(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.groups.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	_, err = s.c.UpdateMany(ctx, bson.M{"group_id": id}, bson.M{"$unset": bson.M{"group_id": ""}})
	return err
}

// ListGroups returns the owner's folders sorted by case-folded name.
func (s *Store) ListGroups(ctx context.Context, ownerID primitive.ObjectID) ([]models.ProjectGroup, error) {
	cur, err := s.groups.Find(ctx, bson.M{"owner_id": ownerID},
		options.Find().SetSort(bson.D{{Key: "name_ci", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ProjectGroup
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
