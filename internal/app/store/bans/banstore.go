// internal/app/store/bans/banstore.go
package banstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/blockhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("organization_banned_members")}
}

var (
	// ErrDuplicateBan is returned when the user is already banned.
	ErrDuplicateBan = errors.New("user is already banned from this organization")
	// ErrNoBan is returned by Remove when no ban record exists.
	ErrNoBan = errors.New("user is not banned from this organization")
)

// Add records a ban. The ban does not remove an existing membership
// record; the permission evaluator treats the ban as a veto over any
// such record, so lifting the ban restores the prior standing.
func (s *Store) Add(ctx context.Context, orgID, userID primitive.ObjectID, bannedBy *primitive.ObjectID, reason string) (models.OrganizationBannedMember, error) {
	b := models.OrganizationBannedMember{
		ID:       primitive.NewObjectID(),
		OrgID:    orgID,
		UserID:   userID,
		BannedBy: bannedBy,
		Reason:   reason,
		BannedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, b); err != nil {
		if wafflemongo.IsDup(err) {
			return models.OrganizationBannedMember{}, ErrDuplicateBan
		}
		return models.OrganizationBannedMember{}, err
	}
	return b, nil
}

// Remove lifts a ban.
func (s *Store) Remove(ctx context.Context, orgID, userID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"org_id": orgID, "user_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoBan
	}
	return nil
}

// IsBanned reports whether a ban record exists for (orgID, userID).
func (s *Store) IsBanned(ctx context.Context, orgID, userID primitive.ObjectID) (bool, error) {
	n, err := s.c.CountDocuments(ctx, bson.M{"org_id": orgID, "user_id": userID})
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListByOrg returns an organization's ban records, newest first.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.OrganizationBannedMember, error) {
	cur, err := s.c.Find(ctx, bson.M{"org_id": orgID},
		options.Find().SetSort(bson.D{{Key: "banned_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.OrganizationBannedMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
