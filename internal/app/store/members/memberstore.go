// internal/app/store/members/memberstore.go
package memberstore

import (
	"context"
	"errors"
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
	invitations *mongo.Collection
	bans        *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:           db.Collection("organization_members"),
		invitations: db.Collection("organization_invitations"),
		bans:        db.Collection("organization_banned_members"),
	}
}

var (
	// ErrDuplicateMembership is returned when the user is already a
	// member of the organization.
	ErrDuplicateMembership = errors.New("user is already a member of this organization")
	// ErrBannedMember is returned when a ban record blocks the join.
	ErrBannedMember = errors.New("user is banned from this organization")
	// ErrNoMembership is returned by lookups when no record exists.
	ErrNoMembership = errors.New("user is not a member of this organization")

	errBadPermission = errors.New("permission is not a valid organization level")
)

// Add creates a membership record. A ban record blocks the join
// unconditionally. On success any pending invitation for the same
// (organization, user) pair is consumed, so a user never holds both.
func (s *Store) Add(ctx context.Context, orgID primitive.ObjectID, member models.User, permission permissions.Level, invitedBy *primitive.ObjectID) (models.OrganizationMember, error) {
	if !permissions.OrgScale.Valid(permission) {
		return models.OrganizationMember{}, errBadPermission
	}

	n, err := s.bans.CountDocuments(ctx, bson.M{"org_id": orgID, "user_id": member.ID})
	if err != nil {
		return models.OrganizationMember{}, err
	}
	if n > 0 {
		return models.OrganizationMember{}, ErrBannedMember
	}

	m := models.OrganizationMember{
		ID:               primitive.NewObjectID(),
		OrgID:            orgID,
		MemberID:         member.ID,
		InvitedBy:        invitedBy,
		Permission:       string(permission),
		MemberUsernameCI: member.UsernameCI,
		MemberNameCI:     text.Fold(member.FullName()),
		CreatedAt:        time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.OrganizationMember{}, ErrDuplicateMembership
		}
		return models.OrganizationMember{}, err
	}

	if _, err := s.invitations.DeleteMany(ctx, bson.M{"org_id": orgID, "invitee_id": member.ID}); err != nil {
		return models.OrganizationMember{}, err
	}
	return m, nil
}

// Remove deletes the membership record for (orgID, userID).
// Returns ErrNoMembership if there was none.
func (s *Store) Remove(ctx context.Context, orgID, userID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"org_id": orgID, "member_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoMembership
	}
	return nil
}

// UpdatePermission changes a member's level in place.
func (s *Store) UpdatePermission(ctx context.Context, orgID, userID primitive.ObjectID, permission permissions.Level) error {
	if !permissions.OrgScale.Valid(permission) {
		return errBadPermission
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"org_id": orgID, "member_id": userID},
		bson.M{"$set": bson.M{"permission": string(permission)}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoMembership
	}
	return nil
}

// Get returns the membership record for (orgID, userID), or
// ErrNoMembership.
func (s *Store) Get(ctx context.Context, orgID, userID primitive.ObjectID) (models.OrganizationMember, error) {
	var m models.OrganizationMember
	err := s.c.FindOne(ctx, bson.M{"org_id": orgID, "member_id": userID}).Decode(&m)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.OrganizationMember{}, ErrNoMembership
		}
		return models.OrganizationMember{}, err
	}
	return m, nil
}

// EffectivePermission reports the level a user holds on an organization:
// the Owner sentinel for the owner, the membership's level for members,
// and ok=false for everyone else. A ban hides any lingering membership.
func (s *Store) EffectivePermission(ctx context.Context, org models.Organization, userID primitive.ObjectID) (permissions.Level, bool, error) {
	if org.OwnerID == userID {
		return permissions.Owner, true, nil
	}
	n, err := s.bans.CountDocuments(ctx, bson.M{"org_id": org.ID, "user_id": userID})
	if err != nil {
		return "", false, err
	}
	if n > 0 {
		return "", false, nil
	}
	m, err := s.Get(ctx, org.ID, userID)
	if err != nil {
		if errors.Is(err, ErrNoMembership) {
			return "", false, nil
		}
		return "", false, err
	}
	return permissions.Level(m.Permission), true, nil
}

// ListByOrg returns an organization's membership records.
func (s *Store) ListByOrg(ctx context.Context, orgID primitive.ObjectID, filter bson.M, opts ...*options.FindOptions) ([]models.OrganizationMember, error) {
	if filter == nil {
		filter = bson.M{}
	}
	filter["org_id"] = orgID
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.OrganizationMember
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OrgIDsForUser returns the IDs of every organization the user holds a
// membership record in.
func (s *Store) OrgIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"member_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var ms []models.OrganizationMember
	if err := cur.All(ctx, &ms); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(ms))
	for _, m := range ms {
		ids = append(ids, m.OrgID)
	}
	return ids, nil
}

// Count returns the number of membership records matching filter within
// the organization.
func (s *Store) Count(ctx context.Context, orgID primitive.ObjectID, filter bson.M) (int64, error) {
	if filter == nil {
		filter = bson.M{}
	}
	filter["org_id"] = orgID
	return s.c.CountDocuments(ctx, filter)
}
