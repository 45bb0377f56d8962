// internal/app/store/invitations/invitationstore.go
package invitationstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	memberstore "github.com/dalemusser/blockhub/internal/app/store/members"
	"github.com/dalemusser/blockhub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c       *mongo.Collection
	bans    *mongo.Collection
	members *memberstore.Store
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:       db.Collection("organization_invitations"),
		bans:    db.Collection("organization_banned_members"),
		members: memberstore.New(db),
	}
}

var (
	// ErrDuplicateInvitation is returned when the inviter already has a
	// pending invitation to this user. A different inviter may still
	// invite the same user.
	ErrDuplicateInvitation = errors.New("user already has a pending invitation from you to this organization")
	// ErrAlreadyMember is returned when the invitee already holds a
	// membership record.
	ErrAlreadyMember = errors.New("user is already a member of this organization")
	// ErrBannedInvitee is returned when a ban record blocks the invite.
	ErrBannedInvitee = errors.New("user is banned from this organization")
	// ErrNotInvitee is returned when someone other than the invitee
	// tries to accept.
	ErrNotInvitee = errors.New("only the invited user may accept an invitation")

	errBadPermission = errors.New("permission is not a valid organization level")
)

// Create records a pending invitation. Banned users cannot be invited,
// and a current member cannot be re-invited.
func (s *Store) Create(ctx context.Context, orgID primitive.ObjectID, invitee, inviter models.User, permission permissions.Level) (models.OrganizationInvitation, error) {
	if !permissions.OrgScale.Valid(permission) {
		return models.OrganizationInvitation{}, errBadPermission
	}

	n, err := s.bans.CountDocuments(ctx, bson.M{"org_id": orgID, "user_id": invitee.ID})
	if err != nil {
		return models.OrganizationInvitation{}, err
	}
	if n > 0 {
		return models.OrganizationInvitation{}, ErrBannedInvitee
	}

	if _, err := s.members.Get(ctx, orgID, invitee.ID); err == nil {
		return models.OrganizationInvitation{}, ErrAlreadyMember
	} else if !errors.Is(err, memberstore.ErrNoMembership) {
		return models.OrganizationInvitation{}, err
	}

	inv := models.OrganizationInvitation{
		ID:                primitive.NewObjectID(),
		OrgID:             orgID,
		InviteeID:         invitee.ID,
		InviterID:         inviter.ID,
		Permission:        string(permission),
		InviteeUsernameCI: invitee.UsernameCI,
		InviteeNameCI:     text.Fold(invitee.FullName()),
		InviterUsernameCI: inviter.UsernameCI,
		InviterNameCI:     text.Fold(inviter.FullName()),
		InvitedAt:         time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.OrganizationInvitation{}, ErrDuplicateInvitation
		}
		return models.OrganizationInvitation{}, err
	}
	return inv, nil
}

// GetByID loads an invitation. Returns mongo.ErrNoDocuments if absent.
func (s *Store) GetByID(ctx context.Context, id primitive.ObjectID) (models.OrganizationInvitation, error) {
	var inv models.OrganizationInvitation
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		return models.OrganizationInvitation{}, err
	}
	return inv, nil
}

// Accept converts the invitation into a membership at the invited
// level. Only the invitee may accept. The membership insert consumes
// the invitation, and a ban placed after the invite still blocks here.
func (s *Store) Accept(ctx context.Context, id primitive.ObjectID, actor models.User) (models.OrganizationMember, error) {
	inv, err := s.GetByID(ctx, id)
	if err != nil {
		return models.OrganizationMember{}, err
	}
	if inv.InviteeID != actor.ID {
		return models.OrganizationMember{}, ErrNotInvitee
	}
	m, err := s.members.Add(ctx, inv.OrgID, actor, permissions.Level(inv.Permission), &inv.InviterID)
	if err != nil {
		return models.OrganizationMember{}, err
	}
	return m, nil
}

// Delete withdraws a pending invitation. Used for both the invitee
// rejecting and an organization manager revoking; authorization is the
// caller's concern.
func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListForInvitee returns the user's pending invitations, newest first.
func (s *Store) ListForInvitee(ctx context.Context, userID primitive.ObjectID) ([]models.OrganizationInvitation, error) {
	return s.find(ctx, bson.M{"invitee_id": userID})
}

// ListForOrg returns an organization's pending invitations, newest
// first.
func (s *Store) ListForOrg(ctx context.Context, orgID primitive.ObjectID) ([]models.OrganizationInvitation, error) {
	return s.find(ctx, bson.M{"org_id": orgID})
}

func (s *Store) find(ctx context.Context, filter bson.M) ([]models.OrganizationInvitation, error) {
	cur, err := s.c.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "invited_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.OrganizationInvitation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
