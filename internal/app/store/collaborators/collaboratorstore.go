// internal/app/store/collaborators/collaboratorstore.go
package collaboratorstore

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
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:           db.Collection("project_collaborators"),
		invitations: db.Collection("project_invitations"),
	}
}

var (
	// ErrDuplicateCollaborator is returned when the user is already a
	// collaborator on the project.
	ErrDuplicateCollaborator = errors.New("user is already a collaborator on this project")
	// ErrDuplicateInvitation is returned when the inviter already has a
	// pending invitation to this user. A different inviter may still
	// invite the same user.
	ErrDuplicateInvitation = errors.New("user already has a pending invitation from you to this project")
	// ErrNoCollaborator is returned by lookups when no record exists.
	ErrNoCollaborator = errors.New("user is not a collaborator on this project")
	// ErrNotInvitee is returned when someone other than the invitee
	// tries to accept.
	ErrNotInvitee = errors.New("only the invited user may accept an invitation")

	errBadPermission = errors.New("permission is not a valid project level")
)

// Add creates a collaborator record. Any pending invitation for the
// same pair is consumed.
func (s *Store) Add(ctx context.Context, projectID primitive.ObjectID, user models.User, permission permissions.Level) (models.ProjectCollaborator, error) {
	if !permissions.ProjectScale.Valid(permission) {
		return models.ProjectCollaborator{}, errBadPermission
	}
	pc := models.ProjectCollaborator{
		ID:               primitive.NewObjectID(),
		ProjectID:        projectID,
		CollaboratorID:   user.ID,
		Permission:       string(permission),
		CollabUsernameCI: user.UsernameCI,
		CollabNameCI:     text.Fold(user.FullName()),
		CreatedAt:        time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, pc); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ProjectCollaborator{}, ErrDuplicateCollaborator
		}
		return models.ProjectCollaborator{}, err
	}
	if _, err := s.invitations.DeleteMany(ctx, bson.M{"project_id": projectID, "invitee_id": user.ID}); err != nil {
		return models.ProjectCollaborator{}, err
	}
	return pc, nil
}

// Remove deletes the collaborator record for (projectID, userID).
func (s *Store) Remove(ctx context.Context, projectID, userID primitive.ObjectID) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"project_id": projectID, "collaborator_id": userID})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return ErrNoCollaborator
	}
	return nil
}

// UpdatePermission changes a collaborator's level in place.
func (s *Store) UpdatePermission(ctx context.Context, projectID, userID primitive.ObjectID, permission permissions.Level) error {
	if !permissions.ProjectScale.Valid(permission) {
		return errBadPermission
	}
	res, err := s.c.UpdateOne(ctx,
		bson.M{"project_id": projectID, "collaborator_id": userID},
		bson.M{"$set": bson.M{"permission": string(permission)}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNoCollaborator
	}
	return nil
}

// Get returns the collaborator record for (projectID, userID), or
// ErrNoCollaborator.
func (s *Store) Get(ctx context.Context, projectID, userID primitive.ObjectID) (models.ProjectCollaborator, error) {
	var pc models.ProjectCollaborator
	err := s.c.FindOne(ctx, bson.M{"project_id": projectID, "collaborator_id": userID}).Decode(&pc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.ProjectCollaborator{}, ErrNoCollaborator
		}
		return models.ProjectCollaborator{}, err
	}
	return pc, nil
}

// ListByProject returns a project's collaborator records.
func (s *Store) ListByProject(ctx context.Context, projectID primitive.ObjectID, filter bson.M, opts ...*options.FindOptions) ([]models.ProjectCollaborator, error) {
	if filter == nil {
		filter = bson.M{}
	}
	filter["project_id"] = projectID
	cur, err := s.c.Find(ctx, filter, opts...)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ProjectCollaborator
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ProjectIDsForUser returns the IDs of every project the user
// collaborates on.
func (s *Store) ProjectIDsForUser(ctx context.Context, userID primitive.ObjectID) ([]primitive.ObjectID, error) {
	cur, err := s.c.Find(ctx, bson.M{"collaborator_id": userID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var pcs []models.ProjectCollaborator
	if err := cur.All(ctx, &pcs); err != nil {
		return nil, err
	}
	ids := make([]primitive.ObjectID, 0, len(pcs))
	for _, pc := range pcs {
		ids = append(ids, pc.ProjectID)
	}
	return ids, nil
}

// Invite records a pending project invitation. A current collaborator
// cannot be re-invited.
func (s *Store) Invite(ctx context.Context, projectID primitive.ObjectID, invitee, inviter models.User, permission permissions.Level) (models.ProjectInvitation, error) {
	if !permissions.ProjectScale.Valid(permission) {
		return models.ProjectInvitation{}, errBadPermission
	}
	if _, err := s.Get(ctx, projectID, invitee.ID); err == nil {
		return models.ProjectInvitation{}, ErrDuplicateCollaborator
	} else if !errors.Is(err, ErrNoCollaborator) {
		return models.ProjectInvitation{}, err
	}
	inv := models.ProjectInvitation{
		ID:                primitive.NewObjectID(),
		ProjectID:         projectID,
		InviteeID:         invitee.ID,
		InviterID:         inviter.ID,
		Permission:        string(permission),
		InviteeUsernameCI: invitee.UsernameCI,
		InviteeNameCI:     text.Fold(invitee.FullName()),
		InviterUsernameCI: inviter.UsernameCI,
		InviterNameCI:     text.Fold(inviter.FullName()),
		InvitedAt:         time.Now().UTC(),
	}
	if _, err := s.invitations.InsertOne(ctx, inv); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ProjectInvitation{}, ErrDuplicateInvitation
		}
		return models.ProjectInvitation{}, err
	}
	return inv, nil
}

// GetInvitation loads a pending project invitation by ObjectID.
func (s *Store) GetInvitation(ctx context.Context, id primitive.ObjectID) (models.ProjectInvitation, error) {
	var inv models.ProjectInvitation
	if err := s.invitations.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		return models.ProjectInvitation{}, err
	}
	return inv, nil
}

// AcceptInvitation converts the invitation into a collaborator record
// at the invited level. Only the invitee may accept; the insert
// consumes the invitation.
func (s *Store) AcceptInvitation(ctx context.Context, id primitive.ObjectID, actor models.User) (models.ProjectCollaborator, error) {
	inv, err := s.GetInvitation(ctx, id)
	if err != nil {
		return models.ProjectCollaborator{}, err
	}
	if inv.InviteeID != actor.ID {
		return models.ProjectCollaborator{}, ErrNotInvitee
	}
	return s.Add(ctx, inv.ProjectID, actor, permissions.Level(inv.Permission))
}

// DeleteInvitation withdraws a pending invitation. Authorization is the
// caller's concern.
func (s *Store) DeleteInvitation(ctx context.Context, id primitive.ObjectID) error {
	res, err := s.invitations.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return mongo.ErrNoDocuments
	}
	return nil
}

// ListInvitationsForInvitee returns the user's pending project
// invitations, newest first.
func (s *Store) ListInvitationsForInvitee(ctx context.Context, userID primitive.ObjectID) ([]models.ProjectInvitation, error) {
	return s.findInvitations(ctx, bson.M{"invitee_id": userID})
}

// ListInvitationsForProject returns a project's pending invitations,
// newest first.
func (s *Store) ListInvitationsForProject(ctx context.Context, projectID primitive.ObjectID) ([]models.ProjectInvitation, error) {
	return s.findInvitations(ctx, bson.M{"project_id": projectID})
}

func (s *Store) findInvitations(ctx context.Context, filter bson.M) ([]models.ProjectInvitation, error) {
	cur, err := s.invitations.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "invited_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var out []models.ProjectInvitation
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
