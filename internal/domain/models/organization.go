// internal/domain/models/organization.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Organization is owned by exactly one user. Membership, invitation,
// and ban records are child documents keyed by the organization ID and
// are removed when the organization is deleted.
type Organization struct {
	ID                primitive.ObjectID `bson:"_id"`
	OwnerID           primitive.ObjectID `bson:"owner_id"`
	Slug              string             `bson:"slug"`
	SlugCI            string             `bson:"slug_ci"` // ← always stored
	Name              string             `bson:"name"`
	NameCI            string             `bson:"name_ci"` // ← always stored
	Description       string             `bson:"description"`
	Public            bool               `bson:"public"`
	DefaultPermission string             `bson:"default_permission"`
	CreatedAt         time.Time          `bson:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at"`
}

// OrganizationMember is the (organization, member) join record.
// InvitedByID is nulled if the inviter is later removed; the membership
// itself is never cascaded by inviter removal.
type OrganizationMember struct {
	ID         primitive.ObjectID  `bson:"_id"`
	OrgID      primitive.ObjectID  `bson:"org_id"`
	MemberID   primitive.ObjectID  `bson:"member_id"`
	InvitedBy  *primitive.ObjectID `bson:"invited_by,omitempty"`
	Permission string              `bson:"permission"`
	// Denormalized for list search (member_username_ci etc.).
	MemberUsernameCI string    `bson:"member_username_ci"`
	MemberNameCI     string    `bson:"member_name_ci"`
	CreatedAt        time.Time `bson:"created_at"`
}

// OrganizationInvitation is the (organization, invitee, inviter) pending
// invitation. It is consumed (deleted) when accepted or withdrawn; a user
// can never hold both a membership and a pending invitation in the same
// organization.
type OrganizationInvitation struct {
	ID         primitive.ObjectID `bson:"_id"`
	OrgID      primitive.ObjectID `bson:"org_id"`
	InviteeID  primitive.ObjectID `bson:"invitee_id"`
	InviterID  primitive.ObjectID `bson:"inviter_id"`
	Permission string             `bson:"permission"`
	// Denormalized for list search.
	InviteeUsernameCI string    `bson:"invitee_username_ci"`
	InviteeNameCI     string    `bson:"invitee_name_ci"`
	InviterUsernameCI string    `bson:"inviter_username_ci"`
	InviterNameCI     string    `bson:"inviter_name_ci"`
	InvitedAt         time.Time `bson:"invited_at"`
}

// OrganizationBannedMember records a ban. Its existence excludes the user
// from membership creation and from every permission check on the
// organization, regardless of any other records. BannedByID is nulled if
// the banning actor is later removed.
type OrganizationBannedMember struct {
	ID       primitive.ObjectID  `bson:"_id"`
	OrgID    primitive.ObjectID  `bson:"org_id"`
	UserID   primitive.ObjectID  `bson:"user_id"`
	BannedBy *primitive.ObjectID `bson:"banned_by,omitempty"`
	Reason   string              `bson:"reason"`
	BannedAt time.Time           `bson:"banned_at"`
}
