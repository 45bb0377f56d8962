// internal/domain/models/project.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProjectGroup is an owner-private folder for projects. Deleting a group
// nulls the group reference on its projects rather than deleting them.
type ProjectGroup struct {
	ID        primitive.ObjectID `bson:"_id"`
	OwnerID   primitive.ObjectID `bson:"owner_id"`
	Name      string             `bson:"name"`
	NameCI    string             `bson:"name_ci"`
	CreatedAt time.Time          `bson:"created_at"`
}

// ProjectState is the collaboratively edited document payload, split into
// its named sub-parts: the block program, the runtime/game state, and the
// auxiliary asset list.
type ProjectState struct {
	Blocks    bson.M   `bson:"blocks" json:"blocks"`
	GameState bson.M   `bson:"game_state" json:"game_state"`
	Assets    []bson.M `bson:"assets" json:"assets"`
}

// Project is owned by exactly one user. A nil PublishedAt means
// unpublished; a published project is viewable by anyone unless the
// caller disables the publication bypass (realtime admission does).
type Project struct {
	ID          primitive.ObjectID   `bson:"_id"`
	OwnerID     primitive.ObjectID   `bson:"owner_id"`
	GroupID     *primitive.ObjectID  `bson:"group_id,omitempty"`
	Name        string               `bson:"name"`
	NameCI      string               `bson:"name_ci"` // ← always stored
	Description string               `bson:"description"`
	State       ProjectState         `bson:"state"`
	PublishedAt *time.Time           `bson:"published_at,omitempty"`
	ForkedBy    []primitive.ObjectID `bson:"forked_by,omitempty"`
	CreatedAt   time.Time            `bson:"created_at"`
	UpdatedAt   time.Time            `bson:"updated_at"`
}

// Published reports whether the project has been published.
func (p Project) Published() bool { return p.PublishedAt != nil }

// ProjectCollaborator is the (project, collaborator) join record with a
// project-scale permission.
type ProjectCollaborator struct {
	ID               primitive.ObjectID `bson:"_id"`
	ProjectID        primitive.ObjectID `bson:"project_id"`
	CollaboratorID   primitive.ObjectID `bson:"collaborator_id"`
	Permission       string             `bson:"permission"`
	CollabUsernameCI string             `bson:"collab_username_ci"`
	CollabNameCI     string             `bson:"collab_name_ci"`
	CreatedAt        time.Time          `bson:"created_at"`
}

// OrganizationProject shares a project with an organization. The link
// carries its own project-scale permission; every organization a project
// is shared with contributes an independent access path for that
// organization's members.
type OrganizationProject struct {
	ID         primitive.ObjectID `bson:"_id"`
	OrgID      primitive.ObjectID `bson:"org_id"`
	ProjectID  primitive.ObjectID `bson:"project_id"`
	Permission string             `bson:"permission"`
	CreatedAt  time.Time          `bson:"created_at"`
}

// ProjectInvitation mirrors OrganizationInvitation for projects.
type ProjectInvitation struct {
	ID                primitive.ObjectID `bson:"_id"`
	ProjectID         primitive.ObjectID `bson:"project_id"`
	InviteeID         primitive.ObjectID `bson:"invitee_id"`
	InviterID         primitive.ObjectID `bson:"inviter_id"`
	Permission        string             `bson:"permission"`
	InviteeUsernameCI string             `bson:"invitee_username_ci"`
	InviteeNameCI     string             `bson:"invitee_name_ci"`
	InviterUsernameCI string             `bson:"inviter_username_ci"`
	InviterNameCI     string             `bson:"inviter_name_ci"`
	InvitedAt         time.Time          `bson:"invited_at"`
}
