// internal/app/features/organizations/types.go
package organizations

import (
	"time"

	"github.com/dalemusser/blockhub/internal/domain/models"
)

type orgResponse struct {
	ID                string    `json:"id"`
	Slug              string    `json:"slug"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Public            bool      `json:"public"`
	DefaultPermission string    `json:"default_permission"`
	OwnerID           string    `json:"owner_id"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

func orgJSON(o models.Organization) orgResponse {
	return orgResponse{
		ID:                o.ID.Hex(),
		Slug:              o.Slug,
		Name:              o.Name,
		Description:       o.Description,
		Public:            o.Public,
		DefaultPermission: o.DefaultPermission,
		OwnerID:           o.OwnerID.Hex(),
		CreatedAt:         o.CreatedAt,
		UpdatedAt:         o.UpdatedAt,
	}
}

type memberResponse struct {
	User       models.PublicUser `json:"user"`
	Permission string            `json:"permission"`
	InvitedBy  string            `json:"invited_by,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

type invitationResponse struct {
	ID         string            `json:"id"`
	OrgID      string            `json:"org_id"`
	Invitee    models.PublicUser `json:"invitee"`
	Inviter    models.PublicUser `json:"inviter"`
	Permission string            `json:"permission"`
	InvitedAt  time.Time         `json:"invited_at"`
}

type banResponse struct {
	User     models.PublicUser `json:"user"`
	Reason   string            `json:"reason"`
	BannedBy string            `json:"banned_by,omitempty"`
	BannedAt time.Time         `json:"banned_at"`
}
