// internal/app/features/projects/types.go
package projects

import (
	"time"

	"github.com/dalemusser/blockhub/internal/domain/models"
)

type projectResponse struct {
	ID          string              `json:"id"`
	OwnerID     string              `json:"owner_id"`
	GroupID     string              `json:"group_id,omitempty"`
	Name        string              `json:"name"`
	Description string              `json:"description"`
	State       models.ProjectState `json:"state"`
	Published   bool                `json:"published"`
	PublishedAt *time.Time          `json:"published_at,omitempty"`
	ForkedBy    []string            `json:"forked_by,omitempty"`
	CreatedAt   time.Time           `json:"created_at"`
	UpdatedAt   time.Time           `json:"updated_at"`
}

func projectJSON(p models.Project) projectResponse {
	resp := projectResponse{
		ID:          p.ID.Hex(),
		OwnerID:     p.OwnerID.Hex(),
		Name:        p.Name,
		Description: p.Description,
		State:       p.State,
		Published:   p.Published(),
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.GroupID != nil {
		resp.GroupID = p.GroupID.Hex()
	}
	for _, id := range p.ForkedBy {
		resp.ForkedBy = append(resp.ForkedBy, id.Hex())
	}
	return resp
}

// summaryJSON omits the (potentially large) state document from list
// responses.
type projectSummary struct {
	ID          string     `json:"id"`
	OwnerID     string     `json:"owner_id"`
	GroupID     string     `json:"group_id,omitempty"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Published   bool       `json:"published"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func summaryJSON(p models.Project) projectSummary {
	resp := projectSummary{
		ID:          p.ID.Hex(),
		OwnerID:     p.OwnerID.Hex(),
		Name:        p.Name,
		Description: p.Description,
		Published:   p.Published(),
		PublishedAt: p.PublishedAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
	if p.GroupID != nil {
		resp.GroupID = p.GroupID.Hex()
	}
	return resp
}

type collaboratorResponse struct {
	User       models.PublicUser `json:"user"`
	Permission string            `json:"permission"`
	CreatedAt  time.Time         `json:"created_at"`
}

type invitationResponse struct {
	ID         string            `json:"id"`
	ProjectID  string            `json:"project_id"`
	Invitee    models.PublicUser `json:"invitee"`
	Inviter    models.PublicUser `json:"inviter"`
	Permission string            `json:"permission"`
	InvitedAt  time.Time         `json:"invited_at"`
}

type shareResponse struct {
	OrgID      string    `json:"org_id"`
	ProjectID  string    `json:"project_id"`
	Permission string    `json:"permission"`
	CreatedAt  time.Time `json:"created_at"`
}

type groupResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

func groupJSON(g models.ProjectGroup) groupResponse {
	return groupResponse{ID: g.ID.Hex(), Name: g.Name, CreatedAt: g.CreatedAt}
}
