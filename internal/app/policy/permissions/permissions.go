// internal/app/policy/permissions/permissions.go
// Package permissions defines the ordered capability scales used by
// organizations and projects, with pure rank lookups. A holder of a level
// satisfies any requirement at or below that level's rank.
package permissions

// Level is a named capability on one of the scales.
type Level string

// Organization scale, least to most capable.
const (
	OrgView       Level = "view"
	OrgContribute Level = "contribute"
	OrgInvite     Level = "invite"
	OrgManage     Level = "manage"
	OrgAdmin      Level = "admin"
)

// Project scale, least to most capable.
const (
	ProjectView   Level = "view"
	ProjectCode   Level = "code"
	ProjectInvite Level = "invite"
	ProjectAdmin  Level = "admin"
)

// Owner is a sentinel outside both scales: only the literal resource
// owner passes an owner-level requirement, so AllowedFor(Owner) is empty.
const Owner Level = "owner"

// Scale is an ordered sequence of levels from least to most capable.
// The ordering is the single source of truth for rank comparisons.
type Scale []Level

// OrgScale orders organization permissions.
var OrgScale = Scale{OrgView, OrgContribute, OrgInvite, OrgManage, OrgAdmin}

// ProjectScale orders project permissions.
var ProjectScale = Scale{ProjectView, ProjectCode, ProjectInvite, ProjectAdmin}

// Rank returns the position of level on the scale, or -1 if the level is
// not part of it.
func (s Scale) Rank(level Level) int {
	for i, l := range s {
		if l == level {
			return i
		}
	}
	return -1
}

// Valid reports whether level belongs to the scale.
func (s Scale) Valid(level Level) bool { return s.Rank(level) >= 0 }

// AllowedFor returns required and every more-capable level after it in
// the ordering: the set of held levels that satisfy a requirement of
// required. An unknown required level yields nil (nothing satisfies it).
//
// The result is a fresh slice each call; callers feed it straight into
// membership queries ($in filters) and may modify it.
func (s Scale) AllowedFor(required Level) []Level {
	i := s.Rank(required)
	if i < 0 {
		return nil
	}
	out := make([]Level, len(s)-i)
	copy(out, s[i:])
	return out
}

// Satisfies reports whether holding held meets a requirement of required.
// Either level being unknown to the scale fails the check.
func (s Scale) Satisfies(held, required Level) bool {
	h, r := s.Rank(held), s.Rank(required)
	return h >= 0 && r >= 0 && h >= r
}

// Strings converts levels to their string forms for query filters.
func Strings(levels []Level) []string {
	out := make([]string, len(levels))
	for i, l := range levels {
		out[i] = string(l)
	}
	return out
}
