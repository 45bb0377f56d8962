// internal/app/realtime/presence/presence.go
// Package presence tracks who is connected to each collaboration group.
//
// Entries are ordered by arrival. The same user may appear more than
// once (one entry per connection); duplicates are intentional so that a
// second tab does not hide the first. The leader of a group is the user
// of the oldest surviving entry.
package presence

import (
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Entry is one connection's presence record.
type Entry struct {
	ConnID   string
	UserID   primitive.ObjectID
	Username string
	JoinedAt time.Time
}

type group struct {
	mu      sync.Mutex
	entries []Entry
}

// Registry is the in-process presence table. Each group has its own
// lock, so traffic on one project does not serialize with another.
type Registry struct {
	mu     sync.Mutex
	groups map[string]*group
}

func NewRegistry() *Registry {
	return &Registry{groups: make(map[string]*group)}
}

func (r *Registry) group(name string, create bool) *group {
	r.mu.Lock()
	defer r.mu.Unlock()
	g := r.groups[name]
	if g == nil && create {
		g = &group{}
		r.groups[name] = g
	}
	return g
}

// Join appends an entry to the group's list. A zero JoinedAt is stamped
// with the current time.
func (r *Registry) Join(name string, e Entry) {
	if e.JoinedAt.IsZero() {
		e.JoinedAt = time.Now().UTC()
	}
	g := r.group(name, true)
	g.mu.Lock()
	g.entries = append(g.entries, e)
	g.mu.Unlock()
}

// Leave removes the entry with the given connection ID and returns it.
// Other entries of the same user survive. An empty group is forgotten.
func (r *Registry) Leave(name, connID string) (Entry, bool) {
	g := r.group(name, false)
	if g == nil {
		return Entry{}, false
	}
	g.mu.Lock()
	var removed Entry
	found := false
	for i, e := range g.entries {
		if e.ConnID == connID {
			removed = e
			g.entries = append(g.entries[:i], g.entries[i+1:]...)
			found = true
			break
		}
	}
	empty := len(g.entries) == 0
	g.mu.Unlock()

	if empty {
		r.mu.Lock()
		if g2 := r.groups[name]; g2 == g {
			g2.mu.Lock()
			if len(g2.entries) == 0 {
				delete(r.groups, name)
			}
			g2.mu.Unlock()
		}
		r.mu.Unlock()
	}
	return removed, found
}

// List returns a copy of the group's entries in arrival order.
func (r *Registry) List(name string) []Entry {
	g := r.group(name, false)
	if g == nil {
		return nil
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]Entry, len(g.entries))
	copy(out, g.entries)
	return out
}

// Leader returns the oldest surviving entry. ok is false for an empty
// group.
func (r *Registry) Leader(name string) (Entry, bool) {
	g := r.group(name, false)
	if g == nil {
		return Entry{}, false
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.entries) == 0 {
		return Entry{}, false
	}
	return g.entries[0], true
}

// Count returns the number of entries (connections, not distinct users)
// in the group.
func (r *Registry) Count(name string) int {
	g := r.group(name, false)
	if g == nil {
		return 0
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
