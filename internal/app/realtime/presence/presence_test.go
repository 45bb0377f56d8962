package presence

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func entry(conn string, user primitive.ObjectID, name string) Entry {
	return Entry{ConnID: conn, UserID: user, Username: name}
}

func TestJoinLeaveOrdering(t *testing.T) {
	r := NewRegistry()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	r.Join("project_1", entry("c1", alice, "alice"))
	r.Join("project_1", entry("c2", bob, "bob"))

	list := r.List("project_1")
	require.Len(t, list, 2)
	assert.Equal(t, "alice", list[0].Username)
	assert.Equal(t, "bob", list[1].Username)

	removed, ok := r.Leave("project_1", "c1")
	require.True(t, ok)
	assert.Equal(t, alice, removed.UserID)

	list = r.List("project_1")
	require.Len(t, list, 1)
	assert.Equal(t, "bob", list[0].Username)
}

func TestDuplicateUserKeepsBothEntries(t *testing.T) {
	r := NewRegistry()
	alice := primitive.NewObjectID()

	r.Join("g", entry("tab1", alice, "alice"))
	r.Join("g", entry("tab2", alice, "alice"))
	require.Equal(t, 2, r.Count("g"))

	// Closing one tab must not evict the other.
	_, ok := r.Leave("g", "tab1")
	require.True(t, ok)
	assert.Equal(t, 1, r.Count("g"))
	lead, ok := r.Leader("g")
	require.True(t, ok)
	assert.Equal(t, "tab2", lead.ConnID)
}

func TestLeaderIsOldestSurvivor(t *testing.T) {
	r := NewRegistry()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()
	carol := primitive.NewObjectID()

	r.Join("g", entry("c1", alice, "alice"))
	r.Join("g", entry("c2", bob, "bob"))
	r.Join("g", entry("c3", carol, "carol"))

	lead, ok := r.Leader("g")
	require.True(t, ok)
	assert.Equal(t, alice, lead.UserID)

	// Leadership passes to the next-oldest on departure.
	r.Leave("g", "c1")
	lead, ok = r.Leader("g")
	require.True(t, ok)
	assert.Equal(t, bob, lead.UserID)

	r.Leave("g", "c2")
	r.Leave("g", "c3")
	_, ok = r.Leader("g")
	assert.False(t, ok)
}

func TestLeaveUnknown(t *testing.T) {
	r := NewRegistry()
	_, ok := r.Leave("nope", "c1")
	assert.False(t, ok)

	r.Join("g", entry("c1", primitive.NewObjectID(), "alice"))
	_, ok = r.Leave("g", "other-conn")
	assert.False(t, ok)
	assert.Equal(t, 1, r.Count("g"))
}

func TestGroupsAreIndependent(t *testing.T) {
	r := NewRegistry()
	alice := primitive.NewObjectID()
	bob := primitive.NewObjectID()

	r.Join("project_1", entry("c1", alice, "alice"))
	r.Join("project_2", entry("c2", bob, "bob"))

	assert.Equal(t, 1, r.Count("project_1"))
	assert.Equal(t, 1, r.Count("project_2"))
	lead1, ok := r.Leader("project_1")
	require.True(t, ok)
	assert.Equal(t, alice, lead1.UserID)
	lead2, ok := r.Leader("project_2")
	require.True(t, ok)
	assert.Equal(t, bob, lead2.UserID)
}

func TestConcurrentJoinLeave(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conn := fmt.Sprintf("c%d", i)
			r.Join("g", entry(conn, primitive.NewObjectID(), "u"))
			r.List("g")
			r.Leave("g", conn)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 0, r.Count("g"))
}
