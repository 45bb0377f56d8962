package projectstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	"github.com/dalemusser/blockhub/internal/domain/models"
	"github.com/dalemusser/blockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestForkCopiesStateButNotSharing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	forker := f.CreateUser(ctx, "forker")
	org := f.CreateOrganization(ctx, "Acme", owner)

	s := New(db)
	src, err := s.Create(ctx, models.Project{
		OwnerID:     owner.ID,
		Name:        "Maze Runner",
		Description: "a maze game",
		State: models.ProjectState{
			Blocks:    bson.M{"root": "start"},
			GameState: bson.M{"level": 3},
		},
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Publish(ctx, src.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if _, err := s.Share(ctx, src.ID, org.ID, permissions.ProjectView); err != nil {
		t.Fatalf("Share: %v", err)
	}
	src, err = s.GetByID(ctx, src.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}

	fork, err := s.Fork(ctx, src, forker)
	if err != nil {
		t.Fatalf("Fork: %v", err)
	}
	if fork.Name != "Maze Runner - Fork" {
		t.Errorf("fork name = %q", fork.Name)
	}
	if fork.OwnerID != forker.ID {
		t.Error("fork should be owned by the forking user")
	}
	if fork.Published() {
		t.Error("fork must start unpublished")
	}
	if fork.GroupID != nil {
		t.Error("fork must not inherit a group")
	}
	if fork.State.Blocks["root"] != "start" {
		t.Error("fork should carry the full document state")
	}

	orgIDs, err := s.SharedOrgIDs(ctx, fork.ID)
	if err != nil {
		t.Fatalf("SharedOrgIDs: %v", err)
	}
	if len(orgIDs) != 0 {
		t.Error("fork must not inherit organization links")
	}

	src, err = s.GetByID(ctx, src.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if len(src.ForkedBy) != 1 || src.ForkedBy[0] != forker.ID {
		t.Errorf("source forked_by = %v, want [forker]", src.ForkedBy)
	}
}

func TestPublishUnpublish(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	s := New(db)
	p, err := s.Create(ctx, models.Project{OwnerID: owner.ID, Name: "game"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if p.Published() {
		t.Fatal("new project should start unpublished")
	}

	if err := s.Publish(ctx, p.ID); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	p, _ = s.GetByID(ctx, p.ID)
	if !p.Published() {
		t.Fatal("project should be published")
	}

	if err := s.Unpublish(ctx, p.ID); err != nil {
		t.Fatalf("Unpublish: %v", err)
	}
	p, _ = s.GetByID(ctx, p.ID)
	if p.Published() {
		t.Fatal("project should be unpublished")
	}
}

func TestShareUnshare(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	org := f.CreateOrganization(ctx, "Acme", owner)
	s := New(db)
	p, err := s.Create(ctx, models.Project{OwnerID: owner.ID, Name: "game"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if _, err := s.Share(ctx, p.ID, org.ID, permissions.ProjectCode); err != nil {
		t.Fatalf("Share: %v", err)
	}
	if _, err := s.Share(ctx, p.ID, org.ID, permissions.ProjectView); !errors.Is(err, ErrDuplicateShare) {
		t.Fatalf("re-share: got %v, want ErrDuplicateShare", err)
	}

	links, err := s.ListForOrg(ctx, org.ID, permissions.ProjectScale.AllowedFor(permissions.ProjectCode))
	if err != nil {
		t.Fatalf("ListForOrg: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("links = %d, want 1", len(links))
	}

	if err := s.Unshare(ctx, p.ID, org.ID); err != nil {
		t.Fatalf("Unshare: %v", err)
	}
	if err := s.Unshare(ctx, p.ID, org.ID); !errors.Is(err, ErrNotShared) {
		t.Fatalf("second unshare: got %v, want ErrNotShared", err)
	}
}

func TestDeleteCascadesDependents(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	collab := f.CreateUser(ctx, "collab")
	org := f.CreateOrganization(ctx, "Acme", owner)

	s := New(db)
	p, err := s.Create(ctx, models.Project{OwnerID: owner.ID, Name: "game"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.AddCollaborator(ctx, p, collab, "code")
	if _, err := s.Share(ctx, p.ID, org.ID, permissions.ProjectView); err != nil {
		t.Fatalf("Share: %v", err)
	}

	if err := s.Delete(ctx, p.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	for _, col := range []string{"project_collaborators", "organization_projects", "project_invitations"} {
		n, err := db.Collection(col).CountDocuments(ctx, bson.M{"project_id": p.ID})
		if err != nil {
			t.Fatalf("count %s: %v", col, err)
		}
		if n != 0 {
			t.Errorf("%s: %d records survived project deletion", col, n)
		}
	}
}

func TestDeleteGroupClearsProjectReferences(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	s := New(db)
	g, err := s.CreateGroup(ctx, owner.ID, "school work")
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	p, err := s.Create(ctx, models.Project{OwnerID: owner.ID, Name: "game", GroupID: &g.ID})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	if err := s.DeleteGroup(ctx, g.ID); err != nil {
		t.Fatalf("DeleteGroup: %v", err)
	}
	p, err = s.GetByID(ctx, p.ID)
	if err != nil {
		t.Fatalf("project must survive group deletion: %v", err)
	}
	if p.GroupID != nil {
		t.Fatal("project group reference should be cleared")
	}
}

func TestSaveState(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	s := New(db)
	p, err := s.Create(ctx, models.Project{OwnerID: owner.ID, Name: "game"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	state := models.ProjectState{
		Blocks:    bson.M{"root": "when_run"},
		GameState: bson.M{"score": int32(10)},
		Assets:    []bson.M{{"name": "sprite.png"}},
	}
	if err := s.SaveState(ctx, p.ID, state); err != nil {
		t.Fatalf("SaveState: %v", err)
	}
	p, _ = s.GetByID(ctx, p.ID)
	if p.State.Blocks["root"] != "when_run" {
		t.Errorf("blocks = %v", p.State.Blocks)
	}
	if len(p.State.Assets) != 1 {
		t.Errorf("assets = %v", p.State.Assets)
	}
}
