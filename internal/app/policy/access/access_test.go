package access

import (
	"testing"

	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	"github.com/dalemusser/blockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestOrgOwnerBypassesEverything(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	org := f.CreateOrganization(ctx, "Acme", owner)

	ok, err := OrgHasPermission(ctx, db, org.ID, owner.ID, permissions.OrgAdmin)
	if err != nil {
		t.Fatalf("OrgHasPermission: %v", err)
	}
	if !ok {
		t.Fatal("owner should hold admin without a membership record")
	}
}

func TestOrgMembershipIsRankOrdered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	member := f.CreateUser(ctx, "member")
	org := f.CreateOrganization(ctx, "Acme", owner)
	f.AddOrgMember(ctx, org, member, "manage")

	cases := []struct {
		required permissions.Level
		want     bool
	}{
		{permissions.OrgView, true},
		{permissions.OrgContribute, true},
		{permissions.OrgInvite, true},
		{permissions.OrgManage, true},
		{permissions.OrgAdmin, false},
	}
	for _, tc := range cases {
		ok, err := OrgHasPermission(ctx, db, org.ID, member.ID, tc.required)
		if err != nil {
			t.Fatalf("required %s: %v", tc.required, err)
		}
		if ok != tc.want {
			t.Errorf("required %s: got %v, want %v", tc.required, ok, tc.want)
		}
	}
}

func TestBanVetoesMembershipAndOverrides(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	member := f.CreateUser(ctx, "member")
	org := f.CreateOrganization(ctx, "Acme", owner)
	f.AddOrgMember(ctx, org, member, "admin")
	f.BanUser(ctx, org, member, "spam")

	ok, err := OrgHasPermission(ctx, db, org.ID, member.ID, permissions.OrgView)
	if err != nil {
		t.Fatalf("OrgHasPermission: %v", err)
	}
	if ok {
		t.Fatal("banned member should have no access despite admin membership")
	}

	ok, err = OrgHasPermission(ctx, db, org.ID, member.ID, permissions.OrgView, WithOverrides(member.ID))
	if err != nil {
		t.Fatalf("OrgHasPermission: %v", err)
	}
	if ok {
		t.Fatal("ban must veto override users too")
	}
}

func TestOverrideGrantsWithoutMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	outsider := f.CreateUser(ctx, "outsider")
	org := f.CreateOrganization(ctx, "Acme", owner)

	ok, err := OrgHasPermission(ctx, db, org.ID, outsider.ID, permissions.OrgManage, WithOverrides(outsider.ID))
	if err != nil {
		t.Fatalf("OrgHasPermission: %v", err)
	}
	if !ok {
		t.Fatal("override user should be granted without a membership record")
	}
}

func TestMissingResourceIsNoAccessNotError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	user := f.CreateUser(ctx, "alice")

	ok, err := OrgHasPermission(ctx, db, primitive.NewObjectID(), user.ID, permissions.OrgView)
	if err != nil {
		t.Fatalf("missing org should not error, got %v", err)
	}
	if ok {
		t.Fatal("missing org should evaluate to no access")
	}

	ok, err = ProjectHasPermission(ctx, db, primitive.NewObjectID(), user.ID, permissions.ProjectView)
	if err != nil {
		t.Fatalf("missing project should not error, got %v", err)
	}
	if ok {
		t.Fatal("missing project should evaluate to no access")
	}
}

func TestProjectCollaboratorPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	collab := f.CreateUser(ctx, "collab")
	project := f.CreateProject(ctx, "game", owner)
	f.AddCollaborator(ctx, project, collab, "code")

	ok, err := ProjectHasPermission(ctx, db, project.ID, collab.ID, permissions.ProjectCode)
	if err != nil {
		t.Fatalf("ProjectHasPermission: %v", err)
	}
	if !ok {
		t.Fatal("collaborator with code should satisfy code")
	}

	ok, err = ProjectHasPermission(ctx, db, project.ID, collab.ID, permissions.ProjectAdmin)
	if err != nil {
		t.Fatalf("ProjectHasPermission: %v", err)
	}
	if ok {
		t.Fatal("collaborator with code must not satisfy admin")
	}
}

func TestProjectSharedOrgPath(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	member := f.CreateUser(ctx, "member")
	org := f.CreateOrganization(ctx, "Acme", owner)
	f.AddOrgMember(ctx, org, member, "view")
	project := f.CreateProject(ctx, "game", owner)
	f.ShareWithOrg(ctx, project, org, "code")

	// The link's project-scale level is what counts, not the user's
	// org-scale level.
	ok, err := ProjectHasPermission(ctx, db, project.ID, member.ID, permissions.ProjectCode)
	if err != nil {
		t.Fatalf("ProjectHasPermission: %v", err)
	}
	if !ok {
		t.Fatal("org member should get the link's code level")
	}

	ok, err = ProjectHasPermission(ctx, db, project.ID, member.ID, permissions.ProjectAdmin)
	if err != nil {
		t.Fatalf("ProjectHasPermission: %v", err)
	}
	if ok {
		t.Fatal("link at code must not satisfy admin")
	}
}

func TestProjectSharedOrgPathBanVeto(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	member := f.CreateUser(ctx, "member")
	org := f.CreateOrganization(ctx, "Acme", owner)
	f.AddOrgMember(ctx, org, member, "admin")
	f.BanUser(ctx, org, member, "spam")
	project := f.CreateProject(ctx, "game", owner)
	f.ShareWithOrg(ctx, project, org, "admin")

	ok, err := ProjectHasPermission(ctx, db, project.ID, member.ID, permissions.ProjectView)
	if err != nil {
		t.Fatalf("ProjectHasPermission: %v", err)
	}
	if ok {
		t.Fatal("ban must close the organizational path")
	}
}

func TestPublishedProjectViewBypass(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	stranger := f.CreateUser(ctx, "stranger")
	project := f.CreateProject(ctx, "game", owner)
	project = f.PublishProject(ctx, project)

	// Signed-in stranger and anonymous both get view.
	for _, actor := range []primitive.ObjectID{stranger.ID, primitive.NilObjectID} {
		ok, err := ProjectHasPermission(ctx, db, project.ID, actor, permissions.ProjectView)
		if err != nil {
			t.Fatalf("ProjectHasPermission: %v", err)
		}
		if !ok {
			t.Fatalf("published project should be viewable by %v", actor)
		}
	}

	// Bypass stops at view.
	ok, err := ProjectHasPermission(ctx, db, project.ID, stranger.ID, permissions.ProjectCode)
	if err != nil {
		t.Fatalf("ProjectHasPermission: %v", err)
	}
	if ok {
		t.Fatal("publication must not grant code")
	}

	// And callers can switch it off entirely.
	ok, err = ProjectHasPermission(ctx, db, project.ID, stranger.ID, permissions.ProjectView, WithoutPublishedBypass())
	if err != nil {
		t.Fatalf("ProjectHasPermission: %v", err)
	}
	if ok {
		t.Fatal("bypass disabled: stranger should have no access")
	}
}

func TestAnonymousHasNoAccessToUnpublished(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	project := f.CreateProject(ctx, "game", owner)

	ok, err := ProjectHasPermission(ctx, db, project.ID, primitive.NilObjectID, permissions.ProjectView)
	if err != nil {
		t.Fatalf("ProjectHasPermission: %v", err)
	}
	if ok {
		t.Fatal("anonymous should have no access to an unpublished project")
	}
}
