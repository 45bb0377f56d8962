package memberstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/blockhub/internal/app/policy/permissions"
	"github.com/dalemusser/blockhub/internal/testutil"
	"go.mongodb.org/mongo-driver/bson"
)

func TestAddAndEffectivePermission(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	member := f.CreateUser(ctx, "member")
	org := f.CreateOrganization(ctx, "Acme", owner)

	s := New(db)
	m, err := s.Add(ctx, org.ID, member, permissions.OrgContribute, nil)
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if m.MemberUsernameCI == "" {
		t.Error("denormalized username should be stored")
	}

	level, ok, err := s.EffectivePermission(ctx, org, member.ID)
	if err != nil {
		t.Fatalf("EffectivePermission: %v", err)
	}
	if !ok || level != permissions.OrgContribute {
		t.Fatalf("got (%s, %v), want (contribute, true)", level, ok)
	}

	level, ok, err = s.EffectivePermission(ctx, org, owner.ID)
	if err != nil {
		t.Fatalf("EffectivePermission(owner): %v", err)
	}
	if !ok || level != permissions.Owner {
		t.Fatalf("owner: got (%s, %v), want (owner, true)", level, ok)
	}

	stranger := f.CreateUser(ctx, "stranger")
	_, ok, err = s.EffectivePermission(ctx, org, stranger.ID)
	if err != nil {
		t.Fatalf("EffectivePermission(stranger): %v", err)
	}
	if ok {
		t.Fatal("stranger should have no effective permission")
	}
}

func TestAddRejectsDuplicateAndBanned(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	member := f.CreateUser(ctx, "member")
	banned := f.CreateUser(ctx, "banned")
	org := f.CreateOrganization(ctx, "Acme", owner)
	f.BanUser(ctx, org, banned, "spam")

	s := New(db)
	if _, err := s.Add(ctx, org.ID, member, permissions.OrgView, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if _, err := s.Add(ctx, org.ID, member, permissions.OrgAdmin, nil); !errors.Is(err, ErrDuplicateMembership) {
		t.Fatalf("duplicate add: got %v, want ErrDuplicateMembership", err)
	}
	if _, err := s.Add(ctx, org.ID, banned, permissions.OrgView, nil); !errors.Is(err, ErrBannedMember) {
		t.Fatalf("banned add: got %v, want ErrBannedMember", err)
	}
}

func TestAddConsumesPendingInvitation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	member := f.CreateUser(ctx, "member")
	org := f.CreateOrganization(ctx, "Acme", owner)
	f.InviteToOrg(ctx, org, member, owner, "view")

	s := New(db)
	if _, err := s.Add(ctx, org.ID, member, permissions.OrgView, &owner.ID); err != nil {
		t.Fatalf("Add: %v", err)
	}

	n, err := db.Collection("organization_invitations").CountDocuments(ctx, bson.M{
		"org_id": org.ID, "invitee_id": member.ID,
	})
	if err != nil {
		t.Fatalf("count invitations: %v", err)
	}
	if n != 0 {
		t.Fatalf("pending invitation should be consumed, %d remain", n)
	}
}

func TestBanHidesLingeringMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	member := f.CreateUser(ctx, "member")
	org := f.CreateOrganization(ctx, "Acme", owner)

	s := New(db)
	if _, err := s.Add(ctx, org.ID, member, permissions.OrgAdmin, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	f.BanUser(ctx, org, member, "spam")

	_, ok, err := s.EffectivePermission(ctx, org, member.ID)
	if err != nil {
		t.Fatalf("EffectivePermission: %v", err)
	}
	if ok {
		t.Fatal("ban should hide the membership record")
	}
}

func TestRemoveAndUpdatePermission(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	member := f.CreateUser(ctx, "member")
	org := f.CreateOrganization(ctx, "Acme", owner)

	s := New(db)
	if _, err := s.Add(ctx, org.ID, member, permissions.OrgView, nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := s.UpdatePermission(ctx, org.ID, member.ID, permissions.OrgManage); err != nil {
		t.Fatalf("UpdatePermission: %v", err)
	}
	m, err := s.Get(ctx, org.ID, member.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if m.Permission != "manage" {
		t.Fatalf("permission = %q, want manage", m.Permission)
	}

	if err := s.Remove(ctx, org.ID, member.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, org.ID, member.ID); !errors.Is(err, ErrNoMembership) {
		t.Fatalf("second remove: got %v, want ErrNoMembership", err)
	}
}
