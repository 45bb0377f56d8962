package banstore

import (
	"errors"
	"testing"
	"time"

	"github.com/dalemusser/blockhub/internal/testutil"
)

func TestBanRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	target := f.CreateUser(ctx, "target")
	org := f.CreateOrganization(ctx, "Acme", owner)

	s := New(db)
	b, err := s.Add(ctx, org.ID, target.ID, &owner.ID, "spam")
	if err != nil {
		t.Fatalf("Add: %v", err)
	}
	if b.Reason != "spam" || b.BannedBy == nil || *b.BannedBy != owner.ID {
		t.Fatal("ban record should carry the reason and the issuing user")
	}
	if _, err := s.Add(ctx, org.ID, target.ID, &owner.ID, "again"); !errors.Is(err, ErrDuplicateBan) {
		t.Fatalf("got %v, want ErrDuplicateBan", err)
	}

	banned, err := s.IsBanned(ctx, org.ID, target.ID)
	if err != nil {
		t.Fatalf("IsBanned: %v", err)
	}
	if !banned {
		t.Fatal("IsBanned = false after Add")
	}

	if err := s.Remove(ctx, org.ID, target.ID); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if err := s.Remove(ctx, org.ID, target.ID); !errors.Is(err, ErrNoBan) {
		t.Fatalf("got %v, want ErrNoBan", err)
	}
}

func TestListByOrgNewestFirst(t *testing.T) {
	db := testutil.SetupTestDB(t)
	f := testutil.NewFixtures(t, db)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	owner := f.CreateUser(ctx, "owner")
	org := f.CreateOrganization(ctx, "Acme", owner)

	s := New(db)
	for _, name := range []string{"first", "second", "third"} {
		u := f.CreateUser(ctx, name)
		if _, err := s.Add(ctx, org.ID, u.ID, &owner.ID, name); err != nil {
			t.Fatalf("Add %s: %v", name, err)
		}
		// BSON stores timestamps at millisecond precision; keep the
		// three bans distinguishable.
		time.Sleep(5 * time.Millisecond)
	}

	bans, err := s.ListByOrg(ctx, org.ID)
	if err != nil {
		t.Fatalf("ListByOrg: %v", err)
	}
	if len(bans) != 3 {
		t.Fatalf("len = %d, want 3", len(bans))
	}
	for i, reason := range []string{"third", "second", "first"} {
		if bans[i].Reason != reason {
			t.Fatalf("bans[%d].Reason = %q, want %q (newest first)", i, bans[i].Reason, reason)
		}
	}
}
