package userstore

import (
	"errors"
	"testing"

	"github.com/dalemusser/blockhub/internal/testutil"
)

func TestCreateAndAuthenticate(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s := New(db)
	u, err := s.Create(ctx, NewUser{
		Username:  "Ada.Lovelace",
		Email:     "ada@example.com",
		Password:  "correct horse",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if u.PasswordHash == "correct horse" {
		t.Fatal("password must not be stored in plaintext")
	}
	if u.UsernameCI != "ada.lovelace" {
		t.Errorf("username_ci = %q", u.UsernameCI)
	}

	// Login is case-insensitive on the username.
	got, err := s.Authenticate(ctx, "ADA.LOVELACE", "correct horse")
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatal("authenticated the wrong user")
	}

	if _, err := s.Authenticate(ctx, "ada.lovelace", "wrong"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("wrong password: got %v, want ErrBadCredentials", err)
	}
	if _, err := s.Authenticate(ctx, "nobody", "correct horse"); !errors.Is(err, ErrBadCredentials) {
		t.Fatalf("unknown user: got %v, want ErrBadCredentials", err)
	}
}

func TestCreateValidation(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s := New(db)
	if _, err := s.Create(ctx, NewUser{Username: "has spaces", Email: "a@b.c", Password: "longenough"}); err == nil {
		t.Error("username with spaces should be rejected")
	}
	if _, err := s.Create(ctx, NewUser{Username: "ok", Email: "a@b.c", Password: "short"}); err == nil {
		t.Error("short password should be rejected")
	}
}

func TestUpdatePassword(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s := New(db)
	u, err := s.Create(ctx, NewUser{Username: "bob", Email: "bob@example.com", Password: "first-pass"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.UpdatePassword(ctx, u.ID, "second-pass"); err != nil {
		t.Fatalf("UpdatePassword: %v", err)
	}
	if _, err := s.Authenticate(ctx, "bob", "first-pass"); !errors.Is(err, ErrBadCredentials) {
		t.Fatal("old password should stop working")
	}
	if _, err := s.Authenticate(ctx, "bob", "second-pass"); err != nil {
		t.Fatalf("new password: %v", err)
	}
}

func TestGetByUsernameIsCaseInsensitive(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	s := New(db)
	u, err := s.Create(ctx, NewUser{Username: "Grace", Email: "grace@example.com", Password: "longenough"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	got, err := s.GetByUsername(ctx, "gRaCe")
	if err != nil {
		t.Fatalf("GetByUsername: %v", err)
	}
	if got.ID != u.ID {
		t.Fatal("lookup returned the wrong user")
	}
}
