package search

import (
	"testing"

	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func projectEngine() Engine {
	return Engine{
		SearchFields: []Field{F("name")},
		OrderFields: []Field{
			{Alias: "id", Path: "_id"},
			{Alias: "created_at", Path: "created_at"},
			{Alias: "updated_at", Path: "updated_at"},
			{Alias: "owner", Path: "owner_username", CI: true},
			F("name"),
		},
	}
}

func TestFilterEmptyQuery(t *testing.T) {
	if got := projectEngine().Filter(""); got != nil {
		t.Errorf("Filter(\"\") = %v, want nil", got)
	}
	if got := projectEngine().Filter("   "); got != nil {
		t.Errorf("Filter(blank) = %v, want nil", got)
	}
}

func TestFilterBuildsOrAcrossFields(t *testing.T) {
	e := Engine{SearchFields: []Field{F("invitee_username"), F("invitee_name"), F("inviter_username")}}
	f := e.Filter("alice")

	or, ok := f["$or"].([]bson.M)
	if !ok {
		t.Fatalf("filter missing $or clause: %v", f)
	}
	if len(or) != 3 {
		t.Fatalf("got %d clauses, want 3", len(or))
	}
	if _, ok := or[0]["invitee_username_ci"]; !ok {
		t.Errorf("first clause should target invitee_username_ci: %v", or[0])
	}
}

func TestFilterQuotesRegexMeta(t *testing.T) {
	e := Engine{SearchFields: []Field{F("name")}}
	f := e.Filter("a.b*")
	or := f["$or"].([]bson.M)
	re := or[0]["name_ci"].(primitive.Regex)
	if re.Pattern != `a\.b\*` {
		t.Errorf("pattern = %q, want regexp-quoted input", re.Pattern)
	}
}

func TestSortResolvesAliasesAndDirections(t *testing.T) {
	sort, err := projectEngine().Sort("-updated_at,owner,+name")
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	want := bson.D{
		{Key: "updated_at", Value: -1},
		{Key: "owner_username_ci", Value: 1},
		{Key: "name_ci", Value: 1},
	}
	if len(sort) != len(want) {
		t.Fatalf("got %d keys, want %d", len(sort), len(want))
	}
	for i := range want {
		if sort[i] != want[i] {
			t.Errorf("sort[%d] = %v, want %v", i, sort[i], want[i])
		}
	}
}

func TestSortUnknownAlias(t *testing.T) {
	_, err := projectEngine().Sort("name,-bogus")
	if err == nil {
		t.Fatal("expected error for unknown ordering field")
	}
	if apierr.KindOf(err) != apierr.Invalid {
		t.Errorf("kind = %v, want Invalid", apierr.KindOf(err))
	}
	// The offending token (with its prefix) must be named.
	if got := err.Error(); got != `unknown ordering field "-bogus"` {
		t.Errorf("message = %q", got)
	}
}

func TestSortEmptyOrdering(t *testing.T) {
	sort, err := projectEngine().Sort("")
	if err != nil || sort != nil {
		t.Errorf("Sort(\"\") = %v, %v; want nil, nil", sort, err)
	}
}

func TestSortSkipsEmptyTokens(t *testing.T) {
	sort, err := projectEngine().Sort("name,,")
	if err != nil {
		t.Fatalf("Sort failed: %v", err)
	}
	if len(sort) != 1 {
		t.Errorf("got %d keys, want 1", len(sort))
	}
}
