// internal/app/system/search/search.go
// Package search interprets the generic `search` and `ordering` query
// parameters for list endpoints.
//
// An endpoint declares its searchable and orderable fields once. Search
// OR-matches a case-insensitive substring across all declared search
// fields; ordering composes a multi-key sort from comma-separated tokens,
// each optionally prefixed with '+' or '-'. Relation-traversal fields are
// served by denormalized companion values on the document (the same
// pattern as the *_ci fields used for case-insensitive matching).
package search

import (
	"regexp"
	"strings"

	"github.com/dalemusser/blockhub/internal/app/system/apierr"
	"github.com/dalemusser/waffle/pantry/text"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Field declares one searchable or orderable field.
type Field struct {
	Alias string // user-facing token (e.g. "owner")
	Path  string // document path (e.g. "owner_username")
	CI    bool   // text-typed: match/sort on the folded _ci companion
}

// F is shorthand for a case-insensitive field whose alias equals its path.
func F(path string) Field { return Field{Alias: path, Path: path, CI: true} }

// Engine holds an endpoint's declared fields.
type Engine struct {
	SearchFields []Field
	OrderFields  []Field
}

// ciPath returns the companion path carrying the case-folded value.
func ciPath(f Field) string {
	if strings.HasSuffix(f.Path, "_ci") {
		return f.Path
	}
	return f.Path + "_ci"
}

// Filter builds the OR-of-substring filter for q across all search
// fields. Returns nil for an empty query. CI fields match their folded
// companion against the folded query; others use a case-insensitive
// regex on the raw path. The query is regexp-quoted, never interpreted.
func (e Engine) Filter(q string) bson.M {
	q = strings.TrimSpace(q)
	if q == "" || len(e.SearchFields) == 0 {
		return nil
	}
	or := make([]bson.M, 0, len(e.SearchFields))
	for _, f := range e.SearchFields {
		if f.CI {
			or = append(or, bson.M{ciPath(f): primitive.Regex{
				Pattern: regexp.QuoteMeta(text.Fold(q)),
			}})
			continue
		}
		or = append(or, bson.M{f.Path: primitive.Regex{
			Pattern: regexp.QuoteMeta(q),
			Options: "i",
		}})
	}
	return bson.M{"$or": or}
}

// Sort resolves the ordering parameter into a multi-key sort document,
// left-to-right priority. Each token is an order-field alias with an
// optional '+' (ascending, default) or '-' (descending) prefix. Text
// fields sort on their folded companion so ordering is case-insensitive.
// An unrecognized alias fails with an Invalid error naming the token.
func (e Engine) Sort(ordering string) (bson.D, error) {
	ordering = strings.TrimSpace(ordering)
	if ordering == "" {
		return nil, nil
	}
	var sort bson.D
	for _, token := range strings.Split(ordering, ",") {
		token = strings.TrimSpace(token)
		if token == "" {
			continue
		}
		dir := 1
		alias := token
		switch token[0] {
		case '-':
			dir = -1
			alias = token[1:]
		case '+':
			alias = token[1:]
		}
		f, ok := e.orderField(alias)
		if !ok {
			return nil, apierr.E(apierr.Invalid, "unknown ordering field %q", token)
		}
		path := f.Path
		if f.CI {
			path = ciPath(f)
		}
		sort = append(sort, bson.E{Key: path, Value: dir})
	}
	return sort, nil
}

func (e Engine) orderField(alias string) (Field, bool) {
	for _, f := range e.OrderFields {
		if f.Alias == alias {
			return f, true
		}
	}
	return Field{}, false
}
