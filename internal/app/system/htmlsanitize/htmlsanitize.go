// internal/app/system/htmlsanitize/htmlsanitize.go
// Package htmlsanitize strips dangerous markup from user-supplied
// content before storage. Descriptions may carry simple formatting;
// plain-text fields are stripped entirely.
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var (
	ugc    = bluemonday.UGCPolicy()
	strict = bluemonday.StrictPolicy()
)

// Sanitize keeps user-generated-content formatting (paragraphs,
// emphasis, links) and removes scripts, event handlers and javascript:
// URLs.
func Sanitize(s string) string {
	return ugc.Sanitize(s)
}

// Strip removes all markup, leaving plain text.
func Strip(s string) string {
	return strict.Sanitize(s)
}
