package main

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var classNames = regexp.MustCompile(`^[a-zA-Z0-9_\- ]+$`)

// newSanitizerPolicy strips scripts, event handlers and unsafe URLs while
// keeping the attributes the pipeline itself adds: target/rel on links,
// data-file-path on internal links and class names for styling.
func newSanitizerPolicy() *bluemonday.Policy {
	p := bluemonday.UGCPolicy()

	// rel is authored by the renderer; do not append nofollow to it
	p.RequireNoFollowOnLinks(false)

	p.AllowAttrs("class").Matching(classNames).Globally()
	p.AllowAttrs("target").Matching(regexp.MustCompile(`^_blank$`)).OnElements("a")
	p.AllowAttrs("rel").Matching(regexp.MustCompile(`^[a-z ]+$`)).OnElements("a")
	p.AllowAttrs("data-file-path", "title").OnElements("a")

	// task list checkboxes
	p.AllowAttrs("type").Matching(regexp.MustCompile(`^checkbox$`)).OnElements("input")
	p.AllowAttrs("checked", "disabled").Matching(regexp.MustCompile(`^(|checked|disabled)$`)).OnElements("input")

	return p
}
