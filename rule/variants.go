package rule

import (
	"context"
	"regexp"
	"strings"

	"github.com/hauntsaninja/slackreact/event"
)

// ContainsText reports whether any query appears, case-insensitively, as a
// substring of text. Shared by the Contains variants and by rules that
// layer extra gating on top of substring matching.
func ContainsText(queries []string, text string) bool {
	lower := strings.ToLower(text)
	for _, q := range queries {
		if strings.Contains(lower, strings.ToLower(q)) {
			return true
		}
	}
	return false
}

// Contains matches when any of the declared query strings appears in the
// message text.
type Contains struct {
	Base
	Queries []string
}

// NewContains wires the substring predicate into the base composition.
func NewContains(base Base, queries ...string) *Contains {
	c := &Contains{Base: base, Queries: queries}
	c.MatchFunc = c.match
	return c
}

func (c *Contains) match(_ context.Context, ev event.Event) (bool, error) {
	return ContainsText(c.Queries, ev.Text), nil
}

// SnippetOrContains matches like Contains; when the text does not match and
// the message shares a snippet attachment, it downloads the snippet
// contents (authenticated) and applies the same substring test to them.
type SnippetOrContains struct {
	Base
	Queries []string
}

// NewSnippetOrContains wires the snippet-aware substring predicate.
func NewSnippetOrContains(base Base, queries ...string) *SnippetOrContains {
	s := &SnippetOrContains{Base: base, Queries: queries}
	s.MatchFunc = s.match
	return s
}

func (s *SnippetOrContains) match(ctx context.Context, ev event.Event) (bool, error) {
	if ContainsText(s.Queries, ev.Text) {
		return true, nil
	}
	if !ev.IsSnippetShare() {
		return false, nil
	}
	contents, err := s.Runtime.API().Download(ctx, ev.File.URLPrivate)
	if err != nil {
		return false, err
	}
	return ContainsText(s.Queries, contents), nil
}

// Regex matches when the declared pattern matches anywhere in the message
// text. Match exposes the submatches to the response generator.
type Regex struct {
	Base
	Pattern *regexp.Regexp
}

// NewRegex wires the pattern predicate into the base composition.
func NewRegex(base Base, pattern *regexp.Regexp) *Regex {
	r := &Regex{Base: base, Pattern: pattern}
	r.MatchFunc = r.match
	return r
}

func (r *Regex) match(_ context.Context, ev event.Event) (bool, error) {
	return r.Pattern.MatchString(ev.Text), nil
}

// Match returns the pattern's submatches against the event text, or nil
// when the pattern does not match.
func (r *Regex) Match(ev event.Event) []string {
	return r.Pattern.FindStringSubmatch(ev.Text)
}
