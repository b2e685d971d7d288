// Package detector derives work-item references from git state, paths and
// window titles.
package detector

import (
	"regexp"
	"strings"
)

// Source records where an issue reference was found.
type Source string

const (
	SourceBranch      Source = "git_branch"
	SourceCommit      Source = "git_commit"
	SourcePath        Source = "path"
	SourceWindowTitle Source = "window_title"
)

type IssueRef struct {
	ID     string
	Prefix string
	Source Source
}

var (
	prefixedRe   = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,10}-\d+\b`)
	hashRe       = regexp.MustCompile(`#\d+\b`)
	underscoreRe = regexp.MustCompile(`\b[A-Z][A-Z0-9_]{1,10}_\d+\b`)
)

// Parse returns the first issue id in text. Patterns are tried in order
// (PREFIX-N, #N, PREFIX_N); within a pattern the leftmost match wins.
// PREFIX_N is normalized to PREFIX-N. A #N match has no prefix.
func Parse(text string) (IssueRef, bool) {
	if m := prefixedRe.FindString(text); m != "" {
		i := strings.LastIndexByte(m, '-')
		return IssueRef{ID: m, Prefix: m[:i]}, true
	}
	if m := hashRe.FindString(text); m != "" {
		return IssueRef{ID: m[1:]}, true
	}
	if m := underscoreRe.FindString(text); m != "" {
		i := strings.LastIndexByte(m, '_')
		return IssueRef{ID: m[:i] + "-" + m[i+1:], Prefix: m[:i]}, true
	}
	return IssueRef{}, false
}

// ParseAll returns every distinct issue id in text, in pattern then position order.
func ParseAll(text string) []IssueRef {
	var refs []IssueRef
	seen := map[string]bool{}
	add := func(r IssueRef) {
		if !seen[r.ID] {
			seen[r.ID] = true
			refs = append(refs, r)
		}
	}
	for _, m := range prefixedRe.FindAllString(text, -1) {
		i := strings.LastIndexByte(m, '-')
		add(IssueRef{ID: m, Prefix: m[:i]})
	}
	for _, m := range hashRe.FindAllString(text, -1) {
		add(IssueRef{ID: m[1:]})
	}
	for _, m := range underscoreRe.FindAllString(text, -1) {
		i := strings.LastIndexByte(m, '_')
		add(IssueRef{ID: m[:i] + "-" + m[i+1:], Prefix: m[:i]})
	}
	return refs
}

// Number returns the numeric part of the id ("PROJ-12" and "12" both give "12").
func (r IssueRef) Number() string {
	if i := strings.LastIndexByte(r.ID, '-'); i >= 0 {
		return r.ID[i+1:]
	}
	return r.ID
}
