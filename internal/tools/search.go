package tools

import (
	"context"
	"unicode"

	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/models"
)

const (
	maxSearchHits   = 3
	snippetRadius   = 100
	fallbackSnippet = 200
)

func (e *Executor) searchCourseContent(ctx context.Context, a SearchArgs, ec models.ExecutionContext) ([]SearchHit, error) {
	if _, err := e.content.GetCourse(ctx, ec.TenantID, a.CourseID); err != nil {
		return nil, store.AsDomainError(err)
	}
	pages, err := e.content.ListCoursePages(ctx, a.CourseID)
	if err != nil {
		return nil, err
	}

	query := lowerRunes(a.Query)
	hits := []SearchHit{}
	for _, p := range pages {
		body := []rune(p.BodyMarkdown)
		at := indexRunes(lowerRunes(p.BodyMarkdown), query)
		if at < 0 {
			continue
		}
		hits = append(hits, SearchHit{PageID: p.ID, Title: p.Title, Snippet: snippet(body, at, len(query))})
		if len(hits) == maxSearchHits {
			break
		}
	}
	return hits, nil
}

// snippet cuts snippetRadius runes either side of a match at [at, at+n),
// marking truncated sides with "...". A negative at yields the leading
// fallbackSnippet runes.
func snippet(body []rune, at, n int) string {
	if at < 0 {
		if len(body) <= fallbackSnippet {
			return string(body)
		}
		return string(body[:fallbackSnippet]) + "..."
	}
	start := max(0, at-snippetRadius)
	end := min(len(body), at+n+snippetRadius)
	s := string(body[start:end])
	if start > 0 {
		s = "..." + s
	}
	if end < len(body) {
		s += "..."
	}
	return s
}

// lowerRunes lowercases rune by rune so indexes line up with the original.
func lowerRunes(s string) []rune {
	rs := []rune(s)
	for i, r := range rs {
		rs[i] = unicode.ToLower(r)
	}
	return rs
}

func indexRunes(haystack, needle []rune) int {
	if len(needle) == 0 {
		return 0
	}
outer:
	for i := 0; i+len(needle) <= len(haystack); i++ {
		for j, r := range needle {
			if haystack[i+j] != r {
				continue outer
			}
		}
		return i
	}
	return -1
}
