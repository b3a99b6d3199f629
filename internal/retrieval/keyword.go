// Package retrieval selects course content relevant to a user question.
//
// Two strategies share the contracts.Retriever contract: a lexical
// keyword matcher (the default) and a bleve-backed ranked matcher. Both
// verify the course against the caller's tenant before reading any page.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/models"
)

// DefaultMinKeywordLen keeps tokens longer than three characters.
const DefaultMinKeywordLen = 4

// MatchedScore is the constant weight given to every keyword match.
const MatchedScore = 1.0

// New returns the retriever registered under name.
func New(name string, content store.ContentStore, minKeywordLen int) (contracts.Retriever, error) {
	switch name {
	case "", "keyword":
		return NewKeywordRetriever(content, minKeywordLen), nil
	case "bleve":
		return NewBleveRetriever(content, minKeywordLen), nil
	default:
		return nil, fmt.Errorf("unknown retriever %q (supported: keyword, bleve)", name)
	}
}

// Keywords lowercases query, splits it on whitespace and keeps tokens of at
// least minLen characters.
func Keywords(query string, minLen int) []string {
	var out []string
	for _, tok := range strings.Fields(strings.ToLower(query)) {
		if utf8.RuneCountInString(tok) >= minLen {
			out = append(out, tok)
		}
	}
	return out
}

// KeywordRetriever matches pages whose body contains any keyword.
// There is no ranking: every hit scores MatchedScore and hits keep the
// store's page order.
type KeywordRetriever struct {
	content store.ContentStore
	minLen  int
}

func NewKeywordRetriever(content store.ContentStore, minKeywordLen int) *KeywordRetriever {
	if minKeywordLen <= 0 {
		minKeywordLen = DefaultMinKeywordLen
	}
	return &KeywordRetriever{content: content, minLen: minKeywordLen}
}

func (r *KeywordRetriever) Name() string { return "keyword" }

func (r *KeywordRetriever) Search(ctx context.Context, q models.RetrievalQuery) ([]models.RetrievedChunk, error) {
	pages, keywords, err := scopedPages(ctx, r.content, q, r.minLen)
	if err != nil || len(pages) == 0 {
		return nil, err
	}

	var out []models.RetrievedChunk
	for _, p := range pages {
		if len(out) >= q.TopK {
			break
		}
		body := strings.ToLower(p.BodyMarkdown)
		for _, kw := range keywords {
			if strings.Contains(body, kw) {
				out = append(out, chunkFromPage(p, MatchedScore))
				break
			}
		}
	}
	return out, nil
}

// scopedPages resolves the candidate pages for q: the course must belong to
// the tenant, at least one keyword must survive filtering, and excluded ids
// are dropped.
func scopedPages(ctx context.Context, content store.ContentStore, q models.RetrievalQuery, minLen int) ([]models.Page, []string, error) {
	if q.CourseID == "" || q.TenantID == "" || q.TopK <= 0 {
		return nil, nil, nil
	}
	keywords := Keywords(q.Query, minLen)
	if len(keywords) == 0 {
		return nil, nil, nil
	}
	if _, err := content.GetCourse(ctx, q.TenantID, q.CourseID); err != nil {
		if store.IsNotFound(err) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	pages, err := content.ListCoursePages(ctx, q.CourseID)
	if err != nil {
		return nil, nil, err
	}

	excluded := make(map[string]struct{}, len(q.ExcludeIDs))
	for _, id := range q.ExcludeIDs {
		excluded[id] = struct{}{}
	}
	kept := pages[:0]
	for _, p := range pages {
		if _, skip := excluded[p.ID]; !skip {
			kept = append(kept, p)
		}
	}
	return kept, keywords, nil
}

func chunkFromPage(p models.Page, score float64) models.RetrievedChunk {
	return models.RetrievedChunk{
		ID:      p.ID,
		Content: p.BodyMarkdown,
		Score:   score,
		Metadata: models.ChunkMetadata{
			Title:      p.Title,
			SourceType: "page",
			CourseID:   p.CourseID,
			ModuleID:   p.ModuleID,
		},
	}
}
