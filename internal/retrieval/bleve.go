package retrieval

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/search/query"

	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/models"
)

// BleveRetriever ranks the tenant-verified course's pages with an
// in-memory bleve index built per query.
type BleveRetriever struct {
	content store.ContentStore
	minLen  int
}

func NewBleveRetriever(content store.ContentStore, minKeywordLen int) *BleveRetriever {
	if minKeywordLen <= 0 {
		minKeywordLen = DefaultMinKeywordLen
	}
	return &BleveRetriever{content: content, minLen: minKeywordLen}
}

func (r *BleveRetriever) Name() string { return "bleve" }

type pageDocument struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (r *BleveRetriever) Search(ctx context.Context, q models.RetrievalQuery) ([]models.RetrievedChunk, error) {
	pages, keywords, err := scopedPages(ctx, r.content, q, r.minLen)
	if err != nil || len(pages) == 0 {
		return nil, err
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create bleve index: %w", err)
	}
	defer index.Close()

	batch := index.NewBatch()
	order := make(map[string]int, len(pages))
	byID := make(map[string]models.Page, len(pages))
	for i, p := range pages {
		order[p.ID] = i
		byID[p.ID] = p
		if err := batch.Index(p.ID, pageDocument{Title: p.Title, Body: p.BodyMarkdown}); err != nil {
			return nil, fmt.Errorf("index page %s: %w", p.ID, err)
		}
	}
	if err := index.Batch(batch); err != nil {
		return nil, fmt.Errorf("index pages: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	// Every hit is fetched so ties at the TopK boundary are broken by page
	// order below rather than by document id inside the index.
	req := bleve.NewSearchRequest(keywordQuery(keywords))
	req.Size = len(pages)
	result, err := index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	out := make([]models.RetrievedChunk, 0, len(result.Hits))
	for _, hit := range result.Hits {
		if p, ok := byID[hit.ID]; ok {
			out = append(out, chunkFromPage(p, hit.Score))
		}
	}
	// Equal scores keep page order so repeated queries return the same list.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return order[out[i].ID] < order[out[j].ID]
	})
	if len(out) > q.TopK {
		out = out[:q.TopK]
	}
	return out, nil
}

// keywordQuery matches any keyword in the body, with title matches boosted.
func keywordQuery(keywords []string) query.Query {
	text := strings.Join(keywords, " ")

	body := bleve.NewMatchQuery(text)
	body.SetField("body")

	title := bleve.NewMatchQuery(text)
	title.SetField("title")
	title.SetBoost(2)

	return bleve.NewDisjunctionQuery(body, title)
}
