// Package contextbuilder assembles the system prompt and bounded course
// context for one agent turn.
package contextbuilder

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/contracts"
	"github.com/agentoven/studyhall/pkg/models"
)

// NoContentSentinel is the context text used when no unit qualifies.
const NoContentSentinel = "No course content available for context."

// Request describes one context assembly.
type Request struct {
	Agent        models.AgentDefinition
	TenantID     string
	CourseID     string
	PageID       string
	UserQuestion string
}

// Result is the assembled prompt. Units lists what was included, in order.
type Result struct {
	SystemPrompt string
	ContextText  string
	Units        []models.RetrievedChunk
}

// Builder combines an explicitly referenced page with retriever output.
type Builder struct {
	content   store.ContentStore
	retriever contracts.Retriever
	counter   TokenCounter
}

func New(content store.ContentStore, retriever contracts.Retriever, counter TokenCounter) *Builder {
	if counter == nil {
		counter = ApproxCounter{}
	}
	return &Builder{content: content, retriever: retriever, counter: counter}
}

// Build never includes a page whose course is outside req.TenantID, even
// when the page id is supplied explicitly.
func (b *Builder) Build(ctx context.Context, req Request) (*Result, error) {
	var units []models.RetrievedChunk

	if req.PageID != "" {
		chunk, ok, err := b.pinnedPage(ctx, req)
		if err != nil {
			return nil, err
		}
		if ok {
			units = append(units, chunk)
		}
	}

	if req.CourseID != "" && b.retriever != nil {
		q := models.RetrievalQuery{
			TenantID: req.TenantID,
			CourseID: req.CourseID,
			Query:    req.UserQuestion,
			TopK:     req.Agent.ContextPolicy.RetrievalTopK,
		}
		if req.PageID != "" {
			q.ExcludeIDs = []string{req.PageID}
		}
		chunks, err := b.retriever.Search(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("retrieve course content: %w", err)
		}
		units = append(units, chunks...)
	}

	units, contextText := b.render(units, req.Agent.ContextPolicy.MaxContextTokens)
	return &Result{
		SystemPrompt: SystemPrompt(req.Agent, contextText),
		ContextText:  contextText,
		Units:        units,
	}, nil
}

func (b *Builder) pinnedPage(ctx context.Context, req Request) (models.RetrievedChunk, bool, error) {
	page, err := b.content.GetPage(ctx, req.PageID)
	if store.IsNotFound(err) {
		return models.RetrievedChunk{}, false, nil
	}
	if err != nil {
		return models.RetrievedChunk{}, false, fmt.Errorf("load page: %w", err)
	}
	if req.CourseID != "" && page.CourseID != req.CourseID {
		return models.RetrievedChunk{}, false, nil
	}
	if _, err := b.content.GetCourse(ctx, req.TenantID, page.CourseID); err != nil {
		if store.IsNotFound(err) {
			return models.RetrievedChunk{}, false, nil
		}
		return models.RetrievedChunk{}, false, fmt.Errorf("load course: %w", err)
	}
	return models.RetrievedChunk{
		ID:      page.ID,
		Content: page.BodyMarkdown,
		Score:   1,
		Metadata: models.ChunkMetadata{
			Title:      page.Title,
			SourceType: "page",
			CourseID:   page.CourseID,
			ModuleID:   page.ModuleID,
		},
	}, true, nil
}

// render formats units as numbered blocks, stopping once the token budget
// is spent. The last block that crosses the budget is truncated. A
// non-positive budget means unbounded.
func (b *Builder) render(units []models.RetrievedChunk, budget int) ([]models.RetrievedChunk, string) {
	var (
		blocks []string
		kept   []models.RetrievedChunk
		used   int
	)
	for i, u := range units {
		header := fmt.Sprintf("--- Page %d: %s ---\n", i+1, u.Metadata.Title)
		block := header + u.Content + "\n"
		cost := b.counter.Count(block)
		if budget > 0 && used+cost > budget {
			room := budget - used - b.counter.Count(header+"\n")
			body := truncateToTokens(b.counter, u.Content, room)
			if body != "" {
				blocks = append(blocks, header+body+"\n")
				kept = append(kept, u)
			}
			break
		}
		used += cost
		blocks = append(blocks, block)
		kept = append(kept, u)
	}
	if len(blocks) == 0 {
		return nil, NoContentSentinel
	}
	return kept, strings.Join(blocks, "\n")
}

// SystemPrompt renders the agent instruction template around contextText.
func SystemPrompt(agent models.AgentDefinition, contextText string) string {
	return fmt.Sprintf(`You are the %s agent for a learning management system.

Your role: %s

Instructions:
- Use ONLY the provided course content below to answer the user's questions.
- Do not make up information or use external knowledge.
- When answering, cite the page titles (not URLs) where you found the information.
- If the provided content does not contain the answer, say so clearly.
- Be concise and helpful.

Course Content:
%s
`, agent.Name, agent.Description, contextText)
}
