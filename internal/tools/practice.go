package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/models"
)

const defaultQuestionCount = 5

const practiceQuestionsPrompt = `You are an assistant that generates practice questions for a course module.
Given the module content below, generate %d question-answer pairs that help a student practice the material.
Return ONLY JSON of the form { "questions": [ { "prompt": "...", "answer": "..." }, ... ] }.
Make the questions specific, relevant, and educational. The answers should be clear and concise.`

func (e *Executor) generatePracticeQuestions(ctx context.Context, a PracticeQuestionsArgs, ec models.ExecutionContext) (*PracticeQuestions, error) {
	if a.QuestionCount == 0 {
		a.QuestionCount = defaultQuestionCount
	}
	if _, err := e.content.GetCourse(ctx, ec.TenantID, a.CourseID); err != nil {
		return nil, store.AsDomainError(err)
	}
	mod, err := e.content.GetModule(ctx, a.ModuleID)
	if err != nil {
		return nil, store.AsDomainError(err)
	}
	if mod.CourseID != a.CourseID {
		return nil, errs.New(errs.NotFound, "module not found")
	}
	pages, err := e.content.ListModulePages(ctx, mod.ID)
	if err != nil {
		return nil, err
	}
	if len(pages) == 0 {
		return nil, errs.New(errs.InvalidArguments, "no pages found in this module")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\n\n", mod.Name)
	writePages(&b, pages)

	reply, err := e.askModel(ctx, "generate practice questions", fmt.Sprintf(practiceQuestionsPrompt, a.QuestionCount), b.String())
	if err != nil {
		return nil, err
	}
	var out PracticeQuestions
	if err := decodeModelJSON(reply, &out); err != nil {
		return nil, err
	}
	if err := out.validate(); err != nil {
		return nil, err
	}
	return &out, nil
}

func writePages(b *strings.Builder, pages []models.Page) {
	for _, p := range pages {
		fmt.Fprintf(b, "Page Title: %s\nContent:\n%s\n\n---\n\n", p.Title, p.BodyMarkdown)
	}
}
