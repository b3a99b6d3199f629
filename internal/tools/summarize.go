package tools

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/agentoven/studyhall/internal/errs"
	"github.com/agentoven/studyhall/internal/store"
	"github.com/agentoven/studyhall/pkg/models"
)

const summarizeModulePrompt = "You are an assistant summarizing a course module. Create a concise study guide covering the key points and assignments. Use clear paragraphs and bullet points where appropriate."

func (e *Executor) summarizeModule(ctx context.Context, a SummarizeArgs, ec models.ExecutionContext) (*ModuleSummary, error) {
	mod, err := e.content.GetModule(ctx, a.ModuleID)
	if err != nil {
		return nil, store.AsDomainError(err)
	}
	course, err := e.content.GetCourse(ctx, ec.TenantID, mod.CourseID)
	if err != nil {
		// The module exists but sits in another tenant; report it as absent.
		if store.IsNotFound(err) {
			return nil, errs.New(errs.NotFound, "module not found")
		}
		return nil, err
	}
	member, err := e.content.IsMember(ctx, course.ID, ec.UserID)
	if err != nil {
		return nil, err
	}
	if !member {
		return nil, errs.New(errs.NotFound, "module not found")
	}

	pages, err := e.content.ListModulePages(ctx, mod.ID)
	if err != nil {
		return nil, err
	}
	assignments, err := e.content.ListModuleAssignments(ctx, mod.ID)
	if err != nil {
		return nil, err
	}

	reply, err := e.askModel(ctx, "generate module summary", summarizeModulePrompt, moduleDigest(mod, course, pages, assignments))
	if err != nil {
		return nil, err
	}
	return decodeSummary(reply)
}

func moduleDigest(mod *models.Module, course *models.Course, pages []models.Page, assignments []models.Assignment) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Module: %s\nCourse: %s\n\n", mod.Name, course.Title)

	if len(pages) == 0 {
		b.WriteString("No pages in this module.\n\n")
	} else {
		b.WriteString("=== PAGES ===\n\n")
		writePages(&b, pages)
	}

	if len(assignments) == 0 {
		b.WriteString("No assignments in this module.\n\n")
	} else {
		b.WriteString("=== ASSIGNMENTS ===\n\n")
		for _, as := range assignments {
			fmt.Fprintf(&b, "Assignment: %s\nDescription: %s\nDue Date: %s\n\n---\n\n",
				as.Name, as.Description, as.DueAt.UTC().Format(time.RFC3339))
		}
	}
	return b.String()
}
