// Package tools is the tool catalog and executor of the agent plane.
//
// The tool set is closed: every Name constant below has a definition in
// the catalog and a case in Executor.dispatch. Arguments arrive from the
// model as untyped JSON objects and are validated against the reflected
// input schema before being decoded into the typed argument structs.
package tools

import "github.com/agentoven/studyhall/pkg/models"

// Name identifies one tool variant.
type Name string

const (
	SearchCourseContent       Name = "search_course_content"
	GeneratePracticeQuestions Name = "generate_practice_questions"
	SummarizeModule           Name = "summarize_module"
)

// Names lists every tool in catalog order.
var Names = []Name{SearchCourseContent, GeneratePracticeQuestions, SummarizeModule}

// ── Arguments ───────────────────────────────────────────────

type SearchArgs struct {
	CourseID string `json:"courseId" jsonschema:"required,minLength=1,description=The ID of the course to search within"`
	Query    string `json:"query" jsonschema:"required,minLength=1,description=The search query to find relevant pages"`
}

type PracticeQuestionsArgs struct {
	CourseID      string `json:"courseId" jsonschema:"required,minLength=1,description=The ID of the course"`
	ModuleID      string `json:"moduleId" jsonschema:"required,minLength=1,description=The ID of the module to generate questions for"`
	QuestionCount int    `json:"questionCount,omitempty" jsonschema:"minimum=1,maximum=20,default=5,description=Number of practice questions to generate"`
}

type SummarizeArgs struct {
	ModuleID string `json:"moduleId" jsonschema:"required,minLength=1,description=The ID of the module to summarize"`
}

// ── Results ─────────────────────────────────────────────────

// SearchHit is one page matched by search_course_content.
type SearchHit struct {
	PageID  string `json:"pageId" jsonschema:"required"`
	Title   string `json:"title" jsonschema:"required"`
	Snippet string `json:"snippet" jsonschema:"required"`
}

type PracticeQuestion struct {
	Prompt string `json:"prompt" jsonschema:"required"`
	Answer string `json:"answer" jsonschema:"required"`
}

type PracticeQuestions struct {
	Questions []PracticeQuestion `json:"questions" jsonschema:"required"`
}

type ModuleSummary struct {
	Summary string `json:"summary" jsonschema:"required,description=The generated study guide summary"`
}

func roles(rs ...models.Role) models.Set[models.Role] { return models.NewSet(rs...) }

func contexts(cs ...models.ContextType) models.Set[models.ContextType] { return models.NewSet(cs...) }
