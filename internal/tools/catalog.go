package tools

import (
	"fmt"

	"github.com/agentoven/studyhall/pkg/models"
)

var builtin = map[Name]models.ToolDefinition{
	SearchCourseContent: {
		ID:                  string(SearchCourseContent),
		Name:                string(SearchCourseContent),
		DisplayName:         "Search course content",
		Description:         "Searches pages in the current course by query and returns snippets.",
		InputSchema:         mustSchema[SearchArgs](),
		OutputSchema:        mustSchema[[]SearchHit](),
		PermissionsRequired: roles(models.RoleStudent, models.RoleInstructor),
		ContextTypes:        contexts(models.ContextCoursePage),
		LatencyClass:        models.LatencySync,
	},
	GeneratePracticeQuestions: {
		ID:                  string(GeneratePracticeQuestions),
		Name:                string(GeneratePracticeQuestions),
		DisplayName:         "Generate practice questions",
		Description:         "Generate practice questions based on pages in a module.",
		InputSchema:         mustSchema[PracticeQuestionsArgs](),
		OutputSchema:        mustSchema[PracticeQuestions](),
		PermissionsRequired: roles(models.RoleInstructor),
		ContextTypes:        contexts(models.ContextCoursePage, models.ContextModulePage),
		LatencyClass:        models.LatencySync,
	},
	SummarizeModule: {
		ID:                  string(SummarizeModule),
		Name:                string(SummarizeModule),
		DisplayName:         "Summarize Module",
		Description:         "Summarize the pages and assignments in a module into a study guide.",
		InputSchema:         mustSchema[SummarizeArgs](),
		OutputSchema:        mustSchema[ModuleSummary](),
		PermissionsRequired: roles(models.RoleStudent, models.RoleInstructor),
		ContextTypes:        contexts(models.ContextModulePage),
		LatencyClass:        models.LatencySync,
	},
}

// Catalog is the immutable tool table plus the agent→tool bindings.
type Catalog struct {
	defs     map[Name]models.ToolDefinition
	bindings map[string][]Name
}

// NewCatalog binds agents to tools. Every bound name must be a known tool.
// Agents absent from bindings get no tools.
func NewCatalog(bindings map[string][]string) (*Catalog, error) {
	c := &Catalog{defs: builtin, bindings: make(map[string][]Name, len(bindings))}
	for agent, names := range bindings {
		seen := make(map[Name]bool, len(names))
		for _, n := range names {
			name := Name(n)
			if _, ok := builtin[name]; !ok {
				return nil, fmt.Errorf("agent %q: unknown tool %q", agent, n)
			}
			if seen[name] {
				continue
			}
			seen[name] = true
			c.bindings[agent] = append(c.bindings[agent], name)
		}
	}
	return c, nil
}

// Get returns a tool definition by name.
func (c *Catalog) Get(name string) (models.ToolDefinition, bool) {
	def, ok := c.defs[Name(name)]
	return def, ok
}

// All returns every tool in catalog order.
func (c *Catalog) All() []models.ToolDefinition {
	out := make([]models.ToolDefinition, 0, len(Names))
	for _, n := range Names {
		out = append(out, c.defs[n])
	}
	return out
}

// DefinitionsFor returns the tools bound to an agent, in binding order.
func (c *Catalog) DefinitionsFor(agentName string) []models.ToolDefinition {
	names := c.bindings[agentName]
	out := make([]models.ToolDefinition, 0, len(names))
	for _, n := range names {
		out = append(out, c.defs[n])
	}
	return out
}

// ForRole returns every tool the role may run.
func (c *Catalog) ForRole(role models.Role) []models.ToolDefinition {
	return filter(c.All(), role, "")
}

// Contextual intersects the agent's tools with the caller's role and, when
// contextType is non-empty, the tool's context types.
func (c *Catalog) Contextual(agentName string, role models.Role, contextType models.ContextType) []models.ToolDefinition {
	return filter(c.DefinitionsFor(agentName), role, contextType)
}

func filter(defs []models.ToolDefinition, role models.Role, ct models.ContextType) []models.ToolDefinition {
	out := defs[:0:0]
	for _, d := range defs {
		if !d.Permits(role) {
			continue
		}
		if ct != "" && !d.AppliesTo(ct) {
			continue
		}
		out = append(out, d)
	}
	return out
}
