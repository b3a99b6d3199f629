package catalog_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentoven/studyhall/internal/catalog"
	"github.com/agentoven/studyhall/pkg/models"
)

func TestDefaultCatalog(t *testing.T) {
	c := catalog.Default()

	agent, ok := c.Get("content_helper")
	require.True(t, ok)
	assert.Equal(t, "gpt-4-turbo", agent.DefaultModel)
	assert.Equal(t, 8000, agent.ContextPolicy.MaxContextTokens)
	assert.Equal(t, 3, agent.ContextPolicy.RetrievalTopK)
	assert.Equal(t, []string{"side_panel"}, agent.UISurfaces)
	assert.True(t, agent.TargetRoles.Has(models.RoleStudent))
	assert.True(t, agent.TargetRoles.Has(models.RoleInstructor))
	assert.False(t, agent.TargetRoles.Has(models.RoleAdmin))

	bindings := c.ToolBindings()
	assert.ElementsMatch(t,
		[]string{"search_course_content", "generate_practice_questions", "summarize_module"},
		bindings["content_helper"])
}

func TestGetUnknown(t *testing.T) {
	_, ok := catalog.Default().Get("nope")
	assert.False(t, ok)
}

func TestParse(t *testing.T) {
	c, err := catalog.Parse([]byte(`
agents:
  - name: zeta
    default_model: m1
    target_roles: " admin , "
  - name: alpha
    default_model: m2
    context_policy: {max_context_tokens: 100, retrieval_top_k: 1}
`))
	require.NoError(t, err)
	assert.Equal(t, 2, c.Count())

	list := c.List()
	require.Len(t, list, 2)
	assert.Equal(t, "alpha", list[0].Name)
	assert.Equal(t, "zeta", list[1].Name)
	assert.Equal(t, []models.Role{models.RoleAdmin}, list[1].TargetRoles.Sorted())
	assert.Empty(t, c.ToolBindings()["alpha"], "agents without a binding get no tools")
}

func TestParseRejectsDuplicates(t *testing.T) {
	_, err := catalog.Parse([]byte("agents:\n  - name: a\n  - name: a\n"))
	assert.Error(t, err)

	_, err = catalog.Parse([]byte("agents:\n  - description: nameless\n"))
	assert.Error(t, err)
}

func TestSummaryOmitsInternals(t *testing.T) {
	agent, _ := catalog.Default().Get("content_helper")
	s := agent.Summary()
	assert.Equal(t, "content_helper", s.Name)
	assert.Equal(t, []models.Role{models.RoleInstructor, models.RoleStudent}, s.TargetRoles)
}

func TestOpen(t *testing.T) {
	c, err := catalog.Open("")
	require.NoError(t, err)
	_, ok := c.Get("content_helper")
	assert.True(t, ok)

	path := filepath.Join(t.TempDir(), "agents.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agents:\n  - name: tutor\n    default_model: claude-sonnet-4-20250514\n"), 0o600))
	c, err = catalog.Open(path)
	require.NoError(t, err)
	assert.Equal(t, 1, c.Count())
	tutor, ok := c.Get("tutor")
	require.True(t, ok)
	assert.Equal(t, "claude-sonnet-4-20250514", tutor.DefaultModel)

	_, err = catalog.Open(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
