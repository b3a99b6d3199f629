// Package catalog provides the agent catalog for StudyHall.
//
// Agents are declared in an embedded YAML table (agents.yaml), or in an
// operator-supplied file of the same shape, and parsed once when the
// process starts. The resulting Catalog is immutable, so it
// is safe for concurrent use without locking.
package catalog

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/agentoven/studyhall/pkg/models"
)

//go:embed agents.yaml
var builtinAgents []byte

// agentEntry is the on-disk shape of one agent. Role and surface lists are
// comma-separated strings and are parsed into sets here, not per request.
type agentEntry struct {
	Name          string               `yaml:"name"`
	Description   string               `yaml:"description"`
	DefaultModel  string               `yaml:"default_model"`
	ContextPolicy models.ContextPolicy `yaml:"context_policy"`
	UISurfaces    string               `yaml:"ui_surfaces"`
	TargetRoles   string               `yaml:"target_roles"`
	Tools         []string             `yaml:"tools"`
}

type catalogFile struct {
	Agents []agentEntry `yaml:"agents"`
}

// Catalog maps agent names to definitions.
type Catalog struct {
	agents   map[string]models.AgentDefinition
	bindings map[string][]string
	order    []string
}

// Default returns the built-in catalog. It panics if the embedded table is
// malformed, which is a build defect rather than a runtime condition.
func Default() *Catalog {
	c, err := Parse(builtinAgents)
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded agents.yaml: %v", err))
	}
	return c
}

// Open returns the catalog at path, or the built-in one when path is empty.
func Open(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	return Load(path)
}

// Load reads a catalog from a YAML file.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read agent catalog: %w", err)
	}
	return Parse(data)
}

// Parse builds a catalog from YAML.
func Parse(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse agent catalog: %w", err)
	}

	c := &Catalog{
		agents:   make(map[string]models.AgentDefinition, len(file.Agents)),
		bindings: make(map[string][]string, len(file.Agents)),
	}
	for _, e := range file.Agents {
		name := strings.TrimSpace(e.Name)
		if name == "" {
			return nil, fmt.Errorf("agent catalog: entry without a name")
		}
		if _, dup := c.agents[name]; dup {
			return nil, fmt.Errorf("agent catalog: duplicate agent %q", name)
		}
		if e.ContextPolicy.RetrievalTopK < 0 || e.ContextPolicy.MaxContextTokens < 0 {
			return nil, fmt.Errorf("agent catalog: %s: negative context policy", name)
		}

		var surfaces []string
		for _, s := range strings.Split(e.UISurfaces, ",") {
			if s = strings.TrimSpace(s); s != "" {
				surfaces = append(surfaces, s)
			}
		}

		c.agents[name] = models.AgentDefinition{
			Name:          name,
			Description:   strings.TrimSpace(e.Description),
			DefaultModel:  e.DefaultModel,
			ContextPolicy: e.ContextPolicy,
			UISurfaces:    surfaces,
			TargetRoles:   models.ParseSet[models.Role](e.TargetRoles),
		}
		if len(e.Tools) > 0 {
			c.bindings[name] = append([]string(nil), e.Tools...)
		}
		c.order = append(c.order, name)
	}
	sort.Strings(c.order)
	return c, nil
}

// Get returns the definition for name. Absence is reported through ok so
// callers choose the error shape.
func (c *Catalog) Get(name string) (models.AgentDefinition, bool) {
	a, ok := c.agents[name]
	return a, ok
}

// List returns all agents ordered by name.
func (c *Catalog) List() []models.AgentDefinition {
	out := make([]models.AgentDefinition, 0, len(c.order))
	for _, name := range c.order {
		out = append(out, c.agents[name])
	}
	return out
}

// ToolBindings returns a copy of the agent → tool name table.
func (c *Catalog) ToolBindings() map[string][]string {
	out := make(map[string][]string, len(c.bindings))
	for agent, tools := range c.bindings {
		out[agent] = append([]string(nil), tools...)
	}
	return out
}

// Count returns the number of agents.
func (c *Catalog) Count() int { return len(c.agents) }
