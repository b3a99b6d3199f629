package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/agentoven/studyhall/internal/catalog"
	"github.com/agentoven/studyhall/internal/tools"
	"github.com/agentoven/studyhall/pkg/models"
)

var toolsAgent string

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Print the agent catalog",
	Args:  cobra.NoArgs,
	RunE:  runAgents,
}

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Print the tool catalog",
	Args:  cobra.NoArgs,
	RunE:  runTools,
}

func init() {
	toolsCmd.Flags().StringVar(&toolsAgent, "agent", "", "only tools bound to this agent")
	rootCmd.AddCommand(agentsCmd)
	rootCmd.AddCommand(toolsCmd)
}

// loadAgents opens the catalog the server would use.
func loadAgents() (*catalog.Catalog, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return catalog.Open(cfg.Chat.AgentCatalog)
}

func runAgents(cmd *cobra.Command, args []string) error {
	agents, err := loadAgents()
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tMODEL\tROLES\tSURFACES")
	for _, a := range agents.List() {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			a.Name, a.DefaultModel, joinRoles(a.TargetRoles.Sorted()), strings.Join(a.UISurfaces, ","))
	}
	return tw.Flush()
}

func runTools(cmd *cobra.Command, args []string) error {
	agents, err := loadAgents()
	if err != nil {
		return err
	}
	tc, err := tools.NewCatalog(agents.ToolBindings())
	if err != nil {
		return err
	}

	defs := tc.All()
	if toolsAgent != "" {
		if _, ok := agents.Get(toolsAgent); !ok {
			return fmt.Errorf("unknown agent %q", toolsAgent)
		}
		defs = tc.DefinitionsFor(toolsAgent)
	}

	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tROLES\tCONTEXTS\tLATENCY")
	for _, d := range defs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n",
			d.Name, joinRoles(d.PermissionsRequired.Sorted()), joinContexts(d.ContextTypes.Sorted()), d.LatencyClass)
	}
	return tw.Flush()
}

func joinRoles(rs []models.Role) string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = string(r)
	}
	return strings.Join(out, ",")
}

func joinContexts(cs []models.ContextType) string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = string(c)
	}
	return strings.Join(out, ",")
}
