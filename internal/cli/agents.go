package cli

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/codecrew-ai/codecrew/internal/agents"
)

// NewAgentsCmd lists the agent personas a daemon built from the same config
// would serve.
func NewAgentsCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List available agent personas",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			registry, err := agents.NewRegistry(cfg.Provider.MaxTokens, cfg.Agents)
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tTEMPERATURE\tMAX TOKENS")
			for _, id := range registry.IDs() {
				p, _ := registry.Resolve(id)
				fmt.Fprintf(w, "%s\t%s\t%.1f\t%d\n", id, p.Name, p.Temperature, p.MaxTokens)
			}
			return w.Flush()
		},
	}
}
