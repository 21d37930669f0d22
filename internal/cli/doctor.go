package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codecrew-ai/codecrew/internal/agents"
)

// NewDoctorCmd returns a health-check command validating config and environment.
func NewDoctorCmd(opts *Options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Validate configuration and environment",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts)
			if err != nil {
				return err
			}

			registry, err := agents.NewRegistry(cfg.Provider.MaxTokens, cfg.Agents)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config OK. Provider: %s (%s), agents: %d\n", cfg.Provider.Type, cfg.Provider.Model, len(registry.IDs()))
			fmt.Fprintf(out, "Server: %s (ws path %s), metrics: %v\n", cfg.Server.Addr, cfg.Server.WSPath, cfg.Server.MetricsEnabled)
			fmt.Fprintf(out, "Client: %s, retries: %d\n", cfg.Client.URL, cfg.Client.MaxRetries)
			return nil
		},
	}
}
