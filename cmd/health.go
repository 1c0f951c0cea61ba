package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the document service is reachable",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		h, err := s.Client.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s: %w", s.Client.BaseURL(), err)
		}
		out := cmd.OutOrStdout()
		if h.Status != "healthy" && h.Status != "ok" {
			return fmt.Errorf("%s reports status %q", s.Client.BaseURL(), h.Status)
		}
		name := h.Service
		if name == "" {
			name = s.Client.BaseURL()
		}
		if h.Version != "" {
			fmt.Fprintf(out, "✓ %s is %s (version %s)\n", name, h.Status, h.Version)
		} else {
			fmt.Fprintf(out, "✓ %s is %s\n", name, h.Status)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
