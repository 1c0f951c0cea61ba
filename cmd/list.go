package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shibinsp/ocrapillm/internal/utils"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List processed documents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Load(cmd.Context()); err != nil {
			return err
		}
		docs := s.Store.Snapshot().Documents
		out := cmd.OutOrStdout()
		if len(docs) == 0 {
			fmt.Fprintln(out, "(no documents)")
			return nil
		}
		for _, d := range docs {
			line := fmt.Sprintf("- %s: %s (%s, %d pages", d.ID, d.Name, d.Status, d.Pages)
			if d.Size > 0 {
				line += ", " + utils.HumanSize(d.Size)
			}
			if !d.CreatedAt.IsZero() {
				line += ", " + d.CreatedAt.Format("2006-01-02 15:04")
			}
			fmt.Fprintln(out, line+")")
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
