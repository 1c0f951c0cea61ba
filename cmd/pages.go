package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shibinsp/ocrapillm/internal/parser"
)

var validateFile string

var pagesCmd = &cobra.Command{
	Use:   "pages <id>",
	Short: "List the OCR'd pages of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		pages, err := s.Client.Pages(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if len(pages) == 0 {
			fmt.Fprintln(out, "(no pages)")
			return nil
		}
		for _, p := range pages {
			mark := " "
			if p.Validated {
				mark = "✓"
			}
			fmt.Fprintf(out, "%s page %d (%s): %s\n", mark, p.PageNumber, p.ID, preview(p.ExtractedText, 60))
		}
		return nil
	},
}

var pagesValidateCmd = &cobra.Command{
	Use:   "validate <id> <page-id> --file <path>",
	Short: "Store reviewed text for one page",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if validateFile == "" {
			return fmt.Errorf("--file is required")
		}
		text, err := parser.ParseFile(validateFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", validateFile, err)
		}
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Client.ValidatePage(cmd.Context(), args[0], args[1], text); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Page %s of %s validated\n", args[1], args[0])
		return nil
	},
}

// preview collapses whitespace and cuts s to n runes.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}

func init() {
	rootCmd.AddCommand(pagesCmd)
	pagesCmd.AddCommand(pagesValidateCmd)
	pagesValidateCmd.Flags().StringVarP(&validateFile, "file", "f", "", "file holding the reviewed text")
}
