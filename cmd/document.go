package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shibinsp/ocrapillm/internal/api"
	"github.com/shibinsp/ocrapillm/internal/parser"
)

var saveFile string

var showCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Print the extracted text of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		text, err := s.Client.DocumentContent(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), text)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status <id>",
	Short: "Show server-side processing status of a document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		st, err := s.Client.DocumentStatus(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		id := st.ID
		if id == "" {
			id = args[0]
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s %.0f%% (%d pages)\n", id, st.Status, st.Progress, st.TotalPages)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a document on the server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
		return nil
	},
}

var saveCmd = &cobra.Command{
	Use:   "save <id> --file <path>",
	Short: "Replace a document's text with the contents of a file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if saveFile == "" {
			return fmt.Errorf("--file is required")
		}
		text, err := parser.ParseFile(saveFile)
		if err != nil {
			return fmt.Errorf("read %s: %w", saveFile, err)
		}
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Client.SaveDocument(cmd.Context(), args[0], text, api.SaveManual); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved %s (%d bytes)\n", args[0], len(text))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(showCmd, statusCmd, deleteCmd, saveCmd)
	saveCmd.Flags().StringVarP(&saveFile, "file", "f", "", "file holding the new text (.txt, .md or .docx)")
}
