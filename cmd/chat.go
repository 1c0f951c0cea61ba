package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shibinsp/ocrapillm/internal/model"
)

var (
	chatDocID   string
	historyDoc  string
	historyLast int
)

var chatCmd = &cobra.Command{
	Use:   "chat [--doc id] <message>",
	Short: "Ask the language model about one document or all of them",
	Example: `  ocrapillm chat --doc 3f2a "What is the invoice total?"
  ocrapillm chat "Which documents mention Berlin?"
  ocrapillm chat history`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		s.Chat.Load(cmd.Context())
		msg, err := s.Chat.Send(cmd.Context(), chatDocID, strings.Join(args, " "))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), msg.Content)
		return nil
	},
}

var chatHistoryCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the local chat transcript, or a document's server-side history",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		var msgs []model.ChatMessage
		if historyDoc != "" {
			if msgs, err = s.Client.ChatHistory(cmd.Context(), historyDoc); err != nil {
				return err
			}
		} else {
			s.Chat.Load(cmd.Context())
			msgs = s.Store.Snapshot().ChatHistory
		}
		if historyLast > 0 && len(msgs) > historyLast {
			msgs = msgs[len(msgs)-historyLast:]
		}
		printTranscript(cmd.OutOrStdout(), msgs)
		return nil
	},
}

var chatClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the local chat transcript",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer s.Close()
		if err := s.Chat.Clear(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Chat history cleared")
		return nil
	},
}

func printTranscript(out io.Writer, msgs []model.ChatMessage) {
	if len(msgs) == 0 {
		fmt.Fprintln(out, "(no messages)")
		return
	}
	for _, m := range msgs {
		prefix := "you"
		if m.Role == model.RoleAssistant {
			prefix = "assistant"
		}
		if m.Error {
			prefix += " ✗"
		}
		ts := ""
		if !m.Timestamp.IsZero() {
			ts = m.Timestamp.Local().Format("2006-01-02 15:04") + " "
		}
		fmt.Fprintf(out, "%s[%s] %s\n", ts, prefix, m.Content)
	}
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.AddCommand(chatHistoryCmd, chatClearCmd)
	chatCmd.Flags().StringVarP(&chatDocID, "doc", "d", "", "document id (default: all documents)")
	chatHistoryCmd.Flags().StringVarP(&historyDoc, "doc", "d", "", "fetch the server-side history of this document")
	chatHistoryCmd.Flags().IntVarP(&historyLast, "last", "n", 0, "show only the last n messages")
}
