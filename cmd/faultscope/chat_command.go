package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"faultscope/internal/narrator"
)

func newChatCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive conversation over the indexed dataset",
		RunE: func(cmd *cobra.Command, args []string) error {
			sess, err := ctx.openSession(false, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "faultscope chat — type a question, or 'exit' to leave.")
			if sess.catalog != nil && sess.catalog.SessionCount() > 0 {
				fmt.Fprintf(out, "Dataset: %s (%d sessions)\n", sess.catalog.Root(), sess.catalog.SessionCount())
			} else {
				fmt.Fprintln(out, "No dataset indexed; technical requests will ask you to configure one.")
			}
			fmt.Fprintln(out, "Try for example:")
			for _, suggestion := range narrator.Suggestions {
				fmt.Fprintf(out, "  - %s\n", suggestion.Display)
			}
			fmt.Fprintln(out)

			conversationID := uuid.NewString()
			scanner := bufio.NewScanner(cmd.InOrStdin())
			scanner.Buffer(make([]byte, 0, 64*1024), 64*1024)

			for {
				fmt.Fprint(out, "> ")
				if !scanner.Scan() {
					fmt.Fprintln(out)
					return scanner.Err()
				}
				text := strings.TrimSpace(scanner.Text())
				if text == "" {
					continue
				}
				if text == "exit" || text == "quit" {
					return nil
				}

				result, err := sess.orch.Execute(cmd.Context(), conversationID, text)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n\n", err)
					continue
				}
				if result.Response != "" {
					fmt.Fprintf(out, "%s\n\n", result.Response)
				} else if result.Failed() {
					fmt.Fprintf(out, "error: %s\n\n", result.ErrorMessage)
				}
			}
		},
	}
}
