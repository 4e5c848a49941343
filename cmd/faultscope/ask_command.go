package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newAskCommand(ctx *commandContext) *cobra.Command {
	var conversationID string
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one conversational turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.TrimSpace(strings.Join(args, " "))

			sess, err := ctx.openSession(false, nil)
			if err != nil {
				return err
			}
			defer sess.Close()

			result, err := sess.orch.Execute(cmd.Context(), conversationID, text)
			if err != nil {
				return err
			}

			if jsonOut {
				return writeJSON(cmd, result)
			}

			out := cmd.OutOrStdout()
			if result.Response != "" {
				fmt.Fprintln(out, result.Response)
			}
			if result.Failed() {
				if result.ErrorMessage != "" {
					return errors.New(result.ErrorMessage)
				}
				return errors.New("turn failed")
			}
			if result.Degraded {
				fmt.Fprintln(cmd.ErrOrStderr(), "(narration degraded: language model endpoint unreachable)")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&conversationID, "conversation", "", "Conversation ID to continue (new one when empty)")
	cmd.Flags().BoolVar(&jsonOut, "json", false, "Emit the full turn result as JSON")
	return cmd
}
