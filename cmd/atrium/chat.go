package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atriumlabs/atrium"
	"github.com/atriumlabs/atrium/assistant"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive conversation with the assistant",
	Long: `Chat starts a read-eval loop: each line you type is sent to the
assistant and the answer streams back. The conversation ID from the first
answer is reused for the rest of the session so follow-up questions keep
their context. Ctrl-C cancels the current answer; Ctrl-D exits.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		log := newLogger()
		store, refresher, err := signIn(cmd.Context(), log)
		if err != nil {
			return err
		}

		transport := assistant.New(viper.GetString("base-url"), store, refresher,
			assistant.WithTimeout(configuredTimeout()),
			assistant.WithLogger(log),
		)

		fileURL, _ := cmd.Flags().GetString("file")
		chatID := ""

		scanner := bufio.NewScanner(os.Stdin)
		for {
			fmt.Print("> ")
			if !scanner.Scan() {
				fmt.Println()
				return scanner.Err()
			}
			question := strings.TrimSpace(scanner.Text())
			if question == "" {
				continue
			}

			// A fresh signal scope per turn: Ctrl-C cancels the answer in
			// flight, not the whole session.
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			id, err := streamAnswer(ctx, transport, atrium.StreamQuery{
				Question:       question,
				ContextRef:     fileURL,
				ConversationID: chatID,
			})
			stop()

			if id != "" {
				chatID = id
			}
			switch {
			case err == nil:
			case errors.Is(err, context.Canceled):
				fmt.Fprintln(os.Stderr, "\ncancelled")
			default:
				var ee *atrium.EntitlementError
				if errors.As(err, &ee) {
					return fmt.Errorf("subscription required: %s", ee.Body)
				}
				fmt.Fprintf(os.Stderr, "\nerror: %v\n", err)
			}
		}
	},
}

func init() {
	chatCmd.Flags().String("file", "", "URL of the course material the conversation refers to")
}
