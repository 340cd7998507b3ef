package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atriumlabs/atrium"
	"github.com/atriumlabs/atrium/assistant"
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask a single question and stream the answer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		log := newLogger()
		store, refresher, err := signIn(ctx, log)
		if err != nil {
			return err
		}

		transport := assistant.New(viper.GetString("base-url"), store, refresher,
			assistant.WithTimeout(configuredTimeout()),
			assistant.WithLogger(log),
		)

		fileURL, _ := cmd.Flags().GetString("file")
		chatID, _ := cmd.Flags().GetString("chat")
		q := atrium.StreamQuery{
			Question:       args[0],
			ContextRef:     fileURL,
			ConversationID: chatID,
		}

		newChatID, err := streamAnswer(ctx, transport, q)
		if err != nil {
			return err
		}
		if newChatID != "" {
			fmt.Fprintf(os.Stderr, "chat id: %s (pass --chat to continue)\n", newChatID)
		}
		return nil
	},
}

func init() {
	askCmd.Flags().String("file", "", "URL of the course material the question refers to")
	askCmd.Flags().String("chat", "", "conversation ID to continue")
}

// streamAnswer sends q and writes answer fragments to stdout as they
// arrive. It returns the conversation ID from the metadata event, if the
// server sent one.
func streamAnswer(ctx context.Context, t *assistant.Transport, q atrium.StreamQuery) (string, error) {
	done := make(chan struct{})
	var (
		once    sync.Once
		chatID  string
		failure error
	)
	finish := func(err error) {
		once.Do(func() {
			failure = err
			close(done)
		})
	}

	t.Start(ctx, q,
		func(evt atrium.Event) {
			switch {
			case evt.Kind == atrium.EventAnswer:
				fmt.Print(evt.Payload)
			case evt.Kind == atrium.EventMetadata && evt.Meta != nil:
				chatID = evt.Meta.ChatID
			case evt.IndicatesFailure():
				fmt.Fprintf(os.Stderr, "\nserver reported: %s\n", evt.Payload)
			case evt.Kind == atrium.EventComplete:
				fmt.Println()
				finish(nil)
			}
		},
		finish,
	)

	// Some streams end with the connection closing instead of a complete
	// event, so watch the session state as well as the sink.
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return chatID, failure
		case <-ctx.Done():
			t.Cancel()
			return chatID, ctx.Err()
		case <-ticker.C:
			if t.State() == assistant.StateCompleted {
				finish(nil)
			}
		}
	}
}
