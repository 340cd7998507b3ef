package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/atriumlabs/atrium/api"
	"github.com/atriumlabs/atrium/entitlement"
)

var entitlementCmd = &cobra.Command{
	Use:   "entitlement",
	Short: "Check the account's subscription status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()

		log := newLogger()
		store, refresher, err := signIn(ctx, log)
		if err != nil {
			return err
		}

		exec := api.New(viper.GetString("base-url"), store, refresher,
			api.WithTimeout(configuredTimeout()),
			api.WithLogger(log),
		)

		attempts, _ := cmd.Flags().GetInt("attempts")
		interval, _ := cmd.Flags().GetDuration("interval")
		wait, _ := cmd.Flags().GetBool("wait")

		poller := entitlement.NewPoller(exec, attempts, interval, log)

		var st entitlement.Status
		if wait {
			st, err = poller.Wait(ctx)
		} else {
			st, err = poller.Check(ctx)
		}
		if err != nil && !errors.Is(err, entitlement.ErrNotEntitled) {
			return err
		}

		fmt.Println(st)
		if !st.Entitled() {
			os.Exit(1)
		}
		return nil
	},
}

func init() {
	entitlementCmd.Flags().Bool("wait", false, "poll until the subscription becomes active")
	entitlementCmd.Flags().Int("attempts", 10, "poll attempts before giving up (with --wait)")
	entitlementCmd.Flags().Duration("interval", 3*time.Second, "delay between polls (with --wait)")
}
