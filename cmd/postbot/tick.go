package main

import (
	"context"
	"fmt"

	"github.com/abdulachik/postbot/internal/config"
	"github.com/spf13/cobra"
)

var tickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Publish due posts once and exit",
	Long: `Run a single scheduler tick: publish every post that is due now
and exit. Useful when an external scheduler such as cron drives postbot.`,
	RunE: runTick,
}

func init() {
	rootCmd.AddCommand(tickCmd)
}

func runTick(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).ValidateForServe)
	if err != nil {
		return err
	}
	defer a.Close()

	report, err := a.Scheduler().Tick(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "posted: %d  failed: %d  skipped: %d  store errors: %d\n",
		report.Posted, report.Failed, report.Skipped, report.StoreErrors)
	if report.StoreErrors > 0 {
		return fmt.Errorf("%d posts could not be recorded", report.StoreErrors)
	}
	return nil
}
