package main

import (
	"context"
	"fmt"

	"github.com/abdulachik/postbot/internal/config"
	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Check publisher credentials",
	Long: `Check that the configured platform accepts the credentials.
Nothing is published.`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	pub := a.Publisher
	if !pub.Configured() {
		fmt.Fprintf(out, "%s: not configured, posts will be simulated\n", pub.Platform())
		return a.Config.ValidateForPublishing()
	}

	id, err := pub.VerifyCredentials(ctx)
	if err != nil {
		return fmt.Errorf("verify %s credentials: %w", pub.Platform(), err)
	}

	fmt.Fprintf(out, "%s: authenticated as @%s (%s, id %s)\n", pub.Platform(), id.Username, id.Name, id.ID)
	return nil
}
