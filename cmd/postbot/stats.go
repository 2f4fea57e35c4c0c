package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/abdulachik/postbot/internal/config"
	"github.com/abdulachik/postbot/internal/db"
	"github.com/abdulachik/postbot/internal/post"
	"github.com/spf13/cobra"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show post statistics",
	Long:  `Display post counts by status, the next scheduled post and any stuck dispatches.`,
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Fprintln(cmd.OutOrStdout(), "=== Postbot Statistics ===")
	fmt.Fprintln(cmd.OutOrStdout())
	fmt.Fprintf(cmd.OutOrStdout(), "Database: %s\n", a.Config.DatabasePath)
	platform := a.Publisher.Platform()
	if !a.Publisher.Configured() {
		platform += " (simulated)"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Platform: %s\n\n", platform)

	return writeStats(ctx, a.Store, cmd.OutOrStdout(), time.Now(), a.Config.ClaimStaleAfter)
}

func writeStats(ctx context.Context, store *db.Store, out io.Writer, now time.Time, staleAfter time.Duration) error {
	counts, err := store.CountPostsByStatus(ctx)
	if err != nil {
		return fmt.Errorf("count posts: %w", err)
	}
	byStatus := make(map[post.Status]int64, len(counts))
	var total int64
	for _, c := range counts {
		byStatus[c.Status] = c.Count
		total += c.Count
	}

	fmt.Fprintln(out, "Posts:")
	fmt.Fprintf(out, "  Total: %d\n", total)
	for _, s := range post.Statuses {
		fmt.Fprintf(out, "  %s: %d\n", s, byStatus[s])
	}
	fmt.Fprintln(out)

	due, err := store.ListDuePosts(ctx, now)
	if err != nil {
		return fmt.Errorf("list due posts: %w", err)
	}
	upcoming, err := store.ListUpcomingPosts(ctx, now)
	if err != nil {
		return fmt.Errorf("list upcoming posts: %w", err)
	}

	fmt.Fprintln(out, "Schedule:")
	fmt.Fprintf(out, "  Due now: %d\n", len(due))
	fmt.Fprintf(out, "  Upcoming: %d\n", len(upcoming))
	if len(upcoming) > 0 {
		next := upcoming[0]
		fmt.Fprintf(out, "  Next: post %d at %s\n", next.ID, formatTime(next.ScheduledTime()))
	}
	fmt.Fprintln(out)

	stale, err := store.ListStaleClaims(ctx, now.Add(-staleAfter))
	if err != nil {
		return fmt.Errorf("list stale claims: %w", err)
	}
	if len(stale) > 0 {
		fmt.Fprintln(out, "Stuck in dispatch (check the platform, then 'postbot post release <id>'):")
		for _, p := range stale {
			fmt.Fprintf(out, "  post %d claimed %s\n", p.ID, p.ClaimedAt.Time.Local().Format(time.DateTime))
		}
		fmt.Fprintln(out)
	}
	return nil
}
