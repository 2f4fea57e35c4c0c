package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/abdulachik/postbot/internal/config"
	"github.com/abdulachik/postbot/internal/publisher"
	"github.com/spf13/cobra"
)

var recentCount int

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the account's latest published posts",
	Long: `Fetch the most recent posts on the configured account's timeline,
including posts made outside postbot. Without credentials the list is empty.`,
	RunE: runRecent,
}

func init() {
	recentCmd.Flags().IntVarP(&recentCount, "count", "n", publisher.DefaultRecentCount, "Number of posts to show (1-100)")
	rootCmd.AddCommand(recentCmd)
}

func runRecent(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()

	return writeRecent(ctx, a.Publisher, cmd.OutOrStdout(), recentCount)
}

func writeRecent(ctx context.Context, pub publisher.Publisher, out io.Writer, count int) error {
	if !pub.Configured() {
		fmt.Fprintf(out, "%s: not configured, no timeline to show\n", pub.Platform())
		return nil
	}

	posts, err := pub.RecentPosts(ctx, count)
	if err != nil {
		return fmt.Errorf("fetch recent %s posts: %w", pub.Platform(), err)
	}
	if len(posts) == 0 {
		fmt.Fprintln(out, "No posts.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "POSTED\tLIKES\tREPOSTS\tREPLIES\tCONTENT\tURL")
	for _, p := range posts {
		fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%s\t%s\n",
			formatTime(&p.CreatedAt), p.Likes, p.Reposts, p.Replies, preview(p.Text), p.URL)
	}
	return w.Flush()
}
