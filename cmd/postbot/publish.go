package main

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/abdulachik/postbot/internal/config"
	"github.com/abdulachik/postbot/internal/post"
	"github.com/abdulachik/postbot/internal/publisher"
	"github.com/spf13/cobra"
)

var publishMedia []string

var publishCmd = &cobra.Command{
	Use:   "publish <content>",
	Short: "Publish a post immediately without scheduling it",
	Long: `Send content straight to the configured platform. The post is not
stored, so it never appears in 'post list'. Use it to test credentials
end to end; without credentials the publish is simulated.`,
	Example: `  postbot publish "Testing 1 2 3"
  postbot publish "New logo" --media ./logo.png`,
	Args: cobra.ExactArgs(1),
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringSliceVar(&publishMedia, "media", nil, "Media URL or local path (repeatable, up to 4)")
	rootCmd.AddCommand(publishCmd)
}

func runPublish(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	a, err := openApp(ctx, (*config.Config).ValidateForServe)
	if err != nil {
		return err
	}
	defer a.Close()

	return publishNow(ctx, a.Publisher, cmd.OutOrStdout(), args[0], publishMedia, a.Config.PublishTimeout)
}

func publishNow(ctx context.Context, pub publisher.Publisher, out io.Writer, content string, media []string, timeout time.Duration) error {
	if err := post.ValidateContent(content); err != nil {
		return err
	}
	if len(media) > publisher.MaxMedia {
		return fmt.Errorf("too many media attachments: %d (max %d)", len(media), publisher.MaxMedia)
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	res, err := pub.Publish(ctx, content, media)
	if err != nil {
		return fmt.Errorf("publish to %s: %w", pub.Platform(), err)
	}

	if res.Simulated {
		fmt.Fprintf(out, "%s: simulated, remote id %s\n", pub.Platform(), res.RemoteID)
		return nil
	}
	fmt.Fprintf(out, "%s: published %s\n", pub.Platform(), res.RemoteID)
	if res.URL != "" {
		fmt.Fprintf(out, "  %s\n", res.URL)
	}
	return nil
}
