package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/abdulachik/postbot/internal/config"
	"github.com/abdulachik/postbot/internal/db"
	"github.com/abdulachik/postbot/internal/post"
	"github.com/spf13/cobra"
)

var postCmd = &cobra.Command{
	Use:   "post",
	Short: "Create, inspect and edit scheduled posts",
}

var (
	postCreateAt    string
	postCreateMedia []string
	postCreateDraft bool

	postListStatus string

	postEditContent    string
	postEditAt         string
	postEditMedia      []string
	postEditClearMedia bool
	postEditStatus     string
)

var postCreateCmd = &cobra.Command{
	Use:   "create <content>",
	Short: "Create a post",
	Long: `Create a post. Scheduled posts need --at; drafts may leave it out.

Examples:
  postbot post create "Launch day!" --at 2026-11-02T09:00:00Z
  postbot post create "Back in 30" --at +30m --media ./banner.png
  postbot post create "Someday" --draft`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *db.Store) error {
			return createPost(ctx, store, cmd.OutOrStdout(), args[0], createOptions{
				At:    postCreateAt,
				Media: postCreateMedia,
				Draft: postCreateDraft,
			}, time.Now())
		})
	},
}

var postListCmd = &cobra.Command{
	Use:   "list",
	Short: "List posts, latest scheduled first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *db.Store) error {
			return listPosts(ctx, store, cmd.OutOrStdout(), postListStatus)
		})
	},
}

var postUpcomingCmd = &cobra.Command{
	Use:   "upcoming",
	Short: "List scheduled posts that are not yet due",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withStore(func(ctx context.Context, store *db.Store) error {
			posts, err := store.ListUpcomingPosts(ctx, time.Now())
			if err != nil {
				return fmt.Errorf("list upcoming posts: %w", err)
			}
			printPosts(cmd.OutOrStdout(), posts)
			return nil
		})
	},
}

var postShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, store *db.Store) error {
			p, err := store.GetPost(ctx, id)
			if err != nil {
				return err
			}
			printPost(cmd.OutOrStdout(), p)
			return nil
		})
	},
}

var postEditCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Edit a post that has not been published",
	Long: `Edit content, media, schedule or status of a post. Published posts
cannot be edited. Moving a failed post back to scheduled retries it.

Examples:
  postbot post edit 7 --at +1h
  postbot post edit 7 --status scheduled
  postbot post edit 7 --content "Fixed typo" --clear-media`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		flags := cmd.Flags()
		edit, err := buildEdit(editOptions{
			Content:    postEditContent,
			At:         postEditAt,
			Media:      postEditMedia,
			ClearMedia: postEditClearMedia,
			Status:     postEditStatus,
			SetContent: flags.Changed("content"),
			SetAt:      flags.Changed("at"),
			SetMedia:   flags.Changed("media"),
			SetStatus:  flags.Changed("status"),
		}, time.Now())
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, store *db.Store) error {
			p, err := store.UpdatePostFields(ctx, id, edit)
			if err != nil {
				return fmt.Errorf("edit post %d: %w", id, err)
			}
			printPost(cmd.OutOrStdout(), p)
			return nil
		})
	},
}

var postDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a post",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, store *db.Store) error {
			if err := store.DeletePost(ctx, id); err != nil {
				return fmt.Errorf("delete post %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted post %d\n", id)
			return nil
		})
	},
}

var postReleaseCmd = &cobra.Command{
	Use:   "release <id>",
	Short: "Clear a stuck dispatch claim",
	Long: `Clear the dispatch claim left on a post when its outcome could not be
recorded. Check the platform first: if the post was in fact published,
releasing it will publish it again.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		return withStore(func(ctx context.Context, store *db.Store) error {
			if err := store.ReleaseClaim(ctx, id); err != nil {
				return fmt.Errorf("release post %d: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "released post %d\n", id)
			return nil
		})
	},
}

func init() {
	postCreateCmd.Flags().StringVar(&postCreateAt, "at", "", "When to publish: RFC 3339, \"2006-01-02 15:04\" (local), +duration or now")
	postCreateCmd.Flags().StringSliceVar(&postCreateMedia, "media", nil, "Media URL or local path (repeatable, up to 4)")
	postCreateCmd.Flags().BoolVar(&postCreateDraft, "draft", false, "Save as a draft instead of scheduling")

	postListCmd.Flags().StringVar(&postListStatus, "status", "", "Only show posts in this status")

	postEditCmd.Flags().StringVar(&postEditContent, "content", "", "New content")
	postEditCmd.Flags().StringVar(&postEditAt, "at", "", "New publish time")
	postEditCmd.Flags().StringSliceVar(&postEditMedia, "media", nil, "Replace media URLs")
	postEditCmd.Flags().BoolVar(&postEditClearMedia, "clear-media", false, "Remove all media")
	postEditCmd.Flags().StringVar(&postEditStatus, "status", "", "New status: draft or scheduled")

	postCmd.AddCommand(postCreateCmd, postListCmd, postUpcomingCmd, postShowCmd,
		postEditCmd, postDeleteCmd, postReleaseCmd)
	rootCmd.AddCommand(postCmd)
}

// withStore opens the app for a short CLI operation.
func withStore(fn func(ctx context.Context, store *db.Store) error) error {
	ctx := context.Background()
	a, err := openApp(ctx, (*config.Config).Validate)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(ctx, a.Store)
}

type createOptions struct {
	At    string
	Media []string
	Draft bool
}

func createPost(ctx context.Context, store *db.Store, out io.Writer, content string, opts createOptions, now time.Time) error {
	params := db.CreatePostParams{
		Content:   content,
		MediaURLs: opts.Media,
		Status:    post.StatusScheduled,
	}
	if opts.Draft {
		params.Status = post.StatusDraft
	}
	if opts.At != "" {
		at, err := parseWhen(opts.At, now)
		if err != nil {
			return err
		}
		params.ScheduledAt = &at
	}

	p, err := store.CreatePost(ctx, params)
	if err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	printPost(out, p)
	return nil
}

func listPosts(ctx context.Context, store *db.Store, out io.Writer, status string) error {
	var want post.Status
	if status != "" {
		s, err := post.ParseStatus(status)
		if err != nil {
			return err
		}
		want = s
	}

	posts, err := store.ListPosts(ctx)
	if err != nil {
		return fmt.Errorf("list posts: %w", err)
	}
	if want != "" {
		filtered := posts[:0]
		for _, p := range posts {
			if p.Status == want {
				filtered = append(filtered, p)
			}
		}
		posts = filtered
	}
	printPosts(out, posts)
	return nil
}

type editOptions struct {
	Content    string
	At         string
	Media      []string
	ClearMedia bool
	Status     string

	SetContent bool
	SetAt      bool
	SetMedia   bool
	SetStatus  bool
}

// buildEdit turns edit flags into a partial edit. Flags that were not given
// leave the field unchanged.
func buildEdit(opts editOptions, now time.Time) (post.Edit, error) {
	var e post.Edit
	if opts.SetContent {
		e.Content = &opts.Content
	}
	if opts.SetAt {
		at, err := parseWhen(opts.At, now)
		if err != nil {
			return post.Edit{}, err
		}
		e.ScheduledAt = &at
	}
	switch {
	case opts.ClearMedia && opts.SetMedia:
		return post.Edit{}, fmt.Errorf("--media and --clear-media cannot be combined")
	case opts.ClearMedia:
		empty := []string{}
		e.MediaURLs = &empty
	case opts.SetMedia:
		e.MediaURLs = &opts.Media
	}
	if opts.SetStatus {
		s, err := post.ParseStatus(opts.Status)
		if err != nil {
			return post.Edit{}, err
		}
		e.Status = &s
	}
	if e == (post.Edit{}) {
		return post.Edit{}, fmt.Errorf("nothing to edit")
	}
	return e, nil
}

// parseWhen accepts an RFC 3339 time, a local "2006-01-02 15:04" time,
// "+<duration>" relative to now, or "now".
func parseWhen(s string, now time.Time) (time.Time, error) {
	s = strings.TrimSpace(s)
	switch {
	case s == "now":
		return now, nil
	case strings.HasPrefix(s, "+"):
		d, err := time.ParseDuration(s[1:])
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time %q: %w", s, err)
		}
		return now.Add(d), nil
	}

	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	for _, layout := range []string{"2006-01-02 15:04", "2006-01-02T15:04"} {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid time %q: use RFC 3339, \"2006-01-02 15:04\", +duration or now", s)
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid post id %q", s)
	}
	return id, nil
}
