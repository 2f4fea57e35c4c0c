package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"
	"unicode/utf8"

	"github.com/abdulachik/postbot/internal/db"
	"github.com/abdulachik/postbot/internal/publisher"
)

const previewLength = 40

func printPosts(out io.Writer, posts []db.Post) {
	if len(posts) == 0 {
		fmt.Fprintln(out, "No posts.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATUS\tSCHEDULED\tCONTENT\tRESULT")
	for _, p := range posts {
		fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n",
			p.ID, statusLabel(p), formatTime(p.ScheduledTime()), preview(p.Content), result(p))
	}
	w.Flush()
}

func printPost(out io.Writer, p db.Post) {
	fmt.Fprintf(out, "Post %d\n", p.ID)
	fmt.Fprintf(out, "  Status:    %s\n", statusLabel(p))
	fmt.Fprintf(out, "  Scheduled: %s\n", formatTime(p.ScheduledTime()))
	fmt.Fprintf(out, "  Content:   %s\n", p.Content)

	media, err := p.DecodeMediaURLs()
	switch {
	case err != nil:
		fmt.Fprintf(out, "  Media:     (unreadable: %v)\n", err)
	case len(media) > 0:
		fmt.Fprintf(out, "  Media:     %s\n", strings.Join(media, ", "))
	}

	if p.RemoteID.Valid {
		fmt.Fprintf(out, "  Remote ID: %s\n", p.RemoteID.String)
	}
	if p.ErrorMessage.Valid {
		fmt.Fprintf(out, "  Error:     %s\n", p.ErrorMessage.String)
	}
	if p.ClaimedAt.Valid {
		fmt.Fprintf(out, "  Claimed:   %s\n", p.ClaimedAt.Time.Local().Format(time.DateTime))
	}
	fmt.Fprintf(out, "  Created:   %s\n", p.CreatedAt.Local().Format(time.DateTime))
	fmt.Fprintf(out, "  Updated:   %s\n", p.UpdatedAt.Local().Format(time.DateTime))
}

func statusLabel(p db.Post) string {
	switch {
	case p.ClaimedAt.Valid:
		return p.Status.String() + " (in flight)"
	case p.RemoteID.Valid && publisher.IsSimulated(p.RemoteID.String):
		return p.Status.String() + " (simulated)"
	}
	return p.Status.String()
}

func formatTime(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if utf8.RuneCountInString(s) <= previewLength {
		return s
	}
	r := []rune(s)
	return string(r[:previewLength-1]) + "…"
}

func result(p db.Post) string {
	switch {
	case p.RemoteID.Valid:
		return p.RemoteID.String
	case p.ErrorMessage.Valid:
		return preview(p.ErrorMessage.String)
	}
	return ""
}
