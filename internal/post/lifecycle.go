package post

import (
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxContentLength is the maximum number of characters in a post.
const MaxContentLength = 280

// Actor identifies who is requesting a status change.
type Actor int

const (
	// ActorUser edits posts through the CLI.
	ActorUser Actor = iota
	// ActorDispatcher records the outcome of a publish attempt.
	ActorDispatcher
)

func (a Actor) String() string {
	switch a {
	case ActorUser:
		return "user"
	case ActorDispatcher:
		return "dispatcher"
	}
	return fmt.Sprintf("actor(%d)", int(a))
}

var transitions = map[Actor]map[Status][]Status{
	ActorUser: {
		StatusDraft:     {StatusDraft, StatusScheduled},
		StatusScheduled: {StatusScheduled, StatusDraft},
		StatusFailed:    {StatusFailed, StatusScheduled, StatusDraft},
	},
	ActorDispatcher: {
		StatusScheduled: {StatusPosted, StatusFailed},
	},
}

// CheckTransition returns nil if actor may move a post from one status to another.
func CheckTransition(actor Actor, from, to Status) error {
	if !from.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(from))
	}
	if !to.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, string(to))
	}
	if from.Terminal() {
		if actor == ActorUser {
			return ErrImmutable
		}
		return fmt.Errorf("%w: %s is terminal", ErrInvalidTransition, from)
	}
	if !slices.Contains(transitions[actor][from], to) {
		return fmt.Errorf("%w: %s may not move %s -> %s", ErrInvalidTransition, actor, from, to)
	}
	return nil
}

// ValidateContent checks the content length invariant.
func ValidateContent(content string) error {
	if strings.TrimSpace(content) == "" {
		return &ValidationError{Field: "content", Message: "content is required"}
	}
	if n := utf8.RuneCountInString(content); n > MaxContentLength {
		return &ValidationError{
			Field:   "content",
			Message: fmt.Sprintf("content exceeds %d characters (got %d)", MaxContentLength, n),
		}
	}
	return nil
}

// ValidateNew checks a post about to be created.
func ValidateNew(content string, status Status, scheduledAt *time.Time) error {
	if err := ValidateContent(content); err != nil {
		return err
	}
	switch status {
	case StatusDraft:
	case StatusScheduled:
		if scheduledAt == nil || scheduledAt.IsZero() {
			return &ValidationError{Field: "scheduled_at", Message: "scheduled time is required"}
		}
	default:
		if !status.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, string(status))
		}
		return &ValidationError{Field: "status", Message: fmt.Sprintf("new posts must be draft or scheduled, not %s", status)}
	}
	return nil
}

// Edit is a partial user edit. Nil fields are left unchanged.
type Edit struct {
	Content     *string
	MediaURLs   *[]string
	ScheduledAt *time.Time
	Status      *Status
}

// ValidateEdit checks an edit against the post's current status and schedule.
// It returns the status the post will have afterwards.
func ValidateEdit(current Status, currentScheduledAt *time.Time, e Edit) (Status, error) {
	if current.Terminal() {
		return current, ErrImmutable
	}
	if e.Content != nil {
		if err := ValidateContent(*e.Content); err != nil {
			return current, err
		}
	}

	target := current
	if e.Status != nil {
		target = *e.Status
	}
	if err := CheckTransition(ActorUser, current, target); err != nil {
		return current, err
	}

	if target == StatusScheduled {
		at := currentScheduledAt
		if e.ScheduledAt != nil {
			at = e.ScheduledAt
		}
		if at == nil || at.IsZero() {
			return current, &ValidationError{Field: "scheduled_at", Message: "scheduled time is required"}
		}
	}
	return target, nil
}

// ValidateOutcome checks the dispatcher's result fields against the status
// invariants: posted carries a remote id, failed carries a message.
func ValidateOutcome(status Status, remoteID, errorMessage string) error {
	switch status {
	case StatusPosted:
		if remoteID == "" {
			return fmt.Errorf("%w: posted requires a remote id", ErrInvalidTransition)
		}
		if errorMessage != "" {
			return fmt.Errorf("%w: posted must not carry an error message", ErrInvalidTransition)
		}
	case StatusFailed:
		if errorMessage == "" {
			return fmt.Errorf("%w: failed requires an error message", ErrInvalidTransition)
		}
		if remoteID != "" {
			return fmt.Errorf("%w: failed must not carry a remote id", ErrInvalidTransition)
		}
	default:
		if !status.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidStatus, string(status))
		}
		return fmt.Errorf("%w: dispatcher may not record %s", ErrInvalidTransition, status)
	}
	return nil
}
