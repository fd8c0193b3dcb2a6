// Package tracker files rendered modeling guides as issues in a ticket
// tracker. The tracker itself sits behind Client; this package only knows
// how to turn a directory of markdown guides into paced create calls.
package tracker

import (
	"context"
	"errors"
)

// DefaultLabels are applied when no labels are configured.
var DefaultLabels = []string{"furniture-guide", "roblox"}

// Common tracker errors.
var (
	// ErrMissingRepository is returned when owner or repo is not set.
	ErrMissingRepository = errors.New("tracker owner and repo are required")

	// ErrMissingToken is returned by clients that need credentials.
	ErrMissingToken = errors.New("tracker token is required")
)

// Issue is the payload of a create call.
type Issue struct {
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	Labels    []string `json:"labels,omitempty"`
	Assignees []string `json:"assignees,omitempty"`
}

// Created identifies an issue the tracker accepted.
type Created struct {
	Number int    `json:"number"`
	URL    string `json:"html_url"`
}

// Client creates issues in a tracker.
type Client interface {
	CreateIssue(ctx context.Context, owner, repo string, issue Issue) (*Created, error)
}
