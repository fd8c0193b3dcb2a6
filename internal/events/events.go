package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Type identifies the stage an ItemEvent reports on.
type Type string

// Event types.
const (
	ItemDownloaded  Type = "item.downloaded"
	ItemTransformed Type = "item.transformed"
)

// ItemEvent reports that one record finished a stage.
type ItemEvent struct {
	ID    uuid.UUID `json:"id"`
	Type  Type      `json:"type"`
	RunID string    `json:"run_id"`

	ItemID string `json:"item_id"`
	Name   string `json:"name"`

	// Done counts the records of the stage finished so far, this one
	// included. Events of one stage may arrive out of record order.
	Done  int `json:"done"`
	Total int `json:"total"`

	Succeeded bool   `json:"succeeded"`
	Partial   bool   `json:"partial,omitempty"`
	Error     string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// NewItemEvent creates an ItemEvent with a fresh id and timestamp.
func NewItemEvent(t Type, runID, itemID, name string, done, total int) *ItemEvent {
	return &ItemEvent{
		ID:        uuid.New(),
		Type:      t,
		RunID:     runID,
		ItemID:    itemID,
		Name:      name,
		Done:      done,
		Total:     total,
		CreatedAt: time.Now().UTC(),
	}
}

// Handler consumes events.
type Handler interface {
	HandleEvent(ctx context.Context, event *ItemEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, event *ItemEvent) error

// HandleEvent implements Handler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *ItemEvent) error {
	return f(ctx, event)
}

// Emitter publishes events.
type Emitter interface {
	EmitEvent(ctx context.Context, event *ItemEvent) error
}
