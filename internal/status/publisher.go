package status

import (
	"context"
	"time"

	"github.com/uncmorfi/reservation-service/internal/models"
)

type EventType string

const (
	EventState   EventType = "state"
	EventAttempt EventType = "attempt"
	EventCode    EventType = "code"
)

// Event is one published status update: a lifecycle state transition, an
// attempt-counter tick, or a general status code.
type Event struct {
	Card      string               `json:"card"`
	Type      EventType            `json:"type"`
	State     models.ReserveStatus `json:"state,omitempty"`
	Code      models.StatusCode    `json:"code,omitempty"`
	Attempt   int                  `json:"attempt,omitempty"`
	Timestamp time.Time            `json:"timestamp"`
}

// Publisher is the sink the controller writes status updates into.
// Implementations must never block the caller's timeline.
type Publisher interface {
	State(ctx context.Context, card string, st models.ReserveStatus)
	Attempt(ctx context.Context, card string, n int)
	Code(ctx context.Context, card string, code models.StatusCode)
}

// Fanout publishes every update to each wrapped publisher in order.
type Fanout []Publisher

func (f Fanout) State(ctx context.Context, card string, st models.ReserveStatus) {
	for _, p := range f {
		p.State(ctx, card, st)
	}
}

func (f Fanout) Attempt(ctx context.Context, card string, n int) {
	for _, p := range f {
		p.Attempt(ctx, card, n)
	}
}

func (f Fanout) Code(ctx context.Context, card string, code models.StatusCode) {
	for _, p := range f {
		p.Code(ctx, card, code)
	}
}
