package dispatch

import (
	"context"

	"github.com/roadrunner-plugins/inbound/email"
)

// Outcome is a receiver's verdict on one message.
type Outcome int

const (
	// Ignored means the message was not meant for the receiver.
	Ignored Outcome = iota
	// Processed means the receiver consumed the message.
	Processed
	// Failed means the message was meant for the receiver but could not be used.
	Failed
)

func (o Outcome) String() string {
	switch o {
	case Processed:
		return "PROCESSED"
	case Failed:
		return "FAILED"
	case Ignored:
		return "IGNORED"
	}
	return "UNKNOWN"
}

// ParseOutcome maps the textual form back to an Outcome.
func ParseOutcome(s string) (Outcome, bool) {
	switch s {
	case "PROCESSED":
		return Processed, true
	case "FAILED":
		return Failed, true
	case "IGNORED":
		return Ignored, true
	}
	return Ignored, false
}

// Handler consumes parsed messages. A non-nil error signals a malfunction,
// which the pipeline logs separately from an explicit Failed outcome.
type Handler interface {
	Handle(ctx context.Context, msg *email.Message) (Outcome, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, msg *email.Message) (Outcome, error)

func (f HandlerFunc) Handle(ctx context.Context, msg *email.Message) (Outcome, error) {
	return f(ctx, msg)
}
