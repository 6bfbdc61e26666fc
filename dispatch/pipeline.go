// Package dispatch parses inbound messages and fans them out to registered
// receivers, reducing their outcomes to a single handled verdict.
package dispatch

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/roadrunner-plugins/inbound/email"
)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics records verdicts and outcomes in m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

type receiver struct {
	name    string
	handler Handler
}

// Pipeline delivers each message to every receiver, in registration order.
// Receivers must be registered before the first Dispatch; afterwards the
// pipeline is read-only and Dispatch may be called concurrently.
type Pipeline struct {
	log       *zap.Logger
	metrics   *Metrics
	receivers []receiver
}

// New returns an empty pipeline. A nil logger discards output.
func New(log *zap.Logger, opts ...Option) *Pipeline {
	if log == nil {
		log = zap.NewNop()
	}
	p := &Pipeline{log: log}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Register appends a receiver. name identifies it in logs and metrics.
func (p *Pipeline) Register(name string, h Handler) {
	p.receivers = append(p.receivers, receiver{name: name, handler: h})
}

// Receivers returns the registered receiver names in order.
func (p *Pipeline) Receivers() []string {
	names := make([]string, len(p.receivers))
	for i := range p.receivers {
		names[i] = p.receivers[i].name
	}
	return names
}

// Dispatch parses raw and delivers it. It reports whether at least one
// receiver processed the message and never fails.
func (p *Pipeline) Dispatch(ctx context.Context, raw []byte) bool {
	msg, err := email.Parse(raw)
	if err != nil {
		p.log.Error("unparseable message",
			zap.String("raw", replaceNonASCII(raw)),
			zap.Error(err),
		)
		p.metrics.dispatched("unparseable")
		return false
	}
	return p.DispatchMessage(ctx, msg)
}

// DispatchMessage delivers an already parsed message. A nil message is logged
// and reported as unhandled.
func (p *Pipeline) DispatchMessage(ctx context.Context, msg *email.Message) bool {
	if msg == nil || msg.Part == nil {
		p.log.Error("unparseable message", zap.Error(email.ErrUnparseable))
		p.metrics.dispatched("unparseable")
		return false
	}
	if msg.UUID == "" {
		msg.UUID = uuid.NewString()
	}
	log := p.log.With(zap.String("uuid", msg.UUID))

	for _, defect := range msg.Defects {
		log.Warn("message parse defect", zap.Error(defect))
	}

	var (
		handled bool
		failed  []string
	)
	for i := range p.receivers {
		r := &p.receivers[i]
		outcome, ok := p.deliver(ctx, log, r, msg)
		if !ok {
			p.metrics.observed(r.name, "error")
			continue
		}
		p.metrics.observed(r.name, outcome.String())

		switch outcome {
		case Processed:
			handled = true
		case Failed:
			failed = append(failed, r.name)
		}
	}

	if handled {
		log.Debug("message handled", zap.Stringer("message", msg))
		p.metrics.dispatched("handled")
		return true
	}

	for _, name := range failed {
		log.Error("failing receiver",
			zap.String("receiver", name),
			zap.Stringer("message", msg),
		)
	}
	log.Error("unhandled message", zap.Stringer("message", msg))
	p.metrics.dispatched("unhandled")
	return false
}

// deliver runs one receiver inside its own failure boundary. ok is false when
// the receiver returned an error or panicked; that case is logged here.
func (p *Pipeline) deliver(ctx context.Context, log *zap.Logger, r *receiver, msg *email.Message) (outcome Outcome, ok bool) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Error("failing receiver",
				zap.String("receiver", r.name),
				zap.Stringer("message", msg),
				zap.Error(fmt.Errorf("panic: %v", rec)),
				zap.Stack("stack"),
			)
			outcome, ok = Failed, false
		}
	}()

	outcome, err := r.handler.Handle(ctx, msg)
	if err != nil {
		log.Error("failing receiver",
			zap.String("receiver", r.name),
			zap.Stringer("message", msg),
			zap.Error(err),
		)
		return Failed, false
	}
	return outcome, true
}

// replaceNonASCII renders raw bytes for logging: ASCII passes through, every
// other byte becomes U+FFFD.
func replaceNonASCII(raw []byte) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, c := range raw {
		if c < utf8.RuneSelf {
			b.WriteByte(c)
			continue
		}
		b.WriteRune(utf8.RuneError)
	}
	return b.String()
}
