// Package handler provides receivers for the dispatch pipeline: a generic
// record resolver, a RoadRunner worker bridge and a maildir archive.
package handler

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/roadrunner-plugins/inbound/addressing"
	"github.com/roadrunner-plugins/inbound/dispatch"
	"github.com/roadrunner-plugins/inbound/email"
	"github.com/roadrunner-plugins/inbound/recipient"
)

// Delivery is what a Record hands to its sink.
type Delivery struct {
	IDs     []int64
	Text    string
	Plain   bool
	Message *email.Message
}

// Sink applies a resolved message to the host's records.
type Sink interface {
	Deliver(ctx context.Context, d Delivery) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, d Delivery) error

func (f SinkFunc) Deliver(ctx context.Context, d Delivery) error {
	return f(ctx, d)
}

// Record resolves the ids a message refers to under one namespace and passes
// them with the body text to a Sink.
type Record struct {
	resolver  *addressing.Resolver
	namespace string
	base      email.Address
	sink      Sink
	log       *zap.Logger
}

// NewRecord returns a receiver for messages sent to base under namespace.
func NewRecord(resolver *addressing.Resolver, namespace string, base email.Address, sink Sink, log *zap.Logger) *Record {
	if log == nil {
		log = zap.NewNop()
	}
	return &Record{
		resolver:  resolver,
		namespace: namespace,
		base:      base,
		sink:      sink,
		log:       log,
	}
}

// Handle implements dispatch.Handler. Messages not addressed to the base are
// ignored; addressed ones without a verified id fail.
func (r *Record) Handle(ctx context.Context, msg *email.Message) (dispatch.Outcome, error) {
	matches := recipient.MatchAll(msg, r.base)
	if len(matches) == 0 {
		return dispatch.Ignored, nil
	}

	ids := r.resolver.ResolveMatches(r.namespace, matches)
	if len(ids) == 0 {
		r.log.Info("no record could be resolved",
			zap.String("uuid", msg.UUID),
			zap.String("namespace", r.namespace),
		)
		return dispatch.Failed, nil
	}

	plain, fragments := email.BestText(msg.Part)
	err := r.sink.Deliver(ctx, Delivery{
		IDs:     ids,
		Text:    strings.Join(fragments, ""),
		Plain:   plain,
		Message: msg,
	})
	if err != nil {
		return dispatch.Failed, err
	}

	r.log.Debug("message delivered to records",
		zap.String("uuid", msg.UUID),
		zap.Int64s("ids", ids),
	)
	return dispatch.Processed, nil
}
