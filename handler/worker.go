package handler

import (
	"bytes"
	"context"

	"github.com/goccy/go-json"
	"github.com/roadrunner-server/errors"
	"github.com/roadrunner-server/pool/payload"
	"go.uber.org/zap"

	"github.com/roadrunner-plugins/inbound/addressing"
	"github.com/roadrunner-plugins/inbound/dispatch"
	"github.com/roadrunner-plugins/inbound/email"
	"github.com/roadrunner-plugins/inbound/recipient"
)

// Executor runs a payload on a worker and returns its response.
type Executor interface {
	Exec(ctx context.Context, pld *payload.Payload) (*payload.Payload, error)
}

// WorkerOptions configures a Worker.
type WorkerOptions struct {
	Namespace  string
	Base       email.Address
	IncludeRaw bool
}

// Worker forwards messages addressed to the base to a RoadRunner worker as a
// MessageEvent and adopts the worker's verdict.
type Worker struct {
	exec     Executor
	resolver *addressing.Resolver
	opts     WorkerOptions
	pools    *poolHelper
	log      *zap.Logger
}

// NewWorker returns a worker receiver.
func NewWorker(exec Executor, resolver *addressing.Resolver, opts WorkerOptions, log *zap.Logger) *Worker {
	if log == nil {
		log = zap.NewNop()
	}
	return &Worker{
		exec:     exec,
		resolver: resolver,
		opts:     opts,
		pools:    newPoolHelper(),
		log:      log,
	}
}

// Handle implements dispatch.Handler. The worker replies with PROCESSED,
// FAILED or IGNORED in the payload context.
func (w *Worker) Handle(ctx context.Context, msg *email.Message) (dispatch.Outcome, error) {
	const op = errors.Op("inbound_worker_handle")

	matches := recipient.MatchAll(msg, w.opts.Base)
	if len(matches) == 0 {
		return dispatch.Ignored, nil
	}
	ids := w.resolver.ResolveMatches(w.opts.Namespace, matches)

	ev := w.pools.getEvent()
	defer w.pools.putEvent(ev)
	newMessageEvent(ev, msg, w.opts.Namespace, ids, matches, w.opts.IncludeRaw)

	data, err := json.Marshal(ev)
	if err != nil {
		return dispatch.Failed, errors.E(op, err)
	}

	pld := w.pools.getPayload()
	defer w.pools.putPayload(pld)
	pld.Context = data
	pld.Body = nil

	rsp, err := w.exec.Exec(ctx, pld)
	if err != nil {
		return dispatch.Failed, errors.E(op, err)
	}

	verdict := string(bytes.TrimSpace(rsp.Context))
	w.log.Debug("worker response",
		zap.String("uuid", msg.UUID),
		zap.String("response", verdict),
	)

	outcome, ok := dispatch.ParseOutcome(verdict)
	if !ok {
		return dispatch.Failed, errors.E(op, errors.Errorf("unexpected worker response: %q", verdict))
	}
	return outcome, nil
}
