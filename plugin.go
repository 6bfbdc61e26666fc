package inbound

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/roadrunner-server/errors"
	"github.com/roadrunner-server/goridge/v3/pkg/frame"
	"github.com/roadrunner-server/pool/payload"
	"github.com/roadrunner-server/pool/pool"
	staticPool "github.com/roadrunner-server/pool/pool/static_pool"
	"github.com/roadrunner-server/pool/state/process"
	"github.com/roadrunner-server/pool/worker"
	"go.uber.org/zap"

	"github.com/roadrunner-plugins/inbound/addressing"
	"github.com/roadrunner-plugins/inbound/dispatch"
	"github.com/roadrunner-plugins/inbound/email"
	"github.com/roadrunner-plugins/inbound/handler"
)

const (
	pluginName string = "inbound"
	RrMode     string = "RR_MODE"
)

// Pool interface for PHP worker pool operations
type Pool interface {
	Workers() []*worker.Process
	RemoveWorker(ctx context.Context) error
	AddWorker() error
	Exec(ctx context.Context, p *payload.Payload, stopCh chan struct{}) (chan *staticPool.PExec, error)
	Reset(ctx context.Context) error
	Destroy(ctx context.Context)
}

// Logger provides named logger instances
type Logger interface {
	NamedLogger(name string) *zap.Logger
}

// Server creates PHP worker pools
type Server interface {
	NewPool(ctx context.Context, cfg *pool.Config, env map[string]string, _ *zap.Logger) (*staticPool.Pool, error)
}

// Configurer reads plugin configuration
type Configurer interface {
	UnmarshalKey(name string, out any) error
	Has(name string) bool
}

// Plugin is the inbound email plugin: it dispatches raw messages to its
// receivers and mints signed reply addresses.
type Plugin struct {
	mu  sync.RWMutex
	cfg *Config
	log *zap.Logger

	// PHP worker pool, nil unless configured
	server Server
	wPool  Pool

	signer   *addressing.Signer
	resolver *addressing.Resolver
	pipeline *dispatch.Pipeline
	metrics  *dispatch.Metrics
}

// Init initializes the plugin with configuration
func (p *Plugin) Init(log Logger, cfg Configurer, server Server) error {
	const op = errors.Op("inbound_plugin_init")

	if !cfg.Has(pluginName) {
		return errors.E(op, errors.Disabled)
	}

	p.cfg = &Config{}
	err := cfg.UnmarshalKey(pluginName, p.cfg)
	if err != nil {
		return errors.E(op, err)
	}

	// returned as is so that errors.Is finds email.ErrInvalidAddress
	err = p.cfg.InitDefault()
	if err != nil {
		return err
	}

	p.log = log.NamedLogger(pluginName)
	p.server = server

	p.signer, err = addressing.NewSigner(p.cfg.Keys(), p.cfg.Algorithms())
	if err != nil {
		return errors.E(op, err)
	}
	p.resolver = addressing.NewResolver(p.signer, p.log)
	p.metrics = dispatch.NewMetrics(pluginName)
	p.pipeline = dispatch.New(p.log, dispatch.WithMetrics(p.metrics))

	if p.cfg.Archive != nil {
		archive, err := handler.NewArchive(p.cfg.Archive.Dir, p.log)
		if err != nil {
			return errors.E(op, err)
		}
		p.pipeline.Register("archive", archive)
	}

	if p.cfg.Pool != nil {
		p.pipeline.Register("worker", handler.NewWorker(p, p.resolver, handler.WorkerOptions{
			Namespace:  p.cfg.Namespace,
			Base:       p.cfg.Base(),
			IncludeRaw: p.cfg.IncludeRaw,
		}, p.log))
	}

	return nil
}

// Serve starts the PHP worker pool when one is configured
func (p *Plugin) Serve() chan error {
	errCh := make(chan error, 1)

	p.log.Info("inbound plugin started",
		zap.String("base_address", p.cfg.Base().Spec()),
		zap.String("namespace", p.cfg.Namespace),
		zap.Strings("receivers", p.pipeline.Receivers()),
		zap.Bool("worker_pool", p.cfg.Pool != nil),
	)

	if p.cfg.Pool == nil {
		return errCh
	}

	wPool, err := p.server.NewPool(context.Background(), p.cfg.Pool, map[string]string{RrMode: pluginName}, nil)
	if err != nil {
		errCh <- err
		return errCh
	}

	p.mu.Lock()
	p.wPool = wPool
	p.mu.Unlock()

	return errCh
}

// Stop performs graceful shutdown
func (p *Plugin) Stop(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	doneCh := make(chan struct{}, 1)

	go func() {
		if p.wPool != nil {
			p.wPool.Destroy(ctx)
		}
		doneCh <- struct{}{}
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-doneCh:
		p.log.Info("inbound plugin stopped gracefully")
		return nil
	}
}

// Reset resets the PHP worker pool
func (p *Plugin) Reset() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	const op = errors.Op("inbound_reset")
	if p.wPool == nil {
		return errors.E(op, errors.Str("worker pool not configured"))
	}

	p.log.Info("reset signal received")

	err := p.wPool.Reset(context.Background())
	if err != nil {
		return errors.E(op, err)
	}

	p.log.Info("plugin was successfully reset")
	return nil
}

// Workers returns current worker states
func (p *Plugin) Workers() []*process.State {
	p.mu.RLock()
	if p.wPool == nil {
		p.mu.RUnlock()
		return nil
	}
	wrk := p.wPool.Workers()
	p.mu.RUnlock()

	ps := make([]*process.State, len(wrk))

	for i := range wrk {
		st, err := process.WorkerProcessState(wrk[i])
		if err != nil {
			p.log.Error("failed to get worker state", zap.Error(err))
			return nil
		}
		ps[i] = st
	}

	return ps
}

// Name returns plugin name
func (p *Plugin) Name() string {
	return pluginName
}

// RPC returns RPC interface
func (p *Plugin) RPC() any {
	return &rpc{p: p}
}

// MetricsCollector returns the dispatch counters
func (p *Plugin) MetricsCollector() []prometheus.Collector {
	return p.metrics.Collectors()
}

// Register adds a receiver; it must be called before the first dispatch
func (p *Plugin) Register(name string, h dispatch.Handler) {
	p.pipeline.Register(name, h)
}

// Dispatch delivers a raw message to every receiver and reports whether one
// processed it
func (p *Plugin) Dispatch(ctx context.Context, raw []byte) bool {
	return p.pipeline.Dispatch(ctx, raw)
}

// Address mints a signed reply address for id
func (p *Plugin) Address(namespace string, id int64) (string, error) {
	if namespace == "" {
		namespace = p.cfg.Namespace
	}
	return p.signer.Encode(namespace, p.cfg.Base().Spec(), id)
}

// Resolve returns the verified ids a message refers to under the configured
// namespace
func (p *Plugin) Resolve(msg *email.Message) []int64 {
	return p.resolver.Resolve(msg, p.cfg.Namespace, p.cfg.Base())
}

// Exec sends payload to PHP worker pool
func (p *Plugin) Exec(ctx context.Context, pld *payload.Payload) (*payload.Payload, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.wPool == nil {
		return nil, errors.Str("worker pool not initialized")
	}

	result, err := p.wPool.Exec(ctx, pld, nil)
	if err != nil {
		return nil, err
	}

	select {
	case pldResult := <-result:
		if pldResult.Error() != nil {
			return nil, pldResult.Error()
		}

		// streaming is not supported
		if pldResult.Payload().Flags&frame.STREAM != 0 {
			return nil, errors.Str("streaming is not supported")
		}

		return pldResult.Payload(), nil

	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
