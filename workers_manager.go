package inbound

import (
	"context"

	"github.com/roadrunner-server/errors"
)

// AddWorker adds a new PHP worker to the pool
func (p *Plugin) AddWorker() error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.wPool == nil {
		return errors.Str("worker pool not configured")
	}
	return p.wPool.AddWorker()
}

// RemoveWorker removes a PHP worker from the pool
func (p *Plugin) RemoveWorker(ctx context.Context) error {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.wPool == nil {
		return errors.Str("worker pool not configured")
	}
	return p.wPool.RemoveWorker(ctx)
}
