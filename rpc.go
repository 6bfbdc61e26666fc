package inbound

import (
	"context"

	"github.com/roadrunner-server/pool/state/process"
)

// rpc provides RPC interface for external management
type rpc struct {
	p *Plugin
}

// AddressRequest asks for a reply address carrying ID
type AddressRequest struct {
	// Namespace overrides the configured namespace when not empty
	Namespace string `json:"namespace"`
	ID        int64  `json:"id"`
}

// Dispatch delivers a raw message and reports whether a receiver processed it
func (r *rpc) Dispatch(raw []byte, handled *bool) error {
	*handled = r.p.Dispatch(context.Background(), raw)
	return nil
}

// Address mints a signed reply address
func (r *rpc) Address(in AddressRequest, address *string) error {
	addr, err := r.p.Address(in.Namespace, in.ID)
	if err != nil {
		return err
	}
	*address = addr
	return nil
}

// AddWorker adds new worker to the pool
func (r *rpc) AddWorker(_ bool, success *bool) error {
	*success = false

	err := r.p.AddWorker()
	if err != nil {
		return err
	}

	*success = true
	return nil
}

// RemoveWorker removes worker from the pool
func (r *rpc) RemoveWorker(_ bool, success *bool) error {
	*success = false

	err := r.p.RemoveWorker(context.Background())
	if err != nil {
		return err
	}

	*success = true
	return nil
}

// WorkersList returns list of active workers
func (r *rpc) WorkersList(_ bool, workers *[]*process.State) error {
	*workers = r.p.Workers()
	return nil
}
