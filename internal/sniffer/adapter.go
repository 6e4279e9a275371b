package sniffer

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/nao1215/ftpvista/internal/model"
)

// Executor runs one address through discovery. *pipeline.Pipeline
// implements it.
type Executor interface {
	Execute(ctx context.Context, addr string) bool
}

// Adapter feeds captured packets to an Executor.
type Adapter struct {
	in     <-chan Packet
	exec   Executor
	logger *slog.Logger

	packets  atomic.Uint64
	accepted atomic.Uint64
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithAdapterLogger sets the logger.
func WithAdapterLogger(logger *slog.Logger) AdapterOption {
	return func(a *Adapter) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// NewAdapter subscribes exec to the packets published on in.
func NewAdapter(in <-chan Packet, exec Executor, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		in:     in,
		exec:   exec,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run handles packets until in is closed or ctx is done.
func (a *Adapter) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case p, ok := <-a.in:
			if !ok {
				return nil
			}
			a.Handle(ctx, p)
		}
	}
}

// Handle runs the source then the destination address of p through the
// executor. Unset and 0.0.0.0 addresses are skipped.
func (a *Adapter) Handle(ctx context.Context, p Packet) {
	a.packets.Add(1)

	for _, addr := range []model.Address{p.Source, p.Dest} {
		if addr.IsZero() || addr.IsUnspecified() {
			continue
		}
		if a.exec.Execute(ctx, addr.String()) {
			a.accepted.Add(1)
			a.logger.Debug("address accepted", "address", addr)
		}
	}
}

// Packets returns how many packets were handled.
func (a *Adapter) Packets() uint64 {
	return a.packets.Load()
}

// Accepted returns how many addresses passed every stage.
func (a *Adapter) Accepted() uint64 {
	return a.accepted.Load()
}
