package server

import (
	"context"
	"sync"
)

// Pinger reports whether a backing dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ServerContext carries the process lifetime and the dependencies the
// health endpoints check.
type ServerContext struct {
	ctx      context.Context
	cancel   context.CancelFunc
	store    Pinger
	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext creates a server context derived from ctx. store may be nil.
func NewServerContext(ctx context.Context, store Pinger) *ServerContext {
	shutdownCtx, cancel := context.WithCancel(ctx)
	return &ServerContext{
		ctx:    shutdownCtx,
		cancel: cancel,
		store:  store,
	}
}

// Context returns the server context. It is cancelled by Shutdown.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// PingStore checks the store. A context without a store is always healthy.
func (sc *ServerContext) PingStore(ctx context.Context) error {
	if sc.store == nil {
		return nil
	}
	return sc.store.Ping(ctx)
}

// IsShutdown returns whether the server has been shutdown
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown marks the context as shut down and cancels it.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}

	sc.shutdown = true
	sc.cancel()
	return nil
}
