// Package worker provides goroutine pool management.
//
// Background work (stored-file cleanup, periodic sweeps) goes through a
// Pool so panics are recovered and shutdown waits for running tasks.
package worker

import (
	"context"
	"errors"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"autohaus.io/cms/internal/pkg/logger"
)

// Pool names accepted by SubmitDetached.
const (
	PoolGeneral = "general"
	PoolFiles   = "files"
)

// ErrPoolClosed is returned when submitting to a closed pool.
var ErrPoolClosed = errors.New("worker pool is closed")

// Task is a context-aware task function.
type Task func(ctx context.Context)

// Pool wraps ants.Pool with context-aware submission.
type Pool struct {
	pool *ants.Pool
	name string
}

// Pools is the worker pool collection.
type Pools struct {
	General *Pool
	// Files runs object-storage calls, which may be slow on remote backends.
	Files *Pool

	serviceCtx    context.Context
	serviceCancel context.CancelFunc
}

// PoolConfig contains worker pool configuration.
type PoolConfig struct {
	GeneralPoolSize int
	FilePoolSize    int
}

// DefaultPoolConfig returns default configuration.
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		GeneralPoolSize: 50,
		FilePoolSize:    10,
	}
}

// NewPools creates the worker pool collection. Detached tasks run with a
// context derived from ctx that is cancelled by Shutdown.
func NewPools(ctx context.Context, cfg PoolConfig) (*Pools, error) {
	serviceCtx, serviceCancel := context.WithCancel(ctx)

	panicHandler := func(p any) {
		logger.Error("Worker panic recovered",
			zap.Any("panic", p),
			zap.Stack("stack"),
		)
	}

	generalAnts, err := ants.NewPool(cfg.GeneralPoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(10*time.Second),
	)
	if err != nil {
		serviceCancel()
		return nil, err
	}

	fileAnts, err := ants.NewPool(cfg.FilePoolSize,
		ants.WithPanicHandler(panicHandler),
		ants.WithNonblocking(false),
		ants.WithExpiryDuration(30*time.Second),
	)
	if err != nil {
		generalAnts.Release()
		serviceCancel()
		return nil, err
	}

	return &Pools{
		General:       &Pool{pool: generalAnts, name: PoolGeneral},
		Files:         &Pool{pool: fileAnts, name: PoolFiles},
		serviceCtx:    serviceCtx,
		serviceCancel: serviceCancel,
	}, nil
}

// Submit submits a task bound to ctx. A cancelled ctx is returned without
// submitting; a task whose ctx is cancelled while queued is skipped.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	err := p.pool.Submit(func() {
		select {
		case <-ctx.Done():
			logger.Debug("Task skipped: context cancelled",
				zap.String("pool", p.name),
				zap.Error(ctx.Err()),
			)
			return
		default:
		}
		task(ctx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

func (p *Pools) byName(name string) *Pool {
	if name == PoolFiles {
		return p.Files
	}
	return p.General
}

// SubmitDetached submits a task that outlives the calling request but stops
// at shutdown. Unknown pool names use the general pool.
func (p *Pools) SubmitDetached(poolName string, task Task) error {
	pool := p.byName(poolName)
	err := pool.pool.Submit(func() {
		select {
		case <-p.serviceCtx.Done():
			logger.Debug("Detached task skipped: service shutting down",
				zap.String("pool", pool.name),
			)
			return
		default:
		}
		task(p.serviceCtx)
	})
	if errors.Is(err, ants.ErrPoolClosed) {
		return ErrPoolClosed
	}
	return err
}

// Every runs task on the general pool once per interval until Shutdown.
// Runs do not overlap: a tick that arrives while the previous run is still
// busy is dropped.
func (p *Pools) Every(name string, interval time.Duration, task Task) error {
	if interval <= 0 {
		return errors.New("worker: interval must be positive")
	}
	busy := make(chan struct{}, 1)
	return p.SubmitDetached(PoolGeneral, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		logger.Info("Periodic task started", zap.String("task", name), zap.Duration("interval", interval))
		for {
			select {
			case <-ctx.Done():
				logger.Info("Periodic task stopped", zap.String("task", name))
				return
			case <-ticker.C:
			}
			select {
			case busy <- struct{}{}:
			default:
				logger.Warn("Periodic task still running, tick dropped", zap.String("task", name))
				continue
			}
			task(ctx)
			<-busy
		}
	})
}

// Shutdown cancels detached tasks and waits for running ones (max 30s).
func (p *Pools) Shutdown() {
	p.serviceCancel()

	const shutdownTimeout = 30 * time.Second
	if err := p.General.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("General pool shutdown timeout", zap.Error(err))
	}
	if err := p.Files.pool.ReleaseTimeout(shutdownTimeout); err != nil {
		logger.Warn("File pool shutdown timeout", zap.Error(err))
	}
}

// Metrics returns pool occupancy for the health endpoint.
func (p *Pools) Metrics() map[string]any {
	out := map[string]any{}
	for _, pool := range []*Pool{p.General, p.Files} {
		out[pool.name] = map[string]int{
			"running": pool.pool.Running(),
			"free":    pool.pool.Free(),
			"cap":     pool.pool.Cap(),
		}
	}
	return out
}
