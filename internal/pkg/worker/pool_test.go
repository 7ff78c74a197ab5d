package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autohaus.io/cms/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func newPools(t *testing.T, cfg PoolConfig) *Pools {
	t.Helper()
	pools, err := NewPools(context.Background(), cfg)
	require.NoError(t, err)
	return pools
}

func TestPool_Submit(t *testing.T) {
	pools := newPools(t, PoolConfig{GeneralPoolSize: 10, FilePoolSize: 5})
	defer pools.Shutdown()

	var executed atomic.Bool
	var wg sync.WaitGroup
	wg.Add(1)
	require.NoError(t, pools.General.Submit(context.Background(), func(context.Context) {
		executed.Store(true)
		wg.Done()
	}))
	wg.Wait()
	assert.True(t, executed.Load())
}

func TestPool_Submit_CancelledContext(t *testing.T) {
	pools := newPools(t, DefaultPoolConfig())
	defer pools.Shutdown()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := pools.General.Submit(ctx, func(context.Context) {
		t.Error("task ran with a cancelled context")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPools_SubmitDetached(t *testing.T) {
	tests := []struct {
		name     string
		poolName string
	}{
		{"general pool", PoolGeneral},
		{"file pool", PoolFiles},
		{"default fallback", "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pools := newPools(t, DefaultPoolConfig())

			var executed atomic.Bool
			var wg sync.WaitGroup
			wg.Add(1)
			require.NoError(t, pools.SubmitDetached(tt.poolName, func(context.Context) {
				executed.Store(true)
				wg.Done()
			}))
			wg.Wait()
			pools.Shutdown()
			assert.True(t, executed.Load())
		})
	}
}

func TestPools_SubmitAfterShutdown(t *testing.T) {
	pools := newPools(t, DefaultPoolConfig())
	pools.Shutdown()

	err := pools.SubmitDetached(PoolFiles, func(context.Context) {})
	assert.ErrorIs(t, err, ErrPoolClosed)
}

func TestPools_Every(t *testing.T) {
	pools := newPools(t, DefaultPoolConfig())

	var runs atomic.Int32
	done := make(chan struct{})
	require.NoError(t, pools.Every("tick", 5*time.Millisecond, func(context.Context) {
		if runs.Add(1) == 3 {
			close(done)
		}
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("periodic task did not run three times")
	}
	pools.Shutdown()

	after := runs.Load()
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, after, runs.Load(), "no runs after shutdown")

	other := newPools(t, DefaultPoolConfig())
	defer other.Shutdown()
	assert.Error(t, other.Every("bad", 0, func(context.Context) {}))
}

func TestPools_Metrics(t *testing.T) {
	pools := newPools(t, PoolConfig{GeneralPoolSize: 10, FilePoolSize: 5})
	defer pools.Shutdown()

	metrics := pools.Metrics()
	general, ok := metrics[PoolGeneral].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 10, general["cap"])

	files, ok := metrics[PoolFiles].(map[string]int)
	require.True(t, ok)
	assert.Equal(t, 5, files["cap"])
}
