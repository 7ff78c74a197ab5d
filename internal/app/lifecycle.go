package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"autohaus.io/cms/internal/pkg/logger"
)

// Start launches job processing. With postgres the river client consumes
// sweep and cleanup jobs; the embedded store schedules the sweep on the pool.
func (a *Application) Start(ctx context.Context) error {
	if a.DB == nil || a.DB.RiverClient == nil {
		return a.scheduleSweep()
	}
	if err := a.DB.RiverClient.Start(ctx); err != nil {
		return fmt.Errorf("start river client: %w", err)
	}
	logger.Info("river client consuming cms jobs")
	return nil
}

// Shutdown stops job processing, then modules, then releases stores and pools.
func (a *Application) Shutdown() {
	ctx := context.Background()

	if a.DB != nil && a.DB.RiverClient != nil {
		if err := a.DB.RiverClient.Stop(ctx); err != nil {
			logger.Error("stop river client", zap.Error(err))
		} else {
			logger.Info("river client stopped")
		}
	}

	for _, mod := range a.Modules {
		if mod == nil {
			continue
		}
		if err := mod.Shutdown(ctx); err != nil {
			logger.Warn("module shutdown",
				zap.String("module", mod.Name()),
				zap.Error(err),
			)
		}
	}

	if a.infra != nil {
		a.infra.Close()
		return
	}
	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.DB != nil {
		a.DB.Close()
	}
}
