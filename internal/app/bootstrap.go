// Package app is the composition root. Bootstrap stays orchestration-only.
package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"autohaus.io/cms/internal/api/handlers"
	"autohaus.io/cms/internal/app/modules"
	"autohaus.io/cms/internal/config"
	"autohaus.io/cms/internal/infrastructure"
	"autohaus.io/cms/internal/pkg/logger"
	"autohaus.io/cms/internal/pkg/worker"
)

// Application holds composed application dependencies.
type Application struct {
	Config  *config.Config
	Router  *gin.Engine
	DB      *infrastructure.DatabaseClients
	Pools   *worker.Pools
	Modules []modules.Module

	infra *modules.Infrastructure
	cms   *modules.CMSModule
}

// Bootstrap initializes all dependencies using module-oriented manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	infra, err := modules.NewInfrastructure(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init infrastructure: %w", err)
	}

	gov, err := modules.NewGovernanceModule(infra)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init governance module: %w", err)
	}
	cms := modules.NewCMSModule(infra, gov)
	allModules := []modules.Module{gov, cms}

	workers := river.NewWorkers()
	var periodic []*river.PeriodicJob
	for _, mod := range allModules {
		mod.RegisterWorkers(workers)
		if p, ok := mod.(modules.PeriodicJobProvider); ok {
			periodic = append(periodic, p.PeriodicJobs()...)
		}
	}
	if err := infra.InitRiver(workers, periodic); err != nil {
		infra.Close()
		return nil, fmt.Errorf("init river workers: %w", err)
	}

	server := handlers.NewServer(modules.NewServerDeps(infra, allModules))

	return &Application{
		Config:  cfg,
		Router:  newRouter(cfg, server, modules.NewJWTConfig(cfg)),
		DB:      infra.DB,
		Pools:   infra.Pools,
		Modules: allModules,
		infra:   infra,
		cms:     cms,
	}, nil
}

// scheduleSweep runs the pending upload sweep on the worker pool when no
// River client consumes the periodic job.
func (a *Application) scheduleSweep() error {
	if a.cms == nil || a.Pools == nil || (a.DB != nil && a.DB.RiverClient != nil) {
		return nil
	}
	sweeper := a.cms.Sweeper()
	interval := a.Config.Uploads.SweepInterval
	err := a.Pools.Every("pending_upload_sweep", interval, func(ctx context.Context) {
		if err := sweeper.Sweep(ctx); err != nil {
			logger.Error("pending upload sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule upload sweep: %w", err)
	}
	logger.Info("Pending upload sweep scheduled on worker pool", zap.Duration("interval", interval))
	return nil
}
