package modules

import (
	"context"

	"github.com/riverqueue/river"

	"autohaus.io/cms/internal/api/handlers"
	"autohaus.io/cms/internal/jobs"
	"autohaus.io/cms/internal/service"
)

// CMSModule wires the entity engine and its upload maintenance.
type CMSModule struct {
	infra   *Infrastructure
	engine  *service.Engine
	sweeper *jobs.PendingUploadSweepWorker
}

// NewCMSModule creates the engine on top of governance.
func NewCMSModule(infra *Infrastructure, gov *GovernanceModule) *CMSModule {
	engine := service.NewEngine(service.Deps{
		Registry:   gov.Registry,
		Store:      infra.Store,
		Files:      infra.Files,
		Perms:      gov.Perms,
		Events:     infra.Events,
		Background: infra.Pools,
	})
	return &CMSModule{
		infra:   infra,
		engine:  engine,
		sweeper: jobs.NewPendingUploadSweepWorker(engine, infra.Config.Uploads.PendingTTL),
	}
}

// Engine returns the wired engine.
func (m *CMSModule) Engine() *service.Engine { return m.engine }

// Sweeper returns the pending upload sweep, for runtimes without River.
func (m *CMSModule) Sweeper() *jobs.PendingUploadSweepWorker { return m.sweeper }

func (m *CMSModule) Name() string { return "cms" }

func (m *CMSModule) ContributeServerDeps(deps *handlers.ServerDeps) {
	if deps == nil {
		return
	}
	deps.Engine = m.engine
}

func (m *CMSModule) RegisterWorkers(workers *river.Workers) {
	if workers == nil || m == nil {
		return
	}
	river.AddWorker(workers, m.sweeper)
}

func (m *CMSModule) PeriodicJobs() []*river.PeriodicJob {
	return []*river.PeriodicJob{jobs.PeriodicPendingUploadSweep(m.infra.Config.Uploads.SweepInterval)}
}

func (m *CMSModule) Shutdown(context.Context) error { return nil }
