package modules

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"autohaus.io/cms/internal/api/handlers"
	"autohaus.io/cms/internal/config"
	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/filestore"
	"autohaus.io/cms/internal/filestore/s3store"
	"autohaus.io/cms/internal/infrastructure"
	"autohaus.io/cms/internal/pkg/logger"
	"autohaus.io/cms/internal/pkg/metrics"
	"autohaus.io/cms/internal/pkg/worker"
	"autohaus.io/cms/internal/store"
	"autohaus.io/cms/internal/store/buntstore"
)

// Infrastructure holds shared cross-cutting dependencies for all modules.
// It is a provider, not a Module.
type Infrastructure struct {
	Config *config.Config
	Store  store.Store
	// DB is nil for the bunt driver.
	DB          *infrastructure.DatabaseClients
	RiverClient *river.Client[pgx.Tx]
	Pools       *worker.Pools
	Files       filestore.FileStore
	Events      *domain.EventDispatcher
	// Checks feed the readiness probe.
	Checks map[string]handlers.ReadinessCheck
}

// NewInfrastructure opens the record store, file storage and worker pools.
func NewInfrastructure(ctx context.Context, cfg *config.Config) (*Infrastructure, error) {
	infra := &Infrastructure{
		Config: cfg,
		Events: domain.NewEventDispatcher(),
		Checks: map[string]handlers.ReadinessCheck{},
	}
	metrics.Subscribe(infra.Events)

	if err := infra.openStore(ctx); err != nil {
		return nil, err
	}

	files, err := newFileStore(ctx, cfg.Storage)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init file storage: %w", err)
	}
	infra.Files = files

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize: cfg.Worker.GeneralPoolSize,
		FilePoolSize:    cfg.Worker.FilePoolSize,
	})
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}
	infra.Pools = pools
	return infra, nil
}

func (i *Infrastructure) openStore(ctx context.Context) error {
	switch i.Config.Database.Driver {
	case config.DriverPostgres:
		db, err := infrastructure.NewDatabaseClients(ctx, i.Config.Database)
		if err != nil {
			return fmt.Errorf("init database: %w", err)
		}
		if i.Config.Database.AutoMigrate {
			if err := db.AutoMigrate(ctx); err != nil {
				db.Close()
				return fmt.Errorf("auto-migrate: %w", err)
			}
		}
		i.DB = db
		i.Store = db.Store
		i.Checks["database"] = func(ctx context.Context) error { return db.Pool.Ping(ctx) }
	default:
		st, err := buntstore.Open(i.Config.Database.BuntPath)
		if err != nil {
			return fmt.Errorf("open bunt store %s: %w", i.Config.Database.BuntPath, err)
		}
		logger.Info("Embedded record store opened", zap.String("path", i.Config.Database.BuntPath))
		i.Store = st
		i.Checks["store"] = func(ctx context.Context) error {
			return st.View(ctx, func(store.Reader) error { return nil })
		}
	}
	return nil
}

func newFileStore(ctx context.Context, cfg config.StorageConfig) (filestore.FileStore, error) {
	if cfg.Driver == config.StorageS3 {
		st, err := s3store.New(ctx, s3store.Options{
			Bucket:     cfg.Bucket,
			Region:     cfg.Region,
			Endpoint:   cfg.Endpoint,
			AccessKey:  cfg.AccessKey,
			SecretKey:  cfg.SecretKey,
			PresignTTL: cfg.PresignTTL,
		})
		if err != nil {
			return nil, err
		}
		logger.Info("S3 file storage configured", zap.String("bucket", cfg.Bucket))
		return st, nil
	}
	logger.Info("Local file storage configured", zap.String("dir", cfg.LocalDir))
	return filestore.NewLocal(cfg.LocalDir, cfg.PublicBaseURL), nil
}

// InitRiver initializes the River client on top of a prepared worker
// registry. It is a no-op for the bunt driver.
func (i *Infrastructure) InitRiver(workers *river.Workers, periodic []*river.PeriodicJob) error {
	if i == nil || i.Config == nil {
		return fmt.Errorf("infrastructure is not initialized")
	}
	if i.DB == nil {
		return nil
	}
	if err := i.DB.InitRiverClient(workers, periodic, i.Config.River); err != nil {
		return fmt.Errorf("init river: %w", err)
	}
	i.RiverClient = i.DB.RiverClient
	return nil
}

// Close releases infra resources in reverse dependency order.
func (i *Infrastructure) Close() {
	if i == nil {
		return
	}
	if i.Pools != nil {
		i.Pools.Shutdown()
	}
	if i.DB != nil {
		i.DB.Close()
		return
	}
	if i.Store != nil {
		if err := i.Store.Close(); err != nil {
			logger.Warn("close record store", zap.Error(err))
		}
	}
}
