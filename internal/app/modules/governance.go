package modules

import (
	"context"
	"fmt"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"autohaus.io/cms/internal/api/handlers"
	"autohaus.io/cms/internal/catalog"
	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/governance/permission"
	"autohaus.io/cms/internal/model"
	"autohaus.io/cms/internal/pkg/logger"
)

// GovernanceModule owns the entity registry and the permission evaluator.
type GovernanceModule struct {
	Registry *model.Registry
	Perms    *permission.Evaluator
}

// NewGovernanceModule loads the catalog and role seed. Writes are gated on an
// active subscription record of the caller's seller.
func NewGovernanceModule(infra *Infrastructure) (*GovernanceModule, error) {
	reg, err := catalog.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("build registry: %w", err)
	}
	roles, err := catalog.LoadRoles(infra.Config.Catalog.RolesFile)
	if err != nil {
		return nil, fmt.Errorf("load roles: %w", err)
	}
	perms, err := permission.NewEvaluator(reg, roles,
		permission.NewSubscriptionChecker(infra.Store, catalog.TypeSubscription))
	if err != nil {
		return nil, fmt.Errorf("build permission evaluator: %w", err)
	}

	infra.Events.Register(domain.EventAccessDenied, logDenied)
	logger.Info("Governance loaded",
		zap.Int("entity_types", len(reg.Names())),
		zap.Int("roles", len(roles)),
	)
	return &GovernanceModule{Registry: reg, Perms: perms}, nil
}

func logDenied(_ context.Context, e *domain.DomainEvent) error {
	var p domain.AccessDeniedPayload
	if err := p.FromJSON(e.Payload); err != nil {
		return err
	}
	logger.Warn("access denied",
		zap.String("entity", e.AggregateType),
		zap.String("actor", e.CreatedBy),
		zap.String("operation", string(p.Operation)),
		zap.String("code", p.Code),
	)
	return nil
}

func (m *GovernanceModule) Name() string { return "governance" }

func (m *GovernanceModule) ContributeServerDeps(_ *handlers.ServerDeps) {}

func (m *GovernanceModule) RegisterWorkers(_ *river.Workers) {}

func (m *GovernanceModule) Shutdown(context.Context) error { return nil }
