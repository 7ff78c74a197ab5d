// Package permission decides whether a principal may perform an operation on
// an entity type, and whether it owns a given record.
//
// The role capability matrix is loaded into a casbin enforcer as
// ("role:<name>", entity type, operation) policies. Elevated principals and
// public-list types bypass the matrix; write and delete additionally consult
// the subscription entitlement.
package permission

import (
	"context"
	"fmt"
	"strings"

	"github.com/casbin/casbin/v2"
	casbinmodel "github.com/casbin/casbin/v2/model"
	"go.uber.org/zap"

	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/model"
	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/pkg/logger"
)

const matrixModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = r.sub == p.sub && r.obj == p.obj && r.act == p.act
`

// SuperuserRole is reported as the role of elevated principals.
const SuperuserRole = "Superuser"

// Entitlements answers whether a principal may change data at all.
type Entitlements interface {
	Active(ctx context.Context, p domain.Principal) (bool, error)
}

// AlwaysEntitled grants every principal an active subscription.
type AlwaysEntitled struct{}

func (AlwaysEntitled) Active(context.Context, domain.Principal) (bool, error) { return true, nil }

// Evaluator implements the authorization gate.
type Evaluator struct {
	reg          *model.Registry
	enforcer     *casbin.Enforcer
	roles        map[string]domain.Role
	entitlements Entitlements
}

// SubjectFromRole returns the casbin subject of a role name.
func SubjectFromRole(name string) string {
	return "role:" + strings.ToLower(strings.TrimSpace(name))
}

// NewEvaluator loads roles into the capability matrix. A role naming an
// unknown entity type or holding two permissions for one type is a
// configuration error. entitlements may be nil, meaning always active.
func NewEvaluator(reg *model.Registry, roles []domain.Role, entitlements Entitlements) (*Evaluator, error) {
	m, err := casbinmodel.NewModelFromString(matrixModel)
	if err != nil {
		return nil, fmt.Errorf("permission model: %w", err)
	}
	enforcer, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("permission enforcer: %w", err)
	}
	if entitlements == nil {
		entitlements = AlwaysEntitled{}
	}

	e := &Evaluator{
		reg:          reg,
		enforcer:     enforcer,
		roles:        make(map[string]domain.Role, len(roles)),
		entitlements: entitlements,
	}

	var policies [][]string
	for _, role := range roles {
		key := strings.ToLower(strings.TrimSpace(role.Name))
		if key == "" {
			return nil, apperrors.ErrConfigurationf("role without a name")
		}
		if _, dup := e.roles[key]; dup {
			return nil, apperrors.ErrConfigurationf("role %q declared twice", role.Name)
		}
		seen := map[string]bool{}
		for _, p := range role.Permissions {
			if _, err := reg.Get(p.Entity); err != nil {
				return nil, apperrors.ErrConfigurationf("role %q: unknown entity type %q", role.Name, p.Entity)
			}
			if seen[p.Entity] {
				return nil, apperrors.ErrConfigurationf("role %q: duplicate permission for %q", role.Name, p.Entity)
			}
			seen[p.Entity] = true
			for _, op := range []domain.Operation{domain.OpList, domain.OpRead, domain.OpWrite, domain.OpDelete} {
				if p.Allows(op) {
					policies = append(policies, []string{SubjectFromRole(role.Name), p.Entity, string(op)})
				}
			}
		}
		e.roles[key] = role
	}
	if len(policies) > 0 {
		if _, err := enforcer.AddPolicies(policies); err != nil {
			return nil, fmt.Errorf("load role policies: %w", err)
		}
	}
	return e, nil
}

// Authorize checks op on entityType for p. It returns PERMISSION_DENIED when
// the role lacks the capability and SUBSCRIPTION_REQUIRED when the role
// grants a change but the principal has no active subscription.
func (e *Evaluator) Authorize(ctx context.Context, p domain.Principal, entityType string, op domain.Operation) error {
	t, err := e.reg.Get(entityType)
	if err != nil {
		return err
	}
	if p.Elevated {
		return nil
	}
	if op == domain.OpList && t.PublicList {
		return nil
	}

	allowed := false
	if p.Role != "" {
		allowed, err = e.enforcer.Enforce(SubjectFromRole(p.Role), t.Name, string(op))
		if err != nil {
			return fmt.Errorf("enforce %s %s: %w", t.Name, op, err)
		}
	}
	if !allowed {
		logger.Debug("Permission denied",
			zap.String("actor", p.ID),
			zap.String("role", p.Role),
			zap.String("entity_type", t.Name),
			zap.String("operation", string(op)),
		)
		return apperrors.ErrPermissionDenied(t.Name, string(op))
	}

	if op == domain.OpWrite || op == domain.OpDelete {
		active, err := e.entitlements.Active(ctx, p)
		if err != nil {
			return err
		}
		if !active {
			return apperrors.ErrSubscriptionRequired()
		}
	}
	return nil
}

// Summary is the capability listing of one principal.
type Summary struct {
	Role        *string                 `json:"role"`
	Permissions []domain.RolePermission `json:"permissions"`
}

// Summarize lists the capabilities of p. Elevated principals get every
// registered type with all flags.
func (e *Evaluator) Summarize(p domain.Principal) Summary {
	if p.Elevated {
		role := SuperuserRole
		out := Summary{Role: &role, Permissions: []domain.RolePermission{}}
		for _, name := range e.reg.Names() {
			out.Permissions = append(out.Permissions, domain.RolePermission{
				Entity: name, CanRead: true, CanWrite: true, CanDelete: true,
			})
		}
		return out
	}
	role, ok := e.roles[strings.ToLower(strings.TrimSpace(p.Role))]
	if !ok {
		return Summary{Permissions: []domain.RolePermission{}}
	}
	name := role.Name
	perms := append([]domain.RolePermission{}, role.Permissions...)
	return Summary{Role: &name, Permissions: perms}
}
