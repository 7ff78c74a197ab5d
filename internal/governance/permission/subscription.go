package permission

import (
	"context"
	"time"

	"go.uber.org/zap"

	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/pkg/logger"
	"autohaus.io/cms/internal/store"
)

// Subscription status values.
const (
	StatusActive         = "active"
	StatusExpired        = "expired"
	StatusPendingPayment = "pending_payment"
)

// SubscriptionChecker reads entitlements from stored subscription records
// ({user, status, start_date, end_date}). A subscription is active when its
// status is active and today lies within its optional date range.
type SubscriptionChecker struct {
	st  store.Store
	typ string
	now func() time.Time
}

// NewSubscriptionChecker creates a checker reading records of typ.
func NewSubscriptionChecker(st store.Store, typ string) *SubscriptionChecker {
	return &SubscriptionChecker{st: st, typ: typ, now: time.Now}
}

// Active implements Entitlements.
func (c *SubscriptionChecker) Active(ctx context.Context, p domain.Principal) (bool, error) {
	if p.Elevated {
		return true, nil
	}
	today := c.now().UTC().Format(time.DateOnly)

	var active bool
	err := c.st.View(ctx, func(r store.Reader) error {
		subs, err := r.Find(ctx, store.Query{
			Type:  c.typ,
			Where: []store.Cond{store.Eq("user", p.ID), store.Eq("status", StatusActive)},
		})
		if err != nil {
			return err
		}
		for _, s := range subs {
			start, end := s.String("start_date"), s.String("end_date")
			if (start == "" || start <= today) && (end == "" || today <= end) {
				active = true
				return nil
			}
		}
		return nil
	})
	if err != nil {
		logger.Error("Failed to read subscriptions", zap.String("actor", p.ID), zap.Error(err))
		return false, err
	}
	return active, nil
}
