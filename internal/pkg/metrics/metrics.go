// Package metrics exposes Prometheus collectors for the CMS engine.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"autohaus.io/cms/internal/domain"
)

var EntityWrites = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cms_entity_writes_total",
	Help: "Committed entity writes by entity type and event",
}, []string{"entity_type", "event"})

var DraftsRaised = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cms_drafts_raised_total",
	Help: "Updates that raised the draft flag",
}, []string{"entity_type"})

var AccessDenied = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "cms_access_denied_total",
	Help: "Operations rejected by the permission evaluator",
}, []string{"entity_type", "code"})

var AuditWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cms_audit_write_failures_total",
	Help: "Audit records that could not be persisted",
})

var UploadsStored = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cms_uploads_stored_total",
	Help: "Files stored through the upload operation",
})

var UploadsSwept = promauto.NewCounter(prometheus.CounterOpts{
	Name: "cms_pending_uploads_swept_total",
	Help: "Unclaimed pending uploads removed by the sweeper",
})

var WriteDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "cms_write_duration_seconds",
	Help:    "Duration of entity write transactions",
	Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
}, []string{"entity_type"})

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Subscribe registers collectors for committed domain events.
func Subscribe(d *domain.EventDispatcher) {
	count := func(ctx context.Context, e *domain.DomainEvent) error {
		EntityWrites.WithLabelValues(e.AggregateType, string(e.EventType)).Inc()
		return nil
	}
	d.Register(domain.EventEntityCreated, count)
	d.Register(domain.EventEntityDeleted, count)
	d.Register(domain.EventEntityUpdated, func(ctx context.Context, e *domain.DomainEvent) error {
		EntityWrites.WithLabelValues(e.AggregateType, string(e.EventType)).Inc()
		var p domain.EntityWritePayload
		if err := p.FromJSON(e.Payload); err != nil {
			return err
		}
		if p.Draft {
			DraftsRaised.WithLabelValues(e.AggregateType).Inc()
		}
		return nil
	})
	d.Register(domain.EventAccessDenied, func(ctx context.Context, e *domain.DomainEvent) error {
		var p domain.AccessDeniedPayload
		if err := p.FromJSON(e.Payload); err != nil {
			return err
		}
		AccessDenied.WithLabelValues(e.AggregateType, p.Code).Inc()
		return nil
	})
	d.Register(domain.EventUploadStored, func(context.Context, *domain.DomainEvent) error {
		UploadsStored.Inc()
		return nil
	})
	d.Register(domain.EventUploadSwept, func(context.Context, *domain.DomainEvent) error {
		UploadsSwept.Inc()
		return nil
	})
}
