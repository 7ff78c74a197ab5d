// Package audit records field-level change history of entity writes.
//
// Audit records are append-only rows of the built-in audit_log entity type.
// They are written after the entity transaction commits; a failed audit write
// is logged and counted but never undoes the entity write.
package audit

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"autohaus.io/cms/internal/model"
	"autohaus.io/cms/internal/pkg/logger"
	"autohaus.io/cms/internal/pkg/metrics"
	"autohaus.io/cms/internal/store"
)

// Actions used in audit titles.
const (
	ActionCreated = "created"
	ActionUpdated = "updated"
	ActionDeleted = "deleted"
)

// Entry is one audit record.
type Entry struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	EntityType string         `json:"entity_type"`
	EntityID   string         `json:"entity_id"`
	Changes    map[string]any `json:"changes"`
	Actor      string         `json:"created_by"`
	CreatedAt  time.Time      `json:"created_at"`
}

// Snapshot renders the editable attributes of rec as strings for diffing.
// links holds the many-to-many membership of rec by attribute name.
func Snapshot(t *model.EntityType, rec store.Record, links map[string][]string) map[string]string {
	out := make(map[string]string, len(t.Attributes))
	for _, a := range t.Editable() {
		if a.Kind == model.KindManyToMany {
			ids := slices.Clone(links[a.Name])
			slices.Sort(ids)
			out[a.Name] = strings.Join(ids, ",")
			continue
		}
		out[a.Name] = stringify(rec.Get(a.Name))
	}
	return out
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case time.Time:
		return x.UTC().Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}

// Diff returns {attr: [old, new]} for every attribute whose rendering
// changed between before and after.
func Diff(before, after map[string]string) map[string]any {
	changes := map[string]any{}
	for k, newVal := range after {
		if oldVal := before[k]; oldVal != newVal {
			changes[k] = []any{oldVal, newVal}
		}
	}
	return changes
}

// ChangedFields lists the attribute names of a diff in sorted order.
func ChangedFields(changes map[string]any) []string {
	names := make([]string, 0, len(changes))
	for k := range changes {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// Title renders "<actor> <action> <type label> <display>".
func Title(actorName, action string, t *model.EntityType, rec store.Record) string {
	return fmt.Sprintf("%s %s %s %s", actorName, action, t.DisplayLabel(), t.DisplayOf(rec))
}

// NewCreate builds the record of a successful create.
func NewCreate(t *model.EntityType, rec store.Record, actor, actorName string) Entry {
	return Entry{
		Title:      Title(actorName, ActionCreated, t, rec),
		EntityType: t.Name,
		EntityID:   rec.ID,
		Changes:    map[string]any{},
		Actor:      actor,
	}
}

// NewUpdate builds the record of an update. ok is false when nothing
// changed, in which case no record must be written.
func NewUpdate(t *model.EntityType, rec store.Record, before, after map[string]string, actor, actorName string) (Entry, bool) {
	changes := Diff(before, after)
	if len(changes) == 0 {
		return Entry{}, false
	}
	return Entry{
		Title:      Title(actorName, ActionUpdated, t, rec),
		EntityType: t.Name,
		EntityID:   rec.ID,
		Changes:    changes,
		Actor:      actor,
	}, true
}

// NewDelete builds the record of a delete from the row as it was before
// removal.
func NewDelete(t *model.EntityType, rec store.Record, actor, actorName string) Entry {
	return Entry{
		Title:      Title(actorName, ActionDeleted, t, rec),
		EntityType: t.Name,
		EntityID:   rec.ID,
		Changes:    map[string]any{},
		Actor:      actor,
	}
}

// Recorder persists and queries audit records.
type Recorder struct {
	st store.Store
}

// NewRecorder creates a Recorder writing to st.
func NewRecorder(st store.Store) *Recorder {
	return &Recorder{st: st}
}

// Write persists e in its own transaction.
func (r *Recorder) Write(ctx context.Context, e Entry) error {
	rec := &store.Record{
		Type: model.AuditLogType,
		Values: map[string]any{
			"title":             e.Title,
			"entity_type":       e.EntityType,
			"entity_id":         e.EntityID,
			"changes":           e.Changes,
			model.AttrCreatedBy: e.Actor,
			model.AttrUpdatedBy: e.Actor,
		},
	}
	err := r.st.Update(ctx, func(tx store.Tx) error {
		return tx.Insert(ctx, rec)
	})
	if err != nil {
		metrics.AuditWriteFailures.Inc()
		logger.Error("Failed to write audit record",
			zap.String("entity_type", e.EntityType),
			zap.String("entity_id", e.EntityID),
			zap.String("actor", e.Actor),
			zap.Error(err),
		)
		return fmt.Errorf("write audit record: %w", err)
	}
	return nil
}

// Trail returns the records of one entity, newest first.
func (r *Recorder) Trail(ctx context.Context, entityType, id string) ([]Entry, error) {
	return r.find(ctx, store.Query{
		Type:  model.AuditLogType,
		Where: []store.Cond{store.Eq("entity_type", entityType), store.Eq("entity_id", id)},
		Desc:  true,
	})
}

// Recent returns the newest limit records across all entities.
func (r *Recorder) Recent(ctx context.Context, limit int) ([]Entry, error) {
	return r.find(ctx, store.Query{Type: model.AuditLogType, Desc: true, Limit: limit})
}

func (r *Recorder) find(ctx context.Context, q store.Query) ([]Entry, error) {
	var recs []store.Record
	err := r.st.View(ctx, func(rd store.Reader) error {
		var err error
		recs, err = rd.Find(ctx, q)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("query audit records: %w", err)
	}
	out := make([]Entry, 0, len(recs))
	for _, rec := range recs {
		out = append(out, FromRecord(rec))
	}
	return out, nil
}

// FromRecord converts a stored audit_log row.
func FromRecord(rec store.Record) Entry {
	changes, _ := rec.Get("changes").(map[string]any)
	if changes == nil {
		changes = map[string]any{}
	}
	return Entry{
		ID:         rec.ID,
		Title:      rec.String("title"),
		EntityType: rec.String("entity_type"),
		EntityID:   rec.String("entity_id"),
		Changes:    changes,
		Actor:      rec.String(model.AttrCreatedBy),
		CreatedAt:  rec.CreatedAt,
	}
}
