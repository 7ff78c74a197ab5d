// Package serializer renders stored records as JSON-safe structures.
package serializer

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"autohaus.io/cms/internal/filestore"
	"autohaus.io/cms/internal/form"
	"autohaus.io/cms/internal/model"
	"autohaus.io/cms/internal/store"
)

// Serializer produces list and detail projections.
type Serializer struct {
	reg     *model.Registry
	builder *form.Builder
	files   filestore.FileStore
}

// New creates a Serializer. files may be nil; image values then render as
// their storage key.
func New(reg *model.Registry, builder *form.Builder, files filestore.FileStore) *Serializer {
	return &Serializer{reg: reg, builder: builder, files: files}
}

// List renders the narrow projection: id, display string and the list-view
// attributes, with relations resolved to their display string.
func (s *Serializer) List(ctx context.Context, r store.Reader, t *model.EntityType, rec store.Record) (map[string]any, error) {
	out := map[string]any{
		"id":      rec.ID,
		"display": t.DisplayOf(rec),
	}
	for _, a := range t.ListAttributes() {
		switch a.Kind {
		case model.KindRelation:
			display, err := s.relationDisplay(ctx, r, a, rec.Get(a.Name))
			if err != nil {
				return nil, err
			}
			out[a.Name] = display
		case model.KindManyToMany:
			ids, err := r.Links(ctx, t.Name, rec.ID, a.Name)
			if err != nil {
				return nil, err
			}
			out[a.Name] = nonNil(ids)
		default:
			v, err := s.value(ctx, a, rec.Get(a.Name))
			if err != nil {
				return nil, err
			}
			out[a.Name] = v
		}
	}
	return out, nil
}

func (s *Serializer) relationDisplay(ctx context.Context, r store.Reader, a model.Attribute, v any) (string, error) {
	id, ok := v.(string)
	if !ok || id == "" {
		return "", nil
	}
	target, err := s.reg.Get(a.Target)
	if err != nil {
		return "", err
	}
	ref, err := r.Get(ctx, a.Target, id)
	if errors.Is(err, store.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return target.DisplayOf(ref), nil
}

// Detail renders the full projection driven by the form schema. Tables
// render every child of rec under the table key, ordered by creation.
// Types whose schema places nothing fall back to every attribute except the
// audit-actor references.
func (s *Serializer) Detail(ctx context.Context, r store.Reader, t *model.EntityType, rec store.Record) (map[string]any, error) {
	schema, err := s.builder.Build(t)
	if err != nil {
		return nil, err
	}
	if schema.Empty() {
		return s.fallback(ctx, r, t, rec)
	}

	out := map[string]any{model.AttrID: rec.ID}
	for _, f := range schema.Fields() {
		a, ok := t.Attr(f.FieldName)
		if !ok || a.Kind == model.KindComponent {
			continue
		}
		v, err := s.attr(ctx, r, t, a, rec)
		if err != nil {
			return nil, err
		}
		out[a.Name] = v
	}
	for _, td := range schema.Tables() {
		tbl, ok := t.Table(td.FieldName)
		if !ok {
			continue
		}
		rows, err := s.children(ctx, r, tbl, td, rec.ID)
		if err != nil {
			return nil, err
		}
		out[td.FieldName] = rows
	}
	return out, nil
}

func (s *Serializer) children(ctx context.Context, r store.Reader, tbl model.Table, td form.Table, parentID string) ([]map[string]any, error) {
	child, err := s.reg.Get(tbl.Child)
	if err != nil {
		return nil, err
	}
	recs, err := r.Find(ctx, store.Query{
		Type:  child.Name,
		Where: []store.Cond{store.Eq(tbl.ParentAttr, parentID)},
	})
	if err != nil {
		return nil, err
	}
	rows := make([]map[string]any, 0, len(recs))
	for _, cr := range recs {
		row := map[string]any{model.AttrID: cr.ID}
		for _, f := range td.Options {
			a, ok := child.Attr(f.FieldName)
			if !ok {
				continue
			}
			v, err := s.attr(ctx, r, child, a, cr)
			if err != nil {
				return nil, err
			}
			row[a.Name] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Serializer) fallback(ctx context.Context, r store.Reader, t *model.EntityType, rec store.Record) (map[string]any, error) {
	out := map[string]any{}
	for _, a := range t.Concrete() {
		if a.AuditRef() {
			continue
		}
		v, err := s.attr(ctx, r, t, a, rec)
		if err != nil {
			return nil, err
		}
		out[a.Name] = v
	}
	return out, nil
}

func (s *Serializer) attr(ctx context.Context, r store.Reader, t *model.EntityType, a model.Attribute, rec store.Record) (any, error) {
	if a.Kind == model.KindManyToMany {
		ids, err := r.Links(ctx, t.Name, rec.ID, a.Name)
		if err != nil {
			return nil, err
		}
		return nonNil(ids), nil
	}
	return s.value(ctx, a, rec.Get(a.Name))
}

// value normalizes one stored value to a JSON-safe primitive.
func (s *Serializer) value(ctx context.Context, a model.Attribute, v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	switch a.Kind {
	case model.KindDecimal:
		if str, ok := v.(string); ok && str != "" {
			return json.Number(str), nil
		}
	case model.KindDateTime:
		if ts, ok := v.(time.Time); ok {
			return ts.UTC().Format(time.RFC3339), nil
		}
	case model.KindImage:
		key, ok := v.(string)
		if !ok || key == "" {
			return nil, nil
		}
		if s.files == nil {
			return key, nil
		}
		return s.files.URL(ctx, key)
	}
	return v, nil
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}
