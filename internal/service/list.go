package service

import (
	"context"
	"fmt"
	"strings"

	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/form"
	"autohaus.io/cms/internal/governance/permission"
	"autohaus.io/cms/internal/model"
	"autohaus.io/cms/internal/store"
)

// ListParams selects one page of a list.
type ListParams struct {
	// Page is 1-based; values below 1 select the first page.
	Page int
	// Filters maps attribute names to values. Relation and scalar attributes
	// match exactly, text attributes by case-insensitive substring. Empty
	// values and unknown attributes are ignored.
	Filters map[string]any
}

// ListResult is one page of list projections.
type ListResult struct {
	Schema    []form.ListField `json:"schema"`
	Name      string           `json:"name"`
	Data      []map[string]any `json:"data"`
	Page      int              `json:"page"`
	Count     int              `json:"count"`
	PageStart int              `json:"page_start"`
	PageEnd   int              `json:"page_end"`
	PageSize  int              `json:"page_size"`
	PageCount int              `json:"page_count"`
}

// List returns one page of typ ordered by most recent update. Owned types
// only show rows of the principal unless it is elevated.
func (e *Engine) List(ctx context.Context, p domain.Principal, typ string, params ListParams) (*ListResult, error) {
	t, err := e.authorize(ctx, p, typ, domain.OpList)
	if err != nil {
		return nil, err
	}
	cols, err := form.ListSchema(t)
	if err != nil {
		return nil, err
	}
	where, err := filterConds(t, params.Filters)
	if err != nil {
		return nil, err
	}

	page := max(params.Page, 1)
	out := &ListResult{
		Schema:   cols,
		Name:     t.DisplayLabel(),
		Data:     []map[string]any{},
		Page:     page,
		PageSize: PageSize,
	}
	q := store.Query{Type: t.Name, Where: where, OrderBy: "updated_at", Desc: true}

	err = e.st.View(ctx, func(r store.Reader) error {
		var rows []store.Record
		if t.HasOwner() && !p.Elevated && t.Name != model.AuditLogType {
			all, err := r.Find(ctx, q)
			if err != nil {
				return err
			}
			owned, err := permission.FilterOwned(ctx, r, t, p, all)
			if err != nil {
				return err
			}
			out.Count = len(owned)
			lo := min((page-1)*PageSize, len(owned))
			rows = owned[lo:min(lo+PageSize, len(owned))]
		} else {
			n, err := r.Count(ctx, q)
			if err != nil {
				return err
			}
			out.Count = n
			q.Limit, q.Offset = PageSize, (page-1)*PageSize
			if rows, err = r.Find(ctx, q); err != nil {
				return err
			}
		}

		for _, rec := range rows {
			row, err := e.ser.List(ctx, r, t, rec)
			if err != nil {
				return err
			}
			out.Data = append(out.Data, row)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	out.PageCount = max((out.Count+PageSize-1)/PageSize, 1)
	if len(out.Data) > 0 {
		out.PageStart = (page-1)*PageSize + 1
		out.PageEnd = out.PageStart + len(out.Data) - 1
	}
	return out, nil
}

func filterConds(t *model.EntityType, filters map[string]any) ([]store.Cond, error) {
	var conds []store.Cond
	for name, v := range filters {
		a, ok := t.Attr(name)
		if !ok || blank(v) {
			continue
		}
		switch {
		case a.Kind == model.KindManyToMany || a.Kind == model.KindComponent || a.Kind == model.KindDateTime:
			continue
		case a.Kind.Textual() && len(a.Choices) == 0:
			conds = append(conds, store.ContainsFold(a.Name, fmt.Sprint(v)))
		case a.Kind == model.KindRelation:
			conds = append(conds, store.Eq(a.Name, fmt.Sprint(v)))
		default:
			cv, err := a.Coerce(v)
			if err != nil {
				return nil, err
			}
			conds = append(conds, store.Eq(a.Name, cv))
		}
	}
	return conds, nil
}

func blank(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}
