package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.uber.org/zap"

	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/governance/audit"
	"autohaus.io/cms/internal/governance/permission"
	"autohaus.io/cms/internal/model"
	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/pkg/logger"
	"autohaus.io/cms/internal/store"
)

const (
	searchLimit = 10
	recentLimit = 10
)

// AuditTrail returns the audit records of one record, newest first. Trails
// of deleted rows stay readable unless the type is ownership-filtered.
func (e *Engine) AuditTrail(ctx context.Context, p domain.Principal, typ, id string) ([]audit.Entry, error) {
	t, err := e.authorize(ctx, p, typ, domain.OpRead)
	if err != nil {
		return nil, err
	}
	if t.HasOwner() && !p.Elevated {
		err := e.st.View(ctx, func(r store.Reader) error {
			_, err := loadOwned(ctx, r, t, p, id)
			return err
		})
		if err != nil {
			return nil, err
		}
	}
	return e.audit.Trail(ctx, t.Name, id)
}

// Permissions summarizes the capabilities of p.
func (e *Engine) Permissions(p domain.Principal) permission.Summary {
	return e.perms.Summarize(p)
}

// SearchHit is one relation-picker result.
type SearchHit struct {
	ID      string `json:"id"`
	Display string `json:"display"`
}

// Search backs relation pickers. With id it returns that record only;
// otherwise up to ten records whose search attribute contains q, newest
// first.
func (e *Engine) Search(ctx context.Context, p domain.Principal, typ, q, id string) ([]SearchHit, error) {
	t, err := e.authorize(ctx, p, typ, domain.OpRead)
	if err != nil {
		return nil, err
	}

	hits := []SearchHit{}
	err = e.st.View(ctx, func(r store.Reader) error {
		var recs []store.Record
		if id != "" {
			rec, err := r.Get(ctx, t.Name, id)
			if errors.Is(err, store.ErrNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			recs = []store.Record{rec}
		} else {
			query := store.Query{Type: t.Name, OrderBy: "updated_at", Desc: true}
			if attr := t.SearchAttribute(); attr != "" && q != "" {
				query.Where = []store.Cond{store.ContainsFold(attr, q)}
			}
			if !t.HasOwner() || p.Elevated {
				query.Limit = searchLimit
			}
			var err error
			if recs, err = r.Find(ctx, query); err != nil {
				return err
			}
		}

		recs, err := permission.FilterOwned(ctx, r, t, p, recs)
		if err != nil {
			return err
		}
		for _, rec := range recs[:min(len(recs), searchLimit)] {
			hits = append(hits, SearchHit{ID: rec.ID, Display: t.DisplayOf(rec)})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return hits, nil
}

// UploadResult identifies a pending upload.
type UploadResult struct {
	ID       string `json:"id"`
	FilePath string `json:"file_path"`
	FileURL  string `json:"file_url"`
}

// Upload stores a file for a child table that accepts uploads and creates a
// pending child row holding it. The returned id is the handle a later write
// claims with "_upload".
func (e *Engine) Upload(ctx context.Context, p domain.Principal, typ, filename string, content io.Reader) (*UploadResult, error) {
	t, err := e.reg.Get(typ)
	if err != nil {
		return nil, err
	}
	_, tbl, ok := e.reg.ParentTable(t.Name)
	if !ok || tbl.UploadAttr == "" || e.files == nil {
		return nil, apperrors.BadRequest(apperrors.CodeUploadNotSupported,
			fmt.Sprintf("%s does not accept uploads", t.DisplayLabel()))
	}
	if _, err := e.authorize(ctx, p, t.Name, domain.OpWrite); err != nil {
		return nil, err
	}

	key, err := e.files.Put(ctx, filename, content)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFileStorageFailure, "failed to store file", http.StatusInternalServerError)
	}

	rec := &store.Record{Type: t.Name, Values: map[string]any{
		tbl.UploadAttr:      key,
		tbl.ParentAttr:      nil,
		model.AttrCreatedBy: p.ID,
		model.AttrUpdatedBy: p.ID,
	}}
	err = e.st.Update(ctx, func(tx store.Tx) error {
		return tx.Insert(ctx, rec)
	})
	if err != nil {
		e.removeFiles(ctx, []string{key})
		return nil, apperrors.Wrap(err, apperrors.CodeStorageFailure, "failed to record upload", http.StatusInternalServerError)
	}

	url, err := e.files.URL(ctx, key)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeFileStorageFailure, "failed to resolve file URL", http.StatusInternalServerError)
	}
	logger.Info("Upload stored",
		zap.String("entity_type", t.Name),
		zap.String("entity_id", rec.ID),
		zap.String("actor", p.ID),
		zap.String("key", key),
	)
	e.dispatch(ctx, domain.NewEvent(domain.EventUploadStored, t.Name, rec.ID, p.ID, nil))
	return &UploadResult{ID: rec.ID, FilePath: key, FileURL: url}, nil
}

// SweepPendingUploads deletes pending upload rows created before cutoff and
// their stored files. It returns the number of rows removed.
func (e *Engine) SweepPendingUploads(ctx context.Context, cutoff time.Time) (int, error) {
	type swept struct {
		typ, id, key string
	}
	var removed []swept

	err := e.st.Update(ctx, func(tx store.Tx) error {
		for _, name := range e.reg.Names() {
			parent, _ := e.reg.Get(name)
			for _, tbl := range parent.Tables {
				if tbl.UploadAttr == "" {
					continue
				}
				rows, err := tx.Find(ctx, store.Query{
					Type:  tbl.Child,
					Where: []store.Cond{store.IsNull(tbl.ParentAttr), store.Before(model.AttrCreatedAt, cutoff)},
				})
				if err != nil {
					return err
				}
				for _, row := range rows {
					if err := tx.Delete(ctx, tbl.Child, row.ID); err != nil {
						return err
					}
					removed = append(removed, swept{typ: tbl.Child, id: row.ID, key: row.String(tbl.UploadAttr)})
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sweep pending uploads: %w", err)
	}

	for _, s := range removed {
		if s.key != "" {
			e.removeFiles(ctx, []string{s.key})
		}
		e.dispatch(ctx, domain.NewEvent(domain.EventUploadSwept, s.typ, s.id, "", nil))
	}
	if len(removed) > 0 {
		logger.Info("Pending uploads swept", zap.Int("count", len(removed)), zap.Time("cutoff", cutoff))
	}
	return len(removed), nil
}

// TypeCount is the number of visible records of one type.
type TypeCount struct {
	Entity string `json:"entity"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
}

// RecentChange is one line of the dashboard activity feed.
type RecentChange struct {
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Dashboard summarizes the store for p.
type Dashboard struct {
	Counts        []TypeCount    `json:"counts"`
	RecentChanges []RecentChange `json:"recent_changes"`
}

// Dashboard counts the records of every type p may read and lists the most
// recent audit titles.
func (e *Engine) Dashboard(ctx context.Context, p domain.Principal) (*Dashboard, error) {
	out := &Dashboard{Counts: []TypeCount{}, RecentChanges: []RecentChange{}}

	var readable []*model.EntityType
	for _, name := range e.reg.Names() {
		t, _ := e.reg.Get(name)
		if t.Name == model.AuditLogType || e.perms.Authorize(ctx, p, t.Name, domain.OpRead) != nil {
			continue
		}
		readable = append(readable, t)
	}

	err := e.st.View(ctx, func(r store.Reader) error {
		for _, t := range readable {
			q := store.Query{Type: t.Name}
			var n int
			if t.HasOwner() && !p.Elevated {
				all, err := r.Find(ctx, q)
				if err != nil {
					return err
				}
				owned, err := permission.FilterOwned(ctx, r, t, p, all)
				if err != nil {
					return err
				}
				n = len(owned)
			} else {
				var err error
				if n, err = r.Count(ctx, q); err != nil {
					return err
				}
			}
			out.Counts = append(out.Counts, TypeCount{Entity: t.Name, Label: t.DisplayLabel(), Count: n})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	recent, err := e.audit.Recent(ctx, recentLimit)
	if err != nil {
		return nil, err
	}
	for _, entry := range recent {
		out.RecentChanges = append(out.RecentChanges, RecentChange{Title: entry.Title, CreatedAt: entry.CreatedAt})
	}
	return out, nil
}
