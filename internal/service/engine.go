// Package service is the entry point of the CMS engine.
//
// Engine ties the registry-driven components together: the permission gate
// runs first, writes go through the payload parser inside one store
// transaction, audit records follow the commit, and reads are rendered by the
// serializer after ownership filtering.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/filestore"
	"autohaus.io/cms/internal/form"
	"autohaus.io/cms/internal/governance/audit"
	"autohaus.io/cms/internal/governance/permission"
	"autohaus.io/cms/internal/model"
	"autohaus.io/cms/internal/persist"
	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/pkg/logger"
	"autohaus.io/cms/internal/pkg/metrics"
	"autohaus.io/cms/internal/pkg/worker"
	"autohaus.io/cms/internal/serializer"
	"autohaus.io/cms/internal/store"
)

// PageSize is the fixed list page size.
const PageSize = 20

// Deps are the collaborators of an Engine.
type Deps struct {
	Registry *model.Registry
	Store    store.Store
	Files    filestore.FileStore
	Perms    *permission.Evaluator
	// Events is optional.
	Events *domain.EventDispatcher
	// Background runs stored-file cleanup off the request path. Without it
	// cleanup runs inline.
	Background Background
}

// Background accepts detached tasks. It is satisfied by *worker.Pools.
type Background interface {
	SubmitDetached(poolName string, task worker.Task) error
}

// Engine executes CMS operations on behalf of authenticated principals.
type Engine struct {
	reg    *model.Registry
	st     store.Store
	files  filestore.FileStore
	perms  *permission.Evaluator
	events *domain.EventDispatcher
	bg     Background
	forms  *form.Builder
	ser    *serializer.Serializer
	parser *persist.Parser
	audit  *audit.Recorder
	now    func() time.Time
}

// NewEngine creates an Engine.
func NewEngine(d Deps) *Engine {
	forms := form.NewBuilder(d.Registry)
	return &Engine{
		reg:    d.Registry,
		st:     d.Store,
		files:  d.Files,
		perms:  d.Perms,
		events: d.Events,
		bg:     d.Background,
		forms:  forms,
		ser:    serializer.New(d.Registry, forms, d.Files),
		parser: persist.NewParser(d.Registry, d.Files),
		audit:  audit.NewRecorder(d.Store),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Registry returns the entity registry served by the engine.
func (e *Engine) Registry() *model.Registry { return e.reg }

// authorize runs the permission gate and reports denials as events.
func (e *Engine) authorize(ctx context.Context, p domain.Principal, typ string, op domain.Operation) (*model.EntityType, error) {
	t, err := e.reg.Get(typ)
	if err != nil {
		return nil, err
	}
	if err := e.perms.Authorize(ctx, p, t.Name, op); err != nil {
		e.denied(ctx, p, t.Name, op, err)
		return nil, err
	}
	return t, nil
}

func (e *Engine) denied(ctx context.Context, p domain.Principal, typ string, op domain.Operation, err error) {
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		return
	}
	payload, _ := domain.AccessDeniedPayload{Operation: op, Code: appErr.Code}.ToJSON()
	e.dispatch(ctx, domain.NewEvent(domain.EventAccessDenied, typ, "", p.ID, payload))
}

func (e *Engine) dispatch(ctx context.Context, ev *domain.DomainEvent) {
	if e.events == nil {
		return
	}
	// Handler errors are logged by the dispatcher.
	_ = e.events.Dispatch(ctx, ev)
}

func writable(t *model.EntityType) error {
	if t.ReadOnly {
		return apperrors.New(apperrors.CodeReadOnlyEntity,
			fmt.Sprintf("%s is read-only", t.DisplayLabel()), http.StatusMethodNotAllowed)
	}
	return nil
}

// loadOwned fetches id inside r and applies the object-level ownership
// check. Missing and foreign rows produce the same error.
func loadOwned(ctx context.Context, r store.Reader, t *model.EntityType, p domain.Principal, id string) (store.Record, error) {
	rec, err := r.Get(ctx, t.Name, id)
	if errors.Is(err, store.ErrNotFound) {
		return store.Record{}, apperrors.ErrEntityNotFound(t.Name, id)
	}
	if err != nil {
		return store.Record{}, apperrors.Wrap(err, apperrors.CodeStorageFailure, "failed to load record", http.StatusInternalServerError)
	}
	if err := permission.CheckOwned(ctx, r, t, p, rec); err != nil {
		return store.Record{}, err
	}
	return rec, nil
}

// Describe returns the form schema of typ.
func (e *Engine) Describe(ctx context.Context, p domain.Principal, typ string) (*form.Schema, error) {
	t, err := e.authorize(ctx, p, typ, domain.OpRead)
	if err != nil {
		return nil, err
	}
	return e.forms.Build(t)
}

// DetailResult is the form schema of a type together with one record.
type DetailResult struct {
	*form.Schema
	Data map[string]any `json:"data"`
}

// Get returns the detail projection of one record.
func (e *Engine) Get(ctx context.Context, p domain.Principal, typ, id string) (*DetailResult, error) {
	t, err := e.authorize(ctx, p, typ, domain.OpRead)
	if err != nil {
		return nil, err
	}
	schema, err := e.forms.Build(t)
	if err != nil {
		return nil, err
	}

	var data map[string]any
	err = e.st.View(ctx, func(r store.Reader) error {
		rec, err := loadOwned(ctx, r, t, p, id)
		if err != nil {
			return err
		}
		data, err = e.ser.Detail(ctx, r, t, rec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &DetailResult{Schema: schema, Data: data}, nil
}

// WriteResult is returned by Write.
type WriteResult struct {
	ID      string `json:"id"`
	Created bool   `json:"created"`
	Draft   bool   `json:"draft"`
}

// Write creates a record when id is empty and updates record id otherwise.
// The whole write is one transaction; the audit record follows the commit,
// as does the removal of files the write released.
func (e *Engine) Write(ctx context.Context, p domain.Principal, typ string, payload map[string]any, id string) (*WriteResult, error) {
	t, err := e.reg.Get(typ)
	if err != nil {
		return nil, err
	}
	if err := writable(t); err != nil {
		return nil, err
	}
	if _, err := e.authorize(ctx, p, typ, domain.OpWrite); err != nil {
		return nil, err
	}

	start := time.Now()
	var res *persist.Result
	err = e.st.Update(ctx, func(tx store.Tx) error {
		req := persist.Request{Type: t, Payload: payload, Actor: p.ID, Elevated: p.Elevated}
		if id != "" {
			existing, err := loadOwned(ctx, tx, t, p, id)
			if err != nil {
				return err
			}
			req.Existing = &existing
		}

		var err error
		res, err = e.parser.Write(ctx, tx, req)
		if err != nil {
			return err
		}

		// The written row must still belong to the writer.
		owned, err := permission.Owns(ctx, tx, t, p, res.Record)
		if err != nil {
			return err
		}
		if !owned {
			return apperrors.ErrPermissionDenied(t.Name, string(domain.OpWrite))
		}
		return nil
	})
	metrics.WriteDuration.WithLabelValues(t.Name).Observe(time.Since(start).Seconds())
	if err != nil {
		if res != nil {
			e.parser.Discard(ctx, res)
		}
		if apperrors.HasCode(err, apperrors.CodePermissionDenied) {
			e.denied(ctx, p, t.Name, domain.OpWrite, err)
		}
		return nil, err
	}

	e.removeFiles(ctx, res.RemovedFiles)
	e.recordWrite(ctx, p, t, res)
	return &WriteResult{ID: res.Record.ID, Created: res.Created, Draft: res.Draft}, nil
}

func (e *Engine) recordWrite(ctx context.Context, p domain.Principal, t *model.EntityType, res *persist.Result) {
	var (
		entry   audit.Entry
		write   bool
		evType  = domain.EventEntityUpdated
		changes int
	)
	if res.Created {
		entry, write = audit.NewCreate(t, res.Record, p.ID, p.DisplayName()), true
		evType = domain.EventEntityCreated
	} else {
		entry, write = audit.NewUpdate(t, res.Record, res.Before, res.After, p.ID, p.DisplayName())
		changes = len(entry.Changes)
	}
	if write {
		// Failures are logged and counted by the recorder.
		_ = e.audit.Write(context.WithoutCancel(ctx), entry)
	}

	logger.Info("Entity written",
		zap.String("entity_type", t.Name),
		zap.String("entity_id", res.Record.ID),
		zap.String("actor", p.ID),
		zap.Bool("created", res.Created),
		zap.Bool("draft", res.Draft),
	)
	payload, _ := domain.EntityWritePayload{Draft: res.Draft, ChangedFields: changes}.ToJSON()
	e.dispatch(ctx, domain.NewEvent(evType, t.Name, res.Record.ID, p.ID, payload))
}

// Delete removes one record together with its child rows. Stored files of
// the removed rows are deleted after the commit.
func (e *Engine) Delete(ctx context.Context, p domain.Principal, typ, id string) error {
	t, err := e.reg.Get(typ)
	if err != nil {
		return err
	}
	if err := writable(t); err != nil {
		return err
	}
	if _, err := e.authorize(ctx, p, typ, domain.OpDelete); err != nil {
		return err
	}

	var (
		entry audit.Entry
		keys  []string
	)
	err = e.st.Update(ctx, func(tx store.Tx) error {
		rec, err := loadOwned(ctx, tx, t, p, id)
		if err != nil {
			return err
		}
		entry = audit.NewDelete(t, rec, p.ID, p.DisplayName())
		keys = persist.ImageKeys(t, rec)

		for _, tbl := range t.Tables {
			child, err := e.reg.Get(tbl.Child)
			if err != nil {
				return err
			}
			rows, err := tx.Find(ctx, store.Query{Type: child.Name, Where: []store.Cond{store.Eq(tbl.ParentAttr, rec.ID)}})
			if err != nil {
				return err
			}
			for _, row := range rows {
				if err := tx.Delete(ctx, child.Name, row.ID); err != nil {
					return err
				}
				keys = append(keys, persist.ImageKeys(child, row)...)
			}
		}
		return tx.Delete(ctx, t.Name, rec.ID)
	})
	if err != nil {
		if _, ok := apperrors.IsAppError(err); !ok {
			err = apperrors.Wrap(err, apperrors.CodeStorageFailure, "failed to delete record", http.StatusInternalServerError)
		}
		return err
	}

	e.removeFiles(ctx, keys)
	_ = e.audit.Write(context.WithoutCancel(ctx), entry)
	logger.Info("Entity deleted",
		zap.String("entity_type", t.Name),
		zap.String("entity_id", id),
		zap.String("actor", p.ID),
	)
	e.dispatch(ctx, domain.NewEvent(domain.EventEntityDeleted, t.Name, id, p.ID, nil))
	return nil
}

func (e *Engine) removeFiles(ctx context.Context, keys []string) {
	if e.files == nil || len(keys) == 0 {
		return
	}
	remove := func(ctx context.Context) {
		for _, key := range keys {
			if err := e.files.Delete(ctx, key); err != nil {
				logger.Warn("Failed to remove stored file", zap.String("key", key), zap.Error(err))
			}
		}
	}
	if e.bg != nil {
		if err := e.bg.SubmitDetached(worker.PoolFiles, remove); err == nil {
			return
		}
	}
	remove(context.WithoutCancel(ctx))
}
