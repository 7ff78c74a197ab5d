// Package persist is the generic write path of the CMS engine.
//
// A write cleans a structural payload against the entity type, validates the
// resulting candidate, persists the parent record, replaces many-to-many
// membership and reconciles child tables. Everything runs inside the
// caller's store transaction, so a failure at any step leaves no partial
// write behind.
package persist

import (
	"context"
	"errors"
	"slices"

	"go.uber.org/zap"

	"autohaus.io/cms/internal/filestore"
	"autohaus.io/cms/internal/governance/audit"
	"autohaus.io/cms/internal/model"
	"autohaus.io/cms/internal/pkg/logger"
	"autohaus.io/cms/internal/store"
)

// Request is one write.
type Request struct {
	Type *model.EntityType
	// Existing is the stored record for updates, loaded in the same
	// transaction. Nil means create.
	Existing *store.Record
	Payload  map[string]any
	// Actor is the principal id stamped on created_by/updated_by.
	Actor string
	// Elevated actors may claim pending uploads of other principals.
	Elevated bool
}

// Result describes a committed-to-be write.
type Result struct {
	Record  store.Record
	Created bool
	// Draft reports whether the write changed the parent, its
	// many-to-many membership or its children. Always false on create.
	Draft bool
	// Before and After are the audit snapshots of the parent. Before is
	// nil on create.
	Before map[string]string
	After  map[string]string
	// RemovedFiles are the stored files no row references after the write:
	// images of deleted children and replaced image values. The caller
	// deletes them once the transaction has committed.
	RemovedFiles []string

	storedFiles []string
}

// Parser executes writes against a registry.
type Parser struct {
	reg   *model.Registry
	files filestore.FileStore
}

// NewParser creates a Parser. files may be nil when no image attribute
// accepts uploads.
func NewParser(reg *model.Registry, files filestore.FileStore) *Parser {
	return &Parser{reg: reg, files: files}
}

// write carries per-request state.
type write struct {
	*Parser
	ctx         context.Context
	tx          store.Tx
	actor       string
	elevated    bool
	storedFiles []string
	dropped     []string
	kept        map[string]bool
}

// Write runs req inside tx. Files written to the file store during a failed
// write are removed again before returning.
func (p *Parser) Write(ctx context.Context, tx store.Tx, req Request) (*Result, error) {
	w := &write{Parser: p, ctx: ctx, tx: tx, actor: req.Actor, elevated: req.Elevated, kept: map[string]bool{}}

	var (
		res *Result
		err error
	)
	if req.Existing == nil {
		res, err = w.create(req)
	} else {
		res, err = w.update(req)
	}
	if err != nil {
		w.discardFiles()
		return nil, err
	}
	res.storedFiles = w.storedFiles
	res.RemovedFiles = w.removedFiles()
	return res, nil
}

// drop marks the image keys of rec, or those of its attributes that next
// no longer carries, as released by the write.
func (w *write) drop(t *model.EntityType, rec store.Record, next *store.Record) {
	for _, a := range t.Attributes {
		if a.Kind != model.KindImage {
			continue
		}
		key := rec.String(a.Name)
		if key == "" || (next != nil && next.String(a.Name) == key) {
			continue
		}
		w.dropped = append(w.dropped, key)
	}
}

// keep records the image keys rec holds after the write.
func (w *write) keep(t *model.EntityType, rec store.Record) {
	for _, key := range ImageKeys(t, rec) {
		w.kept[key] = true
	}
}

// removedFiles returns the released keys that no written row still holds.
// A file moved between rows of the same write is therefore kept.
func (w *write) removedFiles() []string {
	var out []string
	seen := map[string]bool{}
	for _, key := range w.dropped {
		if w.kept[key] || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, key)
	}
	return out
}

// Discard removes the files stored by a successful Write whose transaction
// the caller rolled back afterwards.
func (p *Parser) Discard(ctx context.Context, res *Result) {
	if res == nil {
		return
	}
	w := &write{Parser: p, ctx: ctx, storedFiles: res.storedFiles}
	w.discardFiles()
}

func (w *write) discardFiles() {
	for _, key := range w.storedFiles {
		if err := w.files.Delete(context.WithoutCancel(w.ctx), key); err != nil {
			logger.Warn("Failed to remove file of aborted write", zap.String("key", key), zap.Error(err))
		}
	}
}

func (w *write) create(req Request) (*Result, error) {
	t := req.Type
	c, err := w.clean(t, req.Payload, "", nil)
	if err != nil {
		return nil, err
	}

	values := c.values
	applyDefaults(t, values)
	if err := w.validate(t, &store.Record{Type: t.Name, Values: values}, true); err != nil {
		return nil, err
	}

	values[model.AttrCreatedBy] = w.actor
	values[model.AttrUpdatedBy] = w.actor
	if t.Draftable {
		values[model.AttrDraft] = false
	}
	rec := &store.Record{Type: t.Name, Values: values}
	if err := w.tx.Insert(w.ctx, rec); err != nil {
		return nil, storageError(err)
	}

	for _, a := range t.Attributes {
		if ids, ok := c.links[a.Name]; ok {
			if err := w.tx.SetLinks(w.ctx, t.Name, rec.ID, a.Name, ids); err != nil {
				return nil, storageError(err)
			}
		}
	}
	for _, tbl := range t.Tables {
		rows, ok := c.tables[tbl.Key()]
		if !ok {
			continue
		}
		if _, err := w.reconcile(rec.ID, tbl, rows); err != nil {
			return nil, err
		}
	}

	if err := w.afterPersist(t, rec, true, false); err != nil {
		return nil, err
	}
	return &Result{
		Record:  *rec,
		Created: true,
		After:   audit.Snapshot(t, *rec, c.links),
	}, nil
}

func (w *write) update(req Request) (*Result, error) {
	t := req.Type
	existing := req.Existing.Clone()

	c, err := w.clean(t, req.Payload, "", knownKeys(storedKeys(t, existing)))
	if err != nil {
		return nil, err
	}

	oldLinks, err := w.links(t, existing.ID)
	if err != nil {
		return nil, err
	}
	newLinks := make(map[string][]string, len(oldLinks))
	for k, v := range oldLinks {
		newLinks[k] = v
	}
	for k, v := range c.links {
		newLinks[k] = v
	}

	candidate := existing.Clone()
	for k, v := range c.values {
		candidate.Values[k] = v
	}
	if err := w.validate(t, &candidate, false); err != nil {
		return nil, err
	}
	w.drop(t, existing, &candidate)
	w.keep(t, candidate)

	before := audit.Snapshot(t, existing, oldLinks)
	after := audit.Snapshot(t, candidate, newLinks)
	changed := false
	for k, v := range after {
		if before[k] != v {
			changed = true
			break
		}
	}

	for _, a := range t.Attributes {
		ids, ok := c.links[a.Name]
		if !ok || sameMembers(oldLinks[a.Name], ids) {
			continue
		}
		if err := w.tx.SetLinks(w.ctx, t.Name, existing.ID, a.Name, ids); err != nil {
			return nil, storageError(err)
		}
	}

	for _, tbl := range t.Tables {
		rows, ok := c.tables[tbl.Key()]
		if !ok {
			continue
		}
		childChanged, err := w.reconcile(existing.ID, tbl, rows)
		if err != nil {
			return nil, err
		}
		changed = changed || childChanged
	}

	if t.Draftable {
		prev, _ := existing.Get(model.AttrDraft).(bool)
		stored := prev || changed
		if c.draft != nil && !*c.draft {
			stored = false
		}
		candidate.Values[model.AttrDraft] = stored
	}

	if changed || !store.Equal(existing.Get(model.AttrDraft), candidate.Get(model.AttrDraft)) {
		candidate.Values[model.AttrUpdatedBy] = w.actor
		if err := w.tx.Update(w.ctx, &candidate); err != nil {
			return nil, storageError(err)
		}
	}

	if err := w.afterPersist(t, &candidate, false, changed); err != nil {
		return nil, err
	}
	return &Result{
		Record: candidate,
		Draft:  changed,
		Before: before,
		After:  after,
	}, nil
}

// validate runs mandatory-field checks, declarative rules and the
// Validate hook against a candidate that has not been persisted yet.
func (w *write) validate(t *model.EntityType, candidate *store.Record, created bool) error {
	if err := checkMandatory(t, candidate.Values); err != nil {
		return err
	}
	if err := t.CheckRules(candidate.Values); err != nil {
		return err
	}
	return t.Hooks.Validate(w.ctx, &model.HookContext{
		Type:    t,
		Record:  candidate,
		Tx:      w.tx,
		Actor:   w.actor,
		Created: created,
	})
}

func (w *write) afterPersist(t *model.EntityType, rec *store.Record, created, draft bool) error {
	hc := &model.HookContext{Type: t, Record: rec, Tx: w.tx, Actor: w.actor, Created: created, Draft: draft}
	if !draft {
		if err := t.Hooks.Submit(w.ctx, hc); err != nil {
			return err
		}
	}
	if created {
		return t.Hooks.AfterInsert(w.ctx, hc)
	}
	return nil
}

func (w *write) links(t *model.EntityType, id string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, a := range t.Attributes {
		if a.Kind != model.KindManyToMany {
			continue
		}
		ids, err := w.tx.Links(w.ctx, t.Name, id, a.Name)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return nil, storageError(err)
		}
		out[a.Name] = ids
	}
	return out, nil
}

func sameMembers(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x, y := slices.Clone(a), slices.Clone(b)
	slices.Sort(x)
	slices.Sort(y)
	return slices.Equal(x, y)
}
