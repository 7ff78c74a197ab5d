package persist

import (
	"errors"
	"fmt"

	"github.com/cespare/xxhash/v2"

	"autohaus.io/cms/internal/governance/audit"
	"autohaus.io/cms/internal/model"
	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/store"
)

// reconcile applies the submitted rows of one child table to the children of
// parentID and reports whether any child was created, changed or deleted.
func (w *write) reconcile(parentID string, tbl model.Table, rows []map[string]any) (bool, error) {
	child, err := w.reg.Get(tbl.Child)
	if err != nil {
		return false, err
	}
	existing, err := w.tx.Find(w.ctx, store.Query{
		Type:  child.Name,
		Where: []store.Cond{store.Eq(tbl.ParentAttr, parentID)},
	})
	if err != nil {
		return false, storageError(err)
	}

	// Rows may keep or swap the files already attached to this parent.
	known := storedKeys(child, existing...)
	if tbl.Mode == model.ReconcilePositional {
		return w.reconcilePositional(parentID, tbl, child, existing, rows, known)
	}
	return w.reconcileKeyed(parentID, tbl, child, existing, rows, known)
}

func (w *write) reconcileKeyed(parentID string, tbl model.Table, child *model.EntityType, existing []store.Record, rows []map[string]any, known map[string]bool) (bool, error) {
	byID := make(map[string]store.Record, len(existing))
	for _, rec := range existing {
		byID[rec.ID] = rec
	}

	changed := false
	kept := make(map[string]bool, len(rows))
	for i, row := range rows {
		id, _ := rowID(row, model.AttrID)
		if id == "" {
			created, err := w.insertChild(parentID, tbl, child, row, "", known)
			if err != nil {
				return false, err
			}
			changed = changed || created
			continue
		}
		if kept[id] {
			return false, invalidField(tbl.Key(), "row %d repeats child %s", i, id)
		}
		rec, ok := byID[id]
		if !ok {
			return false, apperrors.ErrReferenceNotFoundf(tbl.Key(), child.Name, id)
		}
		kept[id] = true
		edited, err := w.updateChild(parentID, tbl, child, rec, row, known)
		if err != nil {
			return false, err
		}
		changed = changed || edited
	}

	for _, rec := range existing {
		if kept[rec.ID] {
			continue
		}
		if err := w.deleteChild(child, rec); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

// reconcilePositional matches row i to the i-th stored child by creation
// order. Reordering rows therefore reads as edits.
func (w *write) reconcilePositional(parentID string, tbl model.Table, child *model.EntityType, existing []store.Record, rows []map[string]any, known map[string]bool) (bool, error) {
	changed := false
	for i, row := range rows {
		if i < len(existing) {
			edited, err := w.updateChild(parentID, tbl, child, existing[i], row, known)
			if err != nil {
				return false, err
			}
			changed = changed || edited
			continue
		}
		created, err := w.insertChild(parentID, tbl, child, row, tbl.UploadAttr, known)
		if err != nil {
			return false, err
		}
		changed = changed || created
	}
	for _, rec := range existing[min(len(rows), len(existing)):] {
		if err := w.deleteChild(child, rec); err != nil {
			return false, err
		}
		changed = true
	}
	return changed, nil
}

func (w *write) deleteChild(child *model.EntityType, rec store.Record) error {
	if err := w.tx.Delete(w.ctx, child.Name, rec.ID); err != nil {
		return storageError(err)
	}
	w.drop(child, rec, nil)
	return nil
}

// insertChild creates a child row or claims a pending upload. matchAttr
// enables the legacy claim by stored file path.
func (w *write) insertChild(parentID string, tbl model.Table, child *model.EntityType, row map[string]any, matchAttr string, known map[string]bool) (bool, error) {
	pending, err := w.pendingByHandle(tbl, child, row)
	if err != nil {
		return false, err
	}
	allow := func(attr, key string) (bool, error) {
		switch {
		case known[key]:
			return true, nil
		case pending != nil:
			return pending.String(attr) == key, nil
		case attr != matchAttr:
			return false, nil
		}
		found, err := w.pendingByPath(tbl, child, attr, key)
		return found != nil, err
	}
	c, err := w.clean(child, row, tbl.ParentAttr, allow)
	if err != nil {
		return false, err
	}
	if pending == nil && matchAttr != "" {
		if key, _ := c.values[matchAttr].(string); key != "" {
			if pending, err = w.pendingByPath(tbl, child, matchAttr, key); err != nil {
				return false, err
			}
		}
	}

	if pending != nil {
		rec := pending.Clone()
		for k, v := range c.values {
			rec.Values[k] = v
		}
		rec.Values[tbl.ParentAttr] = parentID
		rec.Values[model.AttrUpdatedBy] = w.actor
		if err := w.validateChild(child, &rec); err != nil {
			return false, err
		}
		if err := w.tx.Update(w.ctx, &rec); err != nil {
			return false, storageError(err)
		}
		w.drop(child, *pending, &rec)
		w.keep(child, rec)
		return true, w.setChildLinks(child, rec.ID, c.links)
	}

	values := c.values
	applyDefaults(child, values)
	values[tbl.ParentAttr] = parentID
	rec := &store.Record{Type: child.Name, Values: values}
	if err := w.validateChild(child, rec); err != nil {
		return false, err
	}
	values[model.AttrCreatedBy] = w.actor
	values[model.AttrUpdatedBy] = w.actor
	if err := w.tx.Insert(w.ctx, rec); err != nil {
		return false, storageError(err)
	}
	w.keep(child, *rec)
	return true, w.setChildLinks(child, rec.ID, c.links)
}

// claimable reports whether the actor may attach the pending upload rec.
func (w *write) claimable(rec store.Record) bool {
	return w.elevated || rec.String(model.AttrCreatedBy) == w.actor
}

// pendingByHandle returns the pending upload named by the row's upload
// handle. A handle that does not name an unclaimed upload of the actor is
// REFERENCE_NOT_FOUND.
func (w *write) pendingByHandle(tbl model.Table, child *model.EntityType, row map[string]any) (*store.Record, error) {
	handle, ok := rowID(row, UploadKey)
	if !ok || handle == "" {
		return nil, nil
	}
	rec, err := w.tx.Get(w.ctx, child.Name, handle)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, storageError(err)
	}
	if err != nil || rec.Get(tbl.ParentAttr) != nil || !w.claimable(rec) {
		return nil, apperrors.ErrReferenceNotFoundf(UploadKey, child.Name, handle)
	}
	return &rec, nil
}

// pendingByPath finds an unclaimed upload of the actor whose attr holds key.
func (w *write) pendingByPath(tbl model.Table, child *model.EntityType, attr, key string) (*store.Record, error) {
	where := []store.Cond{store.Eq(attr, key), store.IsNull(tbl.ParentAttr)}
	if !w.elevated {
		where = append(where, store.Eq(model.AttrCreatedBy, w.actor))
	}
	found, err := w.tx.Find(w.ctx, store.Query{Type: child.Name, Where: where, Limit: 1})
	if err != nil {
		return nil, storageError(err)
	}
	if len(found) == 0 {
		return nil, nil
	}
	return &found[0], nil
}

// updateChild applies row to an existing child and reports whether its
// fields changed.
func (w *write) updateChild(parentID string, tbl model.Table, child *model.EntityType, rec store.Record, row map[string]any, known map[string]bool) (bool, error) {
	c, err := w.clean(child, row, tbl.ParentAttr, knownKeys(known))
	if err != nil {
		return false, err
	}
	oldLinks, err := w.links(child, rec.ID)
	if err != nil {
		return false, err
	}

	next := rec.Clone()
	for k, v := range c.values {
		next.Values[k] = v
	}
	next.Values[tbl.ParentAttr] = parentID
	if err := w.validateChild(child, &next); err != nil {
		return false, err
	}

	newLinks := make(map[string][]string, len(oldLinks))
	for k, v := range oldLinks {
		newLinks[k] = v
	}
	for k, v := range c.links {
		newLinks[k] = v
	}
	if fingerprint(child, rec, oldLinks) == fingerprint(child, next, newLinks) {
		w.keep(child, rec)
		return false, nil
	}

	next.Values[model.AttrUpdatedBy] = w.actor
	if err := w.tx.Update(w.ctx, &next); err != nil {
		return false, storageError(err)
	}
	w.drop(child, rec, &next)
	w.keep(child, next)
	return true, w.setChildLinks(child, rec.ID, c.links)
}

func (w *write) validateChild(child *model.EntityType, rec *store.Record) error {
	if err := checkMandatory(child, rec.Values); err != nil {
		return err
	}
	return child.CheckRules(rec.Values)
}

func (w *write) setChildLinks(child *model.EntityType, id string, links map[string][]string) error {
	for _, a := range child.Attributes {
		ids, ok := links[a.Name]
		if !ok {
			continue
		}
		if err := w.tx.SetLinks(w.ctx, child.Name, id, a.Name, ids); err != nil {
			return storageError(err)
		}
	}
	return nil
}

// fingerprint hashes the editable values of a child row in declaration
// order.
func fingerprint(t *model.EntityType, rec store.Record, links map[string][]string) uint64 {
	snap := audit.Snapshot(t, rec, links)
	d := xxhash.New()
	for _, a := range t.Editable() {
		_, _ = d.WriteString(a.Name)
		_, _ = d.Write([]byte{0})
		_, _ = d.WriteString(snap[a.Name])
		_, _ = d.Write([]byte{0xff})
	}
	return d.Sum64()
}

func rowID(row map[string]any, key string) (string, bool) {
	switch v := row[key].(type) {
	case nil:
		return "", false
	case string:
		return v, true
	default:
		return fmt.Sprint(v), true
	}
}
