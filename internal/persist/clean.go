package persist

import (
	"bytes"
	"errors"
	"fmt"
	"net/http"

	"autohaus.io/cms/internal/filestore"
	"autohaus.io/cms/internal/model"
	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/store"
)

// UploadKey is the child-row payload key that claims a pending upload.
const UploadKey = "_upload"

// cleaned is a payload split into its parts.
type cleaned struct {
	values map[string]any
	links  map[string][]string
	tables map[string][]map[string]any
	// draft is set when the payload explicitly carries the draft flag.
	draft *bool
}

func invalidField(field, format string, args ...any) error {
	return apperrors.ErrValidationFailed(apperrors.FieldError{
		Field:   field,
		Code:    "INVALID_VALUE",
		Message: fmt.Sprintf(format, args...),
	})
}

// keyCheck reports whether an already stored file key may be written to
// attribute attr of the row being cleaned.
type keyCheck func(attr, key string) (bool, error)

// knownKeys accepts exactly the keys in known.
func knownKeys(known map[string]bool) keyCheck {
	return func(_, key string) (bool, error) { return known[key], nil }
}

// clean coerces the attributes of t present in payload. skip names an
// attribute set by the caller (the parent reference of a child row).
// allow decides which stored file keys image attributes may carry; nil
// admits only new uploads. System attributes other than draft, components
// and unknown keys are dropped.
func (w *write) clean(t *model.EntityType, payload map[string]any, skip string, allow keyCheck) (*cleaned, error) {
	c := &cleaned{
		values: map[string]any{},
		links:  map[string][]string{},
		tables: map[string][]map[string]any{},
	}

	for _, a := range t.Attributes {
		raw, present := payload[a.Name]
		if !present || a.Name == skip {
			continue
		}
		if a.System() {
			if a.Name == model.AttrDraft {
				v, err := a.Coerce(raw)
				if err != nil {
					return nil, err
				}
				if b, ok := v.(bool); ok {
					c.draft = &b
				}
			}
			continue
		}

		v, err := a.Coerce(raw)
		if err != nil {
			return nil, err
		}
		switch a.Kind {
		case model.KindComponent:
			continue
		case model.KindManyToMany:
			ids, err := w.resolveMany(a, v.([]string))
			if err != nil {
				return nil, err
			}
			c.links[a.Name] = ids
			continue
		case model.KindRelation:
			if err := w.resolve(a, v); err != nil {
				return nil, err
			}
		case model.KindImage:
			if v, err = w.cleanImage(a, v, allow); err != nil {
				return nil, err
			}
		}
		c.values[a.Name] = v
	}

	for _, tbl := range t.Tables {
		raw, present := payload[tbl.Key()]
		if !present {
			continue
		}
		rows, err := tableRows(tbl.Key(), raw)
		if err != nil {
			return nil, err
		}
		c.tables[tbl.Key()] = rows
	}
	return c, nil
}

func tableRows(key string, raw any) ([]map[string]any, error) {
	if raw == nil {
		return []map[string]any{}, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, invalidField(key, "expected a list of rows")
	}
	rows := make([]map[string]any, 0, len(list))
	for i, e := range list {
		row, ok := e.(map[string]any)
		if !ok {
			return nil, invalidField(key, "row %d is not an object", i)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

// resolve checks that a relation id points at an existing record.
func (w *write) resolve(a model.Attribute, v any) error {
	id, ok := v.(string)
	if !ok || id == "" {
		return nil
	}
	if _, err := w.tx.Get(w.ctx, a.Target, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperrors.ErrReferenceNotFoundf(a.Name, a.Target, id)
		}
		return storageError(err)
	}
	return nil
}

func (w *write) resolveMany(a model.Attribute, ids []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if seen[id] {
			continue
		}
		seen[id] = true
		if err := w.resolve(a, id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, nil
}

// cleanImage turns a submitted image value into a storage key. Data URIs
// are written through the file store. URLs it produced map back to keys, and
// anything else is taken to be a key already; such keys must pass allow, so a
// row can only keep or move files it already holds, never adopt someone
// else's.
func (w *write) cleanImage(a model.Attribute, v any, allow keyCheck) (any, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return nil, nil
	}
	if filestore.IsDataURI(s) {
		if w.files == nil {
			return nil, apperrors.BadRequest(apperrors.CodeUploadNotSupported, "file storage is not configured")
		}
		name, data, err := filestore.DecodeDataURI(s)
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeInvalidUploadEncoding,
				fmt.Sprintf("%s is not a valid base64 data URI", a.Name), http.StatusBadRequest)
		}
		key, err := w.files.Put(w.ctx, name, bytes.NewReader(data))
		if err != nil {
			return nil, apperrors.Wrap(err, apperrors.CodeFileStorageFailure, "failed to store file", http.StatusInternalServerError)
		}
		w.storedFiles = append(w.storedFiles, key)
		return key, nil
	}
	key := s
	if w.files != nil {
		if k, ok := w.files.KeyFromURL(s); ok {
			key = k
		}
	}
	if allow != nil {
		ok, err := allow(a.Name, key)
		if err != nil {
			return nil, err
		}
		if ok {
			return key, nil
		}
	}
	return nil, apperrors.ErrReferenceNotFoundf(a.Name, "file", s)
}

// ImageKeys returns the stored file keys referenced by rec.
func ImageKeys(t *model.EntityType, rec store.Record) []string {
	var out []string
	for _, a := range t.Attributes {
		if a.Kind != model.KindImage {
			continue
		}
		if key := rec.String(a.Name); key != "" {
			out = append(out, key)
		}
	}
	return out
}

// storedKeys collects the image keys of recs.
func storedKeys(t *model.EntityType, recs ...store.Record) map[string]bool {
	out := map[string]bool{}
	for _, rec := range recs {
		for _, key := range ImageKeys(t, rec) {
			out[key] = true
		}
	}
	return out
}

// checkMandatory reports the first mandatory attribute missing from values.
func checkMandatory(t *model.EntityType, values map[string]any) error {
	for _, a := range t.Attributes {
		if !a.Mandatory() {
			continue
		}
		switch v := values[a.Name].(type) {
		case nil:
			return apperrors.ErrMissingRequiredFieldf(a.Name)
		case string:
			if v == "" {
				return apperrors.ErrMissingRequiredFieldf(a.Name)
			}
		}
	}
	return nil
}

// applyDefaults fills declared defaults for attributes absent from values.
func applyDefaults(t *model.EntityType, values map[string]any) {
	for _, a := range t.Attributes {
		if a.System() || !a.Kind.Stored() || a.Default == nil {
			continue
		}
		if _, ok := values[a.Name]; !ok {
			if v, err := a.Coerce(a.Default); err == nil {
				values[a.Name] = v
			}
		}
	}
}

func storageError(err error) error {
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodeStorageFailure, "storage operation failed", http.StatusInternalServerError)
}
