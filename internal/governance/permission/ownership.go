package permission

import (
	"context"
	"errors"

	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/model"
	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/store"
)

// Owns reports whether p may see rec under the ownership rules of t. Types
// without an owner function and elevated principals always pass; a broken
// owner chain never does.
func Owns(ctx context.Context, r store.Reader, t *model.EntityType, p domain.Principal, rec store.Record) (bool, error) {
	if p.Elevated || !t.HasOwner() || t.Name == model.AuditLogType {
		return true, nil
	}
	owner, ok, err := t.Owner(ctx, r, rec)
	if err != nil {
		return false, err
	}
	return ok && owner != "" && owner == p.ID, nil
}

// CheckOwned is Owns as an error: ENTITY_NOT_FOUND_OR_NOT_OWNED when p does
// not own rec, so that foreign and missing rows look the same.
func CheckOwned(ctx context.Context, r store.Reader, t *model.EntityType, p domain.Principal, rec store.Record) error {
	ok, err := Owns(ctx, r, t, p, rec)
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.ErrEntityNotFound(t.Name, rec.ID)
	}
	return nil
}

// FilterOwned keeps the records of recs owned by p.
func FilterOwned(ctx context.Context, r store.Reader, t *model.EntityType, p domain.Principal, recs []store.Record) ([]store.Record, error) {
	if p.Elevated || !t.HasOwner() {
		return recs, nil
	}
	out := recs[:0:0]
	for _, rec := range recs {
		ok, err := Owns(ctx, r, t, p, rec)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

// Follow resolves the relation attr of rec to its target record. ok is false
// when the relation is empty or dangling. It is the building block of owner
// functions that walk a chain such as vehicle -> seller -> user.
func Follow(ctx context.Context, r store.Reader, rec store.Record, attr, target string) (store.Record, bool, error) {
	id := rec.String(attr)
	if id == "" {
		return store.Record{}, false, nil
	}
	ref, err := r.Get(ctx, target, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Record{}, false, nil
		}
		return store.Record{}, false, err
	}
	return ref, true, nil
}

// AttrOwner returns an owner function reading the principal id straight from
// attr.
func AttrOwner(attr string) model.OwnerFunc {
	return func(_ context.Context, _ store.Reader, rec store.Record) (string, bool, error) {
		id := rec.String(attr)
		return id, id != "", nil
	}
}

// ChainOwner returns an owner function that follows the relation attr to
// target and asks target's owner function.
func ChainOwner(attr, target string, next model.OwnerFunc) model.OwnerFunc {
	return func(ctx context.Context, r store.Reader, rec store.Record) (string, bool, error) {
		ref, ok, err := Follow(ctx, r, rec, attr, target)
		if err != nil || !ok {
			return "", false, err
		}
		return next(ctx, r, ref)
	}
}
