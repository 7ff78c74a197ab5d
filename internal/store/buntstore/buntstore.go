// Package buntstore is the embedded record store backed by tidwall/buntdb.
//
// Records are msgpack-encoded under "rec:<type>:<id>" and many-to-many links
// under "link:<type>:<id>:<attr>". buntdb serializes writers, so every Update
// is an isolated read-your-writes transaction.
package buntstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/tidwall/buntdb"
	"github.com/vmihailenco/msgpack/v5"

	"autohaus.io/cms/internal/store"
)

// Memory opens an ephemeral in-process database.
const Memory = ":memory:"

// Store implements store.Store on buntdb.
type Store struct {
	db   *buntdb.DB
	once sync.Once
	now  func() time.Time
}

var _ store.Store = (*Store)(nil)

// Open opens (or creates) the database file at path. Use Memory for tests.
func Open(path string) (*Store, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}
	return &Store{db: db, now: func() time.Time { return time.Now().UTC() }}, nil
}

// Close shrinks and closes the underlying database.
func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		_ = s.db.Shrink()
		err = s.db.Close()
	})
	return err
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(store.Reader) error) error {
	return s.db.View(func(tx *buntdb.Tx) error {
		return fn(&txn{tx: tx, now: s.now})
	})
}

// Update runs fn in a read-write transaction.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	return s.db.Update(func(tx *buntdb.Tx) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		return fn(&txn{tx: tx, now: s.now})
	})
}

type entry struct {
	ID        string         `msgpack:"id"`
	Values    map[string]any `msgpack:"v"`
	CreatedAt time.Time      `msgpack:"c"`
	UpdatedAt time.Time      `msgpack:"u"`
}

type txn struct {
	tx  *buntdb.Tx
	now func() time.Time
}

func recordKey(typ, id string) string { return "rec:" + typ + ":" + id }

func linkKey(typ, id, attr string) string { return "link:" + typ + ":" + id + ":" + attr }

func encode(v any) (string, error) {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decode(raw string, v any) error {
	dec := msgpack.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseLooseInterfaceDecoding(true)
	return dec.Decode(v)
}

func decodeRecord(typ, raw string) (store.Record, error) {
	var e entry
	if err := decode(raw, &e); err != nil {
		return store.Record{}, fmt.Errorf("decode %s record: %w", typ, err)
	}
	return store.Record{
		Type:      typ,
		ID:        e.ID,
		Values:    store.NormalizeValues(e.Values),
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
	}, nil
}

func (t *txn) put(rec *store.Record) error {
	raw, err := encode(entry{
		ID:        rec.ID,
		Values:    rec.Values,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
	if err != nil {
		return fmt.Errorf("encode %s record: %w", rec.Type, err)
	}
	_, _, err = t.tx.Set(recordKey(rec.Type, rec.ID), raw, nil)
	return err
}

func (t *txn) Get(ctx context.Context, typ, id string) (store.Record, error) {
	raw, err := t.tx.Get(recordKey(typ, id))
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return store.Record{}, store.ErrNotFound
		}
		return store.Record{}, err
	}
	return decodeRecord(typ, raw)
}

func (t *txn) scan(typ string) ([]store.Record, error) {
	var (
		recs    []store.Record
		scanErr error
	)
	err := t.tx.AscendKeys(recordKey(typ, "*"), func(key, value string) bool {
		rec, err := decodeRecord(typ, value)
		if err != nil {
			scanErr = err
			return false
		}
		recs = append(recs, rec)
		return true
	})
	if err != nil {
		return nil, err
	}
	return recs, scanErr
}

func (t *txn) Find(ctx context.Context, q store.Query) ([]store.Record, error) {
	recs, err := t.scan(q.Type)
	if err != nil {
		return nil, err
	}
	return q.Apply(recs), nil
}

func (t *txn) Count(ctx context.Context, q store.Query) (int, error) {
	q.Limit, q.Offset = 0, 0
	recs, err := t.Find(ctx, q)
	if err != nil {
		return 0, err
	}
	return len(recs), nil
}

func (t *txn) Links(ctx context.Context, typ, id, attr string) ([]string, error) {
	raw, err := t.tx.Get(linkKey(typ, id, attr))
	if err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var ids []string
	if err := decode(raw, &ids); err != nil {
		return nil, fmt.Errorf("decode links: %w", err)
	}
	return ids, nil
}

func (t *txn) Insert(ctx context.Context, rec *store.Record) error {
	store.Stamp(rec, t.now())
	if _, err := t.tx.Get(recordKey(rec.Type, rec.ID)); err == nil {
		return fmt.Errorf("%s %s already exists", rec.Type, rec.ID)
	} else if !errors.Is(err, buntdb.ErrNotFound) {
		return err
	}
	return t.put(rec)
}

func (t *txn) Update(ctx context.Context, rec *store.Record) error {
	existing, err := t.Get(ctx, rec.Type, rec.ID)
	if err != nil {
		return err
	}
	rec.CreatedAt = existing.CreatedAt
	rec.UpdatedAt = t.now()
	if !rec.UpdatedAt.After(existing.UpdatedAt) {
		rec.UpdatedAt = existing.UpdatedAt.Add(time.Microsecond)
	}
	return t.put(rec)
}

func (t *txn) Delete(ctx context.Context, typ, id string) error {
	if _, err := t.tx.Delete(recordKey(typ, id)); err != nil {
		if errors.Is(err, buntdb.ErrNotFound) {
			return store.ErrNotFound
		}
		return err
	}
	var keys []string
	err := t.tx.AscendKeys(linkKey(typ, id, "*"), func(key, _ string) bool {
		keys = append(keys, key)
		return true
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if _, err := t.tx.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

func (t *txn) SetLinks(ctx context.Context, typ, id, attr string, ids []string) error {
	key := linkKey(typ, id, attr)
	if len(ids) == 0 {
		if _, err := t.tx.Delete(key); err != nil && !errors.Is(err, buntdb.ErrNotFound) {
			return err
		}
		return nil
	}
	raw, err := encode(ids)
	if err != nil {
		return fmt.Errorf("encode links: %w", err)
	}
	_, _, err = t.tx.Set(key, raw, nil)
	return err
}
