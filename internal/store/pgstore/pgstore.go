// Package pgstore is the PostgreSQL record store.
//
// Records of every entity type share one table keyed by (type, id) with the
// value map in a jsonb column; many-to-many links live in a second table with
// an explicit position column. SQL is built with ent's dialect/sql builder so
// the same *sql.DB (from the shared pgx pool) serves records and River.
package pgstore

import (
	"bytes"
	"context"
	stdsql "database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"

	"autohaus.io/cms/internal/store"
)

const (
	recordsTable = "cms_records"
	linksTable   = "cms_links"
)

var recordColumns = []string{"id", "data", "created_at", "updated_at"}

// Store implements store.Store on PostgreSQL.
type Store struct {
	drv *entsql.Driver
	now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New wraps an ent SQL driver opened with the postgres dialect.
func New(drv *entsql.Driver) *Store {
	return &Store{drv: drv, now: func() time.Time { return time.Now().UTC() }}
}

// Open wraps db, typically stdlib.OpenDBFromPool on the shared pgx pool.
func Open(db *stdsql.DB) *Store {
	return New(entsql.OpenDB(dialect.Postgres, db))
}

// Migrate creates the record and link tables when missing.
func (s *Store) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if err := s.drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("pgstore migrate: %w", err)
		}
	}
	return nil
}

// Close closes the driver.
func (s *Store) Close() error {
	return s.drv.Close()
}

// View runs fn in a read-only transaction.
func (s *Store) View(ctx context.Context, fn func(store.Reader) error) error {
	tx, err := s.drv.BeginTx(ctx, &stdsql.TxOptions{ReadOnly: true})
	if err != nil {
		return fmt.Errorf("begin read transaction: %w", err)
	}
	if err := fn(&txn{tx: tx, now: s.now}); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// Update runs fn in a read-write transaction, committing when fn returns nil.
func (s *Store) Update(ctx context.Context, fn func(store.Tx) error) error {
	tx, err := s.drv.Tx(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(&txn{tx: tx, now: s.now}); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("%w (rollback: %v)", err, rerr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type txn struct {
	tx  dialect.Tx
	now func() time.Time
}

func builder() *entsql.DialectBuilder { return entsql.Dialect(dialect.Postgres) }

func byKey(typ, id string) *entsql.Predicate {
	return entsql.And(entsql.EQ("type", typ), entsql.EQ("id", id))
}

func (t *txn) query(ctx context.Context, q string, args []any, scan func(*entsql.Rows) error) error {
	var rows entsql.Rows
	if err := t.tx.Query(ctx, q, args, &rows); err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		if err := scan(&rows); err != nil {
			return err
		}
	}
	return rows.Err()
}

func scanRecord(typ string, rows *entsql.Rows) (store.Record, error) {
	var (
		rec  = store.Record{Type: typ}
		data []byte
	)
	if err := rows.Scan(&rec.ID, &data, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		return rec, err
	}
	values, err := decodeValues(data)
	if err != nil {
		return rec, fmt.Errorf("decode %s %s: %w", typ, rec.ID, err)
	}
	rec.Values = values
	rec.CreatedAt = rec.CreatedAt.UTC()
	rec.UpdatedAt = rec.UpdatedAt.UTC()
	return rec, nil
}

func decodeValues(data []byte) (map[string]any, error) {
	values := map[string]any{}
	if len(data) == 0 {
		return values, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&values); err != nil {
		return nil, err
	}
	return store.NormalizeValues(values), nil
}

func (t *txn) Get(ctx context.Context, typ, id string) (store.Record, error) {
	q, args := builder().Select(recordColumns...).
		From(entsql.Table(recordsTable)).
		Where(byKey(typ, id)).
		Query()

	var (
		rec   store.Record
		found bool
	)
	err := t.query(ctx, q, args, func(rows *entsql.Rows) error {
		var err error
		rec, err = scanRecord(typ, rows)
		found = true
		return err
	})
	if err != nil {
		return store.Record{}, err
	}
	if !found {
		return store.Record{}, store.ErrNotFound
	}
	return rec, nil
}

func (t *txn) selector(q store.Query) (*entsql.Selector, error) {
	preds := []*entsql.Predicate{entsql.EQ("type", q.Type)}
	for _, c := range q.Where {
		p, err := predicate(c)
		if err != nil {
			return nil, err
		}
		preds = append(preds, p)
	}
	return builder().Select(recordColumns...).
		From(entsql.Table(recordsTable)).
		Where(entsql.And(preds...)), nil
}

func (t *txn) Find(ctx context.Context, q store.Query) ([]store.Record, error) {
	sel, err := t.selector(q)
	if err != nil {
		return nil, err
	}
	col := "created_at"
	if q.OrderBy == "updated_at" {
		col = "updated_at"
	}
	if q.Desc {
		sel.OrderBy(entsql.Desc(col), entsql.Desc("id"))
	} else {
		sel.OrderBy(entsql.Asc(col), entsql.Asc("id"))
	}
	if q.Limit > 0 {
		sel.Limit(q.Limit)
	}
	if q.Offset > 0 {
		sel.Offset(q.Offset)
	}

	query, args := sel.Query()
	var out []store.Record
	err = t.query(ctx, query, args, func(rows *entsql.Rows) error {
		rec, err := scanRecord(q.Type, rows)
		if err != nil {
			return err
		}
		out = append(out, rec)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", q.Type, err)
	}
	return out, nil
}

func (t *txn) Count(ctx context.Context, q store.Query) (int, error) {
	sel, err := t.selector(q)
	if err != nil {
		return 0, err
	}
	sel.Select(entsql.Count("*"))
	query, args := sel.Query()

	var n int
	err = t.query(ctx, query, args, func(rows *entsql.Rows) error {
		return rows.Scan(&n)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", q.Type, err)
	}
	return n, nil
}

func (t *txn) Links(ctx context.Context, typ, id, attr string) ([]string, error) {
	q, args := builder().Select("target").
		From(entsql.Table(linksTable)).
		Where(entsql.And(entsql.EQ("type", typ), entsql.EQ("id", id), entsql.EQ("attr", attr))).
		OrderBy("position").
		Query()

	var ids []string
	err := t.query(ctx, q, args, func(rows *entsql.Rows) error {
		var target string
		if err := rows.Scan(&target); err != nil {
			return err
		}
		ids = append(ids, target)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("links %s.%s: %w", typ, attr, err)
	}
	return ids, nil
}

func (t *txn) Insert(ctx context.Context, rec *store.Record) error {
	store.Stamp(rec, t.now())
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", rec.Type, err)
	}
	q, args := builder().Insert(recordsTable).
		Columns("type", "id", "data", "created_at", "updated_at").
		Values(rec.Type, rec.ID, data, rec.CreatedAt, rec.UpdatedAt).
		Query()
	if err := t.tx.Exec(ctx, q, args, nil); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %s already exists: %w", rec.Type, rec.ID, err)
		}
		return fmt.Errorf("insert %s %s: %w", rec.Type, rec.ID, err)
	}
	return nil
}

func (t *txn) Update(ctx context.Context, rec *store.Record) error {
	q, args := builder().Select("created_at", "updated_at").
		From(entsql.Table(recordsTable)).
		Where(byKey(rec.Type, rec.ID)).
		ForUpdate().
		Query()

	var (
		created, updated time.Time
		found            bool
	)
	err := t.query(ctx, q, args, func(rows *entsql.Rows) error {
		found = true
		return rows.Scan(&created, &updated)
	})
	if err != nil {
		return fmt.Errorf("lock %s %s: %w", rec.Type, rec.ID, err)
	}
	if !found {
		return store.ErrNotFound
	}

	rec.CreatedAt = created.UTC()
	rec.UpdatedAt = t.now()
	if !rec.UpdatedAt.After(updated) {
		rec.UpdatedAt = updated.UTC().Add(time.Microsecond)
	}
	data, err := json.Marshal(rec.Values)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", rec.Type, err)
	}
	q, args = builder().Update(recordsTable).
		Set("data", data).
		Set("updated_at", rec.UpdatedAt).
		Where(byKey(rec.Type, rec.ID)).
		Query()
	if err := t.tx.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("update %s %s: %w", rec.Type, rec.ID, err)
	}
	return nil
}

func (t *txn) Delete(ctx context.Context, typ, id string) error {
	q, args := builder().Delete(recordsTable).Where(byKey(typ, id)).Query()
	var res stdsql.Result
	if err := t.tx.Exec(ctx, q, args, &res); err != nil {
		return fmt.Errorf("delete %s %s: %w", typ, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return store.ErrNotFound
	}

	q, args = builder().Delete(linksTable).Where(byKey(typ, id)).Query()
	if err := t.tx.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("delete links of %s %s: %w", typ, id, err)
	}
	return nil
}

func (t *txn) SetLinks(ctx context.Context, typ, id, attr string, ids []string) error {
	q, args := builder().Delete(linksTable).
		Where(entsql.And(entsql.EQ("type", typ), entsql.EQ("id", id), entsql.EQ("attr", attr))).
		Query()
	if err := t.tx.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("clear links %s.%s: %w", typ, attr, err)
	}
	if len(ids) == 0 {
		return nil
	}

	ins := builder().Insert(linksTable).Columns("type", "id", "attr", "position", "target")
	for i, target := range ids {
		ins.Values(typ, id, attr, i, target)
	}
	q, args = ins.Query()
	if err := t.tx.Exec(ctx, q, args, nil); err != nil {
		return fmt.Errorf("set links %s.%s: %w", typ, attr, err)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var coded interface{ SQLState() string }
	return errors.As(err, &coded) && coded.SQLState() == "23505"
}
