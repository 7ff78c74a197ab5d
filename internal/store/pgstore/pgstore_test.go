package pgstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autohaus.io/cms/internal/store"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return Open(db), mock
}

func recordRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "data", "created_at", "updated_at"})
}

func TestGet(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM "cms_records" WHERE .+`).
		WithArgs("model", "golf").
		WillReturnRows(recordRows().AddRow("golf", []byte(`{"name":"Golf","year":2010,"price":"1.50"}`), created, created))
	mock.ExpectQuery(`SELECT .+ FROM "cms_records" WHERE .+`).
		WithArgs("model", "polo").
		WillReturnRows(recordRows())
	mock.ExpectCommit()

	err := st.View(ctx, func(r store.Reader) error {
		rec, err := r.Get(ctx, "model", "golf")
		require.NoError(t, err)
		assert.Equal(t, "golf", rec.ID)
		assert.Equal(t, "Golf", rec.Get("name"))
		assert.Equal(t, int64(2010), rec.Get("year"))
		assert.Equal(t, "1.50", rec.Get("price"))
		assert.Equal(t, created, rec.CreatedAt)

		_, err = r.Get(ctx, "model", "polo")
		assert.ErrorIs(t, err, store.ErrNotFound)
		return nil
	})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestInsertCommits(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "cms_records"`).
		WithArgs("make", "vw", sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := &store.Record{Type: "make", ID: "vw", Values: map[string]any{"name": "VW"}}
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		return tx.Insert(ctx, rec)
	}))
	assert.False(t, rec.CreatedAt.IsZero())
	assert.Equal(t, rec.CreatedAt, rec.UpdatedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRollsBackOnError(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()
	boom := errors.New("boom")

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "cms_records"`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := st.Update(ctx, func(tx store.Tx) error {
		if err := tx.Insert(ctx, &store.Record{Type: "make"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateKeepsCreatedAndBumpsUpdated(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	future := time.Now().UTC().Add(time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT "created_at", "updated_at" FROM "cms_records" WHERE .+ FOR UPDATE`).
		WithArgs("make", "vw").
		WillReturnRows(sqlmock.NewRows([]string{"created_at", "updated_at"}).AddRow(created, future))
	mock.ExpectExec(`UPDATE "cms_records" SET .+`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	rec := &store.Record{Type: "make", ID: "vw", Values: map[string]any{"name": "VW"}}
	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		return tx.Update(ctx, rec)
	}))
	assert.Equal(t, created, rec.CreatedAt)
	assert.True(t, rec.UpdatedAt.After(future), "updated_at stays strictly increasing")
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteMissing(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "cms_records"`).
		WithArgs("make", "nope").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := st.Update(ctx, func(tx store.Tx) error {
		return tx.Delete(ctx, "make", "nope")
	})
	assert.ErrorIs(t, err, store.ErrNotFound)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFindFiltersAndPages(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT .+ FROM "cms_records" WHERE .+ ILIKE .+ ORDER BY "updated_at" DESC, "id" DESC LIMIT 20 OFFSET 20`).
		WithArgs("make", "%50\\%%").
		WillReturnRows(recordRows().
			AddRow("b", []byte(`{"name":"50% B"}`), now, now).
			AddRow("a", []byte(`{"name":"50% A"}`), now, now))
	mock.ExpectCommit()

	var got []store.Record
	require.NoError(t, st.View(ctx, func(r store.Reader) error {
		var err error
		got, err = r.Find(ctx, store.Query{
			Type:    "make",
			Where:   []store.Cond{store.ContainsFold("name", "50%")},
			OrderBy: "updated_at",
			Desc:    true,
			Limit:   20,
			Offset:  20,
		})
		return err
	}))
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinksAndSetLinks(t *testing.T) {
	st, mock := newMock(t)
	ctx := context.Background()

	mock.ExpectBegin()
	mock.ExpectExec(`DELETE FROM "cms_links"`).
		WithArgs("vehicle", "v1", "features").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(`INSERT INTO "cms_links"`).
		WithArgs("vehicle", "v1", "features", 0, "abs", "vehicle", "v1", "features", 1, "gps").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectQuery(`SELECT "target" FROM "cms_links" WHERE .+ ORDER BY "position"`).
		WithArgs("vehicle", "v1", "features").
		WillReturnRows(sqlmock.NewRows([]string{"target"}).AddRow("abs").AddRow("gps"))
	mock.ExpectCommit()

	require.NoError(t, st.Update(ctx, func(tx store.Tx) error {
		if err := tx.SetLinks(ctx, "vehicle", "v1", "features", []string{"abs", "gps"}); err != nil {
			return err
		}
		ids, err := tx.Links(ctx, "vehicle", "v1", "features")
		require.NoError(t, err)
		assert.Equal(t, []string{"abs", "gps"}, ids)
		return nil
	}))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPredicateRejectsUnsafeNames(t *testing.T) {
	_, err := predicate(store.Eq("name'; drop table cms_records; --", "x"))
	assert.Error(t, err)

	_, err = predicate(store.Before("created_at", time.Now()))
	assert.NoError(t, err)
}
