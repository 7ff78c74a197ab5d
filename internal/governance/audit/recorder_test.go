package audit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autohaus.io/cms/internal/model"
	"autohaus.io/cms/internal/store"
	"autohaus.io/cms/internal/store/buntstore"
)

func vehicleType(t *testing.T) *model.EntityType {
	t.Helper()
	r := model.NewRegistry()
	require.NoError(t, r.Register(model.EntityType{Name: "feature"}))
	require.NoError(t, r.Register(model.EntityType{
		Name:      "vehicle",
		Draftable: true,
		Attributes: []model.Attribute{
			{Name: "title", Kind: model.KindText},
			{Name: "price", Kind: model.KindDecimal, Scale: 2},
			{Name: "mileage", Kind: model.KindInteger},
			{Name: "published", Kind: model.KindBoolean},
			{Name: "features", Kind: model.KindManyToMany, Target: "feature"},
			{Name: "preview", Kind: model.KindComponent},
		},
	}))
	vt, err := r.Get("vehicle")
	require.NoError(t, err)
	return vt
}

func TestSnapshotAndDiff(t *testing.T) {
	t.Parallel()
	vt := vehicleType(t)

	before := Snapshot(vt, store.Record{ID: "v1", Values: map[string]any{
		"title": "Golf", "price": "15000.00", "mileage": int64(12), "published": false,
		model.AttrUpdatedBy: "u-1", model.AttrDraft: false,
	}}, map[string][]string{"features": {"f1"}})
	assert.Equal(t, map[string]string{
		"title": "Golf", "price": "15000.00", "mileage": "12", "published": "false", "features": "f1",
	}, before)

	after := Snapshot(vt, store.Record{ID: "v1", Values: map[string]any{
		"title": "Golf", "price": "16000.00", "mileage": int64(12), "published": nil,
		model.AttrUpdatedBy: "u-2", model.AttrDraft: true,
	}}, map[string][]string{"features": {"f1", "f2"}})

	changes := Diff(before, after)
	assert.Equal(t, map[string]any{
		"price":     []any{"15000.00", "16000.00"},
		"published": []any{"false", ""},
		"features":  []any{"f1", "f1,f2"},
	}, changes)
	assert.Equal(t, []string{"features", "price", "published"}, ChangedFields(changes))

	assert.Empty(t, Diff(before, before))
}

func TestNewUpdate_SkipsEmptyDiff(t *testing.T) {
	t.Parallel()
	vt := vehicleType(t)
	rec := store.Record{ID: "v1", Values: map[string]any{"title": "Golf"}}
	snap := Snapshot(vt, rec, nil)

	_, ok := NewUpdate(vt, rec, snap, snap, "u-1", "alice")
	assert.False(t, ok)

	changed := Snapshot(vt, store.Record{ID: "v1", Values: map[string]any{"title": "Polo"}}, nil)
	e, ok := NewUpdate(vt, rec, snap, changed, "u-1", "alice")
	require.True(t, ok)
	assert.Equal(t, "alice updated Vehicle Golf", e.Title)
	assert.Equal(t, []any{"Golf", "Polo"}, e.Changes["title"])
}

func TestRecorder_WriteAndTrail(t *testing.T) {
	t.Parallel()
	st, err := buntstore.Open(buntstore.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	vt := vehicleType(t)
	rec := store.Record{ID: "v1", Values: map[string]any{"title": "Golf"}}
	r := NewRecorder(st)
	ctx := context.Background()

	require.NoError(t, r.Write(ctx, NewCreate(vt, rec, "u-1", "alice")))
	time.Sleep(2 * time.Millisecond)
	upd, ok := NewUpdate(vt, rec,
		map[string]string{"price": "15000.00"},
		map[string]string{"price": "16000.00"}, "u-1", "alice")
	require.True(t, ok)
	require.NoError(t, r.Write(ctx, upd))
	require.NoError(t, r.Write(ctx, NewCreate(vt, store.Record{ID: "v2"}, "u-1", "alice")))

	trail, err := r.Trail(ctx, "vehicle", "v1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "alice updated Vehicle Golf", trail[0].Title)
	assert.Equal(t, []any{"15000.00", "16000.00"}, trail[0].Changes["price"])
	assert.Equal(t, "alice created Vehicle Golf", trail[1].Title)
	assert.Empty(t, trail[1].Changes)
	assert.Equal(t, "u-1", trail[1].Actor)

	recent, err := r.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, "v2", recent[0].EntityID)
}

func TestRecorder_WriteFailureIsReported(t *testing.T) {
	t.Parallel()
	st, err := buntstore.Open(buntstore.Memory)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	vt := vehicleType(t)
	err = NewRecorder(st).Write(context.Background(), NewDelete(vt, store.Record{ID: "v1"}, "u-1", "alice"))
	assert.Error(t, err)
}
