package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"autohaus.io/cms/internal/catalog"
	"autohaus.io/cms/internal/domain"
	"autohaus.io/cms/internal/filestore"
	"autohaus.io/cms/internal/governance/permission"
	"autohaus.io/cms/internal/model"
	apperrors "autohaus.io/cms/internal/pkg/errors"
	"autohaus.io/cms/internal/store"
	"autohaus.io/cms/internal/store/buntstore"
)

var (
	admin   = domain.Principal{ID: "admin", Username: "admin", Elevated: true}
	dealer1 = domain.Principal{ID: "u1", Username: "dealer1", Role: "Dealer"}
	dealer2 = domain.Principal{ID: "u2", Username: "dealer2", Role: "Dealer"}
	viewer  = domain.Principal{ID: "u3", Username: "viewer", Role: "Viewer"}
	editor  = domain.Principal{ID: "u4", Username: "editor", Role: "Editor"}
)

type fixture struct {
	engine *Engine
	st     *buntstore.Store
	root   string
}

func newFixture(t *testing.T, entitlements func(store.Store) permission.Entitlements) *fixture {
	t.Helper()
	reg, err := catalog.NewRegistry()
	require.NoError(t, err)
	roles, err := catalog.LoadRoles("")
	require.NoError(t, err)

	st, err := buntstore.Open(buntstore.Memory)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	var ent permission.Entitlements
	if entitlements != nil {
		ent = entitlements(st)
	}
	perms, err := permission.NewEvaluator(reg, roles, ent)
	require.NoError(t, err)

	root := t.TempDir()
	f := &fixture{
		engine: NewEngine(Deps{
			Registry: reg,
			Store:    st,
			Files:    filestore.NewLocal(root, "/media/"),
			Perms:    perms,
			Events:   domain.NewEventDispatcher(),
		}),
		st:   st,
		root: root,
	}
	f.insert(t,
		&store.Record{Type: "seller", ID: "s1", Values: map[string]any{"name": "Autohaus Nord", "user": "u1"}},
		&store.Record{Type: "seller", ID: "s2", Values: map[string]any{"name": "Autohaus Sued", "user": "u2"}},
	)
	return f
}

func (f *fixture) insert(t *testing.T, recs ...*store.Record) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.st.Update(ctx, func(tx store.Tx) error {
		for _, rec := range recs {
			if err := tx.Insert(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	}))
}

func (f *fixture) count(t *testing.T, typ string) int {
	t.Helper()
	var n int
	require.NoError(t, f.st.View(context.Background(), func(r store.Reader) error {
		var err error
		n, err = r.Count(context.Background(), store.Query{Type: typ})
		return err
	}))
	return n
}

func (f *fixture) files(t *testing.T) int {
	t.Helper()
	n := 0
	require.NoError(t, filepath.WalkDir(f.root, func(_ string, d fs.DirEntry, err error) error {
		if err == nil && !d.IsDir() {
			n++
		}
		return err
	}))
	return n
}

func dataURI(content string) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(content))
}

func photos(t *testing.T, detail *DetailResult) []map[string]any {
	t.Helper()
	rows, ok := detail.Data[":vehicle_photo"].([]map[string]any)
	require.True(t, ok, "photo table missing: %#v", detail.Data)
	return rows
}

func TestEngine_ListingCreateAndUpdate(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	created, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		"price":          "15000",
		"seller":         "s1",
		":vehicle_photo": []any{map[string]any{"photo": dataURI("front")}},
	}, "")
	require.NoError(t, err)
	assert.True(t, created.Created)
	assert.False(t, created.Draft)

	detail, err := f.engine.Get(ctx, dealer1, "vehicle", created.ID)
	require.NoError(t, err)
	assert.Equal(t, json.Number("15000.00"), detail.Data["price"])
	first := photos(t, detail)
	require.Len(t, first, 1)
	assert.True(t, strings.HasPrefix(first[0]["photo"].(string), "/media/"))

	trail, err := f.engine.AuditTrail(ctx, dealer1, "vehicle", created.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Empty(t, trail[0].Changes)
	assert.Equal(t, "dealer1 created Vehicle Vehicle "+created.ID, trail[0].Title)

	updated, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		"price":          "16000",
		":vehicle_photo": []any{map[string]any{"photo": dataURI("side")}},
	}, created.ID)
	require.NoError(t, err)
	assert.False(t, updated.Created)
	assert.True(t, updated.Draft)

	detail, err = f.engine.Get(ctx, dealer1, "vehicle", created.ID)
	require.NoError(t, err)
	assert.Equal(t, json.Number("16000.00"), detail.Data["price"])
	second := photos(t, detail)
	require.Len(t, second, 1)
	assert.NotEqual(t, first[0]["id"], second[0]["id"], "the omitted photo is deleted")
	assert.Equal(t, 1, f.count(t, "vehicle_photo"))

	trail, err = f.engine.AuditTrail(ctx, dealer1, "vehicle", created.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, map[string]any{"price": []any{"15000.00", "16000.00"}}, normalizeChanges(trail[0].Changes))

	var stored store.Record
	require.NoError(t, f.st.View(ctx, func(r store.Reader) error {
		var err error
		stored, err = r.Get(ctx, "vehicle", created.ID)
		return err
	}))
	assert.Equal(t, true, stored.Get(model.AttrDraft))
	assert.Equal(t, "u1", stored.Get(model.AttrUpdatedBy))
}

// normalizeChanges turns []string pairs into []any so stored and fresh
// entries compare alike.
func normalizeChanges(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		switch pair := v.(type) {
		case []string:
			out[k] = []any{pair[0], pair[1]}
		default:
			out[k] = v
		}
	}
	return out
}

func TestEngine_UnchangedUpdateWritesNoAudit(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{"price": "100", "seller": "s1"}, "")
	require.NoError(t, err)
	again, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{"price": "100.00", "seller": "s1"}, res.ID)
	require.NoError(t, err)
	assert.False(t, again.Draft)
	assert.Equal(t, 1, f.count(t, model.AuditLogType))
}

func TestEngine_ReadOnlyRoleCannotWrite(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{"price": "100", "seller": "s1"}, "")
	require.NoError(t, err)
	vehicles, audits := f.count(t, "vehicle"), f.count(t, model.AuditLogType)

	_, err = f.engine.Write(ctx, viewer, "vehicle", map[string]any{"price": "1"}, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied), "got %v", err)
	_, err = f.engine.Write(ctx, viewer, "vehicle", map[string]any{"price": "1"}, res.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied), "got %v", err)
	err = f.engine.Delete(ctx, viewer, "vehicle", res.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied), "got %v", err)

	assert.Equal(t, vehicles, f.count(t, "vehicle"))
	assert.Equal(t, audits, f.count(t, model.AuditLogType))

	detail, err := f.engine.Get(ctx, admin, "vehicle", res.ID)
	require.NoError(t, err)
	assert.Equal(t, json.Number("100.00"), detail.Data["price"])
}

func TestEngine_AuditLogIsReadOnly(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	_, err := f.engine.Write(context.Background(), admin, model.AuditLogType, map[string]any{"title": "x"}, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReadOnlyEntity))

	list, err := f.engine.List(context.Background(), viewer, model.AuditLogType, ListParams{})
	require.NoError(t, err, "audit log lists publicly")
	assert.Zero(t, list.Count)
}

func TestEngine_Ownership(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	mine, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{"price": "100", "seller": "s1", "title": "Golf"}, "")
	require.NoError(t, err)
	theirs, err := f.engine.Write(ctx, dealer2, "vehicle", map[string]any{"price": "200", "seller": "s2", "title": "Polo"}, "")
	require.NoError(t, err)

	list, err := f.engine.List(ctx, dealer1, "vehicle", ListParams{})
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, mine.ID, list.Data[0]["id"])

	all, err := f.engine.List(ctx, admin, "vehicle", ListParams{})
	require.NoError(t, err)
	assert.Equal(t, 2, all.Count)

	_, err = f.engine.Get(ctx, dealer1, "vehicle", theirs.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEntityNotFound))
	_, missing := f.engine.Get(ctx, dealer1, "vehicle", "nope")
	assert.True(t, apperrors.HasCode(missing, apperrors.CodeEntityNotFound), "foreign and missing rows look alike")

	_, err = f.engine.Write(ctx, dealer1, "vehicle", map[string]any{"price": "1"}, theirs.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEntityNotFound))
	err = f.engine.Delete(ctx, dealer1, "vehicle", theirs.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEntityNotFound))
	_, err = f.engine.AuditTrail(ctx, dealer1, "vehicle", theirs.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEntityNotFound))

	// Moving a listing to a foreign seller, or creating one there, is refused
	// and leaves nothing behind.
	before := f.files(t)
	_, err = f.engine.Write(ctx, dealer1, "vehicle", map[string]any{"seller": "s2"}, mine.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied), "got %v", err)
	_, err = f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		"price":          "5",
		"seller":         "s2",
		":vehicle_photo": []any{map[string]any{"photo": dataURI("x")}},
	}, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied), "got %v", err)
	assert.Equal(t, 2, f.count(t, "vehicle"))
	assert.Equal(t, before, f.files(t), "files of the refused write are removed")

	detail, err := f.engine.Get(ctx, dealer1, "vehicle", mine.ID)
	require.NoError(t, err)
	assert.Equal(t, "s1", detail.Data["seller"])
}

func TestEngine_ListPagingAndFilters(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	for i := range 25 {
		_, err := f.engine.Write(ctx, editor, "make", map[string]any{"name": fmt.Sprintf("Make %02d", i)}, "")
		require.NoError(t, err)
	}

	page1, err := f.engine.List(ctx, editor, "make", ListParams{Page: 1})
	require.NoError(t, err)
	assert.Equal(t, "Make", page1.Name)
	assert.Equal(t, 25, page1.Count)
	assert.Equal(t, 2, page1.PageCount)
	assert.Equal(t, PageSize, page1.PageSize)
	assert.Equal(t, 1, page1.PageStart)
	assert.Equal(t, 20, page1.PageEnd)
	require.Len(t, page1.Data, 20)
	assert.Equal(t, "Make 24", page1.Data[0]["name"], "newest first")
	assert.Equal(t, "display", page1.Schema[0].FieldName)

	page2, err := f.engine.List(ctx, editor, "make", ListParams{Page: 2})
	require.NoError(t, err)
	assert.Equal(t, 21, page2.PageStart)
	assert.Equal(t, 25, page2.PageEnd)
	assert.Len(t, page2.Data, 5)

	filtered, err := f.engine.List(ctx, editor, "make", ListParams{Filters: map[string]any{
		"name": "make 1", "unknown": "x", "logo": "",
	}})
	require.NoError(t, err)
	assert.Equal(t, 10, filtered.Count)

	empty, err := f.engine.List(ctx, editor, "make", ListParams{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, empty.Data)
	assert.Zero(t, empty.PageStart)
	assert.Zero(t, empty.PageEnd)
}

func TestEngine_ListFiltersRelationsExactly(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()
	f.insert(t,
		&store.Record{Type: "make", ID: "vw", Values: map[string]any{"name": "VW"}},
		&store.Record{Type: "make", ID: "vw2", Values: map[string]any{"name": "VW Classic"}},
		&store.Record{Type: "model", ID: "golf", Values: map[string]any{"name": "Golf", "make": "vw", "year": int64(2010)}},
		&store.Record{Type: "model", ID: "kaefer", Values: map[string]any{"name": "Kaefer", "make": "vw2", "year": int64(1960)}},
	)

	list, err := f.engine.List(ctx, editor, "model", ListParams{Filters: map[string]any{"make": "vw"}})
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "VW", list.Data[0]["make"])

	list, err = f.engine.List(ctx, editor, "model", ListParams{Filters: map[string]any{"year": "1960"}})
	require.NoError(t, err)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "Kaefer", list.Data[0]["name"])
}

func TestEngine_DeleteCascadesAndAudits(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		"price":          "100",
		"seller":         "s1",
		"title":          "Golf",
		":vehicle_photo": []any{map[string]any{"photo": dataURI("a")}, map[string]any{"photo": dataURI("b")}},
	}, "")
	require.NoError(t, err)
	assert.Equal(t, 2, f.files(t))

	require.NoError(t, f.engine.Delete(ctx, dealer1, "vehicle", res.ID))
	assert.Zero(t, f.count(t, "vehicle"))
	assert.Zero(t, f.count(t, "vehicle_photo"))
	assert.Zero(t, f.files(t))

	trail, err := f.engine.AuditTrail(ctx, admin, "vehicle", res.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, "dealer1 deleted Vehicle Golf", trail[0].Title)

	err = f.engine.Delete(ctx, dealer1, "vehicle", res.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEntityNotFound))
}

func TestEngine_WriteRemovesReleasedFiles(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	res, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		"price":          "100",
		"seller":         "s1",
		":vehicle_photo": []any{map[string]any{"photo": dataURI("front")}},
	}, "")
	require.NoError(t, err)
	require.Equal(t, 1, f.files(t))

	_, err = f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		":vehicle_photo": []any{map[string]any{"photo": dataURI("rear")}},
	}, res.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.count(t, "vehicle_photo"))
	assert.Equal(t, 1, f.files(t), "the omitted photo's file is removed")

	_, err = f.engine.Write(ctx, dealer1, "vehicle", map[string]any{":vehicle_photo": []any{}}, res.ID)
	require.NoError(t, err)
	assert.Zero(t, f.count(t, "vehicle_photo"))
	assert.Zero(t, f.files(t))

	_, err = f.engine.Write(ctx, dealer1, "seller", map[string]any{"photo": dataURI("old")}, "s1")
	require.NoError(t, err)
	_, err = f.engine.Write(ctx, dealer1, "seller", map[string]any{"photo": dataURI("new")}, "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, f.files(t), "a replaced image is removed")
}

func TestEngine_ForeignFilesAndUploadsAreRefused(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	mine, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		"price":          "100",
		"seller":         "s1",
		":vehicle_photo": []any{map[string]any{"photo": dataURI("front")}},
	}, "")
	require.NoError(t, err)
	detail, err := f.engine.Get(ctx, dealer1, "vehicle", mine.ID)
	require.NoError(t, err)
	url := photos(t, detail)[0]["photo"].(string)

	_, err = f.engine.Write(ctx, dealer2, "vehicle", map[string]any{
		"price":          "200",
		"seller":         "s2",
		":vehicle_photo": []any{map[string]any{"photo": url}},
	}, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReferenceNotFound), "got %v", err)
	_, err = f.engine.Write(ctx, dealer2, "seller", map[string]any{"photo": url}, "s2")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReferenceNotFound), "got %v", err)

	up, err := f.engine.Upload(ctx, dealer1, "vehicle_photo", "side.png", strings.NewReader("side"))
	require.NoError(t, err)
	_, err = f.engine.Write(ctx, dealer2, "vehicle", map[string]any{
		"price":          "200",
		"seller":         "s2",
		":vehicle_photo": []any{map[string]any{"_upload": up.ID}},
	}, "")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReferenceNotFound), "got %v", err)

	assert.Equal(t, 1, f.count(t, "vehicle"))
	assert.Equal(t, 2, f.files(t))

	// The row that owns the file can resubmit its own detail projection.
	_, err = f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		":vehicle_photo": []any{map[string]any{"id": photos(t, detail)[0]["id"], "photo": url}},
	}, mine.ID)
	require.NoError(t, err)
	detail, err = f.engine.Get(ctx, dealer1, "vehicle", mine.ID)
	require.NoError(t, err)
	assert.Equal(t, url, photos(t, detail)[0]["photo"])
	assert.Equal(t, 2, f.files(t))
}

func TestEngine_UploadClaimAndSweep(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()

	_, err := f.engine.Upload(ctx, dealer1, "make", "logo.png", strings.NewReader("x"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUploadNotSupported))
	_, err = f.engine.Upload(ctx, viewer, "vehicle_photo", "a.png", strings.NewReader("x"))
	assert.True(t, apperrors.HasCode(err, apperrors.CodePermissionDenied))

	up, err := f.engine.Upload(ctx, dealer1, "vehicle_photo", "front.png", strings.NewReader("front"))
	require.NoError(t, err)
	assert.Equal(t, "/media/"+up.FilePath, up.FileURL)
	assert.Equal(t, 1, f.count(t, "vehicle_photo"))

	res, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		"price":          "100",
		"seller":         "s1",
		":vehicle_photo": []any{map[string]any{"_upload": up.ID, "is_main": true}},
	}, "")
	require.NoError(t, err)
	detail, err := f.engine.Get(ctx, dealer1, "vehicle", res.ID)
	require.NoError(t, err)
	rows := photos(t, detail)
	require.Len(t, rows, 1)
	assert.Equal(t, up.ID, rows[0]["id"])
	assert.Equal(t, true, rows[0]["is_main"])

	n, err := f.engine.SweepPendingUploads(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "claimed uploads are kept")

	orphan, err := f.engine.Upload(ctx, dealer1, "vehicle_photo", "rear.png", strings.NewReader("rear"))
	require.NoError(t, err)
	n, err = f.engine.SweepPendingUploads(ctx, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Zero(t, n, "young uploads are kept")

	n, err = f.engine.SweepPendingUploads(ctx, time.Now().Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, 1, f.count(t, "vehicle_photo"))
	assert.Equal(t, 1, f.files(t))
	_, err = f.engine.Write(ctx, dealer1, "vehicle", map[string]any{
		":vehicle_photo": []any{map[string]any{"_upload": orphan.ID}},
	}, res.ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeReferenceNotFound))
}

func TestEngine_SubscriptionRequiredForChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t, func(st store.Store) permission.Entitlements {
		return permission.NewSubscriptionChecker(st, catalog.TypeSubscription)
	})
	ctx := context.Background()

	_, err := f.engine.Write(ctx, dealer1, "vehicle", map[string]any{"price": "1", "seller": "s1"}, "")
	require.True(t, apperrors.HasCode(err, apperrors.CodeSubscriptionRequired), "got %v", err)

	f.insert(t, &store.Record{Type: "subscription", Values: map[string]any{"user": "u1", "status": "active"}})
	_, err = f.engine.Write(ctx, dealer1, "vehicle", map[string]any{"price": "1", "seller": "s1"}, "")
	require.NoError(t, err)

	_, err = f.engine.List(ctx, dealer2, "vehicle", ListParams{})
	assert.NoError(t, err, "reads do not need a subscription")
}

func TestEngine_SearchPermissionsDashboard(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)
	ctx := context.Background()
	for _, name := range []string{"Volkswagen", "Volvo", "BMW"} {
		_, err := f.engine.Write(ctx, editor, "make", map[string]any{"name": name}, "")
		require.NoError(t, err)
	}

	hits, err := f.engine.Search(ctx, dealer1, "make", "vol", "")
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Volvo", hits[0].Display)

	hits, err = f.engine.Search(ctx, dealer1, "make", "", hits[1].ID)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Volkswagen", hits[0].Display)

	hits, err = f.engine.Search(ctx, dealer1, "seller", "", "")
	require.NoError(t, err)
	require.Len(t, hits, 1, "sellers are ownership-filtered")
	assert.Equal(t, "Autohaus Nord", hits[0].Display)

	summary := f.engine.Permissions(viewer)
	require.NotNil(t, summary.Role)
	assert.Equal(t, "Viewer", *summary.Role)

	dash, err := f.engine.Dashboard(ctx, dealer1)
	require.NoError(t, err)
	counts := map[string]int{}
	for _, c := range dash.Counts {
		counts[c.Entity] = c.Count
	}
	assert.Equal(t, 3, counts["make"])
	assert.Equal(t, 1, counts["seller"])
	assert.NotContains(t, counts, "faq")
	require.Len(t, dash.RecentChanges, 3)
	assert.Equal(t, "editor created Make BMW", dash.RecentChanges[0].Title)
}

func TestEngine_DescribeAndUnknownType(t *testing.T) {
	t.Parallel()
	f := newFixture(t, nil)

	schema, err := f.engine.Describe(context.Background(), dealer1, "vehicle")
	require.NoError(t, err)
	assert.Equal(t, "Vehicle", schema.Name)

	_, err = f.engine.Describe(context.Background(), dealer1, "boat")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeEntityTypeUnknown))
}
