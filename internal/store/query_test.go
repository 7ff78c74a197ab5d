package store

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEqual(t *testing.T) {
	t.Parallel()

	now := time.Now()
	tests := []struct {
		name string
		a, b any
		want bool
	}{
		{"int kinds", int64(5), 5, true},
		{"json number", json.Number("5"), int64(5), true},
		{"number vs string", int64(5), "5", false},
		{"strings", "a", "a", true},
		{"nil", nil, nil, true},
		{"nil vs string", nil, "", false},
		{"bools", true, false, false},
		{"times", now, now.UTC(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Equal(tt.a, tt.b))
		})
	}
}

func TestNormalize(t *testing.T) {
	t.Parallel()

	assert.Equal(t, int64(3), Normalize(int8(3)))
	assert.Equal(t, int64(3), Normalize(float64(3)))
	assert.Equal(t, 3.5, Normalize(float64(3.5)))
	assert.Equal(t, int64(7), Normalize(json.Number("7")))
	assert.Equal(t, []any{"a", "b"}, Normalize([]string{"a", "b"}))
	assert.Equal(t, map[string]any{"n": int64(1)}, Normalize(map[string]any{"n": uint16(1)}))
}

func TestCondMatch_IsNullAndIn(t *testing.T) {
	t.Parallel()

	rec := Record{Type: "vehicle_photo", ID: "p1", Values: map[string]any{"vehicle": nil}}
	assert.True(t, IsNull("vehicle").Match(rec))
	assert.True(t, IsNull("missing").Match(rec))
	assert.True(t, In("id", []string{"p0", "p1"}).Match(rec))
	assert.False(t, In("id", []string{"p2"}).Match(rec))
}

func TestStamp_KeepsExplicitValues(t *testing.T) {
	t.Parallel()

	created := time.Date(2023, 5, 1, 0, 0, 0, 0, time.UTC)
	rec := Record{ID: "fixed", CreatedAt: created}
	Stamp(&rec, time.Now())

	assert.Equal(t, "fixed", rec.ID)
	assert.Equal(t, created, rec.CreatedAt)
	assert.Equal(t, created, rec.UpdatedAt)
	assert.NotNil(t, rec.Values)
}
