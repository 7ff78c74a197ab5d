package store

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// Op is a condition operator.
type Op int

const (
	// OpEq matches values equal to Cond.Value.
	OpEq Op = iota
	// OpContainsFold matches string values containing Cond.Value, ignoring case.
	OpContainsFold
	// OpIsNull matches absent or null values.
	OpIsNull
	// OpIn matches values equal to any element of Cond.Value ([]string).
	OpIn
	// OpBefore matches time values strictly before Cond.Value (time.Time).
	OpBefore
)

// Cond is a single attribute condition. All conditions of a Query must hold.
type Cond struct {
	Attr  string
	Op    Op
	Value any
}

// Eq builds an equality condition.
func Eq(attr string, v any) Cond { return Cond{Attr: attr, Op: OpEq, Value: v} }

// ContainsFold builds a case-insensitive substring condition.
func ContainsFold(attr, sub string) Cond { return Cond{Attr: attr, Op: OpContainsFold, Value: sub} }

// IsNull builds a null check.
func IsNull(attr string) Cond { return Cond{Attr: attr, Op: OpIsNull} }

// In builds a membership condition.
func In(attr string, ids []string) Cond { return Cond{Attr: attr, Op: OpIn, Value: ids} }

// Before builds a time condition, typically on created_at.
func Before(attr string, t time.Time) Cond { return Cond{Attr: attr, Op: OpBefore, Value: t} }

// Query selects records of one type.
type Query struct {
	Type    string
	Where   []Cond
	OrderBy string // "created_at" (default) or "updated_at"
	Desc    bool
	Limit   int
	Offset  int
}

// Match reports whether rec satisfies every condition of q.
func (q Query) Match(rec Record) bool {
	if rec.Type != q.Type {
		return false
	}
	for _, c := range q.Where {
		if !c.Match(rec) {
			return false
		}
	}
	return true
}

// Match reports whether rec satisfies c.
func (c Cond) Match(rec Record) bool {
	v := rec.Get(c.Attr)
	switch c.Op {
	case OpEq:
		return Equal(v, c.Value)
	case OpContainsFold:
		s, ok := v.(string)
		sub, _ := c.Value.(string)
		return ok && strings.Contains(strings.ToLower(s), strings.ToLower(sub))
	case OpIsNull:
		return v == nil || v == ""
	case OpIn:
		ids, _ := c.Value.([]string)
		for _, id := range ids {
			if Equal(v, id) {
				return true
			}
		}
		return false
	case OpBefore:
		t, ok := v.(time.Time)
		limit, _ := c.Value.(time.Time)
		return ok && t.Before(limit)
	}
	return false
}

// Apply filters, orders and pages records in memory. It is used by backends
// that cannot push the query down to an index.
func (q Query) Apply(recs []Record) []Record {
	out := recs[:0:0]
	for _, rec := range recs {
		if q.Match(rec) {
			out = append(out, rec)
		}
	}
	Sort(out, q.OrderBy, q.Desc)
	if q.Offset > 0 {
		if q.Offset >= len(out) {
			return nil
		}
		out = out[q.Offset:]
	}
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out
}

// Sort orders records by a timestamp column, breaking ties by id.
func Sort(recs []Record, orderBy string, desc bool) {
	key := func(r Record) time.Time {
		if orderBy == "updated_at" {
			return r.UpdatedAt
		}
		return r.CreatedAt
	}
	sort.SliceStable(recs, func(i, j int) bool {
		a, b := key(recs[i]), key(recs[j])
		if a.Equal(b) {
			if desc {
				return recs[i].ID > recs[j].ID
			}
			return recs[i].ID < recs[j].ID
		}
		if desc {
			return a.After(b)
		}
		return a.Before(b)
	})
}

// Equal compares two canonical values. Numbers compare by value regardless of
// their Go type.
func Equal(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		if fb, ok := toFloat(b); ok {
			return fa == fb
		}
		return false
	}
	switch av := a.(type) {
	case nil:
		return b == nil
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}

// Normalize converts decoded backend values into the canonical primitive set:
// nil, bool, string, int64, float64, []any and map[string]any.
func Normalize(v any) any {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int8:
		return int64(n)
	case int16:
		return int64(n)
	case int32:
		return int64(n)
	case uint8:
		return int64(n)
	case uint16:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		if n <= math.MaxInt64 {
			return int64(n)
		}
		return float64(n)
	case float32:
		return float64(n)
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<53 {
			return int64(n)
		}
		return n
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		f, _ := n.Float64()
		return f
	case []any:
		out := make([]any, len(n))
		for i := range n {
			out[i] = Normalize(n[i])
		}
		return out
	case []string:
		out := make([]any, len(n))
		for i := range n {
			out[i] = n[i]
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(n))
		for k, e := range n {
			out[k] = Normalize(e)
		}
		return out
	}
	return v
}

// NormalizeValues applies Normalize to every entry of a value map in place.
func NormalizeValues(values map[string]any) map[string]any {
	if values == nil {
		return map[string]any{}
	}
	for k, v := range values {
		values[k] = Normalize(v)
	}
	return values
}
