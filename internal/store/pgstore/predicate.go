package pgstore

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"entgo.io/ent/dialect/sql/sqljson"

	"autohaus.io/cms/internal/store"
)

// attrPattern guards the attribute names spliced into JSON paths.
var attrPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// predicate translates one store condition. Header attributes map to
// columns; everything else is read from the jsonb value map.
func predicate(c store.Cond) (*entsql.Predicate, error) {
	switch c.Attr {
	case "id", "created_at", "updated_at":
		return columnPredicate(c)
	}
	if !attrPattern.MatchString(c.Attr) {
		return nil, fmt.Errorf("pgstore: invalid attribute name %q", c.Attr)
	}
	path := sqljson.Path(c.Attr)

	switch c.Op {
	case store.OpEq:
		if c.Value == nil {
			return isNull(c.Attr), nil
		}
		return sqljson.ValueEQ("data", c.Value, path), nil
	case store.OpContainsFold:
		sub, _ := c.Value.(string)
		return entsql.P(func(b *entsql.Builder) {
			b.WriteString(textPath(c.Attr)).WriteString(" ILIKE ").Arg("%" + likeEscaper.Replace(sub) + "%")
		}), nil
	case store.OpIsNull:
		return isNull(c.Attr), nil
	case store.OpIn:
		ids, _ := c.Value.([]string)
		return inText(textPath(c.Attr), ids), nil
	case store.OpBefore:
		t, ok := c.Value.(time.Time)
		if !ok {
			return nil, fmt.Errorf("pgstore: %s before expects a time", c.Attr)
		}
		return entsql.P(func(b *entsql.Builder) {
			b.WriteString("(" + textPath(c.Attr) + ")::timestamptz < ").Arg(t)
		}), nil
	}
	return nil, fmt.Errorf("pgstore: unsupported operator %d", c.Op)
}

func columnPredicate(c store.Cond) (*entsql.Predicate, error) {
	switch c.Op {
	case store.OpEq:
		return entsql.EQ(c.Attr, c.Value), nil
	case store.OpIn:
		ids, _ := c.Value.([]string)
		return inText(`"`+c.Attr+`"`, ids), nil
	case store.OpBefore:
		return entsql.LT(c.Attr, c.Value), nil
	case store.OpIsNull:
		return entsql.IsNull(c.Attr), nil
	}
	return nil, fmt.Errorf("pgstore: operator %d is not supported on %s", c.Op, c.Attr)
}

func textPath(attr string) string {
	return `"data"->>'` + attr + `'`
}

// isNull matches a missing key, a JSON null and the empty string.
func isNull(attr string) *entsql.Predicate {
	path := sqljson.Path(attr)
	return entsql.Or(
		entsql.Not(sqljson.HasKey("data", path)),
		sqljson.ValueIsNull("data", path),
		sqljson.ValueEQ("data", "", path),
	)
}

func inText(expr string, ids []string) *entsql.Predicate {
	return entsql.P(func(b *entsql.Builder) {
		if len(ids) == 0 {
			b.WriteString("FALSE")
			return
		}
		args := make([]any, len(ids))
		for i, id := range ids {
			args[i] = id
		}
		b.WriteString(expr).WriteString(" IN (").Args(args...).WriteString(")")
	})
}
