package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	apperrors "autohaus.io/cms/internal/pkg/errors"
)

// Date layouts accepted from payloads.
const (
	DateLayout       = "2006-01-02"
	LegacyDateLayout = "01/02/2006"
	TimeLayout       = "15:04:05"
)

func invalid(a Attribute, format string, args ...any) error {
	return apperrors.ErrValidationFailed(apperrors.FieldError{
		Field:   a.Name,
		Code:    "INVALID_VALUE",
		Message: fmt.Sprintf(format, args...),
	})
}

// Coerce converts a submitted value into the canonical stored form:
//
//	text, long_text, image_reference, relation  string or nil
//	boolean                                      bool
//	integer                                      int64 ("" becomes 0)
//	decimal                                      fixed-scale string ("" becomes zero)
//	date                                         "YYYY-MM-DD" (MM/DD/YYYY accepted)
//	time                                         "HH:MM:SS"
//	many_to_many                                 []string
//
// Relation and image values are only shaped here; resolving them needs the
// store and file store and happens in the payload parser.
func (a Attribute) Coerce(v any) (any, error) {
	switch a.Kind {
	case KindText, KindLongText:
		return a.coerceText(v)
	case KindBoolean:
		return coerceBool(a, v)
	case KindInteger:
		return a.coerceInteger(v)
	case KindDecimal:
		return a.coerceDecimal(v)
	case KindDate:
		return coerceDate(a, v)
	case KindTime:
		return coerceTime(a, v)
	case KindImage, KindRelation:
		return coerceRef(a, v)
	case KindManyToMany:
		return coerceIDs(a, v)
	case KindComponent, KindDateTime:
		return nil, nil
	}
	return nil, apperrors.ErrConfigurationf("attribute %s has unmapped kind %q", a.Name, a.Kind)
}

func (a Attribute) coerceText(v any) (any, error) {
	var s string
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		s = x
	case json.Number:
		s = x.String()
	case float64, int, int64, bool:
		s = fmt.Sprint(x)
	default:
		return nil, invalid(a, "expected text")
	}
	if s != "" && len(a.Choices) > 0 && !a.HasChoice(s) {
		return nil, invalid(a, "%q is not an allowed choice", s)
	}
	return s, nil
}

func coerceBool(a Attribute, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case bool:
		return x, nil
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "1", "on", "yes":
			return true, nil
		case "false", "0", "off", "no", "":
			return false, nil
		}
	case float64:
		return x != 0, nil
	case int64:
		return x != 0, nil
	case json.Number:
		return x.String() != "0", nil
	}
	return nil, invalid(a, "expected boolean")
}

func (a Attribute) coerceInteger(v any) (any, error) {
	var n int64
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			return int64(0), nil
		}
		i, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, invalid(a, "%q is not an integer", x)
		}
		n = i
	case json.Number:
		i, err := x.Int64()
		if err != nil {
			return nil, invalid(a, "%q is not an integer", x.String())
		}
		n = i
	case float64:
		if x != math.Trunc(x) {
			return nil, invalid(a, "%v is not an integer", x)
		}
		n = int64(x)
	case int:
		n = int64(x)
	case int64:
		n = x
	default:
		return nil, invalid(a, "expected integer")
	}
	if len(a.Choices) > 0 && !a.HasChoice(n) {
		return nil, invalid(a, "%d is not an allowed choice", n)
	}
	return n, nil
}

func (a Attribute) coerceDecimal(v any) (any, error) {
	var (
		d   decimal.Decimal
		err error
	)
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		s := strings.TrimSpace(x)
		if s == "" {
			d = decimal.Zero
		} else {
			d, err = decimal.NewFromString(s)
		}
	case json.Number:
		d, err = decimal.NewFromString(x.String())
	case float64:
		d = decimal.NewFromFloat(x)
	case int:
		d = decimal.NewFromInt(int64(x))
	case int64:
		d = decimal.NewFromInt(x)
	default:
		return nil, invalid(a, "expected number")
	}
	if err != nil {
		return nil, invalid(a, "%v is not a number", v)
	}
	return d.StringFixed(int32(a.Scale)), nil
}

func coerceDate(a Attribute, v any) (any, error) {
	s, ok := v.(string)
	if v == nil || (ok && strings.TrimSpace(s) == "") {
		return nil, nil
	}
	if !ok {
		return nil, invalid(a, "expected a date string")
	}
	if strings.Contains(s, "-") {
		return s, nil
	}
	t, err := time.Parse(LegacyDateLayout, s)
	if err != nil {
		return nil, invalid(a, "%q is not a MM/DD/YYYY date", s)
	}
	return t.Format(DateLayout), nil
}

func coerceTime(a Attribute, v any) (any, error) {
	s, ok := v.(string)
	if v == nil || (ok && strings.TrimSpace(s) == "") {
		return nil, nil
	}
	if !ok {
		return nil, invalid(a, "expected a time string")
	}
	for _, layout := range []string{TimeLayout, "15:04"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format(TimeLayout), nil
		}
	}
	return nil, invalid(a, "%q is not a time", s)
}

func coerceRef(a Attribute, v any) (any, error) {
	switch x := v.(type) {
	case nil:
		return nil, nil
	case string:
		if x == "" {
			return nil, nil
		}
		return x, nil
	case json.Number:
		return x.String(), nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	}
	return nil, invalid(a, "expected an identifier")
}

func coerceIDs(a Attribute, v any) (any, error) {
	var raw []any
	switch x := v.(type) {
	case nil:
		return []string{}, nil
	case []any:
		raw = x
	case []string:
		return x, nil
	case string:
		for _, part := range strings.Split(x, ",") {
			if p := strings.TrimSpace(part); p != "" {
				raw = append(raw, p)
			}
		}
	default:
		return nil, invalid(a, "expected a list of identifiers")
	}
	ids := make([]string, 0, len(raw))
	for _, e := range raw {
		id, err := coerceRef(a, e)
		if err != nil {
			return nil, err
		}
		if id != nil {
			ids = append(ids, id.(string))
		}
	}
	return ids, nil
}
