package form

import (
	"autohaus.io/cms/internal/model"
	apperrors "autohaus.io/cms/internal/pkg/errors"
)

// UI field kinds.
const (
	TypeChar        = "char"
	TypeSelect      = "select"
	TypeText        = "text"
	TypeBool        = "bool"
	TypeNumber      = "number"
	TypeDate        = "date"
	TypeTime        = "time"
	TypePhoto       = "photo"
	TypeSearch      = "search"
	TypeMultiSelect = "multiselect"
	TypeComponent   = "component"
	TypeTable       = "table"
)

var kindTypes = map[model.Kind]string{
	model.KindText:       TypeChar,
	model.KindLongText:   TypeText,
	model.KindBoolean:    TypeBool,
	model.KindInteger:    TypeNumber,
	model.KindDecimal:    TypeNumber,
	model.KindDate:       TypeDate,
	model.KindDateTime:   TypeDate,
	model.KindTime:       TypeTime,
	model.KindImage:      TypePhoto,
	model.KindRelation:   TypeSearch,
	model.KindManyToMany: TypeMultiSelect,
	model.KindComponent:  TypeComponent,
}

// Option is one entry of a select field.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// MapField classifies one attribute of t into a field descriptor.
func MapField(t *model.EntityType, a model.Attribute) (Field, error) {
	fieldType, ok := kindTypes[a.Kind]
	if !ok {
		return Field{}, apperrors.ErrConfigurationf("%s.%s: no field type for kind %q", t.Name, a.Name, a.Kind)
	}

	f := Field{
		FieldName:    a.Name,
		FieldType:    fieldType,
		Label:        a.DisplayLabel(),
		Required:     a.Mandatory(),
		Hidden:       a.Hidden,
		DefaultValue: a.Default,
	}

	switch {
	case len(a.Choices) > 0 && (a.Kind == model.KindText || a.Kind == model.KindInteger):
		f.FieldType = TypeSelect
		opts := make([]Option, 0, len(a.Choices))
		for _, c := range a.Choices {
			label := c.Label
			if label == "" {
				label = model.Titleize(toString(c.Value))
			}
			opts = append(opts, Option{Label: label, Value: c.Value})
		}
		f.Options = opts
	case a.Kind.Referential():
		f.Options = a.Target
	case a.Kind == model.KindComponent:
		f.Options = a.HTML
	}
	return f, nil
}
