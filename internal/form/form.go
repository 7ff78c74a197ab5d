// Package form derives UI-agnostic edit layouts from registered entity types.
//
// A Schema is a list of sections, each a list of columns, each a list of
// elements. An element is either a Field or, alone in its own section, a
// Table describing a child collection.
package form

import (
	"fmt"
	"sync"

	"autohaus.io/cms/internal/model"
	apperrors "autohaus.io/cms/internal/pkg/errors"
)

// Element is a Field or a Table.
type Element interface {
	Name() string
}

// Field describes one editable attribute.
type Field struct {
	FieldName    string `json:"fieldname"`
	FieldType    string `json:"fieldtype"`
	Label        string `json:"label"`
	Options      any    `json:"options"`
	Required     bool   `json:"required"`
	Hidden       bool   `json:"hidden"`
	DefaultValue any    `json:"default_value"`
}

// Name returns the attribute name.
func (f Field) Name() string { return f.FieldName }

// Table describes a child collection embedded in the parent form.
type Table struct {
	FieldName    string  `json:"fieldname"`
	Label        string  `json:"label"`
	FieldType    string  `json:"fieldtype"`
	RelatedModel string  `json:"related_model"`
	Options      []Field `json:"options"`
	Hidden       bool    `json:"hidden"`
}

// Name returns the table payload key.
func (t Table) Name() string { return t.FieldName }

type (
	Column  []Element
	Section []Column
)

// Schema is the form layout of an entity type.
type Schema struct {
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
}

// Fields returns every field in layout order.
func (s *Schema) Fields() []Field {
	var out []Field
	s.walk(func(e Element) {
		if f, ok := e.(Field); ok {
			out = append(out, f)
		}
	})
	return out
}

// Tables returns every table in layout order.
func (s *Schema) Tables() []Table {
	var out []Table
	s.walk(func(e Element) {
		if t, ok := e.(Table); ok {
			out = append(out, t)
		}
	})
	return out
}

// Empty reports whether the schema places nothing.
func (s *Schema) Empty() bool {
	empty := true
	s.walk(func(Element) { empty = false })
	return empty
}

func (s *Schema) walk(fn func(Element)) {
	for _, sec := range s.Sections {
		for _, col := range sec {
			for _, e := range col {
				fn(e)
			}
		}
	}
}

// Builder produces schemas for the types of one registry. Registered types
// are immutable, so built schemas are cached.
type Builder struct {
	reg   *model.Registry
	cache sync.Map // type name -> *Schema
}

// NewBuilder creates a Builder over reg.
func NewBuilder(reg *model.Registry) *Builder {
	return &Builder{reg: reg}
}

// Build returns the form schema of t. An explicit layout replaces the default
// traversal. Callers must not mutate the result.
func (b *Builder) Build(t *model.EntityType) (*Schema, error) {
	if cached, ok := b.cache.Load(t.Name); ok {
		return cached.(*Schema), nil
	}

	l := &layout{schema: &Schema{Name: t.DisplayLabel()}}
	var err error
	if len(t.Layout) > 0 {
		err = b.replay(l, t)
	} else {
		err = b.traverse(l, t)
	}
	if err != nil {
		return nil, err
	}
	if l.schema.Sections == nil {
		l.schema.Sections = []Section{}
	}

	actual, _ := b.cache.LoadOrStore(t.Name, l.schema)
	return actual.(*Schema), nil
}

func (b *Builder) traverse(l *layout, t *model.EntityType) error {
	for _, a := range t.Attributes {
		if a.System() {
			continue
		}
		f, err := MapField(t, a)
		if err != nil {
			return err
		}
		l.add(f)
		if a.SectionBreak {
			l.breakSection()
		} else if a.ColumnBreak {
			l.breakColumn()
		}
	}
	for _, tbl := range t.Tables {
		td, err := b.table(t, tbl)
		if err != nil {
			return err
		}
		l.addTable(td)
	}
	return nil
}

func (b *Builder) replay(l *layout, t *model.EntityType) error {
	for _, step := range t.Layout {
		switch step.Kind {
		case model.StepSection:
			l.breakSection()
		case model.StepColumn:
			l.breakColumn()
		case model.StepField:
			a, ok := t.Attr(step.Name)
			if !ok {
				return apperrors.ErrConfigurationf("%s: layout names unknown attribute %q", t.Name, step.Name)
			}
			f, err := MapField(t, a)
			if err != nil {
				return err
			}
			f.Hidden = f.Hidden || step.Hidden
			l.add(f)
		case model.StepComponent:
			l.add(Field{
				FieldName: step.Name,
				FieldType: TypeComponent,
				Label:     model.Titleize(step.Name),
				Options:   step.HTML,
			})
		case model.StepTable:
			tbl, ok := t.Table(step.Name)
			if !ok {
				return apperrors.ErrConfigurationf("%s: layout names unknown table %q", t.Name, step.Name)
			}
			td, err := b.table(t, tbl)
			if err != nil {
				return err
			}
			l.addTable(td)
		default:
			return apperrors.ErrConfigurationf("%s: unknown layout step %d", t.Name, step.Kind)
		}
	}
	return nil
}

func (b *Builder) table(parent *model.EntityType, tbl model.Table) (Table, error) {
	child, err := b.reg.Get(tbl.Child)
	if err != nil {
		return Table{}, apperrors.ErrConfigurationf("%s: table child %q is not registered", parent.Name, tbl.Child)
	}
	label := tbl.Label
	if label == "" {
		label = child.DisplayLabel()
	}
	td := Table{
		FieldName:    tbl.Key(),
		Label:        label,
		FieldType:    TypeTable,
		RelatedModel: child.Name,
		Options:      make([]Field, 0, len(tbl.Fields)),
		Hidden:       tbl.Hidden,
	}
	for _, name := range tbl.Fields {
		a, ok := child.Attr(name)
		if !ok {
			return Table{}, apperrors.ErrConfigurationf("%s: table field %s.%s does not exist", parent.Name, child.Name, name)
		}
		f, err := MapField(child, a)
		if err != nil {
			return Table{}, err
		}
		td.Options = append(td.Options, f)
	}
	return td, nil
}

// layout accumulates elements. Breaks are lazy so trailing breaks never
// leave empty sections or columns behind.
type layout struct {
	schema     *Schema
	newSection bool
	newColumn  bool
}

func (l *layout) breakSection() { l.newSection = true }
func (l *layout) breakColumn()  { l.newColumn = true }

func (l *layout) add(e Element) {
	s := l.schema
	if len(s.Sections) == 0 || l.newSection || l.tableSection() {
		s.Sections = append(s.Sections, Section{Column{}})
		l.newSection, l.newColumn = false, false
	}
	sec := &s.Sections[len(s.Sections)-1]
	if l.newColumn && len((*sec)[len(*sec)-1]) > 0 {
		*sec = append(*sec, Column{})
	}
	l.newColumn = false
	col := &(*sec)[len(*sec)-1]
	*col = append(*col, e)
}

func (l *layout) addTable(t Table) {
	l.schema.Sections = append(l.schema.Sections, Section{Column{t}})
	l.newSection, l.newColumn = true, false
}

// tableSection reports whether the last section holds a table.
func (l *layout) tableSection() bool {
	s := l.schema
	if len(s.Sections) == 0 {
		return false
	}
	last := s.Sections[len(s.Sections)-1]
	if len(last) != 1 || len(last[0]) != 1 {
		return false
	}
	_, ok := last[0][0].(Table)
	return ok
}

// ListField is one column of the list projection.
type ListField struct {
	FieldName string `json:"fieldname"`
	Label     string `json:"label"`
	FieldType string `json:"fieldtype"`
}

// ListSchema returns the columns of the list projection of t: the display
// string followed by the list-view attributes.
func ListSchema(t *model.EntityType) ([]ListField, error) {
	out := []ListField{{FieldName: "display", Label: t.DisplayLabel(), FieldType: TypeChar}}
	for _, a := range t.ListAttributes() {
		f, err := MapField(t, a)
		if err != nil {
			return nil, err
		}
		out = append(out, ListField{FieldName: f.FieldName, Label: f.Label, FieldType: f.FieldType})
	}
	return out, nil
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
