package model

import (
	"context"
	"strings"

	"autohaus.io/cms/internal/store"
)

// ReconcileMode selects how submitted child rows are matched to stored ones.
type ReconcileMode int

const (
	// ReconcileKeyed matches rows by their "id" key. Rows without an id are
	// new; stored children that are not referenced are deleted.
	ReconcileKeyed ReconcileMode = iota
	// ReconcilePositional matches the i-th submitted row to the i-th stored
	// child ordered by creation. Reordering looks like editing; kept for
	// clients that predate row ids.
	ReconcilePositional
)

// Table is a one-to-many child collection owned by an entity type.
type Table struct {
	Label string
	// Child is the child entity type name.
	Child string
	// ParentAttr is the relation attribute on the child pointing at the parent.
	ParentAttr string
	// Fields are the child attributes exposed in the parent's form.
	Fields []string
	Hidden bool
	Mode   ReconcileMode
	// UploadAttr is the child image attribute filled by the upload operation.
	UploadAttr string
}

// Key is the payload and projection key of the table.
func (t Table) Key() string { return ":" + strings.ToLower(t.Child) }

// OwnerFunc resolves the principal id owning rec. ok is false when the owner
// chain is broken (dangling relation, empty account).
type OwnerFunc func(ctx context.Context, r store.Reader, rec store.Record) (owner string, ok bool, err error)

// EntityType is a registered record schema.
type EntityType struct {
	Name       string
	Label      string
	Attributes []Attribute
	Tables     []Table
	// Layout overrides the default form traversal when non-empty.
	Layout []LayoutStep
	// Display renders a record for list views, relation pickers and audit
	// titles. Defaults to the name or title attribute.
	Display func(store.Record) string
	// Owner enables ownership filtering for the type.
	Owner OwnerFunc
	Hooks Hooks
	Rules []Rule
	// Draftable types store the draft flag raised by updates.
	Draftable bool
	// ReadOnly types are never written through the engine write path.
	ReadOnly bool
	// PublicList types can be listed by any authenticated principal.
	PublicList bool
	// SearchAttr is matched by the relation-picker search. Defaults to "name"
	// or the first text attribute.
	SearchAttr string

	index    map[string]int
	programs []program
}

// Attr returns the attribute called name.
func (t *EntityType) Attr(name string) (Attribute, bool) {
	i, ok := t.index[name]
	if !ok {
		return Attribute{}, false
	}
	return t.Attributes[i], true
}

// Table returns the child table with the given child type or payload key.
func (t *EntityType) Table(name string) (Table, bool) {
	name = strings.TrimPrefix(name, ":")
	for _, tbl := range t.Tables {
		if strings.EqualFold(tbl.Child, name) {
			return tbl, true
		}
	}
	return Table{}, false
}

// ListAttributes returns the attributes marked for the list projection.
func (t *EntityType) ListAttributes() []Attribute {
	var out []Attribute
	for _, a := range t.Attributes {
		if a.ListView {
			out = append(out, a)
		}
	}
	return out
}

// Concrete returns every attribute whose value is persisted, system ones
// included.
func (t *EntityType) Concrete() []Attribute {
	var out []Attribute
	for _, a := range t.Attributes {
		if a.Kind != KindComponent {
			out = append(out, a)
		}
	}
	return out
}

// Editable returns the non-system, non-component attributes.
func (t *EntityType) Editable() []Attribute {
	var out []Attribute
	for _, a := range t.Attributes {
		if !a.system && a.Kind != KindComponent {
			out = append(out, a)
		}
	}
	return out
}

// DisplayOf renders rec as a short human-readable string.
func (t *EntityType) DisplayOf(rec store.Record) string {
	if t.Display != nil {
		return t.Display(rec)
	}
	for _, name := range []string{"name", "title"} {
		if s := rec.String(name); s != "" {
			return s
		}
	}
	return t.DisplayLabel() + " " + rec.ID
}

// DisplayLabel returns the declared label or a title-cased name.
func (t *EntityType) DisplayLabel() string {
	if t.Label != "" {
		return t.Label
	}
	return Titleize(t.Name)
}

// SearchAttribute returns the attribute matched by relation-picker search.
func (t *EntityType) SearchAttribute() string {
	if t.SearchAttr != "" {
		return t.SearchAttr
	}
	if _, ok := t.Attr("name"); ok {
		return "name"
	}
	for _, a := range t.Attributes {
		if a.Kind.Textual() && !a.system {
			return a.Name
		}
	}
	return ""
}

// HasOwner reports whether rows of the type are ownership-filtered.
func (t *EntityType) HasOwner() bool { return t.Owner != nil }
