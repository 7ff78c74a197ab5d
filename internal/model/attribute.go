package model

import (
	"strings"
	"unicode"

	"autohaus.io/cms/internal/store"
)

// System attribute names. They are prepended to every entity type by the
// registry and are never accepted from payloads.
const (
	AttrID        = "id"
	AttrCreatedAt = "created_at"
	AttrUpdatedAt = "updated_at"
	AttrCreatedBy = "created_by"
	AttrUpdatedBy = "updated_by"
	AttrDraft     = "draft"
)

// Choice is one allowed value of an enumerated attribute.
type Choice struct {
	Value any
	Label string
}

// Attribute describes one field of an entity type.
type Attribute struct {
	Name  string
	Label string
	Kind  Kind
	// Target is the referenced entity type for relation kinds.
	Target string
	// Required marks the attribute as not blank-eligible.
	Required bool
	Default  any
	// Choices are kept in declaration order; that order is shown to users.
	Choices []Choice
	// Scale is the number of decimal places of a decimal attribute.
	Scale  int
	Hidden bool
	// ListView includes the attribute in the list projection.
	ListView     bool
	SectionBreak bool
	ColumnBreak  bool
	// HTML is the markup emitted for component attributes.
	HTML string

	system   bool
	auditRef bool
}

// System reports whether the attribute was added by the registry.
func (a Attribute) System() bool { return a.system }

// AuditRef reports whether the attribute records the acting principal.
func (a Attribute) AuditRef() bool { return a.auditRef }

// Mandatory reports whether a write must supply a value.
func (a Attribute) Mandatory() bool {
	return a.Required && a.Default == nil && !a.system && a.Kind.Stored()
}

// DisplayLabel returns the declared label or a title-cased name.
func (a Attribute) DisplayLabel() string {
	if a.Label != "" {
		return a.Label
	}
	return Titleize(a.Name)
}

// HasChoice reports whether v is one of the declared choices.
func (a Attribute) HasChoice(v any) bool {
	for _, c := range a.Choices {
		if store.Equal(c.Value, v) {
			return true
		}
	}
	return false
}

// Titleize turns "first_registration" into "First Registration".
func Titleize(name string) string {
	words := strings.FieldsFunc(name, func(r rune) bool { return r == '_' || r == ' ' })
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	return strings.Join(words, " ")
}

func systemAttributes(draftable bool) []Attribute {
	attrs := []Attribute{
		{Name: AttrID, Label: "ID", Kind: KindText, system: true},
		{Name: AttrCreatedAt, Kind: KindDateTime, system: true},
		{Name: AttrUpdatedAt, Kind: KindDateTime, system: true},
		{Name: AttrCreatedBy, Kind: KindText, system: true, auditRef: true},
		{Name: AttrUpdatedBy, Kind: KindText, system: true, auditRef: true},
	}
	if draftable {
		attrs = append(attrs, Attribute{Name: AttrDraft, Kind: KindBoolean, Default: false, system: true})
	}
	return attrs
}

// IsSystemName reports whether name is reserved for system attributes.
func IsSystemName(name string) bool {
	switch name {
	case AttrID, AttrCreatedAt, AttrUpdatedAt, AttrCreatedBy, AttrUpdatedBy, AttrDraft:
		return true
	}
	return false
}
