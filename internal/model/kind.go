// Package model is the static entity registry of the CMS.
//
// Entity types are declared in Go at process start, registered once and never
// mutated afterwards. Everything else in the engine (form schemas, the payload
// parser, serializers, permissions) is driven by these declarations.
package model

// Kind is the semantic type of an attribute.
type Kind string

const (
	KindText       Kind = "text"
	KindLongText   Kind = "long_text"
	KindBoolean    Kind = "boolean"
	KindInteger    Kind = "integer"
	KindDecimal    Kind = "decimal"
	KindDate       Kind = "date"
	KindTime       Kind = "time"
	KindDateTime   Kind = "datetime"
	KindImage      Kind = "image_reference"
	KindRelation   Kind = "relation"
	KindManyToMany Kind = "many_to_many"
	KindComponent  Kind = "component"
)

var knownKinds = map[Kind]bool{
	KindText:       true,
	KindLongText:   true,
	KindBoolean:    true,
	KindInteger:    true,
	KindDecimal:    true,
	KindDate:       true,
	KindTime:       true,
	KindDateTime:   true,
	KindImage:      true,
	KindRelation:   true,
	KindManyToMany: true,
	KindComponent:  true,
}

// Valid reports whether k belongs to the closed kind set.
func (k Kind) Valid() bool { return knownKinds[k] }

// Stored reports whether values of this kind live in the record value map.
// Components are computed and many-to-many membership is kept as links.
func (k Kind) Stored() bool { return k != KindComponent && k != KindManyToMany }

// Numeric reports whether k is coerced as a number.
func (k Kind) Numeric() bool { return k == KindInteger || k == KindDecimal }

// Textual reports whether list filters match k by substring.
func (k Kind) Textual() bool { return k == KindText || k == KindLongText }

// Referential reports whether k points at other records.
func (k Kind) Referential() bool { return k == KindRelation || k == KindManyToMany }
