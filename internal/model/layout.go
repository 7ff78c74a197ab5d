package model

// StepKind is the operation of one layout step.
type StepKind int

const (
	StepSection StepKind = iota
	StepColumn
	StepField
	StepComponent
	StepTable
)

// LayoutStep is one instruction of an explicit form layout. Steps are
// replayed in order against the form builder.
type LayoutStep struct {
	Kind   StepKind
	Name   string
	Hidden bool
	HTML   string
}

// Section starts a new form section.
func Section() LayoutStep { return LayoutStep{Kind: StepSection} }

// Column starts a new column in the current section.
func Column() LayoutStep { return LayoutStep{Kind: StepColumn} }

// Field places the named attribute.
func Field(name string) LayoutStep { return LayoutStep{Kind: StepField, Name: name} }

// HiddenField places the named attribute without rendering it.
func HiddenField(name string) LayoutStep { return LayoutStep{Kind: StepField, Name: name, Hidden: true} }

// Component places a computed widget.
func Component(name, html string) LayoutStep {
	return LayoutStep{Kind: StepComponent, Name: name, HTML: html}
}

// TableOf places the child table of the named child type in its own section.
func TableOf(child string) LayoutStep { return LayoutStep{Kind: StepTable, Name: child} }
