package model

import (
	"regexp"
	"sync"

	apperrors "autohaus.io/cms/internal/pkg/errors"
)

// AuditLogType is the built-in, read-only entity type holding audit records.
const AuditLogType = "audit_log"

var namePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Registry holds every entity type known to the engine.
type Registry struct {
	mu    sync.RWMutex
	types map[string]*EntityType
	order []string
}

// NewRegistry returns a registry holding the built-in audit log type.
func NewRegistry() *Registry {
	r := &Registry{types: map[string]*EntityType{}}
	r.MustRegister(auditLogEntity())
	return r
}

func auditLogEntity() EntityType {
	return EntityType{
		Name:       AuditLogType,
		Label:      "Audit Log",
		ReadOnly:   true,
		PublicList: true,
		Attributes: []Attribute{
			{Name: "title", Kind: KindText, ListView: true},
			{Name: "entity_type", Label: "Entity", Kind: KindText, ListView: true},
			{Name: "entity_id", Label: "Entity ID", Kind: KindText},
			{Name: "changes", Kind: KindLongText},
		},
	}
}

// Register validates t and adds it to the registry. Cross-type references
// are checked later by Validate, so types may be registered in any order.
func (r *Registry) Register(t EntityType) error {
	if !namePattern.MatchString(t.Name) {
		return apperrors.ErrConfigurationf("entity type name %q must be lower snake case", t.Name)
	}

	attrs := systemAttributes(t.Draftable)
	index := make(map[string]int, len(t.Attributes)+len(attrs))
	for i, a := range attrs {
		index[a.Name] = i
	}
	for _, a := range t.Attributes {
		if !namePattern.MatchString(a.Name) {
			return apperrors.ErrConfigurationf("%s: attribute name %q must be lower snake case", t.Name, a.Name)
		}
		if IsSystemName(a.Name) {
			return apperrors.ErrConfigurationf("%s: attribute %q is reserved", t.Name, a.Name)
		}
		if _, dup := index[a.Name]; dup {
			return apperrors.ErrConfigurationf("%s: duplicate attribute %q", t.Name, a.Name)
		}
		if !a.Kind.Valid() || a.Kind == KindDateTime {
			return apperrors.ErrConfigurationf("%s.%s: unmapped kind %q", t.Name, a.Name, a.Kind)
		}
		if a.Kind.Referential() && a.Target == "" {
			return apperrors.ErrConfigurationf("%s.%s: %s requires a target type", t.Name, a.Name, a.Kind)
		}
		if a.Kind == KindDecimal && a.Scale < 0 {
			return apperrors.ErrConfigurationf("%s.%s: negative scale", t.Name, a.Name)
		}
		index[a.Name] = len(attrs)
		attrs = append(attrs, a)
	}
	t.Attributes = attrs
	t.index = index

	if t.Hooks == nil {
		t.Hooks = NopHooks{}
	}
	programs, err := compileRules(t.Rules)
	if err != nil {
		return apperrors.ErrConfigurationf("%s: %v", t.Name, err)
	}
	t.programs = programs

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.types[t.Name]; exists {
		return apperrors.ErrConfigurationf("entity type %q registered twice", t.Name)
	}
	r.types[t.Name] = &t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister is Register for static declarations; it panics on error.
func (r *Registry) MustRegister(t EntityType) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Validate checks references between registered types: relation targets,
// child tables and explicit layouts.
func (r *Registry) Validate() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, name := range r.order {
		t := r.types[name]
		for _, a := range t.Attributes {
			if a.Kind.Referential() {
				if _, ok := r.types[a.Target]; !ok {
					return apperrors.ErrConfigurationf("%s.%s: unknown target type %q", t.Name, a.Name, a.Target)
				}
			}
		}
		for _, tbl := range t.Tables {
			if err := r.validateTable(t, tbl); err != nil {
				return err
			}
		}
		for _, step := range t.Layout {
			switch step.Kind {
			case StepField:
				if _, ok := t.Attr(step.Name); !ok {
					return apperrors.ErrConfigurationf("%s: layout names unknown attribute %q", t.Name, step.Name)
				}
			case StepTable:
				if _, ok := t.Table(step.Name); !ok {
					return apperrors.ErrConfigurationf("%s: layout names unknown table %q", t.Name, step.Name)
				}
			}
		}
	}
	return nil
}

func (r *Registry) validateTable(parent *EntityType, tbl Table) error {
	child, ok := r.types[tbl.Child]
	if !ok {
		return apperrors.ErrConfigurationf("%s: table references unknown type %q", parent.Name, tbl.Child)
	}
	ref, ok := child.Attr(tbl.ParentAttr)
	if !ok || ref.Kind != KindRelation || ref.Target != parent.Name {
		return apperrors.ErrConfigurationf("%s: %s.%s must be a relation to %s", parent.Name, tbl.Child, tbl.ParentAttr, parent.Name)
	}
	for _, f := range tbl.Fields {
		if _, ok := child.Attr(f); !ok {
			return apperrors.ErrConfigurationf("%s: table %s names unknown field %q", parent.Name, tbl.Child, f)
		}
	}
	if tbl.UploadAttr != "" {
		up, ok := child.Attr(tbl.UploadAttr)
		if !ok || up.Kind != KindImage {
			return apperrors.ErrConfigurationf("%s: upload attribute %s.%s must be an image", parent.Name, tbl.Child, tbl.UploadAttr)
		}
	}
	return nil
}

// Get returns the named type or ENTITY_TYPE_UNKNOWN.
func (r *Registry) Get(name string) (*EntityType, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.types[name]
	if !ok {
		return nil, apperrors.ErrEntityTypeUnknownf(name)
	}
	return t, nil
}

// Names returns registered type names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ParentTable finds the table through which child rows of typ are owned.
func (r *Registry) ParentTable(child string) (*EntityType, Table, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range r.order {
		t := r.types[name]
		if tbl, ok := t.Table(child); ok {
			return t, tbl, true
		}
	}
	return nil, Table{}, false
}
