// Package filter resolves an invoice's group/feature conditions into the
// effective, deduplicated parcel set. Grounded on
// original_source/src/filters/mod.rs.
package filter

// featureKey identifies a (group, feature-name) pair.
type featureKey struct {
	group string
	name  string
}

// Builder accumulates group/feature selections before resolving a parcel
// set from an invoice. Generalizes the teacher's functional-options idiom
// (pkg/database/client.go's ClientOption) into a builder returning itself.
type Builder struct {
	included map[string]bool
	excluded map[string]bool
	activate map[featureKey]string
	deactivate map[featureKey]string
}

// NewBuilder returns an empty Builder.
func NewBuilder() *Builder {
	return &Builder{
		included:   map[string]bool{},
		excluded:   map[string]bool{},
		activate:   map[featureKey]string{},
		deactivate: map[featureKey]string{},
	}
}

// WithGroup explicitly includes group in the initial active-group set.
func (b *Builder) WithGroup(group string) *Builder {
	b.included[group] = true
	return b
}

// WithoutGroup explicitly excludes group, overriding both `required` groups
// and explicit inclusion.
func (b *Builder) WithoutGroup(group string) *Builder {
	b.excluded[group] = true
	return b
}

// ActivateFeature records that parcels declaring feature.group.name with a
// different value should be dropped, and parcels with a matching value kept.
func (b *Builder) ActivateFeature(group, name, value string) *Builder {
	b.activate[featureKey{group, name}] = value
	return b
}

// DeactivateFeature records that any parcel declaring feature.group.name at
// all should be dropped, regardless of value. Deactivation dominates
// activation for the same (group, name) pair.
func (b *Builder) DeactivateFeature(group, name string) *Builder {
	b.deactivate[featureKey{group, name}] = ""
	return b
}
