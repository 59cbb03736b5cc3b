package filter

import "github.com/bindleproject/bindle/internal/invoice"

// Build resolves inv's parcels against the builder's selections, returning a
// deduplicated (by SHA-256) parcel set. See SPEC_FULL.md §4.3 for the full
// algorithm description.
func (b *Builder) Build(inv *invoice.Invoice) []invoice.Parcel {
	active := b.initialActiveGroups(inv)

	byGroup := parcelsByGroup(inv)
	result := map[string]invoice.Parcel{}
	resolvedGroups := map[string]bool{}

	// Step 2: select every parcel whose member_of is absent (global)
	// or intersects the active-group set.
	for _, p := range inv.Parcel {
		if isGlobal(p) || memberOfAny(p, active) {
			if !b.featureDisabled(p) {
				result[p.Label.SHA256] = p
			}
		}
	}

	// Step 4: walk requires graphs from every selected parcel, with a
	// visited-set cycle guard (not a topological sort — SPEC_FULL.md §9).
	queue := make([]invoice.Parcel, 0, len(result))
	for _, p := range result {
		queue = append(queue, p)
	}
	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		if p.Conditions == nil {
			continue
		}
		for _, group := range p.Conditions.Requires {
			if resolvedGroups[group] {
				continue
			}
			resolvedGroups[group] = true
			for _, gp := range byGroup[group] {
				if b.featureDisabled(gp) {
					continue
				}
				if _, already := result[gp.Label.SHA256]; already {
					continue
				}
				result[gp.Label.SHA256] = gp
				queue = append(queue, gp)
			}
		}
	}

	out := make([]invoice.Parcel, 0, len(result))
	for _, p := range result {
		out = append(out, p)
	}
	return out
}

// initialActiveGroups computes {g | g.Required && g not excluded} ∪
// (included \ excluded).
func (b *Builder) initialActiveGroups(inv *invoice.Invoice) map[string]bool {
	active := map[string]bool{}
	for _, g := range inv.Group {
		if g.Required != nil && *g.Required && !b.excluded[g.Name] {
			active[g.Name] = true
		}
	}
	for name := range b.included {
		if !b.excluded[name] {
			active[name] = true
		}
	}
	return active
}

// featureDisabled implements the feature test from SPEC_FULL.md §4.3 step 3:
// a parcel is disabled iff any deactivated feature matches one of its
// labels, or an activated feature exists for a (group,name) the parcel
// declares but with a different value. Deactivation is checked first, so it
// dominates activation on the same (group,name).
func (b *Builder) featureDisabled(p invoice.Parcel) bool {
	for group, features := range p.Label.Feature {
		for name := range features {
			key := featureKey{group, name}
			if _, deact := b.deactivate[key]; deact {
				return true
			}
		}
	}
	for group, features := range p.Label.Feature {
		for name, value := range features {
			key := featureKey{group, name}
			if wantValue, ok := b.activate[key]; ok && wantValue != value {
				return true
			}
		}
	}
	return false
}

// isGlobal reports whether p has no member_of condition at all. An
// explicit-but-empty member_of removes the parcel from the global group
// (spec.md line 38) — it is only "absent", not "empty", that counts.
func isGlobal(p invoice.Parcel) bool {
	return p.Conditions == nil || p.Conditions.MemberOf == nil
}

func memberOfAny(p invoice.Parcel, active map[string]bool) bool {
	if p.Conditions == nil {
		return false
	}
	for _, g := range p.Conditions.MemberOf {
		if active[g] {
			return true
		}
	}
	return false
}

// parcelsByGroup indexes every parcel that declares membership in a given
// group (used when walking `requires` edges).
func parcelsByGroup(inv *invoice.Invoice) map[string][]invoice.Parcel {
	byGroup := map[string][]invoice.Parcel{}
	for _, p := range inv.Parcel {
		if p.Conditions == nil {
			continue
		}
		for _, g := range p.Conditions.MemberOf {
			byGroup[g] = append(byGroup[g], p)
		}
	}
	return byGroup
}
