// Package invoice defines the Bindle invoice data model: the manifest that
// identifies a bindle and lists its parcels, groups, and signatures.
package invoice

// BindleVersion1 is the invoice schema version this package implements.
const BindleVersion1 = "1.0.0"

// FeatureMap maps a group name to a set of feature-name/value pairs.
type FeatureMap map[string]map[string]string

// AnnotationMap is a free-form string annotation bag.
type AnnotationMap map[string]string

// Invoice is the manifest identifying a bindle and listing its parcels,
// groups, and signatures.
type Invoice struct {
	BindleVersion    string        `toml:"bindleVersion"`
	Yanked           *bool         `toml:"yanked,omitempty"`
	YankedSignature  []Signature   `toml:"yankedSignature,omitempty"`
	Bindle           BindleSpec    `toml:"bindle"`
	Annotations      AnnotationMap `toml:"annotations,omitempty"`
	Parcel           []Parcel      `toml:"parcel,omitempty"`
	Group            []Group       `toml:"group,omitempty"`
	Signature        []Signature   `toml:"signature,omitempty"`
}

// BindleSpec identifies a bindle by name and version, plus descriptive
// metadata.
type BindleSpec struct {
	Name        string   `toml:"name"`
	Version     string   `toml:"version"`
	Description *string  `toml:"description,omitempty"`
	Authors     []string `toml:"authors,omitempty"`
}

// Parcel associates a Label with optional group-membership conditions.
type Parcel struct {
	Label      Label      `toml:"label"`
	Conditions *Condition `toml:"conditions,omitempty"`
}

// Label is the authoritative description of a parcel's content: its
// content-address, media type, display name, size, and feature metadata.
type Label struct {
	SHA256      string            `toml:"sha256"`
	MediaType   string            `toml:"mediaType"`
	Name        string            `toml:"name"`
	Size        uint64            `toml:"size"`
	Annotations AnnotationMap     `toml:"annotations,omitempty"`
	Feature     FeatureMap        `toml:"feature,omitempty"`
}

// Condition associates a parcel with groups: which group(s) it is a member
// of, and which group(s) its inclusion requires.
type Condition struct {
	MemberOf []string `toml:"memberOf,omitempty"`
	Requires []string `toml:"requires,omitempty"`
}

// Group is a named, optionally-required subset of parcels.
type Group struct {
	Name        string  `toml:"name"`
	Required    *bool   `toml:"required,omitempty"`
	SatisfiedBy *string `toml:"satisfiedBy,omitempty"`
}

// Signature is an Ed25519 signature over an invoice's cleartext, recorded
// under a specific role.
type Signature struct {
	By        string `toml:"by"`
	Signature string `toml:"signature"`
	Key       string `toml:"key"`
	Role      string `toml:"role"`
	At        int64  `toml:"at"`
}
