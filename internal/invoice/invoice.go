package invoice

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/bindleproject/bindle/internal/id"
)

// Name returns the slash-delimited "name/version" form of the invoice.
func (i Invoice) Name() string {
	return fmt.Sprintf("%s/%s", i.Bindle.Name, i.Bindle.Version)
}

// ID parses the invoice's BindleSpec into a canonical id.ID.
func (i Invoice) ID() (id.ID, error) {
	return id.Parse(i.Name())
}

// CanonicalName returns the lowercase-hex SHA-256 storage key for this
// invoice, derived from its id.
func (i Invoice) CanonicalName() (string, error) {
	parsed, err := i.ID()
	if err != nil {
		return "", err
	}
	return parsed.Sha(), nil
}

// VersionInRange reports whether the invoice's version satisfies the given
// NPM-style version range string. An empty range matches everything; a
// range that fails to parse matches nothing.
func (i Invoice) VersionInRange(rangeStr string) bool {
	r, err := id.ParseRange(rangeStr)
	if err != nil {
		return false
	}
	v, err := id.ParseSemVer(i.Bindle.Version)
	if err != nil {
		return false
	}
	return r.Matches(v)
}

// IsYanked reports whether the invoice is currently yanked.
func (i Invoice) IsYanked() bool {
	return i.Yanked != nil && *i.Yanked
}

// Cleartext produces the deterministic byte string signed/verified for the
// given author and role:
//
//	by '\n' name '\n' version '\n' role '\n' '~'
//	(for each parcel in invoice order: '\n' parcel.label.sha256)
//
// This is the single cleartext-derivation function used by both the signing
// and verification paths (see SPEC_FULL.md §9 resolved open question).
func (i Invoice) Cleartext(by string, role string) []byte {
	parts := []string{by, i.Bindle.Name, i.Bindle.Version, role, "~"}
	for _, p := range i.Parcel {
		parts = append(parts, p.Label.SHA256)
	}
	return []byte(strings.Join(parts, "\n"))
}

// HasSignatureFromKey reports whether any existing signature entry carries
// the given base64-encoded public key, regardless of role (I4 in
// SPEC_FULL.md §3: a public key may sign at most once per invoice).
func (i Invoice) HasSignatureFromKey(key string) bool {
	for _, s := range i.Signature {
		if s.Key == key {
			return true
		}
	}
	return false
}

// Marshal serializes the invoice to its canonical TOML wire form.
func Marshal(inv *Invoice) ([]byte, error) {
	return toml.Marshal(inv)
}

// Unmarshal parses TOML bytes into an Invoice, rejecting unknown fields per
// the wire contract in SPEC_FULL.md §3.
func Unmarshal(data []byte, inv *Invoice) error {
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(inv)
}
