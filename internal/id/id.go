// Package id parses and canonicalizes bindle identifiers.
//
// A bindle ID is a path whose last segment is a SemVer version and whose
// preceding segments form the bindle's name. The canonical name used as a
// storage key is the lowercase-hex SHA-256 of "name/version".
package id

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

var (
	// ErrInvalidID is returned when a string does not split into a non-empty
	// name and a non-empty version segment.
	ErrInvalidID = errors.New("invalid bindle id")
	// ErrInvalidSemver is returned when the version segment does not parse
	// as a SemVer value.
	ErrInvalidSemver = errors.New("id does not contain a valid semver")
)

// ID is the parsed (name, version) identity of a bindle.
type ID struct {
	name    string
	version SemVer
}

// Name returns the name portion of the ID.
func (i ID) Name() string { return i.name }

// Version returns the parsed version.
func (i ID) Version() SemVer { return i.version }

// VersionString returns the canonical string form of the version.
func (i ID) VersionString() string { return i.version.String() }

// String renders the ID as "name/version".
func (i ID) String() string {
	return i.name + "/" + i.version.String()
}

// Sha returns the lowercase-hex SHA-256 of "name/version", the canonical
// storage key for this ID.
func (i ID) Sha() string {
	h := sha256.New()
	h.Write([]byte(i.name))
	h.Write([]byte("/"))
	h.Write([]byte(i.version.String()))
	return hex.EncodeToString(h.Sum(nil))
}

// Parse parses a bindle ID string such as "foo/1.0.0" or
// "example.com/a/long/path/foo/1.0.0-rc.1".
func Parse(s string) (ID, error) {
	idx := strings.LastIndexByte(s, '/')
	if idx <= 0 || idx == len(s)-1 {
		return ID{}, ErrInvalidID
	}
	name := s[:idx]
	versionPart := s[idx+1:]
	if name == "" || versionPart == "" {
		return ID{}, ErrInvalidID
	}
	v, err := ParseSemVer(versionPart)
	if err != nil {
		return ID{}, ErrInvalidSemver
	}
	return ID{name: name, version: v}, nil
}

// New constructs an ID directly from a name and an already-parsed version.
func New(name string, version SemVer) ID {
	return ID{name: name, version: version}
}
