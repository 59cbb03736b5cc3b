package signature

import (
	"crypto/ed25519"
	"encoding/base64"
)

// KeyEntry is a single keyring entry: a known public key, a human-readable
// label, and the roles it is trusted to sign for.
type KeyEntry struct {
	Label string
	Roles []Role
	Key   ed25519.PublicKey
}

// IncludesRole reports whether this entry is trusted for the given role.
func (e KeyEntry) IncludesRole(role Role) bool {
	for _, r := range e.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// Keyring is a set of known public keys, consulted by verification
// strategies to decide whether a signer is trusted.
type Keyring struct {
	entries []KeyEntry
}

// NewKeyring constructs a Keyring from a set of entries.
func NewKeyring(entries ...KeyEntry) *Keyring {
	return &Keyring{entries: entries}
}

// Add appends an entry to the keyring.
func (k *Keyring) Add(e KeyEntry) {
	k.entries = append(k.entries, e)
}

// Contains reports whether the raw public key bytes are present in the
// keyring, per SPEC_FULL.md §3: "membership tests are by raw public-key
// bytes".
func (k *Keyring) Contains(pub ed25519.PublicKey) bool {
	_, ok := k.find(pub)
	return ok
}

// find returns the keyring entry matching pub, if any.
func (k *Keyring) find(pub ed25519.PublicKey) (KeyEntry, bool) {
	for _, e := range k.entries {
		if string(e.Key) == string(pub) {
			return e, true
		}
	}
	return KeyEntry{}, false
}

// DecodeBase64PublicKey decodes a base64-encoded Ed25519 public key,
// returning ErrCorruptKey on failure.
func DecodeBase64PublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil || len(raw) != ed25519.PublicKeySize {
		return nil, ErrCorruptKey
	}
	return ed25519.PublicKey(raw), nil
}
