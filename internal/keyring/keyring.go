// Package keyring loads and saves the TOML keyring file referenced by the
// server's --keyring-path flag (SPEC_FULL.md §6), independent of any
// identity provider. It is a thin file-format adapter in front of
// internal/signature.Keyring, grounded on that package's KeyEntry shape and
// on internal/invoice's go-toml/v2 marshal/unmarshal idiom.
package keyring

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/bindleproject/bindle/internal/signature"
)

// fileEntry is the on-disk TOML shape of one keyring entry: a base64
// Ed25519 public key and the roles it is trusted for.
type fileEntry struct {
	Label string   `toml:"label"`
	Roles []string `toml:"roles"`
	Key   string   `toml:"key"`
}

// file is the on-disk shape of an entire keyring file.
type file struct {
	Entry []fileEntry `toml:"entry"`
}

// Load reads a TOML keyring file at path and builds a signature.Keyring
// from its entries.
func Load(path string) (*signature.Keyring, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading keyring file: %w", err)
	}

	var f file
	if err := toml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing keyring file: %w", err)
	}

	kr := signature.NewKeyring()
	for _, fe := range f.Entry {
		pub, err := signature.DecodeBase64PublicKey(fe.Key)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", fe.Label, err)
		}
		roles := make([]signature.Role, 0, len(fe.Roles))
		for _, r := range fe.Roles {
			role := signature.Role(r)
			if !role.IsValid() {
				return nil, fmt.Errorf("entry %q: %w: %s", fe.Label, signature.ErrInvalidRole, r)
			}
			roles = append(roles, role)
		}
		kr.Add(signature.KeyEntry{Label: fe.Label, Roles: roles, Key: pub})
	}
	return kr, nil
}

// Save writes entries to path as a TOML keyring file, overwriting any
// existing file.
func Save(path string, entries []signature.KeyEntry) error {
	f := file{Entry: make([]fileEntry, 0, len(entries))}
	for _, e := range entries {
		roles := make([]string, 0, len(e.Roles))
		for _, r := range e.Roles {
			roles = append(roles, r.String())
		}
		f.Entry = append(f.Entry, fileEntry{
			Label: e.Label,
			Roles: roles,
			Key:   base64.StdEncoding.EncodeToString(e.Key),
		})
	}

	data, err := toml.Marshal(f)
	if err != nil {
		return fmt.Errorf("encoding keyring file: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing keyring file: %w", err)
	}
	return nil
}
