// Package search implements the in-memory invoice query index described in
// SPEC_FULL.md §4.4, grounded on original_source/src/search.rs's
// StrictEngine.
package search

import (
	"sort"
	"strings"
	"sync"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
)

// Options controls a Query call.
type Options struct {
	Offset uint64
	Limit  uint8
	Strict bool
	Yanked bool
}

// DefaultOptions mirrors the Rust SearchOptions::default().
func DefaultOptions() Options {
	return Options{Offset: 0, Limit: 50, Strict: false, Yanked: false}
}

// Matches is the result of a Query call.
type Matches struct {
	Query    string            `toml:"query"`
	Strict   bool              `toml:"strict"`
	Offset   uint64            `toml:"offset"`
	Limit    uint8             `toml:"limit"`
	Total    uint64            `toml:"total"`
	More     bool              `toml:"more"`
	Yanked   bool              `toml:"yanked"`
	Invoices []invoice.Invoice `toml:"invoices,omitempty"`
}

// Index is an ordered, thread-safe in-memory invoice index. Go has no
// standard-library ordered map, so a sorted key slice is kept alongside the
// backing map — the idiomatic substitute for the Rust reference's
// BTreeMap<String, Invoice> (no ordered-map library appears anywhere in the
// example pack either; see DESIGN.md).
type Index struct {
	mu    sync.RWMutex
	byKey map[string]invoice.Invoice
	keys  []string // kept sorted
}

// New returns an empty Index.
func New() *Index {
	return &Index{byKey: map[string]invoice.Invoice{}}
}

// Put upserts inv into the index, keyed by its "name/version" string.
func (ix *Index) Put(inv invoice.Invoice) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	key := inv.Name()
	if _, exists := ix.byKey[key]; !exists {
		idx := sort.SearchStrings(ix.keys, key)
		ix.keys = append(ix.keys, "")
		copy(ix.keys[idx+1:], ix.keys[idx:])
		ix.keys[idx] = key
	}
	ix.byKey[key] = inv
}

// Query returns invoices whose name contains term (substring) and whose
// version satisfies versionReq, paginated by opts.
func (ix *Index) Query(term, versionReq string, opts Options) (Matches, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	r, err := id.ParseRange(versionReq)
	if err != nil {
		return Matches{}, err
	}

	var found []invoice.Invoice
	for _, key := range ix.keys {
		inv := ix.byKey[key]
		if !strings.Contains(inv.Bindle.Name, term) {
			continue
		}
		v, err := id.ParseSemVer(inv.Bindle.Version)
		if err != nil || !r.Matches(v) {
			continue
		}
		if inv.IsYanked() && !opts.Yanked {
			continue
		}
		found = append(found, inv)
	}

	m := Matches{
		Query:  term,
		Strict: true,
		Offset: opts.Offset,
		Limit:  opts.Limit,
		Yanked: opts.Yanked,
		Total:  uint64(len(found)),
	}

	if m.Offset >= m.Total {
		return m, nil
	}

	lastIndex := m.Offset + uint64(m.Limit) - 1
	if lastIndex >= m.Total {
		lastIndex = m.Total - 1
	}
	m.More = m.Total > lastIndex+1
	m.Invoices = found[m.Offset : lastIndex+1]
	return m, nil
}
