// Package embedded implements an embedded-database-backed Provider (C8),
// using github.com/cometbft/cometbft-db as the key-value engine. Invoices
// and parcels share one DB handle, distinguished by key prefix — the Go
// analogue of the Rust reference's two sled.Tree values. Grounded on
// original_source/src/provider/embedded.rs, with KV-wrapper conventions
// from pkg/kvdb/adapter.go and pkg/ledger/store.go.
package embedded

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"sync"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/provider"
	"github.com/bindleproject/bindle/internal/search"
	"github.com/bindleproject/bindle/internal/signature"
)

var (
	invoicePrefix = []byte("invoices:")
	parcelPrefix  = []byte("parcels:")
)

// blockingSlots bounds concurrent DB operations, mirroring the Rust
// reference's tokio::sync::Semaphore(BLOCKING_THREAD_COUNT). A buffered
// channel is the idiomatic Go substitute for a counting semaphore.
const blockingSlots = 512

func invoiceKey(sha string) []byte {
	return append(append([]byte{}, invoicePrefix...), sha...)
}

func parcelKey(sha string) []byte {
	return append(append([]byte{}, parcelPrefix...), sha...)
}

// Provider is an embedded-database-backed storage implementation. Unlike the
// sled reference, cometbft-db's DB interface has no native compare-and-swap,
// so create-if-absent semantics are enforced with an in-process mutex: every
// create-if-absent check-then-set for a given Provider instance serializes
// through casMu (YankInvoice, which rewrites an existing record, does not
// take it), which is
// semantics-preserving because sled's CAS only ever races against other
// writers to the same process in this codebase too.
type Provider struct {
	db    dbm.DB
	index *search.Index
	sem   chan struct{}
	casMu sync.Mutex
}

// New wraps an already-opened embedded database db and performs the
// startup index-warming pass.
func New(ctx context.Context, db dbm.DB, index *search.Index) (*Provider, error) {
	p := &Provider{
		db:    db,
		index: index,
		sem:   make(chan struct{}, blockingSlots),
	}
	if err := p.warmIndex(); err != nil {
		return nil, fmt.Errorf("warming index: %w", err)
	}
	return p, nil
}

func (p *Provider) acquire() func() {
	p.sem <- struct{}{}
	return func() { <-p.sem }
}

// warmIndex loads every invoice currently in the database into the search
// index. A sha/digest mismatch aborts the pass, matching the Rust
// reference's behavior; a record that fails to decode is logged and skipped.
func (p *Provider) warmIndex() error {
	release := p.acquire()
	defer release()

	iter, err := dbm.IteratePrefix(p.db, invoicePrefix)
	if err != nil {
		return err
	}
	defer iter.Close()

	for ; iter.Valid(); iter.Next() {
		sha := string(bytes.TrimPrefix(iter.Key(), invoicePrefix))
		var inv invoice.Invoice
		if err := json.Unmarshal(iter.Value(), &inv); err != nil {
			log.New(log.Writer(), "[EmbeddedProvider] ", log.LstdFlags).Printf("skipping invoice %s while warming index: %v", sha, err)
			continue
		}
		digest, err := inv.CanonicalName()
		if err != nil {
			return fmt.Errorf("invoice %s has unparseable id: %w", sha, err)
		}
		if digest != sha {
			return fmt.Errorf("sha %s did not match computed digest %s; delete this record", sha, digest)
		}
		p.index.Put(inv)
	}
	return iter.Error()
}

// CreateInvoice persists inv if no record exists yet for its canonical name.
func (p *Provider) CreateInvoice(ctx context.Context, sv signature.Verified) (invoice.Invoice, []invoice.Label, error) {
	inv := *sv.Unwrap()
	if inv.IsYanked() {
		return invoice.Invoice{}, nil, provider.ErrCreateYanked
	}

	sha, err := inv.CanonicalName()
	if err != nil {
		return invoice.Invoice{}, nil, fmt.Errorf("%w: %v", provider.ErrInvalidID, err)
	}

	data, err := json.Marshal(inv)
	if err != nil {
		return invoice.Invoice{}, nil, fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}

	release := p.acquire()
	key := invoiceKey(sha)
	p.casMu.Lock()
	existing, err := p.db.Get(key)
	if err == nil && existing != nil {
		p.casMu.Unlock()
		release()
		return invoice.Invoice{}, nil, provider.ErrExists
	}
	if err != nil {
		p.casMu.Unlock()
		release()
		return invoice.Invoice{}, nil, err
	}
	err = p.db.SetSync(key, data)
	p.casMu.Unlock()
	release()
	if err != nil {
		return invoice.Invoice{}, nil, err
	}

	p.index.Put(inv)

	var missing []invoice.Label
	for _, parcel := range inv.Parcel {
		exists, err := p.ParcelExists(ctx, id.ID{}, parcel.Label.SHA256)
		if err != nil {
			continue
		}
		if !exists {
			missing = append(missing, parcel.Label)
		}
	}
	return inv, missing, nil
}

// GetYankedInvoice fetches an invoice, including yanked ones.
func (p *Provider) GetYankedInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error) {
	release := p.acquire()
	data, err := p.db.Get(invoiceKey(bindleID.Sha()))
	release()
	if err != nil {
		return invoice.Invoice{}, err
	}
	if data == nil {
		return invoice.Invoice{}, provider.ErrNotFound
	}
	var inv invoice.Invoice
	if err := json.Unmarshal(data, &inv); err != nil {
		return invoice.Invoice{}, fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}
	return inv, nil
}

// GetInvoice fetches an invoice, excluding yanked ones.
func (p *Provider) GetInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error) {
	inv, err := p.GetYankedInvoice(ctx, bindleID)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if inv.IsYanked() {
		return invoice.Invoice{}, provider.ErrYanked
	}
	return inv, nil
}

// YankInvoice idempotently sets yanked=true and rewrites the record.
func (p *Provider) YankInvoice(ctx context.Context, bindleID id.ID) error {
	inv, err := p.GetYankedInvoice(ctx, bindleID)
	if err != nil {
		return err
	}
	yes := true
	inv.Yanked = &yes

	p.index.Put(inv)

	data, err := json.Marshal(inv)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}

	release := p.acquire()
	err = p.db.SetSync(invoiceKey(bindleID.Sha()), data)
	release()
	return err
}

// ValidateParcel fetches bindleID's invoice and returns the label matching
// sha, or ErrNotFound.
func (p *Provider) ValidateParcel(ctx context.Context, bindleID id.ID, sha string) (invoice.Label, error) {
	inv, err := p.GetYankedInvoice(ctx, bindleID)
	if err != nil {
		return invoice.Label{}, err
	}
	for _, parcel := range inv.Parcel {
		if parcel.Label.SHA256 == sha {
			return parcel.Label, nil
		}
	}
	return invoice.Label{}, provider.ErrNotFound
}

// CreateParcel reads data fully (the value must be written to the database
// in one call, unlike the streamed file-provider), validates size/digest,
// and inserts it if absent.
func (p *Provider) CreateParcel(ctx context.Context, bindleID id.ID, sha string, data io.Reader) error {
	label, err := p.ValidateParcel(ctx, bindleID, sha)
	if err != nil {
		return err
	}

	buf := make([]byte, 0, label.Size)
	w := bytes.NewBuffer(buf)
	if _, err := io.Copy(w, data); err != nil {
		return err
	}
	payload := w.Bytes()

	if uint64(len(payload)) != label.Size {
		return provider.ErrSizeMismatch
	}
	sum := sha256.Sum256(payload)
	if hex.EncodeToString(sum[:]) != label.SHA256 {
		return provider.ErrDigestMismatch
	}

	release := p.acquire()
	defer release()
	key := parcelKey(sha)
	p.casMu.Lock()
	defer p.casMu.Unlock()
	existing, err := p.db.Get(key)
	if err != nil {
		return err
	}
	if existing != nil {
		return provider.ErrExists
	}
	return p.db.SetSync(key, payload)
}

// GetParcel returns the parcel bytes wrapped as a no-op-Close reader.
func (p *Provider) GetParcel(ctx context.Context, bindleID id.ID, sha string) (io.ReadCloser, error) {
	if _, err := p.ValidateParcel(ctx, bindleID, sha); err != nil {
		return nil, err
	}
	release := p.acquire()
	data, err := p.db.Get(parcelKey(sha))
	release()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, provider.ErrNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// ParcelExists reports whether sha is stored.
func (p *Provider) ParcelExists(ctx context.Context, bindleID id.ID, sha string) (bool, error) {
	release := p.acquire()
	data, err := p.db.Get(parcelKey(sha))
	release()
	if err != nil {
		return false, err
	}
	return data != nil, nil
}

var _ provider.Provider = (*Provider)(nil)
