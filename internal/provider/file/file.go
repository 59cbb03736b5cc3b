// Package file implements the content-addressed on-disk Provider (C7):
// invoices and parcels under a root directory, written via a
// create-exclusive ".part" file and committed with an atomic rename.
// Grounded on original_source/src/provider/file/mod.rs.
package file

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/provider"
	"github.com/bindleproject/bindle/internal/search"
	"github.com/bindleproject/bindle/internal/signature"
)

const (
	invoicesDir  = "invoices"
	parcelsDir   = "parcels"
	invoiceFile  = "invoice.toml"
	parcelFile   = "parcel.dat"
	partSuffix   = ".part"
	dirPerm      = 0o755
	filePerm     = 0o644
)

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the provider's logger, following the teacher's
// functional-options idiom (pkg/database/client.go's WithLogger).
func WithLogger(logger *log.Logger) Option {
	return func(p *Provider) { p.logger = logger }
}

// WithLRUSize overrides the default invoice LRU capacity (50).
func WithLRUSize(n int) Option {
	return func(p *Provider) { p.lru = newInvoiceLRU(n) }
}

// Provider is the file-backed storage implementation of provider.Provider.
type Provider struct {
	root   string
	index  *search.Index
	lru    *invoiceLRU
	logger *log.Logger
}

// New creates a Provider rooted at dir, creating the directory layout if
// absent, then performs the startup index-warming pass described in
// SPEC_FULL.md §12.
func New(ctx context.Context, dir string, index *search.Index, opts ...Option) (*Provider, error) {
	p := &Provider{
		root:   dir,
		index:  index,
		lru:    newInvoiceLRU(defaultLRUSize),
		logger: log.New(log.Writer(), "[FileProvider] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(p)
	}
	if err := os.MkdirAll(filepath.Join(dir, invoicesDir), dirPerm); err != nil {
		return nil, fmt.Errorf("creating invoices directory: %w", err)
	}
	if err := os.MkdirAll(filepath.Join(dir, parcelsDir), dirPerm); err != nil {
		return nil, fmt.Errorf("creating parcels directory: %w", err)
	}
	if err := p.warmIndex(); err != nil {
		return nil, fmt.Errorf("warming index: %w", err)
	}
	return p, nil
}

func (p *Provider) invoicePath(sha string) string {
	return filepath.Join(p.root, invoicesDir, sha, invoiceFile)
}

func (p *Provider) parcelPath(sha string) string {
	return filepath.Join(p.root, parcelsDir, sha, parcelFile)
}

// warmIndex walks every invoice.toml on disk and indexes it. Individual
// parse failures are logged and skipped; a canonical-name mismatch aborts
// the whole pass (SPEC_FULL.md §12).
func (p *Provider) warmIndex() error {
	root := filepath.Join(p.root, invoicesDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		sha := entry.Name()
		data, err := os.ReadFile(filepath.Join(root, sha, invoiceFile))
		if err != nil {
			p.logger.Printf("skipping %s while warming index: %v", sha, err)
			continue
		}
		var inv invoice.Invoice
		if err := invoice.Unmarshal(data, &inv); err != nil {
			p.logger.Printf("skipping %s while warming index: %v", sha, err)
			continue
		}
		digest, err := inv.CanonicalName()
		if err != nil {
			return fmt.Errorf("invoice on disk at %s has unparseable id: %w", sha, err)
		}
		if digest != sha {
			return fmt.Errorf("sha %s did not match computed digest %s; delete this record", sha, digest)
		}
		p.index.Put(inv)
	}
	return nil
}

// CreateInvoice persists a signed-and-verified invoice. See
// provider.Provider.
func (p *Provider) CreateInvoice(ctx context.Context, sv signature.Verified) (invoice.Invoice, []invoice.Label, error) {
	inv := *sv.Unwrap()
	if inv.IsYanked() {
		return invoice.Invoice{}, nil, provider.ErrCreateYanked
	}

	sha, err := inv.CanonicalName()
	if err != nil {
		return invoice.Invoice{}, nil, fmt.Errorf("%w: %v", provider.ErrInvalidID, err)
	}

	data, err := invoice.Marshal(&inv)
	if err != nil {
		return invoice.Invoice{}, nil, fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}

	dir := filepath.Join(p.root, invoicesDir, sha)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return invoice.Invoice{}, nil, err
	}

	if err := writeExclusive(filepath.Join(dir, invoiceFile), bytes.NewReader(data)); err != nil {
		return invoice.Invoice{}, nil, err
	}

	p.lru.put(sha, inv)
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
	sha := bindleID.Sha()
	if cached, ok := p.lru.get(sha); ok {
		return cached, nil
	}
	data, err := os.ReadFile(p.invoicePath(sha))
	if err != nil {
		if os.IsNotExist(err) {
			return invoice.Invoice{}, provider.ErrNotFound
		}
		return invoice.Invoice{}, err
	}
	var inv invoice.Invoice
	if err := invoice.Unmarshal(data, &inv); err != nil {
		return invoice.Invoice{}, fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}
	p.lru.put(sha, inv)
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

// YankInvoice idempotently sets yanked=true and rewrites the invoice file.
func (p *Provider) YankInvoice(ctx context.Context, bindleID id.ID) error {
	inv, err := p.GetYankedInvoice(ctx, bindleID)
	if err != nil {
		return err
	}
	yes := true
	inv.Yanked = &yes

	data, err := invoice.Marshal(&inv)
	if err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}

	sha := bindleID.Sha()
	if err := os.WriteFile(p.invoicePath(sha), data, filePerm); err != nil {
		return err
	}
	p.lru.put(sha, inv)
	p.index.Put(inv)
	return nil
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

// CreateParcel streams data into storage, incrementally hashing it (so
// mismatch detection never requires rewinding the source), then rewinds the
// local .part file for a defense-in-depth rehash before committing.
func (p *Provider) CreateParcel(ctx context.Context, bindleID id.ID, sha string, data io.Reader) error {
	label, err := p.ValidateParcel(ctx, bindleID, sha)
	if err != nil {
		return err
	}

	dir := filepath.Join(p.root, parcelsDir, sha)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}
	partPath := filepath.Join(dir, parcelFile+partSuffix)
	finalPath := filepath.Join(dir, parcelFile)

	// A prior completed write is a separate condition from a write in
	// progress: rename(2) would silently replace finalPath otherwise.
	if _, err := os.Stat(finalPath); err == nil {
		return provider.ErrExists
	} else if !os.IsNotExist(err) {
		return err
	}

	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		if os.IsExist(err) {
			return provider.ErrWriteInProgress
		}
		return err
	}

	hasher := sha256.New()
	size, copyErr := io.Copy(f, io.TeeReader(data, hasher))
	closeErr := f.Close()
	if copyErr != nil {
		os.Remove(partPath)
		return copyErr
	}
	if closeErr != nil {
		os.Remove(partPath)
		return closeErr
	}

	if uint64(size) != label.Size {
		os.Remove(partPath)
		os.Remove(dir)
		return provider.ErrSizeMismatch
	}
	computed := hex.EncodeToString(hasher.Sum(nil))
	if computed != label.SHA256 {
		os.Remove(partPath)
		os.Remove(dir)
		return provider.ErrDigestMismatch
	}

	// Defense-in-depth rehash, per SPEC_FULL.md §9.
	if err := rehashFile(partPath, label.SHA256, label.Size); err != nil {
		os.Remove(partPath)
		os.Remove(dir)
		return err
	}

	if err := os.Rename(partPath, finalPath); err != nil {
		if os.IsExist(err) || errors.Is(err, os.ErrExist) {
			os.Remove(partPath)
			return provider.ErrExists
		}
		return err
	}
	return nil
}

func rehashFile(path, wantSha string, wantSize uint64) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	hasher := sha256.New()
	n, err := io.Copy(hasher, f)
	if err != nil {
		return err
	}
	if uint64(n) != wantSize {
		return provider.ErrSizeMismatch
	}
	if hex.EncodeToString(hasher.Sum(nil)) != wantSha {
		return provider.ErrDigestMismatch
	}
	return nil
}

// GetParcel returns a stream of the parcel's bytes, or ErrNotFound.
func (p *Provider) GetParcel(ctx context.Context, bindleID id.ID, sha string) (io.ReadCloser, error) {
	f, err := os.Open(p.parcelPath(sha))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, provider.ErrNotFound
		}
		return nil, err
	}
	return f, nil
}

// ParcelExists reports whether sha is stored. bindleID is accepted for
// interface symmetry but is not consulted — existence is purely
// content-addressed.
func (p *Provider) ParcelExists(ctx context.Context, bindleID id.ID, sha string) (bool, error) {
	_, err := os.Stat(p.parcelPath(sha))
	if err == nil {
		return true, nil
	}
	if os.IsNotExist(err) {
		return false, nil
	}
	return false, err
}

// writeExclusive writes data to a new ".part" file and renames it into
// place, returning ErrExists if finalPath is already committed, and
// ErrWriteInProgress if the part file already exists (F1, F4 in
// SPEC_FULL.md §4.6). The final-destination check is a separate guard from
// the part-file check: rename(2) silently replaces an existing destination
// on POSIX, so only a pre-write stat on finalPath catches a second create of
// an already-stored key.
func writeExclusive(finalPath string, data io.Reader) error {
	if _, err := os.Stat(finalPath); err == nil {
		return provider.ErrExists
	} else if !os.IsNotExist(err) {
		return err
	}

	partPath := finalPath + partSuffix
	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		if os.IsExist(err) {
			return provider.ErrWriteInProgress
		}
		return err
	}
	if _, err := io.Copy(f, data); err != nil {
		f.Close()
		os.Remove(partPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(partPath)
		return err
	}
	if err := os.Rename(partPath, finalPath); err != nil {
		os.Remove(partPath)
		return err
	}
	return nil
}

var _ provider.Provider = (*Provider)(nil)
