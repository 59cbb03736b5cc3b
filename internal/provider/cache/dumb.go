// Package cache implements DumbCache (C9): a Provider that serves
// everything it can from a local provider, falling back to a remote
// provider on a miss and opportunistically writing the fetched value back
// to local storage. Entries never expire. Grounded on
// original_source/src/cache/dumb.rs.
package cache

import (
	"context"
	"errors"
	"io"
	"log"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/provider"
	"github.com/bindleproject/bindle/internal/signature"
)

// ErrReadOnly is returned by operations a cache does not support:
// invoices and parcels may only be created against the upstream provider.
var ErrReadOnly = errors.New("this cache implementation does not allow creating invoices or parcels")

// DumbCache combines a local and remote provider. Reads consult local
// first; a miss is fetched from remote and opportunistically copied into
// local. Writes other than YankInvoice (a local-only operation) are
// rejected.
type DumbCache struct {
	local  provider.Provider
	remote provider.Provider
	logger *log.Logger
}

// New builds a DumbCache over the given local and remote providers.
func New(local, remote provider.Provider, logger *log.Logger) *DumbCache {
	if logger == nil {
		logger = log.New(log.Writer(), "[DumbCache] ", log.LstdFlags)
	}
	return &DumbCache{local: local, remote: remote, logger: logger}
}

// CreateInvoice is not supported by a cache; invoices are created against
// the real upstream provider.
func (c *DumbCache) CreateInvoice(ctx context.Context, sv signature.Verified) (invoice.Invoice, []invoice.Label, error) {
	return invoice.Invoice{}, nil, ErrReadOnly
}

// GetYankedInvoice serves from local, falling back to remote on a miss and
// caching the result locally.
func (c *DumbCache) GetYankedInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error) {
	inv, err := c.local.GetYankedInvoice(ctx, bindleID)
	if err == nil {
		return inv, nil
	}
	if !errors.Is(err, provider.ErrNotFound) {
		return invoice.Invoice{}, err
	}

	inv, err = c.remote.GetYankedInvoice(ctx, bindleID)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if _, _, cacheErr := c.local.CreateInvoice(ctx, signature.MarkVerified(signature.MarkSigned(&inv))); cacheErr != nil {
		c.logger.Printf("fetched invoice from upstream but could not cache locally: %v", cacheErr)
	}
	return inv, nil
}

// GetInvoice excludes yanked invoices.
func (c *DumbCache) GetInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error) {
	inv, err := c.GetYankedInvoice(ctx, bindleID)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if inv.IsYanked() {
		return invoice.Invoice{}, provider.ErrYanked
	}
	return inv, nil
}

// YankInvoice updates only the local cache entry.
func (c *DumbCache) YankInvoice(ctx context.Context, bindleID id.ID) error {
	return c.local.YankInvoice(ctx, bindleID)
}

// ValidateParcel consults local if present, otherwise remote.
func (c *DumbCache) ValidateParcel(ctx context.Context, bindleID id.ID, sha string) (invoice.Label, error) {
	label, err := c.local.ValidateParcel(ctx, bindleID, sha)
	if err == nil {
		return label, nil
	}
	if !errors.Is(err, provider.ErrNotFound) {
		return invoice.Label{}, err
	}
	return c.remote.ValidateParcel(ctx, bindleID, sha)
}

// CreateParcel is not supported by a cache.
func (c *DumbCache) CreateParcel(ctx context.Context, bindleID id.ID, sha string, data io.Reader) error {
	return ErrReadOnly
}

// GetParcel serves from local, falling back to remote on a miss and
// opportunistically caching the bytes locally.
func (c *DumbCache) GetParcel(ctx context.Context, bindleID id.ID, sha string) (io.ReadCloser, error) {
	rc, err := c.local.GetParcel(ctx, bindleID, sha)
	if err == nil {
		return rc, nil
	}
	if !errors.Is(err, provider.ErrNotFound) {
		return nil, err
	}

	remoteStream, err := c.remote.GetParcel(ctx, bindleID, sha)
	if err != nil {
		return nil, err
	}

	if cacheErr := c.local.CreateParcel(ctx, bindleID, sha, remoteStream); cacheErr != nil {
		c.logger.Printf("fetched parcel from upstream but could not cache locally: %v", cacheErr)
		remoteStream.Close()
		return c.remote.GetParcel(ctx, bindleID, sha)
	}
	remoteStream.Close()
	return c.local.GetParcel(ctx, bindleID, sha)
}

// ParcelExists checks only the local provider, matching the Rust
// reference's comment that a cache's existence check is local-only.
func (c *DumbCache) ParcelExists(ctx context.Context, bindleID id.ID, sha string) (bool, error) {
	return c.local.ParcelExists(ctx, bindleID, sha)
}

var _ provider.Provider = (*DumbCache)(nil)
