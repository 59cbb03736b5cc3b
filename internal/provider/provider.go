package provider

import (
	"context"
	"io"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/signature"
)

// Provider is the abstract create/get/yank/validate contract implemented by
// every storage backend (file, embedded-db, cache, proxy). context.Context
// is threaded through every method, following the interface shape of
// pkg/accumulate/accumulate_client.go's Client.
type Provider interface {
	// CreateInvoice persists inv if absent. It fails with ErrCreateYanked if
	// inv is yanked, or ErrExists if already present. It returns the labels
	// of any parcels the invoice references but that are not yet stored.
	CreateInvoice(ctx context.Context, inv signature.Verified) (invoice.Invoice, []invoice.Label, error)

	// GetInvoice fetches an invoice, excluding yanked ones (ErrYanked).
	GetInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error)

	// GetYankedInvoice fetches an invoice including yanked ones.
	GetYankedInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error)

	// YankInvoice idempotently sets yanked=true.
	YankInvoice(ctx context.Context, bindleID id.ID) error

	// ValidateParcel fetches bindleID's invoice (yanked OK) and returns the
	// label whose sha256 matches sha, or ErrNotFound.
	ValidateParcel(ctx context.Context, bindleID id.ID, sha string) (invoice.Label, error)

	// CreateParcel streams data into storage, validating its SHA-256 and
	// byte count against the invoice's label for sha.
	CreateParcel(ctx context.Context, bindleID id.ID, sha string, data io.Reader) error

	// GetParcel returns a stream of the parcel's bytes.
	GetParcel(ctx context.Context, bindleID id.ID, sha string) (io.ReadCloser, error)

	// ParcelExists reports whether sha is stored for bindleID.
	ParcelExists(ctx context.Context, bindleID id.ID, sha string) (bool, error)
}
