package client

import (
	"context"
	"fmt"
	"io"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/standalone"
)

// PushBindle reads the standalone bindle at root/<bindle-sha>/ and uploads
// its invoice and missing parcels to this client's server, per spec.md
// §4.10. Client satisfies standalone.Uploader.
func (c *Client) PushBindle(ctx context.Context, root string, bindleID id.ID) error {
	r, err := standalone.NewReader(root, bindleID)
	if err != nil {
		return fmt.Errorf("reading standalone bindle: %w", err)
	}
	return r.Push(ctx, c)
}

// PullBindle fetches bindleID's invoice and every referenced parcel from
// the server and writes them as a standalone bindle under root.
func (c *Client) PullBindle(ctx context.Context, root string, bindleID id.ID) error {
	inv, err := c.GetYankedInvoice(ctx, bindleID)
	if err != nil {
		return fmt.Errorf("fetching invoice: %w", err)
	}

	parcels := make(map[string]io.Reader, len(inv.Parcel))
	closers := make([]io.Closer, 0, len(inv.Parcel))
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()
	for _, parcel := range inv.Parcel {
		rc, err := c.GetParcel(ctx, bindleID, parcel.Label.SHA256)
		if err != nil {
			return fmt.Errorf("fetching parcel %s: %w", parcel.Label.SHA256, err)
		}
		closers = append(closers, rc)
		parcels[parcel.Label.SHA256] = rc
	}

	w := standalone.NewWriter(root, bindleID)
	return w.Write(inv, parcels)
}

var _ standalone.Uploader = (*Client)(nil)
