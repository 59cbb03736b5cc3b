// Package proxy implements Proxy (C9): a Provider that forwards every
// operation to an upstream bindle server over HTTP, signing fetched
// invoices under the Proxy role before returning them. Grounded on
// original_source/src/proxy/mod.rs.
package proxy

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/pelletier/go-toml/v2"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/provider"
	"github.com/bindleproject/bindle/internal/signature"
)

const basePath = "/v1/_i"

// Proxy forwards requests to an upstream bindle server. It signs every
// invoice it fetches under the configured Proxy identity before returning
// it to the caller.
type Proxy struct {
	baseURL    string
	httpClient *http.Client
	author     string
	privateKey ed25519.PrivateKey
}

// New builds a Proxy targeting baseURL, signing fetched invoices as author
// under the Proxy role with privateKey.
func New(baseURL string, httpClient *http.Client, author string, privateKey ed25519.PrivateKey) *Proxy {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Proxy{baseURL: baseURL, httpClient: httpClient, author: author, privateKey: privateKey}
}

func (p *Proxy) invoiceURL(bindleID id.ID) string {
	return fmt.Sprintf("%s%s/%s", p.baseURL, basePath, url.PathEscape(bindleID.String()))
}

func (p *Proxy) parcelURL(bindleID id.ID, sha string) string {
	return fmt.Sprintf("%s@%s", p.invoiceURL(bindleID), sha)
}

// CreateInvoice forwards the signed invoice to the upstream server as-is.
func (p *Proxy) CreateInvoice(ctx context.Context, sv signature.Verified) (invoice.Invoice, []invoice.Label, error) {
	inv := *sv.Unwrap()
	data, err := invoice.Marshal(&inv)
	if err != nil {
		return invoice.Invoice{}, nil, fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}

	reqURL := fmt.Sprintf("%s%s", p.baseURL, basePath)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(data))
	if err != nil {
		return invoice.Invoice{}, nil, err
	}
	req.Header.Set("Content-Type", "application/toml")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return invoice.Invoice{}, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return invoice.Invoice{}, nil, err
	}
	if err := statusToError(resp.StatusCode); err != nil {
		return invoice.Invoice{}, nil, err
	}

	// The upstream returns the invoice/missing envelope when parcels are
	// missing and the bare invoice otherwise.
	var envelope struct {
		Invoice invoice.Invoice `toml:"invoice"`
		Missing []invoice.Label `toml:"missing,omitempty"`
	}
	if err := toml.Unmarshal(body, &envelope); err == nil && envelope.Invoice.BindleVersion != "" {
		return envelope.Invoice, envelope.Missing, nil
	}
	var created invoice.Invoice
	if err := invoice.Unmarshal(body, &created); err != nil {
		return invoice.Invoice{}, nil, fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}
	return created, nil, nil
}

// GetYankedInvoice fetches the invoice (including yanked) and signs it
// under the Proxy role before returning.
func (p *Proxy) GetYankedInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error) {
	reqURL := p.invoiceURL(bindleID) + "?yanked=true"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return invoice.Invoice{}, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return invoice.Invoice{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if err := statusToError(resp.StatusCode); err != nil {
		return invoice.Invoice{}, err
	}

	var inv invoice.Invoice
	if err := invoice.Unmarshal(body, &inv); err != nil {
		return invoice.Invoice{}, fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}

	if err := signature.Sign(&inv, p.author, signature.RoleProxy, p.privateKey); err != nil {
		return invoice.Invoice{}, fmt.Errorf("signing fetched invoice as proxy: %w", err)
	}
	return inv, nil
}

// GetInvoice fetches a non-yanked invoice.
func (p *Proxy) GetInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error) {
	reqURL := p.invoiceURL(bindleID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return invoice.Invoice{}, err
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return invoice.Invoice{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if err := statusToError(resp.StatusCode); err != nil {
		return invoice.Invoice{}, err
	}

	var inv invoice.Invoice
	if err := invoice.Unmarshal(body, &inv); err != nil {
		return invoice.Invoice{}, fmt.Errorf("%w: %v", provider.ErrUnserializable, err)
	}
	if err := signature.Sign(&inv, p.author, signature.RoleProxy, p.privateKey); err != nil {
		return invoice.Invoice{}, fmt.Errorf("signing fetched invoice as proxy: %w", err)
	}
	return inv, nil
}

// YankInvoice forwards a DELETE to the upstream server.
func (p *Proxy) YankInvoice(ctx context.Context, bindleID id.ID) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, p.invoiceURL(bindleID), nil)
	if err != nil {
		return err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusToError(resp.StatusCode)
}

// ValidateParcel issues a HEAD against the parcel URL and treats a 200 as
// validated existence; the upstream server is the sole source of truth for
// label metadata, so the label itself cannot be recovered from a HEAD and
// a minimal placeholder is returned.
func (p *Proxy) ValidateParcel(ctx context.Context, bindleID id.ID, sha string) (invoice.Label, error) {
	exists, err := p.ParcelExists(ctx, bindleID, sha)
	if err != nil {
		return invoice.Label{}, err
	}
	if !exists {
		return invoice.Label{}, provider.ErrNotFound
	}
	return invoice.Label{SHA256: sha}, nil
}

// CreateParcel uploads data as the raw request body.
func (p *Proxy) CreateParcel(ctx context.Context, bindleID id.ID, sha string, data io.Reader) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.parcelURL(bindleID, sha), data)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusToError(resp.StatusCode)
}

// GetParcel streams the parcel bytes from the upstream server.
func (p *Proxy) GetParcel(ctx context.Context, bindleID id.ID, sha string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.parcelURL(bindleID, sha), nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if err := statusToError(resp.StatusCode); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// ParcelExists issues a HEAD request against the parcel URL.
func (p *Proxy) ParcelExists(ctx context.Context, bindleID id.ID, sha string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, p.parcelURL(bindleID, sha), nil)
	if err != nil {
		return false, err
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, statusToError(resp.StatusCode)
	}
}

func statusToError(status int) error {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return provider.ErrNotFound
	case http.StatusConflict:
		return provider.ErrExists
	case http.StatusForbidden:
		return provider.ErrYanked
	default:
		return fmt.Errorf("upstream returned unexpected status %d", status)
	}
}

var _ provider.Provider = (*Proxy)(nil)
