// Package client implements the Bindle client SDK (C12): a typed HTTP
// client over the wire protocol served by internal/server, plus bulk
// push/pull helpers composing internal/standalone. Grounded on
// original_source/src/client/mod.rs, with functional-options/constructor
// style from pkg/database/client.go's ClientOption/NewClient(cfg, opts...).
package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"

	"github.com/google/uuid"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/search"
)

const (
	invoicePath  = "/v1/_i"
	queryPath    = "/v1/_q"
	missingPath  = "/v1/_r/missing"
	tomlMIMEType = "application/toml"
)

// Client is a typed HTTP client for a single bindle server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      TokenManager
	logger     *log.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithToken attaches a TokenManager used to authenticate every request.
func WithToken(t TokenManager) Option {
	return func(c *Client) { c.token = t }
}

// WithLogger sets the client's logger.
func WithLogger(logger *log.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// New returns a Client targeting baseURL (e.g. "https://bindle.example.com").
func New(baseURL string, opts ...Option) (*Client, error) {
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("invalid URL given: %w", err)
	}
	c := &Client{
		baseURL:    baseURL,
		httpClient: http.DefaultClient,
		token:      NoToken{},
		logger:     log.New(log.Writer(), "[BindleClient] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// do builds and issues a request, tagging it with a fresh request ID and
// the configured credentials.
func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Request-Id", uuid.New().String())
	if err := c.token.Apply(req); err != nil {
		return nil, fmt.Errorf("applying credentials: %w", err)
	}
	return c.httpClient.Do(req)
}

// CreateInvoice POSTs inv to the server, returning the stored invoice and
// any parcel labels it has not yet received (202-style acknowledgement).
func (c *Client) CreateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, []invoice.Label, error) {
	data, err := invoice.Marshal(&inv)
	if err != nil {
		return invoice.Invoice{}, nil, fmt.Errorf("serializing invoice: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+invoicePath, bytes.NewReader(data))
	if err != nil {
		return invoice.Invoice{}, nil, err
	}
	req.Header.Set("Content-Type", tomlMIMEType)
	req.Header.Set("X-Request-Id", uuid.New().String())
	if err := c.token.Apply(req); err != nil {
		return invoice.Invoice{}, nil, fmt.Errorf("applying credentials: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return invoice.Invoice{}, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return invoice.Invoice{}, nil, err
	}
	if err := statusToError(resp.StatusCode, inv.Name()); err != nil {
		return invoice.Invoice{}, nil, err
	}

	var result struct {
		Invoice invoice.Invoice `toml:"invoice"`
		Missing []invoice.Label `toml:"missing,omitempty"`
	}
	// The server returns the bare invoice when there is nothing missing, or
	// the invoice/missing envelope otherwise; try the envelope first and
	// fall back to a bare invoice.
	if err := tomlUnmarshal(body, &result); err != nil || result.Invoice.BindleVersion == "" {
		var bare invoice.Invoice
		if err := invoice.Unmarshal(body, &bare); err != nil {
			return invoice.Invoice{}, nil, fmt.Errorf("parsing create-invoice response: %w", err)
		}
		return bare, nil, nil
	}
	return result.Invoice, result.Missing, nil
}

// GetInvoice fetches a non-yanked invoice.
func (c *Client) GetInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error) {
	return c.getInvoice(ctx, bindleID, false)
}

// GetYankedInvoice fetches an invoice, including yanked ones.
func (c *Client) GetYankedInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error) {
	return c.getInvoice(ctx, bindleID, true)
}

func (c *Client) getInvoice(ctx context.Context, bindleID id.ID, yanked bool) (invoice.Invoice, error) {
	path := invoicePath + "/" + url.PathEscape(bindleID.String())
	if yanked {
		path += "?yanked=true"
	}
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return invoice.Invoice{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return invoice.Invoice{}, err
	}
	if err := statusToError(resp.StatusCode, bindleID.String()); err != nil {
		return invoice.Invoice{}, err
	}
	var inv invoice.Invoice
	if err := invoice.Unmarshal(body, &inv); err != nil {
		return invoice.Invoice{}, fmt.Errorf("parsing invoice response: %w", err)
	}
	return inv, nil
}

// YankInvoice yanks the given bindle.
func (c *Client) YankInvoice(ctx context.Context, bindleID id.ID) error {
	path := invoicePath + "/" + url.PathEscape(bindleID.String())
	resp, err := c.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusToError(resp.StatusCode, bindleID.String())
}

// CreateParcel uploads the raw parcel bytes in data under bindleID@sha.
func (c *Client) CreateParcel(ctx context.Context, bindleID id.ID, sha string, data io.Reader) error {
	path := invoicePath + "/" + url.PathEscape(bindleID.String()) + "@" + sha
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, data)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Request-Id", uuid.New().String())
	if err := c.token.Apply(req); err != nil {
		return fmt.Errorf("applying credentials: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusToError(resp.StatusCode, sha)
}

// GetParcel streams the raw bytes of the parcel identified by sha.
func (c *Client) GetParcel(ctx context.Context, bindleID id.ID, sha string) (io.ReadCloser, error) {
	path := invoicePath + "/" + url.PathEscape(bindleID.String()) + "@" + sha
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	if err := statusToError(resp.StatusCode, sha); err != nil {
		resp.Body.Close()
		return nil, err
	}
	return resp.Body, nil
}

// GetMissingParcels returns labels for every parcel bindleID's invoice
// references but the server has not yet received.
func (c *Client) GetMissingParcels(ctx context.Context, bindleID id.ID) ([]invoice.Label, error) {
	path := missingPath + "/" + url.PathEscape(bindleID.String())
	resp, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := statusToError(resp.StatusCode, bindleID.String()); err != nil {
		return nil, err
	}
	var labels struct {
		Missing []invoice.Label `toml:"missing,omitempty"`
	}
	if err := tomlUnmarshal(body, &labels); err != nil {
		return nil, fmt.Errorf("parsing missing-parcels response: %w", err)
	}
	return labels.Missing, nil
}

// QueryInvoices runs a search query against the server's index.
func (c *Client) QueryInvoices(ctx context.Context, term, versionReq string, opts search.Options) (search.Matches, error) {
	q := url.Values{}
	q.Set("q", term)
	q.Set("v", versionReq)
	q.Set("offset", fmt.Sprintf("%d", opts.Offset))
	q.Set("limit", fmt.Sprintf("%d", opts.Limit))
	if opts.Strict {
		q.Set("strict", "true")
	}
	if opts.Yanked {
		q.Set("yanked", "true")
	}

	resp, err := c.do(ctx, http.MethodGet, queryPath+"?"+q.Encode(), nil)
	if err != nil {
		return search.Matches{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return search.Matches{}, err
	}
	if err := statusToError(resp.StatusCode, term); err != nil {
		return search.Matches{}, err
	}
	var matches search.Matches
	if err := tomlUnmarshal(body, &matches); err != nil {
		return search.Matches{}, fmt.Errorf("parsing query response: %w", err)
	}
	return matches, nil
}

func statusToError(status int, subject string) error {
	switch status {
	case http.StatusOK, http.StatusCreated, http.StatusAccepted, http.StatusNoContent:
		return nil
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrInvoiceNotFound, subject)
	case http.StatusConflict:
		return fmt.Errorf("%w: %s", ErrInvoiceAlreadyExists, subject)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrInvoiceYanked, subject)
	case http.StatusUnauthorized:
		return ErrUnauthorized
	case http.StatusBadRequest:
		return fmt.Errorf("%w: %s", ErrInvalidRequest, subject)
	case http.StatusInternalServerError:
		return fmt.Errorf("%w: %s", ErrServerError, subject)
	default:
		return fmt.Errorf("unexpected status %d for %s", status, subject)
	}
}
