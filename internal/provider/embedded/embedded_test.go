package embedded

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/provider"
	"github.com/bindleproject/bindle/internal/search"
	"github.com/bindleproject/bindle/internal/signature"
)

func signedInvoice(t *testing.T, name, version string, parcelData []byte) invoice.Invoice {
	t.Helper()
	_, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	sum := sha256.Sum256(parcelData)
	inv := invoice.Invoice{
		BindleVersion: invoice.BindleVersion1,
		Bindle: invoice.BindleSpec{
			Name:    name,
			Version: version,
			Authors: []string{"tester"},
		},
		Parcel: []invoice.Parcel{
			{Label: invoice.Label{SHA256: hex.EncodeToString(sum[:]), Name: "payload.bin", MediaType: "application/octet-stream", Size: uint64(len(parcelData))}},
		},
	}
	if err := signature.Sign(&inv, "tester", signature.RoleCreator, priv); err != nil {
		t.Fatal(err)
	}
	return inv
}

func verifiedInvoice(inv invoice.Invoice) signature.Verified {
	return signature.MarkVerified(signature.MarkSigned(&inv))
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(context.Background(), dbm.NewMemDB(), search.New())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestCreateAndGetInvoice(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	inv := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("hello world"))

	created, missing, err := p.CreateInvoice(ctx, verifiedInvoice(inv))
	if err != nil {
		t.Fatal(err)
	}
	if len(missing) != 1 {
		t.Fatalf("expected 1 missing parcel, got %d", len(missing))
	}

	bindleID, err := created.ID()
	if err != nil {
		t.Fatal(err)
	}
	got, err := p.GetInvoice(ctx, bindleID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name() != inv.Name() {
		t.Fatalf("expected name %q, got %q", inv.Name(), got.Name())
	}
}

func TestCreateInvoiceRejectsDuplicate(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	inv := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("data"))

	if _, _, err := p.CreateInvoice(ctx, verifiedInvoice(inv)); err != nil {
		t.Fatal(err)
	}
	_, _, err := p.CreateInvoice(ctx, verifiedInvoice(inv))
	if !errors.Is(err, provider.ErrExists) {
		t.Fatalf("expected ErrExists, got %v", err)
	}
}

func TestCreateInvoiceRejectsYanked(t *testing.T) {
	p := newTestProvider(t)
	inv := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("data"))
	yes := true
	inv.Yanked = &yes

	_, _, err := p.CreateInvoice(context.Background(), verifiedInvoice(inv))
	if !errors.Is(err, provider.ErrCreateYanked) {
		t.Fatalf("expected ErrCreateYanked, got %v", err)
	}
}

func TestYankInvoiceHidesFromGet(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	inv := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("data"))

	created, _, err := p.CreateInvoice(ctx, verifiedInvoice(inv))
	if err != nil {
		t.Fatal(err)
	}
	bindleID, _ := created.ID()

	if err := p.YankInvoice(ctx, bindleID); err != nil {
		t.Fatal(err)
	}
	if _, err := p.GetInvoice(ctx, bindleID); !errors.Is(err, provider.ErrYanked) {
		t.Fatalf("expected ErrYanked, got %v", err)
	}
	if _, err := p.GetYankedInvoice(ctx, bindleID); err != nil {
		t.Fatalf("expected yanked invoice still fetchable: %v", err)
	}
}

func TestCreateAndGetParcel(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	payload := []byte("the quick brown fox")
	inv := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", payload)

	created, _, err := p.CreateInvoice(ctx, verifiedInvoice(inv))
	if err != nil {
		t.Fatal(err)
	}
	bindleID, _ := created.ID()
	sha := created.Parcel[0].Label.SHA256

	if err := p.CreateParcel(ctx, bindleID, sha, bytes.NewReader(payload)); err != nil {
		t.Fatal(err)
	}

	exists, err := p.ParcelExists(ctx, bindleID, sha)
	if err != nil || !exists {
		t.Fatalf("expected parcel to exist, err=%v exists=%v", err, exists)
	}

	rc, err := p.GetParcel(ctx, bindleID, sha)
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("expected %q, got %q", payload, got)
	}
}

func TestCreateParcelRejectsMismatch(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	payload := []byte("the quick brown fox")
	inv := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", payload)

	created, _, err := p.CreateInvoice(ctx, verifiedInvoice(inv))
	if err != nil {
		t.Fatal(err)
	}
	bindleID, _ := created.ID()
	sha := created.Parcel[0].Label.SHA256

	if err := p.CreateParcel(ctx, bindleID, sha, bytes.NewReader([]byte("short"))); !errors.Is(err, provider.ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestWarmIndexRebuildsSearchIndex(t *testing.T) {
	ctx := context.Background()
	backend := dbm.NewMemDB()
	idx1 := search.New()
	p1, err := New(ctx, backend, idx1)
	if err != nil {
		t.Fatal(err)
	}
	inv := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("data"))
	if _, _, err := p1.CreateInvoice(ctx, verifiedInvoice(inv)); err != nil {
		t.Fatal(err)
	}

	idx2 := search.New()
	if _, err := New(ctx, backend, idx2); err != nil {
		t.Fatal(err)
	}
	m, err := idx2.Query("warpcore", "", search.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Invoices) != 1 {
		t.Fatalf("expected warm pass to reindex 1 invoice, got %d", len(m.Invoices))
	}
}
