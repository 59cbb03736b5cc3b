package file

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

	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/provider"
	"github.com/bindleproject/bindle/internal/search"
	"github.com/bindleproject/bindle/internal/signature"
)

func signedInvoice(t *testing.T, name, version string, parcelData []byte) (invoice.Invoice, []byte) {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatal(err)
	}
	sha := sha256Hex(parcelData)
	inv := invoice.Invoice{
		BindleVersion: invoice.BindleVersion1,
		Bindle: invoice.BindleSpec{
			Name:    name,
			Version: version,
			Authors: []string{"tester"},
		},
		Parcel: []invoice.Parcel{
			{Label: invoice.Label{SHA256: sha, Name: "payload.bin", MediaType: "application/octet-stream", Size: uint64(len(parcelData))}},
		},
	}
	if err := signature.Sign(&inv, "tester", signature.RoleCreator, priv); err != nil {
		t.Fatal(err)
	}
	_ = pub
	return inv, parcelData
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := New(context.Background(), t.TempDir(), search.New())
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func verifiedInvoice(inv invoice.Invoice) signature.Verified {
	return signature.MarkVerified(signature.MarkSigned(&inv))
}

func TestCreateAndGetInvoice(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("hello world"))

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

func TestCreateInvoiceRejectsSecondCreate(t *testing.T) {
	p := newTestProvider(t)
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("data"))

	if _, _, err := p.CreateInvoice(context.Background(), verifiedInvoice(inv)); err != nil {
		t.Fatal(err)
	}
	_, _, err := p.CreateInvoice(context.Background(), verifiedInvoice(inv))
	if !errors.Is(err, provider.ErrExists) {
		t.Fatalf("expected ErrExists on a second create, got %v", err)
	}
}

func TestCreateInvoiceRejectsYanked(t *testing.T) {
	p := newTestProvider(t)
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("data"))
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
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("data"))

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
		t.Fatalf("expected yanked invoice still fetchable via GetYankedInvoice: %v", err)
	}
}

func TestCreateAndGetParcel(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	payload := []byte("the quick brown fox")
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", payload)

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

func TestCreateParcelRejectsSecondCreate(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	payload := []byte("the quick brown fox")
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", payload)

	created, _, err := p.CreateInvoice(ctx, verifiedInvoice(inv))
	if err != nil {
		t.Fatal(err)
	}
	bindleID, _ := created.ID()
	sha := created.Parcel[0].Label.SHA256

	if err := p.CreateParcel(ctx, bindleID, sha, bytes.NewReader(payload)); err != nil {
		t.Fatal(err)
	}
	err = p.CreateParcel(ctx, bindleID, sha, bytes.NewReader(payload))
	if !errors.Is(err, provider.ErrExists) {
		t.Fatalf("expected ErrExists on a second create, got %v", err)
	}
}

func TestCreateParcelRejectsSizeMismatch(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	payload := []byte("the quick brown fox")
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", payload)

	created, _, err := p.CreateInvoice(ctx, verifiedInvoice(inv))
	if err != nil {
		t.Fatal(err)
	}
	bindleID, _ := created.ID()
	sha := created.Parcel[0].Label.SHA256

	err = p.CreateParcel(ctx, bindleID, sha, bytes.NewReader([]byte("short")))
	if !errors.Is(err, provider.ErrSizeMismatch) {
		t.Fatalf("expected ErrSizeMismatch, got %v", err)
	}
}

func TestCreateParcelRejectsDigestMismatch(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	payload := []byte("the quick brown fox")
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", payload)

	created, _, err := p.CreateInvoice(ctx, verifiedInvoice(inv))
	if err != nil {
		t.Fatal(err)
	}
	bindleID, _ := created.ID()
	sha := created.Parcel[0].Label.SHA256

	wrongButSameLength := make([]byte, len(payload))
	copy(wrongButSameLength, payload)
	wrongButSameLength[0] = 'X'

	err = p.CreateParcel(ctx, bindleID, sha, bytes.NewReader(wrongButSameLength))
	if !errors.Is(err, provider.ErrDigestMismatch) {
		t.Fatalf("expected ErrDigestMismatch, got %v", err)
	}
}

func TestCreateParcelRejectsUnknownSha(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("data"))

	created, _, err := p.CreateInvoice(ctx, verifiedInvoice(inv))
	if err != nil {
		t.Fatal(err)
	}
	bindleID, _ := created.ID()

	err = p.CreateParcel(ctx, bindleID, "deadbeef", bytes.NewReader([]byte("x")))
	if !errors.Is(err, provider.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unlabeled sha, got %v", err)
	}
}

func TestWarmIndexRebuildsSearchIndex(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	idx1 := search.New()
	p1, err := New(ctx, dir, idx1)
	if err != nil {
		t.Fatal(err)
	}
	inv, _ := signedInvoice(t, "enterprise.com/warpcore", "1.0.0", []byte("data"))
	if _, _, err := p1.CreateInvoice(ctx, verifiedInvoice(inv)); err != nil {
		t.Fatal(err)
	}

	idx2 := search.New()
	if _, err := New(ctx, dir, idx2); err != nil {
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

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
