package standalone

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/provider"
)

func testInvoice(t *testing.T, name, version string, payloads ...[]byte) (invoice.Invoice, map[string][]byte) {
	t.Helper()
	inv := invoice.Invoice{
		BindleVersion: invoice.BindleVersion1,
		Bindle:        invoice.BindleSpec{Name: name, Version: version},
	}
	byShaPayload := map[string][]byte{}
	for i, payload := range payloads {
		sum := sha256.Sum256(payload)
		sha := hex.EncodeToString(sum[:])
		inv.Parcel = append(inv.Parcel, invoice.Parcel{Label: invoice.Label{
			SHA256: sha,
			Name:   "parcel" + string(rune('0'+i)),
			Size:   uint64(len(payload)),
		}})
		byShaPayload[sha] = payload
	}
	return inv, byShaPayload
}

func TestWriteThenReadRoundTrip(t *testing.T) {
	root := t.TempDir()
	p1 := []byte("first parcel content")
	p2 := []byte("second parcel content")
	inv, byShaPayload := testInvoice(t, "example.com/roundtrip", "1.0.0", p1, p2)
	bindleID, err := inv.ID()
	if err != nil {
		t.Fatal(err)
	}

	parcels := map[string]io.Reader{}
	for sha, payload := range byShaPayload {
		parcels[sha] = bytes.NewReader(payload)
	}
	w := NewWriter(root, bindleID)
	if err := w.Write(inv, parcels); err != nil {
		t.Fatalf("Write: %v", err)
	}

	r, err := NewReader(root, bindleID)
	if err != nil {
		t.Fatal(err)
	}
	gotInv, err := r.ReadInvoice()
	if err != nil {
		t.Fatal(err)
	}
	if gotInv.Name() != inv.Name() {
		t.Fatalf("name mismatch: got %q want %q", gotInv.Name(), inv.Name())
	}
	if len(r.Parcels) != 2 {
		t.Fatalf("expected 2 parcel files, got %d", len(r.Parcels))
	}
	for _, path := range r.Parcels {
		sha, ok := ParcelSha(path)
		if !ok {
			t.Fatalf("could not derive sha from %s", path)
		}
		want, ok := byShaPayload[sha]
		if !ok {
			t.Fatalf("unexpected parcel sha %s on disk", sha)
		}
		got, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("parcel %s bytes differ after round-trip", sha)
		}
	}
}

func TestWriteRejectsSecondWrite(t *testing.T) {
	root := t.TempDir()
	payload := []byte("only parcel")
	inv, byShaPayload := testInvoice(t, "example.com/double-write", "1.0.0", payload)
	bindleID, err := inv.ID()
	if err != nil {
		t.Fatal(err)
	}

	parcelsFor := func() map[string]io.Reader {
		out := map[string]io.Reader{}
		for sha, p := range byShaPayload {
			out[sha] = bytes.NewReader(p)
		}
		return out
	}

	w := NewWriter(root, bindleID)
	if err := w.Write(inv, parcelsFor()); err != nil {
		t.Fatalf("first Write: %v", err)
	}
	err = w.Write(inv, parcelsFor())
	if !errors.Is(err, provider.ErrExists) {
		t.Fatalf("expected ErrExists on a second write, got %v", err)
	}
}

func TestWriteRejectsParcelNotInInvoice(t *testing.T) {
	root := t.TempDir()
	inv, _ := testInvoice(t, "example.com/strict", "1.0.0", []byte("known"))
	bindleID, err := inv.ID()
	if err != nil {
		t.Fatal(err)
	}

	w := NewWriter(root, bindleID)
	err = w.Write(inv, map[string]io.Reader{
		"deadbeef00000000000000000000000000000000000000000000000000000000": bytes.NewReader([]byte("not declared")),
	})
	if !errors.Is(err, ErrParcelNotInInvoice) {
		t.Fatalf("expected ErrParcelNotInInvoice, got %v", err)
	}
}

type fakeUploader struct {
	invoices        map[string]invoice.Invoice
	parcels         map[string][]byte
	alreadyExists   bool
	createInvoiceFn func(inv invoice.Invoice) (invoice.Invoice, []invoice.Label, error)
}

func (f *fakeUploader) CreateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, []invoice.Label, error) {
	if f.createInvoiceFn != nil {
		return f.createInvoiceFn(inv)
	}
	var missing []invoice.Label
	for _, p := range inv.Parcel {
		if _, ok := f.parcels[p.Label.SHA256]; !ok {
			missing = append(missing, p.Label)
		}
	}
	return inv, missing, nil
}

func (f *fakeUploader) GetInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error) {
	return f.invoices[bindleID.Sha()], nil
}

func (f *fakeUploader) GetMissingParcels(ctx context.Context, bindleID id.ID) ([]invoice.Label, error) {
	inv := f.invoices[bindleID.Sha()]
	var missing []invoice.Label
	for _, p := range inv.Parcel {
		if _, ok := f.parcels[p.Label.SHA256]; !ok {
			missing = append(missing, p.Label)
		}
	}
	return missing, nil
}

func (f *fakeUploader) CreateParcel(ctx context.Context, bindleID id.ID, sha string, data io.Reader) error {
	b, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	if f.parcels == nil {
		f.parcels = map[string][]byte{}
	}
	f.parcels[sha] = b
	return nil
}

func TestPushUploadsOnlyMissingParcels(t *testing.T) {
	root := t.TempDir()
	p1 := []byte("alpha")
	p2 := []byte("beta")
	inv, byShaPayload := testInvoice(t, "example.com/push", "1.0.0", p1, p2)
	bindleID, _ := inv.ID()

	parcels := map[string]io.Reader{}
	for sha, payload := range byShaPayload {
		parcels[sha] = bytes.NewReader(payload)
	}
	w := NewWriter(root, bindleID)
	if err := w.Write(inv, parcels); err != nil {
		t.Fatal(err)
	}

	r, err := NewReader(root, bindleID)
	if err != nil {
		t.Fatal(err)
	}

	uploader := &fakeUploader{invoices: map[string]invoice.Invoice{bindleID.Sha(): inv}}
	if err := r.Push(context.Background(), uploader); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(uploader.parcels) != 2 {
		t.Fatalf("expected both parcels uploaded, got %d", len(uploader.parcels))
	}
}

func TestPushSkipsWhenInvoiceAlreadyExists(t *testing.T) {
	root := t.TempDir()
	p1 := []byte("gamma")
	inv, byShaPayload := testInvoice(t, "example.com/existing", "1.0.0", p1)
	bindleID, _ := inv.ID()

	parcels := map[string]io.Reader{}
	for sha, payload := range byShaPayload {
		parcels[sha] = bytes.NewReader(payload)
	}
	w := NewWriter(root, bindleID)
	if err := w.Write(inv, parcels); err != nil {
		t.Fatal(err)
	}
	r, err := NewReader(root, bindleID)
	if err != nil {
		t.Fatal(err)
	}

	uploader := &fakeUploader{
		invoices: map[string]invoice.Invoice{bindleID.Sha(): inv},
		parcels:  map[string][]byte{},
		createInvoiceFn: func(inv invoice.Invoice) (invoice.Invoice, []invoice.Label, error) {
			return invoice.Invoice{}, nil, errors.New("invoice already exists")
		},
	}
	// Simulate the parcel already present server-side too: GetMissingParcels
	// should then report nothing left to upload.
	for sha := range byShaPayload {
		uploader.parcels[sha] = byShaPayload[sha]
	}

	if err := r.Push(context.Background(), uploader); err != nil {
		t.Fatalf("Push: %v", err)
	}
	if len(uploader.parcels) != 1 {
		t.Fatalf("expected no new parcels uploaded, got %d total", len(uploader.parcels))
	}
}
