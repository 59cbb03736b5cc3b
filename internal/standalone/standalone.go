// Package standalone reads and writes self-contained directory-tree
// bindles for offline transport (C11), grounded on
// original_source/src/standalone/mod.rs and the exclusive-create/atomic-
// rename write idiom from internal/provider/file.
package standalone

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/provider"
)

const (
	// InvoiceFile is the name of the invoice manifest inside a standalone
	// bindle directory.
	InvoiceFile = "invoice.toml"
	// ParcelDir is the name of the parcels subdirectory inside a standalone
	// bindle directory.
	ParcelDir = "parcels"

	parcelSuffix = ".dat"
	partSuffix   = ".part"
	dirPerm      = 0o755
	filePerm     = 0o644
)

// ErrParcelNotInInvoice is returned when a caller attempts to write a
// parcel whose sha does not appear in the invoice being written.
var ErrParcelNotInInvoice = errors.New("standalone: parcel sha not present in invoice")

// bindleDir returns the base directory for bindleID under root: a
// directory keyed by the bindle's canonical SHA-256, per spec.md §4.10.
func bindleDir(root string, bindleID id.ID) string {
	return filepath.Join(root, bindleID.Sha())
}

// Reader exposes the invoice and parcel files of a standalone bindle
// already present on disk at root/<bindle-sha>/.
type Reader struct {
	InvoiceFile string
	ParcelDir   string
	Parcels     []string // absolute paths of every file under ParcelDir
}

// NewReader lists the standalone bindle at root for bindleID. It does not
// validate that invoice.toml exists or that the listed parcel files are
// regular files — callers read what they need and surface their own
// errors.
func NewReader(root string, bindleID id.ID) (*Reader, error) {
	base := bindleDir(root, bindleID)
	parcelDir := filepath.Join(base, ParcelDir)

	entries, err := os.ReadDir(parcelDir)
	if err != nil {
		if os.IsNotExist(err) {
			return &Reader{InvoiceFile: filepath.Join(base, InvoiceFile), ParcelDir: parcelDir}, nil
		}
		return nil, fmt.Errorf("listing parcel directory: %w", err)
	}

	r := &Reader{InvoiceFile: filepath.Join(base, InvoiceFile), ParcelDir: parcelDir}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		r.Parcels = append(r.Parcels, filepath.Join(parcelDir, e.Name()))
	}
	sort.Strings(r.Parcels)
	return r, nil
}

// ReadInvoice loads and parses the invoice file.
func (r *Reader) ReadInvoice() (invoice.Invoice, error) {
	data, err := os.ReadFile(r.InvoiceFile)
	if err != nil {
		return invoice.Invoice{}, fmt.Errorf("reading invoice file: %w", err)
	}
	var inv invoice.Invoice
	if err := invoice.Unmarshal(data, &inv); err != nil {
		return invoice.Invoice{}, fmt.Errorf("parsing invoice file: %w", err)
	}
	return inv, nil
}

// ParcelSha returns the sha256 a parcel file path was named for, derived
// from its "<sha>.dat" basename.
func ParcelSha(path string) (string, bool) {
	base := filepath.Base(path)
	sha := strings.TrimSuffix(base, parcelSuffix)
	if sha == base {
		return "", false
	}
	return sha, true
}

// Uploader is the subset of a bindle client this package needs to push a
// standalone bindle to a server. Modeled as a narrow interface (rather
// than importing pkg/client directly) to avoid a forward dependency from
// this package onto the not-yet-built client SDK; pkg/client.Client
// satisfies it.
type Uploader interface {
	CreateInvoice(ctx context.Context, inv invoice.Invoice) (invoice.Invoice, []invoice.Label, error)
	GetInvoice(ctx context.Context, bindleID id.ID) (invoice.Invoice, error)
	GetMissingParcels(ctx context.Context, bindleID id.ID) ([]invoice.Label, error)
	CreateParcel(ctx context.Context, bindleID id.ID, sha string, data io.Reader) error
}

// Push uploads this standalone bindle's invoice and parcels to a server
// via uploader, idempotently reusing an already-present invoice (refetching
// the authoritative copy rather than trusting the local one) and uploading
// only parcels the server reports missing, per spec.md §4.10.
func (r *Reader) Push(ctx context.Context, uploader Uploader) error {
	inv, err := r.ReadInvoice()
	if err != nil {
		return err
	}
	bindleID, err := inv.ID()
	if err != nil {
		return fmt.Errorf("invoice has invalid id: %w", err)
	}

	missing, err := createOrFetchMissing(ctx, uploader, inv, bindleID)
	if err != nil {
		return err
	}
	if len(missing) == 0 {
		return nil
	}

	missingByName := make(map[string]struct{}, len(missing))
	for _, label := range missing {
		missingByName[label.SHA256] = struct{}{}
	}

	for _, path := range r.Parcels {
		sha, ok := ParcelSha(path)
		if !ok {
			continue
		}
		if _, wanted := missingByName[sha]; !wanted {
			continue
		}
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("opening parcel %s: %w", sha, err)
		}
		err = uploader.CreateParcel(ctx, bindleID, sha, f)
		f.Close()
		if err != nil {
			return fmt.Errorf("uploading parcel %s: %w", sha, err)
		}
	}
	return nil
}

func createOrFetchMissing(ctx context.Context, uploader Uploader, inv invoice.Invoice, bindleID id.ID) ([]invoice.Label, error) {
	_, missing, err := uploader.CreateInvoice(ctx, inv)
	if err == nil {
		return missing, nil
	}

	// The invoice already exists: refetch the authoritative copy and its
	// missing-parcel list rather than trusting the locally supplied one.
	if _, getErr := uploader.GetInvoice(ctx, bindleID); getErr != nil {
		return nil, fmt.Errorf("creating invoice: %w (and refetch failed: %v)", err, getErr)
	}
	return uploader.GetMissingParcels(ctx, bindleID)
}

// Writer writes a standalone bindle's invoice and parcel files under
// root/<bindle-sha>/.
type Writer struct {
	base string
}

// NewWriter returns a Writer targeting root/<bindle-sha>/ for bindleID.
func NewWriter(root string, bindleID id.ID) *Writer {
	return &Writer{base: bindleDir(root, bindleID)}
}

// Write persists inv and every parcel in parcels (keyed by sha256) under
// the writer's base directory. Every key in parcels must match a parcel
// label already present in inv.
func (w *Writer) Write(inv invoice.Invoice, parcels map[string]io.Reader) error {
	if err := validateShas(inv, parcels); err != nil {
		return err
	}

	parcelDir := filepath.Join(w.base, ParcelDir)
	if err := os.MkdirAll(parcelDir, dirPerm); err != nil {
		return fmt.Errorf("creating parcel directory: %w", err)
	}

	data, err := invoice.Marshal(&inv)
	if err != nil {
		return fmt.Errorf("serializing invoice: %w", err)
	}
	if err := writeExclusive(filepath.Join(w.base, InvoiceFile), data); err != nil {
		return fmt.Errorf("writing invoice file: %w", err)
	}

	for sha, reader := range parcels {
		path := filepath.Join(parcelDir, sha+parcelSuffix)
		if err := writeExclusiveStream(path, reader); err != nil {
			return fmt.Errorf("writing parcel %s: %w", sha, err)
		}
	}
	return nil
}

func validateShas(inv invoice.Invoice, parcels map[string]io.Reader) error {
	known := make(map[string]struct{}, len(inv.Parcel))
	for _, parcel := range inv.Parcel {
		known[parcel.Label.SHA256] = struct{}{}
	}
	var offending []string
	for sha := range parcels {
		if _, ok := known[sha]; !ok {
			offending = append(offending, sha)
		}
	}
	if len(offending) > 0 {
		sort.Strings(offending)
		return fmt.Errorf("%w: %s", ErrParcelNotInInvoice, strings.Join(offending, ", "))
	}
	return nil
}

// writeExclusive writes data to path via a create-exclusive ".part" file
// and atomic rename, matching the file provider's write protocol. A stat
// check on path guards against a prior completed write — rename(2) would
// otherwise silently replace it, the same gap fixed in
// internal/provider/file's writeExclusive.
func writeExclusive(path string, data []byte) error {
	if _, err := os.Stat(path); err == nil {
		return provider.ErrExists
	} else if !os.IsNotExist(err) {
		return err
	}

	partPath := path + partSuffix
	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(partPath)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(partPath)
		return err
	}
	return os.Rename(partPath, path)
}

// writeExclusiveStream is writeExclusive for a streamed source; see its
// doc comment for the pre-write existence check.
func writeExclusiveStream(path string, data io.Reader) error {
	if _, err := os.Stat(path); err == nil {
		return provider.ErrExists
	} else if !os.IsNotExist(err) {
		return err
	}

	partPath := path + partSuffix
	f, err := os.OpenFile(partPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, filePerm)
	if err != nil {
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
	return os.Rename(partPath, path)
}
