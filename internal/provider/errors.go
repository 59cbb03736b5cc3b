// Package provider defines the abstract storage contract (C6) shared by the
// file, embedded-db, cache, and proxy backends.
package provider

import "errors"

// Sentinel errors per the provider error taxonomy in SPEC_FULL.md §7.
// Grounded on pkg/database/errors.go and pkg/ledger/errors.go's
// sentinel-errors.New style.
var (
	ErrNotFound        = errors.New("not found")
	ErrExists          = errors.New("already exists")
	ErrYanked          = errors.New("invoice is yanked")
	ErrCreateYanked    = errors.New("cannot create an invoice already marked yanked")
	ErrInvalidID       = errors.New("invalid bindle id")
	ErrDigestMismatch  = errors.New("digest mismatch")
	ErrSizeMismatch    = errors.New("size mismatch")
	ErrWriteInProgress = errors.New("write already in progress")
	ErrUnserializable  = errors.New("unserializable value")
)
