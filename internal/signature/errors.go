package signature

import "errors"

// Sentinel errors for the signature engine, mirroring the error taxonomy in
// SPEC_FULL.md §7. Grounded on pkg/database/errors.go's sentinel style.
var (
	ErrInvalidRole           = errors.New("invalid signature role")
	ErrSigningFailed         = errors.New("signing failed")
	ErrCorruptKey            = errors.New("signature key is corrupt")
	ErrCorruptSignature      = errors.New("signature block is corrupt")
	ErrUnverified            = errors.New("signature could not be verified")
	ErrNoKnownKey            = errors.New("no known key signed this invoice")
	ErrDuplicateSignature    = errors.New("a signature from this key already exists on the invoice")
	ErrSignatureKeyRoleMismatch = errors.New("signature key is not valid for the requested role")
)
