package signature

import "github.com/bindleproject/bindle/internal/invoice"

// Signed wraps an invoice that has been through a signing operation of this
// package. It is a compile-time marker, not a runtime check: the unexported
// field can only be populated by MarkSigned, so every Signed value comes from
// an explicit MarkSigned call. MarkSigned itself does not inspect the
// invoice's signatures. See SPEC_FULL.md §4.2.
type Signed struct {
	inv *invoice.Invoice
}

// Unwrap returns the underlying invoice.
func (s Signed) Unwrap() *invoice.Invoice { return s.inv }

// MarkSigned wraps inv as Signed. Call this once the invoice carries every
// signature the caller's policy requires.
func MarkSigned(inv *invoice.Invoice) Signed {
	return Signed{inv: inv}
}

// Verified wraps a Signed invoice that has additionally satisfied a
// VerificationStrategy against a keyring. Provider.CreateInvoice requires
// this marker on its input.
type Verified struct {
	Signed
}

// MarkVerified wraps s as Verified after a successful strategy.Verify call.
func MarkVerified(s Signed) Verified {
	return Verified{Signed: s}
}
