package signature

import (
	"crypto/ed25519"
	"encoding/base64"
	"time"

	"github.com/bindleproject/bindle/internal/invoice"
)

// Sign appends a new signature entry to inv for the given author and role,
// using privKey. It fails with ErrInvalidRole for an unrecognized role, and
// with ErrDuplicateSignature if the invoice already carries a signature from
// the same public key (any role) — see SPEC_FULL.md §4.2 and invariant I4.
// author need not appear in the invoice's author list: a Proxy or Host
// signing a third party's invoice is a normal, spec-legal operation.
//
// Grounded on other_examples/05435acc_suborbital-go-bindle__types-signature.go.go's
// GenerateSignature.
func Sign(inv *invoice.Invoice, author string, role Role, privKey ed25519.PrivateKey) error {
	if !role.IsValid() {
		return ErrInvalidRole
	}

	pub := privKey.Public().(ed25519.PublicKey)
	pubEncoded := base64.StdEncoding.EncodeToString(pub)
	if inv.HasSignatureFromKey(pubEncoded) {
		return ErrDuplicateSignature
	}

	cleartext := inv.Cleartext(author, string(role))
	sig := ed25519.Sign(privKey, cleartext)

	inv.Signature = append(inv.Signature, invoice.Signature{
		By:        author,
		Signature: base64.StdEncoding.EncodeToString(sig),
		Key:       pubEncoded,
		Role:      string(role),
		At:        time.Now().Unix(),
	})
	return nil
}
