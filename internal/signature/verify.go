package signature

import (
	"crypto/ed25519"
	"encoding/base64"

	"github.com/bindleproject/bindle/internal/invoice"
)

// VerificationStrategy verifies the signatures on an invoice against a
// keyring. Grounded on original_source/src/invoice/verification.rs and the
// AttestationStrategy interface in
// pkg/attestation/strategy/interface.go.
type VerificationStrategy interface {
	// Verify checks every signature dictated by the strategy and returns
	// nil on success, or a typed error from this package on failure.
	Verify(inv *invoice.Invoice, keyring *Keyring) error
}

var (
	greedyRoles      = []Role{RoleCreator}
	creativeRoles    = []Role{RoleCreator}
	authoritative    = []Role{RoleCreator, RoleApprover}
	exhaustiveRoles  = []Role{RoleCreator, RoleApprover, RoleHost, RoleProxy}
)

type roleStrategy struct {
	roles       []Role
	allValid    bool // verify every signature, not just target-role ones
	allVerified bool // every target-role signer must be keyring-known
	allRoles    bool // every role in `roles` must be represented
}

// CreativeIntegrity verifies that at least one Creator signature by a
// keyring-known key verifies.
func CreativeIntegrity() VerificationStrategy {
	return roleStrategy{roles: creativeRoles, allValid: false, allVerified: true, allRoles: true}
}

// AuthoritativeIntegrity verifies that at least one Creator or Approver
// signature by a keyring-known key verifies.
func AuthoritativeIntegrity() VerificationStrategy {
	return roleStrategy{roles: authoritative, allValid: false, allVerified: false, allRoles: false}
}

// GreedyVerification requires the Creator key to be known and every
// signature present to verify cryptographically.
func GreedyVerification() VerificationStrategy {
	return roleStrategy{roles: greedyRoles, allValid: true, allVerified: true, allRoles: true}
}

// ExhaustiveVerification requires all four roles to be represented, every
// signature to verify, and every signer key to be known.
func ExhaustiveVerification() VerificationStrategy {
	return roleStrategy{roles: exhaustiveRoles, allValid: true, allVerified: true, allRoles: false}
}

// MultipleAttestation requires every role in roles to be present, signed by
// a keyring-known key, and to verify.
func MultipleAttestation(roles []Role) VerificationStrategy {
	return roleStrategy{roles: roles, allValid: false, allVerified: true, allRoles: true}
}

// MultipleAttestationGreedy is MultipleAttestation plus verifying every
// other signature present.
func MultipleAttestationGreedy(roles []Role) VerificationStrategy {
	return roleStrategy{roles: roles, allValid: true, allVerified: true, allRoles: true}
}

func (s roleStrategy) Verify(inv *invoice.Invoice, keyring *Keyring) error {
	if len(inv.Signature) == 0 {
		return nil
	}

	knownKey := false
	var filledRoles []Role

	for _, sig := range inv.Signature {
		role := Role(sig.Role)
		targetRole := containsRole(s.roles, role)

		if !s.allValid && !targetRole {
			continue
		}

		if err := verifySignatureBlock(inv, sig, role); err != nil {
			return err
		}

		if !targetRole && !s.allVerified {
			continue
		}
		if s.allRoles {
			filledRoles = append(filledRoles, role)
		}

		pub, err := DecodeBase64PublicKey(sig.Key)
		if err != nil {
			return err
		}

		if keyring.Contains(pub) {
			knownKey = true
		} else if s.allVerified {
			return ErrUnverified
		}
	}

	if !knownKey {
		return ErrNoKnownKey
	}

	if s.allRoles {
		for _, want := range s.roles {
			if !containsRole(filledRoles, want) {
				return ErrUnverified
			}
		}
	}
	return nil
}

func verifySignatureBlock(inv *invoice.Invoice, sig invoice.Signature, role Role) error {
	pub, err := DecodeBase64PublicKey(sig.Key)
	if err != nil {
		return ErrCorruptKey
	}
	sigBytes, err := base64.StdEncoding.DecodeString(sig.Signature)
	if err != nil || len(sigBytes) != ed25519.SignatureSize {
		return ErrCorruptSignature
	}
	cleartext := inv.Cleartext(sig.By, string(role))
	if !ed25519.Verify(pub, cleartext, sigBytes) {
		return ErrUnverified
	}
	return nil
}

func containsRole(roles []Role, r Role) bool {
	for _, x := range roles {
		if x == r {
			return true
		}
	}
	return false
}
