package signature

import "fmt"

// NamedStrategy parses the server's --verification-strategy flag value
// (SPEC_FULL.md §6), grounded on the named-strategy lookup pattern in
// pkg/strategy/registry.go. MultipleAttestation[Role,...] and
// MultipleAttestationGreedy[Role,...] take a bracketed, comma-separated role
// list.
func NamedStrategy(name string, roles []Role) (VerificationStrategy, error) {
	switch name {
	case "CreativeIntegrity":
		return CreativeIntegrity(), nil
	case "AuthoritativeIntegrity":
		return AuthoritativeIntegrity(), nil
	case "GreedyVerification":
		return GreedyVerification(), nil
	case "ExhaustiveVerification":
		return ExhaustiveVerification(), nil
	case "MultipleAttestation":
		return MultipleAttestation(roles), nil
	case "MultipleAttestationGreedy":
		return MultipleAttestationGreedy(roles), nil
	default:
		return nil, fmt.Errorf("unknown verification strategy %q", name)
	}
}
