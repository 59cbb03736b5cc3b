package server

import (
	"github.com/pelletier/go-toml/v2"

	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/search"
)

// createResponse is the TOML shape returned by POST /v1/_i when one or
// more referenced parcels are not yet stored.
type createResponse struct {
	Invoice invoice.Invoice  `toml:"invoice"`
	Missing []invoice.Label  `toml:"missing,omitempty"`
}

func marshalCreateResponse(inv invoice.Invoice, missing []invoice.Label) ([]byte, error) {
	return toml.Marshal(createResponse{Invoice: inv, Missing: missing})
}

type labelList struct {
	Missing []invoice.Label `toml:"missing,omitempty"`
}

func marshalLabels(labels []invoice.Label) ([]byte, error) {
	return toml.Marshal(labelList{Missing: labels})
}

func marshalMatches(m search.Matches) ([]byte, error) {
	return toml.Marshal(m)
}
