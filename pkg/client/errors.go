package client

import "errors"

// Sentinel errors returned by Client methods, mirroring the API-error
// variants of original_source/src/client/error.rs's ClientError (the
// file/read/IO-local variants stay as plain wrapped errors; these cover
// the HTTP response taxonomy).
var (
	ErrInvoiceNotFound      = errors.New("invoice not found")
	ErrParcelNotFound       = errors.New("parcel not found")
	ErrInvoiceAlreadyExists = errors.New("invoice already exists")
	ErrParcelAlreadyExists  = errors.New("parcel already exists")
	ErrInvoiceYanked        = errors.New("invoice is yanked")
	ErrUnauthorized         = errors.New("invalid credentials or insufficient access")
	ErrInvalidRequest       = errors.New("invalid request")
	ErrServerError          = errors.New("server encountered an error")
)
