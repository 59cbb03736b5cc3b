package server

import (
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/bindleproject/bindle/internal/id"
	"github.com/bindleproject/bindle/internal/invoice"
	"github.com/bindleproject/bindle/internal/signature"
)

// handleCreateInvoice serves POST /v1/_i: parse a TOML invoice body,
// verify its signatures against the configured strategy, and persist it.
func (s *Server) handleCreateInvoice(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeTOMLError(w, http.StatusMethodNotAllowed, "only POST is allowed")
		return
	}
	if !hasTOMLContentType(r) {
		s.writeTOMLError(w, http.StatusBadRequest, "Content-Type must be application/toml")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeTOMLError(w, http.StatusBadRequest, "error reading request body")
		return
	}

	var inv invoice.Invoice
	if err := invoice.Unmarshal(body, &inv); err != nil {
		s.writeTOMLError(w, http.StatusBadRequest, fmt.Sprintf("request body toml deserialize error: %v", err))
		return
	}

	if err := s.strategy.Verify(&inv, s.keyring); err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}
	verified := signature.MarkVerified(signature.MarkSigned(&inv))

	created, missing, err := s.provider.CreateInvoice(r.Context(), verified)
	if err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}

	status := http.StatusCreated
	if len(missing) > 0 {
		status = http.StatusAccepted
	}
	s.writeInvoiceResponse(w, status, created, missing)
}

// handleInvoiceTail dispatches every request under /v1/_i/<...> after
// splitting the path tail into an invoice id and an optional parcel sha.
func (s *Server) handleInvoiceTail(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, invoicePath+"/")
	invoiceIDStr, parcelSha, ok := splitTail(tail)
	if !ok {
		s.writeTOMLError(w, http.StatusBadRequest, "Invalid URL. Missing Bindle ID and/or parcel SHA")
		return
	}

	bindleID, err := id.Parse(invoiceIDStr)
	if err != nil {
		s.writeTOMLError(w, http.StatusBadRequest, "invalid bindle id")
		return
	}

	if parcelSha == "" {
		s.handleInvoice(w, r, bindleID)
		return
	}
	s.handleParcel(w, r, bindleID, parcelSha)
}

func (s *Server) handleInvoice(w http.ResponseWriter, r *http.Request, bindleID id.ID) {
	switch r.Method {
	case http.MethodGet, http.MethodHead:
		s.getInvoice(w, r, bindleID)
	case http.MethodDelete:
		s.yankInvoice(w, r, bindleID)
	default:
		s.writeTOMLError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getInvoice(w http.ResponseWriter, r *http.Request, bindleID id.ID) {
	allowYanked := r.URL.Query().Get("yanked") == "true"

	var inv invoice.Invoice
	var err error
	if allowYanked {
		inv, err = s.provider.GetYankedInvoice(r.Context(), bindleID)
	} else {
		inv, err = s.provider.GetInvoice(r.Context(), bindleID)
	}
	if err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}

	data, err := invoice.Marshal(&inv)
	if err != nil {
		s.writeTOMLError(w, http.StatusInternalServerError, "error serializing invoice")
		return
	}

	w.Header().Set("Content-Type", tomlMIMEType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("ETag", bindleID.Sha())
	w.WriteHeader(http.StatusOK)
	if r.Method == http.MethodHead {
		return
	}
	w.Write(data)
}

func (s *Server) yankInvoice(w http.ResponseWriter, r *http.Request, bindleID id.ID) {
	if err := s.provider.YankInvoice(r.Context(), bindleID); err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleParcel(w http.ResponseWriter, r *http.Request, bindleID id.ID, sha string) {
	switch r.Method {
	case http.MethodGet:
		s.getParcel(w, r, bindleID, sha)
	case http.MethodHead:
		s.headParcel(w, r, bindleID, sha)
	case http.MethodPost:
		s.createParcel(w, r, bindleID, sha)
	default:
		s.writeTOMLError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (s *Server) getParcel(w http.ResponseWriter, r *http.Request, bindleID id.ID, sha string) {
	label, err := s.provider.ValidateParcel(r.Context(), bindleID, sha)
	if err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}

	rc, err := s.provider.GetParcel(r.Context(), bindleID, sha)
	if err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}
	defer rc.Close()

	if label.MediaType != "" {
		w.Header().Set("Content-Type", label.MediaType)
	}
	if label.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatUint(label.Size, 10))
	}
	w.Header().Set("ETag", sha)
	w.WriteHeader(http.StatusOK)
	io.Copy(w, rc)
}

// headParcel mirrors getParcel's header set (Content-Type, Content-Length,
// ETag) without a body, so a HEAD request can be used to probe a parcel's
// existence and metadata before a GET. ValidateParcel alone only confirms
// the sha is labeled on the invoice; the blob itself may not be stored yet,
// so a 404 still requires the separate ParcelExists storage check.
func (s *Server) headParcel(w http.ResponseWriter, r *http.Request, bindleID id.ID, sha string) {
	label, err := s.provider.ValidateParcel(r.Context(), bindleID, sha)
	if err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}
	exists, err := s.provider.ParcelExists(r.Context(), bindleID, sha)
	if err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}
	if !exists {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	if label.MediaType != "" {
		w.Header().Set("Content-Type", label.MediaType)
	}
	if label.Size > 0 {
		w.Header().Set("Content-Length", strconv.FormatUint(label.Size, 10))
	}
	w.Header().Set("ETag", sha)
	w.WriteHeader(http.StatusOK)
}

func (s *Server) createParcel(w http.ResponseWriter, r *http.Request, bindleID id.ID, sha string) {
	if err := s.provider.CreateParcel(r.Context(), bindleID, sha, r.Body); err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (s *Server) writeInvoiceResponse(w http.ResponseWriter, status int, inv invoice.Invoice, missing []invoice.Label) {
	var (
		data []byte
		err  error
	)
	if len(missing) == 0 {
		data, err = invoice.Marshal(&inv)
	} else {
		data, err = marshalCreateResponse(inv, missing)
	}
	if err != nil {
		s.writeTOMLError(w, http.StatusInternalServerError, "error serializing response")
		return
	}
	w.Header().Set("Content-Type", tomlMIMEType)
	w.WriteHeader(status)
	w.Write(data)
}

// handleMissing serves GET /v1/_r/missing/<id>.
func (s *Server) handleMissing(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeTOMLError(w, http.StatusMethodNotAllowed, "only GET is allowed")
		return
	}
	idStr := strings.TrimPrefix(r.URL.Path, missingPath)
	bindleID, err := id.Parse(idStr)
	if err != nil {
		s.writeTOMLError(w, http.StatusBadRequest, "invalid bindle id")
		return
	}

	inv, err := s.provider.GetYankedInvoice(r.Context(), bindleID)
	if err != nil {
		s.writeTOMLError(w, statusForError(err), err.Error())
		return
	}

	var missing []invoice.Label
	for _, parcel := range inv.Parcel {
		exists, err := s.provider.ParcelExists(r.Context(), bindleID, parcel.Label.SHA256)
		if err != nil {
			continue
		}
		if !exists {
			missing = append(missing, parcel.Label)
		}
	}

	data, err := marshalLabels(missing)
	if err != nil {
		s.writeTOMLError(w, http.StatusInternalServerError, "error serializing response")
		return
	}
	w.Header().Set("Content-Type", tomlMIMEType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func hasTOMLContentType(r *http.Request) bool {
	ct := r.Header.Get("Content-Type")
	return strings.HasPrefix(ct, tomlMIMEType)
}
