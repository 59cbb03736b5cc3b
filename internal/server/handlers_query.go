package server

import (
	"net/http"
	"strconv"

	"github.com/bindleproject/bindle/internal/search"
)

// handleQuery serves GET /v1/_q?q=&v=&offset=&limit=&strict=&yanked=
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeTOMLError(w, http.StatusMethodNotAllowed, "only GET is allowed")
		return
	}

	q := r.URL.Query()
	opts := search.DefaultOptions()
	if offsetStr := q.Get("offset"); offsetStr != "" {
		if v, err := strconv.ParseUint(offsetStr, 10, 64); err == nil {
			opts.Offset = v
		}
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if v, err := strconv.ParseUint(limitStr, 10, 8); err == nil {
			opts.Limit = uint8(v)
		}
	}
	opts.Strict = q.Get("strict") == "true"
	opts.Yanked = q.Get("yanked") == "true"

	matches, err := s.index.Query(q.Get("q"), q.Get("v"), opts)
	if err != nil {
		s.writeTOMLError(w, http.StatusBadRequest, err.Error())
		return
	}

	data, err := marshalMatches(matches)
	if err != nil {
		s.writeTOMLError(w, http.StatusInternalServerError, "error serializing response")
		return
	}
	w.Header().Set("Content-Type", tomlMIMEType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}
