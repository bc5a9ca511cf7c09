package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gurmukh6912/token-entry/internal/domain"
)

const (
	accountHeader = "X-Account"
	maxBodyBytes  = 1 << 20
)

// callerFrom reads the caller identity. Authentication happens upstream.
func callerFrom(w http.ResponseWriter, r *http.Request) (domain.Account, bool) {
	raw := r.Header.Get(accountHeader)
	if raw == "" {
		writeError(w, http.StatusUnauthorized, codeMissingAccount, "X-Account header is required")
		return "", false
	}
	account, err := domain.ParseAccount(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidAccount, "X-Account header is invalid")
		return "", false
	}
	return account, true
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, codeInvalidID, name+" must be a positive integer")
		return 0, false
	}
	return id, true
}

func pathAccount(w http.ResponseWriter, r *http.Request, name string) (domain.Account, bool) {
	account, err := domain.ParseAccount(r.PathValue(name))
	if err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidAccount, name+" is invalid")
		return "", false
	}
	return account, true
}

// decodeJSON reads a single JSON object into dst. Unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "invalid JSON body")
		return false
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, codeInvalidRequestBody, "body must contain a single JSON object")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
