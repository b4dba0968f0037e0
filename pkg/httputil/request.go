package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

// maxBodySize caps request bodies. Role, grant, and check payloads are
// tiny; anything near this limit is malformed or hostile.
const maxBodySize int64 = 1 << 20

// ParseJSON decodes the request body into dest.
func ParseJSON(r *http.Request, dest interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodySize))
	if err := dec.Decode(dest); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}

// ParseJSONOrError decodes the body into dest, answering 400 on failure.
// Returns false when the response has already been written.
func ParseJSONOrError(w http.ResponseWriter, r *http.Request, dest interface{}) bool {
	if err := ParseJSON(r, dest); err != nil {
		WriteBadRequest(w, err.Error())
		return false
	}
	return true
}

// ParsePathInt64 reads a numeric path variable set by the mux router.
func ParsePathInt64(r *http.Request, key string) (int64, error) {
	raw, ok := mux.Vars(r)[key]
	if !ok || raw == "" {
		return 0, fmt.Errorf("missing path parameter %q", key)
	}
	val, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("path parameter %q must be an integer, got %q", key, raw)
	}
	return val, nil
}

// ParsePathInt64OrError is ParsePathInt64 answering 400 on failure.
func ParsePathInt64OrError(w http.ResponseWriter, r *http.Request, key string) (int64, bool) {
	val, err := ParsePathInt64(r, key)
	if err != nil {
		WriteBadRequest(w, err.Error())
		return 0, false
	}
	return val, true
}

// ParsePathString reads a non-empty string path variable.
func ParsePathString(r *http.Request, key string) (string, error) {
	raw, ok := mux.Vars(r)[key]
	if !ok || raw == "" {
		return "", fmt.Errorf("missing path parameter %q", key)
	}
	return raw, nil
}
