package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/mcoot/neurodash/internal/api/apierr"
)

// maxBodyBytes caps every request body; the largest is a registration
const maxBodyBytes = 4 << 10

// WriteError writes err as a JSON error body
func WriteError(w http.ResponseWriter, err error) {
	apierr.WriteError(w, err)
}

// decode reads a JSON body into dst. An empty body is accepted only when
// optional is set. On failure it writes the error response and returns false.
func decode(w http.ResponseWriter, r *http.Request, dst any, optional bool) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(dst)

	var tooLarge *http.MaxBytesError
	switch {
	case err == nil:
		return true
	case optional && errors.Is(err, io.EOF):
		return true
	case errors.As(err, &tooLarge):
		WriteError(w, apierr.NewInvalidRequestError("request body too large"))
	default:
		WriteError(w, apierr.NewInvalidRequestError("invalid request body"))
	}
	return false
}

// required writes an invalid request error when value is empty
func required(w http.ResponseWriter, field, value string) bool {
	if value != "" {
		return true
	}
	WriteError(w, apierr.NewInvalidRequestError(field+" is required"))
	return false
}
