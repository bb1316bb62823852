package v1

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// maxBodyBytes bounds request bodies; the largest is a note.
const maxBodyBytes = 64 << 10

// decodeJSONStrict checks an optional Content-Type, limits the body size and
// decodes a single JSON value into dst, rejecting unknown fields. Decode
// failures wrap ErrBadBody; an oversized body keeps its *http.MaxBytesError.
func decodeJSONStrict(w http.ResponseWriter, r *http.Request, dst any) error {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		return ErrContentType
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return err
		}
		return fmt.Errorf("%w: %w", ErrBadBody, err)
	}
	return nil
}
