package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"
)

// Every endpoint answers with the same envelope: {"success":bool,...}.
// Successes carry a data object, failures an error message.

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, code int, data any) {
	writeJSON(w, code, map[string]any{
		"success": true,
		"data":    data,
	})
}

func writeFailure(w http.ResponseWriter, r *http.Request, code int, msg string) {
	payload := map[string]any{
		"success": false,
		"error":   msg,
	}
	if rid := RequestIDFromContext(r.Context()); rid != "" {
		payload["request_id"] = rid
	}
	writeJSON(w, code, payload)
}

func methodNotAllowed(w http.ResponseWriter, r *http.Request, allowed ...string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	writeFailure(w, r, http.StatusMethodNotAllowed, "method not allowed")
}

// decodeBody fills dst from a JSON or form-encoded request body. Browser
// login forms post urlencoded; API clients post JSON. Unknown JSON fields
// and trailing garbage are rejected before anything reaches the auth
// pipeline.
func decodeBody(w http.ResponseWriter, r *http.Request, dst formDecodable) error {
	ct := r.Header.Get("Content-Type")
	if ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && mt == "application/x-www-form-urlencoded" {
			if err := r.ParseForm(); err != nil {
				return errors.New("malformed form body")
			}
			dst.fromForm(r.PostForm)
			return nil
		}
	}
	reader := http.MaxBytesReader(w, r.Body, 1<<20)
	defer reader.Close()
	dec := json.NewDecoder(reader)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return errors.New("request body is required")
		}
		return errors.New("malformed request body")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON body")
	}
	return nil
}

// formDecodable lets a request struct populate itself from urlencoded
// fields in addition to JSON tags.
type formDecodable interface {
	fromForm(values map[string][]string)
}
