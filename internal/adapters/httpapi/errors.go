package httpapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// maxBodyBytes bounds request bodies; scanner payloads are a few hundred bytes.
const maxBodyBytes = 64 << 10

// decodeBody reads a JSON object into v. An empty body decodes as {}.
// On failure it writes the 4xx response and returns false.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeJSON(w, r, http.StatusRequestEntityTooLarge, statusResponse{Status: statusError, Message: "request body too large"})
			return false
		}
		writeJSON(w, r, http.StatusBadRequest, statusResponse{Status: statusError, Message: "invalid JSON body"})
		return false
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return true
	}
	if err := json.Unmarshal(raw, v); err != nil {
		writeJSON(w, r, http.StatusBadRequest, statusResponse{Status: statusError, Message: "invalid JSON body"})
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		b = []byte(`{"status":"error","message":"internal error"}`)
	}
	writeRaw(w, r, status, "application/json", b)
}

func writeRaw(w http.ResponseWriter, r *http.Request, status int, contentType string, body []byte) {
	if rid := middleware.GetReqID(r.Context()); rid != "" {
		w.Header().Set("X-Request-Id", rid)
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
