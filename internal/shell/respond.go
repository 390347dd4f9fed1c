package shell

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"

	"github.com/report-zone/mfe-demo-sub000/internal/errmsg"
)

const maxRequestBody = 1 << 20

// errorResponse is the JSON body of every API error.
type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err any) {
	writeJSON(w, status, errorResponse{Error: errmsg.Message(err), Code: code})
}

func isForm(r *http.Request) bool {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return ct == "application/x-www-form-urlencoded" || ct == "multipart/form-data"
}

// decodeInput reads a JSON body, or a form post mapped field by field onto the
// same JSON names.
func decodeInput(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)

	if isForm(r) {
		if err := r.ParseForm(); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
			return false
		}
		fields := make(map[string]string, len(r.PostForm))
		for k := range r.PostForm {
			fields[k] = r.PostForm.Get(k)
		}
		raw, _ := json.Marshal(fields)
		if err := json.Unmarshal(raw, dst); err != nil {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
			return false
		}
		return true
	}

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", "request body is required")
		} else {
			writeError(w, http.StatusBadRequest, "BAD_REQUEST", err)
		}
		return false
	}
	return true
}

// readRaw reads a JSON body without decoding it.
func readRaw(w http.ResponseWriter, r *http.Request) (json.RawMessage, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, "BAD_REQUEST", err)
		return nil, false
	}
	if len(body) == 0 || !json.Valid(body) {
		writeError(w, http.StatusBadRequest, "BAD_REQUEST", "body must be a JSON document")
		return nil, false
	}
	return json.RawMessage(body), true
}
