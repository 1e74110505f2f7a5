package inspect

import (
	"bytes"
	"encoding/json"
	"net/http"
)

// responseJSON encodes v and writes it with code. An encoding failure is
// answered with a 500 instead.
func responseJSON(w http.ResponseWriter, code int, v any) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(v); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	w.Write(buf.Bytes()) //nolint:errcheck
}

type errorBody struct {
	Error string `json:"error"`
}

func responseError(w http.ResponseWriter, code int, msg string) {
	responseJSON(w, code, errorBody{Error: msg})
}
