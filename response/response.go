package response

import (
	"net/http"

	"github.com/goccy/go-json"
)

const contentTypeJSON = "application/json"

// WriteError writes e as the JSON body, using e.StatusCode as the status
func WriteError(w http.ResponseWriter, r *http.Request, e *Error) {
	if e == nil {
		e = ErrUnexpected()
	}
	writeJSON(w, e.StatusCode, e)
}

// WriteResponse writes v as a 200 JSON body
func WriteResponse(w http.ResponseWriter, r *http.Request, v interface{}) {
	writeJSON(w, http.StatusOK, v)
}

// WriteResponseWithStatus writes v as the JSON body with the given status code
func WriteResponseWithStatus(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	writeJSON(w, status, v)
}

// WriteRaw passes a pre-encoded JSON body through untouched
func WriteRaw(w http.ResponseWriter, r *http.Request, body []byte) {
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}

// the body is encoded fully before the header goes out, so an encoding
// failure never leaves a half-written response
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	body, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", contentTypeJSON)
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"An unexpected error has occured","messages":[]}`))
		return
	}
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(status)
	w.Write(body)
}
