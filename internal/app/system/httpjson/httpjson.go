// Package httpjson writes JSON responses and decodes JSON request bodies for
// the API handlers on top of WAFFLE's httputil. Error bodies are
// {"message": "..."}.
package httpjson

import (
	"net/http"

	"github.com/dalemusser/waffle/httputil"
	"go.uber.org/zap"
)

// MaxBodyBytes caps request bodies read by Decode.
const MaxBodyBytes = 1 << 20

// SetLogger routes encoding failures that happen after the headers went
// out to log.
func SetLogger(log *zap.Logger) {
	if log == nil {
		log = zap.NewNop()
	}
	httputil.SetJSONLogger(encodeLogger{log: log})
}

type encodeLogger struct{ log *zap.Logger }

func (l encodeLogger) Error(msg string, _ ...any) {
	l.log.Warn("encode response", zap.String("error", msg))
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Message string `json:"message"`
}

// Write encodes data as the response body with the given status. A nil
// data writes only the status.
func Write(w http.ResponseWriter, status int, data any) {
	if data == nil {
		w.WriteHeader(status)
		return
	}
	httputil.WriteJSON(w, status, data)
}

// Error writes an error response carrying message.
func Error(w http.ResponseWriter, status int, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	httputil.WriteJSON(w, status, ErrorBody{Message: message})
}

// Decode reads a single JSON value from the request body into target.
// Unknown fields are allowed; trailing values and bodies over MaxBodyBytes
// are not.
func Decode(r *http.Request, target any) error {
	if r.Body != nil {
		r.Body = http.MaxBytesReader(nil, r.Body, MaxBodyBytes)
	}
	return httputil.BindJSONAllowUnknown(r, target)
}
