package handlers

import (
	"encoding/json"
	"net/http"

	pkgerrors "github.com/turtacn/LightMap-Intelligence/pkg/errors"
)

// maxBodyBytes bounds request bodies.  Large displays run to a few thousand
// elements, far under this.
const maxBodyBytes = 16 << 20

// decodeJSON reads a JSON request body into dst.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return pkgerrors.Wrap(err, pkgerrors.ErrCodeBadRequest, "invalid request body")
	}
	return nil
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// ErrorResponse is the standard error response body.
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeError maps an application error onto its HTTP status.  Server-side
// failures are masked; the code still identifies the failing concern.
func writeError(w http.ResponseWriter, err error) {
	code := pkgerrors.GetCode(err)
	status := pkgerrors.HTTPStatusForCode(code)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		message = "internal server error"
	}
	writeJSON(w, status, ErrorResponse{Code: code.String(), Message: message})
}
