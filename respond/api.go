package respond

import (
	"encoding/json"
	"net/http"
)

type APIError struct {
	status int
	Err    string `json:"error"`
}

func New(status int, error string) *APIError {
	return &APIError{
		status: status,
		Err:    error,
	}
}

func (e *APIError) Error() string {
	return e.Err
}

func (e *APIError) Respond(w http.ResponseWriter) {
	JSON(w, e.status, e)
}

// JSON writes v with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func Unauthorized(err string) *APIError {
	return New(http.StatusUnauthorized, err)
}

func Database() *APIError {
	return New(http.StatusInternalServerError, "database error")
}

func BadRequest(err string) *APIError {
	return New(http.StatusBadRequest, err)
}

func NotFound(err string) *APIError {
	return New(http.StatusNotFound, err)
}

func InternalServerError(err string) *APIError {
	return New(http.StatusInternalServerError, err)
}
