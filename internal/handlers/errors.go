package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/maneesh/filesmanager/internal/common"
	"github.com/sirupsen/logrus"
)

// Stable error codes returned in the "code" field
const (
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeNotFound         = "NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeNoContent        = "NO_CONTENT"
	CodeAlreadyExists    = "ALREADY_EXISTS"
	CodeStoreUnavailable = "STORE_UNAVAILABLE"
	CodeInternal         = "INTERNAL"
)

// APIError is the body of every error response
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *APIError) Error() string {
	return e.Message
}

// FromError translates a service error into its API representation
func FromError(err error) *APIError {
	var ve *common.ValidationError
	switch {
	case errors.As(err, &ve):
		return &APIError{Status: http.StatusBadRequest, Message: ve.Message, Code: CodeValidation}
	case errors.Is(err, common.ErrValidation):
		return &APIError{Status: http.StatusBadRequest, Message: "Invalid request", Code: CodeValidation}
	case errors.Is(err, common.ErrUnauthenticated):
		return &APIError{Status: http.StatusUnauthorized, Message: "Unauthorized", Code: CodeUnauthenticated}
	case errors.Is(err, common.ErrNotFound):
		return &APIError{Status: http.StatusNotFound, Message: "Not found", Code: CodeNotFound}
	case errors.Is(err, common.ErrNoContent):
		return &APIError{Status: http.StatusBadRequest, Message: "A folder doesn't have content", Code: CodeNoContent}
	case errors.Is(err, common.ErrAlreadyExists):
		return &APIError{Status: http.StatusBadRequest, Message: "Already exist", Code: CodeAlreadyExists}
	case errors.Is(err, common.ErrStoreUnavailable):
		return &APIError{Status: http.StatusServiceUnavailable, Message: "Service unavailable", Code: CodeStoreUnavailable}
	}
	return &APIError{Status: http.StatusInternalServerError, Message: "Internal server error", Code: CodeInternal}
}

// writeJSON sends data with the given status code
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// writeError maps err and logs failures that are not the caller's fault
func writeError(w http.ResponseWriter, log logrus.FieldLogger, err error) {
	apiErr := FromError(err)
	if apiErr.Status >= http.StatusInternalServerError {
		log.WithError(err).WithField("code", apiErr.Code).Error("Request failed")
	}
	writeJSON(w, apiErr.Status, apiErr)
}
