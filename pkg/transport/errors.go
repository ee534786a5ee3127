package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rhuss/pubgate/pkg/api"
)

// HTTPStatusFromError maps an error to the HTTP status code sent to the
// client. Errors that are not *api.APIError map to 500.
func HTTPStatusFromError(err error) int {
	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// WriteErrorResponse writes a JSON error response using the ErrorResponse
// wrapper format from pkg/api. It is used for failures that happen before
// a publication request exists.
func WriteErrorResponse(w http.ResponseWriter, apiErr *api.APIError, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(api.ErrorResponse{Error: apiErr})
}

// WriteAPIError writes an APIError response, deriving the HTTP status code
// from the error type.
func WriteAPIError(w http.ResponseWriter, apiErr *api.APIError) {
	WriteErrorResponse(w, apiErr, apiErr.HTTPStatus())
}
