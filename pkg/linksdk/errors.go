package linksdk

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// Error codes used by the host API.
const (
	ErrorCodeInvalidRequest = "invalid_request"
	ErrorCodeNotFound       = "not_found"
	ErrorCodeConflict       = "conflict"
	ErrorCodeServerError    = "server_error"
)

// APIError represents a non-2xx response from the link service. It carries
// the HTTP status alongside the decoded error body.
type APIError struct {
	StatusCode  int
	Code        string
	Description string
}

func (e *APIError) Error() string {
	if e.Description == "" {
		return fmt.Sprintf("link api: %s (status %d)", e.Code, e.StatusCode)
	}
	return fmt.Sprintf("link api: %s: %s (status %d)", e.Code, e.Description, e.StatusCode)
}

// errorFromResponse decodes an error body from a failed API call. Bodies that
// are not valid JSON still produce a usable APIError from the status code.
func errorFromResponse(resp *http.Response) *APIError {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		Code:       ErrorCodeServerError,
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err != nil {
		return apiErr
	}

	var er ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error != "" {
		apiErr.Code = er.Error
		apiErr.Description = er.ErrorDescription
	}
	return apiErr
}
