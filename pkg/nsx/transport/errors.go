package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// APIError is the controller's error envelope
type APIError struct {
	StatusCode    int        `json:"-"`
	Method        string     `json:"-"`
	Path          string     `json:"-"`
	HTTPStatus    string     `json:"httpStatus,omitempty"`
	ErrorCode     int        `json:"error_code,omitempty"`
	ModuleName    string     `json:"module_name,omitempty"`
	Message       string     `json:"error_message,omitempty"`
	RelatedErrors []APIError `json:"related_errors,omitempty"`
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	if len(e.RelatedErrors) > 0 {
		related := make([]string, 0, len(e.RelatedErrors))
		for _, r := range e.RelatedErrors {
			related = append(related, r.Message)
		}
		msg = fmt.Sprintf("%s (%s)", msg, strings.Join(related, "; "))
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, msg)
}

// IsNotFound reports whether err is the controller's not-found reply
func IsNotFound(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusNotFound
	}
	return false
}

// decodeAPIError builds an APIError from a non-2xx reply. Bodies that are not
// the controller's envelope keep their raw text as the message.
func decodeAPIError(method, path string, status int, body []byte) *APIError {
	apiErr := &APIError{}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr = &APIError{Message: strings.TrimSpace(string(body))}
	}
	apiErr.StatusCode = status
	apiErr.Method = method
	apiErr.Path = path
	return apiErr
}
