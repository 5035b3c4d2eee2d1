package veo

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// APIError is a non-2xx response from the API.
type APIError struct {
	HTTPStatus int
	Status     string // RPC status, e.g. RESOURCE_EXHAUSTED
	Message    string
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.HTTPStatus)
	}
	if e.Status != "" {
		return fmt.Sprintf("veo: status %d %s: %s", e.HTTPStatus, e.Status, msg)
	}
	return fmt.Sprintf("veo: status %d: %s", e.HTTPStatus, msg)
}

// StatusCode returns the HTTP status.
func (e *APIError) StatusCode() int { return e.HTTPStatus }

// RPCStatus returns the canonical status name from the error envelope.
func (e *APIError) RPCStatus() string { return e.Status }

func decodeAPIError(code int, body []byte) error {
	apiErr := &APIError{HTTPStatus: code}

	var envelope struct {
		Error rawStatus `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && (envelope.Error.Message != "" || envelope.Error.Status != "") {
		apiErr.Status = envelope.Error.Status
		apiErr.Message = envelope.Error.Message
		return apiErr
	}
	apiErr.Message = strings.TrimSpace(string(body))
	if len(apiErr.Message) > 512 {
		apiErr.Message = apiErr.Message[:512]
	}
	return apiErr
}
