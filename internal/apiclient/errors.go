package apiclient

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedPayload marks a response body that could not be decoded.
var ErrMalformedPayload = errors.New("malformed payload")

// NetworkError means no usable response arrived: connection failure,
// timeout, or cancellation.
type NetworkError struct {
	Method string
	URL    string
	Err    error
}

func (e *NetworkError) Error() string {
	return "Network error - please check your connection"
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Detail includes the request and cause, for logs.
func (e *NetworkError) Detail() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

// ServerError is a non-2xx response or an error envelope.
type ServerError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *ServerError) Error() string {
	if e.Message == "" {
		return "Server error"
	}
	return e.Message
}

// Message returns the text a user should see for err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Error()
	}
	var srvErr *ServerError
	if errors.As(err, &srvErr) {
		return srvErr.Error()
	}
	if errors.Is(err, ErrMalformedPayload) {
		return "Unexpected response from server"
	}
	return err.Error()
}

// serverMessage pulls a readable message from an error body.
func serverMessage(body []byte) string {
	var parsed map[string]any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return ""
	}
	for _, key := range []string{"message", "error_message", "error", "detail"} {
		if msg, ok := parsed[key].(string); ok && strings.TrimSpace(msg) != "" {
			return strings.TrimSpace(msg)
		}
	}
	return ""
}
