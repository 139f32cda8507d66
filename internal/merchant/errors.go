package merchant

import (
	"errors"
	"fmt"
)

// DefaultMessage is reported when the backend gives no usable explanation.
const DefaultMessage = "There was an error linking the customer account"

// ConfigurationError means the endpoint URL assembled from configuration is unusable.
type ConfigurationError struct {
	URL string
	Err error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid endpoint url %q: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("invalid endpoint url %q", e.URL)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

// SerializationError means a request body could not be encoded as JSON.
type SerializationError struct {
	Kind Kind
	Err  error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("encode %s body: %v", e.Kind, e.Err)
}

func (e *SerializationError) Unwrap() error { return e.Err }

// TransportError covers DNS, TLS, connection and timeout failures.
type TransportError struct {
	Message string
	Err     error
}

func (e *TransportError) Error() string { return e.Message }

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a backend-reported failure: a status >= 400, or a 2xx whose body
// was absent or could not be decoded. Code is the HTTP status as text, empty
// for the 2xx cases.
type APIError struct {
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return e.Message
	}
	return "status " + e.Code + ": " + e.Message
}

// Message extracts the human-readable text of any pipeline error.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	var tErr *TransportError
	if errors.As(err, &tErr) {
		return tErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
