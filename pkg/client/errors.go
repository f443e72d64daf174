package client

import "fmt"

// APIError is a non-success response carrying the API's fault_message.
type APIError struct {
	StatusCode   int
	FaultMessage string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.FaultMessage)
}

// StatusError is an unexpected response without a fault_message.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}
