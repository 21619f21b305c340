package clients

import "fmt"

// ConfigurationError means a required credential is missing. It is the one
// classifier failure that callers are expected to let escape.
type ConfigurationError struct {
	Setting string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("%s is not set", e.Setting)
}

// ModelUnavailableError is returned when the model kept reporting that it
// is loading until the retry budget ran out.
type ModelUnavailableError struct {
	Model    string
	Attempts int
	Message  string
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model %s unavailable after %d attempts: %s", e.Model, e.Attempts, e.Message)
}

// RemoteServiceError covers non-retryable statuses, error payloads and
// transient failures that outlived the retry budget.
type RemoteServiceError struct {
	Model      string
	StatusCode int
	Message    string
	Err        error
}

func (e *RemoteServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("remote service error for %s: %v", e.Model, e.Err)
	}
	return fmt.Sprintf("remote service error for %s (status %d): %s", e.Model, e.StatusCode, e.Message)
}

func (e *RemoteServiceError) Unwrap() error {
	return e.Err
}
