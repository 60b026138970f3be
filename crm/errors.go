package crm

import (
	"errors"
	"fmt"
)

// ErrCRMDisabled is returned when an operation needs the CRM but none is configured
var ErrCRMDisabled = errors.New("CRM integration is not configured")

// APIError is a non-2xx answer from the token endpoint or the CRM REST API
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("CRM returned HTTP %d: %s", e.StatusCode, e.Body)
}
