package response

import "fmt"

// Error is the JSON body written for every non-2xx response
type Error struct {
	StatusCode int      `json:"-"`
	Message    string   `json:"error"`
	Messages   []string `json:"messages"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

func (e *Error) WithMessage(msg string) *Error {
	e.Message = msg
	return e
}

func (e *Error) AddMessages(msgs ...string) *Error {
	e.Messages = append(e.Messages, msgs...)
	return e
}

func makeError(status int) *Error {
	return &Error{
		StatusCode: status,
		Messages:   make([]string, 0),
	}
}

// -----------------------------------------------

func ErrUnexpected() *Error {
	return makeError(500).
		WithMessage("An unexpected error has occured")
}

func ErrBadRequest() *Error {
	return makeError(400).
		WithMessage("Bad request")
}

func ErrNotFound() *Error {
	return makeError(404).
		WithMessage("Requested resources not found")
}

func ErrMethodNotAllowed() *Error {
	return makeError(405).
		WithMessage("Method not allowed")
}

func ErrServiceUnavailable() *Error {
	return makeError(503).
		WithMessage("Service unavailable")
}

func ErrInvalidJson() *Error {
	return ErrBadRequest().AddMessages("Invalid JSON body")
}

func ErrMissingFields(fields ...string) *Error {
	e := ErrBadRequest().WithMessage("Missing required fields")
	for _, f := range fields {
		e.AddMessages(fmt.Sprintf("%s is required", f))
	}
	return e
}
