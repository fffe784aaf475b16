// Package v1 represents types used by the web application for v1.
package v1

import (
	"errors"
	"net/http"
	"strings"
)

// Set of message codes returned with successful responses.
const (
	CodeInfo           = "MSG_0001"
	CodeTxCreated      = "MSG_0027"
	CodeBlockMined     = "MSG_0028"
	CodeChain          = "MSG_0029"
	CodeNodesAdded     = "MSG_0030"
	CodeNodes          = "MSG_0031"
	CodeChainReplaced  = "MSG_0031"
	CodeAuthoritative  = "MSG_0032"
	CodeBlock          = "MSG_0033"
	CodePending        = "MSG_0034"
	CodeAddressTxs     = "MSG_0035"
	CodeBalance        = "MSG_0036"
	CodeNodesRemoved   = "MSG_0037"
	CodeErrBadRequest  = "ERR_400"
	CodeErrNotFound    = "ERR_404"
	CodeErrConflict    = "ERR_409"
	CodeErrInternal    = "ERR_500"
	CodeErrUnavailable = "ERR_503"
)

// Response is the envelope every API response is sent in.
type Response struct {
	Data        any            `json:"data"`
	Code        string         `json:"code"`
	HTTPStatus  string         `json:"httpStatus"`
	Description string         `json:"description"`
	Meta        map[string]any `json:"meta,omitempty"`
}

// NewResponse constructs the envelope for the specified status.
func NewResponse(status int, code string, description string, data any) Response {
	if data == nil {
		data = struct{}{}
	}

	return Response{
		Data:        data,
		Code:        code,
		HTTPStatus:  StatusName(status),
		Description: description,
	}
}

// StatusName returns the name of the status code in the form BAD_REQUEST.
func StatusName(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "ERROR"
	}

	return strings.ToUpper(strings.ReplaceAll(text, " ", "_"))
}

// ErrorData is the data portion of a failed response.
type ErrorData struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// =============================================================================

// RequestError is used to pass an error during the request through the
// application with web specific context.
type RequestError struct {
	Err    error
	Status int
}

// NewRequestError wraps a provided error with an HTTP status code. This
// function should be used when handlers encounter expected errors.
func NewRequestError(err error, status int) error {
	return &RequestError{err, status}
}

// Error implements the error interface. It uses the default message of the
// wrapped error. This is what will be shown in the services' logs.
func (re *RequestError) Error() string {
	return re.Err.Error()
}

// Unwrap provides access to the wrapped error.
func (re *RequestError) Unwrap() error {
	return re.Err
}

// IsRequestError checks if an error of type RequestError exists.
func IsRequestError(err error) bool {
	var re *RequestError
	return errors.As(err, &re)
}

// GetRequestError returns a copy of the RequestError pointer.
func GetRequestError(err error) *RequestError {
	var re *RequestError
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// ErrorCode returns the envelope code used for the status.
func ErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return CodeErrBadRequest
	case http.StatusNotFound:
		return CodeErrNotFound
	case http.StatusConflict:
		return CodeErrConflict
	case http.StatusServiceUnavailable:
		return CodeErrUnavailable
	default:
		return CodeErrInternal
	}
}
