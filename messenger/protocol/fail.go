package protocol

import (
	"errors"
	"fmt"
)

// Status codes carried by a Fail, generally analogous to HTTP status codes.
const (
	CodeBadRequest     = 400 // the payload could not be decoded
	CodeNotFound       = 404 // no handler for the message type
	CodeConflict       = 409 // the endpoint is already bound to another transport
	CodeInternal       = 500 // the handler failed
	CodeBadGateway     = 502 // a forwarded request failed before reaching the far endpoint
	CodeUnavailable    = 503 // the endpoint is not connected
	CodeGatewayTimeout = 504 // a request expired before a response arrived
)

// A Fail is the error half of a response.  It survives the trip across a process boundary, so a handler that returns
// a Fail reaches the original caller with the same code and message.
type Fail struct {
	Code    int    `json:"code" msg:"code"`
	Message string `json:"message" msg:"message"`
}

// Failf builds a Fail with a formatted message.
func Failf(code int, format string, args ...any) *Fail {
	return &Fail{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Error implements error.
func (f *Fail) Error() string {
	return fmt.Sprintf(`%s (%d)`, f.Message, f.Code)
}

// Is reports whether target is a Fail with the same code, so errors.Is(err, &Fail{Code: 404}) works.
func (f *Fail) Is(target error) bool {
	t, ok := target.(*Fail)
	return ok && t.Code == f.Code && (t.Message == `` || t.Message == f.Message)
}

// AsFail converts any error into a Fail, preserving an existing Fail in the chain.  Other errors become a Fail with
// the provided code and the error text as the message.
func AsFail(err error, code int) *Fail {
	if err == nil {
		return nil
	}
	var fail *Fail
	if errors.As(err, &fail) {
		return fail
	}
	return &Fail{Code: code, Message: err.Error()}
}
