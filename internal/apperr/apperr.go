// Package apperr is the error taxonomy returned by services and rendered by
// the HTTP layer. Public kinds carry a client-facing message with optional
// $1..$n parameters; internal kinds expose only their status code.
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

// Kind classifies an application error.
type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindUnsupportedMediaType
	KindNotImplemented
)

var kindNames = map[Kind]string{
	KindInternal:             "internal_server_error",
	KindBadRequest:           "bad_request",
	KindUnauthorized:         "unauthorized",
	KindForbidden:            "forbidden",
	KindNotFound:             "not_found",
	KindConflict:             "conflict",
	KindUnsupportedMediaType: "unsupported_media_type",
	KindNotImplemented:       "not_implemented",
}

func (k Kind) String() string {
	if n, ok := kindNames[k]; ok {
		return n
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// HTTPStatus maps the kind to its response status code.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	case KindUnsupportedMediaType:
		return http.StatusUnsupportedMediaType
	case KindNotImplemented:
		return http.StatusNotImplemented
	default:
		return http.StatusInternalServerError
	}
}

// Public reports whether message and parameters may be shown to the client.
func (k Kind) Public() bool {
	return k != KindInternal && k != KindNotImplemented
}

// Error is an application error. Message may reference Params as $1..$n.
type Error struct {
	Kind    Kind
	Message string
	Params  []string
	Cause   error
}

func (e *Error) Error() string {
	msg := e.Message
	for i := len(e.Params); i > 0; i-- {
		msg = strings.ReplaceAll(msg, "$"+strconv.Itoa(i), e.Params[i-1])
	}
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, msg, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind with no message, so
// errors.Is(err, apperr.Forbidden("")) works as a kind test.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Message == "" && t.Kind == e.Kind
}

// MarshalJSON renders the client-facing body. Internal kinds render as {}.
func (e *Error) MarshalJSON() ([]byte, error) {
	if !e.Kind.Public() {
		return []byte("{}"), nil
	}
	params := e.Params
	if params == nil {
		params = []string{}
	}
	return json.Marshal(struct {
		Message    string   `json:"message"`
		Parameters []string `json:"parameters"`
	}{
		Message:    e.Message,
		Parameters: params,
	})
}

func New(kind Kind, msg string, params ...string) *Error {
	return &Error{Kind: kind, Message: msg, Params: params}
}

func BadRequest(msg string, params ...string) *Error {
	return New(KindBadRequest, msg, params...)
}

func Unauthorized(msg string, params ...string) *Error {
	return New(KindUnauthorized, msg, params...)
}

func Forbidden(msg string, params ...string) *Error {
	return New(KindForbidden, msg, params...)
}

func NotFound(msg string, params ...string) *Error {
	return New(KindNotFound, msg, params...)
}

func Conflict(msg string, params ...string) *Error {
	return New(KindConflict, msg, params...)
}

func UnsupportedMediaType(msg string, params ...string) *Error {
	return New(KindUnsupportedMediaType, msg, params...)
}

func NotImplemented(msg string) *Error {
	return New(KindNotImplemented, msg)
}

// Internal wraps cause as an internal error. The message is logged, never sent.
func Internal(msg string, cause error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Cause: cause}
}

// As returns the first *Error in err's chain. Foreign errors are reported as
// internal with err as the cause.
func As(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Internal("unexpected error", err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}
