package errorbank

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/grpc/codes"
)

// Kind classifies an order failure independently of the transport reporting it.
type Kind string

const (
	KindBadRequest Kind = "bad_request"
	KindNotFound   Kind = "not_found"
	KindInternal   Kind = "internal"
)

type codePair struct {
	http int
	grpc codes.Code
}

var kindCodes = map[Kind]codePair{
	KindBadRequest: {http.StatusBadRequest, codes.InvalidArgument},
	KindNotFound:   {http.StatusNotFound, codes.NotFound},
	KindInternal:   {http.StatusInternalServerError, codes.Internal},
}

// DetailErrors is the detail key holding the list of failed validation messages.
const DetailErrors = "errors"

// AppError is the error every order operation returns to its transports.
type AppError struct {
	kind    Kind
	message string
	details map[string]any
	cause   error
}

// Option mutates an AppError during construction.
type Option func(*AppError)

// WithCause attaches an underlying error.
func WithCause(err error) Option {
	return func(e *AppError) {
		e.cause = err
	}
}

// WithDetail adds a single named detail value.
func WithDetail(key string, value any) Option {
	return func(e *AppError) {
		if e.details == nil {
			e.details = make(map[string]any)
		}
		e.details[key] = value
	}
}

// New constructs an AppError; an empty message defaults to the kind.
func New(kind Kind, message string, opts ...Option) *AppError {
	if message == "" {
		message = string(kind)
	}
	e := &AppError{kind: kind, message: message}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// BadRequest reports a request the caller has to fix.
func BadRequest(message string, opts ...Option) *AppError {
	return New(KindBadRequest, message, opts...)
}

// Invalid reports every failed validation message at once.
func Invalid(messages []string, opts ...Option) *AppError {
	copied := append([]string(nil), messages...)
	return BadRequest("validation failed", append([]Option{WithDetail(DetailErrors, copied)}, opts...)...)
}

// NotFound reports a missing order.
func NotFound(message string, opts ...Option) *AppError {
	return New(KindNotFound, message, opts...)
}

// Internal reports a store or infrastructure failure.
func Internal(message string, opts ...Option) *AppError {
	return New(KindInternal, message, opts...)
}

// From returns err as an AppError, wrapping anything else as internal.
func From(err error) *AppError {
	if err == nil {
		return nil
	}
	var e *AppError
	if errors.As(err, &e) {
		return e
	}
	return Internal("internal error", WithCause(err))
}

// IsKind reports whether err carries an AppError of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *AppError
	return errors.As(err, &e) && e.Kind() == kind
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

// Kind returns the error category; nil errors are internal.
func (e *AppError) Kind() Kind {
	if e == nil {
		return KindInternal
	}
	return e.kind
}

func (e *AppError) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *AppError) Details() map[string]any {
	if e == nil {
		return nil
	}
	return e.details
}

// Messages returns the validation messages attached by Invalid.
func (e *AppError) Messages() []string {
	if e == nil {
		return nil
	}
	msgs, _ := e.details[DetailErrors].([]string)
	return msgs
}

// StatusCode resolves the HTTP status for the error kind.
func (e *AppError) StatusCode() int {
	return e.pair().http
}

// GRPCCode resolves the gRPC status code for the error kind.
func (e *AppError) GRPCCode() codes.Code {
	return e.pair().grpc
}

func (e *AppError) pair() codePair {
	if c, ok := kindCodes[e.Kind()]; ok {
		return c
	}
	return kindCodes[KindInternal]
}
