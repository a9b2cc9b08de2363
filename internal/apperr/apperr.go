// Package apperr classifies the failures a user action can end in and maps
// them onto HTTP status codes.
package apperr

import (
	"errors"
	"net/http"
	"strings"
)

type Kind int

const (
	KindInternal Kind = iota
	KindUnauthorized
	KindNotFound
	KindValidation
	KindInvalidCredentials
	KindPayloadTooLarge
	KindPreviewGeneration
	KindPreviewRequired
	KindPublish
	KindPersistence
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindInvalidCredentials:
		return "invalid_credentials"
	case KindPayloadTooLarge:
		return "payload_too_large"
	case KindPreviewGeneration:
		return "preview_generation"
	case KindPreviewRequired:
		return "preview_required"
	case KindPublish:
		return "publish"
	case KindPersistence:
		return "persistence"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// Error is a classified failure. Two Errors match under errors.Is when their
// kinds are equal, so the sentinels below can be used as targets.
type Error struct {
	Kind    Kind
	Message string
	Fields  []string
	Err     error
}

func (e *Error) Error() string {
	if e.Message == "" && e.Err != nil {
		return e.Err.Error()
	}
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if len(e.Fields) > 0 {
		msg += ": " + strings.Join(e.Fields, ", ")
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrUnauthorized       = &Error{Kind: KindUnauthorized, Message: "unauthorized"}
	ErrNotFound           = &Error{Kind: KindNotFound, Message: "not found"}
	ErrValidation         = &Error{Kind: KindValidation, Message: "invalid input"}
	ErrInvalidCredentials = &Error{Kind: KindInvalidCredentials, Message: "credentials were rejected"}
	ErrPayloadTooLarge    = &Error{Kind: KindPayloadTooLarge, Message: "payload too large"}
	ErrPreviewGeneration  = &Error{Kind: KindPreviewGeneration, Message: "failed to generate preview"}
	ErrPreviewRequired    = &Error{Kind: KindPreviewRequired, Message: "generate a preview before publishing"}
	ErrPublish            = &Error{Kind: KindPublish, Message: "failed to publish post"}
	ErrPersistence        = &Error{Kind: KindPersistence, Message: "failed to save"}
	ErrConflict           = &Error{Kind: KindConflict, Message: "conflict"}
)

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Classify attaches a kind to err without changing its text. errors.Is still
// matches err itself.
func Classify(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

// Validation reports missing or malformed input, optionally naming the offending fields.
func Validation(message string, fields ...string) *Error {
	return &Error{Kind: KindValidation, Message: message, Fields: fields}
}

func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// FieldsOf returns the field names attached to a validation error, if any.
func FieldsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// Message returns the user-facing text for err. Unclassified errors never
// leak their internals.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.String()
	}
	return "internal server error"
}

func StatusCode(err error) int {
	switch KindOf(err) {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindInvalidCredentials:
		return http.StatusUnprocessableEntity
	case KindPayloadTooLarge:
		return http.StatusRequestEntityTooLarge
	case KindPreviewGeneration, KindPublish:
		return http.StatusBadGateway
	case KindPreviewRequired, KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
