// Package errs defines the typed errors exchanged between the engine,
// providers, and the admin surface.
package errs

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies a class of failure.
type Kind string

const (
	InvalidCampaign  Kind = "invalid_campaign"
	InactiveCampaign Kind = "inactive_campaign"
	ProviderNotFound Kind = "provider_not_found"
	MissingSettings  Kind = "missing_settings"
	FetchError       Kind = "fetch_error"
	NoItems          Kind = "no_items" // informational, not a failure
	DuplicateItem    Kind = "duplicate_item"
	TranslationError Kind = "translation_error"
	TemplateError    Kind = "template_error"
	PublishError     Kind = "publish_error"
	APIError         Kind = "api_error"
	JSONDecodeError  Kind = "json_decode_error"
)

// Error carries a Kind alongside a human-readable message and an
// optional wrapped cause.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is makes errors.Is match on Kind, so callers can compare against
// a bare &Error{Kind: ...} sentinel.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

// New builds an Error with a formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap builds an Error around a cause.
func Wrap(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of err, or "" when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given Kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Missing builds a MissingSettings error listing the absent field
// labels in schema order.
func Missing(labels []string) *Error {
	return New(MissingSettings, "missing required settings: %s", strings.Join(labels, ", "))
}
