package playerstate

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a BindError.
type ErrorKind int

const (
	MissingField ErrorKind = iota + 1
	TypeMismatch
	UnknownField
)

func (k ErrorKind) String() string {
	switch k {
	case MissingField:
		return "missing_field"
	case TypeMismatch:
		return "type_mismatch"
	case UnknownField:
		return "unknown_field"
	default:
		return fmt.Sprintf("bind_error(%d)", int(k))
	}
}

// Sentinels for errors.Is matching against a *BindError's kind.
var (
	ErrMissingField = errors.New("missing field")
	ErrTypeMismatch = errors.New("type mismatch")
	ErrUnknownField = errors.New("unknown field")
)

// BindError reports why a parsed tree could not be bound to a state shape.
type BindError struct {
	Kind ErrorKind
	// Field is the top-level field being bound, or the offending key itself
	// for UnknownField.
	Field string
	// Path is the dotted path of the offending value.
	Path   string
	Reason string
}

func (e *BindError) Error() string {
	switch e.Kind {
	case MissingField:
		return fmt.Sprintf("missing field `%s`", e.Path)
	case UnknownField:
		return fmt.Sprintf("unknown field `%s`", e.Path)
	case TypeMismatch:
		if e.Reason != "" {
			return fmt.Sprintf("invalid value for `%s`: %s", e.Path, e.Reason)
		}
		return fmt.Sprintf("invalid value for `%s`", e.Path)
	}
	return fmt.Sprintf("bind error at `%s`: %s", e.Path, e.Reason)
}

// Is matches the kind sentinels.
func (e *BindError) Is(target error) bool {
	switch target {
	case ErrMissingField:
		return e.Kind == MissingField
	case ErrTypeMismatch:
		return e.Kind == TypeMismatch
	case ErrUnknownField:
		return e.Kind == UnknownField
	}
	return false
}
