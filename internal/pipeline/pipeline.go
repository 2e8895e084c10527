// Package pipeline runs the decode, parse and bind stages over one encoded
// state payload. Every stage is single-attempt; the first failure ends the
// run and is reported together with the stage it happened in.
package pipeline

import (
	"fmt"

	"github.com/ggoodman/dungeons-and-money/internal/blob"
	"github.com/ggoodman/dungeons-and-money/internal/jsonvalue"
	"github.com/ggoodman/dungeons-and-money/playerstate"
)

// Stage is a step of the per-request state machine.
type Stage int

const (
	Received Stage = iota
	Decoded
	Parsed
	Bound
	Handled
	Reported
)

func (s Stage) String() string {
	switch s {
	case Received:
		return "received"
	case Decoded:
		return "decoded"
	case Parsed:
		return "parsed"
	case Bound:
		return "bound"
	case Handled:
		return "handled"
	case Reported:
		return "reported"
	default:
		return fmt.Sprintf("stage(%d)", int(s))
	}
}

// Error records the stage that was being attempted when the run failed.
type Error struct {
	Stage Stage
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Strict decodes, parses and strictly binds encoded.
func Strict(encoded string) (playerstate.StrictState, error) {
	return run(encoded, playerstate.BindStrict)
}

// Permissive decodes, parses and permissively binds encoded.
func Permissive(encoded string) (playerstate.PermissiveState, error) {
	return run(encoded, playerstate.BindPermissive)
}

func run[S any](encoded string, bind func(jsonvalue.Value) (S, error)) (S, error) {
	var zero S

	raw, err := blob.Decode(encoded)
	if err != nil {
		return zero, &Error{Stage: Decoded, Err: err}
	}
	tree, err := jsonvalue.Parse(raw)
	if err != nil {
		return zero, &Error{Stage: Parsed, Err: err}
	}
	st, err := bind(tree)
	if err != nil {
		return zero, &Error{Stage: Bound, Err: err}
	}
	return st, nil
}
