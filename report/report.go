// Package report turns the outcome of a state update into the response sent
// to the client. Failures are classified by kind; internal details such as
// store errors or bound values are never echoed back.
package report

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/ggoodman/dungeons-and-money/internal/blob"
	"github.com/ggoodman/dungeons-and-money/internal/jsonvalue"
	"github.com/ggoodman/dungeons-and-money/players"
	"github.com/ggoodman/dungeons-and-money/playerstate"
)

// Kind classifies a Result.
type Kind string

const (
	KindOK            Kind = "ok"
	KindDecodeError   Kind = "decode_error"
	KindSyntaxError   Kind = "syntax_error"
	KindMissingField  Kind = "missing_field"
	KindTypeMismatch  Kind = "type_mismatch"
	KindUnknownField  Kind = "unknown_field"
	KindInvalidState  Kind = "invalid_state"
	KindInternalError Kind = "internal_error"

	// Kinds for requests refused before the pipeline runs.
	KindBadRequest       Kind = "bad_request"
	KindUnsupportedMedia Kind = "unsupported_media_type"
	KindTooLarge         Kind = "payload_too_large"
	KindUnauthorized     Kind = "unauthorized"
	KindForbidden        Kind = "forbidden"
	KindNotFound         Kind = "not_found"
)

// Result is the client-facing outcome of one request.
type Result struct {
	Status  int    `json:"-"`
	Kind    Kind   `json:"kind"`
	Policy  string `json:"policy,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Path    string `json:"path,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`

	Summary *players.Summary `json:"summary,omitempty"`
}

// Success reports an applied state.
func Success(policy playerstate.Policy, sum *players.Summary) Result {
	verb := "updated"
	if policy == playerstate.Strict {
		verb = "securely updated"
	}
	return Result{
		Status:  http.StatusOK,
		Kind:    KindOK,
		Policy:  policy.String(),
		Message: fmt.Sprintf("Player state for user %s %s. Sword level is now: %d.", sum.PlayerID, verb, sum.SwordLevel),
		Summary: sum,
	}
}

// Failure classifies err, which may be wrapped, into a Result.
func Failure(policy playerstate.Policy, err error) Result {
	r := Result{Policy: policy.String()}

	var (
		de *blob.DecodeError
		se *jsonvalue.SyntaxError
		be *playerstate.BindError
		ve *players.ValidationError
	)
	switch {
	case errors.As(err, &de):
		r.Status = http.StatusBadRequest
		r.Kind = KindDecodeError
		r.Message = "Invalid Base64 data"
	case errors.As(err, &se):
		r.Status = http.StatusBadRequest
		r.Kind = KindSyntaxError
		r.Message = "JSON Deserialization Error: " + se.Error()
		r.Line = se.Line
		r.Column = se.Column
	case errors.As(err, &be):
		r.Status = http.StatusBadRequest
		r.Field = be.Field
		r.Path = be.Path
		switch be.Kind {
		case playerstate.MissingField:
			r.Kind = KindMissingField
		case playerstate.UnknownField:
			r.Kind = KindUnknownField
		default:
			r.Kind = KindTypeMismatch
		}
		if be.Kind == playerstate.UnknownField && policy == playerstate.Strict {
			r.Message = "MITIGATED: Payload rejected due to unexpected fields. Error: " + be.Error()
		} else {
			r.Message = "JSON Deserialization Error: " + be.Error()
		}
	case errors.As(err, &ve):
		r.Status = http.StatusUnprocessableEntity
		r.Kind = KindInvalidState
		r.Path = ve.Path
		r.Message = "MITIGATED: Invalid item level detected. " + ve.Reason + "."
	default:
		r.Status = http.StatusInternalServerError
		r.Kind = KindInternalError
		r.Message = "Internal server error"
	}
	return r
}

// Error builds a Result for a request refused outside the pipeline.
func Error(status int, kind Kind, msg string) Result {
	return Result{Status: status, Kind: kind, Message: msg}
}

// Text renders the plain text body: the message followed by one ALERT line
// per side effect.
func (r Result) Text() string {
	var b strings.Builder
	b.WriteString(r.Message)
	if r.Summary != nil {
		for _, a := range r.Summary.Alerts {
			b.WriteString("\nALERT: ")
			b.WriteString(a)
		}
	}
	return b.String()
}
