// Package blob reverses the transport encoding applied to client-supplied
// state payloads. It only undoes the encoding; it knows nothing about what
// the decoded bytes mean.
package blob

import (
	"encoding/base64"
	"errors"
	"fmt"
)

// DecodeError reports a payload that is not valid standard base64.
type DecodeError struct {
	// Offset is the byte offset of the first offending input byte, or -1
	// when the decoder could not attribute the failure to a position.
	Offset int64
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Offset >= 0 {
		return fmt.Sprintf("invalid base64 data at input byte %d", e.Offset)
	}
	return fmt.Sprintf("invalid base64 data: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Encode applies the transport encoding. It exists mostly for tests and
// clients built against this module.
func Encode(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

// Decode reverses the standard, padded base64 alphabet.
func Decode(s string) ([]byte, error) {
	b, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		var corrupt base64.CorruptInputError
		if errors.As(err, &corrupt) {
			return nil, &DecodeError{Offset: int64(corrupt), Err: err}
		}
		return nil, &DecodeError{Offset: -1, Err: err}
	}
	return b, nil
}
