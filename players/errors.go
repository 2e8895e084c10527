package players

import "fmt"

// ValidationError reports a bound state whose values are out of range.
type ValidationError struct {
	// Path is the dotted path of the offending value.
	Path string
	// Reason is a human-readable sentence.
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid value for `%s`: %s", e.Path, e.Reason)
}
