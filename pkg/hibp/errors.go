package hibp

import (
	"errors"
	"fmt"
)

// ErrEmptyPassword is returned when the candidate password is blank.
var ErrEmptyPassword = errors.New("password cannot be empty")

// LookupKind classifies a failed range query.
type LookupKind string

const (
	// LookupTimeout covers dial or read deadlines being exceeded.
	LookupTimeout LookupKind = "timeout"
	// LookupTransport covers DNS, connection and protocol failures.
	LookupTransport LookupKind = "transport"
	// LookupService covers non-2xx responses from the range API.
	LookupService LookupKind = "service"
)

// LookupError is the failure surface of Client.Check. Callers that treat
// lookup failures as "not breached" (fail-open) can match it with errors.As
// without caring about the kind.
type LookupError struct {
	Kind   LookupKind
	Status int // HTTP status, set for LookupService
	Err    error
}

func (e *LookupError) Error() string {
	if e.Kind == LookupService {
		return fmt.Sprintf("breach lookup failed (%s, status %d): %v", e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("breach lookup failed (%s): %v", e.Kind, e.Err)
}

func (e *LookupError) Unwrap() error {
	return e.Err
}

// IsLookupError reports whether err is a failure of the lookup itself, as
// opposed to invalid input such as ErrEmptyPassword.
func IsLookupError(err error) bool {
	var le *LookupError
	return errors.As(err, &le)
}
