// Package guard holds the error taxonomy and page rules shared by the session
// guard services.
package guard

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a guard failure. Callers branch on Kind (or the matching
// sentinel via errors.Is), never on message text.
type Kind int

const (
	// KindValidation means login input was missing or malformed. No state changed.
	KindValidation Kind = iota + 1
	// KindNotAuthenticated means a protected call was attempted without a valid session.
	KindNotAuthenticated
	// KindAuthExpired means the authority rejected the credential. The expiry
	// transition has already run; the call must not be retried.
	KindAuthExpired
	// KindConnection means no response was obtained from the authority.
	KindConnection
	// KindRejected means the authority refused a login attempt.
	KindRejected
	// KindStatus means a JSON call returned a non-success status other than 401.
	KindStatus
)

// String returns the kind name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotAuthenticated:
		return "not_authenticated"
	case KindAuthExpired:
		return "auth_expired"
	case KindConnection:
		return "connection"
	case KindRejected:
		return "rejected"
	case KindStatus:
		return "status"
	default:
		return "unknown"
	}
}

// Sentinel errors for use with errors.Is().
var (
	ErrValidation       = errors.New("validation failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrAuthExpired      = errors.New("authentication expired")
	ErrConnection       = errors.New("connection error")
	ErrRejected         = errors.New("login rejected")
	ErrStatus           = errors.New("unexpected status")
)

var sentinels = map[Kind]error{
	KindValidation:       ErrValidation,
	KindNotAuthenticated: ErrNotAuthenticated,
	KindAuthExpired:      ErrAuthExpired,
	KindConnection:       ErrConnection,
	KindRejected:         ErrRejected,
	KindStatus:           ErrStatus,
}

// Error is the structured error returned by the guard services.
type Error struct {
	Kind Kind
	// Op names the operation that failed ("send", "verify", "login", ...).
	Op string
	// Target is the URL or path involved, when any.
	Target string
	// Status is the HTTP status code, when a response was received.
	Status int
	// Field names the offending input for KindValidation.
	Field string
	// Message is the authority's error message, when it sent one.
	Message string
	// Err is the underlying cause.
	Err error
}

// Error returns a human-readable description.
func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString("sessionguard")
	if e.Op != "" {
		b.WriteString(" ")
		b.WriteString(e.Op)
	}
	b.WriteString(": ")
	b.WriteString(sentinels[e.Kind].Error())
	if e.Field != "" {
		fmt.Fprintf(&b, " (field %s)", e.Field)
	}
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Target != "" {
		fmt.Fprintf(&b, " [%s]", e.Target)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is supports errors.Is(err, ErrAuthExpired) and friends.
func (e *Error) Is(target error) bool {
	s, ok := sentinels[e.Kind]
	return ok && s == target
}

// KindOf returns the Kind of err, or 0 when err is not a guard error.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return 0
}
