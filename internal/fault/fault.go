// Package fault classifies every remote-call failure into one of four kinds
// before it reaches the presentation layer.
//
// Connectivity means the backend could not be talked to at all (network,
// timeout, malformed response). SoftDomain is a recognized empty state such as
// "no report yet". HardDomain is any other non-2xx answer. UserAborted is a
// declined confirmation and is never shown as an error.
package fault

import (
	"errors"
	"fmt"
	"strings"
)

// Kind is the classification of a failure.
type Kind int

const (
	KindUnknown Kind = iota
	KindConnectivity
	KindSoftDomain
	KindHardDomain
	KindUserAborted
)

// String returns the metric/log label of the kind.
func (k Kind) String() string {
	switch k {
	case KindConnectivity:
		return "connectivity"
	case KindSoftDomain:
		return "soft"
	case KindHardDomain:
		return "hard"
	case KindUserAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Structured codes carried in Error.Code.
const (
	CodeNoReport  = "no_report"
	CodeNotFound  = "not_found"
	CodeInvalid   = "invalid"
	CodeConflict  = "conflict"
	CodeOffline   = "offline"
	CodeTimeout   = "timeout"
	CodeMalformed = "malformed"
)

// Error is a classified failure.
type Error struct {
	Op     string // e.g. "GET /dashboard"
	Kind   Kind
	Status int    // HTTP status, 0 for transport failures
	Detail string // server-supplied detail or status text
	Code   string
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Op != "" {
		b.WriteString(e.Op)
		b.WriteString(": ")
	}
	switch {
	case e.Status != 0:
		fmt.Fprintf(&b, "%d %s", e.Status, e.Detail)
	case e.Detail != "":
		b.WriteString(e.Detail)
	case e.Err != nil:
		b.WriteString(e.Err.Error())
	default:
		b.WriteString(e.Kind.String())
	}
	if e.Status == 0 && e.Detail != "" && e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches sentinels by kind and code so errors.Is(err, ErrOffline) works
// for any offline error regardless of Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Code != "" && t.Code == e.Code
}

// ErrOffline is returned by operations short-circuited because the backend is
// not known to be online. No network call was made.
var ErrOffline = &Error{Kind: KindConnectivity, Code: CodeOffline, Detail: "backend offline"}

// Connectivity builds a transport-level failure.
func Connectivity(op string, err error) *Error {
	return &Error{Op: op, Kind: KindConnectivity, Err: err}
}

// Soft builds a recognized empty-state failure.
func Soft(op string, status int, detail, code string) *Error {
	return &Error{Op: op, Kind: KindSoftDomain, Status: status, Detail: detail, Code: code}
}

// Hard builds a domain failure carrying the server detail.
func Hard(op string, status int, detail, code string) *Error {
	return &Error{Op: op, Kind: KindHardDomain, Status: status, Detail: detail, Code: code}
}

// Aborted builds a declined-confirmation error.
func Aborted(op string) *Error {
	return &Error{Op: op, Kind: KindUserAborted, Detail: "cancelled by user"}
}

// KindOf returns the kind of err. Unclassified non-nil errors are reported as
// connectivity failures: anything that never produced an HTTP answer.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindConnectivity
}

// As extracts the *Error from err.
func As(err error) (*Error, bool) {
	var fe *Error
	ok := errors.As(err, &fe)
	return fe, ok
}

func IsConnectivity(err error) bool { return err != nil && KindOf(err) == KindConnectivity }
func IsSoft(err error) bool         { return err != nil && KindOf(err) == KindSoftDomain }
func IsHard(err error) bool         { return err != nil && KindOf(err) == KindHardDomain }
func IsAborted(err error) bool      { return err != nil && KindOf(err) == KindUserAborted }

// Message returns the text to show a user for err: the server detail when one
// exists, otherwise the error string.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if fe, ok := As(err); ok && fe.Detail != "" {
		return fe.Detail
	}
	return err.Error()
}
