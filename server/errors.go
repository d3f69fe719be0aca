package server

import (
	"errors"
	"fmt"
)

// ErrorKind enumerates the protocol error taxonomy. Kinds travel on the wire
// verbatim so clients can branch without matching message strings.
type ErrorKind string

const (
	KindAuthError         ErrorKind = "AuthError"
	KindForbidden         ErrorKind = "ForbiddenError"
	KindWrongRoom         ErrorKind = "WrongRoomError"
	KindPointLoadFailed   ErrorKind = "PointLoadFailed"
	KindStoreUnavailable  ErrorKind = "StoreUnavailable"
	KindInvalidTarget     ErrorKind = "InvalidTargetError"
	KindInvalidTransition ErrorKind = "InvalidTransitionError"
	KindStaleRoom         ErrorKind = "StaleRoomError"
	KindRoomFull          ErrorKind = "RoomFullError"
)

// RoomError is an error scoped to one connection or one room. Nothing in this
// package is fatal to the process.
type RoomError struct {
	Kind    ErrorKind
	Message string
}

func (e *RoomError) Error() string { return string(e.Kind) + ": " + e.Message }

func roomErrf(kind ErrorKind, format string, args ...any) *RoomError {
	return &RoomError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the protocol kind from err, or "" for errors that never
// cross the wire.
func KindOf(err error) ErrorKind {
	var re *RoomError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// Graph lookup sentinels. "No such point" and "try again" must stay
// distinguishable for the rooms to map them onto the taxonomy above.
var (
	ErrPointNotFound    = errors.New("point not found")
	ErrStoreUnavailable = errors.New("graph store unavailable")
)
