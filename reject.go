/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"errors"
	"fmt"
)

// RejectKind is the machine-readable classification of a refused operation.
type RejectKind string

const (
	// RejectInvalidTransition covers lifecycle violations, such as
	// advancing before start or joining after finish.
	RejectInvalidTransition RejectKind = "invalid_transition"

	// RejectNameConflict means the requested display name is already
	// bound to a different client token.
	RejectNameConflict RejectKind = "name_conflict"

	// RejectIdentityMismatch means the client token is already bound
	// to a different display name than the one requested.
	RejectIdentityMismatch RejectKind = "identity_mismatch"

	// RejectUnauthorized means a submission's token does not resolve
	// to the claimed display name.
	RejectUnauthorized RejectKind = "unauthorized"

	// RejectInvalidArgument covers malformed input, such as negative
	// points or an unregistered player name in a score award.
	RejectInvalidArgument RejectKind = "invalid_argument"
)

// Reject is the error returned to the originating caller when an
// operation is refused. A rejected operation never mutates session
// state.
type Reject struct {
	Kind    RejectKind
	Message string
}

func (r *Reject) Error() string {
	return string(r.Kind) + ": " + r.Message
}

func rejectf(kind RejectKind, format string, args ...any) *Reject {
	return &Reject{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
	}
}

// asReject unwraps err into a *Reject, falling back to an
// invalid_argument rejection so the transport always has a kind to
// report.
func asReject(err error) *Reject {
	var r *Reject
	if errors.As(err, &r) {
		return r
	}

	return &Reject{
		Kind:    RejectInvalidArgument,
		Message: err.Error(),
	}
}
