package pipeline

import (
	"errors"

	"github.com/slok/modkeeper/internal/model"
)

// Kind is the category of a stage failure, it decides how the failure is reported.
type Kind string

const (
	KindNone          Kind = "none"
	KindUserCancelled Kind = "user-cancelled"
	KindAuth          Kind = "auth"
	KindConfiguration Kind = "configuration"
	KindPrivilege     Kind = "privilege"
	KindTransport     Kind = "transport"
	KindChangeMode    Kind = "change-default-mode"
	KindRescan        Kind = "rescan-instances"
	KindFatal         Kind = "fatal"
)

// Classify returns the kind of a stage error.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, model.ErrUserCancelled):
		return KindUserCancelled
	case errors.Is(err, model.ErrChangeDefaultMode):
		return KindChangeMode
	case errors.Is(err, model.ErrRescanInstances):
		return KindRescan
	case errors.Is(err, model.ErrAuthRejected):
		return KindAuth
	case errors.Is(err, model.ErrPrivilege):
		return KindPrivilege
	case errors.Is(err, model.ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, model.ErrTransportUnavailable):
		return KindTransport
	}
	return KindFatal
}

// IsLoopBack returns true for the kinds that ask to restart the selection instead of
// aborting.
func (k Kind) IsLoopBack() bool { return k == KindChangeMode || k == KindRescan }

// IsSilent returns true for the kinds that abort without telling the user.
func (k Kind) IsSilent() bool { return k == KindNone || k == KindUserCancelled || k.IsLoopBack() }

// Title returns the title of the message shown to the user for the kind.
func (k Kind) Title() string {
	switch k {
	case KindAuth:
		return "Authentication failed"
	case KindConfiguration:
		return "Configuration problem"
	case KindPrivilege:
		return "Not enough privileges"
	case KindTransport:
		return "Connection problem"
	}
	return "Unexpected error"
}
