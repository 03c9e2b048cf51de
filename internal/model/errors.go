package model

import "errors"

var (
	// ErrNotFound is returned when a resource is not found.
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists is returned when a resource already exists.
	ErrAlreadyExists = errors.New("already exists")
	// ErrNotValid is returned when a resource is not valid.
	ErrNotValid = errors.New("not valid")
	// ErrInvalidState is returned when an operation is not allowed in the current state.
	ErrInvalidState = errors.New("invalid state")

	// ErrUserCancelled is returned when the user abandoned an interactive step.
	// It is never shown as an error.
	ErrUserCancelled = errors.New("cancelled by user")
	// ErrAuthRejected is returned when the credentials were rejected or expired and the
	// user can be asked again.
	ErrAuthRejected = errors.New("authentication rejected")
	// ErrConfiguration is returned when the installation or mode is misconfigured.
	ErrConfiguration = errors.New("configuration error")
	// ErrPrivilege is returned when a path can't be written for real.
	ErrPrivilege = errors.New("insufficient privileges")
	// ErrTransportUnavailable is returned when the instance lock or the IPC listener
	// can't be reached.
	ErrTransportUnavailable = errors.New("transport unavailable")

	// ErrChangeDefaultMode is returned when the user asked to pick another game mode.
	ErrChangeDefaultMode = errors.New("change default game mode requested")
	// ErrRescanInstances is returned when the user asked to rescan installed games.
	ErrRescanInstances = errors.New("rescan of installed games requested")
)
