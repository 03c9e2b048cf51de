// Package ui marshals every user interaction onto a single UI loop and executes the
// commands sent to the live instance.
package ui

import (
	"context"

	"github.com/slok/modkeeper/internal/model"
	"github.com/slok/modkeeper/internal/task"
)

// MessageLevel is the severity of a message shown to the user.
type MessageLevel string

const (
	MessageInfo    MessageLevel = "info"
	MessageWarning MessageLevel = "warning"
	MessageError   MessageLevel = "error"
)

// MakeWritableAnswer is the answer to the read-only files question.
type MakeWritableAnswer struct {
	Agree    bool
	Remember bool
}

// Presenter is the user facing surface. All the methods are called from the UI loop.
//
// Interactive methods return model.ErrUserCancelled when the user abandons them.
type Presenter interface {
	ShowMessage(ctx context.Context, level MessageLevel, title, msg string) error
	// AskInstallPath returns model.ErrChangeDefaultMode or model.ErrRescanInstances when
	// the user asks for them instead of a path.
	AskInstallPath(ctx context.Context, d model.Descriptor, defaultPath string) (string, error)
	FirstRunSetup(ctx context.Context, mode model.GameMode) error
	ConfirmMakeWritable(ctx context.Context, path string) (MakeWritableAnswer, error)
	Login(ctx context.Context, reason string) (model.Credentials, error)
	SelectMode(ctx context.Context, ds []model.Descriptor) (string, error)
	ConfirmOverwrite(ctx context.Context, item model.ItemURI) (bool, error)
	ItemQueued(ctx context.Context, item model.ItemURI) error
	BringToFront(ctx context.Context) error
	ShowProgress(ctx context.Context, p task.Progress)
}

// Downloads receives the items added to the live instance.
type Downloads interface {
	Exists(ctx context.Context, item model.ItemURI) (bool, error)
	Enqueue(ctx context.Context, item model.ItemURI, replace bool) error
}
