// Package ipc lets a launch hand its intent to the live instance of the same game mode.
//
// The live instance serves HTTP on a unix domain socket named after the game mode, the
// other launches dial it, probe it and send their commands.
package ipc

import (
	"context"
	"path/filepath"

	"github.com/slok/modkeeper/internal/conventions"
	"github.com/slok/modkeeper/internal/model"
)

// Address identifies the IPC channel of a game mode.
type Address struct {
	Namespace string
	Endpoint  string
}

// NewAddress returns the address of the IPC channel of a game mode.
func NewAddress(appName, modeID string) Address {
	return Address{
		Namespace: conventions.IPCNamespace(appName, modeID),
		Endpoint:  conventions.IPCEndpoint(modeID),
	}
}

// SocketPath returns the socket file path of the address.
func (a Address) SocketPath(dir string) string {
	return filepath.Join(dir, a.Namespace+".sock")
}

func (a Address) String() string { return a.Namespace + "/" + a.Endpoint }

// Sink executes the commands received by the listener.
type Sink interface {
	Execute(ctx context.Context, cmd model.Command) error
}

type addItemRequest struct {
	ID string `json:"id"`
}

type errorResponse struct {
	Error string `json:"error"`
}
