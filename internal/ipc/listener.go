package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/metrics"
	"github.com/slok/modkeeper/internal/model"
)

// ListenerConfig is the configuration of the listener.
type ListenerConfig struct {
	Address   Address
	SocketDir string
	Sink      Sink
	Logger    log.Logger
}

func (c *ListenerConfig) defaults() error {
	if c.Address.Namespace == "" || c.Address.Endpoint == "" {
		return fmt.Errorf("address is required")
	}
	if c.SocketDir == "" {
		return fmt.Errorf("socket dir is required")
	}
	if c.Sink == nil {
		return fmt.Errorf("sink is required")
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ipc.Listener", "addr": c.Address.String()})
	return nil
}

// Listener serves the IPC channel of the live instance.
type Listener struct {
	socketPath string
	sink       Sink
	server     *http.Server
	logger     log.Logger
	ready      chan struct{}
}

// NewListener returns a new listener, it doesn't listen until Run is called.
func NewListener(cfg ListenerConfig) (*Listener, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	l := &Listener{
		socketPath: cfg.Address.SocketPath(cfg.SocketDir),
		sink:       cfg.Sink,
		logger:     cfg.Logger,
		ready:      make(chan struct{}),
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Route("/"+cfg.Address.Endpoint, func(r chi.Router) {
		r.Post("/probe", l.handleProbe)
		r.Post("/items", l.handleAddItem)
		r.Post("/front", l.handleBringToFront)
	})
	r.Handle("/metrics", promhttp.Handler())

	l.server = &http.Server{
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return l, nil
}

// Ready is closed once the listener accepts connections.
func (l *Listener) Ready() <-chan struct{} { return l.ready }

// Run listens and blocks until ctx is cancelled. A stale socket left by a dead instance
// is replaced, the caller must hold the single instance lock. Run can only be called once.
func (l *Listener) Run(ctx context.Context) error {
	if err := os.MkdirAll(filepath.Dir(l.socketPath), 0700); err != nil {
		return fmt.Errorf("could not create socket directory: %w", err)
	}
	if err := os.Remove(l.socketPath); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("could not remove stale socket: %w", err)
	}

	ln, err := net.Listen("unix", l.socketPath)
	if err != nil {
		return fmt.Errorf("could not listen on %s: %w", l.socketPath, err)
	}
	defer os.Remove(l.socketPath)

	errCh := make(chan error, 1)
	go func() {
		l.logger.Infof("IPC listening on %s", l.socketPath)
		if err := l.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	close(l.ready)

	select {
	case err := <-errCh:
		return fmt.Errorf("ipc server error: %w", err)
	case <-ctx.Done():
		l.logger.Infof("Shutting down IPC listener")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("ipc shutdown error: %w", err)
		}
		return nil
	}
}

func (l *Listener) handleProbe(w http.ResponseWriter, r *http.Request) {
	l.execute(w, r, model.Command{Kind: model.CommandProbe})
}

func (l *Listener) handleBringToFront(w http.ResponseWriter, r *http.Request) {
	l.execute(w, r, model.BringToFrontCommand())
}

func (l *Listener) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ID == "" {
		metrics.IPCCommands.WithLabelValues(string(model.CommandAddItem), metrics.ResultError).Inc()
		writeError(w, http.StatusBadRequest, fmt.Errorf("item id is required: %w", model.ErrNotValid))
		return
	}

	l.execute(w, r, model.AddItemCommand(req.ID), model.BringToFrontCommand())
}

// execute runs the commands in order, stopping on the first failure.
func (l *Listener) execute(w http.ResponseWriter, r *http.Request, cmds ...model.Command) {
	for _, cmd := range cmds {
		l.logger.Debugf("Command %s received", cmd)
		if err := l.sink.Execute(r.Context(), cmd); err != nil {
			metrics.IPCCommands.WithLabelValues(string(cmd.Kind), metrics.ResultError).Inc()
			l.logger.Errorf("Command %s failed: %s", cmd, err)

			status := http.StatusInternalServerError
			if errors.Is(err, model.ErrNotValid) {
				status = http.StatusBadRequest
			}
			writeError(w, status, err)
			return
		}
		metrics.IPCCommands.WithLabelValues(string(cmd.Kind), metrics.ResultOK).Inc()
	}

	w.WriteHeader(http.StatusNoContent)
}

func writeError(w http.ResponseWriter, status int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: err.Error()})
}
