package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
)

// ClientConfig is the configuration of the client.
type ClientConfig struct {
	Address   Address
	SocketDir string
	// ProbeTimeout bounds the liveness probe done when dialing.
	ProbeTimeout time.Duration
	Logger       log.Logger
}

func (c *ClientConfig) defaults() error {
	if c.Address.Namespace == "" || c.Address.Endpoint == "" {
		return fmt.Errorf("address is required")
	}
	if c.SocketDir == "" {
		return fmt.Errorf("socket dir is required")
	}
	if c.ProbeTimeout == 0 {
		c.ProbeTimeout = 2 * time.Second
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "ipc.Client", "addr": c.Address.String()})
	return nil
}

// Client sends commands to the live instance. Commands are sent synchronously, the ones
// sent by a client arrive in order.
type Client struct {
	baseURL string
	http    *http.Client
	logger  log.Logger
}

// Dial connects to the live instance listener and probes it. If the listener is missing or
// doesn't answer the probe the error wraps model.ErrTransportUnavailable.
func Dial(ctx context.Context, cfg ClientConfig) (*Client, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	socketPath := cfg.Address.SocketPath(cfg.SocketDir)
	dialer := &net.Dialer{Timeout: cfg.ProbeTimeout}
	c := &Client{
		baseURL: "http://" + cfg.Address.Namespace + "/" + cfg.Address.Endpoint,
		http: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, _, _ string) (net.Conn, error) {
					return dialer.DialContext(ctx, "unix", socketPath)
				},
			},
		},
		logger: cfg.Logger,
	}

	probeCtx, cancel := context.WithTimeout(ctx, cfg.ProbeTimeout)
	defer cancel()
	if err := c.Probe(probeCtx); err != nil {
		c.Close()
		if !errors.Is(err, model.ErrTransportUnavailable) {
			err = fmt.Errorf("%w: %w", model.ErrTransportUnavailable, err)
		}
		return nil, fmt.Errorf("could not probe listener: %w", err)
	}

	c.logger.Debugf("Connected to live instance")
	return c, nil
}

// Probe checks the listener is alive.
func (c *Client) Probe(ctx context.Context) error {
	return c.post(ctx, "/probe", nil)
}

// AddItem asks the live instance to add an item and come to the front.
func (c *Client) AddItem(ctx context.Context, id string) error {
	return c.post(ctx, "/items", addItemRequest{ID: id})
}

// BringToFront asks the live instance to come to the front.
func (c *Client) BringToFront(ctx context.Context) error {
	return c.post(ctx, "/front", nil)
}

// Close releases the client connections.
func (c *Client) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *Client) post(ctx context.Context, path string, body any) error {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not marshal request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", model.ErrTransportUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 == 2 {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil || er.Error == "" {
		er.Error = resp.Status
	}
	if resp.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("live instance rejected the command: %s: %w", er.Error, model.ErrNotValid)
	}
	return fmt.Errorf("live instance failed the command: %s", er.Error)
}
