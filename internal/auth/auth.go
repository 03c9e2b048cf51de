// Package auth validates the credentials of the remote item repository.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/slok/modkeeper/internal/log"
	"github.com/slok/modkeeper/internal/model"
)

// CheckToken checks locally that a token is usable at the time. JWT tokens must not be
// expired, opaque tokens can only be checked by the repository.
func CheckToken(token string, now time.Time) error {
	if token == "" {
		return fmt.Errorf("missing token: %w", model.ErrAuthRejected)
	}

	// JWTs have three dot separated segments.
	if strings.Count(token, ".") != 2 {
		return nil
	}

	claims := &jwt.RegisteredClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return fmt.Errorf("malformed token: %w", errors.Join(model.ErrAuthRejected, err))
	}

	if claims.ExpiresAt != nil && !now.Before(claims.ExpiresAt.Time) {
		return fmt.Errorf("token expired at %s: %w", claims.ExpiresAt.Time.Format(time.RFC3339), model.ErrAuthRejected)
	}

	return nil
}

// Client is the remote item repository client.
type Client interface {
	// Validate returns the credentials completed by the repository, model.ErrAuthRejected
	// when the repository rejects them.
	Validate(ctx context.Context, creds model.Credentials) (model.Credentials, error)
}

// OfflineClient is used when there is no repository configured, it only checks the
// credentials locally.
type OfflineClient struct {
	Now func() time.Time
}

func (c OfflineClient) Validate(ctx context.Context, creds model.Credentials) (model.Credentials, error) {
	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if err := CheckToken(creds.Token, now()); err != nil {
		return model.Credentials{}, err
	}
	return creds, nil
}

// HTTPClientConfig is the configuration of the repository HTTP client.
type HTTPClientConfig struct {
	URL        string
	HTTPClient *http.Client
	Now        func() time.Time
	Logger     log.Logger
}

func (c *HTTPClientConfig) defaults() error {
	if c.URL == "" {
		return fmt.Errorf("url is required")
	}
	c.URL = strings.TrimSuffix(c.URL, "/")
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = log.Noop
	}
	c.Logger = c.Logger.WithValues(log.Kv{"svc": "auth.HTTPClient"})
	return nil
}

// HTTPClient validates the credentials against the repository API.
type HTTPClient struct {
	url    string
	client *http.Client
	now    func() time.Time
	logger log.Logger
}

// NewHTTPClient returns a new repository HTTP client.
func NewHTTPClient(cfg HTTPClientConfig) (*HTTPClient, error) {
	if err := cfg.defaults(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &HTTPClient{
		url:    cfg.URL,
		client: cfg.HTTPClient,
		now:    cfg.Now,
		logger: cfg.Logger,
	}, nil
}

type validateResponse struct {
	Name string `json:"name"`
}

// Validate checks the token locally and then with the repository.
func (c *HTTPClient) Validate(ctx context.Context, creds model.Credentials) (model.Credentials, error) {
	if err := CheckToken(creds.Token, c.now()); err != nil {
		return model.Credentials{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url+"/v1/users/validate", nil)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("could not create request: %w", err)
	}
	req.Header.Set("apikey", creds.Token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("could not reach the repository: %w", errors.Join(model.ErrTransportUnavailable, err))
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		c.logger.Warningf("Repository rejected the credentials with %s", resp.Status)
		return model.Credentials{}, fmt.Errorf("repository rejected the credentials: %w", model.ErrAuthRejected)
	case resp.StatusCode != http.StatusOK:
		return model.Credentials{}, fmt.Errorf("repository answered %s", resp.Status)
	}

	var vr validateResponse
	if err := json.NewDecoder(resp.Body).Decode(&vr); err != nil {
		return model.Credentials{}, fmt.Errorf("could not decode repository response: %w", err)
	}

	if vr.Name != "" {
		creds.Username = vr.Name
	}
	c.logger.Debugf("Credentials of %s validated", creds.Username)

	return creds, nil
}
