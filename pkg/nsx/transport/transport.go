// Package transport is the authenticated REST connection to the controller's
// policy API.
package transport

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cuemby/nsx-orchestrator/pkg/log"
	"github.com/cuemby/nsx-orchestrator/pkg/metrics"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// PolicyAPIPrefix is prepended to every /infra path
const PolicyAPIPrefix = "/policy/api/v1"

// DefaultTimeout bounds every call when no timeout is configured
const DefaultTimeout = 30 * time.Second

// Config describes how to reach a controller
type Config struct {
	// BaseURL overrides Hostname/Port, e.g. for an httptest server
	BaseURL  string
	Hostname string
	Port     int
	Username string
	Password string

	// InsecureSkipVerify disables certificate and hostname validation
	InsecureSkipVerify bool

	// CAFile is a PEM bundle trusted in addition to the system roots
	CAFile string

	// Timeout applies to every call
	Timeout time.Duration
}

// Client issues policy API calls
type Client struct {
	baseURL  string
	username string
	password string
	http     *http.Client
	logger   zerolog.Logger
}

// New creates a client. Credentials are sent with every call.
func New(cfg Config) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		if cfg.Hostname == "" {
			return nil, fmt.Errorf("controller hostname is required")
		}
		port := cfg.Port
		if port == 0 {
			port = 443
		}
		base = "https://" + cfg.Hostname + ":" + strconv.Itoa(port)
	}
	base = strings.TrimSuffix(base, "/") + PolicyAPIPrefix

	tlsConfig, err := tlsConfigFor(cfg)
	if err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		baseURL:  base,
		username: cfg.Username,
		password: cfg.Password,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				Proxy:           http.ProxyFromEnvironment,
				TLSClientConfig: tlsConfig,
			},
		},
		logger: log.WithComponent("transport"),
	}, nil
}

func tlsConfigFor(cfg Config) (*tls.Config, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.InsecureSkipVerify, //nolint:gosec // opt-in per provider
	}
	if cfg.CAFile == "" {
		return tlsConfig, nil
	}

	caPEM, err := os.ReadFile(cfg.CAFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read CA bundle: %w", err)
	}
	pool, err := x509.SystemCertPool()
	if err != nil || pool == nil {
		pool = x509.NewCertPool()
	}
	if !pool.AppendCertsFromPEM(caPEM) {
		return nil, fmt.Errorf("no certificates found in CA bundle %s", cfg.CAFile)
	}
	tlsConfig.RootCAs = pool
	return tlsConfig, nil
}

// Get reads the object or list at path into out
func (c *Client) Get(ctx context.Context, path string, query url.Values, out any) error {
	return c.do(ctx, http.MethodGet, path, query, nil, out)
}

// Patch creates or updates the object at path
func (c *Client) Patch(ctx context.Context, path string, body any) error {
	return c.do(ctx, http.MethodPatch, path, nil, body, nil)
}

// Delete removes the object at path
func (c *Client) Delete(ctx context.Context, path string, query url.Values) error {
	return c.do(ctx, http.MethodDelete, path, query, nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	timer := metrics.NewTimer()
	status := "error"
	defer func() {
		timer.ObserveDurationVec(metrics.APIRequestDuration, method)
		metrics.APIRequestsTotal.WithLabelValues(method, status).Inc()
	}()

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s %s: %w", method, path, err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s: %w", method, path, err)
	}
	req.SetBasicAuth(c.username, c.password)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-Id", requestID)

	c.logger.Debug().
		Str("method", method).
		Str("path", path).
		Str("request_id", requestID).
		Msg("controller call")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	status = strconv.Itoa(resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read %s %s reply: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(method, path, resp.StatusCode, data)
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("failed to decode %s %s reply: %w", method, path, err)
	}
	return nil
}
