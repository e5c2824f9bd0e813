// Package protect is the camera platform client: session management,
// bootstrap camera registry, historical event fetches and the real-time
// websocket event stream.
package protect

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"lpr-capture-service/internal/domain/lpr"
)

const (
	bootstrapPath = "/proxy/protect/api/bootstrap"
	eventsPath    = "/proxy/protect/api/events"
	loginPath     = "/api/auth/login"
	updatesPath   = "/proxy/protect/ws/updates"

	requestTimeout = 30 * time.Second
)

// Config carries the connection settings for one Protect console.
type Config struct {
	Host      string
	Port      int
	APIKey    string
	Username  string
	Password  string
	VerifySSL bool
}

// Client talks to one Protect console. Connect must succeed before any
// other call. Safe for use from a single ingestion goroutine plus the
// websocket reader.
type Client struct {
	cfg        Config
	baseURL    string
	httpClient *http.Client
	log        zerolog.Logger

	mu      sync.RWMutex
	token   string
	cameras []lpr.Camera
}

// NewClient builds a client; it does not touch the network.
func NewClient(cfg Config, log zerolog.Logger) *Client {
	transport := &http.Transport{}
	if !cfg.VerifySSL {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // operator opt-in for self-signed consoles
	}
	return &Client{
		cfg:     cfg,
		baseURL: fmt.Sprintf("https://%s:%d", cfg.Host, cfg.Port),
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   requestTimeout,
		},
		log: log.With().Str("component", "protect").Logger(),
	}
}

// Connect establishes a session (when username/password auth is in use) and
// loads the bootstrap camera registry.
func (c *Client) Connect(ctx context.Context) error {
	if c.cfg.APIKey == "" {
		if err := c.login(ctx); err != nil {
			return fmt.Errorf("protect login: %w", err)
		}
	}

	var bs wireBootstrap
	if err := c.getJSON(ctx, bootstrapPath, nil, &bs); err != nil {
		return fmt.Errorf("protect bootstrap: %w", err)
	}

	cameras := make([]lpr.Camera, 0, len(bs.Cameras))
	for _, wc := range bs.Cameras {
		cameras = append(cameras, wc.toDomain())
	}

	c.mu.Lock()
	c.cameras = cameras
	c.mu.Unlock()

	c.log.Info().Int("cameras", len(cameras)).Msg("connected to Protect")
	return nil
}

// Cameras returns the registry loaded by the last Connect.
func (c *Client) Cameras() []lpr.Camera {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]lpr.Camera, len(c.cameras))
	copy(out, c.cameras)
	return out
}

// FetchEvents retrieves detection events with start >= since, up to limit.
func (c *Client) FetchEvents(ctx context.Context, since time.Time, limit int) ([]lpr.DetectionEvent, error) {
	q := url.Values{}
	q.Set("start", strconv.FormatInt(since.UnixMilli(), 10))
	q.Set("end", strconv.FormatInt(time.Now().UnixMilli(), 10))
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var wes []wireEvent
	if err := c.getJSON(ctx, eventsPath, q, &wes); err != nil {
		return nil, fmt.Errorf("protect fetch events: %w", err)
	}

	events := make([]lpr.DetectionEvent, 0, len(wes))
	for _, we := range wes {
		events = append(events, we.toDomain())
	}
	return events, nil
}

// Close tears the session down. Best-effort; errors are logged only.
func (c *Client) Close() error {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) login(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.cfg.Username,
		"password": c.cfg.Password,
	})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+loginPath, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed with HTTP %d", resp.StatusCode)
	}

	for _, ck := range resp.Cookies() {
		if ck.Name == "TOKEN" {
			c.mu.Lock()
			c.token = ck.Value
			c.mu.Unlock()
			return nil
		}
	}
	return fmt.Errorf("login response carried no session token")
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	c.authorize(req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("GET %s: HTTP %d: %s", path, resp.StatusCode, body)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) authorize(h http.Header) {
	if c.cfg.APIKey != "" {
		h.Set("X-API-KEY", c.cfg.APIKey)
		return
	}
	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		h.Set("Cookie", "TOKEN="+token)
	}
}
