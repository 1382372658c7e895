package engine

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "engine").Logger()
}

// SetLogger allows setting a custom logger
func SetLogger(l zerolog.Logger) {
	log = l.With().Str("component", "engine").Logger()
}

const (
	healthPath         = "/health"
	healthCheckTimeout = 3 * time.Second
	maxErrorBody       = 512
)

// FailoverConfig controls retries on the active endpoint and the background probe of the primary
type FailoverConfig struct {
	// MaxRetries is how many extra attempts the active endpoint gets before failover
	MaxRetries int
	// RetryDelay doubles after every retry
	RetryDelay time.Duration
	// HealthCheckInterval is how often a demoted primary is probed; zero disables probing
	HealthCheckInterval time.Duration
	// Timeout bounds one HTTP exchange
	Timeout time.Duration
	// ResendOnFailover re-posts a failed request to the endpoint failover selected. When false
	// the request fails and only later requests go to the new endpoint, so one quote never
	// reaches the engine twice.
	ResendOnFailover bool
}

// DefaultFailoverConfig neither retries nor re-sends; a failed request fails over for the next one
func DefaultFailoverConfig() FailoverConfig {
	return FailoverConfig{
		MaxRetries:          0,
		RetryDelay:          500 * time.Millisecond,
		HealthCheckInterval: 30 * time.Second,
		Timeout:             30 * time.Second,
		ResendOnFailover:    false,
	}
}

// endpointPool is the ordered set of engine base URLs; index 0 is the primary
type endpointPool struct {
	mu     sync.RWMutex
	urls   []string
	active int
}

func (p *endpointPool) current() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.urls[p.active]
}

func (p *endpointPool) onPrimary() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.active == 0
}

// candidates lists every endpoint except the active one, in rotation order
func (p *endpointPool) candidates() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]string, 0, len(p.urls)-1)
	for i := 1; i < len(p.urls); i++ {
		out = append(out, p.urls[(p.active+i)%len(p.urls)])
	}
	return out
}

func (p *endpointPool) activate(u string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, candidate := range p.urls {
		if candidate == u {
			p.active = i
			return
		}
	}
}

// Client posts route requests to a remote routing engine, failing over from the
// primary URL to backups and returning to the primary once it is healthy again.
type Client struct {
	httpClient *http.Client
	endpoints  *endpointPool
	config     FailoverConfig
	stop       context.CancelFunc
	done       chan struct{}
}

// NewClient validates the primary URL; backup URLs that do not parse are skipped with a warning.
func NewClient(primaryURL string, backupURLs []string, config FailoverConfig) (*Client, error) {
	primary, err := normalizeURL(primaryURL)
	if err != nil {
		return nil, fmt.Errorf("invalid primary engine url %q: %w", primaryURL, err)
	}

	urls := []string{primary}
	for _, raw := range backupURLs {
		u, err := normalizeURL(raw)
		if err != nil {
			log.Warn().Err(err).Str("url", raw).Msg("Invalid backup URL, skipping")
			continue
		}
		urls = append(urls, u)
	}

	c := &Client{
		httpClient: &http.Client{Timeout: config.Timeout},
		endpoints:  &endpointPool{urls: urls},
		config:     config,
	}
	if len(urls) > 1 && config.HealthCheckInterval > 0 {
		c.startHealthLoop()
	}

	log.Info().
		Str("primary", primary).
		Int("backups", len(urls)-1).
		Msg("Routing engine client initialized")
	return c, nil
}

func normalizeURL(raw string) (string, error) {
	raw = strings.TrimRight(strings.TrimSpace(raw), "/")
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("scheme must be http or https")
	}
	if u.Host == "" {
		return "", fmt.Errorf("missing host")
	}
	return raw, nil
}

// CurrentURL returns the endpoint requests are sent to
func (c *Client) CurrentURL() string {
	return c.endpoints.current()
}

// Close stops the health loop and waits for it to exit
func (c *Client) Close() {
	if c.stop == nil {
		return
	}
	c.stop()
	<-c.done
	c.stop = nil
}

func (c *Client) startHealthLoop() {
	ctx, cancel := context.WithCancel(context.Background())
	c.stop = cancel
	c.done = make(chan struct{})

	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.config.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				c.restorePrimary(ctx)
			}
		}
	}()
}

// restorePrimary moves traffic back to the primary once it answers its health check
func (c *Client) restorePrimary(ctx context.Context) {
	if c.endpoints.onPrimary() {
		return
	}
	primary := c.endpoints.urls[0]
	if c.healthy(ctx, primary) {
		c.endpoints.activate(primary)
		log.Info().Str("url", primary).Msg("Restored primary endpoint")
	}
}

func (c *Client) healthy(ctx context.Context, endpoint string) bool {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+healthPath, nil)
	if err != nil {
		return false
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		log.Debug().Err(err).Str("url", endpoint).Msg("Health check failed")
		return false
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	return resp.StatusCode == http.StatusOK
}

// failover activates the first healthy endpoint after the current one
func (c *Client) failover(ctx context.Context) bool {
	candidates := c.endpoints.candidates()
	if len(candidates) == 0 {
		return false
	}
	for _, candidate := range candidates {
		if c.healthy(ctx, candidate) {
			c.endpoints.activate(candidate)
			log.Info().Str("url", candidate).Msg("Failover to endpoint")
			return true
		}
	}
	log.Warn().Str("url", c.CurrentURL()).Msg("All endpoints unhealthy, staying on current")
	return false
}

// post sends one JSON request to the active endpoint and returns the 200 body
func (c *Client) post(ctx context.Context, path string, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.CurrentURL()+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, truncate(body, maxErrorBody))
	}
	return body, nil
}

// send retries on the active endpoint with exponential backoff, then fails over once
func (c *Client) send(ctx context.Context, path string, payload []byte) ([]byte, error) {
	var lastErr error
	delay := c.config.RetryDelay

	for attempt := 0; attempt <= c.config.MaxRetries; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil, ctx.Err()
			case <-timer.C:
			}
			delay *= 2
		}

		body, err := c.post(ctx, path, payload)
		if err == nil {
			return body, nil
		}
		lastErr = err
		if ctx.Err() != nil {
			return nil, fmt.Errorf("engine request aborted: %w", err)
		}
		log.Debug().Err(err).Int("attempt", attempt+1).Str("url", c.CurrentURL()).Msg("Engine request failed")
	}

	if c.failover(ctx) && c.config.ResendOnFailover {
		body, err := c.post(ctx, path, payload)
		if err != nil {
			return nil, fmt.Errorf("failover request failed: %w (original: %w)", err, lastErr)
		}
		return body, nil
	}

	return nil, fmt.Errorf("engine request failed after %d attempts: %w", c.config.MaxRetries+1, lastErr)
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
