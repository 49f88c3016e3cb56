// Package librelink is a client for the LibreLinkUp follower API.
package librelink

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/net/publicsuffix"
)

// LibreLinkUp API settings. The service rejects unknown product/version pairs.
const (
	DefaultVersion   = "4.10.0"
	DefaultProduct   = "llu.ios"
	DefaultUserAgent = "Mozilla/5.0 (iPhone; CPU OS 17_4.1 like Mac OS X) AppleWebKit/536.26 (KHTML, like Gecko) Version/17.4.1 Mobile/10A5355d Safari/8536.25"
	DefaultTimeout   = 30 * time.Second
)

// API paths.
const (
	loginPath       = "/llu/auth/login"
	connectionsPath = "/llu/connections"
)

// Client is an HTTP client for the LibreLinkUp API. It keeps a cookie jar so
// session-affinity cookies are replayed across calls. It holds no auth state;
// credentials are passed per call.
type Client struct {
	HTTPClient *http.Client
	Version    string
	Product    string
	UserAgent  string
	logger     zerolog.Logger
	baseURL    string // overrides region hosts, for tests
}

// Option configures a Client.
type Option func(*Client)

// WithVersion sets the product version header.
func WithVersion(version string) Option {
	return func(c *Client) {
		if version != "" {
			c.Version = version
		}
	}
}

// WithProduct sets the product header.
func WithProduct(product string) Option {
	return func(c *Client) {
		if product != "" {
			c.Product = product
		}
	}
}

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.HTTPClient.Timeout = timeout
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithBaseURL sends every request to baseURL instead of the region host.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = baseURL
	}
}

// NewClient creates a new LibreLinkUp API client.
func NewClient(opts ...Option) *Client {
	// cookiejar.New never returns an error.
	jar, _ := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	c := &Client{
		HTTPClient: &http.Client{
			Timeout: DefaultTimeout,
			Jar:     jar,
		},
		Version:   DefaultVersion,
		Product:   DefaultProduct,
		UserAgent: DefaultUserAgent,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// endpoint builds the URL for path in region.
func (c *Client) endpoint(region Region, path string) (string, error) {
	host, err := ResolveHost(region)
	if err != nil {
		return "", err
	}
	if c.baseURL != "" {
		return c.baseURL + path, nil
	}
	return "https://" + host + path, nil
}

// do sends a request and decodes the JSON response into out. Any transport
// failure, non-2xx status or undecodable body is returned wrapping ErrNetwork.
func (c *Client) do(ctx context.Context, method, url string, cred *Credential, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.UserAgent)
	req.Header.Set("Content-Type", "application/json;charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("version", c.Version)
	req.Header.Set("product", c.Product)
	if cred != nil {
		cred.OAuth2Token().SetAuthHeader(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrNetwork, method, url, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read response: %w", ErrNetwork, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Code: resp.StatusCode, Body: truncate(string(data), 256)}
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: failed to parse response: %w", ErrNetwork, err)
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// log prefers the logger carried by ctx so per-tick fields are kept.
func (c *Client) log(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.logger
}
