// Package hibp queries the Have I Been Pwned range API using the
// k-anonymity scheme: only the first five hex characters of the password's
// SHA-1 digest ever leave the process.
package hibp

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/praxisdev/identity-api/pkg/circuitbreaker"
)

const (
	// DefaultEndpoint is the public range API.
	DefaultEndpoint = "https://api.pwnedpasswords.com"

	defaultUserAgent   = "identity-api"
	defaultReadTimeout = 5 * time.Second
)

// Client talks to a pwnedpasswords-compatible range API. It performs exactly
// one request per Check call: no retries and no caching.
type Client struct {
	endpoint  string
	hc        *http.Client
	userAgent string
	padding   bool
	breaker   *circuitbreaker.CircuitBreaker
}

type Option func(*Client)

// WithHTTP replaces the underlying HTTP client.
func WithHTTP(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// WithTimeouts builds an HTTP client with a separate connection-open (dial)
// timeout and an overall request timeout covering headers and body.
func WithTimeouts(open, read time.Duration) Option {
	return func(c *Client) {
		c.hc = &http.Client{
			Timeout: read,
			Transport: &http.Transport{
				DialContext:         (&net.Dialer{Timeout: open}).DialContext,
				TLSHandshakeTimeout: open,
			},
		}
	}
}

// WithEndpoint points the client at a different range API base URL.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		c.endpoint = strings.TrimRight(endpoint, "/")
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		c.userAgent = ua
	}
}

// WithPadding asks the API to pad responses with zero-count entries so
// response sizes do not leak the prefix bucket.
func WithPadding(enabled bool) Option {
	return func(c *Client) {
		c.padding = enabled
	}
}

// WithBreaker short-circuits calls while the remote API is failing. The
// breaker never re-invokes a failed call.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

func New(opts ...Option) *Client {
	c := &Client{
		endpoint:  DefaultEndpoint,
		hc:        &http.Client{Timeout: defaultReadTimeout},
		userAgent: defaultUserAgent,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns how many times password appears in known breach corpora.
// 0 means not found. On failure it returns -1 and a *LookupError, except for
// blank input which returns ErrEmptyPassword.
func (c *Client) Check(ctx context.Context, password string) (int, error) {
	if strings.TrimSpace(password) == "" {
		return -1, ErrEmptyPassword
	}

	sum := sha1.Sum([]byte(password))
	digest := hex.EncodeToString(sum[:])
	prefix, suffix := digest[:5], digest[5:]

	var count int
	query := func() error {
		var err error
		count, err = c.queryRange(ctx, prefix, suffix)
		return err
	}

	var err error
	if c.breaker != nil {
		err = c.breaker.Execute(query)
		if errors.Is(err, circuitbreaker.ErrOpen) {
			err = &LookupError{Kind: LookupTransport, Err: err}
		}
	} else {
		err = query()
	}
	if err != nil {
		return -1, err
	}
	return count, nil
}

func (c *Client) queryRange(ctx context.Context, prefix, suffix string) (int, error) {
	url := fmt.Sprintf("%s/range/%s", c.endpoint, prefix)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return -1, &LookupError{Kind: LookupTransport, Err: err}
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if c.padding {
		req.Header.Set("Add-Padding", "true")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return -1, classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return -1, &LookupError{
			Kind:   LookupService,
			Status: resp.StatusCode,
			Err:    fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return -1, classify(err)
	}
	return matchSuffix(string(body), suffix), nil
}

// matchSuffix scans SUFFIX:COUNT lines for the remaining 35 digest
// characters. Padded entries carry a zero count and read as not found.
func matchSuffix(body, suffix string) int {
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimRight(line, "\r")
		candidate, countStr, ok := strings.Cut(line, ":")
		if !ok || !strings.EqualFold(candidate, suffix) {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(countStr))
		if err != nil {
			continue
		}
		return n
	}
	return 0
}

func classify(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || os.IsTimeout(err) {
		return &LookupError{Kind: LookupTimeout, Err: err}
	}
	return &LookupError{Kind: LookupTransport, Err: err}
}
