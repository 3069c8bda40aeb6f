package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"github.com/patrickmn/go-cache"
	"github.com/pkg/errors"
	"golang.org/x/time/rate"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is the HTTP client shared by the web adapters of one run.
// Successful GET bodies are cached by URL, so two adapters reading the same page hit the origin once.
type Client struct {
	httpClient  HTTPClient
	userAgent   string
	rateLimiter *rate.Limiter
	cache       *cache.Cache
}

func NewClient(timeout time.Duration, userAgent string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		cache:      cache.New(10*time.Minute, 20*time.Minute),
	}
}

func (c *Client) SetHTTPClient(client HTTPClient) {
	c.httpClient = client
}

// WithMinInterval returns a client sharing the transport and cache that sends at most one request per interval.
func (c *Client) WithMinInterval(interval time.Duration) *Client {
	if interval <= 0 {
		return c
	}
	limited := *c
	limited.rateLimiter = rate.NewLimiter(rate.Every(interval), 1)
	return &limited
}

func (c *Client) Get(ctx context.Context, rawURL string, headers map[string]string) ([]byte, error) {
	if cached, ok := c.cache.Get(rawURL); ok {
		return cached.([]byte), nil
	}

	body, err := c.sendRequest(ctx, http.MethodGet, rawURL, nil, headers)
	if err != nil {
		return nil, err
	}

	c.cache.SetDefault(rawURL, body)
	return body, nil
}

func (c *Client) GetJSON(ctx context.Context, rawURL string, headers map[string]string, out any) error {
	body, err := c.Get(ctx, rawURL, headers)
	if err != nil {
		return err
	}
	return decodeJSON(body, out)
}

func (c *Client) PostFormJSON(ctx context.Context, rawURL string, form url.Values, headers map[string]string, out any) error {
	all := map[string]string{"Content-Type": "application/x-www-form-urlencoded"}
	for key, value := range headers {
		all[key] = value
	}

	body, err := c.sendRequest(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()), all)
	if err != nil {
		return err
	}
	return decodeJSON(body, out)
}

func decodeJSON(body []byte, out any) error {
	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "error decoding JSON response")
	}
	return nil
}

func (c *Client) sendRequest(ctx context.Context, method, rawURL string, body io.Reader, headers map[string]string) ([]byte, error) {

	if c.rateLimiter != nil {
		if err := c.rateLimiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		return nil, errors.Wrap(err, "error creating request")
	}

	req.Header.Set("User-Agent", c.userAgent)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "error sending request to %s", req.URL.Host)
	}
	defer resp.Body.Close()

	return c.handleResponse(resp)
}

func (c *Client) handleResponse(resp *http.Response) ([]byte, error) {
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "error reading response body")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed with status %v, body: %.200s", resp.StatusCode, string(body))
	}

	return body, nil
}
