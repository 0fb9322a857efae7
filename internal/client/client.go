package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sethgrid/pester"
	"golang.org/x/time/rate"

	"github.com/kelsos/cvat-cli/internal/apierr"
	"github.com/kelsos/cvat-cli/internal/config"
	"github.com/kelsos/cvat-cli/internal/logger"
)

// maxErrorBody caps how much of a failed response ends up in errors and logs
const maxErrorBody = 2048

// APIClient handles all HTTP communication with the CVAT API.
// Idempotent GETs go through a retrying client, everything else is sent once.
type APIClient struct {
	config      *config.Config
	httpClient  *http.Client
	retryClient *pester.Client
	limiter     *rate.Limiter
}

// NewAPIClient creates a new API client with the given configuration.
// cfg.Timeout bounds connecting and waiting for response headers only, so
// uploads and downloads may stream for as long as ctx allows.
func NewAPIClient(cfg *config.Config) *APIClient {
	transport := newTransport(cfg.Timeout)

	retryClient := pester.New()
	retryClient.Transport = transport
	retryClient.Backoff = pester.ExponentialBackoff
	retryClient.MaxRetries = cfg.HTTPRetries
	retryClient.LogHook = func(e pester.ErrEntry) {
		logger.Warn("Retrying %s %s after failed attempt %d: %v", e.Method, e.URL, e.Attempt, e.Err)
	}

	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
	}

	return &APIClient{
		config: cfg,
		httpClient: &http.Client{
			Transport: transport,
		},
		retryClient: retryClient,
		limiter:     limiter,
	}
}

func newTransport(timeout time.Duration) *http.Transport {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   timeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = timeout
	transport.ResponseHeaderTimeout = timeout
	return transport
}

// Endpoints returns the URL resolver for the configured server
func (c *APIClient) Endpoints() Endpoints {
	return NewEndpoints(c.config.BaseURL)
}

// GetJSON makes a GET request and decodes the JSON response into result
func (c *APIClient) GetJSON(ctx context.Context, url string, result interface{}) error {
	resp, err := c.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return decodeJSON(url, resp.Body, result)
}

// PostJSON makes a POST request with a JSON body and decodes the JSON response into result
func (c *APIClient) PostJSON(ctx context.Context, url string, body interface{}, result interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("error marshaling request body: %w", err)
	}

	resp, err := c.do(ctx, http.MethodPost, url, bytes.NewReader(jsonBody), "application/json")
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if result == nil {
		return nil
	}
	return decodeJSON(url, resp.Body, result)
}

// PostForm makes a POST request with an url-encoded form body
func (c *APIClient) PostForm(ctx context.Context, url string, form url.Values) error {
	resp, err := c.do(ctx, http.MethodPost, url, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// PostStream makes a POST request whose body is read from r as it is sent
func (c *APIClient) PostStream(ctx context.Context, url, contentType string, r io.Reader) error {
	resp, err := c.do(ctx, http.MethodPost, url, r, contentType)
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// Delete makes a DELETE request to the specified URL
func (c *APIClient) Delete(ctx context.Context, url string) error {
	resp, err := c.do(ctx, http.MethodDelete, url, nil, "")
	if err != nil {
		return err
	}
	resp.Body.Close()
	return nil
}

// GetStatus makes a GET request and returns the 2xx status code, discarding the body
func (c *APIClient) GetStatus(ctx context.Context, url string) (int, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}

// GetBytes makes a GET request and returns the whole response body
func (c *APIClient) GetBytes(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &apierr.TransportError{Method: http.MethodGet, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return data, nil
}

// Download makes a GET request and copies the response body into w
func (c *APIClient) Download(ctx context.Context, url string, w io.Writer) (int64, error) {
	resp, err := c.do(ctx, http.MethodGet, url, nil, "")
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, &apierr.TransportError{Method: http.MethodGet, URL: url, StatusCode: resp.StatusCode, Err: err}
	}
	return n, nil
}

// do is the core HTTP request method. Any non-2xx status becomes a TransportError.
func (c *APIClient) do(ctx context.Context, method, url string, body io.Reader, contentType string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &apierr.TransportError{Method: method, URL: url, Err: err}
		}
	}

	start := time.Now()
	logger.Debug("Starting %s request to %s", method, url)

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.config.Username != "" {
		req.SetBasicAuth(c.config.Username, c.config.Password)
	}

	var resp *http.Response
	if method == http.MethodGet {
		resp, err = c.retryClient.Do(req)
	} else {
		resp, err = c.httpClient.Do(req)
	}
	if err != nil {
		elapsed := time.Since(start)
		logger.Error("Request failed after (%s) %v: %v", url, elapsed, err)
		return nil, &apierr.TransportError{Method: method, URL: url, Err: err}
	}

	elapsed := time.Since(start)
	logger.Debug("Request to %s completed in %v with status %d", url, elapsed, resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		logger.Debug("%s: HTTP error %d: %s", url, resp.StatusCode, string(bodyBytes))
		return nil, &apierr.TransportError{
			Method:     method,
			URL:        url,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(bodyBytes)),
		}
	}

	return resp, nil
}

func decodeJSON(url string, r io.Reader, result interface{}) error {
	if err := json.NewDecoder(r).Decode(result); err != nil {
		logger.Error("%s: Error decoding response: %v", url, err)
		return &apierr.DecodeError{What: "response from " + url, Err: err}
	}
	return nil
}
