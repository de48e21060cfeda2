// Package client provides HTTP clients for communicating with the NE Navi
// backend services. All requests carry the session cookie established at
// login, so a single authenticated Client can be shared by the per-area
// clients (transcripts, jobs, minutes, chat, health).
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	nenavierrors "github.com/nb75km/nenavi-cli/pkg/errors"
	"github.com/nb75km/nenavi-cli/pkg/logging"
)

// Default client settings.
const (
	DefaultTimeout = 30 * time.Second
)

// Client is an HTTP client for a single NE Navi service base URL.
// It holds a shared cookie jar so that the login cookie set by the auth
// endpoints is replayed on every subsequent request, mirroring a browser.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	logger     logging.Logger
}

// Options configures the client.
type Options struct {
	// BaseURL is the service base URL, e.g. "http://localhost:8000/minutes/api".
	BaseURL string

	// Timeout is the per-request timeout. Defaults to DefaultTimeout.
	Timeout time.Duration

	// Jar is the cookie jar shared across clients. If nil a new jar is
	// created; pass the same jar to every client that should share the
	// login session.
	Jar http.CookieJar

	// Logger is used for debug logging of requests. Defaults to a no-op.
	Logger logging.Logger
}

// NewClient creates a client for the given base URL.
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}

	base, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base URL: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("base URL must include scheme and host, got %q", opts.BaseURL)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	jar := opts.Jar
	if jar == nil {
		jar, err = cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("creating cookie jar: %w", err)
		}
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNopLogger()
	}

	return &Client{
		baseURL: base,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		logger: logger,
	}, nil
}

// NewJar creates an empty cookie jar suitable for sharing between clients.
func NewJar() (http.CookieJar, error) {
	return cookiejar.New(nil)
}

// BaseURL returns the client's base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Jar returns the client's cookie jar.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// SetCookies seeds the cookie jar with cookies for the client's base URL.
// Used to restore a persisted session before the first request.
func (c *Client) SetCookies(cookies []*http.Cookie) {
	// Cookies scope to the host, not the path prefix.
	origin := &url.URL{Scheme: c.baseURL.Scheme, Host: c.baseURL.Host, Path: "/"}
	c.httpClient.Jar.SetCookies(origin, cookies)
}

// Cookies returns the cookies currently stored for the client's host.
func (c *Client) Cookies() []*http.Cookie {
	origin := &url.URL{Scheme: c.baseURL.Scheme, Host: c.baseURL.Host, Path: "/"}
	return c.httpClient.Jar.Cookies(origin)
}

// resolve joins a request path onto the base URL. Paths are given relative
// to the base, e.g. "/transcripts/42".
func (c *Client) resolve(path string, query url.Values) string {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	return u.String()
}

// GetJSON issues a GET request and decodes the JSON response into out.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values, out any) error {
	return c.doJSON(ctx, http.MethodGet, path, query, nil, "", out)
}

// PostJSON issues a POST request with a JSON body and decodes the JSON
// response into out. A nil body sends no payload; a nil out discards the
// response body.
func (c *Client) PostJSON(ctx context.Context, path string, query url.Values, body any, out any) error {
	var reader io.Reader
	contentType := ""
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.doJSON(ctx, http.MethodPost, path, query, reader, contentType, out)
}

// PostForm issues a POST request with a URL-encoded form body, as the
// backend's login endpoint requires.
func (c *Client) PostForm(ctx context.Context, path string, form url.Values, out any) error {
	reader := strings.NewReader(form.Encode())
	return c.doJSON(ctx, http.MethodPost, path, nil, reader, "application/x-www-form-urlencoded", out)
}

// Delete issues a DELETE request. A 204 response is treated as success.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil, "", nil)
}

// doJSON performs a request and decodes a JSON response into out when the
// response carries one. Non-2xx responses become APIError values so callers
// can match sentinel errors with errors.Is.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string, out any) error {
	resp, err := c.do(ctx, method, path, query, body, contentType)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent || out == nil {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s %s: %w", method, path, err)
	}
	return nil
}

// do performs a request and returns the raw response. The caller owns the
// response body. Non-2xx responses are read, closed, and returned as an
// APIError.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body io.Reader, contentType string) (*http.Response, error) {
	reqURL := c.resolve(path, query)

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")

	c.logger.Debug("api request",
		logging.F("method", method),
		logging.F("url", reqURL),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		c.logger.Debug("api error response",
			logging.F("method", method),
			logging.F("url", reqURL),
			logging.F("status", resp.StatusCode),
		)
		return nil, nenavierrors.NewAPIError(method, path, resp.StatusCode, string(data))
	}

	return resp, nil
}

// GetRaw issues a GET request and returns the response body and content
// type. Used for binary downloads such as exports. The returned ReadCloser
// must be closed by the caller.
func (c *Client) GetRaw(ctx context.Context, path string, query url.Values) (io.ReadCloser, string, error) {
	resp, err := c.do(ctx, http.MethodGet, path, query, nil, "")
	if err != nil {
		return nil, "", err
	}
	return resp.Body, resp.Header.Get("Content-Type"), nil
}

// GetStatus issues a GET request and returns only the status code along
// with the decoded body when decoding succeeds. Unlike GetJSON, non-2xx
// statuses are not turned into errors; job polling needs to distinguish
// 200 from 202 itself.
func (c *Client) GetStatus(ctx context.Context, path string, out any) (int, error) {
	reqURL := c.resolve(path, nil)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if out != nil {
		// Body decode is best effort here; 202 responses may be empty.
		_ = json.NewDecoder(resp.Body).Decode(out)
	}
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// PostMultipart uploads a single file under the given form field name and
// decodes the JSON response into out. The progress callback, when non-nil,
// wraps the file reader so callers can display upload progress.
func (c *Client) PostMultipart(ctx context.Context, path, fieldName, fileName string, file io.Reader, out any, wrap func(io.Reader) io.Reader) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	part, err := writer.CreateFormFile(fieldName, filepath.Base(fileName))
	if err != nil {
		return fmt.Errorf("creating multipart field: %w", err)
	}

	src := file
	if wrap != nil {
		src = wrap(file)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("reading %s: %w", fileName, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing multipart body: %w", err)
	}

	return c.doJSON(ctx, http.MethodPost, path, nil, &buf, writer.FormDataContentType(), out)
}
