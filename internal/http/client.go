// Package http fetches crawl pages over HTTP.
package http

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"mime"
	"net"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/andybalholm/brotli"
	"golang.org/x/net/html/charset"

	"github.com/PentesterFlow/scrape-characters/internal/errors"
)

// DefaultUserAgent identifies the crawler to servers.
const DefaultUserAgent = "Mozilla/5.0 (compatible; scrape-characters/1.0)"

// Client fetches HTML pages and decodes them to UTF-8 text.
type Client struct {
	client       *http.Client
	userAgent    string
	headers      map[string]string
	maxBodyBytes int64
	retrier      *errors.Retrier
}

// ClientConfig holds configuration for the HTTP client.
type ClientConfig struct {
	Timeout       time.Duration
	UserAgent     string
	Headers       map[string]string
	MaxBodyBytes  int64
	MaxRedirects  int
	SkipTLSVerify bool
	Retry         errors.RetryConfig
}

// DefaultClientConfig returns the client defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:      30 * time.Second,
		UserAgent:    DefaultUserAgent,
		MaxBodyBytes: 5 * 1024 * 1024,
		MaxRedirects: 10,
		Retry:        errors.DefaultRetryConfig(),
	}
}

// NewClient creates a new HTTP client.
func NewClient(config ClientConfig) *Client {
	if config.UserAgent == "" {
		config.UserAgent = DefaultUserAgent
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = DefaultClientConfig().MaxBodyBytes
	}
	maxRedirects := config.MaxRedirects

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          10,
		MaxIdleConnsPerHost:   2,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		ForceAttemptHTTP2:     true,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: config.SkipTLSVerify,
		},
	}

	return &Client{
		client: &http.Client{
			Transport: transport,
			Timeout:   config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
		userAgent:    config.UserAgent,
		headers:      config.Headers,
		maxBodyBytes: config.MaxBodyBytes,
		retrier:      errors.NewRetrier(config.Retry),
	}
}

// Page is a fetched HTML document.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Header      http.Header
	Body        string
	Bytes       int
	Truncated   bool
	Attempts    int
	Duration    time.Duration
}

// Fetch retrieves targetURL, retrying transient failures per the retry
// configuration. Non-2xx responses and non-HTML content types are returned
// as *errors.FetchError values alongside whatever page data was read.
func (c *Client) Fetch(ctx context.Context, targetURL string) (*Page, error) {
	var page *Page

	result := c.retrier.Do(ctx, "fetch", targetURL, func(ctx context.Context) error {
		var err error
		page, err = c.fetchOnce(ctx, targetURL)
		return err
	})

	if page == nil {
		page = &Page{URL: targetURL}
	}
	page.Attempts = result.Attempts

	if !result.Success {
		return page, result.LastError
	}
	return page, nil
}

func (c *Client) fetchOnce(ctx context.Context, targetURL string) (*Page, error) {
	start := time.Now()
	page := &Page{URL: targetURL}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return page, errors.NewFetchError(errors.Parse, targetURL, "request_creation", "failed to create request", err)
	}

	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	req.Header.Set("Accept-Language", "en-US,en;q=0.5")

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return page, errors.Categorize(err, targetURL)
	}
	defer resp.Body.Close()

	page.StatusCode = resp.StatusCode
	page.FinalURL = resp.Request.URL.String()
	page.ContentType = resp.Header.Get("Content-Type")
	page.Header = resp.Header.Clone()

	if statusErr := errors.CategorizeHTTPStatus(resp.StatusCode, http.StatusText(resp.StatusCode), targetURL); statusErr != nil {
		page.Duration = time.Since(start)
		return page, statusErr
	}

	if !IsHTML(page.ContentType) {
		page.Duration = time.Since(start)
		return page, errors.NewContentTypeError(targetURL, page.ContentType)
	}

	body, truncated, err := c.readBody(resp)
	if err != nil {
		page.Duration = time.Since(start)
		if ctx.Err() != nil {
			return page, errors.NewCancelledError(targetURL, "body_read")
		}
		return page, err
	}

	page.Body = body
	page.Bytes = len(body)
	page.Truncated = truncated
	page.Duration = time.Since(start)
	return page, nil
}

// readBody decodes the content encoding and charset of resp into a UTF-8
// string of at most maxBodyBytes.
func (c *Client) readBody(resp *http.Response) (string, bool, error) {
	targetURL := resp.Request.URL.String()

	var reader io.Reader = resp.Body
	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "", "identity":
	case "gzip", "x-gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return "", false, errors.NewParseError(targetURL, "gzip_decode", err)
		}
		defer gz.Close()
		reader = gz
	case "deflate":
		fl := flate.NewReader(resp.Body)
		defer fl.Close()
		reader = fl
	case "br":
		reader = brotli.NewReader(resp.Body)
	default:
		return "", false, errors.NewFetchError(errors.Parse, targetURL, "decode",
			fmt.Sprintf("unsupported content encoding %q", encoding), nil)
	}

	raw, err := io.ReadAll(io.LimitReader(reader, c.maxBodyBytes+1))
	if err != nil {
		return "", false, errors.NewNetworkError(targetURL, "body_read", err)
	}
	truncated := int64(len(raw)) > c.maxBodyBytes
	if truncated {
		raw = trimPartialRune(raw[:c.maxBodyBytes])
	}

	utf8Reader, err := charset.NewReader(strings.NewReader(string(raw)), resp.Header.Get("Content-Type"))
	if err != nil {
		return string(raw), truncated, nil
	}
	decoded, err := io.ReadAll(utf8Reader)
	if err != nil {
		return "", truncated, errors.NewParseError(targetURL, "charset_decode", err)
	}

	return string(decoded), truncated, nil
}

// trimPartialRune drops a trailing incomplete UTF-8 sequence left by
// truncating b.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if utf8.RuneStart(b[i]) {
			if !utf8.FullRune(b[i:]) {
				return b[:i]
			}
			break
		}
	}
	return b
}

// IsHTML reports whether contentType names an HTML document.
func IsHTML(contentType string) bool {
	if contentType == "" {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "text/html" || mediaType == "application/xhtml+xml"
}

// Close releases idle connections.
func (c *Client) Close() {
	c.client.CloseIdleConnections()
}
