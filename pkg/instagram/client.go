package instagram

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	errs "instaprofiler/pkg/errors"
	"instaprofiler/pkg/logger"
	"instaprofiler/pkg/ratelimit"
	"instaprofiler/pkg/retry"
)

// webAppID is the application id the Instagram web client sends.
const webAppID = "936619743392459"

// ClientConfig configures a Client.
type ClientConfig struct {
	BaseURL   string
	SessionID string
	CSRFToken string
	UserAgent string
	Timeout   time.Duration

	// MaxAttempts bounds transport retries for network and 5xx errors.
	MaxAttempts int
	Backoff     retry.BackoffStrategy
	Limiter     ratelimit.Limiter

	// HTTPClient overrides the default client. Its Jar is replaced.
	HTTPClient *http.Client
	Logger     logger.Logger
}

// Client fetches Instagram pages as text with one cookie session. It is
// used sequentially by one scraper and reused across accounts.
type Client struct {
	httpClient  *http.Client
	headers     map[string]string
	limiter     ratelimit.Limiter
	maxAttempts int
	backoff     retry.BackoffStrategy
	logger      logger.Logger
}

// NewClient creates a new Instagram client holding the session cookies.
func NewClient(cfg ClientConfig) (*Client, error) {
	base := cfg.BaseURL
	if base == "" {
		base = BaseURL
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", base, err)
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}
	var cookies []*http.Cookie
	if cfg.SessionID != "" {
		cookies = append(cookies, &http.Cookie{Name: "sessionid", Value: cfg.SessionID, Path: "/"})
	}
	if cfg.CSRFToken != "" {
		cookies = append(cookies, &http.Cookie{Name: "csrftoken", Value: cfg.CSRFToken, Path: "/"})
	}
	jar.SetCookies(baseURL, cookies)

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	httpClient.Jar = jar

	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Safari/537.36"
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = ratelimit.Unlimited{}
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	backoff := cfg.Backoff
	if backoff == nil {
		backoff = retry.DefaultExponentialBackoff()
	}

	c := &Client{
		httpClient: httpClient,
		headers: map[string]string{
			"User-Agent":       userAgent,
			"Accept":           "application/json,text/html;q=0.9,*/*;q=0.8",
			"Accept-Language":  "en-US,en;q=0.9",
			"X-IG-App-ID":      webAppID,
			"X-Requested-With": "XMLHttpRequest",
		},
		limiter:     limiter,
		maxAttempts: maxAttempts,
		backoff:     backoff,
		logger:      logger.OrNop(cfg.Logger),
	}
	if cfg.CSRFToken != "" {
		c.headers["X-CSRFToken"] = cfg.CSRFToken
	}
	return c, nil
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// Fetch returns the body of rawURL as text. HTML responses are reduced to
// the text a browser would render, so a JSON document shown in a browser
// viewer comes back as the JSON itself. Network and server errors are
// retried here; rate limiting and HTTP status errors are returned as
// *errors.Error for the caller to handle. Running out of transport attempts
// returns the last failure itself, never errors.ErrMaxRetriesReached, which
// belongs to the walker's page budget.
func (c *Client) Fetch(ctx context.Context, rawURL string) (string, error) {
	return retry.DoWithResult(func() (string, error) {
		return c.fetchOnce(ctx, rawURL)
	}, &retry.Config{
		MaxAttempts: c.maxAttempts,
		Backoff:     c.backoff,
		RetryIf:     isTransportRetryable,
		Context:     ctx,
		Logger:      c.logger,

		ReturnLastError: true,
	})
}

func isTransportRetryable(err error) bool {
	var apiErr *errs.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	return apiErr.Type == errs.ErrorTypeNetwork || apiErr.Type == errs.ErrorTypeServerError
}

func (c *Client) fetchOnce(ctx context.Context, rawURL string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limiter: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}

	resp, err := c.doRequest(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if err := c.checkResponseStatus(resp); err != nil {
		return "", err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("failed to read response body: %v", err),
			Code:    resp.StatusCode,
		}
	}

	if isHTML(resp, body) {
		text, err := renderedText(body)
		if err != nil {
			return "", &errs.Error{
				Type:    errs.ErrorTypeParsing,
				Message: fmt.Sprintf("failed to parse HTML: %v", err),
				Code:    resp.StatusCode,
			}
		}
		return text, nil
	}

	return string(body), nil
}

// doRequest performs an HTTP request with the configured headers
func (c *Client) doRequest(req *http.Request) (*http.Response, error) {
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(start)

	if err != nil {
		if ctxErr := req.Context().Err(); ctxErr != nil {
			return nil, ctxErr
		}
		c.logger.WarnWithFields("HTTP request failed", map[string]interface{}{
			"method":   req.Method,
			"url":      req.URL.String(),
			"error":    err.Error(),
			"duration": duration,
		})
		return nil, &errs.Error{
			Type:    errs.ErrorTypeNetwork,
			Message: fmt.Sprintf("network error: %v", err),
		}
	}

	logger.LogRequest(c.logger, req.Method, req.URL.String(), resp.StatusCode, duration)
	return resp, nil
}

// checkResponseStatus maps HTTP status codes onto typed errors
func (c *Client) checkResponseStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode < 400:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return &errs.Error{Type: errs.ErrorTypeAuth, Message: "authentication required", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusNotFound:
		return &errs.Error{Type: errs.ErrorTypeNotFound, Message: "resource not found", Code: resp.StatusCode}
	case resp.StatusCode == http.StatusTooManyRequests:
		return &errs.Error{Type: errs.ErrorTypeRateLimit, Message: "rate limit exceeded", Code: resp.StatusCode}
	case resp.StatusCode >= 500:
		return &errs.Error{Type: errs.ErrorTypeServerError, Message: "server error", Code: resp.StatusCode}
	default:
		return &errs.Error{
			Type:    errs.ErrorTypeUnknown,
			Message: fmt.Sprintf("unexpected status code: %d", resp.StatusCode),
			Code:    resp.StatusCode,
		}
	}
}

func isHTML(resp *http.Response, body []byte) bool {
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return true
	}
	return bytes.HasPrefix(bytes.TrimSpace(body), []byte("<"))
}

// renderedText returns the contents of the first <pre> element, which is
// where browsers place raw JSON, or else the text of <body>.
func renderedText(body []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	if pre := doc.Find("pre").First(); pre.Length() > 0 {
		return pre.Text(), nil
	}
	return strings.TrimSpace(doc.Find("body").Text()), nil
}
