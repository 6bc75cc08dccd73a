package cardtrader

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.cardtrader.com/api/v2"
	DefaultTimeout = 15 * time.Second

	// SiteURL is the public site used to build card reference links.
	SiteURL = "https://www.cardtrader.com"
)

// TokenProvider supplies the bearer token for each request.
type TokenProvider interface {
	Token() (string, error)
}

// StaticToken is a TokenProvider for a fixed token.
type StaticToken string

func (t StaticToken) Token() (string, error) {
	if t == "" {
		return "", ErrMissingToken
	}
	return string(t), nil
}

type ClientOpts struct {
	BaseURL string
	Tokens  TokenProvider
	Timeout time.Duration

	// LanguageProperty is the properties_hash key holding the listing
	// language for the selected game, e.g. "onepiece_language".
	LanguageProperty string

	// RateLimit caps outgoing requests across all endpoints.
	RateLimit rate.Limit
	Burst     int
}

// Client talks to the CardTrader v2 API.
type Client struct {
	httpClient  *resty.Client
	baseURL     string
	tokens      TokenProvider
	langProp    string
	rateLimiter *rate.Limiter
}

func NewClient(opts ClientOpts) *Client {
	c := &Client{
		baseURL:  DefaultBaseURL,
		tokens:   opts.Tokens,
		langProp: opts.LanguageProperty,
	}
	if opts.BaseURL != "" {
		c.baseURL = strings.TrimRight(opts.BaseURL, "/")
	}
	if c.tokens == nil {
		c.tokens = StaticToken("")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	limit := opts.RateLimit
	if limit == 0 {
		limit = rate.Every(250 * time.Millisecond)
	}
	burst := opts.Burst
	if burst <= 0 {
		burst = 4
	}
	c.rateLimiter = rate.NewLimiter(limit, burst)

	c.httpClient = resty.New().
		SetBaseURL(c.baseURL).
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"Accept":          "application/json",
			"Accept-Encoding": "gzip, br",
			"User-Agent":      "ctgap/1.0",
		})

	return c
}

// BaseURL returns the API root the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// getJSON performs an authenticated GET and decodes the body into into.
// Bodies are read raw so brotli responses can be handled alongside gzip.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, into any) error {
	token, err := c.tokens.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMissingToken, err)
	}
	if token == "" {
		return ErrMissingToken
	}

	if err := c.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	res, err := c.httpClient.R().
		SetContext(ctx).
		SetAuthToken(token).
		SetQueryParamsFromValues(query).
		SetDoNotParseResponse(true).
		Get(path)
	if err != nil {
		return fmt.Errorf("cardtrader: GET %s: %w", path, err)
	}
	body := res.RawBody()
	defer body.Close()

	reader, err := decodeBody(res.Header().Get("Content-Encoding"), body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if res.StatusCode()/100 != 2 {
		snippet, _ := io.ReadAll(io.LimitReader(reader, 512))
		return &APIError{
			Method:     "GET",
			URL:        path,
			StatusCode: res.StatusCode(),
			Body:       strings.TrimSpace(string(snippet)),
		}
	}

	if err := json.NewDecoder(reader).Decode(into); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformedResponse, path, err)
	}
	return nil
}

func decodeBody(encoding string, body io.Reader) (io.Reader, error) {
	switch strings.ToLower(strings.TrimSpace(encoding)) {
	case "gzip":
		return gzip.NewReader(body)
	case "br":
		return brotli.NewReader(body), nil
	default:
		return body, nil
	}
}
