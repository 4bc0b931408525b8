// Package registry looks up companies in public business registries via an
// OpenCorporates-compatible search API.
package registry

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/profile-consolidator/internal/resilience"
)

const defaultBaseURL = "https://api.opencorporates.com/v0.4"

// Client searches official business registries by company name.
type Client interface {
	// SearchCompanies returns registry records matching the name, best
	// match first. An empty slice means the registry has no record.
	SearchCompanies(ctx context.Context, name string) ([]Company, error)
}

// Company is one business registry record.
type Company struct {
	Name              string `json:"name"`
	CompanyNumber     string `json:"company_number"`
	JurisdictionCode  string `json:"jurisdiction_code"`
	IncorporationDate string `json:"incorporation_date,omitempty"`
	Inactive          bool   `json:"inactive"`
	RegisteredAddress string `json:"registered_address_in_full,omitempty"`
}

// Option configures the registry client.
type Option func(*client)

// WithBaseURL overrides the API base URL.
func WithBaseURL(baseURL string) Option {
	return func(c *client) {
		c.baseURL = baseURL
	}
}

// WithAPIToken sets the API token sent with each request.
func WithAPIToken(token string) Option {
	return func(c *client) {
		c.apiToken = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) {
		c.httpClient = hc
	}
}

// WithRateLimit sets the requests-per-second limit for registry calls.
func WithRateLimit(rps float64) Option {
	return func(c *client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
}

// WithRetryConfig overrides the retry behavior for transient failures.
func WithRetryConfig(cfg resilience.RetryConfig) Option {
	return func(c *client) {
		c.retry = cfg
	}
}

type client struct {
	baseURL    string
	apiToken   string
	httpClient *http.Client
	limiter    *rate.Limiter
	retry      resilience.RetryConfig
}

// NewClient creates a registry client with the given options.
func NewClient(opts ...Option) Client {
	c := &client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		limiter:    rate.NewLimiter(1, 1), // free tier allows ~1 req/s
		retry:      resilience.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// searchResponse mirrors the OpenCorporates search envelope.
type searchResponse struct {
	Results struct {
		Companies []struct {
			Company Company `json:"company"`
		} `json:"companies"`
	} `json:"results"`
}

func (c *client) SearchCompanies(ctx context.Context, name string) ([]Company, error) {
	if name == "" {
		return nil, eris.New("registry: company name is required")
	}

	cfg := c.retry
	cfg.OnRetry = resilience.RetryLogger("registry", "search_companies")

	return resilience.DoVal(ctx, cfg, func(ctx context.Context) ([]Company, error) {
		return c.searchOnce(ctx, name)
	})
}

func (c *client) searchOnce(ctx context.Context, name string) ([]Company, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "registry: rate limit")
	}

	params := url.Values{"q": {name}}
	if c.apiToken != "" {
		params.Set("api_token", c.apiToken)
	}

	reqURL := c.baseURL + "/companies/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, eris.Wrap(err, "registry: build request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, eris.Wrap(err, "registry: search request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("registry: search returned status %d", resp.StatusCode)
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(err, resp.StatusCode)
		}
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "registry: read body")
	}

	var sr searchResponse
	if err := json.Unmarshal(body, &sr); err != nil {
		return nil, eris.Wrap(err, "registry: parse response")
	}

	companies := make([]Company, 0, len(sr.Results.Companies))
	for _, entry := range sr.Results.Companies {
		companies = append(companies, entry.Company)
	}
	return companies, nil
}
