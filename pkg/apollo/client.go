// Package apollo wraps the Apollo.io people-match API used to enrich an
// email address into a person + organization record.
package apollo

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const defaultBaseURL = "https://api.apollo.io/v1"

// Client performs person lookups against the Apollo API.
type Client interface {
	Match(ctx context.Context, email string) (*PersonRecord, error)
}

// PersonRecord is the normalized enrichment result for one email.
type PersonRecord struct {
	Person       Person       `json:"person"`
	Organization Organization `json:"organization"`
}

// Person holds the individual-level enrichment fields.
type Person struct {
	Name        string   `json:"name"`
	FirstName   string   `json:"first_name"`
	LastName    string   `json:"last_name"`
	Title       string   `json:"title"`
	Email       string   `json:"email"`
	LinkedInURL string   `json:"linkedin_url"`
	PhotoURL    string   `json:"photo_url"`
	City        string   `json:"city"`
	State       string   `json:"state"`
	Country     string   `json:"country"`
	Seniority   string   `json:"seniority"`
	Departments []string `json:"departments"`
}

// Organization holds the company-level enrichment fields.
type Organization struct {
	Name                  string   `json:"name"`
	WebsiteURL            string   `json:"website_url"`
	Industry              string   `json:"industry"`
	Keywords              []string `json:"keywords"`
	EstimatedNumEmployees int      `json:"estimated_num_employees"`
	AnnualRevenuePrinted  string   `json:"annual_revenue_printed"`
	ShortDescription      string   `json:"short_description"`
	FoundedYear           int      `json:"founded_year"`
	LinkedInURL           string   `json:"linkedin_url"`
	Phone                 string   `json:"phone"`
	City                  string   `json:"city"`
	State                 string   `json:"state"`
	Country               string   `json:"country"`
	Technologies          []string `json:"technology_names"`
}

// matchResponse is the raw wire shape of POST /people/match.
type matchResponse struct {
	Person struct {
		Person
		Organization Organization `json:"organization"`
	} `json:"person"`
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(url string) Option {
	return func(c *httpClient) {
		c.baseURL = url
	}
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the default request rate (2 req/s).
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		} else {
			c.limiter = nil
		}
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates an Apollo API client. Calls are throttled to 2 req/s by
// default to stay under Apollo's per-minute quota.
func NewClient(apiKey string, opts ...Option) Client {
	c := &httpClient{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		limiter: rate.NewLimiter(2, 2),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) Match(ctx context.Context, email string) (*PersonRecord, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "apollo: rate limit wait")
		}
	}

	body, err := json.Marshal(map[string]string{"email": email})
	if err != nil {
		return nil, eris.Wrap(err, "apollo: marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/people/match", bytes.NewReader(body))
	if err != nil {
		return nil, eris.Wrap(err, "apollo: create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Api-Key", c.apiKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: send request")
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, eris.Wrap(err, "apollo: read response")
	}

	if resp.StatusCode != http.StatusOK {
		return nil, newStatusError(resp.StatusCode, string(respBody))
	}

	var raw matchResponse
	if err := json.Unmarshal(respBody, &raw); err != nil {
		return nil, eris.Wrap(err, "apollo: unmarshal response")
	}

	// Apollo returns 200 with an empty person object when the email is unknown.
	if raw.Person.Email == "" && raw.Person.Name == "" && raw.Person.LastName == "" {
		return nil, &Error{Kind: KindNotFound, StatusCode: resp.StatusCode, Message: "no person found for email"}
	}

	return &PersonRecord{
		Person:       raw.Person.Person,
		Organization: raw.Person.Organization,
	}, nil
}
