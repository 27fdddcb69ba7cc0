// Package opensky provides a client for the OpenSky Network REST API.
//
// Only the flights-by-aircraft endpoint is used: given an ICAO 24-bit
// address and a time window, it returns the flights OpenSky has associated
// with that airframe, including the estimated departure airport.
//
// API Documentation: https://openskynetwork.github.io/opensky-api/rest.html
// Rate Limits: anonymous access is heavily throttled; keep to one request per second.
package opensky

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	// BaseURL is the OpenSky REST API base URL
	BaseURL = "https://opensky-network.org/api"

	// DefaultTimeout for API requests
	DefaultTimeout = 10 * time.Second
)

// Client represents an OpenSky REST API client.
type Client struct {
	baseURL     string
	username    string
	password    string
	httpClient  *http.Client
	rateLimiter *rate.Limiter
}

// Config contains configuration for the OpenSky client.
type Config struct {
	// BaseURL overrides the API base URL (default: BaseURL)
	BaseURL string

	// Username and Password enable basic auth (optional)
	Username string
	Password string

	// RequestsPerSecond limits the API call rate (default: 1)
	// Use rate.Inf semantics by passing a negative value.
	RequestsPerSecond float64

	// Timeout bounds each request (default: 10 seconds)
	Timeout time.Duration
}

// NewClient creates a new OpenSky API client.
func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.RequestsPerSecond == 0 {
		cfg.RequestsPerSecond = 1
	}

	limit := rate.Limit(cfg.RequestsPerSecond)
	if cfg.RequestsPerSecond < 0 {
		limit = rate.Inf
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		rateLimiter: rate.NewLimiter(limit, 1),
	}
}

// Flight is one entry of the flights-by-aircraft response.
// Airport and callsign fields are null when OpenSky could not infer them.
type Flight struct {
	ICAO24                           string  `json:"icao24"`
	FirstSeen                        int64   `json:"firstSeen"`
	LastSeen                         int64   `json:"lastSeen"`
	Callsign                         *string `json:"callsign"`
	EstDepartureAirport              *string `json:"estDepartureAirport"`
	EstArrivalAirport                *string `json:"estArrivalAirport"`
	EstDepartureAirportHorizDistance *int    `json:"estDepartureAirportHorizDistance"`
	EstArrivalAirportHorizDistance   *int    `json:"estArrivalAirportHorizDistance"`
}

// DepartureAirport returns the trimmed estimated departure airport, if any.
func (f Flight) DepartureAirport() (string, bool) {
	if f.EstDepartureAirport == nil {
		return "", false
	}
	code := strings.TrimSpace(*f.EstDepartureAirport)
	return code, code != ""
}

// FlightsByAircraft retrieves flights for an aircraft within [begin, end].
//
// Returns nil, nil if OpenSky has no flights for the window (HTTP 404).
// Returns error for API failures or network issues.
func (c *Client) FlightsByAircraft(ctx context.Context, icao24 string, begin, end time.Time) ([]Flight, error) {
	if err := c.rateLimiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	q := url.Values{}
	q.Set("icao24", strings.ToLower(icao24))
	q.Set("begin", fmt.Sprintf("%d", begin.Unix()))
	q.Set("end", fmt.Sprintf("%d", end.Unix()))
	endpoint := fmt.Sprintf("%s/flights/aircraft?%s", c.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil // No flights in window, not an error
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var flights []Flight
	if err := json.Unmarshal(body, &flights); err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}

	return flights, nil
}
