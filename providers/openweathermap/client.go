package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"weather-dashboard/datasource"
	"weather-dashboard/models"

	"github.com/go-resty/resty/v2"
)

const (
	weatherEndpoint  = "/data/2.5/weather"
	forecastEndpoint = "/data/2.5/forecast"
	findEndpoint     = "/data/2.5/find"
	reverseEndpoint  = "/geo/1.0/reverse"

	userAgent = "weather-dashboard/1.0"
)

// Options configures a Client
type Options struct {
	APIKey  string
	BaseURL string // defaults to https://api.openweathermap.org
	Units   string // defaults to metric
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client talks to the OpenWeatherMap current weather, forecast and geocoding APIs.
// It implements datasource.Upstream.
type Client struct {
	http   *resty.Client
	apiKey string
	units  string
	logger *slog.Logger
}

// Ensure Client implements datasource.Upstream
var _ datasource.Upstream = (*Client)(nil)

// NewClient creates a new OpenWeatherMap client.
// Requests are never retried; a failure is terminal for that fetch.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = "https://api.openweathermap.org"
	}
	if opts.Units == "" {
		opts.Units = "metric"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "openweathermap")

	httpClient := resty.New().
		SetBaseURL(opts.BaseURL).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetTimeout(opts.Timeout)

	// The raw URL carries the API key, so only the path is logged.
	httpClient.OnAfterResponse(func(_ *resty.Client, resp *resty.Response) error {
		path := ""
		if resp.Request != nil && resp.Request.RawRequest != nil {
			path = resp.Request.RawRequest.URL.Path
		}
		logger.Debug("upstream response",
			"path", path,
			"status", resp.StatusCode(),
			"duration", resp.Time(),
			"bytes", len(resp.Body()),
		)
		return nil
	})

	return &Client{
		http:   httpClient,
		apiKey: opts.APIKey,
		units:  opts.Units,
		logger: logger,
	}
}

// Name returns the provider name
func (c *Client) Name() string {
	return "OpenWeatherMap"
}

// APIError is an error response from the OpenWeatherMap API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("OpenWeatherMap API error (status %d): %s", e.StatusCode, e.Message)
}

// get performs a GET against path and decodes the JSON body into out.
// Every failure is returned as *datasource.UpstreamError.
func (c *Client) get(ctx context.Context, op, path string, params map[string]string, out any) error {
	query := map[string]string{"appid": c.apiKey}
	for k, v := range params {
		query[k] = v
	}

	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParams(query).
		Get(path)
	if err != nil {
		return &datasource.UpstreamError{Op: op, Err: fmt.Errorf("failed to execute request: %w", err)}
	}

	if !resp.IsSuccess() {
		return &datasource.UpstreamError{Op: op, StatusCode: resp.StatusCode(), Err: parseAPIError(resp)}
	}

	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return &datasource.UpstreamError{Op: op, StatusCode: resp.StatusCode(), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// parseAPIError builds an APIError from the response body, falling back to
// a status-based message when the body is not the usual {cod, message} JSON
func parseAPIError(resp *resty.Response) error {
	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp.Body(), &body); err == nil && body.Message != "" {
		return &APIError{StatusCode: resp.StatusCode(), Message: body.Message}
	}

	msg := resp.Status()
	switch resp.StatusCode() {
	case 401:
		msg = "invalid API key"
	case 404:
		msg = "not found"
	case 429:
		msg = "rate limit exceeded"
	}
	return &APIError{StatusCode: resp.StatusCode(), Message: msg}
}

func coordParams(coords models.Coordinates) map[string]string {
	return map[string]string{
		"lat": strconv.FormatFloat(coords.Latitude, 'f', -1, 64),
		"lon": strconv.FormatFloat(coords.Longitude, 'f', -1, 64),
	}
}

type condition struct {
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// firstCondition returns the primary weather condition, if any
func firstCondition(conds []condition) condition {
	if len(conds) == 0 {
		return condition{}
	}
	return conds[0]
}
