// Copyright 2025 Matthew Gall <me@matthewgall.dev>
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIMetrics tracks API call performance and rate limiting
type APIMetrics struct {
	mu sync.Mutex

	// API call durations by endpoint
	RequestDurations map[string][]float64 // endpoint -> list of durations in seconds

	// Rate limiting metrics
	TotalRequests     int64   // Total number of API requests
	FailedRequests    int64   // Requests that ended in a transport error or non-2xx
	RateLimitSleeps   int64   // Number of times rate limiting was triggered
	TotalSleepSeconds float64 // Total time spent sleeping due to rate limits
}

// NewAPIMetrics creates a new metrics tracker
func NewAPIMetrics() *APIMetrics {
	return &APIMetrics{
		RequestDurations: make(map[string][]float64),
	}
}

// APIMetricsSnapshot is a lock-free copy of the counters for reporting.
type APIMetricsSnapshot struct {
	TotalRequests     int64
	FailedRequests    int64
	RateLimitSleeps   int64
	TotalSleepSeconds float64
	RequestCounts     map[string]int
	RequestSeconds    map[string]float64
}

func (m *APIMetrics) Snapshot() APIMetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := APIMetricsSnapshot{
		TotalRequests:     m.TotalRequests,
		FailedRequests:    m.FailedRequests,
		RateLimitSleeps:   m.RateLimitSleeps,
		TotalSleepSeconds: m.TotalSleepSeconds,
		RequestCounts:     make(map[string]int, len(m.RequestDurations)),
		RequestSeconds:    make(map[string]float64, len(m.RequestDurations)),
	}
	for endpoint, durations := range m.RequestDurations {
		s.RequestCounts[endpoint] = len(durations)
		for _, d := range durations {
			s.RequestSeconds[endpoint] += d
		}
	}
	return s
}

func (m *APIMetrics) recordRequest(endpoint string, duration float64, failed bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.TotalRequests++
	if failed {
		m.FailedRequests++
	}
	if endpoint != "" {
		m.RequestDurations[endpoint] = append(m.RequestDurations[endpoint], duration)
	}
}

func (m *APIMetrics) recordSleep(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RateLimitSleeps++
	m.TotalSleepSeconds += d.Seconds()
}

// UnitRate is one half-hourly price record from standard-unit-rates.
type UnitRate struct {
	ValueExcVAT float64    `json:"value_exc_vat"`
	ValueIncVAT float64    `json:"value_inc_vat"`
	ValidFrom   time.Time  `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
}

type unitRatesResponse struct {
	Count   int           `json:"count"`
	Next    *string       `json:"next"`
	Results []rawUnitRate `json:"results"`
}

// rawUnitRate keeps required fields as pointers so an absent field is told
// apart from a zero price.
type rawUnitRate struct {
	ValueExcVAT *float64   `json:"value_exc_vat"`
	ValueIncVAT *float64   `json:"value_inc_vat"`
	ValidFrom   *time.Time `json:"valid_from"`
	ValidTo     *time.Time `json:"valid_to"`
}

func (r rawUnitRate) toUnitRate(i int) (UnitRate, error) {
	if r.ValueIncVAT == nil || r.ValidFrom == nil {
		return UnitRate{}, fmt.Errorf("rate record %d is missing value_inc_vat or valid_from", i)
	}
	rate := UnitRate{
		ValueIncVAT: *r.ValueIncVAT,
		ValidFrom:   *r.ValidFrom,
		ValidTo:     r.ValidTo,
	}
	if r.ValueExcVAT != nil {
		rate.ValueExcVAT = *r.ValueExcVAT
	}
	return rate, nil
}

// ConsumptionInterval is one aggregated consumption record.
type ConsumptionInterval struct {
	Consumption   float64   `json:"consumption"`
	IntervalStart time.Time `json:"interval_start"`
	IntervalEnd   time.Time `json:"interval_end"`
}

type consumptionResponse struct {
	Count   int              `json:"count"`
	Next    *string          `json:"next"`
	Results []rawConsumption `json:"results"`
}

type rawConsumption struct {
	Consumption   *float64  `json:"consumption"`
	IntervalStart time.Time `json:"interval_start"`
	IntervalEnd   time.Time `json:"interval_end"`
}

type OctopusClient struct {
	APIKey  string
	BaseURL string

	client          *http.Client
	mu              sync.Mutex
	lastRequestTime time.Time
	minInterval     time.Duration
	maxRetries      int
	debug           bool
	logger          *Logger
	metrics         *APIMetrics
}

func NewOctopusClient(apiKey, baseURL string, debug bool) *OctopusClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &OctopusClient{
		APIKey:      apiKey,
		BaseURL:     strings.TrimRight(baseURL, "/"),
		minInterval: HTTPMinInterval,
		maxRetries:  HTTPMaxRetries,
		debug:       debug,
		logger:      NewLogger(debug).WithComponent("octopus_client"),
		metrics:     NewAPIMetrics(),
		client: &http.Client{
			Timeout: HTTPClientTimeout,
		},
	}
}

// SetLogger replaces the client's logger, keeping the component field.
func (c *OctopusClient) SetLogger(logger *Logger) {
	c.logger = logger.WithComponent("octopus_client")
}

// SetMaxRetries sets how many times a retryable failure is retried.
func (c *OctopusClient) SetMaxRetries(n int) {
	c.maxRetries = n
}

// Metrics exposes the request counters.
func (c *OctopusClient) Metrics() *APIMetrics {
	return c.metrics
}

// GetStandardUnitRates lists the unit rates of a tariff overlapping the
// period, newest first. No authentication is needed for product data.
func (c *OctopusClient) GetStandardUnitRates(ctx context.Context, productCode, tariffType, tariffCode, periodFrom, periodTo string) ([]UnitRate, error) {
	endpoint := fmt.Sprintf("/products/%s/%s-tariffs/%s/standard-unit-rates/",
		url.PathEscape(productCode), url.PathEscape(tariffType), url.PathEscape(tariffCode))

	query := url.Values{}
	query.Set("period_from", periodFrom)
	query.Set("period_to", periodTo)

	var result unitRatesResponse
	if err := c.getJSON(ctx, endpoint, query, false, &result); err != nil {
		return nil, err
	}

	rates := make([]UnitRate, 0, len(result.Results))
	for i, raw := range result.Results {
		rate, err := raw.toUnitRate(i)
		if err != nil {
			return nil, fmt.Errorf("malformed response from %s: %w", endpoint, err)
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// GetConsumption lists consumption for an electricity meter over the period,
// aggregated by groupBy (empty for half-hourly).
func (c *OctopusClient) GetConsumption(ctx context.Context, mpan, serialNumber, periodFrom, periodTo, groupBy string) ([]ConsumptionInterval, error) {
	endpoint := fmt.Sprintf("/electricity-meter-points/%s/meters/%s/consumption/",
		url.PathEscape(mpan), url.PathEscape(serialNumber))

	query := url.Values{}
	query.Set("period_from", periodFrom)
	query.Set("period_to", periodTo)
	if groupBy != "" {
		query.Set("group_by", groupBy)
	}

	var result consumptionResponse
	if err := c.getJSON(ctx, endpoint, query, true, &result); err != nil {
		return nil, err
	}

	intervals := make([]ConsumptionInterval, 0, len(result.Results))
	for i, raw := range result.Results {
		if raw.Consumption == nil {
			return nil, fmt.Errorf("malformed response from %s: consumption record %d has no consumption", endpoint, i)
		}
		intervals = append(intervals, ConsumptionInterval{
			Consumption:   *raw.Consumption,
			IntervalStart: raw.IntervalStart,
			IntervalEnd:   raw.IntervalEnd,
		})
	}
	return intervals, nil
}

func (c *OctopusClient) getJSON(ctx context.Context, endpoint string, query url.Values, authenticated bool, out interface{}) error {
	resp, err := c.makeRequest(ctx, http.MethodGet, endpoint, query, authenticated)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		authErr := &AuthError{
			Message: fmt.Sprintf("request to %s rejected with status %d", endpoint, resp.StatusCode),
			Err:     NewAPIError(resp.StatusCode, endpoint, http.StatusText(resp.StatusCode), nil),
		}
		if bytes.Contains(body, []byte(OctopusErrorCodeInvalidAuth)) {
			authErr.Code = OctopusErrorCodeInvalidAuth
		}
		return authErr
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return NewAPIError(resp.StatusCode, endpoint, fmt.Sprintf("unexpected status %s", resp.Status), nil)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", endpoint, err)
	}
	return nil
}

// debugLogRequest logs detailed request information in debug mode
func (c *OctopusClient) debugLogRequest(method, url string, headers http.Header) {
	if !c.debug {
		return
	}

	// Mask sensitive headers
	maskedHeaders := make(map[string]string)
	for key, values := range headers {
		if len(values) > 0 {
			if key == "Authorization" {
				// Show only the scheme and the last 4 chars of the credential
				val := values[0]
				if len(val) > 16 {
					maskedHeaders[key] = val[:6] + "..." + val[len(val)-4:]
				} else {
					maskedHeaders[key] = "***"
				}
			} else {
				maskedHeaders[key] = values[0]
			}
		}
	}

	c.logger.Debug("→ HTTP Request",
		"method", method,
		"url", url,
		"headers", maskedHeaders,
	)
}

// debugLogResponse logs detailed response information in debug mode
func (c *OctopusClient) debugLogResponse(resp *http.Response, bodyPreview []byte, duration float64) {
	if !c.debug {
		return
	}

	c.logger.Debug("← HTTP Response",
		"status", resp.StatusCode,
		"status_text", resp.Status,
		"duration_ms", duration*1000,
		"content_type", resp.Header.Get("Content-Type"),
	)

	if len(bodyPreview) > 0 {
		bodyStr := string(bodyPreview)
		// Truncate long response bodies
		if len(bodyStr) > 500 {
			bodyStr = bodyStr[:500] + "... (truncated)"
		}
		c.logger.Debug("  Response Body", "body", bodyStr)
	}
}

func (c *OctopusClient) makeRequest(ctx context.Context, method, endpoint string, query url.Values, authenticated bool) (*http.Response, error) {
	return c.makeRequestWithRetry(ctx, method, endpoint, query, authenticated, 0)
}

func (c *OctopusClient) makeRequestWithRetry(ctx context.Context, method, endpoint string, query url.Values, authenticated bool, attempt int) (*http.Response, error) {
	if err := c.enforceRateLimit(ctx); err != nil {
		return nil, NewAPIError(0, endpoint, "request cancelled", err)
	}

	fullURL := c.BaseURL + endpoint
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if authenticated {
		req.SetBasicAuth(c.APIKey, "")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", GetUserAgent())

	c.debugLogRequest(method, fullURL, req.Header)

	startTime := time.Now()
	resp, err := c.client.Do(req)
	duration := time.Since(startTime).Seconds()

	if err != nil {
		c.metrics.recordRequest("", duration, true)
		if attempt < c.maxRetries && ctx.Err() == nil {
			backoff := c.calculateBackoff(attempt)
			c.logger.Warn("Request failed, retrying",
				"method", method,
				"endpoint", endpoint,
				"attempt", attempt+1,
				"max_attempts", c.maxRetries+1,
				"backoff_ms", backoff.Milliseconds(),
				"error", err.Error(),
			)
			if err := sleepContext(ctx, backoff); err != nil {
				return nil, NewAPIError(0, endpoint, "request cancelled", err)
			}
			return c.makeRequestWithRetry(ctx, method, endpoint, query, authenticated, attempt+1)
		}
		return nil, NewAPIError(0, endpoint, "request failed", err)
	}

	c.logger.LogAPIRequest(method, endpoint, resp.StatusCode, duration)
	c.metrics.recordRequest(endpoint, duration, resp.StatusCode < 200 || resp.StatusCode > 299)

	// Log response details in debug mode (read preview without consuming body)
	if c.debug {
		bodyBytes, err := io.ReadAll(resp.Body)
		if err == nil {
			resp.Body.Close()
			c.debugLogResponse(resp, bodyBytes, duration)
			// Restore the response body for the caller
			resp.Body = io.NopCloser(bytes.NewReader(bodyBytes))
		}
	}

	if isRetryableStatus(resp.StatusCode) && attempt < c.maxRetries {
		backoff := c.calculateBackoffFromResponse(resp, attempt)
		c.logger.Warn("Retrying due to status code",
			"status_code", resp.StatusCode,
			"attempt", attempt+1,
			"max_attempts", c.maxRetries+1,
			"backoff_ms", backoff.Milliseconds(),
		)
		resp.Body.Close()
		if err := sleepContext(ctx, backoff); err != nil {
			return nil, NewAPIError(0, endpoint, "request cancelled", err)
		}
		return c.makeRequestWithRetry(ctx, method, endpoint, query, authenticated, attempt+1)
	}

	return resp, nil
}

// enforceRateLimit spaces requests at least minInterval apart. Concurrent
// callers queue on the mutex and each reserve their own send slot.
func (c *OctopusClient) enforceRateLimit(ctx context.Context) error {
	c.mu.Lock()
	now := time.Now()
	var sleep time.Duration
	if !c.lastRequestTime.IsZero() {
		if elapsed := now.Sub(c.lastRequestTime); elapsed < c.minInterval {
			sleep = c.minInterval - elapsed
		}
	}
	c.lastRequestTime = now.Add(sleep)
	c.mu.Unlock()

	if sleep <= 0 {
		return nil
	}

	c.logger.Debug("Rate limiting",
		"sleep_ms", sleep.Milliseconds(),
	)
	c.metrics.recordSleep(sleep)
	return sleepContext(ctx, sleep)
}

func (c *OctopusClient) calculateBackoff(attempt int) time.Duration {
	base := float64(time.Second)
	backoff := base * math.Pow(2, float64(attempt))
	jitter := rand.Float64() * 0.1 * backoff
	return time.Duration(backoff + jitter)
}

func (c *OctopusClient) calculateBackoffFromResponse(resp *http.Response, attempt int) time.Duration {
	if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
		if seconds, err := strconv.Atoi(retryAfter); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return c.calculateBackoff(attempt)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
