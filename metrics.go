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
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// MetricsCollector exposes the latest snapshot and client counters in
// Prometheus text format.
type MetricsCollector struct {
	feed       *Feed
	apiMetrics *APIMetrics
}

func NewMetricsCollector(feed *Feed, apiMetrics *APIMetrics) *MetricsCollector {
	return &MetricsCollector{
		feed:       feed,
		apiMetrics: apiMetrics,
	}
}

// ServeHTTP handles the /metrics endpoint
func (m *MetricsCollector) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	fmt.Fprint(w, m.collectMetrics())
}

func (m *MetricsCollector) collectMetrics() string {
	var metrics strings.Builder

	m.writeMetricHeader(&metrics, "octowidget_info", "gauge", "Build information")
	m.writeMetric(&metrics, "octowidget_info", map[string]string{
		"version":    GetVersion(),
		"user_agent": GetUserAgent(),
	}, 1)

	m.writeMetricHeader(&metrics, "octowidget_up", "gauge", "Whether the application is up and running")
	m.writeMetric(&metrics, "octowidget_up", nil, 1)

	if m.feed != nil {
		m.writeSnapshotMetrics(&metrics, m.feed.Latest())

		m.writeMetricHeader(&metrics, "octowidget_refreshes_total", "counter", "Completed snapshot refreshes")
		m.writeMetric(&metrics, "octowidget_refreshes_total", nil, float64(m.feed.Refreshes()))
	}

	if m.apiMetrics != nil {
		m.writeAPIMetrics(&metrics, m.apiMetrics.Snapshot())
	}

	return metrics.String()
}

func (m *MetricsCollector) writeSnapshotMetrics(sb *strings.Builder, snap Snapshot) {
	if !snap.GeneratedAt.IsZero() {
		m.writeMetricHeader(sb, "octowidget_last_refresh_timestamp", "gauge", "Unix timestamp of the last refresh")
		m.writeMetric(sb, "octowidget_last_refresh_timestamp", nil, float64(snap.GeneratedAt.Unix()))
	}

	m.writeMetricHeader(sb, "octowidget_fetch_ok", "gauge", "Whether the last fetch succeeded (1=ok, 0=otherwise)")
	m.writeMetric(sb, "octowidget_fetch_ok", map[string]string{"fetch": "tariffs", "status": snap.Tariffs.Status.String()}, boolValue(snap.Tariffs.Status == StatusOK))
	m.writeMetric(sb, "octowidget_fetch_ok", map[string]string{"fetch": "consumption", "status": snap.Consumption.Status.String()}, boolValue(snap.Consumption.Status == StatusOK))

	headerDone := false
	for _, slot := range snap.Tariffs.Slots {
		price, ok := parseSentinel(slot.Price)
		if !ok {
			continue
		}
		if !headerDone {
			m.writeMetricHeader(sb, "octowidget_tariff_price_pence", "gauge", "Unit price including VAT in pence per kWh")
			headerDone = true
		}
		m.writeMetric(sb, "octowidget_tariff_price_pence", map[string]string{
			"tariff": snap.TariffCode,
			"slot":   slot.Name,
			"time":   slot.Time,
		}, price)
	}

	headerDone = false
	for _, day := range []struct{ name, value string }{
		{"today", snap.Consumption.Today},
		{"yesterday", snap.Consumption.Yesterday},
	} {
		kwh, ok := parseSentinel(day.value)
		if !ok {
			continue
		}
		if !headerDone {
			m.writeMetricHeader(sb, "octowidget_consumption_kwh", "gauge", "Electricity consumed per day in kWh")
			headerDone = true
		}
		m.writeMetric(sb, "octowidget_consumption_kwh", map[string]string{"day": day.name}, kwh)
	}
}

func (m *MetricsCollector) writeAPIMetrics(sb *strings.Builder, s APIMetricsSnapshot) {
	m.writeMetricHeader(sb, "octowidget_api_requests_total", "counter", "Octopus API requests sent")
	m.writeMetric(sb, "octowidget_api_requests_total", nil, float64(s.TotalRequests))

	m.writeMetricHeader(sb, "octowidget_api_request_failures_total", "counter", "Octopus API requests that failed or returned non-2xx")
	m.writeMetric(sb, "octowidget_api_request_failures_total", nil, float64(s.FailedRequests))

	m.writeMetricHeader(sb, "octowidget_rate_limit_sleeps_total", "counter", "Times a request waited for the rate limiter")
	m.writeMetric(sb, "octowidget_rate_limit_sleeps_total", nil, float64(s.RateLimitSleeps))

	m.writeMetricHeader(sb, "octowidget_rate_limit_sleep_seconds_total", "counter", "Seconds spent waiting for the rate limiter")
	m.writeMetric(sb, "octowidget_rate_limit_sleep_seconds_total", nil, s.TotalSleepSeconds)

	// Meter identifiers are part of the consumption path, so endpoints are
	// folded into a kind before they become labels.
	counts := make(map[string]int)
	seconds := make(map[string]float64)
	for endpoint, n := range s.RequestCounts {
		kind := endpointKind(endpoint)
		counts[kind] += n
		seconds[kind] += s.RequestSeconds[endpoint]
	}
	if len(counts) == 0 {
		return
	}

	kinds := make([]string, 0, len(counts))
	for kind := range counts {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)

	m.writeMetricHeader(sb, "octowidget_api_request_duration_seconds_sum", "counter", "Total time spent in API requests")
	for _, kind := range kinds {
		m.writeMetric(sb, "octowidget_api_request_duration_seconds_sum", map[string]string{"endpoint": kind}, seconds[kind])
	}
	m.writeMetricHeader(sb, "octowidget_api_request_duration_seconds_count", "counter", "API requests with a response")
	for _, kind := range kinds {
		m.writeMetric(sb, "octowidget_api_request_duration_seconds_count", map[string]string{"endpoint": kind}, float64(counts[kind]))
	}
}

func endpointKind(endpoint string) string {
	switch {
	case strings.Contains(endpoint, "standard-unit-rates"):
		return "standard_unit_rates"
	case strings.Contains(endpoint, "/consumption"):
		return "consumption"
	default:
		return "other"
	}
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// writeMetricHeader writes metric description and type
func (m *MetricsCollector) writeMetricHeader(sb *strings.Builder, name, metricType, description string) {
	sb.WriteString(fmt.Sprintf("# HELP %s %s\n", name, description))
	sb.WriteString(fmt.Sprintf("# TYPE %s %s\n", name, metricType))
}

// writeMetric writes a metric with optional labels, sorted by key
func (m *MetricsCollector) writeMetric(sb *strings.Builder, name string, labels map[string]string, value float64) {
	if len(labels) == 0 {
		sb.WriteString(fmt.Sprintf("%s %g\n", name, value))
		return
	}

	keys := make([]string, 0, len(labels))
	for key := range labels {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	labelPairs := make([]string, 0, len(keys))
	for _, key := range keys {
		labelPairs = append(labelPairs, fmt.Sprintf(`%s="%s"`, key, escapeLabel(labels[key])))
	}
	sb.WriteString(fmt.Sprintf("%s{%s} %g\n", name, strings.Join(labelPairs, ","), value))
}

var labelEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`, "\n", `\n`)

func escapeLabel(v string) string {
	return labelEscaper.Replace(v)
}
