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
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFetchConsumption(t *testing.T) {
	api := &stubAPI{
		consumption: map[string][]ConsumptionInterval{
			"2025-01-15T00:00:00Z": {{Consumption: 7.234}},
			"2025-01-14T00:00:00Z": {{Consumption: 12.5}},
		},
	}
	fetcher := NewFetcher(api, testConfig(), testLogger())

	reading := fetcher.FetchConsumption(context.Background(), time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))

	require.Equal(t, StatusOK, reading.Status)
	assert.Equal(t, "7.23", reading.Today)
	assert.Equal(t, "12.50", reading.Yesterday)
	assert.ElementsMatch(t, []string{
		"2025-01-15T00:00:00Z|2025-01-15T23:59:59Z|day",
		"2025-01-14T00:00:00Z|2025-01-14T23:59:59Z|day",
	}, api.consumptionCalls)
}

func TestFetchConsumptionSummerPeriod(t *testing.T) {
	api := &stubAPI{}
	fetcher := NewFetcher(api, testConfig(), testLogger())

	fetcher.FetchConsumption(context.Background(), time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC))

	assert.ElementsMatch(t, []string{
		"2025-07-01T00:00:00Z|2025-07-01T22:59:59Z|day",
		"2025-06-30T00:00:00Z|2025-06-30T22:59:59Z|day",
	}, api.consumptionCalls)
}

func TestFetchConsumptionEmptyResults(t *testing.T) {
	api := &stubAPI{
		consumption: map[string][]ConsumptionInterval{
			"2025-01-14T00:00:00Z": {{Consumption: 3}},
		},
	}
	fetcher := NewFetcher(api, testConfig(), testLogger())

	reading := fetcher.FetchConsumption(context.Background(), time.Date(2025, 1, 15, 0, 5, 0, 0, time.UTC))

	assert.Equal(t, StatusOK, reading.Status)
	assert.Equal(t, Sentinel, reading.Today)
	assert.Equal(t, "3.00", reading.Yesterday)
}

func TestFetchConsumptionOneFailureSentinelsBoth(t *testing.T) {
	api := &stubAPI{
		consumption: map[string][]ConsumptionInterval{
			"2025-01-15T00:00:00Z": {{Consumption: 7}},
		},
		consumptionErr: map[string]error{
			"2025-01-14T00:00:00Z": NewAPIError(http.StatusInternalServerError, "/consumption/", "server error", nil),
		},
	}
	fetcher := NewFetcher(api, testConfig(), testLogger())

	reading := fetcher.FetchConsumption(context.Background(), time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))

	assert.Equal(t, StatusFailed, reading.Status)
	assert.Equal(t, Sentinel, reading.Today)
	assert.Equal(t, Sentinel, reading.Yesterday)
}

func TestFetchConsumptionWithoutMeter(t *testing.T) {
	cfg := testConfig()
	cfg.API.APIKey = ""
	cfg.API.MPAN = ""
	cfg.API.SerialNumber = ""
	api := &stubAPI{}
	fetcher := NewFetcher(api, cfg, testLogger())

	reading := fetcher.FetchConsumption(context.Background(), time.Now())

	assert.Equal(t, StatusSkipped, reading.Status)
	assert.Equal(t, Sentinel, reading.Today)
	assert.Equal(t, Sentinel, reading.Yesterday)
	assert.Empty(t, api.consumptionCalls)
}

func TestFetchConsumptionOverHTTP(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "sk_live_testkey0000000000" || pass != "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		assert.Equal(t, "/electricity-meter-points/1200000000001/meters/21L0000000/consumption/", r.URL.Path)
		assert.Equal(t, "day", r.URL.Query().Get("group_by"))

		if r.URL.Query().Get("period_from") == "2025-01-15T00:00:00Z" {
			w.Write([]byte(`{"count":1,"results":[{"consumption":4.1,"interval_start":"2025-01-15T00:00:00Z","interval_end":"2025-01-16T00:00:00Z"}]}`))
			return
		}
		w.Write([]byte(`{"count":0,"results":[]}`))
	})
	fetcher := NewFetcher(client, testConfig(), testLogger())

	reading := fetcher.FetchConsumption(context.Background(), time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))

	require.Equal(t, StatusOK, reading.Status)
	assert.Equal(t, "4.10", reading.Today)
	assert.Equal(t, Sentinel, reading.Yesterday)
}

func TestFetchConsumptionUnauthorized(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"Authentication credentials were not provided."}`))
	})
	fetcher := NewFetcher(client, testConfig(), testLogger())

	reading := fetcher.FetchConsumption(context.Background(), time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	assert.Equal(t, StatusFailed, reading.Status)
	assert.Equal(t, Sentinel, reading.Today)
}
