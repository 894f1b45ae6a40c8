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
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatFixed2(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{27.5, "27.50"},
		{0, "0.00"},
		{19.7505, "19.75"},
		{24.255, "24.26"},
		{-3.1, "-3.10"},
		{100, "100.00"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, formatFixed2(tt.in), "formatFixed2(%v)", tt.in)
	}
}

func TestParseSentinel(t *testing.T) {
	v, ok := parseSentinel("27.50")
	assert.True(t, ok)
	assert.InDelta(t, 27.5, v, 1e-9)

	_, ok = parseSentinel(Sentinel)
	assert.False(t, ok, "sentinel must never read as zero")

	_, ok = parseSentinel("n/a")
	assert.False(t, ok)
}

func TestFetchStatusJSON(t *testing.T) {
	data, err := json.Marshal(map[string]FetchStatus{"tariffs": StatusFailed})
	require.NoError(t, err)
	assert.JSONEq(t, `{"tariffs":"failed"}`, string(data))

	var decoded map[string]FetchStatus
	require.NoError(t, json.Unmarshal([]byte(`{"c":"skipped"}`), &decoded))
	assert.Equal(t, StatusSkipped, decoded["c"])

	assert.Error(t, json.Unmarshal([]byte(`{"c":"bogus"}`), &decoded))
	assert.Equal(t, "status(42)", FetchStatus(42).String())
}
