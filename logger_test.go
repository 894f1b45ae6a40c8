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
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerTo(&buf, false, false)

	logger.LogAPIRequest("GET", "/products/", 200, 0.1)
	assert.Empty(t, buf.String(), "request lines are debug only")

	debug := newLoggerTo(&buf, true, false)
	debug.LogAPIRequest("GET", "/products/", 200, 0.1)
	assert.Contains(t, buf.String(), "status_code=200")
}

func TestLoggerJSONFields(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerTo(&buf, false, true).WithComponent("fetcher").WithMeter("1200000000001")

	logger.LogFallback("tariffs", errors.New("timeout"))

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "WARN", entry["level"])
	assert.Equal(t, "fetcher", entry["component"])
	assert.Equal(t, "***0001", entry["mpan"])
	assert.Equal(t, "tariffs", entry["fetch"])
	assert.Equal(t, "timeout", entry["error"])
}

func TestLogAPIError(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerTo(&buf, false, true)

	logger.LogAPIError(NewAPIError(503, "/products/", "service unavailable", nil), "/products/")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, float64(503), entry["status_code"])
	assert.Equal(t, true, entry["retryable"])
}

func TestUserMessageSharesLogOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := newLoggerTo(&buf, false, false).WithComponent("cli")

	logger.UserMessage("now %sp", "19.00")
	assert.Equal(t, "now 19.00p\n", buf.String())
}
