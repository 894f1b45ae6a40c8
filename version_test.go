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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormaliseVersion(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "already canonical", input: "v1.5.0", expected: "v1.5.0"},
		{name: "missing v prefix", input: "1.5.0", expected: "v1.5.0"},
		{name: "short form", input: "v1.5", expected: "v1.5.0"},
		{name: "prerelease kept", input: "v1.5.0-beta", expected: "v1.5.0-beta"},
		{name: "build metadata dropped", input: "v1.5.0+abc", expected: "v1.5.0"},
		{name: "not semver", input: "nightly", expected: "nightly"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, normaliseVersion(tt.input))
		})
	}
}

func TestGetVersionFromLdflags(t *testing.T) {
	original := version
	t.Cleanup(func() { version = original })

	version = "2.1.0"
	assert.Equal(t, "v2.1.0", GetVersion())
}

func TestGetVersion(t *testing.T) {
	assert.NotEmpty(t, GetVersion())
}

func TestGetUserAgent(t *testing.T) {
	ua := GetUserAgent()
	assert.True(t, strings.HasPrefix(ua, "octowidget/"), "unexpected user agent %q", ua)
}
