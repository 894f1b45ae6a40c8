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
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "test_config.yaml")
	configContent := `tariff:
  key: AGILE-FLEX-22-11-25
  type: electricity
  region: c
api:
  api_key: sk_live_abcdefgh12345678
  mpan: "1200000000001"
  serial_number: 21L0000000
  max_retries: 2
timezone: UTC
slots: two
state_file: auto
daemon: true
web_ui: true
web_port: 9090
debug: true
json_logs: true
`
	require.NoError(t, os.WriteFile(configFile, []byte(configContent), 0644))

	config, err := LoadConfig(configFile)
	require.NoError(t, err)

	assert.Equal(t, "AGILE-FLEX-22-11-25", config.Tariff.Key)
	assert.Equal(t, "c", config.Tariff.Region)
	assert.Equal(t, "sk_live_abcdefgh12345678", config.API.APIKey)
	assert.Equal(t, "1200000000001", config.API.MPAN)
	assert.Equal(t, "21L0000000", config.API.SerialNumber)
	assert.Equal(t, 2, config.API.MaxRetries)
	assert.Equal(t, DefaultBaseURL, config.API.BaseURL)
	assert.Equal(t, "UTC", config.Timezone)
	assert.Equal(t, SlotLayoutTwo, config.Slots)
	assert.Equal(t, StateAuto, config.StateFile)
	assert.True(t, config.Daemon)
	assert.True(t, config.WebUI)
	assert.Equal(t, 9090, config.WebPort)
	assert.True(t, config.Debug)
	assert.True(t, config.JSONLogs)
}

func TestLoadConfigDefaults(t *testing.T) {
	config, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, DefaultTariffKey, config.Tariff.Key)
	assert.Equal(t, TariffTypeElectricity, config.Tariff.Type)
	assert.Equal(t, DefaultRegionCode, config.Tariff.Region)
	assert.Equal(t, DefaultBaseURL, config.API.BaseURL)
	assert.Equal(t, HTTPMaxRetries, config.API.MaxRetries)
	assert.Equal(t, DefaultTimezone, config.Timezone)
	assert.Equal(t, SlotLayoutSix, config.Slots)
	assert.Equal(t, WebDefaultPort, config.WebPort)
	assert.False(t, config.Daemon)
	assert.NoError(t, config.Validate())
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "config file does not exist")
}

func TestLoadConfigInvalidYAML(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "invalid.yaml")
	require.NoError(t, os.WriteFile(configFile, []byte("tariff: [unclosed\n"), 0644))

	_, err := LoadConfig(configFile)
	assert.ErrorContains(t, err, "failed to parse config file")
}

func TestApplyDefaults(t *testing.T) {
	config := &Config{
		Tariff: TariffConfig{Type: "Electricity", Region: "h"},
		API:    APIConfig{BaseURL: "https://example.test/v1/"},
	}

	config.ApplyDefaults()

	assert.Equal(t, DefaultTariffKey, config.Tariff.Key)
	assert.Equal(t, TariffTypeElectricity, config.Tariff.Type)
	assert.Equal(t, "H", config.Tariff.Region)
	assert.Equal(t, "https://example.test/v1", config.API.BaseURL)
	assert.Equal(t, DefaultTimezone, config.Timezone)
	assert.Equal(t, SlotLayoutSix, config.Slots)
	assert.Equal(t, WebDefaultPort, config.WebPort)
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("OCTOPUS_API_KEY", "sk_live_fromenv000000000")
	t.Setenv("OCTOPUS_MPAN", "1900000000002")
	t.Setenv("OCTOPUS_SERIAL_NUMBER", "Z18N000000")

	config := defaultConfig()
	config.API.MPAN = "1200000000001"
	config.ApplyEnv()

	assert.Equal(t, "sk_live_fromenv000000000", config.API.APIKey)
	assert.Equal(t, "1200000000001", config.API.MPAN, "explicit values win over the environment")
	assert.Equal(t, "Z18N000000", config.API.SerialNumber)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr string
	}{
		{
			name:   "defaults",
			modify: func(c *Config) {},
		},
		{
			name: "full meter details",
			modify: func(c *Config) {
				c.API.APIKey = "sk_live_abcdefgh12345678"
				c.API.MPAN = "1200000000001"
				c.API.SerialNumber = "21L0000000"
			},
		},
		{
			name:    "empty product key",
			modify:  func(c *Config) { c.Tariff.Key = "" },
			wantErr: "tariff.key",
		},
		{
			name:    "unknown tariff type",
			modify:  func(c *Config) { c.Tariff.Type = "water" },
			wantErr: "must be electricity or gas",
		},
		{
			name:    "region I is not used",
			modify:  func(c *Config) { c.Tariff.Region = "I" },
			wantErr: "tariff.region",
		},
		{
			name:    "region too long",
			modify:  func(c *Config) { c.Tariff.Region = "AB" },
			wantErr: "tariff.region",
		},
		{
			name:    "bad base url",
			modify:  func(c *Config) { c.API.BaseURL = "api.octopus.energy" },
			wantErr: "api.base_url",
		},
		{
			name:    "partial credentials",
			modify:  func(c *Config) { c.API.APIKey = "sk_live_abcdefgh12345678" },
			wantErr: "must be set together",
		},
		{
			name: "test key",
			modify: func(c *Config) {
				c.API.APIKey = "sk_test_abcdefgh"
				c.API.MPAN = "1200000000001"
				c.API.SerialNumber = "21L0000000"
			},
			wantErr: "sk_live_",
		},
		{
			name: "short mpan",
			modify: func(c *Config) {
				c.API.APIKey = "sk_live_abcdefgh12345678"
				c.API.MPAN = "12345"
				c.API.SerialNumber = "21L0000000"
			},
			wantErr: "13 digits",
		},
		{
			name:    "too many retries",
			modify:  func(c *Config) { c.API.MaxRetries = 6 },
			wantErr: "max retries must be between 0-5",
		},
		{
			name:    "unknown timezone",
			modify:  func(c *Config) { c.Timezone = "Mars/Olympus_Mons" },
			wantErr: "unknown timezone",
		},
		{
			name:    "unknown slot layout",
			modify:  func(c *Config) { c.Slots = "four" },
			wantErr: "must be six or two",
		},
		{
			name:    "port out of range",
			modify:  func(c *Config) { c.WebPort = 70000 },
			wantErr: "web port must be between 1-65535",
		},
		{
			name:    "web without daemon",
			modify:  func(c *Config) { c.WebUI = true },
			wantErr: "web UI requires daemon mode",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := defaultConfig()
			tt.modify(config)

			err := config.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}

func TestConfigValidateCollectsAllProblems(t *testing.T) {
	config := defaultConfig()
	config.Slots = "four"
	config.WebPort = 0

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "slots")
	assert.Contains(t, err.Error(), "web port")
}

func TestTariffCode(t *testing.T) {
	config := defaultConfig()
	assert.Equal(t, "E-1R-AGILE-24-10-01-J", config.TariffCode())

	config.Tariff.Type = TariffTypeGas
	config.Tariff.Key = "VAR-22-11-01"
	config.Tariff.Region = "A"
	assert.Equal(t, "G-1R-VAR-22-11-01-A", config.TariffCode())
}

func TestConfigSpanAndMeter(t *testing.T) {
	config := defaultConfig()
	assert.Equal(t, SpanSixSlot, config.Span())
	assert.False(t, config.HasMeter())

	config.Slots = SlotLayoutTwo
	assert.Equal(t, SpanNowNext, config.Span())

	config.API.APIKey = "sk_live_abcdefgh12345678"
	config.API.MPAN = "1200000000001"
	assert.False(t, config.HasMeter())
	config.API.SerialNumber = "21L0000000"
	assert.True(t, config.HasMeter())
}

func TestConfigLocation(t *testing.T) {
	config := defaultConfig()
	assert.Equal(t, "Europe/London", config.Location().String())

	config.Timezone = "Not/AZone"
	assert.Equal(t, time.UTC, config.Location())
}
