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
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Grid supply point region letters, I and O are not used
const regionCodes = "ABCDEFGHJKLMNP"

type TariffConfig struct {
	Key    string `yaml:"key"`
	Type   string `yaml:"type"`
	Region string `yaml:"region"`
}

type APIConfig struct {
	BaseURL      string `yaml:"base_url"`
	APIKey       string `yaml:"api_key"`
	MPAN         string `yaml:"mpan"`
	SerialNumber string `yaml:"serial_number"`
	MaxRetries   int    `yaml:"max_retries"`
}

type Config struct {
	Tariff    TariffConfig `yaml:"tariff"`
	API       APIConfig    `yaml:"api"`
	Timezone  string       `yaml:"timezone"`
	Slots     string       `yaml:"slots"`
	StateFile string       `yaml:"state_file"`
	Daemon    bool         `yaml:"daemon"`
	WebUI     bool         `yaml:"web_ui"`
	WebPort   int          `yaml:"web_port"`
	Debug     bool         `yaml:"debug"`
	JSONLogs  bool         `yaml:"json_logs"`
}

func defaultConfig() *Config {
	return &Config{
		Tariff: TariffConfig{
			Key:    DefaultTariffKey,
			Type:   TariffTypeElectricity,
			Region: DefaultRegionCode,
		},
		API: APIConfig{
			BaseURL:    DefaultBaseURL,
			MaxRetries: HTTPMaxRetries,
		},
		Timezone: DefaultTimezone,
		Slots:    SlotLayoutSix,
		WebPort:  WebDefaultPort,
	}
}

func LoadConfig(configPath string) (*Config, error) {
	config := defaultConfig()

	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file does not exist: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// ApplyEnv fills credentials that are still empty from the environment.
func (c *Config) ApplyEnv() {
	if c.API.APIKey == "" {
		c.API.APIKey = os.Getenv("OCTOPUS_API_KEY")
	}
	if c.API.MPAN == "" {
		c.API.MPAN = os.Getenv("OCTOPUS_MPAN")
	}
	if c.API.SerialNumber == "" {
		c.API.SerialNumber = os.Getenv("OCTOPUS_SERIAL_NUMBER")
	}
}

func (c *Config) ApplyDefaults() {
	if c.Tariff.Key == "" {
		c.Tariff.Key = DefaultTariffKey
	}
	if c.Tariff.Type == "" {
		c.Tariff.Type = TariffTypeElectricity
	}
	c.Tariff.Type = strings.ToLower(c.Tariff.Type)
	if c.Tariff.Region == "" {
		c.Tariff.Region = DefaultRegionCode
	}
	c.Tariff.Region = strings.ToUpper(c.Tariff.Region)
	if c.API.BaseURL == "" {
		c.API.BaseURL = DefaultBaseURL
	}
	c.API.BaseURL = strings.TrimRight(c.API.BaseURL, "/")
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.Slots == "" {
		c.Slots = SlotLayoutSix
	}
	if c.WebPort <= 0 {
		c.WebPort = WebDefaultPort
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	var errors []string

	if c.Tariff.Key == "" {
		errors = append(errors, (&ValidationError{Field: "tariff.key", Message: "product key is required"}).Error())
	}

	if c.Tariff.Type != TariffTypeElectricity && c.Tariff.Type != TariffTypeGas {
		errors = append(errors, (&ValidationError{Field: "tariff.type", Value: c.Tariff.Type, Message: "must be electricity or gas"}).Error())
	}

	if len(c.Tariff.Region) != 1 || !strings.Contains(regionCodes, c.Tariff.Region) {
		errors = append(errors, (&ValidationError{Field: "tariff.region", Value: c.Tariff.Region, Message: "must be one of " + regionCodes}).Error())
	}

	if !strings.HasPrefix(c.API.BaseURL, "http://") && !strings.HasPrefix(c.API.BaseURL, "https://") {
		errors = append(errors, (&ValidationError{Field: "api.base_url", Value: c.API.BaseURL, Message: "must be an http(s) URL"}).Error())
	}

	// Credentials are optional as a group: without them only prices are shown
	creds := 0
	for _, v := range []string{c.API.APIKey, c.API.MPAN, c.API.SerialNumber} {
		if v != "" {
			creds++
		}
	}
	if creds > 0 && creds < 3 {
		errors = append(errors, "api_key, mpan and serial_number must be set together to read consumption")
	}
	if c.API.APIKey != "" && !strings.HasPrefix(c.API.APIKey, "sk_live_") {
		errors = append(errors, "API key should start with 'sk_live_' (use your live API key, not test key)")
	}
	if c.API.MPAN != "" && (len(c.API.MPAN) != 13 || strings.Trim(c.API.MPAN, "0123456789") != "") {
		errors = append(errors, (&ValidationError{Field: "api.mpan", Value: c.API.MPAN, Message: "MPAN must be 13 digits"}).Error())
	}

	if c.API.MaxRetries < 0 || c.API.MaxRetries > HTTPMaxRetriesLimit {
		errors = append(errors, fmt.Sprintf("max retries must be between 0-%d, got: %d", HTTPMaxRetriesLimit, c.API.MaxRetries))
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errors = append(errors, fmt.Sprintf("unknown timezone %q: %v", c.Timezone, err))
	}

	if c.Slots != SlotLayoutSix && c.Slots != SlotLayoutTwo {
		errors = append(errors, (&ValidationError{Field: "slots", Value: c.Slots, Message: "must be six or two"}).Error())
	}

	if c.WebPort < 1 || c.WebPort > 65535 {
		errors = append(errors, fmt.Sprintf("web port must be between 1-65535, got: %d", c.WebPort))
	}

	if c.WebUI && !c.Daemon {
		errors = append(errors, "web UI requires daemon mode (use both -daemon and -web flags)")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errors, "\n  - "))
	}

	return nil
}

// TariffCode returns the full tariff code, e.g. E-1R-AGILE-24-10-01-J.
func (c *Config) TariffCode() string {
	prefix := "E"
	if c.Tariff.Type == TariffTypeGas {
		prefix = "G"
	}
	return fmt.Sprintf("%s-1R-%s-%s", prefix, c.Tariff.Key, c.Tariff.Region)
}

// HasMeter reports whether enough account details are present to read consumption.
func (c *Config) HasMeter() bool {
	return c.API.APIKey != "" && c.API.MPAN != "" && c.API.SerialNumber != ""
}

// Span returns the slot window selected by the slots setting.
func (c *Config) Span() SlotSpan {
	if c.Slots == SlotLayoutTwo {
		return SpanNowNext
	}
	return SpanSixSlot
}

// Location returns the wall clock used for slots, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}
