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

import "time"

// Sentinel is shown in place of any value that could not be retrieved.
const Sentinel = "--"

// Octopus Energy API
const (
	// DefaultBaseURL - REST API root, products and meter points hang off this
	DefaultBaseURL = "https://api.octopus.energy/v1"

	// DefaultTariffKey - Agile Octopus October 2024 v1
	DefaultTariffKey = "AGILE-24-10-01"

	// DefaultRegionCode - Grid supply point region letter
	DefaultRegionCode = "J"

	// DefaultTimezone - Wall clock used to place half-hour slots
	DefaultTimezone = "Europe/London"

	// ConsumptionGroupBy - Aggregation requested for daily consumption
	ConsumptionGroupBy = "day"
)

// Tariff types
const (
	TariffTypeElectricity = "electricity"
	TariffTypeGas         = "gas"
)

// Slot window layouts
const (
	SlotLayoutSix = "six"
	SlotLayoutTwo = "two"
)

// Tariff slot settings
const (
	// SlotDuration - Octopus prices are published per half hour
	SlotDuration = 30 * time.Minute

	// RefreshSchedule - Cron spec (with seconds) firing on every slot boundary
	RefreshSchedule = "0 0,30 * * * *"
)

// Snapshot state settings
const (
	// StateDirName - Directory under ~/.config holding the snapshot file
	StateDirName = "octowidget"

	// StateFileName - Default snapshot file name when state_file is "auto"
	StateFileName = "snapshot.json"

	// StateAuto - state_file value selecting the default location
	StateAuto = "auto"
)

// HTTP client settings
const (
	// HTTPClientTimeout - Maximum time for HTTP requests
	HTTPClientTimeout = 30 * time.Second

	// HTTPMinInterval - Minimum time between API requests (rate limiting)
	HTTPMinInterval = 250 * time.Millisecond

	// HTTPMaxRetries - Retries are off unless configured, one request per fetch
	HTTPMaxRetries = 0

	// HTTPMaxRetriesLimit - Upper bound accepted from configuration
	HTTPMaxRetriesLimit = 5
)

// Web server settings
const (
	// WebDefaultPort - Port for the JSON API and metrics endpoint
	WebDefaultPort = 8080

	// WebShutdownTimeout - Grace period for in-flight requests on shutdown
	WebShutdownTimeout = 5 * time.Second

	// RefreshTimeout - Upper bound for one scheduled or requested refresh
	RefreshTimeout = 45 * time.Second
)

// Octopus Energy API error codes
const (
	// OctopusErrorCodeInvalidAuth - Invalid authorization header
	OctopusErrorCodeInvalidAuth = "KT-CT-1143"
)
