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

	"github.com/shopspring/decimal"
)

// FetchStatus says how a value set came to be, so "not fetched yet" and
// "fetch failed" stay distinguishable even though both show sentinels.
type FetchStatus int

const (
	StatusPending FetchStatus = iota
	StatusOK
	StatusFailed
	StatusSkipped
)

var statusNames = map[FetchStatus]string{
	StatusPending: "pending",
	StatusOK:      "ok",
	StatusFailed:  "failed",
	StatusSkipped: "skipped",
}

func (s FetchStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", int(s))
}

func (s FetchStatus) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *FetchStatus) UnmarshalText(text []byte) error {
	for status, name := range statusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown fetch status %q", text)
}

// formatFixed2 renders v with exactly two decimal places, 27.5 -> "27.50".
func formatFixed2(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

// parseSentinel converts a formatted value back to a number. ok is false
// for the sentinel or anything unparsable.
func parseSentinel(s string) (float64, bool) {
	if s == Sentinel || s == "" {
		return 0, false
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, false
	}
	f, _ := d.Float64()
	return f, true
}
