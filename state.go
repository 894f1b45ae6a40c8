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
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// ResolveStatePath turns the state_file setting into a usable path. An empty
// setting disables persistence, "auto" selects ~/.config/octowidget and a
// leading "~/" is expanded. The parent directory is created.
func ResolveStatePath(setting string) (string, error) {
	if setting == "" {
		return "", nil
	}

	path := setting
	if setting == StateAuto || strings.HasPrefix(setting, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		if setting == StateAuto {
			path = filepath.Join(homeDir, ".config", StateDirName, StateFileName)
		} else {
			path = filepath.Join(homeDir, setting[2:])
		}
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return "", fmt.Errorf("failed to create state directory: %w", err)
	}
	return path, nil
}

// LoadSnapshot reads a saved snapshot. A missing file yields nil and no error.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to parse state file: %w", err)
	}
	return &snap, nil
}

// SaveSnapshot writes the snapshot through a temporary file so readers never
// see a partial document.
func SaveSnapshot(path string, snap Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// IsSnapshotCurrent reports whether snap was generated in the same half-hour
// slot as now, so its slot labels still line up.
func IsSnapshotCurrent(snap *Snapshot, now time.Time) bool {
	if snap == nil || snap.GeneratedAt.IsZero() {
		return false
	}
	return SlotStart(snap.GeneratedAt).Equal(SlotStart(now))
}
