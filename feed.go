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
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron"
	"golang.org/x/sync/errgroup"
)

// Snapshot is everything the widget needs for one half-hour slot.
type Snapshot struct {
	GeneratedAt time.Time          `json:"generated_at"`
	TariffCode  string             `json:"tariff_code"`
	Tariffs     TariffQuote        `json:"tariffs"`
	Consumption ConsumptionReading `json:"consumption"`
}

// Feed keeps the latest snapshot and refreshes it on every slot boundary.
type Feed struct {
	fetcher   *Fetcher
	logger    *Logger
	statePath string
	now       func() time.Time

	refreshMu sync.Mutex // serialises refreshes

	mu        sync.RWMutex
	latest    Snapshot
	refreshes int

	cron *cron.Cron
}

func NewFeed(fetcher *Fetcher, statePath string, logger *Logger) *Feed {
	f := &Feed{
		fetcher:   fetcher,
		logger:    logger.WithComponent("feed"),
		statePath: statePath,
		now:       time.Now,
	}
	f.latest = f.pendingSnapshot(f.now())
	f.restore()
	return f
}

func (f *Feed) pendingSnapshot(now time.Time) Snapshot {
	window := NewQueryWindow(now.In(f.fetcher.location), f.fetcher.span)
	return Snapshot{
		TariffCode:  f.fetcher.tariffCode,
		Tariffs:     newTariffQuote(f.fetcher.tariffCode, window),
		Consumption: newConsumptionReading(),
	}
}

// restore seeds the feed from the state file when it still describes the
// current slot of the same tariff.
func (f *Feed) restore() {
	if f.statePath == "" {
		return
	}

	snap, err := LoadSnapshot(f.statePath)
	if err != nil {
		f.logger.Warn("Failed to load saved snapshot, starting fresh", "path", f.statePath, "error", err)
		return
	}
	if snap == nil || snap.TariffCode != f.fetcher.tariffCode || !IsSnapshotCurrent(snap, f.now()) {
		return
	}

	f.logger.Debug("Restored snapshot", "generated_at", snap.GeneratedAt)
	f.latest = *snap
}

// Refresh fetches tariffs and consumption concurrently and stores the result.
// Failures are already folded into sentinel values by the fetcher.
func (f *Feed) Refresh(ctx context.Context) Snapshot {
	f.refreshMu.Lock()
	defer f.refreshMu.Unlock()

	now := f.now().In(f.fetcher.location)
	snap := Snapshot{
		GeneratedAt: now,
		TariffCode:  f.fetcher.tariffCode,
	}

	var g errgroup.Group
	g.Go(func() error {
		snap.Tariffs = f.fetcher.FetchTariffs(ctx, now)
		return nil
	})
	g.Go(func() error {
		snap.Consumption = f.fetcher.FetchConsumption(ctx, now)
		return nil
	})
	_ = g.Wait()

	f.mu.Lock()
	f.latest = snap
	f.refreshes++
	f.mu.Unlock()

	f.logger.Info("Snapshot refreshed",
		"window", snap.Tariffs.Window.String(),
		"now_price", snap.Tariffs.Now().Price,
		"tariffs", snap.Tariffs.Status,
		"consumption", snap.Consumption.Status,
	)

	if f.statePath != "" {
		if err := SaveSnapshot(f.statePath, snap); err != nil {
			f.logger.Warn("Failed to save snapshot", "path", f.statePath, "error", err)
		}
	}

	return snap
}

// Latest returns the most recent snapshot, or a pending one before the first
// refresh.
func (f *Feed) Latest() Snapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.latest
}

// Refreshes returns how many refreshes have completed.
func (f *Feed) Refreshes() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.refreshes
}

func (f *Feed) refreshWithTimeout(parent context.Context) {
	ctx, cancel := context.WithTimeout(parent, RefreshTimeout)
	defer cancel()
	f.Refresh(ctx)
}

// Start refreshes once and schedules a refresh at every slot boundary in the
// configured location. Scheduled refreshes stop when ctx is cancelled.
func (f *Feed) Start(ctx context.Context) error {
	c := cron.NewWithLocation(f.fetcher.location)
	if err := c.AddFunc(RefreshSchedule, func() {
		if ctx.Err() != nil {
			return
		}
		f.refreshWithTimeout(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}

	f.refreshWithTimeout(ctx)

	f.cron = c
	c.Start()
	f.logger.Info("Scheduled refresh", "schedule", RefreshSchedule, "timezone", f.fetcher.location.String())
	return nil
}

// Stop halts the schedule. A refresh already running is allowed to finish.
func (f *Feed) Stop() {
	if f.cron != nil {
		f.cron.Stop()
		f.logger.Info("Stopped scheduled refresh")
	}
}

// Run starts the feed and blocks until ctx is cancelled.
func (f *Feed) Run(ctx context.Context) error {
	if err := f.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	f.Stop()
	return nil
}
