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
	"time"

	"golang.org/x/sync/errgroup"
)

// ConsumptionReading is the day total for today and yesterday in kWh.
type ConsumptionReading struct {
	Today     string      `json:"today"`
	Yesterday string      `json:"yesterday"`
	Status    FetchStatus `json:"status"`
	FetchedAt time.Time   `json:"fetched_at"`
}

func newConsumptionReading() ConsumptionReading {
	return ConsumptionReading{
		Today:     Sentinel,
		Yesterday: Sentinel,
		Status:    StatusPending,
	}
}

// FetchConsumption reads today's and yesterday's consumption. Both requests
// run together; if either fails both values stay sentineled.
func (f *Fetcher) FetchConsumption(ctx context.Context, now time.Time) ConsumptionReading {
	now = now.In(f.location)
	reading := newConsumptionReading()
	reading.FetchedAt = now

	if !f.config.HasMeter() {
		f.logger.Debug("No meter configured, skipping consumption")
		reading.Status = StatusSkipped
		return reading
	}

	var today, yesterday string
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		v, err := f.dailyConsumption(gctx, now)
		today = v
		return err
	})
	g.Go(func() error {
		v, err := f.dailyConsumption(gctx, now.AddDate(0, 0, -1))
		yesterday = v
		return err
	})

	if err := g.Wait(); err != nil {
		f.logger.LogFallback("consumption", err)
		reading.Status = StatusFailed
		return reading
	}

	reading.Today = today
	reading.Yesterday = yesterday
	reading.Status = StatusOK
	return reading
}

// dailyConsumption returns the first day-grouped result for the day, or the
// sentinel when the API has nothing for it yet.
func (f *Fetcher) dailyConsumption(ctx context.Context, day time.Time) (string, error) {
	from, to := ConsumptionPeriod(day)
	results, err := f.api.GetConsumption(ctx, f.config.API.MPAN, f.config.API.SerialNumber, from, to, ConsumptionGroupBy)
	if err != nil {
		return Sentinel, fmt.Errorf("consumption for %s: %w", day.Format(dateLayout), err)
	}
	if len(results) == 0 {
		return Sentinel, nil
	}
	return formatFixed2(results[0].Consumption), nil
}
