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
)

// OctopusAPI is the slice of the Octopus REST API the fetchers use.
type OctopusAPI interface {
	GetStandardUnitRates(ctx context.Context, productCode, tariffType, tariffCode, periodFrom, periodTo string) ([]UnitRate, error)
	GetConsumption(ctx context.Context, mpan, serialNumber, periodFrom, periodTo, groupBy string) ([]ConsumptionInterval, error)
}

// TariffSlot is one half hour of the quote. Time and Price hold Sentinel
// when the rate is unknown.
type TariffSlot struct {
	Name  string `json:"name"`
	Time  string `json:"time"`
	Price string `json:"price"`
}

// TariffQuote is the set of slots around now, oldest first.
type TariffQuote struct {
	TariffCode string       `json:"tariff_code"`
	Window     QueryWindow  `json:"window"`
	Slots      []TariffSlot `json:"slots"`
	Status     FetchStatus  `json:"status"`
	FetchedAt  time.Time    `json:"fetched_at"`
}

// SlotName names a slot by its offset from the current half hour.
func SlotName(offset int) string {
	switch {
	case offset == 0:
		return "now"
	case offset == 1:
		return "nextHour"
	case offset == -1:
		return "lastHour"
	case offset > 1:
		return fmt.Sprintf("next%dHours", offset)
	default:
		return fmt.Sprintf("last%dHours", -offset)
	}
}

// newTariffQuote returns a quote for the window with every slot sentineled.
func newTariffQuote(tariffCode string, window QueryWindow) TariffQuote {
	slots := make([]TariffSlot, window.Span.Len())
	for i := range slots {
		slots[i] = TariffSlot{
			Name:  SlotName(window.Span.Offset(i)),
			Time:  Sentinel,
			Price: Sentinel,
		}
	}
	return TariffQuote{
		TariffCode: tariffCode,
		Window:     window,
		Slots:      slots,
		Status:     StatusPending,
	}
}

// Slot returns the named slot, or a sentineled one if the name is unknown.
func (q TariffQuote) Slot(name string) TariffSlot {
	for _, s := range q.Slots {
		if s.Name == name {
			return s
		}
	}
	return TariffSlot{Name: name, Time: Sentinel, Price: Sentinel}
}

// Now is the slot covering the current half hour.
func (q TariffQuote) Now() TariffSlot {
	return q.Slot("now")
}

// Fetcher turns configuration plus the current time into widget data.
// Fetch methods never return errors: failures come back as sentinels.
type Fetcher struct {
	api        OctopusAPI
	config     *Config
	tariffCode string
	span       SlotSpan
	location   *time.Location
	logger     *Logger
}

func NewFetcher(api OctopusAPI, config *Config, logger *Logger) *Fetcher {
	return &Fetcher{
		api:        api,
		config:     config,
		tariffCode: config.TariffCode(),
		span:       config.Span(),
		location:   config.Location(),
		logger:     logger.WithComponent("fetcher"),
	}
}

// FetchTariffs requests the unit rates for the window around now. Rates come
// back newest first, so result i fills slot len-1-i; slots without a result
// keep the sentinel and surplus results are ignored.
func (f *Fetcher) FetchTariffs(ctx context.Context, now time.Time) TariffQuote {
	now = now.In(f.location)
	window := NewQueryWindow(now, f.span)
	quote := newTariffQuote(f.tariffCode, window)
	quote.FetchedAt = now

	f.logger.Debug("Fetching tariff rates",
		"tariff_code", f.tariffCode,
		"window", window.String(),
		"last_day", window.LastDay,
		"next_day", window.NextDay,
	)

	rates, err := f.api.GetStandardUnitRates(ctx, f.config.Tariff.Key, f.config.Tariff.Type, f.tariffCode, window.QueryFrom(), window.QueryTo())
	if err != nil {
		f.logger.LogFallback("tariffs", err)
		quote.Status = StatusFailed
		return quote
	}

	n := len(quote.Slots)
	for i, rate := range rates {
		if i >= n {
			break
		}
		slot := &quote.Slots[n-1-i]
		slot.Time = rate.ValidFrom.In(f.location).Format(slotLabelTime)
		slot.Price = formatFixed2(rate.ValueIncVAT)
	}
	if len(rates) < n {
		f.logger.Debug("Fewer rates than slots", "rates", len(rates), "slots", n)
	}

	quote.Status = StatusOK
	return quote
}
