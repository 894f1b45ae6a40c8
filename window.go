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
	"time"
)

// Layouts used when talking to the API
const (
	isoUTCLayout  = "2006-01-02T15:04:05Z"
	dateLayout    = "2006-01-02"
	clockLayout   = "15:04:05"
	slotLabelTime = "15:04"
)

// SlotSpan describes a query window in half-hour slots around the current one.
type SlotSpan struct {
	Behind int `json:"behind"` // slots before "now"
	Ahead  int `json:"ahead"`  // slots after "now"
}

var (
	// SpanNowNext covers the current and the following half hour.
	SpanNowNext = SlotSpan{Behind: 0, Ahead: 1}

	// SpanSixSlot covers the previous half hour, now, and the four after it.
	SpanSixSlot = SlotSpan{Behind: 1, Ahead: 4}
)

// Len is the number of slots the span covers.
func (s SlotSpan) Len() int {
	return s.Behind + 1 + s.Ahead
}

// Offset returns the slot offset from "now" of chronological position i.
func (s SlotSpan) Offset(i int) int {
	return i - s.Behind
}

// QueryWindow is the period_from/period_to pair used to request unit rates.
// From is the first second of the earliest slot and To the last second of
// the latest slot, so consecutive windows tile without gaps or overlap.
type QueryWindow struct {
	Span      SlotSpan  `json:"span"`
	SlotStart time.Time `json:"slot_start"`
	From      time.Time `json:"from"`
	To        time.Time `json:"to"`
	LastDay   bool      `json:"last_day"`
	NextDay   bool      `json:"next_day"`
}

// SlotStart returns the start of the half-hour slot containing t, in t's
// location. Sub-second precision is dropped.
func SlotStart(t time.Time) time.Time {
	into := time.Duration(t.Minute()%30)*time.Minute +
		time.Duration(t.Second())*time.Second +
		time.Duration(t.Nanosecond())
	return t.Add(-into).Round(0)
}

// NewQueryWindow computes the window around now. All arithmetic is done on
// absolute instants, so clock changes only move the wall-clock labels.
func NewQueryWindow(now time.Time, span SlotSpan) QueryWindow {
	start := SlotStart(now)
	from := start.Add(-time.Duration(span.Behind) * SlotDuration)
	to := start.Add(time.Duration(span.Ahead+1)*SlotDuration - time.Second)

	today := calendarDay(now)
	return QueryWindow{
		Span:      span,
		SlotStart: start,
		From:      from,
		To:        to,
		LastDay:   calendarDay(from).Before(today),
		NextDay:   calendarDay(to).After(today),
	}
}

// PeriodFrom is the wall-clock start of the window, HH:MM:SS.
func (w QueryWindow) PeriodFrom() string {
	return w.From.Format(clockLayout)
}

// PeriodTo is the wall-clock end of the window, HH:MM:SS.
func (w QueryWindow) PeriodTo() string {
	return w.To.Format(clockLayout)
}

// QueryFrom is the period_from query value in UTC.
func (w QueryWindow) QueryFrom() string {
	return w.From.UTC().Format(isoUTCLayout)
}

// QueryTo is the period_to query value in UTC.
func (w QueryWindow) QueryTo() string {
	return w.To.UTC().Format(isoUTCLayout)
}

// SlotTimes returns the start of every slot in the window, oldest first.
func (w QueryWindow) SlotTimes() []time.Time {
	times := make([]time.Time, w.Span.Len())
	for i := range times {
		times[i] = w.From.Add(time.Duration(i) * SlotDuration)
	}
	return times
}

func (w QueryWindow) String() string {
	return fmt.Sprintf("%s %s → %s %s", w.From.Format(dateLayout), w.PeriodFrom(), w.To.Format(dateLayout), w.PeriodTo())
}

// calendarDay maps t to midnight UTC of its wall-clock date so dates from
// different locations compare by calendar only.
func calendarDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// LastSunday returns midnight of the last Sunday of the month.
func LastSunday(year int, month time.Month, loc *time.Location) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, loc)
	return last.AddDate(0, 0, -int(last.Weekday()))
}

// IsBST reports whether the calendar date of t lies strictly between the last
// Sunday of March and the last Sunday of October. The changeover Sundays
// themselves and the time of day are not considered.
func IsBST(t time.Time) bool {
	day := calendarDay(t)
	start := LastSunday(t.Year(), time.March, time.UTC)
	end := LastSunday(t.Year(), time.October, time.UTC)
	return day.After(start) && day.Before(end)
}

// ConsumptionPeriod returns the day-aligned period_from/period_to for a day of
// consumption. During BST the end is pulled back an hour, matching the UTC
// boundary the API expects.
func ConsumptionPeriod(day time.Time) (string, string) {
	date := day.Format(dateLayout)
	end := "23:59:59"
	if IsBST(day) {
		end = "22:59:59"
	}
	return date + "T00:00:00Z", date + "T" + end + "Z"
}
