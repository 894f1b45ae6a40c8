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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Logger wraps slog.Logger for structured logging throughout the application
type Logger struct {
	*slog.Logger
	out io.Writer
}

func levelFor(debug bool) slog.Level {
	if debug {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewLogger creates a new structured logger. Log output goes to stderr so
// stdout stays clean for the JSON snapshot in one-shot mode.
func NewLogger(debug bool) *Logger {
	return newLoggerTo(os.Stderr, debug, false)
}

// NewJSONLogger creates a new JSON structured logger (useful for production/log aggregation)
func NewJSONLogger(debug bool) *Logger {
	return newLoggerTo(os.Stderr, debug, true)
}

func newLoggerTo(w io.Writer, debug, jsonFormat bool) *Logger {
	opts := &slog.HandlerOptions{
		Level: levelFor(debug),
	}

	var handler slog.Handler
	if jsonFormat {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return &Logger{
		Logger: slog.New(handler),
		out:    w,
	}
}

// WithComponent returns a logger with a component field pre-set
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		Logger: l.Logger.With("component", component),
		out:    l.out,
	}
}

// WithMeter returns a logger with the meter point pre-set, masked for privacy
func (l *Logger) WithMeter(mpan string) *Logger {
	masked := mpan
	if len(mpan) > 4 {
		masked = "***" + mpan[len(mpan)-4:]
	}
	return &Logger{
		Logger: l.Logger.With("mpan", masked),
		out:    l.out,
	}
}

// LogAPIRequest logs an API request with common fields
func (l *Logger) LogAPIRequest(method, endpoint string, statusCode int, duration float64) {
	l.Debug("API request",
		"method", method,
		"endpoint", endpoint,
		"status_code", statusCode,
		"duration_ms", duration*1000,
	)
}

// LogAPIError logs an API error with details
func (l *Logger) LogAPIError(err error, endpoint string) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		l.Error("API request failed",
			"endpoint", endpoint,
			"status_code", apiErr.StatusCode,
			"retryable", apiErr.Retryable,
			"error", apiErr.Message,
		)
	} else {
		l.Error("API request failed",
			"endpoint", endpoint,
			"error", err.Error(),
		)
	}
}

// LogFallback records that a fetch failed and its values were replaced by sentinels
func (l *Logger) LogFallback(what string, err error) {
	l.Warn("Fetch failed, showing placeholders",
		"fetch", what,
		"error", err.Error(),
	)
}

// UserMessage outputs a user-friendly message (bypasses structured logging).
// It shares the log destination, never stdout.
func (l *Logger) UserMessage(format string, args ...interface{}) {
	fmt.Fprintf(l.out, format+"\n", args...)
}
