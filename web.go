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
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

type refreshResponse struct {
	Success   bool     `json:"success"`
	Refreshed bool     `json:"refreshed"`
	Snapshot  Snapshot `json:"snapshot"`
}

type healthResponse struct {
	Status      string    `json:"status"`
	Version     string    `json:"version"`
	Refreshes   int       `json:"refreshes"`
	LastRefresh time.Time `json:"last_refresh"`
}

// WebServer serves the latest snapshot as JSON for widgets and dashboards.
type WebServer struct {
	feed   *Feed
	logger *Logger
	server *http.Server
}

func NewWebServer(feed *Feed, apiMetrics *APIMetrics, port int, logger *Logger) *WebServer {
	mux := http.NewServeMux()

	ws := &WebServer{
		feed:   feed,
		logger: logger.WithComponent("web"),
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       60 * time.Second,
		},
	}

	mux.HandleFunc("GET /api/snapshot", ws.handleSnapshot)
	mux.HandleFunc("GET /api/tariffs", ws.handleTariffs)
	mux.HandleFunc("GET /api/consumption", ws.handleConsumption)
	mux.HandleFunc("POST /api/refresh", ws.handleRefresh)
	mux.HandleFunc("GET /healthz", ws.handleHealth)

	mux.Handle("GET /metrics", NewMetricsCollector(feed, apiMetrics))

	return ws
}

// Handler exposes the routes without a listener.
func (ws *WebServer) Handler() http.Handler {
	return ws.server.Handler
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		<-ctx.Done()
		ws.logger.Info("Shutting down web server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), WebShutdownTimeout)
		defer cancel()
		if err := ws.server.Shutdown(shutdownCtx); err != nil {
			ws.logger.Warn("Web server shutdown incomplete", "error", err)
		}
	}()

	ws.logger.Info("Starting web server", "addr", ws.server.Addr)
	if err := ws.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("web server: %w", err)
	}
	return nil
}

func (ws *WebServer) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, ws.feed.Latest())
}

func (ws *WebServer) handleTariffs(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, ws.feed.Latest().Tariffs)
}

func (ws *WebServer) handleConsumption(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, http.StatusOK, ws.feed.Latest().Consumption)
}

func (ws *WebServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), RefreshTimeout)
	defer cancel()

	ws.logger.Info("Refresh requested", "remote", r.RemoteAddr)
	snap := ws.feed.Refresh(ctx)

	ws.writeJSON(w, http.StatusOK, refreshResponse{
		Success:   snap.Tariffs.Status != StatusFailed && snap.Consumption.Status != StatusFailed,
		Refreshed: true,
		Snapshot:  snap,
	})
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := ws.feed.Latest()
	ws.writeJSON(w, http.StatusOK, healthResponse{
		Status:      "ok",
		Version:     GetVersion(),
		Refreshes:   ws.feed.Refreshes(),
		LastRefresh: snap.GeneratedAt,
	})
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		ws.logger.Warn("Failed to encode response", "error", err)
	}
}
