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
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"
)

// cliFlags holds command line values. Only flags the user actually set
// override the configuration file.
type cliFlags struct {
	configPath  string
	showVersion bool

	apiKey    string
	mpan      string
	serial    string
	tariff    string
	region    string
	fuel      string
	slots     string
	timezone  string
	stateFile string
	daemon    bool
	webUI     bool
	webPort   int
	debug     bool
	jsonLogs  bool

	set map[string]bool
}

func parseFlags(fs *flag.FlagSet, args []string) (*cliFlags, error) {
	f := &cliFlags{}
	fs.StringVar(&f.configPath, "config", "", "Path to configuration file")
	fs.BoolVar(&f.showVersion, "version", false, "Show version information")
	fs.StringVar(&f.apiKey, "key", "", "Octopus Energy API key (or OCTOPUS_API_KEY)")
	fs.StringVar(&f.mpan, "mpan", "", "Electricity meter point number (or OCTOPUS_MPAN)")
	fs.StringVar(&f.serial, "serial", "", "Electricity meter serial number (or OCTOPUS_SERIAL_NUMBER)")
	fs.StringVar(&f.tariff, "tariff", "", "Product key, e.g. "+DefaultTariffKey)
	fs.StringVar(&f.region, "region", "", "Grid supply point region letter, e.g. "+DefaultRegionCode)
	fs.StringVar(&f.fuel, "type", "", "Tariff type: electricity or gas")
	fs.StringVar(&f.slots, "slots", "", "Slot layout: six or two")
	fs.StringVar(&f.timezone, "timezone", "", "Wall clock for slot labels, e.g. "+DefaultTimezone)
	fs.StringVar(&f.stateFile, "state", "", `Snapshot file ("auto" for ~/.config/octowidget/snapshot.json)`)
	fs.BoolVar(&f.daemon, "daemon", false, "Refresh on every half-hour boundary until stopped")
	fs.BoolVar(&f.webUI, "web", false, "Serve the JSON API and metrics (daemon mode only)")
	fs.IntVar(&f.webPort, "port", WebDefaultPort, "Web server port")
	fs.BoolVar(&f.debug, "debug", false, "Enable debug logging")
	fs.BoolVar(&f.jsonLogs, "json-logs", false, "Log as JSON")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	f.set = make(map[string]bool)
	fs.Visit(func(fl *flag.Flag) { f.set[fl.Name] = true })
	return f, nil
}

// apply overrides config values with flags given on the command line.
func (f *cliFlags) apply(c *Config) {
	if f.set["key"] {
		c.API.APIKey = f.apiKey
	}
	if f.set["mpan"] {
		c.API.MPAN = f.mpan
	}
	if f.set["serial"] {
		c.API.SerialNumber = f.serial
	}
	if f.set["tariff"] {
		c.Tariff.Key = f.tariff
	}
	if f.set["region"] {
		c.Tariff.Region = f.region
	}
	if f.set["type"] {
		c.Tariff.Type = f.fuel
	}
	if f.set["slots"] {
		c.Slots = f.slots
	}
	if f.set["timezone"] {
		c.Timezone = f.timezone
	}
	if f.set["state"] {
		c.StateFile = f.stateFile
	}
	if f.set["daemon"] {
		c.Daemon = f.daemon
	}
	if f.set["web"] {
		c.WebUI = f.webUI
	}
	if f.set["port"] {
		c.WebPort = f.webPort
	}
	if f.set["debug"] {
		c.Debug = f.debug
	}
	if f.set["json-logs"] {
		c.JSONLogs = f.jsonLogs
	}
}

// loadDotEnv reads .env from the working directory when one exists.
// Variables already in the environment win.
func loadDotEnv() error {
	if _, err := os.Stat(".env"); err != nil {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("error loading .env file: %w", err)
	}
	return nil
}

func buildConfig(f *cliFlags) (*Config, error) {
	config, err := LoadConfig(f.configPath)
	if err != nil {
		return nil, fmt.Errorf("error loading config file: %w", err)
	}
	f.apply(config)
	config.ApplyEnv()
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func main() {
	flags, err := parseFlags(flag.CommandLine, os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if flags.showVersion {
		fmt.Printf("octowidget %s\n", GetVersion())
		fmt.Printf("User-Agent: %s\n", GetUserAgent())
		os.Exit(0)
	}

	if err := loadDotEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	config, err := buildConfig(flags)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintf(os.Stderr, "Usage: %s [-config=<path>] [-key=<api_key> -mpan=<mpan> -serial=<serial>]\n", os.Args[0])
		flag.PrintDefaults()
		os.Exit(1)
	}

	logger := NewLogger(config.Debug)
	if config.JSONLogs {
		logger = NewJSONLogger(config.Debug)
	}

	if err := run(config, logger); err != nil {
		logger.Error("Exiting", "error", err)
		os.Exit(1)
	}
}

func run(config *Config, logger *Logger) error {
	logger.Info("Starting octowidget",
		"version", GetVersion(),
		"tariff_code", config.TariffCode(),
		"slots", config.Slots,
		"timezone", config.Timezone,
		"consumption", config.HasMeter(),
	)
	if config.HasMeter() {
		logger.WithMeter(config.API.MPAN).Info("Consumption enabled", "api_key", config.API.APIKey[:min(8, len(config.API.APIKey))]+"...")
	}

	client := NewOctopusClient(config.API.APIKey, config.API.BaseURL, config.Debug)
	client.SetLogger(logger)
	client.SetMaxRetries(config.API.MaxRetries)

	statePath, err := ResolveStatePath(config.StateFile)
	if err != nil {
		return err
	}

	fetcher := NewFetcher(client, config, logger)
	feed := NewFeed(fetcher, statePath, logger)

	if !config.Daemon {
		ctx, cancel := context.WithTimeout(context.Background(), RefreshTimeout)
		defer cancel()
		snap := feed.Refresh(ctx)
		printSummary(logger, snap)
		return writeSnapshot(os.Stdout, snap)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return feed.Run(gctx)
	})
	if config.WebUI {
		web := NewWebServer(feed, client.Metrics(), config.WebPort, logger)
		logger.Info("Web API enabled", "url", fmt.Sprintf("http://localhost:%d/api/snapshot", config.WebPort))
		g.Go(func() error {
			return web.Start(gctx)
		})
	}

	err = g.Wait()
	logger.Info("Stopped", "refreshes", feed.Refreshes())
	return err
}

func writeSnapshot(w io.Writer, snap Snapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("failed to write snapshot: %w", err)
	}
	return nil
}

func printSummary(logger *Logger, snap Snapshot) {
	var parts []string
	for _, slot := range snap.Tariffs.Slots {
		parts = append(parts, fmt.Sprintf("%s %sp", slot.Time, slot.Price))
	}
	logger.UserMessage("%s at %s: %s",
		snap.TariffCode,
		snap.GeneratedAt.Format(time.Kitchen),
		strings.Join(parts, " | "),
	)
	if snap.Consumption.Status != StatusSkipped {
		logger.UserMessage("Consumption today %s kWh, yesterday %s kWh", snap.Consumption.Today, snap.Consumption.Yesterday)
	}
}
