// Copyright 2025 The searchserve Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main runs the Nepal COVID-19 search suggestion service.

A query is matched against three datasets: the provinces, the 77 districts and
the crowd-sourced essentials feed (hospitals, testing labs, delivery services).
Every whitespace-separated token of the query must be a prefix of some token of
a result. Province matches are listed first, then up to five districts, then
up to five essentials.

The essentials feed is fetched over HTTP on the first query and cached in
memory. A msgpack snapshot of the last good copy is kept next to the config
file. It is served at startup until the first live fetch succeeds, so a
restart without network still serves essentials.

# Usage

Start the MessagePack IPC server on stdin/stdout:

	searchserve

Serve the JSON API and the widget fragment over HTTP:

	searchserve -http -addr :8080

Run in CLI mode for interactive testing:

	searchserve -c -d

# Configuration

Runtime configuration lives in searchserve.toml in the platform config dir and
is created with defaults on first run:

	[server]
	addr = "127.0.0.1:8080"
	min_query = 1
	max_query = 60
	enable_filter = true
	rate_limit = 50.0
	rate_burst = 100

	[search]
	region_limit = 0
	district_limit = 5
	essentials_limit = 5
	fuzzy = true

	[essentials]
	url = "https://api.nepalcovid19.org/resources/resources.json"
	timeout_seconds = 10
	refresh_minutes = 0
	snapshot_path = "essentials.msgpack"

Relative paths are resolved against the config directory. Malformed files are
salvaged key by key; anything unreadable falls back to the defaults.

# IPC Protocol

Send a search request:

	{"id": "req1", "q": "kath", "l": 10}

Receive the merged results with timing in microseconds:

	{"id": "req1", "r": [{"n": "Kathmandu, Bagmati", "k": "state", "rt": "BA"}], "c": 1, "t": 212}

Control requests:

	{"id": "c1", "action": "stats"}
	{"id": "c2", "action": "reload"}
	{"id": "c3", "action": "suggestions"}

# HTTP

	GET /api/search?q=kath&limit=10
	GET /search?q=kath
	GET /api/suggestions
	GET /api/stats
	GET /healthz
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/nepalcovid19/searchserve/internal/cli"
	"github.com/nepalcovid19/searchserve/internal/logger"
	"github.com/nepalcovid19/searchserve/internal/utils"
	"github.com/nepalcovid19/searchserve/pkg/config"
	"github.com/nepalcovid19/searchserve/pkg/datasets"
	"github.com/nepalcovid19/searchserve/pkg/essentials"
	"github.com/nepalcovid19/searchserve/pkg/search"
	"github.com/nepalcovid19/searchserve/pkg/server"
	"github.com/nepalcovid19/searchserve/pkg/web"
)

const (
	Version = "0.3.0"
	AppName = "searchserve"
	gh      = "https://github.com/nepalcovid19/searchserve"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	showVersion := flag.Bool("version", false, "Show current version")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	httpMode := flag.Bool("http", false, "Serve the JSON API and widget over HTTP instead of IPC")
	addr := flag.String("addr", "", "HTTP listen address (default from config)")
	configFile := flag.String("config", "", "Path to the TOML config file")
	dataFile := flag.String("data", "", "Regions/districts TOML overriding the bundled dataset")
	feedURL := flag.String("url", "", "Essentials feed URL (default from config)")
	noFilter := flag.Bool("no-filter", false, "Disable input filtering (DBG only)")
	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	pathResolver, err := utils.NewPathResolver(AppName)
	if err != nil {
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}

	log.Debugf("Config dir: %s", pathResolver.ConfigDir())
	configPath := *configFile
	if configPath == "" {
		configPath, err = pathResolver.GetConfigPath(AppName + ".toml")
		if err != nil {
			log.Fatalf("Failed to determine config path: (%v)", err)
		}
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(configPath))

	cfg, err := config.InitConfig(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *feedURL != "" {
		cfg.Essentials.URL = *feedURL
	}
	if *dataFile != "" {
		cfg.Datasets.Path = *dataFile
	}

	ds, err := datasets.Load(pathResolver.ResolveRelativePath(cfg.Datasets.Path))
	if err != nil {
		log.Fatalf("Failed to load datasets: %v", err)
	}
	log.Debug("datasets loaded", "regions", len(ds.Regions), "districts", len(ds.Districts))

	source := essentials.NewSource(essentials.Options{
		URL:             cfg.Essentials.URL,
		Timeout:         cfg.Essentials.Timeout(),
		RetryCount:      cfg.Essentials.RetryCount,
		RefreshInterval: cfg.Essentials.RefreshInterval(),
		SnapshotPath:    pathResolver.ResolveRelativePath(cfg.Essentials.SnapshotPath),
	})
	// warm start: the snapshot answers until the first query fetches the live feed
	if cfg.Essentials.SnapshotPath != "" {
		if err := source.RestoreSnapshot(); err != nil {
			log.Debugf("No usable essentials snapshot: %v", err)
		}
	}
	source.Start()
	defer source.Stop()

	engine := search.NewEngine(ds, source, search.Options{
		RegionLimit:     cfg.Search.RegionLimit,
		DistrictLimit:   cfg.Search.DistrictLimit,
		EssentialsLimit: cfg.Search.EssentialsLimit,
		Fuzzy:           cfg.Search.Fuzzy,
		CacheSize:       cfg.Search.CacheSize,
	})

	switch {
	case *cliMode:
		log.SetReportTimestamp(false)
		filterOff := *noFilter || cfg.CLI.DefaultNoFilter
		handler := cli.NewInputHandler(engine, os.Stdin, os.Stdout,
			cfg.Server.MinQuery, cfg.Server.MaxQuery, filterOff, cfg.CLI.ShowTimings)
		if err := runUntilDone(ctx, func() error { return handler.Start(ctx) }); err != nil {
			log.Fatalf("CLI error: %v", err)
		}

	case *httpMode:
		if *noFilter {
			cfg.Server.EnableFilter = false
		}
		showStartupInfo("http", cfg.Server.Addr)
		if err := web.New(engine, cfg).ListenAndServe(ctx, cfg.Server.Addr); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}

	default:
		if *noFilter {
			cfg.Server.EnableFilter = false
		}
		showStartupInfo("ipc", "stdin/stdout")
		srv := server.NewServer(engine, source, cfg, os.Stdin, os.Stdout)
		if err := runUntilDone(ctx, func() error { return srv.Start(ctx) }); err != nil {
			log.Fatalf("IPC server error: %v", err)
		}
	}
}

// runUntilDone returns when fn does or when ctx is cancelled, whichever comes
// first. Reads from stdin cannot be interrupted, so fn may be left running.
func runUntilDone(ctx context.Context, fn func() error) error {
	errCh := make(chan error, 1)
	go func() { errCh <- fn() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		return nil
	}
}

func printVersion() {
	l := logger.NewWithConfig("", log.InfoLevel, false, false, log.TextFormatter)

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	l.SetStyles(styles)

	l.Print("")
	l.Print("[ searchserve ] COVID-19 Nepal search suggestions")
	l.Print("", "version", Version)
	l.Print("")
	l.Print("use -h or --help to see available options")
	l.Print("Github Repo", "gh", gh)
}

// showStartupInfo logs the mode on stderr; stdout may carry the IPC stream.
func showStartupInfo(mode, addr string) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	log.Info("searchserve", "version", Version, "pid", os.Getpid())
	log.Info("status: ready", "mode", mode, "addr", addr, "started", time.Now().Format(time.TimeOnly))
	log.SetLevel(currentLevel)
}
