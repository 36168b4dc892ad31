// Copyright 2025 The ChoiceServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the choice search server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

ChoiceServe ranks command-palette choices against what the user typed. It
fuzzy scores every choice over weighted fields, groups and orders the results,
and resolves shortcodes, triggers, keywords and postfixes exactly. It runs as a
MessagePack IPC server for palette hosts, or as a CLI for testing and debugging.

# Usage

Start the server with default settings:

	choiceserve

Use a custom config file and enable debug mode:

	choiceserve -config /path/to/config.toml -d

Run in CLI mode over a corpus file, or over a generated corpus:

	choiceserve -c -choices scripts.json
	choiceserve -c -synthetic 10000

Corpus files are JSON, TOML or MessagePack; the format is picked by extension.
A file holds either a bare array of choices or an object with choices and flags.

# Configuration

Runtime configuration is a TOML file, created with defaults when missing:

	[search]
	accumulate_keywords = false
	min_score_enabled = false
	min_score = 0
	limit = 0

	[[search.keys]]
	name = "name"
	weight = 1.0

	[server]
	immediate_threshold = 5000
	rate_interval_ms = 25
	rate_burst = 1
	max_input = 512

	[cli]
	default_limit = 24

# IPC Protocol

The server communicates via MessagePack over stdin/stdout. See package server
for the request actions and output channels.

# Command Line Flags

	-config string
	    Path to a config file (default: user config dir)
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode
	-choices string
	    Corpus file to load
	-synthetic int
	    Generate a corpus of n choices instead of loading one
	-limit int
	    Number of rows printed per query in CLI mode
	-scores
	    Print scores in CLI mode
	-version
	    Show current version
*/
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/bastiangx/choiceserve/internal/cli"
	"github.com/bastiangx/choiceserve/internal/logger"
	"github.com/bastiangx/choiceserve/internal/utils"
	"github.com/bastiangx/choiceserve/pkg/config"
	"github.com/bastiangx/choiceserve/pkg/corpus"
	"github.com/bastiangx/choiceserve/pkg/server"
	"github.com/bastiangx/choiceserve/pkg/session"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
)

const (
	Version = "0.3.0-beta"
	AppName = "choiceserve"
	gh      = "https://github.com/bastiangx/choiceserve"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main wires config, corpus and the chosen host together.
func main() {
	sigHandler()
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	configPath := flag.String("config", "", "Path to a custom config file")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	choicesPath := flag.String("choices", "", "Corpus file to load (json, toml or msgpack)")
	synthetic := flag.Int("synthetic", 0, "Generate a corpus of n choices instead of loading one")
	limit := flag.Int("limit", defaultConfig.CLI.DefaultLimit, "Number of rows printed per query (CLI)")
	showScores := flag.Bool("scores", defaultConfig.CLI.ShowScores, "Print scores next to results (CLI)")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	if *debugMode {
		logger.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		logger.SetLevel(log.WarnLevel)
	}

	appConfig, activePath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", config.GetActiveConfigPath(activePath))

	if *cliMode {
		log.SetReportTimestamp(false)
		if !flagSet("limit") {
			*limit = appConfig.CLI.DefaultLimit
		}
		if !flagSet("scores") {
			*showScores = appConfig.CLI.ShowScores
		}
		runCLI(appConfig, *choicesPath, *synthetic, *limit, *showScores)
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(appConfig, activePath)
	if *debugMode {
		srv.SetLogger(logger.NewWithConfig("server", log.DebugLevel, true, true, log.TextFormatter))
	}
	showStartupInfo(activePath)

	if err := srv.Start(); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}

// runCLI loads a corpus into one session and starts the prompt.
func runCLI(cfg *config.Config, choicesPath string, synthetic, limit int, showScores bool) {
	sess := session.New(session.Options{
		Name:               "cli",
		Search:             cfg.Search.FuzzyOptions(),
		Logger:             logger.New("cli"),
		AccumulateKeywords: cfg.Search.AccumulateKeywords,
	})

	switch {
	case synthetic > 0:
		sess.SetChoices(corpus.Synthetic(synthetic), session.SetOptions{SkipInitialSearch: true})
		log.Debugf("Generated %d synthetic choices", synthetic)

	case choicesPath != "":
		path := choicesPath
		if pr, err := utils.NewPathResolver(); err == nil {
			if resolved, err := pr.ResolveCorpusPath(choicesPath); err == nil {
				path = resolved
			}
		}
		file, err := corpus.Load(path)
		if err != nil {
			if errors.Is(err, corpus.ErrUnknownFormat) {
				for _, f := range corpus.ListSupportedFormats() {
					log.Print("supported", "format", f.Description, "ext", strings.Join(f.Extensions, ","))
				}
			}
			log.Fatalf("Failed to load corpus: %v", err)
		}
		sess.SetChoices(file.Choices, session.SetOptions{SkipInitialSearch: true})
		if len(file.Flags) > 0 {
			sess.SetFlags(session.FlagSet{Flags: file.Flags, Order: file.FlagOrder})
		}
		log.Debugf("Loaded %d choices from %s", len(file.Choices), path)

	default:
		log.Warn("No corpus given, use -choices or -synthetic. Running with an empty corpus...")
	}

	log.Debug("CLI info:", "limit", limit, "scores", showScores)
	if err := cli.NewInputHandler(sess, limit, showScores).Start(); err != nil {
		log.Fatalf("CLI error: %v", err)
	}
}

// flagSet reports whether a flag was given on the command line.
func flagSet(name string) bool {
	found := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			found = true
		}
	})
	return found
}

func printVersion() {
	vlog := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"}).
		Background(lipgloss.AdaptiveColor{Light: "#f2e9e1", Dark: "#26233a"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	vlog.SetStyles(styles)

	vlog.Print("")
	vlog.Print("[ ChoiceServe ] Ranks command palette choices as you type!")
	vlog.Print("", "version", Version)
	vlog.Print("")
	vlog.Print("use -h or --help to see available options")
	vlog.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process.
// It writes to stderr only: stdout carries the msgpack stream.
func showStartupInfo(configPath string) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	fmt.Fprintln(os.Stderr, "=============")
	fmt.Fprintln(os.Stderr, " ChoiceServe ")
	fmt.Fprintln(os.Stderr, "=============")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("config: ( %s )", config.GetActiveConfigPath(configPath))
	log.Info("status: ready")
	fmt.Fprintln(os.Stderr, "=============")

	log.SetLevel(currentLevel)
}
