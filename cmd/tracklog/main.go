package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/waypost-data/tracklog/internal/db"
	"github.com/waypost-data/tracklog/internal/version"
)

func main() {
	var dbPath string
	var showVersion bool
	flag.StringVar(&dbPath, "db", "tracklog.db", "Path to sqlite database file")
	flag.BoolVar(&showVersion, "version", false, "Print version information and exit")
	flag.Parse()

	setupLogging()

	if showVersion {
		fmt.Printf("tracklog %s (%s) built %s\n", version.Version, version.GitSHA, version.BuildTime)
		return
	}

	args := flag.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	switch args[0] {
	case "migrate":
		db.RunMigrateCommand(args[1:], dbPath)

	case "import":
		db.RunImportCommand(context.Background(), args[1:], dbPath)

	case "quarantine":
		db.RunQuarantineCommand(args[1:], dbPath)

	case "help":
		printUsage()

	default:
		fmt.Printf("Unknown command: %s\n\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func setupLogging() {
	if os.Getenv("TRACKLOG_LOG_FORMAT") != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if os.Getenv("TRACKLOG_DEBUG") == "YES" {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}

func printUsage() {
	fmt.Println("tracklog - GNSS trip trace import and classification")
	fmt.Println()
	fmt.Println("Usage: tracklog [-db <path>] <command> [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  migrate <action>   Manage the database schema (up, down, status, version, force)")
	fmt.Println("  import             Import staged trace points for one trip")
	fmt.Println("  quarantine         List points rejected by deduplication")
	fmt.Println("  help               Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  tracklog -db trips.db migrate up")
	fmt.Println("  tracklog -db trips.db import -trip \"Alps 2024\"")
	fmt.Println("  tracklog -db trips.db import -trip-id 3 -tuning config/tuning.example.json")
	fmt.Println("  tracklog -db trips.db quarantine -limit 20 -units kmph")
	fmt.Println()
	fmt.Println("Global options:")
	fmt.Println("  -db <path>    Path to database file (default: tracklog.db)")
	fmt.Println("  -version      Print version information and exit")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  TRACKLOG_LOG_FORMAT=JSON    Structured JSON logs instead of console output")
	fmt.Println("  TRACKLOG_DEBUG=YES          Enable debug logging")
	fmt.Println("  TRACKLOG_DEV_MIGRATIONS=1   Load migrations from the working tree")
}
