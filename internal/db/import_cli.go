package db

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/waypost-data/tracklog/internal/config"
	"github.com/waypost-data/tracklog/internal/units"
)

// ImportCLI wraps the import pipeline for command-line use. Output defaults
// to stdout but can point anywhere, which keeps the CLI testable.
type ImportCLI struct {
	DB     *DB
	Tuning *config.PipelineTuning
	Output io.Writer
}

// NewImportCLI creates a CLI instance for the import command.
func NewImportCLI(database *DB, tuning *config.PipelineTuning, output io.Writer) *ImportCLI {
	if output == nil {
		output = os.Stdout
	}
	return &ImportCLI{
		DB:     database,
		Tuning: tuning,
		Output: output,
	}
}

// RunImport resolves the trip, runs the import pipeline and prints the
// summary. The summary is also returned for programmatic use.
func (c *ImportCLI) RunImport(ctx context.Context, tripName string, tripID int64) (*Summary, error) {
	if tripID == 0 {
		if tripName == "" {
			return nil, fmt.Errorf("either a trip name or a trip ID is required")
		}
		trip, err := c.DB.GetTripByName(tripName)
		if err != nil {
			return nil, err
		}
		tripID = trip.ID
	}

	importer := NewTraceImporter(c.DB, c.Tuning)
	summary, err := importer.ImportTrace(ctx, tripID)
	if err != nil {
		return nil, err
	}

	fmt.Fprintf(c.Output, "=== Trace Import Summary ===\n")
	fmt.Fprintf(c.Output, "Run ID:              %s\n", summary.RunID)
	fmt.Fprintf(c.Output, "Points inserted:     %d\n", summary.PointsInserted)
	fmt.Fprintf(c.Output, "Segments in batch:   %d\n", summary.SegmentsInBatch)
	fmt.Fprintf(c.Output, "Segments aggregated: %d\n", summary.SegmentsAggregated)
	fmt.Fprintf(c.Output, "Points quarantined:  %d\n", summary.PointsQuarantined)

	if len(summary.Warnings) > 0 {
		fmt.Fprintf(c.Output, "\nWarnings:\n")
		for _, warning := range summary.Warnings {
			fmt.Fprintf(c.Output, "  - %s\n", warning)
		}
	}

	return summary, nil
}

// ShowQuarantine prints quarantined points, either the latest overall or
// everything from a single run. Speeds are converted from stored m/s to the
// requested display unit.
func (c *ImportCLI) ShowQuarantine(runID string, limit int, unit string) error {
	if !units.IsValid(unit) {
		return fmt.Errorf("invalid unit %q, valid units: %s", unit, strings.Join(units.ValidUnits, ", "))
	}

	var points []QuarantinedPoint
	var err error

	if runID != "" {
		points, err = c.DB.ListQuarantinedPointsForRun(runID)
	} else {
		points, err = c.DB.ListQuarantinedPoints(limit)
	}
	if err != nil {
		return err
	}

	if len(points) == 0 {
		fmt.Fprintf(c.Output, "No quarantined points found\n")
		return nil
	}

	fmt.Fprintf(c.Output, "=== Quarantined Points ===\n")
	fmt.Fprintf(c.Output, "%-10s %-8s %-22s %-12s %-8s %s\n", "SEQ", "STEP", "TIMESTAMP", "SPEED ("+unit+")", "HDOP", "RUN")
	for _, p := range points {
		ts := time.Unix(p.UnixTime, 0).UTC().Format(time.RFC3339)
		fmt.Fprintf(c.Output, "%-10d %-8d %-22s %-12.2f %-8.2f %s\n",
			p.RawSeq, p.StepID, ts, units.ConvertSpeed(p.Speed, unit), p.HDOP, p.RunID)
	}
	fmt.Fprintf(c.Output, "\n%d point(s)\n", len(points))

	return nil
}

// RunImportCommand handles the 'import' subcommand.
func RunImportCommand(ctx context.Context, args []string, dbPath string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	tripName := fs.String("trip", "", "name of the trip to import")
	tripID := fs.Int64("trip-id", 0, "ID of the trip to import (alternative to -trip)")
	tuningPath := fs.String("tuning", "", "path to pipeline tuning config (JSON)")
	fs.Parse(args)

	if *tripName == "" && *tripID == 0 {
		fmt.Println("Either -trip or -trip-id is required")
		fs.Usage()
		os.Exit(1)
	}

	tuning := config.EmptyPipelineTuning()
	if *tuningPath != "" {
		loaded, err := config.LoadPipelineTuning(*tuningPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", *tuningPath).Msg("failed to load tuning config")
		}
		tuning = loaded
	}

	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	migrationsFS, err := getMigrationsFS()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to get migrations filesystem")
	}
	if err := database.CheckSchemaCurrent(migrationsFS); err != nil {
		log.Fatal().Err(err).Msg("database schema check failed")
	}

	cli := NewImportCLI(database, tuning, os.Stdout)
	if _, err := cli.RunImport(ctx, *tripName, *tripID); err != nil {
		log.Fatal().Err(err).Msg("import failed")
	}
}

// RunQuarantineCommand handles the 'quarantine' subcommand.
func RunQuarantineCommand(args []string, dbPath string) {
	fs := flag.NewFlagSet("quarantine", flag.ExitOnError)
	runID := fs.String("run", "", "show only points quarantined by this run ID")
	limit := fs.Int("limit", 50, "maximum number of points to show (ignored with -run)")
	unit := fs.String("units", units.MPS, "display unit for speeds (mps, mph, kmph, kph)")
	fs.Parse(args)

	database, err := OpenDB(dbPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer database.Close()

	cli := NewImportCLI(database, nil, os.Stdout)
	if err := cli.ShowQuarantine(*runID, *limit, *unit); err != nil {
		log.Fatal().Err(err).Msg("failed to list quarantined points")
	}
}
