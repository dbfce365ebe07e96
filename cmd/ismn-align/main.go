// ismn-align - Sentinel-1 / ISMN time series alignment
//
// Loads the depth-filtered ISMN station files, builds extraction footprints,
// applies the land-cover pre-filter, attaches the exported Sentinel-1
// backscatter series and pairs every acquisition with the latest soil
// moisture reading at or before it. Results are written as per-station CSV,
// a flat Parquet table, a GeoJSON station map and a text summary, and can be
// stored in SQLite or ClickHouse.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/ismn-align ./cmd/ismn-align

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/KI7MT/ismn-s1-lab/internal/align"
	"github.com/KI7MT/ismn-s1-lab/internal/common"
	"github.com/KI7MT/ismn-s1-lab/internal/export"
	"github.com/KI7MT/ismn-s1-lab/internal/ismn"
	"github.com/KI7MT/ismn-s1-lab/internal/landcover"
	"github.com/KI7MT/ismn-s1-lab/internal/log"
	"github.com/KI7MT/ismn-s1-lab/internal/report"
	"github.com/KI7MT/ismn-s1-lab/internal/sentinel"
	"github.com/KI7MT/ismn-s1-lab/internal/station"
	"github.com/KI7MT/ismn-s1-lab/internal/store"
	"github.com/KI7MT/ismn-s1-lab/internal/store/clickhouse"
	"github.com/KI7MT/ismn-s1-lab/internal/store/sqlite"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	dataDir := flag.String("data-dir", "", "Data directory (overrides ISMN_DATA_DIR)")
	boxSize := flag.Float64("box-size", -1, "Footprint edge in metres, 0 for a point (overrides ISMN_BOX_SIZE)")
	policy := flag.String("policy", "", "Multi-valued channel policy: first, error or mean (overrides ISMN_CHANNEL_POLICY)")
	lcTable := flag.String("landcover-table", "", "station_id,class CSV; skip the land-cover filter when empty")
	lcIDs := flag.String("landcover-ids", "", "Comma-separated CGLS-LC100 classes to keep (overrides ISMN_LANDCOVER_IDS)")
	s1Dir := flag.String("sentinel-dir", "", "Sentinel-1 export directory (default <data-dir>/S1)")
	outDir := flag.String("out", "", "Output directory (default <data-dir>/output)")
	gz := flag.Bool("gzip", false, "Gzip the per-station CSV files")
	writeParquet := flag.Bool("parquet", true, "Write merged.parquet")
	sqlitePath := flag.String("sqlite", "", "SQLite database path (overrides ISMN_SQLITE_PATH)")
	useClickHouse := flag.Bool("clickhouse", false, "Store the run in ClickHouse")
	workers := flag.Int("workers", 0, "Parallel station file parsers (0 = one per CPU)")
	quiet := flag.Bool("quiet", false, "Suppress periodic progress lines")
	logLevel := flag.String("log-level", "", "Log level (overrides LOG_LEVEL)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ismn-align v%s - Sentinel-1 / ISMN Time Series Alignment\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [station files...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Station files default to every *_sm_*.stm under <data-dir>/ISMN_Filt.\n")
		fmt.Fprintf(os.Stderr, "Sentinel-1 exports are read from <sentinel-dir>/<station id>_<desc|asc>.json[.gz].\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("ismn-align v%s\n", Version)
		os.Exit(0)
	}

	cfg, err := common.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.DataDir = *dataDir
	}
	if *boxSize >= 0 {
		cfg.BoxSize = *boxSize
	}
	if *policy != "" {
		cfg.ChannelPolicy = *policy
	}
	if *lcIDs != "" {
		ids, err := common.ParseIDs(*lcIDs)
		if err != nil {
			fmt.Fprintf(os.Stderr, "-landcover-ids: %v\n", err)
			os.Exit(1)
		}
		cfg.LandcoverIDs = ids
	}
	if *sqlitePath != "" {
		cfg.SQLitePath = *sqlitePath
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	channelPolicy, _ := cfg.Policy()

	sentinelDir := cfg.SentinelDir()
	if *s1Dir != "" {
		sentinelDir = *s1Dir
	}
	outputDir := cfg.OutputDir()
	if *outDir != "" {
		outputDir = *outDir
	}

	if err := log.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	runID := store.NewRunID()

	log.Info("=========================================================")
	log.Infof("ISMN Align v%s", Version)
	log.Info("=========================================================")
	log.Infof("Run:       %s", runID)
	log.Infof("Stations:  %s", cfg.FilteredDir())
	log.Infof("Sentinel:  %s", sentinelDir)
	log.Infof("Output:    %s", outputDir)
	log.Infof("Box Size:  %v m", cfg.BoxSize)
	log.Infof("Policy:    %s", channelPolicy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutdown requested...")
		cancel()
	}()

	stats := common.NewStats(2 * time.Second)
	stats.SetSilent(*quiet)
	stats.StartReporter()

	// Ground series
	files := flag.Args()
	if len(files) == 0 {
		files, err = ismn.FindFiles(ctx, cfg.FilteredDir())
		if err != nil {
			log.Fatalf("Discovery failed: %v", err)
		}
	}
	if len(files) == 0 {
		log.Fatalf("No station files to process")
	}
	log.Infof("Found %d station file(s)", len(files))

	records, loadReport, err := ismn.NewLoader(*workers).Load(ctx, files, stats)
	if err != nil {
		log.Fatalf("Load interrupted: %v", err)
	}
	stats.AddFailed(uint64(len(loadReport.Failed)))

	records = station.WithFootprints(records, cfg.BoxSize)
	if len(records) > 0 {
		log.Infof("Footprints: %s", station.FootprintType(records[0].Station.Footprint))
	}

	// Land-cover pre-filter
	if *lcTable != "" {
		table, err := landcover.LoadTable(*lcTable)
		if err != nil {
			log.Fatalf("Land cover table: %v", err)
		}
		res, err := landcover.Filter(ctx, records, table, cfg.LandcoverIDs)
		if err != nil {
			log.Fatalf("Land cover filter interrupted: %v", err)
		}
		records = res.Kept
	}

	// Satellite series
	records, importFailed, err := sentinel.Attach(ctx, records, sentinel.DirSource{Dir: sentinelDir})
	if err != nil {
		log.Fatalf("Satellite import interrupted: %v", err)
	}
	if len(importFailed) > 0 {
		stats.AddFailed(uint64(len(importFailed)))
		log.Warnf("%d station(s) dropped for an unreadable Sentinel-1 export", len(importFailed))
	}

	// Alignment
	result, err := align.Run(ctx, records, align.Options{
		Policy: channelPolicy,
		Progress: func(rec station.Record, err error) {
			if err != nil {
				stats.AddFailed(1)
				return
			}
			stats.AddAligned(1)
			stats.AddMatched(uint64(rec.MergedDescending.Len() + rec.MergedAscending.Len()))
		},
	})
	stats.StopReporter()
	if err != nil {
		log.Fatalf("Alignment interrupted: %v", err)
	}

	// Export
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		log.Fatalf("Output directory: %v", err)
	}
	written, err := export.WriteStationCSVs(outputDir, result.Records, *gz)
	if err != nil {
		log.Fatalf("CSV export: %v", err)
	}
	log.Infof("Wrote %d merged CSV file(s)", len(written))

	if err := writeFile(filepath.Join(outputDir, "stations.geojson"), func(f *os.File) error {
		return export.WriteStationsGeoJSON(f, result.Records)
	}); err != nil {
		log.Fatalf("GeoJSON export: %v", err)
	}

	if *writeParquet {
		var rows int
		path := filepath.Join(outputDir, "merged.parquet")
		if err := writeFile(path, func(f *os.File) error {
			rows, err = export.WriteParquet(f, result.Records)
			return err
		}); err != nil {
			log.Fatalf("Parquet export: %v", err)
		}
		if info, err := os.Stat(path); err == nil {
			log.Infof("Wrote %s rows to %s (%s)", humanize.Comma(int64(rows)), path, humanize.Bytes(uint64(info.Size())))
		}
	}

	summaries := report.Summarize(result.Records)
	var sb strings.Builder
	if err := report.WriteText(&sb, summaries); err != nil {
		log.Fatalf("Summary: %v", err)
	}
	if err := os.WriteFile(filepath.Join(outputDir, "summary.txt"), []byte(sb.String()), 0o644); err != nil {
		log.Fatalf("Summary: %v", err)
	}
	log.Debugf("Summary:\n%s", sb.String())

	// Persistence
	var stores []store.Store
	if cfg.SQLitePath != "" {
		s, err := sqlite.New(cfg.SQLitePath)
		if err != nil {
			log.Fatalf("SQLite: %v", err)
		}
		stores = append(stores, s)
	}
	if *useClickHouse {
		log.Infof("Connecting to ClickHouse at %s...", cfg.ClickHouseAddr())
		s, err := clickhouse.New(ctx, clickhouse.Options{
			Addr:     cfg.ClickHouseAddr(),
			Database: cfg.ClickHouseDatabase,
			Username: cfg.ClickHouseUser,
			Password: cfg.ClickHousePassword,
		})
		if err != nil {
			log.Fatalf("ClickHouse: %v", err)
		}
		stores = append(stores, s)
	}
	for _, s := range stores {
		n, err := store.Save(ctx, s, runID, result.Records)
		if err != nil {
			log.Errorf("Store failed: %v", err)
		} else {
			log.Infof("Stored %s matched rows", humanize.Comma(int64(n)))
		}
		if err := s.Close(); err != nil {
			log.Warnf("Store close: %v", err)
		}
	}

	log.Info("")
	log.Info("=========================================================")
	log.Info("Final Statistics")
	log.Info("=========================================================")
	stats.Summary()
	log.Infof("Import Errors:    %d", len(importFailed))
	log.Infof("No-Data Orbits:   %d", countNoData(result.Records))
	log.Info("=========================================================")
}

func countNoData(records []station.Record) int {
	var n int
	for _, rec := range records {
		for _, o := range station.Orbits() {
			if rec.Merged(o).NoData() {
				n++
			}
		}
	}
	return n
}

func writeFile(path string, write func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
