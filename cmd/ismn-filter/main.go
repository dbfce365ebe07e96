// ismn-filter - ISMN station discovery and depth filter
//
// Scans the raw ISMN download for soil moisture files, copies those measured
// at the requested sensor depth into the filtered directory and writes the
// station list as stations.csv and stations.geojson.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/ismn-filter ./cmd/ismn-filter

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/KI7MT/ismn-s1-lab/internal/common"
	"github.com/KI7MT/ismn-s1-lab/internal/export"
	"github.com/KI7MT/ismn-s1-lab/internal/ismn"
	"github.com/KI7MT/ismn-s1-lab/internal/log"
	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	dataDir := flag.String("data-dir", "", "Data directory (overrides ISMN_DATA_DIR)")
	depth := flag.String("depth", "", "Sensor depth as written in ISMN headers (overrides ISMN_DEPTH)")
	boxSize := flag.Float64("box-size", -1, "Footprint edge in metres, 0 for a point (overrides ISMN_BOX_SIZE)")
	logLevel := flag.String("log-level", "", "Log level (overrides LOG_LEVEL)")
	showVersion := flag.Bool("version", false, "Print version and exit")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ismn-filter v%s - ISMN Station Depth Filter\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Copies *_sm_*.stm files at one sensor depth from <data-dir>/ISMN\n")
		fmt.Fprintf(os.Stderr, "to <data-dir>/ISMN_Filt and writes the station list.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if *showVersion {
		fmt.Printf("ismn-filter v%s\n", Version)
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
	if *depth != "" {
		cfg.Depth = *depth
	}
	if *boxSize >= 0 {
		cfg.BoxSize = *boxSize
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	if err := log.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	log.Info("=========================================================")
	log.Infof("ISMN Filter v%s", Version)
	log.Info("=========================================================")
	log.Infof("Source:   %s", cfg.ISMNDir())
	log.Infof("Target:   %s", cfg.FilteredDir())
	log.Infof("Depth:    %s", cfg.Depth)
	log.Infof("Box Size: %v m", cfg.BoxSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutdown requested...")
		cancel()
	}()

	startTime := time.Now()
	stats := common.NewStats(0)

	files, err := ismn.FindFiles(ctx, cfg.ISMNDir())
	if err != nil {
		log.Fatalf("Discovery failed: %v", err)
	}
	copied, err := ismn.CopyFiltered(ctx, files, cfg.Depth, cfg.FilteredDir())
	if err != nil {
		log.Fatalf("Copy failed: %v", err)
	}
	log.Infof("%d ISMN files were found in %s", len(files), cfg.ISMNDir())
	log.Infof("%d ISMN files with a measurement depth of %s were copied to %s", len(copied), cfg.Depth, cfg.FilteredDir())

	records, report, err := ismn.Load(ctx, copied, stats)
	if err != nil {
		log.Fatalf("Load interrupted: %v", err)
	}
	for path, ferr := range report.Failed {
		log.Warnw("station file skipped", "path", path, "error", ferr)
	}
	records = station.WithFootprints(records, cfg.BoxSize)
	if len(records) > 0 {
		log.Infof("Footprints: %s", station.FootprintType(records[0].Station.Footprint))
	}

	if err := writeFile(filepath.Join(cfg.FilteredDir(), "stations.csv"), func(f *os.File) error {
		return export.WriteStationsCSV(f, records)
	}); err != nil {
		log.Fatalf("stations.csv: %v", err)
	}
	if err := writeFile(filepath.Join(cfg.FilteredDir(), "stations.geojson"), func(f *os.File) error {
		return export.WriteStationsGeoJSON(f, records)
	}); err != nil {
		log.Fatalf("stations.geojson: %v", err)
	}

	log.Info("")
	log.Info("=========================================================")
	log.Info("Final Statistics")
	log.Info("=========================================================")
	log.Infof("Files Found:    %d", len(files))
	log.Infof("Files Copied:   %d", len(copied))
	log.Infof("Stations:       %d", len(records))
	log.Infof("Skipped:        %d", len(report.Failed))
	log.Infof("Elapsed:        %v", time.Since(startTime).Round(time.Millisecond))
	log.Info("=========================================================")
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
