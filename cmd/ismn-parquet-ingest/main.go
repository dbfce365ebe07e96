// ismn-parquet-ingest - Load merged Parquet tables into ClickHouse
//
// Reads merged.parquet files written by ismn-align and inserts their match
// rows via the ch-go native protocol, one connection per file worker.
// Useful for loading runs produced on machines without database access.
//
// Build: CGO_ENABLED=0 go build -ldflags="-s -w" -o build/ismn-parquet-ingest ./cmd/ismn-parquet-ingest

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/KI7MT/ismn-s1-lab/internal/common"
	"github.com/KI7MT/ismn-s1-lab/internal/export"
	"github.com/KI7MT/ismn-s1-lab/internal/log"
	"github.com/KI7MT/ismn-s1-lab/internal/station"
	"github.com/KI7MT/ismn-s1-lab/internal/store"
	"github.com/KI7MT/ismn-s1-lab/internal/store/clickhouse"
)

// Version can be overridden at build time via -ldflags
var Version = "1.0.0"

const NumWorkers = 4

func processFile(ctx context.Context, path, runID string, opts clickhouse.Options, stats *common.Stats) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}

	w, err := clickhouse.DialMatchWriter(ctx, opts)
	if err != nil {
		return err
	}
	defer w.Close()

	startTime := time.Now()
	rows := make([]station.Row, 0, 1000)
	err = export.ScanParquet(f, info.Size(), func(chunk []export.MergedRow) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows = rows[:0]
		for _, m := range chunk {
			row, err := m.Row()
			if err != nil {
				return err
			}
			rows = append(rows, row)
		}
		return w.Write(ctx, runID, rows)
	})
	if err != nil {
		return err
	}
	if err := w.Flush(ctx); err != nil {
		return err
	}

	stats.AddFile(uint64(info.Size()))
	stats.AddMatched(uint64(w.Rows()))
	log.Infof("[%s] %s rows in %.1fs", filepath.Base(path), humanize.Comma(int64(w.Rows())), time.Since(startTime).Seconds())
	return nil
}

func main() {
	configPath := flag.String("config", "", "Optional YAML config file")
	runID := flag.String("run-id", "", "Run ID stamped on every row (default: new UUID)")
	workers := flag.Int("workers", NumWorkers, "Number of parallel file workers")
	logLevel := flag.String("log-level", "", "Log level (overrides LOG_LEVEL)")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "ismn-parquet-ingest v%s - Merged Parquet to ClickHouse Loader\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [path|files...]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "If no paths are given, <data-dir>/output is scanned for *.parquet.\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := common.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if err := log.Init(cfg.LogLevel); err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if *runID == "" {
		*runID = store.NewRunID()
	}
	if *workers < 1 {
		*workers = 1
	}

	inputPaths := flag.Args()
	if len(inputPaths) == 0 {
		inputPaths = []string{cfg.OutputDir()}
	}

	log.Info("=========================================================")
	log.Infof("ISMN Parquet Ingest v%s", Version)
	log.Info("=========================================================")
	log.Infof("Input:   %d path(s)", len(inputPaths))
	log.Infof("Run:     %s", *runID)
	log.Infof("Workers: %d | Batch: %d", *workers, clickhouse.BatchSize)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		log.Info("Shutdown requested...")
		cancel()
	}()

	opts := clickhouse.Options{
		Addr:     cfg.ClickHouseAddr(),
		Database: cfg.ClickHouseDatabase,
		Username: cfg.ClickHouseUser,
		Password: cfg.ClickHousePassword,
	}

	// Schema check; workers open their own native connections.
	log.Infof("Connecting to ClickHouse at %s...", opts.Addr)
	schema, err := clickhouse.New(ctx, opts)
	if err != nil {
		log.Fatalf("ClickHouse connection failed: %v", err)
	}
	schema.Close()

	files := findParquet(inputPaths)
	if len(files) == 0 {
		log.Fatalf("No Parquet files found")
	}
	log.Infof("Found %d Parquet file(s)", len(files))

	stats := common.NewStats(0)
	sem := make(chan struct{}, *workers)
	var wg sync.WaitGroup
	var mu sync.Mutex
	failed := 0

	for _, path := range files {
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)
		go func(fp string) {
			defer wg.Done()
			defer func() { <-sem }()
			if err := processFile(ctx, fp, *runID, opts, stats); err != nil {
				log.Errorf("[%s] %v", filepath.Base(fp), err)
				mu.Lock()
				failed++
				mu.Unlock()
			}
		}(path)
	}
	wg.Wait()

	log.Info("")
	log.Info("=========================================================")
	log.Info("Final Statistics")
	log.Info("=========================================================")
	log.Infof("Files:        %d (%d failed)", stats.Files(), failed)
	log.Infof("Total Size:   %s", humanize.Bytes(stats.Bytes()))
	log.Infof("Total Rows:   %s", humanize.Comma(int64(stats.Matched())))
	log.Infof("Elapsed:      %v", stats.Elapsed().Round(time.Millisecond))
	log.Info("=========================================================")
}

func findParquet(paths []string) []string {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			log.Warnf("Cannot access %s: %v", p, err)
			continue
		}
		if !info.IsDir() {
			if strings.HasSuffix(p, ".parquet") {
				files = append(files, p)
			}
			continue
		}
		_ = filepath.WalkDir(p, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(path, ".parquet") {
				files = append(files, path)
			}
			return nil
		})
	}
	sort.Strings(files)
	return files
}
