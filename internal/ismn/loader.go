package ismn

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/KI7MT/ismn-s1-lab/internal/common"
	"github.com/KI7MT/ismn-s1-lab/internal/log"
	"github.com/KI7MT/ismn-s1-lab/internal/station"
)

// LoadReport lists the files that did not produce a record.
type LoadReport struct {
	Files  int
	Failed map[string]error // keyed by path
}

// Load parses files in order. A file that fails to parse, or whose station ID
// was already loaded from an earlier file, is reported and skipped.
// stats may be nil.
func Load(ctx context.Context, files []string, stats *common.Stats) ([]station.Record, LoadReport, error) {
	return NewLoader(1).Load(ctx, files, stats)
}

// =============================================================================
// Loader - parallel file parsing
// =============================================================================

// Loader parses station files with a fixed number of workers. Results are
// identical to a sequential load: duplicates are resolved in file order.
type Loader struct {
	numWorkers int
}

// NewLoader creates a loader; numWorkers <= 0 uses one worker per CPU.
func NewLoader(numWorkers int) *Loader {
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	return &Loader{numWorkers: numWorkers}
}

type parsed struct {
	rec  station.Record
	size int64
	err  error
}

// Load parses files and resolves duplicates in file order.
func (l *Loader) Load(ctx context.Context, files []string, stats *common.Stats) ([]station.Record, LoadReport, error) {
	results := make([]parsed, len(files))

	// For few files, parse sequentially (avoid goroutine overhead)
	if len(files) < 2*l.numWorkers || l.numWorkers <= 1 {
		l.parseChunk(ctx, files, results, 0, len(files))
	} else {
		l.parseParallel(ctx, files, results)
	}
	if err := ctx.Err(); err != nil {
		return nil, LoadReport{Files: len(files), Failed: map[string]error{}}, err
	}

	report := LoadReport{Files: len(files), Failed: make(map[string]error)}
	records := make([]station.Record, 0, len(files))
	seen := make(map[string]string, len(files))

	for i, path := range files {
		r := results[i]
		if stats != nil && r.size > 0 {
			stats.AddFile(uint64(r.size))
		}
		if r.err != nil {
			report.Failed[path] = r.err
			log.Warnw("failed to load station file", "path", path, "error", r.err)
			continue
		}

		id := r.rec.Station.ID
		if first, dup := seen[id]; dup {
			report.Failed[path] = fmt.Errorf("duplicate station %s (already loaded from %s)", id, first)
			log.Warnw("duplicate station", "station", id, "path", path, "first", first)
			continue
		}
		seen[id] = path
		records = append(records, r.rec)
		if stats != nil {
			stats.AddLoaded(1)
		}
	}
	return records, report, nil
}

// parseParallel splits files into one contiguous chunk per worker.
func (l *Loader) parseParallel(ctx context.Context, files []string, results []parsed) {
	chunkSize := (len(files) + l.numWorkers - 1) / l.numWorkers

	var wg sync.WaitGroup
	for workerID := 0; workerID < l.numWorkers; workerID++ {
		start := workerID * chunkSize
		end := start + chunkSize
		if end > len(files) {
			end = len(files)
		}
		if start >= len(files) {
			break
		}

		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			l.parseChunk(ctx, files, results, start, end)
		}(start, end)
	}
	wg.Wait()
}

// parseChunk parses files[start:end] into the matching result slots.
func (l *Loader) parseChunk(ctx context.Context, files []string, results []parsed, start, end int) {
	for i := start; i < end; i++ {
		if ctx.Err() != nil {
			return
		}
		rec, size, err := ReadFile(files[i])
		results[i] = parsed{rec: rec, size: size, err: err}
	}
}
