package common

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/KI7MT/ismn-s1-lab/internal/log"
)

// Stats holds atomic counters for pipeline progress.
type Stats struct {
	FilesRead       uint64 // Station files opened
	BytesRead       uint64 // Bytes of input files read
	StationsLoaded  uint64 // Stations with a parsed ground series
	StationsAligned uint64 // Stations whose orbits were aligned
	StationsFailed  uint64 // Stations dropped by a load, import or align error
	RecordsMatched  uint64 // Matched records across all stations and orbits

	// Internal state for reporter
	running     atomic.Bool
	stopCh      chan struct{}
	stopOnce    sync.Once
	interval    time.Duration
	silent      bool
	lastAligned uint64
	lastTime    time.Time
	startTime   time.Time
}

// NewStats creates a new Stats instance reporting every interval.
func NewStats(interval time.Duration) *Stats {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Stats{
		stopCh:    make(chan struct{}),
		interval:  interval,
		startTime: time.Now(),
	}
}

func (s *Stats) AddFile(bytes uint64) {
	atomic.AddUint64(&s.FilesRead, 1)
	atomic.AddUint64(&s.BytesRead, bytes)
}

func (s *Stats) AddLoaded(n uint64) { atomic.AddUint64(&s.StationsLoaded, n) }
func (s *Stats) AddAligned(n uint64) { atomic.AddUint64(&s.StationsAligned, n) }
func (s *Stats) AddFailed(n uint64) { atomic.AddUint64(&s.StationsFailed, n) }
func (s *Stats) AddMatched(n uint64) { atomic.AddUint64(&s.RecordsMatched, n) }
func (s *Stats) Files() uint64 { return atomic.LoadUint64(&s.FilesRead) }
func (s *Stats) Bytes() uint64 { return atomic.LoadUint64(&s.BytesRead) }
func (s *Stats) Loaded() uint64 { return atomic.LoadUint64(&s.StationsLoaded) }
func (s *Stats) Aligned() uint64 { return atomic.LoadUint64(&s.StationsAligned) }
func (s *Stats) Failed() uint64 { return atomic.LoadUint64(&s.StationsFailed) }
func (s *Stats) Matched() uint64 { return atomic.LoadUint64(&s.RecordsMatched) }
func (s *Stats) Elapsed() time.Duration { return time.Since(s.startTime) }
func (s *Stats) SetSilent(silent bool) { s.silent = silent }

// StartReporter starts a background goroutine logging progress every interval.
func (s *Stats) StartReporter() {
	if s.running.Swap(true) {
		return // Already running
	}
	s.lastTime = time.Now()
	s.lastAligned = s.Aligned()

	go s.reporterLoop()
}

// StopReporter stops the background reporter goroutine.
func (s *Stats) StopReporter() {
	if !s.running.Load() {
		return
	}
	s.stopOnce.Do(func() { close(s.stopCh) })
}

func (s *Stats) reporterLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.running.Store(false)

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.printStatus()
		}
	}
}

func (s *Stats) printStatus() {
	if s.silent {
		return
	}

	now := time.Now()
	elapsed := now.Sub(s.lastTime).Seconds()
	if elapsed < 0.001 {
		return
	}

	aligned := s.Aligned()
	rate := float64(aligned-s.lastAligned) / elapsed

	log.Infof("[Progress] Files: %s (%s) | Stations: %s loaded, %s aligned (%.1f/s), %s failed | Matched: %s",
		humanize.Comma(int64(s.Files())),
		humanize.Bytes(s.Bytes()),
		humanize.Comma(int64(s.Loaded())),
		humanize.Comma(int64(aligned)),
		rate,
		humanize.Comma(int64(s.Failed())),
		humanize.Comma(int64(s.Matched())),
	)

	s.lastAligned = aligned
	s.lastTime = now
}

// Summary logs the final statistics block.
func (s *Stats) Summary() {
	log.Infof("Files Read:       %s (%s)", humanize.Comma(int64(s.Files())), humanize.Bytes(s.Bytes()))
	log.Infof("Stations Loaded:  %s", humanize.Comma(int64(s.Loaded())))
	log.Infof("Stations Aligned: %s", humanize.Comma(int64(s.Aligned())))
	log.Infof("Stations Failed:  %s", humanize.Comma(int64(s.Failed())))
	log.Infof("Records Matched:  %s", humanize.Comma(int64(s.Matched())))
	log.Infof("Elapsed:          %s", s.Elapsed().Round(time.Millisecond))
}
