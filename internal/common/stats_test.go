package common

import (
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/KI7MT/ismn-s1-lab/internal/log"
)

func init() {
	log.UseLogger(zap.NewNop())
}

func TestStatsCounters(t *testing.T) {
	s := NewStats(time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.AddFile(100)
			s.AddLoaded(1)
			s.AddAligned(1)
			s.AddMatched(3)
		}()
	}
	wg.Wait()
	s.AddFailed(2)

	if s.Files() != 8 || s.Bytes() != 800 {
		t.Errorf("files=%d bytes=%d, want 8 and 800", s.Files(), s.Bytes())
	}
	if s.Loaded() != 8 || s.Aligned() != 8 || s.Failed() != 2 || s.Matched() != 24 {
		t.Errorf("loaded=%d aligned=%d failed=%d matched=%d", s.Loaded(), s.Aligned(), s.Failed(), s.Matched())
	}
}

func TestStatsReporterStartStop(t *testing.T) {
	s := NewStats(time.Millisecond)
	s.StartReporter()
	s.StartReporter()
	time.Sleep(5 * time.Millisecond)
	s.StopReporter()
	s.StopReporter()
	s.Summary()
}
