package log

import (
	"testing"

	"go.uber.org/zap"
)

func TestInitLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		if err := Init(lvl); err != nil {
			t.Errorf("Init(%q): %v", lvl, err)
		}
	}
	if err := Init("loud"); err == nil {
		t.Error("expected error for unknown level")
	}
	UseLogger(zap.NewNop())
	Infow("quiet", "k", "v")
}

func TestGetSugaredLoggerFallback(t *testing.T) {
	log = nil
	if GetSugaredLogger() == nil {
		t.Fatal("fallback logger not built")
	}
	UseLogger(zap.NewNop())
	if GetSugaredLogger() == nil {
		t.Error("UseLogger left no logger")
	}
}
