package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/plantqc/historian-bridge/server/internal/config"
)

func TestNew_StdoutOnly(t *testing.T) {
	var buf bytes.Buffer
	logger, closer := newLogger(&buf, config.LogConfig{}, slog.LevelInfo)
	defer closer.Close()

	logger.Info("historian: connected", "driver", "pgx")
	logger.Debug("hidden")

	var rec map[string]any
	if err := json.Unmarshal(buf.Bytes(), &rec); err != nil {
		t.Fatalf("unmarshal %q: %v", buf.String(), err)
	}
	if rec["msg"] != "historian: connected" || rec["driver"] != "pgx" {
		t.Errorf("record: %v", rec)
	}
	if strings.Contains(buf.String(), "hidden") {
		t.Error("debug record written at info level")
	}
}

func TestNew_MirrorsToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	var buf bytes.Buffer
	logger, closer := newLogger(&buf, config.LogConfig{File: path, MaxSizeMB: 1, MaxBackups: 1}, slog.LevelInfo)

	logger.Warn("historian: connection unavailable, serving synthetic data")
	if err := closer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !bytes.Equal(data, buf.Bytes()) {
		t.Errorf("file and stdout differ:\nfile:   %s\nstdout: %s", data, buf.Bytes())
	}
}

func TestNew_LevelVarChangesFilter(t *testing.T) {
	var buf bytes.Buffer
	level := new(slog.LevelVar)
	level.Set(slog.LevelWarn)
	logger, _ := newLogger(&buf, config.LogConfig{}, level)

	logger.Info("dropped")
	level.Set(slog.LevelDebug)
	logger.Debug("kept")

	if strings.Contains(buf.String(), "dropped") || !strings.Contains(buf.String(), "kept") {
		t.Errorf("output: %s", buf.String())
	}
}
