package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestBuildWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "bot.log")
	l, err := Build(Options{Level: "debug", Format: "json", ToFile: true, File: path})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	l.Info("hello_file", zap.String("k", "v"))
	_ = l.Sync()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"hello_file"`) || !strings.Contains(string(raw), `"k":"v"`) {
		t.Fatalf("unexpected log content: %s", raw)
	}
}

func TestReplaceRestores(t *testing.T) {
	before := L()
	restore := Replace(zap.NewExample())
	if L() == before {
		t.Fatalf("expected logger to be swapped")
	}
	restore()
	if L() != before {
		t.Fatalf("expected logger to be restored")
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("warning") != zapcore.WarnLevel {
		t.Fatalf("warning alias not recognised")
	}
	if parseLevel("DEBUG") != zapcore.DebugLevel {
		t.Fatalf("debug not recognised")
	}
	if parseLevel("bogus") != zapcore.InfoLevel {
		t.Fatalf("unknown level should default to info")
	}
}
