package obslog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug":   zapcore.DebugLevel,
		" WARN ":  zapcore.WarnLevel,
		"warning": zapcore.WarnLevel,
		"error":   zapcore.ErrorLevel,
		"dpanic":  zapcore.DPanicLevel,
		"bogus":   zapcore.InfoLevel,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%v want %v", in, got, want)
		}
	}
}

func TestSetNilRestoresNop(t *testing.T) {
	Set(zap.NewExample())
	Set(nil)
	if L() == nil {
		t.Fatalf("expected non-nil logger")
	}
	if L().Core().Enabled(zapcore.ErrorLevel) {
		t.Fatalf("expected nop logger after Set(nil)")
	}
}

func TestInitFromEnvConsoleOnly(t *testing.T) {
	t.Setenv("LOG_TO_CONSOLE", "true")
	t.Setenv("LOG_TO_FILE", "false")
	t.Setenv("LOG_FORMAT", "json")
	t.Setenv("LOG_LEVEL", "warn")
	defer Set(nil)
	if err := InitFromEnv(); err != nil {
		t.Fatalf("InitFromEnv: %v", err)
	}
	if L().Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info should be disabled at warn level")
	}
	if !L().Core().Enabled(zapcore.WarnLevel) {
		t.Fatalf("warn should be enabled")
	}
}

func TestBuildWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "sushi.log")
	l, err := Build(Options{Level: zapcore.InfoLevel, Format: "json", File: path})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	l.Info("sushi_game_over", zap.Int("score", 3))
	_ = l.Sync()
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(raw), `"msg":"sushi_game_over"`) || !strings.Contains(string(raw), `"score":3`) {
		t.Fatalf("log line=%s", raw)
	}
}

func TestOptionsFromEnvDefaults(t *testing.T) {
	t.Setenv("LOG_FORMAT", "xml")
	t.Setenv("LOG_TO_FILE", "1")
	t.Setenv("LOG_FILE", "")
	o := OptionsFromEnv()
	if o.Format != "legacy" || o.File != defaultLogFile || !o.Console {
		t.Fatalf("options=%+v", o)
	}
}
