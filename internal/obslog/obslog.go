package obslog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 게임 루프마다 고루틴이 있으므로 전역 로거는 atomic 으로 교체한다.
var global atomic.Pointer[zap.Logger]

func init() { global.Store(zap.NewNop()) }

// L returns the process logger; Nop until InitFromEnv or Set.
func L() *zap.Logger { return global.Load() }

// Set replaces the process logger. nil restores Nop.
func Set(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	global.Store(l)
}

// Options mirrors the LOG_* environment.
type Options struct {
	Level       zapcore.Level
	Format      string // legacy | json | console
	Console     bool
	File        string // empty disables the file sink
	Caller      bool
	Development bool
}

const defaultLogFile = "logs/sushi-bot.log"

func OptionsFromEnv() Options {
	o := Options{
		Level:       parseLevel(os.Getenv("LOG_LEVEL")),
		Format:      strings.ToLower(strings.TrimSpace(os.Getenv("LOG_FORMAT"))),
		Console:     envBool("LOG_TO_CONSOLE", true),
		Caller:      envBool("LOG_CALLER", false),
		Development: envBool("LOG_DEVELOPMENT", false),
	}
	switch o.Format {
	case "json", "console":
	default:
		o.Format = "legacy"
	}
	if envBool("LOG_TO_FILE", false) {
		o.File = strings.TrimSpace(os.Getenv("LOG_FILE"))
		if o.File == "" {
			o.File = defaultLogFile
		}
	}
	return o
}

// Build tees the console and file sinks described by o.
func Build(o Options) (*zap.Logger, error) {
	enc := encoder(o.Format)
	var cores []zapcore.Core
	if o.Console {
		cores = append(cores, zapcore.NewCore(enc, zapcore.Lock(os.Stdout), o.Level))
	}
	if o.File != "" {
		if dir := filepath.Dir(o.File); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("log dir: %w", err)
			}
		}
		f, err := os.OpenFile(o.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(enc.Clone(), zapcore.AddSync(f), o.Level))
	}
	if len(cores) == 0 {
		// 출력이 모두 꺼져 있으면 stderr 로라도 남긴다
		cores = append(cores, zapcore.NewCore(encoder("console"), zapcore.Lock(os.Stderr), zapcore.WarnLevel))
	}

	opts := []zap.Option{zap.AddStacktrace(zapcore.ErrorLevel)}
	if o.Caller || o.Format == "legacy" {
		opts = append(opts, zap.AddCaller())
	}
	if o.Development {
		opts = append(opts, zap.Development())
	}
	return zap.New(zapcore.NewTee(cores...), opts...), nil
}

// InitFromEnv builds the process logger from LOG_* variables.
func InitFromEnv() error {
	l, err := Build(OptionsFromEnv())
	if err != nil {
		return err
	}
	Set(l)
	return nil
}

func encoder(format string) zapcore.Encoder {
	cfg := zap.NewProductionEncoderConfig()
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	switch format {
	case "json":
		cfg.EncodeLevel = zapcore.LowercaseLevelEncoder
		return zapcore.NewJSONEncoder(cfg)
	case "console":
		return zapcore.NewConsoleEncoder(cfg)
	default:
		cfg.EncodeTime = zapcore.TimeEncoderOfLayout("2006-01-02 15:04:05")
		cfg.ConsoleSeparator = " | "
		return zapcore.NewConsoleEncoder(cfg)
	}
}

func parseLevel(s string) zapcore.Level {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "warning" {
		s = "warn"
	}
	lvl, err := zapcore.ParseLevel(s)
	if err != nil || lvl > zapcore.DPanicLevel {
		return zapcore.InfoLevel
	}
	return lvl
}

func envBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	return strings.EqualFold(v, "true") || v == "1"
}
