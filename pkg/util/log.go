package util

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps a textual level onto zap, defaulting to info
func ParseLevel(level string) zapcore.Level {
	var lvl zapcore.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}

func encoderConfig() zapcore.EncoderConfig {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "ts"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	cfg.EncodeLevel = zapcore.CapitalLevelEncoder
	return cfg
}

// rotatingFile opens a size-rotated log sink, creating its directory
func rotatingFile(logPath string) (zapcore.WriteSyncer, error) {
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, err
	}
	return zapcore.AddSync(&lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    50, // megabytes
		MaxBackups: 5,
		MaxAge:     28, // days
		Compress:   true,
	}), nil
}

func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(ParseLevel(level))
	cfg.EncoderConfig = encoderConfig()
	return cfg.Build()
}

// NewLoggerWithFile creates a logger that writes to both stdout and a
// rotated file. An empty path falls back to NewLogger.
func NewLoggerWithFile(logPath, level string) (*zap.Logger, error) {
	if logPath == "" {
		return NewLogger(level)
	}
	file, err := rotatingFile(logPath)
	if err != nil {
		return nil, err
	}

	lvl := ParseLevel(level)
	enc := zapcore.NewJSONEncoder(encoderConfig())
	core := zapcore.NewTee(
		zapcore.NewCore(enc, zapcore.AddSync(os.Stdout), lvl),
		zapcore.NewCore(enc.Clone(), file, lvl),
	)
	return zap.New(core), nil
}

// NewQuietLogger keeps stdout clean for interactive and one-shot commands:
// it writes only to the rotated file, or nowhere when logPath is empty.
func NewQuietLogger(logPath, level string) (*zap.Logger, error) {
	if logPath == "" {
		return zap.NewNop(), nil
	}
	file, err := rotatingFile(logPath)
	if err != nil {
		return nil, err
	}
	return zap.New(zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig()), file, ParseLevel(level))), nil
}
