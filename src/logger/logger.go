package logger

import (
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// -----------------------------------------------------------------------------

var (
	baseOnce   sync.Once
	baseLogger *zap.Logger
	baseLevel  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
)

// levelSource is satisfied by the application config.
type levelSource interface {
	GetLogLevel() string
}

// -----------------------------------------------------------------------------

// Logger provides structured logging functionality
type Logger struct {
	name   string
	sugar  *zap.SugaredLogger
	config interface{}
}

// -----------------------------------------------------------------------------

// NewLogger creates a new Logger instance named after its component.
// A config exposing GetLogLevel sets the process-wide level.
func NewLogger(config interface{}, name string) *Logger {
	if src, ok := config.(levelSource); ok {
		SetLevel(src.GetLogLevel())
	}

	return &Logger{
		name:   name,
		sugar:  base().Named(name).Sugar(),
		config: config,
	}
}

// -----------------------------------------------------------------------------

// SetLevel changes the level of every logger ("DEBUG", "INFO", "WARNING", "ERROR").
func SetLevel(level string) {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG", "TRACE":
		baseLevel.SetLevel(zapcore.DebugLevel)
	case "WARNING", "WARN":
		baseLevel.SetLevel(zapcore.WarnLevel)
	case "ERROR":
		baseLevel.SetLevel(zapcore.ErrorLevel)
	case "INFO":
		baseLevel.SetLevel(zapcore.InfoLevel)
	}
}

// -----------------------------------------------------------------------------

func base() *zap.Logger {
	baseOnce.Do(func() {
		encCfg := zap.NewProductionEncoderConfig()
		encCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encCfg.EncodeLevel = zapcore.CapitalLevelEncoder
		encCfg.ConsoleSeparator = " "

		core := zapcore.NewCore(
			zapcore.NewConsoleEncoder(encCfg),
			zapcore.Lock(os.Stdout),
			baseLevel,
		)
		baseLogger = zap.New(core)
	})
	return baseLogger
}

// -----------------------------------------------------------------------------

// Debug logs diagnostic messages
func (l *Logger) Debug(format string, args ...interface{}) {
	l.sugar.Debugf(format, args...)
}

// -----------------------------------------------------------------------------

// Warning logs recoverable problems
func (l *Logger) Warning(format string, args ...interface{}) {
	l.sugar.Warnf(format, args...)
}

// -----------------------------------------------------------------------------

// Info logs informational messages
func (l *Logger) Info(format string, args ...interface{}) {
	l.sugar.Infof(format, args...)
}

// -----------------------------------------------------------------------------

// Error logs error messages
func (l *Logger) Error(format string, args ...interface{}) {
	l.sugar.Errorf(format, args...)
}

// -----------------------------------------------------------------------------

// Critical logs critical errors and exits the application
func (l *Logger) Critical(format string, args ...interface{}) {
	l.sugar.Fatalf(format, args...)
}

// -----------------------------------------------------------------------------

// Name returns the component name
func (l *Logger) Name() string {
	return l.name
}

// -----------------------------------------------------------------------------

// Sync flushes buffered entries
func (l *Logger) Sync() error {
	return l.sugar.Sync()
}
