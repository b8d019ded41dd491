package logger

import (
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// root logger
var log atomic.Pointer[Logger]

// ValidLogLevels lists the level names accepted by NewLogger and SetLevel.
var ValidLogLevels = map[string]struct{}{
	"debug": {},
	"info":  {},
	"warn":  {},
	"error": {},
}

// LoggingConfig is the subset of the logging configuration needed to build component loggers.
type LoggingConfig interface {
	GetComponentLevel(component string) string
	GetDefaultLevel() string
	IsDevelopment() bool
}

// Logger wraps zap.SugaredLogger. Loggers derived through WithComponent share
// the parent's atomic level, so SetLevel on any of them affects the whole tree.
type Logger struct {
	*zap.SugaredLogger

	atomicLevel zap.AtomicLevel
	component   string
}

// NewLogger creates a new logger.
// level can be "debug", "info", "warn", "error".
// development mode uses the console encoder with colored levels.
func NewLogger(level string, development bool) (*Logger, error) {
	var config zap.Config

	if development {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		config = zap.NewProductionConfig()
	}

	zapLevel, err := parseLevel(level)
	if err != nil {
		return nil, err
	}
	atomicLevel := zap.NewAtomicLevelAt(zapLevel)
	config.Level = atomicLevel

	zapLogger, err := config.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{SugaredLogger: zapLogger.Sugar(), atomicLevel: atomicLevel}, nil
}

// NewComponentLogger creates a logger tagged with a component name.
// It panics on an invalid level; it is meant for process startup.
func NewComponentLogger(component, level string, development bool) *Logger {
	l, err := NewLogger(level, development)
	if err != nil {
		panic(fmt.Sprintf("failed to create logger for %s: %v", component, err))
	}

	return l.WithComponent(component)
}

// NewComponentLoggerFromConfig builds a component logger using the per-component
// level override from cfg. A nil cfg yields an info level production logger.
func NewComponentLoggerFromConfig(component string, cfg LoggingConfig) *Logger {
	if cfg == nil {
		return NewComponentLogger(component, "info", false)
	}

	return NewComponentLogger(component, cfg.GetComponentLevel(component), cfg.IsDevelopment())
}

// NewNopLogger creates a no-op logger that discards all logs.
// Useful for testing.
func NewNopLogger() *Logger {
	return &Logger{
		SugaredLogger: zap.NewNop().Sugar(),
		atomicLevel:   zap.NewAtomicLevelAt(zapcore.InfoLevel),
	}
}

// WithComponent creates a child logger with a component name field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		SugaredLogger: l.With("component", component),
		atomicLevel:   l.atomicLevel,
		component:     component,
	}
}

// GetComponent returns the component name, empty for the root logger.
func (l *Logger) GetComponent() string {
	return l.component
}

// GetLevel returns the current level name.
func (l *Logger) GetLevel() string {
	return l.atomicLevel.Level().String()
}

// SetLevel changes the level of this logger and every logger sharing its level.
func (l *Logger) SetLevel(level string) error {
	zapLevel, err := parseLevel(level)
	if err != nil {
		return err
	}

	l.atomicLevel.SetLevel(zapLevel)

	return nil
}

// Close flushes any buffered log entries.
func (l *Logger) Close() error {
	return l.Sync()
}

func GetDefaultLogger() *Logger {
	l := log.Load()
	if l != nil {
		return l
	}
	// default level: debug
	zapLogger, err := NewLogger("debug", true)
	if err != nil {
		panic(err)
	}
	log.Store(zapLogger)
	return log.Load()
}

func parseLevel(level string) (zapcore.Level, error) {
	if _, ok := ValidLogLevels[level]; !ok {
		return zapcore.InfoLevel, fmt.Errorf("invalid log level %q", level)
	}

	return zapcore.ParseLevel(level)
}
