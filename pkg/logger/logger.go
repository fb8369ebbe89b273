// ==============================================================================
// LOGGER PACKAGE - pkg/logger/logger.go
// ==============================================================================
package logger

import (
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type Logger interface {
	Info(message string, fields map[string]interface{})
	Error(message string, fields map[string]interface{})
	Warn(message string, fields map[string]interface{})
	Debug(message string, fields map[string]interface{})
	Fatal(message string, fields map[string]interface{})
}

type jsonLogger struct {
	logger *zap.Logger
}

// New returns a JSON logger writing to stdout, tagged with the service name.
func New(serviceName string) Logger {
	return NewWithLevel(serviceName, "info")
}

// NewWithLevel is New with an explicit minimum level (debug, info, warn, error).
func NewWithLevel(serviceName, level string) Logger {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.TimeKey = "timestamp"
	encoderCfg.MessageKey = "message"
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.LowercaseLevelEncoder

	lvl := zapcore.InfoLevel
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		lvl = zapcore.InfoLevel
	}

	core := zapcore.NewCore(zapcore.NewJSONEncoder(encoderCfg), zapcore.AddSync(os.Stdout), lvl)

	return &jsonLogger{
		logger: zap.New(core).With(zap.String("service", serviceName)),
	}
}

// FromZap adapts an existing zap logger.
func FromZap(l *zap.Logger) Logger {
	return &jsonLogger{logger: l}
}

func toFields(fields map[string]interface{}) []zap.Field {
	if len(fields) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(fields))
	for k, v := range fields {
		out = append(out, zap.Any(k, v))
	}
	return out
}

func (l *jsonLogger) Info(message string, fields map[string]interface{}) {
	l.logger.Info(message, toFields(fields)...)
}

func (l *jsonLogger) Error(message string, fields map[string]interface{}) {
	l.logger.Error(message, toFields(fields)...)
}

func (l *jsonLogger) Warn(message string, fields map[string]interface{}) {
	l.logger.Warn(message, toFields(fields)...)
}

func (l *jsonLogger) Debug(message string, fields map[string]interface{}) {
	l.logger.Debug(message, toFields(fields)...)
}

// Fatal logs and exits the process.
func (l *jsonLogger) Fatal(message string, fields map[string]interface{}) {
	l.logger.Fatal(message, toFields(fields)...)
}

func NewNop() Logger {
	return &nopLogger{}
}

type nopLogger struct{}

func (l *nopLogger) Info(message string, fields map[string]interface{})  {}
func (l *nopLogger) Error(message string, fields map[string]interface{}) {}
func (l *nopLogger) Warn(message string, fields map[string]interface{})  {}
func (l *nopLogger) Debug(message string, fields map[string]interface{}) {}
func (l *nopLogger) Fatal(message string, fields map[string]interface{}) {}
