//nolint:gochecknoglobals
package logx

import (
	"context"
	"log"
	"strings"
)

type ServiceContext struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
}

// Logger - logger interface.
type Logger interface {
	// LogInfo logs a message at Info level.
	LogInfo(ctx context.Context, msg string)
	// LogDebug logs a message at Debug level.
	LogDebug(ctx context.Context, msg string)
	// LogWarning logs a message at Warning level.
	LogWarning(ctx context.Context, msg string, errs ...error)
	// LogError logs a message at Error level.
	LogError(ctx context.Context, msg string, errs ...error)
	// LogPanic logs a message at Panic level then panics.
	LogPanic(ctx context.Context, msg string, errs ...error)
	// LogFatal logs a message at Fatal Level.
	// The logger then calls os.Exit(1), even if logging at FatalLevel is
	// disabled.
	LogFatal(ctx context.Context, msg string, errs ...error)
	// With returns a child logger that adds the given field to every entry.
	With(key string, value any) Logger

	GetLogger() interface{}
}

var logger Logger

// DefaultLogger - Logger implementation backed by the standard log package,
// used until SetupLogger or SetLogger is called.
type DefaultLogger struct {
	prefix string
}

// GetLogger - returns an instance of the Logger.
// If called before SetupLogger a default logger will be returned.
func GetLogger() Logger {
	if logger == nil {
		return &DefaultLogger{}
	}

	return logger
}

// SetLogger - replace the global logger.
func SetLogger(l Logger) {
	logger = l
}

func (nl *DefaultLogger) print(level, msg string, errs []error) {
	var sb strings.Builder
	sb.WriteString(level)
	sb.WriteString(" ")
	sb.WriteString(nl.prefix)
	sb.WriteString(msg)

	for _, err := range errs {
		if err != nil {
			sb.WriteString(" error=")
			sb.WriteString(err.Error())
		}
	}

	log.Println(sb.String())
}

// LogInfo logs through the standard logger.
func (nl *DefaultLogger) LogInfo(ctx context.Context, msg string) {
	nl.print("INFO", msg, nil)
}

// LogDebug logs through the standard logger.
func (nl *DefaultLogger) LogDebug(ctx context.Context, msg string) {
	nl.print("DEBUG", msg, nil)
}

// LogWarning logs through the standard logger.
func (nl *DefaultLogger) LogWarning(ctx context.Context, msg string, errs ...error) {
	nl.print("WARN", msg, errs)
}

// LogError logs through the standard logger.
func (nl *DefaultLogger) LogError(ctx context.Context, msg string, errs ...error) {
	nl.print("ERROR", msg, errs)
}

// LogPanic logs through the standard logger then panics.
func (nl *DefaultLogger) LogPanic(ctx context.Context, msg string, errs ...error) {
	log.Panicln("PANIC " + nl.prefix + msg)
}

// LogFatal logs through the standard logger then exits.
func (nl *DefaultLogger) LogFatal(ctx context.Context, msg string, errs ...error) {
	log.Fatalln("FATAL " + nl.prefix + msg)
}

// With prefixes every message with key=value.
func (nl *DefaultLogger) With(key string, value any) Logger {
	return &DefaultLogger{prefix: nl.prefix + key + "=" + toString(value) + " "}
}

// GetLogger noop.
func (nl *DefaultLogger) GetLogger() interface{} { return nil }
