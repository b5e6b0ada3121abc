//nolint:gochecknoglobals
package logx

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
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

	GetLogger() interface{}
}

var (
	lock   sync.RWMutex
	logger Logger
)

// GetLogger - returns an instance of the Logger.
// If called before SetupLogger (or SetLogger) the console DefaultLogger is returned.
func GetLogger() Logger {
	lock.RLock()
	defer lock.RUnlock()

	if logger == nil {
		return &DefaultLogger{}
	}

	return logger
}

// SetLogger - replace the process logger. A nil value restores the console fallback.
func SetLogger(l Logger) {
	lock.Lock()
	defer lock.Unlock()

	logger = l
}

// DefaultLogger - Logger implementation writing straight to the console through the standard log package.
type DefaultLogger struct{}

// LogInfo prints at INFO.
func (nl *DefaultLogger) LogInfo(ctx context.Context, msg string) {
	log.Println("INFO " + msg)
}

// LogDebug prints at DEBUG.
func (nl *DefaultLogger) LogDebug(ctx context.Context, msg string) {
	log.Println("DEBUG " + msg)
}

// LogWarning prints at WARN.
func (nl *DefaultLogger) LogWarning(ctx context.Context, msg string, errs ...error) {
	log.Println("WARN " + msg + formatErrors(errs))
}

// LogError prints at ERROR.
func (nl *DefaultLogger) LogError(ctx context.Context, msg string, errs ...error) {
	log.Println("ERROR " + msg + formatErrors(errs))
}

// LogPanic prints at PANIC then panics.
func (nl *DefaultLogger) LogPanic(ctx context.Context, msg string, errs ...error) {
	log.Panicln("PANIC " + msg + formatErrors(errs))
}

// LogFatal prints at FATAL then exits.
func (nl *DefaultLogger) LogFatal(ctx context.Context, msg string, errs ...error) {
	log.Fatalln("FATAL " + msg + formatErrors(errs))
}

// GetLogger noop.
func (nl *DefaultLogger) GetLogger() interface{} { return nil }

func formatErrors(errs []error) string {
	var sb strings.Builder

	for _, err := range errs {
		if err == nil {
			continue
		}

		sb.WriteString(fmt.Sprintf(" | error: %v", err))
	}

	return sb.String()
}
