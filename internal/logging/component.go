package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"sync"
	"time"
)

// Level represents the severity of a log message.
type Level int

const (
	DebugLevel Level = iota
	InfoLevel
	WarnLevel
	ErrorLevel
)

var (
	defaultInstance *fileLogger
	defaultOnce     sync.Once
)

// fileLogger writes level-filtered lines to guardrail-debug.log and stderr.
type fileLogger struct {
	out       *log.Logger
	level     Level
	mu        sync.Mutex
	component string
}

func defaultLogger() *fileLogger {
	defaultOnce.Do(func() {
		defaultInstance = newFileLogger("", resolveLevel())
	})
	return defaultInstance
}

func resolveLevel() Level {
	switch os.Getenv("GUARDRAIL_LOG_LEVEL") {
	case "debug":
		return DebugLevel
	case "warn":
		return WarnLevel
	case "error":
		return ErrorLevel
	default:
		return InfoLevel
	}
}

// NewComponentLogger returns the default application logger scoped to a component.
func NewComponentLogger(component string) Logger {
	base := defaultLogger()
	return &fileLogger{
		out:       base.out,
		level:     base.level,
		component: component,
	}
}

func newFileLogger(component string, level Level) *fileLogger {
	l := &fileLogger{
		level:     level,
		component: component,
	}

	dir := os.Getenv("GUARDRAIL_LOG_DIR")
	if dir == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			log.Printf("failed to resolve home directory for log file: %v", err)
			return l
		}
		dir = home
	}

	logPath := filepath.Join(dir, "guardrail-debug.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		log.Printf("failed to open log file %s: %v", logPath, err)
		return l
	}

	l.out = log.New(file, "", 0)
	return l
}

func (l *fileLogger) log(level Level, format string, args ...any) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	// Format: 2026-08-30 12:34:56 [INFO] [jobs.runner] runner.go:123 - Message
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	component := l.component
	if component == "" {
		component = "guardrail"
	}

	message := fmt.Sprintf(format, args...)
	logLine := fmt.Sprintf("%s [%s] [%s] %s:%d - %s\n",
		timestamp, levelString(level), component, file, line, message)

	sanitized := sanitizeLogLine(logLine)

	if l.out != nil {
		l.out.Print(sanitized)
	}
	fmt.Fprint(os.Stderr, sanitized)
}

func (l *fileLogger) Debug(format string, args ...any) { l.log(DebugLevel, format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.log(InfoLevel, format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.log(WarnLevel, format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.log(ErrorLevel, format, args...) }

func levelString(level Level) string {
	switch level {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarnLevel:
		return "WARN"
	case ErrorLevel:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

const redactionPlaceholder = "[REDACTED]"

var (
	bearerTokenPattern = regexp.MustCompile(`(?i)(bearer\s+)([A-Za-z0-9\-\._~+/]+=*)`)
	apiKeyPattern      = regexp.MustCompile(
		`(?i)((?:api[_-]?key|token|secret|password)["']?\s*[:=]\s*)["']?[^"'\s,;]+["']?`,
	)
	standaloneSecretPattern = regexp.MustCompile(`(?i)sk-[A-Za-z0-9\-_]{16,}`)
)

// sanitizeLogLine strips API credentials before a line reaches disk or stderr.
func sanitizeLogLine(line string) string {
	sanitized := bearerTokenPattern.ReplaceAllString(line, "${1}"+redactionPlaceholder)
	sanitized = apiKeyPattern.ReplaceAllString(sanitized, "${1}"+redactionPlaceholder)
	sanitized = standaloneSecretPattern.ReplaceAllString(sanitized, redactionPlaceholder)
	return sanitized
}
