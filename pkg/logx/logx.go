// Package logx provides structured logging with env-driven, domain-filtered debug output.
package logx

import (
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

type Logger struct {
	ownerID string
	logger  *log.Logger
}

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

type debugState struct {
	Enabled bool
	Domains map[string]bool // nil = all domains
}

// Entry is a structured log entry retained in the in-memory buffer.
type Entry struct {
	Timestamp string `json:"timestamp"`
	OwnerID   string `json:"owner_id"`
	Level     string `json:"level"`
	Message   string `json:"message"`
	Domain    string `json:"domain,omitempty"`
}

// ringBuffer stores recent log entries for inspection.
type ringBuffer struct {
	mu      sync.RWMutex
	entries []Entry
	maxSize int
}

var (
	debugConfig = &debugState{}
	debugMutex  sync.RWMutex

	buffer = &ringBuffer{
		entries: make([]Entry, 0),
		maxSize: 1000,
	}
)

func init() { //nolint:gochecknoinits // Required for env var initialization
	initDebugFromEnv()
}

// initDebugFromEnv reads DEBUG and DEBUG_DOMAINS.
//
//	DEBUG=1                        # debug for all domains
//	DEBUG=1 DEBUG_DOMAINS=turn     # debug only for the turn domain
//	DEBUG=1 DEBUG_DOMAINS=turn,stage
func initDebugFromEnv() {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	if debug := os.Getenv("DEBUG"); debug == "1" || strings.EqualFold(debug, "true") {
		debugConfig.Enabled = true
	}

	if domains := os.Getenv("DEBUG_DOMAINS"); domains != "" {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range strings.Split(domains, ",") {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

func NewLogger(ownerID string) *Logger {
	return &Logger{
		ownerID: ownerID,
		logger:  log.New(os.Stderr, "", 0), // stderr keeps stdout clean for callers
	}
}

// SetDebug configures global debug logging.
func SetDebug(enabled bool, domains []string) {
	debugMutex.Lock()
	defer debugMutex.Unlock()

	debugConfig.Enabled = enabled
	if len(domains) == 0 {
		debugConfig.Domains = nil
	} else {
		debugConfig.Domains = make(map[string]bool)
		for _, domain := range domains {
			debugConfig.Domains[strings.TrimSpace(domain)] = true
		}
	}
}

// IsDebugEnabled reports whether debug logging is enabled at all.
func IsDebugEnabled() bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()
	return debugConfig.Enabled
}

// IsDebugEnabledForDomain reports whether debug logging is enabled for a domain.
func IsDebugEnabledForDomain(domain string) bool {
	debugMutex.RLock()
	defer debugMutex.RUnlock()

	if !debugConfig.Enabled {
		return false
	}
	if debugConfig.Domains == nil {
		return true
	}
	return debugConfig.Domains[domain]
}

func (b *ringBuffer) add(entry Entry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.entries = append(b.entries, entry)
	if len(b.entries) > b.maxSize {
		b.entries = b.entries[len(b.entries)-b.maxSize:]
	}
}

// RecentEntries returns buffered entries, optionally filtered by domain.
func RecentEntries(domain string) []Entry {
	buffer.mu.RLock()
	defer buffer.mu.RUnlock()

	filtered := make([]Entry, 0, len(buffer.entries))
	for i := range buffer.entries {
		entry := &buffer.entries[i]
		if domain != "" && entry.Domain != "" && !strings.EqualFold(entry.Domain, domain) {
			continue
		}
		filtered = append(filtered, *entry)
	}
	return filtered
}

func (l *Logger) log(level Level, domain, format string, args ...any) {
	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")
	message := fmt.Sprintf(format, args...)
	l.logger.Printf("[%s] [%s] %s: %s", timestamp, l.ownerID, level, message)

	buffer.add(Entry{
		Timestamp: timestamp,
		OwnerID:   l.ownerID,
		Level:     string(level),
		Message:   message,
		Domain:    domain,
	})
}

func (l *Logger) Debug(format string, args ...any) {
	if !IsDebugEnabled() {
		return
	}
	l.log(LevelDebug, "", format, args...)
}

// DebugDomain logs a debug message gated on a specific domain
// (turn, stage, tools, compactor, session).
func (l *Logger) DebugDomain(domain, format string, args ...any) {
	if !IsDebugEnabledForDomain(domain) {
		return
	}
	l.log(LevelDebug, domain, "[%s] %s", domain, fmt.Sprintf(format, args...))
}

func (l *Logger) Info(format string, args ...any) {
	l.log(LevelInfo, "", format, args...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.log(LevelWarn, "", format, args...)
}

func (l *Logger) Error(format string, args ...any) {
	l.log(LevelError, "", format, args...)
}

func (l *Logger) OwnerID() string {
	return l.ownerID
}

func (l *Logger) WithOwnerID(ownerID string) *Logger {
	return &Logger{
		ownerID: ownerID,
		logger:  l.logger,
	}
}

// Package-level logging functions for convenience.
var defaultLogger = NewLogger("system")

func Debugf(format string, args ...any) {
	defaultLogger.Debug(format, args...)
}

func Infof(format string, args ...any) {
	defaultLogger.Info(format, args...)
}

func Warnf(format string, args ...any) {
	defaultLogger.Warn(format, args...)
}

// Errorf logs and returns the formatted error.
// Use this when you need both logging and error returning:
//
//	err := logx.Errorf("session load failed: %w", err).
func Errorf(format string, args ...any) error {
	err := fmt.Errorf(format, args...)
	defaultLogger.Error("%s", err.Error())
	return err
}

// Wrap logs msg + ": " + err.Error() and returns fmt.Errorf("%s: %w", msg, err).
func Wrap(err error, msg string) error {
	if err == nil {
		return nil
	}
	wrappedErr := fmt.Errorf("%s: %w", msg, err)
	defaultLogger.Error("%s", wrappedErr.Error())
	return wrappedErr
}
