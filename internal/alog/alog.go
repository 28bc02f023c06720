// Package alog is the engine's leveled logger: anomaly severities match the
// taxonomy in the loop engine specification, with one-time suppression so a
// per-block anomaly doesn't flood the log.
package alog

import (
	"log"
	"sync"
)

// Severity mirrors the taxonomy: 1 is a contract violation or sync anomaly,
// 2 is a transient structural warning, 3 is informational.
type Severity int

const (
	SevViolation Severity = 1
	SevWarning   Severity = 2
	SevInfo      Severity = 3
)

// Logger wraps the standard logger with per-key suppression so a repeating
// anomaly (e.g. the same bad frame range every block) logs once.
type Logger struct {
	prefix string
	mu     sync.Mutex
	seen   map[string]bool
}

func New(prefix string) *Logger {
	return &Logger{prefix: prefix, seen: make(map[string]bool)}
}

// Logf logs unconditionally at the given severity.
func (l *Logger) Logf(sev Severity, format string, args ...any) {
	log.Printf("[%s:%d] "+format, append([]any{l.prefix, sev}, args...)...)
}

// Once logs only the first time this exact key is seen; later calls with the
// same key are dropped silently. Used for anomalies that would otherwise
// repeat every audio block.
func (l *Logger) Once(sev Severity, key string, format string, args ...any) {
	l.mu.Lock()
	if l.seen[key] {
		l.mu.Unlock()
		return
	}
	l.seen[key] = true
	l.mu.Unlock()
	l.Logf(sev, format, args...)
}

// Reset clears suppression state, e.g. after a track reset so future
// anomalies on reused indices log again.
func (l *Logger) Reset() {
	l.mu.Lock()
	l.seen = make(map[string]bool)
	l.mu.Unlock()
}
