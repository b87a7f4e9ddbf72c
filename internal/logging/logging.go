// Package logging wraps the standard log package with a bracketed
// level-tag convention: "[INFO] component: message". Every actor in this
// core logs through here rather than reaching for log.Printf directly, so
// the convention stays uniform.
package logging

import "log"

// Logger prefixes every line with a component tag, e.g. "om[binance]".
type Logger struct {
	component string
}

// New returns a Logger scoped to component.
func New(component string) *Logger {
	return &Logger{component: component}
}

func (l *Logger) Infof(format string, args ...any) {
	log.Printf("[INFO] %s: "+format, append([]any{l.component}, args...)...)
}

func (l *Logger) Warnf(format string, args ...any) {
	log.Printf("[WARN] %s: "+format, append([]any{l.component}, args...)...)
}

func (l *Logger) Errorf(format string, args ...any) {
	log.Printf("[ERROR] %s: "+format, append([]any{l.component}, args...)...)
}

func (l *Logger) Fatalf(format string, args ...any) {
	log.Fatalf("[FATAL] %s: "+format, append([]any{l.component}, args...)...)
}
