// Package log provides per-component loggers in the style the rest of the
// codebase already uses: stdlib log.Logger with time+microsecond flags and
// an emoji prefix marking the message's nature.
package log

import (
	"log"
	"os"
)

// Logger wraps a stdlib *log.Logger with a component tag, so every line
// names the subsystem that emitted it without repeating it at every call
// site.
type Logger struct {
	component string
	std       *log.Logger
}

// New returns a Logger prefixed with component's name.
func New(component string) *Logger {
	return &Logger{
		component: component,
		std:       log.New(os.Stderr, "", log.Ltime|log.Lmicroseconds),
	}
}

func (l *Logger) Info(format string, args ...any) {
	l.std.Printf("ℹ️  [%s] "+format, prepend(l.component, args)...)
}

func (l *Logger) Ready(format string, args ...any) {
	l.std.Printf("✅ [%s] "+format, prepend(l.component, args)...)
}

func (l *Logger) Warn(format string, args ...any) {
	l.std.Printf("⚠️  [%s] "+format, prepend(l.component, args)...)
}

func (l *Logger) Error(format string, args ...any) {
	l.std.Printf("❌ [%s] "+format, prepend(l.component, args)...)
}

func (l *Logger) Fatal(format string, args ...any) {
	l.std.Fatalf("❌ [%s] "+format, prepend(l.component, args)...)
}

func prepend(component string, args []any) []any {
	out := make([]any, 0, len(args)+1)
	out = append(out, component)
	out = append(out, args...)
	return out
}
