// Package diagnostic provides the warning/info sink that the loader
// reports through, instead of writing to a process-wide stream.
package diagnostic

import (
	"fmt"
	"log/slog"
	"sync"
)

// Sink receives diagnostics emitted while a Binary is loaded. Warnings
// never abort the load; they are reported so the caller can decide what
// to do with them (print, collect, ignore).
type Sink interface {
	Warnf(format string, args ...any)
	Infof(format string, args ...any)
}

// SlogSink reports diagnostics through a *slog.Logger, matching the
// logging idiom used everywhere else in this module.
type SlogSink struct {
	Logger *slog.Logger
}

// NewSlogSink returns a Sink backed by slog.Default() if logger is nil.
func NewSlogSink(logger *slog.Logger) *SlogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &SlogSink{Logger: logger}
}

func (s *SlogSink) Warnf(format string, args ...any) {
	s.Logger.Warn(fmt.Sprintf(format, args...))
}

func (s *SlogSink) Infof(format string, args ...any) {
	s.Logger.Info(fmt.Sprintf(format, args...))
}

// CollectingSink accumulates diagnostics in memory. Useful in tests, and
// for driver code that wants to print a summary report after the load
// finishes rather than interleaving diagnostics with other output.
type CollectingSink struct {
	mu       sync.Mutex
	Warnings []string
	Infos    []string
}

func (s *CollectingSink) Warnf(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Warnings = append(s.Warnings, fmt.Sprintf(format, args...))
}

func (s *CollectingSink) Infof(format string, args ...any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Infos = append(s.Infos, fmt.Sprintf(format, args...))
}

// NopSink discards every diagnostic. Handy as a zero value default.
type NopSink struct{}

func (NopSink) Warnf(string, ...any) {}
func (NopSink) Infof(string, ...any) {}
