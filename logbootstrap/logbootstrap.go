// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package logbootstrap wires github.com/jrick/logrotate into
// github.com/decred/slog so a host application gets rotating log files
// the way exccd's top-level exccd.go does, without any package in this
// module importing a specific CLI or config system (SPEC_FULL.md §A.1).
// Every subsystem package defaults to slog.Disabled on its own; calling
// InitLogRotator here and then each package's UseLogger is the host's job, not
// this module's.
package logbootstrap

import (
	"io"
	"os"

	"github.com/decred/slog"
	"github.com/jrick/logrotate/rotator"
)

// Backend owns the rotating log file and the slog backend built on top
// of it. Close releases the underlying file.
type Backend struct {
	rotator *rotator.Rotator
	backend slog.Backend
}

// Config controls how InitLogRotator opens and rotates the log file.
type Config struct {
	// ThresholdBytes is the size at which the active log file is
	// rolled; 0 uses a 10 MiB default.
	ThresholdBytes int64
	// MaxRolls bounds how many rotated files are kept.
	MaxRolls int
	// AlsoStderr additionally writes everything to os.Stderr, useful
	// for foreground/debug runs.
	AlsoStderr bool
}

const defaultThresholdBytes = 10 * 1024 * 1024

// InitLogRotator opens (creating if needed) logFile and returns a
// Backend that subsystem loggers can be built from via Logger.
func InitLogRotator(logFile string, cfg Config) (*Backend, error) {
	threshold := cfg.ThresholdBytes
	if threshold <= 0 {
		threshold = defaultThresholdBytes
	}
	maxRolls := cfg.MaxRolls
	if maxRolls <= 0 {
		maxRolls = 3
	}

	r, err := rotator.New(logFile, threshold, false, maxRolls)
	if err != nil {
		return nil, err
	}

	var w io.Writer = r
	if cfg.AlsoStderr {
		w = io.MultiWriter(r, os.Stderr)
	}

	return &Backend{
		rotator: r,
		backend: slog.NewBackend(w),
	}, nil
}

// Logger returns a named subsystem logger at the given level (e.g.
// "PEER", "POOL", "BCHN"), suitable for passing to a package's
// UseLogger.
func (b *Backend) Logger(subsystem string, level slog.Level) slog.Logger {
	l := b.backend.Logger(subsystem)
	l.SetLevel(level)
	return l
}

// Close releases the underlying rotated log file.
func (b *Backend) Close() error {
	return b.rotator.Close()
}
