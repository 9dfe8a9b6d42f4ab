// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package clvm

import "github.com/decred/slog"

// log is the package-level subsystem logger, disabled by default.
var log = slog.Disabled

// UseLogger sets the subsystem logger used by this package.
func UseLogger(logger slog.Logger) {
	log = logger
}
