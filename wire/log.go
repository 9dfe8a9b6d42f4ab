// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wire

import "github.com/decred/slog"

// log is the package-level subsystem logger. It is disabled by default so
// importing this package never produces output; a host application wires a
// real backend with UseLogger.
var log = slog.Disabled

// UseLogger sets the subsystem logger used by this package. Calling it with
// a nil-backed logger is not allowed; pass slog.Disabled to silence output.
func UseLogger(logger slog.Logger) {
	log = logger
}
