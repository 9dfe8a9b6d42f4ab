// Copyright (c) 2024 The chialisten developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package pool

import "github.com/decred/slog"

var log = slog.Disabled

// UseLogger sets the package-wide logger used by pool.
func UseLogger(logger slog.Logger) {
	log = logger
}
