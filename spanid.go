// SPDX-License-Identifier: GPL-3.0-or-later

package sni

import (
	"github.com/bassosimone/runtimex"
	"github.com/google/uuid"
)

// NewSpanID returns a UUIDv7 representing a span.
//
// A span is a sequence of operations that can fail in a single, specific
// way: for example, one open entry point resolving and connecting to a
// server, or one framed read. Attach the span ID to the logger with
// [*slog.Logger.With] so that all log entries emitted by that operation
// share it, enabling correlation across components.
//
// The span terminology is borrowed from OTel.
//
// This function panics if the system random number generator fails,
// which should only happen under extraordinary circumstances.
func NewSpanID() string {
	return runtimex.PanicOnError1(uuid.NewV7()).String()
}
