// Package timeouts defines shared timeout constants so the store, the
// commands and telemetry agree on how long to wait.
package timeouts

import "time"

// StoreBusy caps how long a SQLite connection waits on a locked database
// before the write surfaces as a retriable conflict.
const StoreBusy = 5 * time.Second

// TelemetryShutdown limits how long exporters may flush on exit.
const TelemetryShutdown = 5 * time.Second
