// Package timeouts defines shared timeout constants used across commands.
// Centralizing these values prevents drift between the engine and the
// simulator and makes the durations discoverable.
package timeouts

import "time"

// BackendRequest caps a single start or read call to the quest backend.
const BackendRequest = 10 * time.Second

// CacheCall caps one goal-cache read or write; a slow cache must degrade to
// a miss instead of stalling quest initialization.
const CacheCall = 2 * time.Second

// ReadHeader limits how long the simulator waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long the simulator waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
