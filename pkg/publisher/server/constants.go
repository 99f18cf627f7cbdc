package server

import "time"

// DefaultShutdownTimeout is the default timeout for graceful server shutdown
const DefaultShutdownTimeout = 30 * time.Second

// DefaultJournalRetention is how long journal events are kept
const DefaultJournalRetention = 30 * 24 * time.Hour
