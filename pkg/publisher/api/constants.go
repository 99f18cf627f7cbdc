package api

import "time"

// DefaultRequestTimeout is the default timeout for API requests
const DefaultRequestTimeout = 10 * time.Second

// IndexRequestTimeout bounds requests that download the published index
const IndexRequestTimeout = 30 * time.Second

const (
	defaultEventLimit = 100
	defaultErrorLimit = 50
	maxLimit          = 1000
)
