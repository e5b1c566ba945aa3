package resilience

import "time"

// Circuit breaker defaults
const (
	DefaultMaxRequests           uint32        = 1
	DefaultInterval              time.Duration = 60 * time.Second
	DefaultTimeout               time.Duration = 30 * time.Second
	DefaultFailureThreshold      uint32        = 5
	DefaultFailureRatioThreshold float64       = 0.5
	DefaultMinRequestsToTrip     uint32        = 10
)

// Retry defaults
const (
	DefaultRetryMaxAttempts   int           = 3
	DefaultRetryInitialDelay  time.Duration = 25 * time.Millisecond
	DefaultRetryMaxDelay      time.Duration = 1 * time.Second
	DefaultRetryBackoffFactor float64       = 2.0
)
