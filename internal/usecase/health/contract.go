package health

import "context"

// DBPinger checks storage availability.
type DBPinger interface {
	Ping(ctx context.Context) error
}

// Checker checks one upstream dependency (embedding provider, place provider).
type Checker interface {
	HealthCheck(ctx context.Context) error
}
