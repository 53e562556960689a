package swarm

import "errors"

// Config validation errors, returned (possibly combined via multierr) from
// New when a supplied Option is given a nil or out-of-range value.
var (
	ErrNilLogger        = errors.New("swarm: WithLogger requires a non-nil *zap.Logger")
	ErrNilMetricsSink   = errors.New("swarm: WithMetrics requires a non-nil *prometheus.Registry")
	ErrInvalidMachineID = errors.New("swarm: machine id must be non-zero")
	ErrInvalidWrapGuard = errors.New("swarm: near-wrap guard must be in [1,255]")
)
