package swarm

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/bogdad/citybound/internal/diagnostics"
)

// Option configures a Swarm at construction time. Options are applied in
// order and validated together, so a caller sees every bad option in one
// error instead of just the first (see diagnostics.CombineValidation).
type Option[A any, PA Compact[A]] func(*config[A, PA]) error

type config[A any, PA Compact[A]] struct {
	logger        *zap.Logger
	metricsReg    *prometheus.Registry
	machineID     uint32
	nearWrapGuard uint32
}

func defaultConfig[A any, PA Compact[A]]() *config[A, PA] {
	return &config[A, PA]{
		machineID:     1,
		nearWrapGuard: 0, // resolved to slotmap.DefaultNearWrapGuard
	}
}

// WithLogger attaches a zap.Logger the Swarm reports drops and fatal
// invariant violations through. Without this option the Swarm logs
// nothing (zap.NewNop()).
func WithLogger[A any, PA Compact[A]](logger *zap.Logger) Option[A, PA] {
	return func(c *config[A, PA]) error {
		if logger == nil {
			return ErrNilLogger
		}
		c.logger = logger
		return nil
	}
}

// WithMetrics registers the Swarm's counters and gauges on reg, labeled by
// actor-kind name. Without this option the Swarm records no metrics.
func WithMetrics[A any, PA Compact[A]](reg *prometheus.Registry) Option[A, PA] {
	return func(c *config[A, PA]) error {
		if reg == nil {
			return ErrNilMetricsSink
		}
		c.metricsReg = reg
		return nil
	}
}

// WithMachine sets the machine id stamped into every RawID this Swarm
// mints. Defaults to 1, matching a single-node deployment.
func WithMachine[A any, PA Compact[A]](machineID uint32) Option[A, PA] {
	return func(c *config[A, PA]) error {
		if machineID == 0 {
			return ErrInvalidMachineID
		}
		c.machineID = machineID
		return nil
	}
}

// WithNearWrapGuard overrides how many generations before a full 256-value
// version cycle an id is retired instead of recycled (see internal/slotmap's
// package doc). Defaults to slotmap.DefaultNearWrapGuard.
func WithNearWrapGuard[A any, PA Compact[A]](guard uint32) Option[A, PA] {
	return func(c *config[A, PA]) error {
		if guard == 0 || guard >= 256 {
			return ErrInvalidWrapGuard
		}
		c.nearWrapGuard = guard
		return nil
	}
}

func applyOptions[A any, PA Compact[A]](opts []Option[A, PA]) (*config[A, PA], error) {
	c := defaultConfig[A, PA]()
	var errs []error
	for _, opt := range opts {
		if err := opt(c); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return nil, diagnostics.CombineValidation(errs...)
	}
	return c, nil
}
