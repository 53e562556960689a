package diagnostics

import (
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Diagnostics bundles the logger and metrics sink a Swarm reports through.
// The zero value is not usable; construct with New.
type Diagnostics struct {
	Logger *zap.Logger
	Sink   Sink
	Kind   string
}

// New builds a Diagnostics for the given actor kind name. A nil logger
// defaults to zap.NewNop() and a nil sink to NoopSink(), matching the
// teacher's policy that observability is strictly opt-in.
func New(kind string, logger *zap.Logger, sink Sink) *Diagnostics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if sink == nil {
		sink = NoopSink()
	}
	return &Diagnostics{Logger: logger, Sink: sink, Kind: kind}
}

// DroppedStale logs and counts a dispatch dropped because the recipient id
// or version did not resolve to a live instance (spec §4.3.4: "drop message,
// emit diagnostic").
func (d *Diagnostics) DroppedStale(instanceID uint32, wantVersion, haveVersion uint8, occupied bool) {
	d.Sink.IncDropped(d.Kind)
	d.Logger.Warn("swarm: dropping message to stale or unknown recipient",
		zap.String("kind", d.Kind),
		zap.Uint32("instance_id", instanceID),
		zap.Uint8("want_version", wantVersion),
		zap.Uint8("have_version", haveVersion),
		zap.Bool("occupied", occupied),
	)
}

// Fatal logs at zap's Fatal level and then exits the process (zap's Fatal
// calls os.Exit, even on a no-op logger), for invariant violations the
// spec classifies as unrecoverable (arena exhaustion, corrupt slot map, a
// compact-contract violation caught by a post-handler assertion). There are
// no retries inside the swarm.
func (d *Diagnostics) Fatal(msg string, fields ...zap.Field) {
	d.Logger.Fatal(msg, fields...)
}

// CombineValidation folds a list of option-validation results into a single
// error, reporting every bad option at once instead of only the first.
func CombineValidation(errs ...error) error {
	var combined error
	for _, err := range errs {
		combined = multierr.Append(combined, err)
	}
	return combined
}
