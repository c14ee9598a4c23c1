package client

import (
	"context"
	"log/slog"
	"time"
)

const (
	// DefaultPollInterval is how often the poller compares counts.
	DefaultPollInterval = 30 * time.Second
	// DefaultDriftThreshold is the count difference tolerated before a
	// full reload. Small gaps are expected while mutations are
	// mid-flight; a larger gap means another session changed the data.
	DefaultDriftThreshold = 2
)

// DriftPoller periodically compares the server's todo count against
// the local store and triggers a reload when they diverge beyond the
// threshold.
type DriftPoller struct {
	Interval  time.Duration
	Threshold int

	// FetchTotal returns the server-side todo count.
	FetchTotal func(ctx context.Context) (int, error)
	// LocalTotal returns the count the store currently believes in.
	LocalTotal func() int
	// Reload refreshes the store from the server.
	Reload func(ctx context.Context) error

	Logger *slog.Logger
}

// Run polls until ctx is cancelled. Fetch and reload failures are
// logged and retried on the next tick.
func (p *DriftPoller) Run(ctx context.Context) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Check(ctx)
		}
	}
}

// Check runs one drift comparison, reloading when the gap between the
// server and local counts exceeds the threshold. It reports whether a
// reload happened.
func (p *DriftPoller) Check(ctx context.Context) bool {
	threshold := p.Threshold
	if threshold <= 0 {
		threshold = DefaultDriftThreshold
	}

	serverTotal, err := p.FetchTotal(ctx)
	if err != nil {
		if p.Logger != nil {
			p.Logger.Warn("drift poll failed", "error", err)
		}
		return false
	}

	drift := serverTotal - p.LocalTotal()
	if drift < 0 {
		drift = -drift
	}
	if drift <= threshold {
		return false
	}

	if p.Logger != nil {
		p.Logger.Info("drift detected, reloading", "serverTotal", serverTotal, "drift", drift)
	}
	if err := p.Reload(ctx); err != nil {
		if p.Logger != nil {
			p.Logger.Warn("drift reload failed", "error", err)
		}
		return false
	}
	return true
}
