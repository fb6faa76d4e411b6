package location

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

var (
	// ErrNoProvider means no positioning source is currently available. It is
	// returned immediately, without waiting out the deadline.
	ErrNoProvider = errors.New("no position source available")

	// ErrNoFix means the deadline elapsed with no valid or cached fix, or a
	// provider failed during setup.
	ErrNoFix = errors.New("no fix obtained")
)

// Acquirer races the configured position sources against an accuracy target
// and a deadline, resolving to a single fix or failure. An Acquirer instance
// must not be shared across concurrent acquisitions; create one per query.
type Acquirer struct {
	sources []PositionSource
	logger  zerolog.Logger
}

// NewAcquirer creates an Acquirer over the given sources. Source order is
// significant only for breaking exact timestamp ties in the cached-fix
// fallback.
func NewAcquirer(sources []PositionSource, logger zerolog.Logger) *Acquirer {
	return &Acquirer{
		sources: sources,
		logger:  logger,
	}
}

// Acquire blocks until the first provider update satisfying the accuracy and
// age budget arrives, the effective deadline elapses, or ctx is cancelled.
// On deadline expiry it falls back to the newest cached fix across sources.
// All provider subscriptions are torn down before Acquire returns, so no
// late update can reach a caller that has already resumed.
func (a *Acquirer) Acquire(ctx context.Context, req AcquisitionRequest) (Fix, error) {
	if req.Deadline <= 0 {
		return Fix{}, errors.New("acquisition deadline must be positive")
	}

	available := make([]PositionSource, 0, len(a.sources))
	for _, src := range a.sources {
		if src.Available() {
			available = append(available, src)
		}
	}
	if len(available) == 0 {
		a.logger.Warn().Msg("No position source available")
		return Fix{}, ErrNoProvider
	}

	effective := req.EffectiveDeadline()

	// Cancelling subCtx stops every provider subscription; it is cancelled on
	// every exit path.
	subCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	updates := make(chan Fix, len(available))
	subscribed := 0
	for _, src := range available {
		ch, err := src.Subscribe(subCtx)
		if err != nil {
			a.logger.Warn().
				Err(err).
				Str("source", string(src.Kind())).
				Msg("Position source subscription failed")
			continue
		}
		subscribed++
		go func() {
			for {
				select {
				case fix, ok := <-ch:
					if !ok {
						return
					}
					select {
					case updates <- fix:
					case <-subCtx.Done():
						return
					}
				case <-subCtx.Done():
					return
				}
			}
		}()
	}
	if subscribed == 0 {
		// Setup failures never surface raw provider errors.
		return Fix{}, ErrNoFix
	}

	timer := time.NewTimer(effective)
	defer timer.Stop()

	for {
		select {
		case fix := <-updates:
			if !a.validate(fix, req.DesiredAccuracy, effective) {
				continue
			}
			cancel()
			a.logger.Debug().
				Str("source", string(fix.Source)).
				Float64("accuracy", fix.Accuracy).
				Msg("Accepted position update")
			return fix, nil

		case <-timer.C:
			cancel()
			return a.fallback(available)

		case <-ctx.Done():
			return Fix{}, ctx.Err()
		}
	}
}

// validate accepts an update only if it meets the requested accuracy and its
// age at arrival is within the effective deadline.
func (a *Acquirer) validate(fix Fix, desiredAccuracy int, effective time.Duration) bool {
	if fix.Accuracy > float64(desiredAccuracy) {
		return false
	}
	return time.Since(fix.CapturedAt) <= effective
}

// fallback resolves with the newest cached fix across sources. No accuracy
// filter applies here; freshness is best-effort only. An exact timestamp tie
// resolves to the source listed first.
func (a *Acquirer) fallback(available []PositionSource) (Fix, error) {
	var best Fix
	found := false
	for _, src := range available {
		cached, ok := src.LastKnown()
		if !ok {
			continue
		}
		if !found || cached.CapturedAt.After(best.CapturedAt) {
			best = cached
			found = true
		}
	}
	if !found {
		a.logger.Warn().Msg("Deadline elapsed with no valid update and no cached fix")
		return Fix{}, ErrNoFix
	}
	a.logger.Debug().
		Str("source", string(best.Source)).
		Time("captured_at", best.CapturedAt).
		Msg("Resolved acquisition from cached fix")
	return best, nil
}
