package location

import "time"

// SourceKind identifies the positioning mechanism that produced a fix.
type SourceKind string

const (
	SourceSatellite SourceKind = "SATELLITE"
	SourceNetwork   SourceKind = "NETWORK"
)

// PowerState describes the device power mode at the time of a query. It is
// supplied by the platform collaborator at call time; the core never probes
// the device itself.
type PowerState int

const (
	PowerNormal PowerState = iota
	PowerSave
	PowerDeepSleep
)

// Fix is a single resolved geographic position reading. A Fix is only ever
// constructed from a provider update or a cached last-known location, and is
// immutable once produced.
type Fix struct {
	Latitude   float64    // decimal degrees
	Longitude  float64    // decimal degrees
	Accuracy   float64    // meters
	Altitude   float64    // meters
	Bearing    float64    // degrees
	Speed      float64    // m/s
	CapturedAt time.Time
	Source     SourceKind
}

// AcquisitionRequest is the per-query budget handed to the Acquirer. It is
// created per query, consumed once, and discarded after resolution.
type AcquisitionRequest struct {
	DesiredAccuracy int           // meters
	Deadline        time.Duration // must be > 0
	PowerState      PowerState
}

const (
	powerSaveCap = 3 * time.Second
	deepSleepCap = 1 * time.Second
)

// EffectiveDeadline returns the acquisition time budget after power-state
// adjustment: POWER_SAVE caps it at 3 seconds, DEEP_SLEEP at 1 second.
func (r AcquisitionRequest) EffectiveDeadline() time.Duration {
	switch r.PowerState {
	case PowerSave:
		if r.Deadline > powerSaveCap {
			return powerSaveCap
		}
	case PowerDeepSleep:
		if r.Deadline > deepSleepCap {
			return deepSleepCap
		}
	}
	return r.Deadline
}
