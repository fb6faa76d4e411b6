package models

import (
	"encoding/json"
	"math"
	"time"

	"github.com/tonikorin/tracker-agent/internal/constants"
	"github.com/tonikorin/tracker-agent/pkg/location"
)

// WireFix is the JSON form of a resolved fix carried in a POSITION message's
// content field. Latitude and longitude are rounded to 6 decimal places
// (about 1 m); the remaining measurements use the configured precision.
type WireFix struct {
	Latitude         float64 `json:"latitude"`
	Longitude        float64 `json:"longitude"`
	Accuracy         float64 `json:"accuracy"`
	Altitude         float64 `json:"altitude"`
	AltitudeAccuracy string  `json:"altitudeAccuracy"` // not supported, always "-"
	Heading          float64 `json:"heading"`
	Speed            float64 `json:"speed"`
	Timestamp        string  `json:"timestamp"`
	MTime            int64   `json:"mTime"`
	Age              int64   `json:"age"`
}

// NewWireFix converts a fix for transmission. precision is the number of
// decimals kept on accuracy, altitude, heading and speed. staleTolerant
// suppresses the age field, used when a deep-sleep shortened deadline
// produced the fix.
func NewWireFix(fix location.Fix, precision int, staleTolerant bool, now time.Time) WireFix {
	age := now.Sub(fix.CapturedAt).Milliseconds()
	if staleTolerant || age < 0 {
		age = 0
	}
	return WireFix{
		Latitude:         round6(fix.Latitude),
		Longitude:        round6(fix.Longitude),
		Accuracy:         roundTo(fix.Accuracy, precision),
		Altitude:         roundTo(fix.Altitude, precision),
		AltitudeAccuracy: "-",
		Heading:          roundTo(fix.Bearing, precision),
		Speed:            roundTo(fix.Speed, precision),
		Timestamp:        fix.CapturedAt.Format(constants.TimestampLayout),
		MTime:            fix.CapturedAt.UnixMilli(),
		Age:              age,
	}
}

// MarshalWireFix renders a fix as the JSON string carried in a POSITION
// message's content field.
func MarshalWireFix(fix location.Fix, precision int, staleTolerant bool, now time.Time) (string, error) {
	b, err := json.Marshal(NewWireFix(fix, precision, staleTolerant, now))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func round6(v float64) float64 {
	return math.Round(v*1e6) / 1e6
}

func roundTo(v float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(v*p) / p
}
