package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonikorin/tracker-agent/pkg/location"
)

func TestNewWireFix_Rounding(t *testing.T) {
	capturedAt := time.Date(2026, 9, 1, 12, 30, 45, 0, time.UTC)
	fix := location.Fix{
		Latitude:   60.16985569,
		Longitude:  24.93837999,
		Accuracy:   29.7,
		Altitude:   12.4,
		Bearing:    181.6,
		Speed:      1.49,
		CapturedAt: capturedAt,
		Source:     location.SourceSatellite,
	}

	wire := NewWireFix(fix, 0, false, capturedAt.Add(1500*time.Millisecond))

	assert.Equal(t, 60.169856, wire.Latitude)
	assert.Equal(t, 24.93838, wire.Longitude)
	assert.Equal(t, 30.0, wire.Accuracy)
	assert.Equal(t, 12.0, wire.Altitude)
	assert.Equal(t, 182.0, wire.Heading)
	assert.Equal(t, 1.0, wire.Speed)
	assert.Equal(t, "-", wire.AltitudeAccuracy)
	assert.Equal(t, "2026-09-01 12:30:45", wire.Timestamp)
	assert.Equal(t, capturedAt.UnixMilli(), wire.MTime)
	assert.Equal(t, int64(1500), wire.Age)
}

func TestNewWireFix_ConfiguredPrecision(t *testing.T) {
	fix := location.Fix{Accuracy: 29.74, Speed: 1.49, CapturedAt: time.Now()}

	wire := NewWireFix(fix, 1, false, time.Now())

	assert.Equal(t, 29.7, wire.Accuracy)
	assert.Equal(t, 1.5, wire.Speed)
}

func TestNewWireFix_StaleTolerantSuppressesAge(t *testing.T) {
	capturedAt := time.Now().Add(-time.Hour)
	fix := location.Fix{CapturedAt: capturedAt}

	wire := NewWireFix(fix, 0, true, time.Now())

	assert.Equal(t, int64(0), wire.Age)
}

func TestWireFix_RoundTrip(t *testing.T) {
	capturedAt := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	fix := location.Fix{
		Latitude:   -33.8688197,
		Longitude:  151.2092955,
		Accuracy:   30,
		Altitude:   58,
		Bearing:    90,
		Speed:      2,
		CapturedAt: capturedAt,
		Source:     location.SourceNetwork,
	}

	content, err := MarshalWireFix(fix, 0, false, capturedAt)
	require.NoError(t, err)

	var parsed WireFix
	require.NoError(t, json.Unmarshal([]byte(content), &parsed))

	assert.InDelta(t, fix.Latitude, parsed.Latitude, 1e-6)
	assert.InDelta(t, fix.Longitude, parsed.Longitude, 1e-6)
	assert.Equal(t, fix.Accuracy, parsed.Accuracy)
	assert.Equal(t, fix.Altitude, parsed.Altitude)
	assert.Equal(t, fix.Bearing, parsed.Heading)
	assert.Equal(t, fix.Speed, parsed.Speed)
	assert.Equal(t, capturedAt.UnixMilli(), parsed.MTime)
}

func TestParseQuery_RetainsRawPayload(t *testing.T) {
	raw := []byte(`{"teamId":"T1","memberName":"bob","accuracy":50,"messageType":"CHAT","text":"hello"}`)

	q, err := ParseQuery(raw)
	require.NoError(t, err)

	assert.Equal(t, "T1", q.TeamID)
	assert.Equal(t, "bob", q.MemberName)
	assert.Equal(t, 50, q.Accuracy)
	assert.Equal(t, "CHAT", q.MessageType)
	assert.JSONEq(t, string(raw), string(q.Raw))
}

func TestTeamConfig_Rule(t *testing.T) {
	cfg := &TeamConfig{
		Member: "alice",
		Teams: map[string]TeamCredentials{
			"T1": {Name: "Scouts", Password: "pw", Host: "eu.example.com", Secret: "s3cret"},
		},
		CTeams: map[string]TeamCustomization{
			"Scouts": {Icon: "tent", TrackerOff: "resting", StartTime: 540, EndTime: 1020, Repeat: "12345"},
		},
	}

	rule, ok := cfg.Rule("T1")
	require.True(t, ok)
	assert.Equal(t, "Scouts", rule.Name)
	assert.Equal(t, "tent", rule.Icon)
	assert.Equal(t, "resting", rule.TrackerOff)
	assert.Equal(t, 540, rule.Window.StartMinute)
	assert.False(t, rule.Window.IsZero())

	_, ok = cfg.Rule("T2")
	assert.False(t, ok)
}

func TestExpandHost(t *testing.T) {
	url := "https://{host}/api/message"

	assert.Equal(t, "https://eu.example.com/api/message", ExpandHost(url, "eu.example.com", ""))
	assert.Equal(t, "https://us.example.com/api/message", ExpandHost(url, "eu.example.com", "us.example.com"),
		"query host overrides team host")
}
