package constants

import "time"

// Protocol message types understood by the messaging relay.
const (
	MessageAlive    = "ALIVE"
	MessagePosition = "POSITION"
	MessageFailure  = "FAILURE"
	MessageReserved = "RESERVED"
	MessageToken    = "TOKEN"
)

// Query kinds carried in the inbound payload's messageType field.
const (
	QueryLocate = "LOCATE"
	QueryChat   = "CHAT"
)

// Defaults applied when neither the query nor the team configuration
// supplies a value.
const (
	DefaultAccuracyMeters = 50
	DefaultAcquireTimeout = 60 * time.Second
	DefaultRoundPrecision = 0
)

// Power-state deadline caps for the location acquisition budget.
const (
	PowerSaveDeadlineCap = 3 * time.Second
	DeepSleepDeadlineCap = 1 * time.Second
)

// TokenUpdateGrace is the fixed pause between posting RESERVED for a
// self-query and refreshing the push token.
const TokenUpdateGrace = 5 * time.Second

// History retention caps. Oldest entries are evicted first.
const (
	MaxHistoryLines = 200
	MaxChatMessages = 100
)

// TimestampLayout is the wall-clock format used in history entries and
// serialized fixes.
const TimestampLayout = "2006-01-02 15:04:05"

// TokenTypeGCM is the push token type reported to the push server.
const TokenTypeGCM = 3
