package services

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tonikorin/tracker-agent/internal/constants"
	"github.com/tonikorin/tracker-agent/internal/history"
	"github.com/tonikorin/tracker-agent/internal/models"
	"github.com/tonikorin/tracker-agent/internal/utils"
	"github.com/tonikorin/tracker-agent/pkg/file"
	"github.com/tonikorin/tracker-agent/pkg/location"
	"github.com/tonikorin/tracker-agent/pkg/relay"
)

// mockPoster records relay posts in call order.
type mockPoster struct {
	mock.Mock
}

func (m *mockPoster) Post(ctx context.Context, msg models.OutboundMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func (m *mockPoster) PostToken(ctx context.Context, pushURL string, tok models.TokenMessage) error {
	args := m.Called(ctx, pushURL, tok)
	return args.Error(0)
}

// postedTypes returns the message types posted, in order; token posts appear
// as "TOKEN".
func (m *mockPoster) postedTypes() []string {
	var types []string
	for _, call := range m.Calls {
		switch call.Method {
		case "Post":
			types = append(types, call.Arguments.Get(1).(models.OutboundMessage).MessageType)
		case "PostToken":
			types = append(types, constants.MessageToken)
		}
	}
	return types
}

// mockAcquirer scripts one acquisition outcome.
type mockAcquirer struct {
	mock.Mock
}

func (m *mockAcquirer) Acquire(ctx context.Context, req location.AcquisitionRequest) (location.Fix, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(location.Fix), args.Error(1)
}

type fixture struct {
	service  *QueryService
	poster   *mockPoster
	acquirer *mockAcquirer
	history  *history.Store
	slept    []time.Duration
}

func newFixture(t *testing.T, cfg *models.TeamConfig) *fixture {
	t.Helper()

	dir := t.TempDir()
	fileOps := file.NewFileService()
	logger := zerolog.Nop()

	teamStore := utils.NewTeamConfigStore(filepath.Join(dir, "teams.json"), fileOps, logger)
	require.NoError(t, teamStore.Replace(cfg))

	historyStore := history.NewStore(filepath.Join(dir, "history.json"), fileOps, logger)
	require.NoError(t, historyStore.Load())

	f := &fixture{
		poster:   new(mockPoster),
		acquirer: new(mockAcquirer),
		history:  historyStore,
	}

	f.service = NewQueryService(
		"tracker/queries", 1,
		QuerySettings{AccuracyMeters: 50, Timeout: 60 * time.Second},
		nil, // the MQTT client is not touched by HandleQuery
		teamStore,
		historyStore,
		nil,
		func() LocationAcquirer { return f.acquirer },
		func(creds relay.Credentials, messageURL string) MessagePoster { return f.poster },
		nil,
		logger,
	)
	f.service.sleep = func(d time.Duration) { f.slept = append(f.slept, d) }
	return f
}

func teamConfig() *models.TeamConfig {
	return &models.TeamConfig{
		Member: "alice",
		Teams: map[string]models.TeamCredentials{
			"T1": {Name: "Scouts", Password: "pw", Host: "eu.example.com", Secret: "s3cret"},
		},
		CTeams: map[string]models.TeamCustomization{
			"Scouts": {Icon: "tent", TrackerOff: "resting"},
		},
		MessageURL: "https://{host}/message",
		PushURL:    "https://{host}/push",
		Token:      "push-token",
		UUID:       "abc-123",
	}
}

func TestHandleQuery_AliveThenPosition(t *testing.T) {
	f := newFixture(t, teamConfig())

	capturedAt := time.Now()
	fix := location.Fix{
		Latitude:   60.1699,
		Longitude:  24.9384,
		Accuracy:   30,
		CapturedAt: capturedAt,
		Source:     location.SourceSatellite,
	}
	f.acquirer.On("Acquire", mock.Anything, mock.MatchedBy(func(req location.AcquisitionRequest) bool {
		return req.DesiredAccuracy == 50 && req.Deadline == 60*time.Second
	})).Return(fix, nil)
	f.poster.On("Post", mock.Anything, mock.Anything).Return(nil)

	f.service.HandleQuery(context.Background(), []byte(`{"teamId":"T1","memberName":"bob","accuracy":50}`))

	require.Equal(t, []string{constants.MessageAlive, constants.MessagePosition}, f.poster.postedTypes())

	position := f.poster.Calls[1].Arguments.Get(1).(models.OutboundMessage)
	assert.Equal(t, "alice", position.MemberName)
	assert.Equal(t, "Scouts", position.TeamID)
	assert.Equal(t, "tent", position.Icon)
	assert.Equal(t, "resting", position.TrackerOff)

	var wire models.WireFix
	require.NoError(t, json.Unmarshal([]byte(position.Content), &wire))
	assert.Equal(t, 30.0, wire.Accuracy)
	assert.InDelta(t, 60.1699, wire.Latitude, 1e-6)
}

func TestHandleQuery_SelfQueryReservesAndRefreshesToken(t *testing.T) {
	f := newFixture(t, teamConfig())

	f.poster.On("Post", mock.Anything, mock.MatchedBy(func(msg models.OutboundMessage) bool {
		return msg.MessageType == constants.MessageReserved
	})).Return(nil)
	f.poster.On("PostToken", mock.Anything, "https://eu.example.com/push", models.TokenMessage{
		Name:      "alice",
		Team:      "Scouts",
		Token:     "push-token",
		TokenType: constants.TokenTypeGCM,
		UUID:      "abc-123",
	}).Return(nil)

	f.service.HandleQuery(context.Background(), []byte(`{"teamId":"T1","memberName":"alice"}`))

	require.Equal(t, []string{constants.MessageReserved, constants.MessageToken}, f.poster.postedTypes())
	assert.Equal(t, []time.Duration{constants.TokenUpdateGrace}, f.slept, "the grace delay must be observed")

	f.acquirer.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)

	lines := f.history.ReadAndClear().Lines
	require.Len(t, lines, 1)
	assert.NotContains(t, lines[0], "[blocked]")
}

func TestHandleQuery_BlockedSkipsAcquisition(t *testing.T) {
	cfg := teamConfig()
	custom := cfg.CTeams["Scouts"]
	custom.StartTime = 540
	custom.EndTime = 1020
	custom.Repeat = "9" // digit outside 0-6: no day is ever allowed
	cfg.CTeams["Scouts"] = custom

	f := newFixture(t, cfg)
	f.poster.On("Post", mock.Anything, mock.Anything).Return(nil)

	f.service.HandleQuery(context.Background(), []byte(`{"teamId":"T1","memberName":"bob"}`))

	require.Equal(t, []string{constants.MessageAlive}, f.poster.postedTypes())
	alive := f.poster.Calls[0].Arguments.Get(1).(models.OutboundMessage)
	assert.True(t, alive.Blocked)

	f.acquirer.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)

	lines := f.history.ReadAndClear().Lines
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "[blocked]")
}

func TestHandleQuery_ChatSkipsAcquisition(t *testing.T) {
	f := newFixture(t, teamConfig())
	f.poster.On("Post", mock.Anything, mock.Anything).Return(nil)

	raw := []byte(`{"teamId":"T1","memberName":"bob","messageType":"CHAT","text":"hello"}`)
	f.service.HandleQuery(context.Background(), raw)

	require.Equal(t, []string{constants.MessageAlive}, f.poster.postedTypes())
	f.acquirer.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)

	snap := f.history.ReadAndClear()
	assert.Empty(t, snap.Lines)
	require.Len(t, snap.ChatMessages, 1)
	assert.Contains(t, snap.ChatMessages[0], `"text":"hello"`)
}

func TestHandleQuery_UnknownTeamDropsSilently(t *testing.T) {
	f := newFixture(t, teamConfig())

	f.service.HandleQuery(context.Background(), []byte(`{"teamId":"ghost","memberName":"bob"}`))

	f.poster.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
	f.poster.AssertNotCalled(t, "PostToken", mock.Anything, mock.Anything, mock.Anything)
	f.acquirer.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)
	assert.Empty(t, f.history.ReadAndClear().Lines)
}

func TestHandleQuery_AcquisitionFailurePostsFailure(t *testing.T) {
	f := newFixture(t, teamConfig())

	f.acquirer.On("Acquire", mock.Anything, mock.Anything).
		Return(location.Fix{}, location.ErrNoFix)
	f.poster.On("Post", mock.Anything, mock.Anything).Return(nil)

	f.service.HandleQuery(context.Background(), []byte(`{"teamId":"T1","memberName":"bob"}`))

	require.Equal(t, []string{constants.MessageAlive, constants.MessageFailure}, f.poster.postedTypes())
	failure := f.poster.Calls[1].Arguments.Get(1).(models.OutboundMessage)
	assert.Equal(t, location.ErrNoFix.Error(), failure.Content)
}

func TestHandleQuery_RelayFailureStillCompletes(t *testing.T) {
	f := newFixture(t, teamConfig())

	f.acquirer.On("Acquire", mock.Anything, mock.Anything).
		Return(location.Fix{Accuracy: 30, CapturedAt: time.Now()}, nil)
	f.poster.On("Post", mock.Anything, mock.Anything).Return(errors.New("connection refused"))

	// Must not panic or retry; the query is still considered handled.
	f.service.HandleQuery(context.Background(), []byte(`{"teamId":"T1","memberName":"bob"}`))

	require.Equal(t, []string{constants.MessageAlive, constants.MessagePosition}, f.poster.postedTypes())
}

func TestHandleQuery_MalformedPayloadIgnored(t *testing.T) {
	f := newFixture(t, teamConfig())

	f.service.HandleQuery(context.Background(), []byte(`{not json`))

	f.poster.AssertNotCalled(t, "Post", mock.Anything, mock.Anything)
}

func TestHandleQuery_QueryHostOverridesTeamHost(t *testing.T) {
	cfg := teamConfig()
	f := newFixture(t, cfg)

	var gotURL string
	f.service.newRelay = func(creds relay.Credentials, messageURL string) MessagePoster {
		gotURL = messageURL
		return f.poster
	}
	f.poster.On("Post", mock.Anything, mock.Anything).Return(nil)
	f.acquirer.On("Acquire", mock.Anything, mock.Anything).
		Return(location.Fix{Accuracy: 10, CapturedAt: time.Now()}, nil)

	f.service.HandleQuery(context.Background(),
		[]byte(`{"teamId":"T1","memberName":"bob","host":"us.example.com"}`))

	assert.Equal(t, "https://us.example.com/message", gotURL)
}
