package services

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	MQTT "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog"

	"github.com/tonikorin/tracker-agent/internal/access"
	"github.com/tonikorin/tracker-agent/internal/constants"
	"github.com/tonikorin/tracker-agent/internal/history"
	"github.com/tonikorin/tracker-agent/internal/metrics"
	"github.com/tonikorin/tracker-agent/internal/models"
	"github.com/tonikorin/tracker-agent/internal/utils"
	"github.com/tonikorin/tracker-agent/pkg/location"
	"github.com/tonikorin/tracker-agent/pkg/mqtt"
	"github.com/tonikorin/tracker-agent/pkg/relay"
)

// ErrUnknownTeam means a query referenced a team absent from the
// configuration. Such queries are dropped silently so the existence of teams
// is never revealed to a protocol peer.
var ErrUnknownTeam = errors.New("unknown team")

// LocationAcquirer resolves one location acquisition. Each query gets its
// own instance; provider subscriptions are not shared across acquisitions.
type LocationAcquirer interface {
	Acquire(ctx context.Context, req location.AcquisitionRequest) (location.Fix, error)
}

// MessagePoster posts protocol messages for one team channel.
type MessagePoster interface {
	Post(ctx context.Context, msg models.OutboundMessage) error
	PostToken(ctx context.Context, pushURL string, tok models.TokenMessage) error
}

// AcquirerFactory builds a fresh acquirer per query.
type AcquirerFactory func() LocationAcquirer

// RelayFactory builds the relay for a resolved team channel.
type RelayFactory func(creds relay.Credentials, messageURL string) MessagePoster

// PowerStateFunc reports the device power mode at query time. It is the
// platform collaborator's contribution to the acquisition budget.
type PowerStateFunc func() location.PowerState

// QuerySettings are the per-agent defaults applied when neither the query
// nor the team configuration supplies a value.
type QuerySettings struct {
	AccuracyMeters int
	Timeout        time.Duration
	RoundPrecision int
}

// QueryService answers "where are you" queries from teammates. It receives
// query payloads over an MQTT subscription, decides the protocol branch
// (reservation, chat, blocked or locate), drives location acquisition, and
// reports the outcome through the messaging relay.
type QueryService struct {
	// Configuration fields
	subTopic string
	qos      int
	settings QuerySettings

	// Dependencies
	mqttClient  mqtt.MQTTClient
	teamConfig  *utils.TeamConfigStore
	history     *history.Store
	pool        *utils.WorkerPool
	newAcquirer AcquirerFactory
	newRelay    RelayFactory
	powerState  PowerStateFunc
	logger      zerolog.Logger

	// Injectable timers, swapped in tests
	now   func() time.Time
	sleep func(d time.Duration)

	// Internal state management
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewQueryService creates a QueryService with the provided configuration.
func NewQueryService(subTopic string, qos int, settings QuerySettings, mqttClient mqtt.MQTTClient,
	teamConfig *utils.TeamConfigStore, hist *history.Store, pool *utils.WorkerPool,
	newAcquirer AcquirerFactory, newRelay RelayFactory, powerState PowerStateFunc,
	logger zerolog.Logger) *QueryService {

	if settings.AccuracyMeters == 0 {
		settings.AccuracyMeters = constants.DefaultAccuracyMeters
	}
	if settings.Timeout == 0 {
		settings.Timeout = constants.DefaultAcquireTimeout
	}
	if powerState == nil {
		powerState = func() location.PowerState { return location.PowerNormal }
	}

	return &QueryService{
		subTopic:    subTopic,
		qos:         qos,
		settings:    settings,
		mqttClient:  mqttClient,
		teamConfig:  teamConfig,
		history:     hist,
		pool:        pool,
		newAcquirer: newAcquirer,
		newRelay:    newRelay,
		powerState:  powerState,
		logger:      logger,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Start subscribes to the query topic.
func (qs *QueryService) Start() error {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if qs.running {
		return errors.New("query service is already running")
	}

	qs.ctx, qs.cancel = context.WithCancel(context.Background())

	token := qs.mqttClient.Subscribe(qs.subTopic, byte(qs.qos), qs.handleMessage)
	token.Wait()
	if err := token.Error(); err != nil {
		qs.cancel()
		qs.logger.Error().Err(err).Str("topic", qs.subTopic).Msg("Failed to subscribe to query topic")
		return err
	}

	qs.running = true
	qs.logger.Info().Str("topic", qs.subTopic).Msg("QueryService started")
	return nil
}

// Stop cancels in-flight queries, waits for them, and unsubscribes.
func (qs *QueryService) Stop() error {
	qs.mu.Lock()
	defer qs.mu.Unlock()
	if !qs.running {
		return errors.New("query service is not running")
	}

	qs.cancel()
	qs.wg.Wait()

	token := qs.mqttClient.Unsubscribe(qs.subTopic)
	token.Wait()
	if err := token.Error(); err != nil {
		qs.logger.Error().Err(err).Str("topic", qs.subTopic).Msg("Failed to unsubscribe from query topic")
		return err
	}

	qs.running = false
	qs.logger.Info().Msg("QueryService stopped")
	return nil
}

// handleMessage schedules one worker task per inbound query. Queries are
// independent and may run in parallel.
func (qs *QueryService) handleMessage(client MQTT.Client, msg MQTT.Message) {
	payload := append([]byte(nil), msg.Payload()...)

	qs.wg.Add(1)
	qs.pool.Submit(func() {
		defer qs.wg.Done()
		qs.HandleQuery(qs.ctx, payload)
	})
}

// HandleQuery runs the full state machine for one inbound query. Every
// non-dropped path posts exactly one ALIVE-or-RESERVED message and at most
// one follow-up POSITION/FAILURE message; no failure escapes to the caller.
func (qs *QueryService) HandleQuery(ctx context.Context, raw []byte) {
	q, err := models.ParseQuery(raw)
	if err != nil {
		qs.logger.Warn().Err(err).Msg("Discarding malformed query payload")
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeDropped).Inc()
		return
	}

	snapshot := qs.teamConfig.Snapshot()
	rule, ok := snapshot.Rule(q.TeamID)
	if !ok || snapshot.Member == "" {
		// Unknown teams are dropped without any response, so their existence
		// is never revealed. Log at debug only.
		qs.logger.Debug().Err(ErrUnknownTeam).Msg("Dropping query")
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeDropped).Inc()
		return
	}

	messageURL := models.ExpandHost(snapshot.MessageURL, rule.Host, q.Host)
	poster := qs.newRelay(relay.Credentials{
		Member:   snapshot.Member,
		Team:     rule.Name,
		Password: rule.Password,
		Secret:   rule.Secret,
	}, messageURL)

	if q.MemberName == snapshot.Member {
		qs.handleSelfQuery(ctx, snapshot, rule, q, poster)
		return
	}

	isChat := q.MessageType == constants.QueryChat
	blocked := access.Blocked(rule.Window, qs.now())

	if isChat {
		qs.history.RecordChat(q.Raw, qs.now())
	} else {
		qs.history.RecordLocate(q.MemberName, q.TeamID, q.Target, blocked, qs.now())
	}

	alive := models.OutboundMessage{
		MemberName:  snapshot.Member,
		TeamID:      rule.Name,
		MessageType: constants.MessageAlive,
		Blocked:     blocked,
	}
	if err := poster.Post(ctx, alive); err != nil {
		qs.logger.Error().Err(err).Msg("Failed to post ALIVE")
		metrics.RelayFailures.Inc()
	}

	if blocked {
		qs.logger.Info().Str("member", q.MemberName).Msg("Query blocked by access window")
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeBlocked).Inc()
		return
	}
	if isChat {
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeChat).Inc()
		return
	}

	qs.locate(ctx, snapshot, rule, q, poster)
}

// handleSelfQuery covers queries from the local member's own name: no
// location is acquired; the query is recorded, a RESERVED status is posted
// and, after a fixed grace delay, the push token is refreshed.
func (qs *QueryService) handleSelfQuery(ctx context.Context, snapshot *models.TeamConfig,
	rule models.TeamRule, q models.Query, poster MessagePoster) {

	qs.history.RecordLocate(q.MemberName, q.TeamID, q.Target, false, qs.now())

	reserved := models.OutboundMessage{
		MemberName:  snapshot.Member,
		TeamID:      rule.Name,
		MessageType: constants.MessageReserved,
	}
	if err := poster.Post(ctx, reserved); err != nil {
		qs.logger.Error().Err(err).Msg("Failed to post RESERVED")
		metrics.RelayFailures.Inc()
	}

	qs.sleep(constants.TokenUpdateGrace)

	pushURL := models.ExpandHost(snapshot.PushURL, rule.Host, q.Host)
	tok := models.TokenMessage{
		Name:      snapshot.Member,
		Team:      rule.Name,
		Token:     snapshot.Token,
		TokenType: constants.TokenTypeGCM,
		UUID:      snapshot.UUID,
	}
	if err := poster.PostToken(ctx, pushURL, tok); err != nil {
		qs.logger.Error().Err(err).Msg("Failed to post push token update")
		metrics.RelayFailures.Inc()
	}

	metrics.QueriesTotal.WithLabelValues(metrics.OutcomeReserved).Inc()
}

// locate races the position sources and reports the outcome. Acquisition
// errors become a FAILURE protocol message, never a raised error.
func (qs *QueryService) locate(ctx context.Context, snapshot *models.TeamConfig,
	rule models.TeamRule, q models.Query, poster MessagePoster) {

	req := location.AcquisitionRequest{
		DesiredAccuracy: qs.desiredAccuracy(q, snapshot),
		Deadline:        qs.deadline(snapshot),
		PowerState:      qs.powerState(),
	}

	started := qs.now()
	fix, err := qs.newAcquirer().Acquire(ctx, req)
	metrics.AcquisitionDuration.Observe(time.Since(started).Seconds())

	if err != nil {
		qs.logger.Warn().Err(err).Str("member", q.MemberName).Msg("Location acquisition failed")
		failure := models.OutboundMessage{
			MemberName:  snapshot.Member,
			TeamID:      rule.Name,
			MessageType: constants.MessageFailure,
			Content:     err.Error(),
		}
		if err := poster.Post(ctx, failure); err != nil {
			qs.logger.Error().Err(err).Msg("Failed to post FAILURE")
			metrics.RelayFailures.Inc()
		}
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return
	}

	staleTolerant := req.PowerState == location.PowerDeepSleep
	content, err := models.MarshalWireFix(fix, qs.settings.RoundPrecision, staleTolerant, qs.now())
	if err != nil {
		qs.logger.Error().Err(err).Msg("Failed to serialize fix")
		metrics.QueriesTotal.WithLabelValues(metrics.OutcomeFailure).Inc()
		return
	}

	position := models.OutboundMessage{
		MemberName:  snapshot.Member,
		TeamID:      rule.Name,
		MessageType: constants.MessagePosition,
		Content:     content,
		Icon:        rule.Icon,
		TrackerOff:  rule.TrackerOff,
	}
	if err := poster.Post(ctx, position); err != nil {
		qs.logger.Error().Err(err).Msg("Failed to post POSITION")
		metrics.RelayFailures.Inc()
	}
	metrics.QueriesTotal.WithLabelValues(metrics.OutcomePosition).Inc()
}

func (qs *QueryService) desiredAccuracy(q models.Query, snapshot *models.TeamConfig) int {
	if q.Accuracy > 0 {
		return q.Accuracy
	}
	if snapshot.Accuracy > 0 {
		return snapshot.Accuracy
	}
	return qs.settings.AccuracyMeters
}

func (qs *QueryService) deadline(snapshot *models.TeamConfig) time.Duration {
	if snapshot.Timeout > 0 {
		return time.Duration(snapshot.Timeout) * time.Second
	}
	return qs.settings.Timeout
}

// DefaultRelayFactory builds real HTTP relays sharing one client.
func DefaultRelayFactory(client *http.Client, logger zerolog.Logger) RelayFactory {
	return func(creds relay.Credentials, messageURL string) MessagePoster {
		return relay.New(client, logger, creds, messageURL)
	}
}
