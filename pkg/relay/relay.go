// Package relay posts protocol messages to a team's messaging relay over
// HTTP. Every post is a single attempt; the caller logs failures and never
// retries.
package relay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/tonikorin/tracker-agent/internal/models"
)

// ErrTransport means the outbound HTTP POST failed: connection error,
// serialization error, or a non-2xx response.
var ErrTransport = errors.New("relay transport failure")

// Credentials identify the posting member towards one team's channel. The
// password and secret travel only in request headers.
type Credentials struct {
	Member   string
	Team     string
	Password string
	Secret   string
}

// Relay serializes outbound messages and posts them to the configured
// endpoint. One Relay is built per query from the resolved team rule.
type Relay struct {
	client     *http.Client
	logger     zerolog.Logger
	creds      Credentials
	messageURL string
}

// New creates a Relay for one team channel.
func New(client *http.Client, logger zerolog.Logger, creds Credentials, messageURL string) *Relay {
	if client == nil {
		client = http.DefaultClient
	}
	return &Relay{
		client:     client,
		logger:     logger,
		creds:      creds,
		messageURL: messageURL,
	}
}

// Post sends one protocol message to the messaging relay.
func (r *Relay) Post(ctx context.Context, msg models.OutboundMessage) error {
	r.logger.Debug().Str("type", msg.MessageType).Msg("Posting relay message")
	return r.post(ctx, r.messageURL, msg)
}

// PostToken sends a push-token refresh to the push server. The token body
// carries no messageType field.
func (r *Relay) PostToken(ctx context.Context, pushURL string, tok models.TokenMessage) error {
	r.logger.Debug().Str("team", tok.Team).Msg("Posting push token update")
	return r.post(ctx, pushURL, tok)
}

func (r *Relay) post(ctx context.Context, url string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-channel", "/channel/"+r.creds.Team+":"+r.creds.Password)
	req.Header.Set("X-team", r.creds.Team)
	req.Header.Set("X-pass", r.creds.Password)
	req.Header.Set("X-s", r.creds.Secret)

	resp, err := r.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	// Drain so the connection returns to the pool.
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}
	return nil
}
