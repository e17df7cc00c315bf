package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/rs/zerolog"

	"courier/internal/mailbox"
	"courier/internal/metrics"
	"courier/internal/ratelimit"
	"courier/internal/relay"
)

var ErrClientClosed = errors.New("client closed")

type Options struct {
	Limiter        ratelimit.Limiter
	Metrics        *metrics.Metrics
	Logger         zerolog.Logger
	MaxMessageSize int64
}

// Hub owns the set of open connections and turns their events into relay
// operations.
type Hub struct {
	lifecycle      *relay.Lifecycle
	limiter        ratelimit.Limiter
	metrics        *metrics.Metrics
	logger         zerolog.Logger
	maxMessageSize int64
	connections    map[*Client]bool
	register       chan *Client
	unregister     chan *Client
	done           chan struct{}
}

func NewHub(lifecycle *relay.Lifecycle, opts Options) *Hub {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 10240
	}

	return &Hub{
		lifecycle:      lifecycle,
		limiter:        opts.Limiter,
		metrics:        opts.Metrics,
		logger:         opts.Logger.With().Str("component", "hub").Logger(),
		maxMessageSize: opts.MaxMessageSize,
		connections:    make(map[*Client]bool),
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		done:           make(chan struct{}),
	}
}

// Run processes connection lifecycle events until ctx is cancelled, then
// closes every remaining connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case client := <-h.register:
			h.connections[client] = true
			h.logger.Debug().
				Str("conn", client.ID()).
				Int("connections", len(h.connections)).
				Msg("client connected")

		case client := <-h.unregister:
			if _, ok := h.connections[client]; ok {
				delete(h.connections, client)
				h.lifecycle.Disconnect(client.session)
				client.Close()
				h.logger.Debug().
					Str("conn", client.ID()).
					Int("connections", len(h.connections)).
					Msg("client disconnected")
			}

		case <-ctx.Done():
			for client := range h.connections {
				h.lifecycle.Disconnect(client.session)
				client.Close()
			}
			h.connections = nil
			h.logger.Info().Msg("hub stopped")
			return
		}
	}
}

// Register opens a lifecycle session for client. It must be called before the
// client's pumps start.
func (h *Hub) Register(client *Client) {
	client.session = h.lifecycle.Open(client)
	select {
	case h.register <- client:
	case <-h.done:
		h.lifecycle.Disconnect(client.session)
		client.Close()
	}
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Done is closed once Run has returned.
func (h *Hub) Done() <-chan struct{} {
	return h.done
}

func (h *Hub) HandleMessage(client *Client, msg *WSMessage) {
	ctx := context.Background()

	switch msg.Type {
	case TypeAuthenticate:
		h.handleAuthenticate(client, msg)
	case TypeSendMessage:
		h.handleSendMessage(ctx, client, msg)
	case TypePing:
		return
	default:
		client.SendError(CodeUnknownType, "Unknown message type")
	}
}

func (h *Hub) handleAuthenticate(client *Client, msg *WSMessage) {
	email, ok := authenticateEmail(msg.Payload)
	if !ok {
		client.Authenticated(false)
		return
	}

	h.lifecycle.Authenticate(client.session, email)
}

// authenticateEmail accepts either a bare string payload or {"email": ...}.
func authenticateEmail(payload interface{}) (string, bool) {
	switch p := payload.(type) {
	case string:
		return p, p != ""
	case map[string]interface{}:
		payloadBytes, _ := json.Marshal(p)
		var auth AuthenticatePayload
		if err := json.Unmarshal(payloadBytes, &auth); err != nil || auth.Email == "" {
			return "", false
		}
		return auth.Email, true
	default:
		return "", false
	}
}

func (h *Hub) handleSendMessage(ctx context.Context, client *Client, msg *WSMessage) {
	session := client.session
	if session.State() != relay.Authenticated {
		client.SendError(CodeNotAuthenticated, "Must authenticate first")
		return
	}

	payloadBytes, _ := json.Marshal(msg.Payload)
	var payload SendMessagePayload
	if err := json.Unmarshal(payloadBytes, &payload); err != nil ||
		strings.TrimSpace(payload.RecipientEmail) == "" || payload.Message == "" {
		client.SendError(CodeInvalidPayload, "Recipient email and message are required")
		return
	}

	senderKey := session.Key()
	if payload.SenderEmail != "" && payload.SenderEmail != senderKey {
		client.SendError(CodeSenderMismatch, "Sender does not match authenticated identity")
		return
	}

	if h.limiter != nil {
		allowed, err := h.limiter.Allow(ctx, senderKey)
		if err != nil {
			h.logger.Warn().Err(err).Str("sender", senderKey).Msg("rate limiter unavailable, allowing send")
		} else if !allowed {
			h.metrics.RateLimited()
			client.SendError(CodeRateLimited, "Too many messages, slow down")
			return
		}
	}

	outcome, err := h.lifecycle.Send(session, payload.RecipientEmail, payload.Message)
	if err != nil {
		h.sendRouteError(client, err)
		return
	}

	h.logger.Debug().
		Str("sender", senderKey).
		Str("recipient", payload.RecipientEmail).
		Stringer("outcome", outcome).
		Msg("message routed")
}

func (h *Hub) sendRouteError(client *Client, err error) {
	switch {
	case errors.Is(err, relay.ErrNotAuthenticated):
		client.SendError(CodeNotAuthenticated, "Must authenticate first")
	case errors.Is(err, relay.ErrUnknownRecipient):
		client.SendError(CodeUnknownRecipient, "Recipient is not registered")
	case errors.Is(err, mailbox.ErrMailboxFull):
		client.SendError(CodeMailboxFull, "Recipient mailbox is full")
	case errors.Is(err, relay.ErrEmptyBody):
		client.SendError(CodeInvalidPayload, "Recipient email and message are required")
	default:
		h.logger.Error().Err(err).Str("conn", client.ID()).Msg("route failed")
		client.SendError(CodeInvalidPayload, "Message could not be routed")
	}
}
