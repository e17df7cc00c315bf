package relay

import (
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"courier/internal/identity"
	"courier/internal/mailbox"
	"courier/internal/message"
	"courier/internal/metrics"
	"courier/internal/presence"
)

var (
	ErrUnknownRecipient = errors.New("unknown recipient")
	ErrEmptyBody        = errors.New("message body is empty")
	ErrNotAuthenticated = errors.New("connection not authenticated")
)

type Outcome int

const (
	DeliveredImmediately Outcome = iota + 1
	Mailboxed
)

func (o Outcome) String() string {
	switch o {
	case DeliveredImmediately:
		return "delivered"
	case Mailboxed:
		return "mailboxed"
	default:
		return "unknown"
	}
}

// UnknownRecipientPolicy decides what happens to messages addressed to a key
// that was never registered.
type UnknownRecipientPolicy string

const (
	RejectUnknown  UnknownRecipientPolicy = "reject"
	MailboxUnknown UnknownRecipientPolicy = "mailbox"
)

func ParsePolicy(s string) (UnknownRecipientPolicy, error) {
	switch UnknownRecipientPolicy(s) {
	case RejectUnknown, MailboxUnknown:
		return UnknownRecipientPolicy(s), nil
	case "":
		return RejectUnknown, nil
	default:
		return "", errors.New("unknown recipient policy must be \"reject\" or \"mailbox\"")
	}
}

type Options struct {
	Policy  UnknownRecipientPolicy
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
	Now     func() time.Time
}

// Router decides between immediate delivery and the mailbox. Its mutex is the
// single lock over registry, presence and mailbox for every operation that
// spans more than one of them; the Lifecycle shares it.
type Router struct {
	registry *identity.Registry
	presence *presence.Tracker
	mailbox  *mailbox.Store
	policy   UnknownRecipientPolicy
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	now      func() time.Time
	mu       sync.Mutex
}

func NewRouter(registry *identity.Registry, tracker *presence.Tracker, store *mailbox.Store, opts Options) *Router {
	if opts.Policy == "" {
		opts.Policy = RejectUnknown
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Router{
		registry: registry,
		presence: tracker,
		mailbox:  store,
		policy:   opts.Policy,
		metrics:  opts.Metrics,
		logger:   opts.Logger.With().Str("component", "router").Logger(),
		now:      opts.Now,
	}
}

// Route stamps a message and either pushes it to the recipient's connection or
// leaves it in the recipient's mailbox. A message never overtakes mail already
// queued for the same recipient. Immediate delivery is best effort: a
// connection that drops right after the push may lose the message.
func (r *Router) Route(senderKey, recipientKey, body string) (Outcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.routeLocked(senderKey, recipientKey, body)
}

func (r *Router) routeLocked(senderKey, recipientKey, body string) (Outcome, error) {
	if body == "" {
		r.metrics.Routed(metrics.OutcomeRejected)
		return 0, ErrEmptyBody
	}

	if !r.registry.Exists(recipientKey) && r.policy == RejectUnknown {
		r.metrics.Routed(metrics.OutcomeRejected)
		r.logger.Debug().
			Str("sender", senderKey).
			Str("recipient", recipientKey).
			Msg("rejected message to unregistered recipient")
		return 0, ErrUnknownRecipient
	}

	msg := message.New(senderKey, recipientKey, body, r.now())

	conn, ok := r.presence.HandleFor(recipientKey)
	if ok && r.mailbox.Pending(recipientKey) > 0 {
		// Older mail goes out first; if any of it stays queued, so does msg.
		r.flushLocked(recipientKey)
		ok = r.mailbox.Pending(recipientKey) == 0
	}

	if ok {
		err := conn.Deliver(msg)
		if err == nil {
			r.metrics.Routed(metrics.OutcomeDelivered)
			r.logger.Debug().
				Str("message_id", msg.ID).
				Str("recipient", recipientKey).
				Str("conn", conn.ID()).
				Msg("delivered message")
			return DeliveredImmediately, nil
		}
		r.logger.Warn().
			Err(err).
			Str("message_id", msg.ID).
			Str("conn", conn.ID()).
			Msg("push failed, falling back to mailbox")
	}

	if err := r.mailbox.Enqueue(recipientKey, msg); err != nil {
		r.metrics.Routed(metrics.OutcomeRejected)
		return 0, err
	}

	r.metrics.Routed(metrics.OutcomeMailboxed)
	r.metrics.SetMailboxDepth(r.mailbox.Depth())
	r.logger.Debug().
		Str("message_id", msg.ID).
		Str("recipient", recipientKey).
		Int("pending", r.mailbox.Pending(recipientKey)).
		Msg("mailboxed message")
	return Mailboxed, nil
}

// FlushOnConnect pushes every mailboxed message for key, oldest first, to the
// connection key is bound to. It returns the number delivered.
func (r *Router) FlushOnConnect(key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flushLocked(key)
}

func (r *Router) flushLocked(key string) int {
	conn, ok := r.presence.HandleFor(key)
	if !ok {
		return 0
	}

	msgs := r.mailbox.Drain(key)
	if len(msgs) == 0 {
		return 0
	}

	delivered := 0
	for i, msg := range msgs {
		if err := conn.Deliver(msg); err != nil {
			rest := msgs[i:]
			r.mailbox.Requeue(key, rest)
			r.metrics.Requeued(len(rest))
			r.logger.Warn().
				Err(err).
				Str("recipient", key).
				Int("requeued", len(rest)).
				Msg("flush interrupted, requeued remaining messages")
			break
		}
		delivered++
	}

	r.metrics.Flushed(delivered)
	r.metrics.SetMailboxDepth(r.mailbox.Depth())
	r.logger.Debug().
		Str("recipient", key).
		Int("delivered", delivered).
		Msg("flushed mailbox")
	return delivered
}

type Stats struct {
	Users  int `json:"users"`
	Online int `json:"online"`
	Queued int `json:"queued"`
}

func (r *Router) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()

	return Stats{
		Users:  r.registry.Len(),
		Online: r.presence.Online(),
		Queued: r.mailbox.Depth(),
	}
}
