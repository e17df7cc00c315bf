package message

import (
	"time"

	"github.com/google/uuid"
)

// Message is a single point-to-point text message. It is never mutated after
// the router stamps it.
type Message struct {
	ID           string    `json:"id"`
	SenderKey    string    `json:"sender_key"`
	RecipientKey string    `json:"recipient_key"`
	Body         string    `json:"body"`
	Timestamp    time.Time `json:"timestamp"`
}

func New(senderKey, recipientKey, body string, now time.Time) Message {
	return Message{
		ID:           uuid.NewString(),
		SenderKey:    senderKey,
		RecipientKey: recipientKey,
		Body:         body,
		Timestamp:    now,
	}
}

// Conn is a live connection handle that messages can be pushed to.
// Deliver must not block; it returns an error when the message could not be
// handed to the connection.
type Conn interface {
	ID() string
	Deliver(msg Message) error
}
