package mailbox

import (
	"errors"
	"sync"

	"courier/internal/message"
)

var ErrMailboxFull = errors.New("mailbox full")

// Store keeps undelivered messages per recipient in insertion order.
// A queue exists only while it holds at least one message.
type Store struct {
	queues map[string][]message.Message
	limit  int
	depth  int
	mu     sync.Mutex
}

// NewStore creates a store. A limit of zero or less means queues are
// unbounded.
func NewStore(limit int) *Store {
	return &Store{
		queues: make(map[string][]message.Message),
		limit:  limit,
	}
}

func (s *Store) Enqueue(recipientKey string, msg message.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue := s.queues[recipientKey]
	if s.limit > 0 && len(queue) >= s.limit {
		return ErrMailboxFull
	}

	s.queues[recipientKey] = append(queue, msg)
	s.depth++
	return nil
}

// Requeue puts messages back in front of whatever is already queued for the
// recipient, preserving their order. It ignores the limit since the messages
// were already accepted once.
func (s *Store) Requeue(recipientKey string, msgs []message.Message) {
	if len(msgs) == 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.queues[recipientKey]
	queue := make([]message.Message, 0, len(msgs)+len(existing))
	queue = append(queue, msgs...)
	queue = append(queue, existing...)
	s.queues[recipientKey] = queue
	s.depth += len(msgs)
}

// Drain removes and returns the whole queue for the recipient.
func (s *Store) Drain(recipientKey string) []message.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	queue, ok := s.queues[recipientKey]
	if !ok {
		return []message.Message{}
	}

	delete(s.queues, recipientKey)
	s.depth -= len(queue)
	return queue
}

func (s *Store) Pending(recipientKey string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues[recipientKey])
}

// Depth is the total number of queued messages across all recipients.
func (s *Store) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth
}

func (s *Store) Recipients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queues)
}
