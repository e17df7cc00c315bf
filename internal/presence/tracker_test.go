package presence

import (
	"errors"
	"testing"

	"courier/internal/message"
)

type fakeDirectory map[string]bool

func (d fakeDirectory) Exists(key string) bool {
	return d[key]
}

type fakeConn struct {
	id string
}

func (c *fakeConn) ID() string { return c.id }
func (c *fakeConn) Deliver(message.Message) error { return nil }

func newTestTracker() *Tracker {
	return NewTracker(fakeDirectory{"a@x.com": true, "b@x.com": true})
}

func TestBind_UnknownIdentity(t *testing.T) {
	tr := newTestTracker()

	err := tr.Bind("nobody@x.com", &fakeConn{id: "c1"})
	if !errors.Is(err, ErrUnknownIdentity) {
		t.Fatalf("Expected ErrUnknownIdentity, got %v", err)
	}
	if tr.Online() != 0 {
		t.Errorf("Failed bind changed presence: online=%d", tr.Online())
	}
}

func TestBindUnbind(t *testing.T) {
	tr := newTestTracker()
	conn := &fakeConn{id: "c1"}

	if tr.IsReachable("a@x.com") {
		t.Fatal("Identity should start offline")
	}

	if err := tr.Bind("a@x.com", conn); err != nil {
		t.Fatalf("Bind failed: %v", err)
	}
	if !tr.IsReachable("a@x.com") {
		t.Fatal("Expected identity to be reachable after bind")
	}
	if h, ok := tr.HandleFor("a@x.com"); !ok || h.ID() != "c1" {
		t.Fatalf("Unexpected handle: %v %v", h, ok)
	}

	key, ok := tr.Unbind(conn)
	if !ok || key != "a@x.com" {
		t.Fatalf("Unbind = %q %v, want a@x.com true", key, ok)
	}
	if tr.IsReachable("a@x.com") {
		t.Error("Expected identity offline after unbind")
	}
	if _, ok := tr.HandleFor("a@x.com"); ok {
		t.Error("Handle should be cleared after unbind")
	}
}

func TestUnbind_NeverBound(t *testing.T) {
	tr := newTestTracker()

	if _, ok := tr.Unbind(&fakeConn{id: "ghost"}); ok {
		t.Error("Unbind of unbound connection should report false")
	}
}

func TestRebind_OldHandleBecomesStale(t *testing.T) {
	tr := newTestTracker()
	oldConn := &fakeConn{id: "old"}
	newConn := &fakeConn{id: "new"}

	tr.Bind("a@x.com", oldConn)
	tr.Bind("a@x.com", newConn)

	if h, _ := tr.HandleFor("a@x.com"); h.ID() != "new" {
		t.Fatalf("Expected new handle, got %s", h.ID())
	}

	// The old connection's disconnect arrives late and must not take the
	// identity offline.
	if _, ok := tr.Unbind(oldConn); ok {
		t.Error("Stale handle unbind should be a no-op")
	}
	if !tr.IsReachable("a@x.com") {
		t.Error("Identity went offline after stale unbind")
	}
}

func TestRebind_ConnSwitchesIdentity(t *testing.T) {
	tr := newTestTracker()
	conn := &fakeConn{id: "c1"}

	tr.Bind("a@x.com", conn)
	tr.Bind("b@x.com", conn)

	if tr.IsReachable("a@x.com") {
		t.Error("Previous identity should be offline once the connection rebinds")
	}
	if got, ok := tr.HandleFor("b@x.com"); !ok || got != conn {
		t.Error("Connection should be bound to the new identity")
	}
	if tr.Online() != 1 {
		t.Errorf("Expected 1 online, got %d", tr.Online())
	}
	if key, ok := tr.Unbind(conn); !ok || key != "b@x.com" {
		t.Errorf("Unbind = %q %v, want b@x.com true", key, ok)
	}
}
