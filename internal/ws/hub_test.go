package ws

import "testing"

func TestHubAddAndRemove(t *testing.T) {
	hub := NewHub(nil)

	hub.Add(1, nil, ConnInfo{ConnID: "a", UserID: 10})
	if len(hub.rooms) != 1 {
		t.Fatalf("expected room to be created")
	}
	if hub.Count(1) != 1 {
		t.Fatalf("expected one connection in room")
	}

	hub.Remove(1, nil)
	if len(hub.rooms) != 0 {
		t.Fatalf("expected empty room to be dropped")
	}
}

func TestHubRemoveUnknownRoom(t *testing.T) {
	hub := NewHub(nil)
	hub.Remove(99, nil)
	if hub.Count(99) != 0 {
		t.Fatalf("expected no connections")
	}
}

func TestNewConnID(t *testing.T) {
	a := newConnID()
	b := newConnID()
	if len(a) != 32 || a == b {
		t.Fatalf("expected distinct 32-char ids, got %q and %q", a, b)
	}
}
