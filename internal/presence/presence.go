package presence

import (
	"sync"
	"time"
)

// Record describes one connected user.
type Record struct {
	UserID      int64
	Username    string
	ConnectedAt time.Time
}

// Tracker holds the in-memory online set. Map membership means "online";
// losing the map on restart degrades to "no one is online", never to data
// corruption, because the offline queue in the store stays authoritative.
type Tracker struct {
	mu    sync.RWMutex
	users map[int64]Record
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{users: make(map[int64]Record)}
}

// Connect marks a user online.
func (t *Tracker) Connect(userID int64, username string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.users[userID] = Record{
		UserID:      userID,
		Username:    username,
		ConnectedAt: time.Now(),
	}
}

// Disconnect removes a user from the online set.
func (t *Tracker) Disconnect(userID int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.users, userID)
}

// IsOnline reports whether the user currently holds a connection.
func (t *Tracker) IsOnline(userID int64) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.users[userID]
	return ok
}

// Online returns the ids of all connected users.
func (t *Tracker) Online() []int64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]int64, 0, len(t.users))
	for id := range t.users {
		ids = append(ids, id)
	}
	return ids
}
