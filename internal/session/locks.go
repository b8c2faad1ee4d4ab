package session

import "sync"

// Locks serializes draft processing per user id. Two messages from the same
// user are applied strictly in arrival order; messages from different users
// proceed concurrently. Entries are reference counted and dropped once the
// last holder releases, so the map stays bounded by in-flight users rather
// than growing one entry per phone number forever.
type Locks struct {
	mu    sync.Mutex
	users map[string]*userLock
}

type userLock struct {
	mu   sync.Mutex
	refs int
}

// NewLocks creates a new Locks instance
func NewLocks() *Locks {
	return &Locks{users: make(map[string]*userLock)}
}

// Lock acquires the lock for a user and returns the matching unlock.
func (l *Locks) Lock(userID string) func() {
	l.mu.Lock()
	u, ok := l.users[userID]
	if !ok {
		u = &userLock{}
		l.users[userID] = u
	}
	u.refs++
	l.mu.Unlock()

	u.mu.Lock()
	return func() {
		u.mu.Unlock()
		l.mu.Lock()
		u.refs--
		if u.refs == 0 {
			delete(l.users, userID)
		}
		l.mu.Unlock()
	}
}
