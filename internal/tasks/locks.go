package tasks

import "sync"

// PlaylistLocks hands out one mutex per local playlist id so a playlist has a single writer at a time.
//
// Entries are reference counted and removed once no caller holds or waits on them.
type PlaylistLocks struct {
	mu    sync.Mutex
	locks map[int64]*playlistLock
}

type playlistLock struct {
	mu   sync.Mutex
	refs int
}

// NewPlaylistLocks creates an empty lock table.
func NewPlaylistLocks() *PlaylistLocks {
	return &PlaylistLocks{locks: make(map[int64]*playlistLock)}
}

// Lock blocks until the caller owns playlistID and returns the matching unlock func.
func (l *PlaylistLocks) Lock(playlistID int64) func() {
	l.mu.Lock()
	entry, ok := l.locks[playlistID]
	if !ok {
		entry = &playlistLock{}
		l.locks[playlistID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()

	return func() {
		entry.mu.Unlock()

		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, playlistID)
		}
		l.mu.Unlock()
	}
}

func (l *PlaylistLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
