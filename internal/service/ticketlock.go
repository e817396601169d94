package service

import "sync"

// ticketLocks serializes mutations per ticket ID. Entries are
// reference-counted and removed as soon as the last holder releases, so
// the map never grows past the number of in-flight mutations.
type ticketLocks struct {
	mu      sync.Mutex
	entries map[string]*ticketLock
}

type ticketLock struct {
	mu   sync.Mutex
	refs int
}

func newTicketLocks() *ticketLocks {
	return &ticketLocks{entries: make(map[string]*ticketLock)}
}

// acquire blocks until the ticket's lock is held and returns the
// release function.
func (l *ticketLocks) acquire(ticketID string) func() {
	l.mu.Lock()
	entry, ok := l.entries[ticketID]
	if !ok {
		entry = &ticketLock{}
		l.entries[ticketID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.entries, ticketID)
		}
		l.mu.Unlock()
	}
}
