package allocation

import "sync"

// scopeLocks serialises mutating operations per marking cycle inside this process.
// Entries are dropped once no goroutine holds or waits for them.
type scopeLocks struct {
	mu    sync.Mutex
	items map[uint64]*scopeLock
}

type scopeLock struct {
	mu   sync.Mutex
	refs int
}

func newScopeLocks() *scopeLocks {
	return &scopeLocks{items: make(map[uint64]*scopeLock)}
}

func (l *scopeLocks) lock(cycleID uint64) (unlock func()) {
	l.mu.Lock()
	item, ok := l.items[cycleID]
	if !ok {
		item = &scopeLock{}
		l.items[cycleID] = item
	}
	item.refs++
	l.mu.Unlock()

	item.mu.Lock()
	return func() {
		item.mu.Unlock()

		l.mu.Lock()
		item.refs--
		if item.refs == 0 {
			delete(l.items, cycleID)
		}
		l.mu.Unlock()
	}
}
