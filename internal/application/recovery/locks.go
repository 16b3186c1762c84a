package recovery

import (
	"sort"
	"sync"
)

// groupLocks serializes allocator passes that touch the same field or
// sharing group within one process. Keys are locked in sorted order so
// two passes sharing a group can never deadlock. Cross-process
// serialization relies on optimistic locking at save time.
type groupLocks struct {
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func newGroupLocks() *groupLocks {
	return &groupLocks{locks: make(map[string]*sync.Mutex)}
}

func (g *groupLocks) get(key string) *sync.Mutex {
	g.mu.Lock()
	defer g.mu.Unlock()
	l, ok := g.locks[key]
	if !ok {
		l = &sync.Mutex{}
		g.locks[key] = l
	}
	return l
}

// lockAll acquires every key in sorted order and returns the matching
// unlock function
func (g *groupLocks) lockAll(keys []string) func() {
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.Strings(sorted)

	held := make([]*sync.Mutex, 0, len(sorted))
	for _, key := range sorted {
		l := g.get(key)
		l.Lock()
		held = append(held, l)
	}
	return func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Unlock()
		}
	}
}
