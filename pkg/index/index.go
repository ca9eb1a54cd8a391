package index

import "sync"

// PhantomIndex remembers which server id replaced each phantom id. It lives
// for the process lifetime only.
type PhantomIndex struct {
	mappings map[string]string
	mu       sync.RWMutex
}

func NewPhantomIndex() *PhantomIndex {
	return &PhantomIndex{mappings: make(map[string]string)}
}

func (idx *PhantomIndex) Get(phantomID string) string {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return idx.mappings[phantomID]
}

// Resolve returns the server id for phantomID, or phantomID itself when no
// create for it has completed.
func (idx *PhantomIndex) Resolve(phantomID string) string {
	if id := idx.Get(phantomID); id != "" {
		return id
	}
	return phantomID
}

func (idx *PhantomIndex) Set(phantomID, serverID string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	idx.mappings[phantomID] = serverID
}

// Remove forgets id, whether it is a phantom id or the server id that
// replaced one.
func (idx *PhantomIndex) Remove(id string) {
	idx.mu.Lock()
	defer idx.mu.Unlock()
	delete(idx.mappings, id)
	for phantomID, serverID := range idx.mappings {
		if serverID == id {
			delete(idx.mappings, phantomID)
		}
	}
}

func (idx *PhantomIndex) Len() int {
	idx.mu.RLock()
	defer idx.mu.RUnlock()
	return len(idx.mappings)
}
