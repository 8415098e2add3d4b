package testutil

import (
	"fmt"
	"sync"
)

// SeqGUIDs hands out predictable 32-hex-digit GUIDs: ...0001, ...0002 and
// so on. The same test run always mints the same identifiers, which keeps
// golden files stable.
//
// Thread-safety: Generate is safe for concurrent use.
type SeqGUIDs struct {
	mu  sync.Mutex
	seq int
}

// Generate returns the next GUID in sequence.
func (g *SeqGUIDs) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.seq++
	return fmt.Sprintf("%032x", g.seq)
}

// Count returns how many GUIDs have been generated.
func (g *SeqGUIDs) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.seq
}
