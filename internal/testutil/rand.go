package testutil

import "sync"

// ScriptedRand replays a fixed list of values for IntN and Int64N, each
// reduced modulo n. When the script runs out it starts over.
type ScriptedRand struct {
	mu     sync.Mutex
	values []int64
	next   int
}

// NewScriptedRand returns a source that yields values in order.
func NewScriptedRand(values ...int64) *ScriptedRand {
	if len(values) == 0 {
		values = []int64{0}
	}
	return &ScriptedRand{values: values}
}

// IntN returns the next scripted value modulo n.
func (r *ScriptedRand) IntN(n int) int {
	return int(r.Int64N(int64(n)))
}

// Int64N returns the next scripted value modulo n.
func (r *ScriptedRand) Int64N(n int64) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	v := r.values[r.next%len(r.values)]
	r.next++
	return v % n
}
