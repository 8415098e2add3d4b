package delivery

import "sync"

// Target is the default inbox messages are posted to. It can be changed
// while the firehose runs; the next tick reads the new value.
type Target struct {
	mu       sync.RWMutex
	endpoint string
}

// NewTarget returns a Target set to endpoint, which may be empty.
func NewTarget(endpoint string) *Target {
	return &Target{endpoint: endpoint}
}

// Get returns the current endpoint.
func (t *Target) Get() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.endpoint
}

// Set replaces the endpoint.
func (t *Target) Set(endpoint string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.endpoint = endpoint
}
