package transport

import "sync"

// Registry is the named peer to channel table a coordinator resolves
// send targets against.
type Registry struct {
	mu       sync.RWMutex
	channels map[string]Channel
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{channels: make(map[string]Channel)}
}

// Add associates peerID with ch, replacing any previous association.
func (r *Registry) Add(peerID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[peerID] = ch
}

// Get returns the channel to peerID, if one is registered.
func (r *Registry) Get(peerID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[peerID]
	return ch, ok
}

// Remove drops the association for peerID. The channel itself is not
// closed; its lifecycle belongs to whoever established it.
func (r *Registry) Remove(peerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, peerID)
}

// Peers returns the IDs of all registered peers.
func (r *Registry) Peers() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	peers := make([]string, 0, len(r.channels))
	for id := range r.channels {
		peers = append(peers, id)
	}
	return peers
}
