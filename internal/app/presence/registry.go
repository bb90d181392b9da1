package presence

import (
	"slices"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/medeiros-dev/reservation-notifier/internal/domain/port/channel"
)

const shardCount = 32

type shard struct {
	mu      sync.RWMutex
	entries map[string][]channel.Channel
}

// Registry maps user ids to their live channels. Users are spread over
// independently locked shards, so traffic for one user does not block others
// that hash elsewhere. A user with no channels has no entry.
type Registry struct {
	shards [shardCount]shard
}

func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].entries = make(map[string][]channel.Channel)
	}
	return r
}

func (r *Registry) shardFor(userID string) *shard {
	return &r.shards[xxhash.Sum64String(userID)%shardCount]
}

// Register appends ch to userID's channels. Registering the same channel twice
// leaves a single entry.
func (r *Registry) Register(userID string, ch channel.Channel) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	chans := s.entries[userID]
	if slices.Contains(chans, ch) {
		return
	}
	s.entries[userID] = append(chans, ch)
}

// Unregister removes ch and drops the user entirely once no channel is left.
func (r *Registry) Unregister(userID string, ch channel.Channel) {
	s := r.shardFor(userID)
	s.mu.Lock()
	defer s.mu.Unlock()

	chans := s.entries[userID]
	i := slices.Index(chans, ch)
	if i < 0 {
		return
	}
	if len(chans) == 1 {
		delete(s.entries, userID)
		return
	}
	s.entries[userID] = slices.Delete(slices.Clone(chans), i, i+1)
}

// ChannelsFor returns a copy of userID's channels in registration order, or nil.
func (r *Registry) ChannelsFor(userID string) []channel.Channel {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.entries[userID])
}

func (r *Registry) CountFor(userID string) int {
	s := r.shardFor(userID)
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries[userID])
}

// Users returns how many users currently hold at least one channel.
func (r *Registry) Users() int {
	total := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		total += len(s.entries)
		s.mu.RUnlock()
	}
	return total
}

// Clear drops every entry.
func (r *Registry) Clear() {
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.Lock()
		s.entries = make(map[string][]channel.Channel)
		s.mu.Unlock()
	}
}
