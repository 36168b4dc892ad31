package session

import (
	"sync"
	"time"

	"github.com/bastiangx/choiceserve/pkg/choice"
)

// Channel names an output stream of a session.
type Channel string

const (
	ScoredChoices   Channel = "SCORED_CHOICES"
	ScoredFlags     Channel = "SCORED_FLAGS"
	SelectedChoices Channel = "SELECTED_CHOICES"
	ChoicesConfig   Channel = "CHOICES_CONFIG"
	CachedDefaults  Channel = "CACHED_DEFAULTS"
)

// Emitter receives every message a session produces.
type Emitter interface {
	Emit(ch Channel, payload any)
}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(ch Channel, payload any)

// Emit calls f(ch, payload).
func (f EmitterFunc) Emit(ch Channel, payload any) {
	f(ch, payload)
}

type discard struct{}

func (discard) Emit(Channel, any) {}

// ConfigPayload is the CHOICES_CONFIG message.
type ConfigPayload struct {
	Preload bool `json:"preload" msgpack:"preload"`
}

// DefaultsCache holds the last published default view. It may be shared by
// every session of a process.
type DefaultsCache struct {
	mu      sync.RWMutex
	results []choice.ScoredChoice
	updated time.Time
}

// NewDefaultsCache creates an empty cache.
func NewDefaultsCache() *DefaultsCache {
	return &DefaultsCache{}
}

// Publish replaces the cached view.
func (d *DefaultsCache) Publish(results []choice.ScoredChoice) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = results
	d.updated = time.Now()
}

// Get returns the cached view and when it was published.
func (d *DefaultsCache) Get() ([]choice.ScoredChoice, time.Time, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.results, d.updated, !d.updated.IsZero()
}
