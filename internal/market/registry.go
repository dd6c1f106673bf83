package market

import (
	"sort"
	"sync"

	"github.com/figmp/figmarket/internal/domain"
)

// Registry maps figurine identity to its Market. Lookup never fails:
// referencing an absent figurine lazily creates an empty market. The
// registry is the only writer of its markets.
type Registry struct {
	mu      sync.RWMutex
	markets map[string]*Market // Figurine.Key() → market
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		markets: make(map[string]*Market),
	}
}

// GetOrCreate returns the market for the given figurine, creating an
// empty one if it doesn't already exist. Calling it twice for the same
// figurine returns the same instance.
func (r *Registry) GetOrCreate(fig domain.Figurine) *Market {
	key := fig.Key()

	r.mu.RLock()
	m, ok := r.markets[key]
	r.mu.RUnlock()
	if ok {
		return m
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	// Double-check after acquiring write lock.
	if m, ok = r.markets[key]; ok {
		return m
	}
	m = NewMarket(fig)
	r.markets[key] = m
	return m
}

// Entries returns a point-in-time snapshot of all markets, ordered by
// figurine key for deterministic iteration. It never blocks mutating
// events beyond the brief map read.
func (r *Registry) Entries() []*Market {
	r.mu.RLock()
	out := make([]*Market, 0, len(r.markets))
	for _, m := range r.markets {
		out = append(out, m)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].fig.Key() < out[j].fig.Key()
	})
	return out
}

// Snapshot captures the full registry as its persisted shape. Each
// market is read-locked individually, so the snapshot is consistent
// per market.
func (r *Registry) Snapshot() map[string]State {
	entries := r.Entries()
	out := make(map[string]State, len(entries))
	for _, m := range entries {
		m.Mu.RLock()
		out[m.fig.Key()] = m.Snapshot()
		m.Mu.RUnlock()
	}
	return out
}

// Restore builds a registry from persisted state. Records whose keys
// don't parse as figurines are skipped and returned for the caller to
// log; one unreadable record must not discard every other market.
func Restore(state map[string]State) (*Registry, []string) {
	r := NewRegistry()
	var skipped []string
	for key, st := range state {
		fig, err := domain.ParseFigurineKey(key)
		if err != nil {
			skipped = append(skipped, key)
			continue
		}
		m := NewMarket(fig)
		m.restore(st)
		r.markets[key] = m
	}
	sort.Strings(skipped)
	return r, skipped
}
