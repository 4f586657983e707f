package light

import (
	"errors"
	"io"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
)

// Registry holds discovered lights keyed by id
type Registry struct {
	mu     sync.RWMutex
	lights map[string]Light
}

// NewRegistry creates a registry populated with lights.
// Later duplicates of an id are ignored.
func NewRegistry(lights ...Light) *Registry {
	r := &Registry{lights: make(map[string]Light)}
	for _, l := range lights {
		r.Add(l)
	}
	return r
}

// Add stores l and reports whether it was new
func (r *Registry) Add(l Light) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.lights[l.ID()]; ok {
		return false
	}
	r.lights[l.ID()] = l
	return true
}

// Merge adds every new light and releases duplicates of registered ids.
// It returns the number of lights added.
func (r *Registry) Merge(lights []Light) int {
	added := 0
	for _, l := range lights {
		if r.Add(l) {
			added++
			continue
		}
		if err := Release(l); err != nil {
			log.Debug().Err(err).Str("id", l.ID()).Msg("Failed to release duplicate light")
		}
	}
	return added
}

// Get returns the light with the given id
func (r *Registry) Get(id string) (Light, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	l, ok := r.lights[id]
	return l, ok
}

// Len returns the number of registered lights
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lights)
}

// All returns every light sorted by id
func (r *Registry) All() []Light {
	r.mu.RLock()
	defer r.mu.RUnlock()
	lights := make([]Light, 0, len(r.lights))
	for _, l := range r.lights {
		lights = append(lights, l)
	}
	sort.Slice(lights, func(i, j int) bool {
		return lights[i].ID() < lights[j].ID()
	})
	return lights
}

// Close releases transport resources held by lights that own any and empties the registry
func (r *Registry) Close() error {
	r.mu.Lock()
	lights := r.lights
	r.lights = make(map[string]Light)
	r.mu.Unlock()

	var errs []error
	for _, l := range lights {
		if err := Release(l); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Release closes l if it holds transport resources
func Release(l Light) error {
	if c, ok := l.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
