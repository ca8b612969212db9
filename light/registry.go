package light

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/envfx/internal/applog"
)

// Common errors returned by Registry operations.
var (
	// ErrCapacityExceeded is returned when a light is added to a full registry.
	ErrCapacityExceeded = errors.New("light: registry at capacity")

	// ErrIndexOutOfRange is returned when an index does not address a stored light.
	ErrIndexOutOfRange = errors.New("light: index out of range")
)

// Option configures a Registry during creation.
type Option func(*options)

type options struct {
	capacity int
}

// WithCapacity sets the maximum number of lights the registry holds.
// Values below 1 are ignored.
func WithCapacity(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.capacity = n
		}
	}
}

// Registry is a bounded, ordered collection of lights.
//
// Len never exceeds Cap. Indices are stable except across Remove, which
// shifts every later light down by one.
//
// Registry is safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	lights   []Light
	capacity int
}

// NewRegistry creates an empty registry. The default capacity is MaxLights.
func NewRegistry(opts ...Option) *Registry {
	o := options{capacity: MaxLights}
	for _, opt := range opts {
		opt(&o)
	}
	return &Registry{
		lights:   make([]Light, 0, o.capacity),
		capacity: o.capacity,
	}
}

// Cap returns the registry capacity.
func (r *Registry) Cap() int {
	return r.capacity
}

// Len returns the number of stored lights.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.lights)
}

// Add appends l. It returns false, leaving the registry untouched, when the
// registry is full.
func (r *Registry) Add(l Light) bool {
	return r.TryAdd(l) == nil
}

// TryAdd is like Add but reports why the light was rejected.
func (r *Registry) TryAdd(l Light) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.addLocked(l)
}

func (r *Registry) addLocked(l Light) error {
	if len(r.lights) >= r.capacity {
		return fmt.Errorf("%w: capacity %d", ErrCapacityExceeded, r.capacity)
	}
	r.lights = append(r.lights, l)
	return nil
}

// Remove deletes the light at index i and shifts later lights down.
// It returns false if i is out of range.
func (r *Registry) Remove(i int) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.lights) {
		return false
	}
	r.lights = append(r.lights[:i], r.lights[i+1:]...)
	return true
}

// Update replaces the light at index i.
func (r *Registry) Update(i int, l Light) bool {
	return r.modify(i, func(dst *Light) { *dst = l })
}

// UpdateColor replaces only the color of the light at index i.
func (r *Registry) UpdateColor(i int, c [3]float32) bool {
	return r.modify(i, func(dst *Light) { dst.Color = c })
}

// UpdateRadius replaces only the radius of the light at index i.
func (r *Registry) UpdateRadius(i int, radius float32) bool {
	return r.modify(i, func(dst *Light) { dst.Radius = radius })
}

// UpdatePosition replaces only the position of the light at index i.
func (r *Registry) UpdatePosition(i int, p [2]float32) bool {
	return r.modify(i, func(dst *Light) { dst.Position = p })
}

func (r *Registry) modify(i int, fn func(*Light)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if i < 0 || i >= len(r.lights) {
		return false
	}
	fn(&r.lights[i])
	return true
}

// Get returns the light at index i.
func (r *Registry) Get(i int) (Light, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if i < 0 || i >= len(r.lights) {
		return Light{}, false
	}
	return r.lights[i], true
}

// Clear removes every light.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lights = r.lights[:0]
}

// Snapshot returns a copy of the stored lights in index order.
func (r *Registry) Snapshot() []Light {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Light, len(r.lights))
	copy(out, r.lights)
	return out
}

// Replace clears the registry and repopulates it from lights in one step,
// so readers never observe a partially filled set. Lights beyond capacity
// are dropped with a warning; the number dropped is returned.
func (r *Registry) Replace(lights []Light) (dropped int) {
	r.mu.Lock()
	r.lights = r.lights[:0]
	var lastErr error
	for _, l := range lights {
		if err := r.addLocked(l); err != nil {
			lastErr = err
			dropped++
		}
	}
	r.mu.Unlock()

	if dropped > 0 {
		applog.Logger().Warn("light: dropped lights beyond capacity",
			"dropped", dropped, "err", lastErr)
	}
	return dropped
}

// Upload writes the registry into u: slots [0, Len) receive the stored
// lights, the remaining slots up to u.Capacity() are zeroed, and the count
// is set. Lights beyond u.Capacity() are not written.
func (r *Registry) Upload(u UniformArray) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	n := min(len(r.lights), u.Capacity())
	for i := 0; i < n; i++ {
		u.SetLight(i, r.lights[i])
	}
	for i := n; i < u.Capacity(); i++ {
		u.SetLight(i, Light{})
	}
	u.SetCount(n)
}
