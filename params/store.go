package params

import (
	"fmt"
	"io"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/envfx/internal/applog"
)

// Store is the shared, concurrency-safe parameter store.
type Store struct {
	mu             sync.RWMutex
	v              Vector
	dynamic        bool
	triggerEnabled bool

	subMu  sync.Mutex
	nextID int
	subs   map[int]func(Vector)
}

// NewStore creates a Store holding initial with dynamic mode off and
// triggers enabled.
func NewStore(initial Vector) *Store {
	return &Store{
		v:              initial,
		triggerEnabled: true,
		subs:           make(map[int]func(Vector)),
	}
}

// Get returns the current vector.
func (s *Store) Get() Vector {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v
}

// Set replaces the vector with a user value. It fails with
// ErrDynamicActive while dynamic mode is on.
func (s *Store) Set(v Vector) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if s.dynamic {
		s.mu.Unlock()
		return ErrDynamicActive
	}
	s.v = v
	s.mu.Unlock()
	s.notify(v)
	return nil
}

// Publish replaces the vector with a scheduler value. It fails with
// ErrDynamicInactive while dynamic mode is off.
func (s *Store) Publish(v Vector) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if !s.dynamic {
		s.mu.Unlock()
		return ErrDynamicInactive
	}
	s.v = v
	s.mu.Unlock()
	s.notify(v)
	return nil
}

// Field returns a named field. See Fields for the accepted names.
func (s *Store) Field(name string) (float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.get(name)
}

// SetField writes a named field as a user value.
func (s *Store) SetField(name string, value float64) error {
	s.mu.Lock()
	if s.dynamic {
		s.mu.Unlock()
		return ErrDynamicActive
	}
	if err := s.v.set(name, value); err != nil {
		s.mu.Unlock()
		return err
	}
	v := s.v
	s.mu.Unlock()
	s.notify(v)
	return nil
}

// Dynamic reports whether dynamic mode is on.
func (s *Store) Dynamic() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dynamic
}

// SetDynamic switches dynamic mode.
func (s *Store) SetDynamic(on bool) {
	s.mu.Lock()
	changed := s.dynamic != on
	s.dynamic = on
	s.mu.Unlock()
	if changed {
		applog.Logger().Info("params: dynamic mode changed", "dynamic", on)
	}
}

// TriggerEnabled reports whether threshold events are allowed.
func (s *Store) TriggerEnabled() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.triggerEnabled
}

// SetTriggerEnabled allows or suppresses threshold events.
func (s *Store) SetTriggerEnabled(on bool) {
	s.mu.Lock()
	s.triggerEnabled = on
	s.mu.Unlock()
}

// Subscribe registers fn to be called with every accepted vector. fn runs
// on the writer's goroutine after the store lock is released. The returned
// function removes the subscription.
func (s *Store) Subscribe(fn func(Vector)) (cancel func()) {
	s.subMu.Lock()
	s.nextID++
	id := s.nextID
	s.subs[id] = fn
	s.subMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			s.subMu.Unlock()
		})
	}
}

func (s *Store) notify(v Vector) {
	s.subMu.Lock()
	fns := make([]func(Vector), 0, len(s.subs))
	for _, fn := range s.subs {
		fns = append(fns, fn)
	}
	s.subMu.Unlock()
	for _, fn := range fns {
		fn(v)
	}
}

// document is the persisted form of a Store.
type document struct {
	Dynamic        bool   `yaml:"dynamic"`
	TriggerEnabled bool   `yaml:"trigger_enabled"`
	Params         Vector `yaml:"params"`
}

// Save writes the store's settings as YAML.
func (s *Store) Save(w io.Writer) error {
	s.mu.RLock()
	doc := document{Dynamic: s.dynamic, TriggerEnabled: s.triggerEnabled, Params: s.v}
	s.mu.RUnlock()

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("params: encode: %w", err)
	}
	return enc.Close()
}

// Load reads settings written by Save. The vector is applied regardless
// of the current mode, then the mode flags are restored.
func (s *Store) Load(r io.Reader) error {
	doc := document{TriggerEnabled: true}
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("params: decode: %w", err)
	}
	if err := doc.Params.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	s.v = doc.Params
	s.dynamic = doc.Dynamic
	s.triggerEnabled = doc.TriggerEnabled
	s.mu.Unlock()
	s.notify(doc.Params)
	return nil
}
