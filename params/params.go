// Package params holds the shared parameter vector that effects read every
// frame.
//
// A Store has two mutually exclusive write paths. While dynamic mode is on,
// only the phase scheduler writes, through Publish. While it is off, only
// user settings write, through Set and SetField.
package params

import (
	"errors"
	"fmt"
	"math"
	"reflect"
)

var (
	// ErrDynamicActive is returned by user writes while dynamic mode is on.
	ErrDynamicActive = errors.New("params: dynamic mode is active")

	// ErrDynamicInactive is returned by Publish while dynamic mode is off.
	ErrDynamicInactive = errors.New("params: dynamic mode is off")

	// ErrUnknownField is returned for a field name that does not exist.
	ErrUnknownField = errors.New("params: unknown field")

	// ErrNotFinite is returned for NaN or infinite values.
	ErrNotFinite = errors.New("params: value is not finite")
)

// Vector is the parameter set consumed by effects. Fields not used by an
// effect are ignored by it.
type Vector struct {
	Intensity float32 `yaml:"intensity"`
	Scale     float32 `yaml:"scale"`
	Speed     float32 `yaml:"speed"`
	Volume    float32 `yaml:"volume"`

	// Ambient is the secondary atmosphere strength: mist for rain,
	// steam for the mechanical scene.
	Ambient float32 `yaml:"ambient"`

	// Angle is the directional drift in degrees: wind for rain, gear
	// variation for the mechanical scene.
	Angle float32 `yaml:"angle"`

	// Tarnish is the brass tarnish level in [0,1].
	Tarnish float32 `yaml:"tarnish"`

	// Trigger enables threshold events such as thunder flashes.
	Trigger bool `yaml:"trigger"`
}

// Validate reports an error if any numeric field is NaN or infinite.
func (v Vector) Validate() error {
	for name, f := range map[string]float32{
		"intensity": v.Intensity,
		"scale":     v.Scale,
		"speed":     v.Speed,
		"volume":    v.Volume,
		"ambient":   v.Ambient,
		"angle":     v.Angle,
		"tarnish":   v.Tarnish,
	} {
		if math.IsNaN(float64(f)) || math.IsInf(float64(f), 0) {
			return fmt.Errorf("%w: %s=%v", ErrNotFinite, name, f)
		}
	}
	return nil
}

// fieldIndex maps yaml field names to struct field indices.
var fieldIndex = func() map[string]int {
	t := reflect.TypeOf(Vector{})
	m := make(map[string]int, t.NumField())
	for i := 0; i < t.NumField(); i++ {
		m[t.Field(i).Tag.Get("yaml")] = i
	}
	return m
}()

// Fields returns the names accepted by Store.Field and Store.SetField.
func Fields() []string {
	return []string{"intensity", "scale", "speed", "volume", "ambient", "angle", "tarnish", "trigger"}
}

// get returns the named field as a float64. Booleans read as 0 or 1.
func (v *Vector) get(name string) (float64, error) {
	i, ok := fieldIndex[name]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	f := reflect.ValueOf(v).Elem().Field(i)
	if f.Kind() == reflect.Bool {
		if f.Bool() {
			return 1, nil
		}
		return 0, nil
	}
	return f.Float(), nil
}

// set writes the named field. Booleans are true for any non-zero value.
func (v *Vector) set(name string, value float64) error {
	i, ok := fieldIndex[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownField, name)
	}
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return fmt.Errorf("%w: %s=%v", ErrNotFinite, name, value)
	}
	f := reflect.ValueOf(v).Elem().Field(i)
	if f.Kind() == reflect.Bool {
		f.SetBool(value != 0)
		return nil
	}
	f.SetFloat(value)
	return nil
}
