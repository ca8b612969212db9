// Package config loads the engine configuration from YAML.
//
// Missing fields take their defaults after parsing, so an empty file is a
// valid configuration:
//
//	variant: mechanical
//	preset: industrial
//	surface: {width: 1280, height: 720}
//	scheduler:
//	  cycle: 30m
//	  transition: 90s
//	assets:
//	  background: assets/factory.png
//	  lightmap: assets/factory_lights.png
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gogpu/envfx/effect"
	"github.com/gogpu/envfx/lightmap"
	"github.com/gogpu/envfx/params"
	"github.com/gogpu/envfx/phase"
	"github.com/gogpu/envfx/render"
)

// Variants.
const (
	VariantRain       = "rain"
	VariantMechanical = "mechanical"
)

// Defaults.
const (
	DefaultWidth     = 1920
	DefaultHeight    = 1080
	DefaultCacheSize = 16
)

// Config is the engine configuration.
type Config struct {
	// Variant selects the scene: "rain" or "mechanical".
	Variant string `yaml:"variant"`

	// Preset names the initial parameter vector within the variant, for
	// example "heavy" for rain.
	Preset string `yaml:"preset"`

	// Manual turns the phase scheduler off so that parameters come only
	// from user settings.
	Manual bool `yaml:"manual"`

	// Trigger enables threshold events such as lightning. Unset means
	// enabled.
	Trigger *bool `yaml:"trigger"`

	Surface   SurfaceConfig   `yaml:"surface"`
	Detection lightmap.Config `yaml:"detection"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Retry     RetryConfig     `yaml:"retry"`
	Assets    AssetConfig     `yaml:"assets"`

	Steam effect.SteamSettings `yaml:"steam"`
}

// SurfaceConfig is the drawable size in pixels.
type SurfaceConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// SchedulerConfig holds the phase scheduler timing.
type SchedulerConfig struct {
	Cycle      time.Duration `yaml:"cycle"`
	Transition time.Duration `yaml:"transition"`
	Tick       time.Duration `yaml:"tick"`
	StartDelay time.Duration `yaml:"start_delay"`

	// Location is an IANA time zone name for the hour of day. Empty
	// means local time.
	Location string `yaml:"location"`
}

// RetryConfig holds the context loss retry policy.
type RetryConfig struct {
	// MaxRetries is the number of rebuild attempts before a pipeline is
	// abandoned. Unset means render.MaxRetries.
	MaxRetries *int `yaml:"max_retries"`
}

// Attempts returns the configured retry budget.
func (r RetryConfig) Attempts() int {
	if r.MaxRetries == nil {
		return render.MaxRetries
	}
	return *r.MaxRetries
}

// AssetConfig locates the scene assets. Each entry is a file path or an
// http(s) URL.
type AssetConfig struct {
	Background string `yaml:"background"`
	Lightmap   string `yaml:"lightmap"`
	GearMap    string `yaml:"gear_map"`
	SteamMap   string `yaml:"steam_map"`

	// CacheSize is the number of decoded images kept in memory.
	CacheSize int `yaml:"cache_size"`
}

// Default returns the configuration used for an empty file.
func Default() *Config {
	c := &Config{}
	applyDefaults(c)
	return c
}

// Load reads and parses the YAML file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return c, nil
}

// Parse parses YAML configuration data.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	applyDefaults(&c)
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func applyDefaults(c *Config) {
	if c.Variant == "" {
		c.Variant = VariantRain
	}
	if c.Preset == "" {
		c.Preset = "normal"
		if c.Variant == VariantMechanical {
			c.Preset = "moderate"
		}
	}
	if c.Surface.Width == 0 {
		c.Surface.Width = DefaultWidth
	}
	if c.Surface.Height == 0 {
		c.Surface.Height = DefaultHeight
	}
	if c.Detection == (lightmap.Config{}) {
		c.Detection = lightmap.EffectConfig
	}
	if c.Scheduler.Cycle == 0 {
		c.Scheduler.Cycle = phase.DefaultCycle
	}
	if c.Scheduler.Transition == 0 {
		c.Scheduler.Transition = phase.DefaultTransition
	}
	if c.Scheduler.Tick == 0 {
		c.Scheduler.Tick = phase.DefaultTick
	}
	if c.Scheduler.StartDelay == 0 {
		c.Scheduler.StartDelay = phase.DefaultStartDelay
	}
	if c.Assets.CacheSize == 0 {
		c.Assets.CacheSize = DefaultCacheSize
	}
	if c.Steam == (effect.SteamSettings{}) {
		c.Steam = effect.DefaultSteamSettings
	}
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if c.Variant != VariantRain && c.Variant != VariantMechanical {
		return fmt.Errorf("unknown variant %q", c.Variant)
	}
	if _, ok := c.InitialParams(); !ok {
		return fmt.Errorf("unknown %s preset %q", c.Variant, c.Preset)
	}
	if c.Surface.Width <= 0 || c.Surface.Height <= 0 {
		return fmt.Errorf("surface size %dx%d must be positive", c.Surface.Width, c.Surface.Height)
	}
	d := c.Detection
	if d.MinRadius <= 0 || d.MinRadius > d.MaxRadius {
		return fmt.Errorf("detection radius range [%v, %v] is invalid", d.MinRadius, d.MaxRadius)
	}
	if d.RadiusScale <= 0 || d.MinDistance < 0 {
		return errors.New("detection radius scale must be positive and min distance non-negative")
	}
	s := c.Scheduler
	if s.Cycle < 0 || s.Transition < 0 || s.Tick < 0 || s.StartDelay < 0 {
		return errors.New("scheduler durations must not be negative")
	}
	if s.Transition > s.Cycle {
		return fmt.Errorf("transition %v is longer than the cycle %v", s.Transition, s.Cycle)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Retry.Attempts() < 0 {
		return fmt.Errorf("max_retries %d is negative", c.Retry.Attempts())
	}
	if c.Assets.CacheSize < 0 {
		return fmt.Errorf("cache_size %d is negative", c.Assets.CacheSize)
	}
	return nil
}

// TriggerEnabled reports whether threshold events are allowed.
func (c *Config) TriggerEnabled() bool {
	return c.Trigger == nil || *c.Trigger
}

// InitialParams returns the preset vector. Its trigger is cleared when
// threshold events are disabled.
func (c *Config) InitialParams() (params.Vector, bool) {
	v, ok := params.Preset(c.Variant + "/" + c.Preset)
	if !ok {
		return params.Vector{}, false
	}
	if !c.TriggerEnabled() {
		v.Trigger = false
	}
	return v, true
}

// Location resolves the scheduler time zone.
func (c *Config) Location() (*time.Location, error) {
	if c.Scheduler.Location == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Scheduler.Location)
	if err != nil {
		return nil, fmt.Errorf("scheduler location: %w", err)
	}
	return loc, nil
}

// SchedulerOptions converts the scheduler settings to phase options.
func (c *Config) SchedulerOptions() []phase.Option {
	opts := []phase.Option{
		phase.WithCycle(c.Scheduler.Cycle),
		phase.WithTransition(c.Scheduler.Transition),
		phase.WithTick(c.Scheduler.Tick),
		phase.WithStartDelay(c.Scheduler.StartDelay),
	}
	if loc, err := c.Location(); err == nil {
		opts = append(opts, phase.WithLocation(loc))
	}
	return opts
}
