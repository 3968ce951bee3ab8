// Package config handles readmark configuration from YAML files.
package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/kittclouds/readmark/pkg/geometry"
	"github.com/kittclouds/readmark/pkg/overlay"
	"github.com/kittclouds/readmark/pkg/pagerect"
	"github.com/kittclouds/readmark/pkg/structural"
	"github.com/kittclouds/readmark/pkg/style"
)

// Config is the top-level configuration.
type Config struct {
	Overlay    OverlayConfig    `yaml:"overlay"`
	Structural StructuralConfig `yaml:"structural"`
	Geometry   GeometryConfig   `yaml:"geometry"`
	Debounce   DebounceConfig   `yaml:"debounce"`
	Store      StoreConfig      `yaml:"store"`
	Log        LogConfig        `yaml:"log"`
}

// OverlayConfig controls how marks look.
type OverlayConfig struct {
	HighlightOpacity   float64           `yaml:"highlight_opacity"`
	UnderlineThickness float64           `yaml:"underline_thickness"`
	DefaultColor       string            `yaml:"default_color"`
	Palette            map[string]string `yaml:"palette"`
	MarkClass          string            `yaml:"mark_class"`
}

// StructuralConfig controls web snapshot locators.
type StructuralConfig struct {
	SnippetMaxLen int `yaml:"snippet_max_len"` // UTF-16 units
}

// GeometryConfig controls rect handling.
type GeometryConfig struct {
	Epsilon    float64 `yaml:"epsilon"`
	MergeLines bool    `yaml:"merge_lines"`
	MergeGap   float64 `yaml:"merge_gap"`
}

// DebounceConfig controls re-resolve batching.
type DebounceConfig struct {
	Window     time.Duration `yaml:"window"`
	MaxPending int           `yaml:"max_pending"`
}

// StoreConfig locates persisted state.
type StoreConfig struct {
	DSN        string `yaml:"dsn"`
	ContentDir string `yaml:"content_dir"`
}

// LogConfig controls logging.
type LogConfig struct {
	Level string `yaml:"level"` // debug | info | warn | error
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML (or JSON) configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	def := style.Default()
	if c.Overlay.HighlightOpacity <= 0 || c.Overlay.HighlightOpacity > 1 {
		c.Overlay.HighlightOpacity = def.HighlightOpacity
	}
	if c.Overlay.UnderlineThickness <= 0 {
		c.Overlay.UnderlineThickness = def.LineThickness
	}
	if c.Overlay.DefaultColor == "" {
		c.Overlay.DefaultColor = def.DefaultColor
	}
	if c.Overlay.MarkClass == "" {
		c.Overlay.MarkClass = def.MarkClass
	}
	palette := def.Palette
	for name, hex := range c.Overlay.Palette {
		palette[name] = hex
	}
	c.Overlay.Palette = palette

	if c.Structural.SnippetMaxLen <= 0 {
		c.Structural.SnippetMaxLen = structural.DefaultSnippetLen
	}
	if c.Geometry.Epsilon <= 0 {
		c.Geometry.Epsilon = geometry.DefaultEpsilon
	}
	if c.Geometry.MergeGap <= 0 {
		c.Geometry.MergeGap = 1
	}
	if c.Debounce.Window <= 0 {
		c.Debounce.Window = 150 * time.Millisecond
	}
	if c.Debounce.MaxPending <= 0 {
		c.Debounce.MaxPending = 64
	}
	if c.Store.DSN == "" {
		c.Store.DSN = ":memory:"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
}

// Style builds the paint style.
func (c *Config) Style() style.Style {
	return style.Style{
		MarkClass:        c.Overlay.MarkClass,
		DefaultColor:     c.Overlay.DefaultColor,
		Palette:          c.Overlay.Palette,
		HighlightOpacity: c.Overlay.HighlightOpacity,
		LineThickness:    c.Overlay.UnderlineThickness,
	}
}

// Scheduler builds the debounce settings.
func (c *Config) Scheduler() overlay.SchedulerConfig {
	return overlay.SchedulerConfig{Window: c.Debounce.Window, MaxPending: c.Debounce.MaxPending}
}

// PageEncoding builds the page selection encoder options.
func (c *Config) PageEncoding() pagerect.EncodeOptions {
	return pagerect.EncodeOptions{MergeLines: c.Geometry.MergeLines, MergeGap: c.Geometry.MergeGap}
}
