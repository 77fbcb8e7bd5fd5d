package sapling

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds the settings shared by editors, the player and the CLI.
type Config struct {
	History  HistoryConfig  `yaml:"history"`
	Dialogue DialogueConfig `yaml:"dialogue"`
	Play     PlayConfig     `yaml:"play"`
	Storage  StorageConfig  `yaml:"storage"`
}

// HistoryConfig bounds the undo history.
type HistoryConfig struct {
	Limit int `yaml:"limit"`
}

// DialogueConfig configures reveal speed and the page budget. Width and
// Lines override the budget the panel would give when non-zero.
type DialogueConfig struct {
	GlyphDelay float64     `yaml:"glyph_delay"`
	Width      float64     `yaml:"width"`
	Lines      int         `yaml:"lines"`
	Panel      PanelConfig `yaml:"panel"`
}

// PanelConfig is the YAML form of PanelStyle.
type PanelConfig struct {
	Width      int      `yaml:"width"`
	Height     int      `yaml:"height"`
	Padding    float64  `yaml:"padding"`
	Background HexColor `yaml:"background"`
	Indicator  HexColor `yaml:"indicator"`
	FadeIn     float64  `yaml:"fade_in"`
}

// PlayConfig configures the player runtime.
type PlayConfig struct {
	TileSize int          `yaml:"tile_size"`
	Screen   ScreenConfig `yaml:"screen"`
}

// ScreenConfig is the logical screen size in pixels.
type ScreenConfig struct {
	Width  int `yaml:"width"`
	Height int `yaml:"height"`
}

// StorageConfig locates the local bundle store.
type StorageConfig struct {
	Path string `yaml:"path"`
	Key  string `yaml:"key"`
}

// HexColor is a Color written as "#rrggbb" or "#rrggbbaa" in YAML.
type HexColor Color

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *HexColor) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("color: %w", err)
	}
	col, err := ParseHexColor(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*c = HexColor(col)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (c HexColor) MarshalYAML() (any, error) {
	return Color(c).Hex(), nil
}

// DefaultConfig returns the built-in settings.
func DefaultConfig() *Config {
	panel := DefaultPanelStyle()
	return &Config{
		History: HistoryConfig{Limit: DefaultHistoryLimit},
		Dialogue: DialogueConfig{
			GlyphDelay: DefaultGlyphDelay,
			Panel: PanelConfig{
				Width:      panel.Width,
				Height:     panel.Height,
				Padding:    panel.Padding,
				Background: HexColor(panel.Background),
				Indicator:  HexColor(panel.Indicator),
				FadeIn:     float64(panel.FadeIn),
			},
		},
		Play: PlayConfig{
			TileSize: 8,
			Screen:   ScreenConfig{Width: 256, Height: 256},
		},
		Storage: StorageConfig{
			Path: "sapling.db",
			Key:  "sapling/bundle",
		},
	}
}

// LoadConfig reads a YAML file over DefaultConfig.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("sapling: read config %s: %w", path, err)
	}
	cfg, err := ParseConfig(data)
	if err != nil {
		return nil, fmt.Errorf("sapling: config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig decodes YAML over DefaultConfig. Unknown keys are an error.
// Empty input yields the defaults.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that values are in range.
func (c *Config) Validate() error {
	if c.History.Limit < 2 {
		return fmt.Errorf("history.limit must be >= 2, got %d", c.History.Limit)
	}
	if c.Dialogue.GlyphDelay < 0 {
		return fmt.Errorf("dialogue.glyph_delay must not be negative")
	}
	if c.Dialogue.Width < 0 || c.Dialogue.Lines < 0 {
		return fmt.Errorf("dialogue.width and dialogue.lines must not be negative")
	}
	p := c.Dialogue.Panel
	if p.Width <= 0 || p.Height <= 0 {
		return fmt.Errorf("dialogue.panel size must be positive, got %dx%d", p.Width, p.Height)
	}
	if 2*p.Padding >= float64(p.Width) || 2*p.Padding >= float64(p.Height) {
		return fmt.Errorf("dialogue.panel.padding %v leaves no room for text", p.Padding)
	}
	if c.Play.TileSize <= 0 {
		return fmt.Errorf("play.tile_size must be > 0")
	}
	if c.Play.Screen.Width <= 0 || c.Play.Screen.Height <= 0 {
		return fmt.Errorf("play.screen size must be positive")
	}
	return nil
}

// PanelStyle converts the panel settings.
func (c *Config) PanelStyle() PanelStyle {
	p := c.Dialogue.Panel
	return PanelStyle{
		Width:      p.Width,
		Height:     p.Height,
		Padding:    p.Padding,
		Background: Color(p.Background),
		Indicator:  Color(p.Indicator),
		FadeIn:     float32(p.FadeIn),
	}
}

// DialogueOptions returns player options whose layout fits the panel for
// font, with Width and Lines applied on top. A nil font uses
// DefaultMonoFont.
func (c *Config) DialogueOptions(font Font) DialogueOptions {
	layout := NewDialogueRenderer(c.PanelStyle(), font).Layout()
	if c.Dialogue.Width > 0 {
		layout.Width = c.Dialogue.Width
	}
	if c.Dialogue.Lines > 0 {
		layout.Lines = c.Dialogue.Lines
	}
	return DialogueOptions{Layout: layout, GlyphDelay: c.Dialogue.GlyphDelay}
}
