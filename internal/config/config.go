package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
)

const (
	LoadOrderExternalFirst = "external-first"
	LoadOrderCustomFirst   = "custom-first"

	OutlineLeft  = "left"
	OutlineRight = "right"

	ThemeDark  = "dark"
	ThemeLight = "light"

	MinOutlineWidth = 150
	MaxOutlineWidth = 500
)

type Config struct {
	ExternalCSSFiles     []string `json:"external_css_files"`
	CustomCSS            string   `json:"custom_css"`
	CSSLoadOrder         string   `json:"css_load_order"`
	ImageSaveFolder      string   `json:"image_save_folder"`
	UseThemeColor        bool     `json:"use_theme_color"`
	ShowOutlineByDefault bool     `json:"show_outline_by_default"`
	OutlinePosition      string   `json:"outline_position"`
	OutlineWidth         int      `json:"outline_width"`
	EnableOutlineResize  *bool    `json:"enable_outline_resize,omitempty"`
	ShowToolbar          *bool    `json:"show_toolbar,omitempty"`
	Theme                string   `json:"theme"`
	ListenAddr           string   `json:"listen_addr"`
}

// Changes reports which groups of settings differ between two configs.
type Changes struct {
	CSS     bool
	Outline bool
	Toolbar bool
}

func (c Changes) Any() bool {
	return c.CSS || c.Outline || c.Toolbar
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "mdedit"), nil
}

func Path() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.json"), nil
}

func DBPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "state.db"), nil
}

func LogPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "mdedit.log"), nil
}

func Load() (*Config, error) {
	path, err := Path()
	if err != nil {
		return nil, err
	}
	return LoadFrom(path)
}

// LoadFrom reads the config at path. A missing file yields the defaults.
func LoadFrom(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		cfg := defaultConfig()
		cfg.applyEnv()
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	cfg.applyEnv()
	return &cfg, nil
}

func (c *Config) Save() error {
	path, err := Path()
	if err != nil {
		return err
	}
	return c.SaveTo(path)
}

func (c *Config) SaveTo(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	data = append(data, '\n')
	return os.WriteFile(path, data, 0600)
}

func (c *Config) ApplyDefaults() {
	if c.CSSLoadOrder != LoadOrderCustomFirst {
		c.CSSLoadOrder = LoadOrderExternalFirst
	}
	if c.ImageSaveFolder == "" {
		c.ImageSaveFolder = "assets"
	}
	if c.OutlinePosition != OutlineRight {
		c.OutlinePosition = OutlineLeft
	}
	if c.OutlineWidth == 0 {
		c.OutlineWidth = 300
	}
	if c.EnableOutlineResize == nil {
		c.EnableOutlineResize = boolPtr(true)
	}
	if c.ShowToolbar == nil {
		c.ShowToolbar = boolPtr(true)
	}
	if c.Theme != ThemeLight {
		c.Theme = ThemeDark
	}
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:7412"
	}
}

func (c *Config) applyEnv() {
	if addr := strings.TrimSpace(os.Getenv("MDEDIT_ADDR")); addr != "" {
		c.ListenAddr = addr
	}
	switch strings.ToLower(strings.TrimSpace(os.Getenv("MDEDIT_THEME"))) {
	case ThemeDark:
		c.Theme = ThemeDark
	case ThemeLight:
		c.Theme = ThemeLight
	}
}

func (c *Config) OutlineResizeEnabled() bool {
	return c.EnableOutlineResize == nil || *c.EnableOutlineResize
}

func (c *Config) ToolbarVisible() bool {
	return c.ShowToolbar == nil || *c.ShowToolbar
}

// EditorOptions is the config as seen by the editor widget, keyed the way
// the widget options are.
func (c *Config) EditorOptions() map[string]any {
	files := make([]any, 0, len(c.ExternalCSSFiles))
	for _, f := range c.ExternalCSSFiles {
		files = append(files, f)
	}
	return map[string]any{
		"externalCssFiles":     files,
		"customCss":            c.CustomCSS,
		"cssLoadOrder":         c.CSSLoadOrder,
		"imageSaveFolder":      c.ImageSaveFolder,
		"useVscodeThemeColor":  c.UseThemeColor,
		"showOutlineByDefault": c.ShowOutlineByDefault,
		"outlinePosition":      c.OutlinePosition,
		"outlineWidth":         c.OutlineWidth,
		"enableOutlineResize":  c.OutlineResizeEnabled(),
		"showToolbar":          c.ToolbarVisible(),
	}
}

// UpdateOutlineWidth stores a clamped outline width and returns the stored value.
func (c *Config) UpdateOutlineWidth(width int) int {
	c.OutlineWidth = ClampOutlineWidth(width)
	return c.OutlineWidth
}

func ClampOutlineWidth(width int) int {
	return max(MinOutlineWidth, min(MaxOutlineWidth, width))
}

// Diff classifies the settings that changed from old to updated.
func Diff(old, updated *Config) Changes {
	var ch Changes
	if old == nil || updated == nil {
		return Changes{CSS: true, Outline: true, Toolbar: true}
	}
	ch.CSS = !slices.Equal(old.ExternalCSSFiles, updated.ExternalCSSFiles) ||
		old.CustomCSS != updated.CustomCSS ||
		old.CSSLoadOrder != updated.CSSLoadOrder
	ch.Outline = old.ShowOutlineByDefault != updated.ShowOutlineByDefault ||
		old.OutlinePosition != updated.OutlinePosition ||
		old.OutlineWidth != updated.OutlineWidth ||
		old.UseThemeColor != updated.UseThemeColor
	ch.Toolbar = old.ToolbarVisible() != updated.ToolbarVisible()
	return ch
}

func defaultConfig() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

func boolPtr(v bool) *bool {
	return &v
}
