package internal

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/starford/ter/internal/livereload"
	"github.com/starford/ter/internal/site"
)

// Log formats.
const (
	LogFormatJSON = "json"
	LogFormatText = "text"
)

// Config represents the application configuration.
type Config struct {
	App        ApplicationConfig `yaml:"app"`
	Site       SiteConfig        `yaml:"site"`
	LiveReload LiveReloadConfig  `yaml:"livereload"`
	Watch      WatchConfig       `yaml:"watch"`
	Journal    JournalConfig     `yaml:"journal"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Site.Validate(); err != nil {
		return err
	}
	return c.LiveReload.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel  slog.Level `yaml:"log_level"`
	LogFormat string     `yaml:"log_format"`
	HTTP      HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
	if c.LogFormat == "" {
		c.LogFormat = LogFormatJSON
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.LogFormat, validation.In(LogFormatJSON, LogFormatText)),
	); err != nil {
		return err
	}
	return c.HTTP.Validate()
}

// HTTPConfig holds HTTP server configuration.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// Address returns HTTP server address.
func (c *HTTPConfig) Address() string {
	return fmt.Sprintf(":%d", c.Port)
}

// Validate validates the HTTP configuration.
func (c *HTTPConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Port, validation.Required, validation.Min(1), validation.Max(65535)),
	)
}

// AuthorConfig identifies the site author.
type AuthorConfig struct {
	Name  string `yaml:"name"`
	Email string `yaml:"email"`
	URL   string `yaml:"url"`
}

// SiteConfig describes the site being generated and where it lives.
type SiteConfig struct {
	Title        string       `yaml:"title"`
	Description  string       `yaml:"description"`
	BaseURL      string       `yaml:"base_url"`
	RootCrumb    string       `yaml:"root_crumb"`
	InputPath    string       `yaml:"input_path"`
	OutputPath   string       `yaml:"output_path"`
	ConfigDir    string       `yaml:"config_dir"`
	RenderDrafts bool         `yaml:"render_drafts"`
	Author       AuthorConfig `yaml:"author"`
}

// Validate validates the site configuration.
func (c *SiteConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required, is.URL),
		validation.Field(&c.InputPath, validation.Required),
		validation.Field(&c.OutputPath, validation.Required),
	); err != nil {
		return err
	}
	if filepath.Clean(c.InputPath) == filepath.Clean(c.OutputPath) {
		return fmt.Errorf("site: output_path must differ from input_path")
	}
	return nil
}

// Builder returns the site.Config derived from c.
func (c *SiteConfig) Builder(reloadPath string) site.Config {
	return site.Config{
		InputPath:    c.InputPath,
		OutputPath:   c.OutputPath,
		ConfigDir:    c.ConfigDir,
		RenderDrafts: c.RenderDrafts,
		ReloadPath:   reloadPath,
		Site: site.Info{
			Title:       c.Title,
			Description: c.Description,
			BaseURL:     c.BaseURL,
			RootCrumb:   c.RootCrumb,
			Author: site.Author{
				Name:  c.Author.Name,
				Email: c.Author.Email,
				URL:   c.Author.URL,
			},
		},
	}
}

// LiveReloadConfig controls the push channel.
type LiveReloadConfig struct {
	Debounce   time.Duration `yaml:"debounce"`
	PathSuffix string        `yaml:"path_suffix"`
}

// Validate validates the live-reload configuration.
func (c *LiveReloadConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Debounce, validation.Min(time.Duration(0))),
		validation.Field(&c.PathSuffix, validation.Required),
	); err != nil {
		return err
	}
	if !strings.HasPrefix(c.PathSuffix, "/") {
		return fmt.Errorf("livereload: path_suffix must start with '/'")
	}
	return nil
}

// WatchConfig controls how queued change events are handled.
//
// With Coalesce unset every event triggers its own rebuild, one after another.
// With Coalesce set, events queued while a rebuild runs are merged into the
// next one.
type WatchConfig struct {
	Coalesce bool `yaml:"coalesce"`
}

// JournalConfig holds the rebuild journal database. An empty Path disables it.
type JournalConfig struct {
	Path string `yaml:"path"`
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel:  slog.LevelInfo,
			LogFormat: LogFormatJSON,
			HTTP: HTTPConfig{
				Port: 8000,
			},
		},
		Site: SiteConfig{
			Title:       "Your Blog Name",
			Description: "I am writing about my experiences as a naval navel-gazer",
			BaseURL:     "https://example.com/",
			RootCrumb:   "index",
			InputPath:   ".",
			OutputPath:  "_site",
			ConfigDir:   ".ter",
			Author: AuthorConfig{
				Name:  "Your Name Here",
				Email: "youremailaddress@example.com",
				URL:   "https://example.com/about-me/",
			},
		},
		LiveReload: LiveReloadConfig{
			Debounce:   livereload.DefaultDelay,
			PathSuffix: livereload.DefaultPath,
		},
	}
}
