package internal

import (
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/alecthomas/chroma/v2/styles"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/vaultview/internal/render"
)

// Auth modes.
const (
	AuthModeDisabled = "disabled"
	AuthModeToken    = "token"
)

// Config represents the application configuration.
type Config struct {
	App    ApplicationConfig `yaml:"app"`
	Vault  VaultConfig       `yaml:"vault"`
	SQLite SQLiteConfig      `yaml:"sqlite"`
	Auth   AuthConfig        `yaml:"auth"`
	Render RenderConfig      `yaml:"render"`
	Events EventsConfig      `yaml:"events"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.App.Validate(); err != nil {
		return err
	}
	if err := c.Vault.Validate(); err != nil {
		return err
	}
	if err := c.SQLite.Validate(); err != nil {
		return err
	}
	if err := c.Auth.Validate(); err != nil {
		return err
	}
	if err := c.Render.Validate(); err != nil {
		return err
	}
	return c.Events.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
	HTTP     HTTPConfig `yaml:"http"`
}

// Validate validates the application configuration.
func (c *ApplicationConfig) Validate() error {
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

// VaultConfig holds the path to the Markdown vault directory. Uploaded
// attachments go to AssetDir inside the vault.
type VaultConfig struct {
	Path     string `yaml:"path"`
	AssetDir string `yaml:"asset_dir"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
		validation.Field(&c.AssetDir, validation.Required, validation.By(vaultRelative)),
	)
}

func vaultRelative(value any) error {
	s, _ := value.(string)
	for _, seg := range strings.Split(strings.Trim(s, "/"), "/") {
		if seg == ".." || strings.HasPrefix(seg, ".") {
			return fmt.Errorf("must be a folder inside the vault, got %q", s)
		}
	}
	return nil
}

// SQLiteConfig holds SQLite database configuration.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// Validate validates the SQLite configuration.
func (c *SQLiteConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	)
}

// AuthConfig holds authentication configuration.
//
// Mode controls how authentication is enforced:
//   - "disabled" (default): no authentication required, suitable for local dev.
//   - "token": Bearer token authentication; Token must be non-empty.
type AuthConfig struct {
	Mode  string `yaml:"mode"`
	Token string `yaml:"token"`
}

// Validate validates the auth configuration.
func (c *AuthConfig) Validate() error {
	// Normalise empty mode to "disabled" for backward compatibility.
	if c.Mode == "" {
		c.Mode = AuthModeDisabled
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Mode, validation.Required, validation.In(AuthModeDisabled, AuthModeToken)),
	); err != nil {
		return err
	}
	if c.Mode == AuthModeToken && c.Token == "" {
		return fmt.Errorf("auth: mode is %q but token is empty", AuthModeToken)
	}
	return nil
}

// AuthEnabled returns true when authentication is active.
func (c *AuthConfig) AuthEnabled() bool {
	return c.Mode == AuthModeToken
}

// RenderConfig controls the Markdown pipeline.
type RenderConfig struct {
	// BaseURL prefixes vault paths of images and tracks in rendered HTML.
	BaseURL         string          `yaml:"base_url"`
	WrapTables      bool            `yaml:"wrap_tables"`
	ExternalLinks   bool            `yaml:"external_links"`
	FrontmatterTags bool            `yaml:"frontmatter_tags"`
	Highlight       HighlightConfig `yaml:"highlight"`
	Passes          PassesConfig    `yaml:"passes"`
	// Workers bounds concurrent renders during a full sync; 0 means one per CPU.
	Workers int `yaml:"workers"`
}

// HighlightConfig configures code block highlighting.
type HighlightConfig struct {
	Enabled bool   `yaml:"enabled"`
	Style   string `yaml:"style"`
}

// PassesConfig switches Obsidian syntax passes on or off.
type PassesConfig struct {
	Links      bool `yaml:"links"`
	Tags       bool `yaml:"tags"`
	Highlights bool `yaml:"highlights"`
	Callouts   bool `yaml:"callouts"`
	HeadingIDs bool `yaml:"heading_ids"`
}

// Validate validates the render configuration.
func (c *RenderConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.BaseURL, validation.Required),
		validation.Field(&c.Workers, validation.Min(0), validation.Max(256)),
	); err != nil {
		return err
	}
	if c.Highlight.Enabled && c.Highlight.Style != "" && !slices.Contains(styles.Names(), c.Highlight.Style) {
		return fmt.Errorf("render: unknown highlight style %q", c.Highlight.Style)
	}
	return nil
}

// Options converts the configuration into pipeline options.
func (c *RenderConfig) Options(logger *slog.Logger) render.Options {
	opts := render.DefaultOptions()
	opts.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	opts.WrapTables = c.WrapTables
	opts.ExternalLinks = c.ExternalLinks
	opts.FrontmatterTags = c.FrontmatterTags
	opts.Highlight = render.HighlightOptions{Enabled: c.Highlight.Enabled, Style: c.Highlight.Style}
	opts.Passes = render.Passes{
		Links:      c.Passes.Links,
		Tags:       c.Passes.Tags,
		Highlights: c.Passes.Highlights,
		Callouts:   c.Passes.Callouts,
		HeadingIDs: c.Passes.HeadingIDs,
	}
	opts.Logger = logger
	return opts
}

// EventsConfig tunes the live-reload stream.
type EventsConfig struct {
	// IndexThrottle is the minimum gap between two index.updated events.
	IndexThrottle time.Duration `yaml:"index_throttle"`
}

// Validate validates the events configuration.
func (c *EventsConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.IndexThrottle, validation.Min(100*time.Millisecond)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
			HTTP: HTTPConfig{
				Port: 8080,
			},
		},
		Vault: VaultConfig{
			Path:     "./vault",
			AssetDir: "attachments",
		},
		SQLite: SQLiteConfig{
			Path: "./vaultview.db",
		},
		Auth: AuthConfig{
			Mode: AuthModeDisabled,
		},
		Render: RenderConfig{
			BaseURL:         "/api/files",
			WrapTables:      true,
			ExternalLinks:   true,
			FrontmatterTags: true,
			Highlight:       HighlightConfig{Enabled: true, Style: "github"},
			Passes: PassesConfig{
				Links: true, Tags: true, Highlights: true, Callouts: true, HeadingIDs: true,
			},
		},
		Events: EventsConfig{
			IndexThrottle: 2 * time.Second,
		},
	}
}
