// Package config provides configuration management for go-dailyprophet.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

var AppVersion = "-unset-" // will be set at build time

var ErrInvalidConfig = errors.New("invalid configuration")

const (
	// Posts backends
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendSupabase = "supabase"

	DefaultSiteDomain  = "https://daily-prophet.vercel.app"
	DefaultWebPort     = 11980
	DefaultSSLWebPort  = 19443
	DefaultPostsTable  = "posts"
	DefaultHTTPTimeout = 15 * time.Second
)

// MainConfig holds the main configuration for go-dailyprophet
type MainConfig struct {
	// Public site settings
	Site SiteConfig `yaml:"site" json:"site"`

	// Server settings
	Server ServerConfig `yaml:"server" json:"server"`

	// Posts storage settings
	Database DatabaseConfig `yaml:"database" json:"database"`

	// Hosted backend-as-a-service credentials
	Supabase SupabaseConfig `yaml:"supabase" json:"supabase"`

	// Extra client plugins on top of the built-in editor
	Plugins []PluginConfig `yaml:"plugins" json:"plugins"`

	AppVersion string `yaml:"-" json:"app_version"` // Application version, set at build time
}

// SiteConfig describes the public site
type SiteConfig struct {
	Domain            string   `yaml:"domain" json:"domain"`                         // Base URL used in sitemap <loc> entries
	CompatibilityDate string   `yaml:"compatibility_date" json:"compatibility_date"` // Frontend runtime compatibility pin
	Devtools          bool     `yaml:"devtools" json:"devtools"`
	CSS               []string `yaml:"css" json:"css"` // Global stylesheets every page loads
}

// ServerConfig holds web server configuration
type ServerConfig struct {
	WEB *WebConfig `yaml:"web" json:"web"`
}

// WebConfig holds web interface configuration
type WebConfig struct {
	ListenPort      int      `yaml:"listen_port" json:"listen_port"`
	SSL             bool     `yaml:"ssl" json:"ssl"`
	CertFile        string   `yaml:"cert_file,omitempty" json:"cert_file,omitempty"`
	KeyFile         string   `yaml:"key_file,omitempty" json:"key_file,omitempty"`
	StaticDir       string   `yaml:"static_dir" json:"static_dir"`
	PublicDir       string   `yaml:"public_dir" json:"public_dir"`             // sitemap.xml is written here
	ProtectGenerate bool     `yaml:"protect_generate" json:"protect_generate"` // require admin auth for /api/generate-sitemap
	SitemapOnStart  bool     `yaml:"sitemap_on_start" json:"sitemap_on_start"` // write sitemap.xml once during startup
	Debug           bool     `yaml:"debug" json:"debug"`                       // gin debug mode and debug log level
	TrustedProxies  []string `yaml:"trusted_proxies" json:"trusted_proxies"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Backend     string `yaml:"backend" json:"backend"`           // sqlite, postgres or supabase
	DataDir     string `yaml:"data_dir" json:"data_dir"`         // local sqlite main database lives below here
	PostgresDSN string `yaml:"postgres_dsn" json:"postgres_dsn"` // used by the postgres backend
	PostsTable  string `yaml:"posts_table" json:"posts_table"`
}

// SupabaseConfig holds the hosted REST backend credentials
type SupabaseConfig struct {
	URL     string        `yaml:"url" json:"url"`
	Key     string        `yaml:"key" json:"-"`
	Timeout time.Duration `yaml:"timeout" json:"timeout"`
}

// PluginConfig declares an additional client plugin
type PluginConfig struct {
	Name    string   `yaml:"name" json:"name"`
	Mode    string   `yaml:"mode" json:"mode"`
	Scripts []string `yaml:"scripts" json:"scripts"`
	Styles  []string `yaml:"styles" json:"styles"`
	Global  string   `yaml:"global" json:"global"`
}

// NewDefaultConfig returns a configuration with sensible defaults
func NewDefaultConfig() *MainConfig {
	return &MainConfig{
		AppVersion: AppVersion,
		Site: SiteConfig{
			Domain:            DefaultSiteDomain,
			CompatibilityDate: "2025-05-15",
			Devtools:          true,
			CSS:               []string{"@fortawesome/fontawesome-free/css/all.css"},
		},
		Server: ServerConfig{
			WEB: &WebConfig{
				ListenPort:     DefaultWebPort,
				SSL:            false,
				StaticDir:      "web/static",
				PublicDir:      "public",
				TrustedProxies: []string{"127.0.0.1", "::1", "10.0.0.0/8", "172.16.0.0/12", "192.168.0.0/16"},
			},
		},
		Database: DatabaseConfig{
			Backend:    BackendSQLite,
			DataDir:    "./data",
			PostsTable: DefaultPostsTable,
		},
		Supabase: SupabaseConfig{
			Timeout: DefaultHTTPTimeout,
		},
	}
}

// LoadConfigFile overlays a YAML file onto the defaults. An empty path returns the defaults.
func LoadConfigFile(path string) (*MainConfig, error) {
	cfg := NewDefaultConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	// keys present but left blank fall back to the defaults
	if cfg.Server.WEB == nil {
		cfg.Server.WEB = NewDefaultConfig().Server.WEB
	}
	if strings.TrimSpace(cfg.Database.Backend) == "" {
		cfg.Database.Backend = BackendSQLite
	}
	if strings.TrimSpace(cfg.Database.PostsTable) == "" {
		cfg.Database.PostsTable = DefaultPostsTable
	}
	return cfg, nil
}

// ApplyEnv applies environment overrides. getenv is usually os.Getenv.
func (cfg *MainConfig) ApplyEnv(getenv func(string) string) error {
	explicitBackend := cfg.Database.Backend != "" && cfg.Database.Backend != BackendSQLite

	if v := getenv("SUPABASE_URL"); v != "" {
		cfg.Supabase.URL = v
		if !explicitBackend {
			cfg.Database.Backend = BackendSupabase
			explicitBackend = true
		}
	}
	if v := getenv("SUPABASE_KEY"); v != "" {
		cfg.Supabase.Key = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		cfg.Database.PostgresDSN = v
		if !explicitBackend {
			cfg.Database.Backend = BackendPostgres
		}
	}
	if v := getenv("SITE_DOMAIN"); v != "" {
		cfg.Site.Domain = v
	}
	if v := getenv("DAILYPROPHET_WEB_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w: DAILYPROPHET_WEB_PORT=%q is not a number", ErrInvalidConfig, v)
		}
		cfg.Server.WEB.ListenPort = p
	}
	return nil
}

// Validate checks the configuration for values the server cannot run with
func (cfg *MainConfig) Validate() error {
	web := cfg.Server.WEB
	if web == nil {
		return fmt.Errorf("%w: missing web section", ErrInvalidConfig)
	}
	if web.ListenPort < 1024 || web.ListenPort > 65535 {
		return fmt.Errorf("%w: invalid port number %d (must be between 1024 and 65535)", ErrInvalidConfig, web.ListenPort)
	}
	if web.SSL && (web.CertFile == "" || web.KeyFile == "") {
		return fmt.Errorf("%w: ssl requires cert_file and key_file", ErrInvalidConfig)
	}
	if strings.TrimSpace(web.PublicDir) == "" {
		return fmt.Errorf("%w: public_dir must be set", ErrInvalidConfig)
	}

	u, err := url.Parse(cfg.Site.Domain)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: site domain %q must be an absolute http(s) URL", ErrInvalidConfig, cfg.Site.Domain)
	}

	switch cfg.Database.Backend {
	case BackendSQLite:
	case BackendPostgres:
		if cfg.Database.PostgresDSN == "" {
			return fmt.Errorf("%w: postgres backend requires postgres_dsn or DATABASE_URL", ErrInvalidConfig)
		}
	case BackendSupabase:
		if cfg.Supabase.URL == "" || cfg.Supabase.Key == "" {
			return fmt.Errorf("%w: supabase backend requires SUPABASE_URL and SUPABASE_KEY", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, cfg.Database.Backend)
	}
	if strings.TrimSpace(cfg.Database.PostsTable) == "" {
		return fmt.Errorf("%w: posts_table must be set", ErrInvalidConfig)
	}
	for _, p := range cfg.Plugins {
		if strings.TrimSpace(p.Name) == "" {
			return fmt.Errorf("%w: plugin without name", ErrInvalidConfig)
		}
	}
	return nil
}

// SiteBase returns the site domain without trailing slash
func (cfg *MainConfig) SiteBase() string {
	return strings.TrimRight(strings.TrimSpace(cfg.Site.Domain), "/")
}
