package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// FileVersion is the configuration schema version written by this release.
const FileVersion = "0.1.0"

// RootEnv names the environment variable that overrides the configuration directory.
const RootEnv = "SLEDGE_CONFIG_ROOT"

const (
	DefaultIOTimeout = 10 * time.Second
	DefaultPageSize  = 100
	DefaultRateLimit = "300-M"
)

// ErrIncomplete is returned when the configuration names no store and has no client or server
// section.
var ErrIncomplete = errors.New("invalid configuration: no store connection, client or server section")

// Configuration is the merged content of the server and client files plus SLEDGE_* variables.
type Configuration struct {
	Version string        `mapstructure:"version" validate:"required,semver"`
	Store   StoreConfig   `mapstructure:"store"`
	Client  *ClientConfig `mapstructure:"client" validate:"omitempty"`
	Server  *ServerConfig `mapstructure:"server" validate:"omitempty"`
}

// StoreConfig selects and tunes the data store backend.
type StoreConfig struct {
	// Connection is a URI; its scheme picks the backend (fstore, sqlite, postgres).
	Connection string        `mapstructure:"connection"`
	IOTimeout  time.Duration `mapstructure:"io_timeout" validate:"gt=0"`
	PageSize   int           `mapstructure:"page_size" validate:"min=1,max=10000"`
}

type ClientKind string

const (
	LocalClient  ClientKind = "local"
	RemoteClient ClientKind = "remote"
)

type ClientConfig struct {
	Kind      ClientKind `mapstructure:"kind" validate:"required,oneof=local remote"`
	ServerURL string     `mapstructure:"server_url" validate:"required_if=Kind remote,omitempty,url"`
	Locale    string     `mapstructure:"locale" validate:"omitempty,bcp47_language_tag"`
}

type ServerConfig struct {
	Bindings    []Binding `mapstructure:"bindings" validate:"required,min=1,dive"`
	CORSOrigins []string  `mapstructure:"cors_origins" validate:"dive,url"`
	// RateLimit uses the limiter rate format, e.g. "300-M" for 300 requests per minute.
	RateLimit string `mapstructure:"rate_limit"`
	JWTSecret string `mapstructure:"jwt_secret" validate:"required,min=16"`
	JWTIssuer string `mapstructure:"jwt_issuer"`
	// PricesFile is an optional JSON file of price quotes enabling the exchange endpoint.
	PricesFile string `mapstructure:"prices_file" validate:"omitempty,file"`
}

type Binding struct {
	Host string      `mapstructure:"host" validate:"required,hostname|ip"`
	Port int         `mapstructure:"port" validate:"min=1,max=65535"`
	TLS  *TLSBinding `mapstructure:"tls" validate:"omitempty"`
}

func (b Binding) Address() string {
	return fmt.Sprintf("%s:%d", b.Host, b.Port)
}

type TLSBinding struct {
	CertFile string `mapstructure:"cert_file" validate:"required"`
	KeyFile  string `mapstructure:"key_file" validate:"required"`
}

// RootDir returns the directory configuration files are read from.
func RootDir() (string, error) {
	if root := os.Getenv(RootEnv); root != "" {
		return root, nil
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine configuration directory: %w", err)
	}
	return filepath.Join(dir, "sledge"), nil
}

// LoadConfig loads configuration from the configuration directory, a .env file if present,
// and the environment.
func LoadConfig() (*Configuration, error) {
	// Attempt to load .env file, ignore error if it doesn't exist
	_ = godotenv.Load()

	root, err := RootDir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(root)
}

// LoadFrom reads the optional server and client files under root. Environment variables
// prefixed SLEDGE_ override file values, e.g. SLEDGE_STORE_CONNECTION.
func LoadFrom(root string) (*Configuration, error) {
	v := viper.New()
	v.SetDefault("version", FileVersion)
	v.SetDefault("store.connection", "")
	v.SetDefault("store.io_timeout", DefaultIOTimeout.String())
	v.SetDefault("store.page_size", DefaultPageSize)

	v.SetEnvPrefix("SLEDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// server keys have no defaults, so automatic lookup would never see them
	_ = v.BindEnv("server.jwt_secret")
	_ = v.BindEnv("server.prices_file")

	v.AddConfigPath(root)
	for _, name := range []string{"server", "client"} {
		v.SetConfigName(name)
		if err := v.MergeInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) {
				continue
			}
			return nil, fmt.Errorf("reading %s configuration in %s: %w", name, root, err)
		}
		slog.Debug("Loaded configuration file", slog.String("path", v.ConfigFileUsed()))
	}

	cfg := &Configuration{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decoding configuration: %w", err)
	}
	if cfg.Server != nil {
		if cfg.Server.RateLimit == "" {
			cfg.Server.RateLimit = DefaultRateLimit
		}
		if cfg.Server.JWTIssuer == "" {
			cfg.Server.JWTIssuer = "sledge"
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and that the configuration is usable: it must name a store
// or carry a client or server section.
func (c *Configuration) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if c.Store.Connection == "" && c.Client == nil && c.Server == nil {
		return ErrIncomplete
	}
	return nil
}

// Address parses the expanded connection string.
func (s StoreConfig) Address() (*url.URL, error) {
	if s.Connection == "" {
		return nil, errors.New("no store connection configured")
	}
	u, err := url.Parse(ExpandString(s.Connection))
	if err != nil {
		return nil, fmt.Errorf("invalid store connection: %w", err)
	}
	if u.Scheme == "" {
		return nil, fmt.Errorf("invalid store connection %q: missing scheme", s.Connection)
	}
	return u, nil
}

// ExpandString replaces $VAR and ${VAR} references and a leading ~ anywhere a path starts.
func ExpandString(s string) string {
	s = os.ExpandEnv(s)
	home, err := os.UserHomeDir()
	if err != nil {
		return s
	}
	switch {
	case s == "~":
		return home
	case strings.HasPrefix(s, "~/"):
		return home + s[1:]
	}
	// fstore:///~/books style addresses
	if i := strings.Index(s, "://~/"); i >= 0 {
		return s[:i+3] + home + s[i+4:]
	}
	if i := strings.Index(s, ":///~/"); i >= 0 {
		return s[:i+3] + home + s[i+5:]
	}
	return s
}
