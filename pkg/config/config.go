package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/sirosfoundation/wg-gateway/pkg/logging"
)

// Config represents the application configuration
type Config struct {
	// Server and Tunnel carry their full variable names (PORT, PASSWORD,
	// WG_PORT, WG_PATH, ...) and are processed without a prefix, so the
	// GATEWAY pass skips them. Prefixed leaf fields use split_words rather
	// than envconfig tags, which envconfig would retry unprefixed.
	Server    ServerConfig    `yaml:"server" ignored:"true"`
	Tunnel    TunnelConfig    `yaml:"tunnel" ignored:"true"`
	Logging   logging.Config  `yaml:"logging" envconfig:"LOGGING"`
	Session   SessionConfig   `yaml:"session" envconfig:"SESSION"`
	WireGuard WireGuardConfig `yaml:"wireguard" envconfig:"WIREGUARD"`
	RateLimit RateLimitConfig `yaml:"rate_limit" envconfig:"RATE_LIMIT"`
	Metrics   MetricsConfig   `yaml:"metrics" envconfig:"METRICS"`
	CORS      CORSConfig      `yaml:"cors" envconfig:"CORS"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host     string `yaml:"host" envconfig:"BIND_HOST"`
	Port     int    `yaml:"port" envconfig:"PORT"`
	Password string `yaml:"password" envconfig:"PASSWORD"` // Admin secret, plain or bcrypt hash. Empty disables login.
	Release  string `yaml:"release" envconfig:"RELEASE"`
}

// TunnelConfig holds the environment/default layer of the tunnel
// configuration. The override file is layered on top of it at resolution time.
type TunnelConfig struct {
	Path                string `yaml:"path" envconfig:"WG_PATH"`
	Device              string `yaml:"device" envconfig:"WG_DEVICE"`
	Host                string `yaml:"host" envconfig:"WG_HOST"`
	Port                int    `yaml:"port" envconfig:"WG_PORT"`
	Ports               string `yaml:"ports" envconfig:"WG_PORTS"` // lower-upper
	MTU                 int    `yaml:"mtu" envconfig:"WG_MTU"`     // 0 leaves the MTU unset
	PersistentKeepalive int    `yaml:"persistent_keepalive" envconfig:"WG_PERSISTENT_KEEPALIVE"`
	DefaultAddress      string `yaml:"default_address" envconfig:"WG_DEFAULT_ADDRESS"`
	DefaultDNS          string `yaml:"default_dns" envconfig:"WG_DEFAULT_DNS"`
	AllowedIPs          string `yaml:"allowed_ips" envconfig:"WG_ALLOWED_IPS"`
	PreUp               string `yaml:"pre_up" envconfig:"WG_PRE_UP"`
	PostUp              string `yaml:"post_up" envconfig:"WG_POST_UP"` // empty selects the built-in iptables template
	PreDown             string `yaml:"pre_down" envconfig:"WG_PRE_DOWN"`
	PostDown            string `yaml:"post_down" envconfig:"WG_POST_DOWN"`
}

// SessionConfig contains admin session configuration
type SessionConfig struct {
	// StoreType is the session store type: "memory" or "redis"
	StoreType string `yaml:"store_type" split_words:"true"`
	// TTLHours bounds the lifetime of a session record
	TTLHours int `yaml:"ttl_hours" split_words:"true"`
	// CookieName is the name of the session identity cookie
	CookieName string `yaml:"cookie_name" split_words:"true"`
	// HashKey and BlockKey sign and encrypt the cookie. Random keys are
	// generated at startup when empty, which invalidates cookies on restart.
	HashKey  string `yaml:"hash_key" split_words:"true"`
	BlockKey string `yaml:"block_key" split_words:"true"`
	// SecureCookie sets the Secure attribute on the session cookie
	SecureCookie bool `yaml:"secure_cookie" split_words:"true"`
	// Redis contains Redis-specific configuration
	Redis RedisConfig `yaml:"redis" envconfig:"REDIS"`
}

// RedisConfig contains Redis connection configuration
type RedisConfig struct {
	Address   string `yaml:"address" split_words:"true"`
	Password  string `yaml:"password" split_words:"true"`
	DB        int    `yaml:"db" split_words:"true"`
	KeyPrefix string `yaml:"key_prefix" split_words:"true"`
}

// WireGuardConfig configures the external WireGuard management collaborator
type WireGuardConfig struct {
	// Reload selects how a port change reaches the live interface:
	// "service" calls the management service, "device" sets the listen port
	// through wgctrl, "none" only persists.
	Reload string `yaml:"reload" split_words:"true"`
	// ServiceURL is the base URL of the management service.
	ServiceURL string `yaml:"service_url" split_words:"true"`
	// Interface is the WireGuard interface reconfigured in "device" mode.
	Interface string `yaml:"interface" split_words:"true"`
	// Timeout is the HTTP timeout for service calls (seconds).
	Timeout int `yaml:"timeout" split_words:"true"`
}

// RateLimitConfig configures rate limiting of login attempts
type RateLimitConfig struct {
	Enabled        bool `yaml:"enabled" split_words:"true"`
	MaxAttempts    int  `yaml:"max_attempts" split_words:"true"`
	WindowSeconds  int  `yaml:"window_seconds" split_words:"true"`
	LockoutSeconds int  `yaml:"lockout_seconds" split_words:"true"`
}

// SetDefaults fills zero values with defaults
func (c *RateLimitConfig) SetDefaults() {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 10
	}
	if c.WindowSeconds <= 0 {
		c.WindowSeconds = 60
	}
	if c.LockoutSeconds <= 0 {
		c.LockoutSeconds = 300
	}
}

// MetricsConfig controls the Prometheus endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" split_words:"true"`
	Path    string `yaml:"path" split_words:"true"`
}

// CORSConfig contains CORS configuration
type CORSConfig struct {
	AllowedOrigins   []string `yaml:"allowed_origins" split_words:"true"`
	AllowedMethods   []string `yaml:"allowed_methods" split_words:"true"`
	AllowedHeaders   []string `yaml:"allowed_headers" split_words:"true"`
	ExposedHeaders   []string `yaml:"exposed_headers" split_words:"true"`
	AllowCredentials bool     `yaml:"allow_credentials" split_words:"true"`
	MaxAge           int      `yaml:"max_age" split_words:"true"` // seconds
}

// Load loads configuration from file and environment variables
func Load(configFile string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Load from YAML file if provided (overrides defaults)
	if configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
			// File doesn't exist, that's ok - we'll use defaults and env vars
		} else {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file: %w", err)
			}
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", &cfg.Server); err != nil {
		return nil, fmt.Errorf("failed to process server environment variables: %w", err)
	}
	if err := envconfig.Process("", &cfg.Tunnel); err != nil {
		return nil, fmt.Errorf("failed to process tunnel environment variables: %w", err)
	}
	if err := envconfig.Process("GATEWAY", cfg); err != nil {
		return nil, fmt.Errorf("failed to process environment variables: %w", err)
	}

	cfg.Tunnel.restoreEmptyDefaults()
	cfg.RateLimit.SetDefaults()

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// DefaultTunnelConfig returns the built-in tunnel defaults
func DefaultTunnelConfig() TunnelConfig {
	return TunnelConfig{
		Path:                "/etc/wireguard/",
		Device:              "eth0",
		Port:                51820,
		Ports:               "51820-51920",
		PersistentKeepalive: 25,
		DefaultAddress:      "10.8.0.x",
		DefaultDNS:          "8.8.8.8",
		AllowedIPs:          "0.0.0.0/0, ::/0",
	}
}

// restoreEmptyDefaults treats an empty string as unset for the fields that
// have a non-empty default. WG_DEFAULT_DNS is the exception: an empty value
// disables DNS in rendered client configurations.
func (t *TunnelConfig) restoreEmptyDefaults() {
	def := DefaultTunnelConfig()
	if t.Path == "" {
		t.Path = def.Path
	}
	if t.Device == "" {
		t.Device = def.Device
	}
	if t.Ports == "" {
		t.Ports = def.Ports
	}
	if t.DefaultAddress == "" {
		t.DefaultAddress = def.DefaultAddress
	}
	if t.AllowedIPs == "" {
		t.AllowedIPs = def.AllowedIPs
	}
}

// defaultConfig returns a Config with sensible default values
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    51821,
			Release: "dev",
		},
		Tunnel:  DefaultTunnelConfig(),
		Logging: logging.DefaultConfig(),
		Session: SessionConfig{
			StoreType:  "memory",
			TTLHours:   24,
			CookieName: "wg_session",
			Redis: RedisConfig{
				Address:   "localhost:6379",
				KeyPrefix: "wg:session:",
			},
		},
		WireGuard: WireGuardConfig{
			Reload:     "service",
			ServiceURL: "http://127.0.0.1:51822",
			Interface:  "wg0",
			Timeout:    10,
		},
		RateLimit: RateLimitConfig{
			Enabled:        true,
			MaxAttempts:    10,
			WindowSeconds:  60,
			LockoutSeconds: 300,
		},
		Metrics: MetricsConfig{
			Path: "/metrics",
		},
		CORS: CORSConfig{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type"},
			AllowCredentials: false,
			MaxAge:           43200,
		},
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	if c.Tunnel.Port < 0 || c.Tunnel.Port > 65535 {
		return fmt.Errorf("invalid tunnel port: %d", c.Tunnel.Port)
	}

	if _, err := ParsePortRange(c.Tunnel.Ports); err != nil {
		return fmt.Errorf("invalid tunnel port range: %w", err)
	}

	if c.Session.StoreType != "memory" && c.Session.StoreType != "redis" {
		return fmt.Errorf("invalid session store type: %s (must be memory or redis)", c.Session.StoreType)
	}

	if c.Session.StoreType == "redis" && c.Session.Redis.Address == "" {
		return fmt.Errorf("redis address is required when using redis session store")
	}

	switch len(c.Session.BlockKey) {
	case 0, 16, 24, 32:
	default:
		return fmt.Errorf("invalid session block_key length %d (must be 16, 24 or 32 bytes)", len(c.Session.BlockKey))
	}

	switch c.WireGuard.Reload {
	case "service":
		if c.WireGuard.ServiceURL == "" {
			return fmt.Errorf("wireguard service_url is required when reload is service")
		}
	case "device":
		if c.WireGuard.Interface == "" {
			return fmt.Errorf("wireguard interface is required when reload is device")
		}
	case "none":
	default:
		return fmt.Errorf("invalid wireguard reload mode: %s (must be service, device, or none)", c.WireGuard.Reload)
	}

	return nil
}

// Address returns the server address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// RequiresPassword reports whether the admin API is password protected
func (c *ServerConfig) RequiresPassword() bool {
	return c.Password != ""
}
