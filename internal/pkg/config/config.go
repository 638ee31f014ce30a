package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Log       LogConfig       `mapstructure:"log"`
	Map       MapConfig       `mapstructure:"map"`
	GeoIP     GeoIPConfig     `mapstructure:"geoip"`
	Nearby    NearbyConfig    `mapstructure:"nearby"`
	Cache     CacheConfig     `mapstructure:"cache"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MapConfig bounds the map sessions.
type MapConfig struct {
	MinZoom    int `mapstructure:"min_zoom"`
	MaxZoom    int `mapstructure:"max_zoom"`
	ZoomStepMS int `mapstructure:"zoom_step_ms"`
	Width      int `mapstructure:"width"`
	Height     int `mapstructure:"height"`
	// SmallGroupMaxInitialZoom caps the zoom right after the first fit on
	// small group maps.
	SmallGroupMaxInitialZoom int `mapstructure:"smallgroup_max_initial_zoom"`
}

func (m MapConfig) ZoomStep() time.Duration {
	return time.Duration(m.ZoomStepMS) * time.Millisecond
}

type GeoIPConfig struct {
	DBPath  string `mapstructure:"db_path"`
	Enabled bool   `mapstructure:"enabled"`
}

type NearbyConfig struct {
	DefaultLimit int     `mapstructure:"default_limit"`
	MaxLimit     int     `mapstructure:"max_limit"`
	FarAwayKm    float64 `mapstructure:"far_away_km"`
}

type CacheConfig struct {
	TTLSeconds int `mapstructure:"ttl_seconds"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GROUPMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("GROUPMAP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "groupmap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "groupmap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("map.min_zoom", 2)
	v.SetDefault("map.max_zoom", 15)
	v.SetDefault("map.zoom_step_ms", 150)
	v.SetDefault("map.width", 800)
	v.SetDefault("map.height", 600)
	v.SetDefault("map.smallgroup_max_initial_zoom", 13)
	v.SetDefault("geoip.db_path", "/usr/share/GeoIP/GeoLite2-City.mmdb")
	v.SetDefault("geoip.enabled", true)
	v.SetDefault("nearby.default_limit", 3)
	v.SetDefault("nearby.max_limit", 25)
	v.SetDefault("nearby.far_away_km", 50)
	v.SetDefault("cache.ttl_seconds", 300)
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Map.MinZoom < 0 || c.Map.MaxZoom < c.Map.MinZoom {
		errs = append(errs, fmt.Sprintf("map zoom range %d-%d is invalid", c.Map.MinZoom, c.Map.MaxZoom))
	}
	if c.Map.ZoomStepMS < 0 {
		errs = append(errs, "map.zoom_step_ms must not be negative")
	}
	if c.Map.Width <= 0 || c.Map.Height <= 0 {
		errs = append(errs, "map.width and map.height must be positive")
	}
	if c.GeoIP.Enabled && c.GeoIP.DBPath == "" {
		errs = append(errs, "geoip.db_path is required when geoip is enabled")
	}
	if c.Nearby.DefaultLimit <= 0 || c.Nearby.MaxLimit < c.Nearby.DefaultLimit {
		errs = append(errs, fmt.Sprintf("nearby limits %d/%d are invalid", c.Nearby.DefaultLimit, c.Nearby.MaxLimit))
	}
	if c.Cache.TTLSeconds <= 0 {
		errs = append(errs, "cache.ttl_seconds must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
