package config

import (
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/membermap/membermap/internal/core/domain"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Map       MapConfig       `mapstructure:"map"`
	Search    SearchConfig    `mapstructure:"search"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	AllowOrigins string `mapstructure:"allow_origins"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
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

// MapConfig controls how map views are built.
type MapConfig struct {
	TileURL       string  `mapstructure:"tile_url"`
	AccessToken   string  `mapstructure:"access_token"`
	DefaultTheme  string  `mapstructure:"default_theme"`
	DefaultView   string  `mapstructure:"default_view"`
	CenterLat     float64 `mapstructure:"center_lat"`
	CenterLon     float64 `mapstructure:"center_lon"`
	Zoom          float64 `mapstructure:"zoom"`
	MaxZoom       int     `mapstructure:"max_zoom"`
	MaxNativeZoom int     `mapstructure:"max_native_zoom"`
	ClusterRadius float64 `mapstructure:"cluster_radius"`
	MinFitRadius  float64 `mapstructure:"min_fit_radius"`
	Attribution   string  `mapstructure:"attribution"`
	AddMemberURL  string  `mapstructure:"add_member_url"`
	SourceURL     string  `mapstructure:"source_url"`
	MembersFile   string  `mapstructure:"members_file"` // static member list; empty = database
}

type SearchConfig struct {
	BaseURL string `mapstructure:"base_url"`
	Timeout int    `mapstructure:"timeout"`
}

type StorageConfig struct {
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	Bucket    string `mapstructure:"bucket"`
	UseSSL    bool   `mapstructure:"use_ssl"`
}

// Enabled reports whether object storage is configured.
func (s StorageConfig) Enabled() bool {
	return s.Endpoint != "" && s.AccessKey != "" && s.SecretKey != ""
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	Namespace string `mapstructure:"namespace"`
	TaskQueue string `mapstructure:"task_queue"`
}

// Load reads configuration from .env, an optional config file and
// environment variables.
func Load(service string) (*Config, error) {
	_ = godotenv.Load() // OK if missing

	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.allow_origins", "http://localhost:3000, http://localhost:5173")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "membermap")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "membermap")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("map.tile_url", "https://api.mapbox.com/styles/v1/mapbox/{style}/tiles/256/{z}/{x}/{y}?access_token={token}")
	v.SetDefault("map.default_theme", string(domain.ThemeDark))
	v.SetDefault("map.default_view", string(domain.ViewClustered))
	v.SetDefault("map.center_lat", 22.5)
	v.SetDefault("map.center_lon", 80.0)
	v.SetDefault("map.zoom", 5.0)
	v.SetDefault("map.max_zoom", 19)
	v.SetDefault("map.max_native_zoom", 18)
	v.SetDefault("map.cluster_radius", 80.0)
	v.SetDefault("map.min_fit_radius", 1000.0)
	v.SetDefault("search.timeout", 10)
	v.SetDefault("storage.bucket", "membermap")
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.namespace", "default")
	v.SetDefault("temporal.task_queue", "member-import-queue")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: MEMBERMAP_DATABASE_HOST → database.host
	v.SetEnvPrefix("MEMBERMAP")
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

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Map.MembersFile == "" {
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
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if domain.ParseTheme(c.Map.DefaultTheme, "") == "" {
		errs = append(errs, fmt.Sprintf("map.default_theme must be dark or light, got %q", c.Map.DefaultTheme))
	}
	if domain.ParseViewMode(c.Map.DefaultView, "") == "" {
		errs = append(errs, fmt.Sprintf("map.default_view must be grouped or clustered, got %q", c.Map.DefaultView))
	}
	if c.Map.MaxZoom <= 0 || c.Map.MaxZoom > 24 {
		errs = append(errs, fmt.Sprintf("map.max_zoom must be 1-24, got %d", c.Map.MaxZoom))
	}
	if c.Map.Zoom < 0 || c.Map.Zoom > float64(c.Map.MaxZoom) {
		errs = append(errs, "map.zoom must be between 0 and map.max_zoom")
	}
	if !(domain.GeoPoint{Lat: c.Map.CenterLat, Lon: c.Map.CenterLon}).Valid() {
		errs = append(errs, "map.center_lat/center_lon must be a valid coordinate")
	}
	if c.Search.Timeout <= 0 {
		errs = append(errs, "search.timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
