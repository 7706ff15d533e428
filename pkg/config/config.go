package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Logger    LoggerConfig    `mapstructure:"logger"`
	OhDear    OhDearConfig    `mapstructure:"ohdear"`
	Panel     PanelConfig     `mapstructure:"panel"`
}

type ServerConfig struct {
	Port            int    `mapstructure:"port"`
	Host            string `mapstructure:"host"`
	ReadTimeout     int    `mapstructure:"read_timeout"`
	WriteTimeout    int    `mapstructure:"write_timeout"`
	ShutdownTimeout int    `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	Driver       string `mapstructure:"driver"` // sqlite or postgres
	Path         string `mapstructure:"path"`   // sqlite only
	Host         string `mapstructure:"host"`
	Port         int    `mapstructure:"port"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	Name         string `mapstructure:"name"`
	SSLMode      string `mapstructure:"ssl_mode"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	// SlowQueryMs is the duration above which statements are logged.
	SlowQueryMs int `mapstructure:"slow_query_ms"`
}

// RedisConfig is optional; an empty host disables caching.
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	PoolSize int    `mapstructure:"pool_size"`
}

// KafkaConfig is optional; no brokers means plugin events stay in-process.
type KafkaConfig struct {
	Brokers []string `mapstructure:"brokers"`
	Topic   string   `mapstructure:"topic"`
}

type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
	JWTExpiry int    `mapstructure:"jwt_expiry"`
	Issuer    string `mapstructure:"issuer"`
	// RolePermissions seeds the RBAC policy: role name to permission keys ("*" for all).
	RolePermissions map[string][]string `mapstructure:"role_permissions"`
}

type TelemetryConfig struct {
	Enabled      bool    `mapstructure:"enabled"`
	JaegerURL    string  `mapstructure:"jaeger_url"`
	ServiceName  string  `mapstructure:"service_name"`
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	Output     string `mapstructure:"output"`
	AddCaller  bool   `mapstructure:"add_caller"`
	Stacktrace bool   `mapstructure:"stacktrace"`
}

type OhDearConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	Timeout        int    `mapstructure:"timeout"`         // seconds
	RequestsPerMin int    `mapstructure:"requests_per_min"`
	RetryAttempts  int    `mapstructure:"retry_attempts"`
	SiteCacheTTL   int    `mapstructure:"site_cache_ttl"`  // seconds
	BadgeCacheTTL  int    `mapstructure:"badge_cache_ttl"` // seconds
}

type PanelConfig struct {
	CPTrigger      string `mapstructure:"cp_trigger"`
	PluginHandle   string `mapstructure:"plugin_handle"`
	HealthRouteRPS int    `mapstructure:"health_route_rps"`
}

func Load(serviceName string) (*Config, error) {
	viper.SetConfigName(serviceName)
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath("/etc/ohdear-panel")

	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.SetEnvPrefix("OHDEAR_PANEL")

	if err := viper.ReadInConfig(); err != nil {
		// A missing file is fine, defaults and env vars apply
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	overrideFromEnv(&config)

	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.read_timeout", 30)
	viper.SetDefault("server.write_timeout", 30)
	viper.SetDefault("server.shutdown_timeout", 30)

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "ohdear-panel.db")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "ohdear")
	viper.SetDefault("database.name", "ohdear")
	viper.SetDefault("database.ssl_mode", "disable")
	viper.SetDefault("database.max_open_conns", 10)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.slow_query_ms", 100)

	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.db", 0)
	viper.SetDefault("redis.pool_size", 10)

	viper.SetDefault("kafka.topic", "ohdear-panel.events")

	viper.SetDefault("auth.jwt_secret", "development-secret-key-change-in-production")
	viper.SetDefault("auth.jwt_expiry", 3600)
	viper.SetDefault("auth.issuer", "ohdear-panel")
	viper.SetDefault("auth.role_permissions", map[string][]string{"admin": {"*"}})

	viper.SetDefault("telemetry.enabled", false)
	viper.SetDefault("telemetry.jaeger_url", "http://localhost:14268/api/traces")
	viper.SetDefault("telemetry.service_name", "ohdear-panel")
	viper.SetDefault("telemetry.sampling_rate", 1.0)

	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.format", "json")
	viper.SetDefault("logger.output", "stdout")
	viper.SetDefault("logger.add_caller", true)
	viper.SetDefault("logger.stacktrace", false)

	viper.SetDefault("ohdear.base_url", "https://ohdear.app/api")
	viper.SetDefault("ohdear.timeout", 10)
	viper.SetDefault("ohdear.requests_per_min", 250) // Oh Dear API quota
	viper.SetDefault("ohdear.retry_attempts", 2)
	viper.SetDefault("ohdear.site_cache_ttl", 300)
	viper.SetDefault("ohdear.badge_cache_ttl", 600)

	viper.SetDefault("panel.cp_trigger", "admin")
	viper.SetDefault("panel.plugin_handle", "ohdear")
	viper.SetDefault("panel.health_route_rps", 5)
}

func overrideFromEnv(cfg *Config) {
	// Viper reads OHDEAR_PANEL_* automatically; these short names are kept for container setups
	if host := viper.GetString("REDIS_HOST"); host != "" {
		cfg.Redis.Host = host
	}
	if dsnHost := viper.GetString("DATABASE_HOST"); dsnHost != "" {
		cfg.Database.Host = dsnHost
	}
	if brokers := viper.GetString("KAFKA_BROKERS"); brokers != "" {
		cfg.Kafka.Brokers = strings.Split(brokers, ",")
	}
	if trigger := viper.GetString("CP_TRIGGER"); trigger != "" {
		cfg.Panel.CPTrigger = trigger
	}
	if servicePort := viper.GetInt("SERVER_PORT"); servicePort != 0 {
		cfg.Server.Port = servicePort
	}
}

func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

func (c *DatabaseConfig) SlowQueryThreshold() time.Duration {
	return time.Duration(c.SlowQueryMs) * time.Millisecond
}

func (c *RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func (c *RedisConfig) Enabled() bool {
	return c.Host != ""
}

func (c *OhDearConfig) RequestTimeout() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

func (c *OhDearConfig) SiteTTL() time.Duration {
	return time.Duration(c.SiteCacheTTL) * time.Second
}

func (c *OhDearConfig) BadgeTTL() time.Duration {
	return time.Duration(c.BadgeCacheTTL) * time.Second
}
