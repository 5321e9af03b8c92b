package config

import (
	"log/slog"
	"net"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/spf13/viper"

	"github.com/trafficdist/engine/internal/strategy"
)

const (
	EnvDev     = "dev"
	EnvStaging = "staging"
	EnvProd    = "prod"
)

const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

type AdminConfig struct {
	Address     string `mapstructure:"address"`
	Environment string `mapstructure:"environment"`
}

type LoggingConfig struct {
	Level string `mapstructure:"level"`
}

type HealthCheckConfig struct {
	Interval string `mapstructure:"interval"`
}

type CircuitBreakerConfig struct {
	Threshold    int    `mapstructure:"threshold"`
	ResetTimeout string `mapstructure:"reset_timeout"`
}

type ServerConfig struct {
	ID             string `mapstructure:"id"`
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Weight         int    `mapstructure:"weight"`
	MaxConnections int    `mapstructure:"max_connections"`
}

type PoolConfig struct {
	Name           string         `mapstructure:"name"`
	Algorithm      string         `mapstructure:"algorithm"`
	VirtualNodes   int            `mapstructure:"virtual_nodes"`
	StickySessions bool           `mapstructure:"sticky_sessions"`
	SessionTTL     string         `mapstructure:"session_ttl"`
	FailoverPools  []string       `mapstructure:"failover_pools"`
	HealthCheck    bool           `mapstructure:"health_check"`
	CircuitBreaker bool           `mapstructure:"circuit_breaker"`
	Servers        []ServerConfig `mapstructure:"servers"`
}

type Config struct {
	Admin          AdminConfig          `mapstructure:"admin"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	HealthCheck    HealthCheckConfig    `mapstructure:"health_check"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Pools          []PoolConfig         `mapstructure:"pools"`
}

func Load() (*Config, error) {
	viper.SetDefault("admin.environment", EnvDev)
	viper.SetDefault("admin.address", ":9090")
	viper.SetDefault("logging.level", LogLevelInfo)
	viper.SetDefault("health_check.interval", "2s")
	viper.SetDefault("circuit_breaker.threshold", 5)
	viper.SetDefault("circuit_breaker.reset_timeout", "30s")

	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./config")
	viper.AddConfigPath(".")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			slog.Error("failed to read config file", slog.String("error", err.Error()))
			return nil, err
		}
		slog.Warn("config file not found, using defaults and environment variables")
	} else {
		slog.Info("loaded config file", slog.String("file", viper.ConfigFileUsed()))
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		slog.Error("failed to unmarshal config", slog.String("error", err.Error()))
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Admin,
			validation.Required,
			validation.By(func(value interface{}) error {
				ac, ok := value.(AdminConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be an AdminConfig")
				}
				return validation.ValidateStruct(&ac,
					validation.Field(&ac.Environment,
						validation.Required,
						validation.In(EnvDev, EnvStaging, EnvProd),
					),
					validation.Field(&ac.Address,
						validation.Required,
						validation.By(validateHostPort),
					),
				)
			}),
		),
		validation.Field(&c.Logging,
			validation.Required,
			validation.By(func(value interface{}) error {
				lc, ok := value.(LoggingConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a LoggingConfig")
				}
				return validation.ValidateStruct(&lc,
					validation.Field(&lc.Level,
						validation.Required,
						validation.In(LogLevelDebug, LogLevelInfo, LogLevelWarn, LogLevelError),
					),
				)
			}),
		),
		validation.Field(&c.HealthCheck,
			validation.Required,
			validation.By(func(value interface{}) error {
				hc, ok := value.(HealthCheckConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a HealthCheckConfig")
				}
				return validation.ValidateStruct(&hc,
					validation.Field(&hc.Interval,
						validation.Required,
						validation.By(validateDuration),
					),
				)
			}),
		),
		validation.Field(&c.CircuitBreaker,
			validation.By(func(value interface{}) error {
				cb, ok := value.(CircuitBreakerConfig)
				if !ok {
					return validation.NewError("validation_invalid_type", "must be a CircuitBreakerConfig")
				}
				return validation.ValidateStruct(&cb,
					validation.Field(&cb.Threshold, validation.Min(1)),
					validation.Field(&cb.ResetTimeout, validation.By(validateDuration)),
				)
			}),
		),
		validation.Field(&c.Pools,
			validation.Required,
			validation.Length(1, 0),
			validation.Each(validation.By(validatePoolConfig)),
			validation.By(c.validatePoolReferences),
		),
	)
}

func validatePoolConfig(value interface{}) error {
	p, ok := value.(PoolConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a PoolConfig")
	}

	if p.Name == "" {
		return validation.NewError("validation_empty_name", "pool name cannot be empty")
	}

	if !validAlgorithm(p.Algorithm) {
		return validation.NewError("validation_unknown_algorithm", "unknown selection algorithm: "+p.Algorithm)
	}

	if p.SessionTTL != "" {
		if err := validateDuration(p.SessionTTL); err != nil {
			return err
		}
	}

	if p.VirtualNodes < 0 {
		return validation.NewError("validation_invalid_virtual_nodes", "virtual_nodes must not be negative")
	}

	for _, s := range p.Servers {
		if err := validateServerConfig(s); err != nil {
			return err
		}
	}

	return nil
}

func validateServerConfig(s ServerConfig) error {
	if s.Host == "" {
		return validation.NewError("validation_empty_host", "server host cannot be empty")
	}
	if err := is.Host.Validate(s.Host); err != nil {
		return validation.NewError("validation_invalid_host", "invalid server host")
	}
	if s.Port < 1 || s.Port > 65535 {
		return validation.NewError("validation_invalid_port", "server port must be between 1 and 65535")
	}
	if s.Weight < 1 {
		return validation.NewError("validation_invalid_weight", "server weight must be at least 1")
	}
	if s.MaxConnections < 0 {
		return validation.NewError("validation_invalid_max_connections", "max_connections must not be negative")
	}
	return nil
}

// validatePoolReferences checks name uniqueness and that every failover
// target names a declared pool.
func (c *Config) validatePoolReferences(value interface{}) error {
	pools, ok := value.([]PoolConfig)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a []PoolConfig")
	}

	names := make(map[string]struct{}, len(pools))
	for _, p := range pools {
		if _, dup := names[p.Name]; dup {
			return validation.NewError("validation_duplicate_pool", "duplicate pool name: "+p.Name)
		}
		names[p.Name] = struct{}{}
	}

	for _, p := range pools {
		for _, target := range p.FailoverPools {
			if _, exists := names[target]; !exists {
				return validation.NewError("validation_unknown_failover", "failover pool not declared: "+target)
			}
		}
	}

	return nil
}

func validAlgorithm(name string) bool {
	for _, a := range strategy.Algorithms() {
		if string(a) == name {
			return true
		}
	}
	return false
}

func validateHostPort(value interface{}) error {
	addr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return validation.NewError("validation_invalid_hostport", "must be in host:port format")
	}

	if port == "" {
		return validation.NewError("validation_invalid_port", "port cannot be empty")
	}

	if host != "" {
		if err := is.Host.Validate(host); err != nil {
			return validation.NewError("validation_invalid_host", "invalid host")
		}
	}

	return nil
}

func validateDuration(value interface{}) error {
	durationStr, ok := value.(string)
	if !ok {
		return validation.NewError("validation_invalid_type", "must be a string")
	}

	if _, err := time.ParseDuration(durationStr); err != nil {
		return validation.NewError("validation_invalid_duration", "must be a valid duration (e.g., 2s, 5m, 1h)")
	}

	return nil
}
