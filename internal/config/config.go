package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Env      string         `mapstructure:"env"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Rate     RateConfig     `mapstructure:"rate"`
	CORS     CORSConfig     `mapstructure:"cors"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"min=0"`
}

type DatabaseConfig struct {
	Type string `mapstructure:"type" validate:"required,oneof=sqlite postgres"`
	DSN  string `mapstructure:"dsn" validate:"required"`
}

type AuthConfig struct {
	Secret     string        `mapstructure:"secret" validate:"required,min=8"`
	Signing    string        `mapstructure:"signing" validate:"required,oneof=HS256 ES256K"`
	TokenTTL   time.Duration `mapstructure:"token_ttl" validate:"required"`
	BcryptCost int           `mapstructure:"bcrypt_cost" validate:"min=4,max=31"`
}

type RateConfig struct {
	LoginPerMinute int `mapstructure:"login_per_minute" validate:"min=0"`
	WritePerMinute int `mapstructure:"write_per_minute" validate:"min=0"`
}

type CORSConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

type LogConfig struct {
	Level string `mapstructure:"level" validate:"required,oneof=debug info warn error"`
}

// flagToViperKey maps CLI flag names to viper configuration keys.
var flagToViperKey = map[string]string{
	"db-type": "database.type",
	"db-dsn":  "database.dsn",
	"addr":    "server.addr",
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	flags.VisitAll(func(f *pflag.Flag) {
		key := f.Name
		if mapped, ok := flagToViperKey[key]; ok {
			key = mapped
		}
		if f.Changed {
			_ = v.BindPFlag(key, f)
		}
	})
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "dev")

	v.SetDefault("server.addr", ":3003")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("database.type", "sqlite")
	v.SetDefault("database.dsn", "bloglist.db")

	v.SetDefault("auth.secret", "dev-bloglist-secret")
	v.SetDefault("auth.signing", "HS256")
	v.SetDefault("auth.token_ttl", time.Hour)
	v.SetDefault("auth.bcrypt_cost", 10)

	v.SetDefault("rate.login_per_minute", 20)
	v.SetDefault("rate.write_per_minute", 60)

	v.SetDefault("cors.enabled", true)
	v.SetDefault("cors.allowed_origins", []string{"*"})

	v.SetDefault("metrics.enabled", true)

	v.SetDefault("log.level", "info")
}

// Load reads configuration and returns a validated Config.
// Precedence, highest first: flags, env (BLOGLIST_*), config files, defaults.
// Later config files override earlier ones. flags may be nil.
func Load(configFiles []string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if len(configFiles) > 0 {
		v.SetConfigFile(configFiles[0])
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", configFiles[0], err)
		}
		for _, cf := range configFiles[1:] {
			v.SetConfigFile(cf)
			if err := v.MergeInConfig(); err != nil {
				return nil, fmt.Errorf("merge config %s: %w", cf, err)
			}
		}
	} else {
		v.SetConfigName("bloglist")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				slog.Warn("error reading config file", "err", err)
			}
		}
	}

	v.SetEnvPrefix("BLOGLIST")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		bindFlags(v, flags)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := validator.New().Struct(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) IsProd() bool {
	return c.Env == "prod" || c.Env == "production"
}
