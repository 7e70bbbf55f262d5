package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all application configuration
type Config struct {
	App      App      `mapstructure:"app"`
	Database Database `mapstructure:"database"`
	Server   Server   `mapstructure:"server"`
	Auth     Auth     `mapstructure:"auth"`
	Fetch    Fetch    `mapstructure:"fetch"`
	Import   Import   `mapstructure:"import"`
	User     User     `mapstructure:"user"`
}

// App holds general application configuration
type App struct {
	Mode     string `mapstructure:"mode"`
	LogLevel string `mapstructure:"log_level"`
}

// Database holds the sqlite location
type Database struct {
	Path string `mapstructure:"path"`
}

// Server holds HTTP server configuration
type Server struct {
	Addr           string   `mapstructure:"addr"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Auth holds JWT configuration
type Auth struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	Issuer    string        `mapstructure:"issuer"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// Fetch holds metadata fetching configuration
type Fetch struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// Import holds bulk import configuration
type Import struct {
	Concurrency int `mapstructure:"concurrency"`
}

// User identifies the local user for CLI commands
type User struct {
	ID string `mapstructure:"id"`
}

// Load reads configuration from an optional file, a .env file and FUNNEL_*
// environment variables, in increasing order of precedence.
func Load(configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	v := viper.New()
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".funnel"))
		}
		v.SetConfigName("funnel")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix("funnel")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.mode", "development")
	v.SetDefault("app.log_level", "info")

	defaultDB := "funnel.db"
	if home, err := os.UserHomeDir(); err == nil {
		defaultDB = filepath.Join(home, ".funnel", "funnel.db")
	}
	v.SetDefault("database.path", defaultDB)

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.issuer", "funnel")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	v.SetDefault("fetch.timeout", 5*time.Second)
	v.SetDefault("fetch.user_agent", "Mozilla/5.0 (compatible; KnowledgeFunnel/1.0)")

	v.SetDefault("import.concurrency", 4)

	v.SetDefault("user.id", "local")
}

func validate(cfg *Config) error {
	if cfg.Database.Path == "" {
		return fmt.Errorf("database.path must be set")
	}
	if cfg.Fetch.Timeout <= 0 {
		return fmt.Errorf("fetch.timeout must be positive")
	}
	if cfg.Import.Concurrency < 1 {
		return fmt.Errorf("import.concurrency must be at least 1")
	}
	if strings.TrimSpace(cfg.User.ID) == "" {
		return fmt.Errorf("user.id must be set")
	}
	return nil
}
