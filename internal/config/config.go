package config

import (
	"fmt"
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Database DatabaseConfig `mapstructure:"database"`
	Client   ClientConfig   `mapstructure:"client"`
	Decks    DecksConfig    `mapstructure:"decks"`
}

type ServerConfig struct {
	Port        int             `mapstructure:"port" validate:"min=1,max=65535"`
	CORS        CORSConfig      `mapstructure:"cors"`
	RateLimit   RateLimitConfig `mapstructure:"rate_limit"`
	TLSCertFile string          `mapstructure:"tls_cert_file" validate:"omitempty,file"`
	TLSKeyFile  string          `mapstructure:"tls_key_file" validate:"omitempty,file"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// RateLimitConfig limits requests per client address. Zero disables limiting.
type RateLimitConfig struct {
	RequestsPerSecond float64 `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int     `mapstructure:"burst" validate:"gte=0"`
}

const (
	StorageMemory   = "memory"
	StorageYAML     = "yaml"
	StorageMySQL    = "mysql"
	StoragePostgres = "postgres"
	StorageSQLite   = "sqlite"
)

type StorageConfig struct {
	Driver     string `mapstructure:"driver" validate:"oneof=memory yaml mysql postgres sqlite"`
	YAMLFile   string `mapstructure:"yaml_file" validate:"required_if=Driver yaml"`
	SQLiteFile string `mapstructure:"sqlite_file" validate:"required_if=Driver sqlite"`
}

type DatabaseConfig struct {
	Host            string            `mapstructure:"host"`
	Port            int               `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Database        string            `mapstructure:"database"`
	Username        string            `mapstructure:"username"`
	Password        string            `mapstructure:"password"`
	TLS             bool              `mapstructure:"tls"`
	Params          map[string]string `mapstructure:"params"`
	MaxOpenConns    int               `mapstructure:"max_open_conns" validate:"gte=0"`
	MaxIdleConns    int               `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetime int               `mapstructure:"conn_max_lifetime_seconds" validate:"gte=0"`
	ConnectAttempts uint              `mapstructure:"connect_attempts" validate:"min=1"`
}

type ClientConfig struct {
	BaseURL        string `mapstructure:"base_url" validate:"required,url"`
	RetryAttempts  uint   `mapstructure:"retry_attempts"`
	TimeoutSeconds int    `mapstructure:"timeout_seconds" validate:"gte=0"`
}

type DecksConfig struct {
	RepositoriesDirectory string `mapstructure:"repositories_directory" validate:"required"`
}

type ConfigLoader struct {
	viper      *viper.Viper
	validator  *validator.Validate
	translator ut.Translator
}

func NewConfigLoader(configFile string) (*ConfigLoader, error) {
	validate, trans, err := newValidator()
	if err != nil {
		return nil, fmt.Errorf("failed to create new validator: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.config/studydeck")
	}

	return &ConfigLoader{
		viper:      v,
		validator:  validate,
		translator: trans,
	}, nil
}

func (loader *ConfigLoader) Load() (*Config, error) {
	v := loader.viper

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors.allowed_origins", []string{"http://localhost:3000", "http://127.0.0.1:5500"})
	v.SetDefault("server.rate_limit.requests_per_second", 10)
	v.SetDefault("server.rate_limit.burst", 20)
	v.SetDefault("storage.driver", StorageYAML)
	v.SetDefault("storage.yaml_file", "study_data.yml")
	v.SetDefault("storage.sqlite_file", "studydeck.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.database", "studydeck")
	v.SetDefault("database.username", "user")
	v.SetDefault("database.connect_attempts", 5)
	v.SetDefault("client.base_url", "http://localhost:8080")
	v.SetDefault("client.retry_attempts", 3)
	v.SetDefault("client.timeout_seconds", 10)
	v.SetDefault("decks.repositories_directory", "decks")

	// The study client talks to the port given in PORT.
	if err := v.BindEnv("server.port", "PORT"); err != nil {
		return nil, fmt.Errorf("failed to bind PORT environment variable: %w", err)
	}
	// Bind database password to environment variable
	if err := v.BindEnv("database.password", "DB_PASSWORD"); err != nil {
		return nil, fmt.Errorf("failed to bind DB_PASSWORD environment variable: %w", err)
	}
	if err := v.BindEnv("client.base_url", "STUDYDECK_SERVER_URL"); err != nil {
		return nil, fmt.Errorf("failed to bind STUDYDECK_SERVER_URL environment variable: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("configuration file found but could not be read: %w. Please check the file format and permissions", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration format: %w", err)
	}

	if err := loader.validator.Struct(cfg); err != nil {
		validationErrors, ok := err.(validator.ValidationErrors)
		if !ok {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		var errorMsgs []string
		for _, e := range validationErrors {
			errorMsgs = append(errorMsgs, e.Translate(loader.translator))
		}
		return nil, fmt.Errorf("invalid configuration: %s", strings.Join(errorMsgs, ", "))
	}

	return &cfg, nil
}

// Load reads the configuration from configFile, or from the default
// locations when configFile is empty.
func Load(configFile string) (*Config, error) {
	loader, err := NewConfigLoader(configFile)
	if err != nil {
		return nil, err
	}
	return loader.Load()
}
