package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server      ServerConfig      `mapstructure:"server"`
	Game        GameConfig        `mapstructure:"game"`
	Computer    ComputerConfig    `mapstructure:"computer"`
	Sound       SoundConfig       `mapstructure:"sound"`
	Storage     StorageConfig     `mapstructure:"storage"`
	Development DevelopmentConfig `mapstructure:"development"`
}

type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

type GameConfig struct {
	InitialSeconds int           `mapstructure:"initial_seconds"`
	ComputerDelay  time.Duration `mapstructure:"computer_delay"`
}

type ComputerConfig struct {
	Enabled    bool `mapstructure:"enabled"`
	Difficulty int  `mapstructure:"difficulty"`
}

type SoundConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

// StorageConfig selects where saved games live. RedisURL wins over Path
// when both are set.
type StorageConfig struct {
	Path     string `mapstructure:"path"`
	RedisURL string `mapstructure:"redis_url"`
	RedisKey string `mapstructure:"redis_key"`
}

type DevelopmentConfig struct {
	Debug    bool   `mapstructure:"debug"`
	LogLevel string `mapstructure:"log_level"`
}

// Addr is the listen address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

func Load() (*Config, error) {
	return LoadFrom(viper.New(), ".", "./config")
}

// LoadFrom reads config.yaml from the first matching path into v. Missing
// files fall back to defaults; DESKCHESS_* environment variables override
// both.
func LoadFrom(v *viper.Viper, paths ...string) (*Config, error) {
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	for _, p := range paths {
		v.AddConfigPath(p)
	}

	// Enable environment variables
	v.SetEnvPrefix("DESKCHESS")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, defaults and environment only
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("server.host", d.Server.Host)
	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("game.initial_seconds", d.Game.InitialSeconds)
	v.SetDefault("game.computer_delay", d.Game.ComputerDelay)
	v.SetDefault("computer.enabled", d.Computer.Enabled)
	v.SetDefault("computer.difficulty", d.Computer.Difficulty)
	v.SetDefault("sound.enabled", d.Sound.Enabled)
	v.SetDefault("storage.path", d.Storage.Path)
	v.SetDefault("storage.redis_url", d.Storage.RedisURL)
	v.SetDefault("storage.redis_key", d.Storage.RedisKey)
	v.SetDefault("development.debug", d.Development.Debug)
	v.SetDefault("development.log_level", d.Development.LogLevel)
}

// Defaults is the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host: "localhost",
			Port: 8080,
		},
		Game: GameConfig{
			InitialSeconds: 600,
			ComputerDelay:  500 * time.Millisecond,
		},
		Computer: ComputerConfig{
			Enabled:    false,
			Difficulty: 1,
		},
		Sound: SoundConfig{
			Enabled: true,
		},
		Storage: StorageConfig{
			Path:     "deskchess-save.car",
			RedisKey: "deskchess:snapshot",
		},
		Development: DevelopmentConfig{
			Debug:    false,
			LogLevel: "info",
		},
	}
}

func (c *Config) validate() error {
	if c.Game.InitialSeconds <= 0 {
		return fmt.Errorf("game.initial_seconds must be positive, got %d", c.Game.InitialSeconds)
	}
	if c.Game.ComputerDelay < 0 {
		return fmt.Errorf("game.computer_delay must not be negative, got %s", c.Game.ComputerDelay)
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return nil
}
