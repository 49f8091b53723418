package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all user-facing configuration for the free-classroom tool.
type Config struct {
	Data     DataConfig     `toml:"data"`
	Portal   PortalConfig   `toml:"portal"`
	Account  AccountConfig  `toml:"account"`
	OCR      OCRConfig      `toml:"ocr"`
	Semester SemesterConfig `toml:"semester"`
	Server   ServerConfig   `toml:"server"`
}

type DataConfig struct {
	Dir string `toml:"dir"`
	// Roster optionally points at an external classrooms.json; when
	// empty the imported or built-in roster is used.
	Roster string `toml:"roster"`
}

type PortalConfig struct {
	BaseURL   string  `toml:"base_url"`
	RateLimit float64 `toml:"rate_limit"`
	// TimeoutSeconds bounds a single portal request; the whole login
	// sequence is additionally bounded by LoginTimeoutSeconds.
	TimeoutSeconds      int `toml:"timeout_seconds"`
	LoginTimeoutSeconds int `toml:"login_timeout_seconds"`
}

type AccountConfig struct {
	Username string `toml:"username"`
	Password string `toml:"password"`
}

type OCRConfig struct {
	URL string `toml:"url"`
}

// SemesterConfig maps term strings ("2024-2025-2") to their Monday-of-week-1
// start dates in "2006-01-02" form.
type SemesterConfig struct {
	StartDates map[string]string `toml:"start_dates"`
}

type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// ConfigError reports missing or malformed configuration.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Defaults returns a Config populated with built-in default values.
func Defaults() *Config {
	return &Config{
		Data: DataConfig{Dir: "data"},
		Portal: PortalConfig{
			BaseURL:             "http://zhjw.qfnu.edu.cn",
			RateLimit:           1.0,
			TimeoutSeconds:      15,
			LoginTimeoutSeconds: 60,
		},
		Semester: SemesterConfig{StartDates: map[string]string{}},
		Server:   ServerConfig{Host: "localhost", Port: 8080},
	}
}

// Load reads a TOML config file. If the file does not exist, built-in
// defaults are returned without error.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, &ConfigError{Field: path, Err: err}
	}

	return cfg, nil
}

// RequireAccount verifies that login credentials are present.
func (c *Config) RequireAccount() error {
	if c.Account.Username == "" || c.Account.Password == "" {
		return &ConfigError{Field: "account", Err: fmt.Errorf("username and password must be set")}
	}
	return nil
}
