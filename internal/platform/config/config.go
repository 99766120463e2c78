// Package config builds client configuration from the environment so main
// stays lean. The API base URL is fail-closed: outside development it must
// be explicitly set and HTTPS, never silently defaulted.
package config

import (
	"net/url"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"

	"bookden/pkg/domainerrors"
)

// DefaultLocalAPIURL is the development-only fallback upstream.
const DefaultLocalAPIURL = "http://localhost:8000/api/v1/"

const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

// Config captures everything the client process needs at boot.
type Config struct {
	Env             string        `yaml:"env" env:"BOOKDEN_ENV" env-default:"development"`
	APIBaseURL      string        `yaml:"api_base_url" env:"BOOKDEN_API_URL"`
	CredentialsPath string        `yaml:"credentials_path" env:"BOOKDEN_CREDENTIALS_PATH"`
	RequestTimeout  time.Duration `yaml:"request_timeout" env:"BOOKDEN_REQUEST_TIMEOUT" env-default:"30s"`
}

// Load reads configuration from the environment, applying the fail-closed
// base URL policy.
func Load() (Config, error) {
	return load("")
}

// LoadFromFile reads a YAML config file, then the environment on top.
func LoadFromFile(path string) (Config, error) {
	return load(path)
}

func load(path string) (Config, error) {
	var cfg Config
	var err error
	if path != "" {
		err = cleanenv.ReadConfig(path, &cfg)
	} else {
		err = cleanenv.ReadEnv(&cfg)
	}
	if err != nil {
		return Config{}, domainerrors.Wrap(err, domainerrors.CodeConfiguration, "reading configuration")
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Env {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return domainerrors.Newf(domainerrors.CodeConfiguration, "unknown environment %q", c.Env)
	}

	if c.APIBaseURL == "" {
		if c.Env != EnvDevelopment {
			return domainerrors.New(domainerrors.CodeConfiguration,
				"BOOKDEN_API_URL is not set; staging and production require an explicit HTTPS endpoint, refusing to fall back to an insecure default")
		}
		c.APIBaseURL = DefaultLocalAPIURL
		return nil
	}

	// Exact hostname match; a prefix check would admit hosts like
	// localhost.evil.com.
	isLoopback := false
	if u, err := url.Parse(c.APIBaseURL); err == nil {
		host := u.Hostname()
		isLoopback = host == "localhost" || host == "127.0.0.1"
	}

	if c.Env != EnvDevelopment {
		if !strings.HasPrefix(c.APIBaseURL, "https://") {
			return domainerrors.Newf(domainerrors.CodeConfiguration,
				"BOOKDEN_API_URL must begin with https:// outside development, got %q", c.APIBaseURL)
		}
		return nil
	}

	// Development allows HTTPS anywhere or plain HTTP to loopback only.
	if !strings.HasPrefix(c.APIBaseURL, "https://") && !isLoopback {
		return domainerrors.Newf(domainerrors.CodeConfiguration,
			"BOOKDEN_API_URL must be HTTPS or point at localhost/127.0.0.1 in development, got %q", c.APIBaseURL)
	}
	return nil
}

// IsDevelopment reports whether the process runs in the development environment.
func (c Config) IsDevelopment() bool { return c.Env == EnvDevelopment }
