package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

const (
	DriverMemDB  = "memdb"
	DriverSQLite = "sqlite"

	EnvAPIKey    = "WUFOO_API_KEY"
	EnvAPIDomain = "WUFOO_API_DOMAIN"
)

type Server struct {
	API    Api    `yaml:"api"`
	Vendor Vendor `yaml:"vendor"`
	Store  Store  `yaml:"store"`
}

type Api struct {
	HTTPAddr string `yaml:"http_addr"`
	// RateLimit is the number of requests allowed per minute, 0 disables it.
	RateLimit float64 `yaml:"rate_limit"`
}

type Vendor struct {
	APIDomain    string        `yaml:"api_domain"`
	APIKey       string        `yaml:"api_key"`
	AssetBaseURL string        `yaml:"asset_base_url"`
	Timeout      time.Duration `yaml:"timeout"`
}

type Store struct {
	Driver            string `yaml:"driver"`
	DSN               string `yaml:"dsn"`
	DeleteConcurrency int    `yaml:"delete_concurrency"`
}

func Default() Server {
	return Server{
		API: Api{HTTPAddr: "0.0.0.0:8001"},
		Vendor: Vendor{
			AssetBaseURL: "https://wufoo.com",
			Timeout:      30 * time.Second,
		},
		Store: Store{
			Driver:            DriverMemDB,
			DeleteConcurrency: 8,
		},
	}
}

// Parse reads the yaml file at path on top of Default. An empty path
// returns the defaults.
func Parse(path string) (Server, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Server{}, fmt.Errorf("read config file: %w", err)
	}

	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return Server{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// ApplyEnv overrides vendor credentials from the environment.
func (s *Server) ApplyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvAPIKey); ok && v != "" {
		s.Vendor.APIKey = v
	}
	if v, ok := lookup(EnvAPIDomain); ok && v != "" {
		s.Vendor.APIDomain = v
	}
}

func (s Server) Validate() error {
	if s.API.HTTPAddr == "" {
		return errors.New("api.http_addr is required")
	}
	if s.API.RateLimit < 0 {
		return errors.New("api.rate_limit must not be negative")
	}

	base, err := url.Parse(s.Vendor.AssetBaseURL)
	if err != nil {
		return fmt.Errorf("vendor.asset_base_url: %w", err)
	}
	if !base.IsAbs() {
		return fmt.Errorf("vendor.asset_base_url %q must be absolute", s.Vendor.AssetBaseURL)
	}
	if s.Vendor.Timeout < 0 {
		return errors.New("vendor.timeout must not be negative")
	}

	switch s.Store.Driver {
	case DriverMemDB:
	case DriverSQLite:
		if s.Store.DSN == "" {
			return errors.New("store.dsn is required for the sqlite driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q", s.Store.Driver)
	}
	if s.Store.DeleteConcurrency <= 0 {
		return errors.New("store.delete_concurrency must be positive")
	}

	return nil
}
