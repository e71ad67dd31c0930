// Package config loads the controller and zone configuration of nsxctl.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/cuemby/nsx-orchestrator/pkg/types"
	"gopkg.in/yaml.v3"
)

// DefaultDataDir holds the provider store when none is configured
const DefaultDataDir = "./nsxctl-data"

// Config is the file layout:
//
//	controller:
//	  hostname: nsx.example.com
//	  username: admin
//	  password: secret
//	  tier0_gateway: t0
//	  edge_cluster: edge-cluster-1
//	secret_key: passphrase sealing stored passwords
//	zones:
//	  1:
//	    api_retries: 30
//	    api_retry_interval: 60
type Config struct {
	Controller  Controller                   `yaml:"controller"`
	Zones       map[int64]types.ZoneSettings `yaml:"zones"`
	DataDir     string                       `yaml:"data_dir"`
	SecretKey   string                       `yaml:"secret_key"`
	MetricsAddr string                       `yaml:"metrics_addr"`
	Log         Log                          `yaml:"log"`
}

// Controller describes how to reach the controller and where tenant
// gateways attach
type Controller struct {
	Hostname           string        `yaml:"hostname"`
	Port               int           `yaml:"port"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	InsecureSkipVerify bool          `yaml:"insecure_skip_verify"`
	CAFile             string        `yaml:"ca_file"`
	Timeout            time.Duration `yaml:"timeout"`
	Tier0Gateway       string        `yaml:"tier0_gateway"`
	EdgeCluster        string        `yaml:"edge_cluster"`
	TransportZone      string        `yaml:"transport_zone"`
}

// Log configures the global logger
type Log struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns a configuration with no controller and default settings
func Default() *Config {
	return &Config{
		Zones:   make(map[int64]types.ZoneSettings),
		DataDir: DefaultDataDir,
		Log:     Log{Level: "info"},
	}
}

// Load reads path, applies NSX_* environment overrides and validates the
// result. An empty path loads the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	overrides := map[string]*string{
		"NSX_HOST":           &c.Controller.Hostname,
		"NSX_USERNAME":       &c.Controller.Username,
		"NSX_PASSWORD":       &c.Controller.Password,
		"NSX_CA_FILE":        &c.Controller.CAFile,
		"NSX_TIER0_GATEWAY":  &c.Controller.Tier0Gateway,
		"NSX_EDGE_CLUSTER":   &c.Controller.EdgeCluster,
		"NSX_TRANSPORT_ZONE": &c.Controller.TransportZone,
		"NSX_DATA_DIR":       &c.DataDir,
		"NSX_SECRET_KEY":     &c.SecretKey,
		"NSX_LOG_LEVEL":      &c.Log.Level,
	}
	for key, dst := range overrides {
		if v, ok := os.LookupEnv(key); ok {
			*dst = v
		}
	}

	if v, ok := os.LookupEnv("NSX_PORT"); ok {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid NSX_PORT %q: %w", v, err)
		}
		c.Controller.Port = port
	}
	if v, ok := os.LookupEnv("NSX_INSECURE"); ok {
		insecure, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid NSX_INSECURE %q: %w", v, err)
		}
		c.Controller.InsecureSkipVerify = insecure
	}
	if v, ok := os.LookupEnv("NSX_TIMEOUT"); ok {
		timeout, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid NSX_TIMEOUT %q: %w", v, err)
		}
		c.Controller.Timeout = timeout
	}
	return nil
}

// HasController reports whether a controller is configured
func (c *Config) HasController() bool {
	return c.Controller.Hostname != ""
}

// Validate checks the configuration for missing or out of range values
func (c *Config) Validate() error {
	var errs []error

	if c.HasController() {
		ctl := c.Controller
		if ctl.Username == "" || ctl.Password == "" {
			errs = append(errs, errors.New("controller username and password are required"))
		}
		if ctl.Tier0Gateway == "" {
			errs = append(errs, errors.New("controller tier0_gateway is required"))
		}
		if ctl.Port < 0 || ctl.Port > 65535 {
			errs = append(errs, fmt.Errorf("controller port %d out of range", ctl.Port))
		}
		if ctl.Timeout < 0 {
			errs = append(errs, fmt.Errorf("controller timeout %s is negative", ctl.Timeout))
		}
	}

	for zone, settings := range c.Zones {
		if settings.APIRetries < 0 {
			errs = append(errs, fmt.Errorf("zone %d: api_retries must not be negative", zone))
		}
		if settings.APIRetryInterval < 0 {
			errs = append(errs, fmt.Errorf("zone %d: api_retry_interval must not be negative", zone))
		}
	}

	return errors.Join(errs...)
}

// ZoneSettings returns the settings of a zone. Unset values fall back to
// the defaults.
func (c *Config) ZoneSettings(zoneID int64) types.ZoneSettings {
	settings := c.Zones[zoneID]
	if settings.APIRetries == 0 {
		settings.APIRetries = types.DefaultAPIRetries
	}
	if settings.APIRetryInterval == 0 {
		settings.APIRetryInterval = types.DefaultAPIRetryInterval
	}
	return settings
}

// ToProvider returns the configured controller as the provider of a zone
func (c *Config) ToProvider(zoneID int64) (*types.Provider, error) {
	if !c.HasController() {
		return nil, errors.New("no controller configured")
	}
	ctl := c.Controller
	return &types.Provider{
		ZoneID:             zoneID,
		Name:               ctl.Hostname,
		Hostname:           ctl.Hostname,
		Port:               ctl.Port,
		Username:           ctl.Username,
		Password:           ctl.Password,
		Tier0Gateway:       ctl.Tier0Gateway,
		EdgeCluster:        ctl.EdgeCluster,
		TransportZone:      ctl.TransportZone,
		InsecureSkipVerify: ctl.InsecureSkipVerify,
		CAFile:             ctl.CAFile,
		Timeout:            ctl.Timeout,
		Settings:           c.ZoneSettings(zoneID),
	}, nil
}
