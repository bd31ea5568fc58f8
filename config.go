package stcp

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// Config carries the tunables of one connection endpoint.
type Config struct {
	LocalPort     int    `yaml:"local_port"`
	RemoteAddress string `yaml:"remote_address"`
	RemotePort    int    `yaml:"remote_port"`

	// Capacity bounds each direction's byte stream, and with it the
	// advertised receive window.
	Capacity     uint64 `yaml:"capacity"`
	InitialRTOMs uint64 `yaml:"initial_rto_ms"`
	MTU          int    `yaml:"mtu"`

	// Secure runs a Noise handshake on Dial; exactly one peer sets
	// SecureInitiator.
	Secure          bool `yaml:"secure"`
	SecureInitiator bool `yaml:"secure_initiator"`
}

func defaultConfig() *Config {
	return &Config{
		RemoteAddress: "localhost",
		Capacity:      defaultCapacity,
		InitialRTOMs:  defaultInitialRTO,
		MTU:           defaultMTU,
	}
}

// ReadConfig loads a YAML config file on top of the defaults.
func ReadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config file")
	}
	cfg := defaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parsing config file")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (cfg *Config) validate() error {
	if cfg.Capacity == 0 {
		return errors.New("capacity must be positive")
	}
	if cfg.InitialRTOMs == 0 {
		return errors.New("initial_rto_ms must be positive")
	}
	if cfg.MTU <= headerLength {
		return errors.Errorf("mtu must exceed the %d byte header", headerLength)
	}
	return nil
}
