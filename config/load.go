package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/njsecure/orbit"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ORBIT"

// DefaultFile is the config file looked up when no path is given.
const DefaultFile = "orbit.yaml"

// New returns a viper instance with defaults and environment bindings.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	BindLegacyEnv(v)
	SetDefaults(v)
	return v
}

// Load reads the configuration from path, applies the environment and
// validates the result. An empty path reads DefaultFile if it exists.
func Load(path string) (*Config, error) {
	v := New()

	explicit := path != ""
	if !explicit {
		path = DefaultFile
	}
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		missing := errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist)
		if explicit || !missing {
			return nil, orbit.NewConfigurationError("config.Load",
				fmt.Errorf("%w: read config file %s: %w", orbit.ErrInvalidConfig, path, err))
		}
	}

	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, orbit.NewConfigurationError("config.Load",
			fmt.Errorf("%w: decode config: %w", orbit.ErrInvalidConfig, err))
	}
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration with no file and no environment.
func Default() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	// Defaults always decode.
	_ = v.Unmarshal(&cfg)
	cfg.normalize()
	return &cfg
}

// Write saves cfg as YAML at path.
func Write(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) normalize() {
	c.Sources.D3FEND.Tactics = splitList(c.Sources.D3FEND.Tactics)
	c.Triples.EtcdEndpoints = splitList(c.Triples.EtcdEndpoints)
	c.Triples.Backend = strings.ToLower(strings.TrimSpace(c.Triples.Backend))
	c.Semantic.Provider = strings.ToLower(strings.TrimSpace(c.Semantic.Provider))
	c.Logging.Level = strings.ToLower(c.Logging.Level)
	c.Logging.Format = strings.ToLower(c.Logging.Format)
}

// splitList flattens comma-separated entries and drops blanks.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}
