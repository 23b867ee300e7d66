package config

import (
	"github.com/spf13/viper"

	"github.com/signalforge/engine/errors"
)

// Load reads the engine configuration from the conventional search path
// (./signalforge.toml, $HOME/.config/signalforge/signalforge.toml,
// /etc/signalforge/signalforge.toml) via Viper, falling back to defaults for
// anything unset. A missing config file is not an error.
func Load() (*Config, error) {
	v := newViper()
	v.SetConfigName("signalforge")
	v.AddConfigPath(".")
	v.AddConfigPath("$HOME/.config/signalforge")
	v.AddConfigPath("/etc/signalforge")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, errors.Wrap(err, "load config")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from an explicit TOML path.
func LoadFromFile(path string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(path)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrapf(err, "load config from %s", path)
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshal config")
	}
	return &cfg, nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("toml")
	v.SetEnvPrefix("SIGNALFORGE")
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}
