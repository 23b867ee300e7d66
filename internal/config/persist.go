package config

import (
	"bytes"
	"os"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/signalforge/engine/errors"
)

// Persist writes cfg to path as TOML, overwriting any existing file.
func Persist(cfg *Config, path string) error {
	var buf bytes.Buffer
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(cfg); err != nil {
		return errors.Wrap(err, "encode config")
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return errors.Wrapf(err, "write config to %s", path)
	}
	return nil
}
