package config

import (
	"os"

	"gopkg.in/yaml.v3"

	glinterrors "github.com/odvcencio/glint/pkg/errors"
)

// loadAndMerge loads a YAML file and merges it into the config.
// Keys absent from the file keep their current values.
func loadAndMerge(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return mergeYAML(cfg, data)
}

func mergeYAML(cfg *Config, data []byte) error {
	if len(data) == 0 {
		return nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return glinterrors.Wrap(err, glinterrors.ErrCodeConfigParse, "parsing YAML")
	}
	return nil
}
