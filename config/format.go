package config

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// fileFormat identifies a supported configuration file syntax.
type fileFormat string

const (
	formatJSON fileFormat = "json"
	formatTOML fileFormat = "toml"
	formatYAML fileFormat = "yaml"
)

// formatForPath maps a file extension to its format.
func formatForPath(path string) (fileFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".toml":
		return formatTOML, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	default:
		return "", fmt.Errorf("unsupported config format %q (use .json, .toml, .yaml or .yml)", filepath.Ext(path))
	}
}

func (f fileFormat) decode(data []byte) (map[string]any, error) {
	var raw map[string]any

	switch f {
	case formatJSON:
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case formatTOML:
		if err := toml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	case formatYAML:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", string(f))
	}

	if err := checkNesting(raw); err != nil {
		return nil, err
	}
	return raw, nil
}
