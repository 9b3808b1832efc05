package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// decodeFunc parses raw config bytes into the backing map.
type decodeFunc func(data []byte, into *map[string]any) error

// decoders maps lowercase file extensions to their parser. JSON gets
// its own decoder rather than riding on YAML's superset handling so
// json error messages point at json syntax.
var decoders = map[string]decodeFunc{
	".yaml": decodeYAML,
	".yml":  decodeYAML,
	".json": decodeJSON,
}

func decodeYAML(data []byte, into *map[string]any) error {
	return yaml.Unmarshal(data, into)
}

func decodeJSON(data []byte, into *map[string]any) error {
	return json.Unmarshal(data, into)
}

// FromFile loads a Config from a file, picking the parser by file
// extension (.yaml, .yml, or .json).
func FromFile(path string) (Config, error) {
	ext := strings.ToLower(filepath.Ext(path))
	decode, ok := decoders[ext]
	if !ok {
		return Config{}, fmt.Errorf("unsupported config file extension: %s", ext)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config file: %w", err)
	}

	var m map[string]any
	if err := decode(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return New(m), nil
}

// FromYAML parses YAML bytes into a Config.
func FromYAML(data []byte) (Config, error) {
	var m map[string]any
	if err := decodeYAML(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return New(m), nil
}

// FromJSON parses JSON bytes into a Config.
func FromJSON(data []byte) (Config, error) {
	var m map[string]any
	if err := decodeJSON(data, &m); err != nil {
		return Config{}, fmt.Errorf("parse json: %w", err)
	}
	return New(m), nil
}

// SettingsFromFile loads a config file and extracts the executor
// settings from it in one call. The common deployment path: point the
// process at a YAML file and hand the result to the executor.
func SettingsFromFile(path string) (ExecutorSettings, error) {
	cfg, err := FromFile(path)
	if err != nil {
		return ExecutorSettings{}, err
	}
	return LoadExecutorSettings(cfg)
}
