package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/BurntSushi/toml"
	pkgconfig "github.com/goran-ethernal/TzIndexor/pkg/config"
	"gopkg.in/yaml.v3"
)

// decodeFunc decodes a whole configuration document into cfg. Unknown keys are
// rejected: a misspelled protocol constant would otherwise decode as zero and
// silently change cycle and freezer arithmetic.
type decodeFunc func(data []byte, cfg *pkgconfig.Config) error

var decoders = map[string]decodeFunc{
	".yaml": decodeYAML,
	".yml":  decodeYAML,
	".json": decodeJSON,
	".toml": decodeTOML,
}

// LoadFromFile loads configuration from a file, picking the decoder by extension.
// Supported formats: .yaml, .yml, .json, .toml
func LoadFromFile(path string) (*pkgconfig.Config, error) {
	ext := strings.ToLower(filepath.Ext(path))

	decode, ok := decoders[ext]
	if !ok {
		supported := make([]string, 0, len(decoders))
		for e := range decoders {
			supported = append(supported, e)
		}
		slices.Sort(supported)
		return nil, fmt.Errorf("unsupported config file format: %q (supported: %s)", ext, strings.Join(supported, ", "))
	}

	return load(path, decode)
}

// LoadFromYAML loads configuration from a YAML file.
func LoadFromYAML(path string) (*pkgconfig.Config, error) {
	return load(path, decodeYAML)
}

// LoadFromJSON loads configuration from a JSON file.
func LoadFromJSON(path string) (*pkgconfig.Config, error) {
	return load(path, decodeJSON)
}

// LoadFromTOML loads configuration from a TOML file.
func LoadFromTOML(path string) (*pkgconfig.Config, error) {
	return load(path, decodeTOML)
}

func load(path string, decode decodeFunc) (*pkgconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg pkgconfig.Config
	if err := decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", filepath.Base(path), err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func decodeYAML(data []byte, cfg *pkgconfig.Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	// an empty document leaves cfg untouched and fails validation instead
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("yaml: %w", err)
	}
	return nil
}

func decodeJSON(data []byte, cfg *pkgconfig.Config) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	if err := dec.Decode(cfg); err != nil {
		return fmt.Errorf("json: %w", err)
	}
	return nil
}

func decodeTOML(data []byte, cfg *pkgconfig.Config) error {
	md, err := toml.Decode(string(data), cfg)
	if err != nil {
		return fmt.Errorf("toml: %w", err)
	}

	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return fmt.Errorf("toml: unknown keys %s", strings.Join(keys, ", "))
	}
	return nil
}
