// Package config loads protoskema CLI settings from YAML or TOML files.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	protoskema "github.com/reoring/protoskema"
	"github.com/reoring/protoskema/jsoncodec"
)

// Config is the root configuration structure.
type Config struct {
	ProtoPath  []string     `yaml:"proto_path" toml:"proto_path"`
	Verbose    bool         `yaml:"verbose" toml:"verbose"`
	JSONDriver string       `yaml:"json_driver" toml:"json_driver"` // "encoding/json" or "go-json"
	Print      PrintConfig  `yaml:"print" toml:"print"`
	Decode     DecodeConfig `yaml:"decode" toml:"decode"`
}

// PrintConfig configures JSON output. Nil fields keep the command default.
type PrintConfig struct {
	PreserveFieldNames         *bool  `yaml:"preserve_field_names" toml:"preserve_field_names"`
	AlwaysPrintPrimitiveFields *bool  `yaml:"always_print_primitive_fields" toml:"always_print_primitive_fields"`
	AlwaysPrintEnumsAsInts     *bool  `yaml:"always_print_enums_as_ints" toml:"always_print_enums_as_ints"`
	AddWhitespace              *bool  `yaml:"add_whitespace" toml:"add_whitespace"`
	Indent                     string `yaml:"indent" toml:"indent"`
}

// DecodeConfig configures JSON and wire input.
type DecodeConfig struct {
	Unknown        string `yaml:"unknown" toml:"unknown"`             // "strip" or "strict"
	DuplicateKey   string `yaml:"duplicate_key" toml:"duplicate_key"` // "ignore", "warn" or "error"
	MaxDepth       int    `yaml:"max_depth" toml:"max_depth"`
	MaxBytes       int64  `yaml:"max_bytes" toml:"max_bytes"`
	RecursionLimit int    `yaml:"recursion_limit" toml:"recursion_limit"`
}

// Load reads the file at path. The format follows the extension: .toml is
// TOML, anything else is YAML. Environment variables in the file are
// expanded and PROTOSKEMA_* variables override file values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		md, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
		if undec := md.Undecoded(); len(undec) > 0 {
			return nil, fmt.Errorf("parse config: unknown key %q", undec[0].String())
		}
	default:
		dec := yaml.NewDecoder(strings.NewReader(string(data)))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnvOverrides(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is given, with
// environment overrides applied.
func Default() *Config {
	var cfg Config
	applyEnvOverrides(&cfg)
	return &cfg
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("PROTOSKEMA_PROTO_PATH"); v != "" {
		cfg.ProtoPath = filepath.SplitList(v)
	}
	if v := os.Getenv("PROTOSKEMA_JSON_DRIVER"); v != "" {
		cfg.JSONDriver = v
	}
	if v := os.Getenv("PROTOSKEMA_VERBOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Verbose = b
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.JSONDriver {
	case "", "encoding/json", "go-json":
	default:
		return fmt.Errorf("config: json_driver must be encoding/json or go-json, got %q", cfg.JSONDriver)
	}
	switch cfg.Decode.Unknown {
	case "", "strip", "strict":
	default:
		return fmt.Errorf("config: decode.unknown must be strip or strict, got %q", cfg.Decode.Unknown)
	}
	switch cfg.Decode.DuplicateKey {
	case "", "ignore", "warn", "error":
	default:
		return fmt.Errorf("config: decode.duplicate_key must be ignore, warn or error, got %q", cfg.Decode.DuplicateKey)
	}
	if cfg.Decode.MaxDepth < 0 || cfg.Decode.MaxBytes < 0 || cfg.Decode.RecursionLimit < 0 {
		return fmt.Errorf("config: decode limits must not be negative")
	}
	return nil
}

// MarshalOptions overlays the print settings on base.
func (c *Config) MarshalOptions(base jsoncodec.MarshalOptions) jsoncodec.MarshalOptions {
	p := c.Print
	if p.PreserveFieldNames != nil {
		base.PreserveFieldNames = *p.PreserveFieldNames
	}
	if p.AlwaysPrintPrimitiveFields != nil {
		base.AlwaysPrintPrimitiveFields = *p.AlwaysPrintPrimitiveFields
	}
	if p.AlwaysPrintEnumsAsInts != nil {
		base.AlwaysPrintEnumsAsInts = *p.AlwaysPrintEnumsAsInts
	}
	if p.AddWhitespace != nil {
		base.AddWhitespace = *p.AddWhitespace
	}
	if p.Indent != "" {
		base.Indent = p.Indent
	}
	if c.Decode.RecursionLimit > 0 {
		base.RecursionLimit = c.Decode.RecursionLimit
	}
	return base
}

// UnmarshalOptions converts the decode settings.
func (c *Config) UnmarshalOptions() jsoncodec.UnmarshalOptions {
	o := jsoncodec.UnmarshalOptions{
		MaxDepth:       c.Decode.MaxDepth,
		MaxBytes:       c.Decode.MaxBytes,
		RecursionLimit: c.Decode.RecursionLimit,
	}
	if c.Decode.Unknown == "strict" {
		o.Unknown = protoskema.UnknownStrict
	}
	switch c.Decode.DuplicateKey {
	case "warn":
		o.Strictness.OnDuplicateKey = protoskema.Warn
	case "error":
		o.Strictness.OnDuplicateKey = protoskema.Error
	}
	return o
}
