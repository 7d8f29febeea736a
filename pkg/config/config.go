// Package config holds all runtime configuration for bytecut, loaded
// from TOML, YAML, or JSON files and validated against a bundled JSON
// Schema before use.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
)

//go:embed schema.json
var schemaJSON []byte

// Config holds all configuration options for bytecut.
type Config struct {
	// Passes controls which transformation passes run.
	Passes PassesConfig `koanf:"passes" json:"passes" toml:"passes"`

	// Keep pins methods that must never be removed.
	Keep KeepConfig `koanf:"keep" json:"keep" toml:"keep"`

	// Platform configures the platform type oracle.
	Platform PlatformConfig `koanf:"platform" json:"platform" toml:"platform"`

	// Output controls report formatting.
	Output OutputConfig `koanf:"output" json:"output" toml:"output"`
}

// PassesConfig enables or disables individual passes.
type PassesConfig struct {
	DeadMethods bool `koanf:"dead_methods" json:"dead_methods" toml:"dead_methods"`
	Duplicates  bool `koanf:"duplicates" json:"duplicates" toml:"duplicates"`
}

// KeepConfig lists glob patterns for methods exempt from removal.
// Classes patterns match internal names; Methods patterns match bare
// method names.
type KeepConfig struct {
	Classes []string `koanf:"classes" json:"classes" toml:"classes"`
	Methods []string `koanf:"methods" json:"methods" toml:"methods"`
}

// PlatformConfig points the oracle at extra stub index files beyond
// the bundled one.
type PlatformConfig struct {
	Index string `koanf:"index" json:"index" toml:"index"`
}

// OutputConfig controls report output.
type OutputConfig struct {
	Format  string `koanf:"format" json:"format" toml:"format"` // text, json, markdown, toon
	Color   bool   `koanf:"color" json:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" json:"verbose" toml:"verbose"`
}

// DefaultConfig returns a config with sensible defaults: both passes
// on, nothing pinned, bundled platform index only.
func DefaultConfig() *Config {
	return &Config{
		Passes: PassesConfig{
			DeadMethods: true,
			Duplicates:  true,
		},
		Output: OutputConfig{
			Format: "text",
			Color:  true,
		},
	}
}

// Load loads and validates configuration from a file, layered over the
// defaults.
func Load(p string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	var parser koanf.Parser
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(p), parser); err != nil {
		return nil, fmt.Errorf("config: load %s: %w", p, err)
	}
	if err := validate(k.Raw()); err != nil {
		return nil, fmt.Errorf("config: %s: %w", p, err)
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", p, err)
	}
	return cfg, nil
}

// searchNames are the standard config file names, probed in order.
var searchNames = []string{
	"bytecut.toml",
	"bytecut.yaml",
	"bytecut.yml",
	"bytecut.json",
	".bytecut.toml",
	".bytecut.yaml",
	".bytecut.yml",
	".bytecut.json",
}

// FindFile returns the first standard config file that exists, or ""
// when there is none.
func FindFile() string {
	for _, name := range searchNames {
		if _, err := os.Stat(name); err == nil {
			return name
		}
	}
	return ""
}

// LoadOrDefault tries the standard locations and falls back to the
// defaults when no config file exists. A file that exists but fails to
// load or validate is an error, not a fallback.
func LoadOrDefault() (*Config, error) {
	if name := FindFile(); name != "" {
		return Load(name)
	}
	return DefaultConfig(), nil
}

// validate checks the raw config document against the bundled schema,
// so typos in pass or keep sections fail loudly instead of silently
// configuring nothing.
func validate(raw map[string]interface{}) error {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		panic(fmt.Sprintf("config: bundled schema: %v", err))
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("bytecut.schema.json", doc); err != nil {
		panic(fmt.Sprintf("config: bundled schema: %v", err))
	}
	schema, err := compiler.Compile("bytecut.schema.json")
	if err != nil {
		panic(fmt.Sprintf("config: bundled schema: %v", err))
	}
	if err := schema.Validate(normalize(raw)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// normalize coerces parser-specific scalar types into the JSON value
// space the schema validator expects.
func normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, val := range t {
			out[k] = normalize(val)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, val := range t {
			out[i] = normalize(val)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	default:
		return v
	}
}

// KeepMatcher compiles the keep rules into a predicate over
// (class internal name, method name). Empty rules match nothing.
// Class patterns use path globs, so "com/example/*" pins a package
// without crossing into subpackages.
func (c *Config) KeepMatcher() func(class, method string) bool {
	classes := append([]string(nil), c.Keep.Classes...)
	methods := append([]string(nil), c.Keep.Methods...)
	if len(classes) == 0 && len(methods) == 0 {
		return func(string, string) bool { return false }
	}
	return func(class, method string) bool {
		for _, pat := range classes {
			if ok, _ := path.Match(pat, class); ok {
				return true
			}
		}
		for _, pat := range methods {
			if ok, _ := path.Match(pat, method); ok {
				return true
			}
		}
		return false
	}
}
