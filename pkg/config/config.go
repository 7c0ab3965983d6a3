package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/mitchellh/mapstructure"
	"gopkg.in/yaml.v3"
)

// Config is a flat key/value configuration. Keys are conventionally upper
// snake case (ENABLE_RECOGNITION_ANALYTICS); values keep the type they were
// given and are converted on read.
//
// Safe for concurrent use.
type Config struct {
	mu     sync.RWMutex
	values map[string]any
}

// New creates an empty configuration.
func New() *Config {
	return &Config{values: make(map[string]any)}
}

// FromMap creates a configuration holding a copy of m.
func FromMap(m map[string]any) *Config {
	c := New()
	for k, v := range m {
		c.values[k] = v
	}
	return c
}

// FromEnv creates a configuration from the process environment.
func FromEnv() *Config {
	return FromEnviron(os.Environ())
}

// FromEnviron parses KEY=VALUE pairs.
func FromEnviron(environ []string) *Config {
	c := New()
	for _, kv := range environ {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			continue
		}
		c.values[k] = v
	}
	return c
}

// Load reads a configuration file (YAML or JSON) holding a flat mapping.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	values := make(map[string]any)
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	} else {
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	}
	return FromMap(values), nil
}

// Merge returns a new configuration with the values of c overridden by those of other.
func (c *Config) Merge(other *Config) *Config {
	out := New()
	for _, src := range []*Config{c, other} {
		if src == nil {
			continue
		}
		src.mu.RLock()
		for k, v := range src.values {
			out.values[k] = v
		}
		src.mu.RUnlock()
	}
	return out
}

// Set stores a value.
func (c *Config) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

// Get returns the raw value of key.
func (c *Config) Get(key string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

// Has reports whether key holds a non-empty value.
func (c *Config) Has(key string) bool {
	v, ok := c.Get(key)
	if !ok || v == nil {
		return false
	}
	if s, isString := v.(string); isString {
		return strings.TrimSpace(s) != ""
	}
	return true
}

// String returns key as a string, or def when absent.
func (c *Config) String(key, def string) string {
	v, ok := c.Get(key)
	if !ok || v == nil {
		return def
	}
	return fmt.Sprint(v)
}

// Keys returns the configured keys in lexical order.
func (c *Config) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.values))
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Decode fills out (a pointer to a struct tagged with `mapstructure:"KEY"`)
// from the configuration. Fields already set on out act as defaults.
//
// Strings are converted to the field type: "false" becomes a bool, "30s" a
// time.Duration and "a, b" a []string.
func (c *Config) Decode(out any) error {
	c.mu.RLock()
	input := make(map[string]any, len(c.values))
	for k, v := range c.values {
		input[k] = v
	}
	c.mu.RUnlock()

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			listHook,
		),
	})
	if err != nil {
		return err
	}
	if err := decoder.Decode(input); err != nil {
		return &domain.ConfigurationError{Reason: "cannot decode settings", Err: err}
	}
	return nil
}

// listHook splits comma separated strings into trimmed, non-empty items.
func listHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if from.Kind() != reflect.String || to.Kind() != reflect.Slice || to.Elem().Kind() != reflect.String {
		return data, nil
	}
	raw := reflect.ValueOf(data).String()
	items := []string{}
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			items = append(items, part)
		}
	}
	return items, nil
}
