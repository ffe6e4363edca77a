package confloader

import (
	"fmt"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// DefaultEnvPrefix is the default environment variable prefix.
const DefaultEnvPrefix = "GOUDANET_"

// envSectionSep separates nesting levels in environment variable names.
// A single underscore stays part of the key.
const envSectionSep = "__"

// Loader merges, in order, a YAML file, GOUDANET_ environment variables and
// dotted-key overrides. Later sources win.
type Loader struct {
	k         *koanf.Koanf
	envPrefix string
	filePath  string
	overrides map[string]any
}

// Option is a function that configures the Loader.
type Option func(*Loader)

// WithEnvPrefix sets the environment variable prefix.
func WithEnvPrefix(prefix string) Option {
	return func(l *Loader) {
		l.envPrefix = prefix
	}
}

// WithConfigFile sets the configuration file path.
func WithConfigFile(path string) Option {
	return func(l *Loader) {
		l.filePath = path
	}
}

// WithOverrides sets dotted-key values applied after every other source.
func WithOverrides(values map[string]any) Option {
	return func(l *Loader) {
		l.overrides = values
	}
}

// NewLoader creates a new configuration loader.
func NewLoader(opts ...Option) *Loader {
	l := &Loader{
		k:         koanf.New("."),
		envPrefix: DefaultEnvPrefix,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load merges every source and unmarshals into target. Fields no source
// sets keep their current values, so a target pre-filled with defaults
// yields defaults for missing keys.
func (l *Loader) Load(target any) error {
	steps := []struct {
		name string
		load func() error
	}{
		{"config file", func() error { return l.LoadFile(l.filePath) }},
		{"env", l.LoadEnv},
		{"overrides", func() error { return l.LoadMap(l.overrides) }},
	}
	for _, s := range steps {
		if err := s.load(); err != nil {
			return fmt.Errorf("load %s: %w", s.name, err)
		}
	}
	if err := l.k.Unmarshal("", target); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

// LoadFile merges a YAML file. An empty path is a no-op.
func (l *Loader) LoadFile(path string) error {
	if path == "" {
		return nil
	}
	if err := l.k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

// LoadEnv merges environment variables carrying the loader's prefix.
// GOUDANET_SESSION__MAX_PREDICTION=4 sets session.max_prediction.
func (l *Loader) LoadEnv() error {
	prefix := l.envPrefix
	return l.k.Load(env.Provider(prefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, prefix))
		return strings.ReplaceAll(s, envSectionSep, ".")
	}), nil)
}

// LoadMap merges a map of dotted keys. A nil map is a no-op.
func (l *Loader) LoadMap(data map[string]any) error {
	if len(data) == 0 {
		return nil
	}
	return l.k.Load(mapProvider(data), nil)
}

// String returns the merged value of a dotted key.
func (l *Loader) String(key string) string {
	return l.k.String(key)
}

// ParseOverrides turns "key=value" pairs into an override map. Values stay
// strings; koanf converts them while unmarshalling.
func ParseOverrides(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		key, value, ok := strings.Cut(p, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("override %q: want key=value", p)
		}
		out[key] = value
	}
	return out, nil
}
