package factory

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/mitchellh/mapstructure"
)

// Config names a pluggable implementation and carries its raw settings as
// they came out of the config file.
type Config struct {
	Kind    string         `json:"type" yaml:"type"`
	Options map[string]any `json:"conf" yaml:"conf"`
}

// Builder turns raw settings into a concrete implementation of T.
type Builder[T any] func(map[string]any) (T, error)

// Registry maps kind names to builders. Registration happens at init time;
// lookups happen whenever the service is wired from config.
type Registry[T any] struct {
	mu       sync.RWMutex
	builders map[string]Builder[T]
}

func NewRegistry[T any]() *Registry[T] {
	return &Registry[T]{builders: make(map[string]Builder[T])}
}

// Register adds a builder under the given kind. Registering the same kind
// twice is an error so a typo cannot silently shadow an implementation.
func (r *Registry[T]) Register(kind string, b Builder[T]) error {
	if b == nil {
		return fmt.Errorf("nil builder for kind %q", kind)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.builders[kind]; ok {
		return fmt.Errorf("kind %q already registered", kind)
	}
	r.builders[kind] = b
	return nil
}

// Known lists the registered kinds, sorted.
func (r *Registry[T]) Known() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	kinds := make([]string, 0, len(r.builders))
	for k := range r.builders {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

// Create builds the implementation named by cfg.Kind.
func (r *Registry[T]) Create(cfg Config) (T, error) {
	r.mu.RLock()
	b, ok := r.builders[cfg.Kind]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("unknown kind %q (known: %s)", cfg.Kind, strings.Join(r.Known(), ", "))
	}
	return b(cfg.Options)
}

// Decode fills a typed settings struct from raw options using json tags,
// matching how the rest of the configuration is unmarshalled.
func Decode(options map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{TagName: "json", Result: out})
	if err != nil {
		return err
	}
	return dec.Decode(options)
}
