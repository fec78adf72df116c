package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"sigs.k8s.io/yaml"
)

// Encoder renders v to w.
type Encoder func(w io.Writer, v any) error

// Registry maps format names to encoders.
type Registry struct {
	mu       sync.RWMutex
	encoders map[string]Encoder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{encoders: make(map[string]Encoder)}
}

// Register adds an encoder under name, replacing any previous one.
func (r *Registry) Register(name string, enc Encoder) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.encoders[name] = enc
}

// Encoder returns the encoder registered under name.
func (r *Registry) Encoder(name string) (Encoder, error) {
	r.mu.RLock()
	enc, ok := r.encoders[name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("unknown output format %q: must be one of %s", name, strings.Join(r.Formats(), ", "))
	}

	return enc, nil
}

// Encode renders v to w in the named format.
func (r *Registry) Encode(w io.Writer, format string, v any) error {
	enc, err := r.Encoder(format)
	if err != nil {
		return err
	}

	return enc(w, v)
}

// Formats returns the registered format names, sorted.
func (r *Registry) Formats() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.encoders))
	for name := range r.encoders {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// DefaultRegistry returns a registry with the yaml and json encoders.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("yaml", EncodeYAML)
	r.Register("json", EncodeJSON)

	return r
}

// EncodeYAML renders v as YAML. Field names follow the json tags, so YAML and
// JSON listings always agree.
func EncodeYAML(w io.Writer, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling yaml: %w", err)
	}

	_, err = w.Write(data)

	return err
}

// EncodeJSON renders v as indented JSON.
func EncodeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("marshaling json: %w", err)
	}

	return nil
}
