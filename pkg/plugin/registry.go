// Package plugin is the provider registry. Provider packages register their
// factories from init; the CLI picks recognition and synthesis providers by
// name from configuration.
package plugin

import (
	"fmt"
	"sort"
	"sync"

	"github.com/chriscow/memora/pkg/ai/stt"
	"github.com/chriscow/memora/pkg/ai/tts"
	"github.com/chriscow/memora/pkg/ai/vad"
)

// Provider kinds.
const (
	KindSTT = "stt"
	KindTTS = "tts"
	KindVAD = "vad"
)

// Factory creates a provider from its configuration section. The result must
// implement the interface matching the plugin kind.
type Factory func(cfg map[string]any) (any, error)

// Plugin is a registered provider.
type Plugin struct {
	Kind        string
	Name        string
	Factory     Factory
	Description string
	// Config documents the keys the factory understands.
	Config map[string]any
}

// Registry maps kind and name to a plugin.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]map[string]*Plugin)}
}

var global = NewRegistry()

// Default returns the process-wide registry that init functions fill.
func Default() *Registry { return global }

// Register adds a plugin to the default registry. It panics on a duplicate.
func Register(p *Plugin) { global.Register(p) }

// List returns the plugins of kind in the default registry, or all of them
// when kind is empty.
func List(kind string) []*Plugin { return global.List(kind) }

// NewSTT builds the named recognition provider from the default registry.
func NewSTT(name string, cfg map[string]any) (stt.STT, error) {
	return build[stt.STT](global, KindSTT, name, cfg)
}

// NewTTS builds the named synthesis provider from the default registry.
func NewTTS(name string, cfg map[string]any) (tts.TTS, error) {
	return build[tts.TTS](global, KindTTS, name, cfg)
}

// NewVAD builds the named voice activity detector from the default registry.
func NewVAD(name string, cfg map[string]any) (vad.VAD, error) {
	return build[vad.VAD](global, KindVAD, name, cfg)
}

func build[T any](r *Registry, kind, name string, cfg map[string]any) (T, error) {
	var zero T
	p, ok := r.Get(kind, name)
	if !ok {
		return zero, fmt.Errorf("unknown %s provider %q (have %v)", kind, name, r.Names(kind))
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	v, err := p.Factory(cfg)
	if err != nil {
		return zero, fmt.Errorf("%s/%s: %w", kind, name, err)
	}
	t, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("%s/%s: factory returned %T", kind, name, v)
	}
	return t, nil
}

// Register adds p. Registering the same kind and name twice is a programming
// error and panics.
func (r *Registry) Register(p *Plugin) {
	if p.Kind == "" {
		panic("plugin kind cannot be empty")
	}
	if p.Name == "" {
		panic("plugin name cannot be empty")
	}
	if p.Factory == nil {
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.plugins[p.Kind] == nil {
		r.plugins[p.Kind] = make(map[string]*Plugin)
	}
	if _, dup := r.plugins[p.Kind][p.Name]; dup {
		panic(fmt.Sprintf("plugin %s/%s already registered", p.Kind, p.Name))
	}
	r.plugins[p.Kind][p.Name] = p
}

// Get looks up a plugin.
func (r *Registry) Get(kind, name string) (*Plugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[kind][name]
	return p, ok
}

// List returns plugins sorted by kind then name.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Plugin
	for k, byName := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, p := range byName {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Names returns the sorted provider names registered for kind.
func (r *Registry) Names(kind string) []string {
	var names []string
	for _, p := range r.List(kind) {
		names = append(names, p.Name)
	}
	return names
}
