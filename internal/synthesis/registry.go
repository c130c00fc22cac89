package synthesis

import (
	"fmt"
	"log/slog"

	"github.com/eleven-am/speech-delivery/internal/shared"
)

// Registry holds the configured providers and resolves the default and
// fallback choices. Providers requiring credentials are only registered
// when their key is configured; edge needs none and is always present.
type Registry struct {
	providers map[string]Provider
	def       string
	fallback  string
	log       *slog.Logger
}

func NewRegistry(cfg Config, log *slog.Logger) (*Registry, error) {
	if log == nil {
		log = slog.Default()
	}

	providers := make(map[string]Provider)
	if cfg.OpenAIKey != "" {
		providers["openai"] = NewOpenAI(OpenAIConfig{APIKey: cfg.OpenAIKey, ArtifactDir: cfg.ArtifactDir})
	}
	if cfg.ElevenLabsKey != "" {
		providers["elevenlabs"] = NewElevenLabs(ElevenLabsConfig{APIKey: cfg.ElevenLabsKey, ArtifactDir: cfg.ArtifactDir})
	}
	providers["edge"] = NewEdge(EdgeConfig{ArtifactDir: cfg.ArtifactDir})

	def := cfg.DefaultProvider
	if def == "" {
		switch {
		case cfg.OpenAIKey != "":
			def = "openai"
		case cfg.ElevenLabsKey != "":
			def = "elevenlabs"
		default:
			def = "edge"
		}
	}
	if _, ok := providers[def]; !ok {
		return nil, fmt.Errorf("default provider %q is not configured", def)
	}

	fallback := cfg.FallbackProvider
	if fallback == "" {
		fallback = "edge"
	}
	if _, ok := providers[fallback]; !ok {
		return nil, fmt.Errorf("fallback provider %q is not configured", fallback)
	}

	log.Info("synthesis providers registered", "default", def, "fallback", fallback, "count", len(providers))
	return &Registry{
		providers: providers,
		def:       def,
		fallback:  fallback,
		log:       log,
	}, nil
}

// NewRegistryWithProviders builds a registry from explicit providers.
func NewRegistryWithProviders(def, fallback string, providers ...Provider) (*Registry, error) {
	m := make(map[string]Provider, len(providers))
	for _, p := range providers {
		m[p.Name()] = p
	}
	if _, ok := m[def]; !ok {
		return nil, fmt.Errorf("default provider %q is not registered", def)
	}
	if _, ok := m[fallback]; !ok {
		return nil, fmt.Errorf("fallback provider %q is not registered", fallback)
	}
	return &Registry{providers: m, def: def, fallback: fallback, log: slog.Default()}, nil
}

func (r *Registry) Get(name string) (Provider, error) {
	if name == "" {
		return r.providers[r.def], nil
	}
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrNoSuchProvider, name)
	}
	return p, nil
}

func (r *Registry) Default() Provider {
	return r.providers[r.def]
}

func (r *Registry) Fallback() Provider {
	return r.providers[r.fallback]
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}
