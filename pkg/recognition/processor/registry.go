package processor

import (
	"sort"
	"strings"
	"sync"

	"github.com/aretw0/colloquy/pkg/domain"
	"github.com/aretw0/colloquy/pkg/ports"
)

// Registry resolves processors by case-insensitive identifier.
type Registry struct {
	mu   sync.RWMutex
	pre  map[string]func() ports.PreProcessor
	post map[string]func() ports.PostProcessor
}

// NewRegistry returns a registry holding the built-in processors.
func NewRegistry() *Registry {
	r := &Registry{
		pre:  make(map[string]func() ports.PreProcessor),
		post: make(map[string]func() ports.PostProcessor),
	}
	r.RegisterPre("Lowercase", Lowercase)
	r.RegisterPre("Trim", Trim)
	r.RegisterPre("NormalizeUnicode", NormalizeUnicode)
	r.RegisterPre("CollapseWhitespace", CollapseWhitespace)
	r.RegisterPre("InternetSlang", InternetSlang)
	r.RegisterPost("RemoveEnglishStopWords", RemoveEnglishStopWords)
	r.RegisterPost("TrimParameterValues", TrimParameterValues)
	return r
}

// RegisterPre adds or replaces a pre-processor constructor.
func (r *Registry) RegisterPre(id string, ctor func() ports.PreProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pre[strings.ToLower(id)] = ctor
}

// RegisterPost adds or replaces a post-processor constructor.
func (r *Registry) RegisterPost(id string, ctor func() ports.PostProcessor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.post[strings.ToLower(id)] = ctor
}

// Pre resolves ids in order. An unknown id yields a *domain.ConfigurationError
// naming key.
func (r *Registry) Pre(key string, ids []string) ([]ports.PreProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.PreProcessor, 0, len(ids))
	for _, id := range ids {
		ctor, ok := r.pre[strings.ToLower(strings.TrimSpace(id))]
		if !ok {
			return nil, &domain.ConfigurationError{Key: key, Reason: "unknown pre-processor " + id}
		}
		out = append(out, ctor())
	}
	return out, nil
}

// Post resolves ids in order. An unknown id yields a *domain.ConfigurationError
// naming key.
func (r *Registry) Post(key string, ids []string) ([]ports.PostProcessor, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]ports.PostProcessor, 0, len(ids))
	for _, id := range ids {
		ctor, ok := r.post[strings.ToLower(strings.TrimSpace(id))]
		if !ok {
			return nil, &domain.ConfigurationError{Key: key, Reason: "unknown post-processor " + id}
		}
		out = append(out, ctor())
	}
	return out, nil
}

// Names lists every registered identifier, lower-cased and sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var names []string
	for id := range r.pre {
		names = append(names, id)
	}
	for id := range r.post {
		names = append(names, id)
	}
	sort.Strings(names)
	return names
}
