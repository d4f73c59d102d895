package plugin

import (
	"sync"

	"github.com/Tsinling0525/flowrun/model"
)

// Registry maps each node type to its handler. It is filled once at startup.
type Registry struct {
	mu       sync.RWMutex
	handlers map[model.NodeType]Handler
}

func NewRegistry() *Registry {
	return &Registry{handlers: map[model.NodeType]Handler{}}
}

func (r *Registry) Register(nodeType model.NodeType, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[nodeType] = h
}

func (r *Registry) Lookup(nodeType model.NodeType) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[nodeType]
	return h, ok
}

// Missing lists the known node types that have no handler.
func (r *Registry) Missing() []model.NodeType {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []model.NodeType
	for _, t := range model.NodeTypes() {
		if _, ok := r.handlers[t]; !ok {
			out = append(out, t)
		}
	}
	return out
}
