package tools

import (
	"fmt"
	"sync"

	"product-discovery/internal/common/config"
	"product-discovery/internal/models"
)

// Registry holds the registered tools keyed by name. Registration order
// is preserved so dispatch is deterministic.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
	cfg   *config.Config
}

func NewRegistry(cfg *config.Config) *Registry {
	return &Registry{
		tools: make(map[string]Tool),
		cfg:   cfg,
	}
}

// Register adds a tool. Duplicate names are a wiring bug and rejected.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Names returns every registered tool name in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// ToolsFor returns the enabled tools that can serve the given intent,
// in registration order.
func (r *Registry) ToolsFor(kind models.IntentKind) []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var selected []Tool
	for _, name := range r.order {
		tool := r.tools[name]
		if !tool.CanHandle(kind) {
			continue
		}
		if r.cfg != nil && !config.IsToolEnabled(r.cfg, name) {
			continue
		}
		selected = append(selected, tool)
	}
	return selected
}
