package llm

import (
	"fmt"

	"github.com/ruslanv/metacbot/internal/config"
)

// Registry resolves role names ("default", "summarizer", "parser") to
// configured models. Roles without their own spec fall back to the default
// role.
type Registry struct {
	models map[string]*Model
}

// NewRegistry builds the role-keyed registry from configuration. The
// "researcher" role is not built here: research identifiers may name a search
// strategy rather than a model and are resolved by the research package.
func NewRegistry(factory *Factory, cfg config.LLMConfig) (*Registry, error) {
	if _, ok := cfg.Roles["default"]; !ok {
		return nil, fmt.Errorf("llm config must define a default role")
	}

	models := make(map[string]*Model, len(cfg.Roles))
	for role, spec := range cfg.Roles {
		if role == "researcher" || spec.Model == "" {
			continue
		}
		m, err := factory.FromRoleSpec(role, spec)
		if err != nil {
			return nil, err
		}
		models[role] = m
	}

	return &Registry{models: models}, nil
}

// Get returns the model for a role, falling back to the default role.
func (r *Registry) Get(role string) *Model {
	if m, ok := r.models[role]; ok {
		return m
	}
	return r.models["default"]
}
