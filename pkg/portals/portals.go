// Package portals maps supplier codes to their workflow variant factories.
// Concrete variants live in subpackages and register here at startup.
package portals

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/dorumake/robot/pkg/config"
	"github.com/dorumake/robot/pkg/engine"
)

var ErrUnknownSupplier = errors.New("supplier not registered")

// Factory builds a fresh variant bound to one engine run.
type Factory func(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) engine.Variant

type Registry struct {
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: make(map[string]Factory)}
}

func (r *Registry) Register(supplierCode string, factory Factory) {
	r.factories[supplierCode] = factory
}

func (r *Registry) Create(
	supplierCode string,
	eng *engine.Engine,
	cfg *config.Config,
	logger *slog.Logger,
) (engine.Variant, error) {
	factory, ok := r.factories[supplierCode]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSupplier, supplierCode)
	}

	return factory(eng, cfg, logger), nil
}

func (r *Registry) Has(supplierCode string) bool {
	_, ok := r.factories[supplierCode]

	return ok
}

// Suppliers returns the registered supplier codes, sorted for stable
// queue setup and logging.
func (r *Registry) Suppliers() []string {
	codes := make([]string, 0, len(r.factories))
	for code := range r.factories {
		codes = append(codes, code)
	}

	sort.Strings(codes)

	return codes
}
