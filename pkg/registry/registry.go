// Package registry holds the explicit catalog of unit factories. It is
// constructed once at startup and passed by dependency injection into the
// orchestrator, so tests can substitute units freely and no process-wide
// mutable state exists.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/costray/costray/pkg/models"
	"github.com/costray/costray/pkg/protocol"
)

type Registry struct {
	logger        *slog.Logger
	unitFactories map[string]protocol.UnitFactory
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger:        logger,
		unitFactories: make(map[string]protocol.UnitFactory),
	}
}

func (r *Registry) RegisterUnit(factory protocol.UnitFactory) {
	r.unitFactories[factory.ID()] = factory
}

func (r *Registry) CreateUnit(descriptor models.UnitDescriptor) (protocol.Unit, error) {
	factory, ok := r.unitFactories[descriptor.Type]
	if !ok {
		return nil, fmt.Errorf("unit type '%s' not registered", descriptor.Type)
	}

	return factory.Create(descriptor)
}

// Instantiate creates every unit in the catalog, preserving catalog order.
func (r *Registry) Instantiate(catalog []models.UnitDescriptor) ([]protocol.Unit, error) {
	units := make([]protocol.Unit, 0, len(catalog))

	for _, descriptor := range catalog {
		unit, err := r.CreateUnit(descriptor)
		if err != nil {
			return nil, fmt.Errorf("failed to create unit %s: %w", descriptor.Name, err)
		}

		units = append(units, unit)
	}

	return units, nil
}
