// Package cmd provides common initialization functions for command-line applications.
package cmd

import (
	"fmt"
	"log/slog"

	"github.com/costray/costray/pkg/protocol"
	"github.com/costray/costray/pkg/registry"
	"github.com/costray/costray/pkg/units/static"
)

func registerNativeUnits(reg *registry.Registry) {
	reg.RegisterUnit(static.NewFactory())
}

func NewRegistry(logger *slog.Logger) *registry.Registry {
	reg := registry.NewRegistry(logger)

	registerNativeUnits(reg)

	return reg
}

// LoadUnits reads the unit catalog file and instantiates every descriptor
// through the registry, preserving catalog order.
func LoadUnits(logger *slog.Logger, catalogPath string) ([]protocol.Unit, error) {
	catalog, err := registry.LoadCatalog(catalogPath)
	if err != nil {
		return nil, fmt.Errorf("loading unit catalog: %w", err)
	}

	units, err := NewRegistry(logger).Instantiate(catalog)
	if err != nil {
		return nil, fmt.Errorf("instantiating unit catalog: %w", err)
	}

	return units, nil
}
