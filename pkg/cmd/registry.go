package cmd

import (
	"github.com/dorumake/robot/pkg/portals"
	"github.com/dorumake/robot/pkg/portals/teccom"
	"github.com/dorumake/robot/pkg/portals/visionnext"
)

// NewRegistry returns the portal registry with every built-in supplier
// workflow registered.
func NewRegistry() *portals.Registry {
	registry := portals.NewRegistry()
	registry.Register(visionnext.SupplierCode, visionnext.Factory)
	registry.Register(teccom.SupplierCode, teccom.Factory)

	return registry
}
