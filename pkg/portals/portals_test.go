package portals_test

import (
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorumake/robot/pkg/config"
	"github.com/dorumake/robot/pkg/engine"
	"github.com/dorumake/robot/pkg/portals"
)

func stubFactory(_ *engine.Engine, _ *config.Config, _ *slog.Logger) engine.Variant {
	return nil
}

func TestRegistry(t *testing.T) {
	registry := portals.NewRegistry()
	registry.Register("MUTLU", stubFactory)
	registry.Register("MANN", stubFactory)

	assert.True(t, registry.Has("MUTLU"))
	assert.False(t, registry.Has("BOSCH"))
	assert.Equal(t, []string{"MANN", "MUTLU"}, registry.Suppliers())
}

func TestRegistryCreateUnknownSupplier(t *testing.T) {
	registry := portals.NewRegistry()

	_, err := registry.Create("BOSCH", nil, config.Default(), slog.Default())
	require.Error(t, err)
	assert.ErrorIs(t, err, portals.ErrUnknownSupplier)
	assert.Contains(t, err.Error(), "BOSCH")
}
