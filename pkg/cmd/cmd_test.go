package cmd

import (
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorumake/robot/pkg/persistence/file"
)

func TestNewPersistenceFileScheme(t *testing.T) {
	dir := t.TempDir()

	store, err := NewPersistence("file://" + dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(t.Context()) })

	assert.IsType(t, &file.Persistence{}, store)
	require.NoError(t, store.HealthCheck(t.Context()))
}

func TestNewPersistenceBarePathIsFile(t *testing.T) {
	store, err := NewPersistence(filepath.Join(t.TempDir(), "data"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close(t.Context()) })

	assert.IsType(t, &file.Persistence{}, store)
}

func TestNewEventBus(t *testing.T) {
	bus, err := NewEventBus("gochannel", slog.Default())
	require.NoError(t, err)
	require.NoError(t, bus.Close())

	_, err = NewEventBus("rabbitmq", slog.Default())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rabbitmq")
}

func TestNewRegistryHasBuiltinSuppliers(t *testing.T) {
	registry := NewRegistry()

	assert.Equal(t, []string{"MANN", "MUTLU"}, registry.Suppliers())
}
