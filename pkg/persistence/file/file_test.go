package file

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/persistence"
)

func testOrder(id, code string, status models.OrderStatus, createdAt time.Time) *models.Order {
	return &models.Order{
		ID:           id,
		OrderCode:    code,
		SupplierCode: "MANN",
		CustomerName: "Castrol Batman Dalay Petrol",
		Status:       status,
		CreatedAt:    createdAt,
		Items: []models.OrderItem{
			{ProductCode: "AP139/2", Quantity: 150},
		},
	}
}

func TestOrderRepository_SaveAndGet(t *testing.T) {
	p := NewPersistence(t.TempDir())
	order := testOrder("o-1", "ORD-001", models.OrderStatusPending, time.Now())

	require.NoError(t, p.Orders().Save(t.Context(), order))

	got, err := p.Orders().GetByID(t.Context(), "o-1")
	require.NoError(t, err)
	assert.Equal(t, "ORD-001", got.OrderCode)
	assert.Equal(t, models.OrderStatusPending, got.Status)
	assert.Len(t, got.Items, 1)
}

func TestOrderRepository_GetMissing(t *testing.T) {
	p := NewPersistence(t.TempDir())

	_, err := p.Orders().GetByID(t.Context(), "missing")
	assert.ErrorIs(t, err, persistence.ErrOrderNotFound)
}

func TestOrderRepository_ListByStatus(t *testing.T) {
	p := NewPersistence(t.TempDir())
	base := time.Now()

	require.NoError(t, p.Orders().Save(t.Context(), testOrder("o-1", "A", models.OrderStatusPending, base)))
	require.NoError(t, p.Orders().Save(t.Context(), testOrder("o-2", "B", models.OrderStatusCompleted, base.Add(time.Second))))
	require.NoError(t, p.Orders().Save(t.Context(), testOrder("o-3", "C", models.OrderStatusPending, base.Add(2*time.Second))))

	pending, err := p.Orders().ListByStatus(t.Context(), models.OrderStatusPending)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, "A", pending[0].OrderCode)
	assert.Equal(t, "C", pending[1].OrderCode)
}

func TestStepLogRepository_AppendPreservesOrder(t *testing.T) {
	p := NewPersistence(t.TempDir())

	steps := []models.Step{models.StepLogin, models.StepMenuNavigate, models.StepFileUpload}
	for i, step := range steps {
		require.NoError(t, p.StepLogs().Append(t.Context(), &models.StepLogEntry{
			ID:        string(rune('a' + i)),
			OrderID:   "o-1",
			Step:      step,
			Status:    models.StepStatusSuccess,
			CreatedAt: time.Now(),
		}))
	}

	entries, err := p.StepLogs().ListByOrder(t.Context(), "o-1")
	require.NoError(t, err)
	require.Len(t, entries, 3)

	for i, step := range steps {
		assert.Equal(t, step, entries[i].Step)
	}
}

func TestStepLogRepository_EmptyOrder(t *testing.T) {
	p := NewPersistence(t.TempDir())

	entries, err := p.StepLogs().ListByOrder(t.Context(), "never-ran")
	require.NoError(t, err)
	assert.Empty(t, entries)
}
