package visionnext

import (
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorumake/robot/pkg/browser/browsertest"
	"github.com/dorumake/robot/pkg/config"
	"github.com/dorumake/robot/pkg/engine"
	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/persistence/file"
)

func TestResolveBranch(t *testing.T) {
	tests := []struct {
		name        string
		customer    string
		wantBranch  string
		wantMatched bool
	}{
		{
			name:        "keyword inside longer name",
			customer:    "DALAY PETROL ÜRÜNLERİ SAN. TİC. LTD. ŞTİ.",
			wantBranch:  "CASTROL BATMAN DALAY PETROL",
			wantMatched: true,
		},
		{
			name:        "lowercase with turkish dotless i",
			customer:    "bilmaksan otomotiv",
			wantBranch:  "CASTROL TRAKYA BİLMAKSAN",
			wantMatched: true,
		},
		{
			name:        "unmapped falls back to default",
			customer:    "ACME TRADING",
			wantBranch:  "DEFAULT BRANCH",
			wantMatched: false,
		},
		{
			name:        "empty customer name",
			customer:    "",
			wantBranch:  "DEFAULT BRANCH",
			wantMatched: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			branch, matched := ResolveBranch(tt.customer, "DEFAULT BRANCH")
			assert.Equal(t, tt.wantBranch, branch)
			assert.Equal(t, tt.wantMatched, matched)
		})
	}
}

func TestDefaultReferenceExtractor(t *testing.T) {
	assert.Equal(t, "4500123",
		DefaultReferenceExtractor("<div>Sipariş No: 4500123</div>"))
	assert.Equal(t, "SO-2024/18",
		DefaultReferenceExtractor("Sipariş No # SO-2024/18 kaydedildi"))
	assert.Empty(t, DefaultReferenceExtractor("<div>Kaydedildi</div>"))
	assert.Empty(t, DefaultReferenceExtractor(""))
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.VisionNext.Username = "user@example.com"
	cfg.VisionNext.Password = "secret"

	// Tests must not sit in real backoff waits.
	fast := config.RetryProfile{MaxAttempts: 2, Schedule: []time.Duration{time.Millisecond}}
	cfg.Retry = config.RetryConfig{Login: fast, Navigation: fast, FormFill: fast, Submit: fast}

	return cfg
}

// scriptEval answers the in-page JavaScript the workflow uses for branch
// clicks and quantity writes.
func scriptEval(branchListed bool, rowOutcomes map[string]string) func(js string, out any) error {
	return func(js string, out any) error {
		if strings.Contains(js, "ChangeActiveBranch") {
			if b, ok := out.(*bool); ok {
				*b = branchListed
			}

			return nil
		}

		if s, ok := out.(*string); ok {
			*s = "ok"

			for code, outcome := range rowOutcomes {
				if strings.Contains(js, code) {
					*s = outcome
				}
			}
		}

		return nil
	}
}

func newRun(t *testing.T, fake *browsertest.Fake, order *models.Order) (*engine.Engine, *Workflow, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	eng := engine.New(order, fake, nil, store, slog.Default())
	w := New(eng, testConfig(), slog.Default())

	return eng, w, store
}

func TestProcessOrder_Success(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = scriptEval(true, nil)
	fake.Contents = []string{"<html>Sipariş No: 4500987</html>"}

	order := &models.Order{
		ID:           "o-1",
		OrderCode:    "ORD-001",
		SupplierCode: SupplierCode,
		CustomerName: "DALAY PETROL",
		Items: []models.OrderItem{
			{ProductCode: "MT-60AH", Quantity: 12},
			{ProductCode: "MT-72AH", Quantity: 4},
		},
	}

	eng, w, _ := newRun(t, fake, order)

	result := eng.Run(t.Context(), w)

	require.True(t, result.Success, "run failed: %s", result.Message)
	assert.Equal(t, "4500987", result.PortalRef)
	assert.Equal(t, w.Steps(), result.StepsCompleted)
}

func TestProcessOrder_UnmappedCustomerUsesDefaultBranch(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = scriptEval(true, nil)

	order := &models.Order{
		ID:           "o-2",
		OrderCode:    "ORD-002",
		SupplierCode: SupplierCode,
		CustomerName: "TOTALLY UNKNOWN LLC",
		Items:        []models.OrderItem{{ProductCode: "MT-60AH", Quantity: 1}},
	}

	eng, w, _ := newRun(t, fake, order)

	result := eng.Run(t.Context(), w)

	require.True(t, result.Success, "run failed: %s", result.Message)
}

func TestProcessOrder_MissingProductRowIsWarningNotFailure(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = scriptEval(true, map[string]string{"GHOST-1": "row_not_found"})

	order := &models.Order{
		ID:           "o-3",
		OrderCode:    "ORD-003",
		SupplierCode: SupplierCode,
		CustomerName: "DALAY",
		Items: []models.OrderItem{
			{ProductCode: "MT-60AH", Quantity: 5},
			{ProductCode: "GHOST-1", Quantity: 2},
		},
	}

	eng, w, store := newRun(t, fake, order)

	result := eng.Run(t.Context(), w)

	require.True(t, result.Success, "run failed: %s", result.Message)

	entries, err := store.StepLogs().ListByOrder(t.Context(), "o-3")
	require.NoError(t, err)

	var found bool

	for _, e := range entries {
		if e.Step == models.StepProductsAdd && e.Status == models.StepStatusInfo {
			found = true

			assert.Contains(t, e.Details["product_codes"], "GHOST-1")
		}
	}

	assert.True(t, found, "expected an INFO entry for the missing product row")
}

func TestProcessOrder_BranchNotListedFailsCustomerSelect(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = scriptEval(false, nil)

	order := &models.Order{
		ID:           "o-4",
		OrderCode:    "ORD-004",
		SupplierCode: SupplierCode,
		CustomerName: "DALAY",
		Items:        []models.OrderItem{{ProductCode: "MT-60AH", Quantity: 1}},
	}

	eng, w, _ := newRun(t, fake, order)

	result := eng.Run(t.Context(), w)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepCustomerSelect, result.Err.Step)
	assert.Equal(t, []models.Step{models.StepLogin}, result.StepsCompleted)
}

func TestLogin_FormStillVisibleIsRejected(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = scriptEval(true, nil)
	fake.FailWith["wait_hidden:username_by_name"] = errors.New("element still visible")

	order := &models.Order{
		ID:           "o-5",
		OrderCode:    "ORD-005",
		SupplierCode: SupplierCode,
		CustomerName: "DALAY",
		Items:        []models.OrderItem{{ProductCode: "MT-60AH", Quantity: 1}},
	}

	eng, w, _ := newRun(t, fake, order)

	result := eng.Run(t.Context(), w)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepLogin, result.Err.Step)
	assert.ErrorIs(t, result.Err, ErrLoginRejected)
}
