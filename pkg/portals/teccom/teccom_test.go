package teccom

import (
	"log/slog"
	"os"
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

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.Default()
	cfg.TecCom.Username = "user@example.com"
	cfg.TecCom.Password = "secret"
	cfg.TecCom.ConfirmPollCeiling = 50 * time.Millisecond
	cfg.TecCom.ConfirmPollInterval = time.Millisecond
	cfg.Browser.DownloadDir = t.TempDir()

	fast := config.RetryProfile{MaxAttempts: 2, Schedule: []time.Duration{time.Millisecond}}
	cfg.Retry = config.RetryConfig{Login: fast, Navigation: fast, FormFill: fast, Submit: fast}

	return cfg
}

func testOrder() *models.Order {
	return &models.Order{
		ID:           "o-1",
		OrderCode:    "ORD-001",
		SupplierCode: SupplierCode,
		CustomerName: "Sirinat Otomotiv",
		Items: []models.OrderItem{
			{ProductCode: "AP139/2", Quantity: 150, ProductName: "Hava Filtresi"},
		},
	}
}

func addressOptions(options []string) func(js string, out any) error {
	return func(js string, out any) error {
		if opts, ok := out.(*[]string); ok {
			*opts = options
		}

		return nil
	}
}

func newRun(t *testing.T, fake *browsertest.Fake, order *models.Order, cfg *config.Config) (*engine.Engine, *Workflow, *file.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	eng := engine.New(order, fake, nil, store, slog.Default())
	w := New(eng, cfg, slog.Default())

	return eng, w, store
}

func TestProcessOrder_Success(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = addressOptions([]string{"TRM56062 ŞİRİNAT SAKARYA"})
	fake.Contents = []string{"<html>AP139/2 işlendi</html>"}
	fake.Texts["order_number_class"] = "1109876"

	cfg := testConfig(t)
	eng, w, _ := newRun(t, fake, testOrder(), cfg)

	result := eng.Run(t.Context(), w)

	require.True(t, result.Success, "run failed: %s", result.Message)
	assert.Equal(t, "1109876", result.PortalRef)
	assert.Equal(t, w.Steps(), result.StepsCompleted)

	// The uploaded file must carry the exact import layout.
	uploads := fake.Calls()

	var uploadedPath string

	for _, c := range uploads {
		if c.Op == "upload" {
			uploadedPath = c.Value
		}
	}

	require.NotEmpty(t, uploadedPath, "no file was uploaded")

	raw, err := os.ReadFile(uploadedPath)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "POS;1;AP139/2;150;;;;Hava Filtresi")
}

func TestProcessOrder_PlaceholderReferenceNeverReported(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = addressOptions([]string{"TRM56062 ŞİRİNAT SAKARYA"})
	fake.Contents = []string{"<html>AP139/2 işlendi</html>"}
	// The portal shows the transient placeholder after the request stage.
	fake.Texts["order_number_class"] = PlaceholderReference

	cfg := testConfig(t)
	eng, w, _ := newRun(t, fake, testOrder(), cfg)

	result := eng.Run(t.Context(), w)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepOrderSubmit, result.Err.Step)
	assert.ErrorIs(t, result.Err, ErrConfirmationTimeout)
	assert.Empty(t, result.PortalRef)
}

func TestProcessOrder_RequestPollCeilingIsFailure(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = addressOptions([]string{"TRM56062 ŞİRİNAT SAKARYA"})
	// Page never shows the uploaded rows.
	fake.Contents = []string{"<html>bekleniyor</html>"}

	cfg := testConfig(t)
	eng, w, store := newRun(t, fake, testOrder(), cfg)

	result := eng.Run(t.Context(), w)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepRequestSubmit, result.Err.Step)
	assert.ErrorIs(t, result.Err, ErrConfirmationTimeout)

	// Ceiling errors are deterministic, so no retry attempt is burned.
	entries, err := store.StepLogs().ListByOrder(t.Context(), "o-1")
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotEqual(t, models.StepStatusRetry, e.Status,
			"confirmation timeout must not be retried")
	}
}

func TestProcessOrder_NoItemsFailsUploadWithoutRetry(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = addressOptions([]string{"TRM56062 ŞİRİNAT SAKARYA"})

	order := testOrder()
	order.Items = nil

	cfg := testConfig(t)
	eng, w, store := newRun(t, fake, order, cfg)

	result := eng.Run(t.Context(), w)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepFileUpload, result.Err.Step)
	assert.ErrorIs(t, result.Err, ErrNoItems)

	entries, err := store.StepLogs().ListByOrder(t.Context(), "o-1")
	require.NoError(t, err)

	for _, e := range entries {
		assert.NotEqual(t, models.StepStatusRetry, e.Status,
			"validation errors must not be retried")
	}
}

func TestProcessOrder_NoAddressMatchFailsCustomerSelect(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = addressOptions([]string{"TRM11111 UNRELATED DEPOT"})

	cfg := testConfig(t)
	eng, w, _ := newRun(t, fake, testOrder(), cfg)

	result := eng.Run(t.Context(), w)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepCustomerSelect, result.Err.Step)
	assert.ErrorIs(t, result.Err, ErrNoCustomerMatch)
}

func TestLogin_StayingOnIdentityProviderIsRejected(t *testing.T) {
	fake := browsertest.New()
	fake.EvalFunc = addressOptions(nil)
	// Post-login location still on the identity provider's host.
	fake.LocationValue = config.Default().TecCom.PortalURL

	cfg := testConfig(t)
	eng, w, _ := newRun(t, fake, testOrder(), cfg)

	result := eng.Run(t.Context(), w)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepLogin, result.Err.Step)
	assert.ErrorIs(t, result.Err, ErrLoginRejected)
}

func TestSameHost(t *testing.T) {
	assert.True(t, sameHost(
		"https://teccom.tecalliance.net/newapp/auth/login?error=1",
		"https://teccom.tecalliance.net/newapp/auth/welcome"))
	assert.False(t, sameHost(
		"https://portal.mann-hummel.example/orders",
		"https://teccom.tecalliance.net/newapp/auth/welcome"))
	assert.False(t, sameHost("", "https://teccom.tecalliance.net"))
}

func TestValidReference(t *testing.T) {
	assert.False(t, ValidReference(""))
	assert.False(t, ValidReference(PlaceholderReference))
	assert.True(t, ValidReference("1109876"))
}

func TestWorkflowStepsOrder(t *testing.T) {
	cfg := testConfig(t)
	_, w, _ := newRun(t, browsertest.New(), testOrder(), cfg)

	want := []models.Step{
		models.StepLogin,
		models.StepMenuNavigate,
		models.StepFileUpload,
		models.StepSupplierSelect,
		models.StepCustomerSelect,
		models.StepRequestSubmit,
		models.StepOrderSubmit,
	}
	assert.Equal(t, want, w.Steps())

	if !strings.HasPrefix(w.PortalURL(), "https://") {
		t.Errorf("portal URL must be absolute, got %q", w.PortalURL())
	}
}
