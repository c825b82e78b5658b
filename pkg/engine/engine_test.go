package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dorumake/robot/pkg/browser"
	"github.com/dorumake/robot/pkg/browser/browsertest"
	"github.com/dorumake/robot/pkg/models"
	"github.com/dorumake/robot/pkg/persistence"
	"github.com/dorumake/robot/pkg/persistence/file"
)

var quickPolicy = StepPolicy{
	MaxAttempts:       3,
	Schedule:          []time.Duration{time.Millisecond},
	ScreenshotOnError: true,
}

type fakeShotStore struct {
	saves int
	err   error
}

func (s *fakeShotStore) Save(_ context.Context, orderID string, step models.Step, tag string, _ []byte) (string, error) {
	if s.err != nil {
		return "", s.err
	}

	s.saves++

	return fmt.Sprintf("shots/%s_%s_%s.png", orderID, step, tag), nil
}

// testVariant drives three steps through the engine's primitives; failures
// are scripted on the fake browser session.
type testVariant struct {
	eng      *Engine
	panicIn  models.Step
	loginErr error
}

func (v *testVariant) SupplierName() string {
	return "Test Supplier"
}

func (v *testVariant) PortalURL() string {
	return "https://portal.example.com"
}

func (v *testVariant) Steps() []models.Step {
	return []models.Step{models.StepLogin, models.StepFormFill, models.StepOrderConfirm}
}

func (v *testVariant) Login(ctx context.Context) error {
	if v.loginErr != nil {
		return v.loginErr
	}

	return v.eng.ExecuteStep(ctx, models.StepLogin, "login", quickPolicy, func(ctx context.Context) error {
		if v.panicIn == models.StepLogin {
			panic("selector chain misconfigured")
		}

		return v.eng.Session().Click(ctx, browser.S("login_button", "#login"))
	})
}

func (v *testVariant) ProcessOrder(ctx context.Context) (string, error) {
	err := v.eng.ExecuteStep(ctx, models.StepFormFill, "fill order form", quickPolicy, func(ctx context.Context) error {
		return v.eng.Session().Fill(ctx, browser.S("order_form", "#form"), "ORD-1")
	})
	if err != nil {
		return "", err
	}

	err = v.eng.ExecuteStep(ctx, models.StepOrderConfirm, "confirm order", quickPolicy, func(ctx context.Context) error {
		return v.eng.Session().Click(ctx, browser.S("confirm_button", "#confirm"))
	})
	if err != nil {
		return "", err
	}

	return "PORTAL-42", nil
}

func newTestEngine(t *testing.T, fake *browsertest.Fake) (*Engine, persistence.Persistence) {
	t.Helper()

	store := file.NewPersistence(t.TempDir())
	eng := New(&models.Order{
		ID:           "o-1",
		OrderCode:    "ORD-001",
		SupplierCode: "TEST",
	}, fake, &fakeShotStore{}, store, nil)

	return eng, store
}

func TestRun_Success(t *testing.T) {
	fake := browsertest.New()
	eng, store := newTestEngine(t, fake)
	v := &testVariant{eng: eng}

	result := eng.Run(t.Context(), v)

	require.True(t, result.Success)
	assert.Equal(t, "PORTAL-42", result.PortalRef)
	assert.Equal(t, v.Steps(), result.StepsCompleted)
	assert.Equal(t, 1, fake.CloseCount)
	assert.Positive(t, result.Duration)

	// SUCCESS entries form a strict prefix of the variant's step order.
	entries, err := store.StepLogs().ListByOrder(t.Context(), "o-1")
	require.NoError(t, err)
	assertSuccessPrefix(t, entries, v.Steps())
}

func TestRun_StepFailureEndsRun(t *testing.T) {
	fake := browsertest.New()
	fake.FailWith["fill:order_form"] = errors.New("element not found")

	eng, store := newTestEngine(t, fake)
	v := &testVariant{eng: eng}

	result := eng.Run(t.Context(), v)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepFormFill, result.Err.Step)
	assert.Equal(t, []models.Step{models.StepLogin}, result.StepsCompleted)
	assert.Equal(t, 1, fake.CloseCount)

	// The confirm step must never have been attempted.
	assert.Len(t, fake.CallsFor("click"), 1, "only the login click should have happened")

	entries, err := store.StepLogs().ListByOrder(t.Context(), "o-1")
	require.NoError(t, err)
	assertSuccessPrefix(t, entries, v.Steps())

	// Retried twice (attempts 2 and 3), then failed.
	assert.Len(t, statusEntries(entries, models.StepStatusRetry), 2)
	require.NotEmpty(t, statusEntries(entries, models.StepStatusFailed))
}

func TestRun_StepSucceedsAfterRetry(t *testing.T) {
	fake := browsertest.New()
	fake.FailTimes["click:confirm_button"] = 2

	eng, store := newTestEngine(t, fake)
	v := &testVariant{eng: eng}

	result := eng.Run(t.Context(), v)

	require.True(t, result.Success)

	entries, err := store.StepLogs().ListByOrder(t.Context(), "o-1")
	require.NoError(t, err)
	assert.Len(t, statusEntries(entries, models.StepStatusRetry), 2)
}

func TestRun_UnexpectedErrorTaggedWithCurrentStep(t *testing.T) {
	fake := browsertest.New()
	eng, _ := newTestEngine(t, fake)
	v := &testVariant{eng: eng, loginErr: errors.New("portal redesigned overnight")}

	result := eng.Run(t.Context(), v)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepInit, result.Err.Step)
	assert.Contains(t, result.Message, "portal redesigned overnight")
	assert.Equal(t, 1, fake.CloseCount)
}

func TestRun_PanicIsConvertedToFailure(t *testing.T) {
	fake := browsertest.New()
	eng, _ := newTestEngine(t, fake)
	v := &testVariant{eng: eng, panicIn: models.StepLogin}

	result := eng.Run(t.Context(), v)

	require.NotNil(t, result)
	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepLogin, result.Err.Step)
	assert.Contains(t, result.Message, "panic")
	assert.Equal(t, 1, fake.CloseCount)
}

func TestRun_TeardownWhenSetupFails(t *testing.T) {
	eng := New(&models.Order{ID: "o-1"}, failingLauncher{}, &fakeShotStore{}, nil, nil)
	v := &testVariant{eng: eng}

	result := eng.Run(t.Context(), v)

	require.False(t, result.Success)
	require.NotNil(t, result.Err)
	assert.Equal(t, models.StepInit, result.Err.Step)
}

func TestRun_LogStoreFailureDoesNotAbort(t *testing.T) {
	fake := browsertest.New()
	eng := New(&models.Order{ID: "o-1", SupplierCode: "TEST"}, fake, &fakeShotStore{}, brokenStore{}, nil)
	v := &testVariant{eng: eng}

	result := eng.Run(t.Context(), v)

	require.True(t, result.Success)
	assert.Equal(t, "PORTAL-42", result.PortalRef)
}

func TestTakeScreenshot_BestEffort(t *testing.T) {
	fake := browsertest.New()
	fake.ShotErr = errors.New("tab crashed")

	eng, _ := newTestEngine(t, fake)
	v := &testVariant{eng: eng}

	result := eng.Run(t.Context(), v)

	// Screenshot trouble alone never fails the run.
	require.True(t, result.Success)
}

type failingLauncher struct{}

func (failingLauncher) Launch(context.Context) (browser.Session, error) {
	return nil, errors.New("chrome binary missing")
}

type brokenStore struct{}

func (brokenStore) Orders() persistence.OrderRepository {
	return nil
}

func (brokenStore) StepLogs() persistence.StepLogRepository {
	return brokenStepLogs{}
}

func (brokenStore) HealthCheck(context.Context) error {
	return nil
}

func (brokenStore) Close(context.Context) error {
	return nil
}

type brokenStepLogs struct{}

func (brokenStepLogs) Append(context.Context, *models.StepLogEntry) error {
	return errors.New("disk full")
}

func (brokenStepLogs) ListByOrder(context.Context, string) ([]*models.StepLogEntry, error) {
	return nil, errors.New("disk full")
}

func statusEntries(entries []*models.StepLogEntry, status models.StepStatus) []*models.StepLogEntry {
	var out []*models.StepLogEntry

	for _, e := range entries {
		if e.Status == status {
			out = append(out, e)
		}
	}

	return out
}

// assertSuccessPrefix checks the ordering invariant: SUCCESS entries for
// workflow steps are a gap-free prefix of the variant's fixed step order.
func assertSuccessPrefix(t *testing.T, entries []*models.StepLogEntry, order []models.Step) {
	t.Helper()

	var succeeded []models.Step

	for _, e := range entries {
		if e.Status != models.StepStatusSuccess {
			continue
		}

		for _, step := range order {
			if e.Step == step {
				succeeded = append(succeeded, e.Step)

				break
			}
		}
	}

	require.LessOrEqual(t, len(succeeded), len(order))
	assert.Equal(t, order[:len(succeeded)], succeeded)
}
