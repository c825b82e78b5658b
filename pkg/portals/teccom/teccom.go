// Package teccom implements the upload-and-poll workflow for the TecCom
// portal: the order travels as a generated fixed-layout file, and both
// submit stages are confirmed asynchronously by polling the page under a
// wall-clock ceiling.
package teccom

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/dorumake/robot/pkg/browser"
	"github.com/dorumake/robot/pkg/config"
	"github.com/dorumake/robot/pkg/engine"
	"github.com/dorumake/robot/pkg/models"
)

const (
	SupplierCode = "MANN"
	SupplierName = "Mann & Hummel"

	// PlaceholderReference is shown by the portal right after the request
	// stage, before the real reference is assigned. It must never be
	// reported as a result.
	PlaceholderReference = "1"
)

var (
	ErrLoginRejected       = errors.New("still on identity provider after login, credentials may be invalid")
	ErrNoCustomerMatch     = errors.New("no shipping address option matches customer name")
	ErrConfirmationTimeout = errors.New("confirmation poll ceiling reached")
)

var (
	consentButton = browser.Chain{
		{Name: "consent_reject_all", Selector: "#onetrust-reject-all-handler"},
		{Name: "consent_close", Selector: ".onetrust-close-btn-handler"},
		{Name: "consent_decline", Selector: ".privacy-consent-decline"},
	}
	usernameInput = browser.Chain{
		{Name: "username_by_name", Selector: "input[name='username']"},
		{Name: "username_by_id", Selector: "input[id='username']"},
		{Name: "username_by_type", Selector: "input[type='email']"},
	}
	idpNextButton = browser.Chain{
		{Name: "idp_next_submit", Selector: "button[type='submit']"},
		{Name: "idp_next_class", Selector: ".login-btn"},
	}
	passwordInput = browser.Chain{
		{Name: "password_by_name", Selector: "input[name='password']"},
		{Name: "password_by_id", Selector: "input[id='password']"},
		{Name: "password_by_type", Selector: "input[type='password']"},
	}
	idpSubmitButton = browser.Chain{
		{Name: "idp_submit", Selector: "button[type='submit']"},
		{Name: "idp_submit_input", Selector: "input[type='submit']"},
	}
	menuQueryOrder = browser.Chain{
		{Name: "menu_query_order_link", Selector: "a[href*='query-and-order']"},
		{Name: "menu_query_order_item", Selector: "li.menu-query > a"},
	}
	menuFileUpload = browser.Chain{
		{Name: "menu_file_upload_link", Selector: "a[href*='file-upload']"},
		{Name: "menu_file_upload_item", Selector: "li.menu-upload > a"},
	}
	discardChangesButton = browser.Chain{
		{Name: "discard_changes_confirm", Selector: ".modal-dialog button.btn-discard"},
		{Name: "discard_changes_primary", Selector: ".modal-footer button.btn-primary"},
	}
	fileInput = browser.Chain{
		{Name: "file_input", Selector: "input[type='file']"},
	}
	supplierDropdown = browser.Chain{
		{Name: "supplier_by_name", Selector: "select[name*='supplier']"},
		{Name: "supplier_by_id", Selector: "select[id*='supplier']"},
	}
	addressRadio = browser.Chain{
		{Name: "deviating_address_radio", Selector: "input[type='radio'][value*='deviating']"},
		{Name: "deviating_address_label", Selector: "label[for*='deviating'] input"},
	}
	customerDropdown = browser.Chain{
		{Name: "address_by_name", Selector: "select[name*='address']"},
		{Name: "address_by_id", Selector: "select[id*='address']"},
	}
	requestButton = browser.Chain{
		{Name: "request_by_class", Selector: "button.btn-request"},
		{Name: "request_by_id", Selector: "button#btnTalep"},
	}
	orderButton = browser.Chain{
		{Name: "order_by_class", Selector: "button.btn-order"},
		{Name: "order_by_id", Selector: "button#btnSiparis"},
	}
	orderNumberText = browser.Chain{
		{Name: "order_number_class", Selector: ".order-number"},
		{Name: "order_number_partial", Selector: "[class*='order-no']"},
	}
)

var referencePattern = regexp.MustCompile(`(?i)Sipariş\s*No\s*[.:#]?\s*([0-9A-Z][0-9A-Z/-]*)`)

// Workflow drives one order through the TecCom portal. Single-use.
type Workflow struct {
	eng         *engine.Engine
	cfg         config.TecComConfig
	retry       config.RetryConfig
	downloadDir string
	logger      *slog.Logger

	filePath string
}

func New(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) *Workflow {
	return &Workflow{
		eng:         eng,
		cfg:         cfg.TecCom,
		retry:       cfg.Retry,
		downloadDir: cfg.Browser.DownloadDir,
		logger:      logger.With("supplier", SupplierCode),
	}
}

func Factory(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) engine.Variant {
	return New(eng, cfg, logger)
}

func (w *Workflow) SupplierName() string {
	return SupplierName
}

func (w *Workflow) PortalURL() string {
	return w.cfg.PortalURL
}

func (w *Workflow) Steps() []models.Step {
	return []models.Step{
		models.StepLogin,
		models.StepMenuNavigate,
		models.StepFileUpload,
		models.StepSupplierSelect,
		models.StepCustomerSelect,
		models.StepRequestSubmit,
		models.StepOrderSubmit,
	}
}

func (w *Workflow) policy(p config.RetryProfile) engine.StepPolicy {
	return engine.StepPolicy{
		MaxAttempts:       p.MaxAttempts,
		Schedule:          p.Schedule,
		ScreenshotOnError: true,
	}
}

// Login runs the two-stage identity-provider flow: identifier, proceed,
// secret, proceed. Success is verified by the redirect leaving the identity
// provider's host; staying there means the credentials were rejected.
func (w *Workflow) Login(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepLogin, "login", w.policy(w.retry.Login),
		func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, consentButton.WithTimeout(3*time.Second)); err == nil {
				w.logger.Debug("dismissed cookie consent")
			}

			if err := s.WaitVisible(ctx, usernameInput); err != nil {
				return fmt.Errorf("identity form not shown: %w", err)
			}

			if err := s.Fill(ctx, usernameInput, w.cfg.Username); err != nil {
				return err
			}

			if err := s.Click(ctx, idpNextButton); err != nil {
				return err
			}

			if err := s.WaitVisible(ctx, passwordInput); err != nil {
				return fmt.Errorf("password stage not shown: %w", err)
			}

			if err := s.Fill(ctx, passwordInput, w.cfg.Password); err != nil {
				return err
			}

			if err := s.Click(ctx, idpSubmitButton); err != nil {
				return err
			}

			loc, err := s.Location(ctx)
			if err != nil {
				return fmt.Errorf("read post-login location: %w", err)
			}

			if sameHost(loc, w.cfg.PortalURL) {
				return ErrLoginRejected
			}

			return nil
		})
}

func (w *Workflow) ProcessOrder(ctx context.Context) (string, error) {
	order := w.eng.Order()

	if err := w.navigateToImport(ctx); err != nil {
		return "", err
	}

	if err := w.uploadOrderFile(ctx, order); err != nil {
		return "", err
	}

	if err := w.selectSupplier(ctx); err != nil {
		return "", err
	}

	if err := w.selectCustomer(ctx, order.CustomerName); err != nil {
		return "", err
	}

	if err := w.submitRequest(ctx, order.Items); err != nil {
		return "", err
	}

	return w.submitOrder(ctx)
}

// navigateToImport opens the file-import screen. Leaving another screen can
// raise a "discard unsaved changes?" dialog; the in-page variant is
// dismissed here, the native one by the browser launcher.
func (w *Workflow) navigateToImport(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepMenuNavigate, "open file import screen",
		w.policy(w.retry.Navigation), func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, menuQueryOrder); err != nil {
				return err
			}

			if err := s.Click(ctx, discardChangesButton.WithTimeout(2*time.Second)); err == nil {
				w.logger.Debug("discarded unsaved changes dialog")
			}

			return s.Click(ctx, menuFileUpload)
		})
}

func (w *Workflow) uploadOrderFile(ctx context.Context, order *models.Order) error {
	pol := w.policy(w.retry.Submit)
	// A file that fails validation will fail identically on every attempt.
	pol.Retryable = func(err error) bool {
		return !errors.Is(err, ErrNoItems) && !errors.Is(err, ErrTooManyRows)
	}

	return w.eng.ExecuteStep(ctx, models.StepFileUpload, "generate and upload order file", pol,
		func(ctx context.Context) error {
			if w.filePath == "" {
				path, err := WriteOrderFile(w.downloadDir, order.OrderCode, order.Items)
				if err != nil {
					return err
				}

				w.filePath = path
				w.logger.Info("order file generated", "path", path)
			}

			return w.eng.Session().Upload(ctx, fileInput, w.filePath)
		})
}

func (w *Workflow) selectSupplier(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepSupplierSelect, "select supplier",
		w.policy(w.retry.Navigation), func(ctx context.Context) error {
			return w.eng.Session().SelectByLabel(ctx, supplierDropdown, w.cfg.SupplierOption)
		})
}

// selectCustomer picks the deviating shipping address whose label fuzzily
// matches the order's customer name.
func (w *Workflow) selectCustomer(ctx context.Context, customerName string) error {
	return w.eng.ExecuteStep(ctx, models.StepCustomerSelect, "select shipping address",
		w.policy(w.retry.Navigation), func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, addressRadio); err != nil {
				return err
			}

			var options []string
			if err := s.Evaluate(ctx, optionsJS(customerDropdown[0].Selector), &options); err != nil {
				return fmt.Errorf("read address options: %w", err)
			}

			matched, ok := MatchOption(options, customerName)
			if !ok {
				return fmt.Errorf("%w: %q among %d options", ErrNoCustomerMatch, customerName, len(options))
			}

			w.logger.Info("customer matched to shipping address", "customer", customerName, "address", matched)

			return s.SelectByLabel(ctx, customerDropdown, matched)
		})
}

func optionsJS(selector string) string {
	return fmt.Sprintf(`(function() {
		const el = document.querySelector(%q);
		if (!el || !el.options) { return []; }
		return Array.from(el.options).map(o => o.text.trim());
	})()`, selector)
}

// submitRequest triggers the request stage and polls until the page shows
// the uploaded rows as processed. The backend gives no push signal, so the
// only evidence is the first line item's product code appearing in the
// rendered result.
func (w *Workflow) submitRequest(ctx context.Context, items []models.OrderItem) error {
	marker := ""

	for _, item := range items {
		if item.Quantity > 0 {
			marker = item.ProductCode

			break
		}
	}

	pol := w.policy(w.retry.Submit)
	pol.Retryable = notConfirmationTimeout

	return w.eng.ExecuteStep(ctx, models.StepRequestSubmit, "submit request", pol,
		func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, requestButton); err != nil {
				return err
			}

			return w.pollConfirmation(ctx, "uploaded rows processed",
				func(ctx context.Context) (bool, error) {
					content, err := s.PageContent(ctx)
					if err != nil {
						return false, err
					}

					return marker != "" && strings.Contains(content, marker), nil
				})
		})
}

// submitOrder triggers the final commit and polls until a real order
// reference appears. The placeholder reference the portal shows right after
// the request stage is never accepted as a result; reaching the ceiling
// without a real reference fails the run.
func (w *Workflow) submitOrder(ctx context.Context) (string, error) {
	var portalRef string

	pol := w.policy(w.retry.Submit)
	pol.Retryable = notConfirmationTimeout
	pol.ScreenshotOnError = true

	err := w.eng.ExecuteStep(ctx, models.StepOrderSubmit, "submit order", pol,
		func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, orderButton); err != nil {
				return err
			}

			return w.pollConfirmation(ctx, "order reference assigned",
				func(ctx context.Context) (bool, error) {
					ref, err := w.currentReference(ctx)
					if err != nil {
						return false, err
					}

					if !ValidReference(ref) {
						return false, nil
					}

					portalRef = ref

					return true, nil
				})
		})
	if err != nil {
		return "", err
	}

	return portalRef, nil
}

// currentReference reads whatever reference the page shows right now,
// preferring the dedicated order-number element over scanning the page.
func (w *Workflow) currentReference(ctx context.Context) (string, error) {
	s := w.eng.Session()

	if text, err := s.Text(ctx, orderNumberText.WithTimeout(2*time.Second)); err == nil {
		if ref := strings.TrimSpace(text); ref != "" {
			return ref, nil
		}
	}

	content, err := s.PageContent(ctx)
	if err != nil {
		return "", err
	}

	m := referencePattern.FindStringSubmatch(content)
	if m == nil {
		return "", nil
	}

	return strings.TrimSpace(m[1]), nil
}

// ValidReference reports whether ref is a real portal-assigned order
// reference rather than empty or the transient placeholder.
func ValidReference(ref string) bool {
	return ref != "" && ref != PlaceholderReference
}

// pollConfirmation re-runs check at the configured interval until it
// reports done, the ceiling elapses, or ctx is cancelled. The ceiling is a
// deterministic failure, never an assumed success.
func (w *Workflow) pollConfirmation(
	ctx context.Context,
	what string,
	check func(ctx context.Context) (bool, error),
) error {
	deadline := time.Now().Add(w.cfg.ConfirmPollCeiling)

	for {
		done, err := check(ctx)
		if err != nil {
			return err
		}

		if done {
			return nil
		}

		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s did not happen within %s",
				ErrConfirmationTimeout, what, w.cfg.ConfirmPollCeiling)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(w.cfg.ConfirmPollInterval):
		}
	}
}

func notConfirmationTimeout(err error) bool {
	return !errors.Is(err, ErrConfirmationTimeout)
}

func sameHost(rawURL, portalURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}

	p, err := url.Parse(portalURL)
	if err != nil {
		return false
	}

	return u.Host != "" && u.Host == p.Host
}
