// Package visionnext implements the direct-form workflow for the VisionNext
// PRM portal: eleven steps from login to the final backend confirmation,
// each synchronously acknowledged by the portal.
package visionnext

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/dorumake/robot/pkg/browser"
	"github.com/dorumake/robot/pkg/config"
	"github.com/dorumake/robot/pkg/engine"
	"github.com/dorumake/robot/pkg/models"
)

const (
	SupplierCode = "MUTLU"
	SupplierName = "Mutlu Akü"
)

var ErrLoginRejected = errors.New("login form still visible, credentials may be invalid")

// ReferenceExtractor pulls the portal-assigned order reference out of the
// page shown after the final confirmation. The portal's response structure
// is deployment-specific, so the extractor is injectable; the default scans
// for a labelled order number and yields an empty reference when none is
// found (the order is still confirmed).
type ReferenceExtractor func(pageContent string) string

var orderNoPattern = regexp.MustCompile(`(?i)Sipariş\s*No\s*[:#]?\s*([A-Z0-9][A-Z0-9/-]{2,})`)

func DefaultReferenceExtractor(pageContent string) string {
	m := orderNoPattern.FindStringSubmatch(pageContent)
	if m == nil {
		return ""
	}

	return strings.TrimSpace(m[1])
}

var (
	usernameInput = browser.Chain{
		{Name: "username_by_name", Selector: "input[name='UserName']"},
		{Name: "username_by_id", Selector: "input[id='UserName']"},
		{Name: "username_by_type", Selector: "input[type='email']"},
	}
	passwordInput = browser.Chain{
		{Name: "password_by_name", Selector: "input[name='Password']"},
		{Name: "password_by_id", Selector: "input[id='Password']"},
		{Name: "password_by_type", Selector: "input[type='password']"},
	}
	loginButton = browser.Chain{
		{Name: "login_submit_button", Selector: "button[type='submit']"},
		{Name: "login_submit_input", Selector: "input[type='submit']"},
		{Name: "login_class", Selector: ".login-btn"},
	}
	customerDropdown = browser.Chain{
		{Name: "branch_dropdown_id", Selector: "button#dLabel2"},
		{Name: "branch_dropdown_nav", Selector: ".leftNav button[data-toggle='dropdown']:nth-of-type(2)"},
	}
	menuSales = browser.Chain{
		{Name: "menu_sales_link", Selector: "a[href*='SatisSatinAlma']"},
		{Name: "menu_sales_item", Selector: "li.menu-satis > a"},
	}
	menuPurchaseOrder = browser.Chain{
		{Name: "menu_purchase_order_link", Selector: "a[href*='SatinAlmaSiparisi']"},
		{Name: "menu_purchase_order_item", Selector: "li.menu-siparis > a"},
	}
	createButton = browser.Chain{
		{Name: "create_by_class", Selector: ".btn-create"},
		{Name: "create_by_action", Selector: "a[href*='Create']"},
	}
	warehouseSelect = browser.Chain{
		{Name: "warehouse_by_name", Selector: "select[name='Depo']"},
		{Name: "warehouse_by_id", Selector: "select[id*='Depo']"},
	}
	agentSelect = browser.Chain{
		{Name: "agent_by_name", Selector: "select[name='Personel']"},
		{Name: "agent_by_id", Selector: "select[id*='Personel']"},
	}
	paymentTypeSelect = browser.Chain{
		{Name: "payment_type_by_name", Selector: "select[name='OdemeTipi']"},
		{Name: "payment_type_by_id", Selector: "select[id*='OdemeTipi']"},
	}
	paymentTermSelect = browser.Chain{
		{Name: "payment_term_by_name", Selector: "select[name='OdemeVadesi']"},
		{Name: "payment_term_by_id", Selector: "select[id*='OdemeVadesi']"},
	}
	descriptionInput = browser.Chain{
		{Name: "description_by_name", Selector: "textarea[name='Aciklama']"},
		{Name: "description_by_id", Selector: "[id*='Aciklama']"},
	}
	productsTab = browser.Chain{
		{Name: "products_tab_class", Selector: ".tab-products"},
		{Name: "products_tab_link", Selector: "a[href='#urunler']"},
	}
	searchButton = browser.Chain{
		{Name: "search_by_id", Selector: "button#btnAra"},
		{Name: "search_by_class", Selector: "button.btn-search"},
	}
	productTable = browser.Chain{
		{Name: "product_table_class", Selector: ".product-table"},
		{Name: "product_grid", Selector: ".grid table"},
		{Name: "any_table", Selector: "table"},
	}
	saveProductsButton = browser.Chain{
		{Name: "save_products_by_id", Selector: "button#btnKaydetUrunler"},
		{Name: "save_products_modal", Selector: ".modal-footer button.btn-save"},
	}
	saveOrderButton = browser.Chain{
		{Name: "save_order_class", Selector: ".save-btn"},
		{Name: "save_order_generic", Selector: "button[class*='save']"},
	}
	confirmButton = browser.Chain{
		{Name: "confirm_by_id", Selector: "button#btnSiparisOnayla"},
		{Name: "confirm_by_class", Selector: ".confirm-btn"},
	}
	savedMessage = browser.Chain{
		{Name: "saved_toast", Selector: ".success-message"},
		{Name: "saved_alert", Selector: ".alert-success"},
	}
)

// Workflow drives one order through the VisionNext portal. Single-use, like
// the engine it wraps.
type Workflow struct {
	eng     *engine.Engine
	cfg     config.VisionNextConfig
	retry   config.RetryConfig
	logger  *slog.Logger
	extract ReferenceExtractor
}

func New(eng *engine.Engine, cfg *config.Config, logger *slog.Logger) *Workflow {
	return &Workflow{
		eng:     eng,
		cfg:     cfg.VisionNext,
		retry:   cfg.Retry,
		logger:  logger.With("supplier", SupplierCode),
		extract: DefaultReferenceExtractor,
	}
}

// WithReferenceExtractor replaces the post-confirmation reference parser.
func (w *Workflow) WithReferenceExtractor(extract ReferenceExtractor) *Workflow {
	w.extract = extract

	return w
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
		models.StepCustomerSelect,
		models.StepMenuNavigate,
		models.StepOrderCreate,
		models.StepFormFill,
		models.StepProductsTab,
		models.StepProductsSearch,
		models.StepProductsAdd,
		models.StepProductsSave,
		models.StepOrderSave,
		models.StepOrderConfirm,
	}
}

func (w *Workflow) policy(p config.RetryProfile) engine.StepPolicy {
	return engine.StepPolicy{
		MaxAttempts:       p.MaxAttempts,
		Schedule:          p.Schedule,
		ScreenshotOnError: true,
	}
}

func (w *Workflow) Login(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepLogin, "login", w.policy(w.retry.Login),
		func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.WaitVisible(ctx, usernameInput); err != nil {
				return fmt.Errorf("login form not shown: %w", err)
			}

			if err := s.Fill(ctx, usernameInput, w.cfg.Username); err != nil {
				return err
			}

			if err := s.Fill(ctx, passwordInput, w.cfg.Password); err != nil {
				return err
			}

			if err := s.Click(ctx, loginButton); err != nil {
				return err
			}

			// The form disappearing is the only reliable success signal.
			if err := s.WaitHidden(ctx, usernameInput); err != nil {
				return ErrLoginRejected
			}

			return nil
		})
}

func (w *Workflow) ProcessOrder(ctx context.Context) (string, error) {
	order := w.eng.Order()

	branch, matched := ResolveBranch(order.CustomerName, w.cfg.DefaultBranch)
	if matched {
		w.logger.Info("customer mapped to branch", "customer", order.CustomerName, "branch", branch)
	} else {
		w.logger.Warn("no branch mapping for customer, using default",
			"customer", order.CustomerName, "branch", branch)
	}

	if err := w.selectCustomer(ctx, branch); err != nil {
		return "", err
	}

	if err := w.navigateToOrderScreen(ctx); err != nil {
		return "", err
	}

	if err := w.createOrder(ctx); err != nil {
		return "", err
	}

	if err := w.fillOrderForm(ctx, order.OrderCode); err != nil {
		return "", err
	}

	if err := w.openProductsTab(ctx); err != nil {
		return "", err
	}

	if err := w.searchProducts(ctx); err != nil {
		return "", err
	}

	if err := w.addProducts(ctx, order.Items); err != nil {
		return "", err
	}

	if err := w.saveProducts(ctx); err != nil {
		return "", err
	}

	if err := w.saveOrder(ctx); err != nil {
		return "", err
	}

	return w.confirmOrder(ctx)
}

// selectCustomer activates the resolved branch through the top-right
// ChangeActiveBranch dropdown. The branch link is found by text because the
// portal renders the list without stable ids.
func (w *Workflow) selectCustomer(ctx context.Context, branch string) error {
	return w.eng.ExecuteStep(ctx, models.StepCustomerSelect, "select customer branch",
		w.policy(w.retry.Navigation), func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, customerDropdown); err != nil {
				return err
			}

			var clicked bool
			if err := s.Evaluate(ctx, branchClickJS(branch), &clicked); err != nil {
				return fmt.Errorf("click branch link: %w", err)
			}

			if !clicked {
				return fmt.Errorf("branch %q not listed in dropdown", branch)
			}

			return nil
		})
}

func branchClickJS(branch string) string {
	return fmt.Sprintf(`(function() {
		const links = document.querySelectorAll("a[href*='ChangeActiveBranch']");
		for (const link of links) {
			if (link.textContent.includes(%q)) {
				link.scrollIntoView();
				link.click();
				return true;
			}
		}
		return false;
	})()`, branch)
}

func (w *Workflow) navigateToOrderScreen(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepMenuNavigate, "open purchase order menu",
		w.policy(w.retry.Navigation), func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, menuSales); err != nil {
				return err
			}

			return s.Click(ctx, menuPurchaseOrder)
		})
}

func (w *Workflow) createOrder(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepOrderCreate, "create blank order",
		w.policy(w.retry.Navigation), func(ctx context.Context) error {
			return w.eng.Session().Click(ctx, createButton)
		})
}

// fillOrderForm fills the order header. Every dropdown is individually
// best-effort: the portal pre-fills them per branch and a failed selection
// usually means the value is already right.
func (w *Workflow) fillOrderForm(ctx context.Context, orderCode string) error {
	return w.eng.ExecuteStep(ctx, models.StepFormFill, "fill order form",
		w.policy(w.retry.FormFill), func(ctx context.Context) error {
			s := w.eng.Session()

			fields := []struct {
				name  string
				chain browser.Chain
				value string
			}{
				{"warehouse", warehouseSelect, w.cfg.DefaultWarehouse},
				{"agent", agentSelect, w.cfg.DefaultAgent},
				{"payment_type", paymentTypeSelect, w.cfg.DefaultPaymentType},
				{"payment_term", paymentTermSelect, w.cfg.DefaultPaymentTerm},
			}

			var skipped []string

			for _, f := range fields {
				if f.value == "" {
					continue
				}

				if err := s.SelectByLabel(ctx, f.chain, f.value); err != nil {
					w.logger.Warn("form field left as pre-filled", "field", f.name, "error", err)
					skipped = append(skipped, f.name)
				}
			}

			if len(skipped) > 0 {
				w.eng.LogStep(ctx, models.StepFormFill, models.StepStatusInfo,
					"some form fields kept their pre-filled values",
					map[string]any{"fields": skipped}, "")
			}

			// The internal order code goes into the description so the portal
			// order can be traced back.
			return s.Fill(ctx, descriptionInput, orderCode)
		})
}

func (w *Workflow) openProductsTab(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepProductsTab, "open products tab",
		w.policy(w.retry.Navigation), func(ctx context.Context) error {
			return w.eng.Session().Click(ctx, productsTab)
		})
}

func (w *Workflow) searchProducts(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepProductsSearch, "load product list",
		w.policy(w.retry.Navigation), func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, searchButton); err != nil {
				return err
			}

			return s.WaitVisible(ctx, productTable)
		})
}

// addProducts writes each line item's quantity into its product row. Rows
// that cannot be found are logged as warnings, never failing the step: the
// portal's catalogue and the order's items legitimately drift apart.
func (w *Workflow) addProducts(ctx context.Context, items []models.OrderItem) error {
	return w.eng.ExecuteStep(ctx, models.StepProductsAdd, "enter item quantities",
		w.policy(w.retry.FormFill), func(ctx context.Context) error {
			s := w.eng.Session()

			var missing []string

			for _, item := range items {
				if item.Quantity <= 0 {
					continue
				}

				var outcome string
				if err := s.Evaluate(ctx, quantityFillJS(item.ProductCode, item.Quantity), &outcome); err != nil {
					return fmt.Errorf("write quantity for %s: %w", item.ProductCode, err)
				}

				if outcome != "ok" {
					w.logger.Warn("product row not usable", "product_code", item.ProductCode, "outcome", outcome)
					missing = append(missing, item.ProductCode)
				}
			}

			if len(missing) > 0 {
				w.eng.LogStep(ctx, models.StepProductsAdd, models.StepStatusInfo,
					fmt.Sprintf("%d products not found in portal list", len(missing)),
					map[string]any{"product_codes": missing}, "")
			}

			return nil
		})
}

func quantityFillJS(productCode string, quantity int) string {
	return fmt.Sprintf(`(function() {
		const rows = document.querySelectorAll('table tr, .grid .row');
		for (const row of rows) {
			if (!row.textContent.includes(%q)) { continue; }
			const input = row.querySelector("input[type='number'], input[class*='adet'], input[class*='quantity']");
			if (!input) { return 'no_quantity_input'; }
			input.value = %q;
			input.dispatchEvent(new Event('input', {bubbles: true}));
			input.dispatchEvent(new Event('change', {bubbles: true}));
			return 'ok';
		}
		return 'row_not_found';
	})()`, productCode, fmt.Sprintf("%d", quantity))
}

func (w *Workflow) saveProducts(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepProductsSave, "save product lines",
		w.policy(w.retry.Submit), func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, saveProductsButton); err != nil {
				return err
			}

			return s.WaitVisible(ctx, savedMessage)
		})
}

func (w *Workflow) saveOrder(ctx context.Context) error {
	return w.eng.ExecuteStep(ctx, models.StepOrderSave, "save order header",
		w.policy(w.retry.Submit), func(ctx context.Context) error {
			return w.eng.Session().Click(ctx, saveOrderButton)
		})
}

// confirmOrder submits the order to the counterparty's backend. This is the
// irrevocable commit: failures here always capture a screenshot because an
// ambiguous outcome at this step has real-money consequences.
func (w *Workflow) confirmOrder(ctx context.Context) (string, error) {
	var portalRef string

	pol := w.policy(w.retry.Submit)
	pol.ScreenshotOnError = true

	err := w.eng.ExecuteStep(ctx, models.StepOrderConfirm, "confirm order to backend", pol,
		func(ctx context.Context) error {
			s := w.eng.Session()

			if err := s.Click(ctx, confirmButton); err != nil {
				return err
			}

			content, err := s.PageContent(ctx)
			if err != nil {
				return fmt.Errorf("read confirmation page: %w", err)
			}

			portalRef = w.extract(content)
			if portalRef == "" {
				w.logger.Warn("could not extract portal order reference from confirmation page")
			}

			return nil
		})
	if err != nil {
		return "", err
	}

	return portalRef, nil
}
