package models

import "time"

// Step labels one logical stage of a portal workflow. Each portal variant
// declares its own fixed, ordered subset of these.
type Step string

const (
	StepInit           Step = "INIT"
	StepLogin          Step = "LOGIN"
	StepCustomerSelect Step = "CUSTOMER_SELECT"
	StepMenuNavigate   Step = "MENU_NAVIGATE"
	StepOrderCreate    Step = "ORDER_CREATE"
	StepFormFill       Step = "FORM_FILL"
	StepProductsTab    Step = "PRODUCTS_TAB"
	StepProductsSearch Step = "PRODUCTS_SEARCH"
	StepProductsAdd    Step = "PRODUCTS_ADD"
	StepProductsSave   Step = "PRODUCTS_SAVE"
	StepOrderSave      Step = "ORDER_SAVE"
	StepOrderConfirm   Step = "ORDER_CONFIRM"
	StepFileUpload     Step = "FILE_UPLOAD"
	StepSupplierSelect Step = "SUPPLIER_SELECT"
	StepRequestSubmit  Step = "REQUEST_SUBMIT"
	StepOrderSubmit    Step = "ORDER_SUBMIT"
	StepComplete       Step = "COMPLETE"
	StepFailed         Step = "FAILED"
)

type StepStatus string

const (
	StepStatusSuccess    StepStatus = "SUCCESS"
	StepStatusFailed     StepStatus = "FAILED"
	StepStatusRetry      StepStatus = "RETRY"
	StepStatusInfo       StepStatus = "INFO"
	StepStatusProcessing StepStatus = "PROCESSING"
)

// StepLogEntry is one immutable audit record appended during a run. The
// sequence of entries for an order is the only way to reconstruct a run
// after a crash.
type StepLogEntry struct {
	ID         string         `json:"id"`
	OrderID    string         `json:"order_id"`
	Step       Step           `json:"step"`
	Status     StepStatus     `json:"status"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	Screenshot string         `json:"screenshot,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
}
