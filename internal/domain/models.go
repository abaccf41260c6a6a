package domain

import "time"

// TrackingType selects the stock model a product uses. It is immutable
// after the product is created: quantity products count discrete units,
// ml products track a continuous fluid volume.
type TrackingType string

const (
	TrackQuantity TrackingType = "quantity"
	TrackML       TrackingType = "ml"
)

// StockUnit is the unit a stock mutation is expressed in. It must match
// the product's tracking type or the mutation is rejected outright.
type StockUnit string

const (
	UnitCount      StockUnit = "count"
	UnitMilliliter StockUnit = "ml"
)

// Unit returns the stock unit a tracking type is mutated in.
func (t TrackingType) Unit() StockUnit {
	if t == TrackML {
		return UnitMilliliter
	}
	return UnitCount
}

// StockQuantity is an amount to add or remove, tagged with its unit.
// Exactly one of Count / Milliliters is meaningful depending on Unit.
type StockQuantity struct {
	Unit        StockUnit `json:"unit"`
	Count       int       `json:"count,omitempty"`
	Milliliters float64   `json:"milliliters,omitempty"`
}

func CountQuantity(units int) StockQuantity {
	return StockQuantity{Unit: UnitCount, Count: units}
}

func VolumeQuantity(ml float64) StockQuantity {
	return StockQuantity{Unit: UnitMilliliter, Milliliters: ml}
}

// StockLevel is a product's on-hand level after a ledger mutation.
type StockLevel struct {
	Unit        StockUnit `json:"unit"`
	Count       int       `json:"count,omitempty"`
	Milliliters float64   `json:"milliliters,omitempty"`
}

// BlendMasterProductID is the fixed id of the shared product that anchors
// blended-scent sale lines. It exists so blend revenue rolls up under one
// catalog entry; the row itself never holds stock.
const BlendMasterProductID = "prod-blend-master"

// Product is a sellable stock-bearing item. DepartmentID empty means the
// product is global: shared raw scent capital readable by every department,
// used only for ml-tracked scent stock.
type Product struct {
	ID                  string       `json:"id"`
	DepartmentID        string       `json:"department_id,omitempty"`
	Name                string       `json:"name"`
	Category            string       `json:"category"`
	TrackingType        TrackingType `json:"tracking_type"`
	Stock               int          `json:"stock"`
	QuantityPerUnit     int          `json:"quantity_per_unit"`
	StockML             float64      `json:"stock_ml"`
	RetailPriceCents    int64        `json:"retail_price_cents"`
	WholesalePriceCents int64        `json:"wholesale_price_cents"`
	CostPriceCents      int64        `json:"cost_price_cents"`
	Active              bool         `json:"active"`
	CreatedAt           time.Time    `json:"created_at"`
}

// Global reports whether the product is shared capital (no owning department).
func (p Product) Global() bool {
	return p.DepartmentID == ""
}

type ProductCreateRequest struct {
	DepartmentID        string       `json:"department_id,omitempty"`
	Name                string       `json:"name"`
	Category            string       `json:"category"`
	TrackingType        TrackingType `json:"tracking_type"`
	InitialStock        int          `json:"initial_stock"`
	QuantityPerUnit     int          `json:"quantity_per_unit"`
	InitialStockML      float64      `json:"initial_stock_ml"`
	RetailPriceCents    int64        `json:"retail_price_cents"`
	WholesalePriceCents int64        `json:"wholesale_price_cents"`
	CostPriceCents      int64        `json:"cost_price_cents"`
}

type ProductUpdateRequest struct {
	Name                *string `json:"name,omitempty"`
	Category            *string `json:"category,omitempty"`
	RetailPriceCents    *int64  `json:"retail_price_cents,omitempty"`
	WholesalePriceCents *int64  `json:"wholesale_price_cents,omitempty"`
	CostPriceCents      *int64  `json:"cost_price_cents,omitempty"`
	QuantityPerUnit     *int    `json:"quantity_per_unit,omitempty"`
	Active              *bool   `json:"active,omitempty"`
}

type StockAdjustRequest struct {
	Count       int     `json:"count,omitempty"`
	Milliliters float64 `json:"milliliters,omitempty"`
	Reason      string  `json:"reason"`
}

// ShopService is a sellable service (no stock effect). Its material cost
// feeds the cost-of-service-offered side of profit reporting.
type ShopService struct {
	ID                string    `json:"id"`
	DepartmentID      string    `json:"department_id"`
	Name              string    `json:"name"`
	PriceCents        int64     `json:"price_cents"`
	MaterialCostCents int64     `json:"material_cost_cents"`
	Active            bool      `json:"active"`
	CreatedAt         time.Time `json:"created_at"`
}

type ServiceCreateRequest struct {
	DepartmentID      string `json:"department_id"`
	Name              string `json:"name"`
	PriceCents        int64  `json:"price_cents"`
	MaterialCostCents int64  `json:"material_cost_cents"`
}

const (
	PaymentCash        = "cash"
	PaymentMobileMoney = "mobile_money"
	PaymentCard        = "card"
	PaymentBank        = "bank"
)

const (
	SaleStatusCompleted = "completed"
	SaleStatusVoided    = "voided"
)

// BlendComponent is one named scent consumed by a custom blend line.
// ProductID is the stock row resolved at sale time, recorded so a void
// can restore exactly what was decremented.
type BlendComponent struct {
	ScentName   string  `json:"scent_name"`
	ProductID   string  `json:"product_id,omitempty"`
	Milliliters float64 `json:"milliliters"`
}

// SaleItem is one persisted sale line. Quantity is a unit count for
// quantity-tracked products and milliliters for ml-tracked ones. Blend
// lines carry their component breakdown as metadata.
type SaleItem struct {
	ID              string           `json:"id"`
	SaleID          string           `json:"sale_id"`
	ProductID       string           `json:"product_id,omitempty"`
	ServiceID       string           `json:"service_id,omitempty"`
	Description     string           `json:"description"`
	Quantity        float64          `json:"quantity"`
	UnitPriceCents  int64            `json:"unit_price_cents"`
	SubtotalCents   int64            `json:"subtotal_cents"`
	Wholesale       bool             `json:"wholesale"`
	CostCents       int64            `json:"cost_cents"`
	BottleSizeML    float64          `json:"bottle_size_ml,omitempty"`
	BlendComponents []BlendComponent `json:"blend_components,omitempty"`
}

type Sale struct {
	ID              string     `json:"id"`
	DepartmentID    string     `json:"department_id"`
	Cashier         string     `json:"cashier"`
	CustomerID      string     `json:"customer_id,omitempty"`
	PaymentMethod   string     `json:"payment_method"`
	SubtotalCents   int64      `json:"subtotal_cents"`
	TotalCents      int64      `json:"total_cents"`
	AmountPaidCents int64      `json:"amount_paid_cents"`
	ChangeCents     int64      `json:"change_cents"`
	ReceiptNumber   string     `json:"receipt_number"`
	InvoiceNumber   string     `json:"invoice_number,omitempty"`
	Status          string     `json:"status"`
	VoidReason      string     `json:"void_reason,omitempty"`
	VoidedBy        string     `json:"voided_by,omitempty"`
	VoidedAt        *time.Time `json:"voided_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	Items           []SaleItem `json:"items"`
}

// SaleLineRequest is one cart line. A non-empty BlendComponents marks the
// line as a custom scent blend measured in milliliters.
type SaleLineRequest struct {
	ProductID       string           `json:"product_id,omitempty"`
	ServiceID       string           `json:"service_id,omitempty"`
	Quantity        float64          `json:"quantity"`
	Wholesale       bool             `json:"wholesale"`
	BottleSizeML    float64          `json:"bottle_size_ml,omitempty"`
	BlendComponents []BlendComponent `json:"blend_components,omitempty"`
}

type SaleRequest struct {
	DepartmentID    string            `json:"department_id"`
	PaymentMethod   string            `json:"payment_method"`
	CustomerID      string            `json:"customer_id,omitempty"`
	AmountPaidCents int64             `json:"amount_paid_cents"`
	Lines           []SaleLineRequest `json:"lines"`
}

type ReceiptLine struct {
	Description    string  `json:"description"`
	Quantity       float64 `json:"quantity"`
	UnitPriceCents int64   `json:"unit_price_cents"`
	SubtotalCents  int64   `json:"subtotal_cents"`
}

// SaleReceipt is the descriptor handed back after a completed sale. It is
// not authoritative state: it is rebuilt from the persisted sale rows.
type SaleReceipt struct {
	SaleID          string        `json:"sale_id"`
	ReceiptNumber   string        `json:"receipt_number"`
	InvoiceNumber   string        `json:"invoice_number,omitempty"`
	DepartmentID    string        `json:"department_id"`
	Cashier         string        `json:"cashier"`
	PaymentMethod   string        `json:"payment_method"`
	SubtotalCents   int64         `json:"subtotal_cents"`
	TotalCents      int64         `json:"total_cents"`
	AmountPaidCents int64         `json:"amount_paid_cents"`
	ChangeCents     int64         `json:"change_cents"`
	Lines           []ReceiptLine `json:"lines"`
	CreatedAt       string        `json:"created_at"`
}

type VoidSaleRequest struct {
	SaleID     string `json:"sale_id"`
	Reason     string `json:"reason"`
	ManagerPIN string `json:"manager_pin,omitempty"`
}

type VoidSaleResponse struct {
	SaleID   string `json:"sale_id"`
	Status   string `json:"status"`
	VoidedAt string `json:"voided_at"`
}

const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

const (
	SettlementUnsettled = "unsettled"
	SettlementSettled   = "settled"
)

// Credit is a directed IOU between two departments. Approval and
// settlement are independent axes: a credit can be approved but unpaid,
// and settlement is only legal once approved.
type Credit struct {
	ID               string     `json:"id"`
	FromDepartment   string     `json:"from_department"`
	ToDepartment     string     `json:"to_department"`
	AmountCents      int64      `json:"amount_cents"`
	Purpose          string     `json:"purpose"`
	TransactionType  string     `json:"transaction_type"`
	ApprovalStatus   string     `json:"approval_status"`
	SettlementStatus string     `json:"settlement_status"`
	ApprovedBy       string     `json:"approved_by,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	DecidedAt        *time.Time `json:"decided_at,omitempty"`
	SettledAt        *time.Time `json:"settled_at,omitempty"`
}

type CreditCreateRequest struct {
	FromDepartment  string `json:"from_department"`
	ToDepartment    string `json:"to_department"`
	AmountCents     int64  `json:"amount_cents"`
	Purpose         string `json:"purpose"`
	TransactionType string `json:"transaction_type"`
}

type CreditApprovalRequest struct {
	Status string `json:"status"`
}

// CreditFilter narrows credit listings: all credits touching DepartmentID,
// optionally restricted by approval status, counterpart department, and
// creation date range.
type CreditFilter struct {
	DepartmentID   string
	ApprovalStatus string
	Counterpart    string
	From           time.Time
	To             time.Time
}

// CreditTotals are the four aggregation buckets relative to a department:
// "in" credits name it as to_department, "out" credits as from_department.
// Rejected credits are excluded from every bucket.
type CreditTotals struct {
	UnsettledInCents  int64 `json:"unsettled_in_cents"`
	UnsettledOutCents int64 `json:"unsettled_out_cents"`
	SettledInCents    int64 `json:"settled_in_cents"`
	SettledOutCents   int64 `json:"settled_out_cents"`
}

const (
	ReconStatusCompleted = "completed"
	ReconStatusPending   = "pending"
	ReconStatusApproved  = "approved"
	ReconStatusRejected  = "rejected"
)

// Reconciliation compares a cashier's declared cash against the cash the
// system computed from completed cash sales for one (department, date).
type Reconciliation struct {
	ID                string    `json:"id"`
	DepartmentID      string    `json:"department_id"`
	Date              string    `json:"date"`
	Cashier           string    `json:"cashier"`
	SystemCashCents   int64     `json:"system_cash_cents"`
	ReportedCashCents int64     `json:"reported_cash_cents"`
	DiscrepancyCents  int64     `json:"discrepancy_cents"`
	Notes             string    `json:"notes,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

type ReconcileRequest struct {
	DepartmentID      string `json:"department_id"`
	Date              string `json:"date"`
	ReportedCashCents int64  `json:"reported_cash_cents"`
	Notes             string `json:"notes,omitempty"`
}

// ReconcileResult carries the persisted reconciliation plus a non-fatal
// warning when the secondary suspended-revenue write failed.
type ReconcileResult struct {
	Reconciliation Reconciliation `json:"reconciliation"`
	Warning        string         `json:"warning,omitempty"`
}

type ReconciliationDecisionRequest struct {
	Status string `json:"status"`
}

const (
	SuspendedPending   = "pending"
	SuspendedExplained = "explained"
	SuspendedApproved  = "approved"
	SuspendedRejected  = "rejected"
)

// SuspendedRevenue is cash whose origin is unexplained, held outside
// normal revenue until investigated. ReconciliationID is set when the row
// was auto-created from a positive reconciliation discrepancy.
type SuspendedRevenue struct {
	ID               string     `json:"id"`
	DepartmentID     string     `json:"department_id"`
	AmountCents      int64      `json:"amount_cents"`
	Reason           string     `json:"reason"`
	ReconciliationID string     `json:"reconciliation_id,omitempty"`
	Status           string     `json:"status"`
	Notes            string     `json:"notes,omitempty"`
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

type SuspendedRevenueCreateRequest struct {
	DepartmentID string `json:"department_id"`
	AmountCents  int64  `json:"amount_cents"`
	Reason       string `json:"reason"`
}

type SuspendedRevenueUpdateRequest struct {
	Status string `json:"status"`
	Notes  string `json:"notes,omitempty"`
}

type Expense struct {
	ID           string    `json:"id"`
	DepartmentID string    `json:"department_id"`
	Category     string    `json:"category"`
	Description  string    `json:"description"`
	AmountCents  int64     `json:"amount_cents"`
	IncurredOn   string    `json:"incurred_on"`
	CreatedAt    time.Time `json:"created_at"`
}

type ExpenseCreateRequest struct {
	DepartmentID string `json:"department_id"`
	Category     string `json:"category"`
	Description  string `json:"description"`
	AmountCents  int64  `json:"amount_cents"`
	IncurredOn   string `json:"incurred_on"`
}

// CustomerPreference accumulates the scent names and bottle sizes a known
// customer has bought, merged after each blend sale.
type CustomerPreference struct {
	CustomerID  string    `json:"customer_id"`
	ScentNames  []string  `json:"scent_names"`
	BottleSizes []float64 `json:"bottle_sizes"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ScentSuggestion is a ranked pick from the scent catalog offered when a
// customer orders a custom blend. Score is in [0,1]; higher is better.
type ScentSuggestion struct {
	ProductID       string  `json:"product_id"`
	ScentName       string  `json:"scent_name"`
	PricePerMLCents int64   `json:"price_per_ml_cents"`
	StockML         float64 `json:"stock_ml"`
	ReasonCode      string  `json:"reason_code"`
	Score           float64 `json:"score"`
}

type PaymentTotal struct {
	PaymentMethod string `json:"payment_method"`
	TotalCents    int64  `json:"total_cents"`
}

// RevenueReport folds every ledger for one (department, window) into the
// adjusted-net-sales figures.
type RevenueReport struct {
	DepartmentID                   string         `json:"department_id"`
	From                           string         `json:"from"`
	To                             string         `json:"to"`
	GrossSalesCents                int64          `json:"gross_sales_cents"`
	SalesByPayment                 []PaymentTotal `json:"sales_by_payment"`
	UnsettledCreditsInCents        int64          `json:"unsettled_credits_in_cents"`
	UnsettledCreditsOutCents       int64          `json:"unsettled_credits_out_cents"`
	SettledCreditsInCents          int64          `json:"settled_credits_in_cents"`
	SettledCreditsOutCents         int64          `json:"settled_credits_out_cents"`
	ExpenseCents                   int64          `json:"expense_cents"`
	ReconciliationDiscrepancyCents int64          `json:"reconciliation_discrepancy_cents"`
	SuspendedRevenueCents          int64          `json:"suspended_revenue_cents"`
	AdjustedSalesCents             int64          `json:"adjusted_sales_cents"`
	COGSCents                      int64          `json:"cogs_cents"`
	COSOCents                      int64          `json:"coso_cents"`
	GrossProfitCents               int64          `json:"gross_profit_cents"`
	AdjustedGrossProfitCents       int64          `json:"adjusted_gross_profit_cents"`
	GeneratedAt                    string         `json:"generated_at"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type LoginResponse struct {
	AccessToken  string `json:"access_token"`
	Role         string `json:"role"`
	DepartmentID string `json:"department_id,omitempty"`
	ExpiresAt    string `json:"expires_at"`
}

// Actor is the authenticated caller attached to a request. An empty
// DepartmentID means the actor is not pinned to one department; only
// admins carry that scope.
type Actor struct {
	Username     string
	Role         string
	DepartmentID string
}

type CashierCreateRequest struct {
	Username     string `json:"username"`
	Password     string `json:"password"`
	DepartmentID string `json:"department_id,omitempty"`
}

type CashierUser struct {
	Username     string    `json:"username"`
	Role         string    `json:"role"`
	DepartmentID string    `json:"department_id,omitempty"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
}

// UserAccount is an internal persistence model for auth credentials.
type UserAccount struct {
	Username     string
	Password     string
	Role         string
	DepartmentID string
	Active       bool
	CreatedAt    time.Time
}

type AuditLog struct {
	ID            string    `json:"id"`
	DepartmentID  string    `json:"department_id"`
	ActorUsername string    `json:"actor_username"`
	ActorRole     string    `json:"actor_role"`
	Action        string    `json:"action"`
	EntityType    string    `json:"entity_type"`
	EntityID      string    `json:"entity_id"`
	Detail        string    `json:"detail"`
	CreatedAt     time.Time `json:"created_at"`
}
