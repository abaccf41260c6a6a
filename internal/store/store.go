package store

import (
	"context"
	"errors"
	"time"

	"dukapos/backend/internal/domain"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrProductNotFound   = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrUnitMismatch      = errors.New("stock unit does not match tracking type")
	ErrAmbiguousScent    = errors.New("scent name matches more than one product")
	ErrEmptyCart         = errors.New("sale has no lines")
	ErrAlreadyVoided     = errors.New("sale already voided")
	ErrAlreadyDecided    = errors.New("approval already decided")
	ErrAlreadySettled    = errors.New("credit already settled")
	ErrNotApproved       = errors.New("credit not approved")
	ErrInvalidRequest    = errors.New("invalid request")
	ErrConflict          = errors.New("conflict")
	ErrPersistence       = errors.New("persistence failure")
)

// Repository is the persistence boundary. Stock mutations are atomic
// compare-and-set operations so concurrent sales never oversell; state
// transitions take the expected prior status and fail if it changed.
type Repository interface {
	ListProducts(ctx context.Context, departmentID string) ([]domain.Product, error)
	CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error)

	// ResolveScentByName finds the single active ml-tracked product with
	// the given name visible to the department: its own rows plus global
	// rows. A name present in both scopes is ErrAmbiguousScent.
	ResolveScentByName(ctx context.Context, departmentID string, name string) (*domain.Product, error)

	// EnsureBlendMasterProduct returns the shared catalog row that anchors
	// blended-scent sale lines, creating it on first use. Anchoring every
	// blend under one product id lets scent sales be aggregated across
	// sales without a dimension table. The row carries no stock; blends
	// draw down their component scents.
	EnsureBlendMasterProduct(ctx context.Context) (*domain.Product, error)

	// DecrementStock atomically removes qty if enough stock is on hand.
	// The quantity unit must match the product's tracking type.
	DecrementStock(ctx context.Context, productID string, qty domain.StockQuantity) (domain.StockLevel, error)
	// IncrementStock atomically adds qty back. Used for restocks and for
	// compensating a failed sale.
	IncrementStock(ctx context.Context, productID string, qty domain.StockQuantity) (domain.StockLevel, error)

	ListServices(ctx context.Context, departmentID string) ([]domain.ShopService, error)
	CreateService(ctx context.Context, svc domain.ShopService) (*domain.ShopService, error)
	GetServiceByID(ctx context.Context, id string) (*domain.ShopService, error)

	AllocateReceiptNumber(ctx context.Context) (int64, error)
	// InsertSale persists the header and its lines. Stock was already
	// taken by DecrementStock; this write performs no stock effects.
	InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error)
	GetSaleByID(ctx context.Context, id string) (*domain.Sale, error)
	ListSales(ctx context.Context, departmentID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error)
	// MarkSaleVoided flips a completed sale to voided and restores the
	// stock its lines consumed. Voiding a voided sale is ErrAlreadyVoided.
	MarkSaleVoided(ctx context.Context, id string, reason string, voidedBy string, at time.Time) (*domain.Sale, error)

	SumCashSales(ctx context.Context, departmentID string, date string) (int64, error)
	SumSales(ctx context.Context, departmentID string, from time.Time, to time.Time) (int64, error)
	SalesTotalsByPayment(ctx context.Context, departmentID string, from time.Time, to time.Time) ([]domain.PaymentTotal, error)
	SumLineCosts(ctx context.Context, departmentID string, from time.Time, to time.Time) (cogsCents int64, cosoCents int64, err error)

	CreateCredit(ctx context.Context, credit domain.Credit) (*domain.Credit, error)
	GetCreditByID(ctx context.Context, id string) (*domain.Credit, error)
	// SetCreditApproval moves a pending credit to approved or rejected.
	// A credit already decided is ErrAlreadyDecided.
	SetCreditApproval(ctx context.Context, id string, status string, approvedBy string, at time.Time) (*domain.Credit, error)
	// SettleCredit marks an approved unsettled credit settled. Unapproved
	// credits are ErrNotApproved, settled ones ErrAlreadySettled.
	SettleCredit(ctx context.Context, id string, at time.Time) (*domain.Credit, error)
	ListCredits(ctx context.Context, filter domain.CreditFilter, limit int) ([]domain.Credit, error)
	CreditTotals(ctx context.Context, departmentID string, from time.Time, to time.Time) (domain.CreditTotals, error)

	CreateReconciliation(ctx context.Context, rec domain.Reconciliation) (*domain.Reconciliation, error)
	GetReconciliationByID(ctx context.Context, id string) (*domain.Reconciliation, error)
	SetReconciliationStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Reconciliation, error)
	ListReconciliations(ctx context.Context, departmentID string, from string, to string, limit int) ([]domain.Reconciliation, error)
	SumReconciliationDiscrepancies(ctx context.Context, departmentID string, from string, to string) (int64, error)

	CreateSuspendedRevenue(ctx context.Context, sr domain.SuspendedRevenue) (*domain.SuspendedRevenue, error)
	UpdateSuspendedRevenue(ctx context.Context, id string, status string, notes string, at time.Time) (*domain.SuspendedRevenue, error)
	ListSuspendedRevenue(ctx context.Context, departmentID string, status string, limit int) ([]domain.SuspendedRevenue, error)
	SumSuspendedRevenue(ctx context.Context, departmentID string, from time.Time, to time.Time) (int64, error)

	CreateExpense(ctx context.Context, exp domain.Expense) (*domain.Expense, error)
	ListExpenses(ctx context.Context, departmentID string, from string, to string, limit int) ([]domain.Expense, error)
	SumExpenses(ctx context.Context, departmentID string, from string, to string) (int64, error)

	GetCustomerPreference(ctx context.Context, customerID string) (*domain.CustomerPreference, error)
	UpsertCustomerPreference(ctx context.Context, pref domain.CustomerPreference) error

	CreateAuditLog(ctx context.Context, entry domain.AuditLog) error
	ListAuditLogs(ctx context.Context, departmentID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error)

	CreateUser(ctx context.Context, user domain.UserAccount) error
	ListUsers(ctx context.Context) ([]domain.UserAccount, error)
	UpdateUserPassword(ctx context.Context, username string, password string) error
}
