package memory

import (
	"context"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

type Store struct {
	mu                sync.RWMutex
	products          map[string]domain.Product
	services          map[string]domain.ShopService
	salesByID         map[string]*domain.Sale
	receiptCounter    int64
	creditsByID       map[string]domain.Credit
	reconciliations   map[string]domain.Reconciliation
	suspendedByID     map[string]domain.SuspendedRevenue
	expensesByID      map[string]domain.Expense
	prefsByCustomer   map[string]domain.CustomerPreference
	auditLogs         []domain.AuditLog
	usersByUsername   map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory user accounts for dev/demo mode.
// Credentials are read from SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD
// environment variables. If unset, hardcoded dev defaults are used with a
// warning printed to stdout. These credentials are never used in production
// (the backend uses PostgreSQL when DATABASE_URL is set).
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username   string
		password   string
		role       string
		department string
	}{
		{"admin", adminPwd, "admin", ""},
		{"cashier", cashierPwd, "cashier", "main-shop"},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:     u.username,
			Password:     string(hash),
			Role:         u.role,
			DepartmentID: u.department,
			Active:       true,
			CreatedAt:    now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func NewSeeded() *Store {
	now := time.Now().UTC()
	products := []domain.Product{
		{ID: "prod-soap-01", DepartmentID: "main-shop", Name: "Bar Soap", Category: "household", TrackingType: domain.TrackQuantity, Stock: 80, QuantityPerUnit: 1, RetailPriceCents: 9500, WholesalePriceCents: 8200, CostPriceCents: 6400, Active: true, CreatedAt: now},
		{ID: "prod-lotion-01", DepartmentID: "main-shop", Name: "Body Lotion 400ml", Category: "cosmetics", TrackingType: domain.TrackQuantity, Stock: 45, QuantityPerUnit: 1, RetailPriceCents: 38000, WholesalePriceCents: 33500, CostPriceCents: 26000, Active: true, CreatedAt: now},
		{ID: "prod-wick-01", DepartmentID: "main-shop", Name: "Diffuser Wick", Category: "accessories", TrackingType: domain.TrackQuantity, Stock: 120, QuantityPerUnit: 12, RetailPriceCents: 2500, WholesalePriceCents: 2000, CostPriceCents: 1200, Active: true, CreatedAt: now},
		{ID: "prod-bottle-30", DepartmentID: "perfume", Name: "Empty Bottle 30ml", Category: "packaging", TrackingType: domain.TrackQuantity, Stock: 200, QuantityPerUnit: 1, RetailPriceCents: 4500, WholesalePriceCents: 3800, CostPriceCents: 2200, Active: true, CreatedAt: now},
		{ID: "scent-oud-01", Name: "Oud Royale", Category: "scent", TrackingType: domain.TrackML, StockML: 2500, RetailPriceCents: 90, WholesalePriceCents: 75, CostPriceCents: 48, Active: true, CreatedAt: now},
		{ID: "scent-musk-01", Name: "White Musk", Category: "scent", TrackingType: domain.TrackML, StockML: 1800, RetailPriceCents: 70, WholesalePriceCents: 58, CostPriceCents: 35, Active: true, CreatedAt: now},
		{ID: "scent-rose-01", Name: "Damask Rose", Category: "scent", TrackingType: domain.TrackML, StockML: 950, RetailPriceCents: 110, WholesalePriceCents: 92, CostPriceCents: 60, Active: true, CreatedAt: now},
		{ID: "scent-amber-pf", DepartmentID: "perfume", Name: "Amber Noir", Category: "scent", TrackingType: domain.TrackML, StockML: 600, RetailPriceCents: 130, WholesalePriceCents: 108, CostPriceCents: 72, Active: true, CreatedAt: now},
	}

	services := []domain.ShopService{
		{ID: "svc-engrave-01", DepartmentID: "perfume", Name: "Bottle Engraving", PriceCents: 15000, MaterialCostCents: 2500, Active: true, CreatedAt: now},
		{ID: "svc-wrap-01", DepartmentID: "main-shop", Name: "Gift Wrapping", PriceCents: 5000, MaterialCostCents: 1800, Active: true, CreatedAt: now},
	}

	productMap := make(map[string]domain.Product, len(products))
	for _, p := range products {
		productMap[p.ID] = p
	}
	serviceMap := make(map[string]domain.ShopService, len(services))
	for _, svc := range services {
		serviceMap[svc.ID] = svc
	}

	return &Store{
		products:        productMap,
		services:        serviceMap,
		salesByID:       make(map[string]*domain.Sale),
		creditsByID:     make(map[string]domain.Credit),
		reconciliations: make(map[string]domain.Reconciliation),
		suspendedByID:   make(map[string]domain.SuspendedRevenue),
		expensesByID:    make(map[string]domain.Expense),
		prefsByCustomer: make(map[string]domain.CustomerPreference),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

func (s *Store) ListProducts(_ context.Context, departmentID string) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		if !p.Active {
			continue
		}
		if departmentID != "" && p.DepartmentID != "" && p.DepartmentID != departmentID {
			continue
		}
		products = append(products, p)
	}

	slices.SortFunc(products, func(a, b domain.Product) int {
		if a.Category == b.Category {
			return cmpString(a.Name, b.Name)
		}
		return cmpString(a.Category, b.Category)
	})

	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if product.Name == "" || product.Category == "" || product.RetailPriceCents < 1 {
		return nil, store.ErrInvalidRequest
	}
	if product.TrackingType != domain.TrackQuantity && product.TrackingType != domain.TrackML {
		return nil, store.ErrInvalidRequest
	}
	if product.TrackingType == domain.TrackQuantity && (product.Stock < 0 || product.StockML != 0) {
		return nil, store.ErrInvalidRequest
	}
	if product.TrackingType == domain.TrackML && (product.StockML < 0 || product.Stock != 0) {
		return nil, store.ErrInvalidRequest
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if _, exists := s.products[product.ID]; exists {
		return nil, store.ErrConflict
	}
	if product.QuantityPerUnit < 1 {
		product.QuantityPerUnit = 1
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}

	product.Active = true
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProductByID(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, exists := s.products[id]
	if !exists {
		return nil, store.ErrProductNotFound
	}
	copyProduct := product
	return &copyProduct, nil
}

func (s *Store) UpdateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.products[product.ID]
	if !exists {
		return nil, store.ErrProductNotFound
	}
	if product.Name == "" || product.Category == "" || product.RetailPriceCents < 1 {
		return nil, store.ErrInvalidRequest
	}
	// Tracking type and stock levels are owned by the stock ledger.
	product.TrackingType = existing.TrackingType
	product.Stock = existing.Stock
	product.StockML = existing.StockML
	product.CreatedAt = existing.CreatedAt

	s.products[product.ID] = product
	updated := product
	return &updated, nil
}

func (s *Store) ResolveScentByName(_ context.Context, departmentID string, name string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidRequest
	}

	var matches []domain.Product
	for _, p := range s.products {
		if !p.Active || p.TrackingType != domain.TrackML {
			continue
		}
		if !strings.EqualFold(p.Name, name) {
			continue
		}
		if p.DepartmentID != "" && p.DepartmentID != departmentID {
			continue
		}
		matches = append(matches, p)
	}

	switch len(matches) {
	case 0:
		return nil, store.ErrProductNotFound
	case 1:
		result := matches[0]
		return &result, nil
	default:
		return nil, store.ErrAmbiguousScent
	}
}

func (s *Store) EnsureBlendMasterProduct(_ context.Context) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.products[domain.BlendMasterProductID]; ok {
		copyProduct := existing
		return &copyProduct, nil
	}

	master := domain.Product{
		ID:              domain.BlendMasterProductID,
		Name:            "Custom Scent Blend",
		Category:        "scent-blend",
		TrackingType:    domain.TrackML,
		QuantityPerUnit: 1,
		Active:          true,
		CreatedAt:       time.Now().UTC(),
	}
	s.products[master.ID] = master
	copyProduct := master
	return &copyProduct, nil
}

func (s *Store) DecrementStock(_ context.Context, productID string, qty domain.StockQuantity) (domain.StockLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists || !product.Active {
		return domain.StockLevel{}, store.ErrProductNotFound
	}
	if qty.Unit != product.TrackingType.Unit() {
		return domain.StockLevel{}, store.ErrUnitMismatch
	}

	switch qty.Unit {
	case domain.UnitCount:
		if qty.Count < 1 {
			return domain.StockLevel{}, store.ErrInvalidRequest
		}
		// Count quantities are packs; the stock column holds physical units.
		units := qty.Count * packSize(product)
		if product.Stock < units {
			return domain.StockLevel{}, store.ErrInsufficientStock
		}
		product.Stock -= units
		s.products[productID] = product
		return domain.StockLevel{Unit: domain.UnitCount, Count: product.Stock}, nil
	case domain.UnitMilliliter:
		if qty.Milliliters <= 0 {
			return domain.StockLevel{}, store.ErrInvalidRequest
		}
		if product.StockML < qty.Milliliters {
			return domain.StockLevel{}, store.ErrInsufficientStock
		}
		product.StockML -= qty.Milliliters
		s.products[productID] = product
		return domain.StockLevel{Unit: domain.UnitMilliliter, Milliliters: product.StockML}, nil
	default:
		return domain.StockLevel{}, store.ErrInvalidRequest
	}
}

// packSize is the physical units removed per counted pack; products that
// are not packaged carry quantity_per_unit 1 (or 0 from legacy rows).
func packSize(product domain.Product) int {
	if product.QuantityPerUnit < 1 {
		return 1
	}
	return product.QuantityPerUnit
}

func (s *Store) IncrementStock(_ context.Context, productID string, qty domain.StockQuantity) (domain.StockLevel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	product, exists := s.products[productID]
	if !exists {
		return domain.StockLevel{}, store.ErrProductNotFound
	}
	if qty.Unit != product.TrackingType.Unit() {
		return domain.StockLevel{}, store.ErrUnitMismatch
	}

	switch qty.Unit {
	case domain.UnitCount:
		if qty.Count < 1 {
			return domain.StockLevel{}, store.ErrInvalidRequest
		}
		product.Stock += qty.Count * packSize(product)
		s.products[productID] = product
		return domain.StockLevel{Unit: domain.UnitCount, Count: product.Stock}, nil
	case domain.UnitMilliliter:
		if qty.Milliliters <= 0 {
			return domain.StockLevel{}, store.ErrInvalidRequest
		}
		product.StockML += qty.Milliliters
		s.products[productID] = product
		return domain.StockLevel{Unit: domain.UnitMilliliter, Milliliters: product.StockML}, nil
	default:
		return domain.StockLevel{}, store.ErrInvalidRequest
	}
}

func (s *Store) ListServices(_ context.Context, departmentID string) ([]domain.ShopService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	services := make([]domain.ShopService, 0, len(s.services))
	for _, svc := range s.services {
		if !svc.Active {
			continue
		}
		if departmentID != "" && svc.DepartmentID != departmentID {
			continue
		}
		services = append(services, svc)
	}
	slices.SortFunc(services, func(a, b domain.ShopService) int {
		return cmpString(a.Name, b.Name)
	})
	return services, nil
}

func (s *Store) CreateService(_ context.Context, svc domain.ShopService) (*domain.ShopService, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if svc.Name == "" || svc.DepartmentID == "" || svc.PriceCents < 1 || svc.MaterialCostCents < 0 {
		return nil, store.ErrInvalidRequest
	}
	if svc.ID == "" {
		svc.ID = xid.New("svc")
	}
	if svc.CreatedAt.IsZero() {
		svc.CreatedAt = time.Now().UTC()
	}
	svc.Active = true
	s.services[svc.ID] = svc
	created := svc
	return &created, nil
}

func (s *Store) GetServiceByID(_ context.Context, id string) (*domain.ShopService, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	svc, exists := s.services[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copySvc := svc
	return &copySvc, nil
}

func (s *Store) AllocateReceiptNumber(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.receiptCounter++
	return s.receiptCounter, nil
}

func (s *Store) InsertSale(_ context.Context, sale domain.Sale) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if _, exists := s.salesByID[sale.ID]; exists {
		return nil, store.ErrConflict
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}
	for i := range sale.Items {
		if sale.Items[i].ID == "" {
			sale.Items[i].ID = xid.New("line")
		}
		sale.Items[i].SaleID = sale.ID
	}

	saved := cloneSale(&sale)
	s.salesByID[sale.ID] = saved
	return cloneSale(saved), nil
}

func (s *Store) GetSaleByID(_ context.Context, id string) (*domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	return cloneSale(sale), nil
}

func (s *Store) ListSales(_ context.Context, departmentID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Sale, 0, 64)
	for _, sale := range s.salesByID {
		if departmentID != "" && sale.DepartmentID != departmentID {
			continue
		}
		if !from.IsZero() && sale.CreatedAt.Before(from) {
			continue
		}
		if !to.IsZero() && !sale.CreatedAt.Before(to) {
			continue
		}
		result = append(result, *cloneSale(sale))
	}
	slices.SortFunc(result, func(a, b domain.Sale) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) MarkSaleVoided(_ context.Context, id string, reason string, voidedBy string, at time.Time) (*domain.Sale, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sale, exists := s.salesByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if sale.Status == domain.SaleStatusVoided {
		return nil, store.ErrAlreadyVoided
	}
	if sale.Status != domain.SaleStatusCompleted {
		return nil, store.ErrInvalidRequest
	}

	for _, item := range sale.Items {
		if len(item.BlendComponents) > 0 {
			for _, comp := range item.BlendComponents {
				if comp.ProductID == "" {
					continue
				}
				if product, ok := s.products[comp.ProductID]; ok {
					product.StockML += comp.Milliliters * item.Quantity
					s.products[comp.ProductID] = product
				}
			}
			continue
		}
		if item.ProductID == "" {
			continue
		}
		product, ok := s.products[item.ProductID]
		if !ok {
			continue
		}
		if product.TrackingType == domain.TrackML {
			product.StockML += item.Quantity
		} else {
			product.Stock += int(item.Quantity) * packSize(product)
		}
		s.products[item.ProductID] = product
	}

	sale.Status = domain.SaleStatusVoided
	sale.VoidReason = reason
	sale.VoidedBy = voidedBy
	sale.VoidedAt = &at

	return cloneSale(sale), nil
}

func (s *Store) SumCashSales(_ context.Context, departmentID string, date string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, sale := range s.salesByID {
		if sale.DepartmentID != departmentID {
			continue
		}
		if sale.Status != domain.SaleStatusCompleted || sale.PaymentMethod != domain.PaymentCash {
			continue
		}
		if sale.CreatedAt.UTC().Format("2006-01-02") != date {
			continue
		}
		total += sale.TotalCents
	}
	return total, nil
}

func (s *Store) SumSales(_ context.Context, departmentID string, from time.Time, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, sale := range s.salesByID {
		if sale.DepartmentID != departmentID || sale.Status != domain.SaleStatusCompleted {
			continue
		}
		// Gross sales are cash only; other payment methods are reported
		// separately via SalesTotalsByPayment.
		if sale.PaymentMethod != domain.PaymentCash {
			continue
		}
		if !inWindow(sale.CreatedAt, from, to) {
			continue
		}
		total += sale.TotalCents
	}
	return total, nil
}

func (s *Store) SalesTotalsByPayment(_ context.Context, departmentID string, from time.Time, to time.Time) ([]domain.PaymentTotal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	byMethod := map[string]int64{}
	for _, sale := range s.salesByID {
		if sale.DepartmentID != departmentID || sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if !inWindow(sale.CreatedAt, from, to) {
			continue
		}
		byMethod[sale.PaymentMethod] += sale.TotalCents
	}

	totals := make([]domain.PaymentTotal, 0, len(byMethod))
	for method, cents := range byMethod {
		totals = append(totals, domain.PaymentTotal{PaymentMethod: method, TotalCents: cents})
	}
	slices.SortFunc(totals, func(a, b domain.PaymentTotal) int {
		return cmpString(a.PaymentMethod, b.PaymentMethod)
	})
	return totals, nil
}

func (s *Store) SumLineCosts(_ context.Context, departmentID string, from time.Time, to time.Time) (int64, int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cogs := int64(0)
	coso := int64(0)
	for _, sale := range s.salesByID {
		if sale.DepartmentID != departmentID || sale.Status != domain.SaleStatusCompleted {
			continue
		}
		if !inWindow(sale.CreatedAt, from, to) {
			continue
		}
		for _, item := range sale.Items {
			if item.ServiceID != "" {
				coso += item.CostCents
			} else {
				cogs += item.CostCents
			}
		}
	}
	return cogs, coso, nil
}

func (s *Store) CreateCredit(_ context.Context, credit domain.Credit) (*domain.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if credit.FromDepartment == "" || credit.ToDepartment == "" || credit.FromDepartment == credit.ToDepartment {
		return nil, store.ErrInvalidRequest
	}
	if credit.AmountCents < 1 {
		return nil, store.ErrInvalidRequest
	}
	if credit.ID == "" {
		credit.ID = xid.New("credit")
	}
	if credit.CreatedAt.IsZero() {
		credit.CreatedAt = time.Now().UTC()
	}
	credit.ApprovalStatus = domain.ApprovalPending
	credit.SettlementStatus = domain.SettlementUnsettled
	credit.DecidedAt = nil
	credit.SettledAt = nil

	s.creditsByID[credit.ID] = credit
	created := credit
	return &created, nil
}

func (s *Store) GetCreditByID(_ context.Context, id string) (*domain.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	credit, exists := s.creditsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyCredit := credit
	return &copyCredit, nil
}

func (s *Store) SetCreditApproval(_ context.Context, id string, status string, approvedBy string, at time.Time) (*domain.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status != domain.ApprovalApproved && status != domain.ApprovalRejected {
		return nil, store.ErrInvalidRequest
	}
	credit, exists := s.creditsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if credit.ApprovalStatus != domain.ApprovalPending {
		return nil, store.ErrAlreadyDecided
	}

	credit.ApprovalStatus = status
	credit.ApprovedBy = approvedBy
	credit.DecidedAt = &at
	s.creditsByID[id] = credit
	copyCredit := credit
	return &copyCredit, nil
}

func (s *Store) SettleCredit(_ context.Context, id string, at time.Time) (*domain.Credit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	credit, exists := s.creditsByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if credit.ApprovalStatus != domain.ApprovalApproved {
		return nil, store.ErrNotApproved
	}
	if credit.SettlementStatus == domain.SettlementSettled {
		return nil, store.ErrAlreadySettled
	}

	credit.SettlementStatus = domain.SettlementSettled
	credit.SettledAt = &at
	s.creditsByID[id] = credit
	copyCredit := credit
	return &copyCredit, nil
}

func (s *Store) ListCredits(_ context.Context, filter domain.CreditFilter, limit int) ([]domain.Credit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Credit, 0, 64)
	for _, credit := range s.creditsByID {
		if filter.DepartmentID != "" &&
			credit.FromDepartment != filter.DepartmentID && credit.ToDepartment != filter.DepartmentID {
			continue
		}
		if filter.ApprovalStatus != "" && credit.ApprovalStatus != filter.ApprovalStatus {
			continue
		}
		if filter.Counterpart != "" &&
			credit.FromDepartment != filter.Counterpart && credit.ToDepartment != filter.Counterpart {
			continue
		}
		if !inWindow(credit.CreatedAt, filter.From, filter.To) {
			continue
		}
		result = append(result, credit)
	}
	slices.SortFunc(result, func(a, b domain.Credit) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreditTotals(_ context.Context, departmentID string, from time.Time, to time.Time) (domain.CreditTotals, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	totals := domain.CreditTotals{}
	for _, credit := range s.creditsByID {
		if credit.ApprovalStatus == domain.ApprovalRejected {
			continue
		}
		if !inWindow(credit.CreatedAt, from, to) {
			continue
		}
		settled := credit.SettlementStatus == domain.SettlementSettled
		switch departmentID {
		case credit.ToDepartment:
			if settled {
				totals.SettledInCents += credit.AmountCents
			} else {
				totals.UnsettledInCents += credit.AmountCents
			}
		case credit.FromDepartment:
			if settled {
				totals.SettledOutCents += credit.AmountCents
			} else {
				totals.UnsettledOutCents += credit.AmountCents
			}
		}
	}
	return totals, nil
}

func (s *Store) CreateReconciliation(_ context.Context, rec domain.Reconciliation) (*domain.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.DepartmentID == "" || rec.Date == "" {
		return nil, store.ErrInvalidRequest
	}
	if rec.ID == "" {
		rec.ID = xid.New("recon")
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Status == "" {
		rec.Status = domain.ReconStatusCompleted
	}

	// One count per cashier per department per day. A second submission for
	// the same drawer would double-count its discrepancy in reporting.
	for _, existing := range s.reconciliations {
		if existing.DepartmentID == rec.DepartmentID && existing.Date == rec.Date && existing.Cashier == rec.Cashier {
			return nil, store.ErrConflict
		}
	}

	s.reconciliations[rec.ID] = rec
	created := rec
	return &created, nil
}

func (s *Store) GetReconciliationByID(_ context.Context, id string) (*domain.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, exists := s.reconciliations[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyRec := rec
	return &copyRec, nil
}

func (s *Store) SetReconciliationStatus(_ context.Context, id string, status string, at time.Time) (*domain.Reconciliation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if status != domain.ReconStatusApproved && status != domain.ReconStatusRejected {
		return nil, store.ErrInvalidRequest
	}
	rec, exists := s.reconciliations[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	if rec.Status == domain.ReconStatusApproved || rec.Status == domain.ReconStatusRejected {
		return nil, store.ErrAlreadyDecided
	}

	rec.Status = status
	s.reconciliations[id] = rec
	copyRec := rec
	return &copyRec, nil
}

func (s *Store) ListReconciliations(_ context.Context, departmentID string, from string, to string, limit int) ([]domain.Reconciliation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Reconciliation, 0, 32)
	for _, rec := range s.reconciliations {
		if departmentID != "" && rec.DepartmentID != departmentID {
			continue
		}
		if from != "" && rec.Date < from {
			continue
		}
		if to != "" && rec.Date > to {
			continue
		}
		result = append(result, rec)
	}
	slices.SortFunc(result, func(a, b domain.Reconciliation) int {
		if a.Date == b.Date {
			return cmpString(b.ID, a.ID)
		}
		return cmpString(b.Date, a.Date)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SumReconciliationDiscrepancies(_ context.Context, departmentID string, from string, to string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, rec := range s.reconciliations {
		if rec.DepartmentID != departmentID {
			continue
		}
		// Pending discrepancies are not yet admitted into reporting; only
		// approved counts (and completed, which is always zero) feed the sum.
		if rec.Status != domain.ReconStatusApproved && rec.Status != domain.ReconStatusCompleted {
			continue
		}
		if from != "" && rec.Date < from {
			continue
		}
		if to != "" && rec.Date > to {
			continue
		}
		total += rec.DiscrepancyCents
	}
	return total, nil
}

func (s *Store) CreateSuspendedRevenue(_ context.Context, sr domain.SuspendedRevenue) (*domain.SuspendedRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sr.DepartmentID == "" || sr.AmountCents < 1 {
		return nil, store.ErrInvalidRequest
	}
	if sr.ID == "" {
		sr.ID = xid.New("susp")
	}
	if sr.CreatedAt.IsZero() {
		sr.CreatedAt = time.Now().UTC()
	}
	if sr.Status == "" {
		sr.Status = domain.SuspendedPending
	}

	s.suspendedByID[sr.ID] = sr
	created := sr
	return &created, nil
}

func (s *Store) UpdateSuspendedRevenue(_ context.Context, id string, status string, notes string, at time.Time) (*domain.SuspendedRevenue, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sr, exists := s.suspendedByID[id]
	if !exists {
		return nil, store.ErrNotFound
	}
	switch status {
	case domain.SuspendedExplained, domain.SuspendedApproved, domain.SuspendedRejected:
	default:
		return nil, store.ErrInvalidRequest
	}
	if sr.Status == domain.SuspendedApproved || sr.Status == domain.SuspendedRejected {
		return nil, store.ErrAlreadyDecided
	}

	sr.Status = status
	if notes != "" {
		sr.Notes = notes
	}
	if status == domain.SuspendedApproved || status == domain.SuspendedRejected {
		sr.ResolvedAt = &at
	}
	s.suspendedByID[id] = sr
	copySR := sr
	return &copySR, nil
}

func (s *Store) ListSuspendedRevenue(_ context.Context, departmentID string, status string, limit int) ([]domain.SuspendedRevenue, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.SuspendedRevenue, 0, 32)
	for _, sr := range s.suspendedByID {
		if departmentID != "" && sr.DepartmentID != departmentID {
			continue
		}
		if status != "" && sr.Status != status {
			continue
		}
		result = append(result, sr)
	}
	slices.SortFunc(result, func(a, b domain.SuspendedRevenue) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SumSuspendedRevenue(_ context.Context, departmentID string, from time.Time, to time.Time) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, sr := range s.suspendedByID {
		if sr.DepartmentID != departmentID {
			continue
		}
		if !inWindow(sr.CreatedAt, from, to) {
			continue
		}
		// Suspense stays on the books until the money is located, even when
		// the investigation is closed as rejected.
		total += sr.AmountCents
	}
	return total, nil
}

func (s *Store) CreateExpense(_ context.Context, exp domain.Expense) (*domain.Expense, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if exp.DepartmentID == "" || exp.AmountCents < 1 || exp.IncurredOn == "" {
		return nil, store.ErrInvalidRequest
	}
	if exp.ID == "" {
		exp.ID = xid.New("exp")
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}

	s.expensesByID[exp.ID] = exp
	created := exp
	return &created, nil
}

func (s *Store) ListExpenses(_ context.Context, departmentID string, from string, to string, limit int) ([]domain.Expense, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.Expense, 0, 32)
	for _, exp := range s.expensesByID {
		if departmentID != "" && exp.DepartmentID != departmentID {
			continue
		}
		if from != "" && exp.IncurredOn < from {
			continue
		}
		if to != "" && exp.IncurredOn > to {
			continue
		}
		result = append(result, exp)
	}
	slices.SortFunc(result, func(a, b domain.Expense) int {
		if a.IncurredOn == b.IncurredOn {
			return cmpString(b.ID, a.ID)
		}
		return cmpString(b.IncurredOn, a.IncurredOn)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) SumExpenses(_ context.Context, departmentID string, from string, to string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	total := int64(0)
	for _, exp := range s.expensesByID {
		if exp.DepartmentID != departmentID {
			continue
		}
		if from != "" && exp.IncurredOn < from {
			continue
		}
		if to != "" && exp.IncurredOn > to {
			continue
		}
		total += exp.AmountCents
	}
	return total, nil
}

func (s *Store) GetCustomerPreference(_ context.Context, customerID string) (*domain.CustomerPreference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	pref, exists := s.prefsByCustomer[customerID]
	if !exists {
		return nil, store.ErrNotFound
	}
	copyPref := clonePreference(pref)
	return &copyPref, nil
}

func (s *Store) UpsertCustomerPreference(_ context.Context, pref domain.CustomerPreference) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if pref.CustomerID == "" {
		return store.ErrInvalidRequest
	}
	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = time.Now().UTC()
	}
	s.prefsByCustomer[pref.CustomerID] = clonePreference(pref)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, departmentID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, 0, 64)
	for _, entry := range s.auditLogs {
		if departmentID != "" && entry.DepartmentID != departmentID {
			continue
		}
		if entry.CreatedAt.Before(from) || !entry.CreatedAt.Before(to) {
			continue
		}
		result = append(result, entry)
	}

	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return cmpString(b.ID, a.ID)
		}
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRequest
	}
	if _, exists := s.usersByUsername[username]; exists {
		return store.ErrConflict
	}
	user.Username = username
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return cmpString(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return store.ErrNotFound
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

func inWindow(t time.Time, from time.Time, to time.Time) bool {
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && !t.Before(to) {
		return false
	}
	return true
}

func cmpString(a string, b string) int {
	if a == b {
		return 0
	}
	if a < b {
		return -1
	}
	return 1
}

func cloneSale(src *domain.Sale) *domain.Sale {
	if src == nil {
		return nil
	}
	dup := *src
	items := make([]domain.SaleItem, len(src.Items))
	copy(items, src.Items)
	for i := range items {
		if len(items[i].BlendComponents) > 0 {
			comps := make([]domain.BlendComponent, len(items[i].BlendComponents))
			copy(comps, items[i].BlendComponents)
			items[i].BlendComponents = comps
		}
	}
	dup.Items = items
	if src.VoidedAt != nil {
		at := *src.VoidedAt
		dup.VoidedAt = &at
	}
	return &dup
}

func clonePreference(src domain.CustomerPreference) domain.CustomerPreference {
	dup := src
	names := make([]string, len(src.ScentNames))
	copy(names, src.ScentNames)
	dup.ScentNames = names
	sizes := make([]float64, len(src.BottleSizes))
	copy(sizes, src.BottleSizes)
	dup.BottleSizes = sizes
	return dup
}
