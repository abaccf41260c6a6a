package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"dukapos/backend/internal/cache"
	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/notify"
	"dukapos/backend/internal/recommendation"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

type Service struct {
	repo              store.Repository
	reports           cache.ReportCache
	notifier          notify.Notifier
	suggester         *recommendation.Engine
	defaultDepartment string
	reportTTL         time.Duration
}

func New(repo store.Repository, reports cache.ReportCache, notifier notify.Notifier, defaultDepartment string, reportTTL time.Duration) *Service {
	if defaultDepartment == "" {
		defaultDepartment = "main-shop"
	}
	if reports == nil {
		reports = cache.NoopReportCache{}
	}
	if notifier == nil {
		notifier = notify.Noop{}
	}
	if reportTTL < time.Second {
		reportTTL = 5 * time.Minute
	}

	return &Service{
		repo:              repo,
		reports:           reports,
		notifier:          notifier,
		suggester:         recommendation.NewEngine(),
		defaultDepartment: defaultDepartment,
		reportTTL:         reportTTL,
	}
}

func (s *Service) ListProducts(ctx context.Context, departmentID string) ([]domain.Product, error) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}
	return s.repo.ListProducts(ctx, departmentID)
}

func (s *Service) GetProduct(ctx context.Context, id string) (domain.Product, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}
	product, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}
	return *product, nil
}

func (s *Service) CreateProduct(ctx context.Context, req domain.ProductCreateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Category = strings.TrimSpace(req.Category)
	req.DepartmentID = strings.TrimSpace(req.DepartmentID)

	if req.Name == "" || req.Category == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}
	if req.TrackingType != domain.TrackQuantity && req.TrackingType != domain.TrackML {
		return domain.Product{}, store.ErrInvalidRequest
	}
	if req.RetailPriceCents < 1 || req.WholesalePriceCents < 0 || req.CostPriceCents < 0 {
		return domain.Product{}, store.ErrInvalidRequest
	}

	switch req.TrackingType {
	case domain.TrackQuantity:
		if req.InitialStock < 0 || req.QuantityPerUnit < 0 || req.InitialStockML != 0 {
			return domain.Product{}, store.ErrInvalidRequest
		}
		// Discrete products always belong to a department.
		if req.DepartmentID == "" {
			req.DepartmentID = s.defaultDepartment
		}
	case domain.TrackML:
		// Scents may be global (empty department) shared capital.
		if req.InitialStockML < 0 || req.InitialStock != 0 {
			return domain.Product{}, store.ErrInvalidRequest
		}
	}

	product := domain.Product{
		ID:                  xid.New("prod"),
		DepartmentID:        req.DepartmentID,
		Name:                req.Name,
		Category:            req.Category,
		TrackingType:        req.TrackingType,
		Stock:               req.InitialStock,
		QuantityPerUnit:     req.QuantityPerUnit,
		StockML:             req.InitialStockML,
		RetailPriceCents:    req.RetailPriceCents,
		WholesalePriceCents: req.WholesalePriceCents,
		CostPriceCents:      req.CostPriceCents,
		Active:              true,
		CreatedAt:           time.Now().UTC(),
	}

	created, err := s.repo.CreateProduct(ctx, product)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, created.DepartmentID, "product_create", "product", created.ID, fmt.Sprintf("name=%s,tracking=%s,retail=%d", created.Name, created.TrackingType, created.RetailPriceCents))
	return *created, nil
}

func (s *Service) UpdateProduct(ctx context.Context, id string, req domain.ProductUpdateRequest) (domain.Product, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Product{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Product{}, store.ErrInvalidRequest
	}

	existing, err := s.repo.GetProductByID(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	updated := *existing
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.Name = name
	}
	if req.Category != nil {
		category := strings.TrimSpace(*req.Category)
		if category == "" {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.Category = category
	}
	if req.RetailPriceCents != nil {
		if *req.RetailPriceCents < 1 {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.RetailPriceCents = *req.RetailPriceCents
	}
	if req.WholesalePriceCents != nil {
		if *req.WholesalePriceCents < 0 {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.WholesalePriceCents = *req.WholesalePriceCents
	}
	if req.CostPriceCents != nil {
		if *req.CostPriceCents < 0 {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.CostPriceCents = *req.CostPriceCents
	}
	if req.QuantityPerUnit != nil {
		if *req.QuantityPerUnit < 0 || updated.TrackingType != domain.TrackQuantity {
			return domain.Product{}, store.ErrInvalidRequest
		}
		updated.QuantityPerUnit = *req.QuantityPerUnit
	}
	if req.Active != nil {
		updated.Active = *req.Active
	}

	saved, err := s.repo.UpdateProduct(ctx, updated)
	if err != nil {
		return domain.Product{}, err
	}

	s.logAudit(ctx, saved.DepartmentID, "product_update", "product", saved.ID, fmt.Sprintf("active=%t,retail=%d,wholesale=%d", saved.Active, saved.RetailPriceCents, saved.WholesalePriceCents))
	return *saved, nil
}

// AdjustStock applies a manual correction to a product's on-hand level,
// for restocks and shrinkage writeoffs. Positive amounts add stock,
// negative amounts remove it through the same guarded path sales use.
func (s *Service) AdjustStock(ctx context.Context, productID string, req domain.StockAdjustRequest) (domain.StockLevel, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.StockLevel{}, fmt.Errorf("admin role required")
	}

	productID = strings.TrimSpace(productID)
	if productID == "" {
		return domain.StockLevel{}, store.ErrInvalidRequest
	}
	if req.Count != 0 && req.Milliliters != 0 {
		return domain.StockLevel{}, store.ErrInvalidRequest
	}

	var qty domain.StockQuantity
	var increase bool
	switch {
	case req.Count > 0:
		qty, increase = domain.CountQuantity(req.Count), true
	case req.Count < 0:
		qty, increase = domain.CountQuantity(-req.Count), false
	case req.Milliliters > 0:
		qty, increase = domain.VolumeQuantity(req.Milliliters), true
	case req.Milliliters < 0:
		qty, increase = domain.VolumeQuantity(-req.Milliliters), false
	default:
		return domain.StockLevel{}, store.ErrInvalidRequest
	}

	var level domain.StockLevel
	var err error
	if increase {
		level, err = s.repo.IncrementStock(ctx, productID, qty)
	} else {
		level, err = s.repo.DecrementStock(ctx, productID, qty)
	}
	if err != nil {
		return domain.StockLevel{}, err
	}

	s.logAudit(ctx, s.defaultDepartment, "stock_adjust", "product", productID, fmt.Sprintf("count=%d,ml=%.2f,reason=%s", req.Count, req.Milliliters, strings.TrimSpace(req.Reason)))
	return level, nil
}

func (s *Service) ListServices(ctx context.Context, departmentID string) ([]domain.ShopService, error) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}
	return s.repo.ListServices(ctx, departmentID)
}

func (s *Service) CreateService(ctx context.Context, req domain.ServiceCreateRequest) (domain.ShopService, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.ShopService{}, fmt.Errorf("admin role required")
	}

	req.Name = strings.TrimSpace(req.Name)
	if req.DepartmentID == "" {
		req.DepartmentID = s.defaultDepartment
	}
	if req.Name == "" || req.PriceCents < 1 || req.MaterialCostCents < 0 {
		return domain.ShopService{}, store.ErrInvalidRequest
	}

	svc := domain.ShopService{
		ID:                xid.New("svc"),
		DepartmentID:      req.DepartmentID,
		Name:              req.Name,
		PriceCents:        req.PriceCents,
		MaterialCostCents: req.MaterialCostCents,
		Active:            true,
		CreatedAt:         time.Now().UTC(),
	}

	saved, err := s.repo.CreateService(ctx, svc)
	if err != nil {
		return domain.ShopService{}, err
	}

	s.logAudit(ctx, saved.DepartmentID, "service_create", "service", saved.ID, fmt.Sprintf("name=%s,price=%d", saved.Name, saved.PriceCents))
	return *saved, nil
}

func (s *Service) CreateExpense(ctx context.Context, req domain.ExpenseCreateRequest) (domain.Expense, error) {
	req.Category = strings.TrimSpace(req.Category)
	req.Description = strings.TrimSpace(req.Description)
	if req.DepartmentID == "" {
		req.DepartmentID = s.defaultDepartment
	}
	if req.Category == "" || req.AmountCents < 1 {
		return domain.Expense{}, store.ErrInvalidRequest
	}

	incurredOn := strings.TrimSpace(req.IncurredOn)
	if incurredOn == "" {
		incurredOn = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", incurredOn); err != nil {
		return domain.Expense{}, store.ErrInvalidRequest
	}

	exp := domain.Expense{
		ID:           xid.New("exp"),
		DepartmentID: req.DepartmentID,
		Category:     req.Category,
		Description:  req.Description,
		AmountCents:  req.AmountCents,
		IncurredOn:   incurredOn,
		CreatedAt:    time.Now().UTC(),
	}

	saved, err := s.repo.CreateExpense(ctx, exp)
	if err != nil {
		return domain.Expense{}, err
	}

	s.invalidateReports(ctx, saved.DepartmentID)
	s.logAudit(ctx, saved.DepartmentID, "expense_create", "expense", saved.ID, fmt.Sprintf("category=%s,amount=%d,on=%s", saved.Category, saved.AmountCents, saved.IncurredOn))
	return *saved, nil
}

func (s *Service) ListExpenses(ctx context.Context, departmentID string, from string, to string, limit int) ([]domain.Expense, error) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}
	if limit < 1 {
		limit = 100
	}
	if from != "" {
		if _, err := time.Parse("2006-01-02", from); err != nil {
			return nil, store.ErrInvalidRequest
		}
	}
	if to != "" {
		if _, err := time.Parse("2006-01-02", to); err != nil {
			return nil, store.ErrInvalidRequest
		}
	}
	return s.repo.ListExpenses(ctx, departmentID, from, to, limit)
}

func (s *Service) GetCustomerPreference(ctx context.Context, customerID string) (domain.CustomerPreference, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return domain.CustomerPreference{}, store.ErrInvalidRequest
	}
	pref, err := s.repo.GetCustomerPreference(ctx, customerID)
	if err != nil {
		return domain.CustomerPreference{}, err
	}
	return *pref, nil
}

// SuggestScents ranks in-stock scents for a custom blend. Customers without
// saved preferences still get suggestions driven by stock and margin.
func (s *Service) SuggestScents(ctx context.Context, customerID string, departmentID string, limit int) ([]domain.ScentSuggestion, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, store.ErrInvalidRequest
	}
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}

	var pref domain.CustomerPreference
	if saved, err := s.repo.GetCustomerPreference(ctx, customerID); err == nil {
		pref = *saved
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	catalog, err := s.repo.ListProducts(ctx, departmentID)
	if err != nil {
		return nil, err
	}

	return s.suggester.SuggestScents(pref, catalog, limit), nil
}

func (s *Service) ListAuditLogs(ctx context.Context, departmentID string, date string, limit int) ([]domain.AuditLog, error) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}
	if limit < 1 {
		limit = 100
	}

	var from time.Time
	if strings.TrimSpace(date) == "" {
		from = time.Now().UTC().Add(-24 * time.Hour)
	} else {
		parsed, err := time.Parse("2006-01-02", date)
		if err != nil {
			return nil, store.ErrInvalidRequest
		}
		from = parsed.UTC()
	}
	to := from.Add(24 * time.Hour)

	return s.repo.ListAuditLogs(ctx, departmentID, from, to, limit)
}

func (s *Service) logAudit(ctx context.Context, departmentID string, action string, entityType string, entityID string, detail string) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}

	actor, ok := ActorFromContext(ctx)
	if !ok {
		actor = domain.Actor{Username: "system", Role: "system"}
	}

	if err := s.repo.CreateAuditLog(ctx, domain.AuditLog{
		ID:            xid.New("audit"),
		DepartmentID:  departmentID,
		ActorUsername: actor.Username,
		ActorRole:     actor.Role,
		Action:        action,
		EntityType:    entityType,
		EntityID:      entityID,
		Detail:        detail,
		CreatedAt:     time.Now().UTC(),
	}); err != nil {
		log.Printf("[audit] WARN: failed to write audit log action=%s entity=%s/%s: %v", action, entityType, entityID, err)
	}
}

// invalidateReports drops cached revenue reports for a department after a
// write that changes any figure feeding them. Cache failures are logged
// and ignored: a stale report expires with its TTL.
func (s *Service) invalidateReports(ctx context.Context, departmentID string) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}
	if err := s.reports.Invalidate(ctx, reportKeyPrefix(departmentID)); err != nil {
		log.Printf("[service] WARN: failed to invalidate report cache department=%s: %v", departmentID, err)
	}
}

func reportKeyPrefix(departmentID string) string {
	return "report:" + departmentID + ":"
}

func isSupportedPaymentMethod(method string) bool {
	switch method {
	case domain.PaymentCash, domain.PaymentMobileMoney, domain.PaymentCard, domain.PaymentBank:
		return true
	default:
		return false
	}
}
