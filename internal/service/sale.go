package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"sort"
	"strings"
	"time"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

// stockTake records one successful decrement so a failed sale can hand
// the stock back in reverse order.
type stockTake struct {
	productID string
	qty       domain.StockQuantity
}

// CompleteSale prices the cart, takes stock line by line, then persists
// the sale. Stock decrements happen before the insert; if any later step
// fails, every decrement already applied is compensated with a matching
// increment, so a failed sale never leaves stock missing.
func (s *Service) CompleteSale(ctx context.Context, req domain.SaleRequest) (domain.SaleReceipt, error) {
	actor, _ := ActorFromContext(ctx)
	cashier := actor.Username
	if cashier == "" {
		cashier = "system"
	}

	// A cashier rings up their own department unless the request says
	// otherwise; everyone else falls back to the configured default.
	if req.DepartmentID == "" {
		req.DepartmentID = actor.DepartmentID
	}
	if req.DepartmentID == "" {
		req.DepartmentID = s.defaultDepartment
	}
	if req.PaymentMethod == "" {
		req.PaymentMethod = domain.PaymentCash
	}
	if !isSupportedPaymentMethod(req.PaymentMethod) {
		return domain.SaleReceipt{}, store.ErrInvalidRequest
	}
	if len(req.Lines) == 0 {
		return domain.SaleReceipt{}, store.ErrEmptyCart
	}
	if req.AmountPaidCents < 0 {
		return domain.SaleReceipt{}, store.ErrInvalidRequest
	}

	items := make([]domain.SaleItem, 0, len(req.Lines))
	wholesale := false
	for _, line := range req.Lines {
		item, err := s.priceLine(ctx, req.DepartmentID, line)
		if err != nil {
			return domain.SaleReceipt{}, err
		}
		if item.Wholesale {
			wholesale = true
		}
		items = append(items, item)
	}

	subtotal := int64(0)
	for _, item := range items {
		subtotal += item.SubtotalCents
	}
	total := subtotal

	amountPaid := req.AmountPaidCents
	change := int64(0)
	if req.PaymentMethod == domain.PaymentCash {
		if amountPaid < total {
			return domain.SaleReceipt{}, store.ErrInvalidRequest
		}
		change = amountPaid - total
	} else if amountPaid == 0 {
		amountPaid = total
	}

	taken := make([]stockTake, 0, len(items))
	for i := range items {
		takes, err := s.takeLineStock(ctx, items[i])
		if err != nil {
			s.releaseStock(ctx, taken)
			return domain.SaleReceipt{}, err
		}
		taken = append(taken, takes...)
	}

	receiptNo, err := s.repo.AllocateReceiptNumber(ctx)
	if err != nil {
		s.releaseStock(ctx, taken)
		return domain.SaleReceipt{}, fmt.Errorf("%w: allocate receipt number: %v", store.ErrPersistence, err)
	}

	saleID := xid.New("sale")
	sale := domain.Sale{
		ID:              saleID,
		DepartmentID:    req.DepartmentID,
		Cashier:         cashier,
		CustomerID:      strings.TrimSpace(req.CustomerID),
		PaymentMethod:   req.PaymentMethod,
		SubtotalCents:   subtotal,
		TotalCents:      total,
		AmountPaidCents: amountPaid,
		ChangeCents:     change,
		ReceiptNumber:   fmt.Sprintf("RCP-%06d", receiptNo),
		Status:          domain.SaleStatusCompleted,
		CreatedAt:       time.Now().UTC(),
		Items:           items,
	}
	if wholesale {
		sale.InvoiceNumber = fmt.Sprintf("INV-%06d", receiptNo)
	}
	for i := range sale.Items {
		sale.Items[i].ID = xid.New("line")
		sale.Items[i].SaleID = saleID
	}

	created, err := s.repo.InsertSale(ctx, sale)
	if err != nil {
		s.releaseStock(ctx, taken)
		if errors.Is(err, store.ErrEmptyCart) || errors.Is(err, store.ErrConflict) {
			return domain.SaleReceipt{}, err
		}
		return domain.SaleReceipt{}, fmt.Errorf("%w: insert sale: %v", store.ErrPersistence, err)
	}

	if created.CustomerID != "" {
		s.mergeCustomerPreference(ctx, created.CustomerID, created.Items)
	}

	receipt := buildReceipt(*created)
	if err := s.notifier.SendReceipt(ctx, receipt); err != nil {
		log.Printf("[service] WARN: failed to send receipt sale=%s: %v", created.ID, err)
	}

	s.invalidateReports(ctx, created.DepartmentID)
	s.logAudit(ctx, created.DepartmentID, "sale_complete", "sale", created.ID, fmt.Sprintf("total=%d,payment=%s,lines=%d,wholesale=%t", created.TotalCents, created.PaymentMethod, len(created.Items), wholesale))

	return receipt, nil
}

// priceLine resolves a cart line against the catalog and prices it on the
// server. Clients never send prices; the tier (retail or wholesale) comes
// from the line flag. For ml-tracked products the configured prices are
// per milliliter.
func (s *Service) priceLine(ctx context.Context, departmentID string, line domain.SaleLineRequest) (domain.SaleItem, error) {
	switch {
	case line.ServiceID != "":
		return s.priceServiceLine(ctx, line)
	case len(line.BlendComponents) > 0:
		return s.priceBlendLine(ctx, departmentID, line)
	case line.ProductID != "":
		return s.priceProductLine(ctx, line)
	default:
		return domain.SaleItem{}, store.ErrInvalidRequest
	}
}

func (s *Service) priceServiceLine(ctx context.Context, line domain.SaleLineRequest) (domain.SaleItem, error) {
	qty, ok := wholeQuantity(line.Quantity)
	if !ok {
		return domain.SaleItem{}, store.ErrInvalidRequest
	}

	svc, err := s.repo.GetServiceByID(ctx, line.ServiceID)
	if err != nil {
		return domain.SaleItem{}, err
	}
	if !svc.Active {
		return domain.SaleItem{}, store.ErrInvalidRequest
	}

	return domain.SaleItem{
		ServiceID:      svc.ID,
		Description:    svc.Name,
		Quantity:       float64(qty),
		UnitPriceCents: svc.PriceCents,
		SubtotalCents:  svc.PriceCents * int64(qty),
		CostCents:      svc.MaterialCostCents * int64(qty),
	}, nil
}

func (s *Service) priceProductLine(ctx context.Context, line domain.SaleLineRequest) (domain.SaleItem, error) {
	product, err := s.repo.GetProductByID(ctx, line.ProductID)
	if err != nil {
		return domain.SaleItem{}, err
	}
	if !product.Active {
		return domain.SaleItem{}, store.ErrProductNotFound
	}

	unitPrice := product.RetailPriceCents
	if line.Wholesale {
		if product.WholesalePriceCents < 1 {
			return domain.SaleItem{}, store.ErrInvalidRequest
		}
		unitPrice = product.WholesalePriceCents
	}

	switch product.TrackingType {
	case domain.TrackQuantity:
		qty, ok := wholeQuantity(line.Quantity)
		if !ok {
			return domain.SaleItem{}, store.ErrInvalidRequest
		}
		return domain.SaleItem{
			ProductID:      product.ID,
			Description:    product.Name,
			Quantity:       float64(qty),
			UnitPriceCents: unitPrice,
			SubtotalCents:  unitPrice * int64(qty),
			Wholesale:      line.Wholesale,
			CostCents:      product.CostPriceCents * int64(qty),
		}, nil
	case domain.TrackML:
		if line.Quantity <= 0 {
			return domain.SaleItem{}, store.ErrInvalidRequest
		}
		return domain.SaleItem{
			ProductID:      product.ID,
			Description:    product.Name,
			Quantity:       line.Quantity,
			UnitPriceCents: unitPrice,
			SubtotalCents:  roundCents(float64(unitPrice) * line.Quantity),
			Wholesale:      line.Wholesale,
			CostCents:      roundCents(float64(product.CostPriceCents) * line.Quantity),
		}, nil
	default:
		return domain.SaleItem{}, store.ErrInvalidRequest
	}
}

// priceBlendLine handles a custom scent blend: named components resolved
// against department-visible scent stock, poured into a bottle of the
// requested size. Component volumes must fill the bottle exactly.
func (s *Service) priceBlendLine(ctx context.Context, departmentID string, line domain.SaleLineRequest) (domain.SaleItem, error) {
	bottles, ok := wholeQuantity(line.Quantity)
	if !ok && line.Quantity != 0 {
		return domain.SaleItem{}, store.ErrInvalidRequest
	}
	if bottles < 1 {
		bottles = 1
	}
	if line.BottleSizeML <= 0 {
		return domain.SaleItem{}, store.ErrInvalidRequest
	}

	// Blend lines all hang off the shared master product so scent sales
	// can be queried under one product id. Stock moves on the components,
	// never on the master row.
	master, err := s.repo.EnsureBlendMasterProduct(ctx)
	if err != nil {
		return domain.SaleItem{}, err
	}

	components := make([]domain.BlendComponent, 0, len(line.BlendComponents))
	names := make([]string, 0, len(line.BlendComponents))
	totalML := 0.0
	var subtotal, cost int64

	for _, comp := range line.BlendComponents {
		name := strings.TrimSpace(comp.ScentName)
		if name == "" || comp.Milliliters <= 0 {
			return domain.SaleItem{}, store.ErrInvalidRequest
		}

		scent, err := s.repo.ResolveScentByName(ctx, departmentID, name)
		if err != nil {
			return domain.SaleItem{}, err
		}

		unitPrice := scent.RetailPriceCents
		if line.Wholesale {
			if scent.WholesalePriceCents < 1 {
				return domain.SaleItem{}, store.ErrInvalidRequest
			}
			unitPrice = scent.WholesalePriceCents
		}

		ml := comp.Milliliters * float64(bottles)
		subtotal += roundCents(float64(unitPrice) * ml)
		cost += roundCents(float64(scent.CostPriceCents) * ml)
		totalML += comp.Milliliters

		components = append(components, domain.BlendComponent{
			ScentName:   scent.Name,
			ProductID:   scent.ID,
			Milliliters: comp.Milliliters,
		})
		names = append(names, scent.Name)
	}

	if math.Abs(totalML-line.BottleSizeML) > 0.001 {
		return domain.SaleItem{}, store.ErrInvalidRequest
	}

	return domain.SaleItem{
		ProductID:       master.ID,
		Description:     fmt.Sprintf("Blend %.0fml (%s)", line.BottleSizeML, strings.Join(names, ", ")),
		Quantity:        float64(bottles),
		UnitPriceCents:  subtotal / int64(bottles),
		SubtotalCents:   subtotal,
		Wholesale:       line.Wholesale,
		CostCents:       cost,
		BottleSizeML:    line.BottleSizeML,
		BlendComponents: components,
	}, nil
}

// takeLineStock decrements the stock a priced line consumes and returns
// the takes for compensation. Service lines take nothing.
func (s *Service) takeLineStock(ctx context.Context, item domain.SaleItem) ([]stockTake, error) {
	if item.ServiceID != "" {
		return nil, nil
	}

	if len(item.BlendComponents) > 0 {
		taken := make([]stockTake, 0, len(item.BlendComponents))
		for _, comp := range item.BlendComponents {
			qty := domain.VolumeQuantity(comp.Milliliters * item.Quantity)
			if _, err := s.repo.DecrementStock(ctx, comp.ProductID, qty); err != nil {
				s.releaseStock(ctx, taken)
				return nil, err
			}
			taken = append(taken, stockTake{productID: comp.ProductID, qty: qty})
		}
		return taken, nil
	}

	product, err := s.repo.GetProductByID(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}

	var qty domain.StockQuantity
	if product.TrackingType == domain.TrackML {
		qty = domain.VolumeQuantity(item.Quantity)
	} else {
		qty = domain.CountQuantity(int(item.Quantity))
	}

	if _, err := s.repo.DecrementStock(ctx, item.ProductID, qty); err != nil {
		return nil, err
	}
	return []stockTake{{productID: item.ProductID, qty: qty}}, nil
}

// releaseStock compensates decrements already applied by a sale that
// cannot finish. Failures here are logged, not returned: the sale error
// that triggered compensation is the one the caller sees.
func (s *Service) releaseStock(ctx context.Context, taken []stockTake) {
	for i := len(taken) - 1; i >= 0; i-- {
		take := taken[i]
		if _, err := s.repo.IncrementStock(ctx, take.productID, take.qty); err != nil {
			log.Printf("[service] WARN: failed to compensate stock product=%s: %v", take.productID, err)
		}
	}
}

func (s *Service) VoidSale(ctx context.Context, req domain.VoidSaleRequest) (domain.VoidSaleResponse, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.VoidSaleResponse{}, fmt.Errorf("admin role required")
	}

	req.SaleID = strings.TrimSpace(req.SaleID)
	if req.SaleID == "" {
		return domain.VoidSaleResponse{}, store.ErrInvalidRequest
	}
	if strings.TrimSpace(req.Reason) == "" {
		req.Reason = "unspecified"
	}

	voidedAt := time.Now().UTC()
	sale, err := s.repo.MarkSaleVoided(ctx, req.SaleID, req.Reason, actor.Username, voidedAt)
	if err != nil {
		return domain.VoidSaleResponse{}, err
	}

	s.invalidateReports(ctx, sale.DepartmentID)
	s.logAudit(ctx, sale.DepartmentID, "sale_void", "sale", sale.ID, req.Reason)

	return domain.VoidSaleResponse{
		SaleID:   sale.ID,
		Status:   sale.Status,
		VoidedAt: voidedAt.Format(time.RFC3339),
	}, nil
}

func (s *Service) GetSale(ctx context.Context, id string) (domain.Sale, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return domain.Sale{}, store.ErrInvalidRequest
	}
	sale, err := s.repo.GetSaleByID(ctx, id)
	if err != nil {
		return domain.Sale{}, err
	}
	return *sale, nil
}

func (s *Service) GetReceipt(ctx context.Context, saleID string) (domain.SaleReceipt, error) {
	sale, err := s.GetSale(ctx, saleID)
	if err != nil {
		return domain.SaleReceipt{}, err
	}
	return buildReceipt(sale), nil
}

func (s *Service) ListSales(ctx context.Context, departmentID string, from string, to string, limit int) ([]domain.Sale, error) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}
	if limit < 1 {
		limit = 100
	}

	fromT, toT, err := parseDateWindow(from, to)
	if err != nil {
		return nil, err
	}
	return s.repo.ListSales(ctx, departmentID, fromT, toT, limit)
}

func buildReceipt(sale domain.Sale) domain.SaleReceipt {
	lines := make([]domain.ReceiptLine, 0, len(sale.Items))
	for _, item := range sale.Items {
		lines = append(lines, domain.ReceiptLine{
			Description:    item.Description,
			Quantity:       item.Quantity,
			UnitPriceCents: item.UnitPriceCents,
			SubtotalCents:  item.SubtotalCents,
		})
	}

	return domain.SaleReceipt{
		SaleID:          sale.ID,
		ReceiptNumber:   sale.ReceiptNumber,
		InvoiceNumber:   sale.InvoiceNumber,
		DepartmentID:    sale.DepartmentID,
		Cashier:         sale.Cashier,
		PaymentMethod:   sale.PaymentMethod,
		SubtotalCents:   sale.SubtotalCents,
		TotalCents:      sale.TotalCents,
		AmountPaidCents: sale.AmountPaidCents,
		ChangeCents:     sale.ChangeCents,
		Lines:           lines,
		CreatedAt:       sale.CreatedAt.Format(time.RFC3339),
	}
}

// mergeCustomerPreference folds the scents and bottle sizes from a sale's
// blend lines into the customer's profile. The write is best effort.
func (s *Service) mergeCustomerPreference(ctx context.Context, customerID string, items []domain.SaleItem) {
	scents := make(map[string]struct{})
	sizes := make(map[float64]struct{})
	for _, item := range items {
		if len(item.BlendComponents) == 0 {
			continue
		}
		for _, comp := range item.BlendComponents {
			scents[comp.ScentName] = struct{}{}
		}
		if item.BottleSizeML > 0 {
			sizes[item.BottleSizeML] = struct{}{}
		}
	}
	if len(scents) == 0 && len(sizes) == 0 {
		return
	}

	pref := domain.CustomerPreference{CustomerID: customerID}
	if existing, err := s.repo.GetCustomerPreference(ctx, customerID); err == nil {
		pref = *existing
	}

	for _, name := range pref.ScentNames {
		scents[name] = struct{}{}
	}
	for _, size := range pref.BottleSizes {
		sizes[size] = struct{}{}
	}

	pref.ScentNames = pref.ScentNames[:0]
	for name := range scents {
		pref.ScentNames = append(pref.ScentNames, name)
	}
	sort.Strings(pref.ScentNames)

	pref.BottleSizes = pref.BottleSizes[:0]
	for size := range sizes {
		pref.BottleSizes = append(pref.BottleSizes, size)
	}
	sort.Float64s(pref.BottleSizes)

	pref.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpsertCustomerPreference(ctx, pref); err != nil {
		log.Printf("[service] WARN: failed to merge customer preference customer=%s: %v", customerID, err)
	}
}

// wholeQuantity validates that a line quantity is a positive whole count.
func wholeQuantity(q float64) (int, bool) {
	if q < 1 || q != math.Trunc(q) || q > math.MaxInt32 {
		return 0, false
	}
	return int(q), true
}

func roundCents(v float64) int64 {
	return int64(math.Round(v))
}

// parseDateWindow turns optional YYYY-MM-DD bounds into a half-open UTC
// window; the end date is inclusive so "to" covers that whole day.
func parseDateWindow(from string, to string) (time.Time, time.Time, error) {
	var fromT, toT time.Time
	if strings.TrimSpace(from) != "" {
		parsed, err := time.Parse("2006-01-02", from)
		if err != nil {
			return time.Time{}, time.Time{}, store.ErrInvalidRequest
		}
		fromT = parsed.UTC()
	}
	if strings.TrimSpace(to) != "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return time.Time{}, time.Time{}, store.ErrInvalidRequest
		}
		toT = parsed.UTC().Add(24 * time.Hour)
	}
	return fromT, toT, nil
}
