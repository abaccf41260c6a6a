package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

const productColumns = `id, COALESCE(department_id,''), name, category, tracking_type,
		stock, quantity_per_unit, stock_ml, retail_price_cents, wholesale_price_cents,
		cost_price_cents, active, created_at`

func scanProduct(row interface{ Scan(...any) error }) (domain.Product, error) {
	var p domain.Product
	err := row.Scan(&p.ID, &p.DepartmentID, &p.Name, &p.Category, &p.TrackingType,
		&p.Stock, &p.QuantityPerUnit, &p.StockML, &p.RetailPriceCents, &p.WholesalePriceCents,
		&p.CostPriceCents, &p.Active, &p.CreatedAt)
	if err != nil {
		return p, err
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context, departmentID string) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true
			AND ($1 = '' OR department_id IS NULL OR department_id = $1)
		ORDER BY category, name
	`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 128)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.RetailPriceCents < 1 {
		return nil, store.ErrInvalidRequest
	}
	if product.TrackingType != domain.TrackQuantity && product.TrackingType != domain.TrackML {
		return nil, store.ErrInvalidRequest
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.QuantityPerUnit < 1 {
		product.QuantityPerUnit = 1
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	product.Active = true

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, department_id, name, category, tracking_type, stock, quantity_per_unit,
			stock_ml, retail_price_cents, wholesale_price_cents, cost_price_cents,
			active, created_at, updated_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,now())
	`, product.ID, nullIfEmpty(product.DepartmentID), product.Name, product.Category,
		product.TrackingType, product.Stock, product.QuantityPerUnit, product.StockML,
		product.RetailPriceCents, product.WholesalePriceCents, product.CostPriceCents,
		product.Active, product.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	created := product
	return &created, nil
}

func (s *Store) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE id = $1
	`, id)
	p, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	return &p, nil
}

func (s *Store) UpdateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.Name == "" || product.Category == "" || product.RetailPriceCents < 1 {
		return nil, store.ErrInvalidRequest
	}

	// Tracking type and stock levels are never rewritten here; the stock
	// ledger owns them.
	row := s.db.QueryRowContext(ctx, `
		UPDATE products
		SET name = $2, category = $3, retail_price_cents = $4, wholesale_price_cents = $5,
			cost_price_cents = $6, quantity_per_unit = $7, active = $8, updated_at = now()
		WHERE id = $1
		RETURNING `+productColumns+`
	`, product.ID, product.Name, product.Category, product.RetailPriceCents,
		product.WholesalePriceCents, product.CostPriceCents, product.QuantityPerUnit, product.Active)
	updated, err := scanProduct(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrProductNotFound
		}
		return nil, err
	}
	return &updated, nil
}

func (s *Store) ResolveScentByName(ctx context.Context, departmentID string, name string) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, store.ErrInvalidRequest
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+productColumns+`
		FROM products
		WHERE active = true
			AND tracking_type = 'ml'
			AND lower(name) = lower($2)
			AND (department_id IS NULL OR department_id = $1)
		LIMIT 2
	`, departmentID, name)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	matches := make([]domain.Product, 0, 2)
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		matches = append(matches, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	switch len(matches) {
	case 0:
		return nil, store.ErrProductNotFound
	case 1:
		return &matches[0], nil
	default:
		return nil, store.ErrAmbiguousScent
	}
}

func (s *Store) EnsureBlendMasterProduct(ctx context.Context) (*domain.Product, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (
			id, department_id, name, category, tracking_type, stock, quantity_per_unit,
			stock_ml, retail_price_cents, wholesale_price_cents, cost_price_cents,
			active, created_at, updated_at
		)
		VALUES ($1, NULL, 'Custom Scent Blend', 'scent-blend', $2, 0, 1, 0, 0, 0, 0, true, now(), now())
		ON CONFLICT (id) DO NOTHING
	`, domain.BlendMasterProductID, domain.TrackML)
	if err != nil {
		return nil, err
	}
	return s.GetProductByID(ctx, domain.BlendMasterProductID)
}

// DecrementStock is a single conditional UPDATE so two concurrent sales can
// never both succeed past the last unit: the stock >= qty guard makes the
// row either move or stay, and zero rows affected is disambiguated after.
func (s *Store) DecrementStock(ctx context.Context, productID string, qty domain.StockQuantity) (domain.StockLevel, error) {
	switch qty.Unit {
	case domain.UnitCount:
		if qty.Count < 1 {
			return domain.StockLevel{}, store.ErrInvalidRequest
		}
		var remaining int
		// Count quantities are packs; the stock column holds physical units.
		err := s.db.QueryRowContext(ctx, `
			UPDATE products
			SET stock = stock - $2 * GREATEST(quantity_per_unit, 1), updated_at = now()
			WHERE id = $1 AND active = true AND tracking_type = 'quantity'
			  AND stock >= $2 * GREATEST(quantity_per_unit, 1)
			RETURNING stock
		`, productID, qty.Count).Scan(&remaining)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.StockLevel{}, s.classifyStockFailure(ctx, productID, domain.TrackQuantity)
			}
			return domain.StockLevel{}, err
		}
		return domain.StockLevel{Unit: domain.UnitCount, Count: remaining}, nil
	case domain.UnitMilliliter:
		if qty.Milliliters <= 0 {
			return domain.StockLevel{}, store.ErrInvalidRequest
		}
		var remaining float64
		err := s.db.QueryRowContext(ctx, `
			UPDATE products
			SET stock_ml = stock_ml - $2, updated_at = now()
			WHERE id = $1 AND active = true AND tracking_type = 'ml' AND stock_ml >= $2
			RETURNING stock_ml
		`, productID, qty.Milliliters).Scan(&remaining)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.StockLevel{}, s.classifyStockFailure(ctx, productID, domain.TrackML)
			}
			return domain.StockLevel{}, err
		}
		return domain.StockLevel{Unit: domain.UnitMilliliter, Milliliters: remaining}, nil
	default:
		return domain.StockLevel{}, store.ErrInvalidRequest
	}
}

// classifyStockFailure turns a no-op conditional update into the precise
// failure the caller needs to act on.
func (s *Store) classifyStockFailure(ctx context.Context, productID string, wanted domain.TrackingType) error {
	var tracking domain.TrackingType
	var active bool
	err := s.db.QueryRowContext(ctx, `
		SELECT tracking_type, active FROM products WHERE id = $1
	`, productID).Scan(&tracking, &active)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrProductNotFound
		}
		return err
	}
	if !active {
		return store.ErrProductNotFound
	}
	if tracking != wanted {
		return store.ErrUnitMismatch
	}
	return store.ErrInsufficientStock
}

func (s *Store) IncrementStock(ctx context.Context, productID string, qty domain.StockQuantity) (domain.StockLevel, error) {
	switch qty.Unit {
	case domain.UnitCount:
		if qty.Count < 1 {
			return domain.StockLevel{}, store.ErrInvalidRequest
		}
		var remaining int
		err := s.db.QueryRowContext(ctx, `
			UPDATE products
			SET stock = stock + $2 * GREATEST(quantity_per_unit, 1), updated_at = now()
			WHERE id = $1 AND tracking_type = 'quantity'
			RETURNING stock
		`, productID, qty.Count).Scan(&remaining)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.StockLevel{}, s.classifyStockFailure(ctx, productID, domain.TrackQuantity)
			}
			return domain.StockLevel{}, err
		}
		return domain.StockLevel{Unit: domain.UnitCount, Count: remaining}, nil
	case domain.UnitMilliliter:
		if qty.Milliliters <= 0 {
			return domain.StockLevel{}, store.ErrInvalidRequest
		}
		var remaining float64
		err := s.db.QueryRowContext(ctx, `
			UPDATE products
			SET stock_ml = stock_ml + $2, updated_at = now()
			WHERE id = $1 AND tracking_type = 'ml'
			RETURNING stock_ml
		`, productID, qty.Milliliters).Scan(&remaining)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.StockLevel{}, s.classifyStockFailure(ctx, productID, domain.TrackML)
			}
			return domain.StockLevel{}, err
		}
		return domain.StockLevel{Unit: domain.UnitMilliliter, Milliliters: remaining}, nil
	default:
		return domain.StockLevel{}, store.ErrInvalidRequest
	}
}

func (s *Store) ListServices(ctx context.Context, departmentID string) ([]domain.ShopService, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, department_id, name, price_cents, material_cost_cents, active, created_at
		FROM shop_services
		WHERE active = true AND ($1 = '' OR department_id = $1)
		ORDER BY name
	`, departmentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := make([]domain.ShopService, 0, 32)
	for rows.Next() {
		var svc domain.ShopService
		if err := rows.Scan(&svc.ID, &svc.DepartmentID, &svc.Name, &svc.PriceCents, &svc.MaterialCostCents, &svc.Active, &svc.CreatedAt); err != nil {
			return nil, err
		}
		svc.CreatedAt = svc.CreatedAt.UTC()
		services = append(services, svc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return services, nil
}

func (s *Store) CreateService(ctx context.Context, svc domain.ShopService) (*domain.ShopService, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO shop_services (id, department_id, name, price_cents, material_cost_cents, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, svc.ID, svc.DepartmentID, svc.Name, svc.PriceCents, svc.MaterialCostCents, svc.Active, svc.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := svc
	return &created, nil
}

func (s *Store) GetServiceByID(ctx context.Context, id string) (*domain.ShopService, error) {
	var svc domain.ShopService
	err := s.db.QueryRowContext(ctx, `
		SELECT id, department_id, name, price_cents, material_cost_cents, active, created_at
		FROM shop_services
		WHERE id = $1
	`, id).Scan(&svc.ID, &svc.DepartmentID, &svc.Name, &svc.PriceCents, &svc.MaterialCostCents, &svc.Active, &svc.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	svc.CreatedAt = svc.CreatedAt.UTC()
	return &svc, nil
}

func (s *Store) AllocateReceiptNumber(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT nextval('receipt_number_seq')`).Scan(&n)
	return n, err
}

func (s *Store) InsertSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, store.ErrEmptyCart
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}
	if sale.Status == "" {
		sale.Status = domain.SaleStatusCompleted
	}

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO sales (
			id, department_id, cashier, customer_id, payment_method, subtotal_cents,
			total_cents, amount_paid_cents, change_cents, receipt_number, invoice_number,
			status, void_reason, voided_by, voided_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, sale.ID, sale.DepartmentID, sale.Cashier, nullIfEmpty(sale.CustomerID), sale.PaymentMethod,
		sale.SubtotalCents, sale.TotalCents, sale.AmountPaidCents, sale.ChangeCents,
		sale.ReceiptNumber, nullIfEmpty(sale.InvoiceNumber), sale.Status,
		nullIfEmpty(sale.VoidReason), nullIfEmpty(sale.VoidedBy), nullTime(sale.VoidedAt), sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}

	for i := range sale.Items {
		item := &sale.Items[i]
		if item.ID == "" {
			item.ID = xid.New("line")
		}
		item.SaleID = sale.ID
		var blendJSON any
		if len(item.BlendComponents) > 0 {
			raw, err := json.Marshal(item.BlendComponents)
			if err != nil {
				return nil, err
			}
			blendJSON = raw
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO sale_items (
				id, sale_id, product_id, service_id, description, quantity,
				unit_price_cents, subtotal_cents, wholesale, cost_cents,
				bottle_size_ml, blend_components
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)
		`, item.ID, sale.ID, nullIfEmpty(item.ProductID), nullIfEmpty(item.ServiceID),
			item.Description, item.Quantity, item.UnitPriceCents, item.SubtotalCents,
			item.Wholesale, item.CostCents, item.BottleSizeML, blendJSON)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	saved := sale
	return &saved, nil
}

const saleColumns = `id, department_id, cashier, COALESCE(customer_id,''), payment_method,
		subtotal_cents, total_cents, amount_paid_cents, change_cents, receipt_number,
		COALESCE(invoice_number,''), status, COALESCE(void_reason,''), COALESCE(voided_by,''),
		voided_at, created_at`

func scanSale(row interface{ Scan(...any) error }) (domain.Sale, error) {
	var sale domain.Sale
	var voidedAt sql.NullTime
	err := row.Scan(&sale.ID, &sale.DepartmentID, &sale.Cashier, &sale.CustomerID, &sale.PaymentMethod,
		&sale.SubtotalCents, &sale.TotalCents, &sale.AmountPaidCents, &sale.ChangeCents, &sale.ReceiptNumber,
		&sale.InvoiceNumber, &sale.Status, &sale.VoidReason, &sale.VoidedBy, &voidedAt, &sale.CreatedAt)
	if err != nil {
		return sale, err
	}
	if voidedAt.Valid {
		at := voidedAt.Time.UTC()
		sale.VoidedAt = &at
	}
	sale.CreatedAt = sale.CreatedAt.UTC()
	return sale, nil
}

func (s *Store) loadSaleItems(ctx context.Context, q interface {
	QueryContext(context.Context, string, ...any) (*sql.Rows, error)
}, saleID string) ([]domain.SaleItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT id, sale_id, COALESCE(product_id,''), COALESCE(service_id,''), description,
			quantity, unit_price_cents, subtotal_cents, wholesale, cost_cents,
			bottle_size_ml, blend_components
		FROM sale_items
		WHERE sale_id = $1
		ORDER BY id ASC
	`, saleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		var blendRaw []byte
		if err := rows.Scan(&item.ID, &item.SaleID, &item.ProductID, &item.ServiceID, &item.Description,
			&item.Quantity, &item.UnitPriceCents, &item.SubtotalCents, &item.Wholesale, &item.CostCents,
			&item.BottleSizeML, &blendRaw); err != nil {
			return nil, err
		}
		if len(blendRaw) > 0 {
			if err := json.Unmarshal(blendRaw, &item.BlendComponents); err != nil {
				return nil, err
			}
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetSaleByID(ctx context.Context, id string) (*domain.Sale, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE id = $1
	`, id)
	sale, err := scanSale(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	items, err := s.loadSaleItems(ctx, s.db, sale.ID)
	if err != nil {
		return nil, err
	}
	sale.Items = items
	return &sale, nil
}

func (s *Store) ListSales(ctx context.Context, departmentID string, from time.Time, to time.Time, limit int) ([]domain.Sale, error) {
	if limit < 1 {
		limit = 100
	}
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Hour)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+saleColumns+`
		FROM sales
		WHERE ($1 = '' OR department_id = $1)
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, departmentID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sales := make([]domain.Sale, 0, limit)
	for rows.Next() {
		sale, err := scanSale(rows)
		if err != nil {
			return nil, err
		}
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i := range sales {
		items, err := s.loadSaleItems(ctx, s.db, sales[i].ID)
		if err != nil {
			return nil, err
		}
		sales[i].Items = items
	}
	return sales, nil
}

func (s *Store) MarkSaleVoided(ctx context.Context, id string, reason string, voidedBy string, at time.Time) (*domain.Sale, error) {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback() }()

	var status string
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM sales WHERE id = $1 FOR UPDATE
	`, id).Scan(&status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if status == domain.SaleStatusVoided {
		return nil, store.ErrAlreadyVoided
	}
	if status != domain.SaleStatusCompleted {
		return nil, store.ErrInvalidRequest
	}

	items, err := s.loadSaleItems(ctx, tx, id)
	if err != nil {
		return nil, err
	}

	for _, item := range items {
		if len(item.BlendComponents) > 0 {
			for _, comp := range item.BlendComponents {
				if comp.ProductID == "" {
					continue
				}
				_, err = tx.ExecContext(ctx, `
					UPDATE products
					SET stock_ml = stock_ml + $2, updated_at = now()
					WHERE id = $1 AND tracking_type = 'ml'
				`, comp.ProductID, comp.Milliliters*item.Quantity)
				if err != nil {
					return nil, err
				}
			}
			continue
		}
		if item.ProductID == "" {
			continue
		}
		_, err = tx.ExecContext(ctx, `
			UPDATE products
			SET stock = CASE WHEN tracking_type = 'quantity'
					THEN stock + $2::int * GREATEST(quantity_per_unit, 1) ELSE stock END,
				stock_ml = CASE WHEN tracking_type = 'ml' THEN stock_ml + $2 ELSE stock_ml END,
				updated_at = now()
			WHERE id = $1
		`, item.ProductID, item.Quantity)
		if err != nil {
			return nil, err
		}
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE sales
		SET status = $2, void_reason = $3, voided_by = $4, voided_at = $5
		WHERE id = $1 AND status = $6
	`, id, domain.SaleStatusVoided, reason, voidedBy, at, domain.SaleStatusCompleted)
	if err != nil {
		return nil, err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, store.ErrAlreadyVoided
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	return s.GetSaleByID(ctx, id)
}

func (s *Store) SumCashSales(ctx context.Context, departmentID string, date string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents),0)::bigint
		FROM sales
		WHERE department_id = $1
			AND payment_method = $2
			AND status = $3
			AND (created_at AT TIME ZONE 'UTC')::date = $4::date
	`, departmentID, domain.PaymentCash, domain.SaleStatusCompleted, date).Scan(&total)
	return total, err
}

// SumSales totals completed cash sales. Non-cash payment methods are reported
// separately via SalesTotalsByPayment.
func (s *Store) SumSales(ctx context.Context, departmentID string, from time.Time, to time.Time) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(total_cents),0)::bigint
		FROM sales
		WHERE department_id = $1
			AND status = $2
			AND payment_method = $3
			AND created_at >= $4
			AND created_at < $5
	`, departmentID, domain.SaleStatusCompleted, domain.PaymentCash, from, to).Scan(&total)
	return total, err
}

func (s *Store) SalesTotalsByPayment(ctx context.Context, departmentID string, from time.Time, to time.Time) ([]domain.PaymentTotal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_method, COALESCE(SUM(total_cents),0)::bigint
		FROM sales
		WHERE department_id = $1
			AND status = $2
			AND created_at >= $3
			AND created_at < $4
		GROUP BY payment_method
		ORDER BY payment_method
	`, departmentID, domain.SaleStatusCompleted, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	totals := make([]domain.PaymentTotal, 0, 4)
	for rows.Next() {
		var row domain.PaymentTotal
		if err := rows.Scan(&row.PaymentMethod, &row.TotalCents); err != nil {
			return nil, err
		}
		totals = append(totals, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return totals, nil
}

func (s *Store) SumLineCosts(ctx context.Context, departmentID string, from time.Time, to time.Time) (int64, int64, error) {
	var cogs, coso int64
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN si.service_id IS NULL THEN si.cost_cents ELSE 0 END),0)::bigint,
			COALESCE(SUM(CASE WHEN si.service_id IS NOT NULL THEN si.cost_cents ELSE 0 END),0)::bigint
		FROM sale_items si
		JOIN sales s ON s.id = si.sale_id
		WHERE s.department_id = $1
			AND s.status = $2
			AND s.created_at >= $3
			AND s.created_at < $4
	`, departmentID, domain.SaleStatusCompleted, from, to).Scan(&cogs, &coso)
	return cogs, coso, err
}

const creditColumns = `id, from_department, to_department, amount_cents, purpose,
		transaction_type, approval_status, settlement_status, COALESCE(approved_by,''),
		created_at, decided_at, settled_at`

func scanCredit(row interface{ Scan(...any) error }) (domain.Credit, error) {
	var credit domain.Credit
	var decidedAt, settledAt sql.NullTime
	err := row.Scan(&credit.ID, &credit.FromDepartment, &credit.ToDepartment, &credit.AmountCents,
		&credit.Purpose, &credit.TransactionType, &credit.ApprovalStatus, &credit.SettlementStatus,
		&credit.ApprovedBy, &credit.CreatedAt, &decidedAt, &settledAt)
	if err != nil {
		return credit, err
	}
	if decidedAt.Valid {
		at := decidedAt.Time.UTC()
		credit.DecidedAt = &at
	}
	if settledAt.Valid {
		at := settledAt.Time.UTC()
		credit.SettledAt = &at
	}
	credit.CreatedAt = credit.CreatedAt.UTC()
	return credit, nil
}

func (s *Store) CreateCredit(ctx context.Context, credit domain.Credit) (*domain.Credit, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO department_credits (
			id, from_department, to_department, amount_cents, purpose, transaction_type,
			approval_status, settlement_status, approved_by, created_at, decided_at, settled_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,NULL,$9,NULL,NULL)
	`, credit.ID, credit.FromDepartment, credit.ToDepartment, credit.AmountCents,
		credit.Purpose, credit.TransactionType, credit.ApprovalStatus, credit.SettlementStatus,
		credit.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := credit
	return &created, nil
}

func (s *Store) GetCreditByID(ctx context.Context, id string) (*domain.Credit, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+creditColumns+`
		FROM department_credits
		WHERE id = $1
	`, id)
	credit, err := scanCredit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &credit, nil
}

// SetCreditApproval guards the transition in the UPDATE itself: only a
// pending credit moves, so a double decision loses the race cleanly.
func (s *Store) SetCreditApproval(ctx context.Context, id string, status string, approvedBy string, at time.Time) (*domain.Credit, error) {
	if status != domain.ApprovalApproved && status != domain.ApprovalRejected {
		return nil, store.ErrInvalidRequest
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE department_credits
		SET approval_status = $2, approved_by = $3, decided_at = $4
		WHERE id = $1 AND approval_status = $5
		RETURNING `+creditColumns+`
	`, id, status, approvedBy, at, domain.ApprovalPending)
	credit, err := scanCredit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, lookupErr := s.GetCreditByID(ctx, id); lookupErr != nil {
				return nil, lookupErr
			}
			return nil, store.ErrAlreadyDecided
		}
		return nil, err
	}
	return &credit, nil
}

func (s *Store) SettleCredit(ctx context.Context, id string, at time.Time) (*domain.Credit, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE department_credits
		SET settlement_status = $2, settled_at = $3
		WHERE id = $1 AND approval_status = $4 AND settlement_status = $5
		RETURNING `+creditColumns+`
	`, id, domain.SettlementSettled, at, domain.ApprovalApproved, domain.SettlementUnsettled)
	credit, err := scanCredit(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			existing, lookupErr := s.GetCreditByID(ctx, id)
			if lookupErr != nil {
				return nil, lookupErr
			}
			if existing.ApprovalStatus != domain.ApprovalApproved {
				return nil, store.ErrNotApproved
			}
			return nil, store.ErrAlreadySettled
		}
		return nil, err
	}
	return &credit, nil
}

func (s *Store) ListCredits(ctx context.Context, filter domain.CreditFilter, limit int) ([]domain.Credit, error) {
	if limit < 1 {
		limit = 100
	}
	from := filter.From
	to := filter.To
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Hour)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+creditColumns+`
		FROM department_credits
		WHERE ($1 = '' OR from_department = $1 OR to_department = $1)
			AND ($2 = '' OR approval_status = $2)
			AND ($3 = '' OR from_department = $3 OR to_department = $3)
			AND created_at >= $4
			AND created_at < $5
		ORDER BY created_at DESC
		LIMIT $6
	`, filter.DepartmentID, filter.ApprovalStatus, filter.Counterpart, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	credits := make([]domain.Credit, 0, limit)
	for rows.Next() {
		credit, err := scanCredit(rows)
		if err != nil {
			return nil, err
		}
		credits = append(credits, credit)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return credits, nil
}

func (s *Store) CreditTotals(ctx context.Context, departmentID string, from time.Time, to time.Time) (domain.CreditTotals, error) {
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Hour)
	}
	var totals domain.CreditTotals
	err := s.db.QueryRowContext(ctx, `
		SELECT
			COALESCE(SUM(CASE WHEN to_department = $1 AND settlement_status = 'unsettled' THEN amount_cents ELSE 0 END),0)::bigint,
			COALESCE(SUM(CASE WHEN from_department = $1 AND settlement_status = 'unsettled' THEN amount_cents ELSE 0 END),0)::bigint,
			COALESCE(SUM(CASE WHEN to_department = $1 AND settlement_status = 'settled' THEN amount_cents ELSE 0 END),0)::bigint,
			COALESCE(SUM(CASE WHEN from_department = $1 AND settlement_status = 'settled' THEN amount_cents ELSE 0 END),0)::bigint
		FROM department_credits
		WHERE approval_status <> 'rejected'
			AND (from_department = $1 OR to_department = $1)
			AND created_at >= $2
			AND created_at < $3
	`, departmentID, from, to).Scan(
		&totals.UnsettledInCents,
		&totals.UnsettledOutCents,
		&totals.SettledInCents,
		&totals.SettledOutCents,
	)
	return totals, err
}

func (s *Store) CreateReconciliation(ctx context.Context, rec domain.Reconciliation) (*domain.Reconciliation, error) {
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
	var existing string
	err := s.db.QueryRowContext(ctx, `
		SELECT id FROM reconciliations
		WHERE department_id = $1 AND reconcile_date = $2 AND cashier = $3
	`, rec.DepartmentID, rec.Date, rec.Cashier).Scan(&existing)
	if err == nil {
		return nil, store.ErrConflict
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO reconciliations (
			id, department_id, reconcile_date, cashier, system_cash_cents,
			reported_cash_cents, discrepancy_cents, notes, status, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`, rec.ID, rec.DepartmentID, rec.Date, rec.Cashier, rec.SystemCashCents,
		rec.ReportedCashCents, rec.DiscrepancyCents, rec.Notes, rec.Status, rec.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := rec
	return &created, nil
}

const reconColumns = `id, department_id, reconcile_date, cashier, system_cash_cents,
		reported_cash_cents, discrepancy_cents, COALESCE(notes,''), status, created_at`

func scanReconciliation(row interface{ Scan(...any) error }) (domain.Reconciliation, error) {
	var rec domain.Reconciliation
	err := row.Scan(&rec.ID, &rec.DepartmentID, &rec.Date, &rec.Cashier, &rec.SystemCashCents,
		&rec.ReportedCashCents, &rec.DiscrepancyCents, &rec.Notes, &rec.Status, &rec.CreatedAt)
	if err != nil {
		return rec, err
	}
	rec.CreatedAt = rec.CreatedAt.UTC()
	return rec, nil
}

func (s *Store) GetReconciliationByID(ctx context.Context, id string) (*domain.Reconciliation, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+reconColumns+`
		FROM reconciliations
		WHERE id = $1
	`, id)
	rec, err := scanReconciliation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) SetReconciliationStatus(ctx context.Context, id string, status string, at time.Time) (*domain.Reconciliation, error) {
	if status != domain.ReconStatusApproved && status != domain.ReconStatusRejected {
		return nil, store.ErrInvalidRequest
	}

	row := s.db.QueryRowContext(ctx, `
		UPDATE reconciliations
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status NOT IN ($4, $5)
		RETURNING `+reconColumns+`
	`, id, status, at, domain.ReconStatusApproved, domain.ReconStatusRejected)
	rec, err := scanReconciliation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, lookupErr := s.GetReconciliationByID(ctx, id); lookupErr != nil {
				return nil, lookupErr
			}
			return nil, store.ErrAlreadyDecided
		}
		return nil, err
	}
	return &rec, nil
}

func (s *Store) ListReconciliations(ctx context.Context, departmentID string, from string, to string, limit int) ([]domain.Reconciliation, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+reconColumns+`
		FROM reconciliations
		WHERE ($1 = '' OR department_id = $1)
			AND ($2 = '' OR reconcile_date >= $2)
			AND ($3 = '' OR reconcile_date <= $3)
		ORDER BY reconcile_date DESC, created_at DESC
		LIMIT $4
	`, departmentID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Reconciliation, 0, limit)
	for rows.Next() {
		rec, err := scanReconciliation(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SumReconciliationDiscrepancies(ctx context.Context, departmentID string, from string, to string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(discrepancy_cents),0)::bigint
		FROM reconciliations
		WHERE department_id = $1
			AND status IN ($2, $3)
			AND ($4 = '' OR reconcile_date >= $4)
			AND ($5 = '' OR reconcile_date <= $5)
	`, departmentID, domain.ReconStatusApproved, domain.ReconStatusCompleted, from, to).Scan(&total)
	return total, err
}

func (s *Store) CreateSuspendedRevenue(ctx context.Context, sr domain.SuspendedRevenue) (*domain.SuspendedRevenue, error) {
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

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suspended_revenue (
			id, department_id, amount_cents, reason, reconciliation_id, status, notes, resolved_at, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, sr.ID, sr.DepartmentID, sr.AmountCents, sr.Reason, nullIfEmpty(sr.ReconciliationID),
		sr.Status, sr.Notes, nullTime(sr.ResolvedAt), sr.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := sr
	return &created, nil
}

const suspendedColumns = `id, department_id, amount_cents, reason, COALESCE(reconciliation_id,''),
		status, COALESCE(notes,''), resolved_at, created_at`

func scanSuspended(row interface{ Scan(...any) error }) (domain.SuspendedRevenue, error) {
	var sr domain.SuspendedRevenue
	var resolvedAt sql.NullTime
	err := row.Scan(&sr.ID, &sr.DepartmentID, &sr.AmountCents, &sr.Reason, &sr.ReconciliationID,
		&sr.Status, &sr.Notes, &resolvedAt, &sr.CreatedAt)
	if err != nil {
		return sr, err
	}
	if resolvedAt.Valid {
		at := resolvedAt.Time.UTC()
		sr.ResolvedAt = &at
	}
	sr.CreatedAt = sr.CreatedAt.UTC()
	return sr, nil
}

func (s *Store) UpdateSuspendedRevenue(ctx context.Context, id string, status string, notes string, at time.Time) (*domain.SuspendedRevenue, error) {
	switch status {
	case domain.SuspendedExplained, domain.SuspendedApproved, domain.SuspendedRejected:
	default:
		return nil, store.ErrInvalidRequest
	}

	var resolvedAt any
	if status == domain.SuspendedApproved || status == domain.SuspendedRejected {
		resolvedAt = at
	}
	row := s.db.QueryRowContext(ctx, `
		UPDATE suspended_revenue
		SET status = $2,
			notes = CASE WHEN $3 <> '' THEN $3 ELSE notes END,
			resolved_at = COALESCE($4, resolved_at)
		WHERE id = $1 AND status NOT IN ($5, $6)
		RETURNING `+suspendedColumns+`
	`, id, status, notes, resolvedAt, domain.SuspendedApproved, domain.SuspendedRejected)
	sr, err := scanSuspended(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			var exists bool
			if checkErr := s.db.QueryRowContext(ctx, `SELECT true FROM suspended_revenue WHERE id = $1`, id).Scan(&exists); checkErr != nil {
				if errors.Is(checkErr, sql.ErrNoRows) {
					return nil, store.ErrNotFound
				}
				return nil, checkErr
			}
			return nil, store.ErrAlreadyDecided
		}
		return nil, err
	}
	return &sr, nil
}

func (s *Store) ListSuspendedRevenue(ctx context.Context, departmentID string, status string, limit int) ([]domain.SuspendedRevenue, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+suspendedColumns+`
		FROM suspended_revenue
		WHERE ($1 = '' OR department_id = $1)
			AND ($2 = '' OR status = $2)
		ORDER BY created_at DESC
		LIMIT $3
	`, departmentID, status, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.SuspendedRevenue, 0, limit)
	for rows.Next() {
		sr, err := scanSuspended(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, sr)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SumSuspendedRevenue(ctx context.Context, departmentID string, from time.Time, to time.Time) (int64, error) {
	if to.IsZero() {
		to = time.Now().UTC().Add(time.Hour)
	}
	// Suspense stays on the books until the money is located, even when the
	// investigation is closed as rejected.
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents),0)::bigint
		FROM suspended_revenue
		WHERE department_id = $1
			AND created_at >= $2
			AND created_at < $3
	`, departmentID, from, to).Scan(&total)
	return total, err
}

func (s *Store) CreateExpense(ctx context.Context, exp domain.Expense) (*domain.Expense, error) {
	if exp.DepartmentID == "" || exp.AmountCents < 1 || exp.IncurredOn == "" {
		return nil, store.ErrInvalidRequest
	}
	if exp.ID == "" {
		exp.ID = xid.New("exp")
	}
	if exp.CreatedAt.IsZero() {
		exp.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO expenses (id, department_id, category, description, amount_cents, incurred_on, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
	`, exp.ID, exp.DepartmentID, exp.Category, exp.Description, exp.AmountCents, exp.IncurredOn, exp.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrConflict
		}
		return nil, err
	}
	created := exp
	return &created, nil
}

func (s *Store) ListExpenses(ctx context.Context, departmentID string, from string, to string, limit int) ([]domain.Expense, error) {
	if limit < 1 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, department_id, category, description, amount_cents, incurred_on, created_at
		FROM expenses
		WHERE ($1 = '' OR department_id = $1)
			AND ($2 = '' OR incurred_on >= $2)
			AND ($3 = '' OR incurred_on <= $3)
		ORDER BY incurred_on DESC, created_at DESC
		LIMIT $4
	`, departmentID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := make([]domain.Expense, 0, limit)
	for rows.Next() {
		var exp domain.Expense
		if err := rows.Scan(&exp.ID, &exp.DepartmentID, &exp.Category, &exp.Description, &exp.AmountCents, &exp.IncurredOn, &exp.CreatedAt); err != nil {
			return nil, err
		}
		exp.CreatedAt = exp.CreatedAt.UTC()
		result = append(result, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) SumExpenses(ctx context.Context, departmentID string, from string, to string) (int64, error) {
	var total int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(amount_cents),0)::bigint
		FROM expenses
		WHERE department_id = $1
			AND ($2 = '' OR incurred_on >= $2)
			AND ($3 = '' OR incurred_on <= $3)
	`, departmentID, from, to).Scan(&total)
	return total, err
}

func (s *Store) GetCustomerPreference(ctx context.Context, customerID string) (*domain.CustomerPreference, error) {
	var pref domain.CustomerPreference
	var namesRaw, sizesRaw []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT customer_id, scent_names, bottle_sizes, updated_at
		FROM customer_preferences
		WHERE customer_id = $1
	`, customerID).Scan(&pref.CustomerID, &namesRaw, &sizesRaw, &pref.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	if len(namesRaw) > 0 {
		if err := json.Unmarshal(namesRaw, &pref.ScentNames); err != nil {
			return nil, err
		}
	}
	if len(sizesRaw) > 0 {
		if err := json.Unmarshal(sizesRaw, &pref.BottleSizes); err != nil {
			return nil, err
		}
	}
	pref.UpdatedAt = pref.UpdatedAt.UTC()
	return &pref, nil
}

func (s *Store) UpsertCustomerPreference(ctx context.Context, pref domain.CustomerPreference) error {
	if pref.CustomerID == "" {
		return store.ErrInvalidRequest
	}
	if pref.UpdatedAt.IsZero() {
		pref.UpdatedAt = time.Now().UTC()
	}
	namesJSON, err := json.Marshal(pref.ScentNames)
	if err != nil {
		return err
	}
	sizesJSON, err := json.Marshal(pref.BottleSizes)
	if err != nil {
		return err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO customer_preferences (customer_id, scent_names, bottle_sizes, updated_at)
		VALUES ($1,$2,$3,$4)
		ON CONFLICT (customer_id)
		DO UPDATE SET scent_names = EXCLUDED.scent_names, bottle_sizes = EXCLUDED.bottle_sizes, updated_at = EXCLUDED.updated_at
	`, pref.CustomerID, namesJSON, sizesJSON, pref.UpdatedAt)
	return err
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (
			id, department_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
	`, entry.ID, entry.DepartmentID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return err
}

func (s *Store) ListAuditLogs(ctx context.Context, departmentID string, from time.Time, to time.Time, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 100
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, department_id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		WHERE department_id = $1
			AND created_at >= $2
			AND created_at < $3
		ORDER BY created_at DESC
		LIMIT $4
	`, departmentID, from, to, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.DepartmentID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, err
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return store.ErrInvalidRequest
	}
	if user.Role == "" {
		user.Role = "cashier"
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, department_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,now())
	`, user.Username, user.Password, user.Role, nullIfEmpty(user.DepartmentID), user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrConflict
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, COALESCE(department_id, ''), active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.DepartmentID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidRequest
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullTime(val *time.Time) any {
	if val == nil {
		return nil
	}
	return *val
}
