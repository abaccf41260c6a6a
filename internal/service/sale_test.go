package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
)

func TestCompleteSaleRejectsEmptyCart(t *testing.T) {
	svc := newTestService()

	_, err := svc.CompleteSale(cashierContext(), domain.SaleRequest{
		DepartmentID:  "main-shop",
		PaymentMethod: domain.PaymentCash,
	})
	if !errors.Is(err, store.ErrEmptyCart) {
		t.Fatalf("expected ErrEmptyCart, got %v", err)
	}
}

func TestCompleteSaleCashTotalsAndChange(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	receipt, err := svc.CompleteSale(ctx, domain.SaleRequest{
		DepartmentID:    "main-shop",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 20000,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-soap-01", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}
	if receipt.TotalCents != 19000 {
		t.Fatalf("expected total 19000, got %d", receipt.TotalCents)
	}
	if receipt.ChangeCents != 1000 {
		t.Fatalf("expected change 1000, got %d", receipt.ChangeCents)
	}
	if !strings.HasPrefix(receipt.ReceiptNumber, "RCP-") {
		t.Fatalf("expected receipt number, got %q", receipt.ReceiptNumber)
	}
	if receipt.InvoiceNumber != "" {
		t.Fatalf("retail sale should not carry an invoice number")
	}

	soap, err := svc.GetProduct(ctx, "prod-soap-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if soap.Stock != 78 {
		t.Fatalf("expected stock 78 after sale, got %d", soap.Stock)
	}
}

func TestCompleteSaleCashUnderpaidRejected(t *testing.T) {
	svc := newTestService()

	_, err := svc.CompleteSale(cashierContext(), domain.SaleRequest{
		DepartmentID:    "main-shop",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 9000,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-soap-01", Quantity: 1},
		},
	})
	if !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for underpaid cash sale, got %v", err)
	}

	soap, err := svc.GetProduct(context.Background(), "prod-soap-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if soap.Stock != 80 {
		t.Fatalf("rejected sale must not touch stock, got %d", soap.Stock)
	}
}

func TestCompleteSaleWholesaleTierAndInvoice(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	// prod-wick-01 is sold in packs of 12, so 2 packs draw 24 physical units.
	receipt, err := svc.CompleteSale(ctx, domain.SaleRequest{
		DepartmentID:  "main-shop",
		PaymentMethod: domain.PaymentBank,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-wick-01", Quantity: 2, Wholesale: true},
		},
	})
	if err != nil {
		t.Fatalf("wholesale sale failed: %v", err)
	}
	if receipt.TotalCents != 2*2000 {
		t.Fatalf("expected wholesale pricing 4000, got %d", receipt.TotalCents)
	}
	if !strings.HasPrefix(receipt.InvoiceNumber, "INV-") {
		t.Fatalf("wholesale sale should carry an invoice number, got %q", receipt.InvoiceNumber)
	}
	if receipt.AmountPaidCents != receipt.TotalCents {
		t.Fatalf("non-cash sale should be recorded as paid in full")
	}

	wick, err := svc.GetProduct(ctx, "prod-wick-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if wick.Stock != 96 {
		t.Fatalf("expected stock 96 after selling 2 packs of 12, got %d", wick.Stock)
	}
}

func TestCompleteSalePackProductDrawsPhysicalUnits(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	receipt, err := svc.CompleteSale(ctx, domain.SaleRequest{
		DepartmentID:    "main-shop",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 2500,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-wick-01", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("pack sale failed: %v", err)
	}
	if receipt.TotalCents != 2500 {
		t.Fatalf("expected pack price 2500, got %d", receipt.TotalCents)
	}

	wick, err := svc.GetProduct(ctx, "prod-wick-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if wick.Stock != 108 {
		t.Fatalf("one pack of 12 should leave 108 of 120 units, got %d", wick.Stock)
	}

	// Voiding the sale puts the whole pack back.
	if _, err := svc.VoidSale(adminContext(), domain.VoidSaleRequest{SaleID: receipt.SaleID, Reason: "test"}); err != nil {
		t.Fatalf("void failed: %v", err)
	}
	wick, err = svc.GetProduct(ctx, "prod-wick-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if wick.Stock != 120 {
		t.Fatalf("void should restore the full pack, got %d", wick.Stock)
	}
}

func TestCompleteSaleInsufficientStockCompensatesEarlierLines(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	_, err := svc.CompleteSale(ctx, domain.SaleRequest{
		DepartmentID:    "main-shop",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 40_000_000,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-soap-01", Quantity: 3},
			{ProductID: "prod-lotion-01", Quantity: 999},
		},
	})
	if !errors.Is(err, store.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	soap, err := svc.GetProduct(ctx, "prod-soap-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if soap.Stock != 80 {
		t.Fatalf("expected soap stock restored to 80, got %d", soap.Stock)
	}
	lotion, err := svc.GetProduct(ctx, "prod-lotion-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if lotion.Stock != 45 {
		t.Fatalf("expected lotion stock untouched at 45, got %d", lotion.Stock)
	}
}

func TestCompleteSaleServiceLineHasNoStockEffect(t *testing.T) {
	svc := newTestService()

	receipt, err := svc.CompleteSale(cashierContext(), domain.SaleRequest{
		DepartmentID:    "main-shop",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 5000,
		Lines: []domain.SaleLineRequest{
			{ServiceID: "svc-wrap-01", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("service sale failed: %v", err)
	}
	if receipt.TotalCents != 5000 {
		t.Fatalf("expected total 5000, got %d", receipt.TotalCents)
	}
}

func TestCompleteSaleBlendDecrementsComponents(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	receipt, err := svc.CompleteSale(ctx, domain.SaleRequest{
		DepartmentID:    "perfume",
		PaymentMethod:   domain.PaymentCash,
		CustomerID:      "cust-aisha",
		AmountPaidCents: 10000,
		Lines: []domain.SaleLineRequest{
			{
				Quantity:     1,
				BottleSizeML: 30,
				BlendComponents: []domain.BlendComponent{
					{ScentName: "Oud Royale", Milliliters: 20},
					{ScentName: "Amber Noir", Milliliters: 10},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("blend sale failed: %v", err)
	}
	// 20ml at 90 plus 10ml at 130.
	if receipt.TotalCents != 3100 {
		t.Fatalf("expected blend total 3100, got %d", receipt.TotalCents)
	}

	oud, err := svc.GetProduct(ctx, "scent-oud-01")
	if err != nil {
		t.Fatalf("get scent failed: %v", err)
	}
	if oud.StockML != 2480 {
		t.Fatalf("expected oud stock 2480ml, got %.2f", oud.StockML)
	}
	amber, err := svc.GetProduct(ctx, "scent-amber-pf")
	if err != nil {
		t.Fatalf("get scent failed: %v", err)
	}
	if amber.StockML != 590 {
		t.Fatalf("expected amber stock 590ml, got %.2f", amber.StockML)
	}

	// The blend line hangs off the shared master product; its row never
	// gains or loses stock.
	sale, err := svc.GetSale(ctx, receipt.SaleID)
	if err != nil {
		t.Fatalf("get sale failed: %v", err)
	}
	if len(sale.Items) != 1 || sale.Items[0].ProductID != domain.BlendMasterProductID {
		t.Fatalf("expected blend line anchored to %s, got %+v", domain.BlendMasterProductID, sale.Items)
	}
	master, err := svc.GetProduct(ctx, domain.BlendMasterProductID)
	if err != nil {
		t.Fatalf("get master product failed: %v", err)
	}
	if master.Stock != 0 || master.StockML != 0 {
		t.Fatalf("master blend product must carry no stock, got %d / %.2f", master.Stock, master.StockML)
	}

	pref, err := svc.GetCustomerPreference(ctx, "cust-aisha")
	if err != nil {
		t.Fatalf("get preference failed: %v", err)
	}
	if len(pref.ScentNames) != 2 {
		t.Fatalf("expected 2 remembered scents, got %v", pref.ScentNames)
	}
	if len(pref.BottleSizes) != 1 || pref.BottleSizes[0] != 30 {
		t.Fatalf("expected remembered bottle size 30, got %v", pref.BottleSizes)
	}
}

func TestCompleteSaleBlendMustFillBottle(t *testing.T) {
	svc := newTestService()

	_, err := svc.CompleteSale(cashierContext(), domain.SaleRequest{
		DepartmentID:    "perfume",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 10000,
		Lines: []domain.SaleLineRequest{
			{
				Quantity:     1,
				BottleSizeML: 30,
				BlendComponents: []domain.BlendComponent{
					{ScentName: "Oud Royale", Milliliters: 25},
				},
			},
		},
	})
	if !errors.Is(err, store.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest for underfilled bottle, got %v", err)
	}
}

func TestCompleteSaleBlendUnknownScent(t *testing.T) {
	svc := newTestService()

	_, err := svc.CompleteSale(cashierContext(), domain.SaleRequest{
		DepartmentID:    "perfume",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 10000,
		Lines: []domain.SaleLineRequest{
			{
				Quantity:     1,
				BottleSizeML: 10,
				BlendComponents: []domain.BlendComponent{
					{ScentName: "Midnight Fig", Milliliters: 10},
				},
			},
		},
	})
	if !errors.Is(err, store.ErrProductNotFound) {
		t.Fatalf("expected ErrProductNotFound for unknown scent, got %v", err)
	}
}

func TestCompleteSaleBlendAmbiguousScentFailsWithoutMutation(t *testing.T) {
	svc := newTestService()
	ctx := adminContext()

	// A department-owned scent shadowing a global one by name makes the
	// name unresolvable.
	_, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		DepartmentID:     "perfume",
		Name:             "Oud Royale",
		Category:         "scent",
		TrackingType:     domain.TrackML,
		InitialStockML:   300,
		RetailPriceCents: 95,
		CostPriceCents:   50,
	})
	if err != nil {
		t.Fatalf("create shadowing scent failed: %v", err)
	}

	_, err = svc.CompleteSale(cashierContext(), domain.SaleRequest{
		DepartmentID:    "perfume",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 10000,
		Lines: []domain.SaleLineRequest{
			{
				Quantity:     1,
				BottleSizeML: 10,
				BlendComponents: []domain.BlendComponent{
					{ScentName: "Oud Royale", Milliliters: 10},
				},
			},
		},
	})
	if !errors.Is(err, store.ErrAmbiguousScent) {
		t.Fatalf("expected ErrAmbiguousScent, got %v", err)
	}

	oud, err := svc.GetProduct(ctx, "scent-oud-01")
	if err != nil {
		t.Fatalf("get scent failed: %v", err)
	}
	if oud.StockML != 2500 {
		t.Fatalf("ambiguous blend must not touch stock, got %.2f", oud.StockML)
	}
}

func TestVoidSaleRestoresStockAndIsFinal(t *testing.T) {
	svc := newTestService()
	ctx := adminContext()

	receipt, err := svc.CompleteSale(ctx, domain.SaleRequest{
		DepartmentID:    "main-shop",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 19000,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-soap-01", Quantity: 2},
		},
	})
	if err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}

	resp, err := svc.VoidSale(ctx, domain.VoidSaleRequest{
		SaleID: receipt.SaleID,
		Reason: "wrong item rung up",
	})
	if err != nil {
		t.Fatalf("void failed: %v", err)
	}
	if resp.Status != domain.SaleStatusVoided {
		t.Fatalf("expected voided status, got %s", resp.Status)
	}

	soap, err := svc.GetProduct(ctx, "prod-soap-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if soap.Stock != 80 {
		t.Fatalf("expected stock restored to 80 after void, got %d", soap.Stock)
	}

	_, err = svc.VoidSale(ctx, domain.VoidSaleRequest{
		SaleID: receipt.SaleID,
		Reason: "duplicate void",
	})
	if !errors.Is(err, store.ErrAlreadyVoided) {
		t.Fatalf("expected ErrAlreadyVoided on second void, got %v", err)
	}
}

func TestVoidSaleRestoresBlendComponents(t *testing.T) {
	svc := newTestService()
	ctx := adminContext()

	receipt, err := svc.CompleteSale(ctx, domain.SaleRequest{
		DepartmentID:    "perfume",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 10000,
		Lines: []domain.SaleLineRequest{
			{
				Quantity:     1,
				BottleSizeML: 30,
				BlendComponents: []domain.BlendComponent{
					{ScentName: "Oud Royale", Milliliters: 20},
					{ScentName: "White Musk", Milliliters: 10},
				},
			},
		},
	})
	if err != nil {
		t.Fatalf("blend sale failed: %v", err)
	}

	if _, err := svc.VoidSale(ctx, domain.VoidSaleRequest{SaleID: receipt.SaleID, Reason: "customer changed mind"}); err != nil {
		t.Fatalf("void failed: %v", err)
	}

	oud, err := svc.GetProduct(ctx, "scent-oud-01")
	if err != nil {
		t.Fatalf("get scent failed: %v", err)
	}
	if oud.StockML != 2500 {
		t.Fatalf("expected oud restored to 2500ml, got %.2f", oud.StockML)
	}
	musk, err := svc.GetProduct(ctx, "scent-musk-01")
	if err != nil {
		t.Fatalf("get scent failed: %v", err)
	}
	if musk.StockML != 1800 {
		t.Fatalf("expected musk restored to 1800ml, got %.2f", musk.StockML)
	}
}

func TestVoidSaleRequiresAdmin(t *testing.T) {
	svc := newTestService()

	receipt, err := svc.CompleteSale(cashierContext(), domain.SaleRequest{
		DepartmentID:    "main-shop",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 9500,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-soap-01", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}

	_, err = svc.VoidSale(cashierContext(), domain.VoidSaleRequest{SaleID: receipt.SaleID, Reason: "test"})
	if err == nil {
		t.Fatalf("expected non-admin void to fail")
	}
}

func TestCompleteSaleDefaultsToActorDepartment(t *testing.T) {
	svc := newTestService()
	ctx := WithActor(context.Background(), domain.Actor{
		Username:     "teller1",
		Role:         "cashier",
		DepartmentID: "perfume",
	})

	receipt, err := svc.CompleteSale(ctx, domain.SaleRequest{
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 4500,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-bottle-30", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}
	if receipt.DepartmentID != "perfume" {
		t.Fatalf("expected sale booked to the cashier's department, got %q", receipt.DepartmentID)
	}
}

func TestListSalesWithoutDateRange(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	receipt, err := svc.CompleteSale(ctx, domain.SaleRequest{
		DepartmentID:    "main-shop",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 9500,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-soap-01", Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}

	sales, err := svc.ListSales(ctx, "main-shop", "", "", 0)
	if err != nil {
		t.Fatalf("list sales failed: %v", err)
	}
	if len(sales) != 1 || sales[0].ID != receipt.SaleID {
		t.Fatalf("expected the completed sale without a date filter, got %d rows", len(sales))
	}
}

func TestConcurrentSalesNeverOversell(t *testing.T) {
	svc := newTestService()
	ctx := cashierContext()

	// Seeded wick stock is 120 physical units sold in packs of 12, so only
	// 10 single-pack sales can ever succeed.
	const attempts = 150

	var wg sync.WaitGroup
	var sold, rejected atomic.Int64
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.CompleteSale(ctx, domain.SaleRequest{
				DepartmentID:    "main-shop",
				PaymentMethod:   domain.PaymentCash,
				AmountPaidCents: 2500,
				Lines: []domain.SaleLineRequest{
					{ProductID: "prod-wick-01", Quantity: 1},
				},
			})
			switch {
			case err == nil:
				sold.Add(1)
			case errors.Is(err, store.ErrInsufficientStock):
				rejected.Add(1)
			default:
				t.Errorf("unexpected sale error: %v", err)
			}
		}()
	}
	wg.Wait()

	if sold.Load() != 10 {
		t.Fatalf("expected exactly 10 pack sales to succeed, got %d", sold.Load())
	}
	if sold.Load()+rejected.Load() != attempts {
		t.Fatalf("expected %d attempts accounted for, got %d", attempts, sold.Load()+rejected.Load())
	}

	wick, err := svc.GetProduct(ctx, "prod-wick-01")
	if err != nil {
		t.Fatalf("get product failed: %v", err)
	}
	if wick.Stock != 0 {
		t.Fatalf("expected wick stock drained to 0, got %d", wick.Stock)
	}
}
