package service

import (
	"testing"

	"dukapos/backend/internal/domain"
)

// Exercises the full adjusted-net-sales pipeline from persisted rows:
// 100,000 gross + 10,000 unsettled in - 4,000 unsettled out
// - 2,000 settled in + 6,000 settled out - 3,000 expenses
// - 500 reconciliation deficit - 1,000 suspended = 105,500.
func TestRevenueReportAdjustedSales(t *testing.T) {
	svc := newTestService()
	admin := adminContext()
	cashier := cashierContext()

	sellForCash(t, svc, "main-shop", 100000)

	if _, err := svc.CreateCredit(cashier, domain.CreditCreateRequest{
		FromDepartment: "annex",
		ToDepartment:   "main-shop",
		AmountCents:    10000,
	}); err != nil {
		t.Fatalf("create unsettled-in credit failed: %v", err)
	}
	if _, err := svc.CreateCredit(cashier, domain.CreditCreateRequest{
		FromDepartment: "main-shop",
		ToDepartment:   "annex",
		AmountCents:    4000,
	}); err != nil {
		t.Fatalf("create unsettled-out credit failed: %v", err)
	}

	settledIn, err := svc.CreateCredit(cashier, domain.CreditCreateRequest{
		FromDepartment: "annex",
		ToDepartment:   "main-shop",
		AmountCents:    2000,
	})
	if err != nil {
		t.Fatalf("create settled-in credit failed: %v", err)
	}
	if _, err := svc.DecideCredit(admin, settledIn.ID, domain.ApprovalApproved); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.SettleCredit(cashier, settledIn.ID); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	settledOut, err := svc.CreateCredit(cashier, domain.CreditCreateRequest{
		FromDepartment: "main-shop",
		ToDepartment:   "annex",
		AmountCents:    6000,
	})
	if err != nil {
		t.Fatalf("create settled-out credit failed: %v", err)
	}
	if _, err := svc.DecideCredit(admin, settledOut.ID, domain.ApprovalApproved); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if _, err := svc.SettleCredit(cashier, settledOut.ID); err != nil {
		t.Fatalf("settle failed: %v", err)
	}

	if _, err := svc.CreateExpense(cashier, domain.ExpenseCreateRequest{
		DepartmentID: "main-shop",
		Category:     "transport",
		AmountCents:  3000,
	}); err != nil {
		t.Fatalf("create expense failed: %v", err)
	}

	// Cashier declares 500 short of the system figure; the shortage only
	// feeds the report once an admin approves the count.
	recResult, err := svc.Reconcile(cashier, domain.ReconcileRequest{
		DepartmentID:      "main-shop",
		ReportedCashCents: 99500,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if _, err := svc.DecideReconciliation(admin, recResult.Reconciliation.ID, domain.ReconStatusApproved); err != nil {
		t.Fatalf("approve reconciliation failed: %v", err)
	}

	if _, err := svc.CreateSuspendedRevenue(cashier, domain.SuspendedRevenueCreateRequest{
		DepartmentID: "main-shop",
		AmountCents:  1000,
		Reason:       "unexplained drawer cash",
	}); err != nil {
		t.Fatalf("create suspended failed: %v", err)
	}

	report, err := svc.RevenueReport(cashier, "main-shop", "", "")
	if err != nil {
		t.Fatalf("revenue report failed: %v", err)
	}

	if report.GrossSalesCents != 100000 {
		t.Fatalf("expected gross 100000, got %d", report.GrossSalesCents)
	}
	if report.AdjustedSalesCents != 105500 {
		t.Fatalf("expected adjusted sales 105500, got %d", report.AdjustedSalesCents)
	}
	if report.ReconciliationDiscrepancyCents != -500 {
		t.Fatalf("expected discrepancy -500, got %d", report.ReconciliationDiscrepancyCents)
	}
	if report.SuspendedRevenueCents != 1000 {
		t.Fatalf("expected suspended 1000, got %d", report.SuspendedRevenueCents)
	}
}

// Gross counts only cash in the drawer. Bank and mobile-money sales show up
// in the per-method breakdown but never in the cash figure.
func TestRevenueReportGrossIsCashOnly(t *testing.T) {
	svc := newTestService()
	cashier := cashierContext()

	if _, err := svc.CompleteSale(cashier, domain.SaleRequest{
		DepartmentID:  "main-shop",
		PaymentMethod: domain.PaymentBank,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-soap-01", Quantity: 1},
		},
	}); err != nil {
		t.Fatalf("bank sale failed: %v", err)
	}

	report, err := svc.RevenueReport(cashier, "main-shop", "", "")
	if err != nil {
		t.Fatalf("revenue report failed: %v", err)
	}
	if report.GrossSalesCents != 0 {
		t.Fatalf("bank sale must not count toward cash gross, got %d", report.GrossSalesCents)
	}

	var bankCents int64
	for _, pt := range report.SalesByPayment {
		if pt.PaymentMethod == domain.PaymentBank {
			bankCents = pt.TotalCents
		}
	}
	if bankCents != 9500 {
		t.Fatalf("expected bank bucket 9500, got %d", bankCents)
	}
}

// Suspense is money with no explained origin; it stays out of adjusted sales
// until resolved, and closing the investigation as rejected does not make
// the cash reappear.
func TestRevenueReportRejectedSuspenseStillHeld(t *testing.T) {
	svc := newTestService()
	admin := adminContext()

	sr, err := svc.CreateSuspendedRevenue(cashierContext(), domain.SuspendedRevenueCreateRequest{
		DepartmentID: "main-shop",
		AmountCents:  1000,
		Reason:       "drawer overage",
	})
	if err != nil {
		t.Fatalf("create suspended failed: %v", err)
	}
	if _, err := svc.UpdateSuspendedRevenue(admin, sr.ID, domain.SuspendedRevenueUpdateRequest{
		Status: domain.SuspendedRejected,
	}); err != nil {
		t.Fatalf("reject suspended failed: %v", err)
	}

	report, err := svc.RevenueReport(admin, "main-shop", "", "")
	if err != nil {
		t.Fatalf("revenue report failed: %v", err)
	}
	if report.SuspendedRevenueCents != 1000 {
		t.Fatalf("rejected suspense must stay on the books, got %d", report.SuspendedRevenueCents)
	}
}

func TestRevenueReportVoidedSalesExcluded(t *testing.T) {
	svc := newTestService()
	admin := adminContext()

	receipt, err := svc.CompleteSale(admin, domain.SaleRequest{
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
	if _, err := svc.VoidSale(admin, domain.VoidSaleRequest{SaleID: receipt.SaleID, Reason: "test void"}); err != nil {
		t.Fatalf("void failed: %v", err)
	}

	report, err := svc.RevenueReport(admin, "main-shop", "", "")
	if err != nil {
		t.Fatalf("revenue report failed: %v", err)
	}
	if report.GrossSalesCents != 0 {
		t.Fatalf("voided sale must not count toward gross, got %d", report.GrossSalesCents)
	}
}

func TestRevenueReportProfitFigures(t *testing.T) {
	svc := newTestService()
	cashier := cashierContext()

	// Soap: retail 9500, cost 6400. Gift wrap: price 5000, material 1800.
	if _, err := svc.CompleteSale(cashier, domain.SaleRequest{
		DepartmentID:    "main-shop",
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: 14500,
		Lines: []domain.SaleLineRequest{
			{ProductID: "prod-soap-01", Quantity: 1},
			{ServiceID: "svc-wrap-01", Quantity: 1},
		},
	}); err != nil {
		t.Fatalf("complete sale failed: %v", err)
	}

	report, err := svc.RevenueReport(cashier, "main-shop", "", "")
	if err != nil {
		t.Fatalf("revenue report failed: %v", err)
	}
	if report.COGSCents != 6400 {
		t.Fatalf("expected COGS 6400, got %d", report.COGSCents)
	}
	if report.COSOCents != 1800 {
		t.Fatalf("expected COSO 1800, got %d", report.COSOCents)
	}
	if report.GrossProfitCents != 14500-6400-1800 {
		t.Fatalf("expected gross profit 6300, got %d", report.GrossProfitCents)
	}
}
