package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
)

// sellForCash completes a cash sale with a known total so reconciliation
// tests control the system-computed figure exactly.
func sellForCash(t *testing.T, svc *Service, departmentID string, totalCents int64) {
	t.Helper()
	ctx := adminContext()

	product, err := svc.CreateProduct(ctx, domain.ProductCreateRequest{
		DepartmentID:     departmentID,
		Name:             "Fixture Item " + time.Now().Format("150405.000000000"),
		Category:         "fixture",
		TrackingType:     domain.TrackQuantity,
		InitialStock:     1,
		RetailPriceCents: totalCents,
		CostPriceCents:   totalCents / 2,
	})
	if err != nil {
		t.Fatalf("create fixture product failed: %v", err)
	}

	_, err = svc.CompleteSale(cashierContext(), domain.SaleRequest{
		DepartmentID:    departmentID,
		PaymentMethod:   domain.PaymentCash,
		AmountPaidCents: totalCents,
		Lines: []domain.SaleLineRequest{
			{ProductID: product.ID, Quantity: 1},
		},
	})
	if err != nil {
		t.Fatalf("fixture sale failed: %v", err)
	}
}

func TestReconcileBalancedCompletesImmediately(t *testing.T) {
	svc := newTestService()
	sellForCash(t, svc, "main-shop", 50000)

	result, err := svc.Reconcile(cashierContext(), domain.ReconcileRequest{
		DepartmentID:      "main-shop",
		ReportedCashCents: 50000,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	rec := result.Reconciliation
	if rec.SystemCashCents != 50000 {
		t.Fatalf("expected system cash 50000, got %d", rec.SystemCashCents)
	}
	if rec.DiscrepancyCents != 0 {
		t.Fatalf("expected zero discrepancy, got %d", rec.DiscrepancyCents)
	}
	if rec.Status != domain.ReconStatusCompleted {
		t.Fatalf("expected completed status, got %s", rec.Status)
	}

	suspended, err := svc.ListSuspendedRevenue(context.Background(), "main-shop", "", 0)
	if err != nil {
		t.Fatalf("list suspended failed: %v", err)
	}
	if len(suspended) != 0 {
		t.Fatalf("balanced reconciliation must not open suspense, got %d rows", len(suspended))
	}
}

func TestReconcileSurplusOpensSuspense(t *testing.T) {
	svc := newTestService()
	sellForCash(t, svc, "main-shop", 50000)

	result, err := svc.Reconcile(cashierContext(), domain.ReconcileRequest{
		DepartmentID:      "main-shop",
		ReportedCashCents: 55000,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	rec := result.Reconciliation
	if rec.DiscrepancyCents != 5000 {
		t.Fatalf("expected discrepancy 5000, got %d", rec.DiscrepancyCents)
	}
	if rec.Status != domain.ReconStatusPending {
		t.Fatalf("expected pending status for surplus, got %s", rec.Status)
	}
	if result.Warning != "" {
		t.Fatalf("unexpected warning: %s", result.Warning)
	}

	suspended, err := svc.ListSuspendedRevenue(context.Background(), "main-shop", domain.SuspendedPending, 0)
	if err != nil {
		t.Fatalf("list suspended failed: %v", err)
	}
	if len(suspended) != 1 {
		t.Fatalf("expected 1 suspense row, got %d", len(suspended))
	}
	if suspended[0].AmountCents != 5000 {
		t.Fatalf("expected suspense amount 5000, got %d", suspended[0].AmountCents)
	}
	if suspended[0].ReconciliationID != rec.ID {
		t.Fatalf("expected suspense linked to reconciliation %s", rec.ID)
	}
}

func TestReconcileSecondCountSameDrawerConflicts(t *testing.T) {
	svc := newTestService()
	sellForCash(t, svc, "main-shop", 50000)

	cashier := cashierContext()
	if _, err := svc.Reconcile(cashier, domain.ReconcileRequest{
		DepartmentID:      "main-shop",
		ReportedCashCents: 50000,
	}); err != nil {
		t.Fatalf("first reconcile failed: %v", err)
	}

	// One count per cashier per department per day; a second submission
	// would double-count the drawer.
	_, err := svc.Reconcile(cashier, domain.ReconcileRequest{
		DepartmentID:      "main-shop",
		ReportedCashCents: 49000,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for duplicate count, got %v", err)
	}
}

func TestReconcileDeficitPendsWithoutSuspense(t *testing.T) {
	svc := newTestService()
	sellForCash(t, svc, "main-shop", 50000)

	result, err := svc.Reconcile(cashierContext(), domain.ReconcileRequest{
		DepartmentID:      "main-shop",
		ReportedCashCents: 46500,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if result.Reconciliation.DiscrepancyCents != -3500 {
		t.Fatalf("expected discrepancy -3500, got %d", result.Reconciliation.DiscrepancyCents)
	}
	if result.Reconciliation.Status != domain.ReconStatusPending {
		t.Fatalf("expected pending status for deficit, got %s", result.Reconciliation.Status)
	}

	suspended, err := svc.ListSuspendedRevenue(context.Background(), "main-shop", "", 0)
	if err != nil {
		t.Fatalf("list suspended failed: %v", err)
	}
	if len(suspended) != 0 {
		t.Fatalf("deficit must not open suspense, got %d rows", len(suspended))
	}
}

func TestDecideReconciliationIsFinal(t *testing.T) {
	svc := newTestService()

	result, err := svc.Reconcile(cashierContext(), domain.ReconcileRequest{
		DepartmentID:      "main-shop",
		ReportedCashCents: 2000,
	})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}

	decided, err := svc.DecideReconciliation(adminContext(), result.Reconciliation.ID, domain.ReconStatusApproved)
	if err != nil {
		t.Fatalf("decide failed: %v", err)
	}
	if decided.Status != domain.ReconStatusApproved {
		t.Fatalf("expected approved, got %s", decided.Status)
	}

	_, err = svc.DecideReconciliation(adminContext(), result.Reconciliation.ID, domain.ReconStatusRejected)
	if !errors.Is(err, store.ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided, got %v", err)
	}
}

func TestSuspendedRevenueReviewFlow(t *testing.T) {
	svc := newTestService()

	created, err := svc.CreateSuspendedRevenue(cashierContext(), domain.SuspendedRevenueCreateRequest{
		DepartmentID: "main-shop",
		AmountCents:  7500,
		Reason:       "unlabelled envelope in drawer",
	})
	if err != nil {
		t.Fatalf("create suspended failed: %v", err)
	}
	if created.Status != domain.SuspendedPending {
		t.Fatalf("expected pending, got %s", created.Status)
	}

	explained, err := svc.UpdateSuspendedRevenue(adminContext(), created.ID, domain.SuspendedRevenueUpdateRequest{
		Status: domain.SuspendedExplained,
		Notes:  "customer prepaid for tomorrow's order",
	})
	if err != nil {
		t.Fatalf("explain failed: %v", err)
	}
	if explained.Status != domain.SuspendedExplained {
		t.Fatalf("expected explained, got %s", explained.Status)
	}

	approved, err := svc.UpdateSuspendedRevenue(adminContext(), created.ID, domain.SuspendedRevenueUpdateRequest{
		Status: domain.SuspendedApproved,
	})
	if err != nil {
		t.Fatalf("approve failed: %v", err)
	}
	if approved.ResolvedAt == nil {
		t.Fatalf("expected resolved timestamp on approval")
	}

	_, err = svc.UpdateSuspendedRevenue(adminContext(), created.ID, domain.SuspendedRevenueUpdateRequest{
		Status: domain.SuspendedRejected,
	})
	if !errors.Is(err, store.ErrAlreadyDecided) {
		t.Fatalf("expected ErrAlreadyDecided after resolution, got %v", err)
	}
}
