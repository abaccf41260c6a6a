package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

// Reconcile compares the cashier's declared cash against the cash the
// system computed from the day's completed cash sales. A zero discrepancy
// completes immediately; anything else stays pending for admin review.
// A surplus additionally opens a suspended-revenue record so the extra
// cash is quarantined from revenue until someone explains it; that write
// is secondary and its failure degrades to a warning, never a rollback
// of the reconciliation itself.
func (s *Service) Reconcile(ctx context.Context, req domain.ReconcileRequest) (domain.ReconcileResult, error) {
	if req.DepartmentID == "" {
		req.DepartmentID = s.defaultDepartment
	}
	if req.ReportedCashCents < 0 {
		return domain.ReconcileResult{}, store.ErrInvalidRequest
	}

	date := strings.TrimSpace(req.Date)
	if date == "" {
		date = time.Now().UTC().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		return domain.ReconcileResult{}, store.ErrInvalidRequest
	}

	actor, _ := ActorFromContext(ctx)
	cashier := actor.Username
	if cashier == "" {
		cashier = "system"
	}

	systemCash, err := s.repo.SumCashSales(ctx, req.DepartmentID, date)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	discrepancy := req.ReportedCashCents - systemCash
	status := domain.ReconStatusPending
	if discrepancy == 0 {
		status = domain.ReconStatusCompleted
	}

	rec := domain.Reconciliation{
		ID:                xid.New("recon"),
		DepartmentID:      req.DepartmentID,
		Date:              date,
		Cashier:           cashier,
		SystemCashCents:   systemCash,
		ReportedCashCents: req.ReportedCashCents,
		DiscrepancyCents:  discrepancy,
		Notes:             strings.TrimSpace(req.Notes),
		Status:            status,
		CreatedAt:         time.Now().UTC(),
	}

	saved, err := s.repo.CreateReconciliation(ctx, rec)
	if err != nil {
		return domain.ReconcileResult{}, err
	}

	result := domain.ReconcileResult{Reconciliation: *saved}

	if discrepancy > 0 {
		_, err := s.repo.CreateSuspendedRevenue(ctx, domain.SuspendedRevenue{
			ID:               xid.New("susp"),
			DepartmentID:     saved.DepartmentID,
			AmountCents:      discrepancy,
			Reason:           fmt.Sprintf("cash surplus from reconciliation on %s", saved.Date),
			ReconciliationID: saved.ID,
			Status:           domain.SuspendedPending,
			CreatedAt:        time.Now().UTC(),
		})
		if err != nil {
			result.Warning = "reconciliation saved but suspended revenue record could not be created"
			log.Printf("[service] WARN: failed to create suspended revenue reconciliation=%s amount=%d: %v", saved.ID, discrepancy, err)
		}
	}

	s.invalidateReports(ctx, saved.DepartmentID)
	s.logAudit(ctx, saved.DepartmentID, "reconcile", "reconciliation", saved.ID, fmt.Sprintf("date=%s,system=%d,reported=%d,discrepancy=%d,status=%s", saved.Date, systemCash, req.ReportedCashCents, discrepancy, status))

	return result, nil
}

// DecideReconciliation resolves a pending reconciliation to approved or
// rejected. Completed reconciliations need no decision and already-decided
// ones cannot be reopened.
func (s *Service) DecideReconciliation(ctx context.Context, reconciliationID string, status string) (domain.Reconciliation, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Reconciliation{}, fmt.Errorf("admin role required")
	}

	reconciliationID = strings.TrimSpace(reconciliationID)
	status = strings.ToLower(strings.TrimSpace(status))
	if reconciliationID == "" {
		return domain.Reconciliation{}, store.ErrInvalidRequest
	}
	if status != domain.ReconStatusApproved && status != domain.ReconStatusRejected {
		return domain.Reconciliation{}, store.ErrInvalidRequest
	}

	decided, err := s.repo.SetReconciliationStatus(ctx, reconciliationID, status, time.Now().UTC())
	if err != nil {
		return domain.Reconciliation{}, err
	}

	s.invalidateReports(ctx, decided.DepartmentID)
	s.logAudit(ctx, decided.DepartmentID, "reconciliation_decide", "reconciliation", decided.ID, fmt.Sprintf("status=%s", status))
	return *decided, nil
}

func (s *Service) ListReconciliations(ctx context.Context, departmentID string, from string, to string, limit int) ([]domain.Reconciliation, error) {
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
	return s.repo.ListReconciliations(ctx, departmentID, from, to, limit)
}

// CreateSuspendedRevenue opens a manual suspense record for cash whose
// origin nobody can explain yet.
func (s *Service) CreateSuspendedRevenue(ctx context.Context, req domain.SuspendedRevenueCreateRequest) (domain.SuspendedRevenue, error) {
	req.Reason = strings.TrimSpace(req.Reason)
	if req.DepartmentID == "" {
		req.DepartmentID = s.defaultDepartment
	}
	if req.AmountCents < 1 || req.Reason == "" {
		return domain.SuspendedRevenue{}, store.ErrInvalidRequest
	}

	saved, err := s.repo.CreateSuspendedRevenue(ctx, domain.SuspendedRevenue{
		ID:           xid.New("susp"),
		DepartmentID: req.DepartmentID,
		AmountCents:  req.AmountCents,
		Reason:       req.Reason,
		Status:       domain.SuspendedPending,
		CreatedAt:    time.Now().UTC(),
	})
	if err != nil {
		return domain.SuspendedRevenue{}, err
	}

	s.invalidateReports(ctx, saved.DepartmentID)
	s.logAudit(ctx, saved.DepartmentID, "suspended_revenue_create", "suspended_revenue", saved.ID, fmt.Sprintf("amount=%d", saved.AmountCents))
	return *saved, nil
}

// UpdateSuspendedRevenue advances a suspense record through its review
// states. explained keeps it open with notes attached; approved and
// rejected close it.
func (s *Service) UpdateSuspendedRevenue(ctx context.Context, id string, req domain.SuspendedRevenueUpdateRequest) (domain.SuspendedRevenue, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.SuspendedRevenue{}, fmt.Errorf("admin role required")
	}

	id = strings.TrimSpace(id)
	status := strings.ToLower(strings.TrimSpace(req.Status))
	if id == "" {
		return domain.SuspendedRevenue{}, store.ErrInvalidRequest
	}
	switch status {
	case domain.SuspendedExplained, domain.SuspendedApproved, domain.SuspendedRejected:
	default:
		return domain.SuspendedRevenue{}, store.ErrInvalidRequest
	}

	updated, err := s.repo.UpdateSuspendedRevenue(ctx, id, status, strings.TrimSpace(req.Notes), time.Now().UTC())
	if err != nil {
		return domain.SuspendedRevenue{}, err
	}

	s.invalidateReports(ctx, updated.DepartmentID)
	s.logAudit(ctx, updated.DepartmentID, "suspended_revenue_update", "suspended_revenue", updated.ID, fmt.Sprintf("status=%s", status))
	return *updated, nil
}

func (s *Service) ListSuspendedRevenue(ctx context.Context, departmentID string, status string, limit int) ([]domain.SuspendedRevenue, error) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}
	if limit < 1 {
		limit = 100
	}
	status = strings.ToLower(strings.TrimSpace(status))
	switch status {
	case "", domain.SuspendedPending, domain.SuspendedExplained, domain.SuspendedApproved, domain.SuspendedRejected:
	default:
		return nil, store.ErrInvalidRequest
	}
	return s.repo.ListSuspendedRevenue(ctx, departmentID, status, limit)
}
