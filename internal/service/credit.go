package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/store"
	"dukapos/backend/internal/xid"
)

// CreateCredit records a directed IOU between two departments. It starts
// pending approval and unsettled; both axes advance independently.
func (s *Service) CreateCredit(ctx context.Context, req domain.CreditCreateRequest) (domain.Credit, error) {
	req.FromDepartment = strings.TrimSpace(req.FromDepartment)
	req.ToDepartment = strings.TrimSpace(req.ToDepartment)
	req.Purpose = strings.TrimSpace(req.Purpose)
	req.TransactionType = strings.TrimSpace(req.TransactionType)

	if req.FromDepartment == "" || req.ToDepartment == "" {
		return domain.Credit{}, store.ErrInvalidRequest
	}
	if req.FromDepartment == req.ToDepartment {
		return domain.Credit{}, store.ErrInvalidRequest
	}
	if req.AmountCents < 1 {
		return domain.Credit{}, store.ErrInvalidRequest
	}
	if req.TransactionType == "" {
		req.TransactionType = "loan"
	}

	credit := domain.Credit{
		ID:               xid.New("credit"),
		FromDepartment:   req.FromDepartment,
		ToDepartment:     req.ToDepartment,
		AmountCents:      req.AmountCents,
		Purpose:          req.Purpose,
		TransactionType:  req.TransactionType,
		ApprovalStatus:   domain.ApprovalPending,
		SettlementStatus: domain.SettlementUnsettled,
		CreatedAt:        time.Now().UTC(),
	}

	saved, err := s.repo.CreateCredit(ctx, credit)
	if err != nil {
		return domain.Credit{}, err
	}

	s.invalidateReports(ctx, saved.FromDepartment)
	s.invalidateReports(ctx, saved.ToDepartment)
	s.logAudit(ctx, saved.FromDepartment, "credit_create", "credit", saved.ID, fmt.Sprintf("to=%s,amount=%d,type=%s", saved.ToDepartment, saved.AmountCents, saved.TransactionType))
	return *saved, nil
}

// DecideCredit moves a pending credit to approved or rejected. The
// decision is final: a second decision on the same credit fails.
func (s *Service) DecideCredit(ctx context.Context, creditID string, status string) (domain.Credit, error) {
	actor, ok := ActorFromContext(ctx)
	if !ok || actor.Role != "admin" {
		return domain.Credit{}, fmt.Errorf("admin role required")
	}

	creditID = strings.TrimSpace(creditID)
	status = strings.ToLower(strings.TrimSpace(status))
	if creditID == "" {
		return domain.Credit{}, store.ErrInvalidRequest
	}
	if status != domain.ApprovalApproved && status != domain.ApprovalRejected {
		return domain.Credit{}, store.ErrInvalidRequest
	}

	decided, err := s.repo.SetCreditApproval(ctx, creditID, status, actor.Username, time.Now().UTC())
	if err != nil {
		return domain.Credit{}, err
	}

	s.invalidateReports(ctx, decided.FromDepartment)
	s.invalidateReports(ctx, decided.ToDepartment)
	s.logAudit(ctx, decided.FromDepartment, "credit_decide", "credit", decided.ID, fmt.Sprintf("status=%s", status))
	return *decided, nil
}

// SettleCredit marks an approved credit as paid back. Settlement requires
// prior approval and happens at most once.
func (s *Service) SettleCredit(ctx context.Context, creditID string) (domain.Credit, error) {
	creditID = strings.TrimSpace(creditID)
	if creditID == "" {
		return domain.Credit{}, store.ErrInvalidRequest
	}

	settled, err := s.repo.SettleCredit(ctx, creditID, time.Now().UTC())
	if err != nil {
		return domain.Credit{}, err
	}

	s.invalidateReports(ctx, settled.FromDepartment)
	s.invalidateReports(ctx, settled.ToDepartment)
	s.logAudit(ctx, settled.FromDepartment, "credit_settle", "credit", settled.ID, fmt.Sprintf("amount=%d", settled.AmountCents))
	return *settled, nil
}

func (s *Service) GetCredit(ctx context.Context, creditID string) (domain.Credit, error) {
	creditID = strings.TrimSpace(creditID)
	if creditID == "" {
		return domain.Credit{}, store.ErrInvalidRequest
	}
	credit, err := s.repo.GetCreditByID(ctx, creditID)
	if err != nil {
		return domain.Credit{}, err
	}
	return *credit, nil
}

func (s *Service) ListCredits(ctx context.Context, departmentID string, approvalStatus string, counterpart string, from string, to string, limit int) ([]domain.Credit, error) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}
	if limit < 1 {
		limit = 100
	}

	approvalStatus = strings.ToLower(strings.TrimSpace(approvalStatus))
	switch approvalStatus {
	case "", domain.ApprovalPending, domain.ApprovalApproved, domain.ApprovalRejected:
	default:
		return nil, store.ErrInvalidRequest
	}

	fromT, toT, err := parseDateWindow(from, to)
	if err != nil {
		return nil, err
	}

	return s.repo.ListCredits(ctx, domain.CreditFilter{
		DepartmentID:   departmentID,
		ApprovalStatus: approvalStatus,
		Counterpart:    strings.TrimSpace(counterpart),
		From:           fromT,
		To:             toT,
	}, limit)
}

func (s *Service) CreditTotals(ctx context.Context, departmentID string, from string, to string) (domain.CreditTotals, error) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}
	fromT, toT, err := parseDateWindow(from, to)
	if err != nil {
		return domain.CreditTotals{}, err
	}
	return s.repo.CreditTotals(ctx, departmentID, fromT, toT)
}
