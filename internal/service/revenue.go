package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"dukapos/backend/internal/domain"
	"dukapos/backend/internal/revenue"
	"dukapos/backend/internal/store"
)

// RevenueReport folds every ledger touching a department and date window
// into the adjusted-net-sales figures. The report is pure aggregation
// over persisted rows, so it caches cleanly; writes that change any
// input invalidate the department's cached reports.
func (s *Service) RevenueReport(ctx context.Context, departmentID string, from string, to string) (domain.RevenueReport, error) {
	if departmentID == "" {
		departmentID = s.defaultDepartment
	}

	from = strings.TrimSpace(from)
	to = strings.TrimSpace(to)
	if to == "" {
		to = time.Now().UTC().Format("2006-01-02")
	}
	if from == "" {
		parsed, err := time.Parse("2006-01-02", to)
		if err != nil {
			return domain.RevenueReport{}, store.ErrInvalidRequest
		}
		from = parsed.AddDate(0, 0, -30).Format("2006-01-02")
	}

	fromT, toT, err := parseDateWindow(from, to)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	if !fromT.Before(toT) {
		return domain.RevenueReport{}, store.ErrInvalidRequest
	}

	key := fmt.Sprintf("%s%s:%s", reportKeyPrefix(departmentID), from, to)
	if cached, ok, err := s.reports.Get(ctx, key); err != nil {
		log.Printf("[service] WARN: report cache read failed key=%s: %v", key, err)
	} else if ok {
		return *cached, nil
	}

	gross, err := s.repo.SumSales(ctx, departmentID, fromT, toT)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	byPayment, err := s.repo.SalesTotalsByPayment(ctx, departmentID, fromT, toT)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	credits, err := s.repo.CreditTotals(ctx, departmentID, fromT, toT)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	expenses, err := s.repo.SumExpenses(ctx, departmentID, from, to)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	discrepancies, err := s.repo.SumReconciliationDiscrepancies(ctx, departmentID, from, to)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	suspended, err := s.repo.SumSuspendedRevenue(ctx, departmentID, fromT, toT)
	if err != nil {
		return domain.RevenueReport{}, err
	}
	cogs, coso, err := s.repo.SumLineCosts(ctx, departmentID, fromT, toT)
	if err != nil {
		return domain.RevenueReport{}, err
	}

	figures := revenue.Compute(revenue.Inputs{
		GrossSalesCents:     gross,
		UnsettledInCents:    credits.UnsettledInCents,
		UnsettledOutCents:   credits.UnsettledOutCents,
		SettledInCents:      credits.SettledInCents,
		SettledOutCents:     credits.SettledOutCents,
		ExpenseCents:        expenses,
		ReconciliationCents: discrepancies,
		SuspendedCents:      suspended,
		COGSCents:           cogs,
		COSOCents:           coso,
	})

	report := domain.RevenueReport{
		DepartmentID:                   departmentID,
		From:                           from,
		To:                             to,
		GrossSalesCents:                gross,
		SalesByPayment:                 byPayment,
		UnsettledCreditsInCents:        credits.UnsettledInCents,
		UnsettledCreditsOutCents:       credits.UnsettledOutCents,
		SettledCreditsInCents:          credits.SettledInCents,
		SettledCreditsOutCents:         credits.SettledOutCents,
		ExpenseCents:                   expenses,
		ReconciliationDiscrepancyCents: discrepancies,
		SuspendedRevenueCents:          suspended,
		AdjustedSalesCents:             figures.AdjustedSalesCents,
		COGSCents:                      cogs,
		COSOCents:                      coso,
		GrossProfitCents:               figures.GrossProfitCents,
		AdjustedGrossProfitCents:       figures.AdjustedGrossProfitCents,
		GeneratedAt:                    time.Now().UTC().Format(time.RFC3339),
	}

	if err := s.reports.Set(ctx, key, &report, s.reportTTL); err != nil {
		log.Printf("[service] WARN: report cache write failed key=%s: %v", key, err)
	}

	return report, nil
}
