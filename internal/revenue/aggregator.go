package revenue

// Inputs are the pre-aggregated ledger totals for one department and
// reporting window. The aggregator never touches storage: callers sum the
// ledgers, this package folds the sums.
type Inputs struct {
	GrossSalesCents     int64
	UnsettledInCents    int64
	UnsettledOutCents   int64
	SettledInCents      int64
	SettledOutCents     int64
	ExpenseCents        int64
	ReconciliationCents int64
	SuspendedCents      int64
	COGSCents           int64
	COSOCents           int64
}

type Figures struct {
	AdjustedSalesCents       int64
	GrossProfitCents         int64
	AdjustedGrossProfitCents int64
}

// Compute folds every ledger into the adjusted net-sales figure.
//
// Unsettled credits owed to the department count as revenue earned but not
// yet received; unsettled credits it owes are liabilities. Once a credit
// settles the cash has physically moved, so the adjustment flips sign.
// Reconciliation discrepancies correct the recorded cash toward counted
// cash, and suspended revenue is excluded until its origin is explained.
func Compute(in Inputs) Figures {
	adjusted := in.GrossSalesCents +
		in.UnsettledInCents -
		in.UnsettledOutCents -
		in.SettledInCents +
		in.SettledOutCents -
		in.ExpenseCents +
		in.ReconciliationCents -
		in.SuspendedCents

	grossProfit := in.GrossSalesCents - in.COGSCents - in.COSOCents

	return Figures{
		AdjustedSalesCents:       adjusted,
		GrossProfitCents:         grossProfit,
		AdjustedGrossProfitCents: adjusted - in.COGSCents - in.COSOCents,
	}
}
