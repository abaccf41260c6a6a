package revenue

import "testing"

func TestComputeAdjustedSales(t *testing.T) {
	figures := Compute(Inputs{
		GrossSalesCents:     100_000,
		UnsettledInCents:    10_000,
		UnsettledOutCents:   4_000,
		SettledInCents:      2_000,
		SettledOutCents:     6_000,
		ExpenseCents:        3_000,
		ReconciliationCents: -500,
		SuspendedCents:      1_000,
	})

	if figures.AdjustedSalesCents != 105_500 {
		t.Fatalf("adjusted sales = %d, want 105500", figures.AdjustedSalesCents)
	}
}

func TestComputeZeroInputs(t *testing.T) {
	figures := Compute(Inputs{})
	if figures.AdjustedSalesCents != 0 || figures.GrossProfitCents != 0 || figures.AdjustedGrossProfitCents != 0 {
		t.Fatalf("expected all-zero figures, got %+v", figures)
	}
}

func TestComputeProfit(t *testing.T) {
	figures := Compute(Inputs{
		GrossSalesCents: 80_000,
		ExpenseCents:    5_000,
		COGSCents:       30_000,
		COSOCents:       2_500,
	})

	if figures.GrossProfitCents != 47_500 {
		t.Fatalf("gross profit = %d, want 47500", figures.GrossProfitCents)
	}
	if figures.AdjustedSalesCents != 75_000 {
		t.Fatalf("adjusted sales = %d, want 75000", figures.AdjustedSalesCents)
	}
	if figures.AdjustedGrossProfitCents != 42_500 {
		t.Fatalf("adjusted gross profit = %d, want 42500", figures.AdjustedGrossProfitCents)
	}
}

func TestComputeNegativeAdjustedAllowed(t *testing.T) {
	// An all-credit day with heavy expenses can legitimately go negative;
	// the aggregator reports it rather than clamping.
	figures := Compute(Inputs{
		GrossSalesCents:   10_000,
		UnsettledOutCents: 8_000,
		ExpenseCents:      9_000,
	})
	if figures.AdjustedSalesCents != -7_000 {
		t.Fatalf("adjusted sales = %d, want -7000", figures.AdjustedSalesCents)
	}
}
