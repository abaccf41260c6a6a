package recommendation

import (
	"sort"
	"strings"

	"dukapos/backend/internal/domain"
)

// Engine ranks scents from the catalog for a customer ordering a custom
// blend. Scoring blends the customer's saved favorites with stock health
// and margin, so the counter steers customers toward scents the shop can
// actually pour and wants to sell.
type Engine struct {
	minScore float64
}

func NewEngine() *Engine {
	return &Engine{minScore: 0.30}
}

func (e *Engine) SuggestScents(pref domain.CustomerPreference, catalog []domain.Product, limit int) []domain.ScentSuggestion {
	if limit < 1 {
		limit = 3
	}

	favorites := make(map[string]struct{}, len(pref.ScentNames))
	for _, name := range pref.ScentNames {
		favorites[normalizeScentName(name)] = struct{}{}
	}

	suggestions := make([]domain.ScentSuggestion, 0, limit)
	for _, product := range catalog {
		if !product.Active || product.TrackingType != domain.TrackML {
			continue
		}
		if product.StockML <= 0 {
			continue
		}

		favoriteScore := 0.0
		if _, ok := favorites[normalizeScentName(product.Name)]; ok {
			favoriteScore = 1.0
		}
		stockScore := clamp(product.StockML/1000.0, 0, 1)
		marginScore := 0.0
		if product.RetailPriceCents > 0 {
			marginScore = clamp(float64(product.RetailPriceCents-product.CostPriceCents)/float64(product.RetailPriceCents), 0, 1)
		}

		score := 0.50*favoriteScore + 0.30*stockScore + 0.20*marginScore
		if score < e.minScore {
			continue
		}

		suggestions = append(suggestions, domain.ScentSuggestion{
			ProductID:       product.ID,
			ScentName:       product.Name,
			PricePerMLCents: product.RetailPriceCents,
			StockML:         product.StockML,
			ReasonCode:      deriveReason(favoriteScore, stockScore, marginScore),
			Score:           round2(score),
		})
	}

	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Score != suggestions[j].Score {
			return suggestions[i].Score > suggestions[j].Score
		}
		return suggestions[i].ScentName < suggestions[j].ScentName
	})

	if len(suggestions) > limit {
		suggestions = suggestions[:limit]
	}
	return suggestions
}

func deriveReason(favoriteScore float64, stockScore float64, marginScore float64) string {
	type reasonWeight struct {
		code  string
		value float64
	}

	reasons := []reasonWeight{
		{code: "saved_favorite", value: favoriteScore},
		{code: "healthy_stock", value: stockScore},
		{code: "strong_margin", value: marginScore},
	}

	sort.SliceStable(reasons, func(i, j int) bool {
		return reasons[i].value > reasons[j].value
	})
	return reasons[0].code
}

func normalizeScentName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func clamp(val float64, minVal float64, maxVal float64) float64 {
	if val < minVal {
		return minVal
	}
	if val > maxVal {
		return maxVal
	}
	return val
}

func round2(val float64) float64 {
	return float64(int(val*100+0.5)) / 100
}
