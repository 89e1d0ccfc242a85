package models

import "time"

// PriceInfo is one retailer's latest price point for a product.
type PriceInfo struct {
	Amount     float64   `json:"amount"`
	Currency   string    `json:"currency"`
	Retailer   string    `json:"retailer"`
	Available  bool      `json:"available"`
	StockCount int       `json:"stockCount,omitempty"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Product is a catalog entry as served by the product repository.
type Product struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description"`
	Category    string            `json:"category"`
	Brand       string            `json:"brand,omitempty"`
	Color       string            `json:"color,omitempty"`
	Features    map[string]string `json:"features,omitempty"`
	Prices      []PriceInfo       `json:"prices,omitempty"`
	Reviews     *ReviewSummary    `json:"reviews,omitempty"`
}

// BestPrice returns the cheapest available price, or nil when no price
// is known.
func (p *Product) BestPrice() *PriceInfo {
	var best *PriceInfo
	for i := range p.Prices {
		pr := &p.Prices[i]
		if !pr.Available {
			continue
		}
		if best == nil || pr.Amount < best.Amount {
			best = pr
		}
	}
	return best
}

// PriceRange returns (min, max) over available prices; ok is false when
// no price is known.
func (p *Product) PriceRange() (float64, float64, bool) {
	min, max := 0.0, 0.0
	found := false
	for _, pr := range p.Prices {
		if !pr.Available {
			continue
		}
		if !found {
			min, max = pr.Amount, pr.Amount
			found = true
			continue
		}
		if pr.Amount < min {
			min = pr.Amount
		}
		if pr.Amount > max {
			max = pr.Amount
		}
	}
	return min, max, found
}

// ReviewSummary aggregates review insight for one product.
type ReviewSummary struct {
	AverageRating  float64  `json:"averageRating"`
	TotalReviews   int      `json:"totalReviews"`
	SentimentScore float64  `json:"sentimentScore"`
	PositivePoints []string `json:"positivePoints,omitempty"`
	NegativePoints []string `json:"negativePoints,omitempty"`
	TopKeywords    []string `json:"topKeywords,omitempty"`
}

// RankedProduct is a product with its combined relevance score and the
// reasons it matched, as produced by the merge stage.
type RankedProduct struct {
	Product     Product `json:"product"`
	Score       float64 `json:"score"`
	MatchReason string  `json:"matchReason"`
	Retailer    string  `json:"retailer,omitempty"`
}

// Comparison is the tabular diff built for compare intents.
type Comparison struct {
	ProductIDs     []string            `json:"productIds"`
	Table          map[string][]string `json:"table"`
	WinnerID       string              `json:"winnerId,omitempty"`
	WinnerReason   string              `json:"winnerReason,omitempty"`
	KeyDifferences []string            `json:"keyDifferences,omitempty"`
}
