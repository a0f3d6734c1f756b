package app

import (
	"cryptodash/clients/predictapi"
	"cryptodash/internal/market"
	"fmt"
)

// PricePanel is the rendered current-price block.
type PricePanel struct {
	Price       string `json:"price"`
	Change      string `json:"change"`
	ChangeClass string `json:"change_class"`
	Volume      string `json:"volume"`
	MarketCap   string `json:"market_cap"`
}

// PredictionCard is one rendered forecast day.
type PredictionCard struct {
	Label       string `json:"label"` // "Day N"
	Date        string `json:"date"`
	Price       string `json:"price"`
	Change      string `json:"change"`
	ChangeClass string `json:"change_class"`
}

// RenderPrice builds the price panel from a fresh snapshot.
func RenderPrice(s predictapi.PriceSnapshot) PricePanel {
	return PricePanel{
		Price:       formatUSD(s.Price),
		Change:      market.FormatChange(s.Change24h),
		ChangeClass: market.ChangeClass(s.Change24h),
		Volume:      formatUSDLarge(s.Volume),
		MarketCap:   formatUSDLarge(s.MarketCap),
	}
}

// RenderPredictions builds one card per forecast point, in response order.
func RenderPredictions(points []predictapi.PredictionPoint) []PredictionCard {
	cards := make([]PredictionCard, 0, len(points))
	for i, p := range points {
		cards = append(cards, PredictionCard{
			Label:       fmt.Sprintf("Day %d", i+1),
			Date:        p.Date.Format("Jan 2"),
			Price:       formatUSD(p.Price),
			Change:      market.FormatChange(p.ChangePercent),
			ChangeClass: market.ChangeClass(p.ChangePercent),
		})
	}
	return cards
}
