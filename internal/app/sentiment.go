package app

import (
	"cryptodash/clients/predictapi"
	"math"
	"strconv"
	"strings"
	"time"
)

const (
	unknownSource = "Unknown Source"
	noNewsText    = "No recent news available"
)

// Band is one step of the sentiment meter.
type Band struct {
	Label string `json:"label"`
	Color string `json:"color"`
}

// Meter bands, lower bound inclusive. Labels and colors match the backend.
var scoreBands = []struct {
	min  float64
	band Band
}{
	{80, Band{"Good", "#00ff00"}},
	{60, Band{"Medium", "#90ee90"}},
	{40, Band{"Average", "#ffb800"}},
	{20, Band{"Bad", "#ff6b00"}},
	{0, Band{"Worst", "#ff0000"}},
}

// ScoreBand maps a 0-100 score onto the five-band meter scale.
func ScoreBand(score float64) Band {
	score = clampScore(score)
	for _, b := range scoreBands {
		if score >= b.min {
			return b.band
		}
	}
	return scoreBands[len(scoreBands)-1].band
}

// BandRank orders bands from worst (0) to best (4). Unknown labels rank -1.
func BandRank(label string) int {
	for i, b := range scoreBands {
		if b.band.Label == label {
			return len(scoreBands) - 1 - i
		}
	}
	return -1
}

// BadgeLabel maps a score onto the compact three-label badge.
func BadgeLabel(score float64) string {
	score = clampScore(score)
	switch {
	case score <= 40:
		return "Negative"
	case score < 60:
		return "Neutral"
	default:
		return "Positive"
	}
}

func clampScore(score float64) float64 {
	if math.IsNaN(score) {
		return 0
	}
	return math.Max(0, math.Min(100, score))
}

// SentimentPanel is the rendered sentiment block.
type SentimentPanel struct {
	Score       string     `json:"score"`
	ScoreValue  float64    `json:"score_value"`
	Band        Band       `json:"band"`
	Badge       string     `json:"badge"`
	BadgeClass  string     `json:"badge_class"`
	Positive    int        `json:"positive"`
	Neutral     int        `json:"neutral"`
	Negative    int        `json:"negative"`
	Summary     string     `json:"summary"`
	News        []NewsItem `json:"news"`
	Placeholder string     `json:"placeholder,omitempty"` // Set when there is no news
}

// NewsItem is one rendered headline. Title is raw text, views escape it.
type NewsItem struct {
	Title     string `json:"title"`
	Source    string `json:"source"`
	When      string `json:"when"`
	Class     string `json:"class"`
	URL       string `json:"url,omitempty"` // Empty when the article is not clickable
	Sentiment string `json:"sentiment"`
}

// RenderSentiment builds the sentiment panel. At most limit articles are
// kept, in response order.
func RenderSentiment(s predictapi.SentimentSnapshot, now time.Time, limit int) SentimentPanel {
	score := clampScore(s.Score)
	badge := BadgeLabel(score)

	panel := SentimentPanel{
		Score:      formatScore(score),
		ScoreValue: score,
		Band:       ScoreBand(score),
		Badge:      badge,
		BadgeClass: strings.ToLower(badge),
		Positive:   s.Positive,
		Neutral:    s.Neutral,
		Negative:   s.Negative,
		Summary:    s.Summary,
	}

	articles := s.Articles
	if limit > 0 && len(articles) > limit {
		articles = articles[:limit]
	}
	if len(articles) == 0 {
		panel.Placeholder = noNewsText
		return panel
	}

	panel.News = make([]NewsItem, 0, len(articles))
	for _, a := range articles {
		panel.News = append(panel.News, NewsItem{
			Title:     a.Title,
			Source:    nz(a.Source, unknownSource),
			When:      RelativeTime(a.PublishedAt, now),
			Class:     newsClass(a.SentimentLabel),
			URL:       articleURL(a.URL),
			Sentiment: nz(a.SentimentLabel, "Neutral"),
		})
	}
	return panel
}

func newsClass(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive":
		return "news-positive"
	case "negative":
		return "news-negative"
	default:
		return "news-neutral"
	}
}

// articleURL drops missing and placeholder links.
func articleURL(u string) string {
	u = strings.TrimSpace(u)
	if u == "" || u == "#" {
		return ""
	}
	return u
}

// formatScore keeps at most one decimal, e.g. "64.5" or "50".
func formatScore(score float64) string {
	return strconv.FormatFloat(math.Round(score*10)/10, 'f', -1, 64)
}
