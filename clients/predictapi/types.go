package predictapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// PriceSnapshot is the current market state of a coin.
type PriceSnapshot struct {
	Price     float64 `json:"price"`
	Change24h float64 `json:"change_24h"`
	Volume    float64 `json:"volume"`
	MarketCap float64 `json:"market_cap"`
}

// HistoricalPoint is one daily OHLC bar, oldest first in a series.
type HistoricalPoint struct {
	Date   time.Time `json:"date"`
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// PredictionPoint is one forecast day.
type PredictionPoint struct {
	Date          time.Time `json:"date"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"change_percent"`
}

// ModelInfo describes the model that produced a forecast.
type ModelInfo struct {
	TrainedDate  string `json:"trained_date"`
	LookbackDays int    `json:"lookback_days"`
}

// Prediction is the forecast block of a response.
type Prediction struct {
	Coin         string            `json:"coin"`
	CurrentPrice float64           `json:"current_price"`
	Predictions  []PredictionPoint `json:"predictions"`
	ModelInfo    ModelInfo         `json:"model_info"`
}

// NewsArticle is a scored headline. PublishedAt is nil when the backend
// omitted it or sent something unparseable.
type NewsArticle struct {
	Title          string     `json:"title"`
	Description    string     `json:"description"`
	Source         string     `json:"source"`
	URL            string     `json:"url"`
	PublishedAt    *time.Time `json:"published_at"`
	SentimentLabel string     `json:"sentiment_label"`
}

// SentimentSnapshot is the news sentiment summary for a coin.
type SentimentSnapshot struct {
	Score         float64       `json:"score"`
	Category      string        `json:"category"`
	Color         string        `json:"color"`
	Positive      int           `json:"positive"`
	Neutral       int           `json:"neutral"`
	Negative      int           `json:"negative"`
	TotalArticles int           `json:"total_articles"`
	Summary       string        `json:"summary"`
	Articles      []NewsArticle `json:"articles"`
}

// AllPayload is the combined /all/{coin} response after validation.
type AllPayload struct {
	Coin       string
	Current    PriceSnapshot
	Historical []HistoricalPoint
	Prediction Prediction
	Sentiment  SentimentSnapshot
}

// PricePayload is the /price/{coin} response after validation.
type PricePayload struct {
	Current    PriceSnapshot
	Historical []HistoricalPoint
}

// TrainRequest is the optional body of POST /train/{coin}.
type TrainRequest struct {
	Epochs    int `json:"epochs,omitempty"`
	BatchSize int `json:"batch_size,omitempty"`
}

// TrainResult is the backend's reply to a training request.
type TrainResult struct {
	Message      string  `json:"message"`
	FinalLoss    float64 `json:"final_loss"`
	FinalValLoss float64 `json:"final_val_loss"`
}

// ---- wire types ----
//
// Wire types use pointers so that absent fields can be told apart from
// zero values. They are converted into the exported types above, and any
// shape mismatch becomes a DecodeError.

type wireEnvelope struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type wireAll struct {
	wireEnvelope
	Coin       string           `json:"coin"`
	Current    *wirePrice       `json:"current"`
	Historical []wireHistorical `json:"historical"`
	Prediction *wirePrediction  `json:"prediction"`
	Sentiment  *wireSentiment   `json:"sentiment"`
}

type wirePriceResponse struct {
	wireEnvelope
	Current    *wirePrice       `json:"current"`
	Historical []wireHistorical `json:"historical"`
}

type wirePredictResponse struct {
	wireEnvelope
	Prediction *wirePrediction `json:"prediction"`
}

type wireSentimentResponse struct {
	wireEnvelope
	Sentiment *wireSentiment `json:"sentiment"`
}

type wireTrainResponse struct {
	wireEnvelope
	TrainResult
}

type wirePrice struct {
	Price     *float64 `json:"price"`
	Change24h float64  `json:"change_24h"`
	Volume    float64  `json:"volume"`
	MarketCap float64  `json:"market_cap"`
}

type wireHistorical struct {
	Date   flexTime `json:"date"`
	Open   float64  `json:"open"`
	High   float64  `json:"high"`
	Low    float64  `json:"low"`
	Close  float64  `json:"close"`
	Volume float64  `json:"volume"`
}

type wirePredictionPoint struct {
	Date          flexTime `json:"date"`
	Price         *float64 `json:"price"`
	ChangePercent float64  `json:"change_percent"`
}

type wirePrediction struct {
	Coin         string                `json:"coin"`
	CurrentPrice float64               `json:"current_price"`
	Predictions  []wirePredictionPoint `json:"predictions"`
	ModelInfo    ModelInfo             `json:"model_info"`
}

type wireArticle struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Source         string   `json:"source"`
	URL            string   `json:"url"`
	PublishedAt    flexTime `json:"published_at"`
	SentimentLabel string   `json:"sentiment_label"`
}

type wireSentiment struct {
	Score         *float64      `json:"score"`
	Category      string        `json:"category"`
	Color         string        `json:"color"`
	Positive      int           `json:"positive"`
	Neutral       int           `json:"neutral"`
	Negative      int           `json:"negative"`
	TotalArticles int           `json:"total_articles"`
	Summary       string        `json:"summary"`
	Articles      []wireArticle `json:"articles"`
}

func (w *wirePrice) toSnapshot() (PriceSnapshot, error) {
	if w == nil {
		return PriceSnapshot{}, errors.New("missing current price")
	}
	if w.Price == nil {
		return PriceSnapshot{}, errors.New("current.price missing")
	}
	if err := finite("current", *w.Price, w.Change24h, w.Volume, w.MarketCap); err != nil {
		return PriceSnapshot{}, err
	}
	return PriceSnapshot{
		Price:     *w.Price,
		Change24h: w.Change24h,
		Volume:    w.Volume,
		MarketCap: w.MarketCap,
	}, nil
}

func toHistorical(in []wireHistorical) ([]HistoricalPoint, error) {
	out := make([]HistoricalPoint, 0, len(in))
	for i, h := range in {
		if h.Date.Time == nil {
			return nil, fmt.Errorf("historical[%d]: invalid date %q", i, h.Date.Raw)
		}
		if err := finite(fmt.Sprintf("historical[%d]", i), h.Open, h.High, h.Low, h.Close, h.Volume); err != nil {
			return nil, err
		}
		out = append(out, HistoricalPoint{
			Date:   *h.Date.Time,
			Open:   h.Open,
			High:   h.High,
			Low:    h.Low,
			Close:  h.Close,
			Volume: h.Volume,
		})
	}
	return out, nil
}

func (w *wirePrediction) toPrediction() (Prediction, error) {
	if w == nil {
		return Prediction{}, errors.New("missing prediction")
	}
	points := make([]PredictionPoint, 0, len(w.Predictions))
	for i, p := range w.Predictions {
		if p.Date.Time == nil {
			return Prediction{}, fmt.Errorf("prediction[%d]: invalid date %q", i, p.Date.Raw)
		}
		if p.Price == nil {
			return Prediction{}, fmt.Errorf("prediction[%d]: price missing", i)
		}
		if err := finite(fmt.Sprintf("prediction[%d]", i), *p.Price, p.ChangePercent); err != nil {
			return Prediction{}, err
		}
		points = append(points, PredictionPoint{
			Date:          *p.Date.Time,
			Price:         *p.Price,
			ChangePercent: p.ChangePercent,
		})
	}
	return Prediction{
		Coin:         w.Coin,
		CurrentPrice: w.CurrentPrice,
		Predictions:  points,
		ModelInfo:    w.ModelInfo,
	}, nil
}

func (w *wireSentiment) toSnapshot() (SentimentSnapshot, error) {
	if w == nil {
		return SentimentSnapshot{}, errors.New("missing sentiment")
	}
	if w.Score == nil {
		return SentimentSnapshot{}, errors.New("sentiment.score missing")
	}
	if err := finite("sentiment", *w.Score); err != nil {
		return SentimentSnapshot{}, err
	}
	if w.Positive < 0 || w.Neutral < 0 || w.Negative < 0 {
		return SentimentSnapshot{}, errors.New("sentiment counts must be non-negative")
	}

	articles := make([]NewsArticle, 0, len(w.Articles))
	for _, a := range w.Articles {
		articles = append(articles, NewsArticle{
			Title:          a.Title,
			Description:    a.Description,
			Source:         a.Source,
			URL:            a.URL,
			PublishedAt:    a.PublishedAt.Time,
			SentimentLabel: a.SentimentLabel,
		})
	}

	return SentimentSnapshot{
		Score:         *w.Score,
		Category:      w.Category,
		Color:         w.Color,
		Positive:      w.Positive,
		Neutral:       w.Neutral,
		Negative:      w.Negative,
		TotalArticles: w.TotalArticles,
		Summary:       w.Summary,
		Articles:      articles,
	}, nil
}

func finite(field string, vals ...float64) error {
	for _, v := range vals {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s: non-finite number", field)
		}
	}
	return nil
}

// flexTime accepts the date encodings seen from the backend: plain dates,
// RFC3339, naive ISO datetimes (local time) and unix seconds. Time stays nil
// for null, empty or unparseable input; Raw keeps the original text.
type flexTime struct {
	Time *time.Time
	Raw  string
}

var naiveLayouts = []string{
	"2006-01-02",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (f *flexTime) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" || s == "" {
		return nil
	}

	if s[0] != '"' {
		f.Raw = s
		if secs, err := strconv.ParseFloat(s, 64); err == nil && secs > 0 {
			t := time.Unix(int64(secs), 0)
			f.Time = &t
		}
		return nil
	}

	var str string
	if err := json.Unmarshal(data, &str); err != nil {
		return err
	}
	f.Raw = str
	f.Time = parseTime(str)
	return nil
}

func parseTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return &t
	}
	for _, layout := range naiveLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return &t
		}
	}
	return nil
}
