package predictapi

import (
	"context"
	"cryptodash/config"
	"cryptodash/internal/market"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Client talks to the price-prediction backend.
type Client struct {
	logger  *zap.Logger
	http    *resty.Client
	limiter *rate.Limiter
	baseURL string
}

func NewClient(logger *zap.Logger, cfg *config.Config) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}

	timeout := cfg.Backend.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	limit := rate.Inf
	burst := cfg.Backend.Burst
	if cfg.Backend.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.Backend.RequestsPerSecond)
	}
	if burst < 1 {
		burst = 1
	}

	baseURL := strings.TrimRight(cfg.Backend.BaseURL, "/")

	httpClient := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeaders(map[string]string{
			"Accept":     "application/json",
			"User-Agent": "cryptodash/1.0",
		})

	return &Client{
		logger:  logger,
		http:    httpClient,
		limiter: rate.NewLimiter(limit, burst),
		baseURL: baseURL,
	}
}

// GetAll fetches the combined price, history, forecast and sentiment payload.
func (c *Client) GetAll(ctx context.Context, asset market.Asset) (*AllPayload, error) {
	const op = "get all"

	body, err := c.do(ctx, op, http.MethodGet, coinPath("all", asset), nil)
	if err != nil {
		return nil, err
	}

	var w wireAll
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if !w.Success {
		return nil, &BackendError{Op: op, Message: w.Error}
	}

	current, err := w.Current.toSnapshot()
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	historical, err := toHistorical(w.Historical)
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	prediction, err := w.Prediction.toPrediction()
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	sentiment, err := w.Sentiment.toSnapshot()
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}

	return &AllPayload{
		Coin:       w.Coin,
		Current:    current,
		Historical: historical,
		Prediction: prediction,
		Sentiment:  sentiment,
	}, nil
}

// GetPrice fetches the current price and recent daily history.
func (c *Client) GetPrice(ctx context.Context, asset market.Asset) (*PricePayload, error) {
	const op = "get price"

	body, err := c.do(ctx, op, http.MethodGet, coinPath("price", asset), nil)
	if err != nil {
		return nil, err
	}

	var w wirePriceResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if !w.Success {
		return nil, &BackendError{Op: op, Message: w.Error}
	}

	current, err := w.Current.toSnapshot()
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	historical, err := toHistorical(w.Historical)
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}

	return &PricePayload{Current: current, Historical: historical}, nil
}

// GetPrediction fetches the 3-day forecast.
func (c *Client) GetPrediction(ctx context.Context, asset market.Asset) (*Prediction, error) {
	const op = "get prediction"

	body, err := c.do(ctx, op, http.MethodGet, coinPath("predict", asset), nil)
	if err != nil {
		return nil, err
	}

	var w wirePredictResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if !w.Success {
		return nil, &BackendError{Op: op, Message: w.Error}
	}

	prediction, err := w.Prediction.toPrediction()
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return &prediction, nil
}

// GetSentiment fetches the news sentiment snapshot.
func (c *Client) GetSentiment(ctx context.Context, asset market.Asset) (*SentimentSnapshot, error) {
	const op = "get sentiment"

	body, err := c.do(ctx, op, http.MethodGet, coinPath("sentiment", asset), nil)
	if err != nil {
		return nil, err
	}

	var w wireSentimentResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if !w.Success {
		return nil, &BackendError{Op: op, Message: w.Error}
	}

	sentiment, err := w.Sentiment.toSnapshot()
	if err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	return &sentiment, nil
}

// Train asks the backend to (re)train the model for a coin. Training is slow,
// so callers should pass a context with a generous deadline.
func (c *Client) Train(ctx context.Context, asset market.Asset, req TrainRequest) (*TrainResult, error) {
	const op = "train"

	body, err := c.do(ctx, op, http.MethodPost, coinPath("train", asset), req)
	if err != nil {
		return nil, err
	}

	var w wireTrainResponse
	if err := json.Unmarshal(body, &w); err != nil {
		return nil, &DecodeError{Op: op, Err: err}
	}
	if !w.Success {
		return nil, &BackendError{Op: op, Message: w.Error}
	}
	return &w.TrainResult, nil
}

// do performs a request and returns the body of a 2xx response.
func (c *Client) do(ctx context.Context, op, method, path string, payload any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	req := c.http.R().SetContext(ctx)
	if payload != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(payload)
	}

	start := time.Now()
	resp, err := req.Execute(method, path)
	if err != nil {
		c.logger.Debug("backend request failed",
			zap.String("op", op),
			zap.String("path", path),
			zap.Error(err),
		)
		return nil, &TransportError{Op: op, Err: err}
	}

	c.logger.Debug("backend request",
		zap.String("op", op),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode()),
		zap.Duration("took", time.Since(start)),
	)

	if !resp.IsSuccess() {
		return nil, &StatusError{
			Op:         op,
			StatusCode: resp.StatusCode(),
			Message:    errorMessage(resp.Body()),
		}
	}

	return resp.Body(), nil
}

func coinPath(endpoint string, asset market.Asset) string {
	return "/" + endpoint + "/" + url.PathEscape(asset.BackendSymbol())
}

// errorMessage pulls the backend's {"error": "..."} text out of a failed
// response, falling back to a trimmed copy of the raw body.
func errorMessage(body []byte) string {
	var env wireEnvelope
	if err := json.Unmarshal(body, &env); err == nil && env.Error != "" {
		return env.Error
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

// TransportError covers network failures, DNS errors and timeouts.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: transport: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("%s: status %d: %s", e.Op, e.StatusCode, e.Message)
}

// DecodeError is a malformed body or a payload missing required fields.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: decode: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// BackendError is a 2xx response with success=false.
type BackendError struct {
	Op      string
	Message string
}

func (e *BackendError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: backend reported failure", e.Op)
	}
	return fmt.Sprintf("%s: backend reported failure: %s", e.Op, e.Message)
}
