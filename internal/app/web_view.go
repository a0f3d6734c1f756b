package app

import (
	"cryptodash/internal/market"
	"encoding/json"
	"html/template"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	clientSendBuffer = 32
	wsWriteTimeout   = 10 * time.Second
)

// Replay order for late joiners.
var replaySlots = []string{"active", "loading", "error", "panel:price", "panel:predictions", "panel:sentiment", "chart"}

// wsMessage is one server push. Panels carry pre-rendered HTML, charts carry
// series data in Value.
type wsMessage struct {
	Type  string `json:"type"`
	Slot  string `json:"slot,omitempty"`
	Coin  string `json:"coin,omitempty"`
	HTML  string `json:"html,omitempty"`
	Value any    `json:"value,omitempty"`
}

// clientMessage is what browsers send back.
type clientMessage struct {
	Type string `json:"type"`
	Coin string `json:"coin"`
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

func (c *wsClient) close() {
	c.once.Do(func() {
		close(c.send)
	})
}

// WebView renders dashboard state as HTML fragments and pushes them to
// browsers over websockets. New connections get the latest message of every
// slot. Implements View.
type WebView struct {
	logger    *zap.Logger
	templates *template.Template

	mu        sync.Mutex
	clients   map[*wsClient]struct{}
	latest    map[string][]byte
	onSelect  func(market.Asset)
	onRefresh func()
}

func NewWebView(logger *zap.Logger) *WebView {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebView{
		logger:    logger,
		templates: template.Must(template.New("panels").Parse(panelTemplates)),
		clients:   make(map[*wsClient]struct{}),
		latest:    make(map[string][]byte),
	}
}

// OnSelect sets the callback for coin selections coming from browsers.
func (v *WebView) OnSelect(fn func(market.Asset)) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onSelect = fn
}

// OnRefresh sets the callback for manual refresh requests from browsers.
func (v *WebView) OnRefresh(fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.onRefresh = fn
}

// ChartBackend returns a chart backend that draws in connected browsers.
func (v *WebView) ChartBackend() ChartBackend {
	return &browserChart{view: v}
}

func (v *WebView) SetActive(asset market.Asset) {
	v.publish("active", wsMessage{Type: "active", Coin: asset.String()})
}

func (v *WebView) SetLoading(loading bool) {
	v.publish("loading", wsMessage{Type: "loading", Value: loading})
}

func (v *WebView) ShowError(msg string) {
	v.publish("error", wsMessage{Type: "error", Value: msg})
}

func (v *WebView) ClearError() {
	v.publish("error", wsMessage{Type: "error", Value: ""})
}

func (v *WebView) ShowPrice(panel PricePanel) {
	v.publishPanel("price", panel)
}

func (v *WebView) ShowPredictions(cards []PredictionCard) {
	v.publishPanel("predictions", cards)
}

func (v *WebView) ShowSentiment(panel SentimentPanel) {
	v.publishPanel("sentiment", panel)
}

func (v *WebView) publishPanel(slot string, data any) {
	var sb strings.Builder
	if err := v.templates.ExecuteTemplate(&sb, slot, data); err != nil {
		v.logger.Error("failed to render panel", zap.String("slot", slot), zap.Error(err))
		return
	}
	v.publish("panel:"+slot, wsMessage{Type: "panel", Slot: slot, HTML: sb.String()})
}

// publish stores msg as the latest for slot and fans it out.
func (v *WebView) publish(slot string, msg wsMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		v.logger.Error("failed to marshal ws message", zap.String("type", msg.Type), zap.Error(err))
		return
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if slot != "" {
		v.latest[slot] = data
	}
	v.broadcastLocked(data)
}

func (v *WebView) broadcastLocked(data []byte) {
	for c := range v.clients {
		select {
		case c.send <- data:
		default:
			// Slow client, drop it
			v.logger.Warn("websocket client too slow, disconnecting")
			delete(v.clients, c)
			c.close()
		}
	}
}

// Latest returns the last message stored for slot, for tests and /stats.
func (v *WebView) Latest(slot string) []byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.latest[slot]
}

// ClientCount returns the number of connected browsers.
func (v *WebView) ClientCount() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.clients)
}

// HandleWS upgrades the request and serves one browser until it disconnects.
func (v *WebView) HandleWS(w http.ResponseWriter, req *http.Request) {
	conn, err := wsUpgrader.Upgrade(w, req, nil)
	if err != nil {
		v.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}

	client := &wsClient{
		conn: conn,
		send: make(chan []byte, clientSendBuffer),
	}

	v.mu.Lock()
	for _, slot := range replaySlots {
		if data, ok := v.latest[slot]; ok {
			client.send <- data
		}
	}
	v.clients[client] = struct{}{}
	v.mu.Unlock()

	v.logger.Debug("websocket client connected", zap.String("remote", req.RemoteAddr))

	go v.writeLoop(client)
	v.readLoop(client)
}

func (v *WebView) writeLoop(c *wsClient) {
	defer c.conn.Close()
	for data := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			v.drop(c)
			return
		}
	}
	c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
}

func (v *WebView) readLoop(c *wsClient) {
	defer v.drop(c)
	for {
		var msg clientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return // Client disconnected
		}
		v.handleClientMessage(msg)
	}
}

func (v *WebView) handleClientMessage(msg clientMessage) {
	v.mu.Lock()
	onSelect, onRefresh := v.onSelect, v.onRefresh
	v.mu.Unlock()

	switch msg.Type {
	case "select":
		asset, err := market.ParseAsset(msg.Coin)
		if err != nil {
			v.logger.Warn("ignoring select for unknown coin", zap.String("coin", msg.Coin))
			return
		}
		if onSelect != nil {
			onSelect(asset)
		}
	case "refresh":
		if onRefresh != nil {
			onRefresh()
		}
	default:
		v.logger.Debug("ignoring client message", zap.String("type", msg.Type))
	}
}

func (v *WebView) drop(c *wsClient) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.clients[c]; ok {
		delete(v.clients, c)
		c.close()
	}
}

// Close disconnects every browser.
func (v *WebView) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	for c := range v.clients {
		delete(v.clients, c)
		c.close()
	}
}

// browserChart draws through the lightweight-charts script on the page.
type browserChart struct {
	view *WebView
}

func (b *browserChart) Render(series ChartSeries) error {
	b.view.publish("chart", wsMessage{Type: "chart.render", Coin: series.Coin, Value: series})
	return nil
}

func (b *browserChart) Update(series ChartSeries) error {
	// Late joiners need a full render, existing clients only an update
	render, err := json.Marshal(wsMessage{Type: "chart.render", Coin: series.Coin, Value: series})
	if err != nil {
		return err
	}
	update, err := json.Marshal(wsMessage{Type: "chart.update", Coin: series.Coin, Value: series})
	if err != nil {
		return err
	}

	b.view.mu.Lock()
	defer b.view.mu.Unlock()
	b.view.latest["chart"] = render
	b.view.broadcastLocked(update)
	return nil
}

func (b *browserChart) Destroy() error {
	data, err := json.Marshal(wsMessage{Type: "chart.destroy"})
	if err != nil {
		return err
	}

	b.view.mu.Lock()
	defer b.view.mu.Unlock()
	delete(b.view.latest, "chart")
	b.view.broadcastLocked(data)
	return nil
}

const panelTemplates = `
{{define "price"}}<div class="price-main">{{.Price}}</div>
<div class="price-change {{.ChangeClass}}">{{.Change}}</div>
<div class="price-stats">
  <div class="price-stat"><span class="label">24h Volume</span><span class="value">{{.Volume}}</span></div>
  <div class="price-stat"><span class="label">Market Cap</span><span class="value">{{.MarketCap}}</span></div>
</div>{{end}}

{{define "predictions"}}{{range .}}<div class="prediction-card">
  <div class="prediction-day">{{.Label}}</div>
  <div class="prediction-date">{{.Date}}</div>
  <div class="prediction-price">{{.Price}}</div>
  <div class="prediction-change {{.ChangeClass}}">{{.Change}}</div>
</div>{{end}}{{end}}

{{define "sentiment"}}<div class="sentiment-header">
  <span class="sentiment-score">{{.Score}}</span>
  <span class="sentiment-badge {{.BadgeClass}}">{{.Badge}}</span>
  <span class="sentiment-band" style="color: {{.Band.Color}}">{{.Band.Label}}</span>
</div>
<div class="sentiment-meter"><div class="meter-fill" style="width: {{.ScoreValue}}%; background: {{.Band.Color}}"></div></div>
<div class="sentiment-counts">
  <div class="count positive"><span class="value">{{.Positive}}</span><span class="label">Positive</span></div>
  <div class="count neutral"><span class="value">{{.Neutral}}</span><span class="label">Neutral</span></div>
  <div class="count negative"><span class="value">{{.Negative}}</span><span class="label">Negative</span></div>
</div>
{{if .Summary}}<p class="sentiment-summary">{{.Summary}}</p>{{end}}
<ul class="news-list">{{range .News}}
  <li class="news-item {{.Class}}">
    {{if .URL}}<a class="news-title" href="{{.URL}}" target="_blank" rel="noopener noreferrer">{{.Title}}</a>{{else}}<span class="news-title">{{.Title}}</span>{{end}}
    <div class="news-meta"><span class="news-source">{{.Source}}</span> &middot; <span class="news-time">{{.When}}</span></div>
  </li>{{else}}
  <li class="news-empty">{{$.Placeholder}}</li>{{end}}
</ul>{{end}}
`
