package app

import (
	"cryptodash/internal/market"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocket upgrader for dashboard pushes
var wsUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// routes builds the dashboard mux.
func (r *Runner) routes() *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// JSON stats endpoint
	mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, r.GetStats())
	})

	// Coin selection from scripts or curl
	mux.HandleFunc("POST /api/select/{coin}", func(w http.ResponseWriter, req *http.Request) {
		asset, err := market.ParseAsset(req.PathValue("coin"))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]any{
				"success": false,
				"error":   err.Error(),
			})
			return
		}
		r.selectAsync(asset)
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"coin":    asset.String(),
		})
	})

	mux.HandleFunc("POST /api/refresh", func(w http.ResponseWriter, _ *http.Request) {
		r.refreshAsync()
		writeJSON(w, http.StatusAccepted, map[string]any{
			"success": true,
			"coin":    r.dashboard.Current().String(),
		})
	})

	mux.HandleFunc("GET /api/coins", func(w http.ResponseWriter, _ *http.Request) {
		coins := make([]coinInfo, 0, len(market.Assets()))
		for _, a := range market.Assets() {
			coins = append(coins, coinInfo{Symbol: a.String(), BackendSymbol: a.BackendSymbol()})
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"coins":  coins,
			"active": r.dashboard.Current(),
		})
	})

	// WebSocket endpoint for dashboard updates
	if r.web != nil {
		mux.HandleFunc("/ws", r.web.HandleWS)
	}

	// HTML dashboard
	mux.HandleFunc("/", func(w http.ResponseWriter, req *http.Request) {
		if req.URL.Path != "/" {
			http.NotFound(w, req)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(dashboardHTML))
	})

	return mux
}

// startHealthServer starts the HTTP server for the dashboard, health checks
// and stats.
func (r *Runner) startHealthServer(port int) {
	r.healthServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: r.routes(),
	}

	r.logger.Info("dashboard server listening", zap.Int("port", port))

	go func() {
		if err := r.healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.logger.Error("health server error", zap.Error(err))
		}
	}()
}

// coinInfo is one entry of GET /api/coins.
type coinInfo struct {
	Symbol        string `json:"symbol"`
	BackendSymbol string `json:"backend_symbol"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

const dashboardHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>cryptodash</title>
    <script src="https://unpkg.com/lightweight-charts@4.1.3/dist/lightweight-charts.standalone.production.js"></script>
    <style>
        :root {
            --bg-primary: #0d1117;
            --bg-secondary: #161b22;
            --bg-tertiary: #21262d;
            --border-color: #30363d;
            --text-primary: #c9d1d9;
            --text-secondary: #8b949e;
            --text-heading: #f0f6fc;
            --accent-blue: #58a6ff;
            --accent-green: #3fb950;
            --accent-red: #f85149;
            --accent-yellow: #d29922;
            --accent-purple: #a371f7;
        }
        * { box-sizing: border-box; margin: 0; padding: 0; }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, monospace;
            background: var(--bg-primary);
            color: var(--text-primary);
            padding: 20px;
            line-height: 1.5;
        }
        h1 { color: var(--accent-blue); font-size: 24px; }
        h2 { color: var(--text-secondary); font-size: 14px; text-transform: uppercase; margin-bottom: 10px; letter-spacing: 1px; }
        .header { display: flex; justify-content: space-between; align-items: center; margin-bottom: 20px; flex-wrap: wrap; gap: 10px; }
        .header-controls { display: flex; align-items: center; gap: 15px; }
        .status { display: flex; align-items: center; gap: 8px; color: var(--text-secondary); font-size: 13px; }
        .status-dot { width: 10px; height: 10px; border-radius: 50%; }
        .status-dot.connected { background: var(--accent-green); }
        .status-dot.disconnected { background: var(--accent-red); animation: blink 1s infinite; }
        @keyframes blink { 50% { opacity: 0.5; } }
        .tabs { display: flex; gap: 8px; margin-bottom: 20px; flex-wrap: wrap; }
        .tab, .refresh-btn {
            background: var(--bg-tertiary);
            border: 1px solid var(--border-color);
            border-radius: 20px;
            padding: 6px 16px;
            cursor: pointer;
            color: var(--text-primary);
            font-size: 14px;
        }
        .tab:hover, .refresh-btn:hover { border-color: var(--accent-blue); }
        .tab.active { background: var(--accent-blue); color: var(--bg-primary); font-weight: 600; }
        .grid { display: grid; grid-template-columns: repeat(auto-fit, minmax(320px, 1fr)); gap: 20px; }
        .card { background: var(--bg-secondary); border: 1px solid var(--border-color); border-radius: 8px; padding: 16px; }
        .card.wide { grid-column: 1 / -1; }
        #loading { display: none; color: var(--accent-yellow); margin-bottom: 12px; }
        #loading.visible { display: block; }
        #error { display: none; background: #f8514922; border: 1px solid var(--accent-red); color: var(--accent-red); border-radius: 6px; padding: 10px 14px; margin-bottom: 16px; }
        #error.visible { display: block; }
        .positive { color: var(--accent-green); }
        .negative { color: var(--accent-red); }
        .neutral { color: var(--text-secondary); }
        .price-main { font-size: 36px; font-weight: bold; color: var(--text-heading); }
        .price-change { font-size: 18px; margin-bottom: 12px; }
        .price-stats { display: flex; gap: 24px; }
        .price-stat { display: flex; flex-direction: column; }
        .label { color: var(--text-secondary); font-size: 12px; }
        .value { color: var(--text-heading); font-weight: 600; }
        #chart { height: 400px; }
        #predictions-panel { display: grid; grid-template-columns: repeat(auto-fit, minmax(120px, 1fr)); gap: 10px; }
        .prediction-card { background: var(--bg-tertiary); border-radius: 6px; padding: 10px; text-align: center; }
        .prediction-day { color: var(--accent-purple); font-weight: 600; }
        .prediction-date { color: var(--text-secondary); font-size: 12px; }
        .prediction-price { color: var(--text-heading); font-size: 18px; font-weight: 600; }
        .sentiment-header { display: flex; align-items: baseline; gap: 12px; margin-bottom: 8px; }
        .sentiment-score { font-size: 32px; font-weight: bold; color: var(--text-heading); }
        .sentiment-badge { padding: 2px 10px; border-radius: 12px; font-size: 12px; background: var(--bg-tertiary); }
        .sentiment-band { font-weight: 600; }
        .sentiment-meter { height: 8px; background: var(--bg-tertiary); border-radius: 4px; overflow: hidden; margin-bottom: 12px; }
        .meter-fill { height: 100%; transition: width 0.3s; }
        .sentiment-counts { display: flex; gap: 20px; margin-bottom: 12px; }
        .count { display: flex; flex-direction: column; align-items: center; }
        .count .value { font-size: 20px; }
        .sentiment-summary { color: var(--text-secondary); font-size: 14px; margin-bottom: 12px; }
        .news-list { list-style: none; }
        .news-item { background: var(--bg-tertiary); padding: 10px 12px; border-radius: 6px; margin-bottom: 8px; border-left: 3px solid var(--text-secondary); }
        .news-item.news-positive { border-left-color: var(--accent-green); }
        .news-item.news-negative { border-left-color: var(--accent-red); }
        .news-title { color: var(--text-heading); text-decoration: none; font-size: 14px; }
        a.news-title:hover { text-decoration: underline; }
        .news-meta { color: var(--text-secondary); font-size: 12px; }
        .news-empty { color: var(--text-secondary); font-style: italic; }
        .footer { margin-top: 30px; padding: 20px; text-align: center; border-top: 1px solid var(--border-color); color: var(--text-secondary); font-size: 13px; }
        .footer a { color: var(--accent-blue); text-decoration: none; }
    </style>
</head>
<body>
    <div class="header">
        <h1>cryptodash</h1>
        <div class="header-controls">
            <button class="refresh-btn" id="refresh">Refresh</button>
            <div class="status"><span class="status-dot disconnected" id="status-dot"></span><span id="status-text">Connecting...</span></div>
        </div>
    </div>

    <div class="tabs" id="tabs">
        <button class="tab" data-coin="BTC">BTC</button>
        <button class="tab" data-coin="ETH">ETH</button>
        <button class="tab" data-coin="SOL">SOL</button>
        <button class="tab" data-coin="BNB">BNB</button>
        <button class="tab" data-coin="DOGE">DOGE</button>
    </div>

    <div id="loading">Loading...</div>
    <div id="error"></div>

    <div class="grid">
        <div class="card"><h2>Price</h2><div id="price-panel"></div></div>
        <div class="card"><h2>Sentiment</h2><div id="sentiment-panel"></div></div>
        <div class="card wide"><h2>Price History &amp; Forecast</h2><div id="chart"></div></div>
        <div class="card wide"><h2>Forecast</h2><div id="predictions-panel"></div></div>
    </div>

    <div class="footer"><a href="/stats">stats</a> &middot; <a href="/health">health</a></div>

    <script>
        let ws = null;
        let chart = null;
        let candleSeries = null;
        let forecastSeries = null;
        let resizeObserver = null;

        function css(name) {
            return getComputedStyle(document.documentElement).getPropertyValue(name).trim();
        }

        function destroyChart() {
            if (resizeObserver) {
                resizeObserver.disconnect();
                resizeObserver = null;
            }
            if (chart) {
                chart.remove();
                chart = null;
                candleSeries = null;
                forecastSeries = null;
            }
        }

        function renderChart(series) {
            destroyChart();
            const el = document.getElementById('chart');
            chart = LightweightCharts.createChart(el, {
                height: 400,
                layout: { background: { color: css('--bg-secondary') }, textColor: css('--text-primary') },
                grid: { vertLines: { color: css('--bg-tertiary') }, horzLines: { color: css('--bg-tertiary') } },
                timeScale: { borderColor: css('--border-color') },
                rightPriceScale: { borderColor: css('--border-color') },
            });
            candleSeries = chart.addCandlestickSeries({
                upColor: css('--accent-green'), downColor: css('--accent-red'),
                borderVisible: false,
                wickUpColor: css('--accent-green'), wickDownColor: css('--accent-red'),
            });
            forecastSeries = chart.addLineSeries({
                color: css('--accent-purple'), lineWidth: 2, lineStyle: LightweightCharts.LineStyle.Dashed,
            });
            updateChart(series);
            resizeObserver = new ResizeObserver(() => chart && chart.applyOptions({ width: el.clientWidth }));
            resizeObserver.observe(el);
        }

        function updateChart(series) {
            if (!chart) {
                renderChart(series);
                return;
            }
            candleSeries.setData(series.candles || []);
            forecastSeries.setData(series.forecast || []);
            chart.timeScale().fitContent();
        }

        function setStatus(connected) {
            document.getElementById('status-dot').className = 'status-dot ' + (connected ? 'connected' : 'disconnected');
            document.getElementById('status-text').textContent = connected ? 'Live' : 'Reconnecting...';
        }

        function handle(msg) {
            switch (msg.type) {
            case 'active':
                document.querySelectorAll('.tab').forEach(t => t.classList.toggle('active', t.dataset.coin === msg.coin));
                break;
            case 'loading':
                document.getElementById('loading').classList.toggle('visible', !!msg.value);
                break;
            case 'error': {
                const el = document.getElementById('error');
                el.textContent = msg.value || '';
                el.classList.toggle('visible', !!msg.value);
                break;
            }
            case 'panel':
                document.getElementById(msg.slot + '-panel').innerHTML = msg.html;
                break;
            case 'chart.render':
                renderChart(msg.value);
                break;
            case 'chart.update':
                updateChart(msg.value);
                break;
            case 'chart.destroy':
                destroyChart();
                break;
            }
        }

        function send(msg) {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.send(JSON.stringify(msg));
            }
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss' : 'ws';
            ws = new WebSocket(proto + '://' + location.host + '/ws');
            ws.onopen = () => setStatus(true);
            ws.onmessage = (e) => handle(JSON.parse(e.data));
            ws.onclose = () => {
                setStatus(false);
                setTimeout(connect, 2000);
            };
        }

        document.querySelectorAll('.tab').forEach(tab => {
            tab.addEventListener('click', () => send({ type: 'select', coin: tab.dataset.coin }));
        });
        document.getElementById('refresh').addEventListener('click', () => send({ type: 'refresh' }));

        connect();
    </script>
</body>
</html>
`
