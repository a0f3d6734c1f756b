package app

import (
	"bufio"
	"context"
	"cryptodash/internal/market"
	"fmt"
	"io"
	"math"
	"strings"
	"sync"
	"unicode"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"go.uber.org/zap"
)

const (
	terminalWidth  = 80
	sparklineWidth = 60
	clearScreen    = "\033[H\033[2J"
)

var sparkBlocks = []rune("▁▂▃▄▅▆▇█")

// UI styles
var (
	termTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#58A6FF")).
			Background(lipgloss.Color("#161B22")).
			Padding(0, 1)

	tabStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8B949E")).
			Padding(0, 1)

	activeTabStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#0D1117")).
			Background(lipgloss.Color("#58A6FF")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#30363D")).
			Padding(0, 1).
			Width(terminalWidth)

	termErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F85149")).
			Bold(true)

	loadingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#D29922"))

	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#3FB950"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F85149"))
	neutralStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#8B949E"))
	labelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8B949E"))
	forecastStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#A371F7"))
)

// TerminalView draws the dashboard as lipgloss panels and redraws the whole
// screen on every change. Implements View.
type TerminalView struct {
	logger *zap.Logger
	out    io.Writer

	mu          sync.Mutex
	active      market.Asset
	loading     bool
	errMsg      string
	price       *PricePanel
	predictions []PredictionCard
	hasForecast bool
	sentiment   *SentimentPanel
	series      *ChartSeries
}

func NewTerminalView(logger *zap.Logger, out io.Writer) *TerminalView {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TerminalView{
		logger: logger,
		out:    out,
	}
}

// ChartBackend returns a chart backend that draws a sparkline in this view.
func (v *TerminalView) ChartBackend() ChartBackend {
	return &terminalChart{view: v}
}

func (v *TerminalView) SetActive(asset market.Asset) {
	v.update(func() { v.active = asset })
}

func (v *TerminalView) SetLoading(loading bool) {
	v.update(func() { v.loading = loading })
}

func (v *TerminalView) ShowError(msg string) {
	v.update(func() { v.errMsg = msg })
}

func (v *TerminalView) ClearError() {
	v.update(func() { v.errMsg = "" })
}

func (v *TerminalView) ShowPrice(panel PricePanel) {
	v.update(func() { v.price = &panel })
}

func (v *TerminalView) ShowPredictions(cards []PredictionCard) {
	v.update(func() {
		v.predictions = cards
		v.hasForecast = true
	})
}

func (v *TerminalView) ShowSentiment(panel SentimentPanel) {
	v.update(func() { v.sentiment = &panel })
}

func (v *TerminalView) update(mutate func()) {
	v.mu.Lock()
	defer v.mu.Unlock()

	mutate()
	if v.out == nil {
		return
	}
	if _, err := io.WriteString(v.out, clearScreen+v.renderLocked()); err != nil {
		v.logger.Debug("terminal write failed", zap.Error(err))
	}
}

// Render returns the current screen without writing it.
func (v *TerminalView) Render() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.renderLocked()
}

func (v *TerminalView) renderLocked() string {
	var sections []string

	sections = append(sections, termTitleStyle.Render("cryptodash"), v.renderTabs())

	switch {
	case v.errMsg != "":
		sections = append(sections, termErrorStyle.Render(v.errMsg))
	case v.loading:
		sections = append(sections, loadingStyle.Render("Loading..."))
	}

	if v.price != nil {
		sections = append(sections, panelStyle.Render(v.renderPrice()))
	}
	if v.series != nil {
		sections = append(sections, panelStyle.Render(renderSparkline(*v.series, sparklineWidth)))
	}
	if v.hasForecast {
		sections = append(sections, panelStyle.Render(v.renderPredictions()))
	}
	if v.sentiment != nil {
		sections = append(sections, panelStyle.Render(v.renderSentiment()))
	}

	sections = append(sections, labelStyle.Render("Type a symbol and Enter to switch, q to quit"))
	return lipgloss.JoinVertical(lipgloss.Left, sections...) + "\n"
}

func (v *TerminalView) renderTabs() string {
	tabs := make([]string, 0, len(market.Assets()))
	for _, a := range market.Assets() {
		if a == v.active {
			tabs = append(tabs, activeTabStyle.Render(a.String()))
		} else {
			tabs = append(tabs, tabStyle.Render(a.String()))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tabs...)
}

func (v *TerminalView) renderPrice() string {
	p := v.price
	return fmt.Sprintf("%s  %s\n%s %s   %s %s",
		lipgloss.NewStyle().Bold(true).Render(p.Price),
		changeStyle(p.ChangeClass).Render(p.Change),
		labelStyle.Render("24h Volume"), p.Volume,
		labelStyle.Render("Market Cap"), p.MarketCap,
	)
}

func (v *TerminalView) renderPredictions() string {
	if len(v.predictions) == 0 {
		return labelStyle.Render("No predictions")
	}
	lines := make([]string, 0, len(v.predictions))
	for _, c := range v.predictions {
		lines = append(lines, fmt.Sprintf("%-6s %-7s %-14s %s",
			c.Label, c.Date, c.Price, changeStyle(c.ChangeClass).Render(c.Change)))
	}
	return strings.Join(lines, "\n")
}

func (v *TerminalView) renderSentiment() string {
	s := v.sentiment
	band := lipgloss.NewStyle().Foreground(lipgloss.Color(s.Band.Color)).Bold(true)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Sentiment %s/100  %s  %s\n",
		s.Score, band.Render(s.Band.Label), badgeStyle(s.BadgeClass).Render(s.Badge))
	fmt.Fprintf(&sb, "%s  %s  %s\n",
		positiveStyle.Render(fmt.Sprintf("%d positive", s.Positive)),
		neutralStyle.Render(fmt.Sprintf("%d neutral", s.Neutral)),
		negativeStyle.Render(fmt.Sprintf("%d negative", s.Negative)),
	)
	if s.Summary != "" {
		sb.WriteString(termSafe(s.Summary) + "\n")
	}

	if len(s.News) == 0 {
		sb.WriteString(labelStyle.Render(s.Placeholder))
		return sb.String()
	}
	for i, n := range s.News {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "%s %s\n  %s", newsStyle(n.Class).Render("●"), termSafe(n.Title),
			labelStyle.Render(termSafe(n.Source)+" · "+n.When))
	}
	return sb.String()
}

// termSafe strips escape sequences and control characters from backend text
// so a headline cannot drive the terminal.
func termSafe(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return ' '
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, ansi.Strip(s))
}

func changeStyle(class string) lipgloss.Style {
	if class == "negative" {
		return negativeStyle
	}
	return positiveStyle
}

func badgeStyle(class string) lipgloss.Style {
	switch class {
	case "positive":
		return positiveStyle
	case "negative":
		return negativeStyle
	default:
		return neutralStyle
	}
}

func newsStyle(class string) lipgloss.Style {
	switch class {
	case "news-positive":
		return positiveStyle
	case "news-negative":
		return negativeStyle
	default:
		return neutralStyle
	}
}

// renderSparkline draws closes and the forecast on one shared scale. The
// forecast anchor is skipped since it repeats the last close.
func renderSparkline(series ChartSeries, width int) string {
	closes := make([]float64, 0, len(series.Candles))
	for _, c := range series.Candles {
		closes = append(closes, c.Close)
	}
	var forecast []float64
	for i, p := range series.Forecast {
		if i == 0 {
			continue
		}
		forecast = append(forecast, p.Value)
	}

	// Keep the most recent closes that fit next to the forecast
	if room := width - len(forecast); room > 0 && len(closes) > room {
		closes = closes[len(closes)-room:]
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range append(append([]float64(nil), closes...), forecast...) {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}

	header := fmt.Sprintf("%s  %s", series.Coin, labelStyle.Render(fmt.Sprintf("%d days", len(series.Candles))))
	if len(closes) == 0 {
		return header
	}

	return header + "\n" + sparkRunes(closes, lo, hi) + forecastStyle.Render(sparkRunes(forecast, lo, hi))
}

func sparkRunes(vals []float64, lo, hi float64) string {
	var sb strings.Builder
	for _, v := range vals {
		idx := 0
		if hi > lo {
			idx = int((v - lo) / (hi - lo) * float64(len(sparkBlocks)-1))
		}
		sb.WriteRune(sparkBlocks[idx])
	}
	return sb.String()
}

// ReadCommands reads one command per line from in until EOF, "q" or ctx is
// done. A known symbol calls onSelect; anything else is ignored.
func (v *TerminalView) ReadCommands(ctx context.Context, in io.Reader, onSelect func(market.Asset)) {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			cmd := strings.TrimSpace(line)
			if cmd == "" {
				continue
			}
			if strings.EqualFold(cmd, "q") || strings.EqualFold(cmd, "quit") {
				return
			}
			asset, err := market.ParseAsset(cmd)
			if err != nil {
				v.logger.Debug("ignoring unknown command", zap.String("input", cmd))
				continue
			}
			onSelect(asset)
		}
	}
}

// terminalChart keeps the latest series in the terminal view.
type terminalChart struct {
	view *TerminalView
}

func (c *terminalChart) Render(series ChartSeries) error {
	c.view.update(func() { c.view.series = &series })
	return nil
}

func (c *terminalChart) Update(series ChartSeries) error {
	return c.Render(series)
}

func (c *terminalChart) Destroy() error {
	c.view.update(func() { c.view.series = nil })
	return nil
}
