package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/shopspring/decimal"

	"tradeterm/internal/domain"
	"tradeterm/internal/feed"
	"tradeterm/internal/infra"
	"tradeterm/internal/trading"
)

const (
	chartRows  = 12
	chartCols  = 48
	bookDepth  = 10
	tapeRows   = 12
	ordersRows = 12
)

func (m Model) View() string {
	snap := m.feed.Snapshot()

	header := m.renderHeader(snap)
	left := lipgloss.JoinVertical(lipgloss.Left,
		m.renderMarkets(snap),
		m.renderForm(),
	)
	center := lipgloss.JoinVertical(lipgloss.Left,
		m.renderChart(snap),
		m.renderBalances(snap),
	)
	right := lipgloss.JoinVertical(lipgloss.Left,
		m.renderBook(snap),
		m.renderHistory(snap),
	)

	body := lipgloss.JoinHorizontal(lipgloss.Top, left, center, right)
	footer := m.renderFooter()

	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer)
}

func (m Model) renderHeader(snap feed.Snapshot) string {
	price := "-"
	if !snap.Price.IsZero() {
		price = fmtPrice(snap.Price)
	}
	stream := dimStyle.Render("○ offline")
	if infra.GlobalMetrics.Snapshot().StreamUp {
		stream = buyStyle.Render("● live")
	}
	return headerStyle.Render(fmt.Sprintf(" TRADETERM  %s  %s  [%s] ",
		snap.Pair.String(), price, snap.Interval)) + "  " + stream
}

func (m Model) renderMarkets(snap feed.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Markets") + "\n")
	for i, p := range m.pairs {
		line := fmt.Sprintf("%-9s", p.String())
		if px, ok := snap.Prices[p.Base]; ok {
			line += fmt.Sprintf("%12s", fmtPrice(px))
		} else {
			line += fmt.Sprintf("%12s", "-")
		}
		if i == m.pairIdx {
			line = selectedStyle.Render(line)
		}
		b.WriteString(line + "\n")
	}
	b.WriteString(dimStyle.Render("m/M switch"))
	return borderStyle.Render(b.String())
}

func (m Model) renderChart(snap feed.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Chart "+snap.Interval) + "\n")
	b.WriteString(renderCandles(snap.Candles, chartRows, chartCols))
	return borderStyle.Render(b.String())
}

// renderCandles draws the most recent candles as a fixed-size grid.
// Each column is one bar: the high-low range as a thin wick and the
// open-close range as a full block, green for up bars and red for down.
func renderCandles(candles []domain.Candle, rows, cols int) string {
	if len(candles) == 0 {
		return dimStyle.Render("waiting for data")
	}
	if len(candles) > cols {
		candles = candles[len(candles)-cols:]
	}

	lo, hi := candles[0].Low, candles[0].High
	for _, c := range candles {
		if c.Low.LessThan(lo) {
			lo = c.Low
		}
		if c.High.GreaterThan(hi) {
			hi = c.High
		}
	}
	span := hi.Sub(lo)
	if span.IsZero() {
		span = decimal.NewFromInt(1)
	}

	scale := func(v decimal.Decimal) int {
		r := v.Sub(lo).Div(span).Mul(decimal.NewFromInt(int64(rows - 1)))
		i := int(r.IntPart())
		if i < 0 {
			i = 0
		}
		if i > rows-1 {
			i = rows - 1
		}
		return i
	}

	grid := make([][]string, rows)
	for r := range grid {
		grid[r] = make([]string, len(candles))
		for c := range grid[r] {
			grid[r][c] = " "
		}
	}

	for i, c := range candles {
		up := !c.Close.LessThan(c.Open)
		style := sellStyle
		if up {
			style = buyStyle
		}
		wl, wh := scale(c.Low), scale(c.High)
		bl, bh := scale(c.Open), scale(c.Close)
		if bl > bh {
			bl, bh = bh, bl
		}
		for r := wl; r <= wh; r++ {
			grid[r][i] = style.Render("│")
		}
		for r := bl; r <= bh; r++ {
			grid[r][i] = style.Render("█")
		}
	}

	var b strings.Builder
	for r := rows - 1; r >= 0; r-- {
		b.WriteString(strings.Join(grid[r], ""))
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render(fmt.Sprintf("%s  ..  %s   H %s  L %s",
		candles[0].Label(), candles[len(candles)-1].Label(), fmtPrice(hi), fmtPrice(lo))))
	return b.String()
}

func (m Model) renderBook(snap feed.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Order Book") + "\n")

	asks := snap.Book.Asks
	if len(asks) > bookDepth {
		asks = asks[:bookDepth]
	}
	bids := snap.Book.Bids
	if len(bids) > bookDepth {
		bids = bids[:bookDepth]
	}

	maxTotal := decimal.Zero
	if n := len(asks); n > 0 && asks[n-1].Total.GreaterThan(maxTotal) {
		maxTotal = asks[n-1].Total
	}
	if n := len(bids); n > 0 && bids[n-1].Total.GreaterThan(maxTotal) {
		maxTotal = bids[n-1].Total
	}

	// Asks print worst-first so the best ask sits next to the spread.
	for i := len(asks) - 1; i >= 0; i-- {
		b.WriteString(bookLine(asks[i], maxTotal, sellStyle) + "\n")
	}
	if !snap.Price.IsZero() {
		b.WriteString(priceStyle.Render(fmt.Sprintf("%14s", fmtPrice(snap.Price))) + "\n")
	} else {
		b.WriteString(dimStyle.Render(strings.Repeat("─", 14)) + "\n")
	}
	for _, lvl := range bids {
		b.WriteString(bookLine(lvl, maxTotal, buyStyle) + "\n")
	}
	return borderStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func bookLine(lvl domain.BookLevel, maxTotal decimal.Decimal, style lipgloss.Style) string {
	bar := ""
	if maxTotal.IsPositive() {
		width := int(lvl.Total.Div(maxTotal).Mul(decimal.NewFromInt(10)).IntPart())
		bar = strings.Repeat("▉", width)
	}
	return fmt.Sprintf("%s %10s %-10s",
		style.Render(fmt.Sprintf("%12s", fmtPrice(lvl.Price))),
		fmtAmount(lvl.Amount),
		dimStyle.Render(bar))
}

func (m Model) renderForm() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Order Entry") + "\n")

	sideLabel := sideStyle(m.side).Render(m.side)
	b.WriteString(fmt.Sprintf("Side   %s   Type %s\n", sideLabel, m.orderType))

	amtCursor, prcCursor := " ", " "
	if m.field == fieldAmount {
		amtCursor = "_"
	} else {
		prcCursor = "_"
	}
	b.WriteString(fmt.Sprintf("Amount %s%s\n", m.amount, amtCursor))
	if m.orderType == domain.OrderTypeLimit {
		b.WriteString(fmt.Sprintf("Price  %s%s\n", m.price, prcCursor))
	} else {
		b.WriteString(dimStyle.Render("Price  (market)") + "\n")
	}

	req := m.currentRequest()
	cost := m.desk.EstimatedCost(req, m.feed.Price())
	if cost.IsPositive() {
		b.WriteString(dimStyle.Render("Cost   ~"+fmtPrice(cost)) + "\n")
	}
	b.WriteString(dimStyle.Render("f1-f4 pct  b/s side  t type  enter"))

	style := borderStyle
	if m.notice == "" {
		style = focusedBorderStyle
	}
	out := style.Render(b.String())
	if m.notice != "" {
		out = lipgloss.JoinVertical(lipgloss.Left, out, noticeStyle.Render(m.notice))
	}
	return out
}

func (m Model) renderBalances(snap feed.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Balances") + "\n")
	b.WriteString(dimStyle.Render(fmt.Sprintf("%-6s %12s %12s %12s", "Asset", "Free", "Locked", "Total")) + "\n")
	for _, bal := range m.ledger.Balances() {
		b.WriteString(fmt.Sprintf("%-6s %12s %12s %12s\n",
			bal.Asset, fmtAmount(bal.Free), fmtAmount(bal.Locked), fmtAmount(bal.Total)))
	}
	total := m.ledger.TotalValue(snap.Prices)
	b.WriteString(priceStyle.Render(fmt.Sprintf("Portfolio  %s USDT", fmtPrice(total))))
	return borderStyle.Render(b.String())
}

func (m Model) renderHistory(snap feed.Snapshot) string {
	if m.tab == tabTape {
		return m.renderTape(snap)
	}
	return m.renderOrders()
}

func (m Model) renderTape(snap feed.Snapshot) string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Trades") + dimStyle.Render("  h: orders") + "\n")
	trades := snap.Trades
	if len(trades) > tapeRows {
		trades = trades[:tapeRows]
	}
	for _, t := range trades {
		b.WriteString(fmt.Sprintf("%s %12s %10s\n",
			t.Time.Format("15:04:05"),
			sideStyle(t.Side).Render(fmtPrice(t.Price)),
			fmtAmount(t.Amount)))
	}
	if len(trades) == 0 {
		b.WriteString(dimStyle.Render("no trades yet"))
	}
	return borderStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderOrders() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Orders") + dimStyle.Render("  h: trades  c: cancel") + "\n")
	orders := m.ledger.Orders()
	shown := orders
	if len(shown) > ordersRows {
		shown = shown[:ordersRows]
	}
	for i, o := range shown {
		line := fmt.Sprintf("%s %-4s %-6s %10s @ %-10s %s",
			o.CreatedAt.Format("15:04"),
			o.Side, o.Type,
			fmtAmount(o.Amount), fmtPrice(o.Price),
			statusStyle(o.Status).Render(o.Status))
		if i == m.orderSel {
			line = "> " + line
		} else {
			line = "  " + line
		}
		b.WriteString(line + "\n")
	}
	if len(shown) == 0 {
		b.WriteString(dimStyle.Render("no orders yet"))
	}
	return borderStyle.Render(strings.TrimRight(b.String(), "\n"))
}

func (m Model) renderFooter() string {
	ms := infra.GlobalMetrics.Snapshot()
	stats := fmt.Sprintf("msgs %d  stale %d  errs %d  reconnects %d",
		ms.MessagesProcessed, ms.StaleDropped, ms.ErrorsTotal, ms.Reconnects)
	keys := "q quit  m market  i interval  h tab  up/down select"
	return dimStyle.Render(" " + keys + "    " + stats)
}

func (m Model) currentRequest() trading.OrderRequest {
	return trading.OrderRequest{
		Pair:   m.pairs[m.pairIdx],
		Side:   m.side,
		Type:   m.orderType,
		Amount: m.amount,
		Price:  m.price,
	}
}

// fmtPrice renders a quote price with two decimal places above one
// unit and four below, matching how exchanges display minor pairs.
func fmtPrice(d decimal.Decimal) string {
	if d.Abs().GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return d.StringFixed(2)
	}
	return d.StringFixed(4)
}

// fmtAmount renders a base quantity with trailing zeros trimmed.
func fmtAmount(d decimal.Decimal) string {
	s := d.StringFixed(8)
	s = strings.TrimRight(s, "0")
	return strings.TrimRight(s, ".")
}
