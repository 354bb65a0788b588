// Package ui renders the trading dashboard as a terminal interface and
// translates key presses into desk and feed operations.
package ui

import (
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tradeterm/internal/domain"
	"tradeterm/internal/feed"
	"tradeterm/internal/trading"
	"tradeterm/internal/wallet"
)

// FeedUpdated is posted by the market data service whenever its state
// changes, so the view re-renders without polling.
type FeedUpdated struct{}

type tickMsg time.Time

type formField int

const (
	fieldAmount formField = iota
	fieldPrice
)

type historyTab int

const (
	tabOrders historyTab = iota
	tabTape
)

// Model holds all terminal state. It owns nothing long-lived itself;
// market data comes from the feed service and wallet state from the
// ledger, both injected at construction.
type Model struct {
	feed   *feed.Service
	desk   *trading.Desk
	ledger *wallet.Ledger

	pairs     []domain.Pair
	intervals []string

	pairIdx     int
	intervalIdx int

	side      string
	orderType string
	amount    string
	price     string
	field     formField

	tab      historyTab
	orderSel int

	notice   string
	noticeAt time.Time

	width  int
	height int
}

// New builds the dashboard model. The pair and interval lists come from
// configuration and the first entry of each is active at startup.
func New(f *feed.Service, desk *trading.Desk, ledger *wallet.Ledger, pairs []domain.Pair, intervals []string) Model {
	return Model{
		feed:      f,
		desk:      desk,
		ledger:    ledger,
		pairs:     pairs,
		intervals: intervals,
		side:      domain.SideBuy,
		orderType: domain.OrderTypeMarket,
	}
}

func tickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Init() tea.Cmd {
	return tickCmd()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case FeedUpdated:
		return m, nil

	case tickMsg:
		if m.notice != "" && time.Since(m.noticeAt) > 5*time.Second {
			m.notice = ""
		}
		return m, tickCmd()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit

	case "m":
		m.pairIdx = (m.pairIdx + 1) % len(m.pairs)
		m.feed.SwitchMarket(m.pairs[m.pairIdx])
		m.orderSel = 0
		return m, nil

	case "M":
		m.pairIdx = (m.pairIdx - 1 + len(m.pairs)) % len(m.pairs)
		m.feed.SwitchMarket(m.pairs[m.pairIdx])
		m.orderSel = 0
		return m, nil

	case "i":
		m.intervalIdx = (m.intervalIdx + 1) % len(m.intervals)
		m.feed.SwitchInterval(m.intervals[m.intervalIdx])
		return m, nil

	case "b":
		m.side = domain.SideBuy
		return m, nil

	case "s":
		m.side = domain.SideSell
		return m, nil

	case "t":
		if m.orderType == domain.OrderTypeMarket {
			m.orderType = domain.OrderTypeLimit
			m.field = fieldAmount
		} else {
			m.orderType = domain.OrderTypeMarket
			m.field = fieldAmount
		}
		return m, nil

	case "tab":
		if m.orderType == domain.OrderTypeLimit {
			if m.field == fieldAmount {
				m.field = fieldPrice
			} else {
				m.field = fieldAmount
			}
		}
		return m, nil

	case "f1", "f2", "f3", "f4":
		pct := map[string]int64{"f1": 25, "f2": 50, "f3": 75, "f4": 100}[msg.String()]
		m.amount = m.percentAmount(pct)
		return m, nil

	case "h":
		if m.tab == tabOrders {
			m.tab = tabTape
		} else {
			m.tab = tabOrders
		}
		return m, nil

	case "up":
		if m.orderSel > 0 {
			m.orderSel--
		}
		return m, nil

	case "down":
		if m.orderSel+1 < len(m.ledger.Orders()) {
			m.orderSel++
		}
		return m, nil

	case "c":
		return m.cancelSelected(), nil

	case "enter":
		return m.submitOrder(), nil

	case "backspace":
		m.setField(trimLast(m.fieldValue()))
		return m, nil

	case "esc":
		m.amount = ""
		m.price = ""
		m.notice = ""
		return m, nil
	}

	if r := msg.String(); len(r) == 1 && (r[0] >= '0' && r[0] <= '9' || r[0] == '.') {
		m.setField(m.fieldValue() + r)
	}
	return m, nil
}

func (m *Model) fieldValue() string {
	if m.field == fieldPrice {
		return m.price
	}
	return m.amount
}

func (m *Model) setField(v string) {
	if m.field == fieldPrice {
		m.price = v
	} else {
		m.amount = v
	}
}

func trimLast(s string) string {
	if s == "" {
		return ""
	}
	return s[:len(s)-1]
}

func (m Model) percentAmount(pct int64) string {
	req := trading.OrderRequest{
		Pair:   m.pairs[m.pairIdx],
		Side:   m.side,
		Type:   m.orderType,
		Price:  m.price,
		Amount: m.amount,
	}
	amt := m.desk.PercentAmount(req, pct, m.feed.Price())
	if amt.IsZero() {
		return ""
	}
	return amt.String()
}

func (m Model) submitOrder() Model {
	req := trading.OrderRequest{
		Pair:   m.pairs[m.pairIdx],
		Side:   m.side,
		Type:   m.orderType,
		Amount: m.amount,
		Price:  m.price,
	}
	order, err := m.desk.PlaceOrder(req, m.feed.Price())
	if errors.Is(err, domain.ErrInsufficientBalance) {
		m.notice = "insufficient balance"
		m.noticeAt = time.Now()
		return m
	}
	if err != nil {
		// Malformed input aborts quietly; the form keeps its contents.
		return m
	}
	m.amount = ""
	m.price = ""
	m.notice = order.Side + " " + order.Type + " order " + order.Status
	m.noticeAt = time.Now()
	return m
}

func (m Model) cancelSelected() Model {
	orders := m.ledger.Orders()
	if m.orderSel >= len(orders) {
		return m
	}
	target := orders[m.orderSel]
	if !target.IsOpen() {
		m.notice = "only pending orders can be cancelled"
		m.noticeAt = time.Now()
		return m
	}
	if m.desk.Cancel(target.ID) {
		m.notice = "order cancelled"
	} else {
		m.notice = "cancel failed"
	}
	m.noticeAt = time.Now()
	return m
}
