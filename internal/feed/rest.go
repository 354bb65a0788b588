package feed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"tradeterm/internal/domain"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
)

// RestClient wraps the Binance public REST API for the three
// request/response calls the dashboard needs: recent candles, a depth
// snapshot and the all-pairs price list. Read-only, no credentials.
type RestClient struct {
	client      *binance.Client
	candleLimit int
	depthLimit  int
}

// NewRestClient builds a client against the given base URL.
func NewRestClient(baseURL string, candleLimit, depthLimit int) *RestClient {
	client := binance.NewClient("", "")
	if baseURL != "" {
		client.BaseURL = baseURL
	}
	client.HTTPClient.Timeout = 10 * time.Second
	return &RestClient{
		client:      client,
		candleLimit: candleLimit,
		depthLimit:  depthLimit,
	}
}

// Candles fetches up to candleLimit most recent bars for a pair and
// interval, oldest first.
func (c *RestClient) Candles(ctx context.Context, pair domain.Pair, interval string) ([]domain.Candle, error) {
	klines, err := c.client.NewKlinesService().
		Symbol(pair.Symbol()).
		Interval(interval).
		Limit(c.candleLimit).
		Do(ctx)
	if err != nil {
		return nil, domain.NewNetworkError("fetch klines", err)
	}

	candles := make([]domain.Candle, 0, len(klines))
	for _, k := range klines {
		candle, err := klineToCandle(k)
		if err != nil {
			return nil, fmt.Errorf("kline at %d: %w", k.OpenTime, err)
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func klineToCandle(k *binance.Kline) (domain.Candle, error) {
	open, err := decimal.NewFromString(k.Open)
	if err != nil {
		return domain.Candle{}, err
	}
	high, err := decimal.NewFromString(k.High)
	if err != nil {
		return domain.Candle{}, err
	}
	low, err := decimal.NewFromString(k.Low)
	if err != nil {
		return domain.Candle{}, err
	}
	closePx, err := decimal.NewFromString(k.Close)
	if err != nil {
		return domain.Candle{}, err
	}
	volume, err := decimal.NewFromString(k.Volume)
	if err != nil {
		return domain.Candle{}, err
	}
	return domain.Candle{
		Time:   time.UnixMilli(k.OpenTime),
		Open:   open,
		High:   high,
		Low:    low,
		Close:  closePx,
		Volume: volume,
	}, nil
}

// Book fetches a depth snapshot, depthLimit levels per side, best price
// first, with cumulative totals already computed.
func (c *RestClient) Book(ctx context.Context, pair domain.Pair) (domain.OrderBook, error) {
	resp, err := c.client.NewDepthService().
		Symbol(pair.Symbol()).
		Limit(c.depthLimit).
		Do(ctx)
	if err != nil {
		return domain.OrderBook{}, domain.NewNetworkError("fetch depth", err)
	}

	book := domain.OrderBook{
		Bids: make([]domain.BookLevel, 0, len(resp.Bids)),
		Asks: make([]domain.BookLevel, 0, len(resp.Asks)),
	}
	for _, b := range resp.Bids {
		level, err := priceLevelToBookLevel(b.Price, b.Quantity)
		if err != nil {
			return domain.OrderBook{}, fmt.Errorf("bid level: %w", err)
		}
		book.Bids = append(book.Bids, level)
	}
	for _, a := range resp.Asks {
		level, err := priceLevelToBookLevel(a.Price, a.Quantity)
		if err != nil {
			return domain.OrderBook{}, fmt.Errorf("ask level: %w", err)
		}
		book.Asks = append(book.Asks, level)
	}
	book.RecomputeTotals()
	return book, nil
}

func priceLevelToBookLevel(price, qty string) (domain.BookLevel, error) {
	p, err := decimal.NewFromString(price)
	if err != nil {
		return domain.BookLevel{}, err
	}
	q, err := decimal.NewFromString(qty)
	if err != nil {
		return domain.BookLevel{}, err
	}
	return domain.BookLevel{Price: p, Amount: q}, nil
}

// PriceTable fetches the last price of every asset quoted in the
// reference currency. The reference itself is pinned to 1 so portfolio
// valuation can price it like any other holding.
func (c *RestClient) PriceTable(ctx context.Context, referenceQuote string) (map[string]decimal.Decimal, error) {
	prices, err := c.client.NewListPricesService().Do(ctx)
	if err != nil {
		return nil, domain.NewNetworkError("fetch prices", err)
	}

	table := map[string]decimal.Decimal{referenceQuote: decimal.NewFromInt(1)}
	for _, p := range prices {
		asset, ok := strings.CutSuffix(p.Symbol, referenceQuote)
		if !ok || asset == "" {
			continue
		}
		price, err := decimal.NewFromString(p.Price)
		if err != nil {
			continue // one bad row should not sink the whole table
		}
		table[asset] = price
	}
	return table, nil
}
