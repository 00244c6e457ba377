package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"

	"BreakoutSentinel/internal/model"
)

// RESTFetcher implements Fetcher against a self-hosted bars API:
// GET {base}/api/v1/bars/daily?symbol=..&start=YYYY-MM-DD&end=YYYY-MM-DD
type RESTFetcher struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// NewRESTFetcher creates a new fetcher with optional proxy support.
func NewRESTFetcher(baseURL, apiKey, proxyURL string) *RESTFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &RESTFetcher{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *RESTFetcher) Name() string { return "rest" }

// restBar is one daily bar of the bars API. Prices may arrive as JSON numbers
// or as decimal strings.
type restBar struct {
	Date   string          `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume decimal.Decimal `json:"volume"`
}

func (f *RESTFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	q.Set("start", start.Format(model.DateLayout))
	q.Set("end", end.Format(model.DateLayout))
	endpoint := fmt.Sprintf("%s/api/v1/bars/daily?%s", f.BaseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, "GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if f.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+f.APIKey)
	}
	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch bars %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, fmt.Errorf("bars api: symbol %s: %w", symbol, model.ErrDataUnavailable)
	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("bars api %s: status %d, body: %s", symbol, resp.StatusCode, string(body))
	}

	var raw []restBar
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode bars %s: %w", symbol, err)
	}
	series := &model.PriceSeries{Symbol: symbol, Bars: make([]model.OHLCV, 0, len(raw))}
	for _, rb := range raw {
		d, err := time.Parse(model.DateLayout, rb.Date)
		if err != nil {
			return nil, fmt.Errorf("bars api %s: bad date %q: %w", symbol, rb.Date, err)
		}
		series.Bars = append(series.Bars, model.OHLCV{
			Date:   d,
			Open:   rb.Open.InexactFloat64(),
			High:   rb.High.InexactFloat64(),
			Low:    rb.Low.InexactFloat64(),
			Close:  rb.Close.InexactFloat64(),
			Volume: rb.Volume.InexactFloat64(),
		})
	}
	return series, nil
}
