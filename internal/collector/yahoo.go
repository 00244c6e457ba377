package collector

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/guregu/null/v6"

	"BreakoutSentinel/internal/model"
)

const yahooBaseURL = "https://query1.finance.yahoo.com"

// YahooFetcher implements Fetcher using the Yahoo Finance chart API.
type YahooFetcher struct {
	BaseURL   string
	Client    *http.Client
	SymbolMap map[string]string // index aliases to Yahoo tickers
}

// NewYahooFetcher creates a new Yahoo Finance fetcher.
func NewYahooFetcher(proxyURL string) *YahooFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &YahooFetcher{
		BaseURL: yahooBaseURL,
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		SymbolMap: map[string]string{
			"SPX": "^GSPC",
			"NDX": "^NDX",
			"DJI": "^DJI",
			"RUT": "^RUT",
			"VIX": "^VIX",
		},
	}
}

func (f *YahooFetcher) Name() string { return "yahoo" }

// yahooSymbol maps index aliases and writes share classes with a dash (BRK.B -> BRK-B).
func (f *YahooFetcher) yahooSymbol(symbol string) string {
	if mapped, ok := f.SymbolMap[symbol]; ok {
		return mapped
	}
	return strings.ReplaceAll(symbol, ".", "-")
}

// yahooChart is the response of the chart API. Quote arrays hold null for
// sessions without prints.
type yahooChart struct {
	Chart struct {
		Result []struct {
			Meta struct {
				GMTOffset int64 `json:"gmtoffset"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []yahooQuote `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

type yahooQuote struct {
	Open   []null.Float `json:"open"`
	High   []null.Float `json:"high"`
	Low    []null.Float `json:"low"`
	Close  []null.Float `json:"close"`
	Volume []null.Float `json:"volume"`
}

// bar returns the i-th session, false when its close is missing.
func (q *yahooQuote) bar(i int) (model.OHLCV, bool) {
	at := func(vals []null.Float) null.Float {
		if i >= len(vals) {
			return null.Float{}
		}
		return vals[i]
	}
	c := at(q.Close)
	if !c.Valid {
		return model.OHLCV{}, false
	}
	return model.OHLCV{
		Open:   at(q.Open).ValueOrZero(),
		High:   at(q.High).ValueOrZero(),
		Low:    at(q.Low).ValueOrZero(),
		Close:  c.Float64,
		Volume: at(q.Volume).ValueOrZero(),
	}, true
}

// FetchDailyBars requests daily bars in [start, end]. Yahoo's period2 is exclusive,
// so the request runs to the day after end.
func (f *YahooFetcher) FetchDailyBars(ctx context.Context, symbol string, start, end time.Time) (*model.PriceSeries, error) {
	period1 := model.Day(start).Unix()
	period2 := model.Day(end).AddDate(0, 0, 1).Unix()
	u := fmt.Sprintf("%s/v8/finance/chart/%s?interval=1d&period1=%d&period2=%d&events=history",
		f.BaseURL, url.PathEscape(f.yahooSymbol(symbol)), period1, period2)

	req, err := http.NewRequestWithContext(ctx, "GET", u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("yahoo fetch %s: %w", symbol, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("yahoo: symbol %s: %w", symbol, model.ErrDataUnavailable)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("yahoo %s: status %d, body: %s", symbol, resp.StatusCode, string(body))
	}

	var chart yahooChart
	if err := json.NewDecoder(resp.Body).Decode(&chart); err != nil {
		return nil, fmt.Errorf("yahoo decode %s: %w", symbol, err)
	}
	if chart.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo api error for %s: %s", symbol, chart.Chart.Error.Description)
	}
	if len(chart.Chart.Result) == 0 || len(chart.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo: %s: %w", symbol, model.ErrDataUnavailable)
	}

	result := chart.Chart.Result[0]
	quote := &result.Indicators.Quote[0]
	series := &model.PriceSeries{Symbol: symbol, Bars: make([]model.OHLCV, 0, len(result.Timestamp))}
	for i, ts := range result.Timestamp {
		b, ok := quote.bar(i)
		if !ok {
			continue
		}
		// Exchange-local calendar date of the session.
		b.Date = model.Day(time.Unix(ts+result.Meta.GMTOffset, 0).UTC())
		series.Bars = append(series.Bars, b)
	}
	return series, nil
}
