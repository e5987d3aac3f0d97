package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"equitysync/internal/fetcher"
	"equitysync/internal/model"

	"go.uber.org/zap"
)

// The fetch pipeline consumes this client through its source interface.
var _ fetcher.HistorySource = (*HistoryClient)(nil)

// HistoryClient fetches historical daily bars from the chart API of the
// upstream quote provider.
type HistoryClient struct {
	baseURL    string
	userAgent  string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewHistoryClient creates a new history source client. The per-request
// timeout is enforced by the caller's context; the transport timeout here is
// a hard ceiling.
func NewHistoryClient(baseURL, userAgent string, timeout time.Duration, logger *zap.Logger) *HistoryClient {
	return &HistoryClient{
		baseURL:   baseURL,
		userAgent: userAgent,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger: logger,
	}
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// FetchDailyHistory retrieves daily bars for a symbol in [start, end).
// A symbol with no data for the window returns an empty slice and no error;
// transport and upstream failures return errors the caller may retry.
func (c *HistoryClient) FetchDailyHistory(ctx context.Context, symbol string, start, end time.Time) ([]model.PriceBar, error) {
	params := url.Values{}
	params.Add("period1", strconv.FormatInt(start.Unix(), 10))
	params.Add("period2", strconv.FormatInt(end.Unix(), 10))
	params.Add("interval", "1d")
	params.Add("events", "history")

	reqURL := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(symbol), params.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Failed to fetch history",
			zap.Error(err),
			zap.String("symbol", symbol))
		return nil, fmt.Errorf("failed to fetch history: %w", err)
	}
	defer resp.Body.Close()

	// The chart API reports unknown symbols as 404 with an error payload;
	// that is a legitimate empty result, not a transport failure.
	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Debug("History source error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("symbol", symbol),
			zap.String("response", string(bodyBytes)))
		return nil, fmt.Errorf("history source returned status code %d", resp.StatusCode)
	}

	var body chartResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Debug("Failed to decode history response", zap.Error(err))
		return nil, fmt.Errorf("failed to decode history response: %w", err)
	}

	if body.Chart.Error != nil {
		return nil, fmt.Errorf("history source error: %s (%s)",
			body.Chart.Error.Description, body.Chart.Error.Code)
	}
	if len(body.Chart.Result) == 0 {
		return nil, nil
	}

	result := body.Chart.Result[0]
	if len(result.Timestamp) == 0 || len(result.Indicators.Quote) == 0 {
		return nil, nil
	}

	quote := result.Indicators.Quote[0]
	bars := make([]model.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		open := floatAt(quote.Open, i)
		high := floatAt(quote.High, i)
		low := floatAt(quote.Low, i)
		cls := floatAt(quote.Close, i)
		if math.IsNaN(cls) {
			// Holiday/suspension slots come back as nulls; skip them.
			continue
		}

		bars = append(bars, model.PriceBar{
			Date:   model.Day(time.Unix(ts, 0).UTC()),
			Symbol: symbol,
			Open:   zeroNaN(open),
			High:   zeroNaN(high),
			Low:    zeroNaN(low),
			Close:  cls,
			Volume: intAt(quote.Volume, i),
		})
	}
	return bars, nil
}

func floatAt(vals []*float64, i int) float64 {
	if i >= len(vals) || vals[i] == nil {
		return math.NaN()
	}
	return *vals[i]
}

func intAt(vals []*int64, i int) int64 {
	if i >= len(vals) || vals[i] == nil {
		return 0
	}
	return *vals[i]
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return v
}
