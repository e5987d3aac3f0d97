package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"equitysync/internal/model"

	"go.uber.org/zap"
)

const defaultListTimeout = 30 * time.Second

// ListClient fetches a market's raw security listings from the primary
// quote-feed API.
type ListClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewListClient creates a new primary list source client.
func NewListClient(baseURL string, logger *zap.Logger) *ListClient {
	return &ListClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultListTimeout,
		},
		logger: logger,
	}
}

// Ident names the source in logs and catalog diagnostics.
func (c *ListClient) Ident() string {
	return "quote-feed"
}

type listResponse struct {
	Data struct {
		Items []struct {
			Code   string `json:"code"`
			Name   string `json:"name"`
			Sector string `json:"sector,omitempty"`
			Board  string `json:"board,omitempty"`
		} `json:"items"`
	} `json:"data"`
}

// ListSymbols retrieves the raw listing rows for a market.
func (c *ListClient) ListSymbols(ctx context.Context, marketID string) ([]model.RawListing, error) {
	reqURL := fmt.Sprintf("%s/markets/%s/securities", c.baseURL, marketID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch security list",
			zap.Error(err),
			zap.String("market", marketID))
		return nil, fmt.Errorf("failed to fetch security list: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("List source error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("market", marketID),
			zap.String("response", string(bodyBytes)))
		return nil, fmt.Errorf("list source returned status code %d", resp.StatusCode)
	}

	var body listResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.logger.Error("Failed to decode security list", zap.Error(err))
		return nil, fmt.Errorf("failed to decode security list: %w", err)
	}

	listings := make([]model.RawListing, 0, len(body.Data.Items))
	for _, item := range body.Data.Items {
		listings = append(listings, model.RawListing{
			Code:   item.Code,
			Name:   item.Name,
			Sector: item.Sector,
			Board:  item.Board,
		})
	}
	return listings, nil
}

// DirectoryClient fetches listings from an exchange's published securities
// directory. It is an independent provider used as the fallback when the
// primary feed is down or returns a short list.
type DirectoryClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewDirectoryClient creates a new fallback list source client.
func NewDirectoryClient(baseURL string, logger *zap.Logger) *DirectoryClient {
	return &DirectoryClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: defaultListTimeout,
		},
		logger: logger,
	}
}

// Ident names the source in logs and catalog diagnostics.
func (c *DirectoryClient) Ident() string {
	return "exchange-directory"
}

// ListSymbols retrieves the directory rows for a market.
func (c *DirectoryClient) ListSymbols(ctx context.Context, marketID string) ([]model.RawListing, error) {
	reqURL := fmt.Sprintf("%s/directory/%s.json", c.baseURL, marketID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("Failed to fetch exchange directory",
			zap.Error(err),
			zap.String("market", marketID))
		return nil, fmt.Errorf("failed to fetch exchange directory: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		c.logger.Error("Directory source error response",
			zap.Int("statusCode", resp.StatusCode),
			zap.String("market", marketID),
			zap.String("response", string(bodyBytes)))
		return nil, fmt.Errorf("directory source returned status code %d", resp.StatusCode)
	}

	var listings []model.RawListing
	if err := json.NewDecoder(resp.Body).Decode(&listings); err != nil {
		c.logger.Error("Failed to decode exchange directory", zap.Error(err))
		return nil, fmt.Errorf("failed to decode exchange directory: %w", err)
	}
	return listings, nil
}
