package naver

import (
	"context"
	"fmt"
	"net/url"

	"github.com/wonny/aegis-momentum/pkg/httputil"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// Default endpoints
const (
	DefaultBaseURL  = "https://finance.naver.com"
	DefaultChartURL = "https://fchart.stock.naver.com"
)

// Client handles communication with Naver Finance
// ⭐ SSOT: Naver Finance API 호출은 이 클라이언트에서만
type Client struct {
	httpClient *httputil.Client
	logger     *logger.Logger
	baseURL    string
	chartURL   string
}

// NewClient creates a new Naver Finance client. Empty URLs fall back to the public endpoints.
func NewClient(httpClient *httputil.Client, baseURL, chartURL string, log *logger.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if chartURL == "" {
		chartURL = DefaultChartURL
	}
	return &Client{
		httpClient: httpClient,
		logger:     log,
		baseURL:    baseURL,
		chartURL:   chartURL,
	}
}

// fetch GETs root+path?params and returns the body
func (c *Client) fetch(ctx context.Context, root, path string, params url.Values) ([]byte, error) {
	fullURL := root + path
	if len(params) > 0 {
		fullURL = fmt.Sprintf("%s?%s", fullURL, params.Encode())
	}

	body, err := c.httpClient.GetBody(ctx, fullURL)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	return body, nil
}
