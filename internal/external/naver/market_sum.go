package naver

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Market is the sosok parameter of the market-sum page
type Market int

const (
	KOSPI  Market = 0
	KOSDAQ Market = 1
)

func (m Market) String() string {
	if m == KOSDAQ {
		return "KOSDAQ"
	}
	return "KOSPI"
}

// ListedStock is one row of the market-cap ranking page
type ListedStock struct {
	Code      string
	Name      string
	Market    Market
	MarketCap int64 // 억원
}

// 최대 페이지 (페이지당 50종목)
const maxMarketSumPages = 50

var itemCodeRe = regexp.MustCompile(`code=(\d{6})`)

// FetchMarketSumCodes scrapes the market-cap ranking and returns up to limit stocks (0 = all)
// ⭐ SSOT: 유니버스 종목 발굴은 이 함수에서만
func (c *Client) FetchMarketSumCodes(ctx context.Context, market Market, limit int) ([]ListedStock, error) {
	var stocks []ListedStock

	for page := 1; page <= maxMarketSumPages; page++ {
		select {
		case <-ctx.Done():
			return stocks, ctx.Err()
		default:
		}

		params := url.Values{}
		params.Set("sosok", strconv.Itoa(int(market)))
		params.Set("page", strconv.Itoa(page))

		body, err := c.fetch(ctx, c.baseURL, "/sise/sise_market_sum.naver", params)
		if err != nil {
			return stocks, fmt.Errorf("market sum page %d: %w", page, err)
		}

		rows, hasMore, err := parseMarketSumHTML(body, market)
		if err != nil {
			return stocks, fmt.Errorf("parse market sum page %d: %w", page, err)
		}
		stocks = append(stocks, rows...)

		if limit > 0 && len(stocks) >= limit {
			stocks = stocks[:limit]
			break
		}
		// 더 이상 페이지 없으면 종료
		if !hasMore || len(rows) == 0 {
			break
		}
	}

	c.logger.WithFields(map[string]interface{}{
		"market": market.String(),
		"count":  len(stocks),
	}).Info("Fetched market sum codes")
	return stocks, nil
}

// parseMarketSumHTML extracts (code, name, market cap) rows from table.type_2
// 컬럼: N | 종목명 | 현재가 | 전일비 | 등락률 | 액면가 | 시가총액 | ...
func parseMarketSumHTML(html []byte, market Market) ([]ListedStock, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, false, err
	}

	var stocks []ListedStock
	doc.Find("table.type_2 tr").Each(func(i int, row *goquery.Selection) {
		cells := row.Find("td")
		if cells.Length() < 7 {
			return
		}

		link := cells.Eq(1).Find("a")
		href, ok := link.Attr("href")
		if !ok {
			return
		}
		m := itemCodeRe.FindStringSubmatch(href)
		if m == nil {
			return
		}

		capText := strings.ReplaceAll(strings.TrimSpace(cells.Eq(6).Text()), ",", "")
		marketCap, _ := strconv.ParseInt(capText, 10, 64)

		stocks = append(stocks, ListedStock{
			Code:      m[1],
			Name:      strings.TrimSpace(link.Text()),
			Market:    market,
			MarketCap: marketCap,
		})
	})

	// 다음 페이지 존재 여부 확인
	hasMore := doc.Find(".pgRR").Length() > 0
	return stocks, hasMore, nil
}
