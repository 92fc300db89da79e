package naver

import (
	"context"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func marketSumPage(rows string, hasMore bool) string {
	next := ""
	if hasMore {
		next = `<td class="pgRR"><a href="?page=2">맨뒤</a></td>`
	}
	return fmt.Sprintf(`<html><body>
<table class="type_2">
<tr><th>N</th><th>종목명</th></tr>
%s
<tr><td colspan="10" class="blank_08"></td></tr>
</table>
<table class="Nnavi"><tr>%s</tr></table>
</body></html>`, rows, next)
}

const (
	rowSamsung = `<tr><td class="no">1</td><td><a href="/item/main.naver?code=005930" class="tltle">삼성전자</a></td>
<td class="number">72,300</td><td class="number">100</td><td class="number">+0.14%</td><td class="number">100</td>
<td class="number">4,316,134</td><td class="number">5,969,782</td></tr>`
	rowHynix = `<tr><td class="no">2</td><td><a href="/item/main.naver?code=000660" class="tltle">SK하이닉스</a></td>
<td class="number">130,000</td><td class="number">0</td><td class="number">0.00%</td><td class="number">5,000</td>
<td class="number">946,415</td><td class="number">728,002</td></tr>`
)

func TestParseMarketSumHTML(t *testing.T) {
	stocks, hasMore, err := parseMarketSumHTML([]byte(marketSumPage(rowSamsung+rowHynix, true)), KOSPI)
	require.NoError(t, err)
	assert.True(t, hasMore)

	require.Len(t, stocks, 2)
	assert.Equal(t, ListedStock{Code: "005930", Name: "삼성전자", Market: KOSPI, MarketCap: 4316134}, stocks[0])
	assert.Equal(t, "000660", stocks[1].Code)
}

func TestFetchMarketSumCodes(t *testing.T) {
	pages := map[string]string{
		"1": marketSumPage(rowSamsung, true),
		"2": marketSumPage(rowHynix, false),
	}
	var calls int
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/sise/sise_market_sum.naver", r.URL.Path)
		assert.Equal(t, "1", r.URL.Query().Get("sosok"))
		_, _ = w.Write([]byte(pages[r.URL.Query().Get("page")]))
	})

	stocks, err := client.FetchMarketSumCodes(context.Background(), KOSDAQ, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, stocks, 2)
	assert.Equal(t, KOSDAQ, stocks[1].Market)
}

func TestFetchMarketSumCodesLimit(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(marketSumPage(rowSamsung+rowHynix, true)))
	})

	stocks, err := client.FetchMarketSumCodes(context.Background(), KOSPI, 1)
	require.NoError(t, err)
	require.Len(t, stocks, 1)
	assert.Equal(t, "005930", stocks[0].Code)
}

func TestMarketString(t *testing.T) {
	assert.Equal(t, "KOSPI", KOSPI.String())
	assert.Equal(t, "KOSDAQ", KOSDAQ.String())
}
