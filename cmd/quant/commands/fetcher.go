package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/internal/external/naver"
	"github.com/wonny/aegis-momentum/internal/s0_data"
	"github.com/wonny/aegis-momentum/internal/s0_data/collector"
	"github.com/wonny/aegis-momentum/pkg/database"
	"github.com/wonny/aegis-momentum/pkg/httputil"
)

// fetcherCmd represents the fetcher command
var fetcherCmd = &cobra.Command{
	Use:   "fetcher",
	Short: "시세 데이터 수집 도구",
	Long: `Naver Finance에서 일봉 시세를 수집하여 CSV 디렉토리(DATA_DIR)에 저장합니다.

이 명령어는:
- 시가총액 페이지에서 종목 코드 발굴 (KOSPI / KOSDAQ)
- 종목별 일봉 (siseJson) 다운로드
- <DATA_DIR>/<code>.csv 저장 (선택: Postgres data.daily_prices upsert)

Example:
  go run ./cmd/quant fetcher codes --market kosdaq --limit 100
  go run ./cmd/quant fetcher prices 005930 000660 --from 2010-01-01
  go run ./cmd/quant fetcher prices --market kospi --limit 200 --merge --db`,
}

var (
	fetcherCodesCmd = &cobra.Command{
		Use:   "codes",
		Short: "시가총액 상위 종목 코드 조회",
		RunE:  runFetcherCodes,
	}

	fetcherPricesCmd = &cobra.Command{
		Use:   "prices [codes...]",
		Short: "일봉 시세 수집",
		Long: `지정한 종목(없으면 시가총액 상위 종목)의 일봉을 수집합니다.

Flags:
  --from     시작 날짜 (기본: START_DATE)
  --to       종료 날짜 (기본: 오늘)
  --market   kospi | kosdaq (종목 미지정 시)
  --limit    발굴 종목 수 (0 = 전체)
  --merge    기존 CSV와 병합
  --db       Postgres에도 저장
  --workers  동시 수집 개수`,
		RunE: runFetcherPrices,
	}

	// Fetcher flags
	fetcherFrom    string
	fetcherTo      string
	fetcherMarket  string
	fetcherLimit   int
	fetcherMerge   bool
	fetcherDB      bool
	fetcherWorkers int
)

func init() {
	rootCmd.AddCommand(fetcherCmd)
	fetcherCmd.AddCommand(fetcherCodesCmd)
	fetcherCmd.AddCommand(fetcherPricesCmd)

	for _, c := range []*cobra.Command{fetcherCodesCmd, fetcherPricesCmd} {
		c.Flags().StringVar(&fetcherMarket, "market", "kospi", "시장 (kospi|kosdaq)")
		c.Flags().IntVar(&fetcherLimit, "limit", 100, "발굴 종목 수 (0 = 전체)")
	}

	fetcherPricesCmd.Flags().StringVar(&fetcherFrom, "from", "", "시작 날짜 (YYYY-MM-DD)")
	fetcherPricesCmd.Flags().StringVar(&fetcherTo, "to", "", "종료 날짜 (YYYY-MM-DD)")
	fetcherPricesCmd.Flags().BoolVar(&fetcherMerge, "merge", false, "기존 CSV와 병합 (증분 수집)")
	fetcherPricesCmd.Flags().BoolVar(&fetcherDB, "db", false, "Postgres data.daily_prices에도 저장")
	fetcherPricesCmd.Flags().IntVar(&fetcherWorkers, "workers", 4, "동시 수집 개수")
}

func parseMarket(s string) (naver.Market, error) {
	switch strings.ToLower(s) {
	case "", "kospi":
		return naver.KOSPI, nil
	case "kosdaq":
		return naver.KOSDAQ, nil
	default:
		return naver.KOSPI, fmt.Errorf("unknown market: %s (valid: kospi, kosdaq)", s)
	}
}

func newNaverClient(app *appContext) *naver.Client {
	httpClient := httputil.New(app.log).WithRateLimit(app.cfg.Naver.RequestsPerS)
	return naver.NewClient(httpClient, app.cfg.Naver.BaseURL, app.cfg.Naver.ChartURL, app.log)
}

func runFetcherCodes(cmd *cobra.Command, args []string) error {
	app, err := loadApp()
	if err != nil {
		return err
	}
	market, err := parseMarket(fetcherMarket)
	if err != nil {
		return err
	}

	stocks, err := newNaverClient(app).FetchMarketSumCodes(cmd.Context(), market, fetcherLimit)
	if err != nil {
		return fmt.Errorf("fetch market sum: %w", err)
	}

	PrintHeader(fmt.Sprintf("%s 시가총액 상위 %d", market, len(stocks)))
	widths := []int{8, 24, 14}
	PrintTableHeader([]string{"CODE", "NAME", "CAP(억)"}, widths)
	for _, s := range stocks {
		PrintTableRow([]string{s.Code, s.Name, formatNumber(s.MarketCap)}, widths)
	}
	fmt.Println()
	return nil
}

func runFetcherPrices(cmd *cobra.Command, args []string) error {
	fmt.Printf("=== Aegis Momentum Data Fetcher ===\n\n")

	app, err := loadApp()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	fromStr := fetcherFrom
	if fromStr == "" {
		fromStr = app.cfg.Backtest.StartDate
	}
	from, err := time.Parse(contracts.DateLayout, fromStr)
	if err != nil {
		return fmt.Errorf("invalid --from %q: %w", fromStr, err)
	}
	to := time.Now()
	if fetcherTo != "" {
		if to, err = time.Parse(contracts.DateLayout, fetcherTo); err != nil {
			return fmt.Errorf("invalid --to %q: %w", fetcherTo, err)
		}
	}

	client := newNaverClient(app)

	codes := args
	if len(codes) == 0 {
		market, err := parseMarket(fetcherMarket)
		if err != nil {
			return err
		}
		fmt.Printf("🔍 %s 종목 발굴 중 (limit %d)...\n", market, fetcherLimit)
		stocks, err := client.FetchMarketSumCodes(ctx, market, fetcherLimit)
		if err != nil {
			return fmt.Errorf("fetch market sum: %w", err)
		}
		for _, s := range stocks {
			codes = append(codes, s.Code)
		}
	}
	if len(codes) == 0 {
		return fmt.Errorf("no instruments to fetch")
	}

	var sink collector.PriceSink
	if fetcherDB {
		db, err := database.New(ctx, app.cfg)
		if err != nil {
			return fmt.Errorf("connect to database: %w", err)
		}
		defer db.Close()
		if err := db.EnsureSchema(ctx); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
		sink = s0_data.NewPriceRepository(db.Pool)
	}

	fmt.Printf("📅 Period: %s ~ %s\n", from.Format(contracts.DateLayout), to.Format(contracts.DateLayout))
	fmt.Printf("📦 Instruments: %d\n", len(codes))
	fmt.Printf("📁 Directory: %s\n\n", app.cfg.Data.Dir)

	col := collector.NewCollector(client, app.cfg.Data.Dir, sink, app.log)
	results, err := col.FetchAllPrices(ctx, codes, from, to, collector.Config{
		Workers: fetcherWorkers,
		Merge:   fetcherMerge,
	})
	if err != nil {
		return fmt.Errorf("collect prices: %w", err)
	}

	var failed []string
	var rows, saved int
	for _, r := range results {
		if r.Error != nil {
			failed = append(failed, fmt.Sprintf("%s: %v", r.StockCode, r.Error))
			continue
		}
		rows += r.PriceCount
		saved += r.Saved
	}

	PrintSeparator()
	PrintKeyValue("성공", fmt.Sprintf("%d / %d", len(results)-len(failed), len(results)), 8)
	PrintKeyValue("일봉", formatNumber(int64(rows)), 8)
	if sink != nil {
		PrintKeyValue("DB 저장", formatNumber(int64(saved)), 8)
	}
	if len(failed) > 0 {
		PrintWarning(fmt.Sprintf("%d개 종목 수집 실패", len(failed)))
		PrintList(failed)
		return nil
	}
	PrintSuccess("데이터 수집 완료!")
	return nil
}
