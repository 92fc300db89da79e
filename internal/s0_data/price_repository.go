package s0_data

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/aegis-momentum/internal/contracts"
)

// DailyPrice is one row of data.daily_prices
type DailyPrice struct {
	Code     string
	Date     time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	AdjClose float64 // NaN이면 Close 사용
	Volume   int64
}

// PriceRepository reads and writes data.daily_prices
// ⭐ SSOT: 가격 데이터 저장소는 여기서만
type PriceRepository struct {
	pool *pgxpool.Pool
}

// NewPriceRepository creates a new price repository
func NewPriceRepository(pool *pgxpool.Pool) *PriceRepository {
	return &PriceRepository{pool: pool}
}

// Codes returns every stock code with at least one price row
func (r *PriceRepository) Codes(ctx context.Context) ([]string, error) {
	rows, err := r.pool.Query(ctx, `SELECT DISTINCT stock_code FROM data.daily_prices ORDER BY stock_code`)
	if err != nil {
		return nil, fmt.Errorf("query codes: %w", err)
	}
	codes, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan codes: %w", err)
	}
	return codes, nil
}

// GetByCode retrieves all prices of a code in ascending date order
func (r *PriceRepository) GetByCode(ctx context.Context, code string) ([]DailyPrice, error) {
	query := `
		SELECT stock_code, trade_date, open_price, high_price, low_price, close_price,
		       COALESCE(adj_close, close_price), volume
		FROM data.daily_prices
		WHERE stock_code = $1
		ORDER BY trade_date ASC
	`

	rows, err := r.pool.Query(ctx, query, code)
	if err != nil {
		return nil, fmt.Errorf("query prices [%s]: %w", code, err)
	}
	defer rows.Close()

	var prices []DailyPrice
	for rows.Next() {
		var (
			p                            DailyPrice
			open, high, low, closeP, adj *float64
			volume                       *int64
		)
		if err := rows.Scan(&p.Code, &p.Date, &open, &high, &low, &closeP, &adj, &volume); err != nil {
			return nil, fmt.Errorf("scan price [%s]: %w", code, err)
		}
		p.Open, p.High, p.Low = fromNullable(open), fromNullable(high), fromNullable(low)
		p.Close, p.AdjClose = fromNullable(closeP), fromNullable(adj)
		if volume != nil {
			p.Volume = *volume
		}
		prices = append(prices, p)
	}
	return prices, rows.Err()
}

const upsertPriceSQL = `
	INSERT INTO data.daily_prices (stock_code, trade_date, open_price, high_price, low_price, close_price, adj_close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (stock_code, trade_date) DO UPDATE SET
		open_price = EXCLUDED.open_price,
		high_price = EXCLUDED.high_price,
		low_price = EXCLUDED.low_price,
		close_price = EXCLUDED.close_price,
		adj_close = EXCLUDED.adj_close,
		volume = EXCLUDED.volume
`

// SaveBatch upserts prices in a single pgx batch and returns the number of rows written
func (r *PriceRepository) SaveBatch(ctx context.Context, prices []DailyPrice) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}

	batch := &pgx.Batch{}
	for _, p := range prices {
		batch.Queue(upsertPriceSQL,
			p.Code, p.Date,
			toNullable(p.Open), toNullable(p.High), toNullable(p.Low),
			toNullable(p.Close), toNullable(p.AdjClose), p.Volume,
		)
	}

	br := r.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range prices {
		if _, err := br.Exec(); err != nil {
			return i, fmt.Errorf("upsert price [%s %s]: %w", prices[i].Code, prices[i].Date.Format(contracts.DateLayout), err)
		}
	}
	return len(prices), nil
}

func toNullable(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func fromNullable(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

// TableFromPrices converts ascending DailyPrice rows into a PriceTable
func TableFromPrices(code string, prices []DailyPrice) *contracts.PriceTable {
	table := contracts.NewPriceTable(code)
	n := len(prices)
	open, high, low := make([]float64, n), make([]float64, n), make([]float64, n)
	closes, adj, volume := make([]float64, n), make([]float64, n), make([]float64, n)

	table.Dates = make([]string, n)
	for i, p := range prices {
		table.Dates[i] = p.Date.Format(contracts.DateLayout)
		open[i], high[i], low[i] = p.Open, p.High, p.Low
		closes[i], volume[i] = p.Close, float64(p.Volume)
		adj[i] = p.AdjClose
		if math.IsNaN(adj[i]) {
			adj[i] = p.Close
		}
	}

	table.Columns[contracts.ColumnOpen] = open
	table.Columns[contracts.ColumnHigh] = high
	table.Columns[contracts.ColumnLow] = low
	table.Columns[contracts.ColumnClose] = closes
	table.Columns[contracts.ColumnAdjClose] = adj
	table.Columns[contracts.ColumnVolume] = volume
	return table
}

// PricesFromTable converts a PriceTable back into DailyPrice rows. Missing columns become NaN.
func PricesFromTable(table *contracts.PriceTable) ([]DailyPrice, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}

	get := func(name string, i int) float64 {
		if col, ok := table.Columns[name]; ok {
			return col[i]
		}
		return math.NaN()
	}

	prices := make([]DailyPrice, 0, table.Len())
	for i, raw := range table.Dates {
		date, err := contracts.ParseDate(raw)
		if err != nil {
			return nil, &contracts.FormatError{Code: table.Code, Value: raw, Reason: err.Error()}
		}
		p := DailyPrice{
			Code:     table.Code,
			Date:     date,
			Open:     get(contracts.ColumnOpen, i),
			High:     get(contracts.ColumnHigh, i),
			Low:      get(contracts.ColumnLow, i),
			Close:    get(contracts.ColumnClose, i),
			AdjClose: get(contracts.ColumnAdjClose, i),
		}
		if v := get(contracts.ColumnVolume, i); !math.IsNaN(v) {
			p.Volume = int64(v)
		}
		prices = append(prices, p)
	}
	return prices, nil
}
