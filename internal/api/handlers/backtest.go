package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/aegis-momentum/internal/audit"
	"github.com/wonny/aegis-momentum/internal/backtest"
	"github.com/wonny/aegis-momentum/internal/contracts"
	"github.com/wonny/aegis-momentum/pkg/config"
	"github.com/wonny/aegis-momentum/pkg/logger"
)

// BacktestHandler handles backtest API endpoints
// ⭐ SSOT: 백테스트 API 핸들러는 이 구조체에서만
type BacktestHandler struct {
	source   contracts.PriceSource
	defaults config.BacktestConfig
	workers  int
	logger   *logger.Logger
}

// NewBacktestHandler creates a new backtest handler
func NewBacktestHandler(source contracts.PriceSource, defaults config.BacktestConfig, workers int, log *logger.Logger) *BacktestHandler {
	return &BacktestHandler{
		source:   source,
		defaults: defaults,
		workers:  workers,
		logger:   log,
	}
}

// momentumResponse omits the book unless requested
type momentumResponse struct {
	*backtest.Result
	Performance *audit.PerformanceReport `json:"performance,omitempty"`
	Book        []bookRow                `json:"book,omitempty"`
}

type bookRow struct {
	Date      string            `json:"date"`
	YearMonth string            `json:"ym"`
	AccReturn float64           `json:"acc_rtn"`
	Positions map[string]string `json:"positions,omitempty"`
}

// RunMomentum runs the monthly momentum backtest
// GET /api/backtest/momentum?start=YYYY-MM-DD&top=0.15&policy=signal_month&column=Adj+Close&benchmark=069500&book=true
func (h *BacktestHandler) RunMomentum(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	cfg := backtest.Config{
		PriceColumn: h.defaults.PriceColumn,
		TopFraction: h.defaults.TopFraction,
		Workers:     h.workers,
	}

	start := h.defaults.StartDate
	if v := q.Get("start"); v != "" {
		start = v
	}
	startDate, err := time.Parse(contracts.DateLayout, start)
	if err != nil {
		respondError(w, http.StatusBadRequest, "start must be YYYY-MM-DD")
		return
	}
	cfg.StartDate = startDate

	if v := q.Get("top"); v != "" {
		top, err := strconv.ParseFloat(v, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "top must be a number")
			return
		}
		cfg.TopFraction = top
	}

	policy := h.defaults.HoldPolicy
	if v := q.Get("policy"); v != "" {
		policy = v
	}
	if cfg.HoldPolicy, err = backtest.ParseHoldPolicy(policy); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if v := q.Get("column"); v != "" {
		cfg.PriceColumn = v
	}

	result, err := backtest.NewEngine(h.source, h.logger).Run(r.Context(), cfg)
	if err != nil {
		h.logger.WithError(err).Error("Backtest failed")
		respondError(w, statusFor(err), err.Error())
		return
	}

	resp := momentumResponse{Result: result}

	var bench *backtest.BuyHoldResult
	if code := q.Get("benchmark"); code != "" {
		bench = h.benchmark(r, code, start, cfg.PriceColumn)
	}
	if report, err := audit.NewAnalyzer(h.logger).Analyze(result, bench); err == nil {
		resp.Performance = report
	}

	if includeBook, _ := strconv.ParseBool(q.Get("book")); includeBook {
		resp.Book = bookRows(result.Book)
	}
	respondJSON(w, http.StatusOK, resp)
}

// benchmark loads the buy-and-hold curve of code; failures only drop the comparison
func (h *BacktestHandler) benchmark(r *http.Request, code, start, column string) *backtest.BuyHoldResult {
	log := h.logger.WithField("benchmark", code)
	table, err := h.source.Load(r.Context(), code)
	if err != nil {
		log.WithError(err).Warn("Benchmark unavailable")
		return nil
	}
	bench, err := backtest.BuyAndHold(table, start, "", column, h.logger)
	if err != nil {
		log.WithError(err).Warn("Benchmark unavailable")
		return nil
	}
	return bench
}

func bookRows(book *backtest.TradeBook) []bookRow {
	rows := make([]bookRow, book.Days())
	for day := range rows {
		rows[day] = bookRow{
			Date:      book.Dates[day].Format(contracts.DateLayout),
			YearMonth: book.YearMonths[day],
			AccReturn: book.AccReturn[day],
		}
		for c, code := range book.Codes {
			cell := book.Positions[c][day]
			if cell.State == backtest.Empty {
				continue
			}
			if rows[day].Positions == nil {
				rows[day].Positions = make(map[string]string)
			}
			if cell.State == backtest.Closed {
				rows[day].Positions[code] = strconv.FormatFloat(cell.Return, 'f', -1, 64)
			} else {
				rows[day].Positions[code] = cell.State.String()
			}
		}
	}
	return rows
}

// BuyHold returns the buy-and-hold curve of one instrument
// GET /api/backtest/buyhold/{code}?start=YYYY-MM-DD&end=YYYY-MM-DD
func (h *BacktestHandler) BuyHold(w http.ResponseWriter, r *http.Request) {
	code := mux.Vars(r)["code"]
	q := r.URL.Query()

	start := q.Get("start")
	if start == "" {
		start = h.defaults.StartDate
	}
	end := q.Get("end")
	if end == "" {
		end = h.defaults.EndDate
	}
	column := q.Get("column")
	if column == "" {
		column = h.defaults.PriceColumn
	}

	table, err := h.source.Load(r.Context(), code)
	if err != nil {
		h.logger.WithError(err).WithField("code", code).Warn("Instrument not found")
		respondError(w, http.StatusNotFound, "instrument not found: "+code)
		return
	}

	result, err := backtest.BuyAndHold(table, start, end, column, h.logger)
	if err != nil {
		respondError(w, statusFor(err), err.Error())
		return
	}

	respondJSON(w, http.StatusOK, result)
}
