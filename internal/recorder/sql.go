package recorder

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/guregu/null/v6"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"BreakoutSentinel/internal/model"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// SQLStore persists analyses, forward returns and the stock directory to SQLite or
// PostgreSQL. Queries are written with ? placeholders and rebound per driver.
type SQLStore struct {
	db     *sqlx.DB
	driver string
	mu     sync.Mutex
}

// Open connects to the database, applies connection settings and runs migrations.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
	db, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}

	if driver == DriverSQLite {
		// One connection keeps ":memory:" databases shared and serializes the file lock.
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("set WAL mode: %w", err)
		}
	} else {
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s: %w", driver, err)
	}

	s := &SQLStore{db: db, driver: driver}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	log.Printf("[INFO] %s store opened", driver)
	return s, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS stocks (
		stock_id     {{id}},
		stock_symbol TEXT NOT NULL UNIQUE,
		stock_name   TEXT NOT NULL DEFAULT '',
		sector       TEXT NOT NULL DEFAULT '',
		exchange     TEXT NOT NULL DEFAULT ''
	)`,

	`CREATE TABLE IF NOT EXISTS stock_analysis (
		analysis_id                      {{id}},
		stock_id                         INTEGER NOT NULL REFERENCES stocks(stock_id),
		analysis_date                    {{date}} NOT NULL,
		analysis_period                  INTEGER NOT NULL,
		close_price                      {{real}},
		trendline_value                  {{real}},
		breakout_percentage              {{real}},
		consecutive_days_above_trendline INTEGER,
		trendline_accuracy               {{real}},
		rsi_value                        {{real}},
		macd_value                       {{real}},
		macd_signal                      {{real}},
		upper_bollinger_band             {{real}},
		middle_bollinger_band            {{real}},
		lower_bollinger_band             {{real}},
		volume                           {{bigint}},
		volume_ratio                     {{real}},
		nine_ema                         {{real}},
		twelve_ema                       {{real}},
		twenty_one_ema                   {{real}},
		fifty_ema                        {{real}},
		created_at                       TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (stock_id, analysis_date, analysis_period)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_analysis_date ON stock_analysis(analysis_date)`,

	`CREATE TABLE IF NOT EXISTS stock_analysis_max_price (
		stock_id          INTEGER NOT NULL REFERENCES stocks(stock_id),
		analysis_date     {{date}} NOT NULL,
		max_price_1_day   {{real}},
		max_price_2_days  {{real}},
		max_price_5_days  {{real}},
		max_price_10_days {{real}},
		max_price_15_days {{real}},
		max_price_20_days {{real}},
		PRIMARY KEY (stock_id, analysis_date)
	)`,
}

// postgresUpgrades bring a stock_analysis table created by the earlier Python
// pipeline up to date. It has no trendline_value column.
var postgresUpgrades = []string{
	`ALTER TABLE stock_analysis ADD COLUMN IF NOT EXISTS trendline_value DOUBLE PRECISION`,
}

func (s *SQLStore) migrate(ctx context.Context) error {
	types := strings.NewReplacer(
		"{{id}}", "INTEGER PRIMARY KEY AUTOINCREMENT",
		"{{date}}", "TEXT",
		"{{real}}", "REAL",
		"{{bigint}}", "INTEGER",
	)
	if s.driver == DriverPostgres {
		types = strings.NewReplacer(
			"{{id}}", "SERIAL PRIMARY KEY",
			"{{date}}", "DATE",
			"{{real}}", "DOUBLE PRECISION",
			"{{bigint}}", "BIGINT",
		)
	}
	stmts := make([]string, 0, len(schema)+len(postgresUpgrades))
	for _, stmt := range schema {
		stmts = append(stmts, types.Replace(stmt))
	}
	if s.driver == DriverPostgres {
		stmts = append(stmts, postgresUpgrades...)
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// round3 rounds half away from zero to 3 decimals for storage.
func round3(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return decimal.NewFromFloat(v).Round(3).InexactFloat64()
}

func roundNull(v null.Float) null.Float {
	if !v.Valid {
		return v
	}
	return null.FloatFrom(round3(v.Float64))
}

func (s *SQLStore) SaveAnalysis(ctx context.Context, stockID int64, rec *model.AnalysisRecord) error {
	var tl, pct, acc null.Float
	var streak null.Int
	if b := rec.Breakout; b != nil {
		tl = null.FloatFrom(round3(b.TrendlineValue))
		pct = null.FloatFrom(round3(b.BreakoutPercentage))
		streak = null.IntFrom(int64(b.ConsecutiveDays))
		acc = null.FloatFrom(float64(b.Accuracy))
	}
	ind := rec.Indicators

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO stock_analysis
		(stock_id, analysis_date, analysis_period, close_price,
		 trendline_value, breakout_percentage, consecutive_days_above_trendline, trendline_accuracy,
		 rsi_value, macd_value, macd_signal, upper_bollinger_band, middle_bollinger_band, lower_bollinger_band,
		 volume, volume_ratio, nine_ema, twelve_ema, twenty_one_ema, fifty_ema)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
		ON CONFLICT (stock_id, analysis_date, analysis_period) DO NOTHING`),
		stockID, rec.Date.Format(model.DateLayout), rec.PeriodDays, round3(rec.ClosePrice),
		tl, pct, streak, acc,
		round3(ind.RSI), round3(ind.MACD), round3(ind.MACDSignal),
		round3(ind.BollingerUpper), round3(ind.BollingerMiddle), round3(ind.BollingerLower),
		int64(math.Round(ind.Volume)), round3(ind.VolumeRatio),
		round3(ind.EMA9), round3(ind.EMA12), round3(ind.EMA21), round3(ind.EMA50),
	)
	if err != nil {
		return fmt.Errorf("save analysis %s %s: %w", rec.Symbol, rec.Date.Format(model.DateLayout), err)
	}
	return nil
}

func (s *SQLStore) SaveForwardReturns(ctx context.Context, stockID int64, rec *model.ForwardReturnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO stock_analysis_max_price
		(stock_id, analysis_date, max_price_1_day, max_price_2_days, max_price_5_days,
		 max_price_10_days, max_price_15_days, max_price_20_days)
		VALUES (?,?,?,?,?,?,?,?)
		ON CONFLICT (stock_id, analysis_date) DO UPDATE SET
			max_price_1_day = excluded.max_price_1_day,
			max_price_2_days = excluded.max_price_2_days,
			max_price_5_days = excluded.max_price_5_days,
			max_price_10_days = excluded.max_price_10_days,
			max_price_15_days = excluded.max_price_15_days,
			max_price_20_days = excluded.max_price_20_days`),
		stockID, rec.Date.Format(model.DateLayout),
		roundNull(rec.MaxPrice1d), roundNull(rec.MaxPrice2d), roundNull(rec.MaxPrice5d),
		roundNull(rec.MaxPrice10d), roundNull(rec.MaxPrice15d), roundNull(rec.MaxPrice20d),
	)
	if err != nil {
		return fmt.Errorf("save forward returns %s %s: %w", rec.Symbol, rec.Date.Format(model.DateLayout), err)
	}
	return nil
}

func (s *SQLStore) StockID(ctx context.Context, symbol string) (int64, error) {
	var id int64
	err := s.db.GetContext(ctx, &id, s.db.Rebind(`SELECT stock_id FROM stocks WHERE stock_symbol = ?`), symbol)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%s: %w", symbol, model.ErrStockNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup stock %s: %w", symbol, err)
	}
	return id, nil
}

func (s *SQLStore) ListStocks(ctx context.Context) ([]model.Stock, error) {
	var stocks []model.Stock
	if err := s.db.SelectContext(ctx, &stocks,
		`SELECT stock_id, stock_symbol, stock_name, sector, exchange FROM stocks ORDER BY stock_symbol`); err != nil {
		return nil, fmt.Errorf("list stocks: %w", err)
	}
	return stocks, nil
}

// UpsertStock inserts stock or refreshes its descriptive fields, returning its id.
func (s *SQLStore) UpsertStock(ctx context.Context, stock *model.Stock) (int64, error) {
	s.mu.Lock()
	_, err := s.db.ExecContext(ctx, s.db.Rebind(`INSERT INTO stocks (stock_symbol, stock_name, sector, exchange)
		VALUES (?,?,?,?)
		ON CONFLICT (stock_symbol) DO UPDATE SET
			stock_name = excluded.stock_name,
			sector = excluded.sector,
			exchange = excluded.exchange`),
		stock.Symbol, stock.Name, stock.Sector, stock.Exchange,
	)
	s.mu.Unlock()
	if err != nil {
		return 0, fmt.Errorf("upsert stock %s: %w", stock.Symbol, err)
	}
	return s.StockID(ctx, stock.Symbol)
}

// analysisRow mirrors a stock_analysis row joined with its stock symbol.
type analysisRow struct {
	Symbol          string     `db:"stock_symbol"`
	Date            string     `db:"analysis_date"`
	Period          int        `db:"analysis_period"`
	Close           float64    `db:"close_price"`
	TrendlineValue  null.Float `db:"trendline_value"`
	BreakoutPct     null.Float `db:"breakout_percentage"`
	ConsecutiveDays null.Int   `db:"consecutive_days_above_trendline"`
	Accuracy        null.Float `db:"trendline_accuracy"`
	RSI             float64    `db:"rsi_value"`
	MACD            float64    `db:"macd_value"`
	MACDSignal      float64    `db:"macd_signal"`
	BollingerUpper  float64    `db:"upper_bollinger_band"`
	BollingerMiddle float64    `db:"middle_bollinger_band"`
	BollingerLower  float64    `db:"lower_bollinger_band"`
	Volume          int64      `db:"volume"`
	VolumeRatio     float64    `db:"volume_ratio"`
	EMA9            float64    `db:"nine_ema"`
	EMA12           float64    `db:"twelve_ema"`
	EMA21           float64    `db:"twenty_one_ema"`
	EMA50           float64    `db:"fifty_ema"`
}

const analysisSelect = `s.stock_symbol, CAST(a.analysis_date AS TEXT) AS analysis_date, a.analysis_period,
	a.close_price, a.trendline_value, a.breakout_percentage, a.consecutive_days_above_trendline,
	a.trendline_accuracy, a.rsi_value, a.macd_value, a.macd_signal,
	a.upper_bollinger_band, a.middle_bollinger_band, a.lower_bollinger_band,
	a.volume, a.volume_ratio, a.nine_ema, a.twelve_ema, a.twenty_one_ema, a.fifty_ema`

func (r *analysisRow) record() (model.AnalysisRecord, error) {
	date, err := time.Parse(model.DateLayout, r.Date)
	if err != nil {
		return model.AnalysisRecord{}, fmt.Errorf("parse analysis date %q: %w", r.Date, err)
	}
	rec := model.AnalysisRecord{
		Symbol:     r.Symbol,
		Date:       date,
		PeriodDays: r.Period,
		ClosePrice: r.Close,
		Indicators: model.Indicators{
			RSI:             r.RSI,
			MACD:            r.MACD,
			MACDSignal:      r.MACDSignal,
			BollingerUpper:  r.BollingerUpper,
			BollingerMiddle: r.BollingerMiddle,
			BollingerLower:  r.BollingerLower,
			Volume:          float64(r.Volume),
			VolumeRatio:     r.VolumeRatio,
			EMA9:            r.EMA9,
			EMA12:           r.EMA12,
			EMA21:           r.EMA21,
			EMA50:           r.EMA50,
		},
	}
	if r.BreakoutPct.Valid {
		tl := r.TrendlineValue.Float64
		if !r.TrendlineValue.Valid && r.BreakoutPct.Float64 != -100 {
			// Rows written without a trendline_value: close = tl * (1 + pct/100).
			tl = round3(r.Close / (1 + r.BreakoutPct.Float64/100))
		}
		rec.Breakout = &model.BreakoutMetrics{
			TrendlineValue:     tl,
			BreakoutPercentage: r.BreakoutPct.Float64,
			ConsecutiveDays:    int(r.ConsecutiveDays.Int64),
			Accuracy:           int(r.Accuracy.Float64),
		}
	}
	return rec, nil
}

func (s *SQLStore) TopBreakouts(ctx context.Context, date time.Time, limit, offset int) ([]model.AnalysisRecord, error) {
	var rows []analysisRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+analysisSelect+`
		FROM stock_analysis a
		JOIN stocks s ON s.stock_id = a.stock_id
		WHERE a.analysis_date = ? AND a.breakout_percentage IS NOT NULL
		ORDER BY a.breakout_percentage DESC, s.stock_symbol
		LIMIT ? OFFSET ?`),
		date.Format(model.DateLayout), limit, offset,
	)
	if err != nil {
		return nil, fmt.Errorf("top breakouts %s: %w", date.Format(model.DateLayout), err)
	}
	out := make([]model.AnalysisRecord, 0, len(rows))
	for i := range rows {
		rec, err := rows[i].record()
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}

type outcomeRow struct {
	analysisRow
	MaxPrice1d  null.Float `db:"max_price_1_day"`
	MaxPrice2d  null.Float `db:"max_price_2_days"`
	MaxPrice5d  null.Float `db:"max_price_5_days"`
	MaxPrice10d null.Float `db:"max_price_10_days"`
	MaxPrice15d null.Float `db:"max_price_15_days"`
	MaxPrice20d null.Float `db:"max_price_20_days"`
}

func (s *SQLStore) FreshBreakouts(ctx context.Context, symbol string, from, to time.Time) ([]model.BreakoutOutcome, error) {
	var rows []outcomeRow
	err := s.db.SelectContext(ctx, &rows, s.db.Rebind(`SELECT `+analysisSelect+`,
			m.max_price_1_day, m.max_price_2_days, m.max_price_5_days,
			m.max_price_10_days, m.max_price_15_days, m.max_price_20_days
		FROM stock_analysis a
		JOIN stocks s ON s.stock_id = a.stock_id
		LEFT JOIN stock_analysis_max_price m
			ON m.stock_id = a.stock_id AND m.analysis_date = a.analysis_date
		WHERE (? = '' OR s.stock_symbol = ?)
			AND a.analysis_date BETWEEN ? AND ?
			AND a.breakout_percentage > 0
			AND a.consecutive_days_above_trendline = 1
		ORDER BY a.analysis_date, s.stock_symbol`),
		symbol, symbol, from.Format(model.DateLayout), to.Format(model.DateLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("fresh breakouts %s: %w", symbol, err)
	}
	out := make([]model.BreakoutOutcome, 0, len(rows))
	for i := range rows {
		r := &rows[i]
		rec, err := r.record()
		if err != nil {
			return nil, err
		}
		out = append(out, model.BreakoutOutcome{
			Analysis: rec,
			Forward: model.ForwardReturnRecord{
				Symbol:      rec.Symbol,
				Date:        rec.Date,
				MaxPrice1d:  r.MaxPrice1d,
				MaxPrice2d:  r.MaxPrice2d,
				MaxPrice5d:  r.MaxPrice5d,
				MaxPrice10d: r.MaxPrice10d,
				MaxPrice15d: r.MaxPrice15d,
				MaxPrice20d: r.MaxPrice20d,
			},
		})
	}
	return out, nil
}

func (s *SQLStore) Close() error {
	log.Printf("[INFO] closing %s store", s.driver)
	return s.db.Close()
}
