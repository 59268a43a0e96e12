package repository

import (
	"database/sql"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"tradebot/internal/models"
	"tradebot/pkg/utils"
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

// OrderRepository - работа с таблицей orders (история исполнений)
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// SaveOrder создает запись об исполненном ордере
func (r *OrderRepository) SaveOrder(order *models.OrderRecord) error {
	query := `
		INSERT INTO orders (client_order_id, exchange_order_id, symbol, side, type, quantity, price_avg, quote_qty, status, is_entry, exit_reason, strategy_type, performance_pct, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING id`

	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}

	err := r.db.QueryRow(
		query,
		order.ClientOrderID,
		order.ExchangeID,
		order.Symbol,
		order.Side,
		order.Type,
		order.Quantity,
		order.PriceAvg,
		order.QuoteQty,
		order.Status,
		order.IsEntry,
		order.ExitReason,
		order.StrategyType,
		order.PerformancePct,
		order.CreatedAt,
	).Scan(&order.ID)

	if err != nil {
		return err
	}

	return nil
}

// GetByID возвращает ордер по ID
func (r *OrderRepository) GetByID(id int) (*models.OrderRecord, error) {
	query := `
		SELECT id, client_order_id, exchange_order_id, symbol, side, type, quantity, price_avg, quote_qty, status, is_entry, exit_reason, strategy_type, performance_pct, created_at
		FROM orders
		WHERE id = $1`

	order := &models.OrderRecord{}
	err := r.db.QueryRow(query, id).Scan(
		&order.ID,
		&order.ClientOrderID,
		&order.ExchangeID,
		&order.Symbol,
		&order.Side,
		&order.Type,
		&order.Quantity,
		&order.PriceAvg,
		&order.QuoteQty,
		&order.Status,
		&order.IsEntry,
		&order.ExitReason,
		&order.StrategyType,
		&order.PerformancePct,
		&order.CreatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}

	return order, nil
}

// List возвращает последние ордера, новые первыми
func (r *OrderRepository) List(limit, offset int) ([]*models.OrderRecord, error) {
	query := `
		SELECT id, client_order_id, exchange_order_id, symbol, side, type, quantity, price_avg, quote_qty, status, is_entry, exit_reason, strategy_type, performance_pct, created_at
		FROM orders
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.Query(query, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanOrders(rows)
}

// GetStats возвращает агрегированную статистику по закрытым сделкам.
// Считаются только выходы: performance_pct на входах всегда ноль.
func (r *OrderRepository) GetStats() (*models.Stats, error) {
	query := `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE performance_pct > 0),
			COUNT(*) FILTER (WHERE performance_pct < 0),
			COALESCE(SUM(performance_pct), 0),
			COALESCE(MAX(performance_pct), 0),
			COALESCE(MIN(performance_pct), 0)
		FROM orders
		WHERE is_entry = false AND status = 'FILLED'`

	stats := &models.Stats{}
	err := r.db.QueryRow(query).Scan(
		&stats.TotalTrades,
		&stats.WinTrades,
		&stats.LossTrades,
		&stats.TotalPnlPct,
		&stats.BestTradePct,
		&stats.WorstTradePct,
	)
	if err != nil {
		return nil, err
	}

	if stats.TotalTrades > 0 {
		stats.WinRatePct = decimal.NewFromInt(int64(stats.WinTrades)).
			Div(decimal.NewFromInt(int64(stats.TotalTrades))).
			Mul(decimal.NewFromInt(100))
	}

	now := time.Now()

	today, err := r.periodStats(utils.GetDayStartFrom(now))
	if err != nil {
		return nil, err
	}
	stats.TodayTrades = today.Trades
	stats.TodayPnlPct = today.PnlPct

	week, err := r.periodStats(utils.GetWeekStartFrom(now))
	if err != nil {
		return nil, err
	}
	stats.WeekTrades = week.Trades
	stats.WeekPnlPct = week.PnlPct

	month, err := r.periodStats(utils.GetMonthStartFrom(now))
	if err != nil {
		return nil, err
	}
	stats.MonthTrades = month.Trades
	stats.MonthPnlPct = month.PnlPct

	byReason, err := r.statsByReason()
	if err != nil {
		return nil, err
	}
	stats.ByReason = byReason

	stats.UpdatedAt = now
	return stats, nil
}

// periodStats возвращает статистику сделок с начала периода
func (r *OrderRepository) periodStats(since time.Time) (*models.PeriodStats, error) {
	query := `
		SELECT COUNT(*), COALESCE(SUM(performance_pct), 0)
		FROM orders
		WHERE is_entry = false AND status = 'FILLED' AND created_at >= $1`

	ps := &models.PeriodStats{}
	if err := r.db.QueryRow(query, since).Scan(&ps.Trades, &ps.PnlPct); err != nil {
		return nil, err
	}
	return ps, nil
}

// statsByReason возвращает разбивку закрытых сделок по причинам выхода
func (r *OrderRepository) statsByReason() ([]models.ReasonStat, error) {
	query := `
		SELECT exit_reason, COUNT(*), COALESCE(SUM(performance_pct), 0)
		FROM orders
		WHERE is_entry = false AND status = 'FILLED' AND exit_reason <> ''
		GROUP BY exit_reason
		ORDER BY COUNT(*) DESC`

	rows, err := r.db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.ReasonStat
	for rows.Next() {
		var rs models.ReasonStat
		if err := rows.Scan(&rs.Reason, &rs.Count, &rs.PnlPct); err != nil {
			return nil, err
		}
		out = append(out, rs)
	}

	return out, rows.Err()
}

// scanOrders читает все строки результата в список ордеров
func scanOrders(rows *sql.Rows) ([]*models.OrderRecord, error) {
	var orders []*models.OrderRecord

	for rows.Next() {
		order := &models.OrderRecord{}
		err := rows.Scan(
			&order.ID,
			&order.ClientOrderID,
			&order.ExchangeID,
			&order.Symbol,
			&order.Side,
			&order.Type,
			&order.Quantity,
			&order.PriceAvg,
			&order.QuoteQty,
			&order.Status,
			&order.IsEntry,
			&order.ExitReason,
			&order.StrategyType,
			&order.PerformancePct,
			&order.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	return orders, rows.Err()
}
