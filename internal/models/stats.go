package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Stats представляет агрегированную статистику сделок
type Stats struct {
	TotalTrades   int             `json:"total_trades"`
	WinTrades     int             `json:"win_trades"`
	LossTrades    int             `json:"loss_trades"`
	WinRatePct    decimal.Decimal `json:"win_rate_pct"`
	TotalPnlPct   decimal.Decimal `json:"total_pnl_pct"` // сумма performance_pct по выходам
	BestTradePct  decimal.Decimal `json:"best_trade_pct"`
	WorstTradePct decimal.Decimal `json:"worst_trade_pct"`
	TodayTrades   int             `json:"today_trades"`
	TodayPnlPct   decimal.Decimal `json:"today_pnl_pct"`
	WeekTrades    int             `json:"week_trades"`
	WeekPnlPct    decimal.Decimal `json:"week_pnl_pct"`
	MonthTrades   int             `json:"month_trades"`
	MonthPnlPct   decimal.Decimal `json:"month_pnl_pct"`
	ByReason      []ReasonStat    `json:"by_reason"` // разбивка по причинам выхода
	UpdatedAt     time.Time       `json:"updated_at"`
}

// ReasonStat представляет статистику по причине выхода (SL, TP, TRAILING...)
type ReasonStat struct {
	Reason string          `json:"reason"`
	Count  int             `json:"count"`
	PnlPct decimal.Decimal `json:"pnl_pct"`
}

// PeriodStats представляет статистику за один период
type PeriodStats struct {
	Trades int             `json:"trades"`
	PnlPct decimal.Decimal `json:"pnl_pct"`
}
