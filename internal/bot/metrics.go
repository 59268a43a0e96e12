package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ============================================================
// Prometheus метрики торгового ядра
// ============================================================
//
// Использование:
// - Grafana дашборды для визуализации
// - Alertmanager для уведомлений о проблемах
// - Анализ производительности в production

// ============ Метрики латентности ============

// TickToSignalLatency - время от получения рыночного события до решения стратегии
var TickToSignalLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "tick_to_signal_latency_ms",
		Help:      "Latency from market event to strategy decision in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100},
	},
	[]string{"event"}, // ticker, depth, candle
)

// OrderSubmitLatency - время отправки ордера на биржу
var OrderSubmitLatency = promauto.NewHistogramVec(
	prometheus.HistogramOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "order_submit_latency_ms",
		Help:      "Time to submit order to exchange in milliseconds",
		Buckets:   []float64{50, 100, 200, 300, 500, 1000, 2000, 5000},
	},
	[]string{"side", "type"},
)

// ============ Счётчики событий ============

// EventsProcessed - количество обработанных событий по типам
var EventsProcessed = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "events_processed_total",
		Help:      "Total number of processed market events",
	},
	[]string{"type"}, // ticker, depth, candle, execution_report
)

// OrdersTotal - количество ордеров по исходу
var OrdersTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "orders_total",
		Help:      "Total number of orders by outcome",
	},
	[]string{"side", "status"}, // status: FILLED, CANCELED, REJECTED, EXPIRED
)

// SignalsDetected - сигналы стратегий
var SignalsDetected = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "signals_detected_total",
		Help:      "Strategy signals by type and whether they were acted on",
	},
	[]string{"strategy", "acted"}, // acted: yes, no (cooldown, sizing decline)
)

// ExitsTotal - выходы из позиции по причинам
var ExitsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "tradebot",
		Subsystem: "risk",
		Name:      "exits_total",
		Help:      "Position exits by reason",
	},
	[]string{"reason"}, // SL, TP, TRAILING, TIME_STOP, IMBALANCE_REVERSAL, SIGNAL
)

// ============ Метрики состояния ============

// BotStatusGauge - текущий статус бота (1 для активного статуса)
var BotStatusGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "bot_status",
		Help:      "Current bot status (1 for the active status, 0 otherwise)",
	},
	[]string{"status"},
)

// InPositionGauge - находится ли бот в позиции
var InPositionGauge = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "in_position",
		Help:      "Whether the bot currently holds a position (1/0)",
	},
)

// BalanceGauge - свободные балансы активов
var BalanceGauge = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "exchange",
		Name:      "balance_free",
		Help:      "Free asset balance",
	},
	[]string{"asset"},
)

// StreamConnected - статус потоков данных
var StreamConnected = promauto.NewGaugeVec(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "exchange",
		Name:      "stream_connected",
		Help:      "Market stream connection status (1=connected, 0=disconnected)",
	},
	[]string{"stream"},
)

// CandleRingSize - количество закрытых свечей в кольцевом буфере
var CandleRingSize = promauto.NewGauge(
	prometheus.GaugeOpts{
		Namespace: "tradebot",
		Subsystem: "trading",
		Name:      "candle_ring_size",
		Help:      "Number of closed candles held for indicator warmup",
	},
)

// ============ Вспомогательные функции ============

// knownStatuses для сброса gauge при смене статуса
var knownStatuses = []string{"STOPPED", "STARTING", "RUNNING", "ENTERING", "EXITING", "ERROR"}

// RecordStatus выставляет 1 для активного статуса и 0 для остальных
func RecordStatus(status string) {
	for _, s := range knownStatuses {
		v := 0.0
		if s == status {
			v = 1.0
		}
		BotStatusGauge.WithLabelValues(s).Set(v)
	}
}

// RecordEvent записывает обработанное рыночное событие
func RecordEvent(eventType string) {
	EventsProcessed.WithLabelValues(eventType).Inc()
}

// RecordSignal записывает сигнал стратегии
func RecordSignal(strategyType string, acted bool) {
	actedStr := "no"
	if acted {
		actedStr = "yes"
	}
	SignalsDetected.WithLabelValues(strategyType, actedStr).Inc()
}

// RecordOrderOutcome записывает финальный статус ордера
func RecordOrderOutcome(side, status string) {
	OrdersTotal.WithLabelValues(side, status).Inc()
}

// RecordExit записывает выход из позиции
func RecordExit(reason string) {
	ExitsTotal.WithLabelValues(reason).Inc()
}

// RecordBalance обновляет gauge баланса актива
func RecordBalance(asset string, free float64) {
	BalanceGauge.WithLabelValues(asset).Set(free)
}

// RecordInPosition обновляет флаг позиции
func RecordInPosition(inPosition bool) {
	if inPosition {
		InPositionGauge.Set(1)
	} else {
		InPositionGauge.Set(0)
	}
}
