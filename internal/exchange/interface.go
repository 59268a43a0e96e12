package exchange

import (
	"context"

	"github.com/shopspring/decimal"

	"tradebot/internal/models"
)

// Gateway определяет интерфейс шлюза к бирже.
// Все блокирующие операции принимают context для отмены.
type Gateway interface {
	// GetSymbolRules получает торговые ограничения символа (LOT_SIZE, PRICE_FILTER, MIN_NOTIONAL)
	GetSymbolRules(ctx context.Context, symbol string) (*models.SymbolRules, error)

	// GetBalances получает свободные балансы base и quote активов
	GetBalances(ctx context.Context, baseAsset, quoteAsset string) (*models.BalanceSnapshot, error)

	// GetCandles загружает исторические свечи для прогрева индикаторов
	GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error)

	// PlaceOrder размещает ордер. Ответ подтверждает только прием ордера;
	// фактическое исполнение приходит через user data stream.
	PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error)

	// CancelOrder отменяет открытый ордер по client order id
	CancelOrder(ctx context.Context, symbol, clientOrderID string) error

	// Close закрывает соединения с биржей
	Close() error
}

// Streamer определяет интерфейс подписок на потоки биржи.
// Подписки работают до отмены контекста, автоматически переподключаясь.
type Streamer interface {
	// SubscribeMarket подписывается на рыночные потоки (bookTicker, depth, klines)
	SubscribeMarket(ctx context.Context, symbol, interval string, depthLevels int, handlers MarketHandlers) error

	// SubscribeUserData подписывается на приватный поток аккаунта
	SubscribeUserData(ctx context.Context, handlers AccountHandlers) error
}

// OrderRequest представляет запрос на размещение ордера
type OrderRequest struct {
	Symbol        string
	Side          string // BUY, SELL
	Type          string // MARKET, LIMIT
	Quantity      decimal.Decimal
	Price         decimal.Decimal // только для LIMIT
	ClientOrderID string          // correlation id, генерируется исполнителем
}

// OrderResult представляет ответ биржи на размещение ордера
type OrderResult struct {
	ClientOrderID   string
	ExchangeID      int64
	Status          string
	ExecutedQty     decimal.Decimal
	CumulativeQuote decimal.Decimal
}

// MarketHandlers - обработчики рыночных событий.
// Вызываются из горутин потоков; обработчики должны быть быстрыми.
type MarketHandlers struct {
	OnBookTicker func(models.BookTicker)
	OnDepth      func(models.DepthSnapshot)
	OnCandle     func(models.Candle)
	OnError      func(error)
}

// AccountHandlers - обработчики событий аккаунта
type AccountHandlers struct {
	OnExecutionReport func(models.ExecutionReport)
	OnBalanceUpdate   func(asset string, free decimal.Decimal)
	OnError           func(error)
}

// GatewayError представляет ошибку от биржи
type GatewayError struct {
	Op       string // операция: place_order, cancel_order, ...
	Message  string
	Original error
}

func (e *GatewayError) Error() string {
	return e.Op + ": " + e.Message
}

// Unwrap возвращает оригинальную ошибку для поддержки errors.Is() и errors.As()
func (e *GatewayError) Unwrap() error {
	return e.Original
}
