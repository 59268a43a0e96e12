package exchange

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradebot/internal/models"
	"tradebot/pkg/logger"
	"tradebot/pkg/ratelimit"
	"tradebot/pkg/retry"
)

// BinanceGateway реализует Gateway и Streamer поверх Binance Spot API.
//
// REST запросы идут через rate limiter (отдельные бюджеты для ордеров,
// рыночных данных и аккаунта) и retry с экспоненциальной задержкой.
// Потоковые данные идут через WebSocket с автоматическим переподключением.
type BinanceGateway struct {
	client  *binance.Client
	limiter *ratelimit.MultiLimiter
	retry   retry.Config
	stream  *StreamSupervisor

	// listen key для user data stream, продлевается периодически
	listenKey string
}

// NewBinanceGateway создает шлюз к Binance.
// testnet=true переключает REST и WS эндпоинты на тестовую сеть.
func NewBinanceGateway(apiKey, apiSecret string, testnet bool, reconnectMin, reconnectMax time.Duration) *BinanceGateway {
	binance.UseTestnet = testnet

	limiter := ratelimit.NewMultiLimiter()
	// Бюджеты ниже лимитов Binance, чтобы оставить запас для keepalive
	limiter.Add("orders", 5, 10)
	limiter.Add("market", 10, 20)
	limiter.Add("account", 5, 10)

	return &BinanceGateway{
		client:  binance.NewClient(apiKey, apiSecret),
		limiter: limiter,
		retry:   retry.DefaultConfig(),
		stream:  NewStreamSupervisor(reconnectMin, reconnectMax),
	}
}

// GetSymbolRules получает фильтры символа из exchangeInfo
func (g *BinanceGateway) GetSymbolRules(ctx context.Context, symbol string) (*models.SymbolRules, error) {
	if err := g.limiter.Wait(ctx, "market"); err != nil {
		return nil, err
	}

	var info *binance.ExchangeInfo
	err := retry.Do(ctx, func() error {
		var err error
		info, err = g.client.NewExchangeInfoService().Symbol(symbol).Do(ctx)
		return err
	}, g.retry)
	if err != nil {
		return nil, &GatewayError{Op: "exchange_info", Message: "failed to load symbol rules", Original: err}
	}

	for _, s := range info.Symbols {
		if s.Symbol != symbol {
			continue
		}

		rules := &models.SymbolRules{
			Symbol:     s.Symbol,
			BaseAsset:  s.BaseAsset,
			QuoteAsset: s.QuoteAsset,
		}

		if f := s.LotSizeFilter(); f != nil {
			rules.StepSize = mustDecimal(f.StepSize)
			rules.MinQty = mustDecimal(f.MinQuantity)
		}
		if f := s.PriceFilter(); f != nil {
			rules.TickSize = mustDecimal(f.TickSize)
		}
		if f := s.MinNotionalFilter(); f != nil {
			rules.MinNotional = mustDecimal(f.MinNotional)
		}

		return rules, nil
	}

	return nil, &GatewayError{Op: "exchange_info", Message: fmt.Sprintf("symbol %s not found", symbol)}
}

// GetBalances получает свободные балансы base и quote активов
func (g *BinanceGateway) GetBalances(ctx context.Context, baseAsset, quoteAsset string) (*models.BalanceSnapshot, error) {
	if err := g.limiter.Wait(ctx, "account"); err != nil {
		return nil, err
	}

	var account *binance.Account
	err := retry.Do(ctx, func() error {
		var err error
		account, err = g.client.NewGetAccountService().Do(ctx)
		return err
	}, g.retry)
	if err != nil {
		return nil, &GatewayError{Op: "get_account", Message: "failed to load balances", Original: err}
	}

	snapshot := &models.BalanceSnapshot{
		BaseAsset:  baseAsset,
		QuoteAsset: quoteAsset,
		UpdatedAt:  time.Now().UTC(),
	}

	for _, b := range account.Balances {
		switch b.Asset {
		case baseAsset:
			snapshot.BaseFree = mustDecimal(b.Free)
		case quoteAsset:
			snapshot.QuoteFree = mustDecimal(b.Free)
		}
	}

	return snapshot, nil
}

// GetCandles загружает исторические свечи для прогрева индикаторов
func (g *BinanceGateway) GetCandles(ctx context.Context, symbol, interval string, limit int) ([]models.Candle, error) {
	if err := g.limiter.Wait(ctx, "market"); err != nil {
		return nil, err
	}

	var klines []*binance.Kline
	err := retry.Do(ctx, func() error {
		var err error
		klines, err = g.client.NewKlinesService().
			Symbol(symbol).
			Interval(interval).
			Limit(limit).
			Do(ctx)
		return err
	}, g.retry)
	if err != nil {
		return nil, &GatewayError{Op: "klines", Message: "failed to load candles", Original: err}
	}

	candles := make([]models.Candle, 0, len(klines))
	for _, k := range klines {
		candles = append(candles, models.Candle{
			OpenTime:  time.UnixMilli(k.OpenTime).UTC(),
			CloseTime: time.UnixMilli(k.CloseTime).UTC(),
			Open:      mustDecimal(k.Open),
			High:      mustDecimal(k.High),
			Low:       mustDecimal(k.Low),
			Close:     mustDecimal(k.Close),
			Volume:    mustDecimal(k.Volume),
			Closed:    true,
		})
	}

	// Последняя свеча из klines может быть еще не закрыта
	if len(candles) > 0 {
		last := &candles[len(candles)-1]
		if last.CloseTime.After(time.Now().UTC()) {
			last.Closed = false
		}
	}

	return candles, nil
}

// PlaceOrder размещает ордер на бирже.
// Размещение НЕ ретраится: повтор после таймаута может продублировать ордер.
func (g *BinanceGateway) PlaceOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if err := g.limiter.Wait(ctx, "orders"); err != nil {
		return nil, err
	}

	svc := g.client.NewCreateOrderService().
		Symbol(req.Symbol).
		Side(binance.SideType(req.Side)).
		Type(binance.OrderType(req.Type)).
		Quantity(req.Quantity.String()).
		NewClientOrderID(req.ClientOrderID)

	if req.Type == models.OrderTypeLimit {
		svc = svc.TimeInForce(binance.TimeInForceTypeGTC).Price(req.Price.String())
	}

	resp, err := svc.Do(ctx)
	if err != nil {
		return nil, &GatewayError{Op: "place_order", Message: "order placement failed", Original: err}
	}

	logger.Info("order placed",
		zap.String("client_order_id", resp.ClientOrderID),
		zap.Int64("exchange_id", resp.OrderID),
		zap.String("side", req.Side),
		zap.String("type", req.Type),
		zap.String("status", string(resp.Status)))

	return &OrderResult{
		ClientOrderID:   resp.ClientOrderID,
		ExchangeID:      resp.OrderID,
		Status:          string(resp.Status),
		ExecutedQty:     mustDecimal(resp.ExecutedQuantity),
		CumulativeQuote: mustDecimal(resp.CummulativeQuoteQuantity),
	}, nil
}

// CancelOrder отменяет открытый ордер по client order id
func (g *BinanceGateway) CancelOrder(ctx context.Context, symbol, clientOrderID string) error {
	if err := g.limiter.Wait(ctx, "orders"); err != nil {
		return err
	}

	_, err := g.client.NewCancelOrderService().
		Symbol(symbol).
		OrigClientOrderID(clientOrderID).
		Do(ctx)
	if err != nil {
		return &GatewayError{Op: "cancel_order", Message: "order cancel failed", Original: err}
	}

	logger.Info("order cancel requested", zap.String("client_order_id", clientOrderID))
	return nil
}

// SubscribeMarket подписывается на рыночные потоки символа.
// Каждый поток переподключается независимо до отмены контекста.
func (g *BinanceGateway) SubscribeMarket(ctx context.Context, symbol, interval string, depthLevels int, handlers MarketHandlers) error {
	if handlers.OnBookTicker != nil {
		g.stream.Run(ctx, "book_ticker", func() (chan struct{}, chan struct{}, error) {
			return binance.WsBookTickerServe(symbol, func(event *binance.WsBookTickerEvent) {
				handlers.OnBookTicker(models.BookTicker{
					Symbol:    event.Symbol,
					BidPrice:  mustDecimal(event.BestBidPrice),
					BidQty:    mustDecimal(event.BestBidQty),
					AskPrice:  mustDecimal(event.BestAskPrice),
					AskQty:    mustDecimal(event.BestAskQty),
					UpdatedAt: time.Now().UTC(),
				})
			}, wrapErrHandler(handlers.OnError))
		})
	}

	if handlers.OnDepth != nil {
		levels := strconv.Itoa(depthLevels)
		g.stream.Run(ctx, "partial_depth", func() (chan struct{}, chan struct{}, error) {
			return binance.WsPartialDepthServe(symbol, levels, func(event *binance.WsPartialDepthEvent) {
				snapshot := models.DepthSnapshot{
					Symbol:    event.Symbol,
					Bids:      make([]models.DepthLevel, 0, len(event.Bids)),
					Asks:      make([]models.DepthLevel, 0, len(event.Asks)),
					UpdatedAt: time.Now().UTC(),
				}
				for _, b := range event.Bids {
					snapshot.Bids = append(snapshot.Bids, models.DepthLevel{
						Price: mustDecimal(b.Price),
						Qty:   mustDecimal(b.Quantity),
					})
				}
				for _, a := range event.Asks {
					snapshot.Asks = append(snapshot.Asks, models.DepthLevel{
						Price: mustDecimal(a.Price),
						Qty:   mustDecimal(a.Quantity),
					})
				}
				handlers.OnDepth(snapshot)
			}, wrapErrHandler(handlers.OnError))
		})
	}

	if handlers.OnCandle != nil {
		g.stream.Run(ctx, "kline", func() (chan struct{}, chan struct{}, error) {
			return binance.WsKlineServe(symbol, interval, func(event *binance.WsKlineEvent) {
				k := event.Kline
				handlers.OnCandle(models.Candle{
					OpenTime:  time.UnixMilli(k.StartTime).UTC(),
					CloseTime: time.UnixMilli(k.EndTime).UTC(),
					Open:      mustDecimal(k.Open),
					High:      mustDecimal(k.High),
					Low:       mustDecimal(k.Low),
					Close:     mustDecimal(k.Close),
					Volume:    mustDecimal(k.Volume),
					Closed:    k.IsFinal,
				})
			}, wrapErrHandler(handlers.OnError))
		})
	}

	return nil
}

// SubscribeUserData подписывается на приватный поток аккаунта.
// Получает listen key и периодически продлевает его.
func (g *BinanceGateway) SubscribeUserData(ctx context.Context, handlers AccountHandlers) error {
	listenKey, err := g.client.NewStartUserStreamService().Do(ctx)
	if err != nil {
		return &GatewayError{Op: "start_user_stream", Message: "failed to obtain listen key", Original: err}
	}
	g.listenKey = listenKey

	go g.keepaliveLoop(ctx)

	g.stream.Run(ctx, "user_data", func() (chan struct{}, chan struct{}, error) {
		return binance.WsUserDataServe(g.listenKey, func(event *binance.WsUserDataEvent) {
			switch event.Event {
			case binance.UserDataEventTypeExecutionReport:
				if handlers.OnExecutionReport == nil {
					return
				}
				o := event.OrderUpdate
				handlers.OnExecutionReport(models.ExecutionReport{
					Symbol:          o.Symbol,
					ClientOrderID:   o.ClientOrderId,
					OrigClientID:    o.OrigCustomOrderId,
					OrderID:         o.Id,
					Side:            o.Side,
					Type:            o.Type,
					Status:          o.Status,
					FilledQty:       mustDecimal(o.FilledVolume),
					FilledQuoteQty:  mustDecimal(o.FilledQuoteVolume),
					TransactionTime: time.UnixMilli(o.TransactionTime).UTC(),
				})

			case binance.UserDataEventTypeOutboundAccountPosition:
				if handlers.OnBalanceUpdate == nil {
					return
				}
				for _, b := range event.AccountUpdate.WsAccountUpdates {
					handlers.OnBalanceUpdate(b.Asset, mustDecimal(b.Free))
				}
			}
		}, wrapErrHandler(handlers.OnError))
	})

	return nil
}

// keepaliveLoop продлевает listen key каждые 30 минут.
// Binance закрывает user data stream через 60 минут без keepalive.
func (g *BinanceGateway) keepaliveLoop(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			err := g.client.NewKeepaliveUserStreamService().ListenKey(g.listenKey).Do(ctx)
			if err != nil {
				logger.Warn("listen key keepalive failed", zap.Error(err))
			}
		}
	}
}

// Close останавливает все потоки и освобождает listen key.
// Без явного закрытия Binance держит user data stream еще 60 минут.
func (g *BinanceGateway) Close() error {
	g.stream.StopAll()

	if g.listenKey != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		err := g.client.NewCloseUserStreamService().ListenKey(g.listenKey).Do(ctx)
		if err != nil {
			logger.Warn("listen key release failed", zap.Error(err))
		}
		g.listenKey = ""
	}

	return nil
}

// wrapErrHandler конвертирует опциональный обработчик ошибок в формат go-binance
func wrapErrHandler(onError func(error)) func(error) {
	return func(err error) {
		logger.Warn("stream error", zap.Error(err))
		if onError != nil {
			onError(err)
		}
	}
}

// mustDecimal парсит строку биржи в decimal.
// Нераспознанные значения трактуются как ноль: биржа иногда отдает
// пустые строки в опциональных полях.
func mustDecimal(s string) decimal.Decimal {
	if s == "" {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		logger.Warn("unparsable decimal from exchange", zap.String("value", s))
		return decimal.Zero
	}
	return d
}
