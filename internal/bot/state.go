package bot

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"tradebot/internal/models"
	"tradebot/pkg/logger"
)

// ============================================================
// StateStore - разделяемое состояние бота
// ============================================================
//
// Состояние разбито на четыре независимых домена блокировок:
//
//   - core:     статус, позиция, балансы, открытый ордер, cooldown
//   - candles:  кольцевой буфер закрытых свечей
//   - realtime: последний тикер и срез стакана
//   - pending:  защитные уровни отправленных ордеров по correlation id
//
// Домены не берутся вложенно, что исключает дедлоки. Тикеры приходят
// сотнями в секунду - их запись не должна конкурировать с обработкой
// свечей или ордеров.
//
// Блокировки никогда не держатся через блокирующий I/O: мутация под
// замком, копия изменившегося durable-среза, разблокировка, и только
// потом синхронная запись в хранилище.

// Persistence сохраняет durable-срез состояния.
// Переживать рестарт обязаны только факт позиции и ее детали.
type Persistence interface {
	SaveBotState(inPosition bool, entry *models.EntryDetails) error
}

// StatusListener уведомляется о смене статуса или позиции
type StatusListener func(status models.BotStatus, inPosition bool)

// CoreUpdate описывает атомарное обновление core-домена.
// nil-поля не трогаются.
type CoreUpdate struct {
	Status     *models.BotStatus
	InPosition *bool

	Entry      *models.EntryDetails
	ClearEntry bool

	QuoteBalance *decimal.Decimal
	BaseBalance  *decimal.Decimal

	OpenOrder      *models.OpenOrderRef
	ClearOpenOrder bool

	// Тикер в core-обновлении подтягивает трейлинг-экстремумы позиции
	Ticker *models.BookTicker

	LastError *string
}

// StateStore хранит разделяемое состояние бота
type StateStore struct {
	persist  Persistence
	listener StatusListener

	// core
	coreMu     sync.Mutex
	status     models.BotStatus
	inPosition bool
	entry      *models.EntryDetails
	quoteFree  decimal.Decimal
	baseFree   decimal.Decimal
	openOrder  *models.OpenOrderRef
	lastError  string

	// cooldown: единственная точка сериализации отправки ордеров
	lastOrderAtMs int64

	// candles
	candlesMu sync.RWMutex
	candles   []models.Candle
	capacity  int

	// realtime
	rtMu   sync.RWMutex
	ticker *models.BookTicker
	depth  *models.DepthSnapshot

	// pending
	pendingMu sync.Mutex
	pending   map[string]models.PendingRisk
}

// NewStateStore создает хранилище состояния.
// candleCapacity - вместимость кольца свечей (прогрев индикаторов).
func NewStateStore(persist Persistence, candleCapacity int) *StateStore {
	if candleCapacity < 1 {
		candleCapacity = 1
	}
	return &StateStore{
		persist:  persist,
		status:   models.StatusStopped,
		capacity: candleCapacity,
		pending:  make(map[string]models.PendingRisk),
	}
}

// SetStatusListener регистрирует слушателя смены статуса.
// Вызывается до старта, не потокобезопасно.
func (s *StateStore) SetStatusListener(l StatusListener) {
	s.listener = l
}

// ============ core ============

// ApplyCore атомарно применяет обновление core-домена.
//
// Если изменился durable-срез (inPosition или детали позиции),
// состояние синхронно сохраняется ПОСЛЕ снятия блокировки и до
// возврата. Ошибка записи возвращается вызывающему: торговые решения
// не должны опираться на состояние, которое не переживет рестарт.
func (s *StateStore) ApplyCore(u CoreUpdate) error {
	s.coreMu.Lock()

	statusChanged := false
	durableChanged := false

	if u.Status != nil && *u.Status != s.status {
		if !CanTransition(s.status, *u.Status) {
			from := s.status
			s.coreMu.Unlock()
			return fmt.Errorf("invalid status transition %s -> %s", from, *u.Status)
		}
		s.status = *u.Status
		statusChanged = true
	}

	if u.InPosition != nil && *u.InPosition != s.inPosition {
		s.inPosition = *u.InPosition
		durableChanged = true
		statusChanged = true
	}

	if u.ClearEntry {
		if s.entry != nil {
			s.entry = nil
			durableChanged = true
		}
	} else if u.Entry != nil {
		s.entry = u.Entry.Clone()
		durableChanged = true
	}

	if u.QuoteBalance != nil {
		s.quoteFree = *u.QuoteBalance
	}
	if u.BaseBalance != nil {
		s.baseFree = *u.BaseBalance
	}

	if u.ClearOpenOrder {
		s.openOrder = nil
	} else if u.OpenOrder != nil {
		cp := *u.OpenOrder
		s.openOrder = &cp
	}

	if u.LastError != nil {
		s.lastError = *u.LastError
	}

	// Трейлинг-экстремумы монотонны: максимум только растет,
	// минимум только падает
	if u.Ticker != nil && s.inPosition && s.entry != nil {
		bid := u.Ticker.BidPrice
		if bid.GreaterThan(s.entry.HighestPrice) {
			s.entry.HighestPrice = bid
			durableChanged = true
		}
		if s.entry.LowestPrice.IsZero() || bid.LessThan(s.entry.LowestPrice) {
			s.entry.LowestPrice = bid
			durableChanged = true
		}
	}

	// Снимок durable-среза под замком, запись - после
	status := s.status
	inPosition := s.inPosition
	entryCopy := s.entry.Clone()

	s.coreMu.Unlock()

	if statusChanged {
		RecordStatus(string(status))
		RecordInPosition(inPosition)
		if s.listener != nil {
			s.listener(status, inPosition)
		}
	}

	if durableChanged && s.persist != nil {
		if err := s.persist.SaveBotState(inPosition, entryCopy); err != nil {
			logger.Error("failed to persist bot state", zap.Error(err))
			return fmt.Errorf("persist bot state: %w", err)
		}
	}

	return nil
}

// Status возвращает текущий статус бота
func (s *StateStore) Status() models.BotStatus {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()
	return s.status
}

// InPosition возвращает, открыта ли позиция
func (s *StateStore) InPosition() bool {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()
	return s.inPosition
}

// Entry возвращает копию деталей позиции (nil вне позиции)
func (s *StateStore) Entry() *models.EntryDetails {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()
	return s.entry.Clone()
}

// Balances возвращает свободные балансы quote и base активов
func (s *StateStore) Balances() (quote, base decimal.Decimal) {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()
	return s.quoteFree, s.baseFree
}

// OpenOrder возвращает копию отслеживаемого открытого ордера
func (s *StateStore) OpenOrder() *models.OpenOrderRef {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()
	if s.openOrder == nil {
		return nil
	}
	cp := *s.openOrder
	return &cp
}

// LastError возвращает последнюю зафиксированную ошибку
func (s *StateStore) LastError() string {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()
	return s.lastError
}

// TryReserveOrderSlot атомарно проверяет и занимает слот отправки
// ордера. Глобальный cooldown - единственная сериализация исполнителя:
// пока слот занят, второй ордер не уйдет на биржу.
func (s *StateStore) TryReserveOrderSlot(cooldownMs int64) bool {
	now := time.Now().UnixMilli()

	s.coreMu.Lock()
	defer s.coreMu.Unlock()

	if s.lastOrderAtMs != 0 && now-s.lastOrderAtMs < cooldownMs {
		return false
	}
	s.lastOrderAtMs = now
	return true
}

// ReleaseOrderSlot освобождает слот после отказа биржи:
// неотправленный ордер не должен блокировать следующую попытку
func (s *StateStore) ReleaseOrderSlot() {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()
	s.lastOrderAtMs = 0
}

// RequestOpenOrderCancel помечает открытый ордер на отмену.
// Возвращает client id и true только при первом вызове: ровно один
// запрос отмены на один протухший LIMIT-ордер.
func (s *StateStore) RequestOpenOrderCancel() (string, bool) {
	s.coreMu.Lock()
	defer s.coreMu.Unlock()

	if s.openOrder == nil || s.openOrder.CancelRequested {
		return "", false
	}
	s.openOrder.CancelRequested = true
	return s.openOrder.ClientOrderID, true
}

// RestoreDurable восстанавливает durable-срез при старте процесса.
//
// Инвариант позиции: inPosition=true только при валидных деталях входа
// (положительные цена и количество). Битая запись в БД защитно
// сбрасывается в "нет позиции" - торговать по ней все равно нельзя.
func (s *StateStore) RestoreDurable(inPosition bool, entry *models.EntryDetails) {
	if inPosition && !validEntry(entry) {
		logger.Warn("persisted position has invalid entry details, forcing flat state",
			zap.Bool("entry_present", entry != nil))
		inPosition = false
		entry = nil
	}

	s.coreMu.Lock()
	defer s.coreMu.Unlock()
	s.inPosition = inPosition
	s.entry = entry.Clone()
}

// validEntry проверяет детали входа на пригодность к торговле
func validEntry(entry *models.EntryDetails) bool {
	return entry != nil && entry.EntryPrice.IsPositive() && entry.Quantity.IsPositive()
}

// ============ candles ============

// AppendCandle добавляет закрытую свечу в кольцо.
// Свеча с тем же временем открытия заменяет последнюю (обновление
// еще не финализированной свечи биржей).
func (s *StateStore) AppendCandle(c models.Candle) {
	if !c.Closed {
		return
	}

	s.candlesMu.Lock()
	defer s.candlesMu.Unlock()

	if n := len(s.candles); n > 0 && s.candles[n-1].OpenTime.Equal(c.OpenTime) {
		s.candles[n-1] = c
	} else {
		s.candles = append(s.candles, c)
		if len(s.candles) > s.capacity {
			// ОПТИМИЗАЦИЯ: сдвиг вместо реаллокации при каждом добавлении
			copy(s.candles, s.candles[len(s.candles)-s.capacity:])
			s.candles = s.candles[:s.capacity]
		}
	}

	CandleRingSize.Set(float64(len(s.candles)))
}

// Candles возвращает копию кольца свечей (от старых к новым)
func (s *StateStore) Candles() []models.Candle {
	s.candlesMu.RLock()
	defer s.candlesMu.RUnlock()

	out := make([]models.Candle, len(s.candles))
	copy(out, s.candles)
	return out
}

// CandleCount возвращает количество накопленных свечей
func (s *StateStore) CandleCount() int {
	s.candlesMu.RLock()
	defer s.candlesMu.RUnlock()
	return len(s.candles)
}

// SeedCandles заполняет кольцо историческими свечами при старте
func (s *StateStore) SeedCandles(candles []models.Candle) {
	s.candlesMu.Lock()
	defer s.candlesMu.Unlock()

	s.candles = s.candles[:0]
	for _, c := range candles {
		if !c.Closed {
			continue
		}
		s.candles = append(s.candles, c)
	}
	if len(s.candles) > s.capacity {
		copy(s.candles, s.candles[len(s.candles)-s.capacity:])
		s.candles = s.candles[:s.capacity]
	}

	CandleRingSize.Set(float64(len(s.candles)))
}

// ResizeCandleCapacity меняет вместимость кольца без перезапуска,
// сохраняя самые свежие свечи
func (s *StateStore) ResizeCandleCapacity(capacity int) {
	if capacity < 1 {
		capacity = 1
	}

	s.candlesMu.Lock()
	defer s.candlesMu.Unlock()

	s.capacity = capacity
	if len(s.candles) > capacity {
		copy(s.candles, s.candles[len(s.candles)-capacity:])
		s.candles = s.candles[:capacity]
	}
}

// ResetCandles очищает кольцо (смена таймфрейма или стратегии)
func (s *StateStore) ResetCandles() {
	s.candlesMu.Lock()
	defer s.candlesMu.Unlock()
	s.candles = s.candles[:0]
	CandleRingSize.Set(0)
}

// ============ realtime ============

// SetTicker сохраняет последний bookTicker
func (s *StateStore) SetTicker(t models.BookTicker) {
	s.rtMu.Lock()
	defer s.rtMu.Unlock()
	s.ticker = &t
}

// Ticker возвращает копию последнего bookTicker (nil до первого тика)
func (s *StateStore) Ticker() *models.BookTicker {
	s.rtMu.RLock()
	defer s.rtMu.RUnlock()
	if s.ticker == nil {
		return nil
	}
	cp := *s.ticker
	return &cp
}

// SetDepth сохраняет последний срез стакана
func (s *StateStore) SetDepth(d models.DepthSnapshot) {
	s.rtMu.Lock()
	defer s.rtMu.Unlock()
	s.depth = &d
}

// Depth возвращает копию последнего среза стакана
func (s *StateStore) Depth() *models.DepthSnapshot {
	s.rtMu.RLock()
	defer s.rtMu.RUnlock()
	if s.depth == nil {
		return nil
	}

	cp := models.DepthSnapshot{
		Symbol:    s.depth.Symbol,
		Bids:      make([]models.DepthLevel, len(s.depth.Bids)),
		Asks:      make([]models.DepthLevel, len(s.depth.Asks)),
		UpdatedAt: s.depth.UpdatedAt,
	}
	copy(cp.Bids, s.depth.Bids)
	copy(cp.Asks, s.depth.Asks)
	return &cp
}

// ============ pending ============

// AddPendingRisk привязывает защитные уровни к correlation id
// отправленного ордера
func (s *StateStore) AddPendingRisk(risk models.PendingRisk) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	s.pending[risk.ClientOrderID] = risk
}

// ConsumePendingRisk изымает защитные уровни по correlation id.
// Удаление при изъятии гарантирует идемпотентность: повторный отчет
// биржи по тому же ордеру не применит уровни второй раз.
func (s *StateStore) ConsumePendingRisk(clientOrderID string) (models.PendingRisk, bool) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()

	risk, ok := s.pending[clientOrderID]
	if ok {
		delete(s.pending, clientOrderID)
	}
	return risk, ok
}

// RemovePendingRisk удаляет уровни без применения (отказ биржи)
func (s *StateStore) RemovePendingRisk(clientOrderID string) {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	delete(s.pending, clientOrderID)
}

// PendingCount возвращает количество ожидающих привязок
func (s *StateStore) PendingCount() int {
	s.pendingMu.Lock()
	defer s.pendingMu.Unlock()
	return len(s.pending)
}
