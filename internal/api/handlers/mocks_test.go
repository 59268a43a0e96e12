package handlers

import (
	"errors"
	"sync"

	"github.com/shopspring/decimal"

	"tradebot/internal/bot"
	"tradebot/internal/models"
)

// ErrMockDatabase имитирует ошибку БД в тестах
var ErrMockDatabase = errors.New("mock database error")

// ============ Mock Bot State Reader ============

// MockStateReader мок для BotStateReader
type MockStateReader struct {
	status       models.BotStatus
	inPosition   bool
	entry        *models.EntryDetails
	openOrder    *models.OpenOrderRef
	quoteBalance decimal.Decimal
	baseBalance  decimal.Decimal
	lastError    string
	candleCount  int
	mu           sync.RWMutex
}

// NewMockStateReader создает мок состояния с дефолтными значениями
func NewMockStateReader() *MockStateReader {
	return &MockStateReader{
		status:       models.StatusStopped,
		quoteBalance: decimal.NewFromInt(10000),
	}
}

func (m *MockStateReader) Status() models.BotStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

func (m *MockStateReader) InPosition() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.inPosition
}

func (m *MockStateReader) Entry() *models.EntryDetails {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entry.Clone()
}

func (m *MockStateReader) OpenOrder() *models.OpenOrderRef {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.openOrder == nil {
		return nil
	}
	cp := *m.openOrder
	return &cp
}

func (m *MockStateReader) Balances() (quote, base decimal.Decimal) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.quoteBalance, m.baseBalance
}

func (m *MockStateReader) LastError() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastError
}

func (m *MockStateReader) CandleCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.candleCount
}

// SetPosition устанавливает открытую позицию в моке
func (m *MockStateReader) SetPosition(entry *models.EntryDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inPosition = entry != nil
	m.entry = entry
}

// SetStatus устанавливает статус в моке
func (m *MockStateReader) SetStatus(status models.BotStatus) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.status = status
}

// ============ Mock Bot Controller ============

// MockBotController мок для BotController
type MockBotController struct {
	running    bool
	startErr   error
	stopErr    error
	startCalls int
	stopCalls  int
	mu         sync.Mutex
}

// NewMockBotController создает мок движка в остановленном состоянии
func NewMockBotController() *MockBotController {
	return &MockBotController{}
}

func (m *MockBotController) Start() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startCalls++
	if m.startErr != nil {
		return m.startErr
	}
	m.running = true
	return nil
}

func (m *MockBotController) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopCalls++
	if m.stopErr != nil {
		return m.stopErr
	}
	if !m.running {
		return errors.New("engine is not running")
	}
	m.running = false
	return nil
}

func (m *MockBotController) IsRunning() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// StartCalls возвращает количество вызовов Start
func (m *MockBotController) StartCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startCalls
}

// ============ Mock Config Provider ============

// MockConfigProvider мок для ConfigProvider
type MockConfigProvider struct {
	current   *models.TradingConfig
	result    *bot.UpdateResult
	updateErr error
	lastInput map[string]string
	mu        sync.Mutex
}

// NewMockConfigProvider создает мок с минимальной валидной конфигурацией
func NewMockConfigProvider() *MockConfigProvider {
	return &MockConfigProvider{
		current: &models.TradingConfig{
			Symbol:       "BTCUSDT",
			Testnet:      true,
			StrategyType: models.StrategyScalping,
			Timeframe:    "1m",
			RiskPerTrade: decimal.RequireFromString("0.01"),
		},
		result: &bot.UpdateResult{ChangedKeys: []string{}},
	}
}

func (m *MockConfigProvider) Get() *models.TradingConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current.Clone()
}

func (m *MockConfigProvider) Update(params map[string]string) (*bot.UpdateResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastInput = params
	if m.updateErr != nil {
		return nil, m.updateErr
	}
	return m.result, nil
}

// LastInput возвращает параметры последнего вызова Update
func (m *MockConfigProvider) LastInput() map[string]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInput
}

// ============ Mock Config Broadcaster ============

// MockBroadcaster мок для ConfigBroadcaster
type MockBroadcaster struct {
	calls []broadcastCall
	mu    sync.Mutex
}

type broadcastCall struct {
	keys    []string
	restart bool
}

func (m *MockBroadcaster) BroadcastConfigUpdate(changedKeys []string, restartRecommended bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, broadcastCall{keys: changedKeys, restart: restartRecommended})
}

// Calls возвращает зафиксированные рассылки
func (m *MockBroadcaster) Calls() []broadcastCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// ============ Mock Order Store ============

// MockOrderStore мок для OrderStore
type MockOrderStore struct {
	orders    []*models.OrderRecord
	stats     *models.Stats
	listErr   error
	statsErr  error
	lastLimit int
	mu        sync.Mutex
}

// NewMockOrderStore создает пустой мок журнала ордеров
func NewMockOrderStore() *MockOrderStore {
	return &MockOrderStore{stats: &models.Stats{}}
}

func (m *MockOrderStore) List(limit, offset int) ([]*models.OrderRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lastLimit = limit
	if m.listErr != nil {
		return nil, m.listErr
	}
	if offset >= len(m.orders) {
		return nil, nil
	}
	end := offset + limit
	if end > len(m.orders) {
		end = len(m.orders)
	}
	return m.orders[offset:end], nil
}

func (m *MockOrderStore) GetStats() (*models.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statsErr != nil {
		return nil, m.statsErr
	}
	return m.stats, nil
}

// LastLimit возвращает limit последнего вызова List
func (m *MockOrderStore) LastLimit() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastLimit
}
