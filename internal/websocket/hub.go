package websocket

import (
	"bytes"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"tradebot/internal/models"
	"tradebot/pkg/logger"
)

// ============ ОПТИМИЗАЦИЯ: sync.Pool для JSON буферов ============
// Убирает аллокации при каждом Broadcast

var jsonBufferPool = sync.Pool{
	New: func() interface{} {
		return bytes.NewBuffer(make([]byte, 0, 512)) // начальный размер 512 байт
	},
}

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Hub управляет всеми активными WebSocket соединениями
//
// Центральный менеджер broadcast-сообщений подключенным клиентам UI:
// real-time обновления статуса, ордеров, балансов и статистики без
// необходимости polling.
//
// Использование:
// 1. Создать hub: hub := NewHub()
// 2. Запустить в горутине: go hub.Run()
// 3. Отправлять сообщения: hub.BroadcastStatusUpdate(...)
type Hub struct {
	// Зарегистрированные клиенты
	clients map[*Client]bool

	// Broadcast канал для отправки сообщений всем клиентам
	broadcast chan []byte

	// Регистрация нового клиента
	register chan *Client

	// Отмена регистрации клиента
	unregister chan *Client

	// Mutex для потокобезопасного доступа к clients
	mu sync.RWMutex
}

// NewHub создает новый Hub
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
	}
}

// Run запускает главный цикл Hub
//
// Должен запускаться в отдельной горутине: go hub.Run()
// Обрабатывает регистрацию, отмену регистрации и broadcast.
//
// ОПТИМИЗАЦИЯ: рассылка идет по копии списка клиентов под коротким
// RLock, медленные клиенты удаляются отдельно под Write Lock
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("websocket client connected", zap.Int("total", total))

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			total := len(h.clients)
			h.mu.Unlock()
			logger.Debug("websocket client disconnected", zap.Int("total", total))

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			// Отправка без блокировки, чтобы не тормозить register/unregister
			var toRemove []*Client
			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Клиент не успевает обрабатывать сообщения
					toRemove = append(toRemove, client)
				}
			}

			if len(toRemove) > 0 {
				h.mu.Lock()
				for _, client := range toRemove {
					if _, ok := h.clients[client]; ok {
						delete(h.clients, client)
						close(client.send)
					}
				}
				total := len(h.clients)
				h.mu.Unlock()
				logger.Warn("removed slow websocket clients",
					zap.Int("removed", len(toRemove)),
					zap.Int("total", total))
			}
		}
	}
}

// Broadcast отправляет сообщение всем подключенным клиентам.
// ОПТИМИЗАЦИЯ: сериализация через sync.Pool буферов
func (h *Hub) Broadcast(message interface{}) {
	buf := jsonBufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	if err := json.NewEncoder(buf).Encode(message); err != nil {
		logger.Error("failed to marshal broadcast message", zap.Error(err))
		jsonBufferPool.Put(buf)
		return
	}

	// Убираем trailing newline от Encode
	data := buf.Bytes()
	if len(data) > 0 && data[len(data)-1] == '\n' {
		data = data[:len(data)-1]
	}

	// Копия данных: буфер вернется в пул
	msgCopy := make([]byte, len(data))
	copy(msgCopy, data)

	jsonBufferPool.Put(buf)

	h.broadcast <- msgCopy
}

// BroadcastStatusUpdate отправляет смену статуса бота
func (h *Hub) BroadcastStatusUpdate(status models.BotStatus, inPosition bool, entry *models.EntryDetails, lastError string) {
	h.Broadcast(NewStatusUpdateMessage(status, inPosition, entry, lastError))
}

// BroadcastOrderUpdate отправляет исполненный ордер
func (h *Hub) BroadcastOrderUpdate(record *models.OrderRecord) {
	h.Broadcast(NewOrderUpdateMessage(record))
}

// BroadcastBalanceUpdate отправляет обновление баланса актива
func (h *Hub) BroadcastBalanceUpdate(asset, free string) {
	h.Broadcast(NewBalanceUpdateMessage(asset, free))
}

// BroadcastStatsUpdate отправляет обновление статистики
func (h *Hub) BroadcastStatsUpdate(stats *models.Stats) {
	h.Broadcast(NewStatsUpdateMessage(stats))
}

// BroadcastConfigUpdate отправляет уведомление о новой конфигурации
func (h *Hub) BroadcastConfigUpdate(changedKeys []string, restartRecommended bool) {
	h.Broadcast(NewConfigUpdateMessage(changedKeys, restartRecommended))
}

// ClientCount возвращает количество подключенных клиентов
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
