package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"
	"go.uber.org/zap"

	"tradebot/pkg/logger"
)

// connectFunc устанавливает одно WebSocket соединение в стиле go-binance:
// возвращает канал завершения, канал остановки и ошибку подключения.
type connectFunc func() (doneC, stopC chan struct{}, err error)

// StreamSupervisor держит WebSocket потоки живыми.
//
// Каждый поток работает в своей горутине: при разрыве соединения
// супервизор переподключается с экспоненциальной задержкой и jitter,
// при успешном подключении задержка сбрасывается. Потоки живут до
// отмены контекста или вызова StopAll. После StopAll супервизор
// готов к новым вызовам Run: жизненный цикл бота допускает
// повторный запуск без пересоздания шлюза.
type StreamSupervisor struct {
	minDelay time.Duration
	maxDelay time.Duration

	mu   sync.Mutex
	done chan struct{}
	wg   sync.WaitGroup
}

// NewStreamSupervisor создает супервизор потоков
func NewStreamSupervisor(minDelay, maxDelay time.Duration) *StreamSupervisor {
	if minDelay <= 0 {
		minDelay = time.Second
	}
	if maxDelay < minDelay {
		maxDelay = 30 * time.Second
	}
	return &StreamSupervisor{
		minDelay: minDelay,
		maxDelay: maxDelay,
		done:     make(chan struct{}),
	}
}

// Run запускает поток под наблюдением супервизора.
// Возвращает сразу; переподключения выполняются в фоне.
func (s *StreamSupervisor) Run(ctx context.Context, name string, connect connectFunc) {
	s.mu.Lock()
	done := s.done
	s.mu.Unlock()

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		b := &backoff.Backoff{
			Min:    s.minDelay,
			Max:    s.maxDelay,
			Factor: 2,
			Jitter: true,
		}

		for {
			select {
			case <-ctx.Done():
				return
			case <-done:
				return
			default:
			}

			doneC, stopC, err := connect()
			if err != nil {
				delay := b.Duration()
				logger.Warn("stream connect failed",
					zap.String("stream", name),
					zap.Duration("retry_in", delay),
					zap.Error(err))

				select {
				case <-ctx.Done():
					return
				case <-done:
					return
				case <-time.After(delay):
					continue
				}
			}

			logger.Info("stream connected", zap.String("stream", name))
			b.Reset()

			select {
			case <-ctx.Done():
				close(stopC)
				<-doneC
				return
			case <-done:
				close(stopC)
				<-doneC
				return
			case <-doneC:
				// Соединение разорвано, переподключаемся
				logger.Warn("stream disconnected", zap.String("stream", name))
			}
		}
	}()
}

// StopAll останавливает все потоки и ждет завершения горутин.
// Повторный вызов безопасен. После возврата супервизор снова
// принимает Run — новые потоки получают свежий канал остановки.
func (s *StreamSupervisor) StopAll() {
	s.mu.Lock()
	select {
	case <-s.done:
		// уже закрыт предыдущим StopAll
	default:
		close(s.done)
	}
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	s.done = make(chan struct{})
	s.mu.Unlock()
}
