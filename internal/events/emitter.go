// Package events доставляет события смены статуса заказа подписчикам.
package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderflow/internal/model"
)

// Listener получает события смены статуса заказа.
type Listener interface {
	Name() string
	Handle(ctx context.Context, evt model.StatusChangedEvent) error
}

// ListenerFunc адаптирует функцию к интерфейсу Listener.
type ListenerFunc struct {
	ListenerName string
	Fn           func(ctx context.Context, evt model.StatusChangedEvent) error
}

// Name возвращает имя подписчика.
func (f ListenerFunc) Name() string { return f.ListenerName }

// Handle вызывает обёрнутую функцию.
func (f ListenerFunc) Handle(ctx context.Context, evt model.StatusChangedEvent) error {
	return f.Fn(ctx, evt)
}

const defaultDeliveryTimeout = 30 * time.Second

// Emitter ставит события в очередь и раздаёт их подписчикам в фоне.
// Ошибки подписчиков изолированы и только логируются.
type Emitter struct {
	mu        sync.RWMutex
	listeners []Listener
	queue     chan model.StatusChangedEvent
	logger    *zap.Logger

	// stateMu упорядочивает постановку в очередь и остановку диспетчера.
	stateMu sync.RWMutex
	closed  bool

	deliveryTimeout time.Duration
}

// NewEmitter создаёт эмиттер с очередью указанного размера.
func NewEmitter(logger *zap.Logger, queueSize int) *Emitter {
	if queueSize <= 0 {
		queueSize = 256
	}
	return &Emitter{
		queue:           make(chan model.StatusChangedEvent, queueSize),
		logger:          logger,
		deliveryTimeout: defaultDeliveryTimeout,
	}
}

// Subscribe регистрирует подписчика.
func (e *Emitter) Subscribe(l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners = append(e.listeners, l)
}

// Emit ставит событие в очередь без блокировки. При переполненной очереди событие отбрасывается.
// После остановки диспетчера событие доставляется синхронно в вызывающей горутине.
func (e *Emitter) Emit(evt model.StatusChangedEvent) {
	e.stateMu.RLock()
	if e.closed {
		e.stateMu.RUnlock()
		e.logger.Warn("status event dispatcher is stopped, delivering synchronously",
			zap.String("eventId", evt.EventID),
			zap.Int64("orderId", evt.OrderID))
		e.deliver(context.Background(), evt)
		return
	}
	defer e.stateMu.RUnlock()

	select {
	case e.queue <- evt:
	default:
		e.logger.Warn("status event queue is full, event dropped",
			zap.String("eventId", evt.EventID),
			zap.Int64("orderId", evt.OrderID),
			zap.String("newStatus", string(evt.NewStatus)))
	}
}

// Run раздаёт события из очереди до отмены контекста, затем дочищает очередь.
// Отмена ctx не прерывает уже начатую доставку: каждая ограничена собственным таймаутом.
// Run следует останавливать после того, как новые события перестали поступать.
func (e *Emitter) Run(ctx context.Context) {
	e.logger.Info("status event dispatcher started")
	for {
		select {
		case <-ctx.Done():
			e.stop(ctx)
			e.logger.Info("status event dispatcher stopped")
			return
		case evt := <-e.queue:
			e.deliver(ctx, evt)
		}
	}
}

func (e *Emitter) stop(ctx context.Context) {
	e.stateMu.Lock()
	e.closed = true
	e.stateMu.Unlock()

	for {
		select {
		case evt := <-e.queue:
			e.deliver(ctx, evt)
		default:
			return
		}
	}
}

func (e *Emitter) deliver(ctx context.Context, evt model.StatusChangedEvent) {
	dctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.deliveryTimeout)
	defer cancel()
	e.Dispatch(dctx, evt)
}

// Dispatch синхронно передаёт событие всем подписчикам.
func (e *Emitter) Dispatch(ctx context.Context, evt model.StatusChangedEvent) {
	e.mu.RLock()
	listeners := make([]Listener, len(e.listeners))
	copy(listeners, e.listeners)
	e.mu.RUnlock()

	for _, l := range listeners {
		if err := e.call(ctx, l, evt); err != nil {
			e.logger.Error("status listener failed",
				zap.String("listener", l.Name()),
				zap.String("eventId", evt.EventID),
				zap.Int64("orderId", evt.OrderID),
				zap.Error(err))
		}
	}
}

func (e *Emitter) call(ctx context.Context, l Listener, evt model.StatusChangedEvent) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panic: %v", r)
		}
	}()
	return l.Handle(ctx, evt)
}
