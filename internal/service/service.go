// Package service реализует бизнес-логику обработки заказов.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mmeshcher/orderflow/internal/model"
	"github.com/mmeshcher/orderflow/internal/validation"
	"github.com/mmeshcher/orderflow/internal/workflow"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	orderNumberBase = 100000000

	defaultSaveTimeout = 10 * time.Second
)

var (
	// ErrInvalidOrder возвращается при создании заказа с некорректными позициями.
	ErrInvalidOrder = errors.New("invalid order")
	// ErrInvalidStatus возвращается, если передан неизвестный статус.
	ErrInvalidStatus = errors.New("unknown order status")
)

// Store описывает контракт хранилища заказов, используемый сервисом.
type Store interface {
	Close() error
	NextOrderSequence(ctx context.Context) (int64, error)
	CreateOrder(ctx context.Context, o *model.Order) error
	LoadOrder(ctx context.Context, id int64) (*model.Order, error)
	LoadOrderByNumber(ctx context.Context, number string) (*model.Order, error)
	ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error)
	SaveOrder(ctx context.Context, id, expectedRevision int64, p model.OrderPatch) (*model.Order, error)
	UpdateAdminNotes(ctx context.Context, id int64, notes string) (*model.Order, error)
}

// Publisher принимает события смены статуса для доставки подписчикам.
type Publisher interface {
	Emit(evt model.StatusChangedEvent)
}

// Service содержит бизнес-логику жизненного цикла заказа.
type Service struct {
	store       Store
	machine     *workflow.Machine
	events      Publisher
	logger      *zap.Logger
	saveTimeout time.Duration
}

// NewService создаёт новый сервис.
func NewService(store Store, machine *workflow.Machine, events Publisher, logger *zap.Logger) *Service {
	return &Service{
		store:       store,
		machine:     machine,
		events:      events,
		logger:      logger,
		saveTimeout: defaultSaveTimeout,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.store != nil {
		return s.store.Close()
	}
	return nil
}

// TransitionOrder переводит заказ в целевой статус.
//
// Статус проверяется по свежей копии заказа из хранилища, а сохранение выполняется
// с ревизией этой копии: параллельное изменение приводит к repository.ErrConflict.
// Начатая запись не прерывается отменой контекста вызывающего, но ограничена saveTimeout.
func (s *Service) TransitionOrder(ctx context.Context, orderID int64, target model.OrderStatus, in *workflow.ShippingInput, operator string) (*model.Order, error) {
	current, err := s.store.LoadOrder(ctx, orderID)
	if err != nil {
		return nil, err
	}

	updated, err := s.machine.Apply(*current, target, in)
	if err != nil {
		s.logger.Info("order transition rejected",
			zap.Int64("orderId", orderID),
			zap.String("from", string(current.Status)),
			zap.String("to", string(target)),
			zap.String("operator", operator),
			zap.Error(err))
		return nil, err
	}

	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.saveTimeout)
	defer cancel()

	saved, err := s.store.SaveOrder(saveCtx, orderID, current.Revision, model.PatchFrom(updated))
	if err != nil {
		return nil, err
	}

	evt := model.StatusChangedEvent{
		EventID:        uuid.NewString(),
		OrderID:        saved.ID,
		OrderNumber:    saved.Number,
		PreviousStatus: current.Status,
		NewStatus:      saved.Status,
		Timestamp:      updated.UpdatedAt,
		ChangedBy:      operator,
	}
	if saved.Status == model.OrderStatusShipped && saved.Shipping != nil {
		evt.Carrier = saved.Shipping.Carrier
		evt.TrackingNumber = saved.Shipping.TrackingNumber
		evt.TrackingURL = saved.Shipping.TrackingURL
	}
	s.events.Emit(evt)

	s.logger.Info("order transitioned",
		zap.Int64("orderId", saved.ID),
		zap.String("number", saved.Number),
		zap.String("from", string(current.Status)),
		zap.String("to", string(saved.Status)),
		zap.Int64("revision", saved.Revision),
		zap.String("operator", operator))

	return saved, nil
}

// AllowedTransitions возвращает заказ и статусы, в которые он может перейти.
func (s *Service) AllowedTransitions(ctx context.Context, orderID int64) (*model.Order, []model.OrderStatus, error) {
	o, err := s.store.LoadOrder(ctx, orderID)
	if err != nil {
		return nil, nil, err
	}
	return o, s.machine.AllowedTargets(o), nil
}

// CreateOrder создаёт заказ в статусе PENDING с новым номером.
func (s *Service) CreateOrder(ctx context.Context, items []model.LineItem, notes string) (*model.Order, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: no items", ErrInvalidOrder)
	}

	normalized := make([]model.LineItem, 0, len(items))
	for i, it := range items {
		it.ProductID = strings.TrimSpace(it.ProductID)
		it.ProductType = model.ProductType(strings.ToUpper(string(it.ProductType)))
		if it.ProductID == "" {
			return nil, fmt.Errorf("%w: item %d has no product id", ErrInvalidOrder, i)
		}
		if it.Quantity <= 0 {
			return nil, fmt.Errorf("%w: item %d has non-positive quantity", ErrInvalidOrder, i)
		}
		if it.ProductType != model.ProductTypeDigital && it.ProductType != model.ProductTypePhysical {
			return nil, fmt.Errorf("%w: item %d has unknown product type %q", ErrInvalidOrder, i, it.ProductType)
		}
		normalized = append(normalized, it)
	}

	seq, err := s.store.NextOrderSequence(ctx)
	if err != nil {
		return nil, err
	}

	number, err := orderNumber(seq)
	if err != nil {
		return nil, err
	}

	o := &model.Order{
		Number:     number,
		Status:     model.OrderStatusPending,
		Items:      normalized,
		AdminNotes: notes,
	}
	if err := s.store.CreateOrder(ctx, o); err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.Int64("orderId", o.ID),
		zap.String("number", o.Number),
		zap.Bool("onlyDigital", o.IsOnlyDigital()))

	return o, nil
}

func orderNumber(seq int64) (string, error) {
	payload := strconv.FormatInt(orderNumberBase+seq, 10)
	digit, ok := validation.CheckDigit(payload)
	if !ok {
		return "", fmt.Errorf("build order number from sequence %d", seq)
	}
	return payload + string(digit), nil
}

// GetOrder возвращает заказ по идентификатору.
func (s *Service) GetOrder(ctx context.Context, orderID int64) (*model.Order, error) {
	return s.store.LoadOrder(ctx, orderID)
}

// GetOrderByNumber возвращает заказ по номеру. Номер с неверной контрольной цифрой не ищется.
func (s *Service) GetOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	if !validation.IsValidOrderNumber(number) {
		return nil, fmt.Errorf("%w: malformed number %q", ErrInvalidOrder, number)
	}
	return s.store.LoadOrderByNumber(ctx, number)
}

// ListOrders возвращает заказы с фильтром по статусу.
func (s *Service) ListOrders(ctx context.Context, status model.OrderStatus, limit int) ([]model.Order, error) {
	if status != "" && !status.IsKnown() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidStatus, status)
	}
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return s.store.ListOrders(ctx, model.OrderFilter{Status: status, Limit: limit})
}

// UpdateAdminNotes меняет заметки администратора. Допускается в любом статусе.
func (s *Service) UpdateAdminNotes(ctx context.Context, orderID int64, notes string) (*model.Order, error) {
	return s.store.UpdateAdminNotes(ctx, orderID, strings.TrimSpace(notes))
}
