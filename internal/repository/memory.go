package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/mmeshcher/orderflow/internal/model"
)

// MemoryRepository хранит заказы в памяти процесса.
// Используется, когда адрес БД не задан.
type MemoryRepository struct {
	mu       sync.Mutex
	orders   map[int64]*model.Order
	byNumber map[string]int64
	lastID   int64
	lastSeq  int64
	now      func() time.Time
}

// NewMemoryRepository создаёт пустое хранилище в памяти.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		orders:   make(map[int64]*model.Order),
		byNumber: make(map[string]int64),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Close ничего не делает.
func (r *MemoryRepository) Close() error {
	return nil
}

// NextOrderSequence возвращает следующее значение последовательности номеров заказов.
func (r *MemoryRepository) NextOrderSequence(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lastSeq++
	return r.lastSeq, nil
}

// CreateOrder сохраняет новый заказ.
func (r *MemoryRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byNumber[o.Number]; ok {
		return fmt.Errorf("insert order: duplicate number %s", o.Number)
	}

	r.lastID++
	now := r.now()
	o.ID = r.lastID
	o.Revision = 0
	o.CreatedAt = now
	o.UpdatedAt = now

	r.orders[o.ID] = cloneOrder(o)
	r.byNumber[o.Number] = o.ID
	return nil
}

// LoadOrder возвращает копию заказа по идентификатору.
func (r *MemoryRepository) LoadOrder(ctx context.Context, id int64) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	return cloneOrder(o), nil
}

// LoadOrderByNumber возвращает копию заказа по номеру.
func (r *MemoryRepository) LoadOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id, ok := r.byNumber[number]
	if !ok {
		return nil, fmt.Errorf("%w: number %s", ErrOrderNotFound, number)
	}
	return cloneOrder(r.orders[id]), nil
}

// ListOrders возвращает заказы, начиная с самых новых.
func (r *MemoryRepository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	res := make([]model.Order, 0, len(r.orders))
	for _, o := range r.orders {
		if f.Status != "" && o.Status != f.Status {
			continue
		}
		res = append(res, *cloneOrder(o))
	}

	sort.Slice(res, func(i, j int) bool {
		return res[i].ID > res[j].ID
	})

	if f.Limit > 0 && len(res) > f.Limit {
		res = res[:f.Limit]
	}
	return res, nil
}

// SaveOrder применяет изменения, если ревизия заказа совпадает с ожидаемой.
func (r *MemoryRepository) SaveOrder(ctx context.Context, id, expectedRevision int64, p model.OrderPatch) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	if o.Revision != expectedRevision {
		return nil, fmt.Errorf("%w: id %d, revision %d, expected %d", ErrConflict, id, o.Revision, expectedRevision)
	}

	o.Status = p.Status
	if p.Shipping != nil {
		s := *p.Shipping
		o.Shipping = &s
	}
	for _, st := range []struct {
		status model.OrderStatus
		at     *time.Time
	}{
		{model.OrderStatusConfirmed, p.ConfirmedAt},
		{model.OrderStatusPaid, p.PaidAt},
		{model.OrderStatusProcessing, p.ProcessingAt},
		{model.OrderStatusShipped, p.ShippedAt},
		{model.OrderStatusDelivered, p.DeliveredAt},
		{model.OrderStatusCancelled, p.CancelledAt},
	} {
		if st.at != nil {
			o.SetStatusTime(st.status, *st.at)
		}
	}
	o.Revision++
	o.UpdatedAt = r.now()

	return cloneOrder(o), nil
}

// UpdateAdminNotes заменяет заметки администратора.
func (r *MemoryRepository) UpdateAdminNotes(ctx context.Context, id int64, notes string) (*model.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	o, ok := r.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
	}
	o.AdminNotes = notes
	o.UpdatedAt = r.now()
	return cloneOrder(o), nil
}

func cloneOrder(o *model.Order) *model.Order {
	c := *o
	c.Items = append([]model.LineItem(nil), o.Items...)
	if o.Shipping != nil {
		s := *o.Shipping
		c.Shipping = &s
	}
	return &c
}
