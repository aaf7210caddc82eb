// Package repository содержит реализации хранилища заказов.
package repository

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/mmeshcher/orderflow/internal/model"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var (
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrConflict возвращается, если заказ был изменён после того, как вызывающий его прочитал.
	ErrConflict = errors.New("order was modified concurrently")
)

const orderColumns = `id, number, status, items,
	carrier, carrier_name, tracking_number, tracking_url, shipping_notes, estimated_delivery,
	confirmed_at, paid_at, processing_at, shipped_at, delivered_at, cancelled_at,
	admin_notes, revision, created_at, updated_at`

// PostgresRepository предоставляет доступ к заказам в PostgreSQL.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	delays []time.Duration
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{
		pool:   pool,
		delays: []time.Duration{100 * time.Millisecond, 300 * time.Millisecond, 1 * time.Second},
	}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	return r.retryOn(ctx, isRetryable, fn)
}

// retryOn повторяет fn, пока retryable считает ошибку временной.
func (r *PostgresRepository) retryOn(ctx context.Context, retryable func(error) bool, fn func() error) error {
	var err error

	for i := 0; i <= len(r.delays); i++ {
		err = fn()
		if err == nil || i == len(r.delays) || !retryable(err) {
			return err
		}

		timer := time.NewTimer(r.delays[i])
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
	return err
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return isRolledBack(pgErr)
	}

	return isConnectionError(err)
}

// isRolledBack сообщает, что Postgres откатил операцию и её можно безопасно повторить.
// После обрыва соединения запись могла уже примениться, поэтому такие ошибки сюда не входят.
func isRolledBack(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// NextOrderSequence возвращает следующее значение последовательности номеров заказов.
func (r *PostgresRepository) NextOrderSequence(ctx context.Context) (int64, error) {
	var seq int64
	if err := r.pool.QueryRow(ctx, `SELECT nextval('order_number_seq')`).Scan(&seq); err != nil {
		return 0, fmt.Errorf("next order sequence: %w", err)
	}
	return seq, nil
}

// CreateOrder сохраняет новый заказ и заполняет его идентификатор, ревизию и отметки времени.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) error {
	items, err := encodeItems(o.Items)
	if err != nil {
		return err
	}

	err = r.pool.QueryRow(ctx,
		`INSERT INTO orders (number, status, items, admin_notes)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, revision, created_at, updated_at`,
		o.Number, string(o.Status), items, o.AdminNotes,
	).Scan(&o.ID, &o.Revision, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}
	return nil
}

// LoadOrder возвращает заказ по внутреннему идентификатору.
func (r *PostgresRepository) LoadOrder(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("load order: %w", err)
	}
	return o, nil
}

// LoadOrderByNumber возвращает заказ по номеру.
func (r *PostgresRepository) LoadOrderByNumber(ctx context.Context, number string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE number = $1`, number)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: number %s", ErrOrderNotFound, number)
		}
		return nil, fmt.Errorf("load order by number: %w", err)
	}
	return o, nil
}

// ListOrders возвращает заказы, начиная с самых новых.
func (r *PostgresRepository) ListOrders(ctx context.Context, f model.OrderFilter) ([]model.Order, error) {
	var status *string
	if f.Status != "" {
		s := string(f.Status)
		status = &s
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE $1::text IS NULL OR status = $1
		 ORDER BY created_at DESC, id DESC
		 LIMIT $2`,
		status, f.Limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// SaveOrder применяет изменения статуса, если ревизия заказа совпадает с ожидаемой.
// Отметки времени статусов выставляются только один раз.
// Повтор выполняется только для откатанных сервером попыток: при обрыве соединения
// исход записи неизвестен и вызывающий должен перечитать заказ.
func (r *PostgresRepository) SaveOrder(ctx context.Context, id, expectedRevision int64, p model.OrderPatch) (*model.Order, error) {
	var carrier, carrierName, tracking, trackingURL, notes *string
	var eta *time.Time
	if p.Shipping != nil {
		carrier = &p.Shipping.Carrier
		carrierName = &p.Shipping.CarrierName
		tracking = &p.Shipping.TrackingNumber
		trackingURL = &p.Shipping.TrackingURL
		notes = &p.Shipping.Notes
		eta = p.Shipping.EstimatedDelivery
	}

	var saved *model.Order
	err := r.retryOn(ctx, isRolledBack, func() error {
		row := r.pool.QueryRow(ctx,
			`UPDATE orders SET
				status = $3,
				carrier = COALESCE($4, carrier),
				carrier_name = COALESCE($5, carrier_name),
				tracking_number = COALESCE($6, tracking_number),
				tracking_url = COALESCE($7, tracking_url),
				shipping_notes = COALESCE($8, shipping_notes),
				estimated_delivery = COALESCE($9, estimated_delivery),
				confirmed_at = COALESCE(confirmed_at, $10),
				paid_at = COALESCE(paid_at, $11),
				processing_at = COALESCE(processing_at, $12),
				shipped_at = COALESCE(shipped_at, $13),
				delivered_at = COALESCE(delivered_at, $14),
				cancelled_at = COALESCE(cancelled_at, $15),
				revision = revision + 1,
				updated_at = NOW()
			 WHERE id = $1 AND revision = $2
			 RETURNING `+orderColumns,
			id, expectedRevision, string(p.Status),
			carrier, carrierName, tracking, trackingURL, notes, eta,
			p.ConfirmedAt, p.PaidAt, p.ProcessingAt, p.ShippedAt, p.DeliveredAt, p.CancelledAt,
		)

		o, err := scanOrder(row)
		if err != nil {
			return err
		}
		saved = o
		return nil
	})
	if err == nil {
		return saved, nil
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return nil, r.missingOrConflict(ctx, id, expectedRevision)
	}
	return nil, fmt.Errorf("update order: %w", err)
}

func (r *PostgresRepository) missingOrConflict(ctx context.Context, id, expectedRevision int64) error {
	var revision int64
	err := r.pool.QueryRow(ctx, `SELECT revision FROM orders WHERE id = $1`, id).Scan(&revision)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
		}
		return fmt.Errorf("select order revision: %w", err)
	}
	return fmt.Errorf("%w: id %d, revision %d, expected %d", ErrConflict, id, revision, expectedRevision)
}

// UpdateAdminNotes заменяет заметки администратора независимо от статуса заказа.
func (r *PostgresRepository) UpdateAdminNotes(ctx context.Context, id int64, notes string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`UPDATE orders SET admin_notes = $2, updated_at = NOW()
		 WHERE id = $1
		 RETURNING `+orderColumns,
		id, notes,
	)
	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: id %d", ErrOrderNotFound, id)
		}
		return nil, fmt.Errorf("update admin notes: %w", err)
	}
	return o, nil
}

type itemRecord struct {
	ProductID   string `json:"productId"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	ProductType string `json:"productType"`
}

func encodeItems(items []model.LineItem) ([]byte, error) {
	recs := make([]itemRecord, 0, len(items))
	for _, it := range items {
		recs = append(recs, itemRecord{
			ProductID:   it.ProductID,
			Name:        it.Name,
			Quantity:    it.Quantity,
			ProductType: string(it.ProductType),
		})
	}
	b, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("encode items: %w", err)
	}
	return b, nil
}

func decodeItems(b []byte) ([]model.LineItem, error) {
	var recs []itemRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		return nil, fmt.Errorf("decode items: %w", err)
	}
	items := make([]model.LineItem, 0, len(recs))
	for _, rec := range recs {
		items = append(items, model.LineItem{
			ProductID:   rec.ProductID,
			Name:        rec.Name,
			Quantity:    rec.Quantity,
			ProductType: model.ProductType(rec.ProductType),
		})
	}
	return items, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var (
		o                                           model.Order
		status                                      string
		items                                       []byte
		carrier, carrierName, tracking, trackingURL *string
		notes                                       *string
		eta                                         *time.Time
	)

	err := row.Scan(
		&o.ID, &o.Number, &status, &items,
		&carrier, &carrierName, &tracking, &trackingURL, &notes, &eta,
		&o.ConfirmedAt, &o.PaidAt, &o.ProcessingAt, &o.ShippedAt, &o.DeliveredAt, &o.CancelledAt,
		&o.AdminNotes, &o.Revision, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = model.OrderStatus(status)
	if o.Items, err = decodeItems(items); err != nil {
		return nil, err
	}

	if carrier != nil {
		o.Shipping = &model.Shipping{
			Carrier:           *carrier,
			CarrierName:       deref(carrierName),
			TrackingNumber:    deref(tracking),
			TrackingURL:       deref(trackingURL),
			Notes:             deref(notes),
			EstimatedDelivery: eta,
		}
	}

	return &o, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
