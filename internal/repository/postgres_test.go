package repository

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/orderflow/internal/model"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: true},
		{name: "deadlock", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), want: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, want: false},
		{name: "connection refused", err: errors.New("dial tcp: connection refused"), want: true},
		{name: "context canceled", err: context.Canceled, want: false},
		{name: "other", err: errors.New("boom"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRetryable(tt.err))
		})
	}
}

func TestWithRetry_StopsOnNonRetryable(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{time.Millisecond, time.Millisecond}}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestWithRetry_RetriesSerializationFailure(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{time.Millisecond, time.Millisecond}}

	calls := 0
	err := r.withRetry(context.Background(), func() error {
		calls++
		if calls < 3 {
			return &pgconn.PgError{Code: pgerrcode.SerializationFailure}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestItemsRoundTrip(t *testing.T) {
	items := []model.LineItem{
		{ProductID: "p1", Name: "Taza", Quantity: 2, ProductType: model.ProductTypePhysical},
		{ProductID: "p2", Name: "E-book", Quantity: 1, ProductType: model.ProductTypeDigital},
	}

	b, err := encodeItems(items)
	require.NoError(t, err)

	decoded, err := decodeItems(b)
	require.NoError(t, err)
	assert.Equal(t, items, decoded)
}

func TestIsRolledBack(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "serialization failure", err: &pgconn.PgError{Code: pgerrcode.SerializationFailure}, want: true},
		{name: "deadlock", err: fmt.Errorf("wrapped: %w", &pgconn.PgError{Code: pgerrcode.DeadlockDetected}), want: true},
		{name: "connection reset", err: errors.New("read tcp: connection reset by peer"), want: false},
		{name: "broken pipe", err: errors.New("write tcp: broken pipe"), want: false},
		{name: "unique violation", err: &pgconn.PgError{Code: pgerrcode.UniqueViolation}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isRolledBack(tt.err))
		})
	}
}

func TestRetryOn_SaveIsNotRepeatedAfterLostConnection(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{time.Millisecond, time.Millisecond}}

	calls := 0
	err := r.retryOn(context.Background(), isRolledBack, func() error {
		calls++
		return errors.New("read tcp: connection reset by peer")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryOn_SaveRepeatsRolledBackAttempt(t *testing.T) {
	r := &PostgresRepository{delays: []time.Duration{time.Millisecond}}

	calls := 0
	err := r.retryOn(context.Background(), isRolledBack, func() error {
		calls++
		if calls == 1 {
			return &pgconn.PgError{Code: pgerrcode.DeadlockDetected}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}
