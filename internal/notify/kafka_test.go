package notify

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmeshcher/orderflow/internal/model"
)

type fakeWriter struct {
	msgs   []kafka.Message
	err    error
	closed bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.closed = true
	return nil
}

func TestKafkaListener_PublishesKeyedMessage(t *testing.T) {
	w := &fakeWriter{}
	l := &KafkaListener{writer: w}

	require.NoError(t, l.Handle(context.Background(), testEvent()))
	require.Len(t, w.msgs, 1)

	msg := w.msgs[0]
	assert.Equal(t, "1000000016", string(msg.Key))

	var evt model.StatusChangedEvent
	require.NoError(t, json.Unmarshal(msg.Value, &evt))
	assert.Equal(t, model.OrderStatusShipped, evt.NewStatus)
	assert.Equal(t, "999", evt.TrackingNumber)

	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "evt-1", string(msg.Headers[0].Value))

	require.NoError(t, l.Close())
	assert.True(t, w.closed)
}

func TestKafkaListener_WrapsWriteError(t *testing.T) {
	brokerDown := errors.New("broker down")
	l := &KafkaListener{writer: &fakeWriter{err: brokerDown}}

	err := l.Handle(context.Background(), testEvent())
	assert.ErrorIs(t, err, brokerDown)
}
