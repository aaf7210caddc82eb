package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogListener_WritesEntry(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := NewLogListener(zap.New(core))

	require.NoError(t, l.Handle(context.Background(), testEvent()))

	entries := logs.FilterMessage("order status changed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "PROCESSING", fields["from"])
	assert.Equal(t, "SHIPPED", fields["to"])
}
