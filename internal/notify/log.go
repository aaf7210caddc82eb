package notify

import (
	"context"

	"go.uber.org/zap"

	"github.com/mmeshcher/orderflow/internal/model"
)

// LogListener пишет события смены статуса в журнал.
type LogListener struct {
	logger *zap.Logger
}

// NewLogListener создаёт подписчика, пишущего события в журнал.
func NewLogListener(logger *zap.Logger) *LogListener {
	return &LogListener{logger: logger}
}

// Name возвращает имя подписчика.
func (l *LogListener) Name() string {
	return "log"
}

// Handle пишет событие в журнал.
func (l *LogListener) Handle(ctx context.Context, evt model.StatusChangedEvent) error {
	l.logger.Info("order status changed",
		zap.String("eventId", evt.EventID),
		zap.Int64("orderId", evt.OrderID),
		zap.String("orderNumber", evt.OrderNumber),
		zap.String("from", string(evt.PreviousStatus)),
		zap.String("to", string(evt.NewStatus)),
		zap.String("changedBy", evt.ChangedBy),
		zap.Time("at", evt.Timestamp),
	)
	return nil
}
