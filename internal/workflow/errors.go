package workflow

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mmeshcher/orderflow/internal/model"
)

var (
	// ErrTerminalState возвращается при попытке изменить заказ в конечном статусе.
	ErrTerminalState = errors.New("order is in a terminal state")
	// ErrInvalidTransition возвращается, если целевой статус не следует непосредственно за текущим.
	ErrInvalidTransition = errors.New("invalid status transition")
	// ErrMissingShippingInfo возвращается при переходе в SHIPPED без службы доставки или трек-номера.
	ErrMissingShippingInfo = errors.New("missing shipping info")
)

// TransitionError описывает отклонённый переход и допустимые альтернативы.
type TransitionError struct {
	Kind    error
	From    model.OrderStatus
	To      model.OrderStatus
	Allowed []model.OrderStatus
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("%s: %s -> %s", e.Kind, e.From, e.To)
	if len(e.Allowed) > 0 {
		allowed := make([]string, 0, len(e.Allowed))
		for _, s := range e.Allowed {
			allowed = append(allowed, string(s))
		}
		msg += " (allowed: " + strings.Join(allowed, ", ") + ")"
	}
	return msg
}

func (e *TransitionError) Unwrap() error {
	return e.Kind
}
