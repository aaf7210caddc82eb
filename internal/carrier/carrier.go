// Package carrier содержит справочник служб доставки и шаблонов ссылок отслеживания.
package carrier

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownCarrier возвращается, если служба доставки не зарегистрирована.
var ErrUnknownCarrier = errors.New("unknown carrier")

// Other обозначает произвольную службу доставки без публичного отслеживания.
const Other = "OTHER"

// Carrier описывает службу доставки.
type Carrier struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	URLTemplate string `json:"urlTemplate"`
}

// Registry хранит неизменяемый справочник служб доставки.
type Registry struct {
	byID  map[string]Carrier
	order []string
}

// NewRegistry создаёт справочник из переданных записей.
func NewRegistry(carriers ...Carrier) *Registry {
	r := &Registry{byID: make(map[string]Carrier, len(carriers))}
	for _, c := range carriers {
		id := normalizeID(c.ID)
		if _, ok := r.byID[id]; !ok {
			r.order = append(r.order, id)
		}
		c.ID = id
		r.byID[id] = c
	}
	return r
}

// Default возвращает справочник со службами доставки магазина.
func Default() *Registry {
	return NewRegistry(
		Carrier{ID: "ZOOM", Name: "Zoom", URLTemplate: "https://www.zoom.red/tracking-de-envios-personas/?nro-guia="},
		Carrier{ID: "MRW", Name: "MRW", URLTemplate: "https://www.mrwve.com/rastreo-de-envios/?guia="},
		Carrier{ID: "TEALCA", Name: "Tealca", URLTemplate: "https://www.tealca.com/rastreo/?guia="},
		Carrier{ID: "DOMESA", Name: "Domesa", URLTemplate: "https://www.domesa.com.ve/rastreo/?guia="},
		Carrier{ID: "DHL", Name: "DHL Express", URLTemplate: "https://www.dhl.com/ve-es/home/tracking.html?tracking-id="},
		Carrier{ID: "FEDEX", Name: "FedEx", URLTemplate: "https://www.fedex.com/fedextrack/?trknbr="},
		Carrier{ID: "UPS", Name: "UPS", URLTemplate: "https://www.ups.com/track?tracknum="},
		Carrier{ID: Other, Name: "Otro"},
	)
}

func normalizeID(id string) string {
	return strings.ToUpper(strings.TrimSpace(id))
}

// Resolve возвращает службу доставки по идентификатору.
func (r *Registry) Resolve(id string) (Carrier, error) {
	c, ok := r.byID[normalizeID(id)]
	if !ok {
		return Carrier{}, fmt.Errorf("%w: %s", ErrUnknownCarrier, id)
	}
	return c, nil
}

// DisplayName возвращает отображаемое имя службы, а для незарегистрированных сам идентификатор.
func (r *Registry) DisplayName(id string) string {
	c, err := r.Resolve(id)
	if err != nil {
		return strings.TrimSpace(id)
	}
	return c.Name
}

// BuildTrackingURL формирует ссылку отслеживания.
// Пустая строка означает, что публичной ссылки нет.
func (r *Registry) BuildTrackingURL(id, trackingNumber string) string {
	c, err := r.Resolve(id)
	if err != nil || c.URLTemplate == "" {
		return ""
	}
	return c.URLTemplate + trackingNumber
}

// List возвращает службы доставки в порядке регистрации.
func (r *Registry) List() []Carrier {
	res := make([]Carrier, 0, len(r.order))
	for _, id := range r.order {
		res = append(res, r.byID[id])
	}
	return res
}
