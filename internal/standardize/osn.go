package standardize

import "strings"

// OsnOrder is one entry in OSN's order_data sequence.
type OsnOrder struct {
	OrderNumber     string
	Type            string
	OrderStatus     string
	DateImplemented string
}

// OsnRaw is the OSN worker's raw result shape (spec §4.5).
type OsnRaw struct {
	OrderData         []OsnOrder
	ServiceAddress    string
	ServiceCircuitNum string
	CustomerDetails   map[string]any
}

var osnImplementedStatuses = map[string]bool{
	"accepted": true, "completed": true, "implemented": true, "closed": true,
}

func (o OsnOrder) isCeaseOrder() bool {
	t := strings.ToLower(o.Type)
	return strings.Contains(t, "cease") || strings.Contains(t, "cancel")
}

func (o OsnOrder) isImplemented() bool {
	status := strings.ToLower(o.OrderStatus)
	if strings.TrimSpace(o.DateImplemented) != "" {
		return osnImplementedStatuses[status]
	}
	return osnImplementedStatuses[status]
}

// ExtractCanonical implements the OSN branch of spec §4.5: walk order_data,
// classify cease orders, prefer an implemented cease over a pending one.
func (r OsnRaw) ExtractCanonical() Canonical {
	c := Canonical{Extra: newExtra()}

	hasRealOrders := len(r.OrderData) > 0
	serviceFound := hasRealOrders || r.ServiceAddress != "" || r.ServiceCircuitNum != ""
	c.ServiceFound = serviceFound
	if !serviceFound {
		return c
	}

	var implemented, pending []OsnOrder
	for _, order := range r.OrderData {
		if !order.isCeaseOrder() {
			continue
		}
		if order.isImplemented() {
			implemented = append(implemented, order)
		} else {
			pending = append(pending, order)
		}
	}

	switch {
	case len(implemented) > 0:
		c.IsActive = false
		c.CancellationImplementationDate = implemented[0].DateImplemented
		c.CancellationCapturedID = implemented[0].OrderNumber
	case len(pending) > 0:
		c.IsActive = true
		c.PendingCeaseOrder = true
		c.CancellationCapturedID = pending[0].OrderNumber
	default:
		c.IsActive = true
	}

	setIfNonEmpty(c.Extra, "customer_address", r.ServiceAddress)
	setIfNonEmpty(c.Extra, "customer_circuit_number", r.ServiceCircuitNum)
	for k, v := range r.CustomerDetails {
		setIfNonEmpty(c.Extra, "customer_"+k, stringify(v))
	}

	return c
}
