package domain

import "time"

// ZoneConnection is the connection bookkeeping for one KDS zone socket.
type ZoneConnection struct {
	ZoneID            string
	Status            ConnectionStatus
	ReconnectAttempts int
	ZoneType          ZoneType
	IsQCStation       bool
}

// KitchenItem is one prep item as a kitchen zone sees it.
type KitchenItem struct {
	ID          int               `json:"id"`
	OrderID     int               `json:"order_id"`
	Name        string            `json:"name"`
	Quantity    int               `json:"quantity"`
	Category    string            `json:"category"`
	ProductType string            `json:"product_type"`
	Status      KitchenItemStatus `json:"status"`
	IsPriority  bool              `json:"is_priority"`
	Note        string            `json:"note,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// ZoneOrder is one order inside a zone's work queue. Kitchen zones carry
// the items and derive OverallStatus from them; QC zones carry a single
// order-level Status.
type ZoneOrder struct {
	OrderID       int               `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	Items         []KitchenItem     `json:"items,omitempty"`
	OverallStatus KitchenItemStatus `json:"overall_status,omitempty"`
	Status        KitchenItemStatus `json:"status,omitempty"`
	IsPriority    bool              `json:"is_priority"`
	Notes         string            `json:"notes,omitempty"`
}

// ZoneData is a zone's full work queue. It is replaced or patched only by
// messages from that zone's socket, never mutated in place; consumers
// treat every value as an immutable snapshot.
type ZoneData struct {
	ZoneType    ZoneType    `json:"zone_type"`
	IsQCStation bool        `json:"is_qc_station"`
	Orders      []ZoneOrder `json:"orders"`
}

// Alert is a transient zone notification, e.g. an item aging past its
// preparation threshold. Alerts are not persisted by the client.
type Alert struct {
	ID        int       `json:"id"`
	OrderID   int       `json:"order_id"`
	ItemID    int       `json:"item_id,omitempty"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at"`
}

// OverallItemStatus derives an order's kitchen status from its items:
// ready only when every item is ready, preparing when any item is being
// worked, otherwise received.
func OverallItemStatus(items []KitchenItem) KitchenItemStatus {
	if len(items) == 0 {
		return ItemReceived
	}

	allReady := true
	anyPreparing := false
	for _, item := range items {
		if item.Status != ItemReady {
			allReady = false
		}
		if item.Status == ItemPreparing {
			anyPreparing = true
		}
	}

	if allReady {
		return ItemReady
	}
	if anyPreparing {
		return ItemPreparing
	}
	return ItemReceived
}
