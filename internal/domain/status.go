package domain

type OrderStatus string

const (
	OrderOpen      OrderStatus = "open"
	OrderHeld      OrderStatus = "held"
	OrderCompleted OrderStatus = "completed"
	OrderVoided    OrderStatus = "voided"
)

// KitchenItemStatus is the per-zone preparation status of one order item.
type KitchenItemStatus string

const (
	ItemReceived  KitchenItemStatus = "received"
	ItemPreparing KitchenItemStatus = "preparing"
	ItemReady     KitchenItemStatus = "ready"
	ItemCompleted KitchenItemStatus = "completed"
	ItemHeld      KitchenItemStatus = "held"
)

type PaymentMethod string

const (
	MethodCash             PaymentMethod = "cash"
	MethodCard             PaymentMethod = "card"
	MethodGiftCard         PaymentMethod = "gift_card"
	MethodDeliveryPlatform PaymentMethod = "delivery_platform"
	MethodSplit            PaymentMethod = "split"
)

// SurchargeApplies reports whether a card-processing surcharge is added to
// a leg paid with this method. Card legs only; cash, gift card and platform
// settlements never carry one.
func (m PaymentMethod) SurchargeApplies() bool {
	return m == MethodCard
}

type ZoneType string

const (
	ZoneKitchen ZoneType = "kitchen"
	ZoneQC      ZoneType = "qc"
)

type ConnectionStatus string

const (
	ConnDisconnected ConnectionStatus = "disconnected"
	ConnConnecting   ConnectionStatus = "connecting"
	ConnConnected    ConnectionStatus = "connected"
	ConnError        ConnectionStatus = "error"
)
