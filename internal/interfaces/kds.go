package interfaces

import (
	"encoding/json"

	"poscore/internal/domain"
)

// KDS websocket envelope types, server to client.
const (
	MsgInitialData        = "initial_data"
	MsgItemUpdated        = "item_updated"
	MsgQCDataUpdated      = "qc_data_updated"
	MsgZoneDataUpdated    = "zone_data_updated"
	MsgNewOrder           = "new_order"
	MsgOrderCompletedByQC = "order_completed_by_qc"
	MsgAlert              = "alert"
	MsgPong               = "pong"
	MsgError              = "error"
)

// KDS command actions, client to server.
const (
	ActionPing             = "ping"
	ActionUpdateItemStatus = "update_item_status"
	ActionMarkPriority     = "mark_priority"
	ActionAddKitchenNote   = "add_kitchen_note"
	ActionCompleteOrderQC  = "complete_order_qc"
)

// ZoneEnvelope is one inbound KDS message. Data stays raw until the
// consumer decodes it against Type.
type ZoneEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// InitialDataPayload is the full zone snapshot sent on connect.
type InitialDataPayload struct {
	Orders      []domain.ZoneOrder `json:"orders"`
	Alerts      []domain.Alert     `json:"alerts"`
	ZoneType    domain.ZoneType    `json:"zone_type"`
	IsQCStation bool               `json:"is_qc_station"`
}

// ItemUpdatedPayload patches a single kitchen item inside its order.
type ItemUpdatedPayload struct {
	Item domain.KitchenItem `json:"item"`
}

// ZoneListPayload is a full replacement order list, used by both
// zone_data_updated (kitchen) and qc_data_updated (QC).
type ZoneListPayload struct {
	Orders []domain.ZoneOrder `json:"orders"`
}

// NewOrderPayload appends one order to the zone queue.
type NewOrderPayload struct {
	Order domain.ZoneOrder `json:"order"`
}

// OrderCompletedPayload removes a completed order from kitchen state.
type OrderCompletedPayload struct {
	OrderID int `json:"order_id"`
}

// ErrorPayload is a server-side error report; logged, never applied.
type ErrorPayload struct {
	Message string `json:"message"`
}

// ZoneCommand is one outbound KDS command. Zero-valued fields are omitted
// from the wire format.
type ZoneCommand struct {
	Action     string                   `json:"action"`
	KDSItemID  int                      `json:"kds_item_id,omitempty"`
	OrderID    int                      `json:"order_id,omitempty"`
	Status     domain.KitchenItemStatus `json:"status,omitempty"`
	IsPriority *bool                    `json:"is_priority,omitempty"`
	Note       string                   `json:"note,omitempty"`
	Notes      string                   `json:"notes,omitempty"`
}

// ZoneChannel is one live KDS zone connection. Envelopes deliver inbound
// messages in arrival order; Send fails fast with domain.ErrNotConnected
// while the socket is down rather than queueing.
type ZoneChannel interface {
	Connect() error
	Close() error
	Send(cmd ZoneCommand) error
	Envelopes() <-chan ZoneEnvelope
	Connection() domain.ZoneConnection
}
