package kds

import (
	"encoding/json"
	"fmt"

	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

// ZoneState is one zone's view: the work queue plus its alert feed.
type ZoneState struct {
	Data   domain.ZoneData
	Alerts []domain.Alert
}

// Reduce applies one inbound envelope to a zone snapshot and returns the
// next snapshot. The input is never mutated, so a categorization computed
// from the previous value stays valid. pong and error envelopes return the
// state unchanged.
func Reduce(state ZoneState, env interfaces.ZoneEnvelope) (ZoneState, error) {
	switch env.Type {
	case interfaces.MsgInitialData:
		var payload interfaces.InitialDataPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return state, fmt.Errorf("bad initial_data payload: %w", err)
		}
		return ZoneState{
			Data: domain.ZoneData{
				ZoneType:    payload.ZoneType,
				IsQCStation: payload.IsQCStation,
				Orders:      payload.Orders,
			},
			Alerts: payload.Alerts,
		}, nil

	case interfaces.MsgItemUpdated:
		var payload interfaces.ItemUpdatedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return state, fmt.Errorf("bad item_updated payload: %w", err)
		}
		next := state
		next.Data = patchItem(state.Data, payload.Item)
		return next, nil

	case interfaces.MsgZoneDataUpdated:
		if state.Data.ZoneType == domain.ZoneQC {
			return state, fmt.Errorf("zone_data_updated received by a qc zone")
		}
		return replaceOrders(state, env.Data)

	case interfaces.MsgQCDataUpdated:
		if state.Data.ZoneType != domain.ZoneQC {
			return state, fmt.Errorf("qc_data_updated received by a kitchen zone")
		}
		return replaceOrders(state, env.Data)

	case interfaces.MsgNewOrder:
		var payload interfaces.NewOrderPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return state, fmt.Errorf("bad new_order payload: %w", err)
		}
		order := payload.Order
		if order.OverallStatus == "" && state.Data.ZoneType != domain.ZoneQC {
			order.OverallStatus = domain.OverallItemStatus(order.Items)
		}
		next := state
		next.Data.Orders = append(copyOrders(state.Data.Orders), order)
		return next, nil

	case interfaces.MsgOrderCompletedByQC:
		var payload interfaces.OrderCompletedPayload
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			return state, fmt.Errorf("bad order_completed_by_qc payload: %w", err)
		}
		next := state
		next.Data.Orders = removeOrder(state.Data.Orders, payload.OrderID)
		return next, nil

	case interfaces.MsgAlert:
		var alert domain.Alert
		if err := json.Unmarshal(env.Data, &alert); err != nil {
			return state, fmt.Errorf("bad alert payload: %w", err)
		}
		next := state
		next.Alerts = append(append([]domain.Alert(nil), state.Alerts...), alert)
		return next, nil

	case interfaces.MsgPong, interfaces.MsgError:
		return state, nil

	default:
		return state, fmt.Errorf("unknown zone message type %q", env.Type)
	}
}

func replaceOrders(state ZoneState, data json.RawMessage) (ZoneState, error) {
	var payload interfaces.ZoneListPayload
	if err := json.Unmarshal(data, &payload); err != nil {
		return state, fmt.Errorf("bad order list payload: %w", err)
	}
	next := state
	next.Data.Orders = payload.Orders
	return next, nil
}

// patchItem replaces one kitchen item inside its parent order and
// recomputes that order's overall status from the new item set.
func patchItem(data domain.ZoneData, item domain.KitchenItem) domain.ZoneData {
	next := data
	next.Orders = copyOrders(data.Orders)

	for i, order := range next.Orders {
		if order.OrderID != item.OrderID {
			continue
		}

		items := append([]domain.KitchenItem(nil), order.Items...)
		found := false
		for j, existing := range items {
			if existing.ID == item.ID {
				items[j] = item
				found = true
				break
			}
		}
		if !found {
			items = append(items, item)
		}

		next.Orders[i].Items = items
		next.Orders[i].OverallStatus = domain.OverallItemStatus(items)
		return next
	}
	return next
}

func removeOrder(orders []domain.ZoneOrder, orderID int) []domain.ZoneOrder {
	kept := make([]domain.ZoneOrder, 0, len(orders))
	for _, order := range orders {
		if order.OrderID != orderID {
			kept = append(kept, order)
		}
	}
	return kept
}

func copyOrders(orders []domain.ZoneOrder) []domain.ZoneOrder {
	return append([]domain.ZoneOrder(nil), orders...)
}
