package kds

import (
	"context"
	"sync"

	"poscore/internal/adapter/logger"
	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

// Service is a zone's view service: it drains the zone channel, folds
// every envelope through the reducer, and exposes read-only snapshots and
// categorized boards. The channel's message handler is the only writer of
// the zone state.
type Service struct {
	channel interfaces.ZoneChannel
	logger  logger.Logger

	mu       sync.RWMutex
	state    ZoneState
	onUpdate func(ZoneState)
}

func NewService(channel interfaces.ZoneChannel, lgr logger.Logger) *Service {
	return &Service{
		channel: channel,
		logger:  lgr,
	}
}

// SetOnUpdate registers a listener invoked with each new snapshot.
func (s *Service) SetOnUpdate(fn func(ZoneState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onUpdate = fn
}

// Run connects the zone channel and applies messages until the context
// ends or the channel is torn down. Messages are applied strictly in
// arrival order; a malformed one is logged and skipped, never reordered.
func (s *Service) Run(ctx context.Context) error {
	if err := s.channel.Connect(); err != nil {
		// The channel retries with backoff on its own; the view just
		// stays on its last snapshot until then.
		s.logger.Error("zone_initial_connect_failed", "Zone connect failed, reconnecting in background", s.zoneID(), nil, err)
	}

	defer s.channel.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case env, ok := <-s.channel.Envelopes():
			if !ok {
				return nil
			}
			s.apply(env)
		}
	}
}

func (s *Service) apply(env interfaces.ZoneEnvelope) {
	if env.Type == interfaces.MsgError {
		s.logger.Error("zone_server_error", "Zone reported an error", s.zoneID(), map[string]interface{}{
			"payload": string(env.Data),
		}, nil)
		return
	}

	s.mu.Lock()
	next, err := Reduce(s.state, env)
	if err != nil {
		s.mu.Unlock()
		s.logger.Error("zone_message_rejected", "Zone message not applied", s.zoneID(), map[string]interface{}{
			"type": env.Type,
		}, err)
		return
	}
	s.state = next
	fn := s.onUpdate
	s.mu.Unlock()

	if fn != nil {
		fn(next)
	}
}

// Snapshot returns the current zone state. The value is immutable: later
// messages produce new snapshots instead of mutating this one.
func (s *Service) Snapshot() ZoneState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Board returns the current snapshot bucketed into display categories.
func (s *Service) Board() map[domain.DisplayCategory][]domain.ZoneOrder {
	return domain.CategorizeZone(s.Snapshot().Data)
}

// Connection reports the underlying channel state for the status
// indicator.
func (s *Service) Connection() domain.ZoneConnection {
	return s.channel.Connection()
}

// UpdateItemStatus asks the kitchen backend to move one item. The change
// lands back as an item_updated push; nothing is patched optimistically.
func (s *Service) UpdateItemStatus(itemID int, status domain.KitchenItemStatus) error {
	return s.channel.Send(interfaces.ZoneCommand{
		Action:    interfaces.ActionUpdateItemStatus,
		KDSItemID: itemID,
		Status:    status,
	})
}

// MarkPriority flags or unflags an order as priority.
func (s *Service) MarkPriority(orderID int, priority bool) error {
	return s.channel.Send(interfaces.ZoneCommand{
		Action:     interfaces.ActionMarkPriority,
		OrderID:    orderID,
		IsPriority: &priority,
	})
}

// AddKitchenNote attaches a note to one item.
func (s *Service) AddKitchenNote(itemID int, note string) error {
	return s.channel.Send(interfaces.ZoneCommand{
		Action:    interfaces.ActionAddKitchenNote,
		KDSItemID: itemID,
		Note:      note,
	})
}

// CompleteOrderQC signs an order off at the QC station.
func (s *Service) CompleteOrderQC(orderID int, notes string) error {
	return s.channel.Send(interfaces.ZoneCommand{
		Action:  interfaces.ActionCompleteOrderQC,
		OrderID: orderID,
		Notes:   notes,
	})
}

func (s *Service) zoneID() string {
	return s.channel.Connection().ZoneID
}
