package kds

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

type nopLogger struct{}

func (nopLogger) Info(action, message, requestID string, details map[string]interface{})  {}
func (nopLogger) Debug(action, message, requestID string, details map[string]interface{}) {}
func (nopLogger) Error(action, message, requestID string, details map[string]interface{}, err error) {
}

type channelMock struct {
	mu        sync.Mutex
	envelopes chan interfaces.ZoneEnvelope
	sent      []interfaces.ZoneCommand
	sendErr   error
	closed    bool
}

func newChannelMock() *channelMock {
	return &channelMock{envelopes: make(chan interfaces.ZoneEnvelope, 16)}
}

func (c *channelMock) Connect() error { return nil }

func (c *channelMock) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.envelopes)
	}
	return nil
}

func (c *channelMock) Send(cmd interfaces.ZoneCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.sent = append(c.sent, cmd)
	return nil
}

func (c *channelMock) Envelopes() <-chan interfaces.ZoneEnvelope { return c.envelopes }

func (c *channelMock) Connection() domain.ZoneConnection {
	return domain.ZoneConnection{ZoneID: "zone-1", Status: domain.ConnConnected}
}

func (c *channelMock) push(t *testing.T, msgType string, payload interface{}) {
	t.Helper()
	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal payload: %v", err)
	}
	c.envelopes <- interfaces.ZoneEnvelope{Type: msgType, Data: data}
}

func TestKDSService_AppliesMessagesInOrder(t *testing.T) {
	channel := newChannelMock()
	svc := NewService(channel, nopLogger{})

	updates := make(chan ZoneState, 16)
	svc.SetOnUpdate(func(state ZoneState) { updates <- state })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	channel.push(t, interfaces.MsgInitialData, interfaces.InitialDataPayload{
		ZoneType: domain.ZoneKitchen,
		Orders: []domain.ZoneOrder{
			{
				OrderID:       1,
				OrderNumber:   "7001",
				Items:         []domain.KitchenItem{{ID: 10, OrderID: 1, Status: domain.ItemReceived}},
				OverallStatus: domain.ItemReceived,
			},
		},
	})
	channel.push(t, interfaces.MsgItemUpdated, interfaces.ItemUpdatedPayload{
		Item: domain.KitchenItem{ID: 10, OrderID: 1, Status: domain.ItemReady},
	})

	var last ZoneState
	for i := 0; i < 2; i++ {
		select {
		case last = <-updates:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for snapshot")
		}
	}

	if last.Data.Orders[0].OverallStatus != domain.ItemReady {
		t.Errorf("overall status: got %s, want %s", last.Data.Orders[0].OverallStatus, domain.ItemReady)
	}
	if got := svc.Snapshot().Data.Orders[0].OverallStatus; got != domain.ItemReady {
		t.Errorf("snapshot status: got %s", got)
	}

	board := svc.Board()
	if len(board[domain.CategoryReady]) != 1 {
		t.Errorf("board ready bucket: %v", board)
	}

	cancel()
	if err := <-done; !errors.Is(err, context.Canceled) {
		t.Errorf("Run: got %v, want context.Canceled", err)
	}
}

func TestKDSService_RejectedMessageKeepsState(t *testing.T) {
	channel := newChannelMock()
	svc := NewService(channel, nopLogger{})

	updates := make(chan ZoneState, 16)
	svc.SetOnUpdate(func(state ZoneState) { updates <- state })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go svc.Run(ctx)

	channel.push(t, interfaces.MsgInitialData, interfaces.InitialDataPayload{
		ZoneType: domain.ZoneKitchen,
		Orders:   []domain.ZoneOrder{{OrderID: 1}},
	})
	<-updates

	// Wrong zone kind: a kitchen zone must not apply qc_data_updated.
	channel.push(t, interfaces.MsgQCDataUpdated, interfaces.ZoneListPayload{})
	channel.push(t, interfaces.MsgNewOrder, interfaces.NewOrderPayload{Order: domain.ZoneOrder{OrderID: 2}})

	select {
	case state := <-updates:
		if len(state.Data.Orders) != 2 {
			t.Errorf("orders: got %d, want 2", len(state.Data.Orders))
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
	}
}

func TestKDSService_Commands(t *testing.T) {
	channel := newChannelMock()
	svc := NewService(channel, nopLogger{})

	if err := svc.UpdateItemStatus(10, domain.ItemPreparing); err != nil {
		t.Fatalf("UpdateItemStatus: %v", err)
	}
	if err := svc.MarkPriority(1, true); err != nil {
		t.Fatalf("MarkPriority: %v", err)
	}
	if err := svc.AddKitchenNote(10, "no basil"); err != nil {
		t.Fatalf("AddKitchenNote: %v", err)
	}
	if err := svc.CompleteOrderQC(1, "checked"); err != nil {
		t.Fatalf("CompleteOrderQC: %v", err)
	}

	if len(channel.sent) != 4 {
		t.Fatalf("commands sent: got %d, want 4", len(channel.sent))
	}
	if channel.sent[0].Action != interfaces.ActionUpdateItemStatus || channel.sent[0].KDSItemID != 10 {
		t.Errorf("update command: %+v", channel.sent[0])
	}
	if channel.sent[1].IsPriority == nil || !*channel.sent[1].IsPriority {
		t.Errorf("priority command: %+v", channel.sent[1])
	}

	t.Run("send failure propagates", func(t *testing.T) {
		channel.sendErr = domain.ErrNotConnected
		if err := svc.UpdateItemStatus(10, domain.ItemReady); !errors.Is(err, domain.ErrNotConnected) {
			t.Errorf("expected ErrNotConnected, got %v", err)
		}
	})
}
