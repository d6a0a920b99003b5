package ws

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"poscore/internal/adapter/logger"
	"poscore/internal/domain"
	"poscore/internal/interfaces"
)

const (
	defaultHeartbeat   = 30 * time.Second
	maxReconnects      = 5
	maxReconnectDelay  = 10 * time.Second
	baseReconnectDelay = 1000 * time.Millisecond
)

// ReconnectDelay is the backoff before reconnect attempt n (0-based):
// min(1000 * 2^n, 10000) milliseconds.
func ReconnectDelay(attempt int) time.Duration {
	delay := baseReconnectDelay << uint(attempt)
	if delay > maxReconnectDelay || delay <= 0 {
		return maxReconnectDelay
	}
	return delay
}

// Options tune one zone channel. Zero values take the defaults above.
type Options struct {
	Heartbeat   time.Duration
	MaxAttempts int
	Backoff     func(attempt int) time.Duration
	ZoneType    domain.ZoneType
	IsQCStation bool
}

// Channel owns one KDS zone socket: dialing, heartbeats, bounded reconnect
// with backoff, and delivery of inbound envelopes in arrival order. One
// reader goroutine owns the connection; everything the rest of the process
// sees goes through Envelopes and Connection snapshots.
//
// Heartbeats are fire-and-forget: a missing pong is not treated as a
// failure. Only socket close and error events drive reconnection.
type Channel struct {
	zoneID string
	url    string
	opts   Options
	logger logger.Logger
	dialer *websocket.Dialer

	mu        sync.Mutex
	conn      *websocket.Conn
	state     domain.ZoneConnection
	timer     *time.Timer
	closed    bool
	done      chan struct{}
	envelopes chan interfaces.ZoneEnvelope
}

// NewChannel builds a channel for one zone. baseURL is the KDS endpoint
// ("ws://host:port"); the zone path is appended per the wire contract.
func NewChannel(baseURL, zoneID string, opts Options, lgr logger.Logger) *Channel {
	if opts.Heartbeat <= 0 {
		opts.Heartbeat = defaultHeartbeat
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = maxReconnects
	}
	if opts.Backoff == nil {
		opts.Backoff = ReconnectDelay
	}
	if opts.ZoneType == "" {
		opts.ZoneType = domain.ZoneKitchen
	}

	return &Channel{
		zoneID: zoneID,
		url:    fmt.Sprintf("%s/ws/kds/%s/", strings.TrimRight(baseURL, "/"), zoneID),
		opts:   opts,
		logger: lgr,
		dialer: websocket.DefaultDialer,
		state: domain.ZoneConnection{
			ZoneID:      zoneID,
			Status:      domain.ConnDisconnected,
			ZoneType:    opts.ZoneType,
			IsQCStation: opts.IsQCStation,
		},
		done:      make(chan struct{}),
		envelopes: make(chan interfaces.ZoneEnvelope, 64),
	}
}

// Connect dials the zone socket. A failed dial schedules a reconnect the
// same way an abnormal close does.
func (c *Channel) Connect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return domain.ErrNotConnected
	}
	c.state.Status = domain.ConnConnecting
	c.mu.Unlock()

	conn, _, err := c.dialer.Dial(c.url, nil)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		if conn != nil {
			conn.Close()
		}
		return domain.ErrNotConnected
	}

	if err != nil {
		c.logger.Error("zone_dial_failed", "Failed to dial zone socket", c.zoneID, map[string]interface{}{
			"url": c.url,
		}, err)
		c.state.Status = domain.ConnError
		c.scheduleReconnectLocked()
		return err
	}

	c.conn = conn
	c.state.Status = domain.ConnConnected

	c.logger.Info("zone_connected", "Zone socket connected", c.zoneID, map[string]interface{}{
		"url":      c.url,
		"attempts": c.state.ReconnectAttempts,
	})

	go c.readLoop(conn)
	go c.heartbeatLoop(conn)
	return nil
}

// Close tears the channel down intentionally: pending reconnect timers are
// cancelled, the socket closes with code 1000, attempts reset, and no
// further reconnects run.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true

	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	if c.conn != nil {
		deadline := time.Now().Add(time.Second)
		c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		c.conn.Close()
		c.conn = nil
	}

	c.state.Status = domain.ConnDisconnected
	c.state.ReconnectAttempts = 0
	close(c.done)
	return nil
}

// Done is closed when the channel is torn down; consumers draining
// Envelopes select on it to stop.
func (c *Channel) Done() <-chan struct{} {
	return c.done
}

// Send writes one command to the zone socket. It fails fast with
// ErrNotConnected while the socket is down; commands are never queued.
func (c *Channel) Send(cmd interfaces.ZoneCommand) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn == nil || c.state.Status != domain.ConnConnected {
		return domain.ErrNotConnected
	}
	if err := c.conn.WriteJSON(cmd); err != nil {
		return fmt.Errorf("failed to send %s: %w", cmd.Action, err)
	}
	return nil
}

// Envelopes delivers inbound messages in arrival order. The channel
// stays open for the lifetime of the Channel; consumers stop by
// selecting on Done or their own context.
func (c *Channel) Envelopes() <-chan interfaces.ZoneEnvelope {
	return c.envelopes
}

// Connection returns a snapshot of the connection state.
func (c *Channel) Connection() domain.ZoneConnection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Channel) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDisconnect(conn, err)
			return
		}

		var env interfaces.ZoneEnvelope
		if err := json.Unmarshal(data, &env); err != nil {
			c.logger.Error("zone_message_malformed", "Dropping undecodable zone message", c.zoneID, nil, err)
			continue
		}

		select {
		case c.envelopes <- env:
		case <-c.done:
			return
		}
	}
}

func (c *Channel) heartbeatLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.Heartbeat)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		if c.closed || c.conn != conn {
			c.mu.Unlock()
			return
		}
		err := conn.WriteJSON(interfaces.ZoneCommand{Action: interfaces.ActionPing})
		c.mu.Unlock()

		if err != nil {
			// The read loop sees the broken socket and drives
			// reconnection; nothing more to do here.
			return
		}
	}
}

func (c *Channel) handleDisconnect(conn *websocket.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed || c.conn != conn {
		return
	}
	conn.Close()
	c.conn = nil

	if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
		// Intentional close from the server side: stay down.
		c.state.Status = domain.ConnDisconnected
		c.state.ReconnectAttempts = 0
		c.logger.Info("zone_closed", "Zone socket closed normally", c.zoneID, nil)
		return
	}

	c.logger.Error("zone_disconnected", "Zone socket lost", c.zoneID, map[string]interface{}{
		"attempts": c.state.ReconnectAttempts,
	}, err)
	c.state.Status = domain.ConnError
	c.scheduleReconnectLocked()
}

// scheduleReconnectLocked arms the backoff timer for the next attempt, or
// gives up once MaxAttempts is reached. The timer handle is kept so
// Close can cancel it. Caller holds the lock.
func (c *Channel) scheduleReconnectLocked() {
	if c.state.ReconnectAttempts >= c.opts.MaxAttempts {
		c.state.Status = domain.ConnDisconnected
		c.logger.Error("zone_reconnect_exhausted", "Giving up on zone reconnection", c.zoneID, map[string]interface{}{
			"attempts": c.state.ReconnectAttempts,
		}, domain.ErrNotConnected)
		return
	}

	delay := c.opts.Backoff(c.state.ReconnectAttempts)
	c.state.ReconnectAttempts++

	c.logger.Info("zone_reconnect_scheduled", "Reconnect scheduled", c.zoneID, map[string]interface{}{
		"attempt":  c.state.ReconnectAttempts,
		"delay_ms": delay.Milliseconds(),
	})

	c.timer = time.AfterFunc(delay, func() {
		c.Connect()
	})
}
