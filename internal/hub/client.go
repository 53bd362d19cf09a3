package hub

import (
	"io"
	"net"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"BullionWatch/internal/metrics"
)

const maxMessageSize = 64 * 1024

// Conn adapts an upgraded websocket connection to Client.
type Conn struct {
	conn   net.Conn
	hub    *Hub
	id     string
	send   chan []byte
	logger *zap.Logger

	mu     sync.Mutex
	closed bool

	writeWait  time.Duration
	pongWait   time.Duration
	pingPeriod time.Duration
}

// NewConn wraps an upgraded connection.
func NewConn(conn net.Conn, h *Hub, logger *zap.Logger) *Conn {
	return &Conn{
		conn:       conn,
		hub:        h,
		id:         uuid.NewString(),
		send:       make(chan []byte, 32),
		logger:     logger,
		writeWait:  5 * time.Second,
		pongWait:   60 * time.Second,
		pingPeriod: 50 * time.Second,
	}
}

// Start registers the connection and runs its pumps.
func (c *Conn) Start() {
	c.hub.Register(c)
	go c.writePump()
	go c.readPump()
}

func (c *Conn) ID() string { return c.id }

// Close stops the write pump, which closes the connection.
func (c *Conn) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *Conn) SendBytes(b []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- b:
		return true
	default:
		metrics.SlowClientDrops.Inc()
		return false
	}
}

func (c *Conn) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(c.pongWait))

	for {
		header, err := ws.ReadHeader(c.conn)
		if err != nil {
			return
		}
		if header.Length > maxMessageSize {
			c.logger.Warn("client message too big", zap.String("client", c.id), zap.Int64("size", header.Length))
			return
		}
		if !header.Fin {
			c.logger.Warn("fragmented client message not supported", zap.String("client", c.id))
			return
		}
		payload := make([]byte, header.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return
		}
		if header.Masked {
			ws.Cipher(payload, header.Mask, 0)
		}

		c.conn.SetReadDeadline(time.Now().Add(c.pongWait))
		switch header.OpCode {
		case ws.OpClose:
			return
		case ws.OpText:
			c.hub.HandleMessage(c, payload)
		}
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if !ok {
				c.conn.Write(ws.CompiledClose)
				return
			}
			if err := wsutil.WriteServerText(c.conn, msg); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.writeWait))
			if err := wsutil.WriteServerMessage(c.conn, ws.OpPing, nil); err != nil {
				return
			}
		}
	}
}
