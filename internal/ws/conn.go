package ws

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"uchat/internal/domain"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = (pongWait * 9) / 10
)

// boundUser is the identity a connection is bound to.
type boundUser struct {
	UserID   int64
	Nickname string
}

// Conn is one websocket client. The reader goroutine handles requests in
// order; the writer goroutine is the only one touching the socket for writes.
type Conn struct {
	id   string
	ws   *websocket.Conn
	send chan []byte
	stop chan struct{}
	log  *zap.Logger

	stopOnce sync.Once

	mu   sync.RWMutex
	user *boundUser
}

func newConn(ws *websocket.Conn, sendBuffer int, log *zap.Logger) *Conn {
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	id := uuid.NewString()
	return &Conn{
		id:   id,
		ws:   ws,
		send: make(chan []byte, sendBuffer),
		stop: make(chan struct{}),
		log:  log.With(zap.String("conn_id", id)),
	}
}

func (c *Conn) ID() string { return c.id }

// Enqueue queues a frame without blocking. It fails when the queue is full or
// the connection is closing.
func (c *Conn) Enqueue(frame []byte) bool {
	select {
	case <-c.stop:
		return false
	default:
	}
	select {
	case c.send <- frame:
		return true
	default:
		return false
	}
}

// reply queues a response frame, waiting for room unless the connection is
// closing. Only the reader goroutine calls it.
func (c *Conn) reply(frame []byte) {
	select {
	case c.send <- frame:
	case <-c.stop:
	}
}

func (c *Conn) push(ev domain.Event) {
	frame, err := encodeEvent(ev)
	if err != nil {
		c.log.Error("encode event", zap.String("event", ev.Name), zap.Error(err))
		return
	}
	if !c.Enqueue(frame) {
		c.log.Warn("outbound queue full, event dropped", zap.String("event", ev.Name))
	}
}

func (c *Conn) bound() (boundUser, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.user == nil {
		return boundUser{}, false
	}
	return *c.user, true
}

func (c *Conn) bind(u boundUser) {
	c.mu.Lock()
	c.user = &u
	c.mu.Unlock()
}

// close stops the writer, which sends a close frame and releases the socket.
func (c *Conn) close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

// writePump drains the outbound queue and keeps the peer alive with pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.close()
		c.ws.Close()
	}()

	for {
		select {
		case frame := <-c.send:
			if !c.write(websocket.TextMessage, frame) {
				return
			}
		case <-c.stop:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			c.ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case <-ticker.C:
			if !c.write(websocket.PingMessage, nil) {
				return
			}
		}
	}
}

func (c *Conn) write(msgType int, data []byte) bool {
	c.ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := c.ws.WriteMessage(msgType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Debug("write message", zap.Error(err))
		}
		return false
	}
	return true
}
