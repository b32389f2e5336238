package live

import (
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

var errConnClosed = errors.New("live: connection closed")

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	outboxSize = 256
)

type frame struct {
	kind int
	data []byte
}

// conn serializes writes through a single writer goroutine; gorilla connections allow
// one concurrent writer.
type conn struct {
	ws     *websocket.Conn
	log    zerolog.Logger
	outbox chan frame
	closed chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
}

func newConn(ws *websocket.Conn, log zerolog.Logger) *conn {
	c := &conn{ws: ws, log: log, outbox: make(chan frame, outboxSize), closed: make(chan struct{})}
	ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	c.wg.Add(1)
	go c.writeLoop()
	return c
}

func (c *conn) writeLoop() {
	defer c.wg.Done()
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()
	for {
		select {
		case f := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(f.kind, f.data); err != nil {
				c.log.Debug().Err(err).Msg("ws write failed")
				c.shutdown()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.shutdown()
				return
			}
		case <-c.closed:
			c.flush()
			return
		}
	}
}

// flush writes whatever is still queued once the session is closing.
func (c *conn) flush() {
	for {
		select {
		case f := <-c.outbox:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(f.kind, f.data); err != nil {
				return
			}
		default:
			_ = c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *conn) enqueue(f frame) error {
	select {
	case <-c.closed:
		return errConnClosed
	default:
	}
	select {
	case c.outbox <- f:
		return nil
	case <-c.closed:
		return errConnClosed
	}
}

func (c *conn) sendJSON(m serverMessage) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	return c.enqueue(frame{kind: websocket.TextMessage, data: b})
}

func (c *conn) sendBinary(b []byte) error {
	return c.enqueue(frame{kind: websocket.BinaryMessage, data: b})
}

func (c *conn) shutdown() {
	c.once.Do(func() { close(c.closed) })
}

// Close stops the writer after draining and closes the socket.
func (c *conn) Close() error {
	c.shutdown()
	c.wg.Wait()
	return c.ws.Close()
}
