package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"scribe/scribe/sessions"
	"scribe/scribe/utils/logging"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const writeTimeout = 5 * time.Second

// Client is one websocket connection subscribed to a meeting. Outgoing frames
// go through a bounded queue drained by writeLoop, so a slow socket never
// blocks the session broadcasting to it.
type Client struct {
	conn      *websocket.Conn
	meetingID uuid.UUID

	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
	written   chan struct{}
}

func NewClient(conn *websocket.Conn, meetingID uuid.UUID, queue int) *Client {
	if queue <= 0 {
		queue = 32
	}
	return &Client{
		conn:      conn,
		meetingID: meetingID,
		out:       make(chan []byte, queue),
		done:      make(chan struct{}),
		written:   make(chan struct{}),
	}
}

// Deliver implements sessions.Subscriber. It reports false when the queue is
// full or the client is closed.
func (c *Client) Deliver(ev sessions.Event) bool {
	return c.sendJSON(ev)
}

// Close stops the client. Frames already queued, such as the session_ended
// notice, are flushed before the socket closes.
func (c *Client) Close() {
	c.closeOnce.Do(func() { close(c.done) })
}

func (c *Client) sendJSON(v interface{}) bool {
	b, err := json.Marshal(v)
	if err != nil {
		logging.ErrorLogger.Error("Failed to encode frame",
			zap.String("meeting_id", c.meetingID.String()), zap.Error(err))
		return false
	}
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.out <- b:
		return true
	default:
		return false
	}
}

func (c *Client) writeLoop(ctx context.Context) {
	defer close(c.written)
	for {
		select {
		case b := <-c.out:
			if err := c.write(ctx, b); err != nil {
				logging.ErrorLogger.Warn("websocket write error",
					zap.String("meeting_id", c.meetingID.String()), zap.Error(err))
				c.Close()
				c.conn.CloseNow()
				return
			}
		case <-c.done:
			c.flush(ctx)
			c.conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		case <-ctx.Done():
			c.Close()
			c.conn.CloseNow()
			return
		}
	}
}

func (c *Client) flush(ctx context.Context) {
	for {
		select {
		case b := <-c.out:
			if err := c.write(ctx, b); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Client) write(ctx context.Context, b []byte) error {
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return c.conn.Write(wctx, websocket.MessageText, b)
}
