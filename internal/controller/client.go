package controller

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/identity"
	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 8 * 1024
	sendBufferSize = 256
)

// client owns one websocket. readPump runs on the handler goroutine and
// dispatches events in arrival order; writePump is the only writer.
type client struct {
	c         *controller
	conn      *websocket.Conn
	id        string
	principal identity.Principal

	send     chan *protocol.Output
	stop     chan struct{}
	stopOnce sync.Once

	// unix nanos of the last ping, zero once answered
	pingSentAt atomic.Int64
	// id of the request being dispatched, read loop only
	reqId *int64
}

func newClient(c *controller, conn *websocket.Conn, id string, p identity.Principal) *client {
	return &client{
		c:         c,
		conn:      conn,
		id:        id,
		principal: p,
		send:      make(chan *protocol.Output, sendBufferSize),
		stop:      make(chan struct{}),
	}
}

func (cl *client) Id() string       { return cl.id }
func (cl *client) UserId() string   { return cl.principal.UserID }
func (cl *client) Username() string { return cl.principal.Name }

// Send queues out for the write pump. It never blocks: a full buffer or a
// closed client drops the message.
func (cl *client) Send(out *protocol.Output) bool {
	select {
	case <-cl.stop:
		return false
	default:
	}

	select {
	case cl.send <- out:
		return true
	default:
		return false
	}
}

func (cl *client) close() {
	cl.stopOnce.Do(func() {
		close(cl.stop)
		cl.conn.Close()
	})
}

func (cl *client) writePump(ctx context.Context) {
	ticker := time.NewTicker(cl.c.pingInterval)
	defer func() {
		ticker.Stop()
		cl.close()
	}()

	for {
		select {
		case out := <-cl.send:
			data, err := json.Marshal(out)
			if err != nil {
				cl.c.logger.ErrorContext(ctx, "failed to serialize message", "type", out.Type, "error", err)
				continue
			}

			if !cl.write(ctx, websocket.TextMessage, data) {
				return
			}
		case <-ticker.C:
			cl.pingSentAt.CompareAndSwap(0, time.Now().UnixNano())
			if !cl.write(ctx, websocket.PingMessage, nil) {
				return
			}
		case <-cl.stop:
			cl.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait),
			)
			return
		}
	}
}

func (cl *client) write(ctx context.Context, messageType int, data []byte) bool {
	cl.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := cl.conn.WriteMessage(messageType, data); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			cl.c.logger.InfoContext(ctx, "failed to write message", "error", err)
		}
		return false
	}

	return true
}

func (cl *client) readPump(ctx context.Context) {
	defer cl.close()

	cl.conn.SetReadLimit(maxMessageSize)
	cl.conn.SetReadDeadline(time.Now().Add(cl.c.pongWait))
	cl.conn.SetPongHandler(func(string) error {
		if sentAt := cl.pingSentAt.Swap(0); sentAt != 0 {
			cl.c.stats.ObservePingRTT(time.Since(time.Unix(0, sentAt)))
		}
		return cl.conn.SetReadDeadline(time.Now().Add(cl.c.pongWait))
	})

	for {
		_, raw, err := cl.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				cl.c.logger.InfoContext(ctx, "websocket read failed", "error", err)
			}
			return
		}

		cl.handleMessage(ctx, raw)
	}
}

func (cl *client) handleMessage(ctx context.Context, raw []byte) {
	req, err := cl.c.decoder.Decode(raw)
	if err != nil {
		cl.c.logger.DebugContext(ctx, "rejected websocket message", "error", err)
		cl.reply(req.Id, protocol.Error(cl.errorFields(err)))
		return
	}

	ctx = ctxlogger.AppendCtx(ctx, slog.String("message_type", string(req.Event.Type())))
	start := time.Now()

	cl.reqId = req.Id
	defer func() { cl.reqId = nil }()

	if err := protocol.Dispatch(ctx, req.Event, cl); err != nil {
		code, _ := errorCode(err)
		if code == "internal_error" || code == "storage_failure" {
			cl.c.logger.ErrorContext(ctx, "websocket message failed", "error", err)
		} else {
			cl.c.logger.InfoContext(ctx, "websocket message rejected", "error", err)
		}
		cl.reply(req.Id, protocol.Error(cl.errorFields(err)))
		return
	}

	cl.c.logger.DebugContext(ctx, "websocket message handled",
		"processing_time_us", time.Since(start).Microseconds(),
	)
}

func (cl *client) errorFields(err error) (string, string, []protocol.FieldError) {
	p := errorPayload(err)
	return p.Code, p.Message, p.Fields
}

func (cl *client) reply(id *int64, out *protocol.Output) {
	if id != nil {
		out = out.WithId(id)
	}

	if !cl.Send(out) {
		cl.c.logger.Warn("dropped reply", "conn_id", cl.id, "type", out.Type)
	}
}

// ack confirms a fire-and-forget event, only when the client asked for a
// correlation id.
func (cl *client) ack() {
	if cl.reqId != nil {
		cl.reply(cl.reqId, protocol.Ack())
	}
}
