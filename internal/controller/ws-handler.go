package controller

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/stats"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
)

// serveWs authenticates before the upgrade so an Unauthorized caller gets a
// plain HTTP 401 and never a socket.
func (c *controller) serveWs(w http.ResponseWriter, r *http.Request) {
	p, err := c.authenticate(r)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		c.logger.WarnContext(r.Context(), "failed to upgrade to websocket", "error", err)
		return
	}

	cl := newClient(c, conn, uuid.NewString(), p)

	ctx := context.WithoutCancel(r.Context())
	ctx = ctxlogger.AppendCtx(ctx, slog.String("conn_id", cl.id))
	ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", p.UserID))

	c.stats.Incr(stats.ActiveConnections)
	defer c.stats.Decr(stats.ActiveConnections)
	c.logger.InfoContext(ctx, "websocket connected")

	go cl.writePump(ctx)
	cl.readPump(ctx)

	if err := c.roomService.Disconnect(ctx, cl); err != nil {
		c.logger.WarnContext(ctx, "failed to disconnect", "error", err)
	}
	c.logger.InfoContext(ctx, "websocket disconnected")
}
