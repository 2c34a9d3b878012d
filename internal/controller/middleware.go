package controller

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/identity"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/ctxlogger"
)

func (c *controller) requestIdMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		ctx = ctxlogger.AppendCtx(ctx, slog.String("request_id", uuid.NewString()))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (c *controller) requestLoggingMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		c.logger.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"remote_addr", r.RemoteAddr,
			"status", ww.Status(),
			"duration_us", time.Since(start).Microseconds(),
		)
	})
}

func (c *controller) authenticate(r *http.Request) (identity.Principal, error) {
	token, ok := identity.TokenFromRequest(r)
	if !ok {
		return identity.Principal{}, room.ErrUnauthorized
	}

	p, err := c.verifier.Verify(token)
	if err != nil {
		return identity.Principal{}, fmt.Errorf("%w: %w", room.ErrUnauthorized, err)
	}

	return p, nil
}

func (c *controller) authMw(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := c.authenticate(r)
		if err != nil {
			c.writeError(w, r, err)
			return
		}

		ctx := identity.WithPrincipal(r.Context(), p)
		ctx = ctxlogger.AppendCtx(ctx, slog.String("user_id", p.UserID))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
