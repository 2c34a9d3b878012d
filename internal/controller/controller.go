package controller

import (
	"context"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/identity"
	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/pkg/validator"
)

type iRoomService interface {
	// rest
	CreateRoom(context.Context, *room.CreateRoomParams) (room.CreateRoomResponse, error)
	DeleteRoom(context.Context, *room.DeleteRoomParams) error
	InviteMember(context.Context, *room.InviteMemberParams) (protocol.MemberView, error)
	GetRoomState(context.Context, *room.GetRoomStateParams) (room.JoinResponse, error)
	ListSyncEvents(context.Context, *room.ListSyncEventsParams) ([]protocol.SyncEventView, error)
	Ping(context.Context) error
	// ws
	Join(context.Context, room.Conn, string) (room.JoinResponse, error)
	Leave(context.Context, room.Conn) error
	Disconnect(context.Context, room.Conn) error
	HandleControlEvent(context.Context, room.Conn, protocol.ControlEvent) (room.ControlEventResponse, error)
	HandleSyncRequest(context.Context, room.Conn) (room.SyncResponse, error)
	HandleChatMessage(context.Context, room.Conn, *protocol.ChatMessage) error
	HandleBuffer(context.Context, room.Conn, *protocol.Buffer) error
}

type iVerifier interface {
	Verify(token string) (identity.Principal, error)
}

type iStats interface {
	Incr(name string)
	Decr(name string)
	ObservePingRTT(rtt time.Duration)
	Handler() http.Handler
}

type controller struct {
	roomService    iRoomService
	verifier       iVerifier
	stats          iStats
	upgrader       websocket.Upgrader
	validate       *validator.Validator
	decoder        *protocol.Decoder
	logger         *slog.Logger
	allowedOrigins []string
	pingInterval   time.Duration
	pongWait       time.Duration
}

func NewController(
	roomService iRoomService,
	verifier iVerifier,
	stats iStats,
	logger *slog.Logger,
	allowedOrigins []string,
) *controller {
	c := &controller{
		roomService:    roomService,
		verifier:       verifier,
		stats:          stats,
		validate:       validator.NewValidator(),
		decoder:        protocol.NewDecoder(),
		logger:         logger,
		allowedOrigins: allowedOrigins,
		pingInterval:   pingInterval,
		pongWait:       pongWait,
	}
	c.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     c.checkOrigin,
	}

	return c
}

func (c *controller) allowAllOrigins() bool {
	return len(c.allowedOrigins) == 0 || slices.Contains(c.allowedOrigins, "*")
}

func (c *controller) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || c.allowAllOrigins() {
		return true
	}

	return slices.Contains(c.allowedOrigins, origin)
}
