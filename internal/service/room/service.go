package room

import (
	"context"
	"log/slog"
	"time"

	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	roomrepo "github.com/sharetube/watchparty/internal/repository/room"
)

// Conn is one live client connection as seen by the room service.
type Conn interface {
	Id() string
	UserId() string
	Username() string
	// Send queues out without blocking and reports whether it was accepted.
	Send(out *protocol.Output) bool
}

type iRoomRepo interface {
	// room
	CreateRoom(context.Context, *roomrepo.CreateRoomParams) (roomrepo.Room, error)
	GetRoom(context.Context, string) (roomrepo.Room, error)
	DeleteRoom(context.Context, string) error
	ApplyControlEvent(context.Context, *roomrepo.ApplyControlEventParams) (roomrepo.Room, error)
	// member
	GetMember(context.Context, *roomrepo.GetMemberParams) (roomrepo.Member, error)
	UpsertMember(context.Context, *roomrepo.UpsertMemberParams) (roomrepo.Member, error)
	SetMemberActive(context.Context, *roomrepo.SetMemberActiveParams) (roomrepo.Member, error)
	ListActiveMembers(context.Context, string) ([]roomrepo.Member, error)
	// log
	RecordBuffer(context.Context, *roomrepo.RecordBufferParams) error
	ListSyncEvents(context.Context, *roomrepo.ListSyncEventsParams) ([]roomrepo.SyncEvent, error)
	CreateChatMessage(context.Context, *roomrepo.ChatMessage) error
	Ping(context.Context) error
}

type iConnRepo interface {
	Add(roomId string, conn Conn) (inmemory.AddResult, error)
	Remove(conn Conn) (inmemory.RemoveResult, error)
	RoomOf(connId string) (string, bool)
	Conns(roomId string) []Conn
	RemoveRoom(roomId string) []Conn
}

type iPublisher interface {
	Publish(ctx context.Context, roomId string, out *protocol.Output) error
}

type iStats interface {
	Incr(name string)
	Decr(name string)
}

const maxConflictRetries = 5

type service struct {
	roomRepo       iRoomRepo
	connRepo       iConnRepo
	publisher      iPublisher
	stats          iStats
	logger         *slog.Logger
	locks          *keyedMutex
	syncEventLimit int
	now            func() time.Time
}

// NewService wires the coordinator. publisher may be nil when the process runs
// as a single instance.
func NewService(
	roomRepo iRoomRepo,
	connRepo iConnRepo,
	publisher iPublisher,
	stats iStats,
	logger *slog.Logger,
	syncEventLimit int,
) *service {
	return &service{
		roomRepo:       roomRepo,
		connRepo:       connRepo,
		publisher:      publisher,
		stats:          stats,
		logger:         logger,
		locks:          newKeyedMutex(),
		syncEventLimit: syncEventLimit,
		now: func() time.Time {
			return time.Now().UTC().Truncate(time.Millisecond)
		},
	}
}

func (s *service) Ping(ctx context.Context) error {
	if err := s.roomRepo.Ping(ctx); err != nil {
		return storageErr("ping store", err)
	}

	return nil
}
