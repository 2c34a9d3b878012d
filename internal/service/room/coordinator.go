package room

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/protocol"
	roomrepo "github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/internal/stats"
)

func (s *service) joinedRoom(conn Conn) (string, error) {
	roomId, ok := s.connRepo.RoomOf(conn.Id())
	if !ok {
		return "", ErrNotJoined
	}

	return roomId, nil
}

type ControlEventResponse struct {
	Room protocol.RoomView
}

// HandleControlEvent applies a play, pause, seek or media change from conn to
// its room. Writes to one room are serialized by the room lock; a version
// conflict means another instance committed first, in which case the event is
// re-applied on top of the fresh state so the later arrival wins.
func (s *service) HandleControlEvent(ctx context.Context, conn Conn, ev protocol.ControlEvent) (ControlEventResponse, error) {
	roomId, err := s.joinedRoom(conn)
	if err != nil {
		return ControlEventResponse{}, err
	}

	unlock := s.locks.Lock(roomId)
	defer unlock()

	member, err := s.roomRepo.GetMember(ctx, &roomrepo.GetMemberParams{
		UserId: conn.UserId(),
		RoomId: roomId,
	})
	if err != nil {
		if errors.Is(err, roomrepo.ErrMemberNotFound) {
			s.stats.Incr(stats.ControlEventsRejected)
			return ControlEventResponse{}, ErrPermissionDenied
		}
		return ControlEventResponse{}, storageErr("get member", err)
	}

	if !member.CanControl {
		s.stats.Incr(stats.ControlEventsRejected)
		s.logger.InfoContext(ctx, "control event rejected", "type", ev.Type(), "reason", "can_control=false")
		return ControlEventResponse{}, ErrPermissionDenied
	}

	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		rm, err := s.roomRepo.GetRoom(ctx, roomId)
		if err != nil {
			return ControlEventResponse{}, storageErr("get room", err)
		}

		next := ev.Apply(playbackState(rm))
		at := s.now()

		updated, err := s.roomRepo.ApplyControlEvent(ctx, &roomrepo.ApplyControlEventParams{
			RoomId:          roomId,
			ExpectedVersion: rm.Version,
			Position:        next.Position,
			IsPlaying:       next.IsPlaying,
			MediaId:         next.MediaId,
			MediaTitle:      next.MediaTitle,
			MediaType:       next.MediaType,
			Event: roomrepo.SyncEvent{
				Id:        uuid.NewString(),
				RoomId:    roomId,
				EventType: controlEventTypes[ev.Type()],
				Position:  next.Position,
				UserId:    conn.UserId(),
				Timestamp: at,
			},
		})
		if errors.Is(err, roomrepo.ErrStaleVersion) {
			s.stats.Incr(stats.ConflictResolutions)
			s.logger.InfoContext(ctx, "room version conflict, retrying", "attempt", attempt+1, "version", rm.Version)
			continue
		}
		if err != nil {
			return ControlEventResponse{}, storageErr("apply control event", err)
		}

		s.stats.Incr(stats.ControlEventsAccepted)
		s.logger.InfoContext(ctx, "control event applied",
			"type", ev.Type(),
			"position", updated.Position,
			"is_playing", updated.IsPlaying,
			"version", updated.Version,
		)

		s.broadcast(ctx, roomId, ev.Broadcast(conn.UserId(), at), conn.Id())

		return ControlEventResponse{Room: roomView(updated)}, nil
	}

	return ControlEventResponse{}, fmt.Errorf("failed to apply control event after %d conflicts: %w", maxConflictRetries, ErrStorageFailure)
}

type SyncResponse struct {
	Position   float64
	IsPlaying  bool
	LastSyncAt time.Time
	ServerTime time.Time
}

// HandleSyncRequest returns the authoritative timeline to the caller only. It
// never writes, so clients may retry it freely.
func (s *service) HandleSyncRequest(ctx context.Context, conn Conn) (SyncResponse, error) {
	roomId, err := s.joinedRoom(conn)
	if err != nil {
		return SyncResponse{}, err
	}

	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return SyncResponse{}, storageErr("get room", err)
	}

	s.stats.Incr(stats.SyncRequests)

	return SyncResponse{
		Position:   rm.Position,
		IsPlaying:  rm.IsPlaying,
		LastSyncAt: rm.LastSyncAt,
		ServerTime: s.now(),
	}, nil
}

// HandleChatMessage persists a chat message and broadcasts the stored copy to
// the whole room, sender included.
func (s *service) HandleChatMessage(ctx context.Context, conn Conn, ev *protocol.ChatMessage) error {
	roomId, err := s.joinedRoom(conn)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(roomId)
	defer unlock()

	msg := roomrepo.ChatMessage{
		Id:        uuid.NewString(),
		RoomId:    roomId,
		UserId:    conn.UserId(),
		Username:  conn.Username(),
		Content:   ev.Content,
		CreatedAt: s.now(),
	}
	if err := s.roomRepo.CreateChatMessage(ctx, &msg); err != nil {
		return storageErr("create chat message", err)
	}

	s.broadcast(ctx, roomId, protocol.Chat(
		msg.Id,
		msg.Content,
		protocol.UserView{Id: msg.UserId, Name: msg.Username},
		msg.CreatedAt,
	), "")

	return nil
}

// HandleBuffer logs a member's buffering position and tells the others. The
// room timeline is not touched.
func (s *service) HandleBuffer(ctx context.Context, conn Conn, ev *protocol.Buffer) error {
	roomId, err := s.joinedRoom(conn)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(roomId)
	defer unlock()

	if err := s.roomRepo.RecordBuffer(ctx, &roomrepo.RecordBufferParams{
		Event: roomrepo.SyncEvent{
			Id:        uuid.NewString(),
			RoomId:    roomId,
			EventType: roomrepo.EventBuffer,
			Position:  *ev.Position,
			UserId:    conn.UserId(),
			Timestamp: s.now(),
		},
	}); err != nil {
		return storageErr("record buffer", err)
	}

	s.logger.DebugContext(ctx, "member buffering", "position", *ev.Position)
	s.broadcast(ctx, roomId, protocol.BufferReport(conn.UserId(), *ev.Position), conn.Id())

	return nil
}
