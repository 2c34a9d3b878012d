package room

import (
	"context"

	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/internal/stats"
)

// broadcast delivers out to every local connection of the room except the one
// with excludeConnId, then relays it to other instances. Callers hold the room
// lock and have already committed the state out describes.
func (s *service) broadcast(ctx context.Context, roomId string, out *protocol.Output, excludeConnId string) {
	s.deliverLocal(ctx, roomId, out, excludeConnId)

	if s.publisher == nil {
		return
	}

	if err := s.publisher.Publish(ctx, roomId, out); err != nil {
		s.logger.WarnContext(ctx, "failed to relay broadcast", "room_id", roomId, "type", out.Type, "error", err)
	}
}

func (s *service) deliverLocal(ctx context.Context, roomId string, out *protocol.Output, excludeConnId string) {
	for _, conn := range s.connRepo.Conns(roomId) {
		if conn.Id() == excludeConnId {
			continue
		}

		if !conn.Send(out) {
			s.stats.Incr(stats.BroadcastDrops)
			s.logger.WarnContext(ctx, "dropped broadcast",
				"room_id", roomId,
				"conn_id", conn.Id(),
				"type", out.Type,
				"error", ErrTransientNetwork,
			)
		}
	}
}

// DeliverRemote hands a broadcast committed on another instance to this
// instance's connections of the room.
func (s *service) DeliverRemote(ctx context.Context, roomId string, out *protocol.Output) {
	if out.Type == protocol.TypeRoomDeleted {
		s.detachRoom(ctx, roomId, out)
		return
	}

	s.deliverLocal(ctx, roomId, out, "")
}

func (s *service) detachRoom(ctx context.Context, roomId string, out *protocol.Output) {
	conns := s.connRepo.RemoveRoom(roomId)
	if len(conns) > 0 {
		s.stats.Decr(stats.ActiveRooms)
	}

	for _, conn := range conns {
		if !conn.Send(out) {
			s.stats.Incr(stats.BroadcastDrops)
		}
	}

	s.logger.InfoContext(ctx, "room detached", "room_id", roomId, "conns", len(conns))
}
