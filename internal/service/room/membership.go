package room

import (
	"context"
	"errors"
	"slices"
	"strings"

	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/internal/repository/connection"
	roomrepo "github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/internal/stats"
)

type JoinResponse struct {
	Room    protocol.RoomView
	Members []protocol.MemberView
}

// Join attaches conn to roomId. Access requires an existing member row; rooms
// are never joined by invitation-less users. A connection already in another
// room leaves it first, once access to roomId is confirmed, and joining the
// current room again only re-affirms membership.
func (s *service) Join(ctx context.Context, conn Conn, roomId string) (JoinResponse, error) {
	if current, ok := s.connRepo.RoomOf(conn.Id()); ok && current != roomId {
		if _, err := s.checkJoin(ctx, conn.UserId(), roomId); err != nil {
			return JoinResponse{}, err
		}

		if err := s.Leave(ctx, conn); err != nil && !errors.Is(err, ErrNotJoined) {
			return JoinResponse{}, err
		}
	}

	unlock := s.locks.Lock(roomId)
	defer unlock()

	rm, err := s.checkJoin(ctx, conn.UserId(), roomId)
	if err != nil {
		return JoinResponse{}, err
	}

	members, err := s.roomRepo.ListActiveMembers(ctx, roomId)
	if err != nil {
		return JoinResponse{}, storageErr("list members", err)
	}

	member, err := s.roomRepo.SetMemberActive(ctx, &roomrepo.SetMemberActiveParams{
		UserId:   conn.UserId(),
		RoomId:   roomId,
		IsActive: true,
		Username: conn.Username(),
		LastSeen: s.now(),
	})
	if err != nil {
		return JoinResponse{}, storageErr("activate member", err)
	}

	announce := false
	res, err := s.connRepo.Add(roomId, conn)
	switch {
	case errors.Is(err, connection.ErrAlreadyExists):
		// rejoin of the same room
	case err != nil:
		return JoinResponse{}, err
	default:
		if res.FirstInRoom {
			s.stats.Incr(stats.ActiveRooms)
		}
		announce = res.FirstForUser
	}

	if announce {
		s.broadcast(ctx, roomId, protocol.UserJoined(memberView(member)), conn.Id())
	}

	s.logger.InfoContext(ctx, "member joined", "room_id", roomId, "announced", announce)

	return JoinResponse{
		Room:    roomView(rm),
		Members: memberViews(withMember(members, member)),
	}, nil
}

// checkJoin reports whether userId may join roomId without touching any state.
func (s *service) checkJoin(ctx context.Context, userId, roomId string) (roomrepo.Room, error) {
	rm, err := s.roomRepo.GetRoom(ctx, roomId)
	if err != nil {
		return roomrepo.Room{}, storageErr("get room", err)
	}

	if _, err := s.roomRepo.GetMember(ctx, &roomrepo.GetMemberParams{
		UserId: userId,
		RoomId: roomId,
	}); err != nil {
		if errors.Is(err, roomrepo.ErrMemberNotFound) {
			return roomrepo.Room{}, ErrPermissionDenied
		}
		return roomrepo.Room{}, storageErr("get member", err)
	}

	return rm, nil
}

// withMember puts m into members, which are ordered by user id.
func withMember(members []roomrepo.Member, m roomrepo.Member) []roomrepo.Member {
	i, found := slices.BinarySearchFunc(members, m.UserId, func(e roomrepo.Member, userId string) int {
		return strings.Compare(e.UserId, userId)
	})
	if found {
		members[i] = m
		return members
	}

	return slices.Insert(members, i, m)
}

// Leave detaches conn from its room. The member turns inactive, and peers are
// told, only when this was the user's last connection in the room. Room state
// is left as is.
func (s *service) Leave(ctx context.Context, conn Conn) error {
	roomId, err := s.joinedRoom(conn)
	if err != nil {
		return err
	}

	unlock := s.locks.Lock(roomId)
	defer unlock()

	res, err := s.connRepo.Remove(conn)
	if err != nil {
		// detached concurrently, e.g. by a room deletion
		return ErrNotJoined
	}

	if res.LastInRoom {
		s.stats.Decr(stats.ActiveRooms)
	}

	if !res.LastForUser {
		return nil
	}

	_, err = s.roomRepo.SetMemberActive(ctx, &roomrepo.SetMemberActiveParams{
		UserId:   conn.UserId(),
		RoomId:   roomId,
		IsActive: false,
		LastSeen: s.now(),
	})
	if err != nil && errors.Is(err, roomrepo.ErrMemberNotFound) {
		err = nil
	}

	// the connection is gone either way, so peers hear about it even when the
	// member row keeps a stale isActive
	s.broadcast(ctx, roomId, protocol.UserLeft(conn.UserId()), conn.Id())
	s.logger.InfoContext(ctx, "member left", "room_id", roomId)

	if err != nil {
		s.logger.WarnContext(ctx, "failed to deactivate member", "room_id", roomId, "error", err)
		return storageErr("deactivate member", err)
	}

	return nil
}

// Disconnect is Leave for a dropped transport. A connection that never joined
// is not an error.
func (s *service) Disconnect(ctx context.Context, conn Conn) error {
	if err := s.Leave(ctx, conn); err != nil && !errors.Is(err, ErrNotJoined) {
		return err
	}

	return nil
}
