package room

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/identity"
	"github.com/sharetube/watchparty/internal/protocol"
	roomrepo "github.com/sharetube/watchparty/internal/repository/room"
)

const maxTitleLength = 256

type CreateRoomParams struct {
	Principal identity.Principal
	Title     string
}

type CreateRoomResponse struct {
	Room  protocol.RoomView
	Owner protocol.MemberView
}

func (s *service) CreateRoom(ctx context.Context, params *CreateRoomParams) (CreateRoomResponse, error) {
	if utf8.RuneCountInString(params.Title) > maxTitleLength {
		return CreateRoomResponse{}, fmt.Errorf("%w: title must not exceed %d characters", ErrValidation, maxTitleLength)
	}

	rm, err := s.roomRepo.CreateRoom(ctx, &roomrepo.CreateRoomParams{
		Id:        uuid.NewString(),
		OwnerId:   params.Principal.UserID,
		OwnerName: params.Principal.Name,
		Title:     params.Title,
		CreatedAt: s.now(),
	})
	if err != nil {
		return CreateRoomResponse{}, storageErr("create room", err)
	}

	owner, err := s.roomRepo.GetMember(ctx, &roomrepo.GetMemberParams{UserId: rm.OwnerId, RoomId: rm.Id})
	if err != nil {
		return CreateRoomResponse{}, storageErr("get owner", err)
	}

	s.logger.InfoContext(ctx, "room created", "room_id", rm.Id)

	return CreateRoomResponse{
		Room:  roomView(rm),
		Owner: memberView(owner),
	}, nil
}

type DeleteRoomParams struct {
	Principal identity.Principal
	RoomId    string
}

// DeleteRoom removes the room with its members and logs. Only the owner may
// delete. Connected clients get room-deleted and are detached.
func (s *service) DeleteRoom(ctx context.Context, params *DeleteRoomParams) error {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	rm, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return storageErr("get room", err)
	}

	if rm.OwnerId != params.Principal.UserID {
		return ErrPermissionDenied
	}

	if err := s.roomRepo.DeleteRoom(ctx, params.RoomId); err != nil {
		return storageErr("delete room", err)
	}

	out := protocol.RoomDeleted(params.RoomId)
	s.detachRoom(ctx, params.RoomId, out)
	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, params.RoomId, out); err != nil {
			s.logger.WarnContext(ctx, "failed to relay room deletion", "room_id", params.RoomId, "error", err)
		}
	}

	return nil
}

type InviteMemberParams struct {
	Principal  identity.Principal
	RoomId     string
	UserId     string
	Username   string
	CanControl bool
	CanInvite  bool
}

// InviteMember creates or updates the member row of UserId. The inviter needs
// canInvite and cannot grant a permission it does not hold itself.
func (s *service) InviteMember(ctx context.Context, params *InviteMemberParams) (protocol.MemberView, error) {
	if params.UserId == "" {
		return protocol.MemberView{}, fmt.Errorf("%w: userId is required", ErrValidation)
	}

	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	inviter, err := s.roomRepo.GetMember(ctx, &roomrepo.GetMemberParams{
		UserId: params.Principal.UserID,
		RoomId: params.RoomId,
	})
	if err != nil {
		return protocol.MemberView{}, s.accessErr(ctx, params.RoomId, err)
	}

	if !inviter.CanInvite ||
		(params.CanControl && !inviter.CanControl) {
		return protocol.MemberView{}, ErrPermissionDenied
	}

	member, err := s.roomRepo.UpsertMember(ctx, &roomrepo.UpsertMemberParams{
		UserId:     params.UserId,
		RoomId:     params.RoomId,
		Username:   params.Username,
		CanControl: params.CanControl,
		CanInvite:  params.CanInvite,
		LastSeen:   s.now(),
	})
	if err != nil {
		return protocol.MemberView{}, storageErr("upsert member", err)
	}

	s.logger.InfoContext(ctx, "member invited",
		"room_id", params.RoomId,
		"invitee", params.UserId,
		"can_control", params.CanControl,
		"can_invite", params.CanInvite,
	)

	return memberView(member), nil
}

// accessErr turns a failed member lookup of a REST caller into NotFound for a
// missing room or PermissionDenied for a non-member.
func (s *service) accessErr(ctx context.Context, roomId string, err error) error {
	if !errors.Is(err, roomrepo.ErrMemberNotFound) {
		return storageErr("get member", err)
	}

	if _, err := s.roomRepo.GetRoom(ctx, roomId); err != nil {
		return storageErr("get room", err)
	}

	return ErrPermissionDenied
}

func (s *service) requireMember(ctx context.Context, p identity.Principal, roomId string) error {
	if _, err := s.roomRepo.GetMember(ctx, &roomrepo.GetMemberParams{
		UserId: p.UserID,
		RoomId: roomId,
	}); err != nil {
		return s.accessErr(ctx, roomId, err)
	}

	return nil
}

type GetRoomStateParams struct {
	Principal identity.Principal
	RoomId    string
}

// GetRoomState is the REST snapshot of a room for its members. It reads under
// the room lock so a read-through cache fill cannot race a membership change.
func (s *service) GetRoomState(ctx context.Context, params *GetRoomStateParams) (JoinResponse, error) {
	unlock := s.locks.Lock(params.RoomId)
	defer unlock()

	if err := s.requireMember(ctx, params.Principal, params.RoomId); err != nil {
		return JoinResponse{}, err
	}

	rm, err := s.roomRepo.GetRoom(ctx, params.RoomId)
	if err != nil {
		return JoinResponse{}, storageErr("get room", err)
	}

	members, err := s.roomRepo.ListActiveMembers(ctx, params.RoomId)
	if err != nil {
		return JoinResponse{}, storageErr("list members", err)
	}

	return JoinResponse{
		Room:    roomView(rm),
		Members: memberViews(members),
	}, nil
}

type ListSyncEventsParams struct {
	Principal identity.Principal
	RoomId    string
	Since     time.Time
	// Limit is clamped to the configured maximum. Zero means the maximum.
	Limit int
}

func (s *service) ListSyncEvents(ctx context.Context, params *ListSyncEventsParams) ([]protocol.SyncEventView, error) {
	if params.Limit < 0 {
		return nil, fmt.Errorf("%w: limit must not be negative", ErrValidation)
	}

	if err := s.requireMember(ctx, params.Principal, params.RoomId); err != nil {
		return nil, err
	}

	limit := params.Limit
	if limit == 0 || limit > s.syncEventLimit {
		limit = s.syncEventLimit
	}

	events, err := s.roomRepo.ListSyncEvents(ctx, &roomrepo.ListSyncEventsParams{
		RoomId: params.RoomId,
		Since:  params.Since,
		Limit:  limit,
	})
	if err != nil {
		return nil, storageErr("list sync events", err)
	}

	views := make([]protocol.SyncEventView, 0, len(events))
	for _, ev := range events {
		views = append(views, syncEventView(ev))
	}

	return views, nil
}
