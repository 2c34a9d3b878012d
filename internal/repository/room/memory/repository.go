package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/sharetube/watchparty/internal/repository/room"
)

type memberKey struct {
	userId string
	roomId string
}

// repo keeps rooms in process memory with the same semantics as the postgres
// store: version CAS on control events, unique members per (user, room) and
// cascade deletes. Used for single-instance deployments and tests.
type repo struct {
	mu       sync.RWMutex
	rooms    map[string]room.Room
	members  map[memberKey]room.Member
	events   map[string][]room.SyncEvent
	messages map[string][]room.ChatMessage
}

func NewRepo() *repo {
	return &repo{
		rooms:    make(map[string]room.Room),
		members:  make(map[memberKey]room.Member),
		events:   make(map[string][]room.SyncEvent),
		messages: make(map[string][]room.ChatMessage),
	}
}

func (r *repo) CreateRoom(_ context.Context, params *room.CreateRoomParams) (room.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[params.Id]; ok {
		return room.Room{}, room.ErrRoomAlreadyExists
	}

	rm := room.Room{
		Id:         params.Id,
		OwnerId:    params.OwnerId,
		Title:      params.Title,
		Version:    1,
		LastSyncAt: params.CreatedAt,
		CreatedAt:  params.CreatedAt,
	}
	r.rooms[rm.Id] = rm
	r.members[memberKey{params.OwnerId, rm.Id}] = room.Member{
		UserId:     params.OwnerId,
		RoomId:     rm.Id,
		Username:   params.OwnerName,
		CanControl: true,
		CanInvite:  true,
		LastSeen:   params.CreatedAt,
	}

	return rm, nil
}

func (r *repo) GetRoom(_ context.Context, roomId string) (room.Room, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[roomId]
	if !ok {
		return room.Room{}, room.ErrRoomNotFound
	}

	return rm, nil
}

func (r *repo) DeleteRoom(_ context.Context, roomId string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[roomId]; !ok {
		return room.ErrRoomNotFound
	}

	delete(r.rooms, roomId)
	delete(r.events, roomId)
	delete(r.messages, roomId)
	for k := range r.members {
		if k.roomId == roomId {
			delete(r.members, k)
		}
	}

	return nil
}

func (r *repo) ApplyControlEvent(_ context.Context, params *room.ApplyControlEventParams) (room.Room, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rm, ok := r.rooms[params.RoomId]
	if !ok {
		return room.Room{}, room.ErrRoomNotFound
	}

	if rm.Version != params.ExpectedVersion {
		return room.Room{}, room.ErrStaleVersion
	}

	rm.Position = params.Position
	rm.IsPlaying = params.IsPlaying
	rm.MediaId = params.MediaId
	rm.MediaTitle = params.MediaTitle
	rm.MediaType = params.MediaType
	rm.LastSyncAt = params.Event.Timestamp
	rm.Version++
	r.rooms[rm.Id] = rm

	r.events[rm.Id] = append(r.events[rm.Id], params.Event)
	r.touchMember(params.Event)

	return rm, nil
}

func (r *repo) touchMember(ev room.SyncEvent) {
	key := memberKey{ev.UserId, ev.RoomId}
	if m, ok := r.members[key]; ok {
		m.CurrentPosition = ev.Position
		m.LastSeen = ev.Timestamp
		r.members[key] = m
	}
}

func (r *repo) GetMember(_ context.Context, params *room.GetMemberParams) (room.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[memberKey{params.UserId, params.RoomId}]
	if !ok {
		return room.Member{}, room.ErrMemberNotFound
	}

	return m, nil
}

func (r *repo) UpsertMember(_ context.Context, params *room.UpsertMemberParams) (room.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[params.RoomId]; !ok {
		return room.Member{}, room.ErrRoomNotFound
	}

	key := memberKey{params.UserId, params.RoomId}
	m, ok := r.members[key]
	if !ok {
		m = room.Member{
			UserId:   params.UserId,
			RoomId:   params.RoomId,
			Username: params.Username,
			LastSeen: params.LastSeen,
		}
	}
	if params.Username != "" {
		m.Username = params.Username
	}
	m.CanControl = params.CanControl
	m.CanInvite = params.CanInvite
	r.members[key] = m

	return m, nil
}

func (r *repo) SetMemberActive(_ context.Context, params *room.SetMemberActiveParams) (room.Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memberKey{params.UserId, params.RoomId}
	m, ok := r.members[key]
	if !ok {
		return room.Member{}, room.ErrMemberNotFound
	}

	m.IsActive = params.IsActive
	m.LastSeen = params.LastSeen
	if params.Username != "" {
		m.Username = params.Username
	}
	r.members[key] = m

	return m, nil
}

func (r *repo) ListActiveMembers(_ context.Context, roomId string) ([]room.Member, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	members := make([]room.Member, 0)
	for k, m := range r.members {
		if k.roomId == roomId && m.IsActive {
			members = append(members, m)
		}
	}
	slices.SortFunc(members, func(a, b room.Member) int {
		return strings.Compare(a.UserId, b.UserId)
	})

	return members, nil
}

func (r *repo) RecordBuffer(_ context.Context, params *room.RecordBufferParams) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	roomId := params.Event.RoomId
	if _, ok := r.rooms[roomId]; !ok {
		return room.ErrRoomNotFound
	}

	r.events[roomId] = append(r.events[roomId], params.Event)
	r.touchMember(params.Event)

	return nil
}

func (r *repo) ListSyncEvents(_ context.Context, params *room.ListSyncEventsParams) ([]room.SyncEvent, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	events := make([]room.SyncEvent, 0)
	for _, ev := range r.events[params.RoomId] {
		if !ev.Timestamp.After(params.Since) {
			continue
		}
		events = append(events, ev)
		if params.Limit > 0 && len(events) == params.Limit {
			break
		}
	}

	return events, nil
}

func (r *repo) CreateChatMessage(_ context.Context, msg *room.ChatMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.rooms[msg.RoomId]; !ok {
		return room.ErrRoomNotFound
	}

	r.messages[msg.RoomId] = append(r.messages[msg.RoomId], *msg)

	return nil
}

func (r *repo) Ping(context.Context) error {
	return nil
}
