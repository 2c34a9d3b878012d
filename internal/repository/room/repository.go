package room

import "context"

// Repo is the system of record for rooms, members and the sync log.
type Repo interface {
	CreateRoom(ctx context.Context, params *CreateRoomParams) (Room, error)
	GetRoom(ctx context.Context, roomId string) (Room, error)
	DeleteRoom(ctx context.Context, roomId string) error
	ApplyControlEvent(ctx context.Context, params *ApplyControlEventParams) (Room, error)
	GetMember(ctx context.Context, params *GetMemberParams) (Member, error)
	UpsertMember(ctx context.Context, params *UpsertMemberParams) (Member, error)
	SetMemberActive(ctx context.Context, params *SetMemberActiveParams) (Member, error)
	ListActiveMembers(ctx context.Context, roomId string) ([]Member, error)
	RecordBuffer(ctx context.Context, params *RecordBufferParams) error
	ListSyncEvents(ctx context.Context, params *ListSyncEventsParams) ([]SyncEvent, error)
	CreateChatMessage(ctx context.Context, msg *ChatMessage) error
	Ping(ctx context.Context) error
}
