package room

import "time"

// CreateRoomParams creates the room together with its owner's member row.
type CreateRoomParams struct {
	Id        string
	OwnerId   string
	OwnerName string
	Title     string
	CreatedAt time.Time
}

// ApplyControlEventParams describes one committed control event: the new
// playback fields, the sync log entry and the actor's position, written in one
// transaction guarded by ExpectedVersion.
type ApplyControlEventParams struct {
	RoomId          string
	ExpectedVersion int64
	Position        float64
	IsPlaying       bool
	MediaId         string
	MediaTitle      string
	MediaType       string
	Event           SyncEvent
}

type GetMemberParams struct {
	UserId string
	RoomId string
}

type UpsertMemberParams struct {
	UserId     string
	RoomId     string
	Username   string
	CanControl bool
	CanInvite  bool
	// LastSeen is only stamped on a new member row.
	LastSeen time.Time
}

type SetMemberActiveParams struct {
	UserId   string
	RoomId   string
	IsActive bool
	// Username is refreshed when not empty.
	Username string
	LastSeen time.Time
}

// RecordBufferParams appends a buffer event and updates the reporting member
// without touching the room.
type RecordBufferParams struct {
	Event SyncEvent
}

type ListSyncEventsParams struct {
	RoomId string
	Since  time.Time
	Limit  int
}
