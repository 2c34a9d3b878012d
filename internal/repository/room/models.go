package room

import "time"

type Room struct {
	Id         string    `json:"id"`
	OwnerId    string    `json:"owner_id"`
	Title      string    `json:"title"`
	Position   float64   `json:"position"`
	IsPlaying  bool      `json:"is_playing"`
	MediaId    string    `json:"media_id"`
	MediaTitle string    `json:"media_title"`
	MediaType  string    `json:"media_type"`
	Version    int64     `json:"version"`
	LastSyncAt time.Time `json:"last_sync_at"`
	CreatedAt  time.Time `json:"created_at"`
}

type Member struct {
	UserId          string    `json:"user_id"`
	RoomId          string    `json:"room_id"`
	Username        string    `json:"username"`
	CanControl      bool      `json:"can_control"`
	CanInvite       bool      `json:"can_invite"`
	IsActive        bool      `json:"is_active"`
	LastSeen        time.Time `json:"last_seen"`
	CurrentPosition float64   `json:"current_position"`
}

type EventType string

const (
	EventPlay        EventType = "play"
	EventPause       EventType = "pause"
	EventSeek        EventType = "seek"
	EventBuffer      EventType = "buffer"
	EventMediaChange EventType = "media_change"
)

type SyncEvent struct {
	Id        string    `json:"id"`
	RoomId    string    `json:"room_id"`
	EventType EventType `json:"event_type"`
	Position  float64   `json:"position"`
	UserId    string    `json:"user_id"`
	Timestamp time.Time `json:"timestamp"`
}

type ChatMessage struct {
	Id        string    `json:"id"`
	RoomId    string    `json:"room_id"`
	UserId    string    `json:"user_id"`
	Username  string    `json:"username"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}
