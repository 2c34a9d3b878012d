package protocol

import "encoding/json"

type Type string

// client to server
const (
	TypeJoinRoom    Type = "join-room"
	TypeLeaveRoom   Type = "leave-room"
	TypePlay        Type = "play"
	TypePause       Type = "pause"
	TypeSeek        Type = "seek"
	TypeMediaChange Type = "media-change"
	TypeBuffer      Type = "buffer"
	TypeChatMessage Type = "chat-message"
	TypeSyncRequest Type = "sync-request"
)

// server to client
const (
	TypeRoomJoined   Type = "room-joined"
	TypeSyncResponse Type = "sync-response"
	TypeUserJoined   Type = "user-joined"
	TypeUserLeft     Type = "user-left"
	TypeRoomDeleted  Type = "room-deleted"
	TypeAck          Type = "ack"
	TypeError        Type = "error"
)

type Input struct {
	Id      *int64          `json:"id,omitempty"`
	Type    Type            `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type Output struct {
	Id      *int64 `json:"id,omitempty"`
	Type    Type   `json:"type"`
	Payload any    `json:"payload"`
}

// WithId returns a copy of o correlated to a client request id.
func (o Output) WithId(id *int64) *Output {
	o.Id = id
	return &o
}

type RoomView struct {
	Id         string  `json:"id"`
	OwnerId    string  `json:"ownerId"`
	Title      string  `json:"title"`
	Position   float64 `json:"position"`
	IsPlaying  bool    `json:"isPlaying"`
	MediaId    string  `json:"mediaId,omitempty"`
	MediaTitle string  `json:"mediaTitle,omitempty"`
	MediaType  string  `json:"mediaType,omitempty"`
	Version    int64   `json:"version"`
	LastSyncAt int64   `json:"lastSyncAt"`
}

type MemberView struct {
	UserId          string  `json:"userId"`
	Name            string  `json:"name"`
	CanControl      bool    `json:"canControl"`
	CanInvite       bool    `json:"canInvite"`
	IsActive        bool    `json:"isActive"`
	LastSeen        int64   `json:"lastSeen"`
	CurrentPosition float64 `json:"currentPosition"`
}

type UserView struct {
	Id   string `json:"id"`
	Name string `json:"name"`
}

type RoomJoinedPayload struct {
	Room    RoomView     `json:"room"`
	Members []MemberView `json:"members"`
}

type ControlPayload struct {
	Position  float64 `json:"position"`
	Timestamp int64   `json:"timestamp"`
	UserId    string  `json:"userId"`
}

type MediaChangePayload struct {
	MediaId   string  `json:"mediaId"`
	Title     string  `json:"title"`
	Type      string  `json:"type"`
	Position  float64 `json:"position"`
	Timestamp int64   `json:"timestamp"`
	UserId    string  `json:"userId"`
}

type BufferPayload struct {
	UserId   string  `json:"userId"`
	Position float64 `json:"position"`
}

type ChatMessagePayload struct {
	Id        string   `json:"id"`
	Content   string   `json:"content"`
	User      UserView `json:"user"`
	CreatedAt int64    `json:"createdAt"`
}

type SyncResponsePayload struct {
	Position   float64 `json:"position"`
	IsPlaying  bool    `json:"isPlaying"`
	Timestamp  int64   `json:"timestamp"`
	ServerTime int64   `json:"serverTime"`
}

type UserJoinedPayload struct {
	User MemberView `json:"user"`
}

type UserLeftPayload struct {
	UserId string `json:"userId"`
}

type RoomDeletedPayload struct {
	RoomId string `json:"roomId"`
}

type ErrorPayload struct {
	Message string       `json:"message"`
	Code    string       `json:"code"`
	Fields  []FieldError `json:"fields,omitempty"`
}

type SyncEventView struct {
	Id        string  `json:"id"`
	EventType string  `json:"eventType"`
	Position  float64 `json:"position"`
	UserId    string  `json:"userId"`
	Timestamp int64   `json:"timestamp"`
}
