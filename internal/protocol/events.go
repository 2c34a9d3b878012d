package protocol

import (
	"context"
	"time"
)

// Event is one of the client message variants declared in this file. The set is
// closed: accept is unexported, and every variant must be routed through a
// Handler method, so a new variant does not compile until every Handler
// implementation covers it.
type Event interface {
	Type() Type
	accept(ctx context.Context, h Handler) error
}

type Handler interface {
	HandleJoinRoom(ctx context.Context, e *JoinRoom) error
	HandleLeaveRoom(ctx context.Context, e *LeaveRoom) error
	HandlePlay(ctx context.Context, e *Play) error
	HandlePause(ctx context.Context, e *Pause) error
	HandleSeek(ctx context.Context, e *Seek) error
	HandleMediaChange(ctx context.Context, e *MediaChange) error
	HandleBuffer(ctx context.Context, e *Buffer) error
	HandleChatMessage(ctx context.Context, e *ChatMessage) error
	HandleSyncRequest(ctx context.Context, e *SyncRequest) error
}

// PlaybackState is the part of a room a control event rewrites.
type PlaybackState struct {
	Position   float64
	IsPlaying  bool
	MediaId    string
	MediaTitle string
	MediaType  string
}

// ControlEvent is an Event that mutates authoritative room state.
type ControlEvent interface {
	Event
	Apply(s PlaybackState) PlaybackState
	Broadcast(userId string, at time.Time) *Output
}

type JoinRoom struct {
	RoomId string `json:"roomId" validate:"required,max=64"`
}

type LeaveRoom struct{}

type Play struct {
	Position  *float64 `json:"position" validate:"required,gte=0"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

type Pause struct {
	Position  *float64 `json:"position" validate:"required,gte=0"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

type Seek struct {
	Position  *float64 `json:"position" validate:"required,gte=0"`
	Timestamp int64    `json:"timestamp,omitempty"`
}

type MediaChange struct {
	MediaId   string `json:"mediaId" validate:"required,max=512"`
	Title     string `json:"title" validate:"max=512"`
	MediaType string `json:"type" validate:"max=64"`
}

type Buffer struct {
	Position *float64 `json:"position" validate:"required,gte=0"`
}

type ChatMessage struct {
	Content string `json:"content" validate:"required,max=2000"`
}

type SyncRequest struct{}

func (*JoinRoom) Type() Type    { return TypeJoinRoom }
func (*LeaveRoom) Type() Type   { return TypeLeaveRoom }
func (*Play) Type() Type        { return TypePlay }
func (*Pause) Type() Type       { return TypePause }
func (*Seek) Type() Type        { return TypeSeek }
func (*MediaChange) Type() Type { return TypeMediaChange }
func (*Buffer) Type() Type      { return TypeBuffer }
func (*ChatMessage) Type() Type { return TypeChatMessage }
func (*SyncRequest) Type() Type { return TypeSyncRequest }

func (e *JoinRoom) accept(ctx context.Context, h Handler) error    { return h.HandleJoinRoom(ctx, e) }
func (e *LeaveRoom) accept(ctx context.Context, h Handler) error   { return h.HandleLeaveRoom(ctx, e) }
func (e *Play) accept(ctx context.Context, h Handler) error        { return h.HandlePlay(ctx, e) }
func (e *Pause) accept(ctx context.Context, h Handler) error       { return h.HandlePause(ctx, e) }
func (e *Seek) accept(ctx context.Context, h Handler) error        { return h.HandleSeek(ctx, e) }
func (e *MediaChange) accept(ctx context.Context, h Handler) error { return h.HandleMediaChange(ctx, e) }
func (e *Buffer) accept(ctx context.Context, h Handler) error      { return h.HandleBuffer(ctx, e) }
func (e *ChatMessage) accept(ctx context.Context, h Handler) error { return h.HandleChatMessage(ctx, e) }
func (e *SyncRequest) accept(ctx context.Context, h Handler) error { return h.HandleSyncRequest(ctx, e) }

func (e *Play) Apply(s PlaybackState) PlaybackState {
	s.Position = *e.Position
	s.IsPlaying = true
	return s
}

func (e *Pause) Apply(s PlaybackState) PlaybackState {
	s.Position = *e.Position
	s.IsPlaying = false
	return s
}

func (e *Seek) Apply(s PlaybackState) PlaybackState {
	s.Position = *e.Position
	return s
}

func (e *MediaChange) Apply(s PlaybackState) PlaybackState {
	return PlaybackState{
		Position:   0,
		IsPlaying:  false,
		MediaId:    e.MediaId,
		MediaTitle: e.Title,
		MediaType:  e.MediaType,
	}
}

func controlOutput(t Type, position float64, userId string, at time.Time) *Output {
	return &Output{
		Type: t,
		Payload: ControlPayload{
			Position:  position,
			Timestamp: at.UnixMilli(),
			UserId:    userId,
		},
	}
}

func (e *Play) Broadcast(userId string, at time.Time) *Output {
	return controlOutput(TypePlay, *e.Position, userId, at)
}

func (e *Pause) Broadcast(userId string, at time.Time) *Output {
	return controlOutput(TypePause, *e.Position, userId, at)
}

func (e *Seek) Broadcast(userId string, at time.Time) *Output {
	return controlOutput(TypeSeek, *e.Position, userId, at)
}

func (e *MediaChange) Broadcast(userId string, at time.Time) *Output {
	return &Output{
		Type: TypeMediaChange,
		Payload: MediaChangePayload{
			MediaId:   e.MediaId,
			Title:     e.Title,
			Type:      e.MediaType,
			Position:  0,
			Timestamp: at.UnixMilli(),
			UserId:    userId,
		},
	}
}

// compile-time checks
var (
	_ ControlEvent = (*Play)(nil)
	_ ControlEvent = (*Pause)(nil)
	_ ControlEvent = (*Seek)(nil)
	_ ControlEvent = (*MediaChange)(nil)
)
