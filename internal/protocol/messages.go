package protocol

import "time"

func RoomJoined(room RoomView, members []MemberView) *Output {
	if members == nil {
		members = []MemberView{}
	}

	return &Output{
		Type:    TypeRoomJoined,
		Payload: RoomJoinedPayload{Room: room, Members: members},
	}
}

func SyncResponse(position float64, isPlaying bool, lastSyncAt, now time.Time) *Output {
	return &Output{
		Type: TypeSyncResponse,
		Payload: SyncResponsePayload{
			Position:   position,
			IsPlaying:  isPlaying,
			Timestamp:  lastSyncAt.UnixMilli(),
			ServerTime: now.UnixMilli(),
		},
	}
}

func BufferReport(userId string, position float64) *Output {
	return &Output{
		Type:    TypeBuffer,
		Payload: BufferPayload{UserId: userId, Position: position},
	}
}

func Chat(id, content string, user UserView, createdAt time.Time) *Output {
	return &Output{
		Type: TypeChatMessage,
		Payload: ChatMessagePayload{
			Id:        id,
			Content:   content,
			User:      user,
			CreatedAt: createdAt.UnixMilli(),
		},
	}
}

func UserJoined(member MemberView) *Output {
	return &Output{
		Type:    TypeUserJoined,
		Payload: UserJoinedPayload{User: member},
	}
}

func UserLeft(userId string) *Output {
	return &Output{
		Type:    TypeUserLeft,
		Payload: UserLeftPayload{UserId: userId},
	}
}

func RoomDeleted(roomId string) *Output {
	return &Output{
		Type:    TypeRoomDeleted,
		Payload: RoomDeletedPayload{RoomId: roomId},
	}
}

func Ack() *Output {
	return &Output{Type: TypeAck, Payload: struct{}{}}
}

func Error(code, message string, fields []FieldError) *Output {
	return &Output{
		Type:    TypeError,
		Payload: ErrorPayload{Message: message, Code: code, Fields: fields},
	}
}
