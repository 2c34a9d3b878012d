package room

import (
	"github.com/sharetube/watchparty/internal/protocol"
	roomrepo "github.com/sharetube/watchparty/internal/repository/room"
)

func roomView(rm roomrepo.Room) protocol.RoomView {
	return protocol.RoomView{
		Id:         rm.Id,
		OwnerId:    rm.OwnerId,
		Title:      rm.Title,
		Position:   rm.Position,
		IsPlaying:  rm.IsPlaying,
		MediaId:    rm.MediaId,
		MediaTitle: rm.MediaTitle,
		MediaType:  rm.MediaType,
		Version:    rm.Version,
		LastSyncAt: rm.LastSyncAt.UnixMilli(),
	}
}

func memberView(m roomrepo.Member) protocol.MemberView {
	return protocol.MemberView{
		UserId:          m.UserId,
		Name:            m.Username,
		CanControl:      m.CanControl,
		CanInvite:       m.CanInvite,
		IsActive:        m.IsActive,
		LastSeen:        m.LastSeen.UnixMilli(),
		CurrentPosition: m.CurrentPosition,
	}
}

func memberViews(members []roomrepo.Member) []protocol.MemberView {
	views := make([]protocol.MemberView, 0, len(members))
	for _, m := range members {
		views = append(views, memberView(m))
	}

	return views
}

func syncEventView(ev roomrepo.SyncEvent) protocol.SyncEventView {
	return protocol.SyncEventView{
		Id:        ev.Id,
		EventType: string(ev.EventType),
		Position:  ev.Position,
		UserId:    ev.UserId,
		Timestamp: ev.Timestamp.UnixMilli(),
	}
}

func playbackState(rm roomrepo.Room) protocol.PlaybackState {
	return protocol.PlaybackState{
		Position:   rm.Position,
		IsPlaying:  rm.IsPlaying,
		MediaId:    rm.MediaId,
		MediaTitle: rm.MediaTitle,
		MediaType:  rm.MediaType,
	}
}

var controlEventTypes = map[protocol.Type]roomrepo.EventType{
	protocol.TypePlay:        roomrepo.EventPlay,
	protocol.TypePause:       roomrepo.EventPause,
	protocol.TypeSeek:        roomrepo.EventSeek,
	protocol.TypeMediaChange: roomrepo.EventMediaChange,
}
