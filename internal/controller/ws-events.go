package controller

import (
	"context"

	"github.com/sharetube/watchparty/internal/protocol"
)

var _ protocol.Handler = (*client)(nil)

func (cl *client) HandleJoinRoom(ctx context.Context, ev *protocol.JoinRoom) error {
	res, err := cl.c.roomService.Join(ctx, cl, ev.RoomId)
	if err != nil {
		return err
	}

	cl.reply(cl.reqId, protocol.RoomJoined(res.Room, res.Members))

	return nil
}

func (cl *client) HandleLeaveRoom(ctx context.Context, _ *protocol.LeaveRoom) error {
	if err := cl.c.roomService.Leave(ctx, cl); err != nil {
		return err
	}

	cl.ack()

	return nil
}

func (cl *client) control(ctx context.Context, ev protocol.ControlEvent) error {
	if _, err := cl.c.roomService.HandleControlEvent(ctx, cl, ev); err != nil {
		return err
	}

	cl.ack()

	return nil
}

func (cl *client) HandlePlay(ctx context.Context, ev *protocol.Play) error {
	return cl.control(ctx, ev)
}

func (cl *client) HandlePause(ctx context.Context, ev *protocol.Pause) error {
	return cl.control(ctx, ev)
}

func (cl *client) HandleSeek(ctx context.Context, ev *protocol.Seek) error {
	return cl.control(ctx, ev)
}

func (cl *client) HandleMediaChange(ctx context.Context, ev *protocol.MediaChange) error {
	return cl.control(ctx, ev)
}

func (cl *client) HandleBuffer(ctx context.Context, ev *protocol.Buffer) error {
	if err := cl.c.roomService.HandleBuffer(ctx, cl, ev); err != nil {
		return err
	}

	cl.ack()

	return nil
}

func (cl *client) HandleChatMessage(ctx context.Context, ev *protocol.ChatMessage) error {
	if err := cl.c.roomService.HandleChatMessage(ctx, cl, ev); err != nil {
		return err
	}

	cl.ack()

	return nil
}

func (cl *client) HandleSyncRequest(ctx context.Context, _ *protocol.SyncRequest) error {
	res, err := cl.c.roomService.HandleSyncRequest(ctx, cl)
	if err != nil {
		return err
	}

	cl.reply(cl.reqId, protocol.SyncResponse(res.Position, res.IsPlaying, res.LastSyncAt, res.ServerTime))

	return nil
}
