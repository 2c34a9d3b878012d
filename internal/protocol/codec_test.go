package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	d := NewDecoder()

	tcases := []struct {
		name    string
		input   string
		want    Event
		wantId  *int64
		wantErr bool
		field   string
	}{
		{
			name:  "join room",
			input: `{"type":"join-room","payload":{"roomId":"r1"}}`,
			want:  &JoinRoom{RoomId: "r1"},
		},
		{
			name:   "play with id",
			input:  `{"id":7,"type":"play","payload":{"position":42.0,"timestamp":1700000000000}}`,
			want:   &Play{Position: ptr(42), Timestamp: 1700000000000},
			wantId: id(7),
		},
		{
			name:  "pause at zero",
			input: `{"type":"pause","payload":{"position":0}}`,
			want:  &Pause{Position: ptr(0)},
		},
		{
			name:  "sync request without payload",
			input: `{"type":"sync-request"}`,
			want:  &SyncRequest{},
		},
		{
			name:  "leave room with null payload",
			input: `{"type":"leave-room","payload":null}`,
			want:  &LeaveRoom{},
		},
		{
			name:  "media change",
			input: `{"type":"media-change","payload":{"mediaId":"m1","title":"Film","type":"movie"}}`,
			want:  &MediaChange{MediaId: "m1", Title: "Film", MediaType: "movie"},
		},
		{
			name:    "negative position",
			input:   `{"id":3,"type":"seek","payload":{"position":-1}}`,
			wantId:  id(3),
			wantErr: true,
			field:   "position",
		},
		{
			name:    "missing position",
			input:   `{"type":"play","payload":{}}`,
			wantErr: true,
			field:   "position",
		},
		{
			name:    "missing room context",
			input:   `{"type":"join-room","payload":{}}`,
			wantErr: true,
			field:   "roomId",
		},
		{
			name:    "empty chat",
			input:   `{"type":"chat-message","payload":{"content":""}}`,
			wantErr: true,
			field:   "content",
		},
		{
			name:    "unknown type",
			input:   `{"id":1,"type":"rewind","payload":{}}`,
			wantId:  id(1),
			wantErr: true,
			field:   "type",
		},
		{
			name:    "wrong payload type",
			input:   `{"type":"seek","payload":{"position":"ten"}}`,
			wantErr: true,
		},
		{
			name:    "not json",
			input:   `play 42`,
			wantErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			req, err := d.Decode([]byte(tc.input))
			assert.Equal(t, tc.wantId, req.Id)

			if tc.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidMessage)
				assert.Nil(t, req.Event)

				var verr *ValidationError
				require.True(t, errors.As(err, &verr))
				if tc.field != "" {
					require.NotEmpty(t, verr.Fields)
					assert.Equal(t, tc.field, verr.Fields[0].Field)
				}
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.want, req.Event)
		})
	}
}

type recordingHandler struct {
	got []Type
}

func (h *recordingHandler) record(e Event) error {
	h.got = append(h.got, e.Type())
	return nil
}

func (h *recordingHandler) HandleJoinRoom(_ context.Context, e *JoinRoom) error   { return h.record(e) }
func (h *recordingHandler) HandleLeaveRoom(_ context.Context, e *LeaveRoom) error { return h.record(e) }
func (h *recordingHandler) HandlePlay(_ context.Context, e *Play) error           { return h.record(e) }
func (h *recordingHandler) HandlePause(_ context.Context, e *Pause) error         { return h.record(e) }
func (h *recordingHandler) HandleSeek(_ context.Context, e *Seek) error           { return h.record(e) }
func (h *recordingHandler) HandleMediaChange(_ context.Context, e *MediaChange) error {
	return h.record(e)
}
func (h *recordingHandler) HandleBuffer(_ context.Context, e *Buffer) error { return h.record(e) }
func (h *recordingHandler) HandleChatMessage(_ context.Context, e *ChatMessage) error {
	return h.record(e)
}
func (h *recordingHandler) HandleSyncRequest(_ context.Context, e *SyncRequest) error {
	return h.record(e)
}

func TestDispatch_RoutesEveryType(t *testing.T) {
	h := &recordingHandler{}
	for typ, newEvent := range constructors {
		require.NoError(t, Dispatch(context.Background(), newEvent(), h))
		assert.Equal(t, typ, h.got[len(h.got)-1])
	}
	assert.Len(t, h.got, len(constructors))
}

func TestControlEvent_Apply(t *testing.T) {
	start := PlaybackState{Position: 10, IsPlaying: false, MediaId: "m1", MediaTitle: "t", MediaType: "movie"}

	tcases := []struct {
		name string
		ev   ControlEvent
		want PlaybackState
	}{
		{
			name: "play sets position and playing",
			ev:   &Play{Position: ptr(42)},
			want: PlaybackState{Position: 42, IsPlaying: true, MediaId: "m1", MediaTitle: "t", MediaType: "movie"},
		},
		{
			name: "pause sets position and paused",
			ev:   &Pause{Position: ptr(12)},
			want: PlaybackState{Position: 12, IsPlaying: false, MediaId: "m1", MediaTitle: "t", MediaType: "movie"},
		},
		{
			name: "seek keeps play state",
			ev:   &Seek{Position: ptr(99)},
			want: PlaybackState{Position: 99, IsPlaying: false, MediaId: "m1", MediaTitle: "t", MediaType: "movie"},
		},
		{
			name: "media change resets timeline",
			ev:   &MediaChange{MediaId: "m2", Title: "Other", MediaType: "episode"},
			want: PlaybackState{Position: 0, IsPlaying: false, MediaId: "m2", MediaTitle: "Other", MediaType: "episode"},
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.ev.Apply(start))
		})
	}

	playing := PlaybackState{Position: 5, IsPlaying: true}
	assert.True(t, (&Seek{Position: ptr(1)}).Apply(playing).IsPlaying)
}

func TestControlEvent_Broadcast(t *testing.T) {
	at := time.UnixMilli(1_700_000_000_123)

	out := (&Play{Position: ptr(42), Timestamp: 1}).Broadcast("u1", at)
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"play","payload":{"position":42,"timestamp":1700000000123,"userId":"u1"}}`, string(data))

	out = (&MediaChange{MediaId: "m2", MediaType: "episode"}).Broadcast("u1", at)
	data, err = json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"media-change","payload":{"mediaId":"m2","title":"","type":"episode","position":0,"timestamp":1700000000123,"userId":"u1"}}`, string(data))
}

func TestOutput_WithId(t *testing.T) {
	base := Ack()
	out := base.WithId(id(9))

	assert.Nil(t, base.Id)
	data, err := json.Marshal(out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":9,"type":"ack","payload":{}}`, string(data))
}

func ptr(f float64) *float64 { return &f }

func id(i int64) *int64 { return &i }
