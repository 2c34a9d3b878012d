// Package roomtest holds behaviour checks every room.Repo implementation must pass.
package roomtest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sharetube/watchparty/internal/repository/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunRepoSuite runs the suite against repos produced by newRepo. Each subtest
// gets a fresh repo; implementations backed by shared storage must use unique
// room ids, which the suite does.
func RunRepoSuite(t *testing.T, newRepo func(t *testing.T) room.Repo) {
	t.Run("CreateAndGetRoom", func(t *testing.T) { testCreateAndGetRoom(t, newRepo(t)) })
	t.Run("ApplyControlEvent", func(t *testing.T) { testApplyControlEvent(t, newRepo(t)) })
	t.Run("StaleVersion", func(t *testing.T) { testStaleVersion(t, newRepo(t)) })
	t.Run("ConcurrentCAS", func(t *testing.T) { testConcurrentCAS(t, newRepo(t)) })
	t.Run("Members", func(t *testing.T) { testMembers(t, newRepo(t)) })
	t.Run("SyncLog", func(t *testing.T) { testSyncLog(t, newRepo(t)) })
	t.Run("DeleteRoom", func(t *testing.T) { testDeleteRoom(t, newRepo(t)) })
}

// Millisecond precision keeps comparisons stable across stores.
func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

func createRoom(t *testing.T, r room.Repo) room.Room {
	t.Helper()
	rm, err := r.CreateRoom(context.Background(), &room.CreateRoomParams{
		Id:        uuid.NewString(),
		OwnerId:   "owner-" + uuid.NewString(),
		OwnerName: "owner",
		Title:     "movie night",
		CreatedAt: now(),
	})
	require.NoError(t, err)

	return rm
}

func testCreateAndGetRoom(t *testing.T, r room.Repo) {
	ctx := context.Background()
	created := createRoom(t, r)

	got, err := r.GetRoom(ctx, created.Id)
	require.NoError(t, err)
	assert.Equal(t, created.Id, got.Id)
	assert.Equal(t, created.OwnerId, got.OwnerId)
	assert.Equal(t, "movie night", got.Title)
	assert.Zero(t, got.Position)
	assert.False(t, got.IsPlaying)
	assert.Equal(t, created.Version, got.Version)

	owner, err := r.GetMember(ctx, &room.GetMemberParams{UserId: created.OwnerId, RoomId: created.Id})
	require.NoError(t, err)
	assert.True(t, owner.CanControl)
	assert.True(t, owner.CanInvite)
	assert.False(t, owner.IsActive)

	_, err = r.CreateRoom(ctx, &room.CreateRoomParams{Id: created.Id, OwnerId: "x", CreatedAt: now()})
	assert.ErrorIs(t, err, room.ErrRoomAlreadyExists)

	_, err = r.GetRoom(ctx, uuid.NewString())
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	require.NoError(t, r.Ping(ctx))
}

func testApplyControlEvent(t *testing.T, r room.Repo) {
	ctx := context.Background()
	rm := createRoom(t, r)
	at := now()

	updated, err := r.ApplyControlEvent(ctx, &room.ApplyControlEventParams{
		RoomId:          rm.Id,
		ExpectedVersion: rm.Version,
		Position:        42,
		IsPlaying:       true,
		MediaId:         "m1",
		Event: room.SyncEvent{
			Id:        uuid.NewString(),
			RoomId:    rm.Id,
			EventType: room.EventPlay,
			Position:  42,
			UserId:    rm.OwnerId,
			Timestamp: at,
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 42.0, updated.Position)
	assert.True(t, updated.IsPlaying)
	assert.Equal(t, "m1", updated.MediaId)
	assert.Equal(t, rm.Version+1, updated.Version)
	assert.True(t, at.Equal(updated.LastSyncAt))

	got, err := r.GetRoom(ctx, rm.Id)
	require.NoError(t, err)
	assert.Equal(t, updated.Version, got.Version)
	assert.Equal(t, 42.0, got.Position)

	owner, err := r.GetMember(ctx, &room.GetMemberParams{UserId: rm.OwnerId, RoomId: rm.Id})
	require.NoError(t, err)
	assert.Equal(t, 42.0, owner.CurrentPosition)

	events, err := r.ListSyncEvents(ctx, &room.ListSyncEventsParams{RoomId: rm.Id, Limit: 10})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, room.EventPlay, events[0].EventType)
	assert.Equal(t, 42.0, events[0].Position)

	_, err = r.ApplyControlEvent(ctx, &room.ApplyControlEventParams{
		RoomId: uuid.NewString(),
		Event:  room.SyncEvent{Id: uuid.NewString(), EventType: room.EventSeek, Timestamp: now()},
	})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func testStaleVersion(t *testing.T, r room.Repo) {
	ctx := context.Background()
	rm := createRoom(t, r)

	apply := func(version int64, position float64) error {
		_, err := r.ApplyControlEvent(ctx, &room.ApplyControlEventParams{
			RoomId:          rm.Id,
			ExpectedVersion: version,
			Position:        position,
			Event: room.SyncEvent{
				Id:        uuid.NewString(),
				RoomId:    rm.Id,
				EventType: room.EventSeek,
				Position:  position,
				UserId:    rm.OwnerId,
				Timestamp: now(),
			},
		})
		return err
	}

	require.NoError(t, apply(rm.Version, 10))
	assert.ErrorIs(t, apply(rm.Version, 99), room.ErrStaleVersion)

	got, err := r.GetRoom(ctx, rm.Id)
	require.NoError(t, err)
	assert.Equal(t, 10.0, got.Position)

	events, err := r.ListSyncEvents(ctx, &room.ListSyncEventsParams{RoomId: rm.Id})
	require.NoError(t, err)
	assert.Len(t, events, 1, "rejected write must not append to the log")
}

func testConcurrentCAS(t *testing.T, r room.Repo) {
	ctx := context.Background()
	rm := createRoom(t, r)

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := range writers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := r.ApplyControlEvent(ctx, &room.ApplyControlEventParams{
				RoomId:          rm.Id,
				ExpectedVersion: rm.Version,
				Position:        float64(i),
				IsPlaying:       i%2 == 0,
				Event: room.SyncEvent{
					Id:        uuid.NewString(),
					RoomId:    rm.Id,
					EventType: room.EventPlay,
					Position:  float64(i),
					UserId:    rm.OwnerId,
					Timestamp: now(),
				},
			})
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, room.ErrStaleVersion)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)

	got, err := r.GetRoom(ctx, rm.Id)
	require.NoError(t, err)
	assert.Equal(t, rm.Version+1, got.Version)
	// fields come from the single winner
	assert.Equal(t, int(got.Position)%2 == 0, got.IsPlaying)
}

func testMembers(t *testing.T, r room.Repo) {
	ctx := context.Background()
	rm := createRoom(t, r)

	_, err := r.GetMember(ctx, &room.GetMemberParams{UserId: "bob", RoomId: rm.Id})
	assert.ErrorIs(t, err, room.ErrMemberNotFound)

	_, err = r.SetMemberActive(ctx, &room.SetMemberActiveParams{UserId: "bob", RoomId: rm.Id, IsActive: true, LastSeen: now()})
	assert.ErrorIs(t, err, room.ErrMemberNotFound)

	_, err = r.UpsertMember(ctx, &room.UpsertMemberParams{UserId: "bob", RoomId: uuid.NewString()})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	invitedAt := now()
	bob, err := r.UpsertMember(ctx, &room.UpsertMemberParams{UserId: "bob", RoomId: rm.Id, Username: "bob", LastSeen: invitedAt})
	require.NoError(t, err)
	assert.False(t, bob.CanControl)
	assert.True(t, invitedAt.Equal(bob.LastSeen), "new member row carries the caller's timestamp")

	bob, err = r.UpsertMember(ctx, &room.UpsertMemberParams{UserId: "bob", RoomId: rm.Id, CanControl: true})
	require.NoError(t, err)
	assert.True(t, bob.CanControl)
	assert.Equal(t, "bob", bob.Username, "empty username keeps the stored one")

	seen := now()
	bob, err = r.SetMemberActive(ctx, &room.SetMemberActiveParams{UserId: "bob", RoomId: rm.Id, IsActive: true, Username: "Bobby", LastSeen: seen})
	require.NoError(t, err)
	assert.True(t, bob.IsActive)
	assert.Equal(t, "Bobby", bob.Username)
	assert.True(t, seen.Equal(bob.LastSeen))

	_, err = r.UpsertMember(ctx, &room.UpsertMemberParams{UserId: "carol", RoomId: rm.Id, Username: "carol"})
	require.NoError(t, err)
	_, err = r.SetMemberActive(ctx, &room.SetMemberActiveParams{UserId: "carol", RoomId: rm.Id, IsActive: true, LastSeen: now()})
	require.NoError(t, err)

	active, err := r.ListActiveMembers(ctx, rm.Id)
	require.NoError(t, err)
	require.Len(t, active, 2)
	assert.Equal(t, "bob", active[0].UserId)
	assert.Equal(t, "carol", active[1].UserId)

	_, err = r.SetMemberActive(ctx, &room.SetMemberActiveParams{UserId: "bob", RoomId: rm.Id, IsActive: false, LastSeen: now()})
	require.NoError(t, err)
	_, err = r.SetMemberActive(ctx, &room.SetMemberActiveParams{UserId: "bob", RoomId: rm.Id, IsActive: true, LastSeen: now()})
	require.NoError(t, err)

	active, err = r.ListActiveMembers(ctx, rm.Id)
	require.NoError(t, err)
	assert.Len(t, active, 2, "reactivation must not duplicate the member")

	empty, err := r.ListActiveMembers(ctx, uuid.NewString())
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func testSyncLog(t *testing.T, r room.Repo) {
	ctx := context.Background()
	rm := createRoom(t, r)
	_, err := r.UpsertMember(ctx, &room.UpsertMemberParams{UserId: "bob", RoomId: rm.Id})
	require.NoError(t, err)

	base := now()
	for i := range 3 {
		require.NoError(t, r.RecordBuffer(ctx, &room.RecordBufferParams{Event: room.SyncEvent{
			Id:        uuid.NewString(),
			RoomId:    rm.Id,
			EventType: room.EventBuffer,
			Position:  float64(10 + i),
			UserId:    "bob",
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}}))
	}

	got, err := r.GetRoom(ctx, rm.Id)
	require.NoError(t, err)
	assert.Equal(t, rm.Version, got.Version, "buffer reports never touch the room")
	assert.Zero(t, got.Position)

	bob, err := r.GetMember(ctx, &room.GetMemberParams{UserId: "bob", RoomId: rm.Id})
	require.NoError(t, err)
	assert.Equal(t, 12.0, bob.CurrentPosition)

	all, err := r.ListSyncEvents(ctx, &room.ListSyncEventsParams{RoomId: rm.Id})
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, ev := range all {
		assert.Equal(t, float64(10+i), ev.Position)
		assert.Equal(t, room.EventBuffer, ev.EventType)
	}

	since, err := r.ListSyncEvents(ctx, &room.ListSyncEventsParams{RoomId: rm.Id, Since: base})
	require.NoError(t, err)
	require.Len(t, since, 2)
	assert.Equal(t, 11.0, since[0].Position)

	limited, err := r.ListSyncEvents(ctx, &room.ListSyncEventsParams{RoomId: rm.Id, Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, 10.0, limited[0].Position)

	err = r.RecordBuffer(ctx, &room.RecordBufferParams{Event: room.SyncEvent{
		Id: uuid.NewString(), RoomId: uuid.NewString(), EventType: room.EventBuffer, Timestamp: now(),
	}})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func testDeleteRoom(t *testing.T, r room.Repo) {
	ctx := context.Background()
	rm := createRoom(t, r)

	require.NoError(t, r.CreateChatMessage(ctx, &room.ChatMessage{
		Id: uuid.NewString(), RoomId: rm.Id, UserId: rm.OwnerId, Username: "owner", Content: "hi", CreatedAt: now(),
	}))

	require.NoError(t, r.DeleteRoom(ctx, rm.Id))

	_, err := r.GetRoom(ctx, rm.Id)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)

	_, err = r.GetMember(ctx, &room.GetMemberParams{UserId: rm.OwnerId, RoomId: rm.Id})
	assert.ErrorIs(t, err, room.ErrMemberNotFound)

	assert.ErrorIs(t, r.DeleteRoom(ctx, rm.Id), room.ErrRoomNotFound)

	err = r.CreateChatMessage(ctx, &room.ChatMessage{Id: uuid.NewString(), RoomId: rm.Id, Content: "late", CreatedAt: now()})
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}
