package redis

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/internal/repository/room/memory"
	"github.com/sharetube/watchparty/internal/repository/room/roomtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRepo struct {
	room.Repo
	listCalls int
}

func (c *countingRepo) ListActiveMembers(ctx context.Context, roomId string) ([]room.Member, error) {
	c.listCalls++
	return c.Repo.ListActiveMembers(ctx, roomId)
}

func setup(t *testing.T) (*repo, *countingRepo, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	inner := &countingRepo{Repo: memory.NewRepo()}

	return NewRepo(inner, rc, 30*time.Second, slog.New(slog.NewTextHandler(io.Discard, nil))), inner, mr
}

func TestRepo_Suite(t *testing.T) {
	roomtest.RunRepoSuite(t, func(t *testing.T) room.Repo {
		r, _, _ := setup(t)
		return r
	})
}

func seedRoom(t *testing.T, r *repo) string {
	t.Helper()
	ctx := context.Background()

	rm, err := r.CreateRoom(ctx, &room.CreateRoomParams{Id: "r1", OwnerId: "alice", OwnerName: "alice", CreatedAt: time.Now()})
	require.NoError(t, err)
	_, err = r.SetMemberActive(ctx, &room.SetMemberActiveParams{UserId: "alice", RoomId: rm.Id, IsActive: true, LastSeen: time.Now()})
	require.NoError(t, err)

	return rm.Id
}

func TestListActiveMembers_ReadThrough(t *testing.T) {
	ctx := context.Background()
	r, inner, mr := setup(t)
	roomId := seedRoom(t, r)

	first, err := r.ListActiveMembers(ctx, roomId)
	require.NoError(t, err)
	require.Len(t, first, 1)
	assert.True(t, mr.Exists("room:r1:members"))

	second, err := r.ListActiveMembers(ctx, roomId)
	require.NoError(t, err)
	assert.Equal(t, first[0].UserId, second[0].UserId)
	assert.Equal(t, 1, inner.listCalls, "second read is served from cache")

	ttl := mr.TTL("room:r1:members")
	assert.Equal(t, 30*time.Second, ttl)
}

func TestListActiveMembers_InvalidatedOnMembershipChange(t *testing.T) {
	ctx := context.Background()
	r, inner, mr := setup(t)
	roomId := seedRoom(t, r)

	_, err := r.ListActiveMembers(ctx, roomId)
	require.NoError(t, err)

	_, err = r.UpsertMember(ctx, &room.UpsertMemberParams{UserId: "bob", RoomId: roomId})
	require.NoError(t, err)
	assert.False(t, mr.Exists("room:r1:members"))

	_, err = r.SetMemberActive(ctx, &room.SetMemberActiveParams{UserId: "bob", RoomId: roomId, IsActive: true, LastSeen: time.Now()})
	require.NoError(t, err)

	members, err := r.ListActiveMembers(ctx, roomId)
	require.NoError(t, err)
	assert.Len(t, members, 2)
	assert.Equal(t, 2, inner.listCalls)
}

func TestListActiveMembers_FallsBackWhenCacheDown(t *testing.T) {
	ctx := context.Background()
	r, inner, mr := setup(t)
	roomId := seedRoom(t, r)
	mr.Close()

	members, err := r.ListActiveMembers(ctx, roomId)
	require.NoError(t, err)
	assert.Len(t, members, 1)
	assert.Equal(t, 1, inner.listCalls)

	assert.Error(t, r.Ping(ctx))
}

func TestMemberWrites_SucceedWhenCacheDown(t *testing.T) {
	ctx := context.Background()
	r, inner, mr := setup(t)
	roomId := seedRoom(t, r)
	mr.Close()

	bob, err := r.UpsertMember(ctx, &room.UpsertMemberParams{UserId: "bob", RoomId: roomId, LastSeen: time.Now()})
	require.NoError(t, err)
	assert.Equal(t, "bob", bob.UserId)

	bob, err = r.SetMemberActive(ctx, &room.SetMemberActiveParams{UserId: "bob", RoomId: roomId, IsActive: true, LastSeen: time.Now()})
	require.NoError(t, err)
	assert.True(t, bob.IsActive)

	stored, err := inner.Repo.GetMember(ctx, &room.GetMemberParams{UserId: "bob", RoomId: roomId})
	require.NoError(t, err)
	assert.True(t, stored.IsActive)

	require.NoError(t, r.DeleteRoom(ctx, roomId))
	_, err = inner.Repo.GetRoom(ctx, roomId)
	assert.ErrorIs(t, err, room.ErrRoomNotFound)
}

func TestDeleteRoom_Invalidates(t *testing.T) {
	ctx := context.Background()
	r, _, mr := setup(t)
	roomId := seedRoom(t, r)

	_, err := r.ListActiveMembers(ctx, roomId)
	require.NoError(t, err)

	require.NoError(t, r.DeleteRoom(ctx, roomId))
	assert.False(t, mr.Exists("room:r1:members"))

	members, err := r.ListActiveMembers(ctx, roomId)
	require.NoError(t, err)
	assert.Empty(t, members)
}
