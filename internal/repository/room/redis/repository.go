package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/repository/room"
)

// repo fronts a room.Repo with a read-through cache of each room's active
// member list. Every other call goes straight to the wrapped store, which stays
// the system of record. Member positions in a cached list may lag by up to ttl.
// A failed invalidation never fails the write; the stale entry expires with ttl.
type repo struct {
	room.Repo
	rc     *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewRepo(store room.Repo, rc *redis.Client, ttl time.Duration, logger *slog.Logger) *repo {
	return &repo{
		Repo:   store,
		rc:     rc,
		ttl:    ttl,
		logger: logger,
	}
}

func (r *repo) getMemberListKey(roomId string) string {
	return "room:" + roomId + ":members"
}

func (r *repo) ListActiveMembers(ctx context.Context, roomId string) ([]room.Member, error) {
	key := r.getMemberListKey(roomId)

	data, err := r.rc.Get(ctx, key).Bytes()
	if err == nil {
		var members []room.Member
		if err := json.Unmarshal(data, &members); err == nil {
			return members, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		// cache outage falls through to the store
		return r.Repo.ListActiveMembers(ctx, roomId)
	}

	members, err := r.Repo.ListActiveMembers(ctx, roomId)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(members); err == nil {
		r.rc.Set(ctx, key, data, r.ttl)
	}

	return members, nil
}

func (r *repo) invalidate(ctx context.Context, roomId string) {
	if err := r.rc.Del(ctx, r.getMemberListKey(roomId)).Err(); err != nil {
		r.logger.WarnContext(ctx, "failed to invalidate member list", "room_id", roomId, "error", err)
	}
}

func (r *repo) UpsertMember(ctx context.Context, params *room.UpsertMemberParams) (room.Member, error) {
	m, err := r.Repo.UpsertMember(ctx, params)
	if err != nil {
		return room.Member{}, err
	}

	r.invalidate(ctx, params.RoomId)

	return m, nil
}

func (r *repo) SetMemberActive(ctx context.Context, params *room.SetMemberActiveParams) (room.Member, error) {
	m, err := r.Repo.SetMemberActive(ctx, params)
	if err != nil {
		return room.Member{}, err
	}

	r.invalidate(ctx, params.RoomId)

	return m, nil
}

func (r *repo) DeleteRoom(ctx context.Context, roomId string) error {
	if err := r.Repo.DeleteRoom(ctx, roomId); err != nil {
		return err
	}

	r.invalidate(ctx, roomId)

	return nil
}

func (r *repo) Ping(ctx context.Context) error {
	if err := r.Repo.Ping(ctx); err != nil {
		return err
	}

	if err := r.rc.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to ping redis: %w", err)
	}

	return nil
}
