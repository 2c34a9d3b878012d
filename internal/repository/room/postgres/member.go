package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sharetube/watchparty/internal/repository/room"
)

const memberColumns = "user_id, room_id, username, can_control, can_invite, is_active, last_seen, current_position"

func scanMember(row scanner) (room.Member, error) {
	var m room.Member
	err := row.Scan(
		&m.UserId,
		&m.RoomId,
		&m.Username,
		&m.CanControl,
		&m.CanInvite,
		&m.IsActive,
		&m.LastSeen,
		&m.CurrentPosition,
	)

	return m, err
}

func (r *repo) GetMember(ctx context.Context, params *room.GetMemberParams) (room.Member, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE user_id = $1 AND room_id = $2",
		params.UserId,
		params.RoomId,
	)

	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return room.Member{}, room.ErrMemberNotFound
		}
		return room.Member{}, fmt.Errorf("failed to get member: %w", err)
	}

	return m, nil
}

func (r *repo) UpsertMember(ctx context.Context, params *room.UpsertMemberParams) (room.Member, error) {
	row := r.db.QueryRowContext(ctx,
		"INSERT INTO members (user_id, room_id, username, can_control, can_invite, last_seen) "+
			"VALUES ($1, $2, $3, $4, $5, $6) "+
			"ON CONFLICT (user_id, room_id) DO UPDATE SET "+
			"username = COALESCE(NULLIF(EXCLUDED.username, ''), members.username), "+
			"can_control = EXCLUDED.can_control, can_invite = EXCLUDED.can_invite "+
			"RETURNING "+memberColumns,
		params.UserId,
		params.RoomId,
		params.Username,
		params.CanControl,
		params.CanInvite,
		params.LastSeen,
	)

	m, err := scanMember(row)
	if err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return room.Member{}, room.ErrRoomNotFound
		}
		return room.Member{}, fmt.Errorf("failed to upsert member: %w", err)
	}

	return m, nil
}

func (r *repo) SetMemberActive(ctx context.Context, params *room.SetMemberActiveParams) (room.Member, error) {
	row := r.db.QueryRowContext(ctx,
		"UPDATE members SET is_active = $3, last_seen = $4, "+
			"username = COALESCE(NULLIF($5, ''), username) "+
			"WHERE user_id = $1 AND room_id = $2 RETURNING "+memberColumns,
		params.UserId,
		params.RoomId,
		params.IsActive,
		params.LastSeen,
		params.Username,
	)

	m, err := scanMember(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return room.Member{}, room.ErrMemberNotFound
		}
		return room.Member{}, fmt.Errorf("failed to set member active: %w", err)
	}

	return m, nil
}

func (r *repo) ListActiveMembers(ctx context.Context, roomId string) ([]room.Member, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+memberColumns+" FROM members WHERE room_id = $1 AND is_active ORDER BY user_id",
		roomId,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := make([]room.Member, 0)
	for rows.Next() {
		m, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}

	return members, nil
}
