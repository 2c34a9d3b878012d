package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/sharetube/watchparty/internal/repository/room"
)

const roomColumns = "id, owner_id, title, position, is_playing, media_id, media_title, media_type, version, last_sync_at, created_at"

func scanRoom(row scanner) (room.Room, error) {
	var rm room.Room
	err := row.Scan(
		&rm.Id,
		&rm.OwnerId,
		&rm.Title,
		&rm.Position,
		&rm.IsPlaying,
		&rm.MediaId,
		&rm.MediaTitle,
		&rm.MediaType,
		&rm.Version,
		&rm.LastSyncAt,
		&rm.CreatedAt,
	)

	return rm, err
}

func (r *repo) CreateRoom(ctx context.Context, params *room.CreateRoomParams) (room.Room, error) {
	var rm room.Room
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"INSERT INTO rooms (id, owner_id, title, last_sync_at, created_at) "+
				"VALUES ($1, $2, $3, $4, $4) RETURNING "+roomColumns,
			params.Id,
			params.OwnerId,
			params.Title,
			params.CreatedAt,
		)

		var err error
		if rm, err = scanRoom(row); err != nil {
			if pgCode(err) == pgUniqueViolation {
				return room.ErrRoomAlreadyExists
			}
			return fmt.Errorf("failed to insert room: %w", err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO members (user_id, room_id, username, can_control, can_invite, last_seen) "+
				"VALUES ($1, $2, $3, TRUE, TRUE, $4)",
			params.OwnerId,
			params.Id,
			params.OwnerName,
			params.CreatedAt,
		); err != nil {
			return fmt.Errorf("failed to insert owner: %w", err)
		}

		return nil
	})

	return rm, err
}

func (r *repo) GetRoom(ctx context.Context, roomId string) (room.Room, error) {
	row := r.db.QueryRowContext(ctx,
		"SELECT "+roomColumns+" FROM rooms WHERE id = $1",
		roomId,
	)

	rm, err := scanRoom(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return room.Room{}, room.ErrRoomNotFound
		}
		return room.Room{}, fmt.Errorf("failed to get room: %w", err)
	}

	return rm, nil
}

func (r *repo) DeleteRoom(ctx context.Context, roomId string) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM rooms WHERE id = $1", roomId)
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete room: %w", err)
	}

	if n == 0 {
		return room.ErrRoomNotFound
	}

	return nil
}

func (r *repo) ApplyControlEvent(ctx context.Context, params *room.ApplyControlEventParams) (room.Room, error) {
	var rm room.Room
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx,
			"UPDATE rooms SET position = $2, is_playing = $3, media_id = $4, media_title = $5, media_type = $6, "+
				"last_sync_at = $7, version = version + 1 "+
				"WHERE id = $1 AND version = $8 RETURNING "+roomColumns,
			params.RoomId,
			params.Position,
			params.IsPlaying,
			params.MediaId,
			params.MediaTitle,
			params.MediaType,
			params.Event.Timestamp,
			params.ExpectedVersion,
		)

		var err error
		if rm, err = scanRoom(row); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("failed to update room: %w", err)
			}

			var exists bool
			if err := tx.QueryRowContext(ctx, "SELECT EXISTS (SELECT 1 FROM rooms WHERE id = $1)", params.RoomId).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check room: %w", err)
			}
			if !exists {
				return room.ErrRoomNotFound
			}
			return room.ErrStaleVersion
		}

		return recordEvent(ctx, tx, &params.Event)
	})

	return rm, err
}

func (r *repo) RecordBuffer(ctx context.Context, params *room.RecordBufferParams) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		return recordEvent(ctx, tx, &params.Event)
	})
}

// recordEvent appends ev to the sync log and moves the actor's observed position.
func recordEvent(ctx context.Context, tx *sql.Tx, ev *room.SyncEvent) error {
	if _, err := tx.ExecContext(ctx,
		"INSERT INTO sync_events (id, room_id, event_type, position, user_id, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		ev.Id,
		ev.RoomId,
		string(ev.EventType),
		ev.Position,
		ev.UserId,
		ev.Timestamp,
	); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return room.ErrRoomNotFound
		}
		return fmt.Errorf("failed to insert sync event: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		"UPDATE members SET current_position = $3, last_seen = $4 WHERE user_id = $1 AND room_id = $2",
		ev.UserId,
		ev.RoomId,
		ev.Position,
		ev.Timestamp,
	); err != nil {
		return fmt.Errorf("failed to update member position: %w", err)
	}

	return nil
}

func (r *repo) ListSyncEvents(ctx context.Context, params *room.ListSyncEventsParams) ([]room.SyncEvent, error) {
	query := "SELECT id, room_id, event_type, position, user_id, created_at FROM sync_events " +
		"WHERE room_id = $1 AND created_at > $2 ORDER BY created_at, seq"
	args := []any{params.RoomId, params.Since}
	if params.Limit > 0 {
		query += " LIMIT $3"
		args = append(args, params.Limit)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync events: %w", err)
	}
	defer rows.Close()

	events := make([]room.SyncEvent, 0)
	for rows.Next() {
		var (
			ev        room.SyncEvent
			eventType string
		)
		if err := rows.Scan(
			&ev.Id,
			&ev.RoomId,
			&eventType,
			&ev.Position,
			&ev.UserId,
			&ev.Timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan sync event: %w", err)
		}
		ev.EventType = room.EventType(eventType)
		events = append(events, ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list sync events: %w", err)
	}

	return events, nil
}

func (r *repo) CreateChatMessage(ctx context.Context, msg *room.ChatMessage) error {
	if _, err := r.db.ExecContext(ctx,
		"INSERT INTO chat_messages (id, room_id, user_id, username, content, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, $6)",
		msg.Id,
		msg.RoomId,
		msg.UserId,
		msg.Username,
		msg.Content,
		msg.CreatedAt,
	); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return room.ErrRoomNotFound
		}
		return fmt.Errorf("failed to insert chat message: %w", err)
	}

	return nil
}
