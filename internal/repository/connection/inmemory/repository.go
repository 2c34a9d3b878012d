package inmemory

import (
	"log/slog"
	"sync"

	"github.com/sharetube/watchparty/internal/repository/connection"
	"golang.org/x/exp/maps"
)

type AddResult struct {
	// FirstForUser is set when no other connection of the same user was in the room.
	FirstForUser bool
	FirstInRoom  bool
}

type RemoveResult struct {
	RoomId      string
	LastForUser bool
	LastInRoom  bool
}

// repo is the in-memory half of the membership registry: which live connection
// sits in which room. A connection is registered to at most one room.
type repo[C connection.Conn] struct {
	rooms    map[string]map[string]C
	connRoom map[string]string
	mu       sync.RWMutex
}

func NewRepo[C connection.Conn]() *repo[C] {
	return &repo[C]{
		rooms:    make(map[string]map[string]C),
		connRoom: make(map[string]string),
	}
}

func (r *repo[C]) Add(roomId string, conn C) (AddResult, error) {
	funcName := "connection.inmemory.Add"
	r.mu.Lock()
	defer r.mu.Unlock()

	slog.Debug(funcName, "conn_id", conn.Id(), "room_id", roomId)
	if _, ok := r.connRoom[conn.Id()]; ok {
		slog.Debug(funcName, "error", connection.ErrAlreadyExists)
		return AddResult{}, connection.ErrAlreadyExists
	}

	conns, ok := r.rooms[roomId]
	if !ok {
		conns = make(map[string]C)
		r.rooms[roomId] = conns
	}

	res := AddResult{
		FirstForUser: !r.hasUser(conns, conn.UserId()),
		FirstInRoom:  len(conns) == 0,
	}
	conns[conn.Id()] = conn
	r.connRoom[conn.Id()] = roomId

	return res, nil
}

func (r *repo[C]) Remove(conn C) (RemoveResult, error) {
	funcName := "connection.inmemory.Remove"
	r.mu.Lock()
	defer r.mu.Unlock()

	roomId, ok := r.connRoom[conn.Id()]
	if !ok {
		slog.Debug(funcName, "conn_id", conn.Id(), "error", connection.ErrNotFound)
		return RemoveResult{}, connection.ErrNotFound
	}

	conns := r.rooms[roomId]
	delete(conns, conn.Id())
	delete(r.connRoom, conn.Id())
	if len(conns) == 0 {
		delete(r.rooms, roomId)
	}

	slog.Debug(funcName, "conn_id", conn.Id(), "room_id", roomId)
	return RemoveResult{
		RoomId:      roomId,
		LastForUser: !r.hasUser(conns, conn.UserId()),
		LastInRoom:  len(conns) == 0,
	}, nil
}

func (r *repo[C]) hasUser(conns map[string]C, userId string) bool {
	for _, c := range conns {
		if c.UserId() == userId {
			return true
		}
	}

	return false
}

// RoomOf returns the room the connection is registered to.
func (r *repo[C]) RoomOf(connId string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	roomId, ok := r.connRoom[connId]
	return roomId, ok
}

// Conns returns a snapshot of the room's connections, safe to use after the
// registry changes.
func (r *repo[C]) Conns(roomId string) []C {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return maps.Values(r.rooms[roomId])
}

// RemoveRoom detaches every connection of the room and returns them.
func (r *repo[C]) RemoveRoom(roomId string) []C {
	r.mu.Lock()
	defer r.mu.Unlock()

	conns := maps.Values(r.rooms[roomId])
	for _, c := range conns {
		delete(r.connRoom, c.Id())
	}
	delete(r.rooms, roomId)

	return conns
}

func (r *repo[C]) RoomCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.rooms)
}
