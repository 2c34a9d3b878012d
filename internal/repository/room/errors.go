package room

import "errors"

var (
	ErrRoomNotFound      = errors.New("room not found")
	ErrRoomAlreadyExists = errors.New("room already exists")
	ErrMemberNotFound    = errors.New("member not found")
	// ErrStaleVersion is returned when a room write was based on a version that
	// is no longer current.
	ErrStaleVersion = errors.New("stale room version")
)
