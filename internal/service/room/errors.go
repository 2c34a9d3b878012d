package room

import (
	"errors"
	"fmt"

	roomrepo "github.com/sharetube/watchparty/internal/repository/room"
)

var (
	ErrUnauthorized     = errors.New("unauthorized")
	ErrPermissionDenied = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrValidation       = errors.New("validation error")
	ErrStorageFailure   = errors.New("storage failure")
	// ErrTransientNetwork marks a failed delivery to a single peer. It is
	// logged, never returned to the actor, and never rolls back a commit.
	ErrTransientNetwork = errors.New("transient network failure")

	ErrRoomNotFound   = fmt.Errorf("room %w", ErrNotFound)
	ErrMemberNotFound = fmt.Errorf("member %w", ErrNotFound)
	// ErrNotJoined is returned for room-scoped events from a connection that is
	// not currently joined to a room.
	ErrNotJoined = fmt.Errorf("connection has not joined a room: %w", ErrNotFound)
)

// storageErr maps store errors onto the service taxonomy. Unknown errors keep
// both ErrStorageFailure and the driver error in the chain.
func storageErr(op string, err error) error {
	switch {
	case errors.Is(err, roomrepo.ErrRoomNotFound):
		return ErrRoomNotFound
	case errors.Is(err, roomrepo.ErrMemberNotFound):
		return ErrMemberNotFound
	}

	return fmt.Errorf("failed to %s: %w: %w", op, ErrStorageFailure, err)
}
