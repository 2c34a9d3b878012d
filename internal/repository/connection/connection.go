package connection

import "errors"

var (
	ErrAlreadyExists = errors.New("connection already registered")
	ErrNotFound      = errors.New("connection not found")
)

type Conn interface {
	Id() string
	UserId() string
}
