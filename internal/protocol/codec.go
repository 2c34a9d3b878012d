package protocol

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/sharetube/watchparty/pkg/validator"
)

var ErrInvalidMessage = errors.New("invalid message")

type FieldError = validator.ValidationError

// ValidationError describes why an inbound message was rejected. It unwraps to
// ErrInvalidMessage.
type ValidationError struct {
	Message string
	Fields  []FieldError
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}

	msgs := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		msgs = append(msgs, f.Message)
	}

	return fmt.Sprintf("%s: %s", e.Message, strings.Join(msgs, "; "))
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidMessage
}

type Request struct {
	Id    *int64
	Event Event
}

var constructors = map[Type]func() Event{
	TypeJoinRoom:    func() Event { return &JoinRoom{} },
	TypeLeaveRoom:   func() Event { return &LeaveRoom{} },
	TypePlay:        func() Event { return &Play{} },
	TypePause:       func() Event { return &Pause{} },
	TypeSeek:        func() Event { return &Seek{} },
	TypeMediaChange: func() Event { return &MediaChange{} },
	TypeBuffer:      func() Event { return &Buffer{} },
	TypeChatMessage: func() Event { return &ChatMessage{} },
	TypeSyncRequest: func() Event { return &SyncRequest{} },
}

type Decoder struct {
	validate *validator.Validator
}

func NewDecoder() *Decoder {
	return &Decoder{validate: validator.NewValidator()}
}

// Decode parses and validates one client message. When the envelope itself
// parsed, the returned Request carries its id even if the payload was rejected,
// so the error reply can be correlated.
func (d *Decoder) Decode(data []byte) (Request, error) {
	var input Input
	if err := json.Unmarshal(data, &input); err != nil {
		return Request{}, &ValidationError{Message: "malformed message"}
	}

	req := Request{Id: input.Id}

	newEvent, ok := constructors[input.Type]
	if !ok {
		return req, &ValidationError{
			Message: "unknown message type",
			Fields: []FieldError{{
				Field:   "type",
				Code:    "UNKNOWN",
				Message: fmt.Sprintf("type %q is not supported", input.Type),
			}},
		}
	}

	ev := newEvent()
	payload := bytes.TrimSpace(input.Payload)
	if len(payload) == 0 || bytes.Equal(payload, []byte("null")) {
		payload = []byte("{}")
	}

	if err := json.Unmarshal(payload, ev); err != nil {
		return req, &ValidationError{Message: fmt.Sprintf("malformed %s payload", input.Type)}
	}

	if fields, ok := d.validate.Validate(ev); !ok {
		return req, &ValidationError{
			Message: fmt.Sprintf("invalid %s payload", input.Type),
			Fields:  fields,
		}
	}

	req.Event = ev
	return req, nil
}

// Dispatch routes ev to the Handler method for its variant.
func Dispatch(ctx context.Context, ev Event, h Handler) error {
	return ev.accept(ctx, h)
}
