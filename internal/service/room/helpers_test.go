package room

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/sharetube/watchparty/internal/identity"
	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	roomrepo "github.com/sharetube/watchparty/internal/repository/room"
	"github.com/sharetube/watchparty/internal/repository/room/memory"
	"github.com/sharetube/watchparty/internal/stats"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	id     string
	userId string
	name   string

	mu   sync.Mutex
	out  []*protocol.Output
	full bool
}

func newConn(id, userId string) *fakeConn {
	return &fakeConn{id: id, userId: userId, name: userId}
}

func (c *fakeConn) Id() string       { return c.id }
func (c *fakeConn) UserId() string   { return c.userId }
func (c *fakeConn) Username() string { return c.name }

func (c *fakeConn) Send(out *protocol.Output) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.full {
		return false
	}
	c.out = append(c.out, out)

	return true
}

func (c *fakeConn) messages() []*protocol.Output {
	c.mu.Lock()
	defer c.mu.Unlock()

	return append([]*protocol.Output(nil), c.out...)
}

func (c *fakeConn) types() []protocol.Type {
	msgs := c.messages()
	types := make([]protocol.Type, 0, len(msgs))
	for _, m := range msgs {
		types = append(types, m.Type)
	}

	return types
}

func (c *fakeConn) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = nil
}

type fakePublisher struct {
	mu  sync.Mutex
	got []*protocol.Output
}

func (p *fakePublisher) Publish(_ context.Context, _ string, out *protocol.Output) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.got = append(p.got, out)

	return nil
}

func (p *fakePublisher) published() []*protocol.Output {
	p.mu.Lock()
	defer p.mu.Unlock()

	return append([]*protocol.Output(nil), p.got...)
}

type testEnv struct {
	svc       *service
	repo      roomrepo.Repo
	stats     *stats.Stats
	publisher *fakePublisher
}

func newEnv(t *testing.T) *testEnv {
	return newEnvWithRepo(t, memory.NewRepo())
}

func newEnvWithRepo(t *testing.T, repo roomrepo.Repo) *testEnv {
	t.Helper()

	st := stats.New()
	pub := &fakePublisher{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	return &testEnv{
		svc:       NewService(repo, inmemory.NewRepo[Conn](), pub, st, logger, 100),
		repo:      repo,
		stats:     st,
		publisher: pub,
	}
}

// newRoom creates a room owned by owner and invites the given members. Users in
// controllers get canControl.
func (e *testEnv) newRoom(t *testing.T, owner string, members []string, controllers ...string) string {
	t.Helper()
	ctx := context.Background()

	res, err := e.svc.CreateRoom(ctx, &CreateRoomParams{Principal: identity.Principal{UserID: owner, Name: owner}})
	require.NoError(t, err)

	canControl := make(map[string]bool)
	for _, c := range controllers {
		canControl[c] = true
	}

	for _, m := range members {
		_, err := e.svc.InviteMember(ctx, &InviteMemberParams{
			Principal:  identity.Principal{UserID: owner},
			RoomId:     res.Room.Id,
			UserId:     m,
			CanControl: canControl[m],
		})
		require.NoError(t, err)
	}

	return res.Room.Id
}

func (e *testEnv) join(t *testing.T, conn *fakeConn, roomId string) JoinResponse {
	t.Helper()
	res, err := e.svc.Join(context.Background(), conn, roomId)
	require.NoError(t, err)

	return res
}

func (e *testEnv) room(t *testing.T, roomId string) roomrepo.Room {
	t.Helper()
	rm, err := e.repo.GetRoom(context.Background(), roomId)
	require.NoError(t, err)

	return rm
}

func pos(f float64) *float64 { return &f }

func principal(userId string) identity.Principal {
	return identity.Principal{UserID: userId, Name: userId}
}
