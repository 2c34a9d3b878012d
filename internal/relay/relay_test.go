package relay

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/sharetube/watchparty/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type delivery struct {
	roomId string
	out    *protocol.Output
}

type recorder struct {
	mu  sync.Mutex
	got []delivery
}

func (r *recorder) DeliverRemote(_ context.Context, roomId string, out *protocol.Output) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, delivery{roomId, out})
}

func (r *recorder) deliveries() []delivery {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]delivery(nil), r.got...)
}

func startRelay(t *testing.T, ctx context.Context, addr string) (*Relay, *recorder) {
	rc := redis.NewClient(&redis.Options{Addr: addr})
	t.Cleanup(func() { rc.Close() })

	rl := New(rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	rec := &recorder{}
	go rl.Run(ctx, rec)

	select {
	case <-rl.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("relay did not subscribe")
	}

	return rl, rec
}

func TestRelay_CrossInstance(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, recA := startRelay(t, ctx, mr.Addr())
	_, recB := startRelay(t, ctx, mr.Addr())

	pos := 42.0
	out := (&protocol.Play{Position: &pos}).Broadcast("u1", time.UnixMilli(1000))
	require.NoError(t, a.Publish(ctx, "r1", out))

	require.Eventually(t, func() bool { return len(recB.deliveries()) == 1 }, 2*time.Second, 10*time.Millisecond)

	got := recB.deliveries()[0]
	assert.Equal(t, "r1", got.roomId)
	assert.Equal(t, protocol.TypePlay, got.out.Type)

	data, err := json.Marshal(got.out)
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"play","payload":{"position":42,"timestamp":1000,"userId":"u1"}}`, string(data))

	// origin skips its own envelope
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, recA.deliveries())
}

func TestRelay_IgnoresGarbage(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, _ := startRelay(t, ctx, mr.Addr())
	_, recB := startRelay(t, ctx, mr.Addr())

	mr.Publish(channelPrefix+"r1", "not json")
	require.NoError(t, a.Publish(ctx, "r2", protocol.UserLeft("u1")))

	require.Eventually(t, func() bool { return len(recB.deliveries()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "r2", recB.deliveries()[0].roomId)
}

func TestRelay_RunStopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rc.Close()

	rl := New(rc, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- rl.Run(ctx, &recorder{}) }()
	<-rl.Ready()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return")
	}
}
