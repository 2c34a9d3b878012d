package controller

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchparty/internal/identity"
	"github.com/sharetube/watchparty/internal/repository/connection/inmemory"
	"github.com/sharetube/watchparty/internal/repository/room/memory"
	"github.com/sharetube/watchparty/internal/service/room"
	"github.com/sharetube/watchparty/internal/stats"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type testServer struct {
	*httptest.Server
	c        *controller
	stats    *stats.Stats
	verifier *identity.Verifier
}

func newTestServer(t *testing.T, opts ...func(*controller)) *testServer {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	st := stats.New()
	svc := room.NewService(memory.NewRepo(), inmemory.NewRepo[room.Conn](), nil, st, logger, 100)
	verifier := identity.NewVerifier(testSecret)

	c := NewController(svc, verifier, st, logger, []string{"*"})
	for _, opt := range opts {
		opt(c)
	}

	srv := httptest.NewServer(c.GetMux())
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, c: c, stats: st, verifier: verifier}
}

func (s *testServer) token(t *testing.T, userId string) string {
	t.Helper()
	token, err := s.verifier.Issue(identity.Principal{UserID: userId, Name: strings.ToUpper(userId)}, time.Hour)
	require.NoError(t, err)

	return token
}

type restResponse struct {
	Data  json.RawMessage `json:"data"`
	Error struct {
		Message string `json:"message"`
		Code    string `json:"code"`
		Fields  []struct {
			Field string `json:"field"`
			Code  string `json:"code"`
		} `json:"fields"`
	} `json:"error"`
}

func (s *testServer) do(t *testing.T, method, path, userId string, body any) (int, restResponse) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, s.URL+path, reader)
	require.NoError(t, err)
	if userId != "" {
		req.Header.Set("Authorization", "Bearer "+s.token(t, userId))
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out restResponse
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(raw, &out))
	}

	return resp.StatusCode, out
}

// createRoom creates a room owned by owner and invites members with the given
// control flag.
func (s *testServer) createRoom(t *testing.T, owner string, canControl bool, members ...string) string {
	t.Helper()

	status, resp := s.do(t, http.MethodPost, "/api/v1/rooms", owner, map[string]any{"title": "movie night"})
	require.Equal(t, http.StatusCreated, status)

	var data struct {
		Room struct {
			Id string `json:"id"`
		} `json:"room"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))

	for _, m := range members {
		status, _ := s.do(t, http.MethodPost, "/api/v1/rooms/"+data.Room.Id+"/members", owner, map[string]any{
			"userId":     m,
			"canControl": canControl,
		})
		require.Equal(t, http.StatusOK, status)
	}

	return data.Room.Id
}

type wsClient struct {
	t    *testing.T
	conn *websocket.Conn
}

type wsMessage struct {
	Id      *int64          `json:"id"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

func (s *testServer) dial(t *testing.T, userId string) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(s.URL, "http") + "/api/v1/ws?token=" + s.token(t, userId)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return &wsClient{t: t, conn: conn}
}

func (c *wsClient) send(id int64, typ string, payload any) {
	c.t.Helper()

	msg := map[string]any{"type": typ, "payload": payload}
	if id != 0 {
		msg["id"] = id
	}
	require.NoError(c.t, c.conn.WriteJSON(msg))
}

func (c *wsClient) read() wsMessage {
	c.t.Helper()

	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg wsMessage
	require.NoError(c.t, c.conn.ReadJSON(&msg))

	return msg
}

// expect reads the next message and requires it to be of type typ.
func (c *wsClient) expect(typ string, payload any) wsMessage {
	c.t.Helper()

	msg := c.read()
	require.Equal(c.t, typ, msg.Type, "payload: %s", msg.Payload)
	if payload != nil {
		require.NoError(c.t, json.Unmarshal(msg.Payload, payload))
	}

	return msg
}

func (c *wsClient) join(roomId string) {
	c.t.Helper()
	c.send(1, "join-room", map[string]any{"roomId": roomId})
	c.expect("room-joined", nil)
}
