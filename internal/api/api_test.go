package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/roomchat/internal/api/apierr"
	"github.com/mcoot/roomchat/internal/api/response"
	"github.com/mcoot/roomchat/internal/factory"
)

// testServer wraps the ops router over a test application
type testServer struct {
	handler http.Handler
	app     *factory.TestApp
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	app := factory.NewTestApp(nil)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = app.Server.Shutdown(ctx)
	})

	return &testServer{
		handler: app.Router(),
		app:     app,
	}
}

func (ts *testServer) request(method, path string, body any, token string) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if body != nil {
		b, _ := json.Marshal(body)
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, reqBody)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rr := httptest.NewRecorder()
	ts.handler.ServeHTTP(rr, req)
	return rr
}

func TestHealthCheck(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/health", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NotEmpty(t, rr.Header().Get("X-Request-ID"))

	var resp response.Health
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 1, resp.Rooms)
}

func TestListRooms(t *testing.T) {
	ts := newTestServer(t)
	_, err := ts.app.Server.CreateRoom("alpha")
	require.NoError(t, err)

	rr := ts.request(http.MethodGet, "/api/v1/rooms", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.RoomList
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Len(t, resp.Rooms, 2)
	assert.Equal(t, "alpha", resp.Rooms[0].Name)
	assert.Equal(t, "general", resp.Rooms[1].Name)
}

func TestGetRoom(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/rooms/general", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)

	var resp response.Room
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, "general", resp.Name)
	assert.False(t, resp.IsAI)
	assert.Equal(t, 0, resp.MemberCount)
}

func TestGetRoomNotFound(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/api/v1/rooms/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, rr.Code)

	var resp apierr.ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, apierr.CodeRoomNotFound, resp.Error.Code)
}

func TestCreateRoomRequiresAdminToken(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]string{"name": "ops"}, "")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/rooms", map[string]string{"name": "ops"}, "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestCreateRoom(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]string{"name": "ops"}, "admin-token")
	assert.Equal(t, http.StatusCreated, rr.Code)

	_, err := ts.app.Server.GetRoom("ops")
	assert.NoError(t, err)

	rr = ts.request(http.MethodPost, "/api/v1/rooms", map[string]string{"name": "ops"}, "admin-token")
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestCreateRoomValidation(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodPost, "/api/v1/rooms", map[string]string{"name": "two words"}, "admin-token")
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = ts.request(http.MethodPost, "/api/v1/rooms", map[string]string{"name": ""}, "admin-token")
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestCreateAIRoomUnavailable(t *testing.T) {
	ts := newTestServer(t)

	body := map[string]string{"name": "bots", "prompt": "be helpful"}
	rr := ts.request(http.MethodPost, "/api/v1/rooms", body, "admin-token")
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestMetrics(t *testing.T) {
	ts := newTestServer(t)

	rr := ts.request(http.MethodGet, "/metrics", nil, "")
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "roomchat_rooms 1")
}

func TestWebSocketChat(t *testing.T) {
	ts := newTestServer(t)
	srv := httptest.NewServer(ts.handler)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer ws.Close()

	read := func() string {
		t.Helper()
		require.NoError(t, ws.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		return string(data)
	}
	send := func(line string) {
		t.Helper()
		require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte(line)))
	}

	assert.True(t, strings.HasPrefix(read(), "Welcome to the chat server!"))
	send("/login alice secret")
	assert.True(t, strings.HasPrefix(read(), "AUTH_OK: Welcome, alice!"))
	assert.Equal(t, "Type /help to see available commands", read())

	send("/join general")
	assert.Equal(t, "You joined room: general", read())

	rr := ts.request(http.MethodGet, "/api/v1/rooms/general", nil, "")
	var resp response.Room
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, []string{"alice"}, resp.Members)

	send("/exit")
	assert.Equal(t, "Goodbye!", read())
}
