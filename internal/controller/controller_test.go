package controller

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sharetube/watchsync/internal/domain"
	"github.com/sharetube/watchsync/internal/service/room"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const readTimeout = 2 * time.Second

type fakeRoomService struct {
	mu          sync.Mutex
	rooms       map[string]*domain.Room
	definitions []string
	readOnly    bool
	put         []room.PutDefinitionParams
}

func (s *fakeRoomService) FindRoom(ctx context.Context, name string) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.rooms[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", room.ErrRoomNotFound, name)
	}

	return r, nil
}

func (s *fakeRoomService) ListRooms() []room.RoomSummary {
	s.mu.Lock()
	defer s.mu.Unlock()

	summaries := make([]room.RoomSummary, 0, len(s.rooms))
	for name, r := range s.rooms {
		summaries = append(summaries, room.RoomSummary{Name: name, URL: r.URL(), Watchers: r.WatchersCount()})
	}

	return summaries
}

func (s *fakeRoomService) ListDefinitions(context.Context) ([]string, error) {
	return s.definitions, nil
}

func (s *fakeRoomService) PutDefinition(ctx context.Context, params *room.PutDefinitionParams) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.readOnly {
		return room.ErrReadOnlyDefinitions
	}
	s.put = append(s.put, *params)

	return nil
}

func newTestServer(t *testing.T) (*fakeRoomService, *httptest.Server) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	r := domain.NewRoom(&domain.RoomConfig{Name: "foo", URL: "https://example.com/foo.mp4"})
	go r.Run(ctx)

	rooms := &fakeRoomService{
		rooms:       map[string]*domain.Room{"foo": r},
		definitions: []string{"bar", "foo"},
	}

	srv := httptest.NewServer(NewController(rooms, &Config{}, slog.Default()).Mux())
	t.Cleanup(srv.Close)

	return rooms, srv
}

func wsURL(srv *httptest.Server, roomName, name string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/" + roomName + "/" + name + "/"
}

func dial(t *testing.T, srv *httptest.Server, name string) *websocket.Conn {
	t.Helper()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "foo", name), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (domain.MessageType, json.RawMessage) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	frameType, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Equal(t, websocket.TextMessage, frameType)

	var msg struct {
		Type    domain.MessageType `json:"type"`
		Payload json.RawMessage    `json:"payload"`
	}
	require.NoError(t, json.Unmarshal(data, &msg))

	return msg.Type, msg.Payload
}

func readID(t *testing.T, conn *websocket.Conn) uint32 {
	t.Helper()

	msgType, payload := readMessage(t, conn)
	require.Equal(t, domain.TypeID, msgType)

	var identity domain.Identity
	require.NoError(t, json.Unmarshal(payload, &identity))

	return identity.ID
}

func readMetadata(t *testing.T, conn *websocket.Conn) domain.Snapshot {
	t.Helper()

	msgType, payload := readMessage(t, conn)
	require.Equal(t, domain.TypeMetadata, msgType)

	var snapshot domain.Snapshot
	require.NoError(t, json.Unmarshal(payload, &snapshot))

	return snapshot
}

func watcherIDs(s domain.Snapshot) []uint32 {
	ids := make([]uint32, 0, len(s.Watchers))
	for _, w := range s.Watchers {
		ids = append(ids, w.ID)
	}

	return ids
}

func writeText(t *testing.T, conn *websocket.Conn, text string) {
	t.Helper()

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(text)))
}

func expectClose(t *testing.T, conn *websocket.Conn, code int) {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	for {
		_, _, err := conn.ReadMessage()
		if err != nil {
			assert.True(t, websocket.IsCloseError(err, code), "unexpected error: %v", err)
			return
		}
	}
}

// connect dials as name and consumes the id and the first metadata.
func connect(t *testing.T, srv *httptest.Server, name string) (*websocket.Conn, uint32) {
	t.Helper()

	conn := dial(t, srv, name)
	id := readID(t, conn)
	readMetadata(t, conn)

	return conn, id
}

func TestController_Scenario(t *testing.T) {
	_, srv := newTestServer(t)

	alice := dial(t, srv, "Alice")
	assert.Equal(t, uint32(1), readID(t, alice))

	snapshot := readMetadata(t, alice)
	assert.Equal(t, "foo", snapshot.Name)
	assert.Equal(t, "https://example.com/foo.mp4", snapshot.URL)
	require.Len(t, snapshot.Watchers, 1)
	assert.Equal(t, "Alice", snapshot.Watchers[0].Name)
	assert.Equal(t, domain.Paused, snapshot.Watchers[0].PlaybackState)

	bob := dial(t, srv, "Bob")
	assert.Equal(t, uint32(2), readID(t, bob))
	assert.Equal(t, []uint32{1, 2}, watcherIDs(readMetadata(t, bob)))
	assert.Equal(t, []uint32{1, 2}, watcherIDs(readMetadata(t, alice)))

	// the id a client claims is replaced with its own
	writeText(t, alice, `{"type":"play","payload":{"id":99,"requestId":5,"time":12.3}}`)

	for _, conn := range []*websocket.Conn{alice, bob} {
		msgType, payload := readMessage(t, conn)
		assert.Equal(t, domain.TypePlay, msgType)
		assert.JSONEq(t, `{"id":1,"requestId":5,"time":12.3}`, string(payload))
	}

	require.NoError(t, bob.Close())
	assert.Equal(t, []uint32{1}, watcherIDs(readMetadata(t, alice)))
}

func TestController_UnknownRoom(t *testing.T) {
	_, srv := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "nope", "Alice"), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestController_InvalidName(t *testing.T) {
	_, srv := newTestServer(t)

	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "foo", strings.Repeat("a", 129)), nil)
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestController_NameIsUnescaped(t *testing.T) {
	_, srv := newTestServer(t)

	conn := dial(t, srv, "Alice%20Smith")
	readID(t, conn)

	snapshot := readMetadata(t, conn)
	require.Len(t, snapshot.Watchers, 1)
	assert.Equal(t, "Alice Smith", snapshot.Watchers[0].Name)
}

func TestController_ProtocolErrors(t *testing.T) {
	tests := []struct {
		name    string
		message string
	}{
		{name: "malformed json", message: `{"type":`},
		{name: "unknown type", message: `{"type":"rewind","payload":{}}`},
		{name: "join from client", message: `{"type":"join","payload":{"name":"x"}}`},
		{name: "leave from client", message: `{"type":"leave","payload":{"id":1}}`},
		{name: "missing request id", message: `{"type":"seek","payload":{"time":3}}`},
		{name: "bad playback state", message: `{"type":"status","payload":{"position":1,"buffered":1,"playbackState":"stopped"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, srv := newTestServer(t)

			alice, _ := connect(t, srv, "Alice")
			bob, _ := connect(t, srv, "Bob")
			readMetadata(t, alice)

			writeText(t, bob, tt.message)
			expectClose(t, bob, websocket.CloseProtocolError)

			// the other watcher only sees bob leave
			assert.Equal(t, []uint32{1}, watcherIDs(readMetadata(t, alice)))

			writeText(t, alice, `{"type":"pause","payload":{"requestId":2,"time":1}}`)
			msgType, _ := readMessage(t, alice)
			assert.Equal(t, domain.TypePause, msgType)
		})
	}
}

func TestController_NegativeValuesAreRelayed(t *testing.T) {
	_, srv := newTestServer(t)

	alice, id := connect(t, srv, "Alice")

	writeText(t, alice, `{"type":"seek","payload":{"requestId":1,"time":-0.25}}`)

	msgType, payload := readMessage(t, alice)
	assert.Equal(t, domain.TypeSeek, msgType)
	assert.JSONEq(t, fmt.Sprintf(`{"id":%d,"requestId":1,"time":-0.25}`, id), string(payload))

	writeText(t, alice, `{"type":"status","payload":{"position":-1,"buffered":-2,"playbackState":"paused"}}`)

	snapshot := readMetadata(t, alice)
	require.Len(t, snapshot.Watchers, 1)
	assert.Equal(t, -1.0, snapshot.Watchers[0].Position)
	assert.Equal(t, -2.0, snapshot.Watchers[0].Buffered)
}

func TestController_RemovedWatcherIsDisconnected(t *testing.T) {
	rooms, srv := newTestServer(t)

	alice, _ := connect(t, srv, "Alice")
	bob, bobID := connect(t, srv, "Bob")
	readMetadata(t, alice)

	r, err := rooms.FindRoom(context.Background(), "foo")
	require.NoError(t, err)
	require.NoError(t, r.RemoveWatcher(context.Background(), bobID))

	expectClose(t, bob, websocket.CloseTryAgainLater)

	assert.Equal(t, []uint32{1}, watcherIDs(readMetadata(t, alice)))

	// the connection's own cleanup must not produce a second leave
	writeText(t, alice, `{"type":"pause","payload":{"requestId":3,"time":4}}`)
	msgType, payload := readMessage(t, alice)
	assert.Equal(t, domain.TypePause, msgType)
	assert.JSONEq(t, `{"id":1,"requestId":3,"time":4}`, string(payload))
	assert.Equal(t, 1, r.WatchersCount())
}

func TestController_BinaryFrame(t *testing.T) {
	_, srv := newTestServer(t)

	conn, _ := connect(t, srv, "Alice")
	require.NoError(t, conn.WriteMessage(websocket.BinaryMessage, []byte{1, 2, 3}))

	expectClose(t, conn, websocket.CloseUnsupportedData)
}

func TestController_Status(t *testing.T) {
	_, srv := newTestServer(t)

	alice, id := connect(t, srv, "Alice")

	writeText(t, alice, `{"type":"status","payload":{"position":10.5,"buffered":20,"playbackState":"playing"}}`)

	snapshot := readMetadata(t, alice)
	require.Len(t, snapshot.Watchers, 1)
	assert.Equal(t, domain.WatcherInfo{
		ID:            id,
		Name:          "Alice",
		Buffered:      20,
		Position:      10.5,
		PlaybackState: domain.Playing,
	}, snapshot.Watchers[0])
}

func TestController_Health(t *testing.T) {
	_, srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestController_ListRooms(t *testing.T) {
	_, srv := newTestServer(t)
	connect(t, srv, "Alice")

	resp, err := http.Get(srv.URL + "/rooms")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Data listRoomsResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))

	assert.Equal(t, []string{"bar", "foo"}, body.Data.Available)
	assert.Equal(t, []room.RoomSummary{{Name: "foo", URL: "https://example.com/foo.mp4", Watchers: 1}}, body.Data.Active)
}

func putRoom(t *testing.T, srv *httptest.Server, name, body string) int {
	t.Helper()

	req, err := http.NewRequest(http.MethodPut, srv.URL+"/rooms/"+name, strings.NewReader(body))
	require.NoError(t, err)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	return resp.StatusCode
}

func TestController_PutRoom(t *testing.T) {
	rooms, srv := newTestServer(t)

	status := putRoom(t, srv, "baz", `{"url":"https://example.com/baz.mp4","subs":[{"lang":"en","url":"https://example.com/baz.en.vtt"}]}`)
	assert.Equal(t, http.StatusNoContent, status)

	rooms.mu.Lock()
	defer rooms.mu.Unlock()
	assert.Equal(t, []room.PutDefinitionParams{{
		Name: "baz",
		URL:  "https://example.com/baz.mp4",
		Subs: []room.SubtitleParams{{Lang: "en", URL: "https://example.com/baz.en.vtt"}},
	}}, rooms.put)
}

func TestController_PutRoomErrors(t *testing.T) {
	tests := []struct {
		name     string
		readOnly bool
		body     string
		want     int
	}{
		{name: "invalid url", body: `{"url":"not a url"}`, want: http.StatusBadRequest},
		{name: "missing subtitle lang", body: `{"url":"https://example.com/a.mp4","subs":[{"url":"https://example.com/a.vtt"}]}`, want: http.StatusBadRequest},
		{name: "unknown field", body: `{"url":"https://example.com/a.mp4","title":"a"}`, want: http.StatusUnprocessableEntity},
		{name: "read only", readOnly: true, body: `{"url":"https://example.com/a.mp4"}`, want: http.StatusNotImplemented},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms, srv := newTestServer(t)
			rooms.mu.Lock()
			rooms.readOnly = tt.readOnly
			rooms.mu.Unlock()

			assert.Equal(t, tt.want, putRoom(t, srv, "baz", tt.body))

			rooms.mu.Lock()
			defer rooms.mu.Unlock()
			assert.False(t, slices.ContainsFunc(rooms.put, func(p room.PutDefinitionParams) bool { return p.Name == "baz" }))
		})
	}
}
