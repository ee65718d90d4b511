package meeting

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"studyhub/pkg/types"
)

func newHandlerServer(t *testing.T, f *relayFixture) *httptest.Server {
	t.Helper()
	handler := NewHandler(f.relay, nil)
	server := httptest.NewServer(http.HandlerFunc(handler.HandleRoom))
	t.Cleanup(server.Close)
	return server
}

func dialRoom(t *testing.T, server *httptest.Server, room, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?room=" + room + "&user_id=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readRoomFrame(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	var frame map[string]interface{}
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("malformed frame: %v", err)
	}
	return frame
}

func TestRoomMissingIdentityCloses4401(t *testing.T) {
	f := newRelayFixture(t)
	f.seedMeeting(types.MeetingInProgress)
	server := newHandlerServer(t, f)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "?room=room1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err = conn.ReadMessage()
	var closeErr *websocket.CloseError
	if !errors.As(err, &closeErr) || closeErr.Code != CloseUnauthorized {
		t.Errorf("expected close code %d, got %v", CloseUnauthorized, err)
	}
}

func TestRoomUnknownRoomPlainClose(t *testing.T) {
	f := newRelayFixture(t)
	server := newHandlerServer(t, f)

	conn := dialRoom(t, server, "nope", "host1")
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, _, err := conn.ReadMessage()
	if err == nil {
		t.Fatal("expected the connection to close")
	}
	// The close carries no code that distinguishes missing from forbidden.
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) && closeErr.Code == CloseUnauthorized {
		t.Error("room-not-found must not use the unauthorized close code")
	}
}

func TestRoomRelaysBetweenClients(t *testing.T) {
	f := newRelayFixture(t)
	f.seedMeeting(types.MeetingInProgress)
	server := newHandlerServer(t, f)

	hostConn := dialRoom(t, server, "room1", "host1")
	snapshot := readRoomFrame(t, hostConn)
	if snapshot["type"] != "participants_snapshot" {
		t.Fatalf("expected snapshot first, got %v", snapshot)
	}

	studentConn := dialRoom(t, server, "room1", "student1")
	readRoomFrame(t, studentConn) // snapshot

	// Host sees the student join.
	joined := readRoomFrame(t, hostConn)
	if joined["type"] != "participant_event" || joined["event"] != "joined" {
		t.Fatalf("expected join event, got %v", joined)
	}

	// Student sends chat; host receives it with stamped identity.
	if err := studentConn.WriteMessage(websocket.TextMessage,
		[]byte(`{"type":"chat","message":"hi","sender_id":"forged"}`)); err != nil {
		t.Fatalf("write failed: %v", err)
	}
	chat := readRoomFrame(t, hostConn)
	if chat["type"] != "chat" || chat["message"] != "hi" {
		t.Fatalf("unexpected chat frame: %v", chat)
	}
	if chat["sender_id"] != "student1" || chat["user_name"] != "Sam Student" {
		t.Errorf("identity not server-stamped: %v", chat)
	}
}
