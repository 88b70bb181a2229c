package websocket

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"ride-share/pkg/auth"
	"ride-share/pkg/logger"
)

func newHub(t *testing.T) (*Manager, *auth.JWTManager, string) {
	t.Helper()
	log := logger.Discard()
	jwt := auth.NewJWTManager("ws-secret", time.Hour, nil)
	m := NewManager(log)
	h := NewHandler(log, jwt, func(conn *Connection) {
		userID := conn.Claims.UserID
		m.AddConnection(userID, conn)
		conn.ReadPump(func(int, []byte) {}, func() { m.RemoveConnection(userID, conn) })
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return m, jwt, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dialAndAuth(t *testing.T, url, token string) *websocket.Conn {
	t.Helper()
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	if err := c.WriteJSON(map[string]string{"type": "auth", "token": "Bearer " + token}); err != nil {
		t.Fatal(err)
	}
	return c
}

func waitConnected(t *testing.T, m *Manager, userID string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !m.IsUserConnected(userID) {
		if time.Now().After(deadline) {
			t.Fatalf("%s never registered", userID)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestAuthenticatedClientReceivesMessages(t *testing.T) {
	m, jwt, url := newHub(t)
	token, _, err := jwt.GenerateToken("u1", "u1@unisabana.edu.co", []string{auth.RolePassenger})
	if err != nil {
		t.Fatal(err)
	}
	c := dialAndAuth(t, url, token)

	var ack map[string]string
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := c.ReadJSON(&ack); err != nil || ack["type"] != "auth_ok" || ack["userId"] != "u1" {
		t.Fatalf("ack = %v, err %v", ack, err)
	}
	waitConnected(t, m, "u1")

	if err := m.SendToUser("u1", map[string]string{"type": "ride.cancelled"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	var got map[string]string
	if err := c.ReadJSON(&got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["type"] != "ride.cancelled" {
		t.Errorf("got %v", got)
	}
}

func TestInvalidTokenIsRejected(t *testing.T) {
	m, _, url := newHub(t)
	c := dialAndAuth(t, url, "garbage")

	var resp wsErrorResponse
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	if err := c.ReadJSON(&resp); err != nil {
		t.Fatalf("read: %v", err)
	}
	if resp.Type != "error" {
		t.Errorf("resp = %+v", resp)
	}
	if m.GetConnectionCount() != 0 {
		t.Error("rejected client was registered")
	}
}

func TestSendToOfflineUser(t *testing.T) {
	m := NewManager(logger.Discard())
	if err := m.SendToUser("nobody", "hello"); err != nil {
		t.Errorf("offline send: %v", err)
	}
}
