package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mcdev12/birthdaycake/go/internal/cake/protocol"
)

type inbound struct {
	id  string
	msg protocol.ClientMessage
}

type recordingHandler struct {
	connects    chan string
	disconnects chan string
	messages    chan inbound
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{
		connects:    make(chan string, 8),
		disconnects: make(chan string, 8),
		messages:    make(chan inbound, 64),
	}
}

func (h *recordingHandler) OnConnect(id string)    { h.connects <- id }
func (h *recordingHandler) OnDisconnect(id string) { h.disconnects <- id }
func (h *recordingHandler) OnMessage(id string, msg protocol.ClientMessage) {
	h.messages <- inbound{id, msg}
}

func receive[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
	}
	var zero T
	return zero
}

func startServer(t *testing.T, config ConnectionConfig) (*Server, *recordingHandler, string) {
	t.Helper()
	h := newRecordingHandler()
	cfg := DefaultConfig()
	cfg.ConnectionConfig = config
	s := NewServer(cfg, h)

	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Manager().Close()
		ts.Close()
	})
	return s, h, ts.URL
}

func dial(t *testing.T, baseURL string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(baseURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readServerMessage(t *testing.T, conn *websocket.Conn) protocol.ServerMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.BinaryMessage {
		t.Fatalf("message type = %d, want binary", kind)
	}
	msg, err := protocol.DecodeServerMessage(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestConnectMessageDisconnect(t *testing.T) {
	s, h, url := startServer(t, DefaultConnectionConfig())
	conn := dial(t, url)

	id := receive(t, h.connects)
	if id == "" {
		t.Fatalf("empty connection id")
	}
	if n := s.Manager().ClientCount(); n != 1 {
		t.Fatalf("ClientCount = %d, want 1", n)
	}

	frame := protocol.AppendClientMessage(nil, protocol.ClientMessage{WindForce: 0.25})
	if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
		t.Fatalf("write: %v", err)
	}
	got := receive(t, h.messages)
	if got.id != id || got.msg.WindForce != 0.25 {
		t.Fatalf("message = %+v, want wind 0.25 from %s", got, id)
	}

	conn.Close()
	if gone := receive(t, h.disconnects); gone != id {
		t.Fatalf("disconnected %s, want %s", gone, id)
	}
}

func TestMalformedFramesAreDropped(t *testing.T) {
	_, h, url := startServer(t, DefaultConnectionConfig())
	conn := dial(t, url)
	receive(t, h.connects)

	conn.WriteMessage(websocket.BinaryMessage, []byte{0x05, 0x0d})
	conn.WriteMessage(websocket.TextMessage, []byte("hello"))
	frame := protocol.AppendClientMessage(nil, protocol.ClientMessage{WindForce: 1})
	conn.WriteMessage(websocket.BinaryMessage, frame)

	if got := receive(t, h.messages); got.msg.WindForce != 1 {
		t.Fatalf("first delivered message = %+v, want the valid frame", got)
	}
	select {
	case d := <-h.disconnects:
		t.Fatalf("connection %s dropped over a bad frame", d)
	default:
	}
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	s, h, url := startServer(t, DefaultConnectionConfig())
	a := dial(t, url)
	b := dial(t, url)
	receive(t, h.connects)
	receive(t, h.connects)

	want := protocol.ServerMessage{ClientCount: 2, CandleCount: 26, BlownOutCandleCount: 3, TotalWindForce: 0.5}
	s.Manager().Broadcast(want)

	for _, conn := range []*websocket.Conn{a, b} {
		if got := readServerMessage(t, conn); got != want {
			t.Fatalf("received %+v, want %+v", got, want)
		}
	}
}

func TestSendTargetsOneConnection(t *testing.T) {
	s, h, url := startServer(t, DefaultConnectionConfig())
	conn := dial(t, url)
	id := receive(t, h.connects)

	want := protocol.ServerMessage{CandleCount: 4}
	if err := s.Manager().Send(id, want); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if got := readServerMessage(t, conn); got != want {
		t.Fatalf("received %+v, want %+v", got, want)
	}

	if err := s.Manager().Send("nobody", want); !errors.Is(err, ErrUnknownConnection) {
		t.Fatalf("Send to unknown id error = %v, want ErrUnknownConnection", err)
	}
}

func TestInboundRateLimit(t *testing.T) {
	cfg := DefaultConnectionConfig()
	cfg.MessagesPerSecond = 0.001
	cfg.MessageBurst = 2
	_, h, url := startServer(t, cfg)
	conn := dial(t, url)
	receive(t, h.connects)

	frame := protocol.AppendClientMessage(nil, protocol.ClientMessage{WindForce: 0.1})
	for i := 0; i < 5; i++ {
		if err := conn.WriteMessage(websocket.BinaryMessage, frame); err != nil {
			t.Fatalf("write: %v", err)
		}
	}

	receive(t, h.messages)
	receive(t, h.messages)
	select {
	case m := <-h.messages:
		t.Fatalf("message beyond the burst delivered: %+v", m)
	case <-time.After(200 * time.Millisecond):
	}
}

func TestCloseDisconnectsAndRefusesNewClients(t *testing.T) {
	s, h, url := startServer(t, DefaultConnectionConfig())
	dial(t, url)
	id := receive(t, h.connects)

	s.Manager().Close()
	if gone := receive(t, h.disconnects); gone != id {
		t.Fatalf("disconnected %s, want %s", gone, id)
	}
	if n := s.Manager().ClientCount(); n != 0 {
		t.Fatalf("ClientCount = %d after Close", n)
	}

	wsURL := "ws" + strings.TrimPrefix(url, "http") + "/ws"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatalf("dial succeeded after Close")
	}
	if resp == nil || resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("dial after Close response = %v, want 503", resp)
	}
}

func TestStatsAndHealthRoutes(t *testing.T) {
	_, h, url := startServer(t, DefaultConnectionConfig())
	dial(t, url)
	id := receive(t, h.connects)

	resp, err := http.Get(url + "/ws/stats")
	if err != nil {
		t.Fatalf("GET /ws/stats: %v", err)
	}
	defer resp.Body.Close()

	var stats Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode stats: %v", err)
	}
	if stats.TotalConnections != 1 || len(stats.Connections) != 1 || stats.Connections[0].ID != id {
		t.Fatalf("stats = %+v", stats)
	}

	health, err := http.Get(url + "/health")
	if err != nil {
		t.Fatalf("GET /health: %v", err)
	}
	health.Body.Close()
	if health.StatusCode != http.StatusOK {
		t.Fatalf("health status = %d", health.StatusCode)
	}
}
