package iris

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// wsServer pushes one message per entry in push and echoes back whatever frames it receives.
func wsServer(t *testing.T, push []Message, received chan<- ReplyRequest) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer c.CloseNow()
		ctx := r.Context()
		for _, m := range push {
			if err := wsjson.Write(ctx, c, m); err != nil {
				return
			}
		}
		for {
			var req ReplyRequest
			if err := wsjson.Read(ctx, c, &req); err != nil {
				return
			}
			if received != nil {
				received <- req
			}
		}
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestWebSocketDeliversMessages(t *testing.T) {
	sender := "kim"
	url := wsServer(t, []Message{
		{Room: "r1", Msg: "!sushi", Sender: &sender},
		{Room: "r1", Msg: "!l", JSON: &MessageJSON{UserID: "42"}},
	}, nil)

	ws := NewWebSocket(url, 0, time.Millisecond)
	got := make(chan *Message, 4)
	ws.OnMessage(func(m *Message) { got <- m })

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer func() { _ = ws.Close(context.Background()) }()

	for i, want := range []string{"!sushi", "!l"} {
		select {
		case m := <-got:
			if m.Msg != want {
				t.Fatalf("message %d = %q want %q", i, m.Msg, want)
			}
		case <-ctx.Done():
			t.Fatalf("timed out waiting for message %d", i)
		}
	}
	if !ws.Connected() {
		t.Fatalf("state=%s", ws.State())
	}
}

func TestWebSocketEgress(t *testing.T) {
	received := make(chan ReplyRequest, 2)
	url := wsServer(t, nil, received)

	ws := NewWebSocket(url, 0, time.Millisecond)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ws.Connect(ctx); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	defer func() { _ = ws.Close(context.Background()) }()

	eg := NewEgress(TransportAuto, false, nil, ws, nil)
	if err := eg.SendText(ctx, "r1", "hi"); err != nil {
		t.Fatalf("SendText: %v", err)
	}
	select {
	case req := <-received:
		if req.Type != "text" || req.Room != "r1" || req.Data != "hi" {
			t.Fatalf("frame=%+v", req)
		}
	case <-ctx.Done():
		t.Fatal("no frame received")
	}
}

func TestWebSocketStateCallbacks(t *testing.T) {
	url := wsServer(t, nil, nil)
	ws := NewWebSocket(url, 0, time.Millisecond)
	states := make(chan WebSocketState, 8)
	id := ws.OnStateChange(func(s WebSocketState) { states <- s })

	if err := ws.Connect(context.Background()); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if s := <-states; s != WSStateConnecting {
		t.Fatalf("first state=%s", s)
	}
	if s := <-states; s != WSStateConnected {
		t.Fatalf("second state=%s", s)
	}
	ws.RemoveStateCallback(id)
	if err := ws.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if ws.Connected() {
		t.Fatal("still connected after Close")
	}
}

func TestWriteWithoutConnection(t *testing.T) {
	ws := NewWebSocket("ws://127.0.0.1:1", 0, time.Millisecond)
	if err := ws.WriteJSON(context.Background(), ReplyRequest{}); err != ErrNotConnected {
		t.Fatalf("err=%v", err)
	}
	eg := NewEgress(TransportWS, true, nil, ws, nil)
	if err := eg.SendText(context.Background(), "r", "x"); err != nil {
		t.Fatalf("dryrun should not fail: %v", err)
	}
}
