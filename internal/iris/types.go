package iris

import "strings"

// Message is one chat line pushed by the Iris gateway.
type Message struct {
	Msg    string       `json:"msg"`
	Room   string       `json:"room"`
	Sender *string      `json:"sender,omitempty"`
	JSON   *MessageJSON `json:"json,omitempty"`
}

type MessageJSON struct {
	UserID  string `json:"user_id,omitempty"`
	ChatID  string `json:"chat_id,omitempty"`
	Message string `json:"message,omitempty"`
}

// UserID prefers the stable KakaoTalk user id and falls back to the display name.
func (m *Message) UserID() string {
	if m == nil {
		return ""
	}
	if m.JSON != nil {
		if id := strings.TrimSpace(m.JSON.UserID); id != "" {
			return id
		}
	}
	return m.SenderName()
}

func (m *Message) SenderName() string {
	if m == nil || m.Sender == nil {
		return ""
	}
	return strings.TrimSpace(*m.Sender)
}

// ReplyRequest is the body of POST /reply and of WebSocket egress frames.
// Data holds text for "text" and base64 PNG for "image".
type ReplyRequest struct {
	Type string `json:"type"`
	Room string `json:"room"`
	Data string `json:"data"`
}

// Config mirrors GET /config.
type Config struct {
	BotName           string `json:"bot_name,omitempty"`
	Port              int    `json:"bot_http_port"`
	PollingSpeed      int    `json:"db_polling_rate"`
	MessageRate       int    `json:"message_send_rate"`
	WebserverEndpoint string `json:"web_server_endpoint"`
}

type WebSocketState int

const (
	WSStateDisconnected WebSocketState = iota
	WSStateConnecting
	WSStateConnected
	WSStateReconnecting
	WSStateFailed
)

func (s WebSocketState) String() string {
	switch s {
	case WSStateDisconnected:
		return "disconnected"
	case WSStateConnecting:
		return "connecting"
	case WSStateConnected:
		return "connected"
	case WSStateReconnecting:
		return "reconnecting"
	case WSStateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

type MessageCallback func(message *Message)

type StateCallback func(state WebSocketState)

// HeaderProvider allows injecting per-request headers
type HeaderProvider func() map[string]string

// StaticHeaders builds the X-User-* headers some Iris deployments require.
func StaticHeaders(userID, email, sessionID string) HeaderProvider {
	h := map[string]string{}
	if userID != "" {
		h["X-User-Id"] = userID
	}
	if email != "" {
		h["X-User-Email"] = email
	}
	if sessionID != "" {
		h["X-Session-Id"] = sessionID
	}
	return func() map[string]string { return h }
}
