package iris

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var ErrNotConnected = errors.New("ws not connected")

type callbackEntry struct {
	id       int
	callback MessageCallback
}

type stateCallbackEntry struct {
	id       int
	callback StateCallback
}

// WebSocket receives chat lines from Iris. A single supervisor goroutine owns the
// read loop and redials with backoff when the connection drops.
type WebSocket struct {
	wsURL   string
	headers HeaderProvider
	logger  *zap.Logger

	mu    sync.Mutex
	conn  *websocket.Conn
	state WebSocketState

	writeMu sync.Mutex

	cbM      sync.RWMutex
	nextCbID int
	msgCbs   []callbackEntry
	stateCbs []stateCallbackEntry

	maxReconnectAttempts int
	reconnectDelay       time.Duration
	pingInterval         time.Duration

	stopCh     chan struct{}
	stopOnce   sync.Once
	startOnce  sync.Once
	wg         sync.WaitGroup
	rootCtx    context.Context
	rootCancel context.CancelFunc
}

func NewWebSocket(wsURL string, maxReconnectAttempts int, reconnectDelay time.Duration) *WebSocket {
	if reconnectDelay <= 0 {
		reconnectDelay = time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WebSocket{
		wsURL:                wsURL,
		logger:               zap.NewNop(),
		state:                WSStateDisconnected,
		maxReconnectAttempts: maxReconnectAttempts,
		reconnectDelay:       reconnectDelay,
		pingInterval:         30 * time.Second,
		stopCh:               make(chan struct{}),
		rootCtx:              ctx,
		rootCancel:           cancel,
	}
}

func (ws *WebSocket) SetHeaderProvider(h HeaderProvider) { ws.headers = h }

func (ws *WebSocket) SetLogger(l *zap.Logger) {
	if l != nil {
		ws.logger = l
	}
}

func (ws *WebSocket) SetPingInterval(d time.Duration) {
	if d > 0 {
		ws.pingInterval = d
	}
}

// Connect dials once. On failure the supervisor keeps retrying in the background
// (when reconnects are enabled) and the dial error is still returned.
func (ws *WebSocket) Connect(ctx context.Context) error {
	ws.mu.Lock()
	if ws.state == WSStateConnected || ws.state == WSStateConnecting {
		ws.mu.Unlock()
		return nil
	}
	ws.mu.Unlock()
	ws.setState(WSStateConnecting)

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	conn, err := ws.dial(dialCtx)
	cancel()
	if err != nil {
		ws.setState(WSStateFailed)
		if ws.maxReconnectAttempts > 0 {
			ws.start(nil)
		}
		return err
	}
	ws.adopt(conn)
	ws.start(conn)
	return nil
}

func (ws *WebSocket) adopt(conn *websocket.Conn) {
	ws.mu.Lock()
	ws.conn = conn
	ws.mu.Unlock()
	ws.setState(WSStateConnected)
}

func (ws *WebSocket) start(conn *websocket.Conn) {
	ws.startOnce.Do(func() {
		ws.wg.Add(1)
		go ws.supervise(conn)
	})
}

func (ws *WebSocket) dial(ctx context.Context) (*websocket.Conn, error) {
	conn, _, err := websocket.Dial(ctx, ws.wsURL, &websocket.DialOptions{
		CompressionMode: websocket.CompressionNoContextTakeover,
		HTTPHeader:      ws.buildHeaders(),
	})
	if err != nil {
		return nil, err
	}
	conn.SetReadLimit(1 << 20)
	return conn, nil
}

func (ws *WebSocket) supervise(conn *websocket.Conn) {
	defer ws.wg.Done()
	for {
		if conn == nil {
			if conn = ws.redial(); conn == nil {
				if !ws.isStopping() {
					ws.setState(WSStateFailed)
				}
				return
			}
			ws.adopt(conn)
		}

		err := ws.serve(conn)

		ws.mu.Lock()
		ws.conn = nil
		ws.mu.Unlock()
		_ = conn.Close(websocket.StatusGoingAway, "reconnect")
		conn = nil
		if ws.isStopping() {
			ws.setState(WSStateDisconnected)
			return
		}
		ws.logger.Warn("iris_ws_dropped", zap.Error(err))
		ws.setState(WSStateDisconnected)
		if ws.maxReconnectAttempts <= 0 {
			return
		}
	}
}

func (ws *WebSocket) redial() *websocket.Conn {
	ws.setState(WSStateReconnecting)
	for attempt := 1; attempt <= ws.maxReconnectAttempts; attempt++ {
		select {
		case <-ws.stopCh:
			return nil
		case <-time.After(ws.reconnectDelay * time.Duration(attempt)):
		}
		dialCtx, cancel := context.WithTimeout(ws.rootCtx, 10*time.Second)
		conn, err := ws.dial(dialCtx)
		cancel()
		if err == nil {
			return conn
		}
		ws.logger.Debug("iris_ws_redial_failed", zap.Int("attempt", attempt), zap.Error(err))
	}
	return nil
}

// serve blocks until the read loop fails or two pings in a row go unanswered.
func (ws *WebSocket) serve(conn *websocket.Conn) error {
	ctx, cancel := context.WithCancel(ws.rootCtx)
	defer cancel()

	pingDone := make(chan struct{})
	go func() {
		defer close(pingDone)
		t := time.NewTicker(ws.pingInterval)
		defer t.Stop()
		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				pctx, pcancel := context.WithTimeout(ctx, 3*time.Second)
				err := conn.Ping(pctx)
				pcancel()
				if err == nil {
					failures = 0
					continue
				}
				failures++
				if failures >= 2 {
					cancel()
					return
				}
			}
		}
	}()
	defer func() { <-pingDone }()

	for {
		var msg Message
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			return err
		}
		ws.dispatch(&msg)
	}
}

func (ws *WebSocket) dispatch(msg *Message) {
	ws.cbM.RLock()
	callbacks := make([]callbackEntry, len(ws.msgCbs))
	copy(callbacks, ws.msgCbs)
	ws.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(msg)
		}
	}
}

// WriteJSON sends one frame on the live connection.
func (ws *WebSocket) WriteJSON(ctx context.Context, v any) error {
	ws.mu.Lock()
	conn, state := ws.conn, ws.state
	ws.mu.Unlock()
	if conn == nil || state != WSStateConnected {
		return ErrNotConnected
	}
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
	}
	// wsjson.Write 는 동시 호출 불가
	ws.writeMu.Lock()
	defer ws.writeMu.Unlock()
	return wsjson.Write(ctx, conn, v)
}

func (ws *WebSocket) Connected() bool {
	return ws.State() == WSStateConnected
}

func (ws *WebSocket) State() WebSocketState {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	return ws.state
}

func (ws *WebSocket) OnMessage(cb MessageCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.msgCbs = append(ws.msgCbs, callbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveMessageCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.msgCbs {
		if cb.id == id {
			ws.msgCbs = append(ws.msgCbs[:i], ws.msgCbs[i+1:]...)
			return
		}
	}
}

func (ws *WebSocket) OnStateChange(cb StateCallback) int {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	ws.nextCbID++
	ws.stateCbs = append(ws.stateCbs, stateCallbackEntry{id: ws.nextCbID, callback: cb})
	return ws.nextCbID
}

func (ws *WebSocket) RemoveStateCallback(id int) {
	ws.cbM.Lock()
	defer ws.cbM.Unlock()
	for i, cb := range ws.stateCbs {
		if cb.id == id {
			ws.stateCbs = append(ws.stateCbs[:i], ws.stateCbs[i+1:]...)
			return
		}
	}
}

func (ws *WebSocket) setState(state WebSocketState) {
	ws.mu.Lock()
	ws.state = state
	ws.mu.Unlock()

	ws.cbM.RLock()
	callbacks := make([]stateCallbackEntry, len(ws.stateCbs))
	copy(callbacks, ws.stateCbs)
	ws.cbM.RUnlock()
	for _, entry := range callbacks {
		if entry.callback != nil {
			entry.callback(state)
		}
	}
}

func (ws *WebSocket) Close(ctx context.Context) error {
	ws.stopOnce.Do(func() {
		close(ws.stopCh)
		ws.rootCancel()
	})
	ws.mu.Lock()
	conn := ws.conn
	ws.mu.Unlock()
	if conn != nil {
		_ = conn.Close(websocket.StatusNormalClosure, "close")
	}

	done := make(chan struct{})
	go func() {
		ws.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (ws *WebSocket) isStopping() bool {
	select {
	case <-ws.stopCh:
		return true
	default:
		return false
	}
}

func (ws *WebSocket) buildHeaders() http.Header {
	hdr := http.Header{}
	if ws.headers == nil {
		return hdr
	}
	for k, v := range ws.headers() {
		if strings.TrimSpace(k) == "" || strings.TrimSpace(v) == "" {
			continue
		}
		hdr.Set(k, v)
	}
	return hdr
}
