package bitget

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alanyoungcy/zeroxbot/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// defaultPingInterval matches the 30s keep-alive Bitget expects.
	defaultPingInterval = 30 * time.Second

	defaultHandshakeTimeout = 15 * time.Second

	channelTicker = "ticker"
)

// ConnState is the lifecycle state of the stream connection.
type ConnState int32

const (
	StateDisconnected ConnState = iota
	StateConnecting
	StateSubscribed
)

func (s ConnState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateSubscribed:
		return "subscribed"
	default:
		return "disconnected"
	}
}

// TickHandler receives every valid ticker observation in arrival order.
type TickHandler func(domain.PriceTick)

// WSConfig configures a WSClient.
type WSConfig struct {
	URL              string
	InstType         string
	Instruments      []string
	PingInterval     time.Duration
	ReadTimeout      time.Duration // zero disables the read deadline
	HandshakeTimeout time.Duration
}

// WSClient is a client for the Bitget v2 public ticker channel. Each call to
// Run owns one connection from dial to close; reconnect policy belongs to the
// caller.
type WSClient struct {
	cfg   WSConfig
	state atomic.Int32

	stateMu sync.RWMutex
	onState func(ConnState)
	onEvent func(WSEvent)

	// now is overridable in tests.
	now func() time.Time
}

// NewWSClient creates a client subscribing to the ticker channel of every
// configured instrument.
func NewWSClient(cfg WSConfig) *WSClient {
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = defaultPingInterval
	}
	if cfg.HandshakeTimeout <= 0 {
		cfg.HandshakeTimeout = defaultHandshakeTimeout
	}
	if cfg.InstType == "" {
		cfg.InstType = "USDT-FUTURES"
	}
	return &WSClient{cfg: cfg, now: time.Now}
}

// State returns the current connection state.
func (w *WSClient) State() ConnState {
	return ConnState(w.state.Load())
}

// OnStateChange registers a callback invoked on every state transition.
func (w *WSClient) OnStateChange(fn func(ConnState)) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.onState = fn
}

// OnEvent registers a callback invoked for every command acknowledgement or
// error event the server pushes.
func (w *WSClient) OnEvent(fn func(WSEvent)) {
	w.stateMu.Lock()
	defer w.stateMu.Unlock()
	w.onEvent = fn
}

func (w *WSClient) emitEvent(ev WSEvent) {
	w.stateMu.RLock()
	fn := w.onEvent
	w.stateMu.RUnlock()
	if fn != nil {
		fn(ev)
	}
}

func (w *WSClient) setState(s ConnState) {
	if ConnState(w.state.Swap(int32(s))) == s {
		return
	}
	w.stateMu.RLock()
	fn := w.onState
	w.stateMu.RUnlock()
	if fn != nil {
		fn(s)
	}
}

// SubscribeCommand builds the single subscription message sent after the
// connection opens.
func (w *WSClient) SubscribeCommand() WSCommand {
	args := make([]WSArg, 0, len(w.cfg.Instruments))
	for _, inst := range w.cfg.Instruments {
		args = append(args, WSArg{
			InstType: w.cfg.InstType,
			Channel:  channelTicker,
			InstID:   inst,
		})
	}
	return WSCommand{Op: "subscribe", Args: args}
}

// Run dials the endpoint, subscribes, and dispatches ticks to handler until
// the connection fails or ctx is cancelled. It always returns a non-nil error:
// ctx.Err() on cancellation, otherwise an error wrapping
// domain.ErrWSDisconnect.
func (w *WSClient) Run(ctx context.Context, handler TickHandler) error {
	w.setState(StateConnecting)
	defer w.setState(StateDisconnected)

	dialer := websocket.Dialer{
		HandshakeTimeout: w.cfg.HandshakeTimeout,
	}
	conn, _, err := dialer.DialContext(ctx, w.cfg.URL, nil)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("bitget/ws: connect: %w: %w", domain.ErrWSDisconnect, err)
	}
	defer conn.Close()

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		_ = conn.SetWriteDeadline(w.now().Add(writeWait))
		return conn.WriteMessage(messageType, data)
	}

	sub, err := json.Marshal(w.SubscribeCommand())
	if err != nil {
		return fmt.Errorf("bitget/ws: marshal subscribe: %w", err)
	}
	if err := write(websocket.TextMessage, sub); err != nil {
		return fmt.Errorf("bitget/ws: subscribe: %w: %w", domain.ErrWSDisconnect, err)
	}
	w.setState(StateSubscribed)

	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Unblock ReadMessage on shutdown.
	go func() {
		<-connCtx.Done()
		_ = conn.Close()
	}()
	go w.pingLoop(connCtx, write)

	for {
		if w.cfg.ReadTimeout > 0 {
			_ = conn.SetReadDeadline(w.now().Add(w.cfg.ReadTimeout))
		}
		_, message, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("bitget/ws: read: %w: %w", domain.ErrWSDisconnect, err)
		}
		if tick, ok := ParseTicker(message, w.now()); ok {
			if handler != nil {
				handler(tick)
			}
			continue
		}
		if ev, ok := ParseEvent(message); ok {
			w.emitEvent(ev)
		}
	}
}

// pingLoop sends the text keep-alive Bitget expects; the server answers with
// a bare "pong" frame.
func (w *WSClient) pingLoop(ctx context.Context, write func(int, []byte) error) {
	ticker := time.NewTicker(w.cfg.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := write(websocket.TextMessage, []byte("ping")); err != nil {
				return
			}
		}
	}
}

// ParseEvent decodes a frame carrying an "event" field, such as a subscribe
// acknowledgement or an error reply.
func ParseEvent(raw []byte) (WSEvent, bool) {
	if len(raw) == 0 || raw[0] != '{' {
		return WSEvent{}, false
	}
	var ev WSEvent
	if err := json.Unmarshal(raw, &ev); err != nil || ev.Event == "" {
		return WSEvent{}, false
	}
	return ev, true
}

// ParseTicker extracts a price tick from one inbound frame. It returns false
// for keep-alive frames, command acknowledgements, unparsable payloads, and
// non-positive or non-numeric prices.
func ParseTicker(raw []byte, observedAt time.Time) (domain.PriceTick, bool) {
	if string(raw) == "pong" {
		return domain.PriceTick{}, false
	}

	var msg TickerMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return domain.PriceTick{}, false
	}
	if msg.Action != "snapshot" && msg.Action != "update" {
		return domain.PriceTick{}, false
	}
	if len(msg.Data) == 0 {
		return domain.PriceTick{}, false
	}

	data := msg.Data[0]
	price, ok := data.lastPrice()
	if !ok {
		return domain.PriceTick{}, false
	}

	instID := data.InstID
	if instID == "" {
		instID = msg.Arg.InstID
	}

	tick := domain.PriceTick{
		Instrument: instID,
		Price:      price,
		ObservedAt: observedAt,
	}
	if !tick.Valid() {
		return domain.PriceTick{}, false
	}
	return tick, true
}
