package client

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/protocol"

	"github.com/cenkalti/backoff/v4"
	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// 传输层自己产生的事件，与服务端推送走同一个 Events 通道
const (
	EventConnected       = "connect"
	EventDisconnected    = "disconnect"
	EventReconnectFailed = "reconnect_failed"
)

// Transport Client 依赖的实时通道
// 未连接时 Emit 和 Request 立即返回 errorx.ErrOffline，不排队
type Transport interface {
	Connect(ctx context.Context) error
	Close() error
	Connected() bool
	Emit(event string, data any) error
	Request(ctx context.Context, event string, data any) (protocol.AckResult, error)
	Events() <-chan protocol.Envelope
}

// WSConfig 连接参数，零值字段使用默认值
type WSConfig struct {
	URL             string // ws://host:port/wss
	Token           string
	InitialInterval time.Duration // 重连初始间隔，默认 1s
	MaxInterval     time.Duration // 重连最大间隔，默认 5s
	Attempts        int           // 每轮最多尝试次数，默认 5
	WriteWait       time.Duration
	Dialer          *gorilla.Dialer
}

func (c *WSConfig) applyDefaults() {
	if c.InitialInterval <= 0 {
		c.InitialInterval = time.Second
	}
	if c.MaxInterval <= 0 {
		c.MaxInterval = 5 * time.Second
	}
	if c.Attempts <= 0 {
		c.Attempts = 5
	}
	if c.WriteWait <= 0 {
		c.WriteWait = 10 * time.Second
	}
	if c.Dialer == nil {
		c.Dialer = gorilla.DefaultDialer
	}
}

// WSTransport 基于 gorilla/websocket 的 Transport
// 连接意外断开后自动按退避策略重连，成功后投递 EventConnected
type WSTransport struct {
	conf    WSConfig
	events  chan protocol.Envelope
	nextAck atomic.Int64

	mu      sync.Mutex
	ws      *gorilla.Conn
	closed  bool // 主动断开后不再自动重连
	cancel  context.CancelFunc
	pending map[int64]chan protocol.AckResult

	writeMu sync.Mutex
}

func NewWSTransport(conf WSConfig) *WSTransport {
	conf.applyDefaults()
	return &WSTransport{
		conf:    conf,
		events:  make(chan protocol.Envelope, 256),
		pending: make(map[int64]chan protocol.AckResult),
	}
}

// SetToken 重新登录后替换握手 token
func (t *WSTransport) SetToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.conf.Token = token
}

func (t *WSTransport) Events() <-chan protocol.Envelope { return t.events }

func (t *WSTransport) Connected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.ws != nil
}

// Connect 建立连接，已连接时直接返回
func (t *WSTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	if t.ws != nil {
		t.mu.Unlock()
		return nil
	}
	t.closed = false
	// 取消仍在退避中的后台重连，同一时刻只保留一条连接
	if t.cancel != nil {
		t.cancel()
	}
	dialCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	ws, err := t.dial(dialCtx)
	if err != nil {
		return err
	}
	_, err = t.attach(ws)
	return err
}

// attach 挂上新连接；已有活动连接时关闭新连接并返回 false
func (t *WSTransport) attach(ws *gorilla.Conn) (bool, error) {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		_ = ws.Close()
		return false, errorx.ErrOffline
	}
	if t.ws != nil {
		t.mu.Unlock()
		_ = ws.Close()
		return false, nil
	}
	t.ws = ws
	t.mu.Unlock()

	go t.readLoop(ws)
	return true, nil
}

// dial 有界指数退避：1s 起步，最大 5s，最多 Attempts 次
// 401 属于永久错误，不再重试
func (t *WSTransport) dial(ctx context.Context) (*gorilla.Conn, error) {
	t.mu.Lock()
	header := http.Header{}
	header.Set("Authorization", "Bearer "+t.conf.Token)
	t.mu.Unlock()

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = t.conf.InitialInterval
	b.MaxInterval = t.conf.MaxInterval
	b.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(t.conf.Attempts-1)), ctx)

	var ws *gorilla.Conn
	op := func() error {
		c, resp, err := t.conf.Dialer.DialContext(ctx, t.conf.URL, header)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusUnauthorized {
				return backoff.Permanent(errorx.Wrap(err, errorx.CodeUnauthorized, "握手被拒绝，请重新登录"))
			}
			return err
		}
		ws = c
		return nil
	}
	notify := func(err error, wait time.Duration) {
		zap.L().Info("ws dial failed, retrying", zap.Duration("wait", wait), zap.Error(err))
	}
	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		if errorx.GetCode(err) == errorx.CodeUnauthorized {
			return nil, err
		}
		return nil, errorx.Wrap(err, errorx.CodeTransport, "无法连接服务器")
	}
	return ws, nil
}

func (t *WSTransport) readLoop(ws *gorilla.Conn) {
	for {
		_, raw, err := ws.ReadMessage()
		if err != nil {
			zap.L().Debug("ws read stopped", zap.Error(err))
			break
		}
		env, err := protocol.DecodeEnvelope(raw)
		if err != nil {
			zap.L().Warn("drop malformed frame", zap.Error(err))
			continue
		}
		if env.Event == protocol.EventAck && env.AckID != nil {
			t.resolve(*env.AckID, env.Data)
			continue
		}
		t.deliver(env)
	}

	if t.detach(ws) {
		t.deliver(protocol.Envelope{Event: EventDisconnected})
		go t.reconnect()
	}
}

// detach 连接断开后清理；返回是否需要自动重连
func (t *WSTransport) detach(ws *gorilla.Conn) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.ws != ws {
		return false
	}
	t.ws = nil
	t.failPendingLocked()
	_ = ws.Close()
	return !t.closed
}

func (t *WSTransport) reconnect() {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	t.cancel = cancel
	t.mu.Unlock()
	defer cancel()

	ws, err := t.dial(ctx)
	if err != nil {
		if ctx.Err() != nil {
			// 被 Close 或手动 Connect 取消
			return
		}
		zap.L().Warn("ws reconnect gave up", zap.Error(err))
		t.deliver(protocol.Envelope{Event: EventReconnectFailed})
		return
	}
	if attached, err := t.attach(ws); err != nil || !attached {
		return
	}
	t.deliver(protocol.Envelope{Event: EventConnected})
}

// deliver 通道满时丢弃，读协程不能被业务处理阻塞
func (t *WSTransport) deliver(env protocol.Envelope) {
	select {
	case t.events <- env:
	default:
		zap.L().Warn("client event buffer full, dropping", zap.String("event", env.Event))
	}
}

func (t *WSTransport) resolve(ackID int64, data json.RawMessage) {
	var res protocol.AckResult
	if err := json.Unmarshal(data, &res); err != nil {
		res = protocol.AckResult{Status: protocol.StatusError, Code: errorx.CodeTransport, Message: json.RawMessage(`"无法解析的应答"`)}
	}
	t.mu.Lock()
	ch := t.pending[ackID]
	delete(t.pending, ackID)
	t.mu.Unlock()
	if ch != nil {
		ch <- res
	}
}

func (t *WSTransport) failPendingLocked() {
	for id, ch := range t.pending {
		close(ch)
		delete(t.pending, id)
	}
}

// Close 主动断开，不触发自动重连
func (t *WSTransport) Close() error {
	t.mu.Lock()
	t.closed = true
	if t.cancel != nil {
		t.cancel()
	}
	ws := t.ws
	t.ws = nil
	t.failPendingLocked()
	t.mu.Unlock()

	if ws == nil {
		return nil
	}
	t.writeMu.Lock()
	_ = ws.WriteControl(gorilla.CloseMessage,
		gorilla.FormatCloseMessage(gorilla.CloseNormalClosure, "bye"), time.Now().Add(time.Second))
	t.writeMu.Unlock()
	return ws.Close()
}

func (t *WSTransport) Emit(event string, data any) error {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		return err
	}
	return t.write(frame)
}

// Request 发送带 ackId 的命令并等待应答
// 连接断开或 ctx 结束都返回 CodeTransport 错误，调用方不能假定命令已生效
func (t *WSTransport) Request(ctx context.Context, event string, data any) (protocol.AckResult, error) {
	id := t.nextAck.Add(1)
	frame, err := protocol.EncodeWithAck(event, id, data)
	if err != nil {
		return protocol.AckResult{}, err
	}

	ch := make(chan protocol.AckResult, 1)
	t.mu.Lock()
	if t.ws == nil {
		t.mu.Unlock()
		return protocol.AckResult{}, errorx.ErrOffline
	}
	t.pending[id] = ch
	t.mu.Unlock()

	if err := t.write(frame); err != nil {
		t.forget(id)
		return protocol.AckResult{}, err
	}

	select {
	case res, ok := <-ch:
		if !ok {
			return protocol.AckResult{}, errorx.New(errorx.CodeTransport, "连接已断开，命令结果未知")
		}
		return res, nil
	case <-ctx.Done():
		t.forget(id)
		return protocol.AckResult{}, errorx.Wrap(ctx.Err(), errorx.CodeTransport, "等待应答超时")
	}
}

func (t *WSTransport) forget(id int64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.pending, id)
}

func (t *WSTransport) write(frame []byte) error {
	t.mu.Lock()
	ws := t.ws
	t.mu.Unlock()
	if ws == nil {
		return errorx.ErrOffline
	}

	t.writeMu.Lock()
	defer t.writeMu.Unlock()
	_ = ws.SetWriteDeadline(time.Now().Add(t.conf.WriteWait))
	if err := ws.WriteMessage(gorilla.TextMessage, frame); err != nil {
		return errorx.Wrap(err, errorx.CodeTransport, "发送失败")
	}
	return nil
}
