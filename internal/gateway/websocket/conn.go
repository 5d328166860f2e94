package websocket

import (
	"errors"
	"sync"
	"time"

	"snack_chat_server/internal/config"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var (
	ErrConnClosed = errors.New("connection closed")
	ErrBufferFull = errors.New("connection send buffer exceeded")
)

var _ Handle = (*Conn)(nil)

// Conn 一条设备连接：一个读协程、一个写协程
// 下行通过带缓冲的 send 通道串行写出，慢连接写满即被关闭
type Conn struct {
	id     string
	userID uint
	ws     *websocket.Conn
	conf   config.WsConfig

	send chan []byte
	done chan struct{}
	once sync.Once
}

// NewConn 包装已完成升级的 websocket 连接
func NewConn(userID uint, ws *websocket.Conn, conf config.WsConfig) *Conn {
	return &Conn{
		id:     uuid.NewString(),
		userID: userID,
		ws:     ws,
		conf:   conf,
		send:   make(chan []byte, conf.SendBuffer),
		done:   make(chan struct{}),
	}
}

func (c *Conn) ID() string { return c.id }

func (c *Conn) UserID() uint { return c.userID }

// Done 连接关闭时被关闭
func (c *Conn) Done() <-chan struct{} { return c.done }

// Send 非阻塞入队
func (c *Conn) Send(payload []byte) error {
	select {
	case <-c.done:
		return ErrConnClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	default:
		zap.L().Warn("ws send buffer full, closing", zap.String("conn_id", c.id), zap.Uint("user_id", c.userID))
		c.closeWith(websocket.ClosePolicyViolation, "send buffer full")
		return ErrBufferFull
	}
}

// Close 可重复调用
func (c *Conn) Close() {
	c.closeWith(websocket.CloseNormalClosure, "bye")
}

func (c *Conn) closeWith(code int, reason string) {
	c.once.Do(func() {
		close(c.done)
		deadline := time.Now().Add(c.conf.WriteWaitDuration())
		_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), deadline)
		_ = c.ws.Close()
	})
}

// Run 启动写协程并在当前协程阻塞读取，连接断开后返回
// onMessage 在读协程内串行调用，同一连接上的命令按到达顺序处理
func (c *Conn) Run(onMessage func(raw []byte)) {
	go c.writeLoop()
	defer c.Close()

	c.ws.SetReadLimit(c.conf.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.conf.PongWaitDuration()))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.conf.PongWaitDuration()))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				zap.L().Info("ws read closed", zap.String("conn_id", c.id), zap.Error(err))
			}
			return
		}
		onMessage(raw)
	}
}

func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.conf.PingPeriodDuration())
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				zap.L().Debug("ws write failed", zap.String("conn_id", c.id), zap.Error(err))
				c.Close()
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.Close()
				return
			}
		}
	}
}

func (c *Conn) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.conf.WriteWaitDuration())); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
