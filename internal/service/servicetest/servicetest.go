// Package servicetest 为 service 层测试提供内存依赖与可观测的假连接
package servicetest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"snack_chat_server/internal/dao/mysql/mysqltest"
	"snack_chat_server/internal/dao/mysql/repository"
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/gateway/websocket"
	"snack_chat_server/internal/infrastructure/mq"
	"snack_chat_server/internal/model"
	"snack_chat_server/internal/service/broadcast"
	"snack_chat_server/pkg/protocol"

	"github.com/stretchr/testify/require"
)

// Env 一组相互连接好的测试依赖
type Env struct {
	Repos     *repository.Repositories
	Cache     *myredis.MemoryCache
	Registry  *websocket.Registry
	BC        *broadcast.Broadcaster
	Publisher *Publisher
}

func NewEnv(t testing.TB) *Env {
	t.Helper()
	repos := mysqltest.NewRepositories(t)
	reg := websocket.NewRegistry()
	return &Env{
		Repos:     repos,
		Cache:     myredis.NewMemoryCache(),
		Registry:  reg,
		BC:        broadcast.NewBroadcaster(repos, reg),
		Publisher: &Publisher{},
	}
}

// User 创建用户
func (e *Env) User(t testing.TB, nick string) *model.User {
	return mysqltest.SeedUser(t, e.Repos, nick)
}

var handleSeq atomic.Int64

// Connect 为用户登记一个假连接
func (e *Env) Connect(t testing.TB, userID uint) *Handle {
	t.Helper()
	h := &Handle{id: fmt.Sprintf("h%d", handleSeq.Add(1)), userID: userID}
	require.NoError(t, e.Registry.Register(userID, h))
	return h
}

// Handle 记录收到的每一帧
type Handle struct {
	id     string
	userID uint

	mu     sync.Mutex
	frames []protocol.Envelope
	closed bool
}

func (h *Handle) ID() string   { return h.id }
func (h *Handle) UserID() uint { return h.userID }

func (h *Handle) Send(payload []byte) error {
	var env protocol.Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, env)
	return nil
}

func (h *Handle) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
}

// Events 收到的事件名，按到达顺序
func (h *Handle) Events() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.frames))
	for _, f := range h.frames {
		out = append(out, f.Event)
	}
	return out
}

// Count 某个事件收到的次数
func (h *Handle) Count(event string) int {
	n := 0
	for _, e := range h.Events() {
		if e == event {
			n++
		}
	}
	return n
}

// Last 解码最后一条指定事件的数据
func (h *Handle) Last(t testing.TB, event string, out any) {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.frames) - 1; i >= 0; i-- {
		if h.frames[i].Event == event {
			require.NoError(t, json.Unmarshal(h.frames[i].Data, out))
			return
		}
	}
	t.Fatalf("no %s frame received; got %v", event, h.eventsLocked())
}

// Frames 全部原始帧
func (h *Handle) Frames() []protocol.Envelope {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]protocol.Envelope(nil), h.frames...)
}

func (h *Handle) Reset() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = nil
}

func (h *Handle) eventsLocked() []string {
	out := make([]string, 0, len(h.frames))
	for _, f := range h.frames {
		out = append(out, f.Event)
	}
	return out
}

// Publisher 记录发布的活动事件
type Publisher struct {
	mu     sync.Mutex
	events []mq.ActivityEvent
}

func (p *Publisher) Publish(_ context.Context, e mq.ActivityEvent) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, e)
}

func (p *Publisher) Close() error { return nil }

func (p *Publisher) Types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}
