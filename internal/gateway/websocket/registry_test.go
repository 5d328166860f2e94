package websocket

import (
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	id     string
	userID uint
	sent   atomic.Int32
	closed atomic.Bool
}

func newFake(id string, userID uint) *fakeHandle { return &fakeHandle{id: id, userID: userID} }

func (f *fakeHandle) ID() string   { return f.id }
func (f *fakeHandle) UserID() uint { return f.userID }
func (f *fakeHandle) Send([]byte) error {
	f.sent.Add(1)
	return nil
}
func (f *fakeHandle) Close() { f.closed.Store(true) }

func TestRegisterIsIdempotentAndMultiDevice(t *testing.T) {
	r := NewRegistry()
	phone, laptop := newFake("phone", 1), newFake("laptop", 1)

	require.NoError(t, r.Register(1, phone))
	require.NoError(t, r.Register(1, phone))
	require.NoError(t, r.Register(1, laptop))

	assert.Len(t, r.ConnectionsOf(1), 2)
	assert.True(t, r.IsOnline(1))
}

func TestRegisterRejectsForeignHandle(t *testing.T) {
	r := NewRegistry()
	h := newFake("c1", 1)
	require.NoError(t, r.Register(1, h))

	assert.ErrorIs(t, r.Register(2, h), ErrHandleOwned)
	assert.Empty(t, r.ConnectionsOf(2))

	// 非所有者的注销不生效
	r.Unregister(2, h)
	assert.Len(t, r.ConnectionsOf(1), 1)
}

func TestUnregisterDropsEmptyUserAndRooms(t *testing.T) {
	r := NewRegistry()
	h := newFake("c1", 1)
	require.NoError(t, r.Register(1, h))
	r.JoinRoom(h, 10)
	r.JoinRoom(h, 11)
	assert.Len(t, r.RoomConnections(10), 1)

	r.Unregister(1, h)

	assert.Empty(t, r.ConnectionsOf(1))
	assert.False(t, r.IsOnline(1))
	assert.Empty(t, r.RoomConnections(10))
	assert.Empty(t, r.RoomConnections(11))
	r.mu.RLock()
	defer r.mu.RUnlock()
	assert.NotContains(t, r.users, uint(1))
	assert.Empty(t, r.rooms)
	assert.Empty(t, r.joined)
}

func TestSnapshotIsDetached(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(1, newFake("a", 1)))
	snap := r.ConnectionsOf(1)
	require.NoError(t, r.Register(1, newFake("b", 1)))
	assert.Len(t, snap, 1)
}

func TestRoomsJoinLeaveEvict(t *testing.T) {
	r := NewRegistry()
	a1, a2, b := newFake("a1", 1), newFake("a2", 1), newFake("b", 2)
	for _, h := range []*fakeHandle{a1, a2, b} {
		require.NoError(t, r.Register(h.userID, h))
		r.JoinRoom(h, 7)
	}
	assert.Len(t, r.RoomConnections(7), 3)

	// 未登记的连接不能进房间
	r.JoinRoom(newFake("ghost", 9), 7)
	assert.Len(t, r.RoomConnections(7), 3)

	r.LeaveRoom(b, 7)
	assert.Len(t, r.RoomConnections(7), 2)

	r.EvictUserFromRoom(1, 7)
	assert.Empty(t, r.RoomConnections(7))
	assert.Len(t, r.ConnectionsOf(1), 2)
}

func TestDropRoomAndCloseAll(t *testing.T) {
	r := NewRegistry()
	a, b := newFake("a", 1), newFake("b", 2)
	require.NoError(t, r.Register(1, a))
	require.NoError(t, r.Register(2, b))
	r.JoinRoom(a, 3)
	r.JoinRoom(b, 3)

	r.DropRoom(3)
	assert.Empty(t, r.RoomConnections(3))

	r.CloseAll()
	assert.True(t, a.closed.Load())
	assert.True(t, b.closed.Load())
	assert.Empty(t, r.ConnectionsOfUsers([]uint{1, 2}))
}

func TestConcurrentRegisterUnregisterBroadcast(t *testing.T) {
	r := NewRegistry()
	const users, devices = 20, 5

	var wg sync.WaitGroup
	for u := 1; u <= users; u++ {
		for d := 0; d < devices; d++ {
			wg.Add(1)
			go func(u uint, d int) {
				defer wg.Done()
				h := newFake(fmt.Sprintf("%d-%d", u, d), u)
				assert.NoError(t, r.Register(u, h))
				r.JoinRoom(h, 1)
				for _, c := range r.ConnectionsOfUsers([]uint{1, 2, 3}) {
					_ = c.Send([]byte("x"))
				}
				if d%2 == 0 {
					r.Unregister(u, h)
				}
			}(uint(u), d)
		}
	}
	wg.Wait()

	total := 0
	for u := 1; u <= users; u++ {
		total += len(r.ConnectionsOf(uint(u)))
	}
	assert.Equal(t, users*(devices/2), total)
	assert.Len(t, r.RoomConnections(1), users*(devices/2))
}
