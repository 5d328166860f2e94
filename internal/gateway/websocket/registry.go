// Package websocket 管理在线连接：用户到多设备连接的登记，以及频道房间订阅
package websocket

import (
	"errors"
	"sync"
)

// ErrHandleOwned 同一个连接不能登记到另一个用户名下
var ErrHandleOwned = errors.New("connection handle belongs to another user")

// Handle 一个设备连接的抽象，Registry 只依赖这几个方法
type Handle interface {
	ID() string
	UserID() uint
	// Send 非阻塞投递，缓冲区满时由实现方自行关闭连接
	Send(payload []byte) error
	Close()
}

// Registry 用户 -> 连接集合，以及频道房间 -> 连接集合
// 所有方法只在锁内修改 map，投递永远发生在锁外
type Registry struct {
	mu     sync.RWMutex
	users  map[uint]map[string]Handle   // userID -> handleID -> handle
	owners map[string]uint              // handleID -> userID
	rooms  map[uint]map[string]Handle   // channelID -> handleID -> handle
	joined map[string]map[uint]struct{} // handleID -> 已订阅的频道
}

func NewRegistry() *Registry {
	return &Registry{
		users:  make(map[uint]map[string]Handle),
		owners: make(map[string]uint),
		rooms:  make(map[uint]map[string]Handle),
		joined: make(map[string]map[uint]struct{}),
	}
}

// Register 登记连接，重复登记是幂等的
func (r *Registry) Register(userID uint, h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[h.ID()]; ok && owner != userID {
		return ErrHandleOwned
	}
	set := r.users[userID]
	if set == nil {
		set = make(map[string]Handle)
		r.users[userID] = set
	}
	set[h.ID()] = h
	r.owners[h.ID()] = userID
	return nil
}

// Unregister 移除连接并退出其全部房间，用户没有剩余连接时删除整个条目
func (r *Registry) Unregister(userID uint, h Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if owner, ok := r.owners[h.ID()]; !ok || owner != userID {
		return
	}
	delete(r.owners, h.ID())
	if set := r.users[userID]; set != nil {
		delete(set, h.ID())
		if len(set) == 0 {
			delete(r.users, userID)
		}
	}
	for channelID := range r.joined[h.ID()] {
		r.removeFromRoomLocked(channelID, h.ID())
	}
	delete(r.joined, h.ID())
}

// ConnectionsOf 返回用户当前连接的快照
func (r *Registry) ConnectionsOf(userID uint) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.users[userID])
}

// ConnectionsOfUsers 一次加锁取多个用户的连接快照
func (r *Registry) ConnectionsOfUsers(userIDs []uint) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Handle
	for _, id := range userIDs {
		for _, h := range r.users[id] {
			out = append(out, h)
		}
	}
	return out
}

// IsOnline 用户是否至少有一个连接
func (r *Registry) IsOnline(userID uint) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users[userID]) > 0
}

// JoinRoom 订阅频道房间，未登记的连接忽略
func (r *Registry) JoinRoom(h Handle, channelID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.owners[h.ID()]; !ok {
		return
	}
	room := r.rooms[channelID]
	if room == nil {
		room = make(map[string]Handle)
		r.rooms[channelID] = room
	}
	room[h.ID()] = h

	set := r.joined[h.ID()]
	if set == nil {
		set = make(map[uint]struct{})
		r.joined[h.ID()] = set
	}
	set[channelID] = struct{}{}
}

func (r *Registry) LeaveRoom(h Handle, channelID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removeFromRoomLocked(channelID, h.ID())
	if set := r.joined[h.ID()]; set != nil {
		delete(set, channelID)
	}
}

// RoomConnections 房间内连接的快照
func (r *Registry) RoomConnections(channelID uint) []Handle {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshot(r.rooms[channelID])
}

// EvictUserFromRoom 用户失去成员身份后，把其全部连接移出房间
func (r *Registry) EvictUserFromRoom(userID, channelID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.users[userID] {
		r.removeFromRoomLocked(channelID, id)
		if set := r.joined[id]; set != nil {
			delete(set, channelID)
		}
	}
}

// DropRoom 频道删除后清空房间
func (r *Registry) DropRoom(channelID uint) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id := range r.rooms[channelID] {
		if set := r.joined[id]; set != nil {
			delete(set, channelID)
		}
	}
	delete(r.rooms, channelID)
}

// CloseAll 关闭全部连接，用于进程退出
func (r *Registry) CloseAll() {
	r.mu.Lock()
	all := make([]Handle, 0, len(r.owners))
	for _, set := range r.users {
		for _, h := range set {
			all = append(all, h)
		}
	}
	r.users = make(map[uint]map[string]Handle)
	r.owners = make(map[string]uint)
	r.rooms = make(map[uint]map[string]Handle)
	r.joined = make(map[string]map[uint]struct{})
	r.mu.Unlock()

	for _, h := range all {
		h.Close()
	}
}

func (r *Registry) removeFromRoomLocked(channelID uint, handleID string) {
	room := r.rooms[channelID]
	if room == nil {
		return
	}
	delete(room, handleID)
	if len(room) == 0 {
		delete(r.rooms, channelID)
	}
}

func snapshot(set map[string]Handle) []Handle {
	out := make([]Handle, 0, len(set))
	for _, h := range set {
		out = append(out, h)
	}
	return out
}
