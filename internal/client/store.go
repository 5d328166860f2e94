// Package client 终端客户端的本地状态与网络交互
// Store 合并推送与分页拉取，维护每个频道的一致视图；Client 负责驱动网络
package client

import (
	"sort"
	"strings"
	"sync"
	"time"

	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/pkg/protocol"
)

// Phase 频道消息的加载阶段
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseLoaded
)

func (p Phase) String() string {
	switch p {
	case PhaseLoading:
		return "loading"
	case PhaseLoaded:
		return "loaded"
	default:
		return "idle"
	}
}

// Entry 缓冲区中的一条消息
// Pending 为 true 表示尚未被服务端确认，此时 Message.ID 为 0，以 LocalID 标识
type Entry struct {
	Message protocol.Message
	Pending bool
	LocalID string
}

// Typing 某个用户正在输入的状态
type Typing struct {
	Nick    string
	Content string
	At      time.Time
}

type channelState struct {
	entries  []Entry
	phase    Phase
	page     int // 已加载到的页码，0 表示未加载
	lastPage int
	unread   int
	gen      uint64 // 每次重置加一，丢弃过期的分页结果
	roster   []respond.RosterItem
	typing   map[uint]Typing
}

// Store 客户端本地状态，所有修改都在同一把锁内串行完成
type Store struct {
	mu       sync.Mutex
	selfID   uint
	current  uint
	list     []respond.ChannelListItem
	channels map[uint]*channelState
}

func NewStore(selfID uint) *Store {
	return &Store{selfID: selfID, channels: make(map[uint]*channelState)}
}

// state 懒加载频道状态，调用方需持有锁
func (s *Store) state(channelID uint) *channelState {
	st := s.channels[channelID]
	if st == nil {
		st = &channelState{typing: make(map[uint]Typing)}
		s.channels[channelID] = st
	}
	return st
}

func (s *Store) SelfID() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selfID
}

// SetSelf 登录后设置当前用户
func (s *Store) SetSelf(id uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.selfID = id
}

func (s *Store) Current() uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

// SetCurrent 切换当前频道并清零其未读数，返回之前的频道
func (s *Store) SetCurrent(channelID uint) uint {
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.current
	s.current = channelID
	if channelID != 0 {
		s.state(channelID).unread = 0
	}
	return prev
}

// ClearCurrentIf 当前频道是 channelID 时清空，返回是否清空
func (s *Store) ClearCurrentIf(channelID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != channelID {
		return false
	}
	s.current = 0
	return true
}

// Forget 丢弃频道的全部本地状态
func (s *Store) Forget(channelID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channelID)
}

// Clear 退出登录时清空
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.current = 0
	s.list = nil
	s.channels = make(map[uint]*channelState)
}

// ==================== 频道列表 ====================

func (s *Store) SetChannels(list []respond.ChannelListItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.list = append([]respond.ChannelListItem(nil), list...)
}

func (s *Store) Channels() []respond.ChannelListItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]respond.ChannelListItem(nil), s.list...)
}

// Channel 按 id 查找列表中的频道
func (s *Store) Channel(channelID uint) (respond.ChannelListItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.list {
		if ch.ID == channelID {
			return ch, true
		}
	}
	return respond.ChannelListItem{}, false
}

// ChannelByName 按名称查找，名称大小写不敏感
func (s *Store) ChannelByName(name string) (respond.ChannelListItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ch := range s.list {
		if strings.EqualFold(ch.Name, name) {
			return ch, true
		}
	}
	return respond.ChannelListItem{}, false
}

// ==================== 消息缓冲 ====================

// Messages 返回缓冲区快照：已确认的按 id 升序，待确认的排在最后
func (s *Store) Messages(channelID uint) []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.channels[channelID]
	if st == nil {
		return nil
	}
	return append([]Entry(nil), st.entries...)
}

// AddIncoming 合并一条推送消息，已存在则忽略
// 返回是否新增；新增且不在当前频道、作者不是自己时未读数加一
func (s *Store) AddIncoming(msg protocol.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(msg.ChannelID)
	if !st.insertConfirmed(msg) {
		return false
	}
	if msg.ChannelID != s.current && msg.Author.ID != s.selfID {
		st.unread++
	}
	delete(st.typing, msg.Author.ID)
	return true
}

// AddPending 乐观写入一条待确认消息
func (s *Store) AddPending(channelID uint, localID string, msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(channelID)
	msg.ChannelID = channelID
	st.entries = append(st.entries, Entry{Message: msg, Pending: true, LocalID: localID})
}

// Confirm 用服务端消息替换待确认条目；推送先到时只需删除待确认条目
func (s *Store) Confirm(localID string, msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(msg.ChannelID)
	st.removePending(localID)
	st.insertConfirmed(msg)
}

// Rollback 发送失败时撤销待确认条目
func (s *Store) Rollback(channelID uint, localID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.channels[channelID]; st != nil {
		st.removePending(localID)
	}
}

// insertConfirmed 按 id 有序插入，重复 id 返回 false
func (st *channelState) insertConfirmed(msg protocol.Message) bool {
	confirmed := st.confirmedLen()
	i := sort.Search(confirmed, func(i int) bool { return st.entries[i].Message.ID >= msg.ID })
	if i < confirmed && st.entries[i].Message.ID == msg.ID {
		return false
	}
	st.entries = append(st.entries, Entry{})
	copy(st.entries[i+1:], st.entries[i:])
	st.entries[i] = Entry{Message: msg}
	return true
}

// confirmedLen 待确认条目总在末尾
func (st *channelState) confirmedLen() int {
	n := len(st.entries)
	for n > 0 && st.entries[n-1].Pending {
		n--
	}
	return n
}

func (st *channelState) removePending(localID string) {
	for i, e := range st.entries {
		if e.Pending && e.LocalID == localID {
			st.entries = append(st.entries[:i], st.entries[i+1:]...)
			return
		}
	}
}

// ==================== 分页 ====================

// BeginLoad 开始加载下一页；reset 为 true 时从第 1 页重新开始
// 正在加载或已无更多时 ok 为 false
func (s *Store) BeginLoad(channelID uint, reset bool) (gen uint64, page int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(channelID)
	if reset {
		st.reset()
	}
	switch {
	case st.phase == PhaseLoading:
		return 0, 0, false
	case st.phase == PhaseLoaded && st.page >= st.lastPage:
		return 0, 0, false
	}
	st.phase = PhaseLoading
	return st.gen, st.page + 1, true
}

// FinishLoad 合并一页历史，gen 过期时丢弃并返回 false
func (s *Store) FinishLoad(channelID uint, gen uint64, page int, res *respond.MessageListRespond) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.channels[channelID]
	if st == nil || st.gen != gen {
		return false
	}
	for _, m := range res.Data {
		st.insertConfirmed(m)
	}
	st.page = page
	st.lastPage = max(res.Meta.LastPage, 1)
	st.phase = PhaseLoaded
	return true
}

// FailLoad 加载失败，回到之前的阶段以便重试
func (s *Store) FailLoad(channelID uint, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.channels[channelID]
	if st == nil || st.gen != gen {
		return
	}
	if st.page == 0 {
		st.phase = PhaseIdle
	} else {
		st.phase = PhaseLoaded
	}
}

// Reset 作废已缓存的页，待确认条目保留
func (s *Store) Reset(channelID uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(channelID).reset()
}

// ResetAll 把除 except 以外的已缓存频道退回 idle，保留待确认条目
// 重连后这些缓存页不再可信，下次切换时重新加载第 1 页
func (s *Store) ResetAll(except uint) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, st := range s.channels {
		if id != except {
			st.reset()
		}
	}
}

func (st *channelState) reset() {
	st.gen++
	pending := st.entries[st.confirmedLen():]
	st.entries = append([]Entry(nil), pending...)
	st.phase = PhaseIdle
	st.page = 0
	st.lastPage = 0
}

func (s *Store) Phase(channelID uint) Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.channels[channelID]; st != nil {
		return st.phase
	}
	return PhaseIdle
}

// HasMore 还有更早的消息可以加载
func (s *Store) HasMore(channelID uint) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.channels[channelID]
	if st == nil || st.phase == PhaseIdle {
		return true
	}
	return st.page < st.lastPage
}

// ==================== 未读、成员、输入状态 ====================

func (s *Store) Unread(channelID uint) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.channels[channelID]; st != nil {
		return st.unread
	}
	return 0
}

func (s *Store) SetRoster(channelID uint, roster []respond.RosterItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state(channelID).roster = append([]respond.RosterItem(nil), roster...)
}

func (s *Store) Roster(channelID uint) []respond.RosterItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st := s.channels[channelID]; st != nil {
		return append([]respond.RosterItem(nil), st.roster...)
	}
	return nil
}

// UpdateStatus 更新成员列表中某个用户的在线状态
func (s *Store) UpdateStatus(channelID, userID uint, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.channels[channelID]
	if st == nil {
		return
	}
	for i := range st.roster {
		if st.roster[i].ID == userID {
			st.roster[i].ActivityStatus = status
		}
	}
}

func (s *Store) SetTyping(ev protocol.UserTyping) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.state(ev.ChannelID)
	if !ev.IsTyping {
		delete(st.typing, ev.UserID)
		return
	}
	st.typing[ev.UserID] = Typing{Nick: ev.Nick, Content: ev.Content, At: time.Now()}
}

func (s *Store) TypingIn(channelID uint) map[uint]Typing {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[uint]Typing)
	if st := s.channels[channelID]; st != nil {
		for id, t := range st.typing {
			out[id] = t
		}
	}
	return out
}
