package client

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

// fakeAPI 内存中的服务端视图，History 按服务端规则分页：第 1 页为最新
type fakeAPI struct {
	mu          sync.Mutex
	channels    []respond.ChannelListItem
	messages    map[uint][]protocol.Message
	roster      map[uint][]respond.RosterItem
	listCalls   int
	rosterCalls map[uint]int
	historyLog  []int
	joinResult  *respond.JoinChannelRespond
	leaveResult *respond.LeaveRespond
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{
		messages:    make(map[uint][]protocol.Message),
		roster:      make(map[uint][]respond.RosterItem),
		rosterCalls: make(map[uint]int),
	}
}

func (f *fakeAPI) ListChannels(context.Context) ([]respond.ChannelListItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls++
	return append([]respond.ChannelListItem(nil), f.channels...), nil
}

func (f *fakeAPI) JoinOrCreate(_ context.Context, name string, public bool) (*respond.JoinChannelRespond, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.joinResult != nil {
		return f.joinResult, nil
	}
	item := respond.ChannelListItem{ID: uint(len(f.channels) + 100), Name: name, IsPublic: public, Member: true, IsModerator: true}
	f.channels = append(f.channels, item)
	return &respond.JoinChannelRespond{Channel: item, Created: true}, nil
}

func (f *fakeAPI) Leave(_ context.Context, channelID uint) (*respond.LeaveRespond, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, ch := range f.channels {
		if ch.ID == channelID {
			f.channels = append(f.channels[:i], f.channels[i+1:]...)
			break
		}
	}
	if f.leaveResult != nil {
		return f.leaveResult, nil
	}
	return &respond.LeaveRespond{}, nil
}

func (f *fakeAPI) History(_ context.Context, channelID uint, page, pageSize int) (*respond.MessageListRespond, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.historyLog = append(f.historyLog, page)
	all := f.messages[channelID]
	n := len(all)
	lastPage := max((n+pageSize-1)/pageSize, 1)
	end := max(n-(page-1)*pageSize, 0)
	start := max(end-pageSize, 0)
	return &respond.MessageListRespond{
		Data: append([]protocol.Message(nil), all[start:end]...),
		Meta: respond.PageMeta{CurrentPage: page, LastPage: lastPage, Total: int64(n), PageSize: pageSize},
	}, nil
}

func (f *fakeAPI) Roster(_ context.Context, channelID uint) ([]respond.RosterItem, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rosterCalls[channelID]++
	return f.roster[channelID], nil
}

func (f *fakeAPI) addMessages(channelID uint, msgs ...protocol.Message) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[channelID] = append(f.messages[channelID], msgs...)
}

// fakeTransport 记录发出的事件；respond 决定请求的应答
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	emitted   []protocol.Envelope
	requests  []protocol.Envelope
	respond   func(event string, data any) (protocol.AckResult, error)
	events    chan protocol.Envelope
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{
		connected: true,
		events:    make(chan protocol.Envelope, 16),
		respond: func(string, any) (protocol.AckResult, error) {
			return protocol.AckResult{Status: protocol.StatusOK}, nil
		},
	}
}

func push(t testing.TB, event string, data any) protocol.Envelope {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return protocol.Envelope{Event: event, Data: raw}
}

func (f *fakeTransport) Connect(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = true
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.connected = false
	return nil
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) Emit(event string, data any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.connected {
		return errorx.ErrOffline
	}
	raw, _ := json.Marshal(data)
	f.emitted = append(f.emitted, protocol.Envelope{Event: event, Data: raw})
	return nil
}

func (f *fakeTransport) Request(_ context.Context, event string, data any) (protocol.AckResult, error) {
	f.mu.Lock()
	if !f.connected {
		f.mu.Unlock()
		return protocol.AckResult{}, errorx.ErrOffline
	}
	raw, _ := json.Marshal(data)
	f.requests = append(f.requests, protocol.Envelope{Event: event, Data: raw})
	respond := f.respond
	f.mu.Unlock()
	return respond(event, data)
}

func (f *fakeTransport) Events() <-chan protocol.Envelope { return f.events }

func (f *fakeTransport) emittedEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.emitted))
	for _, e := range f.emitted {
		out = append(out, e.Event)
	}
	return out
}

func (f *fakeTransport) requestEvents() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.requests))
	for _, e := range f.requests {
		out = append(out, e.Event)
	}
	return out
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = nil
	f.requests = nil
}

type harness struct {
	api     *fakeAPI
	tr      *fakeTransport
	client  *Client
	mu      sync.Mutex
	notices []Notice
}

func newHarness(t *testing.T) *harness {
	h := &harness{api: newFakeAPI(), tr: newFakeTransport()}
	h.api.channels = []respond.ChannelListItem{
		{ID: 1, Name: "general", IsPublic: true, Member: true},
		{ID: 2, Name: "random", IsPublic: true, Member: true},
	}
	h.client = New(h.api, h.tr, NewStore(self), Options{PageSize: 2, Notifier: func(n Notice) {
		h.mu.Lock()
		defer h.mu.Unlock()
		h.notices = append(h.notices, n)
	}})
	require.NoError(t, h.client.Start(ctx))
	return h
}

func (h *harness) lastNotice(t *testing.T) Notice {
	t.Helper()
	h.mu.Lock()
	defer h.mu.Unlock()
	require.NotEmpty(t, h.notices)
	return h.notices[len(h.notices)-1]
}

func (h *harness) noticeCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.notices)
}

func TestSwitchChannelJoinsRoomAndLoadsOnce(t *testing.T) {
	h := newHarness(t)
	h.api.addMessages(1, msg(1, 1, 11), msg(2, 1, 11), msg(3, 1, 11))

	require.NoError(t, h.client.SwitchChannel(ctx, 1))
	assert.Equal(t, []string{protocol.EventJoinChannel}, h.tr.emittedEvents())
	assert.Equal(t, []uint{2, 3}, ids(h.client.Store().Messages(1)))
	assert.True(t, h.client.Store().HasMore(1))

	var join protocol.JoinChannel
	require.NoError(t, json.Unmarshal(h.tr.emitted[0].Data, &join))
	assert.Equal(t, protocol.JoinChannel{UserID: self, ChannelID: 1}, join)

	h.tr.reset()
	require.NoError(t, h.client.SwitchChannel(ctx, 2))
	assert.Equal(t, []string{protocol.EventLeaveChannel, protocol.EventJoinChannel}, h.tr.emittedEvents())

	require.NoError(t, h.client.SwitchChannel(ctx, 1))
	// 已加载过的频道不重新拉取
	assert.Equal(t, []int{1, 1}, h.api.historyLog)

	more, err := h.client.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, []uint{1, 2, 3}, ids(h.client.Store().Messages(1)))

	more, err = h.client.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, more)
}

func TestSwitchToInvitedChannelForbidden(t *testing.T) {
	h := newHarness(t)
	h.api.channels = append(h.api.channels, respond.ChannelListItem{ID: 3, Name: "secret", Invited: true})
	require.NoError(t, h.client.RefreshChannels(ctx))

	err := h.client.SwitchChannel(ctx, 3)
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))
	assert.Zero(t, h.client.Store().Current())
}

func TestNewMessageUnreadAndNotices(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 1))

	other := msg(5, 2, 11)
	other.ChannelName = "random"
	other.Author.Nick = "bob"
	h.client.HandleEvent(ctx, push(t, protocol.EventNewMessage, other))
	assert.Equal(t, 1, h.client.Store().Unread(2))
	assert.Equal(t, Notice{Kind: NoticeMessage, ChannelID: 2, Text: "New message in random"}, h.lastNotice(t))

	// 同一条消息重复推送不会重复计数
	h.client.HandleEvent(ctx, push(t, protocol.EventNewMessage, other))
	assert.Equal(t, 1, h.client.Store().Unread(2))

	mine := msg(6, 2, self)
	before := h.noticeCount()
	h.client.HandleEvent(ctx, push(t, protocol.EventNewMessage, mine))
	assert.Equal(t, 1, h.client.Store().Unread(2))
	assert.Equal(t, before, h.noticeCount())

	require.NoError(t, h.client.SwitchChannel(ctx, 2))
	assert.Zero(t, h.client.Store().Unread(2))
}

func TestMentionNoticeDiffersFromPlainMessage(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 1))

	here := msg(7, 1, 11)
	here.Author.Nick = "bob"
	here.Mentions = []protocol.MentionDTO{{MentionedID: self, Nick: "me"}}
	h.client.HandleEvent(ctx, push(t, protocol.EventNewMessage, here))
	assert.Equal(t, Notice{Kind: NoticeMention, ChannelID: 1, Text: "bob mentioned you!"}, h.lastNotice(t))

	away := msg(8, 2, 11)
	away.Author.Nick = "bob"
	away.ChannelName = "random"
	away.Mentions = []protocol.MentionDTO{{MentionedID: self, Nick: "me"}}
	h.client.HandleEvent(ctx, push(t, protocol.EventNewMessage, away))
	assert.Equal(t, Notice{Kind: NoticeMention, ChannelID: 2, Text: "bob mentioned you in random"}, h.lastNotice(t))
}

func TestSendWhileOfflineFailsImmediately(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 1))
	require.NoError(t, h.client.GoOffline(ctx))
	h.tr.reset()

	_, err := h.client.Send(ctx, "hello")
	require.Error(t, err)
	assert.True(t, errorx.IsRetryable(err))
	assert.Empty(t, h.client.Store().Messages(1))
	assert.Empty(t, h.tr.requestEvents())
}

func sendAck(m protocol.Message) protocol.AckResult {
	raw, _ := json.Marshal(m)
	return protocol.AckResult{Status: protocol.StatusOK, SentTo: 1, Message: raw}
}

func TestSendTwoPhaseConfirm(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 1))

	var pendingSeen bool
	h.tr.respond = func(event string, _ any) (protocol.AckResult, error) {
		entries := h.client.Store().Messages(1)
		pendingSeen = len(entries) == 1 && entries[0].Pending
		return sendAck(msg(10, 1, self)), nil
	}

	sent, err := h.client.Send(ctx, "  hello ")
	require.NoError(t, err)
	assert.True(t, pendingSeen)
	assert.EqualValues(t, 10, sent.ID)

	entries := h.client.Store().Messages(1)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Pending)
	assert.EqualValues(t, 10, entries[0].Message.ID)
}

func TestSendPushBeforeAckAppearsOnce(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 1))

	echo := msg(11, 1, self)
	h.tr.respond = func(string, any) (protocol.AckResult, error) {
		h.client.HandleEvent(ctx, push(t, protocol.EventNewMessage, echo))
		return sendAck(echo), nil
	}

	_, err := h.client.Send(ctx, "hello")
	require.NoError(t, err)
	assert.Equal(t, []uint{11}, ids(h.client.Store().Messages(1)))
}

func TestSendRollsBackOnErrorAck(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 1))
	h.tr.respond = func(string, any) (protocol.AckResult, error) {
		return protocol.AckResult{Status: protocol.StatusError, Code: errorx.CodeForbidden, Message: json.RawMessage(`"not a member"`)}, nil
	}

	_, err := h.client.Send(ctx, "hello")
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))
	assert.Empty(t, h.client.Store().Messages(1))

	h.tr.respond = func(string, any) (protocol.AckResult, error) {
		return protocol.AckResult{}, errorx.New(errorx.CodeTransport, "连接已断开")
	}
	_, err = h.client.Send(ctx, "hello")
	assert.True(t, errorx.IsRetryable(err))
	assert.Empty(t, h.client.Store().Messages(1))
}

func TestOfflineThenOnlineReconciles(t *testing.T) {
	h := newHarness(t)
	h.api.addMessages(1, msg(1, 1, 11), msg(2, 1, 11))
	require.NoError(t, h.client.SwitchChannel(ctx, 1))

	require.NoError(t, h.client.GoOffline(ctx))
	assert.Contains(t, h.tr.requestEvents(), protocol.EventStatusChange)
	assert.False(t, h.client.Online())

	// 离线期间服务端有了新消息
	h.api.addMessages(1, msg(3, 1, 12), msg(4, 1, 11))
	listBefore := h.api.listCalls
	rosterBefore := h.api.rosterCalls[1]
	h.tr.reset()

	require.NoError(t, h.client.GoOnline(ctx, "active"))

	assert.True(t, h.client.Online())
	assert.Equal(t, listBefore+1, h.api.listCalls)
	assert.Equal(t, rosterBefore+1, h.api.rosterCalls[1])
	assert.Equal(t, []string{protocol.EventJoinChannel}, h.tr.emittedEvents())
	assert.Equal(t, []string{protocol.EventStatusChange}, h.tr.requestEvents())

	// 缓冲区与服务端第 1 页完全一致
	assert.Equal(t, []uint{3, 4}, ids(h.client.Store().Messages(1)))
	assert.True(t, h.client.Store().HasMore(1))
}

func TestReconnectReloadsOtherCachedChannels(t *testing.T) {
	h := newHarness(t)
	h.api.addMessages(1, msg(1, 1, 11), msg(2, 1, 11))
	require.NoError(t, h.client.SwitchChannel(ctx, 1))
	require.NoError(t, h.client.SwitchChannel(ctx, 2))

	require.NoError(t, h.client.GoOffline(ctx))
	h.api.addMessages(1, msg(3, 1, 12), msg(4, 1, 11))
	require.NoError(t, h.client.GoOnline(ctx, "active"))

	// 非当前频道的缓存页在重连后作废
	assert.Equal(t, PhaseIdle, h.client.Store().Phase(1))

	require.NoError(t, h.client.SwitchChannel(ctx, 1))
	assert.Equal(t, []uint{3, 4}, ids(h.client.Store().Messages(1)))
	assert.True(t, h.client.Store().HasMore(1))

	more, err := h.client.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, more)
	assert.Equal(t, []uint{1, 2, 3, 4}, ids(h.client.Store().Messages(1)))
}

func TestReconnectDropsChannelNoLongerMember(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 2))
	h.api.channels = h.api.channels[:1]

	h.client.HandleEvent(ctx, protocol.Envelope{Event: EventConnected})

	assert.Zero(t, h.client.Store().Current())
	assert.Equal(t, NoticeInfo, h.lastNotice(t).Kind)
}

func TestKickedSelfClearsCurrentAndRefreshesList(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 1))
	listBefore := h.api.listCalls

	h.client.HandleEvent(ctx, push(t, protocol.EventUserWasKicked, protocol.UserWasKicked{ChannelID: 1, UserID: self}))

	assert.Zero(t, h.client.Store().Current())
	assert.Equal(t, listBefore+1, h.api.listCalls)
	assert.Equal(t, Notice{Kind: NoticeWarning, ChannelID: 1, Text: "You were kicked from #general"}, h.lastNotice(t))
}

func TestRevokedOtherRefreshesRosterOnly(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 1))
	listBefore := h.api.listCalls
	rosterBefore := h.api.rosterCalls[1]

	h.client.HandleEvent(ctx, push(t, protocol.EventUserWasRevoked, protocol.UserWasRevoked{ChannelID: 1, UserID: 99}))

	assert.EqualValues(t, 1, h.client.Store().Current())
	assert.Equal(t, listBefore, h.api.listCalls)
	assert.Equal(t, rosterBefore+1, h.api.rosterCalls[1])
}

func TestChannelDeletedClearsCurrent(t *testing.T) {
	h := newHarness(t)
	h.api.addMessages(2, msg(1, 2, 11))
	require.NoError(t, h.client.SwitchChannel(ctx, 2))
	h.api.channels = h.api.channels[:1]

	h.client.HandleEvent(ctx, push(t, protocol.EventChannelDeleted, protocol.ChannelDeleted{ChannelID: 2}))

	assert.Zero(t, h.client.Store().Current())
	assert.Empty(t, h.client.Store().Messages(2))
	_, ok := h.client.Store().Channel(2)
	assert.False(t, ok)
}

func TestChannelUsersUpdatedOnlyForCurrent(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.client.SwitchChannel(ctx, 1))
	before1, before2 := h.api.rosterCalls[1], h.api.rosterCalls[2]

	h.client.HandleEvent(ctx, push(t, protocol.EventChannelUsersUpdated, protocol.ChannelUsersUpdated{ChannelID: 2}))
	h.client.HandleEvent(ctx, push(t, protocol.EventChannelUsersUpdated, protocol.ChannelUsersUpdated{ChannelID: 1}))

	assert.Equal(t, before1+1, h.api.rosterCalls[1])
	assert.Equal(t, before2, h.api.rosterCalls[2])
}

func TestRunConsumesEvents(t *testing.T) {
	h := newHarness(t)
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		h.client.Run(runCtx)
		close(done)
	}()

	h.tr.events <- push(t, protocol.EventNewMessage, msg(1, 2, 11))
	require.Eventually(t, func() bool { return h.client.Store().Unread(2) == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	<-done
}
