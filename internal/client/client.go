package client

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/protocol"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NoticeKind 提示的种类
type NoticeKind int

const (
	NoticeInfo NoticeKind = iota
	NoticeMessage
	NoticeMention
	NoticeWarning
	NoticeError
)

// Notice 推给界面的一条提示
type Notice struct {
	Kind      NoticeKind
	ChannelID uint
	Text      string
}

// Notifier 接收提示，由界面实现
type Notifier func(Notice)

// Client 驱动 Store：用户操作走 REST 或 Transport，推送事件合并进 Store
type Client struct {
	api      ChannelAPI
	tr       Transport
	store    *Store
	notify   Notifier
	onMsg    func(protocol.Message)
	pageSize int

	mu      sync.Mutex
	offline bool // 用户主动切到 offline
}

// Options Client 的可选参数
type Options struct {
	PageSize int
	Notifier Notifier
	// OnMessage 当前频道新增一条消息时回调，用于界面渲染
	OnMessage func(protocol.Message)
}

func New(api ChannelAPI, tr Transport, store *Store, opts Options) *Client {
	if opts.PageSize <= 0 {
		opts.PageSize = constants.DEFAULT_PAGE_SIZE
	}
	if opts.Notifier == nil {
		opts.Notifier = func(Notice) {}
	}
	return &Client{api: api, tr: tr, store: store, notify: opts.Notifier, onMsg: opts.OnMessage, pageSize: opts.PageSize}
}

func (c *Client) Store() *Store { return c.store }

// Online 用户没有切到 offline 且连接可用
func (c *Client) Online() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.offline && c.tr.Connected()
}

// Run 持续消费推送事件，ctx 结束时返回
func (c *Client) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case env := <-c.tr.Events():
			c.HandleEvent(ctx, env)
		}
	}
}

// ==================== 连接状态 ====================

// Start 首次连接并同步频道列表
func (c *Client) Start(ctx context.Context) error {
	if err := c.tr.Connect(ctx); err != nil {
		return err
	}
	return c.reconcile(ctx)
}

// GoOffline 通知服务端后断开连接，之后的发送立即失败
func (c *Client) GoOffline(ctx context.Context) error {
	if c.tr.Connected() {
		if _, err := c.tr.Request(ctx, protocol.EventStatusChange, protocol.StatusChange{Status: constants.STATUS_OFFLINE}); err != nil {
			zap.L().Warn("report offline status failed", zap.Error(err))
		}
	}
	c.mu.Lock()
	c.offline = true
	c.mu.Unlock()
	return c.tr.Close()
}

// GoOnline 重新连接并与服务端对账
func (c *Client) GoOnline(ctx context.Context, status string) error {
	if err := c.tr.Connect(ctx); err != nil {
		return err
	}
	c.mu.Lock()
	c.offline = false
	c.mu.Unlock()

	if err := c.reconcile(ctx); err != nil {
		return err
	}
	return c.requestOK(ctx, protocol.EventStatusChange, protocol.StatusChange{Status: status})
}

// SetStatus offline 会断开连接，从 offline 切回时重新连接
func (c *Client) SetStatus(ctx context.Context, status string) error {
	switch {
	case status == constants.STATUS_OFFLINE:
		return c.GoOffline(ctx)
	case !c.Online():
		return c.GoOnline(ctx, status)
	default:
		return c.requestOK(ctx, protocol.EventStatusChange, protocol.StatusChange{Status: status})
	}
}

// reconcile 重连后的对账：刷新频道列表，当前频道重载第 1 页、成员列表并重新订阅房间
// 本地缓存的页不再可信
func (c *Client) reconcile(ctx context.Context) error {
	if err := c.RefreshChannels(ctx); err != nil {
		return err
	}
	current := c.store.Current()
	c.store.ResetAll(current)
	if current == 0 {
		return nil
	}
	if ch, ok := c.store.Channel(current); !ok || !ch.Member {
		c.store.ClearCurrentIf(current)
		c.store.Forget(current)
		return nil
	}
	if err := c.load(ctx, current, true); err != nil {
		return err
	}
	c.refreshRoster(ctx, current)
	c.emitRoom(protocol.EventJoinChannel, current)
	return nil
}

// ==================== 频道 ====================

// RefreshChannels 拉取频道列表（含待接受的邀请）
func (c *Client) RefreshChannels(ctx context.Context) error {
	list, err := c.api.ListChannels(ctx)
	if err != nil {
		return err
	}
	c.store.SetChannels(list)
	return nil
}

// SwitchChannel 切换当前频道：清零未读，退出旧房间、加入新房间，首次进入时加载第 1 页
func (c *Client) SwitchChannel(ctx context.Context, channelID uint) error {
	ch, ok := c.store.Channel(channelID)
	if !ok {
		return errorx.New(errorx.CodeNotFound, "频道不存在")
	}
	if !ch.Member {
		return errorx.New(errorx.CodeForbidden, "请先接受邀请")
	}

	prev := c.store.SetCurrent(channelID)
	if prev != 0 && prev != channelID {
		c.emitRoom(protocol.EventLeaveChannel, prev)
	}
	c.emitRoom(protocol.EventJoinChannel, channelID)

	if c.store.Phase(channelID) == PhaseIdle {
		if err := c.load(ctx, channelID, false); err != nil {
			return err
		}
	}
	c.refreshRoster(ctx, channelID)
	return nil
}

// LoadMore 加载当前频道更早的一页，没有更多时返回 false
func (c *Client) LoadMore(ctx context.Context) (bool, error) {
	current := c.store.Current()
	if current == 0 {
		return false, errorx.New(errorx.CodeInvalidParam, "请先选择频道")
	}
	if !c.store.HasMore(current) {
		return false, nil
	}
	if err := c.load(ctx, current, false); err != nil {
		return false, err
	}
	return true, nil
}

// load reset 为 true 时丢弃缓存从第 1 页开始
func (c *Client) load(ctx context.Context, channelID uint, reset bool) error {
	gen, page, ok := c.store.BeginLoad(channelID, reset)
	if !ok {
		return nil
	}
	res, err := c.api.History(ctx, channelID, page, c.pageSize)
	if err != nil {
		c.store.FailLoad(channelID, gen)
		return err
	}
	if !c.store.FinishLoad(channelID, gen, page, res) {
		zap.L().Debug("discard stale page", zap.Uint("channel_id", channelID), zap.Int("page", page))
	}
	return nil
}

func (c *Client) refreshRoster(ctx context.Context, channelID uint) {
	roster, err := c.api.Roster(ctx, channelID)
	if err != nil {
		zap.L().Warn("load roster failed", zap.Uint("channel_id", channelID), zap.Error(err))
		return
	}
	c.store.SetRoster(channelID, roster)
}

// emitRoom 房间订阅只影响推送，离线时由重连对账补上
func (c *Client) emitRoom(event string, channelID uint) {
	var data any
	switch event {
	case protocol.EventJoinChannel:
		data = protocol.JoinChannel{UserID: c.store.SelfID(), ChannelID: channelID}
	default:
		data = protocol.LeaveChannel{ChannelID: channelID, UserID: c.store.SelfID()}
	}
	if err := c.tr.Emit(event, data); err != nil && !errorx.IsRetryable(err) {
		zap.L().Warn("emit room event failed", zap.String("event", event), zap.Error(err))
	}
}

// JoinOrCreate 加入或创建频道并切换过去
func (c *Client) JoinOrCreate(ctx context.Context, name string, public bool) (*respond.JoinChannelRespond, error) {
	res, err := c.api.JoinOrCreate(ctx, name, public)
	if err != nil {
		return nil, err
	}
	if err := c.RefreshChannels(ctx); err != nil {
		return res, err
	}
	return res, c.SwitchChannel(ctx, res.Channel.ID)
}

// Leave 退出当前频道，管理员退出会删除频道
func (c *Client) Leave(ctx context.Context) (*respond.LeaveRespond, error) {
	current := c.store.Current()
	if current == 0 {
		return nil, errorx.New(errorx.CodeInvalidParam, "请先选择频道")
	}
	res, err := c.api.Leave(ctx, current)
	if err != nil {
		return nil, err
	}
	c.emitRoom(protocol.EventLeaveChannel, current)
	c.store.ClearCurrentIf(current)
	c.store.Forget(current)
	return res, c.RefreshChannels(ctx)
}

// Invite 邀请用户加入当前频道
func (c *Client) Invite(ctx context.Context, nick string) (uint, error) {
	current, err := c.requireCurrent()
	if err != nil {
		return 0, err
	}
	res, err := c.request(ctx, protocol.EventInviteUser, protocol.InviteUser{ChannelID: current, NickName: nick})
	if err != nil {
		return 0, err
	}
	return res.TargetUserID, nil
}

// Revoke 私有频道移除成员
func (c *Client) Revoke(ctx context.Context, nick string) (uint, error) {
	current, err := c.requireCurrent()
	if err != nil {
		return 0, err
	}
	res, err := c.request(ctx, protocol.EventUserRevoked,
		protocol.UserRevoked{MyID: c.store.SelfID(), ChannelID: current, TargetNick: nick})
	if err != nil {
		return 0, err
	}
	return res.TargetUserID, nil
}

// Kick 公开频道踢人
func (c *Client) Kick(ctx context.Context, nick string) (uint, error) {
	current, err := c.requireCurrent()
	if err != nil {
		return 0, err
	}
	res, err := c.request(ctx, protocol.EventUserKicked,
		protocol.UserKicked{MyID: c.store.SelfID(), ChannelID: current, TargetNick: nick})
	if err != nil {
		return 0, err
	}
	return res.TargetUserID, nil
}

// Accept 接受邀请并切换到该频道
func (c *Client) Accept(ctx context.Context, channelID uint) error {
	if err := c.requestOK(ctx, protocol.EventAcceptInvite, protocol.AcceptInvite{ChannelID: channelID}); err != nil {
		return err
	}
	if err := c.RefreshChannels(ctx); err != nil {
		return err
	}
	return c.SwitchChannel(ctx, channelID)
}

// Decline 拒绝邀请
func (c *Client) Decline(ctx context.Context, channelID uint) error {
	if err := c.requestOK(ctx, protocol.EventDeclineInvite,
		protocol.DeclineInvite{ChannelID: channelID, UserID: c.store.SelfID()}); err != nil {
		return err
	}
	c.store.Forget(channelID)
	return c.RefreshChannels(ctx)
}

// Typing 输入状态，失败不影响界面
func (c *Client) Typing(isTyping bool, preview string) {
	current := c.store.Current()
	if current == 0 || !c.Online() {
		return
	}
	_ = c.tr.Emit(protocol.EventTyping, protocol.Typing{ChannelID: current, IsTyping: isTyping, Content: preview})
}

// ==================== 发送 ====================

// Send 两阶段发送：先写入待确认条目，ack 成功后用服务端消息替换，失败则撤销
// 离线时直接失败，不写入任何本地状态
func (c *Client) Send(ctx context.Context, content string) (protocol.Message, error) {
	current, err := c.requireCurrent()
	if err != nil {
		return protocol.Message{}, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return protocol.Message{}, errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
	}
	if !c.Online() {
		return protocol.Message{}, errorx.ErrOffline
	}

	localID := uuid.NewString()
	c.store.AddPending(current, localID, protocol.Message{
		Content: content,
		Author:  protocol.Author{ID: c.store.SelfID()},
	})

	res, err := c.request(ctx, protocol.EventSendMessage, protocol.SendMessage{
		ChannelID: current,
		Message:   protocol.OutgoingMessage{Content: content},
	})
	if err != nil {
		c.store.Rollback(current, localID)
		return protocol.Message{}, err
	}
	msg, err := res.SentMessage()
	if err != nil || msg.ID == 0 {
		c.store.Rollback(current, localID)
		return protocol.Message{}, errorx.Wrap(err, errorx.CodeTransport, "无法解析发送结果")
	}
	c.store.Confirm(localID, msg)
	return msg, nil
}

func (c *Client) requireCurrent() (uint, error) {
	current := c.store.Current()
	if current == 0 {
		return 0, errorx.New(errorx.CodeInvalidParam, "请先选择频道")
	}
	return current, nil
}

// request 发送命令并把失败应答转成 CodeError
func (c *Client) request(ctx context.Context, event string, data any) (protocol.AckResult, error) {
	if c.isOffline() {
		return protocol.AckResult{}, errorx.ErrOffline
	}
	res, err := c.tr.Request(ctx, event, data)
	if err != nil {
		return res, err
	}
	return res, res.Err()
}

func (c *Client) requestOK(ctx context.Context, event string, data any) error {
	_, err := c.request(ctx, event, data)
	return err
}

func (c *Client) isOffline() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.offline
}

// ==================== 推送事件 ====================

// HandleEvent 把一条推送合并进本地状态
func (c *Client) HandleEvent(ctx context.Context, env protocol.Envelope) {
	switch env.Event {
	case protocol.EventNewMessage:
		var msg protocol.Message
		if decode(env, &msg) {
			c.onMessage(msg)
		}
	case protocol.EventChannelUsersUpdated:
		var ev protocol.ChannelUsersUpdated
		if decode(env, &ev) && ev.ChannelID == c.store.Current() {
			c.refreshRoster(ctx, ev.ChannelID)
		}
	case protocol.EventUserStatusUpdate:
		var ev protocol.UserStatusUpdate
		if decode(env, &ev) {
			c.store.UpdateStatus(ev.ChannelID, ev.UserID, ev.Status)
		}
	case protocol.EventUserTyping:
		var ev protocol.UserTyping
		if decode(env, &ev) {
			c.store.SetTyping(ev)
		}
	case protocol.EventChannelDeleted:
		var ev protocol.ChannelDeleted
		if decode(env, &ev) {
			c.removed(ctx, ev.ChannelID, "Channel %s was deleted")
		}
	case protocol.EventUserWasKicked:
		var ev protocol.UserWasKicked
		if decode(env, &ev) {
			c.onTargeted(ctx, ev.ChannelID, ev.UserID, "You were kicked from %s")
		}
	case protocol.EventUserWasRevoked:
		var ev protocol.UserWasRevoked
		if decode(env, &ev) {
			c.onTargeted(ctx, ev.ChannelID, ev.UserID, "Your membership in %s was revoked")
		}
	case protocol.EventUserWasInvited:
		var ev protocol.UserWasInvited
		if decode(env, &ev) {
			if err := c.RefreshChannels(ctx); err != nil {
				zap.L().Warn("refresh channels failed", zap.Error(err))
			}
			c.notify(Notice{Kind: NoticeInfo, ChannelID: ev.ChannelID,
				Text: fmt.Sprintf("%s invited you to #%s", ev.InvitedBy, ev.ChannelName)})
		}
	case protocol.EventCommandFailed:
		var ev protocol.CommandFailed
		if decode(env, &ev) {
			c.notify(Notice{Kind: NoticeError, Text: fmt.Sprintf("%s: %s", ev.Event, ev.Message)})
		}
	case EventConnected:
		if c.isOffline() {
			return
		}
		if err := c.reconcile(ctx); err != nil {
			c.notify(Notice{Kind: NoticeError, Text: "Resync failed: " + err.Error()})
			return
		}
		c.notify(Notice{Kind: NoticeInfo, Text: "Reconnected"})
	case EventDisconnected:
		c.notify(Notice{Kind: NoticeWarning, Text: "Connection lost. Retrying..."})
	case EventReconnectFailed:
		c.notify(Notice{Kind: NoticeError, Text: "Could not reach the server. Go online again later"})
	default:
		zap.L().Debug("ignore event", zap.String("event", env.Event))
	}
}

// onMessage 新消息入缓冲；@ 到自己时发出区别于普通消息的提示
func (c *Client) onMessage(msg protocol.Message) {
	if !c.store.AddIncoming(msg) {
		return
	}
	inCurrent := msg.ChannelID == c.store.Current()
	if inCurrent && c.onMsg != nil {
		c.onMsg(msg)
	}
	self := c.store.SelfID()
	if msg.Author.ID == self {
		return
	}
	where := msg.ChannelName
	if where == "" {
		where = fmt.Sprintf("channel #%d", msg.ChannelID)
	}

	mentioned := false
	for _, m := range msg.Mentions {
		if m.MentionedID == self {
			mentioned = true
			break
		}
	}
	switch {
	case mentioned && inCurrent:
		c.notify(Notice{Kind: NoticeMention, ChannelID: msg.ChannelID, Text: msg.Author.Nick + " mentioned you!"})
	case mentioned:
		c.notify(Notice{Kind: NoticeMention, ChannelID: msg.ChannelID,
			Text: fmt.Sprintf("%s mentioned you in %s", msg.Author.Nick, where)})
	case !inCurrent:
		c.notify(Notice{Kind: NoticeMessage, ChannelID: msg.ChannelID, Text: "New message in " + where})
	}
}

// onTargeted 踢出/撤销：针对自己时按频道移除处理，针对别人只刷新成员列表
func (c *Client) onTargeted(ctx context.Context, channelID, userID uint, format string) {
	if userID == c.store.SelfID() {
		c.removed(ctx, channelID, format)
		return
	}
	if channelID == c.store.Current() {
		c.refreshRoster(ctx, channelID)
	}
}

func (c *Client) removed(ctx context.Context, channelID uint, format string) {
	name := fmt.Sprintf("#%d", channelID)
	if ch, ok := c.store.Channel(channelID); ok {
		name = "#" + ch.Name
	}
	c.store.ClearCurrentIf(channelID)
	c.store.Forget(channelID)
	if err := c.RefreshChannels(ctx); err != nil {
		zap.L().Warn("refresh channels failed", zap.Error(err))
	}
	c.notify(Notice{Kind: NoticeWarning, ChannelID: channelID, Text: fmt.Sprintf(format, name)})
}

func decode(env protocol.Envelope, out any) bool {
	if err := json.Unmarshal(env.Data, out); err != nil {
		zap.L().Warn("decode push failed", zap.String("event", env.Event), zap.Error(err))
		return false
	}
	return true
}
