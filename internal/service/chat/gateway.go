// Package chat WebSocket 网关
// 核心职责：
// 1. 握手鉴权后升级连接并登记到 Registry
// 2. 解析信封、校验命令、核对身份字段后分派给业务服务
// 3. 带 ackId 的命令回 ack，不带 ackId 的失败命令推送 commandFailed
package chat

import (
	"context"
	"net/http"
	"time"

	"snack_chat_server/internal/config"
	"snack_chat_server/internal/dao/mysql/repository"
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/gateway/websocket"
	"snack_chat_server/internal/infrastructure/middleware"
	"snack_chat_server/internal/service/broadcast"
	"snack_chat_server/internal/service/membership"
	"snack_chat_server/internal/service/message"
	"snack_chat_server/internal/service/presence"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/protocol"

	gorilla "github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// commandTimeout 单条命令的处理上限，超时后持久化调用被取消
const commandTimeout = 10 * time.Second

// Gateway 依赖全部通过构造函数注入
type Gateway struct {
	repos      *repository.Repositories
	cache      myredis.CacheService
	registry   *websocket.Registry
	bc         *broadcast.Broadcaster
	membership *membership.Service
	messages   *message.Service
	presence   *presence.Service
	conf       config.WsConfig
	upgrader   gorilla.Upgrader
}

// Deps Gateway 的依赖
type Deps struct {
	Repos      *repository.Repositories
	Cache      myredis.CacheService
	Registry   *websocket.Registry
	BC         *broadcast.Broadcaster
	Membership *membership.Service
	Messages   *message.Service
	Presence   *presence.Service
	Conf       config.WsConfig
}

func NewGateway(d Deps) *Gateway {
	return &Gateway{
		repos:      d.Repos,
		cache:      d.Cache,
		registry:   d.Registry,
		bc:         d.BC,
		membership: d.Membership,
		messages:   d.Messages,
		presence:   d.Presence,
		conf:       d.Conf,
		upgrader: gorilla.Upgrader{
			ReadBufferSize:  2048,
			WriteBufferSize: 2048,
			// 跨域由 CORS 中间件统一处理
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Authenticate 握手鉴权：token 有效、未注销且用户存在
func (g *Gateway) Authenticate(ctx context.Context, token string) (uint, error) {
	if token == "" {
		return 0, errorx.ErrUnauthorized
	}
	claims, err := middleware.Authenticate(ctx, g.cache, token)
	if err != nil {
		return 0, err
	}
	if _, err := g.repos.WithContext(ctx).User.FindByID(claims.UserID); err != nil {
		if errorx.IsNotFound(err) {
			return 0, errorx.New(errorx.CodeUnauthorized, "用户不存在")
		}
		zap.L().Error("find user on handshake", zap.Uint("user_id", claims.UserID), zap.Error(err))
		return 0, errorx.ErrServerBusy
	}
	return claims.UserID, nil
}

// Serve 升级连接并阻塞到连接断开
func (g *Gateway) Serve(w http.ResponseWriter, r *http.Request, userID uint) {
	ws, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade 失败时已经写回了 HTTP 错误
		zap.L().Warn("ws upgrade failed", zap.Uint("user_id", userID), zap.Error(err))
		return
	}
	conn := websocket.NewConn(userID, ws, g.conf)
	if err := g.registry.Register(userID, conn); err != nil {
		zap.L().Error("register connection", zap.Uint("user_id", userID), zap.Error(err))
		conn.Close()
		return
	}
	zap.L().Info("ws connected", zap.Uint("user_id", userID), zap.String("conn_id", conn.ID()))

	defer func() {
		g.registry.Unregister(userID, conn)
		zap.L().Info("ws disconnected", zap.Uint("user_id", userID), zap.String("conn_id", conn.ID()))
	}()

	ctx := context.WithoutCancel(r.Context())
	conn.Run(func(raw []byte) {
		g.Dispatch(ctx, conn, raw)
	})
}

// Dispatch 处理一帧客户端数据，在连接的读协程内同步执行
func (g *Gateway) Dispatch(ctx context.Context, h websocket.Handle, raw []byte) {
	env, cmd, err := protocol.DecodeCommand(raw)
	if err != nil {
		g.reply(h, env, nil, err)
		return
	}

	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	data, err := g.handle(ctx, h, cmd)
	if err != nil {
		zap.L().Debug("ws command failed",
			zap.String("event", env.Event),
			zap.Uint("user_id", h.UserID()),
			zap.Int("code", errorx.GetCode(err)),
			zap.Error(err))
	}
	g.reply(h, env, data, err)
}

// handle 返回成功应答的数据体
func (g *Gateway) handle(ctx context.Context, h websocket.Handle, cmd protocol.Command) (any, error) {
	userID := h.UserID()
	ok := protocol.OKAck{Status: protocol.StatusOK}

	switch c := cmd.(type) {
	case protocol.JoinChannel:
		if err := sameUser(userID, c.UserID, true); err != nil {
			return nil, err
		}
		if err := g.requireMember(ctx, userID, c.ChannelID); err != nil {
			return nil, err
		}
		g.registry.JoinRoom(h, c.ChannelID)
		g.bc.ToRoom(c.ChannelID, protocol.EventChannelUsersUpdated, protocol.ChannelUsersUpdated{ChannelID: c.ChannelID})
		return ok, nil

	case protocol.LeaveChannel:
		if err := sameUser(userID, c.UserID, false); err != nil {
			return nil, err
		}
		g.registry.LeaveRoom(h, c.ChannelID)
		return ok, nil

	case protocol.SendMessage:
		res, err := g.messages.Send(ctx, userID, c.ChannelID, c.Message.Content)
		if err != nil {
			return nil, err
		}
		return protocol.SendMessageAck{Status: protocol.StatusOK, SentTo: res.SentTo, Message: res.Message}, nil

	case protocol.Typing:
		if err := g.presence.Typing(ctx, userID, c.ChannelID, c.IsTyping, c.Content); err != nil {
			return nil, err
		}
		return ok, nil

	case protocol.StatusChange:
		if _, err := g.presence.SetStatus(ctx, userID, c.Status); err != nil {
			return nil, err
		}
		return ok, nil

	case protocol.InviteUser:
		// isModerator 由服务端自行判断，客户端的值忽略
		res, err := g.membership.Invite(ctx, userID, c.ChannelID, c.NickName)
		if err != nil {
			return nil, err
		}
		return protocol.TargetUserAck{Status: protocol.StatusOK, TargetUserID: res.TargetUserID}, nil

	case protocol.AcceptInvite:
		if _, err := g.membership.Accept(ctx, userID, c.ChannelID); err != nil {
			return nil, err
		}
		return ok, nil

	case protocol.DeclineInvite:
		if err := sameUser(userID, c.UserID, false); err != nil {
			return nil, err
		}
		if err := g.membership.Decline(ctx, userID, c.ChannelID); err != nil {
			return nil, err
		}
		return ok, nil

	case protocol.UserRevoked:
		if err := sameUser(userID, c.MyID, false); err != nil {
			return nil, err
		}
		target, err := g.membership.Revoke(ctx, userID, c.ChannelID, c.TargetNick)
		if err != nil {
			return nil, err
		}
		return protocol.TargetUserAck{Status: protocol.StatusOK, TargetUserID: target}, nil

	case protocol.UserKicked:
		if err := sameUser(userID, c.MyID, false); err != nil {
			return nil, err
		}
		res, err := g.membership.Kick(ctx, userID, c.ChannelID, c.TargetNick)
		if err != nil {
			return nil, err
		}
		return protocol.TargetUserAck{Status: protocol.StatusOK, TargetUserID: res.TargetUserID}, nil
	}
	return nil, errorx.Newf(errorx.CodeInvalidParam, "未处理的事件 %s", cmd.Event())
}

// reply 有 ackId 回 ack；没有 ackId 且失败时推送 commandFailed；没有 ackId 且成功时不回
func (g *Gateway) reply(h websocket.Handle, env protocol.Envelope, data any, err error) {
	var (
		payload []byte
		encErr  error
	)
	switch {
	case env.HasAck() && err != nil:
		payload, encErr = protocol.EncodeAck(*env.AckID, protocol.ErrorAckFrom(err))
	case env.HasAck():
		payload, encErr = protocol.EncodeAck(*env.AckID, data)
	case err != nil:
		failed := protocol.ErrorAckFrom(err)
		payload, encErr = protocol.Encode(protocol.EventCommandFailed, protocol.CommandFailed{
			Event:   env.Event,
			Message: failed.Message,
			Code:    failed.Code,
		})
	default:
		return
	}
	if encErr != nil {
		zap.L().Error("encode reply", zap.String("event", env.Event), zap.Error(encErr))
		return
	}
	if err := h.Send(payload); err != nil {
		zap.L().Debug("reply dropped", zap.String("conn_id", h.ID()), zap.Error(err))
	}
}

func (g *Gateway) requireMember(ctx context.Context, userID, channelID uint) error {
	row, err := g.repos.WithContext(ctx).Membership.Find(userID, channelID)
	if errorx.IsNotFound(err) || (err == nil && !row.Member) {
		return errorx.New(errorx.CodeForbidden, "你不是该频道成员")
	}
	if err != nil {
		zap.L().Error("find membership", zap.Uint("user_id", userID), zap.Uint("channel_id", channelID), zap.Error(err))
		return errorx.ErrServerBusy
	}
	return nil
}

// sameUser 身份字段必须与连接所属用户一致；optional 时 0 表示未携带
func sameUser(owner, claimed uint, required bool) error {
	if claimed == 0 && !required {
		return nil
	}
	if claimed != owner {
		return errorx.New(errorx.CodeForbidden, "身份与当前连接不一致")
	}
	return nil
}
