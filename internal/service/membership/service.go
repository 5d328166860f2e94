// Package membership 频道成员状态机
// 每次状态迁移在一个事务内完成：加锁读取判定合法性，再整行 upsert
// 提交之后才清缓存、清理房间、推送事件、发布活动
package membership

import (
	"context"
	"errors"

	"snack_chat_server/internal/dao/mysql/repository"
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/infrastructure/mq"
	"snack_chat_server/internal/model"
	"snack_chat_server/internal/service/broadcast"
	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/protocol"

	"go.uber.org/zap"
)

// Rooms 成员变化时需要同步清理的房间订阅
type Rooms interface {
	EvictUserFromRoom(userID, channelID uint)
	DropRoom(channelID uint)
}

type Service struct {
	repos     *repository.Repositories
	cache     myredis.CacheService
	bc        *broadcast.Broadcaster
	rooms     Rooms
	publisher mq.ActivityPublisher
}

func NewService(repos *repository.Repositories, cache myredis.CacheService, bc *broadcast.Broadcaster,
	rooms Rooms, publisher mq.ActivityPublisher) *Service {
	return &Service{repos: repos, cache: cache, bc: bc, rooms: rooms, publisher: publisher}
}

// JoinResult JoinOrCreate 的结果
type JoinResult struct {
	Channel       *model.Channel
	Created       bool
	AlreadyMember bool
}

// InviteResult Invite 的结果
type InviteResult struct {
	Channel      *model.Channel
	TargetUserID uint
}

// LeaveResult Deleted 为 true 表示管理员退出导致频道被删除
type LeaveResult struct {
	Deleted bool
}

// KickResult 被踢者更新后的封禁计数
type KickResult struct {
	TargetUserID uint
	Ban          int
}

// JoinOrCreate 频道不存在则创建并成为管理员；公开频道直接加入
func (s *Service) JoinOrCreate(ctx context.Context, userID uint, name string, isPublic bool) (*JoinResult, error) {
	name, err := NormalizeChannelName(name)
	if err != nil {
		return nil, err
	}

	var res JoinResult
	err = s.repos.WithContext(ctx).Transaction(func(tx *repository.Repositories) error {
		channel, err := tx.Channel.FindByNameForUpdate(name)
		if errorx.IsNotFound(err) {
			channel, err = tx.Channel.Create(name, userID, isPublic)
			if err != nil {
				return err // 并发同名创建返回 CodeConflict
			}
			res.Channel, res.Created = channel, true
			return tx.Membership.Upsert(userID, channel.ID, stateFor(StateMember, 0))
		}
		if err != nil {
			return err
		}
		res.Channel = channel

		row, err := findForUpdate(tx, userID, channel.ID)
		if err != nil {
			return err
		}
		switch {
		case Derive(row) == StateMember:
			res.AlreadyMember = true
			return nil
		case !channel.IsPublic && Derive(row) == StateInvited:
			return conflict("你已收到该频道的邀请，请先接受邀请", row)
		case !channel.IsPublic:
			return errorx.New(errorx.CodeForbidden, "私有频道只能通过邀请加入")
		case banOf(row) >= constants.MAX_BAN:
			return errorx.New(errorx.CodeForbidden, "你已被永久禁止加入该频道")
		}
		return tx.Membership.Upsert(userID, channel.ID, stateFor(StateMember, banOf(row)))
	})
	if err != nil {
		return nil, s.fail("join or create channel", err, zap.Uint("user_id", userID), zap.String("name", name))
	}

	if !res.AlreadyMember {
		s.invalidate(ctx, userID)
		s.bc.ToRoom(res.Channel.ID, protocol.EventChannelUsersUpdated, protocol.ChannelUsersUpdated{ChannelID: res.Channel.ID})
		if res.Created {
			s.publish(ctx, mq.ActivityEvent{Type: mq.ActivityChannelCreated, ChannelID: res.Channel.ID, UserID: userID})
		} else {
			s.publishState(ctx, res.Channel.ID, userID, StateMember)
		}
	}
	return &res, nil
}

// Invite 邀请用户；管理员邀请会清零封禁计数
func (s *Service) Invite(ctx context.Context, actorID, channelID uint, targetNick string) (*InviteResult, error) {
	repos := s.repos.WithContext(ctx)
	target, err := repos.User.FindByNick(targetNick)
	if errorx.IsNotFound(err) {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "用户 %s 不存在", targetNick)
	}
	if err != nil {
		return nil, s.fail("find invite target", err)
	}
	actor, err := repos.User.FindByID(actorID)
	if err != nil {
		return nil, s.fail("find inviter", err, zap.Uint("user_id", actorID))
	}

	var channel *model.Channel
	err = repos.Transaction(func(tx *repository.Repositories) error {
		var err error
		channel, err = tx.Channel.FindByIDForUpdate(channelID)
		if err != nil {
			return err
		}
		actorRow, err := findForUpdate(tx, actorID, channelID)
		if err != nil {
			return err
		}
		if Derive(actorRow) != StateMember {
			return errorx.New(errorx.CodeForbidden, "只有频道成员可以邀请")
		}
		isModerator := channel.ModeratorID == actorID
		if !channel.IsPublic && !isModerator {
			return errorx.New(errorx.CodeForbidden, "私有频道只有管理员可以邀请")
		}

		row, err := findForUpdate(tx, target.ID, channelID)
		if err != nil {
			return err
		}
		switch Derive(row) {
		case StateMember:
			return conflict("对方已是频道成员", row)
		case StateInvited:
			return conflict("对方已被邀请", row)
		}
		ban := banOf(row)
		if ban >= constants.MAX_BAN && !isModerator {
			return errorx.New(errorx.CodeForbidden, "对方已被永久封禁，只有管理员可以邀请")
		}
		if isModerator {
			ban = 0
		}
		return tx.Membership.Upsert(target.ID, channelID, stateFor(StateInvited, ban))
	})
	if err != nil {
		return nil, s.fail("invite", err, zap.Uint("channel_id", channelID), zap.Uint("target_id", target.ID))
	}

	s.invalidate(ctx, target.ID)
	s.bc.ToUser(target.ID, protocol.EventUserWasInvited, protocol.UserWasInvited{
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
		InvitedBy:   actor.Nick,
	})
	s.publishState(ctx, channelID, target.ID, StateInvited)
	return &InviteResult{Channel: channel, TargetUserID: target.ID}, nil
}

// Accept 只能从 INVITED 迁移到 MEMBER
func (s *Service) Accept(ctx context.Context, userID, channelID uint) (*model.Channel, error) {
	var channel *model.Channel
	err := s.repos.WithContext(ctx).Transaction(func(tx *repository.Repositories) error {
		var err error
		channel, err = tx.Channel.FindByIDForUpdate(channelID)
		if err != nil {
			return err
		}
		row, err := findForUpdate(tx, userID, channelID)
		if err != nil {
			return err
		}
		if Derive(row) != StateInvited {
			return conflict("没有待处理的邀请", row)
		}
		return tx.Membership.Upsert(userID, channelID, stateFor(StateMember, row.Ban))
	})
	if err != nil {
		return nil, s.fail("accept invite", err, zap.Uint("user_id", userID), zap.Uint("channel_id", channelID))
	}

	s.invalidate(ctx, userID)
	s.bc.ToRoom(channelID, protocol.EventChannelUsersUpdated, protocol.ChannelUsersUpdated{ChannelID: channelID})
	s.publishState(ctx, channelID, userID, StateMember)
	return channel, nil
}

// Decline 拒绝邀请，不影响封禁计数；频道已不存在视为已处理
func (s *Service) Decline(ctx context.Context, userID, channelID uint) error {
	var gone bool
	err := s.repos.WithContext(ctx).Transaction(func(tx *repository.Repositories) error {
		_, err := tx.Channel.FindByIDForUpdate(channelID)
		if errorx.IsNotFound(err) {
			gone = true
			return nil
		}
		if err != nil {
			return err
		}
		row, err := findForUpdate(tx, userID, channelID)
		if err != nil {
			return err
		}
		if Derive(row) != StateInvited {
			return conflict("没有待处理的邀请", row)
		}
		return tx.Membership.Upsert(userID, channelID, stateFor(StateLeft, row.Ban))
	})
	if err != nil {
		return s.fail("decline invite", err, zap.Uint("user_id", userID), zap.Uint("channel_id", channelID))
	}

	s.invalidate(ctx, userID)
	if !gone {
		s.publishState(ctx, channelID, userID, StateLeft)
	}
	return nil
}

// Leave 管理员退出会删除整个频道；非成员或频道不存在时直接成功
func (s *Service) Leave(ctx context.Context, userID, channelID uint) (*LeaveResult, error) {
	var (
		res      LeaveResult
		changed  bool
		affected []uint
	)
	err := s.repos.WithContext(ctx).Transaction(func(tx *repository.Repositories) error {
		channel, err := tx.Channel.FindByIDForUpdate(channelID)
		if errorx.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}

		if channel.ModeratorID == userID {
			members, err := tx.Membership.ListUserIDs(channelID, repository.FilterMember)
			if err != nil {
				return err
			}
			invited, err := tx.Membership.ListUserIDs(channelID, repository.FilterInvited)
			if err != nil {
				return err
			}
			affected = append(members, invited...)
			res.Deleted = true
			return tx.DeleteChannelCascade(channelID)
		}

		row, err := findForUpdate(tx, userID, channelID)
		if err != nil {
			return err
		}
		if Derive(row) != StateMember {
			return nil
		}
		changed = true
		return tx.Membership.Upsert(userID, channelID, stateFor(StateLeft, row.Ban))
	})
	if err != nil {
		return nil, s.fail("leave channel", err, zap.Uint("user_id", userID), zap.Uint("channel_id", channelID))
	}

	switch {
	case res.Deleted:
		s.invalidate(ctx, affected...)
		s.rooms.DropRoom(channelID)
		s.bc.ToUsers(affected, protocol.EventChannelDeleted, protocol.ChannelDeleted{ChannelID: channelID})
		s.publish(ctx, mq.ActivityEvent{Type: mq.ActivityChannelDeleted, ChannelID: channelID, UserID: userID})
	case changed:
		s.invalidate(ctx, userID)
		s.rooms.EvictUserFromRoom(userID, channelID)
		s.bc.ToRoom(channelID, protocol.EventChannelUsersUpdated, protocol.ChannelUsersUpdated{ChannelID: channelID})
		s.publishState(ctx, channelID, userID, StateLeft)
	}
	return &res, nil
}

// Revoke 私有频道管理员撤销成员或邀请，不计入封禁
func (s *Service) Revoke(ctx context.Context, actorID, channelID uint, targetNick string) (uint, error) {
	target, err := s.findTarget(ctx, actorID, targetNick)
	if err != nil {
		return 0, err
	}

	err = s.repos.WithContext(ctx).Transaction(func(tx *repository.Repositories) error {
		channel, err := tx.Channel.FindByIDForUpdate(channelID)
		if err != nil {
			return err
		}
		if channel.IsPublic {
			return errorx.New(errorx.CodeForbidden, "公开频道请使用 kick")
		}
		if channel.ModeratorID != actorID {
			return errorx.New(errorx.CodeForbidden, "只有管理员可以撤销成员")
		}
		row, err := findForUpdate(tx, target.ID, channelID)
		if err != nil {
			return err
		}
		if st := Derive(row); st != StateMember && st != StateInvited {
			return conflict("对方不是成员也未被邀请", row)
		}
		return tx.Membership.Upsert(target.ID, channelID, stateFor(StateLeft, row.Ban))
	})
	if err != nil {
		return 0, s.fail("revoke", err, zap.Uint("channel_id", channelID), zap.Uint("target_id", target.ID))
	}

	s.afterRemoval(ctx, channelID, target.ID, protocol.EventUserWasRevoked, protocol.UserWasRevoked{ChannelID: channelID, UserID: target.ID})
	return target.ID, nil
}

// Kick 公开频道踢人：管理员踢直接封满，普通成员踢累加一次
func (s *Service) Kick(ctx context.Context, actorID, channelID uint, targetNick string) (*KickResult, error) {
	target, err := s.findTarget(ctx, actorID, targetNick)
	if err != nil {
		return nil, err
	}

	var ban int
	err = s.repos.WithContext(ctx).Transaction(func(tx *repository.Repositories) error {
		channel, err := tx.Channel.FindByIDForUpdate(channelID)
		if err != nil {
			return err
		}
		if !channel.IsPublic {
			return errorx.New(errorx.CodeForbidden, "私有频道请使用 revoke")
		}
		if channel.ModeratorID == target.ID {
			return errorx.New(errorx.CodeForbidden, "不能踢出频道管理员")
		}
		actorRow, err := findForUpdate(tx, actorID, channelID)
		if err != nil {
			return err
		}
		if Derive(actorRow) != StateMember {
			return errorx.New(errorx.CodeForbidden, "只有频道成员可以踢人")
		}
		row, err := findForUpdate(tx, target.ID, channelID)
		if err != nil {
			return err
		}
		if Derive(row) != StateMember {
			return conflict("对方不是频道成员", row)
		}
		ban = min(row.Ban+1, constants.MAX_BAN)
		if channel.ModeratorID == actorID {
			ban = constants.MAX_BAN
		}
		return tx.Membership.Upsert(target.ID, channelID, stateFor(StateLeft, ban))
	})
	if err != nil {
		return nil, s.fail("kick", err, zap.Uint("channel_id", channelID), zap.Uint("target_id", target.ID))
	}

	s.afterRemoval(ctx, channelID, target.ID, protocol.EventUserWasKicked, protocol.UserWasKicked{ChannelID: channelID, UserID: target.ID})
	return &KickResult{TargetUserID: target.ID, Ban: ban}, nil
}

// findTarget 解析昵称并拒绝以自己为目标
func (s *Service) findTarget(ctx context.Context, actorID uint, nick string) (*model.User, error) {
	target, err := s.repos.WithContext(ctx).User.FindByNick(nick)
	if errorx.IsNotFound(err) {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "用户 %s 不存在", nick)
	}
	if err != nil {
		return nil, s.fail("find target", err)
	}
	if target.ID == actorID {
		return nil, errorx.New(errorx.CodeInvalidParam, "不能对自己执行该操作")
	}
	return target, nil
}

// afterRemoval 先移出房间再推送，房间里剩下的成员刷新名单，被移除者的所有设备单独通知
func (s *Service) afterRemoval(ctx context.Context, channelID, targetID uint, event string, data any) {
	s.invalidate(ctx, targetID)
	s.rooms.EvictUserFromRoom(targetID, channelID)
	s.bc.ToRoom(channelID, event, data)
	s.bc.ToUser(targetID, event, data)
	s.publishState(ctx, channelID, targetID, StateLeft)
}

// invalidate 同步删除频道列表缓存，失败只记录
func (s *Service) invalidate(ctx context.Context, userIDs ...uint) {
	if len(userIDs) == 0 {
		return
	}
	keys := make([]string, 0, len(userIDs))
	for _, id := range userIDs {
		keys = append(keys, myredis.ChannelListKey(id))
	}
	if err := s.cache.Delete(ctx, keys...); err != nil {
		zap.L().Error("invalidate channel list cache", zap.Uints("user_ids", userIDs), zap.Error(err))
	}
}

func (s *Service) publishState(ctx context.Context, channelID, userID uint, state State) {
	s.publish(ctx, mq.ActivityEvent{Type: mq.ActivityMembershipChanged, ChannelID: channelID, UserID: userID, State: state.String()})
}

func (s *Service) publish(ctx context.Context, event mq.ActivityEvent) {
	s.publisher.Publish(ctx, event)
}

// fail 业务错误原样返回，持久化错误记录日志后统一为服务繁忙
func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) && codeErr.Code != errorx.CodeDBError && codeErr.Code != errorx.CodeCacheError {
		return codeErr
	}
	zap.L().Error(op, append(fields, zap.Error(err))...)
	return errorx.ErrServerBusy
}

// findForUpdate 记录不存在时返回 nil，由 Derive 识别为 NONE
func findForUpdate(tx *repository.Repositories, userID, channelID uint) (*model.ChannelUser, error) {
	row, err := tx.Membership.FindForUpdate(userID, channelID)
	if errorx.IsNotFound(err) {
		return nil, nil
	}
	return row, err
}
