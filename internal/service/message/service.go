// Package message 消息写入、@提及与历史分页
package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"snack_chat_server/internal/config"
	"snack_chat_server/internal/dao/mysql/repository"
	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/internal/infrastructure/mq"
	"snack_chat_server/internal/model"
	"snack_chat_server/internal/service/broadcast"
	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/protocol"

	"go.uber.org/zap"
)

const notificationMaxLength = 255

type Service struct {
	repos     *repository.Repositories
	bc        *broadcast.Broadcaster
	publisher mq.ActivityPublisher
	conf      config.ChatConfig
}

func NewService(repos *repository.Repositories, bc *broadcast.Broadcaster, publisher mq.ActivityPublisher, conf config.ChatConfig) *Service {
	if conf.PageSize <= 0 {
		conf.PageSize = constants.DEFAULT_PAGE_SIZE
	}
	if conf.MaxPageSize <= 0 {
		conf.MaxPageSize = constants.MAX_PAGE_SIZE
	}
	if conf.MaxContentLength <= 0 {
		conf.MaxContentLength = constants.MESSAGE_MAX_LENGTH
	}
	return &Service{repos: repos, bc: bc, publisher: publisher, conf: conf}
}

// SendResult SentTo 为成功接收推送的连接数
type SendResult struct {
	Message protocol.Message
	SentTo  int
}

// Send 持久化消息后推送给全部正式成员
// 提及与提醒写入失败只记录日志，不回滚消息
func (s *Service) Send(ctx context.Context, authorID, channelID uint, content string) (*SendResult, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, errorx.New(errorx.CodeInvalidParam, "消息内容不能为空")
	}
	if utf8.RuneCountInString(content) > s.conf.MaxContentLength {
		return nil, errorx.Newf(errorx.CodeInvalidParam, "消息不能超过 %d 个字符", s.conf.MaxContentLength)
	}

	repos := s.repos.WithContext(ctx)
	channel, err := repos.Channel.FindByID(channelID)
	if err != nil {
		return nil, s.fail("find channel", err, zap.Uint("channel_id", channelID))
	}
	if err := requireMember(repos, authorID, channelID); err != nil {
		return nil, s.fail("check membership", err, zap.Uint("user_id", authorID), zap.Uint("channel_id", channelID))
	}
	author, err := repos.User.FindByID(authorID)
	if err != nil {
		return nil, s.fail("find author", err, zap.Uint("user_id", authorID))
	}

	msg, err := repos.Message.Create(channelID, authorID, content)
	if err != nil {
		return nil, s.fail("create message", err, zap.Uint("channel_id", channelID))
	}
	if err := repos.Channel.TouchActivity(channelID); err != nil {
		zap.L().Warn("touch channel activity", zap.Uint("channel_id", channelID), zap.Error(err))
	}

	mentions := s.recordMentions(repos, msg, channel, author)

	dto := protocol.Message{
		ID:          msg.ID,
		Content:     msg.Content,
		CreatedAt:   msg.CreatedAt,
		ChannelID:   channel.ID,
		ChannelName: channel.Name,
		Author:      authorOf(author),
		Mentions:    mentions,
	}
	sentTo, err := s.bc.ToMembers(ctx, channelID, protocol.EventNewMessage, dto)
	if err != nil {
		// 消息已落库，推送失败只影响实时性
		zap.L().Error("broadcast new message", zap.Uint("message_id", msg.ID), zap.Error(err))
	}

	s.publisher.Publish(ctx, mq.ActivityEvent{
		Type:      mq.ActivityMessageCreated,
		ChannelID: channelID,
		UserID:    authorID,
		MessageID: msg.ID,
	})
	return &SendResult{Message: dto, SentTo: sentTo}, nil
}

// recordMentions 写入提及；被提及且是正式成员的用户另外收到一条提醒
func (s *Service) recordMentions(repos *repository.Repositories, msg *model.Message, channel *model.Channel, author *model.User) []protocol.MentionDTO {
	out := make([]protocol.MentionDTO, 0)
	nicks := ExtractMentions(msg.Content)
	if len(nicks) == 0 {
		return out
	}
	users, err := repos.User.FindByNicks(nicks)
	if err != nil {
		zap.L().Error("resolve mentions", zap.Uint("message_id", msg.ID), zap.Error(err))
		return out
	}
	members, err := repos.Membership.ListUserIDs(channel.ID, repository.FilterMember)
	if err != nil {
		zap.L().Error("list members for mentions", zap.Uint("channel_id", channel.ID), zap.Error(err))
	}
	isMember := make(map[uint]bool, len(members))
	for _, id := range members {
		isMember[id] = true
	}

	byNick := make(map[string]model.User, len(users))
	for _, u := range users {
		byNick[u.Nick] = u
	}
	for _, nick := range nicks {
		u, ok := byNick[nick]
		if !ok {
			continue
		}
		if err := repos.Mention.Create(msg.ID, u.ID); err != nil {
			zap.L().Error("create mention", zap.Uint("message_id", msg.ID), zap.Uint("mentioned_id", u.ID), zap.Error(err))
			continue
		}
		out = append(out, protocol.MentionDTO{MentionedID: u.ID, Nick: u.Nick})

		if u.ID == author.ID || !isMember[u.ID] {
			continue
		}
		n := &model.Notification{
			UserID:    u.ID,
			MessageID: msg.ID,
			ChannelID: channel.ID,
			Content:   notificationText(author.Nick, channel.Name, msg.Content),
		}
		if err := repos.Notification.Create(n); err != nil {
			zap.L().Error("create notification", zap.Uint("message_id", msg.ID), zap.Uint("user_id", u.ID), zap.Error(err))
		}
	}
	return out
}

// History 第 1 页为最新消息，页内按 id 升序
func (s *Service) History(ctx context.Context, userID, channelID uint, page, pageSize int) (*respond.MessageListRespond, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = s.conf.PageSize
	}
	pageSize = min(pageSize, s.conf.MaxPageSize)

	repos := s.repos.WithContext(ctx)
	channel, err := repos.Channel.FindByID(channelID)
	if err != nil {
		return nil, s.fail("find channel", err, zap.Uint("channel_id", channelID))
	}
	if err := requireMember(repos, userID, channelID); err != nil {
		return nil, s.fail("check membership", err, zap.Uint("user_id", userID), zap.Uint("channel_id", channelID))
	}

	rows, total, err := repos.Message.ListPage(channelID, page, pageSize)
	if err != nil {
		return nil, s.fail("list messages", err, zap.Uint("channel_id", channelID), zap.Int("page", page))
	}

	ids := make([]uint, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	mentions, err := repos.Mention.ListByMessageIDs(ids)
	if err != nil {
		return nil, s.fail("list mentions", err, zap.Uint("channel_id", channelID))
	}
	byMessage := make(map[uint][]protocol.MentionDTO)
	for _, m := range mentions {
		byMessage[m.MessageID] = append(byMessage[m.MessageID], protocol.MentionDTO{MentionedID: m.MentionedID, Nick: m.Nick})
	}

	data := make([]protocol.Message, 0, len(rows))
	for _, r := range rows {
		ms := byMessage[r.ID]
		if ms == nil {
			ms = []protocol.MentionDTO{}
		}
		data = append(data, protocol.Message{
			ID:          r.ID,
			Content:     r.Content,
			CreatedAt:   r.CreatedAt,
			ChannelID:   r.ChannelID,
			ChannelName: channel.Name,
			Author: protocol.Author{
				ID:       r.AuthorID,
				Nick:     r.AuthorNick,
				Name:     r.AuthorName,
				LastName: r.AuthorLastName,
			},
			Mentions: ms,
		})
	}

	return &respond.MessageListRespond{
		Data: data,
		Meta: respond.PageMeta{
			CurrentPage: page,
			LastPage:    lastPage(total, pageSize),
			Total:       total,
			PageSize:    pageSize,
		},
	}, nil
}

func (s *Service) fail(op string, err error, fields ...zap.Field) error {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) && codeErr.Code != errorx.CodeDBError && codeErr.Code != errorx.CodeCacheError {
		return codeErr
	}
	zap.L().Error(op, append(fields, zap.Error(err))...)
	return errorx.ErrServerBusy
}

// requireMember 只有正式成员能读写消息，被邀请者看不到内容
func requireMember(repos *repository.Repositories, userID, channelID uint) error {
	row, err := repos.Membership.Find(userID, channelID)
	if errorx.IsNotFound(err) {
		return errorx.New(errorx.CodeForbidden, "你不是该频道成员")
	}
	if err != nil {
		return err
	}
	if !row.Member {
		return errorx.New(errorx.CodeForbidden, "你不是该频道成员")
	}
	return nil
}

func authorOf(u *model.User) protocol.Author {
	return protocol.Author{ID: u.ID, Nick: u.Nick, Name: u.Name, LastName: u.LastName}
}

func lastPage(total int64, pageSize int) int {
	if total == 0 {
		return 1
	}
	return int((total + int64(pageSize) - 1) / int64(pageSize))
}

func notificationText(authorNick, channelName, content string) string {
	text := fmt.Sprintf("%s mentioned you in #%s: %s", authorNick, channelName, content)
	if utf8.RuneCountInString(text) <= notificationMaxLength {
		return text
	}
	return string([]rune(text)[:notificationMaxLength-1]) + "…"
}
