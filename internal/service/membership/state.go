package membership

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"snack_chat_server/internal/dao/mysql/repository"
	"snack_chat_server/internal/model"
	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"
)

// State 由 (invited, member) 推导出的成员状态
type State int

const (
	StateNone State = iota
	StateInvited
	StateMember
	StateLeft // 主动退出、被踢、被撤销、拒绝邀请
)

func (s State) String() string {
	switch s {
	case StateInvited:
		return "invited"
	case StateMember:
		return "member"
	case StateLeft:
		return "left"
	default:
		return "none"
	}
}

// Derive row 为 nil 表示没有记录
func Derive(row *model.ChannelUser) State {
	switch {
	case row == nil:
		return StateNone
	case row.Member:
		return StateMember
	case row.Invited:
		return StateInvited
	default:
		return StateLeft
	}
}

// stateFor 写入时只允许规范化的三种取值
func stateFor(s State, ban int) repository.MembershipState {
	switch s {
	case StateInvited:
		return repository.MembershipState{Invited: true, Ban: ban}
	case StateMember:
		return repository.MembershipState{Member: true, Ban: ban}
	default:
		return repository.MembershipState{Ban: ban}
	}
}

func banOf(row *model.ChannelUser) int {
	if row == nil {
		return 0
	}
	return row.Ban
}

// conflict 冲突错误附带当前状态，客户端据此刷新
func conflict(msg string, row *model.ChannelUser) error {
	return errorx.New(errorx.CodeConflict, msg).WithData(map[string]any{
		"state": Derive(row).String(),
		"ban":   banOf(row),
	})
}

// NormalizeChannelName 去掉首尾空白后校验长度，名称内部不允许空白
func NormalizeChannelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	n := utf8.RuneCountInString(name)
	if n < constants.CHANNEL_NAME_MIN || n > constants.CHANNEL_NAME_MAX {
		return "", errorx.Newf(errorx.CodeInvalidParam, "频道名长度需在 %d~%d 之间", constants.CHANNEL_NAME_MIN, constants.CHANNEL_NAME_MAX)
	}
	if strings.IndexFunc(name, unicode.IsSpace) >= 0 {
		return "", errorx.New(errorx.CodeInvalidParam, "频道名不能包含空白字符")
	}
	return name, nil
}
