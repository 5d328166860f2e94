package client

import (
	"testing"

	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const self uint = 10

func msg(id, channelID, authorID uint) protocol.Message {
	return protocol.Message{ID: id, ChannelID: channelID, Content: "m", Author: protocol.Author{ID: authorID}}
}

func ids(entries []Entry) []uint {
	out := make([]uint, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Message.ID)
	}
	return out
}

func TestAddIncomingDedupsAndSorts(t *testing.T) {
	s := NewStore(self)

	assert.True(t, s.AddIncoming(msg(3, 1, 11)))
	assert.True(t, s.AddIncoming(msg(1, 1, 11)))
	assert.True(t, s.AddIncoming(msg(2, 1, 11)))
	assert.False(t, s.AddIncoming(msg(2, 1, 11)))

	assert.Equal(t, []uint{1, 2, 3}, ids(s.Messages(1)))
}

func TestPendingSortsAfterConfirmed(t *testing.T) {
	s := NewStore(self)
	s.AddPending(1, "local-1", protocol.Message{Content: "hi"})
	s.AddIncoming(msg(5, 1, 11))
	s.AddIncoming(msg(4, 1, 11))

	entries := s.Messages(1)
	require.Len(t, entries, 3)
	assert.Equal(t, []uint{4, 5, 0}, ids(entries))
	assert.True(t, entries[2].Pending)
}

func TestConfirmReplacesPending(t *testing.T) {
	s := NewStore(self)
	s.AddPending(1, "local-1", protocol.Message{Content: "hi"})

	s.Confirm("local-1", msg(7, 1, self))

	entries := s.Messages(1)
	require.Len(t, entries, 1)
	assert.False(t, entries[0].Pending)
	assert.EqualValues(t, 7, entries[0].Message.ID)
}

func TestConfirmAfterPushDropsPending(t *testing.T) {
	s := NewStore(self)
	s.AddPending(1, "local-1", protocol.Message{Content: "hi"})
	s.AddIncoming(msg(7, 1, self))

	s.Confirm("local-1", msg(7, 1, self))

	assert.Equal(t, []uint{7}, ids(s.Messages(1)))
}

func TestRollbackRemovesPending(t *testing.T) {
	s := NewStore(self)
	s.AddIncoming(msg(1, 1, 11))
	s.AddPending(1, "local-1", protocol.Message{Content: "hi"})

	s.Rollback(1, "local-1")

	assert.Equal(t, []uint{1}, ids(s.Messages(1)))
}

func TestUnreadRules(t *testing.T) {
	s := NewStore(self)
	s.SetCurrent(1)

	s.AddIncoming(msg(1, 1, 11))   // 当前频道
	s.AddIncoming(msg(2, 2, self)) // 自己发的
	s.AddIncoming(msg(3, 2, 11))
	s.AddIncoming(msg(3, 2, 11)) // 重复
	s.AddIncoming(msg(4, 2, 12))

	assert.Equal(t, 0, s.Unread(1))
	assert.Equal(t, 2, s.Unread(2))

	prev := s.SetCurrent(2)
	assert.EqualValues(t, 1, prev)
	assert.Equal(t, 0, s.Unread(2))
}

func page(lastPage int, msgs ...protocol.Message) *respond.MessageListRespond {
	return &respond.MessageListRespond{Data: msgs, Meta: respond.PageMeta{LastPage: lastPage}}
}

func TestPagingPhasesAndHasMore(t *testing.T) {
	s := NewStore(self)
	assert.Equal(t, PhaseIdle, s.Phase(1))
	assert.True(t, s.HasMore(1))

	gen, p, ok := s.BeginLoad(1, false)
	require.True(t, ok)
	assert.Equal(t, 1, p)
	assert.Equal(t, PhaseLoading, s.Phase(1))

	_, _, ok = s.BeginLoad(1, false)
	assert.False(t, ok, "already loading")

	require.True(t, s.FinishLoad(1, gen, 1, page(2, msg(3, 1, 11), msg(4, 1, 11))))
	assert.Equal(t, PhaseLoaded, s.Phase(1))
	assert.True(t, s.HasMore(1))

	gen, p, ok = s.BeginLoad(1, false)
	require.True(t, ok)
	assert.Equal(t, 2, p)
	require.True(t, s.FinishLoad(1, gen, 2, page(2, msg(1, 1, 11), msg(2, 1, 11))))

	assert.False(t, s.HasMore(1))
	_, _, ok = s.BeginLoad(1, false)
	assert.False(t, ok)
	assert.Equal(t, []uint{1, 2, 3, 4}, ids(s.Messages(1)))
}

func TestResetDiscardsStalePage(t *testing.T) {
	s := NewStore(self)
	gen, _, ok := s.BeginLoad(1, false)
	require.True(t, ok)

	s.Reset(1)

	assert.False(t, s.FinishLoad(1, gen, 1, page(1, msg(1, 1, 11))))
	assert.Empty(t, s.Messages(1))
	assert.Equal(t, PhaseIdle, s.Phase(1))

	newGen, p, ok := s.BeginLoad(1, false)
	require.True(t, ok)
	assert.Equal(t, 1, p)
	assert.NotEqual(t, gen, newGen)
}

func TestResetKeepsPending(t *testing.T) {
	s := NewStore(self)
	s.AddIncoming(msg(1, 1, 11))
	s.AddPending(1, "local-1", protocol.Message{Content: "hi"})

	s.Reset(1)

	entries := s.Messages(1)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Pending)
}

func TestResetAllSkipsCurrentAndKeepsPending(t *testing.T) {
	s := NewStore(self)
	for _, id := range []uint{1, 2} {
		gen, _, _ := s.BeginLoad(id, false)
		require.True(t, s.FinishLoad(id, gen, 1, page(1, msg(id, id, 11))))
	}
	s.AddPending(2, "local-1", protocol.Message{Content: "hi"})

	s.ResetAll(1)

	assert.Equal(t, PhaseLoaded, s.Phase(1))
	assert.Equal(t, []uint{1}, ids(s.Messages(1)))
	assert.Equal(t, PhaseIdle, s.Phase(2))
	entries := s.Messages(2)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].Pending)
}

func TestFailLoadReturnsToPreviousPhase(t *testing.T) {
	s := NewStore(self)
	gen, _, _ := s.BeginLoad(1, false)
	s.FailLoad(1, gen)
	assert.Equal(t, PhaseIdle, s.Phase(1))

	gen, _, _ = s.BeginLoad(1, false)
	s.FinishLoad(1, gen, 1, page(3))
	gen, _, _ = s.BeginLoad(1, false)
	s.FailLoad(1, gen)
	assert.Equal(t, PhaseLoaded, s.Phase(1))
}

func TestRosterStatusAndTyping(t *testing.T) {
	s := NewStore(self)
	s.SetRoster(1, []respond.RosterItem{{ID: 11, Nick: "bob", ActivityStatus: "active"}})

	s.UpdateStatus(1, 11, "away")
	assert.Equal(t, "away", s.Roster(1)[0].ActivityStatus)

	s.SetTyping(protocol.UserTyping{ChannelID: 1, UserID: 11, Nick: "bob", IsTyping: true, Content: "he"})
	assert.Contains(t, s.TypingIn(1), uint(11))

	// 消息到达后清除输入状态
	s.AddIncoming(msg(1, 1, 11))
	assert.Empty(t, s.TypingIn(1))
}
