package broadcast_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"snack_chat_server/internal/dao/mysql/mysqltest"
	"snack_chat_server/internal/dao/mysql/repository"
	"snack_chat_server/internal/gateway/websocket"
	"snack_chat_server/internal/service/broadcast"
	"snack_chat_server/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type handle struct {
	id     string
	userID uint
	fail   bool
	mu     sync.Mutex
	frames [][]byte
}

func (h *handle) ID() string   { return h.id }
func (h *handle) UserID() uint { return h.userID }
func (h *handle) Close()       {}
func (h *handle) Send(p []byte) error {
	if h.fail {
		return errors.New("buffer full")
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.frames = append(h.frames, p)
	return nil
}

func TestToMembersSkipsInvitedAndFailingHandles(t *testing.T) {
	repos := mysqltest.NewRepositories(t)
	alice := mysqltest.SeedUser(t, repos, "alice")
	bob := mysqltest.SeedUser(t, repos, "bob")
	carol := mysqltest.SeedUser(t, repos, "carol")
	ch, err := repos.Channel.Create("general", alice.ID, true)
	require.NoError(t, err)
	require.NoError(t, repos.Membership.Upsert(alice.ID, ch.ID, repository.MembershipState{Member: true}))
	require.NoError(t, repos.Membership.Upsert(bob.ID, ch.ID, repository.MembershipState{Member: true}))
	require.NoError(t, repos.Membership.Upsert(carol.ID, ch.ID, repository.MembershipState{Invited: true}))

	reg := websocket.NewRegistry()
	a1 := &handle{id: "a1", userID: alice.ID}
	a2 := &handle{id: "a2", userID: alice.ID, fail: true}
	b1 := &handle{id: "b1", userID: bob.ID}
	c1 := &handle{id: "c1", userID: carol.ID}
	for _, h := range []*handle{a1, a2, b1, c1} {
		require.NoError(t, reg.Register(h.userID, h))
	}

	bc := broadcast.NewBroadcaster(repos, reg)
	n, err := bc.ToMembers(context.Background(), ch.ID, protocol.EventChannelDeleted, protocol.ChannelDeleted{ChannelID: ch.ID})
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Len(t, a1.frames, 1)
	assert.Len(t, b1.frames, 1)
	assert.Empty(t, c1.frames)

	var env protocol.Envelope
	require.NoError(t, json.Unmarshal(b1.frames[0], &env))
	assert.Equal(t, protocol.EventChannelDeleted, env.Event)

	n, err = bc.ToMembersExcept(context.Background(), ch.ID, alice.ID, protocol.EventUserTyping, protocol.UserTyping{ChannelID: ch.ID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, a1.frames, 1)
}
