package presence_test

import (
	"context"
	"strings"
	"testing"

	"snack_chat_server/internal/config"
	"snack_chat_server/internal/dao/mysql/repository"
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/service/presence"
	"snack_chat_server/internal/service/servicetest"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func TestSetStatusReachesCoMembersOnly(t *testing.T) {
	env := servicetest.NewEnv(t)
	svc := presence.NewService(env.Repos, env.Cache, env.BC, config.ChatConfig{})
	alice, bob, carol, dave := env.User(t, "alice"), env.User(t, "bob"), env.User(t, "carol"), env.User(t, "dave")

	general, err := env.Repos.Channel.Create("general", alice.ID, true)
	require.NoError(t, err)
	random, err := env.Repos.Channel.Create("random", bob.ID, true)
	require.NoError(t, err)
	member := repository.MembershipState{Member: true}
	require.NoError(t, env.Repos.Membership.Upsert(alice.ID, general.ID, member))
	require.NoError(t, env.Repos.Membership.Upsert(bob.ID, general.ID, member))
	require.NoError(t, env.Repos.Membership.Upsert(alice.ID, random.ID, member))
	require.NoError(t, env.Repos.Membership.Upsert(bob.ID, random.ID, member))
	require.NoError(t, env.Repos.Membership.Upsert(carol.ID, general.ID, repository.MembershipState{Invited: true}))

	aliceConn := env.Connect(t, alice.ID)
	bobConn := env.Connect(t, bob.ID)
	carolConn := env.Connect(t, carol.ID)
	daveConn := env.Connect(t, dave.ID)

	require.NoError(t, env.Cache.Set(ctx, myredis.UserSummaryKey(alice.ID), "{}", 0))

	delivered, err := svc.SetStatus(ctx, alice.ID, "away")
	require.NoError(t, err)
	assert.Equal(t, 2, delivered)

	// 每个共同频道一条
	assert.Equal(t, 2, bobConn.Count(protocol.EventUserStatusUpdate))
	var update protocol.UserStatusUpdate
	bobConn.Last(t, protocol.EventUserStatusUpdate, &update)
	assert.Equal(t, alice.ID, update.UserID)
	assert.Equal(t, "away", update.Status)

	assert.Zero(t, aliceConn.Count(protocol.EventUserStatusUpdate))
	assert.Zero(t, carolConn.Count(protocol.EventUserStatusUpdate))
	assert.Zero(t, daveConn.Count(protocol.EventUserStatusUpdate))

	stored, err := env.Repos.User.FindByID(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "away", stored.ActivityStatus)

	ok, err := env.Cache.Exists(ctx, myredis.UserSummaryKey(alice.ID))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetStatusRejectsUnknownStatus(t *testing.T) {
	env := servicetest.NewEnv(t)
	svc := presence.NewService(env.Repos, env.Cache, env.BC, config.ChatConfig{})
	alice := env.User(t, "alice")

	_, err := svc.SetStatus(ctx, alice.ID, "busy")
	assert.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err))
}

func TestTypingRestrictedToMembers(t *testing.T) {
	env := servicetest.NewEnv(t)
	svc := presence.NewService(env.Repos, env.Cache, env.BC, config.ChatConfig{})
	alice, bob, carol := env.User(t, "alice"), env.User(t, "bob"), env.User(t, "carol")

	ch, err := env.Repos.Channel.Create("general", alice.ID, true)
	require.NoError(t, err)
	require.NoError(t, env.Repos.Membership.Upsert(alice.ID, ch.ID, repository.MembershipState{Member: true}))
	require.NoError(t, env.Repos.Membership.Upsert(bob.ID, ch.ID, repository.MembershipState{Member: true}))
	require.NoError(t, env.Repos.Membership.Upsert(carol.ID, ch.ID, repository.MembershipState{Invited: true}))

	aliceConn, bobConn, carolConn := env.Connect(t, alice.ID), env.Connect(t, bob.ID), env.Connect(t, carol.ID)

	require.NoError(t, svc.Typing(ctx, alice.ID, ch.ID, true, strings.Repeat("x", 600)))
	var typing protocol.UserTyping
	bobConn.Last(t, protocol.EventUserTyping, &typing)
	assert.Equal(t, "alice", typing.Nick)
	assert.True(t, typing.IsTyping)
	assert.Len(t, typing.Content, 500)
	assert.Zero(t, aliceConn.Count(protocol.EventUserTyping))
	assert.Zero(t, carolConn.Count(protocol.EventUserTyping))

	require.NoError(t, svc.Typing(ctx, alice.ID, ch.ID, false, "draft"))
	bobConn.Last(t, protocol.EventUserTyping, &typing)
	assert.False(t, typing.IsTyping)
	assert.Empty(t, typing.Content)

	err = svc.Typing(ctx, carol.ID, ch.ID, true, "hi")
	assert.Equal(t, errorx.CodeForbidden, errorx.GetCode(err))
	assert.Equal(t, 2, bobConn.Count(protocol.EventUserTyping))
}

func TestTypingPreviewUsesConfiguredLimit(t *testing.T) {
	env := servicetest.NewEnv(t)
	svc := presence.NewService(env.Repos, env.Cache, env.BC, config.ChatConfig{MaxContentLength: 10})
	alice, bob := env.User(t, "alice"), env.User(t, "bob")

	ch, err := env.Repos.Channel.Create("general", alice.ID, true)
	require.NoError(t, err)
	require.NoError(t, env.Repos.Membership.Upsert(alice.ID, ch.ID, repository.MembershipState{Member: true}))
	require.NoError(t, env.Repos.Membership.Upsert(bob.ID, ch.ID, repository.MembershipState{Member: true}))
	bobConn := env.Connect(t, bob.ID)

	require.NoError(t, svc.Typing(ctx, alice.ID, ch.ID, true, strings.Repeat("字", 30)))
	var typing protocol.UserTyping
	bobConn.Last(t, protocol.EventUserTyping, &typing)
	assert.Equal(t, strings.Repeat("字", 10), typing.Content)
}
