package repository_test

import (
	"testing"

	"snack_chat_server/internal/dao/mysql/mysqltest"
	"snack_chat_server/internal/dao/mysql/repository"
	"snack_chat_server/internal/model"
	"snack_chat_server/pkg/errorx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelCreateDuplicateNameIsConflict(t *testing.T) {
	repos := mysqltest.NewRepositories(t)
	alice := mysqltest.SeedUser(t, repos, "alice")

	_, err := repos.Channel.Create("general", alice.ID, true)
	require.NoError(t, err)

	_, err = repos.Channel.Create("general", alice.ID, false)
	require.Error(t, err)
	assert.Equal(t, errorx.CodeConflict, errorx.GetCode(err))
}

func TestChannelFindMissingIsNotFound(t *testing.T) {
	repos := mysqltest.NewRepositories(t)

	_, err := repos.Channel.FindByID(42)
	assert.True(t, errorx.IsNotFound(err))

	_, err = repos.Channel.FindByNameForUpdate("nope")
	assert.Equal(t, errorx.CodeNotFound, errorx.GetCode(err))
}

func TestMembershipUpsertOverwritesWholeRow(t *testing.T) {
	repos := mysqltest.NewRepositories(t)
	alice := mysqltest.SeedUser(t, repos, "alice")
	ch, err := repos.Channel.Create("general", alice.ID, true)
	require.NoError(t, err)

	require.NoError(t, repos.Membership.Upsert(alice.ID, ch.ID, repository.MembershipState{Invited: true}))
	require.NoError(t, repos.Membership.Upsert(alice.ID, ch.ID, repository.MembershipState{Member: true, Ban: 2}))

	row, err := repos.Membership.Find(alice.ID, ch.ID)
	require.NoError(t, err)
	assert.False(t, row.Invited)
	assert.True(t, row.Member)
	assert.Equal(t, 2, row.Ban)

	require.NoError(t, repos.Membership.Upsert(alice.ID, ch.ID, repository.MembershipState{Ban: 3}))
	row, err = repos.Membership.Find(alice.ID, ch.ID)
	require.NoError(t, err)
	assert.False(t, row.Member)
	assert.Equal(t, 3, row.Ban)
}

func TestMembershipUpsertRejectsBanOutOfRange(t *testing.T) {
	repos := mysqltest.NewRepositories(t)

	err := repos.Membership.Upsert(1, 1, repository.MembershipState{Member: true, Ban: 4})
	assert.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err))
}

func TestMembershipFiltersAndRoster(t *testing.T) {
	repos := mysqltest.NewRepositories(t)
	alice := mysqltest.SeedUser(t, repos, "alice")
	bob := mysqltest.SeedUser(t, repos, "bob")
	carol := mysqltest.SeedUser(t, repos, "carol")
	ch, err := repos.Channel.Create("general", alice.ID, false)
	require.NoError(t, err)

	require.NoError(t, repos.Membership.Upsert(alice.ID, ch.ID, repository.MembershipState{Member: true}))
	require.NoError(t, repos.Membership.Upsert(bob.ID, ch.ID, repository.MembershipState{Invited: true}))
	require.NoError(t, repos.Membership.Upsert(carol.ID, ch.ID, repository.MembershipState{}))

	members, err := repos.Membership.ListUserIDs(ch.ID, repository.FilterMember)
	require.NoError(t, err)
	assert.Equal(t, []uint{alice.ID}, members)

	invited, err := repos.Membership.ListUserIDs(ch.ID, repository.FilterInvited)
	require.NoError(t, err)
	assert.Equal(t, []uint{bob.ID}, invited)

	n, err := repos.Membership.CountMembers(ch.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	roster, err := repos.Membership.FindRoster(ch.ID)
	require.NoError(t, err)
	require.Len(t, roster, 1)
	assert.Equal(t, alice.ID, roster[0].UserID)
	assert.Equal(t, "alice", roster[0].Nick)

	list, err := repos.Channel.FindForUser(bob.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.True(t, list[0].Invited)
	assert.False(t, list[0].Member)

	list, err = repos.Channel.FindForUser(carol.ID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestMessageListPageNewestFirstPagesAscendingWithin(t *testing.T) {
	repos := mysqltest.NewRepositories(t)
	alice := mysqltest.SeedUser(t, repos, "alice")
	ch, err := repos.Channel.Create("general", alice.ID, true)
	require.NoError(t, err)

	var ids []uint
	for _, content := range []string{"m1", "m2", "m3", "m4", "m5"} {
		msg, err := repos.Message.Create(ch.ID, alice.ID, content)
		require.NoError(t, err)
		ids = append(ids, msg.ID)
	}

	page1, total, err := repos.Message.ListPage(ch.ID, 1, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	require.Len(t, page1, 2)
	assert.Equal(t, []string{"m4", "m5"}, []string{page1[0].Content, page1[1].Content})
	assert.Equal(t, "alice", page1[0].AuthorNick)

	page3, _, err := repos.Message.ListPage(ch.ID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, ids[0], page3[0].ID)

	empty, total, err := repos.Message.ListPage(ch.ID, 9, 2)
	require.NoError(t, err)
	assert.EqualValues(t, 5, total)
	assert.Empty(t, empty)
}

func TestDeleteChannelCascadeRemovesEverything(t *testing.T) {
	repos := mysqltest.NewRepositories(t)
	alice := mysqltest.SeedUser(t, repos, "alice")
	bob := mysqltest.SeedUser(t, repos, "bob")
	ch, err := repos.Channel.Create("general", alice.ID, true)
	require.NoError(t, err)
	other, err := repos.Channel.Create("random", alice.ID, true)
	require.NoError(t, err)

	require.NoError(t, repos.Membership.Upsert(alice.ID, ch.ID, repository.MembershipState{Member: true}))
	require.NoError(t, repos.Membership.Upsert(bob.ID, ch.ID, repository.MembershipState{Member: true}))
	msg, err := repos.Message.Create(ch.ID, alice.ID, "hi @bob")
	require.NoError(t, err)
	require.NoError(t, repos.Mention.Create(msg.ID, bob.ID))
	require.NoError(t, repos.Notification.Create(&model.Notification{UserID: bob.ID, MessageID: msg.ID, ChannelID: ch.ID, Content: "hi @bob"}))
	keep, err := repos.Message.Create(other.ID, alice.ID, "stay")
	require.NoError(t, err)
	require.NoError(t, repos.Mention.Create(keep.ID, bob.ID))

	require.NoError(t, repos.Transaction(func(tx *repository.Repositories) error {
		return tx.DeleteChannelCascade(ch.ID)
	}))

	_, err = repos.Channel.FindByID(ch.ID)
	assert.True(t, errorx.IsNotFound(err))
	_, err = repos.Membership.Find(bob.ID, ch.ID)
	assert.True(t, errorx.IsNotFound(err))
	notes, err := repos.Notification.ListByUser(bob.ID, false, 10)
	require.NoError(t, err)
	assert.Empty(t, notes)

	mentions, err := repos.Mention.ListByMessageIDs([]uint{msg.ID, keep.ID})
	require.NoError(t, err)
	require.Len(t, mentions, 1)
	assert.Equal(t, keep.ID, mentions[0].MessageID)
	assert.Equal(t, "bob", mentions[0].Nick)

	// 同名频道可以重新创建
	_, err = repos.Channel.Create("general", bob.ID, false)
	assert.NoError(t, err)
}

func TestNotificationMarkSeenOnlyOwner(t *testing.T) {
	repos := mysqltest.NewRepositories(t)
	alice := mysqltest.SeedUser(t, repos, "alice")
	bob := mysqltest.SeedUser(t, repos, "bob")
	n := &model.Notification{UserID: bob.ID, MessageID: 1, ChannelID: 1, Content: "ping"}
	require.NoError(t, repos.Notification.Create(n))

	err := repos.Notification.MarkSeen(alice.ID, n.ID)
	assert.True(t, errorx.IsNotFound(err))

	require.NoError(t, repos.Notification.MarkSeen(bob.ID, n.ID))
	unseen, err := repos.Notification.ListByUser(bob.ID, true, 10)
	require.NoError(t, err)
	assert.Empty(t, unseen)
}

func TestUserLookupsAndStatus(t *testing.T) {
	repos := mysqltest.NewRepositories(t)
	alice := mysqltest.SeedUser(t, repos, "alice")
	mysqltest.SeedUser(t, repos, "bob")

	u, err := repos.User.FindByNick("alice")
	require.NoError(t, err)
	assert.True(t, u.CheckPassword("secret123"))
	assert.False(t, u.CheckPassword("wrong"))

	users, err := repos.User.FindByNicks([]string{"alice", "bob", "ghost"})
	require.NoError(t, err)
	assert.Len(t, users, 2)

	require.NoError(t, repos.User.UpdateStatus(alice.ID, "away"))
	u, err = repos.User.FindByID(alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "away", u.ActivityStatus)

	assert.True(t, errorx.IsNotFound(repos.User.UpdateStatus(9999, "away")))

	dup := &model.User{Nick: "alice", Email: "other@example.com", RawPassword: "x"}
	assert.Equal(t, errorx.CodeConflict, errorx.GetCode(repos.User.Create(dup)))
}
