package notification_test

import (
	"context"
	"testing"

	"snack_chat_server/internal/model"
	"snack_chat_server/internal/service/notification"
	"snack_chat_server/internal/service/servicetest"
	"snack_chat_server/pkg/errorx"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestListAndMarkSeen(t *testing.T) {
	ctx := context.Background()
	env := servicetest.NewEnv(t)
	svc := notification.NewService(env.Repos)
	alice, bob := env.User(t, "alice"), env.User(t, "bob")

	for _, content := range []string{"first", "second"} {
		require.NoError(t, env.Repos.Notification.Create(&model.Notification{
			UserID: bob.ID, MessageID: 1, ChannelID: 1, Content: content,
		}))
	}

	all, err := svc.List(ctx, bob.ID, false, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "second", all[0].Content)

	assert.Equal(t, errorx.CodeNotFound, errorx.GetCode(svc.MarkSeen(ctx, alice.ID, all[0].ID)))
	require.NoError(t, svc.MarkSeen(ctx, bob.ID, all[0].ID))

	unseen, err := svc.List(ctx, bob.ID, true, 10)
	require.NoError(t, err)
	require.Len(t, unseen, 1)
	assert.Equal(t, "first", unseen[0].Content)
}
