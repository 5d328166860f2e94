package user

import (
	"context"
	"encoding/json"
	"testing"

	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/dto/request"
	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/internal/infrastructure/middleware"
	"snack_chat_server/internal/service/servicetest"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/util/jwt"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ctx = context.Background()

func init() {
	jwt.Init("user-service-test-secret-0123456789", 30)
}

func newService(t *testing.T) (*userService, *servicetest.Env) {
	env := servicetest.NewEnv(t)
	return NewUserService(env.Repos, env.Cache), env
}

func registerReq(nick, email string) request.RegisterRequest {
	return request.RegisterRequest{Nick: nick, Name: "Test", LastName: "User", Email: email, Password: "password123"}
}

func TestRegisterThenLogin(t *testing.T) {
	svc, _ := newService(t)

	reg, err := svc.Register(ctx, registerReq("alice", "Alice@Example.com"))
	require.NoError(t, err)
	assert.NotEmpty(t, reg.AccessToken)
	assert.Equal(t, "alice@example.com", reg.User.Email)
	assert.Equal(t, "offline", reg.User.ActivityStatus)

	_, err = svc.Register(ctx, registerReq("alice", "other@example.com"))
	assert.Equal(t, errorx.CodeUserExist, errorx.GetCode(err))

	_, err = svc.Register(ctx, registerReq("two words", "x@example.com"))
	assert.Equal(t, errorx.CodeInvalidParam, errorx.GetCode(err))

	login, err := svc.Login(ctx, request.LoginRequest{Email: "alice@example.com", Password: "password123"})
	require.NoError(t, err)
	claims, err := jwt.ParseToken(login.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, reg.User.ID, claims.UserID)

	_, err = svc.Login(ctx, request.LoginRequest{Email: "alice@example.com", Password: "wrong-password"})
	assert.Equal(t, errorx.CodeInvalidPassword, errorx.GetCode(err))

	_, err = svc.Login(ctx, request.LoginRequest{Email: "nobody@example.com", Password: "password123"})
	assert.Equal(t, errorx.CodeUserNotExist, errorx.GetCode(err))
}

func TestLogoutRevokesToken(t *testing.T) {
	svc, env := newService(t)
	reg, err := svc.Register(ctx, registerReq("bob", "bob@example.com"))
	require.NoError(t, err)

	claims, err := middleware.Authenticate(ctx, env.Cache, reg.AccessToken)
	require.NoError(t, err)

	require.NoError(t, svc.Logout(ctx, claims))
	_, err = middleware.Authenticate(ctx, env.Cache, reg.AccessToken)
	assert.Equal(t, errorx.CodeUnauthorized, errorx.GetCode(err))

	assert.Equal(t, errorx.CodeUnauthorized, errorx.GetCode(svc.Logout(ctx, nil)))
}

func TestMeFillsCache(t *testing.T) {
	svc, env := newService(t)
	alice := env.User(t, "alice")

	me, err := svc.Me(ctx, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", me.Nick)

	raw, err := env.Cache.Get(ctx, myredis.UserSummaryKey(alice.ID))
	require.NoError(t, err)
	var cached respond.UserRespond
	require.NoError(t, json.Unmarshal([]byte(raw), &cached))
	assert.Equal(t, *me, cached)

	_, err = svc.Me(ctx, 9999)
	assert.Equal(t, errorx.CodeUserNotExist, errorx.GetCode(err))
}
