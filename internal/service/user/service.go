package user

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"

	"go.uber.org/zap"

	"snack_chat_server/internal/dao/mysql/repository"
	myredis "snack_chat_server/internal/dao/redis"
	"snack_chat_server/internal/dto/request"
	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/internal/model"
	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"
	"snack_chat_server/pkg/util/jwt"
)

// userService 账号注册、登录、注销与资料读取
type userService struct {
	repos *repository.Repositories
	cache myredis.AsyncCacheService
}

// NewUserService 构造函数，注入 Repository 与缓存
func NewUserService(repos *repository.Repositories, cache myredis.AsyncCacheService) *userService {
	return &userService{repos: repos, cache: cache}
}

// Register 注册成功即签发 Token
func (u *userService) Register(ctx context.Context, req request.RegisterRequest) (*respond.LoginRespond, error) {
	nick := strings.TrimSpace(req.Nick)
	if strings.IndexFunc(nick, unicode.IsSpace) >= 0 || strings.HasPrefix(nick, "@") {
		return nil, errorx.New(errorx.CodeInvalidParam, "昵称不能包含空白或以 @ 开头")
	}

	user := &model.User{
		Nick:           nick,
		Name:           strings.TrimSpace(req.Name),
		LastName:       strings.TrimSpace(req.LastName),
		Email:          strings.ToLower(strings.TrimSpace(req.Email)),
		RawPassword:    req.Password,
		ActivityStatus: constants.STATUS_OFFLINE,
	}
	if err := u.repos.WithContext(ctx).User.Create(user); err != nil {
		if errorx.GetCode(err) == errorx.CodeConflict {
			return nil, errorx.New(errorx.CodeUserExist, "昵称或邮箱已被注册")
		}
		zap.L().Error("create user", zap.String("nick", nick), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return u.issue(user)
}

// Login 邮箱 + 密码
func (u *userService) Login(ctx context.Context, req request.LoginRequest) (*respond.LoginRespond, error) {
	user, err := u.repos.WithContext(ctx).User.FindByEmail(strings.ToLower(strings.TrimSpace(req.Email)))
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeUserNotExist, "用户不存在，请注册")
		}
		zap.L().Error("find user by email", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	if !user.CheckPassword(req.Password) {
		return nil, errorx.New(errorx.CodeInvalidPassword, "密码不正确，请重试")
	}
	return u.issue(user)
}

// Logout 把 token id 写入黑名单，存活到 token 自然过期
func (u *userService) Logout(ctx context.Context, claims *jwt.Claims) error {
	if claims == nil {
		return errorx.ErrUnauthorized
	}
	ttl := claims.RemainingTTL()
	if ttl <= 0 {
		return nil
	}
	if err := u.cache.Set(ctx, myredis.RevokedTokenKey(claims.TokenID), "1", ttl); err != nil {
		zap.L().Error("revoke token", zap.Uint("user_id", claims.UserID), zap.Error(err))
		return errorx.ErrServerBusy
	}
	return nil
}

// Me 当前用户资料，优先读缓存
func (u *userService) Me(ctx context.Context, userID uint) (*respond.UserRespond, error) {
	key := myredis.UserSummaryKey(userID)
	raw, err := u.cache.Get(ctx, key)
	if err != nil {
		zap.L().Warn("read user summary cache", zap.Uint("user_id", userID), zap.Error(err))
	} else if raw != "" {
		var rsp respond.UserRespond
		if err := json.Unmarshal([]byte(raw), &rsp); err == nil {
			return &rsp, nil
		}
		zap.L().Error("json unmarshal cache error", zap.String("key", key), zap.Error(err))
	}

	user, err := u.repos.WithContext(ctx).User.FindByID(userID)
	if err != nil {
		if errorx.GetCode(err) == errorx.CodeNotFound {
			return nil, errorx.New(errorx.CodeUserNotExist, "用户不存在")
		}
		zap.L().Error("find user", zap.Uint("user_id", userID), zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	rsp := toRespond(user)

	// 回填缓存
	u.cache.SubmitTask(func() {
		jsonBytes, err := json.Marshal(rsp)
		if err != nil {
			zap.L().Error("json marshal error", zap.Error(err))
			return
		}
		if err := u.cache.Set(context.Background(), key, string(jsonBytes), constants.USER_SUMMARY_CACHE_TTL); err != nil {
			zap.L().Error("redis set key error", zap.Error(err))
		}
	})
	return &rsp, nil
}

func (u *userService) issue(user *model.User) (*respond.LoginRespond, error) {
	token, _, err := jwt.GenerateAccessToken(user.ID)
	if err != nil {
		zap.L().Error("生成 Access Token 失败", zap.Error(err))
		return nil, errorx.ErrServerBusy
	}
	return &respond.LoginRespond{AccessToken: token, User: toRespond(user)}, nil
}

func toRespond(user *model.User) respond.UserRespond {
	return respond.UserRespond{
		ID:             user.ID,
		Nick:           user.Nick,
		Name:           user.Name,
		LastName:       user.LastName,
		Email:          user.Email,
		ActivityStatus: user.ActivityStatus,
	}
}
