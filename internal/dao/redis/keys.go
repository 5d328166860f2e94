package redis

import (
	"strconv"

	"snack_chat_server/pkg/constants"
)

// ChannelListKey 用户频道列表
func ChannelListKey(userID uint) string {
	return constants.CHANNEL_LIST_KEY_PREFIX + strconv.FormatUint(uint64(userID), 10)
}

// UserSummaryKey 用户资料摘要
func UserSummaryKey(userID uint) string {
	return constants.USER_SUMMARY_KEY_PREFIX + strconv.FormatUint(uint64(userID), 10)
}

// RevokedTokenKey 已注销的 token id
func RevokedTokenKey(tokenID string) string {
	return constants.REVOKED_TOKEN_KEY_PREFIX + tokenID
}
