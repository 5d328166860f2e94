package constants

import "time"

const (
	MESSAGE_MAX_LENGTH    = 500  // 消息正文最大字符数
	CHANNEL_NAME_MIN      = 3    // 频道名最短
	CHANNEL_NAME_MAX      = 50   // 频道名最长
	DEFAULT_PAGE_SIZE     = 30   // 历史消息默认分页大小
	MAX_PAGE_SIZE         = 100  // 历史消息分页上限
	MAX_BAN               = 3    // 封禁计数上限，达到即永久封禁
	CACHE_TASK_WORKERS    = 15   // 异步缓存 worker 数
	CACHE_TASK_BUFFER     = 3000 // 异步缓存任务缓冲
)

const (
	CHANNEL_LIST_CACHE_TTL = 30 * time.Minute // 用户频道列表缓存
	USER_SUMMARY_CACHE_TTL = 24 * time.Hour   // 用户摘要缓存
)

// 缓存 key 前缀
const (
	CHANNEL_LIST_KEY_PREFIX  = "channel_list_"
	USER_SUMMARY_KEY_PREFIX  = "user_summary_"
	REVOKED_TOKEN_KEY_PREFIX = "revoked_token_"
)

// 用户在线状态
const (
	STATUS_ACTIVE  = "active"
	STATUS_AWAY    = "away"
	STATUS_OFFLINE = "offline"
)
