package request

// JoinChannelRequest 加入或创建频道
// IsPublic 只在创建时生效，缺省为公开
type JoinChannelRequest struct {
	Name     string `json:"name" binding:"required,min=3,max=50"`
	IsPublic *bool  `json:"isPublic"`
}

// Public 缺省视为公开频道
func (r JoinChannelRequest) Public() bool {
	return r.IsPublic == nil || *r.IsPublic
}

// InviteRequest 邀请用户
type InviteRequest struct {
	NickName string `json:"nickName" binding:"required,max=24"`
}

// TargetRequest 撤销 / 踢出
type TargetRequest struct {
	TargetNick string `json:"targetNick" binding:"required,max=24"`
}

// SendMessageRequest REST 发消息，长度在 service 层按去空白后的字符数校验
type SendMessageRequest struct {
	Content string `json:"content" binding:"required"`
}

// MessageListRequest 历史消息分页，缺省值由 service 填充
type MessageListRequest struct {
	Page     int `form:"page" binding:"omitempty,min=1"`
	PageSize int `form:"pageSize" binding:"omitempty,min=1"`
}

// NotificationListRequest 提醒列表
type NotificationListRequest struct {
	Unseen bool `form:"unseen"`
	Limit  int  `form:"limit" binding:"omitempty,min=1,max=100"`
}
