package respond

import "snack_chat_server/pkg/protocol"

// PageMeta 分页信息
type PageMeta struct {
	CurrentPage int   `json:"currentPage"`
	LastPage    int   `json:"lastPage"`
	Total       int64 `json:"total"`
	PageSize    int   `json:"pageSize"`
}

// MessageListRespond 历史消息，Data 按 id 升序
// 使用位置:
//   - internal/service/message/service.go: History
type MessageListRespond struct {
	Data []protocol.Message `json:"data"`
	Meta PageMeta           `json:"meta"`
}

// SendMessageRespond REST 发送结果
type SendMessageRespond struct {
	SentTo  int              `json:"sentTo"`
	Message protocol.Message `json:"message"`
}
