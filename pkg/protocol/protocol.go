package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"snack_chat_server/pkg/errorx"

	"github.com/go-playground/validator/v10"
)

// Envelope 线上帧：{"event":name,"ackId":n?,"data":{...}}
type Envelope struct {
	Event string          `json:"event"`
	AckID *int64          `json:"ackId,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// HasAck 客户端是否在等待应答
func (e Envelope) HasAck() bool { return e.AckID != nil }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	// 错误信息使用 json 字段名
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// commandFactories 事件名到命令类型的映射，未登记的事件一律拒绝
var commandFactories = map[string]func() Command{
	EventJoinChannel:   func() Command { return &JoinChannel{} },
	EventLeaveChannel:  func() Command { return &LeaveChannel{} },
	EventSendMessage:   func() Command { return &SendMessage{} },
	EventTyping:        func() Command { return &Typing{} },
	EventStatusChange:  func() Command { return &StatusChange{} },
	EventInviteUser:    func() Command { return &InviteUser{} },
	EventAcceptInvite:  func() Command { return &AcceptInvite{} },
	EventDeclineInvite: func() Command { return &DeclineInvite{} },
	EventUserRevoked:   func() Command { return &UserRevoked{} },
	EventUserKicked:    func() Command { return &UserKicked{} },
}

// DecodeCommand 解析一帧客户端数据并校验
// 信封本身无法解析时返回的 Envelope 为零值；命令非法时仍返回已解析的信封，便于回 ack
func DecodeCommand(raw []byte) (Envelope, Command, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, nil, errorx.Wrap(err, errorx.CodeInvalidParam, "无法解析的消息帧")
	}

	factory, ok := commandFactories[env.Event]
	if !ok {
		return env, nil, errorx.Newf(errorx.CodeInvalidParam, "未知事件 %q", env.Event)
	}

	ptr := factory()
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, ptr); err != nil {
			return env, nil, errorx.Wrapf(err, errorx.CodeInvalidParam, "%s 数据格式错误", env.Event)
		}
	}
	if err := validate.Struct(ptr); err != nil {
		return env, nil, errorx.Wrap(err, errorx.CodeInvalidParam, describe(err))
	}

	// 业务层按值类型分派
	return env, reflect.ValueOf(ptr).Elem().Interface().(Command), nil
}

// describe 把校验错误压成一行可读信息
func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		if fe.Param() != "" {
			parts = append(parts, fmt.Sprintf("%s: %s=%s", fe.Field(), fe.Tag(), fe.Param()))
		} else {
			parts = append(parts, fmt.Sprintf("%s: %s", fe.Field(), fe.Tag()))
		}
	}
	return strings.Join(parts, "; ")
}

// Encode 编码一条服务端推送或客户端命令
func Encode(event string, data any) ([]byte, error) {
	return encode(event, nil, data)
}

// EncodeWithAck 客户端发送需要应答的命令
func EncodeWithAck(event string, ackID int64, data any) ([]byte, error) {
	return encode(event, &ackID, data)
}

// EncodeAck 编码对 ackID 的应答
func EncodeAck(ackID int64, data any) ([]byte, error) {
	return encode(EventAck, &ackID, data)
}

// ErrorAckFrom 把业务错误转成失败应答，非 CodeError 一律按服务繁忙处理
func ErrorAckFrom(err error) ErrorAck {
	var codeErr *errorx.CodeError
	if errors.As(err, &codeErr) {
		ack := ErrorAck{Status: StatusError, Message: codeErr.Msg, Code: codeErr.Code, Data: codeErr.Data}
		if codeErr.Code == errorx.CodeDBError || codeErr.Code == errorx.CodeCacheError {
			ack.Message, ack.Code, ack.Data = errorx.ErrServerBusy.Msg, errorx.ErrServerBusy.Code, nil
		}
		return ack
	}
	return ErrorAck{Status: StatusError, Message: errorx.ErrServerBusy.Msg, Code: errorx.ErrServerBusy.Code}
}

func encode(event string, ackID *int64, data any) ([]byte, error) {
	env := Envelope{Event: event, AckID: ackID}
	if data != nil {
		raw, err := json.Marshal(data)
		if err != nil {
			return nil, fmt.Errorf("marshal %s payload: %w", event, err)
		}
		env.Data = raw
	}
	return json.Marshal(env)
}

// DecodeEnvelope 客户端解析服务端推送的外层
func DecodeEnvelope(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, err
	}
	if env.Event == "" {
		return Envelope{}, errors.New("missing event")
	}
	return env, nil
}

// AckResult 客户端解析应答的通用结构
// 成功时 message 为消息体，失败时为错误文本，因此保留原始 JSON
type AckResult struct {
	Status       string          `json:"status"`
	Code         int             `json:"code"`
	Message      json.RawMessage `json:"message"`
	SentTo       int             `json:"sentTo"`
	TargetUserID uint            `json:"targetUserId"`
	Data         json.RawMessage `json:"data"`
}

// Err 失败应答转回 CodeError
func (a AckResult) Err() error {
	if a.Status == StatusOK {
		return nil
	}
	var msg string
	if err := json.Unmarshal(a.Message, &msg); err != nil {
		msg = string(a.Message)
	}
	code := a.Code
	if code == 0 {
		code = errorx.CodeServerBusy
	}
	e := errorx.New(code, msg)
	if len(a.Data) > 0 {
		return e.WithData(a.Data)
	}
	return e
}

// SentMessage 解析 sendMessage 成功应答中的消息体
func (a AckResult) SentMessage() (Message, error) {
	var m Message
	err := json.Unmarshal(a.Message, &m)
	return m, err
}
