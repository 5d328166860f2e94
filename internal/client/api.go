package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"snack_chat_server/internal/dto/request"
	"snack_chat_server/internal/dto/respond"
	"snack_chat_server/pkg/errorx"
)

// ChannelAPI Client 依赖的 REST 操作
type ChannelAPI interface {
	ListChannels(ctx context.Context) ([]respond.ChannelListItem, error)
	JoinOrCreate(ctx context.Context, name string, public bool) (*respond.JoinChannelRespond, error)
	Leave(ctx context.Context, channelID uint) (*respond.LeaveRespond, error)
	History(ctx context.Context, channelID uint, page, pageSize int) (*respond.MessageListRespond, error)
	Roster(ctx context.Context, channelID uint) ([]respond.RosterItem, error)
}

// envelope 服务端统一响应结构
type envelope struct {
	Code int             `json:"code"`
	Msg  json.RawMessage `json:"msg"`
	Data json.RawMessage `json:"data"`
}

// HTTPAPI 通过 REST 接口访问服务端
type HTTPAPI struct {
	baseURL string
	client  *http.Client

	token string
}

// NewHTTPAPI baseURL 形如 http://127.0.0.1:3333
func NewHTTPAPI(baseURL string, client *http.Client) *HTTPAPI {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPAPI{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// SetToken 登录后设置 Access Token
func (a *HTTPAPI) SetToken(token string) { a.token = token }

func (a *HTTPAPI) Token() string { return a.token }

func (a *HTTPAPI) Register(ctx context.Context, req request.RegisterRequest) (*respond.LoginRespond, error) {
	var out respond.LoginRespond
	if err := a.do(ctx, http.MethodPost, "/register", req, &out); err != nil {
		return nil, err
	}
	a.token = out.AccessToken
	return &out, nil
}

func (a *HTTPAPI) Login(ctx context.Context, email, password string) (*respond.LoginRespond, error) {
	var out respond.LoginRespond
	if err := a.do(ctx, http.MethodPost, "/login", request.LoginRequest{Email: email, Password: password}, &out); err != nil {
		return nil, err
	}
	a.token = out.AccessToken
	return &out, nil
}

func (a *HTTPAPI) Logout(ctx context.Context) error {
	return a.do(ctx, http.MethodDelete, "/logout", nil, nil)
}

func (a *HTTPAPI) Me(ctx context.Context) (*respond.UserRespond, error) {
	var out respond.UserRespond
	if err := a.do(ctx, http.MethodGet, "/me", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) ListChannels(ctx context.Context) ([]respond.ChannelListItem, error) {
	var out []respond.ChannelListItem
	err := a.do(ctx, http.MethodGet, "/channels", nil, &out)
	return out, err
}

func (a *HTTPAPI) JoinOrCreate(ctx context.Context, name string, public bool) (*respond.JoinChannelRespond, error) {
	var out respond.JoinChannelRespond
	req := request.JoinChannelRequest{Name: name, IsPublic: &public}
	if err := a.do(ctx, http.MethodPost, "/channels", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) Leave(ctx context.Context, channelID uint) (*respond.LeaveRespond, error) {
	var out respond.LeaveRespond
	if err := a.do(ctx, http.MethodPost, channelPath(channelID, "leave"), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) History(ctx context.Context, channelID uint, page, pageSize int) (*respond.MessageListRespond, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if pageSize > 0 {
		q.Set("pageSize", strconv.Itoa(pageSize))
	}
	var out respond.MessageListRespond
	if err := a.do(ctx, http.MethodGet, channelPath(channelID, "messages")+"?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *HTTPAPI) Roster(ctx context.Context, channelID uint) ([]respond.RosterItem, error) {
	var out []respond.RosterItem
	err := a.do(ctx, http.MethodGet, channelPath(channelID, "users"), nil, &out)
	return out, err
}

func (a *HTTPAPI) Notifications(ctx context.Context, onlyUnseen bool) ([]respond.NotificationRespond, error) {
	path := "/notifications"
	if onlyUnseen {
		path += "?unseen=true"
	}
	var out []respond.NotificationRespond
	err := a.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func channelPath(channelID uint, action string) string {
	return fmt.Sprintf("/channels/%d/%s", channelID, action)
}

// do 发送请求并解开统一响应，业务错误转为 CodeError
// 网络层失败返回 CodeTransport，调用方可重试
func (a *HTTPAPI) do(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return errorx.Wrapf(err, errorx.CodeTransport, "%s %s 请求失败", method, path)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return errorx.Wrapf(err, errorx.CodeTransport, "%s %s 返回 %s", method, path, resp.Status)
	}
	if env.Code != errorx.CodeSuccess {
		e := errorx.New(env.Code, message(env.Msg))
		if len(env.Data) > 0 && string(env.Data) != "null" {
			return e.WithData(env.Data)
		}
		return e
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// message msg 可能是字符串，也可能是字段到错误信息的映射
func message(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var fields map[string]string
	if err := json.Unmarshal(raw, &fields); err == nil {
		parts := make([]string, 0, len(fields))
		for k, v := range fields {
			parts = append(parts, k+": "+v)
		}
		return strings.Join(parts, ", ")
	}
	return string(raw)
}
