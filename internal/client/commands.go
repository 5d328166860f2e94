package client

import (
	"context"
	"fmt"
	"strings"

	"snack_chat_server/pkg/constants"
	"snack_chat_server/pkg/errorx"
)

// ResultKind 命令结果的展示类型
type ResultKind int

const (
	ResultPositive ResultKind = iota
	ResultNegative
	ResultWarning
)

// Result 一条命令的执行结果，Message 为空时界面不提示
type Result struct {
	Kind    ResultKind
	Message string
}

// Command 解析后的斜杠命令
type Command struct {
	Name string
	Args []string
}

// Parse 以 / 开头的输入视为命令，其余是普通消息
func Parse(input string) (Command, bool) {
	parts := strings.Fields(input)
	if len(parts) == 0 || !strings.HasPrefix(parts[0], "/") {
		return Command{}, false
	}
	return Command{Name: strings.ToLower(parts[0]), Args: parts[1:]}, true
}

func (c Command) arg(i int) string {
	if i < len(c.Args) {
		return c.Args[i]
	}
	return ""
}

// Execute 执行一行输入：命令或发送消息
func (c *Client) Execute(ctx context.Context, input string) Result {
	input = strings.TrimSpace(input)
	if input == "" {
		return Result{Kind: ResultWarning, Message: "Empty command"}
	}
	cmd, ok := Parse(input)
	if !ok {
		if _, err := c.Send(ctx, input); err != nil {
			return failure(err)
		}
		return Result{Kind: ResultPositive}
	}

	switch cmd.Name {
	case "/join":
		return c.execJoin(ctx, cmd)
	case "/cancel":
		return c.execCancel(ctx)
	case "/invite":
		return c.execTarget(ctx, cmd, "invite", c.Invite)
	case "/revoke":
		return c.execTarget(ctx, cmd, "revoke", c.Revoke)
	case "/kick":
		return c.execTarget(ctx, cmd, "kick", c.Kick)
	case "/accept":
		return c.execInvite(ctx, cmd, true)
	case "/decline":
		return c.execInvite(ctx, cmd, false)
	case "/status":
		return c.execStatus(ctx, cmd)
	case "/list":
		return Result{Kind: ResultPositive, Message: c.describeChannels()}
	case "/more":
		more, err := c.LoadMore(ctx)
		if err != nil {
			return failure(err)
		}
		if !more {
			return Result{Kind: ResultWarning, Message: "No older messages"}
		}
		return Result{Kind: ResultPositive, Message: "Loaded older messages"}
	case "/switch":
		return c.execSwitch(ctx, cmd)
	default:
		return Result{Kind: ResultWarning, Message: "Unknown command: " + cmd.Name}
	}
}

func (c *Client) execJoin(ctx context.Context, cmd Command) Result {
	name := cmd.arg(0)
	if name == "" {
		return Result{Kind: ResultNegative, Message: "Usage: /join channelName [private]"}
	}
	private := strings.EqualFold(cmd.arg(1), "private")

	res, err := c.JoinOrCreate(ctx, name, !private)
	if err != nil {
		return failure(err)
	}
	if !res.Created {
		return Result{Kind: ResultPositive, Message: fmt.Sprintf("Joined %q", res.Channel.Name)}
	}
	msg := fmt.Sprintf("Created and joined %q", res.Channel.Name)
	if !res.Channel.IsPublic {
		msg += " (private)"
	}
	return Result{Kind: ResultPositive, Message: msg}
}

func (c *Client) execCancel(ctx context.Context) Result {
	res, err := c.Leave(ctx)
	if err != nil {
		return failure(err)
	}
	if res.Deleted {
		return Result{Kind: ResultPositive, Message: "Channel deleted"}
	}
	return Result{Kind: ResultPositive, Message: "Left channel"}
}

func (c *Client) execTarget(ctx context.Context, cmd Command, verb string,
	fn func(context.Context, string) (uint, error)) Result {
	nick := strings.TrimPrefix(cmd.arg(0), "@")
	if nick == "" {
		return Result{Kind: ResultNegative, Message: fmt.Sprintf("Usage: /%s nickName", verb)}
	}
	if _, err := fn(ctx, nick); err != nil {
		return failure(err)
	}
	past := map[string]string{"invite": "Invited", "revoke": "Revoked", "kick": "Kicked"}[verb]
	return Result{Kind: ResultPositive, Message: fmt.Sprintf("%s %s", past, nick)}
}

// execInvite 未指定频道时，只有一个待处理邀请才能省略
func (c *Client) execInvite(ctx context.Context, cmd Command, accept bool) Result {
	var target uint
	if name := cmd.arg(0); name != "" {
		ch, ok := c.store.ChannelByName(name)
		if !ok || !ch.Invited {
			return Result{Kind: ResultNegative, Message: fmt.Sprintf("No pending invite for %q", name)}
		}
		target = ch.ID
	} else {
		var invites []uint
		for _, ch := range c.store.Channels() {
			if ch.Invited {
				invites = append(invites, ch.ID)
			}
		}
		if len(invites) != 1 {
			return Result{Kind: ResultNegative, Message: "Usage: " + cmd.Name + " channelName"}
		}
		target = invites[0]
	}

	if accept {
		if err := c.Accept(ctx, target); err != nil {
			return failure(err)
		}
		return Result{Kind: ResultPositive, Message: "Invite accepted"}
	}
	if err := c.Decline(ctx, target); err != nil {
		return failure(err)
	}
	return Result{Kind: ResultPositive, Message: "Invite declined"}
}

func (c *Client) execStatus(ctx context.Context, cmd Command) Result {
	status := strings.ToLower(cmd.arg(0))
	switch status {
	case constants.STATUS_ACTIVE, constants.STATUS_AWAY, constants.STATUS_OFFLINE:
	default:
		return Result{Kind: ResultNegative, Message: "Usage: /status active|away|offline"}
	}
	if err := c.SetStatus(ctx, status); err != nil {
		return failure(err)
	}
	return Result{Kind: ResultPositive, Message: "Status: " + status}
}

func (c *Client) execSwitch(ctx context.Context, cmd Command) Result {
	name := strings.TrimPrefix(cmd.arg(0), "#")
	if name == "" {
		return Result{Kind: ResultNegative, Message: "Usage: /switch channelName"}
	}
	ch, ok := c.store.ChannelByName(name)
	if !ok {
		return Result{Kind: ResultNegative, Message: fmt.Sprintf("Unknown channel %q", name)}
	}
	if err := c.SwitchChannel(ctx, ch.ID); err != nil {
		return failure(err)
	}
	return Result{Kind: ResultPositive, Message: "Switched to #" + ch.Name}
}

// describeChannels /list 的输出：当前频道、未读数、待处理邀请
func (c *Client) describeChannels() string {
	list := c.store.Channels()
	if len(list) == 0 {
		return "No channels yet. Try /join general"
	}
	current := c.store.Current()
	var b strings.Builder
	for i, ch := range list {
		if i > 0 {
			b.WriteByte('\n')
		}
		marker := "  "
		if ch.ID == current {
			marker = "* "
		}
		b.WriteString(marker + "#" + ch.Name)
		if !ch.IsPublic {
			b.WriteString(" (private)")
		}
		if ch.IsModerator {
			b.WriteString(" [mod]")
		}
		switch {
		case ch.Invited:
			b.WriteString(" - invited, /accept " + ch.Name)
		case c.store.Unread(ch.ID) > 0:
			fmt.Fprintf(&b, " (%d unread)", c.store.Unread(ch.ID))
		}
	}
	return b.String()
}

func failure(err error) Result {
	if errorx.IsRetryable(err) {
		return Result{Kind: ResultWarning, Message: err.Error()}
	}
	return Result{Kind: ResultNegative, Message: err.Error()}
}
