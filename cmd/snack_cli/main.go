// snack_cli 终端聊天客户端：REST 登录后建立 WebSocket，逐行读取命令或消息
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"snack_chat_server/internal/client"
	"snack_chat_server/internal/config"
	"snack_chat_server/internal/dto/request"
	"snack_chat_server/internal/infrastructure/logger"
	"snack_chat_server/pkg/protocol"

	"github.com/caarlos0/env/v11"
	"go.uber.org/zap"
)

// cliConfig 环境变量给默认值，命令行参数覆盖
type cliConfig struct {
	Server   string `env:"SNACK_CLI_SERVER" envDefault:"http://127.0.0.1:3333"`
	Token    string `env:"SNACK_CLI_TOKEN"`
	Email    string `env:"SNACK_CLI_EMAIL"`
	Password string `env:"SNACK_CLI_PASSWORD"`
	Nick     string `env:"SNACK_CLI_NICK"` // 非空时先注册
	PageSize int    `env:"SNACK_CLI_PAGE_SIZE" envDefault:"30"`
	LogPath  string `env:"SNACK_CLI_LOG_PATH" envDefault:"./logs"`
}

func main() {
	var conf cliConfig
	if err := env.Parse(&conf); err != nil {
		log.Fatalf("parse env: %v", err)
	}
	flag.StringVar(&conf.Server, "server", conf.Server, "server base url")
	flag.StringVar(&conf.Token, "token", conf.Token, "access token, skips login")
	flag.StringVar(&conf.Email, "email", conf.Email, "login email")
	flag.StringVar(&conf.Password, "password", conf.Password, "login password")
	flag.StringVar(&conf.Nick, "register", conf.Nick, "register with this nick before login")
	flag.IntVar(&conf.PageSize, "page-size", conf.PageSize, "history page size")
	flag.Parse()

	// 终端被界面占用，日志只写文件
	if err := logger.Init(&config.LogConfig{LogPath: conf.LogPath, FileName: "snack_cli.log", Level: "info"}, "release"); err != nil {
		log.Fatalf("init logger failed: %v", err)
	}
	defer func() { _ = zap.L().Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	api := client.NewHTTPAPI(conf.Server, &http.Client{Timeout: 10 * time.Second})
	if err := authenticate(ctx, api, conf); err != nil {
		fmt.Fprintln(os.Stderr, "login failed:", err)
		os.Exit(1)
	}
	me, err := api.Me(ctx)
	if err != nil {
		fmt.Fprintln(os.Stderr, "load profile failed:", err)
		os.Exit(1)
	}

	tr := client.NewWSTransport(client.WSConfig{
		URL:   "ws" + strings.TrimPrefix(conf.Server, "http") + "/wss",
		Token: api.Token(),
	})
	out := &printer{}
	c := client.New(api, tr, client.NewStore(me.ID), client.Options{
		PageSize:  conf.PageSize,
		Notifier:  out.notice,
		OnMessage: out.message,
	})
	if err := c.Start(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "connect failed:", err)
		os.Exit(1)
	}
	defer func() { _ = tr.Close() }()
	go c.Run(ctx)

	out.println(fmt.Sprintf("Logged in as %s. Type /list to see channels", me.Nick))
	out.println(describe(c.Execute(ctx, "/list")))

	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if strings.TrimSpace(line) == "/quit" {
				return
			}
			before := c.Store().Current()
			res := c.Execute(ctx, line)
			if res.Message != "" {
				out.println(describe(res))
			}
			// 切换频道或翻页后重绘缓冲区
			if cmd, isCmd := client.Parse(line); isCmd && res.Kind == client.ResultPositive &&
				(cmd.Name == "/more" || c.Store().Current() != before) {
				out.history(c)
			}
		}
	}
}

func authenticate(ctx context.Context, api *client.HTTPAPI, conf cliConfig) error {
	if conf.Token != "" {
		api.SetToken(conf.Token)
		return nil
	}
	if conf.Nick != "" {
		_, err := api.Register(ctx, request.RegisterRequest{
			Nick: conf.Nick, Name: conf.Nick, LastName: conf.Nick,
			Email: conf.Email, Password: conf.Password,
		})
		return err
	}
	_, err := api.Login(ctx, conf.Email, conf.Password)
	return err
}

func describe(res client.Result) string {
	switch res.Kind {
	case client.ResultNegative:
		return "! " + res.Message
	case client.ResultWarning:
		return "~ " + res.Message
	}
	return res.Message
}

// printer 串行化读协程与事件协程的输出
type printer struct {
	mu sync.Mutex
}

func (p *printer) println(s string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Println(s)
}

func (p *printer) message(m protocol.Message) {
	p.println(formatMessage(m))
}

func (p *printer) notice(n client.Notice) {
	prefix := map[client.NoticeKind]string{
		client.NoticeInfo:    "[info] ",
		client.NoticeMessage: "[new] ",
		client.NoticeMention: "[@] ",
		client.NoticeWarning: "[warn] ",
		client.NoticeError:   "[error] ",
	}[n.Kind]
	p.println(prefix + n.Text)
}

func (p *printer) history(c *client.Client) {
	entries := c.Store().Messages(c.Store().Current())
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, e := range entries {
		line := formatMessage(e.Message)
		if e.Pending {
			line += " (sending)"
		}
		fmt.Println(line)
	}
}

func formatMessage(m protocol.Message) string {
	return fmt.Sprintf("%s <%s> %s", m.CreatedAt.Local().Format("15:04"), m.Author.Nick, m.Content)
}
