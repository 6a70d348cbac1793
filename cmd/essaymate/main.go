// Command essaymate 是作文批改服务的命令行客户端。
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/dnslin/essaymate-desktop/core/api"
	"github.com/dnslin/essaymate-desktop/core/auth"
	"github.com/dnslin/essaymate-desktop/core/httpclient"
	"github.com/dnslin/essaymate-desktop/core/store"
	"github.com/dnslin/essaymate-desktop/core/submit"
	"github.com/dnslin/essaymate-desktop/core/tasks"
)

const defaultBaseURL = "http://127.0.0.1:8080/api"

// zapAdapter 让 zap 满足 core 层的 Logger 接口。
type zapAdapter struct {
	s *zap.SugaredLogger
}

func (l zapAdapter) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l zapAdapter) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }

type app struct {
	client  *api.Client
	manager *auth.Manager
	logger  httpclient.Logger
}

func main() {
	base := flag.String("base", "", "后端基础地址，默认读 ESSAYMATE_BASE_URL")
	debug := flag.Bool("debug", false, "输出调试日志")
	flag.Parse()

	zl, err := newZapLogger(*debug)
	if err != nil {
		fmt.Fprintln(os.Stderr, "初始化日志失败:", err)
		os.Exit(1)
	}
	defer zl.Sync()
	logger := zapAdapter{s: zl.Sugar()}

	baseURL := *base
	if baseURL == "" {
		baseURL = os.Getenv("ESSAYMATE_BASE_URL")
	}
	if baseURL == "" {
		baseURL = defaultBaseURL
	}

	tokenStore := store.NewFileTokenStore("")
	manager := auth.NewManager(tokenStore, auth.WithLogger(logger))
	client := api.NewClient(baseURL,
		api.WithLogger(logger),
		api.WithTokenSource(manager),
		api.WithOnUnauthorized(manager.Invalidate),
	)
	manager.AttachBackend(client)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	manager.Bootstrap(ctx)

	a := &app{client: client, manager: manager, logger: logger}
	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}
	if err := a.dispatch(ctx, args[0], args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "错误:", err)
		os.Exit(1)
	}
}

func newZapLogger(debug bool) (*zap.Logger, error) {
	if debug {
		return zap.NewDevelopment()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	return cfg.Build()
}

func usage() {
	fmt.Fprintln(os.Stderr, `用法: essaymate [-base URL] <命令> [参数]

命令:
  login -u 用户名 -p 密码   登录并保存令牌
  register -u 用户名 -p 密码 注册账号
  logout                    登出并清理本地令牌
  whoami                    显示当前用户
  tasks                     列出批改任务
  report [ID]               查看分析报告（缺省取最新）
  submit [-text 文本] [-photo 图片]...  提交作文`)
}

func (a *app) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.cmdLogin(ctx, args)
	case "register":
		return a.cmdRegister(ctx, args)
	case "logout":
		a.manager.Logout(ctx)
		fmt.Println("已登出")
		return nil
	case "whoami":
		return a.cmdWhoami()
	case "tasks":
		return a.cmdTasks(ctx)
	case "report":
		return a.cmdReport(ctx, args)
	case "submit":
		return a.cmdSubmit(ctx, args)
	default:
		usage()
		return fmt.Errorf("未知命令: %s", cmd)
	}
}

func credsFlags(name string, args []string) (api.Credentials, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	user := fs.String("u", "", "用户名")
	pass := fs.String("p", "", "密码")
	if err := fs.Parse(args); err != nil {
		return api.Credentials{}, err
	}
	if *user == "" || *pass == "" {
		return api.Credentials{}, errors.New("必须提供 -u 与 -p")
	}
	return api.Credentials{Username: *user, Password: *pass}, nil
}

func (a *app) cmdLogin(ctx context.Context, args []string) error {
	creds, err := credsFlags("login", args)
	if err != nil {
		return err
	}
	if err := a.manager.Login(ctx, creds); err != nil {
		return err
	}
	session := a.manager.Current()
	if session.User != nil {
		fmt.Printf("登录成功: %s (uid=%d)\n", session.User.Username, session.User.UID)
	} else {
		fmt.Println("登录成功")
	}
	return nil
}

func (a *app) cmdRegister(ctx context.Context, args []string) error {
	creds, err := credsFlags("register", args)
	if err != nil {
		return err
	}
	env, err := a.client.Register(ctx, creds)
	if err != nil {
		return err
	}
	if !env.Success {
		return &auth.AuthenticationError{Message: env.Message}
	}
	fmt.Println("注册成功，请登录")
	return nil
}

func (a *app) cmdWhoami() error {
	user, err := a.manager.RequireUser()
	if err != nil {
		if errors.Is(err, auth.ErrUnauthenticated) {
			return errors.New("尚未登录，请先 essaymate login")
		}
		return err
	}
	fmt.Printf("%s (uid=%d) 积分=%d 年级=%s\n", user.Username, user.UID, user.Points, user.Grade)
	return nil
}

func (a *app) cmdTasks(ctx context.Context) error {
	cache := tasks.NewCache(tasks.WithCacheLogger(a.logger))
	list := tasks.NewList(cache, a.client, a.identity, nil)
	defer list.Close()

	if err := list.Refresh(ctx); err != nil {
		// 列表视图自身会回退种子数据，这里只提示
		fmt.Fprintln(os.Stderr, "提示:", list.Err())
	}
	items := list.Items()
	if len(items) == 0 {
		fmt.Println("暂无批改任务")
		return nil
	}
	for _, task := range items {
		fmt.Printf("%-20s %-12s %s\n", task.ID, task.Status, task.Title)
	}
	return nil
}

func (a *app) identity() string {
	session := a.manager.Current()
	if session.User == nil {
		return ""
	}
	return strconv.FormatInt(session.User.UID, 10)
}

func (a *app) cmdReport(ctx context.Context, args []string) error {
	id := ""
	if len(args) > 0 {
		id = args[0]
	}
	report, err := a.client.EssayReport(ctx, id)
	if err != nil {
		return err
	}
	if report == nil {
		fmt.Println("暂无报告")
		return nil
	}
	fmt.Printf("得分: %.1f\n%s\n", report.Score, report.Feedback)
	for _, c := range report.Corrections {
		fmt.Printf("  %s -> %s\n", c.Original, c.Correction)
	}
	return nil
}

type repeatedFlag []string

func (f *repeatedFlag) String() string { return fmt.Sprint([]string(*f)) }

func (f *repeatedFlag) Set(v string) error {
	*f = append(*f, v)
	return nil
}

func (a *app) cmdSubmit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("submit", flag.ContinueOnError)
	text := fs.String("text", "", "作文文字内容")
	var photos repeatedFlag
	fs.Var(&photos, "photo", "作文照片，可重复")
	if err := fs.Parse(args); err != nil {
		return err
	}

	sub := api.Submission{Text: *text}
	for _, path := range photos {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		sub.Images = append(sub.Images, api.ImageFile{
			Name: filepath.Base(path),
			MIME: mime.TypeByExtension(filepath.Ext(path)),
			Data: data,
		})
	}

	tracker := submit.NewTracker(a.client, submit.WithLogger(a.logger))
	id, err := tracker.Enqueue(ctx, sub)
	if err != nil {
		return err
	}
	job, err := tracker.Wait(ctx, id)
	if err != nil {
		return err
	}
	if job.Status != submit.StatusCompleted {
		return job.Err
	}
	fmt.Println("提交成功，请稍后在任务列表查看批改进度")
	if job.Receipt != nil && job.Receipt.ID != "" {
		fmt.Println("回执:", job.Receipt.ID)
	}
	return nil
}
