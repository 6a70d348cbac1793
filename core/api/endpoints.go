package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
)

// 接口路径，统一维护。
const (
	pathLogin       = "/user/login"
	pathRegister    = "/user/register"
	pathUserInfo    = "/user/info"
	pathLogout      = "/logout"
	pathReviewTasks = "/review-tasks"
	pathReport      = "/essay-analysis"
	pathUpload      = "/upload"
)

// Login 用户登录。登录结果（含可选 token）在 Envelope.Data 中。
func (c *Client) Login(ctx context.Context, creds Credentials) (*Envelope, error) {
	return c.Post(ctx, pathLogin, creds)
}

// Register 用户注册。
func (c *Client) Register(ctx context.Context, creds Credentials) (*Envelope, error) {
	return c.Post(ctx, pathRegister, creds)
}

// UserInfo 获取用户信息，id 为空时返回当前登录用户。
func (c *Client) UserInfo(ctx context.Context, id string) (*Envelope, error) {
	path := pathUserInfo
	if id != "" {
		path += "/" + url.PathEscape(id)
	}
	return c.Get(ctx, path, nil)
}

// Logout 通知后端登出。调用方按尽力而为处理返回错误。
func (c *Client) Logout(ctx context.Context) error {
	_, err := c.Post(ctx, pathLogout, nil)
	return err
}

// ReviewTasks 拉取批改任务列表，userID 为空时按匿名请求。
// 列表可能嵌在响应体的不同层级，统一走 ExtractTaskList 提取。
func (c *Client) ReviewTasks(ctx context.Context, userID string) ([]ReviewTask, error) {
	query := url.Values{}
	if userID != "" {
		query.Set("user_id", userID)
	}
	env, raw, err := c.do(ctx, http.MethodGet, pathReviewTasks, query, nil)
	if err != nil {
		return nil, err
	}
	if !env.Success {
		return nil, &BusinessError{Code: env.Code, Message: env.Message}
	}
	return ExtractTaskList(raw), nil
}

// EssayReport 获取分析报告，id 为空时取最新一份。
func (c *Client) EssayReport(ctx context.Context, id string) (*EssayReport, error) {
	path := pathReport + "/latest"
	if id != "" {
		path = pathReport + "/" + url.PathEscape(id)
	}
	report, _, err := GetData[*EssayReport](ctx, c, path, nil)
	return report, err
}

// listExtractor 尝试从响应体的某个位置取出任务列表。
type listExtractor func(body []byte) ([]ReviewTask, bool)

// 提取策略按优先级排列：data.data、data、响应体本身、data.result。
var listExtractors = []listExtractor{
	listFromDataData,
	listFromData,
	listFromBody,
	listFromDataResult,
}

// ExtractTaskList 按既定优先级从原始响应体中提取任务列表，
// 全部不匹配时返回空列表。
func ExtractTaskList(body []byte) []ReviewTask {
	for _, extract := range listExtractors {
		if tasks, ok := extract(body); ok {
			return tasks
		}
	}
	return []ReviewTask{}
}

func listFromDataData(body []byte) ([]ReviewTask, bool) {
	var outer struct {
		Data struct {
			Data []ReviewTask `json:"data"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, false
	}
	if outer.Data.Data == nil {
		return nil, false
	}
	return outer.Data.Data, true
}

func listFromData(body []byte) ([]ReviewTask, bool) {
	var outer struct {
		Data []ReviewTask `json:"data"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, false
	}
	if outer.Data == nil {
		return nil, false
	}
	return outer.Data, true
}

func listFromBody(body []byte) ([]ReviewTask, bool) {
	var tasks []ReviewTask
	if err := json.Unmarshal(body, &tasks); err != nil {
		return nil, false
	}
	return tasks, true
}

func listFromDataResult(body []byte) ([]ReviewTask, bool) {
	var outer struct {
		Data struct {
			Result []ReviewTask `json:"result"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &outer); err != nil {
		return nil, false
	}
	if outer.Data.Result == nil {
		return nil, false
	}
	return outer.Data.Result, true
}
