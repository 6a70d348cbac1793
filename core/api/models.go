package api

import (
	"encoding/json"
	"time"
)

// FlexTime 兼容多种时间表示的 JSON 字段：
// RFC3339 字符串、"2006-01-02 15:04:05"、秒级或毫秒级时间戳。
type FlexTime struct {
	time.Time
}

func (t *FlexTime) UnmarshalJSON(data []byte) error {
	// 尝试解析为字符串
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		for _, layout := range []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if parsed, err := time.Parse(layout, s); err == nil {
				t.Time = parsed
				return nil
			}
		}
		return nil
	}
	// 尝试解析为时间戳
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		if v, err := n.Int64(); err == nil {
			if v > 1e12 { // 毫秒
				t.Time = time.UnixMilli(v)
			} else {
				t.Time = time.Unix(v, 0)
			}
		}
	}
	return nil
}

func (t FlexTime) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.Time.Format(time.RFC3339))
}

// Credentials 表示账号口令组合。
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResult 登录成功后的载荷。token 可能为空（Set-Cookie 会话登录）。
type LoginResult struct {
	Token string `json:"token"`
}

// UserProfile 当前用户信息，每次刷新整体替换。
type UserProfile struct {
	UID       int64  `json:"uid"`
	Username  string `json:"username"`
	AvatarURL string `json:"avatar_url"`
	Telephone string `json:"telephone"`
	WechatID  string `json:"wechat_id"`
	Points    int    `json:"points"`
	Grade     string `json:"grade"`
}

// 批改任务状态。
const (
	TaskStatusDone       = "done"
	TaskStatusProcessing = "processing"
)

// ReviewTask 一条批改任务，获取后不再变更。
type ReviewTask struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Status    string   `json:"status"`
	CreatedAt FlexTime `json:"createdAt"`
}

// Correction 批改报告中的一处修改建议。
type Correction struct {
	Original   string `json:"original"`
	Correction string `json:"correction"`
}

// EssayReport 作文分析报告。
type EssayReport struct {
	ID          string       `json:"id"`
	Score       float64      `json:"score"`
	Feedback    string       `json:"feedback"`
	Corrections []Correction `json:"corrections"`
}

// SubmitReceipt 提交作文后的回执。
type SubmitReceipt struct {
	ID      string `json:"id"`
	Message string `json:"message"`
}
