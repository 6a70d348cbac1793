package api

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Envelope 是统一后的响应包装。后端历史上存在三种返回形态
// （success 布尔式、code/msg 式、无包装的裸对象），全部归一到这一种。
// 恒等式：Success == (Code == 0)。
type Envelope struct {
	Code    int             `json:"code"`
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// HasData 判断是否携带有效载荷。
func (e *Envelope) HasData() bool {
	return e != nil && len(e.Data) > 0 && !bytes.Equal(bytes.TrimSpace(e.Data), []byte("null"))
}

// DecodeError 表示响应体不是可解析的 JSON。
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("响应解码失败: %v", e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// rawFields 按键名拆开响应体，用于判别返回形态。
type rawFields map[string]json.RawMessage

// classifier 尝试把一种返回形态映射为 Envelope，不匹配时返回 false。
// 判别按注册顺序进行，构成封闭的形态集合。
type classifier func(fields rawFields, body []byte) (*Envelope, bool)

var classifiers = []classifier{
	classifySuccessFlag,
	classifyCodeData,
	classifyBare,
}

// Normalize 把任意一种已知形态的响应体归一为 Envelope。
// 空响应体视为无载荷的成功；非 JSON 响应体返回 *DecodeError。
func Normalize(body []byte) (*Envelope, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return &Envelope{Code: 0, Success: true, Message: "ok"}, nil
	}
	var fields rawFields
	if err := json.Unmarshal(trimmed, &fields); err != nil {
		// 非对象：数组、字符串、数字等照裸载荷处理
		if json.Valid(trimmed) {
			return &Envelope{Code: 0, Success: true, Message: "ok", Data: trimmed}, nil
		}
		return nil, &DecodeError{Err: err}
	}
	for _, classify := range classifiers {
		if env, ok := classify(fields, trimmed); ok {
			return env, nil
		}
	}
	// classifyBare 兜底，理论上不可达
	return &Envelope{Code: 0, Success: true, Message: "ok", Data: trimmed}, nil
}

// classifySuccessFlag 处理 {success,data,message} 形态。
// code 缺省时按 success 推导（成功为 0，失败为 1）。
func classifySuccessFlag(fields rawFields, _ []byte) (*Envelope, bool) {
	raw, ok := fields["success"]
	if !ok {
		return nil, false
	}
	var success bool
	if err := json.Unmarshal(raw, &success); err != nil {
		return nil, false
	}
	code := 0
	if !success {
		code = 1
	}
	if rawCode, ok := fields["code"]; ok {
		var c int
		if err := json.Unmarshal(rawCode, &c); err == nil {
			code = c
		}
	}
	return &Envelope{
		Code:    code,
		Success: success,
		Message: messageField(fields),
		Data:    dataField(fields),
	}, true
}

// classifyCodeData 处理 {code,msg,data} 或已经是规范形态的返回。
func classifyCodeData(fields rawFields, _ []byte) (*Envelope, bool) {
	_, hasCode := fields["code"]
	_, hasData := fields["data"]
	if !hasCode && !hasData {
		return nil, false
	}
	code := 0
	if rawCode, ok := fields["code"]; ok {
		if err := json.Unmarshal(rawCode, &code); err != nil {
			return nil, false
		}
	}
	return &Envelope{
		Code:    code,
		Success: code == 0,
		Message: messageField(fields),
		Data:    dataField(fields),
	}, true
}

// classifyBare 处理无包装的业务对象。
func classifyBare(_ rawFields, body []byte) (*Envelope, bool) {
	return &Envelope{Code: 0, Success: true, Message: "ok", Data: body}, true
}

// messageField 取 message，缺失时回退 msg。
func messageField(fields rawFields) string {
	for _, key := range []string{"message", "msg"} {
		if raw, ok := fields[key]; ok {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil {
				return s
			}
		}
	}
	return ""
}

func dataField(fields rawFields) json.RawMessage {
	raw, ok := fields["data"]
	if !ok || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return nil
	}
	return raw
}

// DecodeData 把 Envelope 的载荷解码为具体类型。无载荷时返回零值。
func DecodeData[T any](env *Envelope) (T, error) {
	var out T
	if env == nil || !env.HasData() {
		return out, nil
	}
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return out, &DecodeError{Err: err}
	}
	return out, nil
}
