package api

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestNormalizeSuccessFlagShape(t *testing.T) {
	env, err := Normalize([]byte(`{"success":true,"data":{"token":"tok123"},"message":"欢迎"}`))
	if err != nil {
		t.Fatalf("归一化失败: %v", err)
	}
	if !env.Success || env.Code != 0 {
		t.Fatalf("success 形态解析错误: %+v", env)
	}
	if env.Message != "欢迎" {
		t.Fatalf("message 不符: %q", env.Message)
	}
	result, err := DecodeData[LoginResult](env)
	if err != nil || result.Token != "tok123" {
		t.Fatalf("载荷解码错误: %+v, %v", result, err)
	}
}

func TestNormalizeSuccessFlagFailureDerivesCode(t *testing.T) {
	env, err := Normalize([]byte(`{"success":false,"msg":"密码错误"}`))
	if err != nil {
		t.Fatalf("归一化失败: %v", err)
	}
	if env.Success || env.Code != 1 {
		t.Fatalf("失败时 code 应推导为 1: %+v", env)
	}
	if env.Message != "密码错误" {
		t.Fatalf("应回退读取 msg 字段: %q", env.Message)
	}
	if env.HasData() {
		t.Fatalf("失败响应不应有载荷")
	}
}

func TestNormalizeSuccessFlagExplicitCodeWins(t *testing.T) {
	env, err := Normalize([]byte(`{"success":false,"code":42,"message":"限流"}`))
	if err != nil {
		t.Fatalf("归一化失败: %v", err)
	}
	if env.Code != 42 {
		t.Fatalf("显式 code 应生效: %d", env.Code)
	}
}

func TestNormalizeCodeMsgShape(t *testing.T) {
	env, err := Normalize([]byte(`{"code":0,"msg":"ok","data":[1,2,3]}`))
	if err != nil {
		t.Fatalf("归一化失败: %v", err)
	}
	if !env.Success || env.Code != 0 || env.Message != "ok" {
		t.Fatalf("code/msg 形态解析错误: %+v", env)
	}
	nums, err := DecodeData[[]int](env)
	if err != nil || len(nums) != 3 {
		t.Fatalf("载荷解码错误: %v, %v", nums, err)
	}
}

func TestNormalizeCodeMsgFailure(t *testing.T) {
	env, err := Normalize([]byte(`{"code":500,"msg":"服务繁忙"}`))
	if err != nil {
		t.Fatalf("归一化失败: %v", err)
	}
	if env.Success || env.Code != 500 {
		t.Fatalf("非零 code 应判为失败: %+v", env)
	}
}

func TestNormalizeBareObject(t *testing.T) {
	env, err := Normalize([]byte(`{"uid":1,"username":"u"}`))
	if err != nil {
		t.Fatalf("归一化失败: %v", err)
	}
	if !env.Success || env.Code != 0 || env.Message != "ok" {
		t.Fatalf("裸对象应合成成功包装: %+v", env)
	}
	user, err := DecodeData[UserProfile](env)
	if err != nil || user.UID != 1 || user.Username != "u" {
		t.Fatalf("裸对象载荷不符: %+v, %v", user, err)
	}
}

func TestNormalizeBareArray(t *testing.T) {
	env, err := Normalize([]byte(`[{"id":"a"},{"id":"b"}]`))
	if err != nil {
		t.Fatalf("归一化失败: %v", err)
	}
	if !env.Success {
		t.Fatalf("裸数组应合成成功包装: %+v", env)
	}
	list, err := DecodeData[[]ReviewTask](env)
	if err != nil || len(list) != 2 {
		t.Fatalf("数组载荷不符: %v, %v", list, err)
	}
}

func TestNormalizeEmptyAndNullBody(t *testing.T) {
	for _, body := range []string{"", "  ", "null"} {
		env, err := Normalize([]byte(body))
		if err != nil {
			t.Fatalf("空响应体(%q)不应报错: %v", body, err)
		}
		if !env.Success || env.HasData() {
			t.Fatalf("空响应体应为无载荷成功: %+v", env)
		}
	}
}

func TestNormalizeInvalidJSON(t *testing.T) {
	_, err := Normalize([]byte(`<html>bad gateway</html>`))
	var de *DecodeError
	if !errors.As(err, &de) {
		t.Fatalf("错误类型应为 DecodeError，实际: %v", err)
	}
}

// 对三种已知形态逐一校验恒等式 Success == (Code == 0)。
func TestNormalizeInvariant(t *testing.T) {
	bodies := []string{
		`{"success":true,"data":{}}`,
		`{"success":false,"message":"x"}`,
		`{"code":0,"data":{}}`,
		`{"code":7,"msg":"x"}`,
		`{"plain":"object"}`,
		`[1,2]`,
	}
	for _, body := range bodies {
		env, err := Normalize([]byte(body))
		if err != nil {
			t.Fatalf("归一化 %s 失败: %v", body, err)
		}
		if env.Success != (env.Code == 0) {
			t.Fatalf("恒等式被破坏: body=%s env=%+v", body, env)
		}
	}
}

func TestDecodeDataNilEnvelope(t *testing.T) {
	user, err := DecodeData[*UserProfile](nil)
	if err != nil || user != nil {
		t.Fatalf("空 Envelope 应返回零值: %v, %v", user, err)
	}
}

func TestFlexTimeFormats(t *testing.T) {
	cases := []string{
		`"2024-05-01T10:00:00Z"`,
		`"2024-05-01 10:00:00"`,
		`1714557600`,
		`1714557600000`,
	}
	for _, raw := range cases {
		var ft FlexTime
		if err := json.Unmarshal([]byte(raw), &ft); err != nil {
			t.Fatalf("解析 %s 失败: %v", raw, err)
		}
		if ft.IsZero() {
			t.Fatalf("解析 %s 得到零值时间", raw)
		}
	}
}
