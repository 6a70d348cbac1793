package api

// BusinessError 表示 HTTP 层成功但业务包装标记失败（success=false / code!=0）。
type BusinessError struct {
	Code    int
	Message string
}

func (e *BusinessError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message != "" {
		return e.Message
	}
	return "后端请求失败"
}

// ValidationError 表示客户端前置校验失败，请求未曾触网。
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}
